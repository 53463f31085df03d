package engine

import "errors"

// Ошибки торгового ядра
//
// Возвращаются синхронно из операций; ручные сделки поднимают их
// до вызывающего, ноги ботов проглатывают и пропускают ногу (с логом)
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrPositionNotFound   = errors.New("position not found")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidPosition    = errors.New("invalid position parameters")
)
