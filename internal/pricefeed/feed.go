package pricefeed

import (
	"context"
	"errors"
)

// Ошибки источника котировок
//
// ErrFeedUnavailable нефатальна: вызывающий переходит на
// симулированную цену, тик продолжается
var (
	ErrFeedUnavailable = errors.New("price feed unavailable")
	ErrUnknownSymbol   = errors.New("unknown symbol")
)

// Feed - источник котировок
//
// Реализации: SimulatedFeed (детерминированный random walk),
// WSFeed (внешний WebSocket источник с кэшем последних цен)
type Feed interface {
	// FetchPrice возвращает текущую цену символа
	FetchPrice(ctx context.Context, symbol string) (float64, error)

	// FetchQuotes возвращает цены сразу нескольких символов
	FetchQuotes(ctx context.Context, symbols []string) (map[string]float64, error)
}

// TickHandler - приёмник ценовых событий (движок)
type TickHandler func(symbol string, price float64)
