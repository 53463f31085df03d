package bot

import "errors"

// Сентинельные ошибки управления ботами
var (
	ErrBotNotFound       = errors.New("bot not found")
	ErrBotAlreadyRunning = errors.New("bot is already running")
	ErrInvalidTransition = errors.New("invalid bot status transition")
	ErrBotLimitReached   = errors.New("running bot limit reached for user")
	ErrInvalidBotConfig  = errors.New("invalid bot configuration")
	ErrUnknownBotType    = errors.New("unknown bot type")
)
