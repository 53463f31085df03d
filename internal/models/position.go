package models

import "time"

// Position представляет открытую позицию с плечом
type Position struct {
	ID            string     `json:"id" db:"id"`
	UserID        string     `json:"user_id" db:"user_id"`
	Symbol        string     `json:"symbol" db:"symbol"` // BTCUSDT
	Side          string     `json:"side" db:"side"`     // long, short
	EntryPrice    float64    `json:"entry_price" db:"entry_price"`
	CurrentPrice  float64    `json:"current_price" db:"current_price"`
	Quantity      float64    `json:"quantity" db:"quantity"`
	Leverage      int        `json:"leverage" db:"leverage"`
	MarginUsed    float64    `json:"margin_used" db:"margin_used"` // qty*entry/leverage
	StopLoss      *float64   `json:"stop_loss,omitempty" db:"stop_loss"`
	TakeProfit    *float64   `json:"take_profit,omitempty" db:"take_profit"`
	UnrealizedPnl float64    `json:"unrealized_pnl" db:"unrealized_pnl"`
	UnrealizedPct float64    `json:"unrealized_pnl_percent" db:"unrealized_pnl_percent"` // PNL / маржа × 100
	Source        string     `json:"source" db:"source"`                                 // manual, bot
	MarketType    string     `json:"market_type" db:"market_type"`                       // spot, futures
	OpenedAt      time.Time  `json:"opened_at" db:"opened_at"`
}

// ClosedTrade представляет неизменяемый снимок закрытой позиции
type ClosedTrade struct {
	ID          string    `json:"id" db:"id"`
	PositionID  string    `json:"position_id" db:"position_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	Side        string    `json:"side" db:"side"`
	EntryPrice  float64   `json:"entry_price" db:"entry_price"`
	ExitPrice   float64   `json:"exit_price" db:"exit_price"`
	Quantity    float64   `json:"quantity" db:"quantity"`
	Leverage    int       `json:"leverage" db:"leverage"`
	MarginUsed  float64   `json:"margin_used" db:"margin_used"`
	RealizedPnl float64   `json:"realized_pnl" db:"realized_pnl"`
	Fee         float64   `json:"fee" db:"fee"`
	CloseReason string    `json:"close_reason" db:"close_reason"`
	Source      string    `json:"source" db:"source"`
	OpenedAt    time.Time `json:"opened_at" db:"opened_at"`
	ClosedAt    time.Time `json:"closed_at" db:"closed_at"`
}

// Стороны позиции
const (
	SideLong  = "long"
	SideShort = "short"
)

// Источники позиции
const (
	SourceManual = "manual"
	SourceBot    = "bot"
	SourceAdmin  = "admin"
)

// Типы рынка
const (
	MarketSpot    = "spot"
	MarketFutures = "futures"
)

// Причины закрытия
const (
	CloseReasonManual      = "manual"
	CloseReasonStopLoss    = "stop_loss"
	CloseReasonTakeProfit  = "take_profit"
	CloseReasonLiquidation = "liquidation"
	CloseReasonAdmin       = "admin_force_close"
)
