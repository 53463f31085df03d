package models

import "time"

// Bot представляет торгового бота (DCA или Grid)
type Bot struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Type           string    `json:"type" db:"type"`     // dca, grid
	Pair           string    `json:"pair" db:"pair"`     // BTCUSDT
	Status         string    `json:"status" db:"status"` // stopped, running, paused
	InvestedAmount float64   `json:"invested_amount" db:"invested_amount"`
	CurrentValue   float64   `json:"current_value" db:"current_value"`
	TotalPnl       float64   `json:"total_pnl" db:"total_pnl"`
	TotalTrades    int       `json:"total_trades" db:"total_trades"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

	// Ровно одна из конфигураций в зависимости от Type
	DCA  *DCAConfig  `json:"dca_config,omitempty" db:"-"`
	Grid *GridConfig `json:"grid_config,omitempty" db:"-"`
}

// DCAConfig представляет конфигурацию и runtime состояние DCA бота
type DCAConfig struct {
	BotID         string        `json:"bot_id" db:"bot_id"`
	OrderAmount   float64       `json:"order_amount" db:"order_amount"` // в котируемой валюте
	Frequency     time.Duration `json:"frequency" db:"frequency"`       // интервал регулярных покупок
	TakeProfitPct float64       `json:"take_profit_pct" db:"take_profit_pct"`
	StopLossPct   *float64      `json:"stop_loss_pct,omitempty" db:"stop_loss_pct"`

	// Trailing take-profit
	TrailingEnabled   bool    `json:"trailing_enabled" db:"trailing_enabled"`
	TrailingDeviation float64 `json:"trailing_deviation" db:"trailing_deviation"` // % отката от пика

	// Safety orders (усреднение на просадках)
	SafetyEnabled     bool    `json:"safety_enabled" db:"safety_enabled"`
	SafetyOrderSize   float64 `json:"safety_order_size" db:"safety_order_size"`
	SafetyMaxCount    int     `json:"safety_max_count" db:"safety_max_count"`
	SafetyStepPct     float64 `json:"safety_step_pct" db:"safety_step_pct"`         // шаг цены от avgPrice
	SafetyStepScale   float64 `json:"safety_step_scale" db:"safety_step_scale"`     // множитель шага
	SafetyVolumeScale float64 `json:"safety_volume_scale" db:"safety_volume_scale"` // множитель объема

	// Runtime состояние текущей сделки
	AvgPrice          float64   `json:"avg_price" db:"avg_price"` // totalQuoteSpent / totalBaseBought
	TotalBaseBought   float64   `json:"total_base_bought" db:"total_base_bought"`
	TotalQuoteSpent   float64   `json:"total_quote_spent" db:"total_quote_spent"`
	ActiveSafetyCount int       `json:"active_safety_count" db:"active_safety_count"`
	PeakProfitPct     float64   `json:"peak_profit_pct" db:"peak_profit_pct"` // максимум профита для trailing
	DealCount         int       `json:"deal_count" db:"deal_count"`
	LastBuyAt         time.Time `json:"last_buy_at" db:"last_buy_at"`
}

// Типы ботов
const (
	BotTypeDCA  = "dca"
	BotTypeGrid = "grid"
)

// Статусы бота (state machine: stopped → running → paused → running → stopped)
const (
	BotStatusStopped = "stopped"
	BotStatusRunning = "running"
	BotStatusPaused  = "paused"
)
