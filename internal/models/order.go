package models

import "time"

// BotOrder представляет неизменяемую запись об одной исполненной ноге бота
type BotOrder struct {
	ID        string    `json:"id" db:"id"` // ключ идемпотентности
	BotID     string    `json:"bot_id" db:"bot_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Pair      string    `json:"pair" db:"pair"`
	Side      string    `json:"side" db:"side"` // buy, sell
	Role      string    `json:"role" db:"role"`
	Quantity  float64   `json:"quantity" db:"quantity"` // объем base
	Price     float64   `json:"price" db:"price"`
	Total     float64   `json:"total" db:"total"` // quantity × price
	Fee       float64   `json:"fee" db:"fee"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Стороны ордера
const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"
)

// Роли ордеров ботов
const (
	OrderRoleBase       = "base"        // регулярная DCA покупка
	OrderRoleSafety     = "safety"      // safety order на просадке
	OrderRoleTakeProfit = "take_profit" // полная продажа по TP
	OrderRoleStopLoss   = "stop_loss"   // полная продажа по SL
	OrderRoleGridBuy    = "grid_buy"
	OrderRoleGridSell   = "grid_sell"
)
