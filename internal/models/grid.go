package models

// GridConfig представляет конфигурацию и runtime состояние Grid бота
type GridConfig struct {
	BotID           string  `json:"bot_id" db:"bot_id"`
	UpperPrice      float64 `json:"upper_price" db:"upper_price"`
	LowerPrice      float64 `json:"lower_price" db:"lower_price"`
	GridCount       int     `json:"grid_count" db:"grid_count"` // количество интервалов (уровней = count+1)
	GridType        string  `json:"grid_type" db:"grid_type"`   // arithmetic, geometric
	TotalInvestment float64 `json:"total_investment" db:"total_investment"`
	PerGridAmount   float64 `json:"per_grid_amount" db:"per_grid_amount"` // в котируемой валюте на уровень
	Strategy        string  `json:"strategy" db:"strategy"`               // long (покупка снизу, продажа сверху)

	// Границы принудительной остановки (0 = не задано)
	StopUpper float64 `json:"stop_upper" db:"stop_upper"`
	StopLower float64 `json:"stop_lower" db:"stop_lower"`

	// Runtime состояние
	GridProfit      float64 `json:"grid_profit" db:"grid_profit"` // реализованная прибыль циклов
	FloatPnl        float64 `json:"float_pnl" db:"float_pnl"`     // (цена - avgBuy) × base held
	TotalBaseHeld   float64 `json:"total_base_held" db:"total_base_held"`
	AvgBuyPrice     float64 `json:"avg_buy_price" db:"avg_buy_price"` // по заполненным buy уровням
	CompletedCycles int     `json:"completed_cycles" db:"completed_cycles"`
}

// GridLevel представляет один ценовой уровень сетки
//
// Инвариант: в любой момент не более одного из BuyFilled/SellFilled == true.
type GridLevel struct {
	BotID       string  `json:"bot_id" db:"bot_id"`
	LevelIndex  int     `json:"level_index" db:"level_index"`
	Price       float64 `json:"price" db:"price"`
	BuyFilled   bool    `json:"buy_filled" db:"buy_filled"`
	SellFilled  bool    `json:"sell_filled" db:"sell_filled"`
	BuyOrderID  string  `json:"buy_order_id,omitempty" db:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id,omitempty" db:"sell_order_id"`
	Quantity    float64 `json:"quantity" db:"quantity"` // объем base, купленный на уровне
}

// Типы сетки
const (
	GridTypeArithmetic = "arithmetic" // равный шаг цены
	GridTypeGeometric  = "geometric"  // равное отношение цен
)
