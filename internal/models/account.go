package models

import "time"

// Account представляет торговый счёт пользователя
//
// Инварианты (поддерживаются движком):
// - Equity = Balance + сумма UnrealizedPnl всех открытых позиций
// - MarginUsed = сумма MarginUsed всех открытых позиций
// - FreeMargin = Equity - MarginUsed (каноническая формула)
type Account struct {
	UserID         string    `json:"user_id" db:"user_id"`
	Balance        float64   `json:"balance" db:"balance"`                 // реализованные средства
	Equity         float64   `json:"equity" db:"equity"`                   // balance + нереализованный PNL
	MarginUsed     float64   `json:"margin_used" db:"margin_used"`         // заблокированная маржа
	FreeMargin     float64   `json:"free_margin" db:"free_margin"`         // equity - margin_used
	UnrealizedPnl  float64   `json:"unrealized_pnl" db:"unrealized_pnl"`   // по всем открытым позициям
	TotalDeposited float64   `json:"total_deposited" db:"total_deposited"`
	TotalWithdrawn float64   `json:"total_withdrawn" db:"total_withdrawn"`
	TotalPnl       float64   `json:"total_pnl" db:"total_pnl"` // накопленный реализованный PNL
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
