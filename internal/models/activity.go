package models

import "time"

// ActivityLog представляет запись аудита действий администратора
//
// Каждая мутация, инициированная администратором (credit/debit,
// принудительное закрытие сделки), обязана оставить запись.
type ActivityLog struct {
	ID         int       `json:"id" db:"id"`
	Actor      string    `json:"actor" db:"actor"` // id администратора
	Action     string    `json:"action" db:"action"`
	TargetUser string    `json:"target_user" db:"target_user"`
	PrevValue  float64   `json:"prev_value" db:"prev_value"`
	NewValue   float64   `json:"new_value" db:"new_value"`
	Reason     string    `json:"reason" db:"reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Действия администратора
const (
	ActivityActionCredit     = "admin_credit"
	ActivityActionDebit      = "admin_debit"
	ActivityActionForceClose = "force_close_trade"
)
