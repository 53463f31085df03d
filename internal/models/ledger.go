package models

import "time"

// LedgerEntry представляет неизменяемую запись об изменении баланса
//
// Каждое изменение баланса в системе (ручные сделки, ноги ботов,
// действия администратора) порождает ровно одну запись.
//
// Инвариант: BalanceAfter - BalanceBefore == Amount для каждой записи;
// сумма Amount всех записей пользователя равна его текущему балансу.
type LedgerEntry struct {
	ID            string    `json:"id" db:"id"` // ключ идемпотентности для повторных записей
	UserID        string    `json:"user_id" db:"user_id"`
	Type          string    `json:"type" db:"type"`
	Amount        float64   `json:"amount" db:"amount"` // со знаком: дебет < 0, кредит > 0
	BalanceBefore float64   `json:"balance_before" db:"balance_before"`
	BalanceAfter  float64   `json:"balance_after" db:"balance_after"`
	ReferenceID   string    `json:"reference_id,omitempty" db:"reference_id"` // позиция/бот/ордер
	Actor         string    `json:"actor" db:"actor"`                         // кто инициировал (user, admin id, bot id)
	Reason        string    `json:"reason,omitempty" db:"reason"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Типы записей леджера
const (
	LedgerTypeDeposit     = "deposit"
	LedgerTypeWithdrawal  = "withdrawal"
	LedgerTypeTradeOpen   = "trade_open"  // списание маржи с баланса при открытии
	LedgerTypeTradeClose  = "trade_close" // возврат маржи + реализованный PNL при закрытии
	LedgerTypeFee         = "fee"
	LedgerTypeBotBuy      = "bot_buy"
	LedgerTypeBotSell     = "bot_sell"
	LedgerTypeAdminCredit = "admin_credit"
	LedgerTypeAdminDebit  = "admin_debit"
)
