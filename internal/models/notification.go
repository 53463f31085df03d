package models

import "time"

// Notification представляет уведомление о событии
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`         // SL, TP, LIQUIDATION, BOT, ERROR, MARGIN
	Severity  string                 `json:"severity" db:"severity"` // info, warn, error
	UserID    string                 `json:"user_id" db:"user_id"`
	BotID     *string                `json:"bot_id,omitempty" db:"bot_id"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypeSL          = "SL"          // срабатывание Stop Loss
	NotificationTypeTP          = "TP"          // срабатывание Take Profit
	NotificationTypeLiquidation = "LIQUIDATION" // принудительная ликвидация позиции
	NotificationTypeBot         = "BOT"         // события ботов (старт/стоп/сделка)
	NotificationTypeError       = "ERROR"       // ошибка тика/персистентности
	NotificationTypeMargin      = "MARGIN"      // недостаток маржи или средств
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
