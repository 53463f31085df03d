package websocket

import (
	"time"

	"tradecore/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeAccountUpdate - снимок счёта после мутации баланса
	// Отправляется при депозитах, выводах, открытии/закрытии позиций и ногах ботов
	MessageTypeAccountUpdate MessageType = "accountUpdate"

	// MessageTypePositionUpdate - состояние позиции
	// Отправляется при открытии, закрытии и на каждом ценовом тике
	MessageTypePositionUpdate MessageType = "positionUpdate"

	// MessageTypeBotUpdate - runtime состояние бота
	// Отправляется после каждого тика, изменившего состояние
	MessageTypeBotUpdate MessageType = "botUpdate"

	// MessageTypeNotification - новое уведомление
	// Отправляется при событиях: SL, TP, ликвидация, события ботов, ошибки
	MessageTypeNotification MessageType = "notification"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// AccountUpdateMessage - сообщение со снимком счёта
type AccountUpdateMessage struct {
	BaseMessage
	Data *models.Account `json:"data"`
}

// PositionUpdateMessage - сообщение о состоянии позиции
type PositionUpdateMessage struct {
	BaseMessage
	UserID string           `json:"user_id"`
	Data   *models.Position `json:"data"`
}

// BotUpdateMessage - сообщение о состоянии бота
type BotUpdateMessage struct {
	BaseMessage
	UserID string      `json:"user_id"`
	Data   *models.Bot `json:"data"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *models.Notification `json:"data"`
}

// NewAccountUpdateMessage создает сообщение accountUpdate
func NewAccountUpdateMessage(acc *models.Account) *AccountUpdateMessage {
	return &AccountUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeAccountUpdate, Timestamp: time.Now()},
		Data:        acc,
	}
}

// NewPositionUpdateMessage создает сообщение positionUpdate
func NewPositionUpdateMessage(userID string, pos *models.Position) *PositionUpdateMessage {
	return &PositionUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypePositionUpdate, Timestamp: time.Now()},
		UserID:      userID,
		Data:        pos,
	}
}

// NewBotUpdateMessage создает сообщение botUpdate
func NewBotUpdateMessage(userID string, bot *models.Bot) *BotUpdateMessage {
	return &BotUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeBotUpdate, Timestamp: time.Now()},
		UserID:      userID,
		Data:        bot,
	}
}

// NewNotificationMessage создает сообщение notification
func NewNotificationMessage(n *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{Type: MessageTypeNotification, Timestamp: time.Now()},
		Data:        n,
	}
}
