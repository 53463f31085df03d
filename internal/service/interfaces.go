package service

import (
	"context"

	"tradecore/internal/models"
)

// LedgerReaderInterface определяет чтение истории леджера
type LedgerReaderInterface interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.LedgerEntry, error)
	SumByUser(ctx context.Context, userID string) (float64, error)
}

// TradeHistoryInterface определяет чтение истории закрытых сделок
type TradeHistoryInterface interface {
	ListClosedByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ClosedTrade, error)
}

// BotRepositoryInterface определяет хранилище ботов
type BotRepositoryInterface interface {
	Upsert(ctx context.Context, bot *models.Bot) error
	GetByID(ctx context.Context, botID string) (*models.Bot, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Bot, error)
	ListAll(ctx context.Context) ([]*models.Bot, error)
	Delete(ctx context.Context, botID string) error
	GetGridLevels(ctx context.Context, botID string) ([]models.GridLevel, error)
}

// OrderReaderInterface определяет чтение истории ног ботов
type OrderReaderInterface interface {
	ListByBot(ctx context.Context, botID string, limit, offset int) ([]*models.BotOrder, error)
}

// ActivityRepositoryInterface определяет аудит действий администратора
type ActivityRepositoryInterface interface {
	Insert(ctx context.Context, entry *models.ActivityLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error)
}

// BotSchedulerInterface определяет планировщик ботов
type BotSchedulerInterface interface {
	StartBot(b *models.Bot) error
	PauseBot(botID string) error
	StopBot(botID string) error
	Forget(botID string) error
	GetBot(botID string) (models.Bot, bool)
	GetGridLevels(botID string) ([]models.GridLevel, bool)
}

// ============================================================
// Интерфейсы сервисов для HTTP handlers
// ============================================================

// AccountServiceInterface определяет операции со счетами для API
type AccountServiceInterface interface {
	GetAccount(userID string) (models.Account, error)
	CreateAccount(userID string) (models.Account, error)
	Deposit(userID string, amount float64) (*models.LedgerEntry, error)
	Withdraw(userID string, amount float64) (*models.LedgerEntry, error)
	GetLedgerHistory(ctx context.Context, userID string, limit, offset int) ([]*models.LedgerEntry, error)
	AdminCredit(ctx context.Context, adminID, userID string, amount float64, reason string) (*models.LedgerEntry, error)
	AdminDebit(ctx context.Context, adminID, userID string, amount float64, reason string) (*models.LedgerEntry, error)
	GetActivityLog(ctx context.Context, limit int) ([]*models.ActivityLog, error)
	Reconcile(ctx context.Context, userID string) (balance, ledgerSum float64, err error)
}

// TradeServiceInterface определяет торговые операции для API
type TradeServiceInterface interface {
	OpenPosition(ctx context.Context, req OpenPositionRequest) (*models.Position, error)
	ClosePosition(ctx context.Context, userID, positionID string) (*models.ClosedTrade, error)
	ForceClosePosition(ctx context.Context, adminID, userID, positionID, reason string) (*models.ClosedTrade, error)
	UpdateSLTP(userID, positionID string, stopLoss, takeProfit *float64) (*models.Position, error)
	GetOpenPositions(userID string) ([]models.Position, error)
	GetTradeHistory(ctx context.Context, userID string, limit, offset int) ([]*models.ClosedTrade, error)
}

// BotServiceInterface определяет управление ботами для API
type BotServiceInterface interface {
	CreateBot(ctx context.Context, req CreateBotRequest) (*models.Bot, error)
	GetBot(ctx context.Context, userID, botID string) (*models.Bot, error)
	ListBots(ctx context.Context, userID string) ([]*models.Bot, error)
	StartBot(ctx context.Context, userID, botID string) (*models.Bot, error)
	PauseBot(ctx context.Context, userID, botID string) (*models.Bot, error)
	StopBot(ctx context.Context, userID, botID string) (*models.Bot, error)
	DeleteBot(ctx context.Context, userID, botID string) error
	GetBotOrders(ctx context.Context, userID, botID string, limit, offset int) ([]*models.BotOrder, error)
	GetGridLevels(ctx context.Context, userID, botID string) ([]models.GridLevel, error)
}
