package repository

import (
	"context"
	"database/sql"

	"tradecore/internal/models"
)

// PostgresStore собирает репозитории в единую точку записи
//
// Реализует интерфейс хранилища очереди записи (internal/outbox.Store):
// воркер очереди - единственный писатель БД на горячем пути.
type PostgresStore struct {
	Accounts   *AccountRepository
	Ledger     *LedgerRepository
	Positions  *PositionRepository
	Bots       *BotRepository
	Orders     *OrderRepository
	Activities *ActivityRepository
}

// NewPostgresStore создает хранилище поверх подключения к БД
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		Accounts:   NewAccountRepository(db),
		Ledger:     NewLedgerRepository(db),
		Positions:  NewPositionRepository(db),
		Bots:       NewBotRepository(db),
		Orders:     NewOrderRepository(db),
		Activities: NewActivityRepository(db),
	}
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, acc *models.Account) error {
	return s.Accounts.Upsert(ctx, acc)
}

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return s.Ledger.Insert(ctx, entry)
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, pos *models.Position) error {
	return s.Positions.Upsert(ctx, pos)
}

func (s *PostgresStore) DeletePosition(ctx context.Context, positionID string) error {
	return s.Positions.Delete(ctx, positionID)
}

func (s *PostgresStore) InsertClosedTrade(ctx context.Context, trade *models.ClosedTrade) error {
	return s.Positions.InsertClosedTrade(ctx, trade)
}

func (s *PostgresStore) UpsertBot(ctx context.Context, bot *models.Bot) error {
	return s.Bots.Upsert(ctx, bot)
}

func (s *PostgresStore) UpsertGridLevels(ctx context.Context, botID string, levels []models.GridLevel) error {
	return s.Bots.UpsertGridLevels(ctx, botID, levels)
}

func (s *PostgresStore) InsertBotOrder(ctx context.Context, order *models.BotOrder) error {
	return s.Orders.Insert(ctx, order)
}

func (s *PostgresStore) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	return s.Activities.Insert(ctx, entry)
}
