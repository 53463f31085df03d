package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tradecore/internal/models"
)

// Ошибки репозитория счетов
var (
	ErrAccountNotFound = errors.New("account not found")
)

// AccountRepository - работа с таблицей accounts
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository создает новый экземпляр репозитория
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Upsert сохраняет снимок счёта
//
// Идемпотентен: повторная запись того же снимка безопасна.
func (r *AccountRepository) Upsert(ctx context.Context, acc *models.Account) error {
	query := `
		INSERT INTO accounts (
			user_id, balance, equity, margin_used, free_margin,
			unrealized_pnl, total_deposited, total_withdrawn, total_pnl,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			equity = EXCLUDED.equity,
			margin_used = EXCLUDED.margin_used,
			free_margin = EXCLUDED.free_margin,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			total_deposited = EXCLUDED.total_deposited,
			total_withdrawn = EXCLUDED.total_withdrawn,
			total_pnl = EXCLUDED.total_pnl,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		acc.UserID,
		acc.Balance,
		acc.Equity,
		acc.MarginUsed,
		acc.FreeMargin,
		acc.UnrealizedPnl,
		acc.TotalDeposited,
		acc.TotalWithdrawn,
		acc.TotalPnl,
		acc.CreatedAt,
		time.Now(),
	)
	return err
}

// GetByUserID возвращает счёт пользователя
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	query := `
		SELECT user_id, balance, equity, margin_used, free_margin,
		       unrealized_pnl, total_deposited, total_withdrawn, total_pnl,
		       created_at, updated_at
		FROM accounts
		WHERE user_id = $1`

	acc := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&acc.UserID,
		&acc.Balance,
		&acc.Equity,
		&acc.MarginUsed,
		&acc.FreeMargin,
		&acc.UnrealizedPnl,
		&acc.TotalDeposited,
		&acc.TotalWithdrawn,
		&acc.TotalPnl,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return acc, nil
}

// GetAll возвращает все счета (восстановление при старте)
func (r *AccountRepository) GetAll(ctx context.Context) ([]*models.Account, error) {
	query := `
		SELECT user_id, balance, equity, margin_used, free_margin,
		       unrealized_pnl, total_deposited, total_withdrawn, total_pnl,
		       created_at, updated_at
		FROM accounts
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc := &models.Account{}
		err := rows.Scan(
			&acc.UserID,
			&acc.Balance,
			&acc.Equity,
			&acc.MarginUsed,
			&acc.FreeMargin,
			&acc.UnrealizedPnl,
			&acc.TotalDeposited,
			&acc.TotalWithdrawn,
			&acc.TotalPnl,
			&acc.CreatedAt,
			&acc.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}
