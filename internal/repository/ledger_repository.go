package repository

import (
	"context"
	"database/sql"

	"tradecore/internal/models"
)

// LedgerRepository - работа с таблицей ledger_entries
//
// Записи леджера неизменяемы: только вставка и чтение.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository создает новый экземпляр репозитория
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Insert добавляет запись леджера
//
// ON CONFLICT DO NOTHING: id - ключ идемпотентности, повторная
// доставка из очереди записи не создаёт дубликатов.
func (r *LedgerRepository) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (
			id, user_id, type, amount, balance_before, balance_after,
			reference_id, actor, reason, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Type,
		entry.Amount,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.ReferenceID,
		entry.Actor,
		entry.Reason,
		entry.CreatedAt,
	)
	return err
}

// ListByUser возвращает страницу записей пользователя, новые первыми
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, user_id, type, amount, balance_before, balance_after,
		       reference_id, actor, reason, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry := &models.LedgerEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Type,
			&entry.Amount,
			&entry.BalanceBefore,
			&entry.BalanceAfter,
			&entry.ReferenceID,
			&entry.Actor,
			&entry.Reason,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// SumByUser возвращает сумму всех записей пользователя
//
// Сверка: сумма должна равняться балансу счёта.
func (r *LedgerRepository) SumByUser(ctx context.Context, userID string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id = $1`

	var sum float64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}
