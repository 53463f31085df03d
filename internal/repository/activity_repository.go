package repository

import (
	"context"
	"database/sql"
	"time"

	"tradecore/internal/models"
)

// ActivityRepository - работа с таблицей activity_log (аудит администратора)
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository создает новый экземпляр репозитория
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert добавляет запись аудита
func (r *ActivityRepository) Insert(ctx context.Context, entry *models.ActivityLog) error {
	query := `
		INSERT INTO activity_log (actor, action, target_user, prev_value, new_value, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	return r.db.QueryRowContext(ctx, query,
		entry.Actor,
		entry.Action,
		entry.TargetUser,
		entry.PrevValue,
		entry.NewValue,
		entry.Reason,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

// ListRecent возвращает последние записи аудита
func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, actor, action, target_user, prev_value, new_value, reason, created_at
		FROM activity_log
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ActivityLog
	for rows.Next() {
		entry := &models.ActivityLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.Actor,
			&entry.Action,
			&entry.TargetUser,
			&entry.PrevValue,
			&entry.NewValue,
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
