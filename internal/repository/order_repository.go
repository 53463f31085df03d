package repository

import (
	"context"
	"database/sql"

	"tradecore/internal/models"
)

// OrderRepository - работа с таблицей bot_orders
//
// Ноги ботов неизменяемы: только вставка и чтение.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Insert добавляет запись о ноге бота
//
// ON CONFLICT DO NOTHING: id - ключ идемпотентности.
func (r *OrderRepository) Insert(ctx context.Context, order *models.BotOrder) error {
	query := `
		INSERT INTO bot_orders (
			id, bot_id, user_id, pair, side, role,
			quantity, price, total, fee, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.BotID,
		order.UserID,
		order.Pair,
		order.Side,
		order.Role,
		order.Quantity,
		order.Price,
		order.Total,
		order.Fee,
		order.CreatedAt,
	)
	return err
}

// ListByBot возвращает страницу ног бота, новые первыми
func (r *OrderRepository) ListByBot(ctx context.Context, botID string, limit, offset int) ([]*models.BotOrder, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, bot_id, user_id, pair, side, role,
		       quantity, price, total, fee, created_at
		FROM bot_orders
		WHERE bot_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, botID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.BotOrder
	for rows.Next() {
		order := &models.BotOrder{}
		err := rows.Scan(
			&order.ID,
			&order.BotID,
			&order.UserID,
			&order.Pair,
			&order.Side,
			&order.Role,
			&order.Quantity,
			&order.Price,
			&order.Total,
			&order.Fee,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
