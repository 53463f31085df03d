package repository

import (
	"context"
	"database/sql"
	"errors"

	"tradecore/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRepository - работа с таблицами positions и closed_trades
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Upsert сохраняет снимок открытой позиции
func (r *PositionRepository) Upsert(ctx context.Context, pos *models.Position) error {
	query := `
		INSERT INTO positions (
			id, user_id, symbol, side, entry_price, current_price,
			quantity, leverage, margin_used, stop_loss, take_profit,
			unrealized_pnl, unrealized_pnl_percent, source, market_type, opened_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			current_price = EXCLUDED.current_price,
			stop_loss = EXCLUDED.stop_loss,
			take_profit = EXCLUDED.take_profit,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			unrealized_pnl_percent = EXCLUDED.unrealized_pnl_percent`

	_, err := r.db.ExecContext(ctx, query,
		pos.ID,
		pos.UserID,
		pos.Symbol,
		pos.Side,
		pos.EntryPrice,
		pos.CurrentPrice,
		pos.Quantity,
		pos.Leverage,
		pos.MarginUsed,
		pos.StopLoss,
		pos.TakeProfit,
		pos.UnrealizedPnl,
		pos.UnrealizedPct,
		pos.Source,
		pos.MarketType,
		pos.OpenedAt,
	)
	return err
}

// Delete удаляет закрытую позицию
//
// Отсутствие строки не является ошибкой: запись могла не успеть
// попасть в БД до закрытия.
func (r *PositionRepository) Delete(ctx context.Context, positionID string) error {
	query := `DELETE FROM positions WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, positionID)
	return err
}

// GetOpenByUser возвращает открытые позиции пользователя
func (r *PositionRepository) GetOpenByUser(ctx context.Context, userID string) ([]*models.Position, error) {
	query := selectPositions + ` WHERE user_id = $1 ORDER BY opened_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetAllOpen возвращает все открытые позиции (восстановление при старте)
func (r *PositionRepository) GetAllOpen(ctx context.Context) ([]*models.Position, error) {
	query := selectPositions + ` ORDER BY user_id, opened_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

const selectPositions = `
	SELECT id, user_id, symbol, side, entry_price, current_price,
	       quantity, leverage, margin_used, stop_loss, take_profit,
	       unrealized_pnl, unrealized_pnl_percent, source, market_type, opened_at
	FROM positions`

func scanPositions(rows *sql.Rows) ([]*models.Position, error) {
	var positions []*models.Position
	for rows.Next() {
		pos := &models.Position{}
		err := rows.Scan(
			&pos.ID,
			&pos.UserID,
			&pos.Symbol,
			&pos.Side,
			&pos.EntryPrice,
			&pos.CurrentPrice,
			&pos.Quantity,
			&pos.Leverage,
			&pos.MarginUsed,
			&pos.StopLoss,
			&pos.TakeProfit,
			&pos.UnrealizedPnl,
			&pos.UnrealizedPct,
			&pos.Source,
			&pos.MarketType,
			&pos.OpenedAt,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return positions, nil
}

// InsertClosedTrade добавляет запись о закрытой сделке
//
// ON CONFLICT DO NOTHING: id - ключ идемпотентности.
func (r *PositionRepository) InsertClosedTrade(ctx context.Context, trade *models.ClosedTrade) error {
	query := `
		INSERT INTO closed_trades (
			id, position_id, user_id, symbol, side, entry_price, exit_price,
			quantity, leverage, margin_used, realized_pnl, fee,
			close_reason, source, opened_at, closed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID,
		trade.PositionID,
		trade.UserID,
		trade.Symbol,
		trade.Side,
		trade.EntryPrice,
		trade.ExitPrice,
		trade.Quantity,
		trade.Leverage,
		trade.MarginUsed,
		trade.RealizedPnl,
		trade.Fee,
		trade.CloseReason,
		trade.Source,
		trade.OpenedAt,
		trade.ClosedAt,
	)
	return err
}

// ListClosedByUser возвращает страницу закрытых сделок, новые первыми
func (r *PositionRepository) ListClosedByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ClosedTrade, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, position_id, user_id, symbol, side, entry_price, exit_price,
		       quantity, leverage, margin_used, realized_pnl, fee,
		       close_reason, source, opened_at, closed_at
		FROM closed_trades
		WHERE user_id = $1
		ORDER BY closed_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.ClosedTrade
	for rows.Next() {
		trade := &models.ClosedTrade{}
		err := rows.Scan(
			&trade.ID,
			&trade.PositionID,
			&trade.UserID,
			&trade.Symbol,
			&trade.Side,
			&trade.EntryPrice,
			&trade.ExitPrice,
			&trade.Quantity,
			&trade.Leverage,
			&trade.MarginUsed,
			&trade.RealizedPnl,
			&trade.Fee,
			&trade.CloseReason,
			&trade.Source,
			&trade.OpenedAt,
			&trade.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
