package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradecore/internal/models"
)

// Ошибки репозитория ботов
var (
	ErrBotNotFound = errors.New("bot not found")
)

// BotRepository - работа с таблицами bots, dca_configs, grid_configs,
// grid_levels
type BotRepository struct {
	db *sql.DB
}

// NewBotRepository создает новый экземпляр репозитория
func NewBotRepository(db *sql.DB) *BotRepository {
	return &BotRepository{db: db}
}

// Upsert сохраняет бота вместе с конфигурацией его типа
//
// Бот и конфигурация пишутся в одной транзакции: частично
// сохранённый бот бесполезен при восстановлении.
func (r *BotRepository) Upsert(ctx context.Context, bot *models.Bot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bots (
			id, user_id, type, pair, status, invested_amount,
			current_value, total_pnl, total_trades, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			invested_amount = EXCLUDED.invested_amount,
			current_value = EXCLUDED.current_value,
			total_pnl = EXCLUDED.total_pnl,
			total_trades = EXCLUDED.total_trades,
			updated_at = EXCLUDED.updated_at`

	_, err = tx.ExecContext(ctx, query,
		bot.ID,
		bot.UserID,
		bot.Type,
		bot.Pair,
		bot.Status,
		bot.InvestedAmount,
		bot.CurrentValue,
		bot.TotalPnl,
		bot.TotalTrades,
		bot.CreatedAt,
		time.Now(),
	)
	if err != nil {
		return err
	}

	switch bot.Type {
	case models.BotTypeDCA:
		if bot.DCA == nil {
			return fmt.Errorf("dca bot %s has no config", bot.ID)
		}
		err = upsertDCAConfig(ctx, tx, bot.ID, bot.DCA)
	case models.BotTypeGrid:
		if bot.Grid == nil {
			return fmt.Errorf("grid bot %s has no config", bot.ID)
		}
		err = upsertGridConfig(ctx, tx, bot.ID, bot.Grid)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

func upsertDCAConfig(ctx context.Context, tx *sql.Tx, botID string, cfg *models.DCAConfig) error {
	query := `
		INSERT INTO dca_configs (
			bot_id, order_amount, frequency_seconds, take_profit_pct, stop_loss_pct,
			trailing_enabled, trailing_deviation,
			safety_enabled, safety_order_size, safety_max_count,
			safety_step_pct, safety_step_scale, safety_volume_scale,
			avg_price, total_base_bought, total_quote_spent,
			active_safety_count, peak_profit_pct, deal_count, last_buy_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (bot_id) DO UPDATE SET
			order_amount = EXCLUDED.order_amount,
			frequency_seconds = EXCLUDED.frequency_seconds,
			take_profit_pct = EXCLUDED.take_profit_pct,
			stop_loss_pct = EXCLUDED.stop_loss_pct,
			trailing_enabled = EXCLUDED.trailing_enabled,
			trailing_deviation = EXCLUDED.trailing_deviation,
			safety_enabled = EXCLUDED.safety_enabled,
			safety_order_size = EXCLUDED.safety_order_size,
			safety_max_count = EXCLUDED.safety_max_count,
			safety_step_pct = EXCLUDED.safety_step_pct,
			safety_step_scale = EXCLUDED.safety_step_scale,
			safety_volume_scale = EXCLUDED.safety_volume_scale,
			avg_price = EXCLUDED.avg_price,
			total_base_bought = EXCLUDED.total_base_bought,
			total_quote_spent = EXCLUDED.total_quote_spent,
			active_safety_count = EXCLUDED.active_safety_count,
			peak_profit_pct = EXCLUDED.peak_profit_pct,
			deal_count = EXCLUDED.deal_count,
			last_buy_at = EXCLUDED.last_buy_at`

	var lastBuyAt *time.Time
	if !cfg.LastBuyAt.IsZero() {
		t := cfg.LastBuyAt
		lastBuyAt = &t
	}

	_, err := tx.ExecContext(ctx, query,
		botID,
		cfg.OrderAmount,
		int64(cfg.Frequency.Seconds()),
		cfg.TakeProfitPct,
		cfg.StopLossPct,
		cfg.TrailingEnabled,
		cfg.TrailingDeviation,
		cfg.SafetyEnabled,
		cfg.SafetyOrderSize,
		cfg.SafetyMaxCount,
		cfg.SafetyStepPct,
		cfg.SafetyStepScale,
		cfg.SafetyVolumeScale,
		cfg.AvgPrice,
		cfg.TotalBaseBought,
		cfg.TotalQuoteSpent,
		cfg.ActiveSafetyCount,
		cfg.PeakProfitPct,
		cfg.DealCount,
		lastBuyAt,
	)
	return err
}

func upsertGridConfig(ctx context.Context, tx *sql.Tx, botID string, cfg *models.GridConfig) error {
	query := `
		INSERT INTO grid_configs (
			bot_id, upper_price, lower_price, grid_count, grid_type,
			total_investment, per_grid_amount, strategy, stop_upper, stop_lower,
			grid_profit, float_pnl, total_base_held, avg_buy_price, completed_cycles
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (bot_id) DO UPDATE SET
			upper_price = EXCLUDED.upper_price,
			lower_price = EXCLUDED.lower_price,
			grid_count = EXCLUDED.grid_count,
			grid_type = EXCLUDED.grid_type,
			total_investment = EXCLUDED.total_investment,
			per_grid_amount = EXCLUDED.per_grid_amount,
			strategy = EXCLUDED.strategy,
			stop_upper = EXCLUDED.stop_upper,
			stop_lower = EXCLUDED.stop_lower,
			grid_profit = EXCLUDED.grid_profit,
			float_pnl = EXCLUDED.float_pnl,
			total_base_held = EXCLUDED.total_base_held,
			avg_buy_price = EXCLUDED.avg_buy_price,
			completed_cycles = EXCLUDED.completed_cycles`

	_, err := tx.ExecContext(ctx, query,
		botID,
		cfg.UpperPrice,
		cfg.LowerPrice,
		cfg.GridCount,
		cfg.GridType,
		cfg.TotalInvestment,
		cfg.PerGridAmount,
		cfg.Strategy,
		cfg.StopUpper,
		cfg.StopLower,
		cfg.GridProfit,
		cfg.FloatPnl,
		cfg.TotalBaseHeld,
		cfg.AvgBuyPrice,
		cfg.CompletedCycles,
	)
	return err
}

// UpsertGridLevels перезаписывает уровни сетки бота одной транзакцией
func (r *BotRepository) UpsertGridLevels(ctx context.Context, botID string, levels []models.GridLevel) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM grid_levels WHERE bot_id = $1`, botID); err != nil {
		return err
	}

	query := `
		INSERT INTO grid_levels (
			bot_id, level_index, price, buy_filled, sell_filled,
			buy_order_id, sell_order_id, quantity
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, level := range levels {
		_, err := tx.ExecContext(ctx, query,
			botID,
			level.LevelIndex,
			level.Price,
			level.BuyFilled,
			level.SellFilled,
			level.BuyOrderID,
			level.SellOrderID,
			level.Quantity,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetGridLevels возвращает уровни сетки бота по возрастанию цены
func (r *BotRepository) GetGridLevels(ctx context.Context, botID string) ([]models.GridLevel, error) {
	query := `
		SELECT bot_id, level_index, price, buy_filled, sell_filled,
		       buy_order_id, sell_order_id, quantity
		FROM grid_levels
		WHERE bot_id = $1
		ORDER BY level_index`

	rows, err := r.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []models.GridLevel
	for rows.Next() {
		var level models.GridLevel
		err := rows.Scan(
			&level.BotID,
			&level.LevelIndex,
			&level.Price,
			&level.BuyFilled,
			&level.SellFilled,
			&level.BuyOrderID,
			&level.SellOrderID,
			&level.Quantity,
		)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return levels, nil
}

// GetByID возвращает бота с конфигурацией его типа
func (r *BotRepository) GetByID(ctx context.Context, botID string) (*models.Bot, error) {
	query := selectBots + ` WHERE id = $1`

	bot := &models.Bot{}
	err := r.db.QueryRowContext(ctx, query, botID).Scan(
		&bot.ID,
		&bot.UserID,
		&bot.Type,
		&bot.Pair,
		&bot.Status,
		&bot.InvestedAmount,
		&bot.CurrentValue,
		&bot.TotalPnl,
		&bot.TotalTrades,
		&bot.CreatedAt,
		&bot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}

	if err := r.loadConfig(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

// ListByUser возвращает ботов пользователя с конфигурациями
func (r *BotRepository) ListByUser(ctx context.Context, userID string) ([]*models.Bot, error) {
	query := selectBots + ` WHERE user_id = $1 ORDER BY created_at`
	return r.list(ctx, query, userID)
}

// ListAll возвращает всех ботов (восстановление при старте)
func (r *BotRepository) ListAll(ctx context.Context) ([]*models.Bot, error) {
	query := selectBots + ` ORDER BY created_at`
	return r.list(ctx, query)
}

const selectBots = `
	SELECT id, user_id, type, pair, status, invested_amount,
	       current_value, total_pnl, total_trades, created_at, updated_at
	FROM bots`

func (r *BotRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Bot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []*models.Bot
	for rows.Next() {
		bot := &models.Bot{}
		err := rows.Scan(
			&bot.ID,
			&bot.UserID,
			&bot.Type,
			&bot.Pair,
			&bot.Status,
			&bot.InvestedAmount,
			&bot.CurrentValue,
			&bot.TotalPnl,
			&bot.TotalTrades,
			&bot.CreatedAt,
			&bot.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for _, bot := range bots {
		if err := r.loadConfig(ctx, bot); err != nil {
			return nil, err
		}
	}
	return bots, nil
}

// loadConfig подгружает конфигурацию типа бота
func (r *BotRepository) loadConfig(ctx context.Context, bot *models.Bot) error {
	switch bot.Type {
	case models.BotTypeDCA:
		cfg, err := r.getDCAConfig(ctx, bot.ID)
		if err != nil {
			return err
		}
		bot.DCA = cfg
	case models.BotTypeGrid:
		cfg, err := r.getGridConfig(ctx, bot.ID)
		if err != nil {
			return err
		}
		bot.Grid = cfg
	}
	return nil
}

func (r *BotRepository) getDCAConfig(ctx context.Context, botID string) (*models.DCAConfig, error) {
	query := `
		SELECT bot_id, order_amount, frequency_seconds, take_profit_pct, stop_loss_pct,
		       trailing_enabled, trailing_deviation,
		       safety_enabled, safety_order_size, safety_max_count,
		       safety_step_pct, safety_step_scale, safety_volume_scale,
		       avg_price, total_base_bought, total_quote_spent,
		       active_safety_count, peak_profit_pct, deal_count, last_buy_at
		FROM dca_configs
		WHERE bot_id = $1`

	cfg := &models.DCAConfig{}
	var freqSeconds int64
	var lastBuyAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, botID).Scan(
		&cfg.BotID,
		&cfg.OrderAmount,
		&freqSeconds,
		&cfg.TakeProfitPct,
		&cfg.StopLossPct,
		&cfg.TrailingEnabled,
		&cfg.TrailingDeviation,
		&cfg.SafetyEnabled,
		&cfg.SafetyOrderSize,
		&cfg.SafetyMaxCount,
		&cfg.SafetyStepPct,
		&cfg.SafetyStepScale,
		&cfg.SafetyVolumeScale,
		&cfg.AvgPrice,
		&cfg.TotalBaseBought,
		&cfg.TotalQuoteSpent,
		&cfg.ActiveSafetyCount,
		&cfg.PeakProfitPct,
		&cfg.DealCount,
		&lastBuyAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dca config for bot %s: %w", botID, ErrBotNotFound)
		}
		return nil, err
	}

	cfg.Frequency = time.Duration(freqSeconds) * time.Second
	if lastBuyAt.Valid {
		cfg.LastBuyAt = lastBuyAt.Time
	}
	return cfg, nil
}

func (r *BotRepository) getGridConfig(ctx context.Context, botID string) (*models.GridConfig, error) {
	query := `
		SELECT bot_id, upper_price, lower_price, grid_count, grid_type,
		       total_investment, per_grid_amount, strategy, stop_upper, stop_lower,
		       grid_profit, float_pnl, total_base_held, avg_buy_price, completed_cycles
		FROM grid_configs
		WHERE bot_id = $1`

	cfg := &models.GridConfig{}
	err := r.db.QueryRowContext(ctx, query, botID).Scan(
		&cfg.BotID,
		&cfg.UpperPrice,
		&cfg.LowerPrice,
		&cfg.GridCount,
		&cfg.GridType,
		&cfg.TotalInvestment,
		&cfg.PerGridAmount,
		&cfg.Strategy,
		&cfg.StopUpper,
		&cfg.StopLower,
		&cfg.GridProfit,
		&cfg.FloatPnl,
		&cfg.TotalBaseHeld,
		&cfg.AvgBuyPrice,
		&cfg.CompletedCycles,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("grid config for bot %s: %w", botID, ErrBotNotFound)
		}
		return nil, err
	}
	return cfg, nil
}

// Delete удаляет бота и всё связанное с ним одной транзакцией
func (r *BotRepository) Delete(ctx context.Context, botID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM grid_levels WHERE bot_id = $1`,
		`DELETE FROM grid_configs WHERE bot_id = $1`,
		`DELETE FROM dca_configs WHERE bot_id = $1`,
		`DELETE FROM bot_orders WHERE bot_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, botID); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM bots WHERE id = $1`, botID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBotNotFound
	}

	return tx.Commit()
}
