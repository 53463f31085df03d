package bot

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"tradecore/internal/engine"
	"tradecore/internal/models"
	"tradecore/internal/outbox"
	"tradecore/pkg/utils"
)

// ============================================================
// Grid стратегия
// ============================================================
//
// Сетка из gridCount интервалов (count+1 уровней) между lower и upper.
// Цена ниже уровня - покупка на уровне; цена выше следующего уровня
// при заполненной покупке - продажа на следующем уровне. Каждый цикл
// buy→sell фиксирует прибыль одного интервала за вычетом комиссий
// обеих ног.

// generateGridLevels строит уровни сетки
//
// arithmetic: равный шаг цены; geometric: равное отношение соседних
// уровней. Уровни идут по возрастанию цены, index 0 = lower.
func generateGridLevels(botID string, cfg *models.GridConfig) []models.GridLevel {
	n := cfg.GridCount + 1
	levels := make([]models.GridLevel, n)

	switch cfg.GridType {
	case models.GridTypeGeometric:
		ratio := math.Pow(cfg.UpperPrice/cfg.LowerPrice, 1/float64(cfg.GridCount))
		price := cfg.LowerPrice
		for i := 0; i < n; i++ {
			levels[i] = models.GridLevel{BotID: botID, LevelIndex: i, Price: price}
			price *= ratio
		}
	default:
		step := (cfg.UpperPrice - cfg.LowerPrice) / float64(cfg.GridCount)
		for i := 0; i < n; i++ {
			levels[i] = models.GridLevel{
				BotID:      botID,
				LevelIndex: i,
				Price:      cfg.LowerPrice + step*float64(i),
			}
		}
	}
	return levels
}

// gridLevelsSnapshot копирует уровни для постановки в очередь записи
func gridLevelsSnapshot(botID string, levels []models.GridLevel) []models.GridLevel {
	out := make([]models.GridLevel, len(levels))
	copy(out, levels)
	for i := range out {
		out[i].BotID = botID
	}
	return out
}

// gridTick - один проход grid стратегии
func (m *Manager) gridTick(task *botTask, price float64) (bool, error) {
	task.mu.Lock()
	defer task.mu.Unlock()

	b := task.bot
	cfg := b.Grid
	if cfg == nil {
		return false, fmt.Errorf("%w: grid config is missing", ErrInvalidBotConfig)
	}

	// Выход за стоп-границы останавливает бота; останов идёт из
	// отдельной горутины, т.к. halt дожидается завершения этого тика
	if (cfg.StopUpper > 0 && price > cfg.StopUpper) ||
		(cfg.StopLower > 0 && price < cfg.StopLower) {
		m.log.Warn("grid stop boundary crossed",
			utils.BotID(b.ID), utils.Price(price))
		botID := b.ID
		userID := b.UserID
		m.notify(&models.Notification{
			Timestamp: time.Now(),
			Type:      models.NotificationTypeBot,
			Severity:  models.SeverityWarn,
			UserID:    userID,
			BotID:     &botID,
			Message:   fmt.Sprintf("Grid бот %s остановлен: цена %.4f вышла за стоп-границы", b.Pair, price),
		})
		go func() {
			if err := m.StopBot(botID); err != nil {
				m.log.Error("grid stop failed", utils.BotID(botID), utils.Err(err))
			}
		}()
		return false, nil
	}

	perGrid := cfg.PerGridAmount
	if perGrid <= 0 {
		perGrid = cfg.TotalInvestment / float64(cfg.GridCount)
	}

	changed := false
	levelsChanged := false

	for i := range task.levels {
		level := &task.levels[i]

		// Покупка: цена опустилась до уровня
		// Верхний уровень не покупает - ему не на чем продавать
		if !level.BuyFilled && price <= level.Price && i+1 < len(task.levels) {
			filled, err := m.gridBuy(b, level, perGrid)
			if err != nil {
				return changed, err
			}
			if filled {
				changed = true
				levelsChanged = true
			}
			continue
		}

		// Продажа: купленный уровень, цена дошла до следующего
		if level.BuyFilled && !level.SellFilled && i+1 < len(task.levels) {
			next := task.levels[i+1]
			if price >= next.Price {
				if err := m.gridSell(b, level, next.Price); err != nil {
					return changed, err
				}
				changed = true
				levelsChanged = true
			}
		}
	}

	// Пересчет плавающего PNL по удерживаемой базе
	held, avgBuy := gridHoldings(task.levels)
	cfg.TotalBaseHeld = held
	if avgBuy > 0 {
		cfg.AvgBuyPrice = avgBuy
		cfg.FloatPnl = (price - avgBuy) * held
	} else {
		cfg.AvgBuyPrice = 0
		cfg.FloatPnl = 0
	}
	b.TotalPnl = cfg.GridProfit + cfg.FloatPnl
	b.CurrentValue = held * price

	if levelsChanged {
		m.enqueue(outbox.KindGridLevels, b.ID, gridLevelsSnapshot(b.ID, task.levels))
	}

	return true, nil
}

// gridBuy заполняет buy уровня: лимитная семантика, исполнение по
// цене уровня, списание стоимости + комиссии. Нехватка средств -
// пропуск без ошибки.
func (m *Manager) gridBuy(b *models.Bot, level *models.GridLevel, amount float64) (bool, error) {
	orderID := uuid.NewString()
	fee := amount * m.cfg.FeeRate

	_, err := m.eng.Debit(b.UserID, amount+fee, models.LedgerTypeBotBuy,
		orderID, "bot:"+b.ID, fmt.Sprintf("grid buy %s level %d", b.Pair, level.LevelIndex))
	if err != nil {
		if errors.Is(err, engine.ErrInsufficientFunds) {
			m.log.Warn("grid buy skipped: insufficient funds",
				utils.BotID(b.ID), utils.Int("level", level.LevelIndex))
			return false, nil
		}
		return false, err
	}

	qty := amount / level.Price
	level.BuyFilled = true
	level.SellFilled = false
	level.BuyOrderID = orderID
	level.Quantity = qty
	b.TotalTrades++

	m.recordOrder(models.BotOrder{
		ID:        orderID,
		BotID:     b.ID,
		UserID:    b.UserID,
		Pair:      b.Pair,
		Side:      models.OrderSideBuy,
		Role:      models.OrderRoleGridBuy,
		Quantity:  qty,
		Price:     level.Price,
		Total:     amount,
		Fee:       fee,
		CreatedAt: time.Now(),
	})

	m.log.Info("grid buy executed",
		utils.BotID(b.ID),
		utils.Int("level", level.LevelIndex),
		utils.Price(level.Price),
		utils.Quantity(qty))
	return true, nil
}

// gridSell закрывает цикл уровня: продажа по цене следующего уровня
//
// Из выручки удерживается только комиссия продажи; комиссия покупки
// уже списана при заполнении уровня. Прибыль цикла - за вычетом обеих.
func (m *Manager) gridSell(b *models.Bot, level *models.GridLevel, sellPrice float64) error {
	cfg := b.Grid
	orderID := uuid.NewString()

	cost := level.Quantity * level.Price
	gross := level.Quantity * sellPrice
	buyFee := cost * m.cfg.FeeRate
	sellFee := gross * m.cfg.FeeRate
	proceeds := gross - sellFee
	profit := proceeds - cost - buyFee

	_, err := m.eng.Credit(b.UserID, proceeds, models.LedgerTypeBotSell,
		orderID, "bot:"+b.ID, fmt.Sprintf("grid sell %s level %d", b.Pair, level.LevelIndex))
	if err != nil {
		return err
	}

	m.recordOrder(models.BotOrder{
		ID:        orderID,
		BotID:     b.ID,
		UserID:    b.UserID,
		Pair:      b.Pair,
		Side:      models.OrderSideSell,
		Role:      models.OrderRoleGridSell,
		Quantity:  level.Quantity,
		Price:     sellPrice,
		Total:     gross,
		Fee:       sellFee,
		CreatedAt: time.Now(),
	})

	cfg.GridProfit += profit
	cfg.CompletedCycles++
	b.TotalTrades++

	// Цикл закрыт; следующая покупка на уровне снимет sell_filled
	level.BuyFilled = false
	level.SellFilled = true
	level.BuyOrderID = ""
	level.SellOrderID = orderID
	level.Quantity = 0

	GridCyclesCompleted.Inc()

	m.log.Info("grid cycle completed",
		utils.BotID(b.ID),
		utils.Int("level", level.LevelIndex),
		utils.Price(sellPrice),
		utils.PNL(profit),
		utils.Int("cycles", cfg.CompletedCycles))
	return nil
}

// gridHoldings считает удерживаемую базу и среднюю цену покупки
// по незакрытым buy уровням
func gridHoldings(levels []models.GridLevel) (held, avgBuy float64) {
	var spent float64
	for _, level := range levels {
		if level.BuyFilled && !level.SellFilled {
			held += level.Quantity
			spent += level.Quantity * level.Price
		}
	}
	if held > 0 {
		avgBuy = spent / held
	}
	return held, avgBuy
}
