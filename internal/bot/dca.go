package bot

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"tradecore/internal/engine"
	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// ============================================================
// DCA стратегия
// ============================================================
//
// Сделка (deal) - цикл от первой покупки до полной продажи по TP/SL.
// Внутри сделки: регулярные покупки по расписанию, safety orders на
// просадках (усреднение), trailing take-profit. Средства списываются
// и зачисляются через торговое ядро (bot_buy / bot_sell); каждая нога
// несёт собственную комиссию: покупка списывает стоимость + комиссию,
// продажа зачисляет выручку за вычетом своей комиссии.

// dcaTick - один проход DCA стратегии
//
// Порядок ног: take-profit (trailing или обычный) → stop-loss →
// safety order → регулярная покупка. Выход из сделки завершает тик.
func (m *Manager) dcaTick(task *botTask, price float64) (bool, error) {
	task.mu.Lock()
	defer task.mu.Unlock()

	b := task.bot
	cfg := b.DCA
	if cfg == nil {
		return false, fmt.Errorf("%w: dca config is missing", ErrInvalidBotConfig)
	}

	changed := false

	if cfg.TotalBaseBought > 0 {
		b.CurrentValue = cfg.TotalBaseBought * price
		changed = true

		profitPct := (price - cfg.AvgPrice) / cfg.AvgPrice * 100

		// Take-profit: trailing фиксирует пик и продаёт на откате,
		// обычный - сразу по достижении цели
		if cfg.TrailingEnabled {
			if profitPct > cfg.PeakProfitPct {
				cfg.PeakProfitPct = profitPct
			}
			if cfg.PeakProfitPct >= cfg.TakeProfitPct &&
				cfg.PeakProfitPct-profitPct >= cfg.TrailingDeviation {
				return true, m.dcaExit(b, price, models.OrderRoleTakeProfit)
			}
		} else if profitPct >= cfg.TakeProfitPct {
			return true, m.dcaExit(b, price, models.OrderRoleTakeProfit)
		}

		// Stop-loss
		if cfg.StopLossPct != nil && profitPct <= -*cfg.StopLossPct {
			return true, m.dcaExit(b, price, models.OrderRoleStopLoss)
		}

		// Safety order: докупка на просадке от средней цены
		if cfg.SafetyEnabled && cfg.ActiveSafetyCount < cfg.SafetyMaxCount {
			stepPct := cfg.SafetyStepPct * math.Pow(cfg.SafetyStepScale, float64(cfg.ActiveSafetyCount))
			trigger := cfg.AvgPrice * (1 - stepPct/100)
			if price <= trigger {
				amount := cfg.SafetyOrderSize * math.Pow(cfg.SafetyVolumeScale, float64(cfg.ActiveSafetyCount))
				bought, err := m.dcaBuy(b, price, amount, models.OrderRoleSafety)
				if err != nil {
					return changed, err
				}
				if bought {
					cfg.ActiveSafetyCount++
					changed = true
				}
			}
		}
	}

	// Регулярная покупка по расписанию; допуск 5% съедает дрожание
	// таймера, чтобы покупка не уезжала на следующий интервал
	due := cfg.LastBuyAt.IsZero() ||
		time.Since(cfg.LastBuyAt) >= time.Duration(float64(cfg.Frequency)*0.95)
	if due {
		bought, err := m.dcaBuy(b, price, cfg.OrderAmount, models.OrderRoleBase)
		if err != nil {
			return changed, err
		}
		if bought {
			cfg.LastBuyAt = time.Now()
			changed = true
		}
	}

	return changed, nil
}

// dcaBuy исполняет покупку: списывает стоимость + комиссию,
// наращивает позицию
//
// Нехватка средств не является ошибкой тика - нога пропускается.
func (m *Manager) dcaBuy(b *models.Bot, price, amount float64, role string) (bool, error) {
	cfg := b.DCA
	orderID := uuid.NewString()
	fee := amount * m.cfg.FeeRate

	_, err := m.eng.Debit(b.UserID, amount+fee, models.LedgerTypeBotBuy,
		orderID, "bot:"+b.ID, fmt.Sprintf("dca %s buy %s", role, b.Pair))
	if err != nil {
		if errors.Is(err, engine.ErrInsufficientFunds) {
			m.log.Warn("dca buy skipped: insufficient funds",
				utils.BotID(b.ID), utils.Reason(role), utils.Amount(amount))
			return false, nil
		}
		return false, err
	}

	qty := amount / price
	cfg.TotalBaseBought += qty
	cfg.TotalQuoteSpent += amount
	cfg.AvgPrice = cfg.TotalQuoteSpent / cfg.TotalBaseBought
	b.InvestedAmount = cfg.TotalQuoteSpent
	b.TotalTrades++

	m.recordOrder(models.BotOrder{
		ID:        orderID,
		BotID:     b.ID,
		UserID:    b.UserID,
		Pair:      b.Pair,
		Side:      models.OrderSideBuy,
		Role:      role,
		Quantity:  qty,
		Price:     price,
		Total:     amount,
		Fee:       fee,
		CreatedAt: time.Now(),
	})

	m.log.Info("dca buy executed",
		utils.BotID(b.ID),
		utils.Reason(role),
		utils.Price(price),
		utils.Quantity(qty),
		utils.Amount(amount))
	return true, nil
}

// dcaExit продаёт всю позицию и завершает сделку
//
// Из выручки удерживается только комиссия продажи: комиссии покупок
// уже списаны при входах. PNL сделки учитывает комиссии всех ног.
func (m *Manager) dcaExit(b *models.Bot, price float64, role string) error {
	cfg := b.DCA
	orderID := uuid.NewString()

	gross := cfg.TotalBaseBought * price
	buyFees := cfg.TotalQuoteSpent * m.cfg.FeeRate
	sellFee := gross * m.cfg.FeeRate
	proceeds := gross - sellFee
	pnl := proceeds - cfg.TotalQuoteSpent - buyFees

	_, err := m.eng.Credit(b.UserID, proceeds, models.LedgerTypeBotSell,
		orderID, "bot:"+b.ID, fmt.Sprintf("dca %s sell %s", role, b.Pair))
	if err != nil {
		return err
	}

	m.recordOrder(models.BotOrder{
		ID:        orderID,
		BotID:     b.ID,
		UserID:    b.UserID,
		Pair:      b.Pair,
		Side:      models.OrderSideSell,
		Role:      role,
		Quantity:  cfg.TotalBaseBought,
		Price:     price,
		Total:     gross,
		Fee:       sellFee,
		CreatedAt: time.Now(),
	})

	b.TotalPnl += pnl
	b.TotalTrades++
	b.CurrentValue = 0
	b.InvestedAmount = 0

	outcome := "take_profit"
	if role == models.OrderRoleStopLoss {
		outcome = "stop_loss"
	}
	DealsCompleted.WithLabelValues(outcome).Inc()

	m.log.Info("dca deal closed",
		utils.BotID(b.ID),
		utils.Reason(role),
		utils.Price(price),
		utils.PNL(pnl),
		utils.Int("safety_orders", cfg.ActiveSafetyCount))

	botID := b.ID
	m.notify(&models.Notification{
		Timestamp: time.Now(),
		Type:      models.NotificationTypeBot,
		Severity:  models.SeverityInfo,
		UserID:    b.UserID,
		BotID:     &botID,
		Message:   fmt.Sprintf("DCA сделка %s закрыта (%s), PNL %.2f", b.Pair, role, pnl),
		Meta: map[string]interface{}{
			"pnl":     pnl,
			"price":   price,
			"reason":  role,
			"deal_no": cfg.DealCount + 1,
		},
	})

	// Сброс runtime состояния: следующая сделка начинается с чистого листа
	cfg.DealCount++
	cfg.TotalBaseBought = 0
	cfg.TotalQuoteSpent = 0
	cfg.AvgPrice = 0
	cfg.ActiveSafetyCount = 0
	cfg.PeakProfitPct = 0

	return nil
}
