package engine

import (
	"fmt"
	"time"

	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// ============================================================
// Риск-движок: Stop Loss / Take Profit / ликвидация
// ============================================================

// stopTrigger - сработавший риск-триггер одной позиции
type stopTrigger struct {
	positionID string
	symbol     string
	price      float64
	reason     string // stop_loss, take_profit
}

// collectStopTriggers оценивает SL/TP позиций счёта на символе
//
// Детерминированный порядок: SL проверяется РАНЬШЕ TP; первое
// совпадение даёт ровно одну ногу на позицию за тик. Оценка чистая -
// закрытие выполняется вызывающим после снятия блокировки
func (e *Engine) collectStopTriggers(as *AccountState, symbol string, price float64) []stopTrigger {
	as.mu.Lock()
	defer as.mu.Unlock()

	var triggers []stopTrigger
	for _, pos := range as.positions {
		if pos.Symbol != symbol {
			continue
		}

		// Stop Loss: long закрывается при цене ≤ SL, short при цене ≥ SL
		if pos.StopLoss != nil {
			sl := *pos.StopLoss
			if (pos.Side == models.SideLong && price <= sl) ||
				(pos.Side == models.SideShort && price >= sl) {
				triggers = append(triggers, stopTrigger{
					positionID: pos.ID,
					symbol:     symbol,
					price:      price,
					reason:     models.CloseReasonStopLoss,
				})
				continue // не более одной ноги на позицию за тик
			}
		}

		// Take Profit: long закрывается при цене ≥ TP, short при цене ≤ TP
		if pos.TakeProfit != nil {
			tp := *pos.TakeProfit
			if (pos.Side == models.SideLong && price >= tp) ||
				(pos.Side == models.SideShort && price <= tp) {
				triggers = append(triggers, stopTrigger{
					positionID: pos.ID,
					symbol:     symbol,
					price:      price,
					reason:     models.CloseReasonTakeProfit,
				})
			}
		}
	}

	return triggers
}

// closeTriggered закрывает позицию по сработавшему SL/TP
func (e *Engine) closeTriggered(userID string, trig stopTrigger) {
	trade, err := e.ClosePosition(userID, trig.positionID, trig.price, trig.reason)
	if err != nil {
		// Позиция уже закрыта конкурентной операцией - не ошибка
		return
	}

	notifType := models.NotificationTypeSL
	if trig.reason == models.CloseReasonTakeProfit {
		notifType = models.NotificationTypeTP
	}

	StopTriggersTotal.WithLabelValues(trig.symbol, trig.reason).Inc()

	e.notify(&models.Notification{
		Timestamp: time.Now(),
		Type:      notifType,
		Severity:  models.SeverityWarn,
		UserID:    userID,
		Message: fmt.Sprintf("%s triggered for %s at %.8g, PNL %.2f",
			trig.reason, trig.symbol, trig.price, trade.RealizedPnl),
		Meta: map[string]interface{}{
			"position_id": trig.positionID,
			"symbol":      trig.symbol,
			"price":       trig.price,
			"pnl":         trade.RealizedPnl,
		},
	})
}

// liquidatable возвращает id позиций счёта с marginLevel ниже порога
//
// Чистый запрос без мутаций: marginLevel = (marginUsed + unrealizedPnl)
// / marginUsed. Закрытие возвращённых id - ответственность вызывающего,
// чтобы не мутировать список позиций во время итерации
func (e *Engine) liquidatable(as *AccountState) []string {
	as.mu.Lock()
	defer as.mu.Unlock()

	var ids []string
	for _, pos := range as.positions {
		effectiveEquity := pos.MarginUsed + pos.UnrealizedPnl
		marginLevel := effectiveEquity / pos.MarginUsed

		if marginLevel < e.cfg.LiquidationThreshold {
			ids = append(ids, pos.ID)
		}
	}
	return ids
}

// CheckLiquidation возвращает id позиций счёта, подлежащих ликвидации
func (e *Engine) CheckLiquidation(userID string) ([]string, error) {
	as, err := e.account(userID)
	if err != nil {
		return nil, err
	}
	return e.liquidatable(as), nil
}

// liquidate принудительно закрывает позицию по текущей цене
func (e *Engine) liquidate(userID, positionID string) {
	as, err := e.account(userID)
	if err != nil {
		return
	}

	as.mu.Lock()
	pos, ok := as.positions[positionID]
	if !ok {
		as.mu.Unlock()
		return
	}
	price := pos.CurrentPrice
	symbol := pos.Symbol
	as.mu.Unlock()

	trade, err := e.ClosePosition(userID, positionID, price, models.CloseReasonLiquidation)
	if err != nil {
		return
	}

	LiquidationsTotal.WithLabelValues(symbol).Inc()

	e.log.Warn("position liquidated",
		utils.UserID(userID),
		utils.PositionID(positionID),
		utils.Symbol(symbol),
		utils.Price(price),
		utils.PNL(trade.RealizedPnl))

	e.notify(&models.Notification{
		Timestamp: time.Now(),
		Type:      models.NotificationTypeLiquidation,
		Severity:  models.SeverityError,
		UserID:    userID,
		Message: fmt.Sprintf("position %s liquidated at %.8g, PNL %.2f",
			symbol, price, trade.RealizedPnl),
		Meta: map[string]interface{}{
			"position_id": positionID,
			"symbol":      symbol,
			"price":       price,
			"pnl":         trade.RealizedPnl,
		},
	})
}

// notify отправляет уведомление через hub (если подключён)
func (e *Engine) notify(notif *models.Notification) {
	if e.hub != nil {
		e.hub.BroadcastNotification(notif)
	}
}
