package engine

import (
	"time"

	"github.com/google/uuid"

	"tradecore/internal/models"
	"tradecore/internal/outbox"
	"tradecore/pkg/utils"
)

// OpenPositionRequest - параметры открытия позиции
type OpenPositionRequest struct {
	UserID     string
	Symbol     string
	Side       string // long, short
	EntryPrice float64
	Quantity   float64
	Leverage   int
	StopLoss   *float64
	TakeProfit *float64
	Source     string // manual, bot, admin
	MarketType string // spot, futures
}

// OpenPosition открывает позицию с плечом
//
// marginRequired = quantity × entryPrice / leverage.
// Маржа списывается с баланса (запись trade_open, amount = -маржа)
// и блокируется до закрытия. ErrInsufficientMargin если маржа
// превышает свободную маржу счёта.
func (e *Engine) OpenPosition(req OpenPositionRequest) (*models.Position, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	as, err := e.account(req.UserID)
	if err != nil {
		return nil, err
	}

	margin := req.Quantity * req.EntryPrice / float64(req.Leverage)

	as.mu.Lock()

	if margin > as.acc.FreeMargin {
		as.mu.Unlock()
		return nil, ErrInsufficientMargin
	}

	pos := &models.Position{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		EntryPrice:   req.EntryPrice,
		CurrentPrice: req.EntryPrice,
		Quantity:     req.Quantity,
		Leverage:     req.Leverage,
		MarginUsed:   margin,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Source:       req.Source,
		MarketType:   req.MarketType,
		OpenedAt:     time.Now(),
	}

	entry := as.apply(models.LedgerTypeTradeOpen, -margin, pos.ID, req.UserID, "margin locked: "+req.Symbol)
	as.positions[pos.ID] = pos
	as.recompute()

	posSnap := *pos
	accSnap := as.snapshot()
	as.mu.Unlock()

	e.indexPosition(req.Symbol, req.UserID)

	PositionsOpened.WithLabelValues(req.Symbol, req.Side).Inc()
	e.persistBalanceChange(entry, accSnap)
	e.queue.Enqueue(outbox.Write{Kind: outbox.KindPositionUpsert, Key: pos.ID, Payload: posSnap})

	if e.hub != nil {
		e.hub.BroadcastPositionUpdate(req.UserID, &posSnap)
	}

	e.log.Info("position opened",
		utils.UserID(req.UserID),
		utils.PositionID(pos.ID),
		utils.Symbol(req.Symbol),
		utils.Side(req.Side),
		utils.Price(req.EntryPrice),
		utils.Quantity(req.Quantity),
		utils.Int("leverage", req.Leverage))

	return &posSnap, nil
}

// validate проверяет параметры запроса
func (r *OpenPositionRequest) validate() error {
	if r.Symbol == "" || r.Quantity <= 0 || r.EntryPrice <= 0 {
		return ErrInvalidPosition
	}
	if r.Side != models.SideLong && r.Side != models.SideShort {
		return ErrInvalidPosition
	}
	if r.Leverage < 1 {
		return ErrInvalidPosition
	}
	if r.Source == "" {
		r.Source = models.SourceManual
	}
	if r.MarketType == "" {
		r.MarketType = models.MarketFutures
	}
	return nil
}

// ClosePosition закрывает позицию и фиксирует результат
//
// realizedPnl = priceDiff × quantity × leverage - fee,
// fee = marginUsed × feeRate. Баланс получает маржу обратно плюс
// реализованный PNL (запись trade_close).
//
// Идемпотентно-безопасно: повторное закрытие того же id возвращает
// ErrPositionNotFound без изменения баланса.
func (e *Engine) ClosePosition(userID, positionID string, exitPrice float64, reason string) (*models.ClosedTrade, error) {
	if exitPrice <= 0 {
		return nil, ErrInvalidPosition
	}

	as, err := e.account(userID)
	if err != nil {
		return nil, err
	}

	as.mu.Lock()

	pos, ok := as.positions[positionID]
	if !ok {
		as.mu.Unlock()
		return nil, ErrPositionNotFound
	}

	priceDiff := exitPrice - pos.EntryPrice
	if pos.Side == models.SideShort {
		priceDiff = pos.EntryPrice - exitPrice
	}

	leveragedPnl := priceDiff * pos.Quantity * float64(pos.Leverage)
	fee := pos.MarginUsed * e.cfg.FeeRate
	realizedPnl := leveragedPnl - fee

	trade := models.ClosedTrade{
		ID:          uuid.NewString(),
		PositionID:  pos.ID,
		UserID:      userID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		Quantity:    pos.Quantity,
		Leverage:    pos.Leverage,
		MarginUsed:  pos.MarginUsed,
		RealizedPnl: realizedPnl,
		Fee:         fee,
		CloseReason: reason,
		Source:      pos.Source,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    time.Now(),
	}

	// Возврат маржи + реализованный результат одной записью
	entry := as.apply(models.LedgerTypeTradeClose, pos.MarginUsed+realizedPnl, pos.ID, userID, "close "+reason+": "+pos.Symbol)

	delete(as.positions, positionID)
	as.acc.TotalPnl += realizedPnl
	as.recompute()

	symbol := pos.Symbol
	accSnap := as.snapshot()
	as.mu.Unlock()

	e.deindexPosition(symbol, userID)

	PositionsClosed.WithLabelValues(symbol, reason).Inc()
	RealizedPnlTotal.Add(realizedPnl)

	e.persistBalanceChange(entry, accSnap)
	e.queue.Enqueue(outbox.Write{Kind: outbox.KindPositionDelete, Key: positionID})
	e.queue.Enqueue(outbox.Write{Kind: outbox.KindClosedTrade, Key: trade.ID, Payload: trade})

	e.log.Info("position closed",
		utils.UserID(userID),
		utils.PositionID(positionID),
		utils.Symbol(symbol),
		utils.Reason(reason),
		utils.Price(exitPrice),
		utils.PNL(realizedPnl))

	return &trade, nil
}

// UpdatePositionSLTP обновляет уровни Stop Loss / Take Profit позиции
//
// nil снимает уровень
func (e *Engine) UpdatePositionSLTP(userID, positionID string, stopLoss, takeProfit *float64) (*models.Position, error) {
	if stopLoss != nil && *stopLoss <= 0 {
		return nil, ErrInvalidPosition
	}
	if takeProfit != nil && *takeProfit <= 0 {
		return nil, ErrInvalidPosition
	}

	as, err := e.account(userID)
	if err != nil {
		return nil, err
	}

	as.mu.Lock()

	pos, ok := as.positions[positionID]
	if !ok {
		as.mu.Unlock()
		return nil, ErrPositionNotFound
	}

	pos.StopLoss = stopLoss
	pos.TakeProfit = takeProfit
	posSnap := *pos
	as.mu.Unlock()

	e.queue.Enqueue(outbox.Write{Kind: outbox.KindPositionUpsert, Key: positionID, Payload: posSnap})

	if e.hub != nil {
		e.hub.BroadcastPositionUpdate(userID, &posSnap)
	}

	return &posSnap, nil
}
