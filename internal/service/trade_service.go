package service

import (
	"context"
	"errors"
	"time"

	"tradecore/internal/engine"
	"tradecore/internal/models"
	"tradecore/internal/pricefeed"
	"tradecore/pkg/utils"
)

// Ошибки сервиса сделок
var (
	ErrPriceUnavailable = errors.New("current price is unavailable")
)

// TradeService - бизнес-логика ручной торговли
//
// Открытие/закрытие идут через торговое ядро; цена исполнения берётся
// из фида на момент запроса. История закрытых сделок читается из БД.
type TradeService struct {
	eng        *engine.Engine
	feed       pricefeed.Feed
	history    TradeHistoryInterface
	activities ActivityRepositoryInterface
	log        *utils.Logger
}

// NewTradeService создает новый экземпляр сервиса
func NewTradeService(eng *engine.Engine, feed pricefeed.Feed, history TradeHistoryInterface, activities ActivityRepositoryInterface, log *utils.Logger) *TradeService {
	return &TradeService{
		eng:        eng,
		feed:       feed,
		history:    history,
		activities: activities,
		log:        log.WithComponent("trade_service"),
	}
}

// OpenPositionRequest - запрос на открытие позиции
type OpenPositionRequest struct {
	UserID     string   `json:"user_id"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Quantity   float64  `json:"quantity"`
	Leverage   int      `json:"leverage"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	MarketType string   `json:"market_type,omitempty"`
}

// OpenPosition открывает позицию по текущей рыночной цене
func (s *TradeService) OpenPosition(ctx context.Context, req OpenPositionRequest) (*models.Position, error) {
	price, err := s.feed.FetchPrice(ctx, req.Symbol)
	if err != nil {
		return nil, ErrPriceUnavailable
	}

	return s.eng.OpenPosition(engine.OpenPositionRequest{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		EntryPrice: price,
		Quantity:   req.Quantity,
		Leverage:   req.Leverage,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Source:     models.SourceManual,
		MarketType: req.MarketType,
	})
}

// ClosePosition закрывает позицию по текущей рыночной цене
func (s *TradeService) ClosePosition(ctx context.Context, userID, positionID string) (*models.ClosedTrade, error) {
	pos, err := s.findPosition(userID, positionID)
	if err != nil {
		return nil, err
	}

	price, err := s.feed.FetchPrice(ctx, pos.Symbol)
	if err != nil {
		return nil, ErrPriceUnavailable
	}

	return s.eng.ClosePosition(userID, positionID, price, models.CloseReasonManual)
}

// ForceClosePosition закрывает позицию от имени администратора с аудитом
func (s *TradeService) ForceClosePosition(ctx context.Context, adminID, userID, positionID, reason string) (*models.ClosedTrade, error) {
	if reason == "" {
		return nil, ErrEmptyReason
	}

	pos, err := s.findPosition(userID, positionID)
	if err != nil {
		return nil, err
	}

	price, err := s.feed.FetchPrice(ctx, pos.Symbol)
	if err != nil {
		return nil, ErrPriceUnavailable
	}

	trade, err := s.eng.ClosePosition(userID, positionID, price, models.CloseReasonAdmin)
	if err != nil {
		return nil, err
	}

	audit := &models.ActivityLog{
		Actor:      adminID,
		Action:     models.ActivityActionForceClose,
		TargetUser: userID,
		PrevValue:  pos.MarginUsed,
		NewValue:   trade.RealizedPnl,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
	if err := s.activities.Insert(ctx, audit); err != nil {
		s.log.Error("activity log write failed",
			utils.PositionID(positionID),
			utils.Err(err))
	}

	s.log.Warn("position force-closed by admin",
		utils.String("admin", adminID),
		utils.UserID(userID),
		utils.PositionID(positionID),
		utils.Reason(reason))
	return trade, nil
}

// UpdateSLTP обновляет стопы позиции; nil снимает уровень
func (s *TradeService) UpdateSLTP(userID, positionID string, stopLoss, takeProfit *float64) (*models.Position, error) {
	return s.eng.UpdatePositionSLTP(userID, positionID, stopLoss, takeProfit)
}

// GetOpenPositions возвращает открытые позиции пользователя
func (s *TradeService) GetOpenPositions(userID string) ([]models.Position, error) {
	return s.eng.GetOpenPositions(userID)
}

// GetTradeHistory возвращает страницу закрытых сделок из БД
func (s *TradeService) GetTradeHistory(ctx context.Context, userID string, limit, offset int) ([]*models.ClosedTrade, error) {
	return s.history.ListClosedByUser(ctx, userID, limit, offset)
}

// CheckLiquidation возвращает позиции пользователя под ликвидацией
func (s *TradeService) CheckLiquidation(userID string) ([]string, error) {
	return s.eng.CheckLiquidation(userID)
}

// findPosition ищет открытую позицию пользователя
func (s *TradeService) findPosition(userID, positionID string) (*models.Position, error) {
	positions, err := s.eng.GetOpenPositions(userID)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].ID == positionID {
			return &positions[i], nil
		}
	}
	return nil, engine.ErrPositionNotFound
}
