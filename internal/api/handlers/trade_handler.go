package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"tradecore/internal/service"
)

// TradeHandler обрабатывает HTTP запросы ручной торговли
//
// Endpoints:
// - GET /api/v1/accounts/{user_id}/positions - открытые позиции
// - POST /api/v1/accounts/{user_id}/positions - открыть позицию
// - POST /api/v1/accounts/{user_id}/positions/{position_id}/close - закрыть
// - PATCH /api/v1/accounts/{user_id}/positions/{position_id} - обновить SL/TP
// - GET /api/v1/accounts/{user_id}/trades - история закрытых сделок
type TradeHandler struct {
	trades service.TradeServiceInterface
}

// NewTradeHandler создает новый TradeHandler
func NewTradeHandler(trades service.TradeServiceInterface) *TradeHandler {
	return &TradeHandler{trades: trades}
}

type openPositionRequest struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Quantity   float64  `json:"quantity"`
	Leverage   int      `json:"leverage"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	MarketType string   `json:"market_type,omitempty"`
}

type updateSLTPRequest struct {
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
}

// GetPositions возвращает открытые позиции пользователя
// GET /api/v1/accounts/{user_id}/positions
func (h *TradeHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	positions, err := h.trades.GetOpenPositions(userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, positions)
}

// OpenPosition открывает позицию по рыночной цене
// POST /api/v1/accounts/{user_id}/positions
func (h *TradeHandler) OpenPosition(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var req openPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pos, err := h.trades.OpenPosition(r.Context(), service.OpenPositionRequest{
		UserID:     userID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Leverage:   req.Leverage,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		MarketType: req.MarketType,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, pos)
}

// ClosePosition закрывает позицию по рыночной цене
// POST /api/v1/accounts/{user_id}/positions/{position_id}/close
func (h *TradeHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	trade, err := h.trades.ClosePosition(r.Context(), vars["user_id"], vars["position_id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, trade)
}

// UpdateSLTP обновляет стопы позиции (null снимает уровень)
// PATCH /api/v1/accounts/{user_id}/positions/{position_id}
func (h *TradeHandler) UpdateSLTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req updateSLTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pos, err := h.trades.UpdateSLTP(vars["user_id"], vars["position_id"], req.StopLoss, req.TakeProfit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pos)
}

type tradeHistoryResponse struct {
	Trades interface{} `json:"trades"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// GetTradeHistory возвращает страницу закрытых сделок
// GET /api/v1/accounts/{user_id}/trades?limit=&offset=
func (h *TradeHandler) GetTradeHistory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	limit, offset := parsePagination(r)

	trades, err := h.trades.GetTradeHistory(r.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tradeHistoryResponse{Trades: trades, Limit: limit, Offset: offset})
}
