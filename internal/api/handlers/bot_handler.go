package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"tradecore/internal/models"
	"tradecore/internal/service"
)

// BotHandler обрабатывает HTTP запросы управления ботами
//
// Endpoints:
// - GET /api/v1/accounts/{user_id}/bots - список ботов
// - POST /api/v1/accounts/{user_id}/bots - создать бота
// - GET /api/v1/accounts/{user_id}/bots/{bot_id} - состояние бота
// - DELETE /api/v1/accounts/{user_id}/bots/{bot_id} - удалить бота
// - POST /api/v1/accounts/{user_id}/bots/{bot_id}/start - запустить
// - POST /api/v1/accounts/{user_id}/bots/{bot_id}/pause - приостановить
// - POST /api/v1/accounts/{user_id}/bots/{bot_id}/stop - остановить
// - GET /api/v1/accounts/{user_id}/bots/{bot_id}/orders - история ордеров
// - GET /api/v1/accounts/{user_id}/bots/{bot_id}/grid - уровни сетки
type BotHandler struct {
	bots service.BotServiceInterface
}

// NewBotHandler создает новый BotHandler
func NewBotHandler(bots service.BotServiceInterface) *BotHandler {
	return &BotHandler{bots: bots}
}

type createBotRequest struct {
	Type string             `json:"type"`
	Pair string             `json:"pair"`
	DCA  *models.DCAConfig  `json:"dca_config,omitempty"`
	Grid *models.GridConfig `json:"grid_config,omitempty"`
}

// ListBots возвращает всех ботов пользователя
// GET /api/v1/accounts/{user_id}/bots
func (h *BotHandler) ListBots(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	bots, err := h.bots.ListBots(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, bots)
}

// CreateBot создает бота в статусе stopped
// POST /api/v1/accounts/{user_id}/bots
func (h *BotHandler) CreateBot(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var req createBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.bots.CreateBot(r.Context(), service.CreateBotRequest{
		UserID: userID,
		Type:   req.Type,
		Pair:   req.Pair,
		DCA:    req.DCA,
		Grid:   req.Grid,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, b)
}

// GetBot возвращает состояние бота
// GET /api/v1/accounts/{user_id}/bots/{bot_id}
func (h *BotHandler) GetBot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	b, err := h.bots.GetBot(r.Context(), vars["user_id"], vars["bot_id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

// DeleteBot удаляет бота и его историю
// DELETE /api/v1/accounts/{user_id}/bots/{bot_id}
func (h *BotHandler) DeleteBot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.bots.DeleteBot(r.Context(), vars["user_id"], vars["bot_id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartBot запускает бота
// POST /api/v1/accounts/{user_id}/bots/{bot_id}/start
func (h *BotHandler) StartBot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	b, err := h.bots.StartBot(r.Context(), vars["user_id"], vars["bot_id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

// PauseBot приостанавливает бота без сброса состояния сделки
// POST /api/v1/accounts/{user_id}/bots/{bot_id}/pause
func (h *BotHandler) PauseBot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	b, err := h.bots.PauseBot(r.Context(), vars["user_id"], vars["bot_id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

// StopBot останавливает бота
// POST /api/v1/accounts/{user_id}/bots/{bot_id}/stop
func (h *BotHandler) StopBot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	b, err := h.bots.StopBot(r.Context(), vars["user_id"], vars["bot_id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

type botOrdersResponse struct {
	Orders interface{} `json:"orders"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// GetBotOrders возвращает страницу истории ордеров бота
// GET /api/v1/accounts/{user_id}/bots/{bot_id}/orders?limit=&offset=
func (h *BotHandler) GetBotOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit, offset := parsePagination(r)

	orders, err := h.bots.GetBotOrders(r.Context(), vars["user_id"], vars["bot_id"], limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, botOrdersResponse{Orders: orders, Limit: limit, Offset: offset})
}

// GetGridLevels возвращает текущие уровни сетки grid-бота
// GET /api/v1/accounts/{user_id}/bots/{bot_id}/grid
func (h *BotHandler) GetGridLevels(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	levels, err := h.bots.GetGridLevels(r.Context(), vars["user_id"], vars["bot_id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, levels)
}
