package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"tradecore/internal/service"
)

// AdminHandler обрабатывает защищённые admin endpoints
//
// Все маршруты закрыты Bearer-токеном (middleware.AdminAuth) и каждое
// изменение оставляет запись в журнале аудита.
//
// Endpoints:
// - POST /api/v1/admin/accounts/{user_id}/credit - зачислить средства
// - POST /api/v1/admin/accounts/{user_id}/debit - списать средства
// - POST /api/v1/admin/accounts/{user_id}/positions/{position_id}/force-close
// - GET /api/v1/admin/accounts/{user_id}/reconcile - сверка баланса
// - GET /api/v1/admin/activity - журнал аудита
type AdminHandler struct {
	accounts service.AccountServiceInterface
	trades   service.TradeServiceInterface
}

// NewAdminHandler создает новый AdminHandler
func NewAdminHandler(accounts service.AccountServiceInterface, trades service.TradeServiceInterface) *AdminHandler {
	return &AdminHandler{accounts: accounts, trades: trades}
}

type adminAdjustRequest struct {
	AdminID string  `json:"admin_id"`
	Amount  float64 `json:"amount"`
	Reason  string  `json:"reason"`
}

type forceCloseRequest struct {
	AdminID string `json:"admin_id"`
	Reason  string `json:"reason"`
}

// Credit зачисляет средства от имени администратора
// POST /api/v1/admin/accounts/{user_id}/credit
func (h *AdminHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, true)
}

// Debit списывает средства от имени администратора
// POST /api/v1/admin/accounts/{user_id}/debit
func (h *AdminHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, false)
}

func (h *AdminHandler) adjust(w http.ResponseWriter, r *http.Request, credit bool) {
	userID := mux.Vars(r)["user_id"]

	var req adminAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AdminID == "" {
		respondWithError(w, http.StatusBadRequest, "admin_id is required")
		return
	}

	var err error
	var entry interface{}
	if credit {
		entry, err = h.accounts.AdminCredit(r.Context(), req.AdminID, userID, req.Amount, req.Reason)
	} else {
		entry, err = h.accounts.AdminDebit(r.Context(), req.AdminID, userID, req.Amount, req.Reason)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// ForceClose принудительно закрывает позицию пользователя
// POST /api/v1/admin/accounts/{user_id}/positions/{position_id}/force-close
func (h *AdminHandler) ForceClose(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req forceCloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AdminID == "" {
		respondWithError(w, http.StatusBadRequest, "admin_id is required")
		return
	}

	trade, err := h.trades.ForceClosePosition(r.Context(), req.AdminID, vars["user_id"], vars["position_id"], req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, trade)
}

type reconcileResponse struct {
	UserID        string  `json:"user_id"`
	EngineBalance float64 `json:"engine_balance"`
	LedgerSum     float64 `json:"ledger_sum"`
	Drift         float64 `json:"drift"`
}

// Reconcile сверяет баланс в памяти с суммой леджера в БД
// GET /api/v1/admin/accounts/{user_id}/reconcile
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	balance, sum, err := h.accounts.Reconcile(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reconcileResponse{
		UserID:        userID,
		EngineBalance: balance,
		LedgerSum:     sum,
		Drift:         balance - sum,
	})
}

// GetActivityLog возвращает последние записи журнала аудита
// GET /api/v1/admin/activity?limit=
func (h *AdminHandler) GetActivityLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := parsePagination(r)

	entries, err := h.accounts.GetActivityLog(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}
