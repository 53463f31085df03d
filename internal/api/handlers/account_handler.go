package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"tradecore/internal/service"
)

// AccountHandler обрабатывает HTTP запросы к счетам
//
// Endpoints:
// - POST /api/v1/accounts - создать счёт
// - GET /api/v1/accounts/{user_id} - снимок счёта
// - POST /api/v1/accounts/{user_id}/deposit - пополнение
// - POST /api/v1/accounts/{user_id}/withdraw - вывод
// - GET /api/v1/accounts/{user_id}/ledger - история леджера
type AccountHandler struct {
	accounts service.AccountServiceInterface
}

// NewAccountHandler создает новый AccountHandler
func NewAccountHandler(accounts service.AccountServiceInterface) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type createAccountRequest struct {
	UserID string `json:"user_id"`
}

type amountRequest struct {
	Amount float64 `json:"amount"`
}

// CreateAccount создает счёт с нулевым балансом
// POST /api/v1/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	acc, err := h.accounts.CreateAccount(req.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, acc)
}

// GetAccount возвращает текущий снимок счёта
// GET /api/v1/accounts/{user_id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	acc, err := h.accounts.GetAccount(userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, acc)
}

// Deposit зачисляет средства на счёт
// POST /api/v1/accounts/{user_id}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.accounts.Deposit(userID, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// Withdraw списывает средства со счёта
// POST /api/v1/accounts/{user_id}/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.accounts.Withdraw(userID, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

type ledgerResponse struct {
	Entries interface{} `json:"entries"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

// GetLedger возвращает страницу истории леджера
// GET /api/v1/accounts/{user_id}/ledger?limit=&offset=
func (h *AccountHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	limit, offset := parsePagination(r)

	entries, err := h.accounts.GetLedgerHistory(r.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ledgerResponse{Entries: entries, Limit: limit, Offset: offset})
}
