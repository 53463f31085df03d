package handlers

import (
	"errors"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"tradecore/internal/bot"
	"tradecore/internal/engine"
	"tradecore/internal/repository"
	"tradecore/internal/service"
)

var json = jsoniter.ConfigFastest

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse стандартный формат успешного ответа
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// respondWithJSON сериализует payload и пишет ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondWithError пишет ошибку в стандартном формате
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondServiceError транслирует доменные ошибки в HTTP статусы
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrAccountNotFound),
		errors.Is(err, engine.ErrPositionNotFound),
		errors.Is(err, bot.ErrBotNotFound),
		errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrPositionNotFound),
		errors.Is(err, repository.ErrBotNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrAccountExists):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInsufficientFunds),
		errors.Is(err, engine.ErrInsufficientMargin):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidPosition),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrEmptyReason),
		errors.Is(err, service.ErrPriceUnavailable),
		errors.Is(err, bot.ErrInvalidBotConfig),
		errors.Is(err, bot.ErrUnknownBotType):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrBotAccessDenied):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, bot.ErrBotAlreadyRunning),
		errors.Is(err, bot.ErrInvalidTransition),
		errors.Is(err, bot.ErrBotLimitReached):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

// parsePagination читает limit/offset из query (limit по умолчанию 50, max 500)
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
