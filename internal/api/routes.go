package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradecore/internal/api/handlers"
	"tradecore/internal/api/middleware"
	"tradecore/internal/service"
	"tradecore/pkg/ratelimit"
	"tradecore/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	AccountService service.AccountServiceInterface
	TradeService   service.TradeServiceInterface
	BotService     service.BotServiceInterface

	// WSHandler обслуживает /ws/stream (nil = маршрут не регистрируется)
	WSHandler http.Handler

	// AdminTokenHash - bcrypt хэш Bearer-токена admin API
	AdminTokenHash string

	// Limiter - общий rate limiter на клиента (nil = без лимита)
	Limiter *ratelimit.KeyedLimiter

	Logger *utils.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /accounts/
//	│   ├── POST / - создать счёт
//	│   ├── GET /{user_id} - снимок счёта
//	│   ├── POST /{user_id}/deposit - пополнение
//	│   ├── POST /{user_id}/withdraw - вывод
//	│   ├── GET /{user_id}/ledger - история леджера
//	│   ├── GET /{user_id}/positions - открытые позиции
//	│   ├── POST /{user_id}/positions - открыть позицию
//	│   ├── POST /{user_id}/positions/{position_id}/close - закрыть
//	│   ├── PATCH /{user_id}/positions/{position_id} - обновить SL/TP
//	│   ├── GET /{user_id}/trades - история сделок
//	│   └── /{user_id}/bots/ - CRUD + start/pause/stop + orders + grid
//	└── /admin/ (Bearer-токен)
//	    ├── POST /accounts/{user_id}/credit
//	    ├── POST /accounts/{user_id}/debit
//	    ├── POST /accounts/{user_id}/positions/{position_id}/force-close
//	    ├── GET /accounts/{user_id}/reconcile
//	    └── GET /activity
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus
// /health - liveness
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. RateLimit (для /api/v1)
// 5. AdminAuth (только для /api/v1/admin)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	log := deps.Logger
	if log == nil {
		log = utils.InitLogger(utils.LogConfig{Level: "info", Format: "text"})
	}

	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS)

	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	if deps.Limiter != nil {
		apiV1.Use(middleware.RateLimit(deps.Limiter))
	}

	if deps.AccountService != nil {
		h := handlers.NewAccountHandler(deps.AccountService)
		apiV1.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
		apiV1.HandleFunc("/accounts/{user_id}", h.GetAccount).Methods("GET")
		apiV1.HandleFunc("/accounts/{user_id}/deposit", h.Deposit).Methods("POST")
		apiV1.HandleFunc("/accounts/{user_id}/withdraw", h.Withdraw).Methods("POST")
		apiV1.HandleFunc("/accounts/{user_id}/ledger", h.GetLedger).Methods("GET")
	}

	if deps.TradeService != nil {
		h := handlers.NewTradeHandler(deps.TradeService)
		apiV1.HandleFunc("/accounts/{user_id}/positions", h.GetPositions).Methods("GET")
		apiV1.HandleFunc("/accounts/{user_id}/positions", h.OpenPosition).Methods("POST")
		apiV1.HandleFunc("/accounts/{user_id}/positions/{position_id}/close", h.ClosePosition).Methods("POST")
		apiV1.HandleFunc("/accounts/{user_id}/positions/{position_id}", h.UpdateSLTP).Methods("PATCH")
		apiV1.HandleFunc("/accounts/{user_id}/trades", h.GetTradeHistory).Methods("GET")
	}

	if deps.BotService != nil {
		h := handlers.NewBotHandler(deps.BotService)
		apiV1.HandleFunc("/accounts/{user_id}/bots", h.ListBots).Methods("GET")
		apiV1.HandleFunc("/accounts/{user_id}/bots", h.CreateBot).Methods("POST")
		apiV1.HandleFunc("/accounts/{user_id}/bots/{bot_id}", h.GetBot).Methods("GET")
		apiV1.HandleFunc("/accounts/{user_id}/bots/{bot_id}", h.DeleteBot).Methods("DELETE")
		apiV1.HandleFunc("/accounts/{user_id}/bots/{bot_id}/start", h.StartBot).Methods("POST")
		apiV1.HandleFunc("/accounts/{user_id}/bots/{bot_id}/pause", h.PauseBot).Methods("POST")
		apiV1.HandleFunc("/accounts/{user_id}/bots/{bot_id}/stop", h.StopBot).Methods("POST")
		apiV1.HandleFunc("/accounts/{user_id}/bots/{bot_id}/orders", h.GetBotOrders).Methods("GET")
		apiV1.HandleFunc("/accounts/{user_id}/bots/{bot_id}/grid", h.GetGridLevels).Methods("GET")
	}

	if deps.AccountService != nil && deps.TradeService != nil {
		admin := apiV1.PathPrefix("/admin").Subrouter()
		admin.Use(middleware.AdminAuth(deps.AdminTokenHash))

		h := handlers.NewAdminHandler(deps.AccountService, deps.TradeService)
		admin.HandleFunc("/accounts/{user_id}/credit", h.Credit).Methods("POST")
		admin.HandleFunc("/accounts/{user_id}/debit", h.Debit).Methods("POST")
		admin.HandleFunc("/accounts/{user_id}/positions/{position_id}/force-close", h.ForceClose).Methods("POST")
		admin.HandleFunc("/accounts/{user_id}/reconcile", h.Reconcile).Methods("GET")
		admin.HandleFunc("/activity", h.GetActivityLog).Methods("GET")
	}

	if deps.WSHandler != nil {
		router.Handle("/ws/stream", deps.WSHandler)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
