package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradecore/internal/api"
	"tradecore/internal/bot"
	"tradecore/internal/config"
	"tradecore/internal/engine"
	"tradecore/internal/models"
	"tradecore/internal/outbox"
	"tradecore/internal/pricefeed"
	"tradecore/internal/repository"
	"tradecore/internal/service"
	"tradecore/internal/websocket"
	"tradecore/pkg/ratelimit"
	"tradecore/pkg/utils"

	_ "github.com/lib/pq"
)

// Размер очереди write-behind: пики тиков не должны блокировать движок
const outboxQueueSize = 32768

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", utils.Err(err))
	}
	defer db.Close()

	logger.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	store := repository.NewPostgresStore(db)

	// Контекст жизненного цикла фоновых воркеров
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Очередь отложенной записи: единственный писатель БД на горячем пути
	queue := outbox.NewQueue(store, outboxQueueSize, logger)
	go queue.Run(ctx)

	// WebSocket hub для real-time обновлений
	hub := websocket.NewHub(logger)
	go hub.Run()

	// Торговое ядро
	eng := engine.NewEngine(cfg.Engine, queue, hub, logger)

	if err := restoreEngineState(ctx, store, eng); err != nil {
		logger.Fatal("failed to restore engine state", utils.Err(err))
	}

	go eng.Run(ctx)

	// Источник котировок
	feed, feedClose, err := startFeed(ctx, cfg, eng, logger)
	if err != nil {
		logger.Fatal("failed to start price feed", utils.Err(err))
	}
	defer feedClose()

	// Планировщик ботов
	manager := bot.NewManager(cfg.Bot, eng, feed, queue, hub, logger)

	// Сервисный слой
	accountService := service.NewAccountService(eng, store.Ledger, store.Activities, logger)
	tradeService := service.NewTradeService(eng, feed, store.Positions, store.Activities, logger)
	botService := service.NewBotService(manager, store.Bots, store.Orders, logger)

	// Восстановление ботов: state machine продолжается с места остановки
	if err := botService.RestoreBots(ctx); err != nil {
		logger.Warn("bot restore incomplete", utils.Err(err))
	}

	// Настройка HTTP роутера
	deps := &api.Dependencies{
		AccountService: accountService,
		TradeService:   tradeService,
		BotService:     botService,
		WSHandler:      hub.Handler(),
		AdminTokenHash: cfg.Security.AdminTokenHash,
		Limiter:        ratelimit.NewKeyedLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst),
		Logger:         logger,
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Info("starting server", utils.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", utils.Err(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", utils.Err(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", utils.Err(err))
	}

	// Порядок остановки: боты -> hub -> фоновые воркеры.
	// Отмена контекста останавливает движок и дренирует очередь записи,
	// чтобы последние мутации доехали до БД.
	manager.Shutdown()
	hub.Stop()
	cancel()

	deadline := time.Now().Add(10 * time.Second)
	for queue.Depth() > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	if depth := queue.Depth(); depth > 0 {
		logger.Warn("outbox not fully drained", utils.Int("depth", depth))
	}

	logger.Info("server exited")
}

// restoreEngineState загружает счета и открытые позиции из БД при старте
func restoreEngineState(ctx context.Context, store *repository.PostgresStore, eng *engine.Engine) error {
	accounts, err := store.Accounts.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	restored := 0
	for _, acc := range accounts {
		positions, err := store.Positions.GetOpenByUser(ctx, acc.UserID)
		if err != nil {
			return fmt.Errorf("load positions for %s: %w", acc.UserID, err)
		}

		snapshot := make([]models.Position, 0, len(positions))
		for _, p := range positions {
			snapshot = append(snapshot, *p)
		}

		eng.RestoreAccount(*acc, snapshot)
		restored++
	}

	utils.Info("engine state restored", utils.Int("accounts", restored))
	return nil
}

// startFeed запускает источник котировок согласно конфигурации
//
// В режиме simulated цены генерируются локально случайным блужданием.
// В режиме websocket тики приходят от внешнего источника с
// автопереподключением (exponential backoff).
func startFeed(ctx context.Context, cfg *config.Config, eng *engine.Engine, logger *utils.Logger) (pricefeed.Feed, func(), error) {
	onTick := func(symbol string, price float64) {
		eng.OnPriceTick(symbol, price, time.Now())
	}

	switch cfg.Feed.Mode {
	case "websocket":
		wsCfg := pricefeed.DefaultWSFeedConfig(cfg.Feed.WSURL, cfg.Feed.Symbols)
		if cfg.Feed.WSReconnectDelay > 0 {
			wsCfg.InitialDelay = cfg.Feed.WSReconnectDelay
		}
		if cfg.Feed.WSPingInterval > 0 {
			wsCfg.PingInterval = cfg.Feed.WSPingInterval
		}

		feed := pricefeed.NewWSFeed(wsCfg, onTick, logger)
		if err := feed.Connect(); err != nil {
			return nil, nil, fmt.Errorf("connect ws feed: %w", err)
		}
		return feed, func() { feed.Close() }, nil

	default:
		feed := pricefeed.NewSimulatedFeed(cfg.Feed.Symbols)
		go feed.Run(ctx, cfg.Feed.TickInterval, onTick)
		return feed, func() {}, nil
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
