// Package integration contains integration tests for the trading core.
//
// These tests verify the correct interaction between components:
// - API integration tests: full HTTP request cycle
// - WebSocket tests: connection, broadcast messaging
// - Database tests: schema, repositories, transactions
//
// Tests skip automatically when the test database is unreachable.
// Run with: go test ./tests/integration/...
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"tradecore/internal/api"
	"tradecore/internal/bot"
	"tradecore/internal/config"
	"tradecore/internal/engine"
	"tradecore/internal/outbox"
	"tradecore/internal/pricefeed"
	"tradecore/internal/repository"
	"tradecore/internal/service"
	"tradecore/internal/websocket"
	"tradecore/pkg/crypto"
	"tradecore/pkg/utils"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

// TestAdminToken - Bearer токен admin API в интеграционных тестах
const TestAdminToken = "test-admin-token"

// TestConfig contains configuration for integration tests
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer encapsulates all components needed for integration testing
type TestServer struct {
	DB       *sql.DB
	Router   *mux.Router
	Server   *httptest.Server
	Hub      *websocket.Hub
	Engine   *engine.Engine
	Queue    *outbox.Queue
	Manager  *bot.Manager
	Feed     *pricefeed.SimulatedFeed
	Store    *repository.PostgresStore
	Services *TestServices
	Cleanup  func()
}

// TestServices contains all service instances for testing
type TestServices struct {
	Account *service.AccountService
	Trade   *service.TradeService
	Bot     *service.BotService
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "tradecore_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	cfg := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := sql.Open(cfg.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer creates a complete test server with all components
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	if err := initTestTables(db); err != nil {
		t.Skipf("Skipping integration test: cannot initialize tables: %v", err)
		return nil
	}

	logger := utils.InitLogger(utils.LogConfig{Level: "error", Format: "text"})

	ctx, cancel := context.WithCancel(context.Background())

	store := repository.NewPostgresStore(db)

	queue := outbox.NewQueue(store, 4096, logger)
	go queue.Run(ctx)

	hub := websocket.NewHub(logger)
	go hub.Run()

	eng := engine.NewEngine(config.EngineConfig{
		FeeRate:              0.001,
		LiquidationThreshold: 0.5,
		PriceShards:          2,
		PriceQueueSize:       256,
	}, queue, hub, logger)
	go eng.Run(ctx)

	feed := pricefeed.NewSimulatedFeed([]string{"BTCUSDT", "ETHUSDT"})

	manager := bot.NewManager(config.BotConfig{
		MinTickInterval: 10 * time.Millisecond,
		FeeRate:         0.001,
	}, eng, feed, queue, hub, logger)

	services := &TestServices{
		Account: service.NewAccountService(eng, store.Ledger, store.Activities, logger),
		Trade:   service.NewTradeService(eng, feed, store.Positions, store.Activities, logger),
		Bot:     service.NewBotService(manager, store.Bots, store.Orders, logger),
	}

	adminHash, err := crypto.HashToken(TestAdminToken)
	if err != nil {
		t.Fatalf("hash admin token: %v", err)
	}

	deps := &api.Dependencies{
		AccountService: services.Account,
		TradeService:   services.Trade,
		BotService:     services.Bot,
		WSHandler:      hub.Handler(),
		AdminTokenHash: adminHash,
		Logger:         logger,
	}
	router := api.SetupRoutes(deps)

	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		manager.Shutdown()
		hub.Stop()
		cancel()
		cleanupTestTables(db)
		dbCleanup()
	}

	return &TestServer{
		DB:       db,
		Router:   router,
		Server:   server,
		Hub:      hub,
		Engine:   eng,
		Queue:    queue,
		Manager:  manager,
		Feed:     feed,
		Store:    store,
		Services: services,
		Cleanup:  cleanup,
	}
}

// initTestTables creates tables for testing (mirrors migrations/001_init.sql)
func initTestTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			user_id VARCHAR(64) PRIMARY KEY,
			balance DECIMAL(20, 8) NOT NULL DEFAULT 0,
			equity DECIMAL(20, 8) NOT NULL DEFAULT 0,
			margin_used DECIMAL(20, 8) NOT NULL DEFAULT 0,
			free_margin DECIMAL(20, 8) NOT NULL DEFAULT 0,
			unrealized_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_deposited DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_withdrawn DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			type VARCHAR(20) NOT NULL,
			amount DECIMAL(20, 8) NOT NULL,
			balance_before DECIMAL(20, 8) NOT NULL,
			balance_after DECIMAL(20, 8) NOT NULL,
			reference_id VARCHAR(36) DEFAULT '',
			actor VARCHAR(64) DEFAULT '',
			reason TEXT DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			current_price DECIMAL(20, 8) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			leverage INT NOT NULL DEFAULT 1,
			margin_used DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8),
			take_profit DECIMAL(20, 8),
			unrealized_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			unrealized_pnl_percent DECIMAL(10, 4) NOT NULL DEFAULT 0,
			source VARCHAR(10) NOT NULL DEFAULT 'manual',
			market_type VARCHAR(10) NOT NULL DEFAULT 'futures',
			opened_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS closed_trades (
			id VARCHAR(36) PRIMARY KEY,
			position_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			leverage INT NOT NULL DEFAULT 1,
			margin_used DECIMAL(20, 8) NOT NULL,
			realized_pnl DECIMAL(20, 8) NOT NULL,
			fee DECIMAL(20, 8) NOT NULL DEFAULT 0,
			close_reason VARCHAR(30) NOT NULL,
			source VARCHAR(10) NOT NULL DEFAULT 'manual',
			opened_at TIMESTAMP NOT NULL,
			closed_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS bots (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			type VARCHAR(10) NOT NULL,
			pair VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'stopped',
			invested_amount DECIMAL(20, 8) NOT NULL DEFAULT 0,
			current_value DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_trades INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS dca_configs (
			bot_id VARCHAR(36) PRIMARY KEY REFERENCES bots(id) ON DELETE CASCADE,
			order_amount DECIMAL(20, 8) NOT NULL,
			frequency_seconds BIGINT NOT NULL,
			take_profit_pct DECIMAL(10, 4) NOT NULL,
			stop_loss_pct DECIMAL(10, 4) NOT NULL DEFAULT 0,
			trailing_enabled BOOLEAN NOT NULL DEFAULT false,
			trailing_deviation DECIMAL(10, 4) NOT NULL DEFAULT 0,
			safety_enabled BOOLEAN NOT NULL DEFAULT false,
			safety_order_size DECIMAL(20, 8) NOT NULL DEFAULT 0,
			safety_max_count INT NOT NULL DEFAULT 0,
			safety_step_pct DECIMAL(10, 4) NOT NULL DEFAULT 0,
			safety_step_scale DECIMAL(10, 4) NOT NULL DEFAULT 1,
			safety_volume_scale DECIMAL(10, 4) NOT NULL DEFAULT 1,
			avg_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_base_bought DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_quote_spent DECIMAL(20, 8) NOT NULL DEFAULT 0,
			active_safety_count INT NOT NULL DEFAULT 0,
			peak_profit_pct DECIMAL(10, 4) NOT NULL DEFAULT 0,
			deal_count INT NOT NULL DEFAULT 0,
			last_buy_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS grid_configs (
			bot_id VARCHAR(36) PRIMARY KEY REFERENCES bots(id) ON DELETE CASCADE,
			upper_price DECIMAL(20, 8) NOT NULL,
			lower_price DECIMAL(20, 8) NOT NULL,
			grid_count INT NOT NULL,
			grid_type VARCHAR(12) NOT NULL DEFAULT 'arithmetic',
			total_investment DECIMAL(20, 8) NOT NULL,
			per_grid_amount DECIMAL(20, 8) NOT NULL DEFAULT 0,
			strategy VARCHAR(10) NOT NULL DEFAULT 'neutral',
			stop_upper DECIMAL(20, 8) NOT NULL DEFAULT 0,
			stop_lower DECIMAL(20, 8) NOT NULL DEFAULT 0,
			grid_profit DECIMAL(20, 8) NOT NULL DEFAULT 0,
			float_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_base_held DECIMAL(20, 8) NOT NULL DEFAULT 0,
			avg_buy_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			completed_cycles INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS grid_levels (
			bot_id VARCHAR(36) NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
			level_index INT NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			buy_filled BOOLEAN NOT NULL DEFAULT false,
			sell_filled BOOLEAN NOT NULL DEFAULT false,
			buy_order_id VARCHAR(36) DEFAULT '',
			sell_order_id VARCHAR(36) DEFAULT '',
			quantity DECIMAL(20, 8) NOT NULL DEFAULT 0,
			PRIMARY KEY (bot_id, level_index)
		)`,
		`CREATE TABLE IF NOT EXISTS bot_orders (
			id VARCHAR(36) PRIMARY KEY,
			bot_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			pair VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT '',
			quantity DECIMAL(20, 8) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			total DECIMAL(20, 8) NOT NULL,
			fee DECIMAL(20, 8) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id SERIAL PRIMARY KEY,
			actor VARCHAR(64) NOT NULL,
			action VARCHAR(30) NOT NULL,
			target_user VARCHAR(64) NOT NULL,
			prev_value DECIMAL(20, 8) NOT NULL DEFAULT 0,
			new_value DECIMAL(20, 8) NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// cleanupTestTables truncates all test tables
func cleanupTestTables(db *sql.DB) {
	tables := []string{
		"activity_log",
		"bot_orders",
		"grid_levels",
		"grid_configs",
		"dca_configs",
		"bots",
		"closed_trades",
		"positions",
		"ledger_entries",
		"accounts",
	}

	for _, table := range tables {
		db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
}

// TruncateTable truncates a specific table for testing
func TruncateTable(db *sql.DB, tableName string) error {
	_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tableName))
	return err
}
