package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Engine   EngineConfig
	Bot      BotConfig
	Feed     FeedConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string

	// Rate limit на клиента (req/sec, burst)
	RateLimit      float64
	RateLimitBurst float64
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// EncryptionKey - 32 байта для AES-256 (шифрование ключей источника котировок)
	EncryptionKey string

	// AdminTokenHash - bcrypt хэш admin токена для Bearer авторизации
	AdminTokenHash string
}

// EngineConfig - параметры торгового ядра
type EngineConfig struct {
	// FeeRate - комиссия как доля от использованной маржи (0.001 = 0.1%)
	FeeRate float64

	// LiquidationThreshold - уровень маржи, ниже которого позиции ликвидируются
	LiquidationThreshold float64

	// PriceShards - количество воркеров маршрутизации цен
	// Цены одного символа всегда попадают в один shard (сохраняется порядок)
	PriceShards int

	// PriceQueueSize - ёмкость очереди цен на shard
	PriceQueueSize int
}

// BotConfig - настройки бот-движков и планировщика
type BotConfig struct {
	// MinTickInterval - нижняя граница частоты тика DCA ботов
	// и фиксированная частота grid ботов
	MinTickInterval time.Duration

	// MaxBotsPerUser - лимит активных ботов на пользователя (0 = без лимита)
	MaxBotsPerUser int

	// FeeRate - комиссия на ноги ботов (доля от оборота)
	FeeRate float64
}

// FeedConfig - настройки источника котировок
type FeedConfig struct {
	// Mode: "simulated" или "websocket"
	Mode string

	// WSURL - адрес внешнего WS источника (для mode=websocket)
	WSURL string

	// Symbols - отслеживаемые пары (для simulated feed)
	Symbols []string

	// TickInterval - частота генерации цен simulated feed
	TickInterval time.Duration

	// WS переподключение
	WSReconnectDelay time.Duration
	WSPingInterval   time.Duration
	WSReadTimeout    time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS:       getEnvAsBool("USE_HTTPS", false),
			CertFile:       getEnv("CERT_FILE", ""),
			KeyFile:        getEnv("KEY_FILE", ""),
			RateLimit:      getEnvAsFloat("RATE_LIMIT", 20),
			RateLimitBurst: getEnvAsFloat("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradecore"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),
		},
		Engine: EngineConfig{
			FeeRate:              getEnvAsFloat("FEE_RATE", 0.001),
			LiquidationThreshold: getEnvAsFloat("LIQUIDATION_THRESHOLD", 0.5),
			PriceShards:          getEnvAsInt("PRICE_SHARDS", 4),
			PriceQueueSize:       getEnvAsInt("PRICE_QUEUE_SIZE", 1024),
		},
		Bot: BotConfig{
			MinTickInterval: getEnvAsDuration("BOT_MIN_TICK_INTERVAL", 5*time.Second),
			MaxBotsPerUser:  getEnvAsInt("MAX_BOTS_PER_USER", 0), // 0 = без лимита
			FeeRate:         getEnvAsFloat("BOT_FEE_RATE", 0.001),
		},
		Feed: FeedConfig{
			Mode:             getEnv("FEED_MODE", "simulated"),
			WSURL:            getEnv("FEED_WS_URL", ""),
			Symbols:          getEnvAsSlice("FEED_SYMBOLS", []string{"BTCUSDT", "ETHUSDT"}),
			TickInterval:     getEnvAsDuration("FEED_TICK_INTERVAL", 1*time.Second),
			WSReconnectDelay: getEnvAsDuration("WS_RECONNECT_DELAY", 1*time.Second),
			WSPingInterval:   getEnvAsDuration("WS_PING_INTERVAL", 15*time.Second),
			WSReadTimeout:    getEnvAsDuration("WS_READ_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования ключей источника котировок
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting feed API keys")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	// ADMIN_TOKEN_HASH обязателен для admin эндпоинтов
	if c.Security.AdminTokenHash == "" {
		return fmt.Errorf("ADMIN_TOKEN_HASH is required for admin authentication")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Валидация параметров engine
	if c.Engine.FeeRate < 0 || c.Engine.FeeRate >= 1 {
		return fmt.Errorf("FEE_RATE must be in [0, 1), got %v", c.Engine.FeeRate)
	}

	if c.Engine.LiquidationThreshold <= 0 || c.Engine.LiquidationThreshold >= 1 {
		return fmt.Errorf("LIQUIDATION_THRESHOLD must be in (0, 1), got %v", c.Engine.LiquidationThreshold)
	}

	if c.Engine.PriceShards < 1 {
		return fmt.Errorf("PRICE_SHARDS must be at least 1, got %d", c.Engine.PriceShards)
	}

	if c.Engine.PriceQueueSize < 1 {
		return fmt.Errorf("PRICE_QUEUE_SIZE must be at least 1, got %d", c.Engine.PriceQueueSize)
	}

	// Валидация бот-параметров
	if c.Bot.MinTickInterval <= 0 {
		return fmt.Errorf("BOT_MIN_TICK_INTERVAL must be positive, got %v", c.Bot.MinTickInterval)
	}

	if c.Bot.MaxBotsPerUser < 0 {
		return fmt.Errorf("MAX_BOTS_PER_USER cannot be negative, got %d", c.Bot.MaxBotsPerUser)
	}

	if c.Bot.FeeRate < 0 || c.Bot.FeeRate >= 1 {
		return fmt.Errorf("BOT_FEE_RATE must be in [0, 1), got %v", c.Bot.FeeRate)
	}

	// Валидация feed
	if c.Feed.Mode != "simulated" && c.Feed.Mode != "websocket" {
		return fmt.Errorf("FEED_MODE must be 'simulated' or 'websocket', got %q", c.Feed.Mode)
	}

	if c.Feed.Mode == "websocket" && c.Feed.WSURL == "" {
		return fmt.Errorf("FEED_WS_URL is required when FEED_MODE=websocket")
	}

	if c.Feed.TickInterval <= 0 {
		return fmt.Errorf("FEED_TICK_INTERVAL must be positive, got %v", c.Feed.TickInterval)
	}

	if c.Feed.WSReadTimeout <= 0 {
		return fmt.Errorf("WS_READ_TIMEOUT must be positive, got %v", c.Feed.WSReadTimeout)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
