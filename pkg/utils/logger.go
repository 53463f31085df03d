package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - структурированное логирование на базе zap
//
// Назначение:
// Единая настройка логирования для всех компонентов торгового ядра.
//
// Использование:
//  1. logger := utils.InitLogger(utils.LogConfig{Level: "info", Format: "json"})
//  2. logger.Info("position closed", utils.Symbol("BTCUSDT"), utils.PNL(12.5))
//  3. Глобальный логгер: utils.InitGlobalLogger(cfg); utils.Info(...)

// LogConfig - конфигурация логгера
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json, text
	Output      string // путь к файлу; пусто = stderr
	Development bool   // режим разработки (stacktrace на warn)
}

// Logger оборачивает zap.Logger и его sugar вариант
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// parseLevel преобразует строковый уровень в zapcore.Level
// Неизвестные значения трактуются как info
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger создает и настраивает новый Logger
//
// При недоступном файле вывода происходит fallback на stderr (без паники)
func InitLogger(cfg LogConfig) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "text" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	// Выбор вывода: файл или stderr
	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			sink = zapcore.AddSync(f)
		}
		// При ошибке остаёмся на stderr
	}

	core := zapcore.NewCore(encoder, sink, parseLevel(cfg.Level))

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)

	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// Sugar возвращает SugaredLogger для printf-style логирования
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// With возвращает новый Logger с добавленными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// WithComponent добавляет поле component (engine, scheduler, outbox, ...)
func (l *Logger) WithComponent(component string) *Logger {
	return l.With(zap.String("component", component))
}

// WithSymbol добавляет поле symbol
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(zap.String("symbol", symbol))
}

// WithUserID добавляет поле user_id
func (l *Logger) WithUserID(userID string) *Logger {
	return l.With(zap.String("user_id", userID))
}

// WithBotID добавляет поле bot_id
func (l *Logger) WithBotID(botID string) *Logger {
	return l.With(zap.String("bot_id", botID))
}

// ============================================================
// Глобальный логгер
// ============================================================

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

// InitGlobalLogger инициализирует глобальный логгер
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger устанавливает глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный логгер, создавая дефолтный при необходимости
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{Level: "info", Format: "json"})
	}
	return globalLogger
}

// L - короткий алиас для GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// Debug логирует через глобальный логгер
func Debug(msg string, fields ...zap.Field) {
	GetGlobalLogger().Logger.Debug(msg, fields...)
}

// Info логирует через глобальный логгер
func Info(msg string, fields ...zap.Field) {
	GetGlobalLogger().Logger.Info(msg, fields...)
}

// Warn логирует через глобальный логгер
func Warn(msg string, fields ...zap.Field) {
	GetGlobalLogger().Logger.Warn(msg, fields...)
}

// Error логирует через глобальный логгер
func Error(msg string, fields ...zap.Field) {
	GetGlobalLogger().Logger.Error(msg, fields...)
}

// Fatal логирует через глобальный логгер и завершает процесс
func Fatal(msg string, fields ...zap.Field) {
	GetGlobalLogger().Logger.Fatal(msg, fields...)
}

// Debugf - printf-style логирование через глобальный логгер
func Debugf(template string, args ...interface{}) {
	GetGlobalLogger().sugar.Debugf(template, args...)
}

// Infof - printf-style логирование через глобальный логгер
func Infof(template string, args ...interface{}) {
	GetGlobalLogger().sugar.Infof(template, args...)
}

// Warnf - printf-style логирование через глобальный логгер
func Warnf(template string, args ...interface{}) {
	GetGlobalLogger().sugar.Warnf(template, args...)
}

// Errorf - printf-style логирование через глобальный логгер
func Errorf(template string, args ...interface{}) {
	GetGlobalLogger().sugar.Errorf(template, args...)
}

// fieldsToInterface конвертирует zap.Field в плоский список ключ-значение
// Используется при передаче полей в sugar логгер
func fieldsToInterface(fields []zap.Field) []interface{} {
	result := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		result = append(result, f.Key, f.Interface)
	}
	return result
}

// ============================================================
// Конструкторы типовых полей торгового ядра
// ============================================================

// Symbol - поле symbol (торговая пара)
func Symbol(symbol string) zap.Field {
	return zap.String("symbol", symbol)
}

// BotID - поле bot_id
func BotID(botID string) zap.Field {
	return zap.String("bot_id", botID)
}

// OrderID - поле order_id
func OrderID(orderID string) zap.Field {
	return zap.String("order_id", orderID)
}

// PositionID - поле position_id
func PositionID(positionID string) zap.Field {
	return zap.String("position_id", positionID)
}

// Price - поле price
func Price(price float64) zap.Field {
	return zap.Float64("price", price)
}

// Quantity - поле quantity
func Quantity(qty float64) zap.Field {
	return zap.Float64("quantity", qty)
}

// Amount - поле amount (сумма в котируемой валюте)
func Amount(amount float64) zap.Field {
	return zap.Float64("amount", amount)
}

// PNL - поле pnl
func PNL(pnl float64) zap.Field {
	return zap.Float64("pnl", pnl)
}

// Side - поле side (long/short, buy/sell)
func Side(side string) zap.Field {
	return zap.String("side", side)
}

// State - поле state (статус бота или позиции)
func State(state string) zap.Field {
	return zap.String("state", state)
}

// Latency - поле latency_ms
func Latency(ms float64) zap.Field {
	return zap.Float64("latency_ms", ms)
}

// UserID - поле user_id
func UserID(userID string) zap.Field {
	return zap.String("user_id", userID)
}

// Component - поле component
func Component(component string) zap.Field {
	return zap.String("component", component)
}

// Reason - поле reason (причина закрытия/действия)
func Reason(reason string) zap.Field {
	return zap.String("reason", reason)
}

// ============================================================
// Переэкспорт стандартных конструкторов zap
// ============================================================

var (
	String  = zap.String
	Int     = zap.Int
	Int64   = zap.Int64
	Float64 = zap.Float64
	Bool    = zap.Bool
	Err     = zap.Error
	Any     = zap.Any
)
