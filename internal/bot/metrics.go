package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики ботов
// ============================================================

// BotsRunning - количество запущенных ботов по типам
var BotsRunning = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradecore",
		Subsystem: "bot",
		Name:      "running",
		Help:      "Number of currently running bots",
	},
	[]string{"type"},
)

// TicksTotal - исполненные тики ботов
var TicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "bot",
		Name:      "ticks_total",
		Help:      "Total number of executed bot ticks",
	},
	[]string{"type"},
)

// TickErrors - тики, завершившиеся ошибкой
var TickErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "bot",
		Name:      "tick_errors_total",
		Help:      "Total number of bot ticks that failed",
	},
	[]string{"type"},
)

// FeedFallbacks - тики, исполненные на симулированной цене из-за
// недоступности основного фида
var FeedFallbacks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "bot",
		Name:      "feed_fallbacks_total",
		Help:      "Total number of bot ticks that used the simulated price fallback",
	},
	[]string{"type"},
)

// TicksSkipped - тики, пропущенные из-за ещё исполняющегося предыдущего
var TicksSkipped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "bot",
		Name:      "ticks_skipped_total",
		Help:      "Total number of bot ticks skipped because the previous tick was still running",
	},
	[]string{"type"},
)

// OrdersExecuted - исполненные ноги ботов по ролям
var OrdersExecuted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "bot",
		Name:      "orders_executed_total",
		Help:      "Total number of executed bot order legs",
	},
	[]string{"type", "role"},
)

// DealsCompleted - завершенные DCA сделки (TP или SL)
var DealsCompleted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "bot",
		Name:      "deals_completed_total",
		Help:      "Total number of completed DCA deals",
	},
	[]string{"outcome"},
)

// GridCyclesCompleted - завершенные grid циклы buy→sell
var GridCyclesCompleted = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "bot",
		Name:      "grid_cycles_completed_total",
		Help:      "Total number of completed grid buy/sell cycles",
	},
)
