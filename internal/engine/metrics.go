package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================

// ============ Ценовые события ============

// TicksProcessed - обработанные ценовые тики по символам
var TicksProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "ticks_processed_total",
		Help:      "Total number of processed price ticks",
	},
	[]string{"symbol"},
)

// TicksDropped - тики, отброшенные при переполнении shard буфера
var TicksDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "ticks_dropped_total",
		Help:      "Total number of price ticks dropped due to a full shard buffer",
	},
	[]string{"symbol"},
)

// TickLatency - время полной обработки тика (PNL + риски)
var TickLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "tick_latency_ms",
		Help:      "Time to fully apply one price tick in milliseconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
	},
)

// ============ Позиции и PNL ============

// PositionsOpened - открытые позиции по символу и стороне
var PositionsOpened = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "positions_opened_total",
		Help:      "Total number of opened positions",
	},
	[]string{"symbol", "side"},
)

// PositionsClosed - закрытые позиции по символу и причине
var PositionsClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "positions_closed_total",
		Help:      "Total number of closed positions",
	},
	[]string{"symbol", "reason"},
)

// RealizedPnlTotal - накопленный реализованный PNL (может убывать)
var RealizedPnlTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "realized_pnl_total",
		Help:      "Cumulative realized PnL across all accounts",
	},
)

// ============ Риск-события ============

// StopTriggersTotal - срабатывания SL/TP
var StopTriggersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "risk",
		Name:      "stop_triggers_total",
		Help:      "Number of stop loss / take profit triggers",
	},
	[]string{"symbol", "reason"},
)

// LiquidationsTotal - принудительные ликвидации
var LiquidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "risk",
		Name:      "liquidations_total",
		Help:      "Number of forced liquidations",
	},
	[]string{"symbol"},
)

// ============ Леджер ============

// LedgerEntriesTotal - записи леджера по типам
var LedgerEntriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "ledger",
		Name:      "entries_total",
		Help:      "Total number of ledger entries by type",
	},
	[]string{"type"},
)
