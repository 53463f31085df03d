package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики outbox воркера
// ============================================================

// QueueDepth - текущая глубина очереди
var QueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradecore",
		Subsystem: "outbox",
		Name:      "queue_depth",
		Help:      "Current number of pending writes in the outbox queue",
	},
)

// WritesProcessed - успешно записанные записи по типам
var WritesProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "outbox",
		Name:      "writes_processed_total",
		Help:      "Total number of outbox writes persisted",
	},
	[]string{"kind"},
)

// WritesFailed - записи, не прошедшие после всех retry
var WritesFailed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "outbox",
		Name:      "writes_failed_total",
		Help:      "Total number of outbox writes dropped after exhausting retries",
	},
	[]string{"kind"},
)

// WritesDropped - записи, отброшенные из-за переполнения очереди
var WritesDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "outbox",
		Name:      "writes_dropped_total",
		Help:      "Total number of outbox writes dropped due to a full queue",
	},
	[]string{"kind"},
)

// WriteLatency - время записи в БД (включая retry)
var WriteLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "tradecore",
		Subsystem: "outbox",
		Name:      "write_latency_ms",
		Help:      "Time to persist one outbox write in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	},
)
