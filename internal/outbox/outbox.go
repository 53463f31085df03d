package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradecore/internal/models"
	"tradecore/pkg/retry"
	"tradecore/pkg/utils"
)

// ============================================================
// Outbox: write-behind персистентность
// ============================================================
//
// Движок и боты сначала фиксируют мутацию в памяти (она авторитетна
// для текущей сессии), затем кладут типизированную запись в очередь.
// Воркер сливает очередь в БД at-least-once с retry; стабильные id
// записей (ключи идемпотентности) делают повторы безопасными.
// Ошибка записи логируется и НЕ откатывает состояние в памяти.

// Ошибки пакета
var (
	ErrQueueFull = errors.New("outbox queue is full")
)

// Kind - тип записи в очереди
type Kind string

const (
	KindAccountUpsert  Kind = "account_upsert"
	KindLedgerEntry    Kind = "ledger_entry"
	KindPositionUpsert Kind = "position_upsert"
	KindPositionDelete Kind = "position_delete"
	KindClosedTrade    Kind = "closed_trade"
	KindBotUpsert      Kind = "bot_upsert"
	KindGridLevels     Kind = "grid_levels"
	KindBotOrder       Kind = "bot_order"
	KindActivityLog    Kind = "activity_log"
)

// Write - одна отложенная запись
//
// Payload - снимок модели на момент постановки в очередь
// (значение, не указатель на живое состояние)
type Write struct {
	Kind     Kind
	Key      string // ключ идемпотентности (id записи)
	Payload  interface{}
	Enqueued time.Time
}

// Store - интерфейс персистентного хранилища
//
// Реализуется internal/repository.PostgresStore.
// Все операции должны быть идемпотентны (upsert / ON CONFLICT).
type Store interface {
	UpsertAccount(ctx context.Context, acc *models.Account) error
	InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	UpsertPosition(ctx context.Context, pos *models.Position) error
	DeletePosition(ctx context.Context, positionID string) error
	InsertClosedTrade(ctx context.Context, trade *models.ClosedTrade) error
	UpsertBot(ctx context.Context, bot *models.Bot) error
	UpsertGridLevels(ctx context.Context, botID string, levels []models.GridLevel) error
	InsertBotOrder(ctx context.Context, order *models.BotOrder) error
	InsertActivityLog(ctx context.Context, log *models.ActivityLog) error
}

// Queue - очередь отложенных записей с фоновым воркером
type Queue struct {
	writes chan Write
	store  Store
	log    *utils.Logger
	cfg    retry.Config
}

// NewQueue создаёт очередь указанной ёмкости
func NewQueue(store Store, size int, log *utils.Logger) *Queue {
	if size < 1 {
		size = 1024
	}

	cfg := retry.AggressiveConfig()
	cfg.RetryIf = retry.RetryIfNotContext

	return &Queue{
		writes: make(chan Write, size),
		store:  store,
		log:    log,
		cfg:    cfg,
	}
}

// Enqueue кладёт запись в очередь без блокировки
//
// При переполнении запись отбрасывается (лог + метрика) - горячий
// путь движка никогда не ждёт персистентность
func (q *Queue) Enqueue(w Write) error {
	w.Enqueued = time.Now()

	select {
	case q.writes <- w:
		QueueDepth.Set(float64(len(q.writes)))
		return nil
	default:
		WritesDropped.WithLabelValues(string(w.Kind)).Inc()
		q.log.Error("outbox queue full, write dropped",
			utils.String("kind", string(w.Kind)),
			utils.String("key", w.Key))
		return ErrQueueFull
	}
}

// Depth возвращает текущую глубину очереди
func (q *Queue) Depth() int {
	return len(q.writes)
}

// Run запускает воркер; блокируется до отмены контекста
//
// Один воркер - единственная горутина, пишущая в БД на горячем пути.
// После отмены контекста дописывает остаток очереди best-effort.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.drainRemaining()
			return
		case w := <-q.writes:
			q.process(ctx, w)
			QueueDepth.Set(float64(len(q.writes)))
		}
	}
}

// drainRemaining пытается дописать остаток очереди при остановке
func (q *Queue) drainRemaining() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		select {
		case w := <-q.writes:
			q.process(ctx, w)
		default:
			return
		}
	}
}

// process применяет одну запись с retry
func (q *Queue) process(ctx context.Context, w Write) {
	start := time.Now()

	err := retry.Do(ctx, func() error {
		return q.dispatch(ctx, w)
	}, q.cfg)

	if err != nil {
		WritesFailed.WithLabelValues(string(w.Kind)).Inc()
		q.log.Error("outbox write failed after retries",
			utils.String("kind", string(w.Kind)),
			utils.String("key", w.Key),
			utils.Err(err))
		return
	}

	WritesProcessed.WithLabelValues(string(w.Kind)).Inc()
	WriteLatency.Observe(float64(time.Since(start).Milliseconds()))
}

// dispatch направляет запись в нужный метод Store
func (q *Queue) dispatch(ctx context.Context, w Write) error {
	switch w.Kind {
	case KindAccountUpsert:
		acc := w.Payload.(models.Account)
		return q.store.UpsertAccount(ctx, &acc)
	case KindLedgerEntry:
		entry := w.Payload.(models.LedgerEntry)
		return q.store.InsertLedgerEntry(ctx, &entry)
	case KindPositionUpsert:
		pos := w.Payload.(models.Position)
		return q.store.UpsertPosition(ctx, &pos)
	case KindPositionDelete:
		return q.store.DeletePosition(ctx, w.Key)
	case KindClosedTrade:
		trade := w.Payload.(models.ClosedTrade)
		return q.store.InsertClosedTrade(ctx, &trade)
	case KindBotUpsert:
		bot := w.Payload.(models.Bot)
		return q.store.UpsertBot(ctx, &bot)
	case KindGridLevels:
		levels := w.Payload.([]models.GridLevel)
		return q.store.UpsertGridLevels(ctx, w.Key, levels)
	case KindBotOrder:
		order := w.Payload.(models.BotOrder)
		return q.store.InsertBotOrder(ctx, &order)
	case KindActivityLog:
		entry := w.Payload.(models.ActivityLog)
		return q.store.InsertActivityLog(ctx, &entry)
	default:
		// Неизвестный тип записи - повторять бессмысленно
		return retry.Permanent(fmt.Errorf("unknown outbox write kind %q", w.Kind))
	}
}
