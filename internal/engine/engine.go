package engine

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/models"
	"tradecore/internal/outbox"
	"tradecore/pkg/utils"
)

// Engine - торговое ядро: леджер, позиции, маржа, риск
//
// Архитектура:
// - Явный handle, создаётся в main и передаётся вниз (без глобального
//   singleton - несколько счетов и тесты работают независимо)
// - Все мутации баланса сериализуются per-account mutex'ом
// - Ценовые тики шардируются по символу: один символ всегда попадает
//   в один shard, внутри shard'а события применяются строго по порядку
// - Персистентность write-behind через outbox, без блокировки горячего пути
//
// Поток данных:
// Feed → OnPriceTick → shard (hash by symbol) → worker → positions update
//      → SL/TP → liquidation → ClosePosition → ledger → outbox → БД
type Engine struct {
	cfg config.EngineConfig

	// Счета по userID
	accounts   map[string]*AccountState
	accountsMu sync.RWMutex

	// Индекс: символ → userID → число открытых позиций
	// Тик трогает только счета с позициями на символе
	symbolIndex map[string]map[string]int
	symbolMu    sync.RWMutex

	// Шардированные каналы ценовых событий
	shards    []chan PriceTick
	numShards int

	queue *outbox.Queue
	hub   Hub
	log   *utils.Logger
}

// PriceTick - событие обновления цены символа
type PriceTick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}

// Hub - интерфейс рассылки обновлений клиентам
//
// Реализуется internal/websocket.Hub; в тестах nil
type Hub interface {
	// BroadcastAccountUpdate отправляет снимок счёта после мутации баланса
	BroadcastAccountUpdate(acc *models.Account)

	// BroadcastPositionUpdate отправляет состояние позиции (open/close/tick)
	BroadcastPositionUpdate(userID string, pos *models.Position)

	// BroadcastNotification отправляет уведомление о событии (SL, TP, ликвидация)
	BroadcastNotification(notif *models.Notification)
}

// NewEngine создаёт торговое ядро
func NewEngine(cfg config.EngineConfig, queue *outbox.Queue, hub Hub, log *utils.Logger) *Engine {
	numShards := cfg.PriceShards
	if numShards < 1 {
		numShards = 4
	}

	queueSize := cfg.PriceQueueSize
	if queueSize < 1 {
		queueSize = 1024
	}

	e := &Engine{
		cfg:         cfg,
		accounts:    make(map[string]*AccountState),
		symbolIndex: make(map[string]map[string]int),
		shards:      make([]chan PriceTick, numShards),
		numShards:   numShards,
		queue:       queue,
		hub:         hub,
		log:         log.WithComponent("engine"),
	}

	for i := 0; i < numShards; i++ {
		e.shards[i] = make(chan PriceTick, queueSize)
	}

	return e
}

// Run запускает воркеры ценовых шардов; блокируется до отмены контекста
//
// Один воркер на shard: события одного символа применяются строго
// последовательно, unrealizedPnl всегда отражает последнюю цену
func (e *Engine) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < e.numShards; i++ {
		wg.Add(1)
		go func(shard chan PriceTick) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case tick := <-shard:
					e.applyTick(tick)
				}
			}
		}(e.shards[i])
	}

	wg.Wait()
	return ctx.Err()
}

// OnPriceTick принимает ценовое событие и направляет его в shard символа
//
// Неблокирующий: при переполнении буфера shard'а событие отбрасывается
// (следующий тик принесёт более свежую цену)
func (e *Engine) OnPriceTick(symbol string, price float64, ts time.Time) {
	if price <= 0 {
		return
	}

	tick := PriceTick{Symbol: symbol, Price: price, Timestamp: ts}

	select {
	case e.shards[e.shardIndex(symbol)] <- tick:
	default:
		TicksDropped.WithLabelValues(symbol).Inc()
	}
}

// shardIndex - детерминированный выбор shard'а по символу
func (e *Engine) shardIndex(symbol string) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32()) % e.numShards
}

// applyTick - полная обработка одного ценового события:
// пересчёт PNL → SL/TP → ликвидация
func (e *Engine) applyTick(tick PriceTick) {
	start := time.Now()

	// Счета с открытыми позициями на символе
	e.symbolMu.RLock()
	users := make([]string, 0, len(e.symbolIndex[tick.Symbol]))
	for userID := range e.symbolIndex[tick.Symbol] {
		users = append(users, userID)
	}
	e.symbolMu.RUnlock()

	for _, userID := range users {
		as, err := e.account(userID)
		if err != nil {
			continue // счёт удалён между снятием индекса и обработкой
		}

		// 1. Пересчёт unrealized PNL по новой цене
		e.updatePositionPrice(as, tick.Symbol, tick.Price)

		// 2. SL/TP: SL проверяется раньше TP, не более одной ноги
		//    на позицию за тик
		for _, trig := range e.collectStopTriggers(as, tick.Symbol, tick.Price) {
			e.closeTriggered(userID, trig)
		}

		// 3. Ликвидация: чистый запрос, закрытие отдельным шагом
		for _, posID := range e.liquidatable(as) {
			e.liquidate(userID, posID)
		}
	}

	TicksProcessed.WithLabelValues(tick.Symbol).Inc()
	TickLatency.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

// updatePositionPrice пересчитывает PNL всех позиций счёта на символе
//
// Вызывается на каждом тике ДО оценки рисков
func (e *Engine) updatePositionPrice(as *AccountState, symbol string, price float64) {
	as.mu.Lock()
	defer as.mu.Unlock()

	touched := false
	for _, pos := range as.positions {
		if pos.Symbol != symbol {
			continue
		}

		pos.CurrentPrice = price

		priceDiff := price - pos.EntryPrice
		if pos.Side == models.SideShort {
			priceDiff = pos.EntryPrice - price
		}

		pos.UnrealizedPnl = priceDiff * pos.Quantity * float64(pos.Leverage)
		pos.UnrealizedPct = pos.UnrealizedPnl / pos.MarginUsed * 100
		touched = true
	}

	if touched {
		as.recompute()
	}
}

// ============================================================
// Реестр счетов
// ============================================================

// account возвращает состояние счёта
func (e *Engine) account(userID string) (*AccountState, error) {
	e.accountsMu.RLock()
	as, ok := e.accounts[userID]
	e.accountsMu.RUnlock()

	if !ok {
		return nil, ErrAccountNotFound
	}
	return as, nil
}

// CreateAccount регистрирует новый счёт
func (e *Engine) CreateAccount(userID string) (models.Account, error) {
	e.accountsMu.Lock()
	if _, ok := e.accounts[userID]; ok {
		e.accountsMu.Unlock()
		return models.Account{}, ErrAccountExists
	}

	as := newAccountState(userID)
	e.accounts[userID] = as
	e.accountsMu.Unlock()

	snap := as.snapshot()
	e.queue.Enqueue(outbox.Write{Kind: outbox.KindAccountUpsert, Key: userID, Payload: snap})

	e.log.Info("account created", utils.UserID(userID))
	return snap, nil
}

// EnsureAccount возвращает счёт, создавая его при отсутствии
func (e *Engine) EnsureAccount(userID string) models.Account {
	if acc, err := e.GetAccount(userID); err == nil {
		return acc
	}
	acc, err := e.CreateAccount(userID)
	if err != nil {
		// Гонка с параллельным созданием - счёт уже есть
		acc, _ = e.GetAccount(userID)
	}
	return acc
}

// RestoreAccount загружает счёт и его открытые позиции из БД при старте
func (e *Engine) RestoreAccount(acc models.Account, positions []models.Position) {
	as := restoreAccountState(acc, positions)

	e.accountsMu.Lock()
	e.accounts[acc.UserID] = as
	e.accountsMu.Unlock()

	for _, pos := range positions {
		e.indexPosition(pos.Symbol, acc.UserID)
	}

	e.log.Info("account restored",
		utils.UserID(acc.UserID),
		utils.Int("open_positions", len(positions)))
}

// ============================================================
// Индекс символов
// ============================================================

func (e *Engine) indexPosition(symbol, userID string) {
	e.symbolMu.Lock()
	defer e.symbolMu.Unlock()

	if e.symbolIndex[symbol] == nil {
		e.symbolIndex[symbol] = make(map[string]int)
	}
	e.symbolIndex[symbol][userID]++
}

func (e *Engine) deindexPosition(symbol, userID string) {
	e.symbolMu.Lock()
	defer e.symbolMu.Unlock()

	users, ok := e.symbolIndex[symbol]
	if !ok {
		return
	}
	users[userID]--
	if users[userID] <= 0 {
		delete(users, userID)
	}
	if len(users) == 0 {
		delete(e.symbolIndex, symbol)
	}
}
