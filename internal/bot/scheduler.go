package bot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/engine"
	"tradecore/internal/models"
	"tradecore/internal/outbox"
	"tradecore/internal/pricefeed"
	"tradecore/pkg/utils"
)

// Notifier рассылает события ботов подписчикам
type Notifier interface {
	BroadcastBotUpdate(userID string, bot *models.Bot)
	BroadcastNotification(n *models.Notification)
}

// Manager - планировщик ботов
//
// Держит по одной горутине на запущенного бота. Каждый бот тикает
// с фиксированным интервалом; тик читает текущую цену из фида и
// прогоняет стратегию (DCA или Grid). Балансовые мутации идут
// через торговое ядро, персистентность - через очередь записи.
type Manager struct {
	cfg   config.BotConfig
	eng   *engine.Engine
	feed  pricefeed.Feed
	queue *outbox.Queue
	hub   Notifier
	log   *utils.Logger

	// fallback - симулированный walk на случай недоступности фида:
	// ошибка FetchPrice не должна замораживать тики ботов
	fallback *pricefeed.SimulatedFeed

	mu    sync.Mutex
	tasks map[string]*botTask
}

// botTask - состояние одного запущенного бота
type botTask struct {
	// mu сериализует доступ к bot между тиком и внешними запросами
	mu  sync.Mutex
	bot *models.Bot

	// Уровни сетки (только для grid ботов), под mu
	levels []models.GridLevel

	cancel context.CancelFunc
	done   chan struct{}
	inTick int32 // atomic: защита от наложения тиков
}

// NewManager создаёт планировщик
func NewManager(cfg config.BotConfig, eng *engine.Engine, feed pricefeed.Feed, queue *outbox.Queue, hub Notifier, log *utils.Logger) *Manager {
	if cfg.MinTickInterval <= 0 {
		cfg.MinTickInterval = 5 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		eng:      eng,
		feed:     feed,
		queue:    queue,
		hub:      hub,
		log:      log.WithComponent("bot_manager"),
		fallback: pricefeed.NewSimulatedFeed(nil),
		tasks:    make(map[string]*botTask),
	}
}

// StartBot запускает бота: stopped/paused → running
//
// Повторный запуск уже работающего бота - no-op без ошибки.
func (m *Manager) StartBot(b *models.Bot) error {
	if err := ValidateBot(b); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[b.ID]; ok {
		task.mu.Lock()
		status := task.bot.Status
		task.mu.Unlock()
		if status == models.BotStatusRunning {
			return nil
		}
	}

	if !CanTransition(b.Status, models.BotStatusRunning) {
		return fmt.Errorf("%w: %s -> running", ErrInvalidTransition, b.Status)
	}

	if m.cfg.MaxBotsPerUser > 0 {
		running := 0
		for _, task := range m.tasks {
			task.mu.Lock()
			if task.bot.UserID == b.UserID && task.bot.Status == models.BotStatusRunning {
				running++
			}
			task.mu.Unlock()
		}
		if running >= m.cfg.MaxBotsPerUser {
			return ErrBotLimitReached
		}
	}

	task, ok := m.tasks[b.ID]
	if !ok {
		task = &botTask{bot: b}
		m.tasks[b.ID] = task
	}

	task.mu.Lock()
	task.bot = b
	task.bot.Status = models.BotStatusRunning
	task.bot.UpdatedAt = time.Now()
	if b.Type == models.BotTypeGrid && len(task.levels) == 0 {
		task.levels = generateGridLevels(b.ID, b.Grid)
		m.enqueue(outbox.KindGridLevels, b.ID, gridLevelsSnapshot(b.ID, task.levels))
	}
	snap := *task.bot
	task.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	task.cancel = cancel
	task.done = make(chan struct{})

	go m.run(ctx, task)

	BotsRunning.WithLabelValues(b.Type).Inc()
	m.persistBot(&snap)
	m.log.Info("bot started",
		utils.BotID(b.ID),
		utils.UserID(b.UserID),
		utils.String("type", b.Type),
		utils.Symbol(b.Pair))
	return nil
}

// PauseBot приостанавливает бота с сохранением состояния
func (m *Manager) PauseBot(botID string) error {
	return m.halt(botID, models.BotStatusPaused)
}

// StopBot останавливает бота
func (m *Manager) StopBot(botID string) error {
	return m.halt(botID, models.BotStatusStopped)
}

// halt переводит бота в пассивный статус: гасит таймер, дожидается
// завершения текущего тика и лишь затем персистит новый статус
func (m *Manager) halt(botID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[botID]
	if !ok {
		return ErrBotNotFound
	}

	task.mu.Lock()
	from := task.bot.Status
	task.mu.Unlock()

	if from == status {
		return nil
	}
	if !CanTransition(from, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
	}

	if task.cancel != nil {
		task.cancel()
		<-task.done
		task.cancel = nil
	}

	task.mu.Lock()
	task.bot.Status = status
	task.bot.UpdatedAt = time.Now()
	snap := *task.bot
	task.mu.Unlock()

	if from == models.BotStatusRunning {
		BotsRunning.WithLabelValues(snap.Type).Dec()
	}
	m.persistBot(&snap)
	m.log.Info("bot halted", utils.BotID(botID), utils.State(status))
	return nil
}

// Forget выбрасывает остановленного бота из планировщика
//
// Вызывается сервисом при удалении. Работающий бот удалить нельзя.
func (m *Manager) Forget(botID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[botID]
	if !ok {
		return nil
	}
	task.mu.Lock()
	running := task.bot.Status == models.BotStatusRunning
	task.mu.Unlock()
	if running {
		return ErrBotAlreadyRunning
	}
	delete(m.tasks, botID)
	return nil
}

// GetBot возвращает снимок состояния бота
func (m *Manager) GetBot(botID string) (models.Bot, bool) {
	m.mu.Lock()
	task, ok := m.tasks[botID]
	m.mu.Unlock()
	if !ok {
		return models.Bot{}, false
	}

	task.mu.Lock()
	defer task.mu.Unlock()
	snap := *task.bot
	if task.bot.DCA != nil {
		dca := *task.bot.DCA
		snap.DCA = &dca
	}
	if task.bot.Grid != nil {
		grid := *task.bot.Grid
		snap.Grid = &grid
	}
	return snap, true
}

// GetGridLevels возвращает снимок уровней сетки бота
func (m *Manager) GetGridLevels(botID string) ([]models.GridLevel, bool) {
	m.mu.Lock()
	task, ok := m.tasks[botID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	task.mu.Lock()
	defer task.mu.Unlock()
	out := make([]models.GridLevel, len(task.levels))
	copy(out, task.levels)
	return out, true
}

// Restore восстанавливает ботов после рестарта
//
// Боты со статусом running перезапускаются, остальные регистрируются
// пассивно, чтобы pause/stop/delete работали без обращения к БД.
func (m *Manager) Restore(bots []models.Bot, levels map[string][]models.GridLevel) {
	for i := range bots {
		b := bots[i]

		// Уровни сетки регистрируются до запуска, чтобы первый тик
		// и StartBot видели восстановленное состояние, а не свежее
		task := &botTask{bot: &b}
		if lv, ok := levels[b.ID]; ok {
			task.levels = lv
		}
		m.mu.Lock()
		m.tasks[b.ID] = task
		m.mu.Unlock()

		if b.Status == models.BotStatusRunning {
			b.Status = models.BotStatusPaused
			if err := m.StartBot(&b); err != nil {
				m.log.Error("bot restore failed", utils.BotID(b.ID), utils.Err(err))
			}
		}
	}
	m.log.Info("bots restored", utils.Int("count", len(bots)))
}

// Shutdown останавливает все горутины ботов без смены статуса
//
// Статусы не трогаем: после рестарта Restore перезапустит running ботов.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, task := range m.tasks {
		if task.cancel != nil {
			task.cancel()
			<-task.done
			task.cancel = nil
		}
	}
	m.log.Info("bot manager stopped")
}

// ============================================================
// Цикл исполнения
// ============================================================

// run - горутина бота: немедленный первый тик, затем по таймеру
func (m *Manager) run(ctx context.Context, task *botTask) {
	defer close(task.done)

	m.tick(ctx, task)

	ticker := time.NewTicker(m.tickInterval(task))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, task)
		}
	}
}

// tickInterval выбирает каденцию бота: DCA тикает с частотой покупок
// (но не чаще MinTickInterval), grid - всегда с MinTickInterval
func (m *Manager) tickInterval(task *botTask) time.Duration {
	task.mu.Lock()
	defer task.mu.Unlock()

	if task.bot.Type == models.BotTypeDCA && task.bot.DCA != nil &&
		task.bot.DCA.Frequency > m.cfg.MinTickInterval {
		return task.bot.DCA.Frequency
	}
	return m.cfg.MinTickInterval
}

// tick - один проход стратегии бота
func (m *Manager) tick(ctx context.Context, task *botTask) {
	task.mu.Lock()
	botType := task.bot.Type
	pair := task.bot.Pair
	task.mu.Unlock()

	// Медленный предыдущий тик не должен накладываться на новый
	if !atomic.CompareAndSwapInt32(&task.inTick, 0, 1) {
		TicksSkipped.WithLabelValues(botType).Inc()
		return
	}
	defer atomic.StoreInt32(&task.inTick, 0)

	// Недоступность фида не фатальна: тик продолжается на цене
	// симулированного walk того же символа
	price, err := m.feed.FetchPrice(ctx, pair)
	if err != nil {
		FeedFallbacks.WithLabelValues(botType).Inc()
		m.log.Warn("bot tick: price unavailable, using simulated fallback",
			utils.Symbol(pair), utils.Err(err))
		price, _ = m.fallback.FetchPrice(ctx, pair)
	}

	TicksTotal.WithLabelValues(botType).Inc()

	var changed bool
	switch botType {
	case models.BotTypeDCA:
		changed, err = m.dcaTick(task, price)
	case models.BotTypeGrid:
		changed, err = m.gridTick(task, price)
	default:
		err = ErrUnknownBotType
	}

	if err != nil {
		TickErrors.WithLabelValues(botType).Inc()
		task.mu.Lock()
		botID := task.bot.ID
		userID := task.bot.UserID
		task.mu.Unlock()
		m.log.Error("bot tick failed", utils.BotID(botID), utils.Err(err))
		m.notify(&models.Notification{
			Timestamp: time.Now(),
			Type:      models.NotificationTypeError,
			Severity:  models.SeverityError,
			UserID:    userID,
			BotID:     &botID,
			Message:   fmt.Sprintf("Ошибка тика бота: %v", err),
		})
		return
	}

	if changed {
		task.mu.Lock()
		snap := *task.bot
		if task.bot.DCA != nil {
			dca := *task.bot.DCA
			snap.DCA = &dca
		}
		if task.bot.Grid != nil {
			grid := *task.bot.Grid
			snap.Grid = &grid
		}
		task.mu.Unlock()
		m.persistBot(&snap)
	}
}

// ============================================================
// Персистентность и события
// ============================================================

// persistBot ставит снимок бота в очередь записи и рассылает подписчикам
func (m *Manager) persistBot(b *models.Bot) {
	m.enqueue(outbox.KindBotUpsert, b.ID, *b)
	if m.hub != nil {
		m.hub.BroadcastBotUpdate(b.UserID, b)
	}
}

// recordOrder фиксирует ногу бота: запись в БД и метрика
func (m *Manager) recordOrder(o models.BotOrder) {
	m.enqueue(outbox.KindBotOrder, o.ID, o)
	role := o.Role
	botType := models.BotTypeDCA
	if o.Role == models.OrderRoleGridBuy || o.Role == models.OrderRoleGridSell {
		botType = models.BotTypeGrid
	}
	OrdersExecuted.WithLabelValues(botType, role).Inc()
}

func (m *Manager) enqueue(kind outbox.Kind, key string, payload interface{}) {
	if m.queue == nil {
		return
	}
	if err := m.queue.Enqueue(outbox.Write{Kind: kind, Key: key, Payload: payload}); err != nil {
		m.log.Error("bot persistence enqueue failed",
			utils.String("kind", string(kind)), utils.Err(err))
	}
}

func (m *Manager) notify(n *models.Notification) {
	if m.hub != nil {
		m.hub.BroadcastNotification(n)
	}
}

// ============================================================
// Валидация конфигурации
// ============================================================

// ValidateBot проверяет полноту и согласованность конфигурации
func ValidateBot(b *models.Bot) error {
	if b.ID == "" || b.UserID == "" || b.Pair == "" {
		return fmt.Errorf("%w: id, user_id and pair are required", ErrInvalidBotConfig)
	}

	switch b.Type {
	case models.BotTypeDCA:
		return validateDCAConfig(b.DCA)
	case models.BotTypeGrid:
		return validateGridConfig(b.Grid)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBotType, b.Type)
	}
}

func validateDCAConfig(cfg *models.DCAConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: dca config is required", ErrInvalidBotConfig)
	}
	if cfg.OrderAmount <= 0 {
		return fmt.Errorf("%w: order_amount must be positive", ErrInvalidBotConfig)
	}
	if cfg.Frequency <= 0 {
		return fmt.Errorf("%w: frequency must be positive", ErrInvalidBotConfig)
	}
	if cfg.TakeProfitPct <= 0 {
		return fmt.Errorf("%w: take_profit_pct must be positive", ErrInvalidBotConfig)
	}
	if cfg.StopLossPct != nil && *cfg.StopLossPct <= 0 {
		return fmt.Errorf("%w: stop_loss_pct must be positive", ErrInvalidBotConfig)
	}
	if cfg.TrailingEnabled && cfg.TrailingDeviation <= 0 {
		return fmt.Errorf("%w: trailing_deviation must be positive", ErrInvalidBotConfig)
	}
	if cfg.SafetyEnabled {
		if cfg.SafetyOrderSize <= 0 || cfg.SafetyMaxCount <= 0 || cfg.SafetyStepPct <= 0 {
			return fmt.Errorf("%w: safety order parameters must be positive", ErrInvalidBotConfig)
		}
		if cfg.SafetyStepScale < 1 || cfg.SafetyVolumeScale < 1 {
			return fmt.Errorf("%w: safety scales must be >= 1", ErrInvalidBotConfig)
		}
	}
	return nil
}

func validateGridConfig(cfg *models.GridConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: grid config is required", ErrInvalidBotConfig)
	}
	if cfg.LowerPrice <= 0 || cfg.UpperPrice <= cfg.LowerPrice {
		return fmt.Errorf("%w: require 0 < lower_price < upper_price", ErrInvalidBotConfig)
	}
	if cfg.GridCount < 2 {
		return fmt.Errorf("%w: grid_count must be at least 2", ErrInvalidBotConfig)
	}
	if cfg.GridType != models.GridTypeArithmetic && cfg.GridType != models.GridTypeGeometric {
		return fmt.Errorf("%w: grid_type must be arithmetic or geometric", ErrInvalidBotConfig)
	}
	if cfg.TotalInvestment <= 0 {
		return fmt.Errorf("%w: total_investment must be positive", ErrInvalidBotConfig)
	}
	if cfg.StopUpper != 0 && cfg.StopUpper <= cfg.UpperPrice {
		return fmt.Errorf("%w: stop_upper must exceed upper_price", ErrInvalidBotConfig)
	}
	if cfg.StopLower != 0 && cfg.StopLower >= cfg.LowerPrice {
		return fmt.Errorf("%w: stop_lower must be below lower_price", ErrInvalidBotConfig)
	}
	return nil
}
