package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradecore/internal/bot"
	"tradecore/internal/models"
)

// mockScheduler имитирует планировщик ботов
type mockScheduler struct {
	mu       sync.Mutex
	bots     map[string]models.Bot
	levels   map[string][]models.GridLevel
	startErr error
	started  []string
	stopped  []string
	restored []models.Bot
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{
		bots:   make(map[string]models.Bot),
		levels: make(map[string][]models.GridLevel),
	}
}

func (m *mockScheduler) StartBot(b *models.Bot) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := *b
	snap.Status = models.BotStatusRunning
	m.bots[b.ID] = snap
	m.started = append(m.started, b.ID)
	return nil
}

func (m *mockScheduler) setStatus(botID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[botID]
	if !ok {
		return bot.ErrBotNotFound
	}
	b.Status = status
	m.bots[botID] = b
	return nil
}

func (m *mockScheduler) PauseBot(botID string) error {
	return m.setStatus(botID, models.BotStatusPaused)
}

func (m *mockScheduler) StopBot(botID string) error {
	m.mu.Lock()
	m.stopped = append(m.stopped, botID)
	m.mu.Unlock()
	return m.setStatus(botID, models.BotStatusStopped)
}

func (m *mockScheduler) Forget(botID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[botID]
	if !ok {
		return nil
	}
	if b.Status == models.BotStatusRunning {
		return bot.ErrBotAlreadyRunning
	}
	delete(m.bots, botID)
	return nil
}

func (m *mockScheduler) GetBot(botID string) (models.Bot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[botID]
	return b, ok
}

func (m *mockScheduler) GetGridLevels(botID string) ([]models.GridLevel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.levels[botID]
	return ls, ok
}

func (m *mockScheduler) Restore(bots []models.Bot, levels map[string][]models.GridLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restored = append(m.restored, bots...)
	for id, ls := range levels {
		m.levels[id] = ls
	}
}

func newBotService(t *testing.T) (*BotService, *mockScheduler, *mockBotRepo, *mockOrderReader) {
	t.Helper()
	manager := newMockScheduler()
	repo := newMockBotRepo()
	orders := &mockOrderReader{}
	svc := NewBotService(manager, repo, orders, testLogger(t))
	return svc, manager, repo, orders
}

func validDCARequest(userID string) CreateBotRequest {
	return CreateBotRequest{
		UserID: userID,
		Type:   models.BotTypeDCA,
		Pair:   "BTCUSDT",
		DCA: &models.DCAConfig{
			OrderAmount:   100,
			Frequency:     time.Hour,
			TakeProfitPct: 5,
		},
	}
}

func validGridRequest(userID string) CreateBotRequest {
	return CreateBotRequest{
		UserID: userID,
		Type:   models.BotTypeGrid,
		Pair:   "ETHUSDT",
		Grid: &models.GridConfig{
			LowerPrice:      90,
			UpperPrice:      110,
			GridCount:       4,
			GridType:        models.GridTypeArithmetic,
			TotalInvestment: 100,
		},
	}
}

func TestBotService_CreateBot(t *testing.T) {
	svc, _, repo, _ := newBotService(t)

	b, err := svc.CreateBot(context.Background(), validDCARequest("u1"))
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}
	if b.ID == "" {
		t.Error("expected generated bot id")
	}
	if b.Status != models.BotStatusStopped {
		t.Errorf("status = %q, want stopped", b.Status)
	}
	if b.DCA.BotID != b.ID {
		t.Errorf("dca config bot_id = %q, want %q", b.DCA.BotID, b.ID)
	}

	stored, err := repo.GetByID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("bot not persisted: %v", err)
	}
	if stored.UserID != "u1" {
		t.Errorf("stored user = %q", stored.UserID)
	}
}

func TestBotService_CreateBot_InvalidConfig(t *testing.T) {
	svc, _, _, _ := newBotService(t)

	req := validDCARequest("u1")
	req.DCA.OrderAmount = 0
	if _, err := svc.CreateBot(context.Background(), req); !errors.Is(err, bot.ErrInvalidBotConfig) {
		t.Errorf("expected ErrInvalidBotConfig, got %v", err)
	}

	req = validGridRequest("u1")
	req.Grid.LowerPrice = 120 // выше верхней границы
	if _, err := svc.CreateBot(context.Background(), req); !errors.Is(err, bot.ErrInvalidBotConfig) {
		t.Errorf("expected ErrInvalidBotConfig, got %v", err)
	}
}

func TestBotService_StartStop(t *testing.T) {
	svc, manager, _, _ := newBotService(t)
	ctx := context.Background()

	created, err := svc.CreateBot(ctx, validDCARequest("u1"))
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}

	started, err := svc.StartBot(ctx, "u1", created.ID)
	if err != nil {
		t.Fatalf("StartBot: %v", err)
	}
	if started.Status != models.BotStatusRunning {
		t.Errorf("status after start = %q", started.Status)
	}
	if len(manager.started) != 1 || manager.started[0] != created.ID {
		t.Errorf("scheduler start calls = %v", manager.started)
	}

	stopped, err := svc.StopBot(ctx, "u1", created.ID)
	if err != nil {
		t.Fatalf("StopBot: %v", err)
	}
	if stopped.Status != models.BotStatusStopped {
		t.Errorf("status after stop = %q", stopped.Status)
	}
}

func TestBotService_AccessDenied(t *testing.T) {
	svc, _, _, _ := newBotService(t)
	ctx := context.Background()

	created, err := svc.CreateBot(ctx, validDCARequest("u1"))
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}

	if _, err := svc.GetBot(ctx, "u2", created.ID); !errors.Is(err, ErrBotAccessDenied) {
		t.Errorf("expected ErrBotAccessDenied, got %v", err)
	}
	if _, err := svc.StartBot(ctx, "u2", created.ID); !errors.Is(err, ErrBotAccessDenied) {
		t.Errorf("expected ErrBotAccessDenied on start, got %v", err)
	}
	if err := svc.DeleteBot(ctx, "u2", created.ID); !errors.Is(err, ErrBotAccessDenied) {
		t.Errorf("expected ErrBotAccessDenied on delete, got %v", err)
	}
}

func TestBotService_DeleteRunningBot(t *testing.T) {
	svc, _, repo, _ := newBotService(t)
	ctx := context.Background()

	created, err := svc.CreateBot(ctx, validDCARequest("u1"))
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}
	if _, err := svc.StartBot(ctx, "u1", created.ID); err != nil {
		t.Fatalf("StartBot: %v", err)
	}

	if err := svc.DeleteBot(ctx, "u1", created.ID); !errors.Is(err, bot.ErrBotAlreadyRunning) {
		t.Errorf("expected ErrBotAlreadyRunning, got %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); err != nil {
		t.Errorf("running bot must survive delete attempt: %v", err)
	}

	if _, err := svc.StopBot(ctx, "u1", created.ID); err != nil {
		t.Fatalf("StopBot: %v", err)
	}
	if err := svc.DeleteBot(ctx, "u1", created.ID); err != nil {
		t.Fatalf("DeleteBot after stop: %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, errRepoBotNotFound) {
		t.Errorf("expected bot removed from repo, got %v", err)
	}
}

func TestBotService_ListBots_PrefersLiveSnapshot(t *testing.T) {
	svc, manager, _, _ := newBotService(t)
	ctx := context.Background()

	created, err := svc.CreateBot(ctx, validDCARequest("u1"))
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}
	if _, err := svc.StartBot(ctx, "u1", created.ID); err != nil {
		t.Fatalf("StartBot: %v", err)
	}

	// Живой снимок ушёл вперёд сохранённого
	live := manager.bots[created.ID]
	live.TotalPnl = 42
	manager.bots[created.ID] = live

	bots, err := svc.ListBots(ctx, "u1")
	if err != nil {
		t.Fatalf("ListBots: %v", err)
	}
	if len(bots) != 1 {
		t.Fatalf("got %d bots, want 1", len(bots))
	}
	if bots[0].TotalPnl != 42 {
		t.Errorf("list returned stale snapshot: pnl = %v", bots[0].TotalPnl)
	}
}

func TestBotService_GridLevels_FallbackToRepo(t *testing.T) {
	svc, manager, repo, _ := newBotService(t)
	ctx := context.Background()

	created, err := svc.CreateBot(ctx, validGridRequest("u1"))
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}

	saved := []models.GridLevel{
		{BotID: created.ID, LevelIndex: 0, Price: 90, BuyFilled: true, Quantity: 0.1},
		{BotID: created.ID, LevelIndex: 1, Price: 100},
	}
	repo.levels[created.ID] = saved

	// Бот не в планировщике: уровни читаются из БД
	levels, err := svc.GetGridLevels(ctx, "u1", created.ID)
	if err != nil {
		t.Fatalf("GetGridLevels: %v", err)
	}
	if len(levels) != 2 || !levels[0].BuyFilled {
		t.Errorf("unexpected levels from repo: %+v", levels)
	}

	// Живые уровни приоритетнее
	manager.levels[created.ID] = []models.GridLevel{{BotID: created.ID, Price: 95}}
	levels, err = svc.GetGridLevels(ctx, "u1", created.ID)
	if err != nil {
		t.Fatalf("GetGridLevels (live): %v", err)
	}
	if len(levels) != 1 || levels[0].Price != 95 {
		t.Errorf("expected live levels, got %+v", levels)
	}
}

func TestBotService_RestoreBots(t *testing.T) {
	svc, manager, repo, _ := newBotService(t)
	ctx := context.Background()

	if _, err := svc.CreateBot(ctx, validDCARequest("u1")); err != nil {
		t.Fatalf("CreateBot dca: %v", err)
	}
	grid, err := svc.CreateBot(ctx, validGridRequest("u1"))
	if err != nil {
		t.Fatalf("CreateBot grid: %v", err)
	}
	repo.levels[grid.ID] = []models.GridLevel{{BotID: grid.ID, Price: 90}}

	if err := svc.RestoreBots(ctx); err != nil {
		t.Fatalf("RestoreBots: %v", err)
	}
	if len(manager.restored) != 2 {
		t.Fatalf("restored %d bots, want 2", len(manager.restored))
	}
	if _, ok := manager.levels[grid.ID]; !ok {
		t.Error("grid levels not passed to scheduler")
	}
}
