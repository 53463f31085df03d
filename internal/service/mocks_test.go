package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tradecore/internal/config"
	"tradecore/internal/engine"
	"tradecore/internal/models"
	"tradecore/internal/outbox"
	"tradecore/pkg/utils"
)

// ============================================================
// Моки зависимостей сервисов
// ============================================================

// nopStore - заглушка персистентности (outbox не запускается в тестах)
type nopStore struct{}

func (nopStore) UpsertAccount(context.Context, *models.Account) error         { return nil }
func (nopStore) InsertLedgerEntry(context.Context, *models.LedgerEntry) error { return nil }
func (nopStore) UpsertPosition(context.Context, *models.Position) error       { return nil }
func (nopStore) DeletePosition(context.Context, string) error                 { return nil }
func (nopStore) InsertClosedTrade(context.Context, *models.ClosedTrade) error { return nil }
func (nopStore) UpsertBot(context.Context, *models.Bot) error                 { return nil }
func (nopStore) UpsertGridLevels(context.Context, string, []models.GridLevel) error {
	return nil
}
func (nopStore) InsertBotOrder(context.Context, *models.BotOrder) error       { return nil }
func (nopStore) InsertActivityLog(context.Context, *models.ActivityLog) error { return nil }

// mockLedgerReader возвращает заранее заданные записи
type mockLedgerReader struct {
	entries []*models.LedgerEntry
	sum     float64
	err     error
}

func (m *mockLedgerReader) ListByUser(_ context.Context, userID string, limit, offset int) ([]*models.LedgerEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *mockLedgerReader) SumByUser(context.Context, string) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.sum, nil
}

// mockTradeHistory возвращает заранее заданные сделки
type mockTradeHistory struct {
	trades []*models.ClosedTrade
	err    error
}

func (m *mockTradeHistory) ListClosedByUser(context.Context, string, int, int) ([]*models.ClosedTrade, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.trades, nil
}

var errRepoBotNotFound = errors.New("bot not found in repo")

// mockBotRepo хранит ботов в памяти
type mockBotRepo struct {
	mu        sync.Mutex
	bots      map[string]*models.Bot
	levels    map[string][]models.GridLevel
	upsertErr error
	deleteErr error
	deleted   []string
}

func newMockBotRepo() *mockBotRepo {
	return &mockBotRepo{
		bots:   make(map[string]*models.Bot),
		levels: make(map[string][]models.GridLevel),
	}
}

func (m *mockBotRepo) Upsert(_ context.Context, bot *models.Bot) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *bot
	m.bots[bot.ID] = &clone
	return nil
}

func (m *mockBotRepo) GetByID(_ context.Context, botID string) (*models.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[botID]
	if !ok {
		return nil, errRepoBotNotFound
	}
	clone := *b
	return &clone, nil
}

func (m *mockBotRepo) ListByUser(_ context.Context, userID string) ([]*models.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Bot
	for _, b := range m.bots {
		if b.UserID == userID {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *mockBotRepo) ListAll(context.Context) ([]*models.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Bot
	for _, b := range m.bots {
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (m *mockBotRepo) Delete(_ context.Context, botID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bots[botID]; !ok {
		return errRepoBotNotFound
	}
	delete(m.bots, botID)
	m.deleted = append(m.deleted, botID)
	return nil
}

func (m *mockBotRepo) GetGridLevels(_ context.Context, botID string) ([]models.GridLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[botID], nil
}

// mockOrderReader возвращает заранее заданные ордера
type mockOrderReader struct {
	orders []*models.BotOrder
	err    error
}

func (m *mockOrderReader) ListByBot(context.Context, string, int, int) ([]*models.BotOrder, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

// mockActivityRepo накапливает записи аудита
type mockActivityRepo struct {
	mu        sync.Mutex
	entries   []*models.ActivityLog
	insertErr error
}

func (m *mockActivityRepo) Insert(_ context.Context, entry *models.ActivityLog) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockActivityRepo) ListRecent(_ context.Context, limit int) ([]*models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > 0 && len(m.entries) > limit {
		return m.entries[len(m.entries)-limit:], nil
	}
	return m.entries, nil
}

func (m *mockActivityRepo) last(t *testing.T) *models.ActivityLog {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatal("expected at least one activity log entry")
	}
	return m.entries[len(m.entries)-1]
}

// fixedFeed отдаёт заданную цену для любого символа
type fixedFeed struct {
	mu    sync.Mutex
	price float64
	err   error
}

func (f *fixedFeed) FetchPrice(context.Context, string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

func (f *fixedFeed) FetchQuotes(_ context.Context, symbols []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		out[s] = f.price
	}
	return out, nil
}

// ============================================================
// Обвязка
// ============================================================

const testFeeRate = 0.001

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	log := utils.InitLogger(utils.LogConfig{Level: "error", Format: "text"})
	queue := outbox.NewQueue(nopStore{}, 1<<15, log)
	return engine.NewEngine(config.EngineConfig{
		FeeRate:              testFeeRate,
		LiquidationThreshold: 0.5,
		PriceShards:          1,
		PriceQueueSize:       64,
	}, queue, nil, log)
}

func testLogger(t *testing.T) *utils.Logger {
	t.Helper()
	return utils.InitLogger(utils.LogConfig{Level: "error", Format: "text"})
}

func fundUser(t *testing.T, eng *engine.Engine, userID string, amount float64) {
	t.Helper()
	if _, err := eng.CreateAccount(userID); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, err := eng.Credit(userID, amount, models.LedgerTypeDeposit, "dep-1", userID, "test deposit"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
}
