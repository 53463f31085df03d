package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tradecore/internal/models"
	"tradecore/internal/outbox"
)

// AccountState - состояние одного счёта в памяти
//
// ЕДИНСТВЕННАЯ точка мутации баланса: каждое изменение проходит через
// apply под per-account mutex. Это закрывает lost-update гонку между
// конкурентными тиками ботов и ручными операциями на одном счёте.
type AccountState struct {
	mu        sync.Mutex
	acc       models.Account
	positions map[string]*models.Position // по id позиции
}

// newAccountState создаёт пустой счёт
func newAccountState(userID string) *AccountState {
	now := time.Now()
	return &AccountState{
		acc: models.Account{
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		positions: make(map[string]*models.Position),
	}
}

// restoreAccountState восстанавливает счёт из БД при старте
func restoreAccountState(acc models.Account, positions []models.Position) *AccountState {
	as := &AccountState{
		acc:       acc,
		positions: make(map[string]*models.Position, len(positions)),
	}
	for i := range positions {
		pos := positions[i]
		as.positions[pos.ID] = &pos
	}
	as.recompute()
	return as
}

// apply применяет одну запись леджера к балансу
// ВАЖНО: вызывается под as.mu
//
// Инвариант каждой записи: BalanceAfter - BalanceBefore == Amount
func (as *AccountState) apply(entryType string, amount float64, referenceID, actor, reason string) models.LedgerEntry {
	entry := models.LedgerEntry{
		ID:            uuid.NewString(),
		UserID:        as.acc.UserID,
		Type:          entryType,
		Amount:        amount,
		BalanceBefore: as.acc.Balance,
		BalanceAfter:  as.acc.Balance + amount,
		ReferenceID:   referenceID,
		Actor:         actor,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}

	as.acc.Balance = entry.BalanceAfter

	switch entryType {
	case models.LedgerTypeDeposit:
		as.acc.TotalDeposited += amount
	case models.LedgerTypeWithdrawal:
		as.acc.TotalWithdrawn += -amount
	}

	as.recompute()
	return entry
}

// recompute пересчитывает производные поля счёта
// ВАЖНО: вызывается под as.mu
//
// Каноническая формула: FreeMargin = Equity - MarginUsed
// (учитывает нереализованный PNL как торговый запас)
func (as *AccountState) recompute() {
	var unrealized, marginUsed float64
	for _, pos := range as.positions {
		unrealized += pos.UnrealizedPnl
		marginUsed += pos.MarginUsed
	}

	as.acc.UnrealizedPnl = unrealized
	as.acc.MarginUsed = marginUsed
	as.acc.Equity = as.acc.Balance + unrealized
	as.acc.FreeMargin = as.acc.Equity - marginUsed
	as.acc.UpdatedAt = time.Now()
}

// snapshot возвращает копию счёта
// ВАЖНО: вызывается под as.mu
func (as *AccountState) snapshot() models.Account {
	return as.acc
}

// ============================================================
// Операции с балансом
// ============================================================

// Credit зачисляет средства на счёт
//
// entryType определяет тип записи леджера (deposit, bot_sell,
// admin_credit и т.д.); amount должен быть положительным
func (e *Engine) Credit(userID string, amount float64, entryType, referenceID, actor, reason string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	as, err := e.account(userID)
	if err != nil {
		return nil, err
	}

	as.mu.Lock()
	entry := as.apply(entryType, amount, referenceID, actor, reason)
	snap := as.snapshot()
	as.mu.Unlock()

	e.persistBalanceChange(entry, snap)
	return &entry, nil
}

// Debit списывает средства со счёта
//
// Возвращает ErrInsufficientFunds если balance < amount -
// списание никогда не уводит баланс в минус
func (e *Engine) Debit(userID string, amount float64, entryType, referenceID, actor, reason string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	as, err := e.account(userID)
	if err != nil {
		return nil, err
	}

	as.mu.Lock()
	if as.acc.Balance < amount {
		as.mu.Unlock()
		return nil, ErrInsufficientFunds
	}
	entry := as.apply(entryType, -amount, referenceID, actor, reason)
	snap := as.snapshot()
	as.mu.Unlock()

	e.persistBalanceChange(entry, snap)
	return &entry, nil
}

// persistBalanceChange кладёт запись леджера и снимок счёта в outbox
// и рассылает обновление клиентам
func (e *Engine) persistBalanceChange(entry models.LedgerEntry, snap models.Account) {
	LedgerEntriesTotal.WithLabelValues(entry.Type).Inc()

	e.queue.Enqueue(outbox.Write{Kind: outbox.KindLedgerEntry, Key: entry.ID, Payload: entry})
	e.queue.Enqueue(outbox.Write{Kind: outbox.KindAccountUpsert, Key: snap.UserID, Payload: snap})

	if e.hub != nil {
		e.hub.BroadcastAccountUpdate(&snap)
	}
}

// GetAccount возвращает снимок счёта
func (e *Engine) GetAccount(userID string) (models.Account, error) {
	as, err := e.account(userID)
	if err != nil {
		return models.Account{}, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	return as.snapshot(), nil
}

// GetOpenPositions возвращает копии открытых позиций счёта
func (e *Engine) GetOpenPositions(userID string) ([]models.Position, error) {
	as, err := e.account(userID)
	if err != nil {
		return nil, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	out := make([]models.Position, 0, len(as.positions))
	for _, pos := range as.positions {
		out = append(out, *pos)
	}
	return out, nil
}
