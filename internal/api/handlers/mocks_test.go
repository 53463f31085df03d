package handlers

import (
	"context"
	"errors"
	"fmt"

	"tradecore/internal/bot"
	"tradecore/internal/engine"
	"tradecore/internal/models"
	"tradecore/internal/service"
)

// ErrMockDatabase имитирует ошибку хранилища
var ErrMockDatabase = errors.New("mock database error")

// ============ MockAccountService ============

type MockAccountService struct {
	accounts map[string]models.Account
	ledger   map[string][]*models.LedgerEntry
	activity []*models.ActivityLog
	errs     map[string]error
}

func NewMockAccountService() *MockAccountService {
	return &MockAccountService{
		accounts: make(map[string]models.Account),
		ledger:   make(map[string][]*models.LedgerEntry),
		errs:     make(map[string]error),
	}
}

// SetError настраивает ошибку для операции ("get", "create", "deposit", ...)
func (m *MockAccountService) SetError(op string, err error) {
	m.errs[op] = err
}

func (m *MockAccountService) AddAccount(userID string, balance float64) {
	m.accounts[userID] = models.Account{UserID: userID, Balance: balance, Equity: balance, FreeMargin: balance}
}

func (m *MockAccountService) GetAccount(userID string) (models.Account, error) {
	if err := m.errs["get"]; err != nil {
		return models.Account{}, err
	}
	acc, ok := m.accounts[userID]
	if !ok {
		return models.Account{}, engine.ErrAccountNotFound
	}
	return acc, nil
}

func (m *MockAccountService) CreateAccount(userID string) (models.Account, error) {
	if err := m.errs["create"]; err != nil {
		return models.Account{}, err
	}
	if _, ok := m.accounts[userID]; ok {
		return models.Account{}, engine.ErrAccountExists
	}
	acc := models.Account{UserID: userID}
	m.accounts[userID] = acc
	return acc, nil
}

func (m *MockAccountService) Deposit(userID string, amount float64) (*models.LedgerEntry, error) {
	if err := m.errs["deposit"]; err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, service.ErrInvalidAmount
	}
	acc, ok := m.accounts[userID]
	if !ok {
		return nil, engine.ErrAccountNotFound
	}
	entry := &models.LedgerEntry{
		ID:            fmt.Sprintf("entry-%d", len(m.ledger[userID])+1),
		UserID:        userID,
		Type:          models.LedgerTypeDeposit,
		Amount:        amount,
		BalanceBefore: acc.Balance,
		BalanceAfter:  acc.Balance + amount,
	}
	acc.Balance += amount
	m.accounts[userID] = acc
	m.ledger[userID] = append(m.ledger[userID], entry)
	return entry, nil
}

func (m *MockAccountService) Withdraw(userID string, amount float64) (*models.LedgerEntry, error) {
	if err := m.errs["withdraw"]; err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, service.ErrInvalidAmount
	}
	acc, ok := m.accounts[userID]
	if !ok {
		return nil, engine.ErrAccountNotFound
	}
	if acc.Balance < amount {
		return nil, engine.ErrInsufficientFunds
	}
	entry := &models.LedgerEntry{
		UserID:        userID,
		Type:          models.LedgerTypeWithdrawal,
		Amount:        -amount,
		BalanceBefore: acc.Balance,
		BalanceAfter:  acc.Balance - amount,
	}
	acc.Balance -= amount
	m.accounts[userID] = acc
	m.ledger[userID] = append(m.ledger[userID], entry)
	return entry, nil
}

func (m *MockAccountService) GetLedgerHistory(_ context.Context, userID string, limit, offset int) ([]*models.LedgerEntry, error) {
	if err := m.errs["ledger"]; err != nil {
		return nil, err
	}
	return m.ledger[userID], nil
}

func (m *MockAccountService) AdminCredit(_ context.Context, adminID, userID string, amount float64, reason string) (*models.LedgerEntry, error) {
	if err := m.errs["admin"]; err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, service.ErrEmptyReason
	}
	m.activity = append(m.activity, &models.ActivityLog{Actor: adminID, Action: models.ActivityActionCredit, TargetUser: userID, Reason: reason})
	return m.Deposit(userID, amount)
}

func (m *MockAccountService) AdminDebit(_ context.Context, adminID, userID string, amount float64, reason string) (*models.LedgerEntry, error) {
	if err := m.errs["admin"]; err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, service.ErrEmptyReason
	}
	m.activity = append(m.activity, &models.ActivityLog{Actor: adminID, Action: models.ActivityActionDebit, TargetUser: userID, Reason: reason})
	return m.Withdraw(userID, amount)
}

func (m *MockAccountService) GetActivityLog(context.Context, int) ([]*models.ActivityLog, error) {
	if err := m.errs["activity"]; err != nil {
		return nil, err
	}
	return m.activity, nil
}

func (m *MockAccountService) Reconcile(_ context.Context, userID string) (float64, float64, error) {
	if err := m.errs["reconcile"]; err != nil {
		return 0, 0, err
	}
	acc, ok := m.accounts[userID]
	if !ok {
		return 0, 0, engine.ErrAccountNotFound
	}
	var sum float64
	for _, e := range m.ledger[userID] {
		sum += e.Amount
	}
	return acc.Balance, sum, nil
}

// ============ MockTradeService ============

type MockTradeService struct {
	positions map[string][]models.Position
	trades    map[string][]*models.ClosedTrade
	errs      map[string]error
	price     float64
}

func NewMockTradeService() *MockTradeService {
	return &MockTradeService{
		positions: make(map[string][]models.Position),
		trades:    make(map[string][]*models.ClosedTrade),
		errs:      make(map[string]error),
		price:     100,
	}
}

func (m *MockTradeService) SetError(op string, err error) {
	m.errs[op] = err
}

func (m *MockTradeService) OpenPosition(_ context.Context, req service.OpenPositionRequest) (*models.Position, error) {
	if err := m.errs["open"]; err != nil {
		return nil, err
	}
	pos := models.Position{
		ID:         fmt.Sprintf("pos-%d", len(m.positions[req.UserID])+1),
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		EntryPrice: m.price,
		Quantity:   req.Quantity,
		Leverage:   req.Leverage,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}
	m.positions[req.UserID] = append(m.positions[req.UserID], pos)
	return &pos, nil
}

func (m *MockTradeService) ClosePosition(_ context.Context, userID, positionID string) (*models.ClosedTrade, error) {
	if err := m.errs["close"]; err != nil {
		return nil, err
	}
	for i, pos := range m.positions[userID] {
		if pos.ID == positionID {
			m.positions[userID] = append(m.positions[userID][:i], m.positions[userID][i+1:]...)
			trade := &models.ClosedTrade{ID: "trade-" + positionID, PositionID: positionID, UserID: userID, CloseReason: models.CloseReasonManual}
			m.trades[userID] = append(m.trades[userID], trade)
			return trade, nil
		}
	}
	return nil, engine.ErrPositionNotFound
}

func (m *MockTradeService) ForceClosePosition(ctx context.Context, adminID, userID, positionID, reason string) (*models.ClosedTrade, error) {
	if err := m.errs["force_close"]; err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, service.ErrEmptyReason
	}
	trade, err := m.ClosePosition(ctx, userID, positionID)
	if err != nil {
		return nil, err
	}
	trade.CloseReason = models.CloseReasonAdmin
	return trade, nil
}

func (m *MockTradeService) UpdateSLTP(userID, positionID string, stopLoss, takeProfit *float64) (*models.Position, error) {
	if err := m.errs["sltp"]; err != nil {
		return nil, err
	}
	for i := range m.positions[userID] {
		if m.positions[userID][i].ID == positionID {
			m.positions[userID][i].StopLoss = stopLoss
			m.positions[userID][i].TakeProfit = takeProfit
			pos := m.positions[userID][i]
			return &pos, nil
		}
	}
	return nil, engine.ErrPositionNotFound
}

func (m *MockTradeService) GetOpenPositions(userID string) ([]models.Position, error) {
	if err := m.errs["positions"]; err != nil {
		return nil, err
	}
	return m.positions[userID], nil
}

func (m *MockTradeService) GetTradeHistory(_ context.Context, userID string, limit, offset int) ([]*models.ClosedTrade, error) {
	if err := m.errs["history"]; err != nil {
		return nil, err
	}
	return m.trades[userID], nil
}

// ============ MockBotService ============

type MockBotService struct {
	bots   map[string]*models.Bot
	orders map[string][]*models.BotOrder
	levels map[string][]models.GridLevel
	errs   map[string]error
	nextID int
}

func NewMockBotService() *MockBotService {
	return &MockBotService{
		bots:   make(map[string]*models.Bot),
		orders: make(map[string][]*models.BotOrder),
		levels: make(map[string][]models.GridLevel),
		errs:   make(map[string]error),
	}
}

func (m *MockBotService) SetError(op string, err error) {
	m.errs[op] = err
}

func (m *MockBotService) CreateBot(_ context.Context, req service.CreateBotRequest) (*models.Bot, error) {
	if err := m.errs["create"]; err != nil {
		return nil, err
	}
	m.nextID++
	b := &models.Bot{
		ID:     fmt.Sprintf("bot-%d", m.nextID),
		UserID: req.UserID,
		Type:   req.Type,
		Pair:   req.Pair,
		Status: models.BotStatusStopped,
		DCA:    req.DCA,
		Grid:   req.Grid,
	}
	m.bots[b.ID] = b
	return b, nil
}

func (m *MockBotService) GetBot(_ context.Context, userID, botID string) (*models.Bot, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	b, ok := m.bots[botID]
	if !ok {
		return nil, bot.ErrBotNotFound
	}
	if b.UserID != userID {
		return nil, service.ErrBotAccessDenied
	}
	return b, nil
}

func (m *MockBotService) ListBots(_ context.Context, userID string) ([]*models.Bot, error) {
	if err := m.errs["list"]; err != nil {
		return nil, err
	}
	var out []*models.Bot
	for _, b := range m.bots {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MockBotService) setStatus(ctx context.Context, userID, botID, status string) (*models.Bot, error) {
	b, err := m.GetBot(ctx, userID, botID)
	if err != nil {
		return nil, err
	}
	b.Status = status
	return b, nil
}

func (m *MockBotService) StartBot(ctx context.Context, userID, botID string) (*models.Bot, error) {
	if err := m.errs["start"]; err != nil {
		return nil, err
	}
	return m.setStatus(ctx, userID, botID, models.BotStatusRunning)
}

func (m *MockBotService) PauseBot(ctx context.Context, userID, botID string) (*models.Bot, error) {
	if err := m.errs["pause"]; err != nil {
		return nil, err
	}
	return m.setStatus(ctx, userID, botID, models.BotStatusPaused)
}

func (m *MockBotService) StopBot(ctx context.Context, userID, botID string) (*models.Bot, error) {
	if err := m.errs["stop"]; err != nil {
		return nil, err
	}
	return m.setStatus(ctx, userID, botID, models.BotStatusStopped)
}

func (m *MockBotService) DeleteBot(ctx context.Context, userID, botID string) error {
	if err := m.errs["delete"]; err != nil {
		return err
	}
	if _, err := m.GetBot(ctx, userID, botID); err != nil {
		return err
	}
	delete(m.bots, botID)
	return nil
}

func (m *MockBotService) GetBotOrders(ctx context.Context, userID, botID string, limit, offset int) ([]*models.BotOrder, error) {
	if err := m.errs["orders"]; err != nil {
		return nil, err
	}
	if _, err := m.GetBot(ctx, userID, botID); err != nil {
		return nil, err
	}
	return m.orders[botID], nil
}

func (m *MockBotService) GetGridLevels(ctx context.Context, userID, botID string) ([]models.GridLevel, error) {
	if err := m.errs["grid"]; err != nil {
		return nil, err
	}
	if _, err := m.GetBot(ctx, userID, botID); err != nil {
		return nil, err
	}
	return m.levels[botID], nil
}
