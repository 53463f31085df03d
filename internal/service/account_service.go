package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tradecore/internal/engine"
	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// Ошибки сервиса счетов
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrEmptyReason   = errors.New("reason is required for admin operations")
)

// AccountService - бизнес-логика счетов
//
// Балансовые мутации идут через торговое ядро (источник истины в памяти),
// чтение истории - из БД. Действия администратора дополнительно пишут
// запись аудита.
type AccountService struct {
	eng        *engine.Engine
	ledger     LedgerReaderInterface
	activities ActivityRepositoryInterface
	log        *utils.Logger
}

// NewAccountService создает новый экземпляр сервиса
func NewAccountService(eng *engine.Engine, ledger LedgerReaderInterface, activities ActivityRepositoryInterface, log *utils.Logger) *AccountService {
	return &AccountService{
		eng:        eng,
		ledger:     ledger,
		activities: activities,
		log:        log.WithComponent("account_service"),
	}
}

// GetAccount возвращает текущий снимок счёта
func (s *AccountService) GetAccount(userID string) (models.Account, error) {
	return s.eng.GetAccount(userID)
}

// CreateAccount создаёт счёт с нулевым балансом
func (s *AccountService) CreateAccount(userID string) (models.Account, error) {
	return s.eng.CreateAccount(userID)
}

// Deposit зачисляет средства на счёт
func (s *AccountService) Deposit(userID string, amount float64) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.eng.Credit(userID, amount, models.LedgerTypeDeposit,
		uuid.NewString(), userID, "deposit")
}

// Withdraw списывает средства со счёта
//
// Ядро откажет, если свободных средств недостаточно.
func (s *AccountService) Withdraw(userID string, amount float64) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.eng.Debit(userID, amount, models.LedgerTypeWithdrawal,
		uuid.NewString(), userID, "withdrawal")
}

// GetLedgerHistory возвращает страницу истории леджера из БД
func (s *AccountService) GetLedgerHistory(ctx context.Context, userID string, limit, offset int) ([]*models.LedgerEntry, error) {
	return s.ledger.ListByUser(ctx, userID, limit, offset)
}

// AdminCredit зачисляет средства от имени администратора с аудитом
func (s *AccountService) AdminCredit(ctx context.Context, adminID, userID string, amount float64, reason string) (*models.LedgerEntry, error) {
	return s.adminAdjust(ctx, adminID, userID, amount, reason, models.LedgerTypeAdminCredit)
}

// AdminDebit списывает средства от имени администратора с аудитом
func (s *AccountService) AdminDebit(ctx context.Context, adminID, userID string, amount float64, reason string) (*models.LedgerEntry, error) {
	return s.adminAdjust(ctx, adminID, userID, amount, reason, models.LedgerTypeAdminDebit)
}

// adminAdjust - общий путь админских корректировок баланса
//
// Каждая корректировка обязана оставить запись в activity_log;
// ошибка аудита логируется, но не откатывает корректировку.
func (s *AccountService) adminAdjust(ctx context.Context, adminID, userID string, amount float64, reason, entryType string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if reason == "" {
		return nil, ErrEmptyReason
	}

	acc, err := s.eng.GetAccount(userID)
	if err != nil {
		return nil, err
	}
	prevBalance := acc.Balance

	var entry *models.LedgerEntry
	var action string
	switch entryType {
	case models.LedgerTypeAdminCredit:
		entry, err = s.eng.Credit(userID, amount, entryType, uuid.NewString(), adminID, reason)
		action = models.ActivityActionCredit
	default:
		entry, err = s.eng.Debit(userID, amount, entryType, uuid.NewString(), adminID, reason)
		action = models.ActivityActionDebit
	}
	if err != nil {
		return nil, err
	}

	audit := &models.ActivityLog{
		Actor:      adminID,
		Action:     action,
		TargetUser: userID,
		PrevValue:  prevBalance,
		NewValue:   entry.BalanceAfter,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
	if err := s.activities.Insert(ctx, audit); err != nil {
		s.log.Error("activity log write failed",
			utils.String("action", action),
			utils.UserID(userID),
			utils.Err(err))
	}

	s.log.Info("admin balance adjustment",
		utils.String("admin", adminID),
		utils.UserID(userID),
		utils.Amount(amount),
		utils.Reason(reason))
	return entry, nil
}

// GetActivityLog возвращает последние записи аудита
func (s *AccountService) GetActivityLog(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	return s.activities.ListRecent(ctx, limit)
}

// Reconcile сверяет баланс счёта с суммой записей леджера в БД
//
// Расхождение допустимо (очередь записи могла не догнать память)
// и возвращается вызывающему для диагностики.
func (s *AccountService) Reconcile(ctx context.Context, userID string) (balance, ledgerSum float64, err error) {
	acc, err := s.eng.GetAccount(userID)
	if err != nil {
		return 0, 0, err
	}
	sum, err := s.ledger.SumByUser(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return acc.Balance, sum, nil
}
