package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tradecore/internal/bot"
	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// Ошибки сервиса ботов
var (
	ErrBotAccessDenied = errors.New("bot belongs to another user")
)

// BotService - бизнес-логика управления ботами
//
// Конфигурации хранятся в БД, живые боты крутятся в планировщике.
// При чтении приоритет у снимка планировщика: он всегда свежее.
type BotService struct {
	manager BotSchedulerInterface
	bots    BotRepositoryInterface
	orders  OrderReaderInterface
	log     *utils.Logger
}

// NewBotService создает новый экземпляр сервиса
func NewBotService(manager BotSchedulerInterface, bots BotRepositoryInterface, orders OrderReaderInterface, log *utils.Logger) *BotService {
	return &BotService{
		manager: manager,
		bots:    bots,
		orders:  orders,
		log:     log.WithComponent("bot_service"),
	}
}

// CreateBotRequest - запрос на создание бота
type CreateBotRequest struct {
	UserID string             `json:"user_id"`
	Type   string             `json:"type"`
	Pair   string             `json:"pair"`
	DCA    *models.DCAConfig  `json:"dca_config,omitempty"`
	Grid   *models.GridConfig `json:"grid_config,omitempty"`
}

// CreateBot создаёт бота в статусе stopped
func (s *BotService) CreateBot(ctx context.Context, req CreateBotRequest) (*models.Bot, error) {
	now := time.Now()
	b := &models.Bot{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Type:      req.Type,
		Pair:      req.Pair,
		Status:    models.BotStatusStopped,
		CreatedAt: now,
		UpdatedAt: now,
		DCA:       req.DCA,
		Grid:      req.Grid,
	}
	if b.DCA != nil {
		b.DCA.BotID = b.ID
	}
	if b.Grid != nil {
		b.Grid.BotID = b.ID
	}

	if err := bot.ValidateBot(b); err != nil {
		return nil, err
	}

	if err := s.bots.Upsert(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info("bot created",
		utils.BotID(b.ID),
		utils.UserID(b.UserID),
		utils.String("type", b.Type),
		utils.Symbol(b.Pair))
	return b, nil
}

// GetBot возвращает бота пользователя
func (s *BotService) GetBot(ctx context.Context, userID, botID string) (*models.Bot, error) {
	b, err := s.loadBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrBotAccessDenied
	}
	return b, nil
}

// ListBots возвращает всех ботов пользователя
//
// Для запущенных ботов конфигурация из БД подменяется живым снимком.
func (s *BotService) ListBots(ctx context.Context, userID string) ([]*models.Bot, error) {
	stored, err := s.bots.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i, b := range stored {
		if live, ok := s.manager.GetBot(b.ID); ok {
			stored[i] = &live
		}
	}
	return stored, nil
}

// StartBot запускает бота в планировщике
func (s *BotService) StartBot(ctx context.Context, userID, botID string) (*models.Bot, error) {
	b, err := s.GetBot(ctx, userID, botID)
	if err != nil {
		return nil, err
	}

	if err := s.manager.StartBot(b); err != nil {
		return nil, err
	}

	if live, ok := s.manager.GetBot(botID); ok {
		return &live, nil
	}
	return b, nil
}

// PauseBot приостанавливает бота без сброса состояния сделки
func (s *BotService) PauseBot(ctx context.Context, userID, botID string) (*models.Bot, error) {
	if _, err := s.GetBot(ctx, userID, botID); err != nil {
		return nil, err
	}
	if err := s.manager.PauseBot(botID); err != nil {
		return nil, err
	}
	return s.loadBot(ctx, botID)
}

// StopBot останавливает бота
func (s *BotService) StopBot(ctx context.Context, userID, botID string) (*models.Bot, error) {
	if _, err := s.GetBot(ctx, userID, botID); err != nil {
		return nil, err
	}
	if err := s.manager.StopBot(botID); err != nil {
		return nil, err
	}
	return s.loadBot(ctx, botID)
}

// DeleteBot удаляет бота и всю его историю
//
// Запущенного бота удалить нельзя: Forget вернёт ErrBotAlreadyRunning.
func (s *BotService) DeleteBot(ctx context.Context, userID, botID string) error {
	if _, err := s.GetBot(ctx, userID, botID); err != nil {
		return err
	}

	if err := s.manager.Forget(botID); err != nil {
		return err
	}

	if err := s.bots.Delete(ctx, botID); err != nil {
		return err
	}

	s.log.Info("bot deleted", utils.BotID(botID), utils.UserID(userID))
	return nil
}

// GetBotOrders возвращает страницу ордеров бота
func (s *BotService) GetBotOrders(ctx context.Context, userID, botID string, limit, offset int) ([]*models.BotOrder, error) {
	if _, err := s.GetBot(ctx, userID, botID); err != nil {
		return nil, err
	}
	return s.orders.ListByBot(ctx, botID, limit, offset)
}

// GetGridLevels возвращает уровни grid-бота
func (s *BotService) GetGridLevels(ctx context.Context, userID, botID string) ([]models.GridLevel, error) {
	if _, err := s.GetBot(ctx, userID, botID); err != nil {
		return nil, err
	}
	if levels, ok := s.manager.GetGridLevels(botID); ok {
		return levels, nil
	}
	return s.bots.GetGridLevels(ctx, botID)
}

// RestoreBots поднимает сохранённых ботов после рестарта
//
// Вызывается один раз при старте процесса, до открытия HTTP API.
func (s *BotService) RestoreBots(ctx context.Context) error {
	all, err := s.bots.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return nil
	}

	levels := make(map[string][]models.GridLevel)
	for _, b := range all {
		if b.Type != models.BotTypeGrid {
			continue
		}
		ls, err := s.bots.GetGridLevels(ctx, b.ID)
		if err != nil {
			s.log.Error("grid levels load failed", utils.BotID(b.ID), utils.Err(err))
			continue
		}
		levels[b.ID] = ls
	}

	restorer, ok := s.manager.(BotRestorer)
	if !ok {
		return nil
	}
	snapshot := make([]models.Bot, 0, len(all))
	for _, b := range all {
		snapshot = append(snapshot, *b)
	}
	restorer.Restore(snapshot, levels)

	s.log.Info("bots restored", utils.Int("count", len(all)))
	return nil
}

// BotRestorer - необязательная возможность планировщика поднимать ботов
type BotRestorer interface {
	Restore(bots []models.Bot, levels map[string][]models.GridLevel)
}

// loadBot ищет бота сперва в планировщике, затем в БД
func (s *BotService) loadBot(ctx context.Context, botID string) (*models.Bot, error) {
	if live, ok := s.manager.GetBot(botID); ok {
		return &live, nil
	}
	return s.bots.GetByID(ctx, botID)
}
