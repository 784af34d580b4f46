// Package service реализует бизнес-логику сервиса homefood.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/homefood-system/internal/availability"
	"github.com/mmeshcher/homefood-system/internal/model"
	"github.com/mmeshcher/homefood-system/internal/repository"
)

// ErrInvalidStatus возвращается при попытке перевести заказ в неизвестный
// или нетерминальный статус.
var (
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidPolicy возвращается при попытке сохранить некорректную
	// политику доступности.
	ErrInvalidPolicy = errors.New("invalid availability policy")
	// ErrEmptyOrder возвращается при попытке создать заказ без позиций.
	ErrEmptyOrder = errors.New("order has no items")
)

const (
	// orderRetention — срок хранения заказов, по истечении которого они
	// удаляются из хранилища.
	orderRetention = 24 * time.Hour
	// retentionSweepPeriod — период фоновой очистки устаревших заказов.
	retentionSweepPeriod = 1 * time.Hour
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateMaker(ctx context.Context, m model.Maker) error
	GetMaker(ctx context.Context, id string) (*model.Maker, error)
	UpdateMakerPolicy(ctx context.Context, id string, policy model.AvailabilityPolicy) error
	CreateOrder(ctx context.Context, o model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetPendingOrdersByMaker(ctx context.Context, makerID string) ([]model.Order, error)
	GetOrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)
	DeleteExpiredOrders(ctx context.Context, olderThan time.Duration) (int64, error)
	CreateDish(ctx context.Context, d model.Dish) error
	GetDish(ctx context.Context, id string) (*model.Dish, error)
	GetDishesByMaker(ctx context.Context, makerID string) ([]model.Dish, error)
	UpdateDish(ctx context.Context, d model.Dish) error
	DeleteDish(ctx context.Context, id string) error
}

// Service содержит бизнес-логику сервиса homefood.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterMaker регистрирует нового мейкера. Магазин нового мейкера открыт,
// расписание выключено.
func (s *Service) RegisterMaker(ctx context.Context, m model.Maker) (*model.Maker, error) {
	m.ID = uuid.NewString()
	m.Policy = model.AvailabilityPolicy{ShopOpen: true}

	if err := s.repo.CreateMaker(ctx, m); err != nil {
		return nil, err
	}

	return &m, nil
}

// GetMaker возвращает мейкера по идентификатору.
func (s *Service) GetMaker(ctx context.Context, id string) (*model.Maker, error) {
	return s.repo.GetMaker(ctx, id)
}

// UpdateAvailabilityPolicy сохраняет новую политику доступности мейкера.
// При включённом расписании границы окна проверяются на корректность.
func (s *Service) UpdateAvailabilityPolicy(ctx context.Context, makerID string, policy model.AvailabilityPolicy) error {
	if policy.OnlineTimeEnabled {
		if err := availability.ValidateWindow(policy.OnlineTimeStart, policy.OnlineTimeEnd); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidPolicy, err)
		}
	}

	return s.repo.UpdateMakerPolicy(ctx, makerID, policy)
}

// SetShopOpen переключает ручной флаг открытия магазина, не трогая расписание.
func (s *Service) SetShopOpen(ctx context.Context, makerID string, open bool) (*model.Maker, error) {
	m, err := s.repo.GetMaker(ctx, makerID)
	if err != nil {
		return nil, err
	}

	m.Policy.ShopOpen = open
	if err := s.repo.UpdateMakerPolicy(ctx, makerID, m.Policy); err != nil {
		return nil, err
	}

	return m, nil
}

// CreateOrder создаёт заказ, предварительно проверив доступность мейкера.
// Проверка не имеет побочных эффектов: отклонённый заказ не сохраняется.
func (s *Service) CreateOrder(ctx context.Context, o model.Order) (*model.Order, error) {
	if len(o.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	maker, err := s.repo.GetMaker(ctx, o.Maker.ID())
	if err != nil {
		return nil, err
	}

	if err := availability.Authorize(maker.Policy, s.now()); err != nil {
		return nil, err
	}

	o.ID = uuid.NewString()
	o.Status = model.OrderStatusPending
	o.CreatedAt = s.now()

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	return &o, nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// PendingOrders возвращает заказы мейкера, ожидающие его решения.
func (s *Service) PendingOrders(ctx context.Context, makerID string) ([]model.Order, error) {
	return s.repo.GetPendingOrdersByMaker(ctx, makerID)
}

// OrdersByCustomer возвращает историю заказов покупателя.
func (s *Service) OrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	return s.repo.GetOrdersByCustomer(ctx, customerID)
}

// ResolveOrder переводит заказ в терминальный статус accepted или rejected.
// Повторное разрешение уже разрешённого заказа не считается ошибкой:
// возвращается текущее состояние заказа без изменений.
func (s *Service) ResolveOrder(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() || !status.Resolved() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	o, err := s.repo.UpdateOrderStatus(ctx, id, status)
	if errors.Is(err, repository.ErrOrderAlreadyResolved) {
		return o, nil
	}
	if err != nil {
		return nil, err
	}

	return o, nil
}

// CreateDish добавляет блюдо в каталог мейкера.
func (s *Service) CreateDish(ctx context.Context, d model.Dish) (*model.Dish, error) {
	if _, err := s.repo.GetMaker(ctx, d.MakerID); err != nil {
		return nil, err
	}

	d.ID = uuid.NewString()
	if err := s.repo.CreateDish(ctx, d); err != nil {
		return nil, err
	}

	return &d, nil
}

// GetDish возвращает блюдо по идентификатору.
func (s *Service) GetDish(ctx context.Context, id string) (*model.Dish, error) {
	return s.repo.GetDish(ctx, id)
}

// DishesByMaker возвращает каталог блюд мейкера.
func (s *Service) DishesByMaker(ctx context.Context, makerID string) ([]model.Dish, error) {
	return s.repo.GetDishesByMaker(ctx, makerID)
}

// UpdateDish обновляет блюдо в каталоге.
func (s *Service) UpdateDish(ctx context.Context, d model.Dish) error {
	return s.repo.UpdateDish(ctx, d)
}

// DeleteDish удаляет блюдо из каталога.
func (s *Service) DeleteDish(ctx context.Context, id string) error {
	return s.repo.DeleteDish(ctx, id)
}

// StartRetentionCleanup периодически удаляет заказы, хранящиеся дольше
// установленного срока. Блокируется до отмены контекста.
func (s *Service) StartRetentionCleanup(ctx context.Context) {
	ticker := time.NewTicker(retentionSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpiredOrders(ctx)
		}
	}
}

// sweepExpiredOrders выполняет один проход очистки. Неудача логируется и не
// прерывает фоновый процесс.
func (s *Service) sweepExpiredOrders(ctx context.Context) {
	deleted, err := s.repo.DeleteExpiredOrders(ctx, orderRetention)
	if err != nil {
		s.logger.Warn("retention sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("expired orders deleted", zap.Int64("count", deleted))
	}
}
