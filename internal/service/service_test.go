package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mmeshcher/homefood-system/internal/availability"
	"github.com/mmeshcher/homefood-system/internal/model"
	"github.com/mmeshcher/homefood-system/internal/repository"
)

type stubRepo struct {
	maker    *model.Maker
	makerErr error

	createdOrders  []model.Order
	createOrderErr error

	updatedOrder   *model.Order
	updateOrderErr error
	updateCalls    int

	policy    *model.AvailabilityPolicy
	policyErr error

	deleted          int64
	deleteErr        error
	deletedOlderThan time.Duration
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateMaker(ctx context.Context, m model.Maker) error {
	return nil
}

func (s *stubRepo) GetMaker(ctx context.Context, id string) (*model.Maker, error) {
	return s.maker, s.makerErr
}

func (s *stubRepo) UpdateMakerPolicy(ctx context.Context, id string, policy model.AvailabilityPolicy) error {
	s.policy = &policy
	return s.policyErr
}

func (s *stubRepo) CreateOrder(ctx context.Context, o model.Order) error {
	if s.createOrderErr != nil {
		return s.createOrderErr
	}
	s.createdOrders = append(s.createdOrders, o)
	return nil
}

func (s *stubRepo) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.updatedOrder, nil
}

func (s *stubRepo) GetPendingOrdersByMaker(ctx context.Context, makerID string) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) GetOrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	s.updateCalls++
	return s.updatedOrder, s.updateOrderErr
}

func (s *stubRepo) DeleteExpiredOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.deletedOlderThan = olderThan
	return s.deleted, s.deleteErr
}

func (s *stubRepo) CreateDish(ctx context.Context, d model.Dish) error { return nil }

func (s *stubRepo) GetDish(ctx context.Context, id string) (*model.Dish, error) {
	return nil, repository.ErrDishNotFound
}

func (s *stubRepo) GetDishesByMaker(ctx context.Context, makerID string) ([]model.Dish, error) {
	return nil, nil
}

func (s *stubRepo) UpdateDish(ctx context.Context, d model.Dish) error { return nil }

func (s *stubRepo) DeleteDish(ctx context.Context, id string) error { return nil }

func fixedClock(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.Local)
	}
}

func scheduledMaker() *model.Maker {
	return &model.Maker{
		ID: "maker-1",
		Policy: model.AvailabilityPolicy{
			OnlineTimeEnabled: true,
			OnlineTimeStart:   "10:00",
			OnlineTimeEnd:     "14:00",
		},
	}
}

func orderFor(makerID string) model.Order {
	return model.Order{
		Items:      []model.OrderItem{{DishID: "d1", Name: "Plov", PriceCents: 25000, Quantity: 1}},
		Maker:      model.NewMakerRef(makerID),
		CustomerID: "user-1",
	}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, zap.NewNop())
}

func TestCreateOrder_RejectedOutsideOnlineHours(t *testing.T) {
	repo := &stubRepo{maker: scheduledMaker()}
	svc := newTestService(repo)
	svc.now = fixedClock(15, 0)

	_, err := svc.CreateOrder(context.Background(), orderFor("maker-1"))
	if err == nil {
		t.Fatalf("expected rejection outside online hours")
	}

	var unavailable *availability.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if !strings.Contains(err.Error(), "10:00") || !strings.Contains(err.Error(), "14:00") {
		t.Fatalf("reason must mention configured hours, got %q", err.Error())
	}
	if len(repo.createdOrders) != 0 {
		t.Fatalf("rejected order must not be persisted")
	}
}

func TestCreateOrder_AcceptedInsideOnlineHours(t *testing.T) {
	repo := &stubRepo{maker: scheduledMaker()}
	svc := newTestService(repo)
	svc.now = fixedClock(12, 0)

	created, err := svc.CreateOrder(context.Background(), orderFor("maker-1"))
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if created.Status != model.OrderStatusPending {
		t.Fatalf("status = %q, want pending", created.Status)
	}
	if created.ID == "" {
		t.Fatalf("order id must be assigned")
	}
	if len(repo.createdOrders) != 1 {
		t.Fatalf("order must be persisted exactly once")
	}
	if repo.createdOrders[0].Status != model.OrderStatusPending {
		t.Fatalf("persisted status = %q, want pending", repo.createdOrders[0].Status)
	}
}

func TestCreateOrder_UnknownMaker(t *testing.T) {
	repo := &stubRepo{makerErr: repository.ErrMakerNotFound}
	svc := newTestService(repo)

	_, err := svc.CreateOrder(context.Background(), orderFor("ghost"))
	if !errors.Is(err, repository.ErrMakerNotFound) {
		t.Fatalf("expected ErrMakerNotFound, got %v", err)
	}
}

func TestCreateOrder_EmptyOrder(t *testing.T) {
	svc := newTestService(&stubRepo{})

	_, err := svc.CreateOrder(context.Background(), model.Order{Maker: model.NewMakerRef("maker-1")})
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
}

func TestResolveOrder_InvalidStatus(t *testing.T) {
	svc := newTestService(&stubRepo{})

	for _, status := range []model.OrderStatus{"pending", "cooked", ""} {
		_, err := svc.ResolveOrder(context.Background(), "o1", status)
		if !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("status %q: expected ErrInvalidStatus, got %v", status, err)
		}
	}
}

func TestResolveOrder_AlreadyResolvedIsSilent(t *testing.T) {
	resolved := &model.Order{ID: "o1", Status: model.OrderStatusAccepted}
	repo := &stubRepo{
		updatedOrder:   resolved,
		updateOrderErr: repository.ErrOrderAlreadyResolved,
	}
	svc := newTestService(repo)

	o, err := svc.ResolveOrder(context.Background(), "o1", model.OrderStatusRejected)
	if err != nil {
		t.Fatalf("repeated resolution must not be an error, got %v", err)
	}
	if o.Status != model.OrderStatusAccepted {
		t.Fatalf("status = %q, want the original accepted", o.Status)
	}
}

func TestUpdateAvailabilityPolicy_RejectsMalformedWindow(t *testing.T) {
	svc := newTestService(&stubRepo{})

	tests := []struct {
		name  string
		start string
		end   string
	}{
		{name: "malformed start", start: "9", end: "21:00"},
		{name: "empty bounds", start: "", end: ""},
		{name: "start after end", start: "21:00", end: "09:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateAvailabilityPolicy(context.Background(), "maker-1", model.AvailabilityPolicy{
				OnlineTimeEnabled: true,
				OnlineTimeStart:   tt.start,
				OnlineTimeEnd:     tt.end,
			})
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestUpdateAvailabilityPolicy_DisabledScheduleSkipsValidation(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	err := svc.UpdateAvailabilityPolicy(context.Background(), "maker-1", model.AvailabilityPolicy{
		ShopOpen:          false,
		OnlineTimeEnabled: false,
	})
	if err != nil {
		t.Fatalf("UpdateAvailabilityPolicy error: %v", err)
	}
	if repo.policy == nil || repo.policy.ShopOpen {
		t.Fatalf("policy not saved: %+v", repo.policy)
	}
}

func TestSetShopOpen_KeepsSchedule(t *testing.T) {
	repo := &stubRepo{maker: scheduledMaker()}
	svc := newTestService(repo)

	m, err := svc.SetShopOpen(context.Background(), "maker-1", true)
	if err != nil {
		t.Fatalf("SetShopOpen error: %v", err)
	}
	if !m.Policy.ShopOpen {
		t.Fatalf("shop must be open")
	}
	if repo.policy == nil || !repo.policy.OnlineTimeEnabled || repo.policy.OnlineTimeStart != "10:00" {
		t.Fatalf("schedule must be preserved: %+v", repo.policy)
	}
}

func TestSweepExpiredOrders_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := &stubRepo{deleteErr: errors.New("connection refused")}
	svc := NewService(repo, zap.New(core))

	svc.sweepExpiredOrders(context.Background())

	if logs.FilterMessage("retention sweep failed").Len() != 1 {
		t.Fatalf("sweep failure must be logged, got %v", logs.All())
	}
}

func TestSweepExpiredOrders_LogsDeletedCount(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	repo := &stubRepo{deleted: 3}
	svc := NewService(repo, zap.New(core))

	svc.sweepExpiredOrders(context.Background())

	entries := logs.FilterMessage("expired orders deleted").All()
	if len(entries) != 1 {
		t.Fatalf("deleted count must be logged once, got %v", logs.All())
	}
	if got := entries[0].ContextMap()["count"]; got != int64(3) {
		t.Fatalf("count = %v, want 3", got)
	}
	if repo.deletedOlderThan != orderRetention {
		t.Fatalf("sweep age = %v, want %v", repo.deletedOlderThan, orderRetention)
	}
}

func TestStartRetentionCleanup_StopsOnCancel(t *testing.T) {
	svc := newTestService(&stubRepo{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})

	go func() {
		svc.StartRetentionCleanup(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("StartRetentionCleanup did not return")
	}
}
