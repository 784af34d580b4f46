// Package dashboard реализует сессию доски мейкера: видимый список ожидающих
// заказов и посекундный отсчёт по каждому из них.
package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/homefood-system/internal/acceptance"
	"github.com/mmeshcher/homefood-system/internal/model"
)

// OrderAPI описывает контракт сервера заказов, используемый сессией.
type OrderAPI interface {
	PendingOrders(ctx context.Context, makerID string) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error
}

// Session владеет списком ожидающих заказов мейкера и снимком отсчётов.
// Список и снимок принадлежат только этой сессии; все переходы проходят через
// чистые функции пакета acceptance, после чего снимок заменяется целиком.
// Локальное состояние первично: сохранение статуса на сервере выполняется
// best-effort и его неудача не откатывает переход.
type Session struct {
	makerID string
	api     OrderAPI
	logger  *zap.Logger

	mu     sync.Mutex
	orders []model.Order
	board  acceptance.Board
}

// NewSession создаёт сессию доски для указанного мейкера.
func NewSession(makerID string, api OrderAPI, logger *zap.Logger) *Session {
	return &Session{
		makerID: makerID,
		api:     api,
		logger:  logger,
		board:   acceptance.NewBoard(),
	}
}

// Refresh перечитывает список ожидающих заказов с сервера и строит снимок
// отсчётов заново: каждый заказ, всё ещё находящийся в pending, получает
// полный отсчёт. Ошибка загрузки не роняет сессию — текущее состояние
// сохраняется до следующей попытки.
func (s *Session) Refresh(ctx context.Context) {
	orders, err := s.api.PendingOrders(ctx, s.makerID)
	if err != nil {
		s.logger.Warn("refresh pending orders failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.board = acceptance.Observe(acceptance.NewBoard(), orders, s.makerID)

	s.orders = s.orders[:0]
	for _, o := range orders {
		if _, tracked := s.board.Remaining(o.ID); tracked {
			s.orders = append(s.orders, o)
		}
	}
}

// Tick продвигает все отсчёты на одну секунду и выполняет авто-отказы,
// чьи отсчёты истекли.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	board, effects := acceptance.Tick(s.board)
	s.board = board
	for _, e := range effects {
		s.removeVisibleLocked(e.OrderID)
	}
	s.mu.Unlock()

	for _, e := range effects {
		s.dispatch(ctx, e)
	}
}

// Accept обрабатывает ручное принятие заказа мейкером. Для уже разрешённого
// заказа вызов — no-op.
func (s *Session) Accept(ctx context.Context, orderID string) {
	s.resolve(ctx, orderID, acceptance.Accept)
}

// Reject обрабатывает ручной отказ мейкера от заказа. Повторный вызов
// эффекта не порождает.
func (s *Session) Reject(ctx context.Context, orderID string) {
	s.resolve(ctx, orderID, acceptance.Reject)
}

func (s *Session) resolve(ctx context.Context, orderID string,
	transition func(acceptance.Board, string) (acceptance.Board, acceptance.Effect, bool)) {

	s.mu.Lock()
	board, effect, ok := transition(s.board, orderID)
	if ok {
		s.board = board
		s.removeVisibleLocked(orderID)
	}
	s.mu.Unlock()

	if ok {
		s.dispatch(ctx, effect)
	}
}

// dispatch сохраняет новый статус заказа на сервере. Неудача логируется и
// не влияет на уже выполненный локальный переход.
func (s *Session) dispatch(ctx context.Context, e acceptance.Effect) {
	if err := s.api.UpdateOrderStatus(ctx, e.OrderID, e.Action.Status()); err != nil {
		s.logger.Warn("order status update failed",
			zap.String("order", e.OrderID),
			zap.String("action", string(e.Action)),
			zap.Error(err))
		return
	}

	s.logger.Info("order resolved",
		zap.String("order", e.OrderID),
		zap.String("action", string(e.Action)))
}

func (s *Session) removeVisibleLocked(orderID string) {
	for i, o := range s.orders {
		if o.ID == orderID {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			return
		}
	}
}

// PendingOrders возвращает копию видимого списка ожидающих заказов.
func (s *Session) PendingOrders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Remaining возвращает оставшиеся секунды отсчёта для заказа.
func (s *Session) Remaining(orderID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.board.Remaining(orderID)
}

// Run загружает список заказов и запускает посекундный цикл отсчёта.
// Возвращается после отмены контекста; незавершённых таймеров не остаётся.
func (s *Session) Run(ctx context.Context) {
	s.Refresh(ctx)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
