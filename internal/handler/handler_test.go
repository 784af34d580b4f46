package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/homefood-system/internal/availability"
	"github.com/mmeshcher/homefood-system/internal/model"
	"github.com/mmeshcher/homefood-system/internal/repository"
	"github.com/mmeshcher/homefood-system/internal/service"
)

type stubService struct {
	maker    *model.Maker
	makerErr error

	createOrderResp *model.Order
	createOrderErr  error

	resolveResp *model.Order
	resolveErr  error

	pendingResp []model.Order
	pendingErr  error

	ordersResp []model.Order

	policyErr error
}

func (s *stubService) RegisterMaker(ctx context.Context, m model.Maker) (*model.Maker, error) {
	m.ID = "maker-new"
	return &m, nil
}

func (s *stubService) GetMaker(ctx context.Context, id string) (*model.Maker, error) {
	return s.maker, s.makerErr
}

func (s *stubService) UpdateAvailabilityPolicy(ctx context.Context, makerID string, policy model.AvailabilityPolicy) error {
	return s.policyErr
}

func (s *stubService) SetShopOpen(ctx context.Context, makerID string, open bool) (*model.Maker, error) {
	if s.makerErr != nil {
		return nil, s.makerErr
	}
	m := *s.maker
	m.Policy.ShopOpen = open
	return &m, nil
}

func (s *stubService) CreateOrder(ctx context.Context, o model.Order) (*model.Order, error) {
	return s.createOrderResp, s.createOrderErr
}

func (s *stubService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.resolveResp, s.resolveErr
}

func (s *stubService) PendingOrders(ctx context.Context, makerID string) ([]model.Order, error) {
	return s.pendingResp, s.pendingErr
}

func (s *stubService) OrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	return s.ordersResp, nil
}

func (s *stubService) ResolveOrder(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	return s.resolveResp, s.resolveErr
}

func (s *stubService) CreateDish(ctx context.Context, d model.Dish) (*model.Dish, error) {
	d.ID = "dish-new"
	return &d, nil
}

func (s *stubService) GetDish(ctx context.Context, id string) (*model.Dish, error) {
	return nil, repository.ErrDishNotFound
}

func (s *stubService) DishesByMaker(ctx context.Context, makerID string) ([]model.Dish, error) {
	return nil, nil
}

func (s *stubService) UpdateDish(ctx context.Context, d model.Dish) error { return nil }

func (s *stubService) DeleteDish(ctx context.Context, id string) error { return nil }

func newTestRouter(t *testing.T, svc Service) http.Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger).SetupRouter()
}

func decodeEnvelope(t *testing.T, body io.Reader) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return payload
}

func TestCreateOrder_RejectedOutsideOnlineHours(t *testing.T) {
	svc := &stubService{
		createOrderErr: &availability.UnavailableError{Start: "10:00", End: "14:00"},
	}
	router := newTestRouter(t, svc)

	body := []byte(`{"dishes":[{"dish_id":"d1","quantity":1}],"amount":5,"makerid":"maker-1","userid":"user-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	payload := decodeEnvelope(t, res.Body)
	if payload["status"] != "fail" {
		t.Fatalf("envelope status = %v, want fail", payload["status"])
	}
	message, _ := payload["message"].(string)
	if !strings.Contains(message, "10:00") || !strings.Contains(message, "14:00") {
		t.Fatalf("message %q must mention the configured hours", message)
	}
}

func TestCreateOrder_Created(t *testing.T) {
	svc := &stubService{
		createOrderResp: &model.Order{
			ID:         "o1",
			Items:      []model.OrderItem{{DishID: "d1", Quantity: 1}},
			Maker:      model.NewMakerRef("maker-1"),
			CustomerID: "user-1",
			Status:     model.OrderStatusPending,
		},
	}
	router := newTestRouter(t, svc)

	body := []byte(`{"dishes":[{"dish_id":"d1","quantity":1}],"amount":5,"makerid":"maker-1","userid":"user-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	raw, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(raw), `"status":"pending"`) {
		t.Fatalf("response must carry pending status: %s", raw)
	}
}

func TestCreateOrder_UnknownMaker(t *testing.T) {
	svc := &stubService{createOrderErr: repository.ErrMakerNotFound}
	router := newTestRouter(t, svc)

	body := []byte(`{"dishes":[{"dish_id":"d1","quantity":1}],"makerid":"ghost"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestUpdateOrder_InvalidStatus(t *testing.T) {
	svc := &stubService{resolveErr: service.ErrInvalidStatus}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/o1",
		strings.NewReader(`{"status":"cooked"}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUpdateOrder_Resolved(t *testing.T) {
	svc := &stubService{
		resolveResp: &model.Order{
			ID:     "o1",
			Maker:  model.NewMakerRef("maker-1"),
			Status: model.OrderStatusAccepted,
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/o1",
		strings.NewReader(`{"status":"accepted"}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	raw, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(raw), `"status":"accepted"`) {
		t.Fatalf("response must carry accepted status: %s", raw)
	}
}

func TestGetPendingOrders_JSONResponse(t *testing.T) {
	svc := &stubService{
		pendingResp: []model.Order{
			{
				ID:     "o1",
				Maker:  model.NewMakerRef("maker-1"),
				Status: model.OrderStatusPending,
			},
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/makers/maker-1/orders", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	raw, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(raw), `"makerid":"maker-1"`) {
		t.Fatalf("maker reference must serialize as a plain id: %s", raw)
	}
}

func TestGetMaker_NotFound(t *testing.T) {
	svc := &stubService{makerErr: repository.ErrMakerNotFound}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/makers/ghost", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestUpdateMaker_InvalidSchedule(t *testing.T) {
	svc := &stubService{
		maker:     &model.Maker{ID: "maker-1"},
		policyErr: service.ErrInvalidPolicy,
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/makers/maker-1",
		strings.NewReader(`{"onlineTimeEnabled":true,"onlineTimeStart":"9","onlineTimeEnd":"21:00"}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestUpdateMaker_ShopToggle(t *testing.T) {
	svc := &stubService{
		maker: &model.Maker{ID: "maker-1", Policy: model.AvailabilityPolicy{ShopOpen: false}},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/makers/maker-1",
		strings.NewReader(`{"shopOpen":true}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	raw, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(raw), `"shopOpen":true`) {
		t.Fatalf("response must reflect the new toggle: %s", raw)
	}
}
