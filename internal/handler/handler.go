// Package handler содержит HTTP-обработчики API сервиса homefood.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/homefood-system/internal/availability"
	"github.com/mmeshcher/homefood-system/internal/model"
	"github.com/mmeshcher/homefood-system/internal/repository"
	"github.com/mmeshcher/homefood-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterMaker(ctx context.Context, m model.Maker) (*model.Maker, error)
	GetMaker(ctx context.Context, id string) (*model.Maker, error)
	UpdateAvailabilityPolicy(ctx context.Context, makerID string, policy model.AvailabilityPolicy) error
	SetShopOpen(ctx context.Context, makerID string, open bool) (*model.Maker, error)
	CreateOrder(ctx context.Context, o model.Order) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	PendingOrders(ctx context.Context, makerID string) ([]model.Order, error)
	OrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error)
	ResolveOrder(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)
	CreateDish(ctx context.Context, d model.Dish) (*model.Dish, error)
	GetDish(ctx context.Context, id string) (*model.Dish, error)
	DishesByMaker(ctx context.Context, makerID string) ([]model.Dish, error)
	UpdateDish(ctx context.Context, d model.Dish) error
	DeleteDish(ctx context.Context, id string) error
}

// Handler реализует HTTP-обработчики API сервиса homefood.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) success(w http.ResponseWriter, statusCode int, data any) {
	h.writeJSON(w, statusCode, envelope{Status: "success", Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSON(w, statusCode, envelope{Status: "fail", Message: message})
}

type orderResponse struct {
	ID              string            `json:"id"`
	Dishes          []model.OrderItem `json:"dishes"`
	Amount          float64           `json:"amount"`
	DeliveryAddress string            `json:"del_address"`
	Maker           model.MakerRef    `json:"makerid"`
	CustomerID      string            `json:"userid"`
	Status          string            `json:"status"`
	CreatedAt       string            `json:"createdAt"`
}

func toOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		Dishes:          o.Items,
		Amount:          float64(o.AmountCents) / 100,
		DeliveryAddress: o.DeliveryAddress,
		Maker:           o.Maker,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
}

type createOrderRequest struct {
	Dishes          []model.OrderItem `json:"dishes"`
	Amount          float64           `json:"amount"`
	DeliveryAddress string            `json:"del_address"`
	Maker           model.MakerRef    `json:"makerid"`
	CustomerID      string            `json:"userid"`
}

// CreateOrder создаёт заказ. Возможность создания проверяется политикой
// доступности мейкера; при отказе покупателю возвращается причина с
// настроенными часами работы.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), model.Order{
		Items:           req.Dishes,
		AmountCents:     int64(req.Amount * 100),
		DeliveryAddress: req.DeliveryAddress,
		Maker:           req.Maker,
		CustomerID:      req.CustomerID,
	})
	if err != nil {
		var unavailable *availability.UnavailableError
		switch {
		case errors.As(err, &unavailable):
			h.fail(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrMakerNotFound):
			h.fail(w, http.StatusNotFound, "maker not found")
		case errors.Is(err, service.ErrEmptyOrder):
			h.fail(w, http.StatusBadRequest, "order has no items")
		default:
			h.logger.Error("create order error", zap.Error(err))
			h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		return
	}

	h.success(w, http.StatusCreated, map[string]any{"order": toOrderResponse(*order)})
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			h.fail(w, http.StatusNotFound, "no order found with that id")
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.String("order", id))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	h.success(w, http.StatusOK, map[string]any{"order": toOrderResponse(*order)})
}

// GetOrders возвращает историю заказов покупателя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("userid")
	if customerID == "" {
		h.fail(w, http.StatusBadRequest, "userid query parameter is required")
		return
	}

	orders, err := h.service.OrdersByCustomer(r.Context(), customerID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.String("customer", customerID))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	h.success(w, http.StatusOK, map[string]any{"orders": resp})
}

type updateOrderRequest struct {
	Status string `json:"status"`
}

// UpdateOrder переводит заказ в статус accepted или rejected. Повторное
// разрешение уже разрешённого заказа возвращает текущее состояние заказа.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.ResolveOrder(r.Context(), id, model.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			h.fail(w, http.StatusBadRequest, "status must be accepted or rejected")
		case errors.Is(err, repository.ErrOrderNotFound):
			h.fail(w, http.StatusNotFound, "no order found with that id")
		default:
			h.logger.Error("update order error", zap.Error(err), zap.String("order", id))
			h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		return
	}

	h.success(w, http.StatusOK, map[string]any{"order": toOrderResponse(*order)})
}

// GetPendingOrders возвращает заказы мейкера, ожидающие его решения.
func (h *Handler) GetPendingOrders(w http.ResponseWriter, r *http.Request) {
	makerID := chi.URLParam(r, "id")

	orders, err := h.service.PendingOrders(r.Context(), makerID)
	if err != nil {
		h.logger.Error("get pending orders error", zap.Error(err), zap.String("maker", makerID))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	h.success(w, http.StatusOK, map[string]any{"orders": resp})
}

type makerResponse struct {
	ID                string   `json:"id"`
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	Phone             string   `json:"phone,omitempty"`
	Email             string   `json:"email,omitempty"`
	Address           string   `json:"address,omitempty"`
	CuisineTypes      []string `json:"cuisine_types,omitempty"`
	ShopOpen          bool     `json:"shopOpen"`
	OnlineTimeEnabled bool     `json:"onlineTimeEnabled"`
	OnlineTimeStart   string   `json:"onlineTimeStart,omitempty"`
	OnlineTimeEnd     string   `json:"onlineTimeEnd,omitempty"`
}

func toMakerResponse(m model.Maker) makerResponse {
	return makerResponse{
		ID:                m.ID,
		FirstName:         m.FirstName,
		LastName:          m.LastName,
		Phone:             m.Phone,
		Email:             m.Email,
		Address:           m.Address,
		CuisineTypes:      m.CuisineTypes,
		ShopOpen:          m.Policy.ShopOpen,
		OnlineTimeEnabled: m.Policy.OnlineTimeEnabled,
		OnlineTimeStart:   m.Policy.OnlineTimeStart,
		OnlineTimeEnd:     m.Policy.OnlineTimeEnd,
	}
}

type registerMakerRequest struct {
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Phone        string   `json:"phone"`
	Email        string   `json:"email"`
	Address      string   `json:"address"`
	CuisineTypes []string `json:"cuisine_types"`
}

// RegisterMaker регистрирует нового мейкера.
func (h *Handler) RegisterMaker(w http.ResponseWriter, r *http.Request) {
	var req registerMakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FirstName == "" || req.Email == "" {
		h.fail(w, http.StatusBadRequest, "first_name and email are required")
		return
	}

	maker, err := h.service.RegisterMaker(r.Context(), model.Maker{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		CuisineTypes: req.CuisineTypes,
	})
	if err != nil {
		h.logger.Error("register maker error", zap.Error(err))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	h.success(w, http.StatusCreated, map[string]any{"maker": toMakerResponse(*maker)})
}

// GetMaker возвращает запись мейкера вместе с политикой доступности.
func (h *Handler) GetMaker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	maker, err := h.service.GetMaker(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrMakerNotFound) {
			h.fail(w, http.StatusNotFound, "maker not found")
			return
		}
		h.logger.Error("get maker error", zap.Error(err), zap.String("maker", id))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	h.success(w, http.StatusOK, map[string]any{"maker": toMakerResponse(*maker)})
}

type updateMakerRequest struct {
	ShopOpen          *bool   `json:"shopOpen"`
	OnlineTimeEnabled *bool   `json:"onlineTimeEnabled"`
	OnlineTimeStart   *string `json:"onlineTimeStart"`
	OnlineTimeEnd     *string `json:"onlineTimeEnd"`
}

func (r updateMakerRequest) touchesSchedule() bool {
	return r.OnlineTimeEnabled != nil || r.OnlineTimeStart != nil || r.OnlineTimeEnd != nil
}

// UpdateMaker обновляет ручной флаг открытия магазина и расписание работы.
// Отсутствующие в запросе поля сохраняют текущие значения.
func (h *Handler) UpdateMaker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateMakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.touchesSchedule() {
		if req.ShopOpen == nil {
			h.fail(w, http.StatusBadRequest, "nothing to update")
			return
		}

		maker, err := h.service.SetShopOpen(r.Context(), id, *req.ShopOpen)
		if err != nil {
			h.handleMakerUpdateError(w, id, err)
			return
		}
		h.success(w, http.StatusOK, map[string]any{"maker": toMakerResponse(*maker)})
		return
	}

	maker, err := h.service.GetMaker(r.Context(), id)
	if err != nil {
		h.handleMakerUpdateError(w, id, err)
		return
	}

	policy := maker.Policy
	if req.ShopOpen != nil {
		policy.ShopOpen = *req.ShopOpen
	}
	if req.OnlineTimeEnabled != nil {
		policy.OnlineTimeEnabled = *req.OnlineTimeEnabled
	}
	if req.OnlineTimeStart != nil {
		policy.OnlineTimeStart = *req.OnlineTimeStart
	}
	if req.OnlineTimeEnd != nil {
		policy.OnlineTimeEnd = *req.OnlineTimeEnd
	}

	if err := h.service.UpdateAvailabilityPolicy(r.Context(), id, policy); err != nil {
		h.handleMakerUpdateError(w, id, err)
		return
	}

	maker.Policy = policy
	h.success(w, http.StatusOK, map[string]any{"maker": toMakerResponse(*maker)})
}

func (h *Handler) handleMakerUpdateError(w http.ResponseWriter, makerID string, err error) {
	switch {
	case errors.Is(err, repository.ErrMakerNotFound):
		h.fail(w, http.StatusNotFound, "maker not found")
	case errors.Is(err, service.ErrInvalidPolicy):
		h.fail(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("update maker error", zap.Error(err), zap.String("maker", makerID))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

type dishResponse struct {
	ID          string  `json:"id"`
	MakerID     string  `json:"makerid"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image,omitempty"`
}

func toDishResponse(d model.Dish) dishResponse {
	return dishResponse{
		ID:          d.ID,
		MakerID:     d.MakerID,
		Name:        d.Name,
		Description: d.Description,
		Price:       float64(d.PriceCents) / 100,
		ImageURL:    d.ImageURL,
	}
}

type dishRequest struct {
	MakerID     string  `json:"makerid"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image"`
}

// CreateDish добавляет блюдо в каталог мейкера.
func (h *Handler) CreateDish(w http.ResponseWriter, r *http.Request) {
	var req dishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.MakerID == "" || req.Name == "" {
		h.fail(w, http.StatusBadRequest, "makerid and name are required")
		return
	}

	dish, err := h.service.CreateDish(r.Context(), model.Dish{
		MakerID:     req.MakerID,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  int64(req.Price * 100),
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, repository.ErrMakerNotFound) {
			h.fail(w, http.StatusNotFound, "maker not found")
			return
		}
		h.logger.Error("create dish error", zap.Error(err))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	h.success(w, http.StatusCreated, map[string]any{"dish": toDishResponse(*dish)})
}

// GetDishes возвращает каталог блюд мейкера.
func (h *Handler) GetDishes(w http.ResponseWriter, r *http.Request) {
	makerID := r.URL.Query().Get("makerid")
	if makerID == "" {
		h.fail(w, http.StatusBadRequest, "makerid query parameter is required")
		return
	}

	dishes, err := h.service.DishesByMaker(r.Context(), makerID)
	if err != nil {
		h.logger.Error("get dishes error", zap.Error(err), zap.String("maker", makerID))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	resp := make([]dishResponse, 0, len(dishes))
	for _, d := range dishes {
		resp = append(resp, toDishResponse(d))
	}

	h.success(w, http.StatusOK, map[string]any{"dishes": resp})
}

// GetDish возвращает блюдо по идентификатору.
func (h *Handler) GetDish(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dish, err := h.service.GetDish(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrDishNotFound) {
			h.fail(w, http.StatusNotFound, "no dish found with that id")
			return
		}
		h.logger.Error("get dish error", zap.Error(err), zap.String("dish", id))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	h.success(w, http.StatusOK, map[string]any{"dish": toDishResponse(*dish)})
}

// UpdateDish обновляет блюдо в каталоге.
func (h *Handler) UpdateDish(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.UpdateDish(r.Context(), model.Dish{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  int64(req.Price * 100),
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDishNotFound) {
			h.fail(w, http.StatusNotFound, "no dish found with that id")
			return
		}
		h.logger.Error("update dish error", zap.Error(err), zap.String("dish", id))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteDish удаляет блюдо из каталога.
func (h *Handler) DeleteDish(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteDish(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrDishNotFound) {
			h.fail(w, http.StatusNotFound, "no dish found with that id")
			return
		}
		h.logger.Error("delete dish error", zap.Error(err), zap.String("dish", id))
		h.fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
