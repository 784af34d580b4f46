// Package ordersapi предоставляет клиент API заказов для доски мейкера.
package ordersapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/homefood-system/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с сервером заказов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент для обращения к серверу заказов по указанному
// адресу. Транспорт повторяет неудачные запросы; вызывающая сторона при этом
// сохраняет локальное состояние независимо от результата (best-effort).
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 1 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// orderJSON повторяет проводное представление заказа.
type orderJSON struct {
	ID              string            `json:"id"`
	Dishes          []model.OrderItem `json:"dishes"`
	Amount          float64           `json:"amount"`
	DeliveryAddress string            `json:"del_address"`
	Maker           model.MakerRef    `json:"makerid"`
	CustomerID      string            `json:"userid"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func (o orderJSON) toModel() model.Order {
	return model.Order{
		ID:              o.ID,
		Items:           o.Dishes,
		AmountCents:     int64(o.Amount * 100),
		DeliveryAddress: o.DeliveryAddress,
		Maker:           o.Maker,
		CustomerID:      o.CustomerID,
		Status:          model.OrderStatus(o.Status),
		CreatedAt:       o.CreatedAt,
	}
}

func (c *Client) url(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

// PendingOrders возвращает заказы мейкера, ожидающие его решения.
func (c *Client) PendingOrders(ctx context.Context, makerID string) ([]model.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.url(fmt.Sprintf("/api/v1/makers/%s/orders", makerID)), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var data struct {
		Orders []orderJSON `json:"orders"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}

	orders := make([]model.Order, 0, len(data.Orders))
	for _, o := range data.Orders {
		orders = append(orders, o.toModel())
	}

	return orders, nil
}

// UpdateOrderStatus сохраняет новый статус заказа на сервере.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	body, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.url(fmt.Sprintf("/api/v1/orders/%s", orderID)), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

// GetMaker возвращает запись мейкера вместе с политикой доступности.
func (c *Client) GetMaker(ctx context.Context, makerID string) (*model.Maker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.url(fmt.Sprintf("/api/v1/makers/%s", makerID)), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var data struct {
		Maker struct {
			ID                string `json:"id"`
			FirstName         string `json:"first_name"`
			LastName          string `json:"last_name"`
			Address           string `json:"address"`
			ShopOpen          bool   `json:"shopOpen"`
			OnlineTimeEnabled bool   `json:"onlineTimeEnabled"`
			OnlineTimeStart   string `json:"onlineTimeStart"`
			OnlineTimeEnd     string `json:"onlineTimeEnd"`
		} `json:"maker"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode maker: %w", err)
	}

	return &model.Maker{
		ID:        data.Maker.ID,
		FirstName: data.Maker.FirstName,
		LastName:  data.Maker.LastName,
		Address:   data.Maker.Address,
		Policy: model.AvailabilityPolicy{
			ShopOpen:          data.Maker.ShopOpen,
			OnlineTimeEnabled: data.Maker.OnlineTimeEnabled,
			OnlineTimeStart:   data.Maker.OnlineTimeStart,
			OnlineTimeEnd:     data.Maker.OnlineTimeEnd,
		},
	}, nil
}
