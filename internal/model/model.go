// Package model содержит доменные сущности сервиса homefood.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// AvailabilityPolicy описывает правила доступности мейкера для приёма заказов.
type AvailabilityPolicy struct {
	ShopOpen          bool
	OnlineTimeEnabled bool
	OnlineTimeStart   string
	OnlineTimeEnd     string
}

// Maker представляет повара, принимающего заказы.
type Maker struct {
	ID           string
	FirstName    string
	LastName     string
	Phone        string
	Email        string
	Address      string
	CuisineTypes []string
	Policy       AvailabilityPolicy
	CreatedAt    time.Time
}

// Dish описывает блюдо из каталога мейкера.
type Dish struct {
	ID          string
	MakerID     string
	Name        string
	Description string
	PriceCents  int64
	ImageURL    string
	CreatedAt   time.Time
}

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusAccepted OrderStatus = "accepted"
	OrderStatusRejected OrderStatus = "rejected"
)

// Valid сообщает, является ли значение одним из известных статусов заказа.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusRejected:
		return true
	}
	return false
}

// Resolved сообщает, находится ли статус в терминальном состоянии.
func (s OrderStatus) Resolved() bool {
	return s == OrderStatusAccepted || s == OrderStatusRejected
}

// OrderItem описывает позицию заказа.
type OrderItem struct {
	DishID     string `json:"dish_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price"`
	Quantity   int    `json:"quantity"`
}

// Order описывает заказ покупателя.
type Order struct {
	ID              string
	Items           []OrderItem
	AmountCents     int64
	DeliveryAddress string
	Maker           MakerRef
	CustomerID      string
	Status          OrderStatus
	CreatedAt       time.Time
}

// MakerRef — ссылка заказа на мейкера. На проводе встречается в двух видах:
// простой идентификатор-строка либо развёрнутый объект мейкера. Для сравнения
// идентичности оба вида сводятся к одному идентификатору через ID.
type MakerRef struct {
	id       string
	expanded *Maker
}

// NewMakerRef создаёт ссылку из простого идентификатора.
func NewMakerRef(id string) MakerRef {
	return MakerRef{id: id}
}

// NewExpandedMakerRef создаёт ссылку из развёрнутой записи мейкера.
func NewExpandedMakerRef(m Maker) MakerRef {
	return MakerRef{expanded: &m}
}

// ID возвращает идентификатор мейкера независимо от вида ссылки.
func (r MakerRef) ID() string {
	if r.expanded != nil {
		return r.expanded.ID
	}
	return r.id
}

// Expanded возвращает развёрнутую запись мейкера, если ссылка её содержит.
func (r MakerRef) Expanded() (*Maker, bool) {
	if r.expanded == nil {
		return nil, false
	}
	return r.expanded, true
}

type expandedMakerJSON struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Address   string `json:"address,omitempty"`
	ShopOpen  bool   `json:"shop_open,omitempty"`
}

// UnmarshalJSON принимает как строку-идентификатор, так и развёрнутый объект.
func (r *MakerRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty maker reference")
	}

	if trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("unmarshal maker id: %w", err)
		}
		*r = MakerRef{id: id}
		return nil
	}

	var obj expandedMakerJSON
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return fmt.Errorf("unmarshal maker object: %w", err)
	}
	if obj.ID == "" {
		return fmt.Errorf("maker object without id")
	}

	*r = MakerRef{expanded: &Maker{
		ID:        obj.ID,
		FirstName: obj.FirstName,
		LastName:  obj.LastName,
		Address:   obj.Address,
		Policy:    AvailabilityPolicy{ShopOpen: obj.ShopOpen},
	}}
	return nil
}

// MarshalJSON сериализует ссылку в тот же вид, в котором она была получена.
func (r MakerRef) MarshalJSON() ([]byte, error) {
	if r.expanded != nil {
		return json.Marshal(expandedMakerJSON{
			ID:        r.expanded.ID,
			FirstName: r.expanded.FirstName,
			LastName:  r.expanded.LastName,
			Address:   r.expanded.Address,
			ShopOpen:  r.expanded.Policy.ShopOpen,
		})
	}
	return json.Marshal(r.id)
}
