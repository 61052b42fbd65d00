package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateTableOrderRequest seats a table: the table transitions to OCCUPIED and
// a new dine-in order is created and bound to it.
type CreateTableOrderRequest struct {
	GuestCount          int                `json:"numberOfGuests"`
	SpecialInstructions string             `json:"specialInstructions"`
	PaymentMethod       PaymentMethod      `json:"paymentMethod"`
	Items               []OrderItemRequest `json:"orderItems"`
}

type OrderItemRequest struct {
	ProductID int64  `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes"`
	// RequestID deduplicates retried submissions of the same client mutation.
	RequestID string `json:"requestId"`
}

// AddToCartRequest adds a product to a table's active order, creating the order
// first when the table has none.
type AddToCartRequest struct {
	ProductID           int64  `json:"productId" binding:"required"`
	Quantity            int    `json:"quantity"`
	Notes               string `json:"notes"`
	GuestCount          int    `json:"numberOfGuests"`
	SpecialInstructions string `json:"specialInstructions"`
	RequestID           string `json:"requestId"`
}

// RemoveFromCartRequest decreases a product's quantity in the table's order,
// or removes the line outright when RemoveEntireItem is set.
type RemoveFromCartRequest struct {
	OrderID          int64  `json:"orderId" binding:"required"`
	ProductID        int64  `json:"productId" binding:"required"`
	Quantity         int    `json:"quantity"`
	RemoveEntireItem bool   `json:"removeEntireItem"`
	RequestID        string `json:"requestId"`
}

type UpdateOrderRequest struct {
	GuestCount          int             `json:"numberOfGuests"`
	SpecialInstructions string          `json:"specialInstructions"`
	PaymentMethod       PaymentMethod   `json:"paymentMethod"`
	PaymentReference    string          `json:"paymentReference"`
	Items               []OrderItem     `json:"orderItems"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
}

type OrderStatusUpdateRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

type CompleteOrderRequest struct {
	PaymentMethod    PaymentMethod `json:"paymentMethod"`
	PaymentReference string        `json:"paymentReference"`
}

// OrderEvent is published to Kafka on order lifecycle changes.
type OrderEvent struct {
	Type      string    `json:"type"`
	OrderID   int64     `json:"order_id"`
	TableID   *int64    `json:"table_id,omitempty"`
	Order     *Order    `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}

// KitchenEvent arrives from the kitchen display system and drives an order
// through IN_PROGRESS and READY.
type KitchenEvent struct {
	OrderID   int64       `json:"order_id"`
	Status    OrderStatus `json:"status"`
	Station   string      `json:"station"`
	Timestamp time.Time   `json:"timestamp"`
}
