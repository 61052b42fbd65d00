package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderReady      OrderStatus = "READY"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderInProgress, OrderReady, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type OrderType string

const (
	OrderDineIn   OrderType = "DINE_IN"
	OrderTakeout  OrderType = "TAKEOUT"
	OrderDelivery OrderType = "DELIVERY"
)

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "CASH"
	PaymentCreditCard    PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard     PaymentMethod = "DEBIT_CARD"
	PaymentMobilePayment PaymentMethod = "MOBILE_PAYMENT"
)

// Order is the transactional aggregate of line items tied to a dine-in table or
// a takeout/delivery request. TotalAmount is derived: it must always equal the
// sum of the item subtotals and is only written by the cart engine.
type Order struct {
	bun.BaseModel `bun:"table:orders" json:"-"`

	ID                  int64           `json:"id" bun:"id,pk,autoincrement"`
	OrderNumber         string          `json:"orderNumber" bun:"order_number"`
	OrderDate           time.Time       `json:"orderDate" bun:"order_date"`
	TableID             *int64          `json:"tableId,omitempty" bun:"table_id"`
	Type                OrderType       `json:"orderType" bun:"order_type"`
	Status              OrderStatus     `json:"status" bun:"status"`
	GuestCount          int             `json:"numberOfGuests" bun:"guest_count"`
	SpecialInstructions string          `json:"specialInstructions,omitempty" bun:"special_instructions"`
	PaymentMethod       PaymentMethod   `json:"paymentMethod,omitempty" bun:"payment_method"`
	PaymentReference    string          `json:"paymentReference,omitempty" bun:"payment_reference"`
	Items               []OrderItem     `json:"orderItems" bun:"rel:has-many,join:id=order_id"`
	TotalAmount         decimal.Decimal `json:"totalAmount" bun:"total_amount"`
}

// Item returns the line item with the given id, or nil.
func (o *Order) Item(itemID int64) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// OrderItem snapshots the product name and unit price at time of add; later
// catalog price changes do not retroactively change existing line items.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items" json:"-"`

	ID          int64           `json:"id" bun:"id,pk,autoincrement"`
	OrderID     int64           `json:"orderId" bun:"order_id"`
	ProductID   int64           `json:"productId" bun:"product_id"`
	ProductName string          `json:"productName" bun:"product_name"`
	Quantity    int             `json:"quantity" bun:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" bun:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal" bun:"subtotal"`
	Notes       string          `json:"notes,omitempty" bun:"notes"`

	// Provisional marks an item that exists only in a client-side optimistic
	// view and has never been persisted. Its ID must not be sent to the server.
	Provisional bool `json:"-" bun:"-"`
}
