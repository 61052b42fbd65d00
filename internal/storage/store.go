package storage

import (
	"errors"

	"restaurant-pos/internal/models"
)

// ErrNotFound is returned when a table or order id is unknown to the store.
var ErrNotFound = errors.New("not found")

type Store interface {
	// Table operations
	SaveTable(table *models.Table) error
	GetTable(id int64) (*models.Table, error)
	ListTables(filter models.TableFilter) ([]*models.Table, error)
	UpdateTable(table *models.Table) error
	DeleteTable(id int64) error

	// BindOrder sets the table's order reference and OCCUPIED status as one
	// atomic write; UnbindOrder drops the reference and applies the caller's
	// chosen status. These are the only mutators of the order reference.
	BindOrder(tableID, orderID int64) error
	UnbindOrder(tableID int64, status models.TableStatus) error

	// Order operations. SaveOrder assigns order and item ids; UpdateOrder
	// replaces the full aggregate including line items.
	SaveOrder(order *models.Order) error
	GetOrder(id int64) (*models.Order, error)
	UpdateOrder(order *models.Order) error
	GetCurrentOrderByTable(tableID int64) (*models.Order, error)
	ListOrders(status models.OrderStatus) ([]*models.Order, error)
}
