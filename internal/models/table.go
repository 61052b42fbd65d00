package models

import (
	"github.com/uptrace/bun"
)

type TableStatus string

const (
	TableAvailable   TableStatus = "AVAILABLE"
	TableOccupied    TableStatus = "OCCUPIED"
	TableReserved    TableStatus = "RESERVED"
	TableCleaning    TableStatus = "CLEANING"
	TableMaintenance TableStatus = "MAINTENANCE"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved, TableCleaning, TableMaintenance:
		return true
	}
	return false
}

// Table is a physical seating unit. CurrentOrderID is the single source of truth
// for the table/order binding and is only ever written through the table service.
type Table struct {
	bun.BaseModel `bun:"table:restaurant_tables" json:"-"`

	ID             int64       `json:"id" bun:"id,pk,autoincrement"`
	TableNumber    string      `json:"tableNumber" bun:"table_number"`
	Capacity       int         `json:"capacity" bun:"capacity"`
	Location       string      `json:"location" bun:"location"`
	Status         TableStatus `json:"status" bun:"status"`
	CurrentOrderID *int64      `json:"currentOrderId,omitempty" bun:"current_order_id"`

	// Floor plan geometry.
	PositionX int    `json:"positionX" bun:"position_x"`
	PositionY int    `json:"positionY" bun:"position_y"`
	Width     int    `json:"width" bun:"width"`
	Height    int    `json:"height" bun:"height"`
	Shape     string `json:"shape" bun:"shape"`
}

func (t *Table) Occupied() bool {
	return t.Status == TableOccupied
}

type TableFilter struct {
	Status      TableStatus
	Location    string
	MinCapacity int
}

type CreateTableRequest struct {
	TableNumber string      `json:"tableNumber" binding:"required"`
	Capacity    int         `json:"capacity" binding:"required,gt=0"`
	Location    string      `json:"location"`
	Status      TableStatus `json:"status"`
	PositionX   int         `json:"positionX"`
	PositionY   int         `json:"positionY"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Shape       string      `json:"shape"`
}

type UpdateTableRequest struct {
	TableNumber string `json:"tableNumber" binding:"required"`
	Capacity    int    `json:"capacity" binding:"required,gt=0"`
	Location    string `json:"location"`
	PositionX   int    `json:"positionX"`
	PositionY   int    `json:"positionY"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Shape       string `json:"shape"`
}

type TableStatusUpdateRequest struct {
	Status TableStatus `json:"status" binding:"required"`
}

type ClearTableRequest struct {
	// Resulting status after the clear: CLEANING (default) or AVAILABLE.
	Status TableStatus `json:"status"`
}
