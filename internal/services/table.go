package services

import (
	"errors"
	"fmt"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

var (
	ErrTableNotFound      = errors.New("table not found")
	ErrInvalidTransition  = errors.New("invalid table transition")
	ErrInvalidStatus      = errors.New("unknown table status")
	ErrConflictingBinding = errors.New("table already bound to an order")
)

// TableService is the registry and lifecycle controller for restaurant tables.
// It is the only writer of the table status and of the order binding, which
// keeps the OCCUPIED-iff-bound invariant enforceable in one place.
type TableService struct {
	store storage.Store
	log   *logger.Logger
}

func NewTableService(store storage.Store, log *logger.Logger) *TableService {
	return &TableService{
		store: store,
		log:   log,
	}
}

func (s *TableService) GetTable(id int64) (*models.Table, error) {
	table, err := s.store.GetTable(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	return table, nil
}

func (s *TableService) ListTables(filter models.TableFilter) ([]*models.Table, error) {
	return s.store.ListTables(filter)
}

func (s *TableService) CreateTable(req *models.CreateTableRequest) (*models.Table, error) {
	status := req.Status
	if status == "" {
		status = models.TableAvailable
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if status == models.TableOccupied {
		// A table cannot be born occupied; occupancy comes from an order binding.
		return nil, ErrInvalidTransition
	}

	shape := req.Shape
	if shape == "" {
		shape = "RECTANGLE"
	}
	location := req.Location
	if location == "" {
		location = "MAIN"
	}

	table := &models.Table{
		TableNumber: req.TableNumber,
		Capacity:    req.Capacity,
		Location:    location,
		Status:      status,
		PositionX:   req.PositionX,
		PositionY:   req.PositionY,
		Width:       req.Width,
		Height:      req.Height,
		Shape:       shape,
	}

	if err := s.store.SaveTable(table); err != nil {
		s.log.Error("TABLE", fmt.Sprintf("Failed to create table %s: %v", req.TableNumber, err))
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	s.log.LogTable("CREATE", table.TableNumber, fmt.Sprintf("Table created with capacity %d at %s", table.Capacity, table.Location))
	return table, nil
}

func (s *TableService) UpdateTable(id int64, req *models.UpdateTableRequest) (*models.Table, error) {
	table, err := s.GetTable(id)
	if err != nil {
		return nil, err
	}

	table.TableNumber = req.TableNumber
	table.Capacity = req.Capacity
	if req.Location != "" {
		table.Location = req.Location
	}
	table.PositionX = req.PositionX
	table.PositionY = req.PositionY
	table.Width = req.Width
	table.Height = req.Height
	if req.Shape != "" {
		table.Shape = req.Shape
	}

	if err := s.store.UpdateTable(table); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("failed to update table: %w", err)
	}

	s.log.LogTable("UPDATE", table.TableNumber, "Table updated")
	return table, nil
}

func (s *TableService) DeleteTable(id int64) error {
	if err := s.store.DeleteTable(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTableNotFound
		}
		return fmt.Errorf("failed to delete table: %w", err)
	}
	s.log.LogTable("DELETE", fmt.Sprintf("%d", id), "Table deleted")
	return nil
}

// ChangeStatus applies a manual housekeeping transition. OCCUPIED is never a
// legal target here - occupancy only arises from BindOrder - and an occupied
// table must be cleared before any other status applies.
func (s *TableService) ChangeStatus(id int64, status models.TableStatus) (*models.Table, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if status == models.TableOccupied {
		return nil, ErrInvalidTransition
	}

	table, err := s.GetTable(id)
	if err != nil {
		return nil, err
	}
	if table.Occupied() {
		s.log.LogTable("REJECT", table.TableNumber, fmt.Sprintf("Cannot move occupied table to %s without clearing", status))
		return nil, ErrInvalidTransition
	}

	table.Status = status
	if err := s.store.UpdateTable(table); err != nil {
		return nil, fmt.Errorf("failed to change table status: %w", err)
	}

	s.log.LogTable("STATUS", table.TableNumber, fmt.Sprintf("Status changed to %s", status))
	return table, nil
}

// BindOrder marks the table OCCUPIED and records the order reference as one
// atomic pair. Permitted only from AVAILABLE or RESERVED.
func (s *TableService) BindOrder(tableID, orderID int64) (*models.Table, error) {
	table, err := s.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	if table.CurrentOrderID != nil {
		s.log.LogTable("REJECT", table.TableNumber, fmt.Sprintf("Already bound to order %d", *table.CurrentOrderID))
		return nil, ErrConflictingBinding
	}
	if table.Status != models.TableAvailable && table.Status != models.TableReserved {
		return nil, ErrInvalidTransition
	}

	if err := s.store.BindOrder(tableID, orderID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("failed to bind order: %w", err)
	}

	s.log.LogTable("BIND", table.TableNumber, fmt.Sprintf("Order %d bound, table OCCUPIED", orderID))
	return s.GetTable(tableID)
}

// UnbindOrder drops the order reference. The resulting status is the caller's
// policy choice: CLEANING (needs turnover, the default) or AVAILABLE.
func (s *TableService) UnbindOrder(tableID int64, status models.TableStatus) (*models.Table, error) {
	if status == "" {
		status = models.TableCleaning
	}
	if status != models.TableAvailable && status != models.TableCleaning {
		return nil, ErrInvalidStatus
	}

	if err := s.store.UnbindOrder(tableID, status); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("failed to unbind order: %w", err)
	}

	s.log.LogTable("UNBIND", fmt.Sprintf("%d", tableID), fmt.Sprintf("Order unbound, table %s", status))
	return s.GetTable(tableID)
}

// ClearTable frees an occupied table whose order has already reached a
// terminal state. Clearing a table mid-order goes through CompleteAndClear.
func (s *TableService) ClearTable(tableID int64, status models.TableStatus) (*models.Table, error) {
	table, err := s.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	if table.CurrentOrderID == nil {
		s.log.LogTable("REJECT", table.TableNumber, "Nothing to clear")
		return nil, ErrInvalidTransition
	}

	order, err := s.store.GetOrder(*table.CurrentOrderID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load bound order: %w", err)
	}
	if order != nil && !order.Status.Terminal() {
		s.log.LogTable("REJECT", table.TableNumber, fmt.Sprintf("Bound order %d is still %s", order.ID, order.Status))
		return nil, ErrInvalidTransition
	}

	return s.UnbindOrder(tableID, status)
}
