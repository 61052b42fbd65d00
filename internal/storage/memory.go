package storage

import (
	"sort"
	"sync"

	"restaurant-pos/internal/models"
)

// InMemoryStore backs tests and mock-mode runs.
type InMemoryStore struct {
	mutex       sync.RWMutex
	tables      map[int64]*models.Table
	orders      map[int64]*models.Order
	nextTableID int64
	nextOrderID int64
	nextItemID  int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tables: make(map[int64]*models.Table),
		orders: make(map[int64]*models.Order),
	}
}

func cloneTable(t *models.Table) *models.Table {
	cp := *t
	if t.CurrentOrderID != nil {
		id := *t.CurrentOrderID
		cp.CurrentOrderID = &id
	}
	return &cp
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	if o.TableID != nil {
		id := *o.TableID
		cp.TableID = &id
	}
	cp.Items = make([]models.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}

func (s *InMemoryStore) SaveTable(table *models.Table) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextTableID++
	table.ID = s.nextTableID
	s.tables[table.ID] = cloneTable(table)
	return nil
}

func (s *InMemoryStore) GetTable(id int64) (*models.Table, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	table, exists := s.tables[id]
	if !exists {
		return nil, ErrNotFound
	}
	return cloneTable(table), nil
}

func (s *InMemoryStore) ListTables(filter models.TableFilter) ([]*models.Table, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var tables []*models.Table
	for _, table := range s.tables {
		if filter.Status != "" && table.Status != filter.Status {
			continue
		}
		if filter.Location != "" && table.Location != filter.Location {
			continue
		}
		if filter.MinCapacity > 0 && table.Capacity < filter.MinCapacity {
			continue
		}
		tables = append(tables, cloneTable(table))
	}
	return tables, nil
}

func (s *InMemoryStore) UpdateTable(table *models.Table) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing, exists := s.tables[table.ID]
	if !exists {
		return ErrNotFound
	}
	cp := cloneTable(table)
	cp.CurrentOrderID = existing.CurrentOrderID
	s.tables[table.ID] = cp
	return nil
}

func (s *InMemoryStore) DeleteTable(id int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.tables[id]; !exists {
		return ErrNotFound
	}
	delete(s.tables, id)
	return nil
}

func (s *InMemoryStore) BindOrder(tableID, orderID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	table, exists := s.tables[tableID]
	if !exists {
		return ErrNotFound
	}
	table.CurrentOrderID = &orderID
	table.Status = models.TableOccupied
	return nil
}

func (s *InMemoryStore) UnbindOrder(tableID int64, status models.TableStatus) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	table, exists := s.tables[tableID]
	if !exists {
		return ErrNotFound
	}
	table.CurrentOrderID = nil
	table.Status = status
	return nil
}

func (s *InMemoryStore) SaveOrder(order *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextOrderID++
	order.ID = s.nextOrderID
	for i := range order.Items {
		s.nextItemID++
		order.Items[i].ID = s.nextItemID
		order.Items[i].OrderID = order.ID
		order.Items[i].Provisional = false
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *InMemoryStore) GetOrder(id int64) (*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *InMemoryStore) UpdateOrder(order *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.orders[order.ID]; !exists {
		return ErrNotFound
	}
	for i := range order.Items {
		if order.Items[i].ID == 0 || order.Items[i].Provisional {
			s.nextItemID++
			order.Items[i].ID = s.nextItemID
			order.Items[i].Provisional = false
		}
		order.Items[i].OrderID = order.ID
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *InMemoryStore) GetCurrentOrderByTable(tableID int64) (*models.Order, error) {
	s.mutex.RLock()
	table, exists := s.tables[tableID]
	if !exists {
		s.mutex.RUnlock()
		return nil, ErrNotFound
	}
	if table.CurrentOrderID == nil {
		s.mutex.RUnlock()
		return nil, ErrNotFound
	}
	orderID := *table.CurrentOrderID
	s.mutex.RUnlock()

	return s.GetOrder(orderID)
}

func (s *InMemoryStore) ListOrders(status models.OrderStatus) ([]*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var orders []*models.Order
	for _, order := range s.orders {
		if status != "" && order.Status != status {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].OrderDate.After(orders[j].OrderDate)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}
