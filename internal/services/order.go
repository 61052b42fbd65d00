package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurant-pos/internal/cart"
	"restaurant-pos/internal/catalog"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
	"restaurant-pos/internal/utils"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderClosed        = errors.New("order is completed or cancelled")
	ErrOrderNotOnTable    = errors.New("order is not associated with a table")
	ErrOrderTableMismatch = errors.New("order does not belong to the specified table")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidOrderStatus = errors.New("invalid order status")
	ErrTableClearNeeded   = errors.New("order completed but table clear failed; retry the clear")
)

// orderTransitions is the legal successor set for each non-terminal status.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:    {models.OrderInProgress, models.OrderCompleted, models.OrderCancelled},
	models.OrderInProgress: {models.OrderReady, models.OrderCompleted, models.OrderCancelled},
	models.OrderReady:      {models.OrderCompleted},
}

func transitionAllowed(from, to models.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Deduper remembers client mutation request ids so a retried submission whose
// first attempt succeeded server-side is not applied twice.
type Deduper interface {
	MarkRequest(ctx context.Context, requestID string) (bool, error)
	ReleaseRequest(ctx context.Context, requestID string) error
}

// EventPublisher delivers order lifecycle events to downstream consumers.
type EventPublisher interface {
	PublishOrderEvent(event *models.OrderEvent) error
}

type OrderService struct {
	store    storage.Store
	tables   *TableService
	catalog  catalog.Catalog
	producer EventPublisher
	dedup    Deduper
	log      *logger.Logger
}

func NewOrderService(store storage.Store, tables *TableService, cat catalog.Catalog, producer EventPublisher, dedup Deduper, log *logger.Logger) *OrderService {
	return &OrderService{
		store:    store,
		tables:   tables,
		catalog:  cat,
		producer: producer,
		dedup:    dedup,
		log:      log,
	}
}

func (s *OrderService) GetOrder(id int64) (*models.Order, error) {
	order, err := s.store.GetOrder(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetCurrentTableOrder returns whatever order the table is bound to, terminal
// or not. GetActiveTableOrder filters the terminal states out.
func (s *OrderService) GetCurrentTableOrder(tableID int64) (*models.Order, error) {
	if _, err := s.tables.GetTable(tableID); err != nil {
		return nil, err
	}
	order, err := s.store.GetCurrentOrderByTable(tableID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetActiveTableOrder(tableID int64) (*models.Order, error) {
	order, err := s.GetCurrentTableOrder(tableID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// CreateTableOrder seats a table: a new dine-in PENDING order is created and
// bound to the table, moving it to OCCUPIED.
func (s *OrderService) CreateTableOrder(ctx context.Context, token string, tableID int64, req *models.CreateTableOrderRequest) (*models.Order, error) {
	s.log.LogOrder("SEAT", fmt.Sprintf("table:%d", tableID), "Creating dine-in order")

	table, err := s.tables.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	if table.CurrentOrderID != nil {
		return nil, ErrConflictingBinding
	}
	if table.Status != models.TableAvailable && table.Status != models.TableReserved {
		return nil, ErrInvalidTransition
	}

	guests := req.GuestCount
	if guests <= 0 {
		guests = 1
	}

	order := &models.Order{
		OrderNumber:         utils.GenerateOrderNumber(),
		OrderDate:           time.Now(),
		TableID:             &tableID,
		Type:                models.OrderDineIn,
		Status:              models.OrderPending,
		GuestCount:          guests,
		SpecialInstructions: req.SpecialInstructions,
		PaymentMethod:       req.PaymentMethod,
	}

	for _, itemReq := range req.Items {
		if err := s.addSnapshotted(ctx, token, order, itemReq.ProductID, itemReq.Quantity, itemReq.Notes); err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveOrder(order); err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to save order for table %d: %v", tableID, err))
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	if _, err := s.tables.BindOrder(tableID, order.ID); err != nil {
		// The order is persisted but the table binding was refused; cancel the
		// orphan so the table does not end up racing two open orders.
		order.Status = models.OrderCancelled
		if updErr := s.store.UpdateOrder(order); updErr != nil {
			s.log.Error("ORDER", fmt.Sprintf("Failed to cancel orphan order %d: %v", order.ID, updErr))
		}
		return nil, err
	}

	s.log.LogOrder("CREATE", order.OrderNumber, fmt.Sprintf("Order %d bound to table %d", order.ID, tableID))
	s.publishOrderEvent("order.created", order)
	return order, nil
}

// ListOrders returns all orders, newest first, optionally filtered by status.
func (s *OrderService) ListOrders(status models.OrderStatus) ([]*models.Order, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidOrderStatus
	}
	orders, err := s.store.ListOrders(status)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// AddItemToTableOrder adds a product to the table's active order, creating the
// order first when the table has none. Coalescing follows the cart engine's
// quick-add rule. A replayed request id returns the current order unchanged.
func (s *OrderService) AddItemToTableOrder(ctx context.Context, token string, tableID int64, req *models.AddToCartRequest) (*models.Order, error) {
	fresh, err := s.markRequest(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		s.log.LogOrder("DEDUP", req.RequestID, "Duplicate cart mutation, returning current order")
		return s.GetActiveTableOrder(tableID)
	}

	table, err := s.tables.GetTable(tableID)
	if err != nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, err
	}

	order, err := s.GetActiveTableOrder(tableID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, ErrOrderNotFound):
		order = s.newCartOrder(tableID, req)
		created = true
	default:
		s.releaseRequest(ctx, req.RequestID)
		return nil, err
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	product, err := s.lookupProduct(ctx, token, req.ProductID)
	if err != nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, err
	}

	if _, err := cart.AddItem(order, *product, quantity, req.Notes); err != nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, mapCartErr(err)
	}

	if req.SpecialInstructions != "" {
		order.SpecialInstructions = req.SpecialInstructions
	}

	if created {
		if err := s.store.SaveOrder(order); err != nil {
			s.releaseRequest(ctx, req.RequestID)
			return nil, fmt.Errorf("failed to save order: %w", err)
		}
		if _, err := s.tables.BindOrder(table.ID, order.ID); err != nil {
			s.releaseRequest(ctx, req.RequestID)
			return nil, err
		}
		s.log.LogOrder("CREATE", order.OrderNumber, fmt.Sprintf("Cart add opened order %d on table %d", order.ID, tableID))
	} else {
		if err := s.store.UpdateOrder(order); err != nil {
			s.releaseRequest(ctx, req.RequestID)
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
	}

	s.log.LogOrder("CART_ADD", order.OrderNumber, fmt.Sprintf("Product %d x%d added, total %s", req.ProductID, quantity, order.TotalAmount))
	return order, nil
}

func (s *OrderService) newCartOrder(tableID int64, req *models.AddToCartRequest) *models.Order {
	guests := req.GuestCount
	if guests <= 0 {
		guests = 1
	}
	return &models.Order{
		OrderNumber:         utils.GenerateOrderNumber(),
		OrderDate:           time.Now(),
		TableID:             &tableID,
		Type:                models.OrderDineIn,
		Status:              models.OrderPending,
		GuestCount:          guests,
		SpecialInstructions: req.SpecialInstructions,
	}
}

// AddItemToOrder is the explicit-add editing path: the new line is never
// coalesced with an existing one, even for the same product.
func (s *OrderService) AddItemToOrder(ctx context.Context, token string, orderID int64, req *models.OrderItemRequest) (*models.Order, error) {
	fresh, err := s.markRequest(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		s.log.LogOrder("DEDUP", req.RequestID, "Duplicate item submission, returning current order")
		return s.GetOrder(orderID)
	}

	order, err := s.GetOrder(orderID)
	if err != nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, err
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	product, err := s.lookupProduct(ctx, token, req.ProductID)
	if err != nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, err
	}

	if _, err := cart.AppendItem(order, *product, quantity, req.Notes); err != nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, mapCartErr(err)
	}

	if err := s.store.UpdateOrder(order); err != nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.log.LogOrder("ITEM_ADD", order.OrderNumber, fmt.Sprintf("Product %d appended as new line", req.ProductID))
	return order, nil
}

// RemoveItemFromTableOrder decreases a product's quantity in the table's order
// or drops the line. Removing the last line cancels the order and frees the
// table. A replayed request id returns the current order unchanged.
func (s *OrderService) RemoveItemFromTableOrder(ctx context.Context, tableID int64, req *models.RemoveFromCartRequest) (*models.Order, error) {
	fresh, err := s.markRequest(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		s.log.LogOrder("DEDUP", req.RequestID, "Duplicate cart mutation, returning current order")
		return s.GetOrder(req.OrderID)
	}

	order, err := s.GetOrder(req.OrderID)
	if err != nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, err
	}
	if order.TableID == nil || *order.TableID != tableID {
		s.releaseRequest(ctx, req.RequestID)
		return nil, ErrOrderTableMismatch
	}
	if order.Status.Terminal() {
		s.releaseRequest(ctx, req.RequestID)
		return nil, ErrOrderClosed
	}

	var target *models.OrderItem
	for i := range order.Items {
		if order.Items[i].ProductID == req.ProductID {
			target = &order.Items[i]
			break
		}
	}
	if target == nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, cart.ErrItemNotFound
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	if req.RemoveEntireItem || target.Quantity <= quantity {
		if err := cart.RemoveItem(order, target.ID); err != nil {
			s.releaseRequest(ctx, req.RequestID)
			return nil, mapCartErr(err)
		}
	} else {
		newQty := target.Quantity - quantity
		if err := cart.EditItem(order, target.ID, cart.ItemPatch{Quantity: &newQty}); err != nil {
			s.releaseRequest(ctx, req.RequestID)
			return nil, mapCartErr(err)
		}
	}

	if len(order.Items) == 0 {
		order.Status = models.OrderCancelled
		if err := s.store.UpdateOrder(order); err != nil {
			s.releaseRequest(ctx, req.RequestID)
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
		if _, err := s.tables.UnbindOrder(tableID, models.TableAvailable); err != nil {
			s.log.Error("ORDER", fmt.Sprintf("Order %d cancelled but table %d not freed: %v", order.ID, tableID, err))
			return order, fmt.Errorf("%w: %v", ErrTableClearNeeded, err)
		}
		s.log.LogOrder("CANCEL", order.OrderNumber, "Last item removed; order cancelled and table freed")
		s.publishOrderEvent("order.cancelled", order)
		s.publishOrderEvent("table.cleared", order)
		return order, nil
	}

	if err := s.store.UpdateOrder(order); err != nil {
		s.releaseRequest(ctx, req.RequestID)
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.log.LogOrder("CART_REMOVE", order.OrderNumber, fmt.Sprintf("Product %d reduced, total %s", req.ProductID, order.TotalAmount))
	return order, nil
}

// UpdateOrder replaces the editable order fields and the full item set. The
// server recomputes every subtotal and the total; client-supplied derived
// values are ignored.
func (s *OrderService) UpdateOrder(orderID int64, req *models.UpdateOrderRequest) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, ErrOrderClosed
	}

	if req.GuestCount > 0 {
		order.GuestCount = req.GuestCount
	}
	order.SpecialInstructions = req.SpecialInstructions
	if req.PaymentMethod != "" {
		order.PaymentMethod = req.PaymentMethod
	}
	if req.PaymentReference != "" {
		order.PaymentReference = req.PaymentReference
	}

	if req.Items != nil {
		for i := range req.Items {
			if req.Items[i].Quantity < 1 {
				return nil, cart.ErrInvalidQuantity
			}
		}
		order.Items = req.Items
	}
	cart.Recompute(order)

	if err := s.store.UpdateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.log.LogOrder("UPDATE", order.OrderNumber, fmt.Sprintf("Order replaced, total %s", order.TotalAmount))
	return order, nil
}

// UpdateOrderStatus applies a validated status transition. Reaching a terminal
// state detaches the order from its table so no table keeps referencing a
// closed order.
func (s *OrderService) UpdateOrderStatus(orderID int64, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidOrderStatus
	}

	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	if !transitionAllowed(order.Status, status) {
		s.log.LogOrder("REJECT", order.OrderNumber, fmt.Sprintf("Illegal transition %s -> %s", order.Status, status))
		return nil, ErrInvalidTransition
	}

	order.Status = status
	if err := s.store.UpdateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.log.LogOrder("STATUS", order.OrderNumber, fmt.Sprintf("Status changed to %s", status))

	if status.Terminal() {
		switch status {
		case models.OrderCompleted:
			s.publishOrderEvent("order.completed", order)
		case models.OrderCancelled:
			s.publishOrderEvent("order.cancelled", order)
		}
		if err := s.detachFromTable(order); err != nil {
			return order, err
		}
	}

	return order, nil
}

// detachFromTable unbinds the table that still references this order. The
// order keeps its terminal status either way; a failed unbind is surfaced so
// the caller retries the clear.
func (s *OrderService) detachFromTable(order *models.Order) error {
	if order.TableID == nil {
		return nil
	}
	table, err := s.tables.GetTable(*order.TableID)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrTableClearNeeded, err)
	}
	if table.CurrentOrderID == nil || *table.CurrentOrderID != order.ID {
		return nil
	}
	if _, err := s.tables.UnbindOrder(table.ID, models.TableCleaning); err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Order %d closed but table %d still bound: %v", order.ID, table.ID, err))
		return fmt.Errorf("%w: %v", ErrTableClearNeeded, err)
	}
	s.publishOrderEvent("table.cleared", order)
	return nil
}

// CompleteOrder marks the order COMPLETED, recording the payment fields.
func (s *OrderService) CompleteOrder(orderID int64, req *models.CompleteOrderRequest) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if req != nil {
		if req.PaymentMethod != "" {
			order.PaymentMethod = req.PaymentMethod
		}
		if req.PaymentReference != "" {
			order.PaymentReference = req.PaymentReference
		}
		if err := s.store.UpdateOrder(order); err != nil {
			return nil, fmt.Errorf("failed to record payment details: %w", err)
		}
	}
	return s.UpdateOrderStatus(orderID, models.OrderCompleted)
}

type CompleteAndClearResult struct {
	Order *models.Order `json:"order"`
	Table *models.Table `json:"table"`
}

// CompleteAndClearTable completes the order and frees its table as one logical
// operation. When the clear step fails the order stays COMPLETED and the
// failure is reported for retry, never silently skipped.
func (s *OrderService) CompleteAndClearTable(orderID int64, req *models.CompleteOrderRequest) (*CompleteAndClearResult, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.TableID == nil {
		return nil, ErrOrderNotOnTable
	}
	tableID := *order.TableID

	order, err = s.CompleteOrder(orderID, req)
	if err != nil && !errors.Is(err, ErrTableClearNeeded) {
		return nil, err
	}
	clearErr := err

	table, tErr := s.tables.GetTable(tableID)
	if tErr != nil {
		return &CompleteAndClearResult{Order: order}, clearErr
	}

	s.log.LogOrder("COMPLETE_CLEAR", order.OrderNumber, fmt.Sprintf("Order completed, table %s now %s", table.TableNumber, table.Status))
	return &CompleteAndClearResult{Order: order, Table: table}, clearErr
}

// CancelOrder cancels a non-terminal order and frees its table.
func (s *OrderService) CancelOrder(orderID int64) (*models.Order, error) {
	return s.UpdateOrderStatus(orderID, models.OrderCancelled)
}

// ProcessKitchenEvent applies a kitchen status update. Illegal transitions are
// logged and dropped; the kitchen feed must not wedge on a stale message.
func (s *OrderService) ProcessKitchenEvent(event *models.KitchenEvent) error {
	s.log.LogKafka("KITCHEN", "kitchen-events", fmt.Sprintf("Order %d -> %s from station %s", event.OrderID, event.Status, event.Station))

	if event.Status != models.OrderInProgress && event.Status != models.OrderReady {
		s.log.Warn("KAFKA", fmt.Sprintf("Kitchen may not set status %s", event.Status))
		return nil
	}

	_, err := s.UpdateOrderStatus(event.OrderID, event.Status)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrOrderNotFound) {
			s.log.Warn("KAFKA", fmt.Sprintf("Dropping kitchen event for order %d: %v", event.OrderID, err))
			return nil
		}
		return err
	}
	return nil
}

func (s *OrderService) addSnapshotted(ctx context.Context, token string, order *models.Order, productID int64, quantity int, notes string) error {
	if quantity == 0 {
		quantity = 1
	}
	product, err := s.lookupProduct(ctx, token, productID)
	if err != nil {
		return err
	}
	if _, err := cart.AddItem(order, *product, quantity, notes); err != nil {
		return mapCartErr(err)
	}
	return nil
}

func (s *OrderService) lookupProduct(ctx context.Context, token string, productID int64) (*models.Product, error) {
	product, err := s.catalog.GetProduct(ctx, token, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}
	return product, nil
}

func (s *OrderService) markRequest(ctx context.Context, requestID string) (bool, error) {
	if requestID == "" || s.dedup == nil {
		return true, nil
	}
	fresh, err := s.dedup.MarkRequest(ctx, requestID)
	if err != nil {
		// Dedup bookkeeping must not block the sale; log and continue.
		s.log.Warn("REDIS", fmt.Sprintf("Request dedup unavailable: %v", err))
		return true, nil
	}
	return fresh, nil
}

func (s *OrderService) releaseRequest(ctx context.Context, requestID string) {
	if requestID == "" || s.dedup == nil {
		return
	}
	if err := s.dedup.ReleaseRequest(ctx, requestID); err != nil {
		s.log.Warn("REDIS", fmt.Sprintf("Failed to release request id %s: %v", requestID, err))
	}
}

func (s *OrderService) publishOrderEvent(eventType string, order *models.Order) {
	if s.producer == nil {
		return
	}
	event := &models.OrderEvent{
		Type:      eventType,
		OrderID:   order.ID,
		TableID:   order.TableID,
		Order:     order,
		Timestamp: time.Now(),
	}
	if err := s.producer.PublishOrderEvent(event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s for order %d: %v", eventType, order.ID, err))
	}
}

func mapCartErr(err error) error {
	if errors.Is(err, cart.ErrOrderClosed) {
		return ErrOrderClosed
	}
	return err
}
