package services

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/cart"
	"restaurant-pos/internal/catalog"
	"restaurant-pos/internal/kafka"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// fakeDeduper implements the Deduper interface in memory
type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (d *fakeDeduper) MarkRequest(ctx context.Context, requestID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[requestID] {
		return false, nil
	}
	d.seen[requestID] = true
	return true, nil
}

func (d *fakeDeduper) ReleaseRequest(ctx context.Context, requestID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, requestID)
	return nil
}

// captureProducer records published events for assertions
type captureProducer struct {
	mu     sync.Mutex
	events []*models.OrderEvent
}

func (p *captureProducer) PublishOrderEvent(event *models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *captureProducer) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type orderFixture struct {
	store  *storage.InMemoryStore
	tables *TableService
	orders *OrderService
	table  *models.Table
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	log := logger.NewLogger()
	store := storage.NewInMemoryStore()
	tables := NewTableService(store, log)

	cat := catalog.NewInMemoryCatalog()
	cat.AddProduct(models.Product{ID: 1, Name: "Classic Burger", Price: decimal.RequireFromString("9.99"), Category: "MAINS"})
	cat.AddProduct(models.Product{ID: 2, Name: "Fries", Price: decimal.RequireFromString("3.50"), Category: "SIDES"})

	producer, err := kafka.NewProducer(nil, true, log)
	require.NoError(t, err)

	orders := NewOrderService(store, tables, cat, producer, newFakeDeduper(), log)

	table, err := tables.CreateTable(&models.CreateTableRequest{TableNumber: "T1", Capacity: 4})
	require.NoError(t, err)

	return &orderFixture{store: store, tables: tables, orders: orders, table: table}
}

func (f *orderFixture) tableStatus(t *testing.T) models.TableStatus {
	t.Helper()
	table, err := f.tables.GetTable(f.table.ID)
	require.NoError(t, err)
	return table.Status
}

func TestCreateTableOrderSeatsTable(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.CreateTableOrder(context.Background(), "", f.table.ID, &models.CreateTableOrderRequest{
		GuestCount: 2,
		Items: []models.OrderItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.OrderDineIn, order.Type)
	assert.NotEmpty(t, order.OrderNumber)
	require.Len(t, order.Items, 2)
	// 2 * 9.99 + 3.50, snapshotted from the catalog
	assert.Equal(t, "23.48", order.TotalAmount.String())

	table, err := f.tables.GetTable(f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, table.Status)
	require.NotNil(t, table.CurrentOrderID)
	assert.Equal(t, order.ID, *table.CurrentOrderID)
}

func TestCreateTableOrderRejectsOccupiedTable(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.orders.CreateTableOrder(context.Background(), "", f.table.ID, &models.CreateTableOrderRequest{})
	require.NoError(t, err)

	_, err = f.orders.CreateTableOrder(context.Background(), "", f.table.ID, &models.CreateTableOrderRequest{})
	assert.ErrorIs(t, err, ErrConflictingBinding)
}

func TestCreateTableOrderUnknownProduct(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.orders.CreateTableOrder(context.Background(), "", f.table.ID, &models.CreateTableOrderRequest{
		Items: []models.OrderItemRequest{{ProductID: 99, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrProductNotFound)

	// The failed seat left the table free
	assert.Equal(t, models.TableAvailable, f.tableStatus(t))
}

func TestAddItemToTableOrderCreatesAndCoalesces(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, models.TableOccupied, f.tableStatus(t))

	// The same product again, as a distinct mutation, merges into the line
	order, err = f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-2",
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "19.98", order.TotalAmount.String())
}

func TestAddItemToTableOrderReplayReturnsCurrentOrder(t *testing.T) {
	f := newOrderFixture(t)

	first, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	// A retry of the same request id must not add the product twice
	replay, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, replay.ID)
	require.Len(t, replay.Items, 1)
	assert.Equal(t, 1, replay.Items[0].Quantity)
	assert.Equal(t, "9.99", replay.TotalAmount.String())
}

func TestAddItemFailureReleasesRequestID(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 99,
		RequestID: "req-1",
	})
	require.ErrorIs(t, err, ErrProductNotFound)

	// The id was released, so a corrected retry under the same id is fresh
	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
}

func TestAddItemToOrderNeverCoalesces(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	order, err = f.orders.AddItemToOrder(context.Background(), "", order.ID, &models.OrderItemRequest{
		ProductID: 1,
		Quantity:  1,
		Notes:     "well done",
		RequestID: "req-2",
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 2)
	assert.Equal(t, "well done", order.Items[1].Notes)
	assert.Equal(t, "19.98", order.TotalAmount.String())
}

func TestRemoveItemReducesQuantity(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		Quantity:  3,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	order, err = f.orders.RemoveItemFromTableOrder(context.Background(), f.table.ID, &models.RemoveFromCartRequest{
		OrderID:   order.ID,
		ProductID: 1,
		Quantity:  1,
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "19.98", order.TotalAmount.String())
}

func TestRemoveItemReplayReturnsCurrentOrder(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		Quantity:  3,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	remove := &models.RemoveFromCartRequest{
		OrderID:   order.ID,
		ProductID: 1,
		Quantity:  1,
		RequestID: "rm-1",
	}

	order, err = f.orders.RemoveItemFromTableOrder(context.Background(), f.table.ID, remove)
	require.NoError(t, err)
	assert.Equal(t, 2, order.Items[0].Quantity)

	// Retry after a lost response must not reduce the quantity again
	replayed, err := f.orders.RemoveItemFromTableOrder(context.Background(), f.table.ID, remove)
	require.NoError(t, err)
	assert.Equal(t, 2, replayed.Items[0].Quantity)
	assert.Equal(t, "19.98", replayed.TotalAmount.String())
}

func TestRemoveItemFailureReleasesRequestID(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		Quantity:  2,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	_, err = f.orders.RemoveItemFromTableOrder(context.Background(), f.table.ID, &models.RemoveFromCartRequest{
		OrderID:   order.ID,
		ProductID: 99,
		RequestID: "rm-1",
	})
	require.Error(t, err)

	// The failed attempt never applied, so the same id may retry
	order, err = f.orders.RemoveItemFromTableOrder(context.Background(), f.table.ID, &models.RemoveFromCartRequest{
		OrderID:   order.ID,
		ProductID: 1,
		Quantity:  1,
		RequestID: "rm-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, order.Items[0].Quantity)
}

func TestRemoveLastItemCancelsOrderAndFreesTable(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	order, err = f.orders.RemoveItemFromTableOrder(context.Background(), f.table.ID, &models.RemoveFromCartRequest{
		OrderID:          order.ID,
		ProductID:        1,
		RemoveEntireItem: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderCancelled, order.Status)
	assert.Empty(t, order.Items)
	assert.Equal(t, models.TableAvailable, f.tableStatus(t))
}

func TestCompleteOrderPublishesTableCleared(t *testing.T) {
	f := newOrderFixture(t)
	capture := &captureProducer{}
	f.orders.producer = capture

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	_, err = f.orders.CompleteOrder(order.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"order.completed", "table.cleared"}, capture.eventTypes())
	cleared := capture.events[len(capture.events)-1]
	require.NotNil(t, cleared.TableID)
	assert.Equal(t, f.table.ID, *cleared.TableID)
}

func TestRemoveLastItemPublishesTableCleared(t *testing.T) {
	f := newOrderFixture(t)
	capture := &captureProducer{}
	f.orders.producer = capture

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	_, err = f.orders.RemoveItemFromTableOrder(context.Background(), f.table.ID, &models.RemoveFromCartRequest{
		OrderID:          order.ID,
		ProductID:        1,
		RemoveEntireItem: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"order.cancelled", "table.cleared"}, capture.eventTypes())
}

func TestRemoveItemTableMismatch(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	other, err := f.tables.CreateTable(&models.CreateTableRequest{TableNumber: "T2", Capacity: 2})
	require.NoError(t, err)

	_, err = f.orders.RemoveItemFromTableOrder(context.Background(), other.ID, &models.RemoveFromCartRequest{
		OrderID:   order.ID,
		ProductID: 1,
	})
	assert.ErrorIs(t, err, ErrOrderTableMismatch)
}

func TestUpdateOrderRecomputesDerivedValues(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	items := order.Items
	items[0].Quantity = 3
	// Client-supplied derived values that disagree with quantity * price
	items[0].Subtotal = decimal.RequireFromString("0.01")

	updated, err := f.orders.UpdateOrder(order.ID, &models.UpdateOrderRequest{
		GuestCount:  4,
		Items:       items,
		TotalAmount: decimal.RequireFromString("999.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, updated.GuestCount)
	assert.Equal(t, "29.97", updated.Items[0].Subtotal.String())
	assert.Equal(t, "29.97", updated.TotalAmount.String())
}

func TestUpdateOrderRejectsNonPositiveQuantity(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	items := order.Items
	items[0].Quantity = 0
	_, err = f.orders.UpdateOrder(order.ID, &models.UpdateOrderRequest{Items: items})
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
}

func TestUpdateOrderStatusFollowsTransitions(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	// PENDING cannot jump straight to READY
	_, err = f.orders.UpdateOrderStatus(order.ID, models.OrderReady)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	order, err = f.orders.UpdateOrderStatus(order.ID, models.OrderInProgress)
	require.NoError(t, err)
	order, err = f.orders.UpdateOrderStatus(order.ID, models.OrderReady)
	require.NoError(t, err)

	// READY only completes; cancellation is no longer possible
	_, err = f.orders.UpdateOrderStatus(order.ID, models.OrderCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	order, err = f.orders.UpdateOrderStatus(order.ID, models.OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, order.Status)

	// Closing the order detached it from the table
	assert.Equal(t, models.TableCleaning, f.tableStatus(t))
}

func TestUpdateOrderStatusIdempotentOnSameStatus(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	same, err := f.orders.UpdateOrderStatus(order.ID, models.OrderPending)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, same.Status)
}

func TestCompleteAndClearTable(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	result, err := f.orders.CompleteAndClearTable(order.ID, &models.CompleteOrderRequest{
		PaymentMethod:    models.PaymentCash,
		PaymentReference: "till-4",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderCompleted, result.Order.Status)
	assert.Equal(t, models.PaymentCash, result.Order.PaymentMethod)
	require.NotNil(t, result.Table)
	assert.Equal(t, models.TableCleaning, result.Table.Status)
	assert.Nil(t, result.Table.CurrentOrderID)
}

func TestCompleteAndClearOrderWithoutTable(t *testing.T) {
	f := newOrderFixture(t)

	order := &models.Order{Status: models.OrderPending, Type: models.OrderTakeout}
	require.NoError(t, f.store.SaveOrder(order))

	_, err := f.orders.CompleteAndClearTable(order.ID, nil)
	assert.ErrorIs(t, err, ErrOrderNotOnTable)
}

func TestCancelOrderFreesTable(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	cancelled, err := f.orders.CancelOrder(order.ID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.Equal(t, models.TableCleaning, f.tableStatus(t))
}

func TestGetActiveTableOrderFiltersTerminal(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	active, err := f.orders.GetActiveTableOrder(f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, active.ID)

	_, err = f.orders.CancelOrder(order.ID)
	require.NoError(t, err)

	_, err = f.orders.GetActiveTableOrder(f.table.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestProcessKitchenEventAdvancesOrder(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	require.NoError(t, f.orders.ProcessKitchenEvent(&models.KitchenEvent{
		OrderID: order.ID,
		Status:  models.OrderInProgress,
		Station: "grill",
	}))

	updated, err := f.orders.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderInProgress, updated.Status)
}

func TestProcessKitchenEventIgnoresForbiddenStatus(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	// The kitchen cannot close an order
	require.NoError(t, f.orders.ProcessKitchenEvent(&models.KitchenEvent{
		OrderID: order.ID,
		Status:  models.OrderCompleted,
	}))

	updated, err := f.orders.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, updated.Status)
}

func TestProcessKitchenEventDropsStaleMessage(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.AddItemToTableOrder(context.Background(), "", f.table.ID, &models.AddToCartRequest{
		ProductID: 1,
		RequestID: "req-1",
	})
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(order.ID)
	require.NoError(t, err)

	// A late kitchen update for a cancelled order is dropped, not an error
	require.NoError(t, f.orders.ProcessKitchenEvent(&models.KitchenEvent{
		OrderID: order.ID,
		Status:  models.OrderInProgress,
	}))
}
