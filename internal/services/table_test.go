package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

func newTableService() (*TableService, *storage.InMemoryStore) {
	store := storage.NewInMemoryStore()
	return NewTableService(store, logger.NewLogger()), store
}

func seedTable(t *testing.T, svc *TableService) *models.Table {
	t.Helper()
	table, err := svc.CreateTable(&models.CreateTableRequest{
		TableNumber: "T1",
		Capacity:    4,
	})
	require.NoError(t, err)
	return table
}

func TestCreateTableDefaults(t *testing.T) {
	svc, _ := newTableService()

	table := seedTable(t, svc)

	assert.Equal(t, models.TableAvailable, table.Status)
	assert.Equal(t, "MAIN", table.Location)
	assert.Equal(t, "RECTANGLE", table.Shape)
	assert.Nil(t, table.CurrentOrderID)
}

func TestCreateTableRejectsOccupiedStatus(t *testing.T) {
	svc, _ := newTableService()

	// Occupancy only ever comes from an order binding
	_, err := svc.CreateTable(&models.CreateTableRequest{
		TableNumber: "T1",
		Capacity:    4,
		Status:      models.TableOccupied,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreateTableRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTableService()

	_, err := svc.CreateTable(&models.CreateTableRequest{
		TableNumber: "T1",
		Capacity:    4,
		Status:      models.TableStatus("BROKEN"),
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestChangeStatusRejectsOccupiedTarget(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	_, err := svc.ChangeStatus(table.ID, models.TableOccupied)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestChangeStatusRejectsOccupiedTable(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	_, err := svc.BindOrder(table.ID, 7)
	require.NoError(t, err)

	// An occupied table must be cleared before any other status applies
	_, err = svc.ChangeStatus(table.ID, models.TableMaintenance)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestChangeStatusHousekeeping(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	updated, err := svc.ChangeStatus(table.ID, models.TableReserved)
	require.NoError(t, err)
	assert.Equal(t, models.TableReserved, updated.Status)

	updated, err = svc.ChangeStatus(table.ID, models.TableAvailable)
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, updated.Status)
}

func TestBindOrderOccupiesTable(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	bound, err := svc.BindOrder(table.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, models.TableOccupied, bound.Status)
	require.NotNil(t, bound.CurrentOrderID)
	assert.Equal(t, int64(7), *bound.CurrentOrderID)
}

func TestBindOrderRejectsSecondBinding(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	_, err := svc.BindOrder(table.ID, 7)
	require.NoError(t, err)

	_, err = svc.BindOrder(table.ID, 8)
	assert.ErrorIs(t, err, ErrConflictingBinding)
}

func TestBindOrderFromReserved(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	_, err := svc.ChangeStatus(table.ID, models.TableReserved)
	require.NoError(t, err)

	bound, err := svc.BindOrder(table.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, bound.Status)
}

func TestBindOrderRejectsCleaningTable(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	_, err := svc.ChangeStatus(table.ID, models.TableCleaning)
	require.NoError(t, err)

	_, err = svc.BindOrder(table.ID, 7)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUnbindOrderDefaultsToCleaning(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	_, err := svc.BindOrder(table.ID, 7)
	require.NoError(t, err)

	freed, err := svc.UnbindOrder(table.ID, "")
	require.NoError(t, err)

	assert.Equal(t, models.TableCleaning, freed.Status)
	assert.Nil(t, freed.CurrentOrderID)
}

func TestUnbindOrderRejectsArbitraryStatus(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	_, err := svc.BindOrder(table.ID, 7)
	require.NoError(t, err)

	_, err = svc.UnbindOrder(table.ID, models.TableReserved)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestClearTableWithoutBinding(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	_, err := svc.ClearTable(table.ID, models.TableAvailable)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestClearTableRejectsOpenOrder(t *testing.T) {
	svc, store := newTableService()
	table := seedTable(t, svc)

	order := &models.Order{Status: models.OrderPending, TableID: &table.ID}
	require.NoError(t, store.SaveOrder(order))
	_, err := svc.BindOrder(table.ID, order.ID)
	require.NoError(t, err)

	// The bound order is still open; clearing must go through complete-and-clear
	_, err = svc.ClearTable(table.ID, models.TableAvailable)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestClearTableAfterOrderClosed(t *testing.T) {
	svc, store := newTableService()
	table := seedTable(t, svc)

	order := &models.Order{Status: models.OrderCompleted, TableID: &table.ID}
	require.NoError(t, store.SaveOrder(order))
	_, err := svc.BindOrder(table.ID, order.ID)
	require.NoError(t, err)

	cleared, err := svc.ClearTable(table.ID, models.TableAvailable)
	require.NoError(t, err)

	assert.Equal(t, models.TableAvailable, cleared.Status)
	assert.Nil(t, cleared.CurrentOrderID)
}

func TestUpdateTableDoesNotTouchBinding(t *testing.T) {
	svc, _ := newTableService()
	table := seedTable(t, svc)

	_, err := svc.BindOrder(table.ID, 7)
	require.NoError(t, err)

	updated, err := svc.UpdateTable(table.ID, &models.UpdateTableRequest{
		TableNumber: "T1",
		Capacity:    6,
	})
	require.NoError(t, err)

	fetched, err := svc.GetTable(table.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Capacity)
	require.NotNil(t, fetched.CurrentOrderID)
	assert.Equal(t, int64(7), *fetched.CurrentOrderID)
}

func TestGetTableNotFound(t *testing.T) {
	svc, _ := newTableService()

	_, err := svc.GetTable(99)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestListTablesFilters(t *testing.T) {
	svc, _ := newTableService()
	seedTable(t, svc)
	_, err := svc.CreateTable(&models.CreateTableRequest{
		TableNumber: "P1",
		Capacity:    8,
		Location:    "PATIO",
	})
	require.NoError(t, err)

	patio, err := svc.ListTables(models.TableFilter{Location: "PATIO"})
	require.NoError(t, err)
	require.Len(t, patio, 1)
	assert.Equal(t, "P1", patio[0].TableNumber)

	big, err := svc.ListTables(models.TableFilter{MinCapacity: 6})
	require.NoError(t, err)
	require.Len(t, big, 1)
	assert.Equal(t, 8, big[0].Capacity)
}
