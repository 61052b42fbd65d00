package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/catalog"
	"restaurant-pos/internal/kafka"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services"
	"restaurant-pos/internal/storage"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewLogger()

	store := storage.NewInMemoryStore()
	tables := services.NewTableService(store, log)

	cat := catalog.NewInMemoryCatalog()
	cat.AddProduct(models.Product{ID: 1, Name: "Classic Burger", Price: decimal.RequireFromString("9.99")})

	producer, err := kafka.NewProducer(nil, true, log)
	require.NoError(t, err)

	orders := services.NewOrderService(store, tables, cat, producer, nil, log)

	tableHandler := NewTableHandler(tables)
	orderHandler := NewOrderHandler(orders)

	router := gin.New()
	v1 := router.Group("/api/v1")
	tb := v1.Group("/tables")
	tb.GET("", tableHandler.ListTables)
	tb.POST("", tableHandler.CreateTable)
	tb.GET("/:id", tableHandler.GetTable)
	tb.PATCH("/:id/status", tableHandler.UpdateTableStatus)
	tb.POST("/:id/clear", tableHandler.ClearTable)
	od := v1.Group("/orders")
	od.GET("", orderHandler.ListOrders)
	od.POST("/table/:tableId", orderHandler.CreateTableOrder)
	od.GET("/table/:tableId/current", orderHandler.GetCurrentTableOrder)
	od.POST("/table/:tableId/cart", orderHandler.AddToCart)
	od.GET("/:id", orderHandler.GetOrder)
	od.POST("/:id/complete-and-clear", orderHandler.CompleteAndClearTable)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func createTable(t *testing.T, router *gin.Engine) models.Table {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/tables", gin.H{
		"tableNumber": "T1",
		"capacity":    4,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var table models.Table
	decodeEnvelope(t, rec, &table)
	return table
}

func TestCreateAndGetTable(t *testing.T) {
	router := newTestRouter(t)

	table := createTable(t, router)
	require.NotZero(t, table.ID)

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/tables/%d", table.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched models.Table
	env := decodeEnvelope(t, rec, &fetched)
	assert.True(t, env.Success)
	assert.Equal(t, "T1", fetched.TableNumber)
	assert.Equal(t, models.TableAvailable, fetched.Status)
}

func TestCreateTableValidation(t *testing.T) {
	router := newTestRouter(t)

	// capacity is required and must be positive
	rec := doJSON(t, router, http.MethodPost, "/api/v1/tables", gin.H{"tableNumber": "T1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec, nil)
	assert.False(t, env.Success)
}

func TestGetTableNotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tables/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTableStatusEndpointRejectsOccupied(t *testing.T) {
	router := newTestRouter(t)
	table := createTable(t, router)

	rec := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/v1/tables/%d/status", table.ID), gin.H{
		"status": "OCCUPIED",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCartFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	table := createTable(t, router)

	// No order yet
	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/orders/table/%d/current", table.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// First add opens the order
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/orders/table/%d/cart", table.ID), gin.H{
		"productId": 1,
		"quantity":  1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var order models.Order
	decodeEnvelope(t, rec, &order)
	require.NotZero(t, order.ID)
	assert.Equal(t, "9.99", order.TotalAmount.String())

	// Second add coalesces; the monetary fields travel as decimal strings
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/orders/table/%d/cart", table.ID), gin.H{
		"productId": 1,
		"quantity":  1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalAmount":"19.98"`)

	decodeEnvelope(t, rec, &order)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	// Complete and clear through the combined endpoint
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/complete-and-clear", order.ID), gin.H{
		"paymentMethod": "CASH",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.CompleteAndClearResult
	decodeEnvelope(t, rec, &result)
	assert.Equal(t, models.OrderCompleted, result.Order.Status)
	require.NotNil(t, result.Table)
	assert.Equal(t, models.TableCleaning, result.Table.Status)

	// The table can now be cleared back to available
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/orders/table/%d/current", table.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders(t *testing.T) {
	router := newTestRouter(t)
	table := createTable(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []models.Order
	decodeEnvelope(t, rec, &orders)
	assert.Empty(t, orders)

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/orders/table/%d/cart", table.ID), gin.H{
		"productId": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeEnvelope(t, rec, &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderPending, orders[0].Status)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/orders?status=COMPLETED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders = nil
	decodeEnvelope(t, rec, &orders)
	assert.Empty(t, orders)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/orders?status=BOGUS", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	router := newTestRouter(t)
	table := createTable(t, router)

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/orders/table/%d/cart", table.ID), gin.H{
		"productId": 42,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearTableWithoutOrder(t *testing.T) {
	router := newTestRouter(t)
	table := createTable(t, router)

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/tables/%d/clear", table.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
