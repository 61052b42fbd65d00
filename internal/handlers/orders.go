package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"restaurant-pos/internal/cart"
	"restaurant-pos/internal/catalog"
	"restaurant-pos/internal/middleware"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services"
	"restaurant-pos/internal/utils"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// ListOrders returns all orders, optionally filtered by ?status=.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	status := models.OrderStatus(c.Query("status"))

	orders, err := h.orderService.ListOrders(status)
	if err != nil {
		respondOrderError(c, "Failed to list orders", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Orders retrieved", orders))
}

// CreateTableOrder seats a table: POST /orders/table/:tableId.
func (h *OrderHandler) CreateTableOrder(c *gin.Context) {
	tableID, ok := pathID(c, "tableId")
	if !ok {
		return
	}

	var req models.CreateTableOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
			return
		}
	}

	order, err := h.orderService.CreateTableOrder(c.Request.Context(), catalogToken(c), tableID, &req)
	if err != nil {
		respondOrderError(c, "Failed to create order", err)
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Order created", order))
}

// GetCurrentTableOrder returns the order the table is bound to, whatever its
// status. 404 means the table has no order.
func (h *OrderHandler) GetCurrentTableOrder(c *gin.Context) {
	tableID, ok := pathID(c, "tableId")
	if !ok {
		return
	}

	order, err := h.orderService.GetCurrentTableOrder(tableID)
	if err != nil {
		respondOrderError(c, "Failed to retrieve order", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Order retrieved", order))
}

func (h *OrderHandler) AddToCart(c *gin.Context) {
	tableID, ok := pathID(c, "tableId")
	if !ok {
		return
	}

	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	order, err := h.orderService.AddItemToTableOrder(c.Request.Context(), catalogToken(c), tableID, &req)
	if err != nil {
		respondOrderError(c, "Failed to add item to cart", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Item added to cart", order))
}

func (h *OrderHandler) RemoveFromCart(c *gin.Context) {
	tableID, ok := pathID(c, "tableId")
	if !ok {
		return
	}

	var req models.RemoveFromCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	order, err := h.orderService.RemoveItemFromTableOrder(c.Request.Context(), tableID, &req)
	if err != nil {
		respondOrderError(c, "Failed to remove item from cart", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Item removed from cart", order))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(orderID)
	if err != nil {
		respondOrderError(c, "Failed to retrieve order", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Order retrieved", order))
}

func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	order, err := h.orderService.UpdateOrder(orderID, &req)
	if err != nil {
		respondOrderError(c, "Failed to update order", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Order updated", order))
}

// AddOrderItem appends a new line, never coalescing with an existing one.
func (h *OrderHandler) AddOrderItem(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.OrderItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	order, err := h.orderService.AddItemToOrder(c.Request.Context(), catalogToken(c), orderID, &req)
	if err != nil {
		respondOrderError(c, "Failed to add item", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Item added", order))
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.OrderStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	order, err := h.orderService.UpdateOrderStatus(orderID, req.Status)
	if err != nil {
		respondOrderError(c, "Failed to update order status", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Order status updated", order))
}

func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.CompleteOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
			return
		}
	}

	order, err := h.orderService.CompleteOrder(orderID, &req)
	if err != nil {
		respondOrderError(c, "Failed to complete order", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Order completed", order))
}

// CompleteAndClearTable completes the order and frees its table in one call.
// A failed clear still reports the completed order; the client retries the
// clear against the table endpoint.
func (h *OrderHandler) CompleteAndClearTable(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.CompleteOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
			return
		}
	}

	result, err := h.orderService.CompleteAndClearTable(orderID, &req)
	if err != nil {
		if errors.Is(err, services.ErrTableClearNeeded) && result != nil {
			c.JSON(http.StatusOK, utils.SuccessResponse("Order completed; table clear pending", result))
			return
		}
		respondOrderError(c, "Failed to complete order", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Order completed and table cleared", result))
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.CancelOrder(orderID)
	if err != nil {
		respondOrderError(c, "Failed to cancel order", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Order cancelled", order))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid "+name, err.Error()))
		return 0, false
	}
	return id, true
}

func catalogToken(c *gin.Context) string {
	return c.GetString(middleware.CatalogTokenKey)
}

func respondOrderError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrTableNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse(message, err.Error()))
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, services.ErrInvalidOrderStatus),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrOrderTableMismatch):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse(message, err.Error()))
	case errors.Is(err, services.ErrOrderClosed),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrConflictingBinding),
		errors.Is(err, services.ErrOrderNotOnTable):
		c.JSON(http.StatusConflict, utils.ErrorResponse(message, err.Error()))
	case errors.Is(err, catalog.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Catalog rejected credentials", err.Error()))
	case errors.Is(err, services.ErrTableClearNeeded):
		c.JSON(http.StatusConflict, utils.ErrorResponse("Order closed but table clear failed", err.Error()))
	default:
		c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse(message, err.Error()))
	}
}
