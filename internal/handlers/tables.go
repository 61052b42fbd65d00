package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services"
	"restaurant-pos/internal/utils"

	"github.com/gin-gonic/gin"
)

type TableHandler struct {
	tableService *services.TableService
}

func NewTableHandler(tableService *services.TableService) *TableHandler {
	return &TableHandler{
		tableService: tableService,
	}
}

func (h *TableHandler) ListTables(c *gin.Context) {
	filter := models.TableFilter{
		Status:   models.TableStatus(c.Query("status")),
		Location: c.Query("location"),
	}
	if raw := c.Query("minCapacity"); raw != "" {
		minCapacity, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid minCapacity", err.Error()))
			return
		}
		filter.MinCapacity = minCapacity
	}

	tables, err := h.tableService.ListTables(filter)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse("Failed to list tables", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Tables retrieved", tables))
}

func (h *TableHandler) GetTable(c *gin.Context) {
	id, ok := tableID(c)
	if !ok {
		return
	}

	table, err := h.tableService.GetTable(id)
	if err != nil {
		respondTableError(c, "Failed to retrieve table", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Table retrieved", table))
}

func (h *TableHandler) CreateTable(c *gin.Context) {
	var req models.CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	table, err := h.tableService.CreateTable(&req)
	if err != nil {
		respondTableError(c, "Failed to create table", err)
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Table created", table))
}

func (h *TableHandler) UpdateTable(c *gin.Context) {
	id, ok := tableID(c)
	if !ok {
		return
	}

	var req models.UpdateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	table, err := h.tableService.UpdateTable(id, &req)
	if err != nil {
		respondTableError(c, "Failed to update table", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Table updated", table))
}

func (h *TableHandler) DeleteTable(c *gin.Context) {
	id, ok := tableID(c)
	if !ok {
		return
	}

	if err := h.tableService.DeleteTable(id); err != nil {
		respondTableError(c, "Failed to delete table", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Table deleted", nil))
}

func (h *TableHandler) UpdateTableStatus(c *gin.Context) {
	id, ok := tableID(c)
	if !ok {
		return
	}

	var req models.TableStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	table, err := h.tableService.ChangeStatus(id, req.Status)
	if err != nil {
		respondTableError(c, "Failed to change table status", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Table status updated", table))
}

func (h *TableHandler) ClearTable(c *gin.Context) {
	id, ok := tableID(c)
	if !ok {
		return
	}

	// Body is optional; an empty one clears to CLEANING.
	var req models.ClearTableRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
			return
		}
	}

	table, err := h.tableService.ClearTable(id, req.Status)
	if err != nil {
		respondTableError(c, "Failed to clear table", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Table cleared", table))
}

func tableID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid table ID", err.Error()))
		return 0, false
	}
	return id, true
}

func respondTableError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, services.ErrTableNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Table not found", err.Error()))
	case errors.Is(err, services.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid table status", err.Error()))
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, utils.ErrorResponse("Table transition not allowed", err.Error()))
	case errors.Is(err, services.ErrConflictingBinding):
		c.JSON(http.StatusConflict, utils.ErrorResponse("Table already has an open order", err.Error()))
	default:
		c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse(message, err.Error()))
	}
}
