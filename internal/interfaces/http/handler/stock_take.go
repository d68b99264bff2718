package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
)

// StockTakeHandler exposes the stock take counting workflow
type StockTakeHandler struct {
	BaseHandler
	stockTakeService *inventoryapp.StockTakeService
}

// NewStockTakeHandler creates a new StockTakeHandler
func NewStockTakeHandler(stockTakeService *inventoryapp.StockTakeService) *StockTakeHandler {
	return &StockTakeHandler{
		stockTakeService: stockTakeService,
	}
}

// CreateStockTakeRequest is the request body for drafting a stock take
type CreateStockTakeRequest struct {
	WarehouseID string `json:"warehouse_id" binding:"required"`
	Remark      string `json:"remark" binding:"max=500"`
}

// RecordCountRequest is the request body for recording a counted quantity
type RecordCountRequest struct {
	ActualQuantity float64 `json:"actual_quantity" binding:"gte=0"`
}

// CountLineRequest is one counted line in a batch submission
type CountLineRequest struct {
	LineID         string  `json:"line_id" binding:"required"`
	ActualQuantity float64 `json:"actual_quantity" binding:"gte=0"`
}

// SubmitCountsRequest is the request body for recording counts in batch
type SubmitCountsRequest struct {
	Counts []CountLineRequest `json:"counts" binding:"required,min=1,dive"`
}

// Create drafts a stock take for a warehouse
func (h *StockTakeHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	var req CreateStockTakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	warehouseID, err := uuid.Parse(req.WarehouseID)
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}

	stockTake, err := h.stockTakeService.Create(c.Request.Context(), tenantID, warehouseID, req.Remark)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, stockTake)
}

// BeginCounting freezes the expected quantities and opens the count
func (h *StockTakeHandler) BeginCounting(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	stockTakeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid stock take ID format")
		return
	}

	stockTake, err := h.stockTakeService.BeginCounting(c.Request.Context(), tenantID, stockTakeID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stockTake)
}

// RecordCount records the physically counted quantity for one line
func (h *StockTakeHandler) RecordCount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	stockTakeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid stock take ID format")
		return
	}
	lineID, err := uuid.Parse(c.Param("line_id"))
	if err != nil {
		h.BadRequest(c, "Invalid line ID format")
		return
	}

	var req RecordCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var countedBy *uuid.UUID
	if userID, err := getUserID(c); err == nil {
		countedBy = &userID
	}

	stockTake, err := h.stockTakeService.RecordCount(c.Request.Context(), tenantID, stockTakeID, lineID, decimal.NewFromFloat(req.ActualQuantity), countedBy)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stockTake)
}

// SubmitCounts records counted quantities for several lines at once
func (h *StockTakeHandler) SubmitCounts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	stockTakeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid stock take ID format")
		return
	}

	var req SubmitCountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	counts := make([]inventoryapp.CountInput, 0, len(req.Counts))
	for _, count := range req.Counts {
		lineID, err := uuid.Parse(count.LineID)
		if err != nil {
			h.BadRequest(c, "Invalid line ID format")
			return
		}
		counts = append(counts, inventoryapp.CountInput{
			LineID:         lineID,
			ActualQuantity: decimal.NewFromFloat(count.ActualQuantity),
		})
	}

	var countedBy *uuid.UUID
	if userID, err := getUserID(c); err == nil {
		countedBy = &userID
	}

	stockTake, err := h.stockTakeService.SubmitCounts(c.Request.Context(), tenantID, stockTakeID, counts, countedBy)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stockTake)
}

// Finalize posts variance moves for every counted line and completes the take
func (h *StockTakeHandler) Finalize(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	stockTakeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid stock take ID format")
		return
	}

	stockTake, err := h.stockTakeService.Finalize(c.Request.Context(), tenantID, stockTakeID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stockTake)
}

// Cancel abandons a stock take without posting any variance
func (h *StockTakeHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	stockTakeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid stock take ID format")
		return
	}

	stockTake, err := h.stockTakeService.Cancel(c.Request.Context(), tenantID, stockTakeID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stockTake)
}

// Get returns a stock take with its lines
func (h *StockTakeHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	stockTakeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid stock take ID format")
		return
	}

	stockTake, err := h.stockTakeService.Get(c.Request.Context(), tenantID, stockTakeID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stockTake)
}

// List returns paginated stock takes with optional filtering
func (h *StockTakeHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	filter, err := bindFilter(c, "warehouse_id", "status")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.stockTakeService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
