package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

// parseDate parses a date or datetime string in the formats clients send
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// bindFilter builds a repository filter from pagination params plus the
// given query keys. Unset keys are simply absent from the filter map.
func bindFilter(c *gin.Context, keys ...string) (shared.Filter, error) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		return shared.Filter{}, err
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	for _, key := range keys {
		value := c.Query(key)
		if value == "" {
			continue
		}
		if b, err := strconv.ParseBool(value); err == nil && (key == "has_stock") {
			filter.Filters[key] = b
			continue
		}
		filter.Filters[key] = value
	}
	return filter, nil
}

// LedgerHandler exposes the stock ledger, lot registry and balance queries
type LedgerHandler struct {
	BaseHandler
	ledgerService *inventoryapp.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *inventoryapp.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// RegisterLotRequest is the request body for registering a lot or serial
type RegisterLotRequest struct {
	ProductID   string `json:"product_id" binding:"required"`
	WarehouseID string `json:"warehouse_id" binding:"required"`
	Code        string `json:"code" binding:"required,min=1,max=128"`
	ExpiryDate  string `json:"expiry_date"`
}

// ReceiveStockRequest is the request body for posting inbound stock
type ReceiveStockRequest struct {
	ProductID   string  `json:"product_id" binding:"required"`
	WarehouseID string  `json:"warehouse_id" binding:"required"`
	LotSerialID string  `json:"lot_serial_id"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	ReceiptID   string  `json:"receipt_id" binding:"required"`
	Remark      string  `json:"remark" binding:"max=500"`
}

// RegisterLot registers a new lot or serial number for a tracked product
func (h *LedgerHandler) RegisterLot(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	var req RegisterLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}
	warehouseID, err := uuid.Parse(req.WarehouseID)
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}

	appReq := inventoryapp.RegisterLotRequest{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Code:        req.Code,
	}
	if req.ExpiryDate != "" {
		expiry, err := parseDate(req.ExpiryDate)
		if err != nil {
			h.BadRequest(c, "Invalid expiry date format")
			return
		}
		appReq.ExpiryDate = &expiry
	}

	lot, err := h.ledgerService.RegisterLot(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, lot)
}

// ReceiveStock posts inbound stock against a receipt document
func (h *LedgerHandler) ReceiveStock(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	var req ReceiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}
	warehouseID, err := uuid.Parse(req.WarehouseID)
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}
	receiptID, err := uuid.Parse(req.ReceiptID)
	if err != nil {
		h.BadRequest(c, "Invalid receipt ID format")
		return
	}

	appReq := inventoryapp.ReceiveStockRequest{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    decimal.NewFromFloat(req.Quantity),
		ReceiptID:   receiptID,
		Remark:      req.Remark,
	}
	if req.LotSerialID != "" {
		lotID, err := uuid.Parse(req.LotSerialID)
		if err != nil {
			h.BadRequest(c, "Invalid lot/serial ID format")
			return
		}
		appReq.LotSerialID = &lotID
	}

	move, err := h.ledgerService.ReceiveStock(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, move)
}

// ListLots returns paginated lot/serial records with optional filtering
func (h *LedgerHandler) ListLots(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	filter, err := bindFilter(c, "warehouse_id", "product_id", "tracking", "has_stock")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.ledgerService.ListLots(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListExpiringLots returns lots expiring within the given horizon, soonest first
func (h *LedgerHandler) ListExpiringLots(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	withinDays := 30
	if raw := c.Query("within_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.BadRequest(c, "within_days must be an integer")
			return
		}
		withinDays = parsed
	}

	filter, err := bindFilter(c, "warehouse_id", "product_id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.ledgerService.ListExpiringLots(c.Request.Context(), tenantID, withinDays, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetLevel returns the materialized balance for a product/warehouse pair
func (h *LedgerHandler) GetLevel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}
	warehouseID, err := uuid.Parse(c.Query("warehouse_id"))
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}

	level, err := h.ledgerService.GetLevel(c.Request.Context(), tenantID, productID, warehouseID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, level)
}

// ListLevels returns paginated balances with optional filtering
func (h *LedgerHandler) ListLevels(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	filter, err := bindFilter(c, "warehouse_id", "product_id", "has_stock")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.ledgerService.ListLevels(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListMoves returns the paginated stock ledger with optional filtering
func (h *LedgerHandler) ListMoves(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	filter, err := bindFilter(c, "warehouse_id", "product_id", "lot_serial_id", "reference_type", "moved_after", "moved_before")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.ledgerService.ListMoves(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// AuditLevel recomputes the balance from the ledger and reports drift
func (h *LedgerHandler) AuditLevel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}
	warehouseID, err := uuid.Parse(c.Query("warehouse_id"))
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}

	report, err := h.ledgerService.AuditLevel(c.Request.Context(), tenantID, productID, warehouseID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, report)
}
