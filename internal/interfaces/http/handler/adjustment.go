package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
)

// AdjustmentHandler exposes the adjustment and scrap document workflow
type AdjustmentHandler struct {
	BaseHandler
	adjustmentService *inventoryapp.AdjustmentService
}

// NewAdjustmentHandler creates a new AdjustmentHandler
func NewAdjustmentHandler(adjustmentService *inventoryapp.AdjustmentService) *AdjustmentHandler {
	return &AdjustmentHandler{
		adjustmentService: adjustmentService,
	}
}

// AdjustmentLineRequest is one correction line on a draft document
type AdjustmentLineRequest struct {
	ProductID   string  `json:"product_id" binding:"required"`
	LotSerialID string  `json:"lot_serial_id"`
	Delta       float64 `json:"delta" binding:"required"`
	ReasonCode  string  `json:"reason_code" binding:"required,min=1,max=40"`
	Remark      string  `json:"remark" binding:"max=500"`
}

// CreateAdjustmentRequest is the request body for drafting an adjustment
// or scrap document
type CreateAdjustmentRequest struct {
	WarehouseID  string                  `json:"warehouse_id" binding:"required"`
	DocumentType string                  `json:"document_type" binding:"required,oneof=ADJUSTMENT SCRAP"`
	Remark       string                  `json:"remark" binding:"max=500"`
	Lines        []AdjustmentLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// AddLinesRequest is the request body for appending lines to a draft
type AddLinesRequest struct {
	Lines []AdjustmentLineRequest `json:"lines" binding:"required,min=1,dive"`
}

func parseAdjustmentLines(lines []AdjustmentLineRequest) ([]inventoryapp.AdjustmentLineInput, string) {
	inputs := make([]inventoryapp.AdjustmentLineInput, 0, len(lines))
	for _, line := range lines {
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			return nil, "Invalid product ID format on line"
		}
		input := inventoryapp.AdjustmentLineInput{
			ProductID:  productID,
			Delta:      decimal.NewFromFloat(line.Delta),
			ReasonCode: line.ReasonCode,
			Remark:     line.Remark,
		}
		if line.LotSerialID != "" {
			lotID, err := uuid.Parse(line.LotSerialID)
			if err != nil {
				return nil, "Invalid lot/serial ID format on line"
			}
			input.LotSerialID = &lotID
		}
		inputs = append(inputs, input)
	}
	return inputs, ""
}

// CreateDraft drafts an adjustment or scrap document
func (h *AdjustmentHandler) CreateDraft(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	var req CreateAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	warehouseID, err := uuid.Parse(req.WarehouseID)
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}

	lines, msg := parseAdjustmentLines(req.Lines)
	if msg != "" {
		h.BadRequest(c, msg)
		return
	}

	appReq := inventoryapp.CreateAdjustmentRequest{
		WarehouseID:  warehouseID,
		DocumentType: inventory.AdjustmentDocumentType(req.DocumentType),
		Remark:       req.Remark,
		Lines:        lines,
	}

	document, err := h.adjustmentService.CreateDraft(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, document)
}

// AddLines appends correction lines to an existing draft document
func (h *AdjustmentHandler) AddLines(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	var req AddLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lines, msg := parseAdjustmentLines(req.Lines)
	if msg != "" {
		h.BadRequest(c, msg)
		return
	}

	document, err := h.adjustmentService.AddLines(c.Request.Context(), tenantID, documentID, lines)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, document)
}

// Post posts a draft document's lines to the ledger. Replays of a previously
// successful Idempotency-Key are rejected as duplicates; a failed attempt
// leaves the key free for a corrected retry.
func (h *AdjustmentHandler) Post(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	appReq := inventoryapp.PostAdjustmentRequest{
		DocumentID:     documentID,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	}
	if userID, err := getUserID(c); err == nil {
		appReq.PostedBy = &userID
	}

	document, err := h.adjustmentService.Post(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, document)
}

// Cancel abandons a draft document
func (h *AdjustmentHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	document, err := h.adjustmentService.Cancel(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, document)
}

// Get returns a document with its lines
func (h *AdjustmentHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	document, err := h.adjustmentService.Get(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, document)
}

// List returns paginated documents with optional filtering
func (h *AdjustmentHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	filter, err := bindFilter(c, "warehouse_id", "status", "document_type")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.adjustmentService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Summarize aggregates a document's posted quantities by reason code
func (h *AdjustmentHandler) Summarize(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	summary, err := h.adjustmentService.Summarize(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}
