package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
)

// IdempotencyKeyHeader carries the client-chosen key that makes reservation
// and posting requests safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReservationHandler exposes FEFO reservation and release endpoints
type ReservationHandler struct {
	BaseHandler
	reservationService *inventoryapp.ReservationService
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservationService *inventoryapp.ReservationService) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

// ReserveRequest is the request body for placing a hold on stock
type ReserveRequest struct {
	ProductID   string  `json:"product_id" binding:"required"`
	WarehouseID string  `json:"warehouse_id" binding:"required"`
	LotSerialID string  `json:"lot_serial_id"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	Remark      string  `json:"remark" binding:"max=500"`
}

// Reserve places a hold on available stock, allocating lots soonest-expiry
// first. Replays of a previously successful Idempotency-Key are rejected as
// duplicates; a failed attempt leaves the key free for a corrected retry.
func (h *ReservationHandler) Reserve(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	var req ReserveRequest
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

	appReq := inventoryapp.ReserveStockRequest{
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Quantity:       decimal.NewFromFloat(req.Quantity),
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
		Remark:         req.Remark,
	}
	if req.LotSerialID != "" {
		lotSerialID, err := uuid.Parse(req.LotSerialID)
		if err != nil {
			h.BadRequest(c, "Invalid lot/serial ID format")
			return
		}
		appReq.LotSerialID = &lotSerialID
	}

	reservation, err := h.reservationService.Reserve(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, reservation)
}

// Release returns a reservation's held quantity to available stock
func (h *ReservationHandler) Release(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	reservation, err := h.reservationService.Release(c.Request.Context(), tenantID, reservationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, reservation)
}

// Get returns a reservation with its lot allocations
func (h *ReservationHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	reservation, err := h.reservationService.GetReservation(c.Request.Context(), tenantID, reservationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, reservation)
}

// List returns paginated reservations with optional filtering
func (h *ReservationHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identity missing from token")
		return
	}

	filter, err := bindFilter(c, "warehouse_id", "product_id", "status")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.reservationService.ListReservations(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
