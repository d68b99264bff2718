package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeLotOrSerial = "LotOrSerial"
	AggregateTypeReservation = "Reservation"
	AggregateTypeStockTake   = "StockTake"
	AggregateTypeAdjustment  = "AdjustmentDocument"
)

// Event type constants
const (
	EventTypeLotRegistered       = "LotRegistered"
	EventTypeStockReserved       = "StockReserved"
	EventTypeReservationReleased = "ReservationReleased"
	EventTypeStockTakeStarted    = "StockTakeStarted"
	EventTypeStockTakeCompleted  = "StockTakeCompleted"
	EventTypeAdjustmentPosted    = "AdjustmentPosted"
)

// LotRegisteredEvent is raised when a new lot or serial number enters the registry
type LotRegisteredEvent struct {
	shared.BaseDomainEvent
	LotSerialID uuid.UUID `json:"lot_serial_id"`
	ProductID   uuid.UUID `json:"product_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Code        string    `json:"code"`
	Tracking    string    `json:"tracking"`
}

// NewLotRegisteredEvent creates a new LotRegisteredEvent
func NewLotRegisteredEvent(lot *LotOrSerial) *LotRegisteredEvent {
	return &LotRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLotRegistered, AggregateTypeLotOrSerial, lot.ID, lot.TenantID),
		LotSerialID:     lot.ID,
		ProductID:       lot.ProductID,
		WarehouseID:     lot.WarehouseID,
		Code:            lot.Code,
		Tracking:        lot.Tracking.String(),
	}
}

// EventType returns the event type name
func (e *LotRegisteredEvent) EventType() string {
	return EventTypeLotRegistered
}

// StockReservedEvent is raised when a reservation successfully holds stock
type StockReservedEvent struct {
	shared.BaseDomainEvent
	ReservationID uuid.UUID       `json:"reservation_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	LotCount      int             `json:"lot_count"`
}

// NewStockReservedEvent creates a new StockReservedEvent
func NewStockReservedEvent(r *Reservation) *StockReservedEvent {
	return &StockReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReserved, AggregateTypeReservation, r.ID, r.TenantID),
		ReservationID:   r.ID,
		ProductID:       r.ProductID,
		WarehouseID:     r.WarehouseID,
		Quantity:        r.Quantity,
		LotCount:        len(r.Allocations),
	}
}

// EventType returns the event type name
func (e *StockReservedEvent) EventType() string {
	return EventTypeStockReserved
}

// ReservationReleasedEvent is raised when a reservation's hold is returned to stock
type ReservationReleasedEvent struct {
	shared.BaseDomainEvent
	ReservationID uuid.UUID       `json:"reservation_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// NewReservationReleasedEvent creates a new ReservationReleasedEvent
func NewReservationReleasedEvent(r *Reservation) *ReservationReleasedEvent {
	return &ReservationReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationReleased, AggregateTypeReservation, r.ID, r.TenantID),
		ReservationID:   r.ID,
		ProductID:       r.ProductID,
		WarehouseID:     r.WarehouseID,
		Quantity:        r.Quantity,
	}
}

// EventType returns the event type name
func (e *ReservationReleasedEvent) EventType() string {
	return EventTypeReservationReleased
}

// StockTakeStartedEvent is raised when counting begins and expectations are frozen
type StockTakeStartedEvent struct {
	shared.BaseDomainEvent
	StockTakeID uuid.UUID `json:"stock_take_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	LineCount   int       `json:"line_count"`
}

// NewStockTakeStartedEvent creates a new StockTakeStartedEvent
func NewStockTakeStartedEvent(st *StockTake) *StockTakeStartedEvent {
	return &StockTakeStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockTakeStarted, AggregateTypeStockTake, st.ID, st.TenantID),
		StockTakeID:     st.ID,
		WarehouseID:     st.WarehouseID,
		LineCount:       len(st.Lines),
	}
}

// EventType returns the event type name
func (e *StockTakeStartedEvent) EventType() string {
	return EventTypeStockTakeStarted
}

// StockTakeCompletedEvent is raised when a count is finalized
type StockTakeCompletedEvent struct {
	shared.BaseDomainEvent
	StockTakeID   uuid.UUID `json:"stock_take_id"`
	WarehouseID   uuid.UUID `json:"warehouse_id"`
	VarianceCount int       `json:"variance_count"`
}

// NewStockTakeCompletedEvent creates a new StockTakeCompletedEvent
func NewStockTakeCompletedEvent(st *StockTake, varianceCount int) *StockTakeCompletedEvent {
	return &StockTakeCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockTakeCompleted, AggregateTypeStockTake, st.ID, st.TenantID),
		StockTakeID:     st.ID,
		WarehouseID:     st.WarehouseID,
		VarianceCount:   varianceCount,
	}
}

// EventType returns the event type name
func (e *StockTakeCompletedEvent) EventType() string {
	return EventTypeStockTakeCompleted
}

// AdjustmentPostedEvent is raised when an adjustment or scrap document is posted
type AdjustmentPostedEvent struct {
	shared.BaseDomainEvent
	AdjustmentID uuid.UUID       `json:"adjustment_id"`
	WarehouseID  uuid.UUID       `json:"warehouse_id"`
	DocumentType string          `json:"document_type"`
	LineCount    int             `json:"line_count"`
	TotalDelta   decimal.Decimal `json:"total_delta"`
}

// NewAdjustmentPostedEvent creates a new AdjustmentPostedEvent
func NewAdjustmentPostedEvent(d *AdjustmentDocument) *AdjustmentPostedEvent {
	return &AdjustmentPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAdjustmentPosted, AggregateTypeAdjustment, d.ID, d.TenantID),
		AdjustmentID:    d.ID,
		WarehouseID:     d.WarehouseID,
		DocumentType:    d.DocumentType.String(),
		LineCount:       len(d.Lines),
		TotalDelta:      d.TotalDelta(),
	}
}

// EventType returns the event type name
func (e *AdjustmentPostedEvent) EventType() string {
	return EventTypeAdjustmentPosted
}
