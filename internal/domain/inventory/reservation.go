package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ReservationStatus represents the lifecycle of a reservation
type ReservationStatus string

const (
	ReservationStatusActive   ReservationStatus = "ACTIVE"
	ReservationStatusReleased ReservationStatus = "RELEASED"
)

// IsValid checks if the status is valid
func (s ReservationStatus) IsValid() bool {
	return s == ReservationStatusActive || s == ReservationStatusReleased
}

// String returns the string representation
func (s ReservationStatus) String() string {
	return string(s)
}

// ReservationAllocation records how much of a reservation was taken from one lot.
// Reservations for untracked products carry a single allocation with no lot.
type ReservationAllocation struct {
	shared.BaseEntity
	ReservationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"reservation_id"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	LotSerialID   *uuid.UUID      `gorm:"type:uuid;index" json:"lot_serial_id,omitempty"`
	LotCode       string          `gorm:"type:varchar(128)" json:"lot_code,omitempty"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
}

// TableName specifies the table name
func (ReservationAllocation) TableName() string {
	return "reservation_allocations"
}

// Reservation is a hold on stock for a downstream document (an order, a
// transfer). Holds do not change on-hand quantities; they fence off stock
// from other reservations until released.
type Reservation struct {
	shared.TenantAggregateRoot
	ProductID   uuid.UUID               `gorm:"type:uuid;not null;index" json:"product_id"`
	WarehouseID uuid.UUID               `gorm:"type:uuid;not null;index" json:"warehouse_id"`
	Quantity    decimal.Decimal         `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Status      ReservationStatus       `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	Remark      string                  `gorm:"type:varchar(500)" json:"remark,omitempty"`
	Allocations []ReservationAllocation `gorm:"foreignKey:ReservationID" json:"allocations,omitempty"`
}

// TableName specifies the table name
func (Reservation) TableName() string {
	return "reservations"
}

// NewReservation creates an active reservation from a planned allocation
func NewReservation(tenantID, productID, warehouseID uuid.UUID, quantity decimal.Decimal, entries []AllocationEntry, remark string) (*Reservation, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidQuantity
	}

	r := &Reservation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		WarehouseID:         warehouseID,
		Quantity:            quantity,
		Status:              ReservationStatusActive,
		Remark:              remark,
	}

	if len(entries) == 0 {
		r.Allocations = []ReservationAllocation{{
			BaseEntity:    shared.NewBaseEntity(),
			ReservationID: r.ID,
			TenantID:      tenantID,
			Quantity:      quantity,
		}}
	} else {
		total := decimal.Zero
		for _, e := range entries {
			lotID := e.Lot.ID
			r.Allocations = append(r.Allocations, ReservationAllocation{
				BaseEntity:    shared.NewBaseEntity(),
				ReservationID: r.ID,
				TenantID:      tenantID,
				LotSerialID:   &lotID,
				LotCode:       e.Lot.Code,
				Quantity:      e.Quantity,
			})
			total = total.Add(e.Quantity)
		}
		if !total.Equal(quantity) {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "allocation entries do not sum to the reserved quantity")
		}
	}

	r.AddDomainEvent(NewStockReservedEvent(r))
	return r, nil
}

// IsActive reports whether the reservation still holds stock
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusActive
}

// Release marks the reservation as released. Releasing twice is a no-op:
// the second call reports released=false and the caller must not return
// the held quantities again.
func (r *Reservation) Release() (released bool) {
	if r.Status == ReservationStatusReleased {
		return false
	}
	r.Status = ReservationStatusReleased
	r.IncrementVersion()
	r.AddDomainEvent(NewReservationReleasedEvent(r))
	return true
}
