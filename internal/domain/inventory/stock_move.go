package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ReferenceType identifies the business document that caused a stock move
type ReferenceType string

const (
	ReferenceTypeReceipt     ReferenceType = "RECEIPT"
	ReferenceTypeReservation ReferenceType = "RESERVATION"
	ReferenceTypeRelease     ReferenceType = "RELEASE"
	ReferenceTypeStockTake   ReferenceType = "STOCK_TAKE"
	ReferenceTypeAdjustment  ReferenceType = "ADJUSTMENT"
	ReferenceTypeScrap       ReferenceType = "SCRAP"
)

// IsValid checks if the reference type is valid
func (r ReferenceType) IsValid() bool {
	switch r {
	case ReferenceTypeReceipt, ReferenceTypeReservation, ReferenceTypeRelease,
		ReferenceTypeStockTake, ReferenceTypeAdjustment, ReferenceTypeScrap:
		return true
	}
	return false
}

// String returns the string representation
func (r ReferenceType) String() string {
	return string(r)
}

// AffectsOnHand reports whether moves of this type change physical stock.
// Reservations and releases record holds, not physical movement, so they are
// excluded when the ledger is summed to reconstruct on-hand quantities.
func (r ReferenceType) AffectsOnHand() bool {
	switch r {
	case ReferenceTypeReservation, ReferenceTypeRelease:
		return false
	}
	return true
}

// StockMove is one immutable row in the append-only stock ledger.
// Moves are never updated or deleted; corrections are posted as new moves.
type StockMove struct {
	shared.BaseEntity
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_move_tenant_product" json:"tenant_id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_move_tenant_product" json:"product_id"`
	WarehouseID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_move_tenant_product" json:"warehouse_id"`
	LotSerialID   *uuid.UUID      `gorm:"type:uuid;index" json:"lot_serial_id,omitempty"`
	QuantityDelta decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity_delta"`
	ReferenceType ReferenceType   `gorm:"type:varchar(20);not null;index" json:"reference_type"`
	ReferenceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"reference_id"`
	MovedAt       time.Time       `gorm:"not null;index" json:"moved_at"`
	Remark        string          `gorm:"type:varchar(500)" json:"remark,omitempty"`
	CreatedBy     *uuid.UUID      `gorm:"type:uuid" json:"created_by,omitempty"`
}

// TableName specifies the table name
func (StockMove) TableName() string {
	return "stock_moves"
}

// NewStockMove creates a ledger row. Zero-quantity moves are rejected so the
// ledger only ever records actual movement.
func NewStockMove(tenantID, productID, warehouseID uuid.UUID, lotSerialID *uuid.UUID, delta decimal.Decimal, refType ReferenceType, refID uuid.UUID, remark string) (*StockMove, error) {
	if delta.IsZero() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "stock move quantity cannot be zero")
	}
	if !refType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "invalid reference type: "+string(refType))
	}
	if refID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "reference ID is required")
	}

	return &StockMove{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		ProductID:     productID,
		WarehouseID:   warehouseID,
		LotSerialID:   lotSerialID,
		QuantityDelta: delta,
		ReferenceType: refType,
		ReferenceID:   refID,
		MovedAt:       time.Now(),
		Remark:        remark,
	}, nil
}

// IsInbound reports whether the move increases stock
func (m *StockMove) IsInbound() bool {
	return m.QuantityDelta.IsPositive()
}
