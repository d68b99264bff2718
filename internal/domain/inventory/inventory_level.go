package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// InventoryLevel is the materialized on-hand/reserved balance for one product
// in one warehouse. It is derived state: the stock ledger is the source of
// truth and the level row is updated in the same transaction as each move.
type InventoryLevel struct {
	shared.TenantAggregateRoot
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_level_tenant_product" json:"product_id"`
	WarehouseID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_level_tenant_product" json:"warehouse_id"`
	QuantityOnHand   decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"quantity_on_hand"`
	QuantityReserved decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"quantity_reserved"`
}

// TableName specifies the table name
func (InventoryLevel) TableName() string {
	return "inventory_levels"
}

// NewInventoryLevel creates a zero balance for a product/warehouse pair
func NewInventoryLevel(tenantID, productID, warehouseID uuid.UUID) *InventoryLevel {
	return &InventoryLevel{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		WarehouseID:         warehouseID,
		QuantityOnHand:      decimal.Zero,
		QuantityReserved:    decimal.Zero,
	}
}

// Available returns the quantity on hand not held by reservations
func (l *InventoryLevel) Available() decimal.Decimal {
	return l.QuantityOnHand.Sub(l.QuantityReserved)
}

// Apply moves the on-hand balance by a signed delta. The balance may not drop
// below zero, and it may not drop below the reserved quantity.
func (l *InventoryLevel) Apply(delta decimal.Decimal) error {
	if delta.IsZero() {
		return shared.ErrInvalidQuantity
	}
	newOnHand := l.QuantityOnHand.Add(delta)
	if newOnHand.IsNegative() {
		return shared.NewDomainError("WOULD_UNDERFLOW", "stock on hand cannot go negative")
	}
	if newOnHand.LessThan(l.QuantityReserved) {
		return shared.NewDomainError("WOULD_UNDERFLOW", "stock on hand cannot drop below the reserved quantity")
	}
	l.QuantityOnHand = newOnHand
	l.IncrementVersion()
	return nil
}

// Reserve places a hold against the available balance
func (l *InventoryLevel) Reserve(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.ErrInvalidQuantity
	}
	if quantity.GreaterThan(l.Available()) {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "insufficient available stock to reserve")
	}
	l.QuantityReserved = l.QuantityReserved.Add(quantity)
	l.IncrementVersion()
	return nil
}

// ReleaseReservation returns a held quantity to the available pool
func (l *InventoryLevel) ReleaseReservation(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.ErrInvalidQuantity
	}
	if quantity.GreaterThan(l.QuantityReserved) {
		return shared.NewDomainError("INVALID_QUANTITY", "release exceeds reserved quantity")
	}
	l.QuantityReserved = l.QuantityReserved.Sub(quantity)
	l.IncrementVersion()
	return nil
}
