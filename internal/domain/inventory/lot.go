package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// LotOrSerial is a tracked unit of stock for a lot- or serial-managed product.
// A lot batches fungible units under a shared expiry date; a serial is a lot
// whose quantity is constrained to zero or one.
type LotOrSerial struct {
	shared.TenantAggregateRoot
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_lot_product" json:"product_id"`
	WarehouseID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_lot_product" json:"warehouse_id"`
	Code              string          `gorm:"type:varchar(128);not null" json:"code"`
	Tracking          TrackingMethod  `gorm:"type:varchar(16);not null" json:"tracking"`
	ExpiryDate        *time.Time      `gorm:"type:date" json:"expiry_date,omitempty"`
	QuantityAvailable decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"quantity_available"`
	QuantityReserved  decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"quantity_reserved"`
	ConsumedAt        *time.Time      `json:"consumed_at,omitempty"`
}

// TableName specifies the table name
func (LotOrSerial) TableName() string {
	return "lots_or_serials"
}

// NewLotOrSerial creates a lot/serial record with zero stock
func NewLotOrSerial(tenantID, productID, warehouseID uuid.UUID, code string, tracking TrackingMethod, expiryDate *time.Time) (*LotOrSerial, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "lot/serial code cannot be empty")
	}
	if !tracking.RequiresLot() {
		return nil, shared.NewDomainError("INVALID_INPUT", "tracking method must be LOT or SERIAL")
	}
	if tracking == TrackingMethodSerial && expiryDate != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "serial numbers do not carry expiry dates")
	}

	lot := &LotOrSerial{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		WarehouseID:         warehouseID,
		Code:                code,
		Tracking:            tracking,
		ExpiryDate:          expiryDate,
		QuantityAvailable:   decimal.Zero,
		QuantityReserved:    decimal.Zero,
	}

	lot.AddDomainEvent(NewLotRegisteredEvent(lot))
	return lot, nil
}

// IsExpired reports whether the lot's expiry date has passed as of the given day.
// Lots without an expiry date never expire.
func (l *LotOrSerial) IsExpired(asOf time.Time) bool {
	if l.ExpiryDate == nil {
		return false
	}
	y, m, d := asOf.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := l.ExpiryDate.Date()
	expiry := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return !expiry.After(today)
}

// IsConsumed reports whether the lot has been fully drawn down and closed
func (l *LotOrSerial) IsConsumed() bool {
	return l.ConsumedAt != nil
}

// Reservable returns the quantity not yet held by reservations
func (l *LotOrSerial) Reservable() decimal.Decimal {
	return l.QuantityAvailable.Sub(l.QuantityReserved)
}

// Receive adds stock to the lot
func (l *LotOrSerial) Receive(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.ErrInvalidQuantity
	}
	newAvailable := l.QuantityAvailable.Add(quantity)
	if l.Tracking == TrackingMethodSerial && newAvailable.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewDomainError("INVALID_QUANTITY", "serial quantity must be 0 or 1")
	}
	l.QuantityAvailable = newAvailable
	l.ConsumedAt = nil
	l.IncrementVersion()
	return nil
}

// Reserve places a hold on part of the lot's available quantity
func (l *LotOrSerial) Reserve(quantity decimal.Decimal, asOf time.Time) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.ErrInvalidQuantity
	}
	if l.IsExpired(asOf) {
		return shared.NewDomainError("EXPIRED_LOT", "lot "+l.Code+" is expired")
	}
	if quantity.GreaterThan(l.Reservable()) {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "lot "+l.Code+" has insufficient unreserved stock")
	}
	l.QuantityReserved = l.QuantityReserved.Add(quantity)
	l.IncrementVersion()
	return nil
}

// ReleaseReservation returns a previously held quantity to the reservable pool
func (l *LotOrSerial) ReleaseReservation(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.ErrInvalidQuantity
	}
	if quantity.GreaterThan(l.QuantityReserved) {
		return shared.NewDomainError("INVALID_QUANTITY", "release exceeds reserved quantity on lot "+l.Code)
	}
	l.QuantityReserved = l.QuantityReserved.Sub(quantity)
	l.IncrementVersion()
	return nil
}

// Adjust applies a signed delta to the lot's available quantity. The result
// may not drop below the reserved quantity and never below zero.
func (l *LotOrSerial) Adjust(delta decimal.Decimal) error {
	if delta.IsZero() {
		return shared.ErrInvalidQuantity
	}
	newAvailable := l.QuantityAvailable.Add(delta)
	if newAvailable.IsNegative() {
		return shared.NewDomainError("WOULD_UNDERFLOW", "adjustment would drive lot "+l.Code+" negative")
	}
	if newAvailable.LessThan(l.QuantityReserved) {
		return shared.NewDomainError("WOULD_UNDERFLOW", "adjustment would drop lot "+l.Code+" below its reserved quantity")
	}
	if l.Tracking == TrackingMethodSerial && newAvailable.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewDomainError("INVALID_QUANTITY", "serial quantity must be 0 or 1")
	}
	l.QuantityAvailable = newAvailable
	if l.QuantityAvailable.IsZero() && l.QuantityReserved.IsZero() {
		now := time.Now()
		l.ConsumedAt = &now
	} else {
		l.ConsumedAt = nil
	}
	l.IncrementVersion()
	return nil
}

// ExpiresWithin reports whether the lot expires on or before the horizon date
func (l *LotOrSerial) ExpiresWithin(horizon time.Time) bool {
	if l.ExpiryDate == nil {
		return false
	}
	return !l.ExpiryDate.After(horizon)
}
