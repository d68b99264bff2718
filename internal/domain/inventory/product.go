package inventory

import (
	"context"

	"github.com/google/uuid"
)

// TrackingMethod defines how units of a product are identified in stock
type TrackingMethod string

const (
	// TrackingMethodNone means units are fungible and tracked only in aggregate
	TrackingMethodNone TrackingMethod = "NONE"
	// TrackingMethodLot means units are grouped into lots sharing an expiry date
	TrackingMethodLot TrackingMethod = "LOT"
	// TrackingMethodSerial means every unit carries a unique serial number
	TrackingMethodSerial TrackingMethod = "SERIAL"
)

// IsValid checks if the tracking method is valid
func (m TrackingMethod) IsValid() bool {
	switch m {
	case TrackingMethodNone, TrackingMethodLot, TrackingMethodSerial:
		return true
	}
	return false
}

// String returns the string representation
func (m TrackingMethod) String() string {
	return string(m)
}

// RequiresLot returns true if stock of this product must be addressed by lot/serial
func (m TrackingMethod) RequiresLot() bool {
	return m == TrackingMethodLot || m == TrackingMethodSerial
}

// ProductRef is the read-only view of a product that the stock engines need.
// The product catalog itself is owned by a collaborating service.
type ProductRef struct {
	ID             uuid.UUID
	Code           string
	TrackingMethod TrackingMethod
}

// ProductRegistry resolves product references for the stock engines
type ProductRegistry interface {
	// Get returns the product reference, or shared.ErrNotFound if the product
	// does not exist for the tenant.
	Get(ctx context.Context, tenantID, productID uuid.UUID) (*ProductRef, error)

	// GetBatch resolves multiple products in one call, keyed by product ID.
	// Missing products are simply absent from the result map.
	GetBatch(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]*ProductRef, error)
}

// LocationResolver validates warehouse/zone/location references.
// The warehouse registry is owned by a collaborating service.
type LocationResolver interface {
	Resolve(ctx context.Context, tenantID, warehouseID uuid.UUID, zoneID, locationID *uuid.UUID) (bool, error)
}
