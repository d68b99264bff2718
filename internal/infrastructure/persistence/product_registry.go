package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ProductRefRow is the synced read model of the catalog service's products.
// Only the fields the stock engines need are replicated here.
type ProductRefRow struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Code           string    `gorm:"type:varchar(64);not null"`
	TrackingMethod string    `gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name
func (ProductRefRow) TableName() string {
	return "product_refs"
}

// GormProductRegistry resolves product references from the synced read model
type GormProductRegistry struct {
	db *gorm.DB
}

// NewGormProductRegistry creates a new GormProductRegistry
func NewGormProductRegistry(db *gorm.DB) *GormProductRegistry {
	return &GormProductRegistry{db: db}
}

// Get returns the product reference for a tenant
func (r *GormProductRegistry) Get(ctx context.Context, tenantID, productID uuid.UUID) (*inventory.ProductRef, error) {
	var row ProductRefRow
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inventory.ProductRef{
		ID:             row.ID,
		Code:           row.Code,
		TrackingMethod: inventory.TrackingMethod(row.TrackingMethod),
	}, nil
}

// GetBatch resolves multiple products in one query. Missing products are
// absent from the result map.
func (r *GormProductRegistry) GetBatch(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]*inventory.ProductRef, error) {
	result := make(map[uuid.UUID]*inventory.ProductRef, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	var rows []ProductRefRow
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, productIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.ID] = &inventory.ProductRef{
			ID:             row.ID,
			Code:           row.Code,
			TrackingMethod: inventory.TrackingMethod(row.TrackingMethod),
		}
	}
	return result, nil
}

// WarehouseRefRow is the synced read model of the warehouse registry
type WarehouseRefRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Code      string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name
func (WarehouseRefRow) TableName() string {
	return "warehouse_refs"
}

// GormLocationResolver validates warehouse references against the synced
// read model. Zone and location granularity is not replicated; references
// below warehouse level resolve false.
type GormLocationResolver struct {
	db *gorm.DB
}

// NewGormLocationResolver creates a new GormLocationResolver
func NewGormLocationResolver(db *gorm.DB) *GormLocationResolver {
	return &GormLocationResolver{db: db}
}

// Resolve reports whether the warehouse reference exists for the tenant
func (r *GormLocationResolver) Resolve(ctx context.Context, tenantID, warehouseID uuid.UUID, zoneID, locationID *uuid.UUID) (bool, error) {
	if zoneID != nil || locationID != nil {
		return false, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&WarehouseRefRow{}).
		Where("tenant_id = ? AND id = ?", tenantID, warehouseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var (
	_ inventory.ProductRegistry  = (*GormProductRegistry)(nil)
	_ inventory.LocationResolver = (*GormLocationResolver)(nil)
)
