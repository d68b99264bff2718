package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormInventoryLevelRepository implements InventoryLevelRepository using GORM
type GormInventoryLevelRepository struct {
	db *gorm.DB
}

// NewGormInventoryLevelRepository creates a new GormInventoryLevelRepository
func NewGormInventoryLevelRepository(db *gorm.DB) *GormInventoryLevelRepository {
	return &GormInventoryLevelRepository{db: db}
}

// Save creates or updates a level row
func (r *GormInventoryLevelRepository) Save(ctx context.Context, level *inventory.InventoryLevel) error {
	return r.db.WithContext(ctx).Save(level).Error
}

// SaveWithLock updates a level with optimistic locking.
// Returns shared.ErrConcurrencyConflict if the version check fails.
func (r *GormInventoryLevelRepository) SaveWithLock(ctx context.Context, level *inventory.InventoryLevel, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(level).
		Where("id = ? AND tenant_id = ? AND version = ?", level.ID, level.TenantID, expectedVersion).
		Updates(map[string]interface{}{
			"quantity_on_hand":  level.QuantityOnHand,
			"quantity_reserved": level.QuantityReserved,
			"version":           level.GetVersion(),
			"updated_at":        level.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Find returns the level row for a product/warehouse pair
func (r *GormInventoryLevelRepository) Find(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (*inventory.InventoryLevel, error) {
	var level inventory.InventoryLevel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ?", tenantID, productID, warehouseID).
		First(&level).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &level, nil
}

// List returns paginated level rows for a tenant
func (r *GormInventoryLevelRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.InventoryLevel], error) {
	base := r.db.WithContext(ctx).Model(&inventory.InventoryLevel{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			base = base.Where("warehouse_id = ?", value)
		case "product_id":
			base = base.Where("product_id = ?", value)
		case "has_stock":
			if value == true {
				base = base.Where("quantity_on_hand > 0")
			}
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var levels []*inventory.InventoryLevel
	if err := applyFilter(base, filter).Find(&levels).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(levels, total, filter.Page, filter.PageSize)
	return &page, nil
}

var _ inventory.InventoryLevelRepository = (*GormInventoryLevelRepository)(nil)
