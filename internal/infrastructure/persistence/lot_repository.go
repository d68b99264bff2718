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

// GormLotSerialRepository implements LotSerialRepository using GORM
type GormLotSerialRepository struct {
	db *gorm.DB
}

// NewGormLotSerialRepository creates a new GormLotSerialRepository
func NewGormLotSerialRepository(db *gorm.DB) *GormLotSerialRepository {
	return &GormLotSerialRepository{db: db}
}

// Save creates or updates a lot/serial record
func (r *GormLotSerialRepository) Save(ctx context.Context, lot *inventory.LotOrSerial) error {
	return r.db.WithContext(ctx).Save(lot).Error
}

// SaveWithLock updates a lot with optimistic locking.
// Returns shared.ErrConcurrencyConflict if the version check fails.
func (r *GormLotSerialRepository) SaveWithLock(ctx context.Context, lot *inventory.LotOrSerial, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(lot).
		Where("id = ? AND tenant_id = ? AND version = ?", lot.ID, lot.TenantID, expectedVersion).
		Updates(map[string]interface{}{
			"quantity_available": lot.QuantityAvailable,
			"quantity_reserved":  lot.QuantityReserved,
			"expiry_date":        lot.ExpiryDate,
			"consumed_at":        lot.ConsumedAt,
			"version":            lot.GetVersion(),
			"updated_at":         lot.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID finds a lot by ID within a tenant
func (r *GormLotSerialRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.LotOrSerial, error) {
	var lot inventory.LotOrSerial
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

// FindByCode finds a lot by its code within a product and warehouse
func (r *GormLotSerialRepository) FindByCode(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, code string) (*inventory.LotOrSerial, error) {
	var lot inventory.LotOrSerial
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ? AND code = ?", tenantID, productID, warehouseID, code).
		First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

// FindByIDs finds multiple lots by their IDs
func (r *GormLotSerialRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*inventory.LotOrSerial, error) {
	if len(ids) == 0 {
		return []*inventory.LotOrSerial{}, nil
	}

	var lots []*inventory.LotOrSerial
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// FindAllocationCandidates returns lots eligible for allocation, first expiry
// first. Lots without an expiry date sort last; ties break on creation time.
func (r *GormLotSerialRepository) FindAllocationCandidates(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, asOf time.Time) ([]*inventory.LotOrSerial, error) {
	day := asOf.Format("2006-01-02")

	var lots []*inventory.LotOrSerial
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ?", tenantID, productID, warehouseID).
		Where("consumed_at IS NULL").
		Where("quantity_available - quantity_reserved > 0").
		Where("expiry_date IS NULL OR expiry_date > ?", day).
		Order("expiry_date ASC NULLS LAST, created_at ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// FindExpiringBefore returns unconsumed lots expiring on or before the horizon
func (r *GormLotSerialRepository) FindExpiringBefore(ctx context.Context, tenantID uuid.UUID, horizon time.Time, filter shared.Filter) (*shared.Paginated[*inventory.LotOrSerial], error) {
	base := r.db.WithContext(ctx).Model(&inventory.LotOrSerial{}).
		Where("tenant_id = ? AND consumed_at IS NULL", tenantID).
		Where("expiry_date IS NOT NULL AND expiry_date <= ?", horizon.Format("2006-01-02"))

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var lots []*inventory.LotOrSerial
	offset := (filter.Page - 1) * filter.PageSize
	if err := base.Order("expiry_date ASC").Offset(offset).Limit(filter.PageSize).Find(&lots).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(lots, total, filter.Page, filter.PageSize)
	return &page, nil
}

// List returns paginated lots for a tenant
func (r *GormLotSerialRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.LotOrSerial], error) {
	base := r.db.WithContext(ctx).Model(&inventory.LotOrSerial{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			base = base.Where("warehouse_id = ?", value)
		case "product_id":
			base = base.Where("product_id = ?", value)
		case "tracking":
			base = base.Where("tracking = ?", value)
		case "has_stock":
			if value == true {
				base = base.Where("quantity_available > 0")
			}
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var lots []*inventory.LotOrSerial
	if err := applyFilter(base, filter).Find(&lots).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(lots, total, filter.Page, filter.PageSize)
	return &page, nil
}

var _ inventory.LotSerialRepository = (*GormLotSerialRepository)(nil)
