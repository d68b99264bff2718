package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormStockTakeRepository implements StockTakeRepository using GORM
type GormStockTakeRepository struct {
	db *gorm.DB
}

// NewGormStockTakeRepository creates a new GormStockTakeRepository
func NewGormStockTakeRepository(db *gorm.DB) *GormStockTakeRepository {
	return &GormStockTakeRepository{db: db}
}

// Save creates or updates a stock take with its lines
func (r *GormStockTakeRepository) Save(ctx context.Context, stockTake *inventory.StockTake) error {
	return r.db.WithContext(ctx).Save(stockTake).Error
}

// SaveWithLock updates a stock take with optimistic locking. Line changes
// (snapshots and counts) are written through the association in the same
// statement batch.
func (r *GormStockTakeRepository) SaveWithLock(ctx context.Context, stockTake *inventory.StockTake, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(stockTake).
		Where("id = ? AND tenant_id = ? AND version = ?", stockTake.ID, stockTake.TenantID, expectedVersion).
		Updates(map[string]interface{}{
			"status":       stockTake.Status,
			"started_at":   stockTake.StartedAt,
			"completed_at": stockTake.CompletedAt,
			"version":      stockTake.GetVersion(),
			"updated_at":   stockTake.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	if len(stockTake.Lines) > 0 {
		if err := r.db.WithContext(ctx).Save(&stockTake.Lines).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID finds a stock take with its lines within a tenant
func (r *GormStockTakeRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.StockTake, error) {
	var stockTake inventory.StockTake
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&stockTake).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &stockTake, nil
}

// List returns paginated stock takes for a tenant
func (r *GormStockTakeRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.StockTake], error) {
	base := r.db.WithContext(ctx).Model(&inventory.StockTake{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			base = base.Where("warehouse_id = ?", value)
		case "status":
			base = base.Where("status = ?", value)
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var stockTakes []*inventory.StockTake
	if err := applyFilter(base, filter).Find(&stockTakes).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(stockTakes, total, filter.Page, filter.PageSize)
	return &page, nil
}

var _ inventory.StockTakeRepository = (*GormStockTakeRepository)(nil)
