package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormAdjustmentRepository implements AdjustmentRepository using GORM
type GormAdjustmentRepository struct {
	db *gorm.DB
}

// NewGormAdjustmentRepository creates a new GormAdjustmentRepository
func NewGormAdjustmentRepository(db *gorm.DB) *GormAdjustmentRepository {
	return &GormAdjustmentRepository{db: db}
}

// Save creates or updates a document with its lines
func (r *GormAdjustmentRepository) Save(ctx context.Context, doc *inventory.AdjustmentDocument) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// SaveWithLock updates a document header with optimistic locking.
// Lines are immutable once the document leaves draft.
func (r *GormAdjustmentRepository) SaveWithLock(ctx context.Context, doc *inventory.AdjustmentDocument, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(doc).
		Where("id = ? AND tenant_id = ? AND version = ?", doc.ID, doc.TenantID, expectedVersion).
		Updates(map[string]interface{}{
			"status":     doc.Status,
			"posted_at":  doc.PostedAt,
			"posted_by":  doc.PostedBy,
			"version":    doc.GetVersion(),
			"updated_at": doc.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID finds a document with its lines within a tenant
func (r *GormAdjustmentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.AdjustmentDocument, error) {
	var doc inventory.AdjustmentDocument
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// List returns paginated documents for a tenant
func (r *GormAdjustmentRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.AdjustmentDocument], error) {
	base := r.db.WithContext(ctx).Model(&inventory.AdjustmentDocument{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			base = base.Where("warehouse_id = ?", value)
		case "status":
			base = base.Where("status = ?", value)
		case "document_type":
			base = base.Where("document_type = ?", value)
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var docs []*inventory.AdjustmentDocument
	if err := applyFilter(base.Preload("Lines"), filter).Find(&docs).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(docs, total, filter.Page, filter.PageSize)
	return &page, nil
}

var _ inventory.AdjustmentRepository = (*GormAdjustmentRepository)(nil)
