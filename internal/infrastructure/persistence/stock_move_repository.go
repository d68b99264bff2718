package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormStockMoveRepository implements StockMoveRepository using GORM.
// The ledger is append-only: there are no update or delete methods.
type GormStockMoveRepository struct {
	db *gorm.DB
}

// NewGormStockMoveRepository creates a new GormStockMoveRepository
func NewGormStockMoveRepository(db *gorm.DB) *GormStockMoveRepository {
	return &GormStockMoveRepository{db: db}
}

// Append writes one ledger row
func (r *GormStockMoveRepository) Append(ctx context.Context, move *inventory.StockMove) error {
	return r.db.WithContext(ctx).Create(move).Error
}

// AppendAll writes multiple ledger rows in one statement
func (r *GormStockMoveRepository) AppendAll(ctx context.Context, moves []*inventory.StockMove) error {
	if len(moves) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(moves).Error
}

// FindByReference returns all moves caused by one business document
func (r *GormStockMoveRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, refType inventory.ReferenceType, refID uuid.UUID) ([]*inventory.StockMove, error) {
	var moves []*inventory.StockMove
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference_type = ? AND reference_id = ?", tenantID, refType, refID).
		Order("moved_at ASC").
		Find(&moves).Error; err != nil {
		return nil, err
	}
	return moves, nil
}

// List returns paginated ledger rows for a tenant
func (r *GormStockMoveRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.StockMove], error) {
	base := r.db.WithContext(ctx).Model(&inventory.StockMove{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			base = base.Where("warehouse_id = ?", value)
		case "product_id":
			base = base.Where("product_id = ?", value)
		case "lot_serial_id":
			base = base.Where("lot_serial_id = ?", value)
		case "reference_type":
			base = base.Where("reference_type = ?", value)
		case "moved_after":
			base = base.Where("moved_at >= ?", value)
		case "moved_before":
			base = base.Where("moved_at <= ?", value)
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var moves []*inventory.StockMove
	if err := applyFilter(base, filter).Find(&moves).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(moves, total, filter.Page, filter.PageSize)
	return &page, nil
}

// SumPhysicalDeltas reconstructs the on-hand quantity from the ledger,
// excluding reservation holds and releases.
func (r *GormStockMoveRepository) SumPhysicalDeltas(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&inventory.StockMove{}).
		Select("SUM(quantity_delta)").
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ?", tenantID, productID, warehouseID).
		Where("reference_type NOT IN ?", []inventory.ReferenceType{inventory.ReferenceTypeReservation, inventory.ReferenceTypeRelease}).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

var _ inventory.StockMoveRepository = (*GormStockMoveRepository)(nil)
