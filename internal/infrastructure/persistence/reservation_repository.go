package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormReservationRepository implements ReservationRepository using GORM.
// Allocations are child rows of the reservation aggregate and are persisted
// through GORM's association handling.
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// Save creates or updates a reservation with its allocations
func (r *GormReservationRepository) Save(ctx context.Context, reservation *inventory.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

// SaveWithLock updates a reservation with optimistic locking.
// Allocation rows are immutable after creation; only the header changes.
func (r *GormReservationRepository) SaveWithLock(ctx context.Context, reservation *inventory.Reservation, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(reservation).
		Where("id = ? AND tenant_id = ? AND version = ?", reservation.ID, reservation.TenantID, expectedVersion).
		Updates(map[string]interface{}{
			"status":     reservation.Status,
			"version":    reservation.GetVersion(),
			"updated_at": reservation.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID finds a reservation with its allocations within a tenant
func (r *GormReservationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.Reservation, error) {
	var reservation inventory.Reservation
	if err := r.db.WithContext(ctx).
		Preload("Allocations").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// List returns paginated reservations for a tenant
func (r *GormReservationRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.Reservation], error) {
	base := r.db.WithContext(ctx).Model(&inventory.Reservation{}).Where("tenant_id = ?", tenantID)
	for key, value := range filter.Filters {
		switch key {
		case "warehouse_id":
			base = base.Where("warehouse_id = ?", value)
		case "product_id":
			base = base.Where("product_id = ?", value)
		case "status":
			base = base.Where("status = ?", value)
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var reservations []*inventory.Reservation
	if err := applyFilter(base.Preload("Allocations"), filter).Find(&reservations).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(reservations, total, filter.Page, filter.PageSize)
	return &page, nil
}

var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)
