package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// LotSerialRepository persists the lot/serial registry
type LotSerialRepository interface {
	Save(ctx context.Context, lot *LotOrSerial) error
	// SaveWithLock persists with optimistic locking, returning
	// shared.ErrConcurrencyConflict when the version check fails.
	SaveWithLock(ctx context.Context, lot *LotOrSerial, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*LotOrSerial, error)
	FindByCode(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, code string) (*LotOrSerial, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*LotOrSerial, error)
	// FindAllocationCandidates returns unexpired, unconsumed lots with
	// reservable stock, ordered expiry ascending with null expiries last,
	// ties broken by creation time.
	FindAllocationCandidates(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, asOf time.Time) ([]*LotOrSerial, error)
	FindExpiringBefore(ctx context.Context, tenantID uuid.UUID, horizon time.Time, filter shared.Filter) (*shared.Paginated[*LotOrSerial], error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*LotOrSerial], error)
}

// StockMoveRepository persists the append-only stock ledger.
// The ledger has no update or delete operations.
type StockMoveRepository interface {
	Append(ctx context.Context, move *StockMove) error
	AppendAll(ctx context.Context, moves []*StockMove) error
	FindByReference(ctx context.Context, tenantID uuid.UUID, refType ReferenceType, refID uuid.UUID) ([]*StockMove, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*StockMove], error)
	// SumPhysicalDeltas sums quantity deltas for move types that change
	// physical stock, reconstructing the on-hand quantity from the ledger.
	SumPhysicalDeltas(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (decimal.Decimal, error)
}

// InventoryLevelRepository persists materialized stock balances
type InventoryLevelRepository interface {
	Save(ctx context.Context, level *InventoryLevel) error
	SaveWithLock(ctx context.Context, level *InventoryLevel, expectedVersion int) error
	Find(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (*InventoryLevel, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*InventoryLevel], error)
}

// ReservationRepository persists reservations and their lot allocations
type ReservationRepository interface {
	Save(ctx context.Context, reservation *Reservation) error
	SaveWithLock(ctx context.Context, reservation *Reservation, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Reservation, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*Reservation], error)
}

// StockTakeRepository persists stock takes with their count lines
type StockTakeRepository interface {
	Save(ctx context.Context, stockTake *StockTake) error
	SaveWithLock(ctx context.Context, stockTake *StockTake, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*StockTake, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*StockTake], error)
}

// AdjustmentRepository persists adjustment and scrap documents
type AdjustmentRepository interface {
	Save(ctx context.Context, doc *AdjustmentDocument) error
	SaveWithLock(ctx context.Context, doc *AdjustmentDocument, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*AdjustmentDocument, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*AdjustmentDocument], error)
}
