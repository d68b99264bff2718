package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// idempotencyKeyTTL bounds how long a processed request key is remembered
const idempotencyKeyTTL = 24 * time.Hour

// ReservationService places and releases holds on stock. Lot-tracked products
// are allocated first-expired-first-out; untracked products reserve against
// the warehouse balance directly. Holds never change on-hand quantities.
type ReservationService struct {
	txScope        TransactionScope
	products       inventory.ProductRegistry
	idempotency    shared.IdempotencyStore
	eventPublisher shared.EventPublisher
}

// NewReservationService creates a new ReservationService
func NewReservationService(txScope TransactionScope, products inventory.ProductRegistry) *ReservationService {
	return &ReservationService{
		txScope:  txScope,
		products: products,
	}
}

// SetIdempotencyStore enables duplicate-request detection for Reserve
func (s *ReservationService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReservationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Reserve places a hold on stock. For lot-tracked products the hold is spread
// over lots in first-expired-first-out order and one ledger row is written per
// lot drawn from. A request naming a specific lot draws only from that lot and
// fails with EXPIRED_LOT if it has passed its expiry date. The whole operation
// commits atomically; a concurrent writer on any touched lot or level triggers
// a bounded replay against fresh state.
func (s *ReservationService) Reserve(ctx context.Context, tenantID uuid.UUID, req ReserveStockRequest) (*inventory.Reservation, error) {
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidQuantity
	}

	product, err := s.products.Get(ctx, tenantID, req.ProductID)
	if err != nil {
		return nil, err
	}
	if req.LotSerialID != nil && !product.TrackingMethod.RequiresLot() {
		return nil, shared.NewDomainError("INVALID_INPUT", "product "+product.Code+" is not lot tracked")
	}

	var key string
	if s.idempotency != nil && req.IdempotencyKey != "" {
		key = idempotencyKey(tenantID, "reserve", req.IdempotencyKey)
		seen, err := s.idempotency.IsProcessed(ctx, key)
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, shared.NewDomainError("ALREADY_EXISTS", "duplicate reservation request")
		}
	}

	var reservation *inventory.Reservation
	err = withOptimisticRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var txErr error
			reservation, txErr = s.reserveInTx(ctx, repos, tenantID, product, req)
			return txErr
		})
	})
	if err != nil {
		return nil, err
	}

	// marked only after the commit so a failed attempt never consumes the key
	if key != "" {
		_, _ = s.idempotency.MarkProcessed(ctx, key, idempotencyKeyTTL)
	}

	s.publishEvents(reservation)
	return reservation, nil
}

func (s *ReservationService) reserveInTx(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, product *inventory.ProductRef, req ReserveStockRequest) (*inventory.Reservation, error) {
	now := time.Now()

	level, err := repos.LevelRepo().Find(ctx, tenantID, req.ProductID, req.WarehouseID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrInsufficientStock
		}
		return nil, err
	}
	levelVersion := level.GetVersion()
	if err := level.Reserve(req.Quantity); err != nil {
		return nil, err
	}

	var entries []inventory.AllocationEntry
	if product.TrackingMethod.RequiresLot() {
		if req.LotSerialID != nil {
			lot, err := repos.LotRepo().FindByID(ctx, tenantID, *req.LotSerialID)
			if err != nil {
				return nil, err
			}
			if lot.ProductID != req.ProductID || lot.WarehouseID != req.WarehouseID {
				return nil, shared.ErrNotFound
			}
			entries = []inventory.AllocationEntry{{Lot: lot, Quantity: req.Quantity}}
		} else {
			candidates, err := repos.LotRepo().FindAllocationCandidates(ctx, tenantID, req.ProductID, req.WarehouseID, now)
			if err != nil {
				return nil, err
			}
			entries, err = inventory.PlanFEFOAllocation(candidates, req.Quantity, now)
			if err != nil {
				return nil, err
			}
		}
		for _, entry := range entries {
			lotVersion := entry.Lot.GetVersion()
			if err := entry.Lot.Reserve(entry.Quantity, now); err != nil {
				return nil, err
			}
			if err := repos.LotRepo().SaveWithLock(ctx, entry.Lot, lotVersion); err != nil {
				return nil, err
			}
		}
	}

	reservation, err := inventory.NewReservation(tenantID, req.ProductID, req.WarehouseID, req.Quantity, entries, req.Remark)
	if err != nil {
		return nil, err
	}

	if err := repos.LevelRepo().SaveWithLock(ctx, level, levelVersion); err != nil {
		return nil, err
	}
	if err := repos.ReservationRepo().Save(ctx, reservation); err != nil {
		return nil, err
	}

	moves := make([]*inventory.StockMove, 0, len(reservation.Allocations))
	for i := range reservation.Allocations {
		alloc := &reservation.Allocations[i]
		move, err := inventory.NewStockMove(tenantID, req.ProductID, req.WarehouseID, alloc.LotSerialID, alloc.Quantity.Neg(), inventory.ReferenceTypeReservation, reservation.ID, req.Remark)
		if err != nil {
			return nil, err
		}
		moves = append(moves, move)
	}
	if err := repos.MoveRepo().AppendAll(ctx, moves); err != nil {
		return nil, err
	}
	return reservation, nil
}

// Release returns a reservation's held quantities to the available pool.
// Releasing an already released reservation is a no-op and returns the
// reservation unchanged.
func (s *ReservationService) Release(ctx context.Context, tenantID, reservationID uuid.UUID) (*inventory.Reservation, error) {
	var reservation *inventory.Reservation
	err := withOptimisticRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var txErr error
			reservation, txErr = s.releaseInTx(ctx, repos, tenantID, reservationID)
			return txErr
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(reservation)
	return reservation, nil
}

func (s *ReservationService) releaseInTx(ctx context.Context, repos TransactionalRepositories, tenantID, reservationID uuid.UUID) (*inventory.Reservation, error) {
	reservation, err := repos.ReservationRepo().FindByID(ctx, tenantID, reservationID)
	if err != nil {
		return nil, err
	}

	version := reservation.GetVersion()
	if released := reservation.Release(); !released {
		return reservation, nil
	}

	for i := range reservation.Allocations {
		alloc := &reservation.Allocations[i]
		if alloc.LotSerialID == nil {
			continue
		}
		lot, err := repos.LotRepo().FindByID(ctx, tenantID, *alloc.LotSerialID)
		if err != nil {
			return nil, err
		}
		lotVersion := lot.GetVersion()
		if err := lot.ReleaseReservation(alloc.Quantity); err != nil {
			return nil, err
		}
		if err := repos.LotRepo().SaveWithLock(ctx, lot, lotVersion); err != nil {
			return nil, err
		}
	}

	level, err := repos.LevelRepo().Find(ctx, tenantID, reservation.ProductID, reservation.WarehouseID)
	if err != nil {
		return nil, err
	}
	levelVersion := level.GetVersion()
	if err := level.ReleaseReservation(reservation.Quantity); err != nil {
		return nil, err
	}
	if err := repos.LevelRepo().SaveWithLock(ctx, level, levelVersion); err != nil {
		return nil, err
	}

	if err := repos.ReservationRepo().SaveWithLock(ctx, reservation, version); err != nil {
		return nil, err
	}

	moves := make([]*inventory.StockMove, 0, len(reservation.Allocations))
	for i := range reservation.Allocations {
		alloc := &reservation.Allocations[i]
		move, err := inventory.NewStockMove(tenantID, reservation.ProductID, reservation.WarehouseID, alloc.LotSerialID, alloc.Quantity, inventory.ReferenceTypeRelease, reservation.ID, "")
		if err != nil {
			return nil, err
		}
		moves = append(moves, move)
	}
	if err := repos.MoveRepo().AppendAll(ctx, moves); err != nil {
		return nil, err
	}
	return reservation, nil
}

// GetReservation returns one reservation with its lot allocations
func (s *ReservationService) GetReservation(ctx context.Context, tenantID, reservationID uuid.UUID) (*inventory.Reservation, error) {
	var reservation *inventory.Reservation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		reservation, err = repos.ReservationRepo().FindByID(ctx, tenantID, reservationID)
		return err
	})
	return reservation, err
}

// ListReservations returns paginated reservations for a tenant
func (s *ReservationService) ListReservations(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.Reservation], error) {
	var result *shared.Paginated[*inventory.Reservation]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		result, err = repos.ReservationRepo().List(ctx, tenantID, filter)
		return err
	})
	return result, err
}

func (s *ReservationService) publishEvents(aggregate shared.AggregateRoot) {
	if s.eventPublisher == nil || aggregate == nil {
		return
	}
	_ = s.eventPublisher.Publish(aggregate.GetDomainEvents()...)
	aggregate.ClearDomainEvents()
}

func idempotencyKey(tenantID uuid.UUID, operation, key string) string {
	return "idem:" + tenantID.String() + ":" + operation + ":" + key
}
