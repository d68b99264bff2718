package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// LedgerService owns the append-only stock ledger and the lot/serial registry.
// Every physical stock change flows through here as a StockMove, and the
// materialized InventoryLevel is updated in the same transaction.
type LedgerService struct {
	txScope        TransactionScope
	products       inventory.ProductRegistry
	locations      inventory.LocationResolver
	eventPublisher shared.EventPublisher
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(txScope TransactionScope, products inventory.ProductRegistry) *LedgerService {
	return &LedgerService{
		txScope:  txScope,
		products: products,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLocationResolver enables warehouse reference validation on inbound
// operations. Without a resolver, warehouse IDs are taken at face value.
func (s *LedgerService) SetLocationResolver(resolver inventory.LocationResolver) {
	s.locations = resolver
}

func (s *LedgerService) resolveWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID) error {
	if s.locations == nil {
		return nil
	}
	ok, err := s.locations.Resolve(ctx, tenantID, warehouseID, nil, nil)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewDomainError("NOT_FOUND", "warehouse not found")
	}
	return nil
}

// RegisterLot registers a new lot or serial number for a tracked product.
// Lot codes are unique per product and warehouse within a tenant.
func (s *LedgerService) RegisterLot(ctx context.Context, tenantID uuid.UUID, req RegisterLotRequest) (*inventory.LotOrSerial, error) {
	product, err := s.products.Get(ctx, tenantID, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.TrackingMethod.RequiresLot() {
		return nil, shared.NewDomainError("INVALID_INPUT", "product "+product.Code+" is not lot or serial tracked")
	}
	if err := s.resolveWarehouse(ctx, tenantID, req.WarehouseID); err != nil {
		return nil, err
	}

	var lot *inventory.LotOrSerial
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.LotRepo().FindByCode(ctx, tenantID, req.ProductID, req.WarehouseID, req.Code)
		if err != nil && !shared.IsNotFound(err) {
			return err
		}
		if existing != nil {
			return shared.NewDomainError("ALREADY_EXISTS", "lot code "+req.Code+" already registered for this product")
		}

		lot, err = inventory.NewLotOrSerial(tenantID, req.ProductID, req.WarehouseID, req.Code, product.TrackingMethod, req.ExpiryDate)
		if err != nil {
			return err
		}
		return repos.LotRepo().Save(ctx, lot)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(lot)
	return lot, nil
}

// ReceiveStock posts inbound stock against a receipt document. Lot-tracked
// products must name the receiving lot; untracked products must not.
func (s *LedgerService) ReceiveStock(ctx context.Context, tenantID uuid.UUID, req ReceiveStockRequest) (*inventory.StockMove, error) {
	product, err := s.products.Get(ctx, tenantID, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.TrackingMethod.RequiresLot() && req.LotSerialID == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "product "+product.Code+" requires a lot or serial reference")
	}
	if !product.TrackingMethod.RequiresLot() && req.LotSerialID != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "product "+product.Code+" is not lot tracked")
	}
	if err := s.resolveWarehouse(ctx, tenantID, req.WarehouseID); err != nil {
		return nil, err
	}

	var move *inventory.StockMove
	err = withOptimisticRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if req.LotSerialID != nil {
				lot, err := repos.LotRepo().FindByID(ctx, tenantID, *req.LotSerialID)
				if err != nil {
					return err
				}
				expectedVersion := lot.GetVersion()
				if err := lot.Receive(req.Quantity); err != nil {
					return err
				}
				if err := repos.LotRepo().SaveWithLock(ctx, lot, expectedVersion); err != nil {
					return err
				}
			}

			level, err := s.findOrCreateLevel(ctx, repos, tenantID, req.ProductID, req.WarehouseID)
			if err != nil {
				return err
			}
			expectedVersion := level.GetVersion()
			if err := level.Apply(req.Quantity); err != nil {
				return err
			}
			if err := repos.LevelRepo().SaveWithLock(ctx, level, expectedVersion); err != nil {
				return err
			}

			move, err = inventory.NewStockMove(tenantID, req.ProductID, req.WarehouseID, req.LotSerialID, req.Quantity, inventory.ReferenceTypeReceipt, req.ReceiptID, req.Remark)
			if err != nil {
				return err
			}
			return repos.MoveRepo().Append(ctx, move)
		})
	})
	if err != nil {
		return nil, err
	}
	return move, nil
}

// GetLevel returns the materialized balance for a product/warehouse pair.
// Products with no recorded stock report a zero balance rather than an error.
func (s *LedgerService) GetLevel(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (*inventory.InventoryLevel, error) {
	var level *inventory.InventoryLevel
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.LevelRepo().Find(ctx, tenantID, productID, warehouseID)
		if err != nil {
			if shared.IsNotFound(err) {
				level = inventory.NewInventoryLevel(tenantID, productID, warehouseID)
				return nil
			}
			return err
		}
		level = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}

// ListLevels returns paginated balances for a tenant
func (s *LedgerService) ListLevels(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.InventoryLevel], error) {
	var result *shared.Paginated[*inventory.InventoryLevel]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		result, err = repos.LevelRepo().List(ctx, tenantID, filter)
		return err
	})
	return result, err
}

// ListMoves returns paginated ledger rows for a tenant
func (s *LedgerService) ListMoves(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.StockMove], error) {
	var result *shared.Paginated[*inventory.StockMove]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		result, err = repos.MoveRepo().List(ctx, tenantID, filter)
		return err
	})
	return result, err
}

// ListLots returns paginated lot/serial records for a tenant
func (s *LedgerService) ListLots(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.LotOrSerial], error) {
	var result *shared.Paginated[*inventory.LotOrSerial]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		result, err = repos.LotRepo().List(ctx, tenantID, filter)
		return err
	})
	return result, err
}

// ListExpiringLots returns lots whose expiry date falls on or before the
// horizon, soonest first. Used by expiry dashboards and scrap planning.
func (s *LedgerService) ListExpiringLots(ctx context.Context, tenantID uuid.UUID, withinDays int, filter shared.Filter) (*shared.Paginated[*inventory.LotOrSerial], error) {
	if withinDays < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "expiry horizon cannot be negative")
	}
	horizon := time.Now().AddDate(0, 0, withinDays)

	var result *shared.Paginated[*inventory.LotOrSerial]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		result, err = repos.LotRepo().FindExpiringBefore(ctx, tenantID, horizon, filter)
		return err
	})
	return result, err
}

// AuditLevel recomputes the on-hand quantity from the ledger and compares it
// to the materialized level. A mismatch means derived state has drifted and
// the ledger, as the source of truth, wins.
func (s *LedgerService) AuditLevel(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (*LedgerAuditReport, error) {
	var report *LedgerAuditReport
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		sum, err := repos.MoveRepo().SumPhysicalDeltas(ctx, tenantID, productID, warehouseID)
		if err != nil {
			return err
		}

		level, err := repos.LevelRepo().Find(ctx, tenantID, productID, warehouseID)
		if err != nil && !shared.IsNotFound(err) {
			return err
		}
		if level == nil {
			level = inventory.NewInventoryLevel(tenantID, productID, warehouseID)
		}

		report = &LedgerAuditReport{
			ProductID:   productID,
			WarehouseID: warehouseID,
			LedgerSum:   sum,
			LevelOnHand: level.QuantityOnHand,
			Consistent:  sum.Equal(level.QuantityOnHand),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *LedgerService) findOrCreateLevel(ctx context.Context, repos TransactionalRepositories, tenantID, productID, warehouseID uuid.UUID) (*inventory.InventoryLevel, error) {
	level, err := repos.LevelRepo().Find(ctx, tenantID, productID, warehouseID)
	if err != nil {
		if shared.IsNotFound(err) {
			level = inventory.NewInventoryLevel(tenantID, productID, warehouseID)
			if err := repos.LevelRepo().Save(ctx, level); err != nil {
				return nil, err
			}
			return level, nil
		}
		return nil, err
	}
	return level, nil
}

func (s *LedgerService) publishEvents(aggregate shared.AggregateRoot) {
	if s.eventPublisher == nil || aggregate == nil {
		return
	}
	_ = s.eventPublisher.Publish(aggregate.GetDomainEvents()...)
	aggregate.ClearDomainEvents()
}
