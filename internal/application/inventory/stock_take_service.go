package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// snapshotPageSize is the page size used when walking levels and lots while
// freezing a stock take's expected quantities.
const snapshotPageSize = 500

// StockTakeService runs physical counts and reconciles them against the
// ledger. Finalizing a take posts one corrective move per variance line in a
// single transaction, so the take either reconciles fully or not at all.
type StockTakeService struct {
	txScope        TransactionScope
	products       inventory.ProductRegistry
	eventPublisher shared.EventPublisher
}

// NewStockTakeService creates a new StockTakeService
func NewStockTakeService(txScope TransactionScope, products inventory.ProductRegistry) *StockTakeService {
	return &StockTakeService{
		txScope:  txScope,
		products: products,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StockTakeService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create drafts a stock take for a warehouse
func (s *StockTakeService) Create(ctx context.Context, tenantID, warehouseID uuid.UUID, remark string) (*inventory.StockTake, error) {
	stockTake := inventory.NewStockTake(tenantID, warehouseID, remark)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.StockTakeRepo().Save(ctx, stockTake)
	})
	if err != nil {
		return nil, err
	}
	return stockTake, nil
}

// BeginCounting snapshots the warehouse's current balances as the take's
// expected quantities and moves it to IN_PROGRESS. Lot-tracked products get
// one line per lot; untracked products one line per product.
func (s *StockTakeService) BeginCounting(ctx context.Context, tenantID, stockTakeID uuid.UUID) (*inventory.StockTake, error) {
	var stockTake *inventory.StockTake
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		stockTake, err = repos.StockTakeRepo().FindByID(ctx, tenantID, stockTakeID)
		if err != nil {
			return err
		}

		lines, err := s.snapshotLines(ctx, repos, stockTake)
		if err != nil {
			return err
		}

		version := stockTake.GetVersion()
		if err := stockTake.BeginCounting(lines); err != nil {
			return err
		}
		return repos.StockTakeRepo().SaveWithLock(ctx, stockTake, version)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(stockTake)
	return stockTake, nil
}

func (s *StockTakeService) snapshotLines(ctx context.Context, repos TransactionalRepositories, stockTake *inventory.StockTake) ([]inventory.StockTakeLine, error) {
	filter := shared.DefaultFilter()
	filter.PageSize = snapshotPageSize
	filter.Filters = map[string]interface{}{"warehouse_id": stockTake.WarehouseID}

	var levels []*inventory.InventoryLevel
	for page := 1; ; page++ {
		filter.Page = page
		result, err := repos.LevelRepo().List(ctx, stockTake.TenantID, filter)
		if err != nil {
			return nil, err
		}
		levels = append(levels, result.Items...)
		if len(result.Items) < filter.PageSize {
			break
		}
	}

	productIDs := make([]uuid.UUID, 0, len(levels))
	for _, level := range levels {
		productIDs = append(productIDs, level.ProductID)
	}
	products, err := s.products.GetBatch(ctx, stockTake.TenantID, productIDs)
	if err != nil {
		return nil, err
	}

	var lines []inventory.StockTakeLine
	for _, level := range levels {
		product := products[level.ProductID]
		if product != nil && product.TrackingMethod.RequiresLot() {
			lotLines, err := s.snapshotLotLines(ctx, repos, stockTake, level.ProductID)
			if err != nil {
				return nil, err
			}
			lines = append(lines, lotLines...)
			continue
		}
		lines = append(lines, inventory.StockTakeLine{
			BaseEntity:       shared.NewBaseEntity(),
			StockTakeID:      stockTake.ID,
			TenantID:         stockTake.TenantID,
			ProductID:        level.ProductID,
			ExpectedQuantity: level.QuantityOnHand,
		})
	}
	return lines, nil
}

func (s *StockTakeService) snapshotLotLines(ctx context.Context, repos TransactionalRepositories, stockTake *inventory.StockTake, productID uuid.UUID) ([]inventory.StockTakeLine, error) {
	filter := shared.DefaultFilter()
	filter.PageSize = snapshotPageSize
	filter.Filters = map[string]interface{}{
		"warehouse_id": stockTake.WarehouseID,
		"product_id":   productID,
	}

	var lines []inventory.StockTakeLine
	for page := 1; ; page++ {
		filter.Page = page
		result, err := repos.LotRepo().List(ctx, stockTake.TenantID, filter)
		if err != nil {
			return nil, err
		}
		for _, lot := range result.Items {
			lotID := lot.ID
			lines = append(lines, inventory.StockTakeLine{
				BaseEntity:       shared.NewBaseEntity(),
				StockTakeID:      stockTake.ID,
				TenantID:         stockTake.TenantID,
				ProductID:        productID,
				LotSerialID:      &lotID,
				ExpectedQuantity: lot.QuantityAvailable,
			})
		}
		if len(result.Items) < filter.PageSize {
			break
		}
	}
	return lines, nil
}

// RecordCount records the counted quantity on one line
func (s *StockTakeService) RecordCount(ctx context.Context, tenantID, stockTakeID, lineID uuid.UUID, actual decimal.Decimal, countedBy *uuid.UUID) (*inventory.StockTake, error) {
	var stockTake *inventory.StockTake
	err := withOptimisticRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			stockTake, err = repos.StockTakeRepo().FindByID(ctx, tenantID, stockTakeID)
			if err != nil {
				return err
			}
			version := stockTake.GetVersion()
			if err := stockTake.RecordCount(lineID, actual, countedBy); err != nil {
				return err
			}
			return repos.StockTakeRepo().SaveWithLock(ctx, stockTake, version)
		})
	})
	if err != nil {
		return nil, err
	}
	return stockTake, nil
}

// SubmitCounts records counted quantities for several lines in one commit.
// Either every count lands or none does.
func (s *StockTakeService) SubmitCounts(ctx context.Context, tenantID, stockTakeID uuid.UUID, counts []CountInput, countedBy *uuid.UUID) (*inventory.StockTake, error) {
	var stockTake *inventory.StockTake
	err := withOptimisticRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			stockTake, err = repos.StockTakeRepo().FindByID(ctx, tenantID, stockTakeID)
			if err != nil {
				return err
			}
			version := stockTake.GetVersion()
			for _, count := range counts {
				if err := stockTake.RecordCount(count.LineID, count.ActualQuantity, countedBy); err != nil {
					return err
				}
			}
			return repos.StockTakeRepo().SaveWithLock(ctx, stockTake, version)
		})
	})
	if err != nil {
		return nil, err
	}
	return stockTake, nil
}

// Finalize completes the take and posts one corrective move per line whose
// counted quantity differs from the frozen expectation. Every line must be
// counted first. The corrections, balance updates, and status change commit
// atomically.
func (s *StockTakeService) Finalize(ctx context.Context, tenantID, stockTakeID uuid.UUID) (*inventory.StockTake, error) {
	var stockTake *inventory.StockTake
	err := withOptimisticRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			stockTake, err = repos.StockTakeRepo().FindByID(ctx, tenantID, stockTakeID)
			if err != nil {
				return err
			}

			version := stockTake.GetVersion()
			variances, err := stockTake.Finalize()
			if err != nil {
				return err
			}

			for i := range variances {
				if err := s.postVariance(ctx, repos, stockTake, &variances[i]); err != nil {
					return err
				}
			}
			return repos.StockTakeRepo().SaveWithLock(ctx, stockTake, version)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(stockTake)
	return stockTake, nil
}

func (s *StockTakeService) postVariance(ctx context.Context, repos TransactionalRepositories, stockTake *inventory.StockTake, line *inventory.StockTakeLine) error {
	delta := line.Variance()

	if line.LotSerialID != nil {
		lot, err := repos.LotRepo().FindByID(ctx, stockTake.TenantID, *line.LotSerialID)
		if err != nil {
			return err
		}
		lotVersion := lot.GetVersion()
		if err := lot.Adjust(delta); err != nil {
			return err
		}
		if err := repos.LotRepo().SaveWithLock(ctx, lot, lotVersion); err != nil {
			return err
		}
	}

	level, err := repos.LevelRepo().Find(ctx, stockTake.TenantID, line.ProductID, stockTake.WarehouseID)
	if err != nil {
		return err
	}
	levelVersion := level.GetVersion()
	if err := level.Apply(delta); err != nil {
		return err
	}
	if err := repos.LevelRepo().SaveWithLock(ctx, level, levelVersion); err != nil {
		return err
	}

	move, err := inventory.NewStockMove(stockTake.TenantID, line.ProductID, stockTake.WarehouseID, line.LotSerialID, delta, inventory.ReferenceTypeStockTake, stockTake.ID, "stock take variance")
	if err != nil {
		return err
	}
	return repos.MoveRepo().Append(ctx, move)
}

// Cancel abandons a draft or in-progress stock take
func (s *StockTakeService) Cancel(ctx context.Context, tenantID, stockTakeID uuid.UUID) (*inventory.StockTake, error) {
	var stockTake *inventory.StockTake
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		stockTake, err = repos.StockTakeRepo().FindByID(ctx, tenantID, stockTakeID)
		if err != nil {
			return err
		}
		version := stockTake.GetVersion()
		if err := stockTake.Cancel(); err != nil {
			return err
		}
		return repos.StockTakeRepo().SaveWithLock(ctx, stockTake, version)
	})
	if err != nil {
		return nil, err
	}
	return stockTake, nil
}

// Get returns one stock take with its lines
func (s *StockTakeService) Get(ctx context.Context, tenantID, stockTakeID uuid.UUID) (*inventory.StockTake, error) {
	var stockTake *inventory.StockTake
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		stockTake, err = repos.StockTakeRepo().FindByID(ctx, tenantID, stockTakeID)
		return err
	})
	return stockTake, err
}

// List returns paginated stock takes for a tenant
func (s *StockTakeService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.StockTake], error) {
	var result *shared.Paginated[*inventory.StockTake]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		result, err = repos.StockTakeRepo().List(ctx, tenantID, filter)
		return err
	})
	return result, err
}

func (s *StockTakeService) publishEvents(aggregate shared.AggregateRoot) {
	if s.eventPublisher == nil || aggregate == nil {
		return
	}
	_ = s.eventPublisher.Publish(aggregate.GetDomainEvents()...)
	aggregate.ClearDomainEvents()
}
