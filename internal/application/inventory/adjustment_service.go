package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// AdjustmentService drafts and posts adjustment and scrap documents. Posting
// writes one ledger move per line and updates lot and level balances in one
// transaction; if any line would underflow, nothing posts and the document
// stays in draft.
type AdjustmentService struct {
	txScope        TransactionScope
	products       inventory.ProductRegistry
	idempotency    shared.IdempotencyStore
	eventPublisher shared.EventPublisher
}

// NewAdjustmentService creates a new AdjustmentService
func NewAdjustmentService(txScope TransactionScope, products inventory.ProductRegistry) *AdjustmentService {
	return &AdjustmentService{
		txScope:  txScope,
		products: products,
	}
}

// SetIdempotencyStore enables duplicate-request detection for Post
func (s *AdjustmentService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *AdjustmentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CreateDraft drafts an adjustment or scrap document with its lines.
// Lot references are validated against the registry; lot-tracked products
// must name a lot and untracked products must not.
func (s *AdjustmentService) CreateDraft(ctx context.Context, tenantID uuid.UUID, req CreateAdjustmentRequest) (*inventory.AdjustmentDocument, error) {
	doc, err := inventory.NewAdjustmentDocument(tenantID, req.WarehouseID, req.DocumentType, req.Remark)
	if err != nil {
		return nil, err
	}

	if err := s.addValidatedLines(ctx, tenantID, doc, req.Lines); err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.AdjustmentRepo().Save(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// AddLines appends corrections to an existing draft document. Lines on a
// posted or cancelled document are rejected with INVALID_STATE.
func (s *AdjustmentService) AddLines(ctx context.Context, tenantID, documentID uuid.UUID, lines []AdjustmentLineInput) (*inventory.AdjustmentDocument, error) {
	var doc *inventory.AdjustmentDocument
	err := withOptimisticRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			doc, err = repos.AdjustmentRepo().FindByID(ctx, tenantID, documentID)
			if err != nil {
				return err
			}
			version := doc.GetVersion()
			if err := s.addValidatedLines(ctx, tenantID, doc, lines); err != nil {
				return err
			}
			return repos.AdjustmentRepo().SaveWithLock(ctx, doc, version)
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *AdjustmentService) addValidatedLines(ctx context.Context, tenantID uuid.UUID, doc *inventory.AdjustmentDocument, lines []AdjustmentLineInput) error {
	productIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}
	products, err := s.products.GetBatch(ctx, tenantID, productIDs)
	if err != nil {
		return err
	}

	for _, line := range lines {
		product := products[line.ProductID]
		if product == nil {
			return shared.ErrNotFound
		}
		if product.TrackingMethod.RequiresLot() && line.LotSerialID == nil {
			return shared.NewDomainError("INVALID_INPUT", "product "+product.Code+" requires a lot or serial reference")
		}
		if !product.TrackingMethod.RequiresLot() && line.LotSerialID != nil {
			return shared.NewDomainError("INVALID_INPUT", "product "+product.Code+" is not lot tracked")
		}
		if err := doc.AddLine(line.ProductID, line.LotSerialID, line.Delta, line.ReasonCode, line.Remark); err != nil {
			return err
		}
	}
	return nil
}

// Post applies a draft document to the ledger. Posting an already posted
// document is a no-op that returns the document as-is, so client retries are
// safe even without an idempotency key.
func (s *AdjustmentService) Post(ctx context.Context, tenantID uuid.UUID, req PostAdjustmentRequest) (*inventory.AdjustmentDocument, error) {
	var key string
	if s.idempotency != nil && req.IdempotencyKey != "" {
		key = idempotencyKey(tenantID, "adjustment-post", req.IdempotencyKey)
		seen, err := s.idempotency.IsProcessed(ctx, key)
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, shared.NewDomainError("ALREADY_EXISTS", "duplicate posting request")
		}
	}

	var doc *inventory.AdjustmentDocument
	err := withOptimisticRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var txErr error
			doc, txErr = s.postInTx(ctx, repos, tenantID, req)
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

	s.publishEvents(doc)
	return doc, nil
}

func (s *AdjustmentService) postInTx(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, req PostAdjustmentRequest) (*inventory.AdjustmentDocument, error) {
	doc, err := repos.AdjustmentRepo().FindByID(ctx, tenantID, req.DocumentID)
	if err != nil {
		return nil, err
	}

	version := doc.GetVersion()
	posted, err := doc.MarkPosted(req.PostedBy)
	if err != nil {
		return nil, err
	}
	if !posted {
		return doc, nil
	}

	refType := doc.ReferenceType()

	// one batched read for all referenced lots, then apply line by line
	lotIDs := make([]uuid.UUID, 0, len(doc.Lines))
	for i := range doc.Lines {
		if doc.Lines[i].LotSerialID != nil {
			lotIDs = append(lotIDs, *doc.Lines[i].LotSerialID)
		}
	}
	lots := make(map[uuid.UUID]*inventory.LotOrSerial, len(lotIDs))
	lotVersions := make(map[uuid.UUID]int, len(lotIDs))
	if len(lotIDs) > 0 {
		fetched, err := repos.LotRepo().FindByIDs(ctx, tenantID, lotIDs)
		if err != nil {
			return nil, err
		}
		for _, lot := range fetched {
			lots[lot.ID] = lot
			lotVersions[lot.ID] = lot.GetVersion()
		}
	}

	levels := make(map[uuid.UUID]*inventory.InventoryLevel, len(doc.Lines))
	levelVersions := make(map[uuid.UUID]int, len(doc.Lines))
	moves := make([]*inventory.StockMove, 0, len(doc.Lines))

	for i := range doc.Lines {
		line := &doc.Lines[i]

		if line.LotSerialID != nil {
			lot := lots[*line.LotSerialID]
			if lot == nil {
				return nil, shared.ErrNotFound
			}
			if err := lot.Adjust(line.QuantityDelta); err != nil {
				return nil, err
			}
		}

		level := levels[line.ProductID]
		if level == nil {
			var err error
			level, err = s.findOrCreateLevel(ctx, repos, tenantID, line.ProductID, doc.WarehouseID)
			if err != nil {
				return nil, err
			}
			levels[line.ProductID] = level
			levelVersions[line.ProductID] = level.GetVersion()
		}
		if err := level.Apply(line.QuantityDelta); err != nil {
			return nil, err
		}

		move, err := inventory.NewStockMove(tenantID, line.ProductID, doc.WarehouseID, line.LotSerialID, line.QuantityDelta, refType, doc.ID, line.Remark)
		if err != nil {
			return nil, err
		}
		moves = append(moves, move)
	}

	for id, lot := range lots {
		if err := repos.LotRepo().SaveWithLock(ctx, lot, lotVersions[id]); err != nil {
			return nil, err
		}
	}
	for productID, level := range levels {
		if err := repos.LevelRepo().SaveWithLock(ctx, level, levelVersions[productID]); err != nil {
			return nil, err
		}
	}
	if err := repos.MoveRepo().AppendAll(ctx, moves); err != nil {
		return nil, err
	}

	if err := repos.AdjustmentRepo().SaveWithLock(ctx, doc, version); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *AdjustmentService) findOrCreateLevel(ctx context.Context, repos TransactionalRepositories, tenantID, productID, warehouseID uuid.UUID) (*inventory.InventoryLevel, error) {
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

// Cancel abandons a draft document
func (s *AdjustmentService) Cancel(ctx context.Context, tenantID, documentID uuid.UUID) (*inventory.AdjustmentDocument, error) {
	var doc *inventory.AdjustmentDocument
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = repos.AdjustmentRepo().FindByID(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		version := doc.GetVersion()
		if err := doc.Cancel(); err != nil {
			return err
		}
		return repos.AdjustmentRepo().SaveWithLock(ctx, doc, version)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Get returns one document with its lines
func (s *AdjustmentService) Get(ctx context.Context, tenantID, documentID uuid.UUID) (*inventory.AdjustmentDocument, error) {
	var doc *inventory.AdjustmentDocument
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = repos.AdjustmentRepo().FindByID(ctx, tenantID, documentID)
		return err
	})
	return doc, err
}

// List returns paginated documents for a tenant
func (s *AdjustmentService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.AdjustmentDocument], error) {
	var result *shared.Paginated[*inventory.AdjustmentDocument]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		result, err = repos.AdjustmentRepo().List(ctx, tenantID, filter)
		return err
	})
	return result, err
}

// Summarize aggregates a document's quantities by reason code
func (s *AdjustmentService) Summarize(ctx context.Context, tenantID, documentID uuid.UUID) (*AdjustmentSummary, error) {
	doc, err := s.Get(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}

	summary := &AdjustmentSummary{
		DocumentID:    doc.ID,
		DocumentType:  doc.DocumentType.String(),
		Status:        doc.Status.String(),
		LineCount:     len(doc.Lines),
		TotalIncrease: decimal.Zero,
		TotalDecrease: decimal.Zero,
		ByReason:      make(map[string]decimal.Decimal),
	}
	for i := range doc.Lines {
		line := &doc.Lines[i]
		if line.QuantityDelta.IsPositive() {
			summary.TotalIncrease = summary.TotalIncrease.Add(line.QuantityDelta)
		} else {
			summary.TotalDecrease = summary.TotalDecrease.Add(line.QuantityDelta.Abs())
		}
		summary.ByReason[line.ReasonCode] = summary.ByReason[line.ReasonCode].Add(line.QuantityDelta)
	}
	return summary, nil
}

func (s *AdjustmentService) publishEvents(aggregate shared.AggregateRoot) {
	if s.eventPublisher == nil || aggregate == nil {
		return
	}
	_ = s.eventPublisher.Publish(aggregate.GetDomainEvents()...)
	aggregate.ClearDomainEvents()
}
