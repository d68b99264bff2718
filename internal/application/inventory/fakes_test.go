package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// The fakes below store copies, not pointers, so mutations on aggregates the
// services hold never leak into the "database" until Save is called. That
// mirrors how the real repositories behave and keeps failure-path assertions
// honest.

type levelKey struct {
	tenantID    uuid.UUID
	productID   uuid.UUID
	warehouseID uuid.UUID
}

type fakeLotRepo struct {
	mu   sync.Mutex
	lots map[uuid.UUID]inventory.LotOrSerial
}

func newFakeLotRepo() *fakeLotRepo {
	return &fakeLotRepo{lots: make(map[uuid.UUID]inventory.LotOrSerial)}
}

func (r *fakeLotRepo) Save(_ context.Context, lot *inventory.LotOrSerial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lots[lot.ID] = *lot
	return nil
}

func (r *fakeLotRepo) SaveWithLock(_ context.Context, lot *inventory.LotOrSerial, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.lots[lot.ID]
	if !ok || stored.GetVersion() != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	r.lots[lot.ID] = *lot
	return nil
}

func (r *fakeLotRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.LotOrSerial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[id]
	if !ok || lot.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	copied := lot
	return &copied, nil
}

func (r *fakeLotRepo) FindByCode(_ context.Context, tenantID, productID, warehouseID uuid.UUID, code string) (*inventory.LotOrSerial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lot := range r.lots {
		if lot.TenantID == tenantID && lot.ProductID == productID && lot.WarehouseID == warehouseID && lot.Code == code {
			copied := lot
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLotRepo) FindByIDs(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*inventory.LotOrSerial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.LotOrSerial
	for _, id := range ids {
		if lot, ok := r.lots[id]; ok && lot.TenantID == tenantID {
			copied := lot
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeLotRepo) FindAllocationCandidates(_ context.Context, tenantID, productID, warehouseID uuid.UUID, asOf time.Time) ([]*inventory.LotOrSerial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.LotOrSerial
	for _, lot := range r.lots {
		if lot.TenantID != tenantID || lot.ProductID != productID || lot.WarehouseID != warehouseID {
			continue
		}
		if lot.IsConsumed() || lot.IsExpired(asOf) || lot.Reservable().LessThanOrEqual(decimal.Zero) {
			continue
		}
		copied := lot
		result = append(result, &copied)
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
	})
	return result, nil
}

func (r *fakeLotRepo) FindExpiringBefore(_ context.Context, tenantID uuid.UUID, horizon time.Time, filter shared.Filter) (*shared.Paginated[*inventory.LotOrSerial], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.LotOrSerial
	for _, lot := range r.lots {
		if lot.TenantID == tenantID && lot.ExpiresWithin(horizon) {
			copied := lot
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiryDate.Before(*result[j].ExpiryDate)
	})
	page := shared.NewPaginated(result, int64(len(result)), filter.Page, filter.PageSize)
	return &page, nil
}

func (r *fakeLotRepo) List(_ context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.LotOrSerial], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.LotOrSerial
	for _, lot := range r.lots {
		if lot.TenantID != tenantID {
			continue
		}
		if wh, ok := filter.Filters["warehouse_id"].(uuid.UUID); ok && lot.WarehouseID != wh {
			continue
		}
		if pid, ok := filter.Filters["product_id"].(uuid.UUID); ok && lot.ProductID != pid {
			continue
		}
		copied := lot
		result = append(result, &copied)
	}
	page := shared.NewPaginated(result, int64(len(result)), filter.Page, filter.PageSize)
	return &page, nil
}

type fakeMoveRepo struct {
	mu    sync.Mutex
	moves []inventory.StockMove
}

func newFakeMoveRepo() *fakeMoveRepo {
	return &fakeMoveRepo{}
}

func (r *fakeMoveRepo) Append(_ context.Context, move *inventory.StockMove) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, *move)
	return nil
}

func (r *fakeMoveRepo) AppendAll(ctx context.Context, moves []*inventory.StockMove) error {
	for _, move := range moves {
		if err := r.Append(ctx, move); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeMoveRepo) FindByReference(_ context.Context, tenantID uuid.UUID, refType inventory.ReferenceType, refID uuid.UUID) ([]*inventory.StockMove, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.StockMove
	for i := range r.moves {
		move := r.moves[i]
		if move.TenantID == tenantID && move.ReferenceType == refType && move.ReferenceID == refID {
			copied := move
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeMoveRepo) List(_ context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.StockMove], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.StockMove
	for i := range r.moves {
		if r.moves[i].TenantID == tenantID {
			copied := r.moves[i]
			result = append(result, &copied)
		}
	}
	page := shared.NewPaginated(result, int64(len(result)), filter.Page, filter.PageSize)
	return &page, nil
}

func (r *fakeMoveRepo) SumPhysicalDeltas(_ context.Context, tenantID, productID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for i := range r.moves {
		move := &r.moves[i]
		if move.TenantID == tenantID && move.ProductID == productID && move.WarehouseID == warehouseID && move.ReferenceType.AffectsOnHand() {
			sum = sum.Add(move.QuantityDelta)
		}
	}
	return sum, nil
}

type fakeLevelRepo struct {
	mu     sync.Mutex
	levels map[levelKey]inventory.InventoryLevel
}

func newFakeLevelRepo() *fakeLevelRepo {
	return &fakeLevelRepo{levels: make(map[levelKey]inventory.InventoryLevel)}
}

func (r *fakeLevelRepo) key(level *inventory.InventoryLevel) levelKey {
	return levelKey{tenantID: level.TenantID, productID: level.ProductID, warehouseID: level.WarehouseID}
}

func (r *fakeLevelRepo) Save(_ context.Context, level *inventory.InventoryLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[r.key(level)] = *level
	return nil
}

func (r *fakeLevelRepo) SaveWithLock(_ context.Context, level *inventory.InventoryLevel, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.levels[r.key(level)]
	if !ok || stored.GetVersion() != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	r.levels[r.key(level)] = *level
	return nil
}

func (r *fakeLevelRepo) Find(_ context.Context, tenantID, productID, warehouseID uuid.UUID) (*inventory.InventoryLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	level, ok := r.levels[levelKey{tenantID: tenantID, productID: productID, warehouseID: warehouseID}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := level
	return &copied, nil
}

func (r *fakeLevelRepo) List(_ context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.InventoryLevel], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.InventoryLevel
	for _, level := range r.levels {
		if level.TenantID != tenantID {
			continue
		}
		if wh, ok := filter.Filters["warehouse_id"].(uuid.UUID); ok && level.WarehouseID != wh {
			continue
		}
		copied := level
		result = append(result, &copied)
	}
	page := shared.NewPaginated(result, int64(len(result)), filter.Page, filter.PageSize)
	return &page, nil
}

// conflictingLevelRepo fails SaveWithLock a fixed number of times before
// delegating, simulating a concurrent writer on the same level row.
type conflictingLevelRepo struct {
	*fakeLevelRepo
	failMu    sync.Mutex
	conflicts int
	attempts  int
}

func (r *conflictingLevelRepo) SaveWithLock(ctx context.Context, level *inventory.InventoryLevel, expectedVersion int) error {
	r.failMu.Lock()
	r.attempts++
	fail := r.attempts <= r.conflicts
	r.failMu.Unlock()
	if fail {
		return shared.ErrConcurrencyConflict
	}
	return r.fakeLevelRepo.SaveWithLock(ctx, level, expectedVersion)
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]inventory.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[uuid.UUID]inventory.Reservation)}
}

func copyReservation(r inventory.Reservation) inventory.Reservation {
	allocs := make([]inventory.ReservationAllocation, len(r.Allocations))
	copy(allocs, r.Allocations)
	r.Allocations = allocs
	return r
}

func (r *fakeReservationRepo) Save(_ context.Context, reservation *inventory.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[reservation.ID] = copyReservation(*reservation)
	return nil
}

func (r *fakeReservationRepo) SaveWithLock(_ context.Context, reservation *inventory.Reservation, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.reservations[reservation.ID]
	if !ok || stored.GetVersion() != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	r.reservations[reservation.ID] = copyReservation(*reservation)
	return nil
}

func (r *fakeReservationRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[id]
	if !ok || reservation.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	copied := copyReservation(reservation)
	return &copied, nil
}

func (r *fakeReservationRepo) List(_ context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.Reservation], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.Reservation
	for _, reservation := range r.reservations {
		if reservation.TenantID == tenantID {
			copied := copyReservation(reservation)
			result = append(result, &copied)
		}
	}
	page := shared.NewPaginated(result, int64(len(result)), filter.Page, filter.PageSize)
	return &page, nil
}

type fakeStockTakeRepo struct {
	mu    sync.Mutex
	takes map[uuid.UUID]inventory.StockTake
}

func newFakeStockTakeRepo() *fakeStockTakeRepo {
	return &fakeStockTakeRepo{takes: make(map[uuid.UUID]inventory.StockTake)}
}

func copyStockTake(st inventory.StockTake) inventory.StockTake {
	lines := make([]inventory.StockTakeLine, len(st.Lines))
	copy(lines, st.Lines)
	st.Lines = lines
	return st
}

func (r *fakeStockTakeRepo) Save(_ context.Context, stockTake *inventory.StockTake) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.takes[stockTake.ID] = copyStockTake(*stockTake)
	return nil
}

func (r *fakeStockTakeRepo) SaveWithLock(_ context.Context, stockTake *inventory.StockTake, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.takes[stockTake.ID]
	if !ok || stored.GetVersion() != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	r.takes[stockTake.ID] = copyStockTake(*stockTake)
	return nil
}

func (r *fakeStockTakeRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.StockTake, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stockTake, ok := r.takes[id]
	if !ok || stockTake.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	copied := copyStockTake(stockTake)
	return &copied, nil
}

func (r *fakeStockTakeRepo) List(_ context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.StockTake], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.StockTake
	for _, stockTake := range r.takes {
		if stockTake.TenantID == tenantID {
			copied := copyStockTake(stockTake)
			result = append(result, &copied)
		}
	}
	page := shared.NewPaginated(result, int64(len(result)), filter.Page, filter.PageSize)
	return &page, nil
}

type fakeAdjustmentRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]inventory.AdjustmentDocument
}

func newFakeAdjustmentRepo() *fakeAdjustmentRepo {
	return &fakeAdjustmentRepo{docs: make(map[uuid.UUID]inventory.AdjustmentDocument)}
}

func copyAdjustment(d inventory.AdjustmentDocument) inventory.AdjustmentDocument {
	lines := make([]inventory.AdjustmentLine, len(d.Lines))
	copy(lines, d.Lines)
	d.Lines = lines
	return d
}

func (r *fakeAdjustmentRepo) Save(_ context.Context, doc *inventory.AdjustmentDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = copyAdjustment(*doc)
	return nil
}

func (r *fakeAdjustmentRepo) SaveWithLock(_ context.Context, doc *inventory.AdjustmentDocument, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[doc.ID]
	if !ok || stored.GetVersion() != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	r.docs[doc.ID] = copyAdjustment(*doc)
	return nil
}

func (r *fakeAdjustmentRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*inventory.AdjustmentDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	copied := copyAdjustment(doc)
	return &copied, nil
}

func (r *fakeAdjustmentRepo) List(_ context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*inventory.AdjustmentDocument], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*inventory.AdjustmentDocument
	for _, doc := range r.docs {
		if doc.TenantID == tenantID {
			copied := copyAdjustment(doc)
			result = append(result, &copied)
		}
	}
	page := shared.NewPaginated(result, int64(len(result)), filter.Page, filter.PageSize)
	return &page, nil
}

type fakeProductRegistry struct {
	mu       sync.Mutex
	products map[uuid.UUID]inventory.ProductRef
	tenants  map[uuid.UUID]uuid.UUID
}

func newFakeProductRegistry() *fakeProductRegistry {
	return &fakeProductRegistry{
		products: make(map[uuid.UUID]inventory.ProductRef),
		tenants:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *fakeProductRegistry) add(tenantID uuid.UUID, product inventory.ProductRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	r.tenants[product.ID] = tenantID
}

func (r *fakeProductRegistry) Get(_ context.Context, tenantID, productID uuid.UUID) (*inventory.ProductRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok || r.tenants[productID] != tenantID {
		return nil, shared.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (r *fakeProductRegistry) GetBatch(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]*inventory.ProductRef, error) {
	result := make(map[uuid.UUID]*inventory.ProductRef, len(productIDs))
	for _, id := range productIDs {
		product, err := r.Get(ctx, tenantID, id)
		if err != nil {
			continue
		}
		result[id] = product
	}
	return result, nil
}

type fakeIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[key], nil
}

func (s *fakeIdempotencyStore) Close() error {
	return nil
}

type fakeLocationResolver struct {
	mu         sync.Mutex
	warehouses map[uuid.UUID]bool
}

func newFakeLocationResolver(warehouseIDs ...uuid.UUID) *fakeLocationResolver {
	known := make(map[uuid.UUID]bool, len(warehouseIDs))
	for _, id := range warehouseIDs {
		known[id] = true
	}
	return &fakeLocationResolver{warehouses: known}
}

func (r *fakeLocationResolver) Resolve(_ context.Context, _ uuid.UUID, warehouseID uuid.UUID, zoneID, locationID *uuid.UUID) (bool, error) {
	if zoneID != nil || locationID != nil {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warehouses[warehouseID], nil
}

// testEnv wires the fakes behind a no-op transaction scope
type testEnv struct {
	lotRepo         *fakeLotRepo
	moveRepo        *fakeMoveRepo
	levelRepo       *fakeLevelRepo
	reservationRepo *fakeReservationRepo
	stockTakeRepo   *fakeStockTakeRepo
	adjustmentRepo  *fakeAdjustmentRepo
	products        *fakeProductRegistry
	scope           *NoOpTransactionScope
}

func newTestEnv() *testEnv {
	env := &testEnv{
		lotRepo:         newFakeLotRepo(),
		moveRepo:        newFakeMoveRepo(),
		levelRepo:       newFakeLevelRepo(),
		reservationRepo: newFakeReservationRepo(),
		stockTakeRepo:   newFakeStockTakeRepo(),
		adjustmentRepo:  newFakeAdjustmentRepo(),
		products:        newFakeProductRegistry(),
	}
	env.scope = NewNoOpTransactionScope(env.lotRepo, env.moveRepo, env.levelRepo, env.reservationRepo, env.stockTakeRepo, env.adjustmentRepo)
	return env
}
