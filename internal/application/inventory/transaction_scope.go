package inventory

import (
	"context"

	"github.com/stockledger/backend/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all inventory repositories within
// a transaction. All repositories returned share the same underlying database
// transaction, so a reservation's lot updates, its ledger moves, and the level
// change commit or roll back together.
type TransactionalRepositories interface {
	LotRepo() inventory.LotSerialRepository
	MoveRepo() inventory.StockMoveRepository
	LevelRepo() inventory.InventoryLevelRepository
	ReservationRepo() inventory.ReservationRepository
	StockTakeRepo() inventory.StockTakeRepository
	AdjustmentRepo() inventory.AdjustmentRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	lotRepo         inventory.LotSerialRepository
	moveRepo        inventory.StockMoveRepository
	levelRepo       inventory.InventoryLevelRepository
	reservationRepo inventory.ReservationRepository
	stockTakeRepo   inventory.StockTakeRepository
	adjustmentRepo  inventory.AdjustmentRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	lotRepo inventory.LotSerialRepository,
	moveRepo inventory.StockMoveRepository,
	levelRepo inventory.InventoryLevelRepository,
	reservationRepo inventory.ReservationRepository,
	stockTakeRepo inventory.StockTakeRepository,
	adjustmentRepo inventory.AdjustmentRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		lotRepo:         lotRepo,
		moveRepo:        moveRepo,
		levelRepo:       levelRepo,
		reservationRepo: reservationRepo,
		stockTakeRepo:   stockTakeRepo,
		adjustmentRepo:  adjustmentRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// LotRepo returns the lot/serial repository.
func (s *NoOpTransactionScope) LotRepo() inventory.LotSerialRepository {
	return s.lotRepo
}

// MoveRepo returns the stock move repository.
func (s *NoOpTransactionScope) MoveRepo() inventory.StockMoveRepository {
	return s.moveRepo
}

// LevelRepo returns the inventory level repository.
func (s *NoOpTransactionScope) LevelRepo() inventory.InventoryLevelRepository {
	return s.levelRepo
}

// ReservationRepo returns the reservation repository.
func (s *NoOpTransactionScope) ReservationRepo() inventory.ReservationRepository {
	return s.reservationRepo
}

// StockTakeRepo returns the stock take repository.
func (s *NoOpTransactionScope) StockTakeRepo() inventory.StockTakeRepository {
	return s.stockTakeRepo
}

// AdjustmentRepo returns the adjustment document repository.
func (s *NoOpTransactionScope) AdjustmentRepo() inventory.AdjustmentRepository {
	return s.adjustmentRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
