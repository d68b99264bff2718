package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

func seedProduct(env *testEnv, tenantID uuid.UUID, tracking inventory.TrackingMethod) uuid.UUID {
	id := uuid.New()
	env.products.add(tenantID, inventory.ProductRef{ID: id, Code: "P-" + id.String()[:8], TrackingMethod: tracking})
	return id
}

func seedLot(t *testing.T, env *testEnv, tenantID, productID, warehouseID uuid.UUID, code string, qty int64, expiry *time.Time, createdAt time.Time) *inventory.LotOrSerial {
	t.Helper()
	lot, err := inventory.NewLotOrSerial(tenantID, productID, warehouseID, code, inventory.TrackingMethodLot, expiry)
	require.NoError(t, err)
	lot.CreatedAt = createdAt
	require.NoError(t, lot.Receive(decimal.NewFromInt(qty)))
	require.NoError(t, env.lotRepo.Save(context.Background(), lot))
	return lot
}

func seedLevel(t *testing.T, env *testEnv, tenantID, productID, warehouseID uuid.UUID, onHand int64) {
	t.Helper()
	level := inventory.NewInventoryLevel(tenantID, productID, warehouseID)
	require.NoError(t, level.Apply(decimal.NewFromInt(onHand)))
	require.NoError(t, env.levelRepo.Save(context.Background(), level))
}

func expiryPtr(t time.Time) *time.Time {
	return &t
}

func TestReservationServiceReserve(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	warehouseID := uuid.New()
	now := time.Now()
	base := now.Add(-48 * time.Hour)

	t.Run("allocates lots first expired first out", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodLot)
		seedLot(t, env, tenantID, productID, warehouseID, "L1", 10, expiryPtr(now.AddDate(0, 0, 5)), base)
		seedLot(t, env, tenantID, productID, warehouseID, "L2", 20, expiryPtr(now.AddDate(0, 0, 10)), base.Add(time.Minute))
		seedLevel(t, env, tenantID, productID, warehouseID, 30)

		svc := NewReservationService(env.scope, env.products)
		reservation, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(15),
		})
		require.NoError(t, err)
		require.Len(t, reservation.Allocations, 2)
		assert.Equal(t, "L1", reservation.Allocations[0].LotCode)
		assert.True(t, reservation.Allocations[0].Quantity.Equal(decimal.NewFromInt(10)))
		assert.Equal(t, "L2", reservation.Allocations[1].LotCode)
		assert.True(t, reservation.Allocations[1].Quantity.Equal(decimal.NewFromInt(5)))

		// holds applied to lots and level
		l1, err := env.lotRepo.FindByCode(ctx, tenantID, productID, warehouseID, "L1")
		require.NoError(t, err)
		assert.True(t, l1.QuantityReserved.Equal(decimal.NewFromInt(10)))

		level, err := env.levelRepo.Find(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		assert.True(t, level.QuantityReserved.Equal(decimal.NewFromInt(15)))
		assert.True(t, level.QuantityOnHand.Equal(decimal.NewFromInt(30)))

		// one ledger row per lot drawn from, and holds never change on-hand
		moves, err := env.moveRepo.FindByReference(ctx, tenantID, inventory.ReferenceTypeReservation, reservation.ID)
		require.NoError(t, err)
		assert.Len(t, moves, 2)
		sum, err := env.moveRepo.SumPhysicalDeltas(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		assert.True(t, sum.IsZero())
	})

	t.Run("expired lots are skipped", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodLot)
		seedLot(t, env, tenantID, productID, warehouseID, "EXP", 50, expiryPtr(now.AddDate(0, 0, -1)), base)
		seedLot(t, env, tenantID, productID, warehouseID, "OK", 10, expiryPtr(now.AddDate(0, 0, 30)), base)
		seedLevel(t, env, tenantID, productID, warehouseID, 60)

		svc := NewReservationService(env.scope, env.products)
		reservation, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		require.Len(t, reservation.Allocations, 1)
		assert.Equal(t, "OK", reservation.Allocations[0].LotCode)
	})

	t.Run("explicitly requested lot is honored", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodLot)
		seedLot(t, env, tenantID, productID, warehouseID, "SOON", 10, expiryPtr(now.AddDate(0, 0, 5)), base)
		later := seedLot(t, env, tenantID, productID, warehouseID, "LATER", 10, expiryPtr(now.AddDate(0, 0, 30)), base.Add(time.Minute))
		seedLevel(t, env, tenantID, productID, warehouseID, 20)

		svc := NewReservationService(env.scope, env.products)
		reservation, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			LotSerialID: &later.ID,
			Quantity:    decimal.NewFromInt(4),
		})
		require.NoError(t, err)
		require.Len(t, reservation.Allocations, 1)
		assert.Equal(t, "LATER", reservation.Allocations[0].LotCode)
	})

	t.Run("explicitly requested expired lot is rejected", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodLot)
		expired := seedLot(t, env, tenantID, productID, warehouseID, "EXP", 10, expiryPtr(now.AddDate(0, 0, -1)), base)
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		svc := NewReservationService(env.scope, env.products)
		_, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			LotSerialID: &expired.ID,
			Quantity:    decimal.NewFromInt(2),
		})
		assert.ErrorIs(t, err, shared.ErrExpiredLot)

		lot, err := env.lotRepo.FindByCode(ctx, tenantID, productID, warehouseID, "EXP")
		require.NoError(t, err)
		assert.True(t, lot.QuantityReserved.IsZero())
	})

	t.Run("insufficient unexpired stock fails without side effects", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodLot)
		seedLot(t, env, tenantID, productID, warehouseID, "SMALL", 5, expiryPtr(now.AddDate(0, 0, 5)), base)
		seedLevel(t, env, tenantID, productID, warehouseID, 5)

		svc := NewReservationService(env.scope, env.products)
		_, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(8),
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		lot, err := env.lotRepo.FindByCode(ctx, tenantID, productID, warehouseID, "SMALL")
		require.NoError(t, err)
		assert.True(t, lot.QuantityReserved.IsZero())
	})

	t.Run("untracked product reserves against the level", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 20)

		svc := NewReservationService(env.scope, env.products)
		reservation, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(8),
		})
		require.NoError(t, err)
		require.Len(t, reservation.Allocations, 1)
		assert.Nil(t, reservation.Allocations[0].LotSerialID)
	})

	t.Run("no stock at all reports insufficient", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)

		svc := NewReservationService(env.scope, env.products)
		_, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("duplicate idempotency key is rejected", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 20)

		svc := NewReservationService(env.scope, env.products)
		svc.SetIdempotencyStore(newFakeIdempotencyStore())

		req := ReserveStockRequest{
			ProductID:      productID,
			WarehouseID:    warehouseID,
			Quantity:       decimal.NewFromInt(5),
			IdempotencyKey: "order-42",
		}
		_, err := svc.Reserve(ctx, tenantID, req)
		require.NoError(t, err)

		_, err = svc.Reserve(ctx, tenantID, req)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("a failed reserve does not consume the idempotency key", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 5)

		svc := NewReservationService(env.scope, env.products)
		svc.SetIdempotencyStore(newFakeIdempotencyStore())

		req := ReserveStockRequest{
			ProductID:      productID,
			WarehouseID:    warehouseID,
			Quantity:       decimal.NewFromInt(10),
			IdempotencyKey: "order-7",
		}
		_, err := svc.Reserve(ctx, tenantID, req)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		// stock arrives, so the corrected retry with the same key must succeed
		level, err := env.levelRepo.Find(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		require.NoError(t, level.Apply(decimal.NewFromInt(10)))
		require.NoError(t, env.levelRepo.Save(ctx, level))

		_, err = svc.Reserve(ctx, tenantID, req)
		require.NoError(t, err)

		_, err = svc.Reserve(ctx, tenantID, req)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("explicit lot on an untracked product is rejected", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 20)

		svc := NewReservationService(env.scope, env.products)
		lotID := uuid.New()
		_, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			LotSerialID: &lotID,
			Quantity:    decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("unknown product reports not found", func(t *testing.T) {
		env := newTestEnv()
		svc := NewReservationService(env.scope, env.products)
		_, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   uuid.New(),
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestReservationServiceOptimisticRetry(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	warehouseID := uuid.New()

	setup := func(t *testing.T, conflicts int) (*testEnv, *conflictingLevelRepo, *ReservationService, uuid.UUID) {
		t.Helper()
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		levels := &conflictingLevelRepo{fakeLevelRepo: env.levelRepo, conflicts: conflicts}
		scope := NewNoOpTransactionScope(env.lotRepo, env.moveRepo, levels, env.reservationRepo, env.stockTakeRepo, env.adjustmentRepo)
		return env, levels, NewReservationService(scope, env.products), productID
	}

	t.Run("a transient conflict is replayed against fresh state", func(t *testing.T) {
		env, levels, svc, productID := setup(t, 2)

		_, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(4),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, levels.attempts)

		level, err := env.levelRepo.Find(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		assert.True(t, level.QuantityReserved.Equal(decimal.NewFromInt(4)))
	})

	t.Run("persistent conflicts surface after the retry bound", func(t *testing.T) {
		env, levels, svc, productID := setup(t, maxOptimisticRetries)

		_, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(4),
		})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, maxOptimisticRetries, levels.attempts)

		// the hold never landed
		level, err := env.levelRepo.Find(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		assert.True(t, level.QuantityReserved.IsZero())
	})
}

func TestReservationServiceRelease(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	warehouseID := uuid.New()
	now := time.Now()
	base := now.Add(-48 * time.Hour)

	setup := func(t *testing.T) (*testEnv, *ReservationService, *inventory.Reservation, uuid.UUID) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodLot)
		seedLot(t, env, tenantID, productID, warehouseID, "L1", 10, expiryPtr(now.AddDate(0, 0, 5)), base)
		seedLot(t, env, tenantID, productID, warehouseID, "L2", 20, expiryPtr(now.AddDate(0, 0, 10)), base.Add(time.Minute))
		seedLevel(t, env, tenantID, productID, warehouseID, 30)

		svc := NewReservationService(env.scope, env.products)
		reservation, err := svc.Reserve(ctx, tenantID, ReserveStockRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(15),
		})
		require.NoError(t, err)
		return env, svc, reservation, productID
	}

	t.Run("release returns held quantities", func(t *testing.T) {
		env, svc, reservation, productID := setup(t)

		released, err := svc.Release(ctx, tenantID, reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.ReservationStatusReleased, released.Status)

		level, err := env.levelRepo.Find(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		assert.True(t, level.QuantityReserved.IsZero())
		assert.True(t, level.QuantityOnHand.Equal(decimal.NewFromInt(30)))

		l1, err := env.lotRepo.FindByCode(ctx, tenantID, productID, warehouseID, "L1")
		require.NoError(t, err)
		assert.True(t, l1.QuantityReserved.IsZero())

		moves, err := env.moveRepo.FindByReference(ctx, tenantID, inventory.ReferenceTypeRelease, reservation.ID)
		require.NoError(t, err)
		assert.Len(t, moves, 2)
	})

	t.Run("second release is a no-op", func(t *testing.T) {
		env, svc, reservation, _ := setup(t)

		_, err := svc.Release(ctx, tenantID, reservation.ID)
		require.NoError(t, err)
		_, err = svc.Release(ctx, tenantID, reservation.ID)
		require.NoError(t, err)

		moves, err := env.moveRepo.FindByReference(ctx, tenantID, inventory.ReferenceTypeRelease, reservation.ID)
		require.NoError(t, err)
		assert.Len(t, moves, 2)
	})

	t.Run("other tenants cannot see the reservation", func(t *testing.T) {
		_, svc, reservation, _ := setup(t)

		_, err := svc.Release(ctx, uuid.New(), reservation.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = svc.GetReservation(ctx, uuid.New(), reservation.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
