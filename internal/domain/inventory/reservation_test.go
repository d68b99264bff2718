package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stockledger/backend/internal/domain/shared"
)

func TestNewReservation(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()

	t.Run("builds allocations from plan entries", func(t *testing.T) {
		l1 := createTestLot("L1", 10, timePtr(now.AddDate(0, 0, 5)), now)
		l2 := createTestLot("L2", 10, timePtr(now.AddDate(0, 0, 10)), now)
		entries := []AllocationEntry{
			{Lot: l1, Quantity: decimal.NewFromInt(10)},
			{Lot: l2, Quantity: decimal.NewFromInt(5)},
		}

		r, err := NewReservation(tenantID, uuid.New(), uuid.New(), decimal.NewFromInt(15), entries, "order hold")
		require.NoError(t, err)
		assert.Equal(t, ReservationStatusActive, r.Status)
		require.Len(t, r.Allocations, 2)
		assert.Equal(t, "L1", r.Allocations[0].LotCode)
		assert.True(t, r.Allocations[1].Quantity.Equal(decimal.NewFromInt(5)))
	})

	t.Run("untracked product gets one lotless allocation", func(t *testing.T) {
		r, err := NewReservation(tenantID, uuid.New(), uuid.New(), decimal.NewFromInt(8), nil, "")
		require.NoError(t, err)
		require.Len(t, r.Allocations, 1)
		assert.Nil(t, r.Allocations[0].LotSerialID)
		assert.True(t, r.Allocations[0].Quantity.Equal(decimal.NewFromInt(8)))
	})

	t.Run("allocation sum must match quantity", func(t *testing.T) {
		l1 := createTestLot("L1", 10, nil, now)
		entries := []AllocationEntry{{Lot: l1, Quantity: decimal.NewFromInt(3)}}

		_, err := NewReservation(tenantID, uuid.New(), uuid.New(), decimal.NewFromInt(5), entries, "")
		assert.Error(t, err)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := NewReservation(tenantID, uuid.New(), uuid.New(), decimal.Zero, nil, "")
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})
}

func TestReservationRelease(t *testing.T) {
	t.Run("release is idempotent", func(t *testing.T) {
		r, err := NewReservation(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(5), nil, "")
		require.NoError(t, err)

		assert.True(t, r.Release())
		assert.Equal(t, ReservationStatusReleased, r.Status)
		assert.False(t, r.IsActive())

		// second release must not report released again
		assert.False(t, r.Release())
	})
}
