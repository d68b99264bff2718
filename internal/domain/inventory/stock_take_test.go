package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stockledger/backend/internal/domain/shared"
)

func createTestTakeLine(tenantID, takeID uuid.UUID, expected float64) StockTakeLine {
	return StockTakeLine{
		BaseEntity:       shared.NewBaseEntity(),
		StockTakeID:      takeID,
		TenantID:         tenantID,
		ProductID:        uuid.New(),
		ExpectedQuantity: decimal.NewFromFloat(expected),
	}
}

func TestStockTakeLifecycle(t *testing.T) {
	tenantID := uuid.New()
	warehouseID := uuid.New()

	t.Run("full count with variance", func(t *testing.T) {
		st := NewStockTake(tenantID, warehouseID, "cycle count")
		assert.Equal(t, StockTakeStatusDraft, st.Status)

		lines := []StockTakeLine{
			createTestTakeLine(tenantID, st.ID, 10),
			createTestTakeLine(tenantID, st.ID, 7),
		}
		require.NoError(t, st.BeginCounting(lines))
		assert.Equal(t, StockTakeStatusInProgress, st.Status)
		require.NotNil(t, st.StartedAt)

		// first line counted short by 3, second line matches
		require.NoError(t, st.RecordCount(st.Lines[0].ID, decimal.NewFromInt(7), nil))
		require.NoError(t, st.RecordCount(st.Lines[1].ID, decimal.NewFromInt(7), nil))

		variances, err := st.Finalize()
		require.NoError(t, err)
		assert.Equal(t, StockTakeStatusCompleted, st.Status)
		require.Len(t, variances, 1)
		assert.True(t, variances[0].Variance().Equal(decimal.NewFromInt(-3)))
	})

	t.Run("finalize with uncounted lines fails", func(t *testing.T) {
		st := NewStockTake(tenantID, warehouseID, "")
		require.NoError(t, st.BeginCounting([]StockTakeLine{
			createTestTakeLine(tenantID, st.ID, 5),
			createTestTakeLine(tenantID, st.ID, 5),
		}))
		require.NoError(t, st.RecordCount(st.Lines[0].ID, decimal.NewFromInt(5), nil))

		_, err := st.Finalize()
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INCOMPLETE_COUNT", domainErr.Code)
		assert.Equal(t, StockTakeStatusInProgress, st.Status)
	})

	t.Run("recount overwrites previous count", func(t *testing.T) {
		st := NewStockTake(tenantID, warehouseID, "")
		require.NoError(t, st.BeginCounting([]StockTakeLine{createTestTakeLine(tenantID, st.ID, 10)}))

		require.NoError(t, st.RecordCount(st.Lines[0].ID, decimal.NewFromInt(8), nil))
		require.NoError(t, st.RecordCount(st.Lines[0].ID, decimal.NewFromInt(10), nil))

		variances, err := st.Finalize()
		require.NoError(t, err)
		assert.Empty(t, variances)
	})

	t.Run("begin counting requires draft", func(t *testing.T) {
		st := NewStockTake(tenantID, warehouseID, "")
		require.NoError(t, st.BeginCounting([]StockTakeLine{createTestTakeLine(tenantID, st.ID, 1)}))

		err := st.BeginCounting([]StockTakeLine{createTestTakeLine(tenantID, st.ID, 1)})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
	})

	t.Run("begin counting with no lines fails", func(t *testing.T) {
		st := NewStockTake(tenantID, warehouseID, "")
		assert.Error(t, st.BeginCounting(nil))
	})

	t.Run("counts cannot be recorded on a draft", func(t *testing.T) {
		st := NewStockTake(tenantID, warehouseID, "")
		err := st.RecordCount(uuid.New(), decimal.NewFromInt(1), nil)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
	})

	t.Run("negative count is rejected", func(t *testing.T) {
		st := NewStockTake(tenantID, warehouseID, "")
		require.NoError(t, st.BeginCounting([]StockTakeLine{createTestTakeLine(tenantID, st.ID, 1)}))
		assert.ErrorIs(t, st.RecordCount(st.Lines[0].ID, decimal.NewFromInt(-1), nil), shared.ErrInvalidQuantity)
	})

	t.Run("cancel from draft and in progress", func(t *testing.T) {
		draft := NewStockTake(tenantID, warehouseID, "")
		require.NoError(t, draft.Cancel())
		assert.Equal(t, StockTakeStatusCancelled, draft.Status)

		inProgress := NewStockTake(tenantID, warehouseID, "")
		require.NoError(t, inProgress.BeginCounting([]StockTakeLine{createTestTakeLine(tenantID, inProgress.ID, 1)}))
		require.NoError(t, inProgress.Cancel())
	})

	t.Run("completed take cannot be cancelled", func(t *testing.T) {
		st := NewStockTake(tenantID, warehouseID, "")
		require.NoError(t, st.BeginCounting([]StockTakeLine{createTestTakeLine(tenantID, st.ID, 2)}))
		require.NoError(t, st.RecordCount(st.Lines[0].ID, decimal.NewFromInt(2), nil))
		_, err := st.Finalize()
		require.NoError(t, err)

		assert.Error(t, st.Cancel())
	})
}
