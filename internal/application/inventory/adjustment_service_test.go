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

func TestAdjustmentServicePost(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	warehouseID := uuid.New()

	t.Run("posting writes ledger moves and updates balances", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		svc := NewAdjustmentService(env.scope, env.products)
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines: []AdjustmentLineInput{
				{ProductID: productID, Delta: decimal.NewFromInt(5), ReasonCode: inventory.ReasonCodeFound},
				{ProductID: productID, Delta: decimal.NewFromInt(-2), ReasonCode: inventory.ReasonCodeDamaged},
			},
		})
		require.NoError(t, err)

		posted, err := svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID})
		require.NoError(t, err)
		assert.Equal(t, inventory.AdjustmentStatusPosted, posted.Status)

		level, err := env.levelRepo.Find(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		assert.True(t, level.QuantityOnHand.Equal(decimal.NewFromInt(13)))

		moves, err := env.moveRepo.FindByReference(ctx, tenantID, inventory.ReferenceTypeAdjustment, doc.ID)
		require.NoError(t, err)
		assert.Len(t, moves, 2)
	})

	t.Run("posting twice applies the lines once", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		svc := NewAdjustmentService(env.scope, env.products)
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, Delta: decimal.NewFromInt(3), ReasonCode: inventory.ReasonCodeFound}},
		})
		require.NoError(t, err)

		_, err = svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID})
		require.NoError(t, err)
		_, err = svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID})
		require.NoError(t, err)

		level, err := env.levelRepo.Find(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		assert.True(t, level.QuantityOnHand.Equal(decimal.NewFromInt(13)))

		moves, err := env.moveRepo.FindByReference(ctx, tenantID, inventory.ReferenceTypeAdjustment, doc.ID)
		require.NoError(t, err)
		assert.Len(t, moves, 1)
	})

	t.Run("underflow aborts the post and leaves the document draft", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 4)

		svc := NewAdjustmentService(env.scope, env.products)
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, Delta: decimal.NewFromInt(-6), ReasonCode: inventory.ReasonCodeLost}},
		})
		require.NoError(t, err)

		_, err = svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID})
		assert.ErrorIs(t, err, shared.ErrWouldUnderflow)

		stored, err := svc.Get(ctx, tenantID, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.AdjustmentStatusDraft, stored.Status)
	})

	t.Run("scrap posts under the scrap reference type", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodLot)
		now := time.Now()
		lot := seedLot(t, env, tenantID, productID, warehouseID, "SCRAP-ME", 10, expiryPtr(now.AddDate(0, 0, -2)), now.Add(-time.Hour))
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		svc := NewAdjustmentService(env.scope, env.products)
		lotID := lot.ID
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeScrap,
			Lines:        []AdjustmentLineInput{{ProductID: productID, LotSerialID: &lotID, Delta: decimal.NewFromInt(-10), ReasonCode: inventory.ReasonCodeExpired}},
		})
		require.NoError(t, err)

		_, err = svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID})
		require.NoError(t, err)

		moves, err := env.moveRepo.FindByReference(ctx, tenantID, inventory.ReferenceTypeScrap, doc.ID)
		require.NoError(t, err)
		require.Len(t, moves, 1)
		assert.True(t, moves[0].QuantityDelta.Equal(decimal.NewFromInt(-10)))

		scrapped, err := env.lotRepo.FindByID(ctx, tenantID, lotID)
		require.NoError(t, err)
		assert.True(t, scrapped.IsConsumed())
	})

	t.Run("duplicate idempotency key is rejected", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		svc := NewAdjustmentService(env.scope, env.products)
		svc.SetIdempotencyStore(newFakeIdempotencyStore())
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, Delta: decimal.NewFromInt(1), ReasonCode: inventory.ReasonCodeOther}},
		})
		require.NoError(t, err)

		_, err = svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID, IdempotencyKey: "post-1"})
		require.NoError(t, err)
		_, err = svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID, IdempotencyKey: "post-1"})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("a failed post does not consume the idempotency key", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 4)

		svc := NewAdjustmentService(env.scope, env.products)
		svc.SetIdempotencyStore(newFakeIdempotencyStore())
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, Delta: decimal.NewFromInt(-6), ReasonCode: inventory.ReasonCodeLost}},
		})
		require.NoError(t, err)

		req := PostAdjustmentRequest{DocumentID: doc.ID, IdempotencyKey: "post-2"}
		_, err = svc.Post(ctx, tenantID, req)
		assert.ErrorIs(t, err, shared.ErrWouldUnderflow)

		// stock arrives, so the corrected retry with the same key must succeed
		level, err := env.levelRepo.Find(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		require.NoError(t, level.Apply(decimal.NewFromInt(6)))
		require.NoError(t, env.levelRepo.Save(ctx, level))

		_, err = svc.Post(ctx, tenantID, req)
		require.NoError(t, err)

		_, err = svc.Post(ctx, tenantID, req)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("cross-tenant access reports not found", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		svc := NewAdjustmentService(env.scope, env.products)
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, Delta: decimal.NewFromInt(1), ReasonCode: inventory.ReasonCodeOther}},
		})
		require.NoError(t, err)

		_, err = svc.Post(ctx, uuid.New(), PostAdjustmentRequest{DocumentID: doc.ID})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestAdjustmentServiceDraftValidation(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	warehouseID := uuid.New()

	t.Run("lot tracked product requires a lot reference", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodLot)

		svc := NewAdjustmentService(env.scope, env.products)
		_, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, Delta: decimal.NewFromInt(1), ReasonCode: inventory.ReasonCodeOther}},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("untracked product must not reference a lot", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		lotID := uuid.New()

		svc := NewAdjustmentService(env.scope, env.products)
		_, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, LotSerialID: &lotID, Delta: decimal.NewFromInt(1), ReasonCode: inventory.ReasonCodeOther}},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("lines can be appended while draft", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		svc := NewAdjustmentService(env.scope, env.products)
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, Delta: decimal.NewFromInt(1), ReasonCode: inventory.ReasonCodeOther}},
		})
		require.NoError(t, err)

		updated, err := svc.AddLines(ctx, tenantID, doc.ID, []AdjustmentLineInput{
			{ProductID: productID, Delta: decimal.NewFromInt(-2), ReasonCode: inventory.ReasonCodeDamaged},
		})
		require.NoError(t, err)
		require.Len(t, updated.Lines, 2)

		posted, err := svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID})
		require.NoError(t, err)
		assert.Len(t, posted.Lines, 2)

		level, err := env.levelRepo.Find(ctx, tenantID, productID, warehouseID)
		require.NoError(t, err)
		assert.True(t, level.QuantityOnHand.Equal(decimal.NewFromInt(9)))
	})

	t.Run("lines cannot be appended after posting", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		svc := NewAdjustmentService(env.scope, env.products)
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, Delta: decimal.NewFromInt(1), ReasonCode: inventory.ReasonCodeOther}},
		})
		require.NoError(t, err)
		_, err = svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID})
		require.NoError(t, err)

		_, err = svc.AddLines(ctx, tenantID, doc.ID, []AdjustmentLineInput{
			{ProductID: productID, Delta: decimal.NewFromInt(1), ReasonCode: inventory.ReasonCodeOther},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("cancel only works on drafts", func(t *testing.T) {
		env := newTestEnv()
		productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
		seedLevel(t, env, tenantID, productID, warehouseID, 10)

		svc := NewAdjustmentService(env.scope, env.products)
		doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
			WarehouseID:  warehouseID,
			DocumentType: inventory.DocumentTypeAdjustment,
			Lines:        []AdjustmentLineInput{{ProductID: productID, Delta: decimal.NewFromInt(1), ReasonCode: inventory.ReasonCodeOther}},
		})
		require.NoError(t, err)

		_, err = svc.Post(ctx, tenantID, PostAdjustmentRequest{DocumentID: doc.ID})
		require.NoError(t, err)

		_, err = svc.Cancel(ctx, tenantID, doc.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestAdjustmentServiceSummarize(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	warehouseID := uuid.New()

	env := newTestEnv()
	productID := seedProduct(env, tenantID, inventory.TrackingMethodNone)
	seedLevel(t, env, tenantID, productID, warehouseID, 20)

	svc := NewAdjustmentService(env.scope, env.products)
	doc, err := svc.CreateDraft(ctx, tenantID, CreateAdjustmentRequest{
		WarehouseID:  warehouseID,
		DocumentType: inventory.DocumentTypeAdjustment,
		Lines: []AdjustmentLineInput{
			{ProductID: productID, Delta: decimal.NewFromInt(5), ReasonCode: inventory.ReasonCodeFound},
			{ProductID: productID, Delta: decimal.NewFromInt(-3), ReasonCode: inventory.ReasonCodeDamaged},
			{ProductID: productID, Delta: decimal.NewFromInt(-1), ReasonCode: inventory.ReasonCodeDamaged},
		},
	})
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx, tenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.LineCount)
	assert.True(t, summary.TotalIncrease.Equal(decimal.NewFromInt(5)))
	assert.True(t, summary.TotalDecrease.Equal(decimal.NewFromInt(4)))
	assert.True(t, summary.ByReason[inventory.ReasonCodeDamaged].Equal(decimal.NewFromInt(-4)))
	assert.True(t, summary.ByReason[inventory.ReasonCodeFound].Equal(decimal.NewFromInt(5)))
}
