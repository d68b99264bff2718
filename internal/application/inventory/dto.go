package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/inventory"
)

// RegisterLotRequest registers a new lot or serial number for a tracked product
type RegisterLotRequest struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Code        string
	ExpiryDate  *time.Time
}

// ReceiveStockRequest records inbound stock against a receipt document
type ReceiveStockRequest struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	LotSerialID *uuid.UUID
	Quantity    decimal.Decimal
	ReceiptID   uuid.UUID
	Remark      string
}

// ReserveStockRequest places a hold on stock for a downstream document
type ReserveStockRequest struct {
	ProductID      uuid.UUID
	WarehouseID    uuid.UUID
	LotSerialID    *uuid.UUID
	Quantity       decimal.Decimal
	IdempotencyKey string
	Remark         string
}

// CountInput is one counted line in a batch count submission
type CountInput struct {
	LineID         uuid.UUID
	ActualQuantity decimal.Decimal
}

// AdjustmentLineInput is one correction line on a draft document
type AdjustmentLineInput struct {
	ProductID   uuid.UUID
	LotSerialID *uuid.UUID
	Delta       decimal.Decimal
	ReasonCode  string
	Remark      string
}

// CreateAdjustmentRequest drafts an adjustment or scrap document
type CreateAdjustmentRequest struct {
	WarehouseID  uuid.UUID
	DocumentType inventory.AdjustmentDocumentType
	Remark       string
	Lines        []AdjustmentLineInput
}

// PostAdjustmentRequest posts a draft document to the ledger
type PostAdjustmentRequest struct {
	DocumentID     uuid.UUID
	PostedBy       *uuid.UUID
	IdempotencyKey string
}

// AdjustmentSummary aggregates a document's posted quantities by reason code
type AdjustmentSummary struct {
	DocumentID    uuid.UUID                  `json:"document_id"`
	DocumentType  string                     `json:"document_type"`
	Status        string                     `json:"status"`
	LineCount     int                        `json:"line_count"`
	TotalIncrease decimal.Decimal            `json:"total_increase"`
	TotalDecrease decimal.Decimal            `json:"total_decrease"`
	ByReason      map[string]decimal.Decimal `json:"by_reason"`
}

// LedgerAuditReport compares the materialized balance against the ledger sum
type LedgerAuditReport struct {
	ProductID   uuid.UUID       `json:"product_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	LedgerSum   decimal.Decimal `json:"ledger_sum"`
	LevelOnHand decimal.Decimal `json:"level_on_hand"`
	Consistent  bool            `json:"consistent"`
}
