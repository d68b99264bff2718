package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// StockTakeStatus represents the lifecycle of a stock take
type StockTakeStatus string

const (
	StockTakeStatusDraft      StockTakeStatus = "DRAFT"
	StockTakeStatusInProgress StockTakeStatus = "IN_PROGRESS"
	StockTakeStatusCompleted  StockTakeStatus = "COMPLETED"
	StockTakeStatusCancelled  StockTakeStatus = "CANCELLED"
)

// IsValid checks if the status is valid
func (s StockTakeStatus) IsValid() bool {
	switch s {
	case StockTakeStatusDraft, StockTakeStatusInProgress, StockTakeStatusCompleted, StockTakeStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s StockTakeStatus) String() string {
	return string(s)
}

// StockTakeLine snapshots the expected quantity of one product at the moment
// the count began and later records the counted quantity.
type StockTakeLine struct {
	shared.BaseEntity
	StockTakeID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"stock_take_id"`
	TenantID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProductID        uuid.UUID        `gorm:"type:uuid;not null" json:"product_id"`
	LotSerialID      *uuid.UUID       `gorm:"type:uuid" json:"lot_serial_id,omitempty"`
	ExpectedQuantity decimal.Decimal  `gorm:"type:decimal(20,6);not null" json:"expected_quantity"`
	ActualQuantity   *decimal.Decimal `gorm:"type:decimal(20,6)" json:"actual_quantity,omitempty"`
	CountedAt        *time.Time       `json:"counted_at,omitempty"`
	CountedBy        *uuid.UUID       `gorm:"type:uuid" json:"counted_by,omitempty"`
}

// TableName specifies the table name
func (StockTakeLine) TableName() string {
	return "stock_take_lines"
}

// IsCounted reports whether the line has a recorded count
func (l *StockTakeLine) IsCounted() bool {
	return l.ActualQuantity != nil
}

// Variance returns counted minus expected, or zero if not yet counted
func (l *StockTakeLine) Variance() decimal.Decimal {
	if l.ActualQuantity == nil {
		return decimal.Zero
	}
	return l.ActualQuantity.Sub(l.ExpectedQuantity)
}

// StockTake is a physical count of a warehouse's stock reconciled against the
// ledger. Expected quantities are frozen when counting begins; finalizing
// posts one corrective move per line with a nonzero variance.
type StockTake struct {
	shared.TenantAggregateRoot
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;index" json:"warehouse_id"`
	Status      StockTakeStatus `gorm:"type:varchar(20);not null;default:'DRAFT'" json:"status"`
	Remark      string          `gorm:"type:varchar(500)" json:"remark,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Lines       []StockTakeLine `gorm:"foreignKey:StockTakeID" json:"lines,omitempty"`
}

// TableName specifies the table name
func (StockTake) TableName() string {
	return "stock_takes"
}

// NewStockTake creates a draft stock take for a warehouse
func NewStockTake(tenantID, warehouseID uuid.UUID, remark string) *StockTake {
	return &StockTake{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		WarehouseID:         warehouseID,
		Status:              StockTakeStatusDraft,
		Remark:              remark,
	}
}

// BeginCounting freezes the expected quantities and moves the take to
// IN_PROGRESS. The snapshot is taken by the caller from the current levels.
func (st *StockTake) BeginCounting(lines []StockTakeLine) error {
	if st.Status != StockTakeStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "only draft stock takes can begin counting")
	}
	if len(lines) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "stock take has nothing to count")
	}
	st.Lines = lines
	st.Status = StockTakeStatusInProgress
	now := time.Now()
	st.StartedAt = &now
	st.IncrementVersion()
	st.AddDomainEvent(NewStockTakeStartedEvent(st))
	return nil
}

// RecordCount records the counted quantity on one line. Counts may be
// re-recorded while the take is in progress; the latest count wins.
func (st *StockTake) RecordCount(lineID uuid.UUID, actual decimal.Decimal, countedBy *uuid.UUID) error {
	if st.Status != StockTakeStatusInProgress {
		return shared.NewDomainError("INVALID_STATE", "counts can only be recorded while the stock take is in progress")
	}
	if actual.IsNegative() {
		return shared.ErrInvalidQuantity
	}
	for i := range st.Lines {
		if st.Lines[i].ID == lineID {
			now := time.Now()
			st.Lines[i].ActualQuantity = &actual
			st.Lines[i].CountedAt = &now
			st.Lines[i].CountedBy = countedBy
			st.IncrementVersion()
			return nil
		}
	}
	return shared.NewDomainError("NOT_FOUND", "stock take line not found")
}

// Finalize completes the stock take and returns the lines whose counted
// quantity differs from the expected quantity. Every line must be counted.
func (st *StockTake) Finalize() ([]StockTakeLine, error) {
	if st.Status != StockTakeStatusInProgress {
		return nil, shared.NewDomainError("INVALID_STATE", "only in-progress stock takes can be finalized")
	}
	for i := range st.Lines {
		if !st.Lines[i].IsCounted() {
			return nil, shared.NewDomainError("INCOMPLETE_COUNT", "all lines must be counted before finalizing")
		}
	}

	var variances []StockTakeLine
	for i := range st.Lines {
		if !st.Lines[i].Variance().IsZero() {
			variances = append(variances, st.Lines[i])
		}
	}

	st.Status = StockTakeStatusCompleted
	now := time.Now()
	st.CompletedAt = &now
	st.IncrementVersion()
	st.AddDomainEvent(NewStockTakeCompletedEvent(st, len(variances)))
	return variances, nil
}

// Cancel abandons the stock take. Completed takes cannot be cancelled.
func (st *StockTake) Cancel() error {
	if st.Status != StockTakeStatusDraft && st.Status != StockTakeStatusInProgress {
		return shared.NewDomainError("INVALID_STATE", "only draft or in-progress stock takes can be cancelled")
	}
	st.Status = StockTakeStatusCancelled
	st.IncrementVersion()
	return nil
}
