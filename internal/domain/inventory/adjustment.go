package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// AdjustmentDocumentType distinguishes general corrections from scrap write-offs
type AdjustmentDocumentType string

const (
	DocumentTypeAdjustment AdjustmentDocumentType = "ADJUSTMENT"
	DocumentTypeScrap      AdjustmentDocumentType = "SCRAP"
)

// IsValid checks if the document type is valid
func (t AdjustmentDocumentType) IsValid() bool {
	return t == DocumentTypeAdjustment || t == DocumentTypeScrap
}

// String returns the string representation
func (t AdjustmentDocumentType) String() string {
	return string(t)
}

// AdjustmentStatus represents the lifecycle of an adjustment document
type AdjustmentStatus string

const (
	AdjustmentStatusDraft     AdjustmentStatus = "DRAFT"
	AdjustmentStatusPosted    AdjustmentStatus = "POSTED"
	AdjustmentStatusCancelled AdjustmentStatus = "CANCELLED"
)

// IsValid checks if the status is valid
func (s AdjustmentStatus) IsValid() bool {
	switch s {
	case AdjustmentStatusDraft, AdjustmentStatusPosted, AdjustmentStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s AdjustmentStatus) String() string {
	return string(s)
}

// Well-known adjustment reason codes. Tenants may also post free-form codes.
const (
	ReasonCodeDamaged    = "DAMAGED"
	ReasonCodeExpired    = "EXPIRED"
	ReasonCodeLost       = "LOST"
	ReasonCodeFound      = "FOUND"
	ReasonCodeCountError = "COUNT_ERROR"
	ReasonCodeOther      = "OTHER"
)

// AdjustmentLine is one signed quantity correction within a document
type AdjustmentLine struct {
	shared.BaseEntity
	AdjustmentID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"adjustment_id"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	LotSerialID   *uuid.UUID      `gorm:"type:uuid" json:"lot_serial_id,omitempty"`
	QuantityDelta decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity_delta"`
	ReasonCode    string          `gorm:"type:varchar(40);not null" json:"reason_code"`
	Remark        string          `gorm:"type:varchar(500)" json:"remark,omitempty"`
}

// TableName specifies the table name
func (AdjustmentLine) TableName() string {
	return "adjustment_lines"
}

// AdjustmentDocument corrects stock outside the normal receive/ship flow.
// Documents are drafted, reviewed, then posted; posting writes the ledger
// moves and updates balances atomically. A scrap document is an adjustment
// whose lines are all negative and carry a scrap reason.
type AdjustmentDocument struct {
	shared.TenantAggregateRoot
	WarehouseID  uuid.UUID              `gorm:"type:uuid;not null;index" json:"warehouse_id"`
	DocumentType AdjustmentDocumentType `gorm:"type:varchar(20);not null" json:"document_type"`
	Status       AdjustmentStatus       `gorm:"type:varchar(20);not null;default:'DRAFT'" json:"status"`
	Remark       string                 `gorm:"type:varchar(500)" json:"remark,omitempty"`
	PostedAt     *time.Time             `json:"posted_at,omitempty"`
	PostedBy     *uuid.UUID             `gorm:"type:uuid" json:"posted_by,omitempty"`
	Lines        []AdjustmentLine       `gorm:"foreignKey:AdjustmentID" json:"lines,omitempty"`
}

// TableName specifies the table name
func (AdjustmentDocument) TableName() string {
	return "adjustment_documents"
}

// NewAdjustmentDocument creates a draft adjustment or scrap document
func NewAdjustmentDocument(tenantID, warehouseID uuid.UUID, docType AdjustmentDocumentType, remark string) (*AdjustmentDocument, error) {
	if !docType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "invalid document type: "+string(docType))
	}
	return &AdjustmentDocument{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		WarehouseID:         warehouseID,
		DocumentType:        docType,
		Status:              AdjustmentStatusDraft,
		Remark:              remark,
	}, nil
}

// AddLine appends a correction to the draft document
func (d *AdjustmentDocument) AddLine(productID uuid.UUID, lotSerialID *uuid.UUID, delta decimal.Decimal, reasonCode, remark string) error {
	if d.Status != AdjustmentStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "lines can only be added to draft documents")
	}
	if delta.IsZero() {
		return shared.NewDomainError("INVALID_QUANTITY", "adjustment quantity cannot be zero")
	}
	if reasonCode == "" {
		return shared.NewDomainError("INVALID_INPUT", "reason code is required")
	}
	if d.DocumentType == DocumentTypeScrap && !delta.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "scrap lines must reduce stock")
	}

	d.Lines = append(d.Lines, AdjustmentLine{
		BaseEntity:    shared.NewBaseEntity(),
		AdjustmentID:  d.ID,
		TenantID:      d.TenantID,
		ProductID:     productID,
		LotSerialID:   lotSerialID,
		QuantityDelta: delta,
		ReasonCode:    reasonCode,
		Remark:        remark,
	})
	d.IncrementVersion()
	return nil
}

// MarkPosted transitions the document to POSTED. Posting an already posted
// document reports posted=false so the caller can skip re-applying the lines.
func (d *AdjustmentDocument) MarkPosted(postedBy *uuid.UUID) (posted bool, err error) {
	switch d.Status {
	case AdjustmentStatusPosted:
		return false, nil
	case AdjustmentStatusCancelled:
		return false, shared.NewDomainError("INVALID_STATE", "cancelled documents cannot be posted")
	}
	if len(d.Lines) == 0 {
		return false, shared.NewDomainError("INVALID_INPUT", "document has no lines to post")
	}

	d.Status = AdjustmentStatusPosted
	now := time.Now()
	d.PostedAt = &now
	d.PostedBy = postedBy
	d.IncrementVersion()
	d.AddDomainEvent(NewAdjustmentPostedEvent(d))
	return true, nil
}

// Cancel abandons a draft document. Posted documents are immutable and can
// only be undone by posting a compensating document.
func (d *AdjustmentDocument) Cancel() error {
	if d.Status != AdjustmentStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "only draft documents can be cancelled")
	}
	d.Status = AdjustmentStatusCancelled
	d.IncrementVersion()
	return nil
}

// TotalDelta sums the signed quantities across all lines
func (d *AdjustmentDocument) TotalDelta() decimal.Decimal {
	total := decimal.Zero
	for i := range d.Lines {
		total = total.Add(d.Lines[i].QuantityDelta)
	}
	return total
}

// ReferenceType maps the document type to its ledger reference type
func (d *AdjustmentDocument) ReferenceType() ReferenceType {
	if d.DocumentType == DocumentTypeScrap {
		return ReferenceTypeScrap
	}
	return ReferenceTypeAdjustment
}
