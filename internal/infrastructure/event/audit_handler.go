package event

import (
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes every stock event to the structured log, giving
// operators a queryable trail alongside the ledger itself.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger}
}

// EventTypes returns the event types this handler consumes
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		inventory.EventTypeLotRegistered,
		inventory.EventTypeStockReserved,
		inventory.EventTypeReservationReleased,
		inventory.EventTypeStockTakeStarted,
		inventory.EventTypeStockTakeCompleted,
		inventory.EventTypeAdjustmentPosted,
	}
}

// Handle logs the event
func (h *AuditLogHandler) Handle(event shared.DomainEvent) error {
	h.logger.Info("stock event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}

var _ Handler = (*AuditLogHandler)(nil)
