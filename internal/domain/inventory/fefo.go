package inventory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// AllocationEntry is one lot's share of a planned allocation
type AllocationEntry struct {
	Lot      *LotOrSerial
	Quantity decimal.Decimal
}

// PlanFEFOAllocation walks the candidate lots first-expired-first-out and
// plans how a requested quantity is drawn from them. Expired and consumed
// lots are skipped; lots without an expiry date sort after all dated lots.
// Ties on expiry date break on creation time, oldest first.
//
// The function is pure: it does not mutate the lots. Callers apply the plan
// by reserving each entry's quantity on its lot.
func PlanFEFOAllocation(lots []*LotOrSerial, requested decimal.Decimal, asOf time.Time) ([]AllocationEntry, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidQuantity
	}

	candidates := make([]*LotOrSerial, 0, len(lots))
	for _, lot := range lots {
		if lot.IsConsumed() || lot.IsExpired(asOf) {
			continue
		}
		if lot.Reservable().LessThanOrEqual(decimal.Zero) {
			continue
		}
		candidates = append(candidates, lot)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
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

	remaining := requested
	entries := make([]AllocationEntry, 0, len(candidates))
	for _, lot := range candidates {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := decimal.Min(remaining, lot.Reservable())
		entries = append(entries, AllocationEntry{Lot: lot, Quantity: take})
		remaining = remaining.Sub(take)
	}

	if remaining.GreaterThan(decimal.Zero) {
		return nil, shared.NewDomainError("INSUFFICIENT_STOCK", "not enough unexpired stock to satisfy the requested quantity")
	}
	return entries, nil
}
