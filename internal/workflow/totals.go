package workflow

import "github.com/shopspring/decimal"

// Purchase request statuses.
const (
	RequestPending     = "Pending"
	RequestForwarded   = "Forwarded"
	RequestRevised     = "Revised"
	RequestRevisedByUp = "RevisedByUp"
	RequestApproved    = "Approved"
)

// Per-side aggregate statuses.
const (
	SideDecided    = "Decided"
	SideIncomplete = "Incomplete"
	SideRevised    = "Revised"
)

// Item decisions. A null decision counts as needed.
const (
	DecisionNeeded    = "needed"
	DecisionNotNeeded = "not-needed"
)

// ItemDecision is the slice of a request item the aggregator needs.
type ItemDecision struct {
	TotalPrice          decimal.Decimal
	ModDecision         *string
	CoordinatorDecision *string
}

// Counts reports whether the item participates in the request total:
// coalesce(mod,'needed') != 'not-needed' and the same on the
// coordinator side.
func (d ItemDecision) Counts() bool {
	return coalesceNeeded(d.ModDecision) != DecisionNotNeeded &&
		coalesceNeeded(d.CoordinatorDecision) != DecisionNotNeeded
}

// TotalAmount sums total_price over the counting items. Intermediate
// sums keep full precision; rounding to two digits happens here, at the
// storage boundary.
func TotalAmount(items []ItemDecision) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.Counts() {
			sum = sum.Add(it.TotalPrice)
		}
	}
	return sum.Round(2)
}

// SideStatus derives Decided/Incomplete for one reviewer side: Decided
// iff every item carries a non-empty decision.
func SideStatus(decisions []*string) string {
	for _, d := range decisions {
		if d == nil || *d == "" {
			return SideIncomplete
		}
	}
	return SideDecided
}

func coalesceNeeded(d *string) string {
	if d == nil || *d == "" {
		return DecisionNeeded
	}
	return *d
}
