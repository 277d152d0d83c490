// Package workflow holds the pure decision logic of the item review
// pipeline: outcome derivation, step advancement and skip rules, purchase
// request totals, and revision aging. Handlers load rows, call in here,
// and write the result back inside their transaction.
package workflow

import (
	"github.com/shopspring/decimal"
)

// Step statuses.
const (
	StepPending    = "pending"
	StepConfirmed  = "confirmed"
	StepNeeded     = "needed"
	StepNotNeeded  = "not_needed"
	StepInStock    = "in_stock"
	StepInPartial  = "in_partial"
	StepOutOfStock = "out_of_stock"
	StepSkipped    = "skipped"
)

// Well-known stage names. Templates may also carry free-form custom stages.
const (
	StageLogistics   = "logistics"
	StageNeeded      = "needed"
	StageCost        = "cost"
	StageCoordinator = "coordinator"
)

// Control areas resolved per (school, account).
var ControlAreas = []string{StageLogistics, StageNeeded, StageCost}

// Budget statuses.
const (
	BudgetDraft           = "draft"
	BudgetInReview        = "in_review"
	BudgetReviewCompleted = "review_been_completed"
	BudgetClosed          = "closed"
)

// Coordinator final decisions.
const (
	FinalApproved = "approved"
	FinalAdjusted = "adjusted"
	FinalRejected = "rejected"
)

// Outcome is the tag an item reports after a stage decision. The
// advancement rules branch on it; OutcomeNone means the reviewer saved
// notes without deciding and the step must not advance.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeInStock
	OutcomeInPartial
	OutcomeOutOfStock
	OutcomeNeeded
	OutcomeNotNeeded
	OutcomeConfirmed
)

// StepStatus is the terminal status the outcome writes on the current step.
func (o Outcome) StepStatus() string {
	switch o {
	case OutcomeInStock:
		return StepInStock
	case OutcomeInPartial:
		return StepInPartial
	case OutcomeOutOfStock:
		return StepOutOfStock
	case OutcomeNeeded:
		return StepNeeded
	case OutcomeNotNeeded:
		return StepNotNeeded
	case OutcomeConfirmed:
		return StepConfirmed
	}
	return StepPending
}

// LogisticsOutcome grades the warehouse answer against the requested
// quantity.
func LogisticsOutcome(provided, requested decimal.Decimal) Outcome {
	if provided.LessThanOrEqual(decimal.Zero) {
		return OutcomeOutOfStock
	}
	if provided.GreaterThanOrEqual(requested) {
		return OutcomeInStock
	}
	return OutcomeInPartial
}

// NeededOutcome maps the needed flag (0, 1 or absent) to an outcome.
// Absent means only notes were supplied: no advancement.
func NeededOutcome(status *int) Outcome {
	if status == nil {
		return OutcomeNone
	}
	if *status == 0 {
		return OutcomeNotNeeded
	}
	return OutcomeNeeded
}

// FinalOutcome maps the coordinator verdict to an outcome.
func FinalOutcome(status string) Outcome {
	switch status {
	case FinalApproved, FinalAdjusted, FinalRejected:
		return OutcomeConfirmed
	}
	return OutcomeNone
}

// StorageStatusLabel is the value cached on the item for list views.
func StorageStatusLabel(o Outcome) string {
	return o.StepStatus()
}
