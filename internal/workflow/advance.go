package workflow

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrMultipleCurrent means the step ledger is corrupt: more than one
	// step of the same item is marked current.
	ErrMultipleCurrent = errors.New("workflow: more than one current step for item")
	// ErrNoOutcome means Advance was called without a decision.
	ErrNoOutcome = errors.New("workflow: advance requires a decided outcome")
)

// StepState is the slice of a step row the engine needs.
type StepState struct {
	ID        uint
	Name      string
	SortOrder int
	Status    string
	IsCurrent bool
}

// Advancement describes the writes a decision produces on the ledger.
type Advancement struct {
	// CurrentID and CurrentStatus: the decided step and its terminal status.
	CurrentID     uint
	CurrentStatus string
	// SkippedIDs get step_status='skipped', is_current=0.
	SkippedIDs []uint
	// Next becomes the current step; nil when the pipeline is finished.
	Next *StepState
	// Done mirrors Next == nil: the item flips workflow_done.
	Done bool
}

// Advance applies a decided outcome to the item's ordered step ledger.
//
// The current step takes the outcome's terminal status and loses
// is_current. Then, per the stage rules: in_stock skips every remaining
// step named like "cost"; not_needed skips everything remaining and
// finishes the item; any other outcome hands over to the next step in
// order. Returns (nil, nil) when the item has no current step.
func Advance(steps []StepState, outcome Outcome) (*Advancement, error) {
	if outcome == OutcomeNone {
		return nil, ErrNoOutcome
	}

	var current *StepState
	for i := range steps {
		if steps[i].IsCurrent {
			if current != nil {
				return nil, ErrMultipleCurrent
			}
			current = &steps[i]
		}
	}
	if current == nil {
		return nil, nil
	}

	remaining := make([]StepState, 0, len(steps))
	for _, s := range steps {
		if s.SortOrder > current.SortOrder {
			remaining = append(remaining, s)
		}
	}
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].SortOrder < remaining[j].SortOrder
	})

	adv := &Advancement{
		CurrentID:     current.ID,
		CurrentStatus: outcome.StepStatus(),
	}

	switch outcome {
	case OutcomeInStock:
		// Enough stock: the cost stage has nothing left to price.
		for i := range remaining {
			if isCostStep(remaining[i].Name) {
				if remaining[i].Status == StepPending {
					adv.SkippedIDs = append(adv.SkippedIDs, remaining[i].ID)
				}
				continue
			}
			if adv.Next == nil && remaining[i].Status == StepPending {
				next := remaining[i]
				adv.Next = &next
			}
		}
	case OutcomeNotNeeded:
		for i := range remaining {
			if remaining[i].Status == StepPending {
				adv.SkippedIDs = append(adv.SkippedIDs, remaining[i].ID)
			}
		}
	default:
		for i := range remaining {
			if remaining[i].Status == StepPending {
				next := remaining[i]
				adv.Next = &next
				break
			}
		}
	}

	adv.Done = adv.Next == nil
	return adv, nil
}

// NextAfter returns the step following next in order, skipping entries
// already marked skipped. Used to refresh the cached next_* columns.
func NextAfter(steps []StepState, next *StepState, skipped []uint) *StepState {
	if next == nil {
		return nil
	}
	skippedSet := make(map[uint]bool, len(skipped))
	for _, id := range skipped {
		skippedSet[id] = true
	}
	ordered := make([]StepState, 0, len(steps))
	for _, s := range steps {
		if s.SortOrder > next.SortOrder && !skippedSet[s.ID] && s.Status == StepPending {
			ordered = append(ordered, s)
		}
	}
	if len(ordered) == 0 {
		return nil
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})
	out := ordered[0]
	return &out
}

func isCostStep(name string) bool {
	return strings.Contains(strings.ToLower(name), StageCost)
}
