package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourStageLedger() []StepState {
	return []StepState{
		{ID: 1, Name: StageLogistics, SortOrder: 1, Status: StepPending, IsCurrent: true},
		{ID: 2, Name: StageNeeded, SortOrder: 2, Status: StepPending},
		{ID: 3, Name: StageCost, SortOrder: 3, Status: StepPending},
		{ID: 4, Name: StageCoordinator, SortOrder: 4, Status: StepPending},
	}
}

func TestLogisticsOutcome(t *testing.T) {
	dec := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	assert.Equal(t, OutcomeInStock, LogisticsOutcome(dec("10"), dec("10")))
	assert.Equal(t, OutcomeInStock, LogisticsOutcome(dec("12"), dec("10")))
	assert.Equal(t, OutcomeInPartial, LogisticsOutcome(dec("4"), dec("10")))
	assert.Equal(t, OutcomeOutOfStock, LogisticsOutcome(dec("0"), dec("5")))
	assert.Equal(t, OutcomeOutOfStock, LogisticsOutcome(dec("-1"), dec("5")))
}

func TestNeededOutcome(t *testing.T) {
	zero, one := 0, 1
	assert.Equal(t, OutcomeNone, NeededOutcome(nil))
	assert.Equal(t, OutcomeNotNeeded, NeededOutcome(&zero))
	assert.Equal(t, OutcomeNeeded, NeededOutcome(&one))
}

func TestFinalOutcome(t *testing.T) {
	assert.Equal(t, OutcomeConfirmed, FinalOutcome(FinalApproved))
	assert.Equal(t, OutcomeConfirmed, FinalOutcome(FinalAdjusted))
	assert.Equal(t, OutcomeConfirmed, FinalOutcome(FinalRejected))
	assert.Equal(t, OutcomeNone, FinalOutcome(""))
	assert.Equal(t, OutcomeNone, FinalOutcome("maybe"))
}

// Full stock skips the cost step and hands over to the coordinator.
func TestAdvanceFullStockSkipsCost(t *testing.T) {
	adv, err := Advance(fourStageLedger(), OutcomeInStock)
	require.NoError(t, err)
	require.NotNil(t, adv)

	assert.Equal(t, uint(1), adv.CurrentID)
	assert.Equal(t, StepInStock, adv.CurrentStatus)
	assert.Equal(t, []uint{3}, adv.SkippedIDs)
	require.NotNil(t, adv.Next)
	assert.Equal(t, StageNeeded, adv.Next.Name)
	assert.False(t, adv.Done)
}

// Not-needed skips everything remaining and finishes the item.
func TestAdvanceNotNeededFinishes(t *testing.T) {
	steps := fourStageLedger()
	steps[0].Status = StepOutOfStock
	steps[0].IsCurrent = false
	steps[1].IsCurrent = true

	adv, err := Advance(steps, OutcomeNotNeeded)
	require.NoError(t, err)
	require.NotNil(t, adv)

	assert.Equal(t, uint(2), adv.CurrentID)
	assert.Equal(t, StepNotNeeded, adv.CurrentStatus)
	assert.ElementsMatch(t, []uint{3, 4}, adv.SkippedIDs)
	assert.Nil(t, adv.Next)
	assert.True(t, adv.Done)
}

// Partial stock walks the pipeline step by step: needed, then cost, then
// coordinator.
func TestAdvancePartialStockWalksInOrder(t *testing.T) {
	steps := fourStageLedger()

	adv, err := Advance(steps, OutcomeInPartial)
	require.NoError(t, err)
	assert.Equal(t, StepInPartial, adv.CurrentStatus)
	assert.Empty(t, adv.SkippedIDs)
	require.NotNil(t, adv.Next)
	assert.Equal(t, StageNeeded, adv.Next.Name)

	steps[0].Status = StepInPartial
	steps[0].IsCurrent = false
	steps[1].IsCurrent = true
	adv, err = Advance(steps, OutcomeNeeded)
	require.NoError(t, err)
	require.NotNil(t, adv.Next)
	assert.Equal(t, StageCost, adv.Next.Name)

	steps[1].Status = StepNeeded
	steps[1].IsCurrent = false
	steps[2].IsCurrent = true
	adv, err = Advance(steps, OutcomeConfirmed)
	require.NoError(t, err)
	require.NotNil(t, adv.Next)
	assert.Equal(t, StageCoordinator, adv.Next.Name)
	assert.False(t, adv.Done)
}

// The last confirmed step finishes the pipeline.
func TestAdvanceLastStepFinishes(t *testing.T) {
	steps := fourStageLedger()
	steps[0].Status = StepInPartial
	steps[0].IsCurrent = false
	steps[1].Status = StepNeeded
	steps[2].Status = StepConfirmed
	steps[3].IsCurrent = true

	adv, err := Advance(steps, OutcomeConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StepConfirmed, adv.CurrentStatus)
	assert.Nil(t, adv.Next)
	assert.True(t, adv.Done)
}

// Full stock with nothing but cost steps after logistics ends the item.
func TestAdvanceFullStockOnlyCostRemaining(t *testing.T) {
	steps := []StepState{
		{ID: 1, Name: StageLogistics, SortOrder: 1, Status: StepPending, IsCurrent: true},
		{ID: 2, Name: StageCost, SortOrder: 2, Status: StepPending},
		{ID: 3, Name: "extra cost check", SortOrder: 3, Status: StepPending},
	}

	adv, err := Advance(steps, OutcomeInStock)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{2, 3}, adv.SkippedIDs)
	assert.Nil(t, adv.Next)
	assert.True(t, adv.Done)
}

// Cost-step matching is case-insensitive and substring-based.
func TestAdvanceCostMatchIsCaseInsensitive(t *testing.T) {
	steps := []StepState{
		{ID: 1, Name: StageLogistics, SortOrder: 1, Status: StepPending, IsCurrent: true},
		{ID: 2, Name: "Cost", SortOrder: 2, Status: StepPending},
		{ID: 3, Name: StageCoordinator, SortOrder: 3, Status: StepPending},
	}

	adv, err := Advance(steps, OutcomeInStock)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, adv.SkippedIDs)
	require.NotNil(t, adv.Next)
	assert.Equal(t, StageCoordinator, adv.Next.Name)
}

// A step already skipped by an earlier decision never becomes current.
func TestAdvanceHopsOverSkippedSteps(t *testing.T) {
	steps := fourStageLedger()
	steps[0].Status = StepInStock
	steps[0].IsCurrent = false
	steps[1].IsCurrent = true
	steps[2].Status = StepSkipped

	adv, err := Advance(steps, OutcomeNeeded)
	require.NoError(t, err)
	assert.Empty(t, adv.SkippedIDs)
	require.NotNil(t, adv.Next)
	assert.Equal(t, StageCoordinator, adv.Next.Name)
}

// An item with no current step yields no advancement: a repeated decision
// batch is a no-op.
func TestAdvanceNoCurrentStepIsNoop(t *testing.T) {
	steps := fourStageLedger()
	for i := range steps {
		steps[i].IsCurrent = false
	}

	adv, err := Advance(steps, OutcomeInStock)
	require.NoError(t, err)
	assert.Nil(t, adv)
}

func TestAdvanceRejectsUndecidedOutcome(t *testing.T) {
	_, err := Advance(fourStageLedger(), OutcomeNone)
	assert.ErrorIs(t, err, ErrNoOutcome)
}

func TestAdvanceDetectsCorruptLedger(t *testing.T) {
	steps := fourStageLedger()
	steps[1].IsCurrent = true

	_, err := Advance(steps, OutcomeInStock)
	assert.ErrorIs(t, err, ErrMultipleCurrent)
}

func TestNextAfter(t *testing.T) {
	steps := fourStageLedger()

	next := &steps[1] // needed
	after := NextAfter(steps, next, []uint{3})
	require.NotNil(t, after)
	assert.Equal(t, StageCoordinator, after.Name)

	after = NextAfter(steps, &steps[3], nil)
	assert.Nil(t, after)

	assert.Nil(t, NextAfter(steps, nil, nil))
}
