package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StageHint narrows mail recipients to the accounts a needed-stage
// decision touched.
type StageHint struct {
	ItemID      uint   `json:"item_id"`
	SourceStage string `json:"source_stage"`
}

// Mailer is the seam to the email service. The production implementation
// posts to the mail collaborator; LogMailer ships for development.
type Mailer interface {
	EnqueueStageWaiting(budgetIDs []uint, hints []StageHint)
}

// LogMailer logs instead of sending.
type LogMailer struct{}

func (LogMailer) EnqueueStageWaiting(budgetIDs []uint, hints []StageHint) {
	slog.Info("Stage-waiting mail enqueued", "budget_ids", budgetIDs, "hints", len(hints))
}

// StageNotifier coalesces post-commit notifications. Rapid successive
// decision batches on the same budgets produce a single enqueue call
// after the debounce delay.
type StageNotifier struct {
	mu      sync.Mutex
	mailer  Mailer
	delay   time.Duration
	budgets map[uint]bool
	hints   []StageHint
	timer   *time.Timer
}

func NewStageNotifier(mailer Mailer, delay time.Duration) *StageNotifier {
	return &StageNotifier{
		mailer:  mailer,
		delay:   delay,
		budgets: make(map[uint]bool),
	}
}

// Notifier is the process-wide fan-out dispatcher. main replaces the
// mailer with the real collaborator client.
var Notifier = NewStageNotifier(LogMailer{}, time.Second)

// SetMailer swaps the mail backend. Call before serving traffic.
func (n *StageNotifier) SetMailer(m Mailer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mailer = m
}

// NotifyAdvanced records budgets whose items advanced. Must be called
// only after the decision transaction committed.
func (n *StageNotifier) NotifyAdvanced(budgetIDs []uint, hints []StageHint) {
	if len(budgetIDs) == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range budgetIDs {
		n.budgets[id] = true
	}
	n.hints = append(n.hints, hints...)
	if n.timer == nil {
		n.timer = time.AfterFunc(n.delay, n.flush)
	}
}

func (n *StageNotifier) flush() {
	n.mu.Lock()
	ids := make([]uint, 0, len(n.budgets))
	for id := range n.budgets {
		ids = append(ids, id)
	}
	hints := n.hints
	mailer := n.mailer
	n.budgets = make(map[uint]bool)
	n.hints = nil
	n.timer = nil
	n.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	batchID := uuid.NewString()
	slog.Info("Flushing stage notifications", "batch_id", batchID, "budgets", len(ids))
	mailer.EnqueueStageWaiting(ids, hints)
}
