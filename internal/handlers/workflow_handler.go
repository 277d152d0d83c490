package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"okul-erp/config"
	"okul-erp/internal/workflow"
	"okul-erp/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListStageQueueHandler returns the items currently waiting on the
// caller's department, optionally narrowed by stage or period.
func ListStageQueueHandler(c *gin.Context) {
	dept, ok := currentDepartmentID(c)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Caller has no department"})
		return
	}

	query := config.DB.Model(&models.BudgetItem{}).
		Joins("JOIN budgets ON budgets.id = budget_items.budget_id").
		Where("budget_items.current_owner_department_id = ?", dept).
		Where("budget_items.workflow_done = ?", false).
		Where("budgets.budget_status = ?", workflow.BudgetInReview).
		Order("budget_items.id asc")

	if v := c.Query("stage"); v != "" {
		query = query.Where("budget_items.current_stage = ?", v)
	}
	if v := c.Query("period"); v != "" {
		query = query.Where("budgets.period = ?", v)
	}
	if v := c.Query("school"); v != "" {
		query = query.Where("budgets.school_id = ?", v)
	}

	var items []models.BudgetItem
	var totalRows int64
	query.Count(&totalRows)
	if err := query.Scopes(Paginate(c)).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch queue"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, items, totalRows))
}

// itemDecision applies one decision to the loaded item and reports the
// outcome tag the advancement rules branch on.
type itemDecision func(item *models.BudgetItem) (workflow.Outcome, error)

type logisticsDecision struct {
	ItemID      uint            `json:"itemId" binding:"required"`
	ProvidedQty decimal.Decimal `json:"providedQty"`
}

// DecideLogisticsHandler records warehouse answers for a batch of items
// owned by the caller's logistics step.
func DecideLogisticsHandler(c *gin.Context) {
	var input struct {
		Items []logisticsDecision `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	decisions := make(map[uint]itemDecision, len(input.Items))
	for _, d := range input.Items {
		d := d
		decisions[d.ItemID] = func(item *models.BudgetItem) (workflow.Outcome, error) {
			outcome := workflow.LogisticsOutcome(d.ProvidedQty, item.Quantity)
			label := workflow.StorageStatusLabel(outcome)
			item.StorageStatus = &label
			qty := d.ProvidedQty
			item.StorageProvidedQty = &qty
			return outcome, nil
		}
	}
	decideBatch(c, workflow.StageLogistics, decisions)
}

type neededDecision struct {
	ItemID       uint   `json:"itemId" binding:"required"`
	NeededStatus *int   `json:"neededStatus"`
	NeededNotes  string `json:"neededNotes"`
}

// DecideNeededHandler records need verdicts. Items with notes only are
// saved but not advanced.
func DecideNeededHandler(c *gin.Context) {
	var input struct {
		Items []neededDecision `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	decisions := make(map[uint]itemDecision, len(input.Items))
	for _, d := range input.Items {
		d := d
		decisions[d.ItemID] = func(item *models.BudgetItem) (workflow.Outcome, error) {
			if d.NeededStatus != nil && *d.NeededStatus != 0 && *d.NeededStatus != 1 {
				return workflow.OutcomeNone, fmt.Errorf("neededStatus must be 0 or 1")
			}
			if d.NeededStatus != nil {
				item.NeededStatus = d.NeededStatus
			}
			if d.NeededNotes != "" {
				item.NeededNotes = d.NeededNotes
			}
			return workflow.NeededOutcome(d.NeededStatus), nil
		}
	}
	decideBatch(c, workflow.StageNeeded, decisions)
}

type costDecision struct {
	ItemID       uint            `json:"itemId" binding:"required"`
	PurchaseCost decimal.Decimal `json:"purchaseCost" binding:"required"`
}

// DecideCostHandler records purchase cost estimates.
func DecideCostHandler(c *gin.Context) {
	var input struct {
		Items []costDecision `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	decisions := make(map[uint]itemDecision, len(input.Items))
	for _, d := range input.Items {
		d := d
		decisions[d.ItemID] = func(item *models.BudgetItem) (workflow.Outcome, error) {
			cost := d.PurchaseCost.Round(2)
			item.PurchaseCost = &cost
			return workflow.OutcomeConfirmed, nil
		}
	}
	decideBatch(c, workflow.StageCost, decisions)
}

type finalDecision struct {
	ItemID              uint             `json:"itemId" binding:"required"`
	FinalPurchaseStatus string           `json:"finalPurchaseStatus" binding:"required"`
	FinalPurchaseCost   *decimal.Decimal `json:"finalPurchaseCost"`
	FinalQuantity       *decimal.Decimal `json:"finalQuantity"`
}

// DecideFinalHandler records the coordinator verdict that closes an item.
func DecideFinalHandler(c *gin.Context) {
	var input struct {
		Items []finalDecision `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	decisions := make(map[uint]itemDecision, len(input.Items))
	for _, d := range input.Items {
		d := d
		decisions[d.ItemID] = func(item *models.BudgetItem) (workflow.Outcome, error) {
			outcome := workflow.FinalOutcome(d.FinalPurchaseStatus)
			if outcome == workflow.OutcomeNone {
				return outcome, fmt.Errorf("finalPurchaseStatus must be approved, adjusted or rejected")
			}
			status := d.FinalPurchaseStatus
			item.FinalPurchaseStatus = &status
			if d.FinalPurchaseCost != nil {
				cost := d.FinalPurchaseCost.Round(2)
				item.FinalPurchaseCost = &cost
			}
			if d.FinalQuantity != nil {
				item.FinalQuantity = d.FinalQuantity
			}
			return outcome, nil
		}
	}
	decideBatch(c, workflow.StageCoordinator, decisions)
}

// ConfirmCustomStepHandler confirms a free-form custom stage owned by
// the caller's department. Custom stages carry no data of their own.
func ConfirmCustomStepHandler(c *gin.Context) {
	var input struct {
		Items []struct {
			ItemID uint `json:"itemId" binding:"required"`
		} `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	decisions := make(map[uint]itemDecision, len(input.Items))
	for _, d := range input.Items {
		decisions[d.ItemID] = func(item *models.BudgetItem) (workflow.Outcome, error) {
			return workflow.OutcomeConfirmed, nil
		}
	}
	decideBatch(c, "", decisions)
}

// decideBatch runs a decision batch in a single transaction, all or
// nothing. Per item: ownership is checked against the current step, the
// decision is applied, the ledger advances, cached pointers refresh.
// Items whose current stage does not match the endpoint (or that already
// finished) are no-ops, which makes identical repeated batches
// idempotent. After commit the touched budgets are auto-closed and the
// mail fan-out is enqueued.
//
// stageName "" means a custom stage: any current step outside the four
// well-known names matches.
func decideBatch(c *gin.Context, stageName string, decisions map[uint]itemDecision) {
	dept, ok := currentDepartmentID(c)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Caller has no department"})
		return
	}

	tx := config.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}

	decided := 0
	skipped := 0
	budgetSet := make(map[uint]bool)
	var hints []StageHint

	for itemID, apply := range decisions {
		var item models.BudgetItem
		if err := tx.First(&item, itemID).Error; err != nil {
			tx.Rollback()
			if err == gorm.ErrRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Item %d not found", itemID)})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}

		var steps []models.Step
		if err := tx.Where("budget_item_id = ?", item.ID).Order("sort_order asc").Find(&steps).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load steps"})
			return
		}

		current := currentStepOf(steps)
		if current == nil || !stageMatches(current.StepName, stageName) {
			skipped++
			continue
		}

		if current.OwnerOfStep != dept {
			tx.Rollback()
			c.JSON(http.StatusForbidden, gin.H{
				"error": fmt.Sprintf("Item %d is owned by another department at its current step", itemID),
			})
			return
		}

		outcome, err := apply(&item)
		if err != nil {
			tx.Rollback()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if outcome == workflow.OutcomeNone {
			// Notes only: persist the item, leave the ledger alone.
			if err := tx.Save(&item).Error; err != nil {
				tx.Rollback()
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save item"})
				return
			}
			skipped++
			continue
		}

		states := stepStates(steps)
		adv, err := workflow.Advance(states, outcome)
		if err != nil {
			tx.Rollback()
			slog.Error("Step ledger invariant violation", "item_id", item.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Step ledger is inconsistent"})
			return
		}
		if adv == nil {
			skipped++
			continue
		}

		if err := applyAdvancement(tx, &item, states, adv); err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to advance item"})
			return
		}

		decided++
		budgetSet[item.BudgetID] = true
		if stageName == workflow.StageNeeded {
			hints = append(hints, StageHint{ItemID: item.ID, SourceStage: workflow.StageNeeded})
		}
	}

	budgetIDs := make([]uint, 0, len(budgetSet))
	for id := range budgetSet {
		budgetIDs = append(budgetIDs, id)
	}

	if err := closeCompletedBudgets(tx, budgetIDs); err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update budget status"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit decisions"})
		return
	}

	// Side effects strictly after commit.
	Notifier.NotifyAdvanced(budgetIDs, hints)

	c.JSON(http.StatusOK, gin.H{"ok": true, "decided": decided, "skipped": skipped})
}

// applyAdvancement writes the engine's verdict back to the ledger and
// refreshes the item's cached step pointers.
func applyAdvancement(tx *gorm.DB, item *models.BudgetItem, states []workflow.StepState, adv *workflow.Advancement) error {
	now := time.Now()

	if err := tx.Model(&models.Step{}).Where("id = ?", adv.CurrentID).Updates(map[string]interface{}{
		"step_status": adv.CurrentStatus,
		"is_current":  0,
		"updated_at":  now,
	}).Error; err != nil {
		return err
	}

	if len(adv.SkippedIDs) > 0 {
		if err := tx.Model(&models.Step{}).Where("id IN ?", adv.SkippedIDs).Updates(map[string]interface{}{
			"step_status": workflow.StepSkipped,
			"is_current":  0,
			"updated_at":  now,
		}).Error; err != nil {
			return err
		}
	}

	if adv.Next != nil {
		if err := tx.Model(&models.Step{}).Where("id = ?", adv.Next.ID).Updates(map[string]interface{}{
			"is_current": 1,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
	}

	updates := map[string]interface{}{
		"current_step_id":             nil,
		"current_stage":               nil,
		"current_step_order":          nil,
		"current_owner_department_id": nil,
		"next_step_id":                nil,
		"next_stage":                  nil,
		"next_owner_department_id":    nil,
	}
	if adv.Next == nil {
		updates["workflow_done"] = true
	} else {
		updates["current_step_id"] = adv.Next.ID
		updates["current_stage"] = adv.Next.Name
		updates["current_step_order"] = adv.Next.SortOrder
		nextOwner, err := stepOwner(tx, adv.Next.ID)
		if err != nil {
			return err
		}
		updates["current_owner_department_id"] = nextOwner
		if after := workflow.NextAfter(states, adv.Next, adv.SkippedIDs); after != nil {
			afterOwner, err := stepOwner(tx, after.ID)
			if err != nil {
				return err
			}
			updates["next_step_id"] = after.ID
			updates["next_stage"] = after.Name
			updates["next_owner_department_id"] = afterOwner
		}
	}

	// Save decision columns first, then the pointer rewrite.
	if err := tx.Save(item).Error; err != nil {
		return err
	}
	return tx.Model(item).Updates(updates).Error
}

// closeCompletedBudgets flips in_review budgets with no current steps
// left to review_been_completed, stamping closed_at once. The no-current
// check sits inside the UPDATE itself so concurrent batches cannot both
// observe a stale read.
func closeCompletedBudgets(tx *gorm.DB, budgetIDs []uint) error {
	if len(budgetIDs) == 0 {
		return nil
	}
	return tx.Exec(`
		UPDATE budgets
		SET budget_status = ?,
		    closed_at = COALESCE(closed_at, CURRENT_TIMESTAMP)
		WHERE id IN ?
		  AND budget_status = ?
		  AND NOT EXISTS (
		    SELECT 1 FROM steps
		    WHERE steps.budget_id = budgets.id AND steps.is_current = 1
		  )`,
		workflow.BudgetReviewCompleted, budgetIDs, workflow.BudgetInReview).Error
}

// ReviseBackHandler sends an item back to its author with a reason.
// Allowed only from stages flagged allow_revise in the route snapshot;
// the ledger does not advance.
func ReviseBackHandler(c *gin.Context) {
	dept, ok := currentDepartmentID(c)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Caller has no department"})
		return
	}

	var input struct {
		ItemID       uint   `json:"itemId" binding:"required"`
		ReviseReason string `json:"reviseReason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var item models.BudgetItem
	if err := config.DB.First(&item, input.ItemID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	var current models.Step
	err := config.DB.Where("budget_item_id = ? AND is_current = 1", item.ID).First(&current).Error
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Item has no current step"})
		return
	}
	if current.OwnerOfStep != dept {
		c.JSON(http.StatusForbidden, gin.H{"error": "Current step is owned by another department"})
		return
	}

	allowed := false
	for _, rs := range item.RouteSteps {
		if rs.SortOrder == current.SortOrder {
			allowed = rs.AllowRevise
			break
		}
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "This stage does not allow revise back"})
		return
	}

	now := time.Now()
	updates := map[string]interface{}{
		"revision_state": workflow.RevisionPending,
		"revise_reason":  input.ReviseReason,
		"revised_at":     now,
	}
	if err := config.DB.Model(&item).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to flag item for revision"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "revisionState": workflow.RevisionPending})
}

func currentStepOf(steps []models.Step) *models.Step {
	for i := range steps {
		if steps[i].IsCurrent == 1 {
			return &steps[i]
		}
	}
	return nil
}

func stepStates(steps []models.Step) []workflow.StepState {
	states := make([]workflow.StepState, 0, len(steps))
	for _, s := range steps {
		states = append(states, workflow.StepState{
			ID:        s.ID,
			Name:      s.StepName,
			SortOrder: s.SortOrder,
			Status:    s.StepStatus,
			IsCurrent: s.IsCurrent == 1,
		})
	}
	return states
}

// stageMatches compares the current step against the endpoint's stage.
// Empty wanted means a custom stage: anything outside the well-known set.
func stageMatches(stepName, wanted string) bool {
	name := strings.ToLower(stepName)
	if wanted == "" {
		switch name {
		case workflow.StageLogistics, workflow.StageNeeded, workflow.StageCost, workflow.StageCoordinator:
			return false
		}
		return true
	}
	return name == wanted
}

func stepOwner(tx *gorm.DB, stepID uint) (uint, error) {
	var step models.Step
	if err := tx.Select("owner_of_step").First(&step, stepID).Error; err != nil {
		return 0, err
	}
	return step.OwnerOfStep, nil
}
