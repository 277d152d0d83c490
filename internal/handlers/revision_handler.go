package handlers

import (
	"net/http"
	"time"

	"okul-erp/config"
	"okul-erp/internal/workflow"
	"okul-erp/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// revisionRow is one open revision as the ledger lists it.
type revisionRow struct {
	BudgetID      uint       `json:"budgetId"`
	ItemID        uint       `json:"itemId"`
	ItemName      string     `json:"itemName"`
	AccountID     uint       `json:"accountId"`
	Period        string     `json:"period"`
	SchoolID      uint       `json:"schoolId"`
	AuthorID      uint       `json:"authorId"`
	RevisionState string     `json:"revisionState"`
	ReviseReason  string     `json:"reviseReason"`
	RevisedAt     *time.Time `json:"revisedAt"`
	LatestAnswer  *string    `json:"latestAnswer"`
	AnsweredAt    *time.Time `json:"answeredAt"`
	AgingDays     int        `json:"agingDays"`
}

// openRevisionsQuery selects items with an unresolved revision and no
// final verdict yet, joined with their budget header.
func openRevisionsQuery(c *gin.Context) *gorm.DB {
	query := config.DB.Model(&models.BudgetItem{}).
		Select(`budget_items.id AS item_id, budget_items.item_name, budget_items.account_id,
			budget_items.revision_state, budget_items.revise_reason, budget_items.revised_at,
			budgets.id AS budget_id, budgets.period, budgets.school_id, budgets.user_id AS author_id`).
		Joins("JOIN budgets ON budgets.id = budget_items.budget_id").
		Where("budget_items.revision_state IN ?", []string{workflow.RevisionPending, workflow.RevisionAnswered}).
		Where("budget_items.final_purchase_status IS NULL")

	if v := c.Query("period"); v != "" {
		query = query.Where("budgets.period = ?", v)
	}
	if v := c.Query("school"); v != "" {
		query = query.Where("budgets.school_id = ?", v)
	}
	if v := c.Query("account"); v != "" {
		query = query.Where("budget_items.account_id = ?", v)
	}
	if v := c.Query("state"); v != "" {
		query = query.Where("budget_items.revision_state = ?", v)
	}
	// Moderators see only their assigned authors' budgets.
	if c.Query("assigned") == "true" {
		query = query.Joins("JOIN users ON users.id = budgets.user_id").
			Where("users.budget_mod = ?", currentUserID(c))
	}
	return query
}

// loadRevisionRows runs the ledger query and attaches the latest answer
// and aging to each row.
func loadRevisionRows(query *gorm.DB) ([]revisionRow, error) {
	type rawRow struct {
		ItemID        uint
		ItemName      string
		AccountID     uint
		RevisionState string
		ReviseReason  string
		RevisedAt     *time.Time
		BudgetID      uint
		Period        string
		SchoolID      uint
		AuthorID      uint
	}
	var raw []rawRow
	if err := query.Order("budget_items.revised_at asc").Scan(&raw).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	rows := make([]revisionRow, 0, len(raw))
	for _, r := range raw {
		row := revisionRow{
			BudgetID:      r.BudgetID,
			ItemID:        r.ItemID,
			ItemName:      r.ItemName,
			AccountID:     r.AccountID,
			Period:        r.Period,
			SchoolID:      r.SchoolID,
			AuthorID:      r.AuthorID,
			RevisionState: r.RevisionState,
			ReviseReason:  r.ReviseReason,
			RevisedAt:     r.RevisedAt,
		}

		var answer models.RevisionAnswer
		err := config.DB.Where("budget_id = ? AND item_id = ?", r.BudgetID, r.ItemID).
			Order("created_at desc").First(&answer).Error
		if err == nil {
			text := answer.AnswerText
			at := answer.CreatedAt
			row.LatestAnswer = &text
			row.AnsweredAt = &at
		} else if err != gorm.ErrRecordNotFound {
			return nil, err
		}

		row.AgingDays = workflow.AgingDays(now, row.RevisedAt, row.AnsweredAt)
		rows = append(rows, row)
	}
	return rows, nil
}

// ListRevisionsHandler returns the open revision ledger with aging.
func ListRevisionsHandler(c *gin.Context) {
	rows, err := loadRevisionRows(openRevisionsQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch revisions"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// RevisionSummaryHandler buckets open revisions by age.
func RevisionSummaryHandler(c *gin.Context) {
	rows, err := loadRevisionRows(openRevisionsQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch revisions"})
		return
	}

	buckets := map[string]int{"0-1": 0, "2-3": 0, "4-7": 0, ">7": 0}
	for _, row := range rows {
		buckets[workflow.AgingBucket(row.AgingDays)]++
	}
	c.JSON(http.StatusOK, gin.H{"total": len(rows), "buckets": buckets})
}

// AnswerRevisionHandler posts the author's reply to a revision request
// and pushes it to the item's chat thread.
func AnswerRevisionHandler(c *gin.Context) {
	var input struct {
		ItemID     uint   `json:"itemId" binding:"required"`
		AnswerText string `json:"answerText" binding:"required"`
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

	var budget models.Budget
	if err := config.DB.First(&budget, item.BudgetID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if budget.UserID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the budget author can answer"})
		return
	}
	if item.RevisionState != workflow.RevisionPending && item.RevisionState != workflow.RevisionAnswered {
		c.JSON(http.StatusConflict, gin.H{"error": "Item has no open revision"})
		return
	}

	answer := models.RevisionAnswer{
		BudgetID:   item.BudgetID,
		ItemID:     item.ID,
		AnswerText: input.AnswerText,
		AuthorID:   currentUserID(c),
	}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&answer).Error; err != nil {
			return err
		}
		return tx.Model(&item).Update("revision_state", workflow.RevisionAnswered).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save answer"})
		return
	}

	GlobalHub.BroadcastThread(item.ID, gin.H{
		"event":      "revision_answered",
		"itemId":     item.ID,
		"budgetId":   item.BudgetID,
		"answerText": answer.AnswerText,
		"authorId":   answer.AuthorID,
	})
	c.JSON(http.StatusCreated, answer)
}

// ResolveRevisionHandler closes a revision thread. Only the department
// owning the item's current step may resolve.
func ResolveRevisionHandler(c *gin.Context) {
	dept, ok := currentDepartmentID(c)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Caller has no department"})
		return
	}

	var input struct {
		ItemID uint `json:"itemId" binding:"required"`
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
	if item.RevisionState != workflow.RevisionPending && item.RevisionState != workflow.RevisionAnswered {
		c.JSON(http.StatusConflict, gin.H{"error": "Item has no open revision"})
		return
	}
	if item.CurrentOwnerDepartmentID == nil || *item.CurrentOwnerDepartmentID != dept {
		c.JSON(http.StatusForbidden, gin.H{"error": "Current step is owned by another department"})
		return
	}

	if err := config.DB.Model(&item).Update("revision_state", workflow.RevisionResolved).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve revision"})
		return
	}

	GlobalHub.BroadcastThread(item.ID, gin.H{
		"event":  "revision_resolved",
		"itemId": item.ID,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "revisionState": workflow.RevisionResolved})
}
