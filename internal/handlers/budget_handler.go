package handlers

import (
	"net/http"
	"regexp"

	"okul-erp/config"
	"okul-erp/internal/workflow"
	"okul-erp/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var periodPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])-\d{4}$`)

type budgetItemInput struct {
	AccountID       uint            `json:"accountId" binding:"required"`
	ItemID          *uint           `json:"itemId"`
	ItemName        string          `json:"itemName" binding:"required"`
	ItemDescription string          `json:"itemdescription"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	Cost            decimal.Decimal `json:"cost"`
	Unit            string          `json:"unit"`
	PeriodMonths    int             `json:"periodMonths"`
	Notes           string          `json:"notes"`
}

// CreateBudgetHandler creates a draft budget for the caller's school.
func CreateBudgetHandler(c *gin.Context) {
	var input struct {
		Period      string            `json:"period" binding:"required"`
		Title       string            `json:"title" binding:"required"`
		Description string            `json:"description"`
		RequestType string            `json:"requestType"`
		Items       []budgetItemInput `json:"items" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if !periodPattern.MatchString(input.Period) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be formatted MM-YYYY"})
		return
	}

	requestType := input.RequestType
	if requestType == "" {
		requestType = "new"
	}

	budget := models.Budget{
		UserID:       currentUserID(c),
		SchoolID:     currentSchoolID(c),
		Period:       input.Period,
		Title:        input.Title,
		Description:  input.Description,
		RequestType:  requestType,
		BudgetStatus: workflow.BudgetDraft,
	}
	for _, it := range input.Items {
		budget.Items = append(budget.Items, budgetItemFromInput(it))
	}

	if err := config.DB.Create(&budget).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create budget"})
		return
	}
	c.JSON(http.StatusCreated, budget)
}

// ListMyBudgetsHandler returns the caller's budgets, newest first.
func ListMyBudgetsHandler(c *gin.Context) {
	query := config.DB.Where("user_id = ?", currentUserID(c)).Order("created_at desc")
	if v := c.Query("period"); v != "" {
		query = query.Where("period = ?", v)
	}
	if v := c.Query("status"); v != "" {
		query = query.Where("budget_status = ?", v)
	}

	var budgets []models.Budget
	var totalRows int64
	query.Model(&models.Budget{}).Count(&totalRows)
	if err := query.Scopes(Paginate(c)).Find(&budgets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch budgets"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, budgets, totalRows))
}

// GetBudgetHandler returns one budget with items and steps. Owners see
// their own budgets; budget_view_all opens the rest.
func GetBudgetHandler(c *gin.Context) {
	var budget models.Budget
	err := config.DB.Preload("Items.Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc")
	}).Preload("Items").First(&budget, c.Param("id")).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Budget not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if budget.UserID != currentUserID(c) && !hasPermission(c, "budget_view_all") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Budget not found"})
		return
	}
	c.JSON(http.StatusOK, budget)
}

// AddBudgetItemsHandler appends items to a draft budget.
func AddBudgetItemsHandler(c *gin.Context) {
	budget, ok := loadOwnDraftBudget(c)
	if !ok {
		return
	}

	var input struct {
		Items []budgetItemInput `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	items := make([]models.BudgetItem, 0, len(input.Items))
	for _, it := range input.Items {
		item := budgetItemFromInput(it)
		item.BudgetID = budget.ID
		items = append(items, item)
	}
	if err := config.DB.Create(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add items"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "added": len(items)})
}

// UpdateBudgetItemHandler edits one item of a draft budget.
func UpdateBudgetItemHandler(c *gin.Context) {
	budget, ok := loadOwnDraftBudget(c)
	if !ok {
		return
	}

	var item models.BudgetItem
	if err := config.DB.Where("budget_id = ?", budget.ID).First(&item, c.Param("itemId")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	var input budgetItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	item.AccountID = input.AccountID
	item.ItemID = input.ItemID
	item.ItemName = input.ItemName
	item.ItemDescription = input.ItemDescription
	item.Quantity = input.Quantity
	item.Cost = input.Cost
	item.Unit = input.Unit
	item.PeriodMonths = input.PeriodMonths
	item.Notes = input.Notes

	if err := config.DB.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update item"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteBudgetItemHandler removes one item of a draft budget. Steps go
// with the item.
func DeleteBudgetItemHandler(c *gin.Context) {
	budget, ok := loadOwnDraftBudget(c)
	if !ok {
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var item models.BudgetItem
		if err := tx.Where("budget_id = ?", budget.ID).First(&item, c.Param("itemId")).Error; err != nil {
			return err
		}
		if err := tx.Where("budget_item_id = ?", item.ID).Delete(&models.Step{}).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete item"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SubmitBudgetHandler flips a draft to in_review, materializing the step
// ledger of every item from the template resolved for its account. The
// whole submission is one transaction: either every item gets its route
// or nothing changes.
func SubmitBudgetHandler(c *gin.Context) {
	budget, ok := loadOwnDraftBudget(c)
	if !ok {
		return
	}

	var items []models.BudgetItem
	if err := config.DB.Where("budget_id = ?", budget.ID).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load items"})
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Budget has no items to submit"})
		return
	}

	var unbound []uint
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		for i := range items {
			template, err := resolveTemplate(tx, budget.SchoolID, items[i].AccountID)
			if err != nil {
				return err
			}
			if template == nil || len(template.Stages) == 0 {
				unbound = append(unbound, items[i].AccountID)
				continue
			}
			if err := materializeSteps(tx, budget, &items[i], template); err != nil {
				return err
			}
		}
		if len(unbound) > 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(budget).Update("budget_status", workflow.BudgetInReview).Error
	})
	if len(unbound) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No workflow template bound for some accounts", "accounts": unbound})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit budget"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "budgetStatus": workflow.BudgetInReview, "items": len(items)})
}

func budgetItemFromInput(it budgetItemInput) models.BudgetItem {
	return models.BudgetItem{
		AccountID:       it.AccountID,
		ItemID:          it.ItemID,
		ItemName:        it.ItemName,
		ItemDescription: it.ItemDescription,
		Quantity:        it.Quantity,
		Cost:            it.Cost,
		Unit:            it.Unit,
		PeriodMonths:    it.PeriodMonths,
		Notes:           it.Notes,
		RevisionState:   workflow.RevisionNone,
	}
}

// loadOwnDraftBudget loads the :id budget, requiring the caller to own
// it and the budget to still be a draft. Writes the error response on
// failure.
func loadOwnDraftBudget(c *gin.Context) (*models.Budget, bool) {
	var budget models.Budget
	if err := config.DB.First(&budget, c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Budget not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if budget.UserID != currentUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Budget not found"})
		return nil, false
	}
	if budget.BudgetStatus != workflow.BudgetDraft {
		c.JSON(http.StatusConflict, gin.H{"error": "Budget is no longer a draft"})
		return nil, false
	}
	return &budget, true
}
