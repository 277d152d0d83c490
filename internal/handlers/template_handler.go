package handlers

import (
	"net/http"

	"okul-erp/config"
	"okul-erp/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type stageInput struct {
	StageName         string `json:"stageName" binding:"required"`
	SortOrder         int    `json:"sortOrder" binding:"required"`
	OwnerDepartmentID uint   `json:"ownerDepartmentId" binding:"required"`
	AllowRevise       bool   `json:"allowRevise"`
}

type templateInput struct {
	Name   string       `json:"name" binding:"required"`
	Stages []stageInput `json:"stages" binding:"required,min=1,dive"`
}

func validateStages(stages []stageInput) string {
	seen := make(map[int]bool, len(stages))
	for _, s := range stages {
		if s.SortOrder < 1 {
			return "sortOrder must be >= 1"
		}
		if seen[s.SortOrder] {
			return "sortOrder must be unique within a template"
		}
		seen[s.SortOrder] = true
	}
	return ""
}

// ListTemplatesHandler returns all templates with their ordered stages.
func ListTemplatesHandler(c *gin.Context) {
	var templates []models.WorkflowTemplate
	err := config.DB.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc")
	}).Find(&templates).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch templates"})
		return
	}
	c.JSON(http.StatusOK, templates)
}

// GetTemplateHandler returns one template with its ordered stages.
func GetTemplateHandler(c *gin.Context) {
	var template models.WorkflowTemplate
	err := config.DB.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc")
	}).First(&template, c.Param("id")).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, template)
}

// CreateTemplateHandler creates a template and its stages in one
// transaction.
func CreateTemplateHandler(c *gin.Context) {
	var input templateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if msg := validateStages(input.Stages); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	template := models.WorkflowTemplate{Name: input.Name}
	for _, s := range input.Stages {
		template.Stages = append(template.Stages, models.WorkflowStage{
			StageName:         s.StageName,
			SortOrder:         s.SortOrder,
			OwnerDepartmentID: s.OwnerDepartmentID,
			AllowRevise:       s.AllowRevise,
		})
	}

	if err := config.DB.Create(&template).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create template"})
		return
	}
	c.JSON(http.StatusCreated, template)
}

// UpdateTemplateHandler replaces the template's name and stages. Items
// already in review keep their materialized steps untouched.
func UpdateTemplateHandler(c *gin.Context) {
	var template models.WorkflowTemplate
	if err := config.DB.First(&template, c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	var input templateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if msg := validateStages(input.Stages); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&template).Update("name", input.Name).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", template.ID).Delete(&models.WorkflowStage{}).Error; err != nil {
			return err
		}
		for _, s := range input.Stages {
			stage := models.WorkflowStage{
				TemplateID:        template.ID,
				StageName:         s.StageName,
				SortOrder:         s.SortOrder,
				OwnerDepartmentID: s.OwnerDepartmentID,
				AllowRevise:       s.AllowRevise,
			}
			if err := tx.Create(&stage).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update template"})
		return
	}

	GetTemplateHandler(c)
}

// DeleteTemplateHandler removes a template that no binding references.
func DeleteTemplateHandler(c *gin.Context) {
	id := c.Param("id")

	var bindingCount int64
	config.DB.Model(&models.WorkflowBinding{}).Where("template_id = ?", id).Count(&bindingCount)
	if bindingCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Template is still bound to school/account pairs"})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&models.WorkflowStage{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.WorkflowTemplate{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete template"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListBindingsHandler returns template bindings, optionally filtered.
func ListBindingsHandler(c *gin.Context) {
	query := config.DB.Model(&models.WorkflowBinding{}).Order("school_id, account_id, priority")
	if v := c.Query("school"); v != "" {
		query = query.Where("school_id = ?", v)
	}
	if v := c.Query("account"); v != "" {
		query = query.Where("account_id = ?", v)
	}

	var bindings []models.WorkflowBinding
	if err := query.Find(&bindings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bindings"})
		return
	}
	c.JSON(http.StatusOK, bindings)
}

// CreateBindingHandler binds a template to a (school, account) pair.
func CreateBindingHandler(c *gin.Context) {
	var input struct {
		SchoolID   uint `json:"schoolId" binding:"required"`
		AccountID  uint `json:"accountId" binding:"required"`
		TemplateID uint `json:"templateId" binding:"required"`
		Priority   int  `json:"priority"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	if err := config.DB.First(&models.WorkflowTemplate{}, input.TemplateID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}

	priority := input.Priority
	if priority == 0 {
		priority = 100
	}
	binding := models.WorkflowBinding{
		SchoolID:   input.SchoolID,
		AccountID:  input.AccountID,
		TemplateID: input.TemplateID,
		Priority:   priority,
	}
	if err := config.DB.Create(&binding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create binding"})
		return
	}
	c.JSON(http.StatusCreated, binding)
}

// DeleteBindingHandler removes one binding.
func DeleteBindingHandler(c *gin.Context) {
	result := config.DB.Delete(&models.WorkflowBinding{}, c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete binding"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Binding not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// resolveTemplate picks the template for an item of (school, account):
// lowest priority wins, ties go to the newest binding. Returns nil when
// nothing is bound.
func resolveTemplate(db *gorm.DB, schoolID, accountID uint) (*models.WorkflowTemplate, error) {
	var binding models.WorkflowBinding
	err := db.Where("school_id = ? AND account_id = ?", schoolID, accountID).
		Order("priority asc, created_at desc").
		First(&binding).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var template models.WorkflowTemplate
	err = db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc")
	}).First(&template, binding.TemplateID).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

// materializeSteps copies the template stages into the item's step
// ledger. Only the lowest sort_order becomes current; the snapshot and
// cached pointers land on the item. Later stage edits never rewrite
// materialized steps.
func materializeSteps(tx *gorm.DB, budget *models.Budget, item *models.BudgetItem, template *models.WorkflowTemplate) error {
	route := make(models.RouteStepsJSON, 0, len(template.Stages))
	steps := make([]models.Step, 0, len(template.Stages))
	for i, stage := range template.Stages {
		isCurrent := 0
		if i == 0 {
			isCurrent = 1
		}
		steps = append(steps, models.Step{
			BudgetID:     budget.ID,
			BudgetItemID: item.ID,
			AccountID:    item.AccountID,
			StepName:     stage.StageName,
			SortOrder:    stage.SortOrder,
			OwnerOfStep:  stage.OwnerDepartmentID,
			StepStatus:   "pending",
			IsCurrent:    isCurrent,
		})
		route = append(route, models.RouteStep{
			StepName:          stage.StageName,
			SortOrder:         stage.SortOrder,
			OwnerDepartmentID: stage.OwnerDepartmentID,
			AllowRevise:       stage.AllowRevise,
		})
	}

	if err := tx.Create(&steps).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"route_template_id": template.ID,
		"route_steps":       route,
		"current_step_id":   steps[0].ID,
		"current_stage":     steps[0].StepName,
		"current_step_order": steps[0].SortOrder,
		"current_owner_department_id": steps[0].OwnerOfStep,
	}
	if len(steps) > 1 {
		updates["next_step_id"] = steps[1].ID
		updates["next_stage"] = steps[1].StepName
		updates["next_owner_department_id"] = steps[1].OwnerOfStep
	}
	return tx.Model(item).Updates(updates).Error
}
