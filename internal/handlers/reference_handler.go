package handlers

import (
	"net/http"
	"strconv"

	"okul-erp/config"
	"okul-erp/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reference data endpoints: the pick lists the front end builds budgets
// and templates from.

func ListSchoolsHandler(c *gin.Context) {
	var schools []models.School
	if err := config.DB.Order("name asc").Find(&schools).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch schools"})
		return
	}
	c.JSON(http.StatusOK, schools)
}

func ListDepartmentsHandler(c *gin.Context) {
	query := config.DB.Preload("ControlAreas").Order("code asc")
	if c.Query("active") == "true" {
		query = query.Where("active = ?", true)
	}
	var departments []models.Department
	if err := query.Find(&departments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch departments"})
		return
	}
	c.JSON(http.StatusOK, departments)
}

func ListAccountsHandler(c *gin.Context) {
	query := config.DB.Order("code asc")
	if v := c.Query("master"); v != "" {
		query = query.Where("master_id = ?", v)
	}
	var accounts []models.SubAccount
	if err := query.Find(&accounts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch accounts"})
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// GetFoodEatersHandler returns the per-school eater count used as the
// denominator in kitchen budget reports.
func GetFoodEatersHandler(c *gin.Context) {
	schoolID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid school id"})
		return
	}

	var eaters models.FoodEaters
	if err := config.DB.Where("school_id = ?", schoolID).First(&eaters).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusOK, gin.H{"schoolId": schoolID, "eatingNumber": 0})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, eaters)
}

// SetFoodEatersHandler upserts the per-school eater count.
func SetFoodEatersHandler(c *gin.Context) {
	schoolID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid school id"})
		return
	}

	var input struct {
		EatingNumber int `json:"eatingNumber" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	eaters := models.FoodEaters{SchoolID: uint(schoolID), EatingNumber: input.EatingNumber}
	err = config.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "school_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"eating_number", "updated_at"}),
	}).Create(&eaters).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save eater count"})
		return
	}
	c.JSON(http.StatusOK, eaters)
}
