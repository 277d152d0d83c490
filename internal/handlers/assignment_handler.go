package handlers

import (
	"net/http"
	"strconv"

	"okul-erp/config"
	"okul-erp/internal/workflow"
	"okul-erp/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// assignmentKey identifies one (school, account, area) ownership cell.
type assignmentKey struct {
	SchoolID  uint
	AccountID uint
	Area      string
}

// AssignmentConflict is one cell already owned by another department.
type AssignmentConflict struct {
	SchoolID     uint   `json:"schoolId"`
	AccountID    uint   `json:"accountId"`
	ControlArea  string `json:"controlArea"`
	DepartmentID uint   `json:"departmentId"`
}

// SyncReport is the outcome of one assignment sync run.
type SyncReport struct {
	Inserted  int                  `json:"inserted"`
	Updated   int                  `json:"updated"`
	Deleted   int                  `json:"deleted"`
	Conflicts []AssignmentConflict `json:"conflicts"`
}

// resolveAreaOwner returns the department owning a control area for the
// given (school, account), or nil when unassigned.
func resolveAreaOwner(db *gorm.DB, schoolID, accountID uint, area string) (*uint, error) {
	var assignment models.ControlAssignment
	err := db.Where("school_id = ? AND account_id = ? AND control_area = ?", schoolID, accountID, area).
		First(&assignment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment.DepartmentID, nil
}

// ListAssignmentsHandler returns assignments, optionally filtered by
// school, account or department.
func ListAssignmentsHandler(c *gin.Context) {
	query := config.DB.Model(&models.ControlAssignment{}).Order("school_id, account_id, control_area")

	if v := c.Query("school"); v != "" {
		query = query.Where("school_id = ?", v)
	}
	if v := c.Query("account"); v != "" {
		query = query.Where("account_id = ?", v)
	}
	if v := c.Query("department"); v != "" {
		query = query.Where("department_id = ?", v)
	}

	var assignments []models.ControlAssignment
	if err := query.Find(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch assignments"})
		return
	}
	c.JSON(http.StatusOK, assignments)
}

// GetAreaOwnersHandler resolves all three control-area owners for one
// (school, account) pair.
func GetAreaOwnersHandler(c *gin.Context) {
	schoolID, err1 := strconv.Atoi(c.Query("school"))
	accountID, err2 := strconv.Atoi(c.Query("account"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "school and account query parameters are required"})
		return
	}

	owners := gin.H{}
	for _, area := range workflow.ControlAreas {
		owner, err := resolveAreaOwner(config.DB, uint(schoolID), uint(accountID), area)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve owners"})
			return
		}
		owners[area] = owner
	}
	c.JSON(http.StatusOK, owners)
}

// CreateAssignmentHandler inserts one assignment cell. Duplicate cells
// are a conflict: ownership transfer goes through sync in replace mode.
func CreateAssignmentHandler(c *gin.Context) {
	var input struct {
		SchoolID     uint   `json:"schoolId" binding:"required"`
		AccountID    uint   `json:"accountId" binding:"required"`
		ControlArea  string `json:"controlArea" binding:"required"`
		DepartmentID uint   `json:"departmentId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if !isControlArea(input.ControlArea) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "controlArea must be one of logistics, needed, cost"})
		return
	}

	var existing models.ControlAssignment
	err := config.DB.Where("school_id = ? AND account_id = ? AND control_area = ?",
		input.SchoolID, input.AccountID, input.ControlArea).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Assignment already exists", "departmentId": existing.DepartmentID})
		return
	}
	if err != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	assignment := models.ControlAssignment{
		SchoolID:     input.SchoolID,
		AccountID:    input.AccountID,
		ControlArea:  input.ControlArea,
		DepartmentID: input.DepartmentID,
	}
	if err := config.DB.Create(&assignment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create assignment"})
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

// DeleteAssignmentHandler removes one assignment cell.
func DeleteAssignmentHandler(c *gin.Context) {
	id := c.Param("id")
	result := config.DB.Unscoped().Delete(&models.ControlAssignment{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete assignment"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assignment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SyncDepartmentAssignmentsHandler rewrites a department's ownership
// cells to schools x accounts x areas as configured on the department.
//
// strict: any cell owned by another department fails the whole run with
// the conflict list. replace: conflicting cells transfer to this
// department. Either way, cells owned by the department but no longer in
// the target set are removed. Runs in one transaction.
func SyncDepartmentAssignmentsHandler(c *gin.Context) {
	var input struct {
		DepartmentID uint   `json:"departmentId" binding:"required"`
		Mode         string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	mode := input.Mode
	if mode == "" {
		mode = "strict"
	}
	if mode != "strict" && mode != "replace" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be strict or replace"})
		return
	}

	var dept models.Department
	if err := config.DB.Preload("Schools").Preload("Accounts").Preload("ControlAreas").
		First(&dept, input.DepartmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Department not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	report, conflictErr, err := syncDepartmentAssignments(config.DB, &dept, mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sync failed: " + err.Error()})
		return
	}
	if conflictErr {
		c.JSON(http.StatusConflict, gin.H{"error": "Conflicting ownership", "conflicts": report.Conflicts})
		return
	}
	c.JSON(http.StatusOK, report)
}

func syncDepartmentAssignments(db *gorm.DB, dept *models.Department, mode string) (*SyncReport, bool, error) {
	report := &SyncReport{Conflicts: []AssignmentConflict{}}

	target := make(map[assignmentKey]bool)
	for _, school := range dept.Schools {
		for _, account := range dept.Accounts {
			for _, area := range dept.ControlAreas {
				target[assignmentKey{school.ID, account.ID, area.Area}] = true
			}
		}
	}

	// A department with no schools, accounts or areas simply loses all of
	// its cells; that is not an error.
	conflict := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var owned []models.ControlAssignment
		if err := tx.Where("department_id = ?", dept.ID).Find(&owned).Error; err != nil {
			return err
		}

		if len(target) == 0 {
			if len(owned) > 0 {
				// Hard delete: the unique index spans soft-deleted rows too.
				if err := tx.Unscoped().Where("department_id = ?", dept.ID).
					Delete(&models.ControlAssignment{}).Error; err != nil {
					return err
				}
				report.Deleted = len(owned)
			}
			return nil
		}

		schoolIDs := make([]uint, 0, len(dept.Schools))
		for _, s := range dept.Schools {
			schoolIDs = append(schoolIDs, s.ID)
		}
		accountIDs := make([]uint, 0, len(dept.Accounts))
		for _, a := range dept.Accounts {
			accountIDs = append(accountIDs, a.ID)
		}
		areas := make([]string, 0, len(dept.ControlAreas))
		for _, a := range dept.ControlAreas {
			areas = append(areas, a.Area)
		}

		// target = S x A x C, so this superset query loads exactly the
		// existing rows inside the target set.
		var existing []models.ControlAssignment
		if err := tx.Where("school_id IN ? AND account_id IN ? AND control_area IN ?",
			schoolIDs, accountIDs, areas).Find(&existing).Error; err != nil {
			return err
		}

		present := make(map[assignmentKey]models.ControlAssignment, len(existing))
		for _, row := range existing {
			key := assignmentKey{row.SchoolID, row.AccountID, row.ControlArea}
			present[key] = row
			if row.DepartmentID != dept.ID {
				report.Conflicts = append(report.Conflicts, AssignmentConflict{
					SchoolID:     row.SchoolID,
					AccountID:    row.AccountID,
					ControlArea:  row.ControlArea,
					DepartmentID: row.DepartmentID,
				})
			}
		}

		if mode == "strict" && len(report.Conflicts) > 0 {
			conflict = true
			return gorm.ErrInvalidTransaction // force rollback, mapped to 409 above
		}

		// Transfer conflicting cells, then fill the gaps.
		for _, cf := range report.Conflicts {
			if err := tx.Model(&models.ControlAssignment{}).
				Where("school_id = ? AND account_id = ? AND control_area = ?",
					cf.SchoolID, cf.AccountID, cf.ControlArea).
				Update("department_id", dept.ID).Error; err != nil {
				return err
			}
			report.Updated++
		}

		for key := range target {
			if _, ok := present[key]; ok {
				continue
			}
			row := models.ControlAssignment{
				SchoolID:     key.SchoolID,
				AccountID:    key.AccountID,
				ControlArea:  key.Area,
				DepartmentID: dept.ID,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			report.Inserted++
		}

		for _, row := range owned {
			if !target[assignmentKey{row.SchoolID, row.AccountID, row.ControlArea}] {
				if err := tx.Unscoped().Delete(&models.ControlAssignment{}, row.ID).Error; err != nil {
					return err
				}
				report.Deleted++
			}
		}

		return nil
	})

	if conflict {
		report.Inserted, report.Updated, report.Deleted = 0, 0, 0
		return report, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return report, false, nil
}

func isControlArea(area string) bool {
	for _, a := range workflow.ControlAreas {
		if a == area {
			return true
		}
	}
	return false
}
