package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RouteStep is the snapshot of one template stage taken at submission
// time, stored on the item as JSONB for display without joining steps.
type RouteStep struct {
	StepName          string `json:"step_name"`
	SortOrder         int    `json:"sort_order"`
	OwnerDepartmentID uint   `json:"owner_department_id"`
	AllowRevise       bool   `json:"allow_revise"`
}

// RouteStepsJSON stores the materialized route snapshot in a JSONB column.
type RouteStepsJSON []RouteStep

func (r RouteStepsJSON) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RouteStepsJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return errors.New("unsupported type for RouteStepsJSON")
	}
}

// Budget is a monthly budget draft submitted by a school user.
type Budget struct {
	gorm.Model
	UserID      uint   `json:"userId" gorm:"index;not null"`
	User        User   `json:"user" gorm:"foreignKey:UserID"`
	SchoolID    uint   `json:"schoolId" gorm:"index;not null"`
	School      School `json:"-" gorm:"foreignKey:SchoolID"`
	Period      string `json:"period" gorm:"not null"` // "MM-YYYY"
	Title       string `json:"title"`
	Description string `json:"description"`
	RequestType string `json:"requestType" gorm:"default:'new'"`
	// draft -> in_review -> review_been_completed -> closed
	BudgetStatus string       `json:"budgetStatus" gorm:"default:'draft'"`
	ClosedAt     *time.Time   `json:"closedAt"`
	Items        []BudgetItem `json:"items,omitempty" gorm:"foreignKey:BudgetID"`
}

// BudgetItem is one line of a budget. Each item runs its own review
// pipeline; the cached current/next step columns mirror the step ledger
// so list views avoid a join per row.
type BudgetItem struct {
	gorm.Model
	BudgetID        uint            `json:"budgetId" gorm:"index;not null"`
	AccountID       uint            `json:"accountId" gorm:"index;not null"`
	Account         SubAccount      `json:"-" gorm:"foreignKey:AccountID"`
	ItemID          *uint           `json:"itemId"`
	ItemName        string          `json:"itemName" gorm:"not null"`
	ItemDescription string          `json:"itemdescription"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:numeric(12,2)"`
	Cost            decimal.Decimal `json:"cost" gorm:"type:numeric(12,2)"`
	Unit            string          `json:"unit"`
	PeriodMonths    int             `json:"periodMonths"`
	Notes           string          `json:"notes"`

	// Logistics decision.
	StorageStatus      *string          `json:"storageStatus"`
	StorageProvidedQty *decimal.Decimal `json:"storageProvidedQty" gorm:"type:numeric(12,2)"`

	// Needed decision: 0, 1 or null.
	NeededStatus *int   `json:"neededStatus"`
	NeededNotes  string `json:"neededNotes"`

	// Cost decision.
	PurchaseCost *decimal.Decimal `json:"purchaseCost" gorm:"type:numeric(12,2)"`

	// Coordinator decision: approved, adjusted, rejected or null.
	FinalPurchaseStatus *string          `json:"finalPurchaseStatus"`
	FinalPurchaseCost   *decimal.Decimal `json:"finalPurchaseCost" gorm:"type:numeric(12,2)"`
	FinalQuantity       *decimal.Decimal `json:"finalQuantity" gorm:"type:numeric(12,2)"`

	WorkflowDone bool `json:"workflowDone" gorm:"default:false"`

	// Revision bookkeeping: none -> pending -> answered -> resolved.
	RevisionState string     `json:"revisionState" gorm:"default:'none'"`
	ReviseReason  string     `json:"reviseReason"`
	RevisedAt     *time.Time `json:"revisedAt"`

	// Route snapshot and cached step pointers.
	RouteTemplateID          *uint          `json:"routeTemplateId"`
	RouteSteps               RouteStepsJSON `json:"routeStepsJson" gorm:"type:jsonb"`
	CurrentStepID            *uint          `json:"currentStepId"`
	CurrentStage             *string        `json:"currentStage"`
	CurrentStepOrder         *int           `json:"currentStepOrder"`
	CurrentOwnerDepartmentID *uint          `json:"currentOwnerDepartmentId"`
	NextStepID               *uint          `json:"nextStepId"`
	NextStage                *string        `json:"nextStage"`
	NextOwnerDepartmentID    *uint          `json:"nextOwnerDepartmentId"`

	Steps []Step `json:"steps,omitempty" gorm:"foreignKey:BudgetItemID;constraint:OnDelete:CASCADE"`
}

// Step is one materialized checkpoint of an item's review pipeline.
// Steps belong to their item and never move between items; sort_order is
// fixed at materialization.
type Step struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	BudgetID     uint      `json:"budgetId" gorm:"index;not null"`
	BudgetItemID uint      `json:"budgetItemId" gorm:"index;not null;uniqueIndex:idx_item_order,priority:1"`
	AccountID    uint      `json:"accountId" gorm:"not null"`
	StepName     string    `json:"stepName" gorm:"not null"`
	SortOrder    int       `json:"sortOrder" gorm:"not null;uniqueIndex:idx_item_order,priority:2"`
	OwnerOfStep  uint      `json:"ownerOfStep" gorm:"not null"`
	StepStatus   string    `json:"stepStatus" gorm:"default:'pending'"`
	IsCurrent    int       `json:"isCurrent" gorm:"default:0;index"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
