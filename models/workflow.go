package models

import "gorm.io/gorm"

// WorkflowTemplate is an ordered list of review stages. Items copy the
// stages into their own step ledger when the budget is submitted, so
// later template edits never touch items already in review.
type WorkflowTemplate struct {
	gorm.Model
	Name   string          `json:"name" gorm:"unique;not null"`
	Stages []WorkflowStage `json:"stages,omitempty" gorm:"foreignKey:TemplateID"`
}

// WorkflowStage is one checkpoint in a template. StageName is one of
// logistics, needed, cost, coordinator, or a free-form custom name.
type WorkflowStage struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	TemplateID        uint       `json:"templateId" gorm:"index;not null;uniqueIndex:idx_stage_order,priority:1"`
	StageName         string     `json:"stageName" gorm:"not null"`
	SortOrder         int        `json:"sortOrder" gorm:"not null;uniqueIndex:idx_stage_order,priority:2"`
	OwnerDepartmentID uint       `json:"ownerDepartmentId" gorm:"not null"`
	OwnerDepartment   Department `json:"-" gorm:"foreignKey:OwnerDepartmentID"`
	AllowRevise       bool       `json:"allowRevise"`
}

// WorkflowBinding resolves which template applies to items of a given
// (school, account). Lower priority wins; ties go to the newest binding.
type WorkflowBinding struct {
	gorm.Model
	SchoolID   uint             `json:"schoolId" gorm:"index:idx_binding_pair;not null"`
	AccountID  uint             `json:"accountId" gorm:"index:idx_binding_pair;not null"`
	TemplateID uint             `json:"templateId" gorm:"not null"`
	Template   WorkflowTemplate `json:"-" gorm:"foreignKey:TemplateID"`
	Priority   int              `json:"priority" gorm:"default:100"`
}

// ControlAssignment names the department reviewing a control area for a
// given (school, account). Unique on the first three columns; ownership
// transfer requires replace-mode sync.
type ControlAssignment struct {
	gorm.Model
	SchoolID     uint       `json:"schoolId" gorm:"uniqueIndex:idx_control_assignment,priority:1;not null"`
	AccountID    uint       `json:"accountId" gorm:"uniqueIndex:idx_control_assignment,priority:2;not null"`
	ControlArea  string     `json:"controlArea" gorm:"uniqueIndex:idx_control_assignment,priority:3;not null"`
	DepartmentID uint       `json:"departmentId" gorm:"index;not null"`
	Department   Department `json:"-" gorm:"foreignKey:DepartmentID"`
}
