package models

import "gorm.io/gorm"

// School is the grouping tenant for users and budgets.
type School struct {
	gorm.Model
	Name string `json:"name" gorm:"unique;not null"`
}

// Department is a reviewer group. A department may review for several
// schools; the control areas it covers are listed in ControlAreas.
type Department struct {
	gorm.Model
	Code    string `json:"code" gorm:"unique;not null"`
	Name    string `json:"name"`
	Active  bool   `json:"active" gorm:"default:true"`
	Schools []School `json:"schools,omitempty" gorm:"many2many:department_schools;"`
	// Accounts the department reviews; used by assignment sync.
	Accounts     []SubAccount            `json:"accounts,omitempty" gorm:"many2many:department_accounts;"`
	ControlAreas []DepartmentControlArea `json:"controlAreas,omitempty" gorm:"foreignKey:DepartmentID"`
}

// DepartmentControlArea marks a control area (logistics, needed, cost)
// the department is responsible for.
type DepartmentControlArea struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	DepartmentID uint   `json:"departmentId" gorm:"index;not null"`
	Area         string `json:"area" gorm:"not null"`
}

// SubAccount is a budget line category. Code starts with the 3-digit
// master prefix.
type SubAccount struct {
	gorm.Model
	Code     string `json:"code" gorm:"unique;not null"`
	Name     string `json:"name"`
	MasterID uint   `json:"masterId"`
}

// FoodEaters stores the per-school denominator for kcal reporting.
type FoodEaters struct {
	gorm.Model
	SchoolID     uint `json:"schoolId" gorm:"unique;not null"`
	EatingNumber int  `json:"eatingNumber"`
}
