package models

import "okul-erp/config"

// User is the authenticated principal. Registration and password
// management live in the auth service; this backend only reads users for
// scoping and moderator assignment.
type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	FullName     string     `json:"fullName"`
	Email        string     `json:"email" gorm:"unique;not null"`
	SchoolID     uint       `json:"schoolId"`
	School       School     `json:"-" gorm:"foreignKey:SchoolID"`
	DepartmentID *uint      `json:"departmentId"`
	Department   Department `json:"-" gorm:"foreignKey:DepartmentID"`
	// BudgetMod is the user id of the moderator responsible for this user's
	// purchase requests.
	BudgetMod *uint  `json:"budgetMod"`
	Roles     []Role `json:"roles" gorm:"many2many:user_roles;"`
}

// Role defines a role in the database.
type Role struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"unique;not null"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions" gorm:"many2many:role_permissions;"`
}

// Permission defines an access permission in the database.
type Permission struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"unique;not null"`
	Description string `json:"description"`
	Category    string `json:"category" gorm:"not null"`
}

// GetUserPermissions collects the distinct permissions a user holds
// through all of their roles.
func GetUserPermissions(userID uint) ([]Permission, error) {
	var user User
	db := config.DB

	if err := db.Preload("Roles.Permissions").First(&user, userID).Error; err != nil {
		return nil, err
	}

	permissionMap := make(map[uint]Permission)
	for _, role := range user.Roles {
		for _, permission := range role.Permissions {
			permissionMap[permission.ID] = permission
		}
	}

	permissions := make([]Permission, 0, len(permissionMap))
	for _, permission := range permissionMap {
		permissions = append(permissions, permission)
	}

	return permissions, nil
}
