package handlers

import "github.com/gin-gonic/gin"

func currentUserID(c *gin.Context) uint {
	v, _ := c.Get("user_id")
	id, _ := v.(uint)
	return id
}

func currentUserName(c *gin.Context) string {
	v, _ := c.Get("userName")
	name, _ := v.(string)
	return name
}

func currentSchoolID(c *gin.Context) uint {
	v, _ := c.Get("school_id")
	id, _ := v.(uint)
	return id
}

func currentDepartmentID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("department_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func hasPermission(c *gin.Context, name string) bool {
	v, _ := c.Get("permissions")
	perms, _ := v.([]string)
	for _, p := range perms {
		if p == name || p == "admin" {
			return true
		}
	}
	return false
}
