package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"okul-erp/config"
	"okul-erp/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.JwtKey = []byte("test-secret")
}

// setupTestDB points config.DB at a fresh in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// One named in-memory database per test; cache=shared keeps it alive
	// across the pool's connections without leaking between tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.School{},
		&models.Department{},
		&models.DepartmentControlArea{},
		&models.SubAccount{},
		&models.WorkflowTemplate{},
		&models.WorkflowStage{},
		&models.WorkflowBinding{},
		&models.ControlAssignment{},
		&models.Budget{},
		&models.BudgetItem{},
		&models.Step{},
		&models.PurchasingRequest{},
		&models.PurchasingRequestItem{},
		&models.RequestRoute{},
		&models.RevisionAnswer{},
	)
	require.NoError(t, err)

	old := config.DB
	config.DB = db
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		config.DB = old
	})
	return db
}

// testCaller describes the authenticated principal a test request runs as.
type testCaller struct {
	UserID       uint
	UserName     string
	SchoolID     uint
	DepartmentID *uint
	Permissions  []string
}

// call runs one handler with a JSON body and the caller's context.
func call(t *testing.T, handler gin.HandlerFunc, caller testCaller, method, path string, params gin.Params, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params

	c.Set("user_id", caller.UserID)
	c.Set("userName", caller.UserName)
	c.Set("school_id", caller.SchoolID)
	if caller.DepartmentID != nil {
		c.Set("department_id", *caller.DepartmentID)
	}
	c.Set("permissions", caller.Permissions)

	handler(c)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func uintPtr(v uint) *uint { return &v }

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, w.Code, "body: %s", w.Body.String())
}
