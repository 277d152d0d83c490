package main

import (
	"log/slog"
	"os"

	"okul-erp/config"
	"okul-erp/internal/handlers"
	"okul-erp/internal/routes"
	"okul-erp/models"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on environment")
	}

	config.LoadJwtKey()
	config.ConnectDB()
	config.ConnectRedis()

	err := config.DB.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.School{},
		&models.Department{},
		&models.DepartmentControlArea{},
		&models.SubAccount{},
		&models.FoodEaters{},
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
	if err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	go handlers.GlobalHub.Run()

	r := gin.Default()
	routes.SetupRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	slog.Info("Starting server", "port", port)
	if err := r.Run(":" + port); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
