package routes

import (
	"okul-erp/internal/handlers"
	"okul-erp/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the full HTTP surface. Everything except /verify
// sits behind the auth middleware; write endpoints additionally carry
// permission checks.
func SetupRoutes(r *gin.Engine) {
	// Public: the printed QR code lands here without a session.
	r.POST("/api/purchasing/verify", handlers.VerifyRequestHandler)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		api.GET("/chat/ws", handlers.ChatWSEndpoint)

		api.GET("/schools", handlers.ListSchoolsHandler)
		api.GET("/schools/:id/food-eaters", handlers.GetFoodEatersHandler)
		api.PUT("/schools/:id/food-eaters", middleware.PermissionMiddleware("workflow_manage"), handlers.SetFoodEatersHandler)
		api.GET("/departments", handlers.ListDepartmentsHandler)
		api.GET("/accounts", handlers.ListAccountsHandler)

		budgets := api.Group("/budgets")
		{
			budgets.POST("", handlers.CreateBudgetHandler)
			budgets.GET("", handlers.ListMyBudgetsHandler)
			budgets.GET("/:id", handlers.GetBudgetHandler)
			budgets.POST("/:id/items", handlers.AddBudgetItemsHandler)
			budgets.PUT("/:id/items/:itemId", handlers.UpdateBudgetItemHandler)
			budgets.DELETE("/:id/items/:itemId", handlers.DeleteBudgetItemHandler)
			budgets.POST("/:id/submit", handlers.SubmitBudgetHandler)
		}

		review := api.Group("/review")
		{
			review.GET("/queue", handlers.ListStageQueueHandler)
			review.POST("/logistics", middleware.PermissionMiddleware("review_logistics"), handlers.DecideLogisticsHandler)
			review.POST("/needed", middleware.PermissionMiddleware("review_needed"), handlers.DecideNeededHandler)
			review.POST("/cost", middleware.PermissionMiddleware("review_cost"), handlers.DecideCostHandler)
			review.POST("/final", middleware.PermissionMiddleware("review_final"), handlers.DecideFinalHandler)
			review.POST("/confirm", handlers.ConfirmCustomStepHandler)
			review.POST("/revise-back", handlers.ReviseBackHandler)
		}

		revisions := api.Group("/revisions")
		{
			revisions.GET("", handlers.ListRevisionsHandler)
			revisions.GET("/summary", handlers.RevisionSummaryHandler)
			revisions.POST("/answer", handlers.AnswerRevisionHandler)
			revisions.POST("/resolve", handlers.ResolveRevisionHandler)
		}

		templates := api.Group("/templates", middleware.PermissionMiddleware("workflow_manage"))
		{
			templates.GET("", handlers.ListTemplatesHandler)
			templates.GET("/:id", handlers.GetTemplateHandler)
			templates.POST("", handlers.CreateTemplateHandler)
			templates.PUT("/:id", handlers.UpdateTemplateHandler)
			templates.DELETE("/:id", handlers.DeleteTemplateHandler)
			templates.GET("/bindings", handlers.ListBindingsHandler)
			templates.POST("/bindings", handlers.CreateBindingHandler)
			templates.DELETE("/bindings/:id", handlers.DeleteBindingHandler)
		}

		assignments := api.Group("/assignments", middleware.PermissionMiddleware("workflow_manage"))
		{
			assignments.GET("", handlers.ListAssignmentsHandler)
			assignments.GET("/owners", handlers.GetAreaOwnersHandler)
			assignments.POST("", handlers.CreateAssignmentHandler)
			assignments.DELETE("/:id", handlers.DeleteAssignmentHandler)
			assignments.POST("/sync", handlers.SyncDepartmentAssignmentsHandler)
		}

		purchasing := api.Group("/purchasing")
		{
			purchasing.POST("", handlers.CreatePurchasingRequestHandler)
			purchasing.GET("", handlers.ListMyRequestsHandler)
			purchasing.GET("/:id", handlers.GetPurchasingRequestHandler)
			purchasing.PUT("/:id", handlers.UpdatePurchasingRequestHandler)
			purchasing.DELETE("/:id", handlers.DeletePurchasingRequestHandler)

			mod := purchasing.Group("", middleware.PermissionMiddleware("purchasing_moderate"))
			{
				mod.GET("/assigned", handlers.ListAssignedRequestsHandler)
				mod.POST("/:id/decide", handlers.ModeratorDecideItemsHandler)
				mod.POST("/:id/send", handlers.SendRequestHandler)
				mod.POST("/:id/revise", handlers.ModeratorReviseHandler)
				mod.POST("/on-behalf", handlers.CreateOnBehalfHandler)
			}

			coord := purchasing.Group("", middleware.PermissionMiddleware("purchasing_coordinate"))
			{
				coord.GET("/school", handlers.ListSchoolRequestsHandler)
				coord.POST("/:id/coordinator-decide", handlers.CoordinatorDecideItemsHandler)
				coord.POST("/:id/approve", handlers.ApproveRequestHandler)
				coord.POST("/:id/coordinator-revise", handlers.CoordinatorReviseHandler)
			}

			accounting := purchasing.Group("", middleware.PermissionMiddleware("purchasing_print"))
			{
				accounting.GET("/approved", handlers.ListApprovedRequestsHandler)
				accounting.POST("/:id/printed", handlers.MarkPrintedHandler)
				accounting.GET("/:id/print-payload", handlers.PrintPayloadHandler)
			}

			admin := purchasing.Group("", middleware.PermissionMiddleware("admin"))
			{
				admin.GET("/all", handlers.ListAllRequestsHandler)
				admin.POST("/:id/force-approve", handlers.ForceApproveHandler)
				admin.POST("/:id/override", handlers.OverrideItemDecisionsHandler)
			}
		}
	}
}
