package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/emailmax/warmup/api/handlers"
	"github.com/emailmax/warmup/api/middleware"
	"github.com/emailmax/warmup/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}

	r.Use(gin.Recovery())

	// Health check endpoints (no auth)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(s.Orchestrator))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-WARMUP-API-KEY",
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.TracingMiddleware())
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("", handlers.ListAccounts(s.Orchestrator))
			accounts.POST("", handlers.AddAccount(s.Orchestrator))
			accounts.GET("/:id", handlers.GetAccount(s.Orchestrator))
			accounts.DELETE("/:id", handlers.RemoveAccount(s.Orchestrator, s.Automation))
			accounts.POST("/:id/validate", handlers.ValidateAccount(s.Orchestrator))

			folders := accounts.Group("/:id/folders")
			{
				folders.GET("", handlers.ListFolders(s.Orchestrator, s.Automation))
				folders.POST("", handlers.CreateFolder(s.Orchestrator, s.Automation))
				folders.PUT("/:folderId", handlers.RenameFolder(s.Orchestrator, s.Automation))
				folders.DELETE("/:folderId", handlers.DeleteFolder(s.Orchestrator, s.Automation))
				folders.POST("/:folderId/color", handlers.SetFolderColor(s.Orchestrator, s.Automation))
				folders.POST("/:folderId/move", handlers.MoveEmails(s.Orchestrator, s.Automation))
			}
		}

		templates := api.Group("/templates")
		{
			templates.POST("", handlers.RegisterTemplate(s.Orchestrator))
			templates.GET("/:name", handlers.GetTemplate(s.Orchestrator))
		}

		warmup := api.Group("/warmup")
		{
			warmup.POST("/cross-send", handlers.CrossSend(s.Orchestrator))
			warmup.POST("/verify", handlers.VerifyDelivery(s.Orchestrator))
			warmup.GET("/stats", handlers.NetworkStatistics(s.Orchestrator))
			warmup.POST("/cleanup", handlers.CleanupInteractions(s.Orchestrator))
		}
	}
}
