package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emailmax/warmup/services/orchestrator"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status returns the dispatch queue snapshot
func Status(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, orchestratorService.QueueStats())
	}
}
