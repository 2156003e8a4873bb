package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/services/orchestrator"
)

// RegisterTemplate upserts a named email template
func RegisterTemplate(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var template models.EmailTemplate
		if err := c.ShouldBindJSON(&template); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := orchestratorService.RegisterTemplate(template.Name, &template); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"status": "template registered", "name": template.Name})
	}
}

// GetTemplate returns one template by name
func GetTemplate(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		template, ok := orchestratorService.GetTemplate(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": warmuperrors.ErrTemplateNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, template)
	}
}
