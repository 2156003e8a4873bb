package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/tracing"
	"github.com/emailmax/warmup/services/automation"
	"github.com/emailmax/warmup/services/orchestrator"
)

// accountDriver resolves the account and its automation session. Writes the
// error response itself and returns nil when the request cannot proceed.
func accountDriver(c *gin.Context, orchestratorService *orchestrator.Service, drivers *automation.Factory) interfaces.AutomationDriver {
	account, ok := orchestratorService.GetAccount(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": warmuperrors.ErrAccountNotFound.Error()})
		return nil
	}

	driver, err := drivers.DriverFor(c.Request.Context(), account)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errors.Wrap(err, "automation session unavailable").Error()})
		return nil
	}
	return driver
}

// respondOutcome maps an automation outcome to an HTTP status. Business
// conditions come back as structured responses, not 500s.
func respondOutcome(c *gin.Context, result *interfaces.AutomationResult, successStatus int) {
	switch result.Outcome {
	case enum.AutomationSuccess:
		c.JSON(successStatus, result)
	case enum.AutomationNotFound:
		c.JSON(http.StatusNotFound, result)
	case enum.AutomationSystemFolder:
		c.JSON(http.StatusConflict, result)
	default:
		c.JSON(http.StatusUnprocessableEntity, result)
	}
}

// ListFolders returns the account's folders; ?q= filters by name
func ListFolders(orchestratorService *orchestrator.Service, drivers *automation.Factory) gin.HandlerFunc {
	return func(c *gin.Context) {
		driver := accountDriver(c, orchestratorService, drivers)
		if driver == nil {
			return
		}

		if term := c.Query("q"); term != "" {
			c.JSON(http.StatusOK, gin.H{"folders": driver.SearchFolders(term)})
			return
		}

		folders, err := driver.ListFolders(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"folders": folders})
	}
}

// CreateFolder creates a folder through the account's webmail UI
func CreateFolder(orchestratorService *orchestrator.Service, drivers *automation.Factory) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "CreateFolder")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		driver := accountDriver(c, orchestratorService, drivers)
		if driver == nil {
			return
		}

		result, err := driver.CreateFolder(ctx, request.Name)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondOutcome(c, result, http.StatusCreated)
	}
}

// RenameFolder renames a non-system folder
func RenameFolder(orchestratorService *orchestrator.Service, drivers *automation.Factory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		driver := accountDriver(c, orchestratorService, drivers)
		if driver == nil {
			return
		}

		result, err := driver.RenameFolder(c.Request.Context(), c.Param("folderId"), request.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondOutcome(c, result, http.StatusOK)
	}
}

// DeleteFolder removes a non-system folder
func DeleteFolder(orchestratorService *orchestrator.Service, drivers *automation.Factory) gin.HandlerFunc {
	return func(c *gin.Context) {
		driver := accountDriver(c, orchestratorService, drivers)
		if driver == nil {
			return
		}

		result, err := driver.DeleteFolder(c.Request.Context(), c.Param("folderId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondOutcome(c, result, http.StatusOK)
	}
}

// MoveEmails files messages into a destination folder
func MoveEmails(orchestratorService *orchestrator.Service, drivers *automation.Factory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			MessageIDs []string `json:"messageIds"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		driver := accountDriver(c, orchestratorService, drivers)
		if driver == nil {
			return
		}

		result, err := driver.MoveEmailsToFolder(c.Request.Context(), request.MessageIDs, c.Param("folderId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondOutcome(c, result, http.StatusOK)
	}
}

// SetFolderColor assigns a label color where the provider supports it
func SetFolderColor(orchestratorService *orchestrator.Service, drivers *automation.Factory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Color string `json:"color"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		driver := accountDriver(c, orchestratorService, drivers)
		if driver == nil {
			return
		}

		result, err := driver.SetFolderColor(c.Request.Context(), c.Param("folderId"), request.Color)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondOutcome(c, result, http.StatusOK)
	}
}
