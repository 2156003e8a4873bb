package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
	"github.com/emailmax/warmup/services/automation"
	"github.com/emailmax/warmup/services/orchestrator"
)

// ListAccounts returns all registered warmup accounts
func ListAccounts(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"accounts": orchestratorService.ListAccounts()})
	}
}

// GetAccount returns one account by id
func GetAccount(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := orchestratorService.GetAccount(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": warmuperrors.ErrAccountNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

// AddAccount registers a new warmup account
func AddAccount(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "AddAccount")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var account models.MailboxAccount
		if err := c.ShouldBindJSON(&account); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if account.EmailAddress == "" {
			err := errors.New("emailAddress is required")
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !orchestratorService.AddAccount(ctx, &account) {
			c.JSON(http.StatusConflict, gin.H{"error": warmuperrors.ErrAccountExists.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"status": "account registered", "id": account.ID})
	}
}

// RemoveAccount deregisters a warmup account, stops its monitor and tears
// down any open automation session
func RemoveAccount(orchestratorService *orchestrator.Service, drivers *automation.Factory) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !orchestratorService.RemoveAccount(c.Request.Context(), id) {
			c.JSON(http.StatusNotFound, gin.H{"error": warmuperrors.ErrAccountNotFound.Error()})
			return
		}
		if err := drivers.CloseAccount(id); err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "account removed", "id": id, "warning": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "account removed", "id": id})
	}
}

// ValidateAccount probes the account's SMTP and IMAP endpoints
func ValidateAccount(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := orchestratorService.ValidateAccount(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, warmuperrors.ErrAccountNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
