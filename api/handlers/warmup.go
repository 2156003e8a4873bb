package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
	"github.com/emailmax/warmup/services/orchestrator"
)

type CrossSendRequest struct {
	SenderIDs    []string                `json:"senderIds"`
	ReceiverIDs  []string                `json:"receiverIds"`
	TemplateName string                  `json:"templateName"`
	Variables    map[string]string       `json:"variables"`
	Config       *models.CrossSendConfig `json:"config"`
}

type VerifyDeliveryRequest struct {
	InteractionIDs []string `json:"interactionIds"`
}

type CleanupRequest struct {
	MaxAgeDays int `json:"maxAgeDays"`
}

// CrossSend runs one warmup batch over the requested senders and receivers
func CrossSend(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "CrossSend")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request CrossSendRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := orchestratorService.PerformCrossSend(ctx,
			request.SenderIDs, request.ReceiverIDs, request.TemplateName, request.Variables, request.Config)
		if err != nil {
			tracing.TraceErr(span, err)
			switch {
			case errors.Is(err, warmuperrors.ErrNoValidSenders),
				errors.Is(err, warmuperrors.ErrNoValidReceivers),
				errors.Is(err, warmuperrors.ErrTemplateNotFound):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// VerifyDelivery checks recipient mailboxes for sent interactions
func VerifyDelivery(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request VerifyDeliveryRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		verified, err := orchestratorService.VerifyDelivery(c.Request.Context(), request.InteractionIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"interactions": verified})
	}
}

// NetworkStatistics returns the warmup network snapshot
func NetworkStatistics(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, orchestratorService.GetNetworkStatistics())
	}
}

// CleanupInteractions removes interactions older than the retention window
func CleanupInteractions(orchestratorService *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request CleanupRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if request.MaxAgeDays <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "maxAgeDays must be positive"})
			return
		}

		removed := orchestratorService.CleanupOldInteractions(request.MaxAgeDays)
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}
