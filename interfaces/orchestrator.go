package interfaces

import (
	"context"

	"github.com/emailmax/warmup/internal/models"
)

// InteractionOrchestrator coordinates cross-account warmup traffic. Accounts,
// templates and the interaction registry are owned exclusively by one
// orchestrator instance.
type InteractionOrchestrator interface {
	AddAccount(ctx context.Context, account *models.MailboxAccount) bool
	RemoveAccount(ctx context.Context, accountID string) bool
	GetAccount(accountID string) (*models.MailboxAccount, bool)

	RegisterTemplate(name string, template *models.EmailTemplate) error
	GetTemplate(name string) (*models.EmailTemplate, bool)

	PerformCrossSend(ctx context.Context, senderIDs, receiverIDs []string, templateName string,
		variables map[string]string, config *models.CrossSendConfig) (*models.CrossSendResult, error)
	VerifyDelivery(ctx context.Context, interactionIDs []string) (map[string]*models.Interaction, error)
	ValidateAccount(ctx context.Context, accountID string) (*models.ValidationResult, error)

	GetNetworkStatistics() *models.NetworkStatistics
	CleanupOldInteractions(maxAgeDays int) int

	Stop()
}
