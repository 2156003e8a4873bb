package interfaces

import (
	"context"

	"github.com/emailmax/warmup/internal/enum"
	"github.com/emailmax/warmup/internal/models"
)

// SMTPConnection is a single authenticated send session to one mailbox.
// Callers must Close on every exit path; a failed Connect leaves no resources
// allocated.
type SMTPConnection interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, message *models.OutboundMessage) (*models.SendReceipt, error)
	Close() error
}

// IMAPConnection is a single authenticated receive session to one mailbox.
type IMAPConnection interface {
	Connect(ctx context.Context) error
	Select(ctx context.Context, folder string) error
	// SearchMessageID looks for a message by its Message-ID header in the
	// currently selected folder and returns matching UIDs.
	SearchMessageID(ctx context.Context, messageID string) ([]uint32, error)
	Close() error
}

// CredentialResolver looks up secrets from the external secure store. Secrets
// are resolved on demand and must not be cached beyond the operation that
// needs them.
type CredentialResolver interface {
	Resolve(ctx context.Context, credentialRef string, credentialType enum.CredentialType) (string, error)
}
