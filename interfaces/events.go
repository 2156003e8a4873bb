package interfaces

import (
	"context"

	"github.com/emailmax/warmup/internal/models"
)

// InteractionEventPublisher broadcasts interaction lifecycle transitions to
// an external broker. A nil publisher is valid and disables publishing.
type InteractionEventPublisher interface {
	PublishInteractionEvent(ctx context.Context, eventType string, interaction *models.Interaction) error
	Close() error
}
