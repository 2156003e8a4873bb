package orchestrator

import (
	"context"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/emailmax/warmup/internal/enum"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
)

// VerifyDelivery checks recipient mailboxes for the message ids of SENT
// interactions. A found message advances the interaction to DELIVERED;
// a non-match leaves it unchanged since delivery may simply be pending.
// The returned map covers every requested id present in the registry.
func (s *Service) VerifyDelivery(ctx context.Context, interactionIDs []string) (map[string]*models.Interaction, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "InteractionOrchestrator.VerifyDelivery")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.Int("requested", len(interactionIDs)))

	verified := make(map[string]*models.Interaction, len(interactionIDs))
	for _, id := range interactionIDs {
		s.mu.RLock()
		interaction, ok := s.interactions[id]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		verified[id] = interaction

		if interaction.Status != enum.InteractionStatusSent || interaction.MessageID == "" {
			continue
		}

		delivered, err := s.searchRecipientMailbox(ctx, interaction)
		if err != nil {
			tracing.TraceErr(span, err)
			s.log.Warnf("delivery check failed for interaction %s: %v", id, err)
			continue
		}
		if delivered {
			s.transition(ctx, interaction, enum.InteractionStatusDelivered)
		}
	}
	return verified, nil
}

// searchRecipientMailbox opens one IMAP session against the target account
// and searches the inbox for the interaction's Message-ID header.
func (s *Service) searchRecipientMailbox(ctx context.Context, interaction *models.Interaction) (bool, error) {
	s.mu.RLock()
	target, ok := s.accounts[interaction.TargetAccountID]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	conn := s.imapFactory(target)
	if err := conn.Connect(ctx); err != nil {
		return false, err
	}
	defer conn.Close()

	if err := conn.Select(ctx, "INBOX"); err != nil {
		return false, err
	}
	uids, err := conn.SearchMessageID(ctx, interaction.MessageID)
	if err != nil {
		return false, err
	}
	return len(uids) > 0, nil
}
