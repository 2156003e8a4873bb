package orchestrator

import (
	"context"

	"github.com/opentracing/opentracing-go"

	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
)

// ValidateAccount probes both protocol endpoints of a registered account:
// an SMTP connect plus authenticate and an IMAP login. Each protocol is
// reported independently so a half-configured mailbox is visible as such.
func (s *Service) ValidateAccount(ctx context.Context, accountID string) (*models.ValidationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "InteractionOrchestrator.ValidateAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	s.mu.RLock()
	account, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		tracing.TraceErr(span, warmuperrors.ErrAccountNotFound)
		return nil, warmuperrors.ErrAccountNotFound
	}

	result := &models.ValidationResult{
		AccountID: accountID,
		Provider:  account.Provider,
	}

	result.Smtp = s.checkSmtp(ctx, account)
	result.Imap = s.checkImap(ctx, account)

	if !result.Smtp.Success || !result.Imap.Success {
		s.log.Warnf("account %s failed validation: smtp=%v imap=%v",
			accountID, result.Smtp.Success, result.Imap.Success)
	}
	return result, nil
}

func (s *Service) checkSmtp(ctx context.Context, account *models.MailboxAccount) models.ProtocolCheck {
	conn := s.smtpFactory(account)
	if err := conn.Connect(ctx); err != nil {
		return models.ProtocolCheck{Success: false, Message: err.Error()}
	}
	conn.Close()
	return models.ProtocolCheck{Success: true, Message: "connected and authenticated"}
}

func (s *Service) checkImap(ctx context.Context, account *models.MailboxAccount) models.ProtocolCheck {
	conn := s.imapFactory(account)
	if err := conn.Connect(ctx); err != nil {
		return models.ProtocolCheck{Success: false, Message: err.Error()}
	}
	conn.Close()
	return models.ProtocolCheck{Success: true, Message: "connected and authenticated"}
}
