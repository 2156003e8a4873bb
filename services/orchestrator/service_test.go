package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/utils"
	"github.com/emailmax/warmup/services/dispatch"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeCreds struct{}

func (fakeCreds) Resolve(ctx context.Context, credentialRef string, credentialType enum.CredentialType) (string, error) {
	return "secret", nil
}

// smtpRecorder is shared across the per-send fake connections so tests can
// observe traffic regardless of strategy.
type smtpRecorder struct {
	mu       sync.Mutex
	sent     []*models.OutboundMessage
	sequence int
	// failFor maps a recipient address to the error its sends should fail with
	failFor map[string]error
}

func (r *smtpRecorder) messages() []*models.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.OutboundMessage, len(r.sent))
	copy(out, r.sent)
	return out
}

type fakeSMTPConn struct {
	recorder *smtpRecorder
}

func (c *fakeSMTPConn) Connect(ctx context.Context) error { return nil }

func (c *fakeSMTPConn) Send(ctx context.Context, message *models.OutboundMessage) (*models.SendReceipt, error) {
	c.recorder.mu.Lock()
	defer c.recorder.mu.Unlock()

	for _, to := range message.ToAddresses {
		if err, ok := c.recorder.failFor[to]; ok {
			return nil, err
		}
	}

	c.recorder.sequence++
	message.MessageID = fmt.Sprintf("<msg-%d@test.example.com>", c.recorder.sequence)
	c.recorder.sent = append(c.recorder.sent, message)
	return &models.SendReceipt{
		MessageID: message.MessageID,
		Accepted:  message.ToAddresses,
		SentAt:    time.Now(),
	}, nil
}

func (c *fakeSMTPConn) Close() error { return nil }

type fakeIMAPConn struct {
	mu         sync.Mutex
	connectErr error
	// found lists the Message-IDs present in the fake mailbox
	found map[string]bool
}

func (c *fakeIMAPConn) Connect(ctx context.Context) error { return c.connectErr }

func (c *fakeIMAPConn) Select(ctx context.Context, folder string) error { return nil }

func (c *fakeIMAPConn) SearchMessageID(ctx context.Context, messageID string) ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.found[messageID] {
		return []uint32{42}, nil
	}
	return nil, nil
}

func (c *fakeIMAPConn) Close() error { return nil }

type testHarness struct {
	service *Service
	smtp    *smtpRecorder
	imap    *fakeIMAPConn
}

func newTestService(t *testing.T) *testHarness {
	t.Helper()

	harness := &testHarness{
		smtp: &smtpRecorder{failFor: map[string]error{}},
		imap: &fakeIMAPConn{found: map[string]bool{}},
	}

	service := NewService(getLogger(), fakeCreds{}, nil, Config{
		Dispatch: dispatch.Config{
			BaseBackoff:  time.Millisecond,
			ResultBuffer: 64,
		},
		TimeBetweenSends: time.Millisecond,
		MinInterval:      time.Millisecond,
		MaxInterval:      2 * time.Millisecond,
		SendTimeout:      time.Second,
	})
	service.smtpFactory = func(account *models.MailboxAccount) interfaces.SMTPConnection {
		return &fakeSMTPConn{recorder: harness.smtp}
	}
	service.imapFactory = func(account *models.MailboxAccount) interfaces.IMAPConnection {
		return harness.imap
	}
	service.Start(context.Background())
	t.Cleanup(service.Stop)

	harness.service = service
	return harness
}

func registerAccount(t *testing.T, s *Service, id, address string) *models.MailboxAccount {
	t.Helper()
	account := &models.MailboxAccount{
		ID:            id,
		EmailAddress:  address,
		CredentialRef: "cred-" + id,
	}
	require.True(t, s.AddAccount(context.Background(), account))
	return account
}

func registerTemplate(t *testing.T, s *Service, name string) {
	t.Helper()
	err := s.RegisterTemplate(name, &models.EmailTemplate{
		Subject:  "Quick question, {{receiver_email}}",
		BodyText: "Hi, this is {{sender_email}}. {{note}}",
	})
	require.NoError(t, err)
}

func TestAddAccount_DuplicateIDRejected(t *testing.T) {
	// Arrange
	h := newTestService(t)
	registerAccount(t, h.service, "acct1", "one@example.com")

	// Act
	added := h.service.AddAccount(context.Background(), &models.MailboxAccount{
		ID:           "acct1",
		EmailAddress: "other@example.com",
	})

	// Assert: no overwrite
	assert.False(t, added)
	account, _ := h.service.GetAccount("acct1")
	assert.Equal(t, "one@example.com", account.EmailAddress)
}

func TestRemoveAccount_UnknownIDReturnsFalse(t *testing.T) {
	// Arrange
	h := newTestService(t)

	// Act & Assert
	assert.False(t, h.service.RemoveAccount(context.Background(), "nope"))
}

func TestAddAccount_ResolvesProviderDefaults(t *testing.T) {
	// Arrange
	h := newTestService(t)

	// Act
	account := registerAccount(t, h.service, "gm", "warm@gmail.com")

	// Assert
	assert.Equal(t, enum.ProviderGmail, account.Provider)
	assert.True(t, account.SupportsIdleWatch)
	assert.Equal(t, "imap.gmail.com", account.ImapHost)
}

func TestRegisterTemplate_EmptyNameRejected(t *testing.T) {
	// Arrange
	h := newTestService(t)

	// Act
	err := h.service.RegisterTemplate("", &models.EmailTemplate{Subject: "x"})

	// Assert
	assert.ErrorIs(t, err, warmuperrors.ErrTemplateName)
}

func TestValidateAccount_BothProtocolsHealthy(t *testing.T) {
	// Arrange
	h := newTestService(t)
	registerAccount(t, h.service, "acct1", "one@example.com")

	// Act
	result, err := h.service.ValidateAccount(context.Background(), "acct1")

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Smtp.Success)
	assert.True(t, result.Imap.Success)
}

func TestValidateAccount_ReportsImapFailureIndependently(t *testing.T) {
	// Arrange
	h := newTestService(t)
	registerAccount(t, h.service, "acct1", "one@example.com")
	h.imap.connectErr = warmuperrors.NewAuthError(errors.New("LOGIN failed"))

	// Act
	result, err := h.service.ValidateAccount(context.Background(), "acct1")

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Smtp.Success)
	assert.False(t, result.Imap.Success)
	assert.Contains(t, result.Imap.Message, "LOGIN failed")
}

func TestValidateAccount_UnknownAccount(t *testing.T) {
	// Arrange
	h := newTestService(t)

	// Act
	_, err := h.service.ValidateAccount(context.Background(), "ghost")

	// Assert
	assert.ErrorIs(t, err, warmuperrors.ErrAccountNotFound)
}

func TestCleanupOldInteractions_RemovesExactlyExpired(t *testing.T) {
	// Arrange
	h := newTestService(t)
	old := utils.Now().Add(-40 * 24 * time.Hour)
	fresh := utils.Now().Add(-2 * 24 * time.Hour)

	h.service.mu.Lock()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("old-%d", i)
		h.service.interactions[id] = &models.Interaction{ID: id, CreatedAt: old}
	}
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("fresh-%d", i)
		h.service.interactions[id] = &models.Interaction{ID: id, CreatedAt: fresh}
	}
	h.service.mu.Unlock()

	// Act
	removed := h.service.CleanupOldInteractions(30)

	// Assert: expired removed regardless of status, recent untouched
	assert.Equal(t, 3, removed)
	_, oldThere := h.service.GetInteraction("old-0")
	_, freshThere := h.service.GetInteraction("fresh-0")
	assert.False(t, oldThere)
	assert.True(t, freshThere)
	assert.Equal(t, 0, h.service.CleanupOldInteractions(30))
}

func TestGetNetworkStatistics_CountsDeliveredAndSentForTopSender(t *testing.T) {
	// Arrange
	h := newTestService(t)
	registerAccount(t, h.service, "a1", "a1@example.com")
	registerAccount(t, h.service, "a2", "a2@example.com")
	registerAccount(t, h.service, "a3", "a3@example.com")

	h.service.mu.Lock()
	h.service.interactions["i1"] = &models.Interaction{ID: "i1", SourceAccountID: "a1", Status: enum.InteractionStatusDelivered, CreatedAt: utils.Now()}
	h.service.interactions["i2"] = &models.Interaction{ID: "i2", SourceAccountID: "a1", Status: enum.InteractionStatusSent, CreatedAt: utils.Now()}
	h.service.interactions["i3"] = &models.Interaction{ID: "i3", SourceAccountID: "a2", Status: enum.InteractionStatusFailed, CreatedAt: utils.Now()}
	h.service.mu.Unlock()

	// Act
	stats := h.service.GetNetworkStatistics()

	// Assert
	assert.Equal(t, 3, stats.TotalAccounts)
	assert.Equal(t, 3, stats.TotalInteractions)
	require.NotEmpty(t, stats.TopSenders)
	assert.Equal(t, "a1", stats.TopSenders[0].AccountID)
	assert.Equal(t, 2, stats.TopSenders[0].SuccessCount)
}

func TestGetNetworkStatistics_RanksTopSenders(t *testing.T) {
	// Arrange
	h := newTestService(t)
	registerAccount(t, h.service, "alpha", "alpha@example.com")
	registerAccount(t, h.service, "beta", "beta@example.com")
	registerAccount(t, h.service, "gamma", "gamma@example.com")

	record := func(id, source string, status enum.InteractionStatus) {
		h.service.mu.Lock()
		h.service.interactions[id] = &models.Interaction{
			ID:              id,
			SourceAccountID: source,
			Status:          status,
			CreatedAt:       utils.Now(),
		}
		h.service.mu.Unlock()
	}
	record("i1", "beta", enum.InteractionStatusSent)
	record("i2", "beta", enum.InteractionStatusDelivered)
	record("i3", "alpha", enum.InteractionStatusRead)
	record("i4", "alpha", enum.InteractionStatusSent)
	record("i5", "gamma", enum.InteractionStatusFailed)
	record("i6", "gamma", enum.InteractionStatusPending)

	// Act
	stats := h.service.GetNetworkStatistics()

	// Assert: failures and pendings do not count; ties break by id ascending
	assert.Equal(t, 3, stats.TotalAccounts)
	assert.Equal(t, 6, stats.TotalInteractions)
	require.Len(t, stats.TopSenders, 2)
	assert.Equal(t, "alpha", stats.TopSenders[0].AccountID)
	assert.Equal(t, 2, stats.TopSenders[0].SuccessCount)
	assert.Equal(t, "beta", stats.TopSenders[1].AccountID)
	assert.Equal(t, "alpha@example.com", stats.TopSenders[0].EmailAddress)
}
