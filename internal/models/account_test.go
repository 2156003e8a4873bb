package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emailmax/warmup/internal/enum"
)

func TestApplyProviderDefaults_KnownProviderFillsEverything(t *testing.T) {
	// Arrange
	account := &MailboxAccount{EmailAddress: "warm@gmail.com"}

	// Act
	account.ApplyProviderDefaults()

	// Assert
	assert.Equal(t, enum.ProviderGmail, account.Provider)
	assert.True(t, account.SupportsIdleWatch)
	assert.True(t, account.UsesOAuth)
	assert.Equal(t, "imap.gmail.com", account.ImapHost)
	assert.Equal(t, 993, account.ImapPort)
	assert.Equal(t, "warm@gmail.com", account.ImapUsername)
	assert.Equal(t, "smtp.gmail.com", account.SmtpHost)
}

func TestApplyProviderDefaults_ExplicitCapabilityFlagsSurvive(t *testing.T) {
	// Arrange: a custom-domain server that does support IDLE
	account := &MailboxAccount{
		EmailAddress:      "warm@company.example.com",
		SupportsIdleWatch: true,
		ImapHost:          "mail.company.example.com",
		ImapPort:          993,
	}

	// Act
	account.ApplyProviderDefaults()

	// Assert: the generic table must not strip the caller's flag
	assert.Equal(t, enum.ProviderGeneric, account.Provider)
	assert.True(t, account.SupportsIdleWatch)
	assert.False(t, account.UsesOAuth)
	assert.Equal(t, "mail.company.example.com", account.ImapHost)
}

func TestApplyProviderDefaults_ExplicitHostsNotOverwritten(t *testing.T) {
	// Arrange
	account := &MailboxAccount{
		EmailAddress: "warm@gmail.com",
		ImapHost:     "imap.relay.example.com",
		ImapPort:     1993,
		SmtpHost:     "smtp.relay.example.com",
		SmtpPort:     2525,
		ImapUsername: "warm-user",
	}

	// Act
	account.ApplyProviderDefaults()

	// Assert
	assert.Equal(t, "imap.relay.example.com", account.ImapHost)
	assert.Equal(t, 1993, account.ImapPort)
	assert.Equal(t, "smtp.relay.example.com", account.SmtpHost)
	assert.Equal(t, "warm-user", account.ImapUsername)
	assert.Equal(t, "warm@gmail.com", account.SmtpUsername)
}
