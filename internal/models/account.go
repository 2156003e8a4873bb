package models

import (
	"time"

	"github.com/emailmax/warmup/internal/enum"
)

// MailboxAccount is one warmup participant. Immutable after registration
// except for the capability flags; connection secrets are never stored here,
// only an opaque credential reference resolved per operation.
type MailboxAccount struct {
	ID           string             `json:"id"`
	EmailAddress string             `json:"emailAddress"`
	Provider     enum.EmailProvider `json:"provider"`

	// Capability flags, resolved from the provider table at registration.
	SupportsIdleWatch bool `json:"supportsIdleWatch"`
	UsesOAuth         bool `json:"usesOAuth"`

	// IMAP configuration
	ImapHost     string             `json:"imapHost"`
	ImapPort     int                `json:"imapPort"`
	ImapUsername string             `json:"imapUsername"`
	ImapSecurity enum.EmailSecurity `json:"imapSecurity"`

	// SMTP configuration
	SmtpHost     string             `json:"smtpHost"`
	SmtpPort     int                `json:"smtpPort"`
	SmtpUsername string             `json:"smtpUsername"`
	SmtpSecurity enum.EmailSecurity `json:"smtpSecurity"`

	// CredentialRef keys the external secure store; the engine never holds
	// plaintext secrets beyond the single operation that needs them.
	CredentialRef string `json:"credentialRef"`

	CreatedAt time.Time `json:"createdAt"`
}

// ApplyProviderDefaults fills capability flags and any missing host/port
// configuration from the provider capability table.
func (a *MailboxAccount) ApplyProviderDefaults() {
	if a.Provider == "" {
		a.Provider = enum.DetectProvider(a.EmailAddress)
	}
	caps := a.Provider.Capabilities()

	// The table only grants capabilities; flags set explicitly by the caller
	// survive, so a generic provider on a custom domain can still be watched.
	a.SupportsIdleWatch = a.SupportsIdleWatch || caps.SupportsIdleWatch
	a.UsesOAuth = a.UsesOAuth || caps.UsesOAuth

	if a.ImapHost == "" && caps.ImapHost != "" {
		a.ImapHost = caps.ImapHost
		a.ImapPort = caps.ImapPort
		a.ImapSecurity = enum.EmailSecurityTLS
	}
	if a.SmtpHost == "" && caps.SmtpHost != "" {
		a.SmtpHost = caps.SmtpHost
		a.SmtpPort = caps.SmtpPort
		a.SmtpSecurity = enum.EmailSecurityStartTLS
	}
	if a.ImapUsername == "" {
		a.ImapUsername = a.EmailAddress
	}
	if a.SmtpUsername == "" {
		a.SmtpUsername = a.EmailAddress
	}
}
