package enum

type EmailSecurity string

const (
	EmailSecurityNone     EmailSecurity = "none"
	EmailSecuritySSL      EmailSecurity = "ssl"
	EmailSecurityTLS      EmailSecurity = "tls"
	EmailSecurityStartTLS EmailSecurity = "startTLS"
)

func (t EmailSecurity) String() string {
	return string(t)
}

type QueueItemState string

const (
	QueueItemPending    QueueItemState = "pending"
	QueueItemInFlight   QueueItemState = "in_flight"
	QueueItemSent       QueueItemState = "sent"
	QueueItemDeadLetter QueueItemState = "dead_letter"
)

func (t QueueItemState) String() string {
	return string(t)
}

type CredentialType string

const (
	CredentialImapPassword CredentialType = "imap_password"
	CredentialSmtpPassword CredentialType = "smtp_password"
	CredentialOAuthToken   CredentialType = "oauth_token"
	CredentialWebmail      CredentialType = "webmail_password"
)

func (t CredentialType) String() string {
	return string(t)
}

// AutomationOutcome is the status vocabulary of the UI automation driver.
// These are expected business conditions, not errors.
type AutomationOutcome string

const (
	AutomationSuccess      AutomationOutcome = "success"
	AutomationNotFound     AutomationOutcome = "not_found"
	AutomationSystemFolder AutomationOutcome = "system_folder"
	AutomationError        AutomationOutcome = "error"
)

func (t AutomationOutcome) String() string {
	return string(t)
}

type MonitorState string

const (
	MonitorDisconnected MonitorState = "disconnected"
	MonitorConnecting   MonitorState = "connecting"
	MonitorWatching     MonitorState = "watching"
)

func (t MonitorState) String() string {
	return string(t)
}
