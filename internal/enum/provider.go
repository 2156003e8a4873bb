package enum

import "strings"

type EmailProvider string

const (
	ProviderGmail   EmailProvider = "gmail"
	ProviderOutlook EmailProvider = "outlook"
	ProviderYahoo   EmailProvider = "yahoo"
	ProviderGeneric EmailProvider = "generic"
)

func (t EmailProvider) String() string {
	return string(t)
}

// ProviderCapabilities is resolved once at account registration. Capability
// checks elsewhere in the engine go through this table, never through
// substring matching on the address.
type ProviderCapabilities struct {
	SupportsIdleWatch   bool
	SupportsFolderColor bool
	UsesOAuth           bool
	ImapHost            string
	ImapPort            int
	SmtpHost            string
	SmtpPort            int
}

var providerCapabilities = map[EmailProvider]ProviderCapabilities{
	ProviderGmail: {
		SupportsIdleWatch:   true,
		SupportsFolderColor: true,
		UsesOAuth:           true,
		ImapHost:            "imap.gmail.com",
		ImapPort:            993,
		SmtpHost:            "smtp.gmail.com",
		SmtpPort:            587,
	},
	ProviderOutlook: {
		SupportsIdleWatch:   true,
		SupportsFolderColor: false,
		UsesOAuth:           true,
		ImapHost:            "outlook.office365.com",
		ImapPort:            993,
		SmtpHost:            "smtp.office365.com",
		SmtpPort:            587,
	},
	ProviderYahoo: {
		SupportsIdleWatch:   true,
		SupportsFolderColor: false,
		UsesOAuth:           false,
		ImapHost:            "imap.mail.yahoo.com",
		ImapPort:            993,
		SmtpHost:            "smtp.mail.yahoo.com",
		SmtpPort:            587,
	},
	ProviderGeneric: {
		SupportsIdleWatch:   false,
		SupportsFolderColor: false,
		UsesOAuth:           false,
	},
}

func (t EmailProvider) Capabilities() ProviderCapabilities {
	caps, ok := providerCapabilities[t]
	if !ok {
		return providerCapabilities[ProviderGeneric]
	}
	return caps
}

// DetectProvider maps an email address to a known provider by domain.
// Unknown domains resolve to the generic provider; defaults for those come
// from the account's explicit connection parameters.
func DetectProvider(address string) EmailProvider {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return ProviderGeneric
	}
	domain := strings.ToLower(address[at+1:])

	switch {
	case strings.HasSuffix(domain, "gmail.com") || strings.HasSuffix(domain, "googlemail.com"):
		return ProviderGmail
	case strings.HasSuffix(domain, "outlook.com") || strings.HasSuffix(domain, "hotmail.com") || strings.HasSuffix(domain, "live.com"):
		return ProviderOutlook
	case strings.HasSuffix(domain, "yahoo.com"):
		return ProviderYahoo
	default:
		return ProviderGeneric
	}
}
