package models

import (
	"fmt"
	"time"
)

// OutboundMessage is a fully resolved message ready for transmission.
type OutboundMessage struct {
	FromAddress string   `json:"fromAddress"`
	ToAddresses []string `json:"toAddresses"`
	Subject     string   `json:"subject"`
	BodyHTML    string   `json:"bodyHtml"`
	BodyText    string   `json:"bodyText"`
	MessageID   string   `json:"messageId"`
	InReplyTo   string   `json:"inReplyTo,omitempty"`
	Headers     map[string]string
}

func (m *OutboundMessage) HasRichContent() bool {
	return m.BodyHTML != ""
}

// BuildHeaders assembles the RFC 5322 header set for the message.
func (m *OutboundMessage) BuildHeaders() map[string]string {
	headers := map[string]string{
		"From":         m.FromAddress,
		"To":           joinAddresses(m.ToAddresses),
		"Subject":      m.Subject,
		"Message-ID":   m.MessageID,
		"Date":         time.Now().UTC().Format(time.RFC1123Z),
		"MIME-Version": "1.0",
	}
	if m.InReplyTo != "" {
		headers["In-Reply-To"] = m.InReplyTo
		headers["References"] = m.InReplyTo
	}
	for k, v := range m.Headers {
		headers[k] = v
	}
	return headers
}

func joinAddresses(addrs []string) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}

// SendReceipt is returned by a successful SMTP transmission.
type SendReceipt struct {
	MessageID string    `json:"messageId"`
	Accepted  []string  `json:"accepted"`
	SentAt    time.Time `json:"sentAt"`
}

// InboundMessage is a parsed message observed on a watched mailbox.
type InboundMessage struct {
	SeqNum    uint32     `json:"seqNum"`
	UID       uint32     `json:"uid"`
	MessageID string     `json:"messageId"`
	From      string     `json:"from"`
	Subject   string     `json:"subject"`
	BodyText  string     `json:"bodyText"`
	Date      *time.Time `json:"date,omitempty"`
}

func (m *InboundMessage) String() string {
	return fmt.Sprintf("seq=%d uid=%d message-id=%s", m.SeqNum, m.UID, m.MessageID)
}
