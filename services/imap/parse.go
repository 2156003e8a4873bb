package imap

import (
	"context"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/emailmax/warmup/internal/models"
)

var fetchItems = []imap.FetchItem{
	imap.FetchEnvelope,
	imap.FetchFlags,
	imap.FetchUid,
	"BODY.PEEK[]",
}

var peekSection = func() *imap.BodySectionName {
	section, _ := imap.ParseBodySectionName("BODY.PEEK[]")
	return section
}()

// fetchRange fetches messages by sequence number and parses them. Used by the
// monitor when the watched folder grows.
func fetchRange(ctx context.Context, c *client.Client, from, to uint32) ([]*models.InboundMessage, error) {
	if from > to {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, to)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	c.Timeout = 60 * time.Second
	go func() {
		done <- c.Fetch(seqSet, fetchItems, messages)
	}()

	var parsed []*models.InboundMessage
	for msg := range messages {
		parsed = append(parsed, parseMessage(msg))
	}
	c.Timeout = 0

	if err := <-done; err != nil {
		return parsed, errors.Wrap(err, "error fetching messages")
	}
	return parsed, nil
}

// parseMessage converts a raw IMAP message into the engine's inbound model.
// The full body is parsed with enmime when available; otherwise the envelope
// alone is used.
func parseMessage(msg *imap.Message) *models.InboundMessage {
	inbound := &models.InboundMessage{
		SeqNum: msg.SeqNum,
		UID:    msg.Uid,
	}

	if msg.Envelope != nil {
		inbound.MessageID = normalizeMessageID(msg.Envelope.MessageId)
		inbound.Subject = msg.Envelope.Subject
		if !msg.Envelope.Date.IsZero() {
			date := msg.Envelope.Date
			inbound.Date = &date
		}
		if len(msg.Envelope.From) > 0 {
			inbound.From = msg.Envelope.From[0].Address()
		}
	}

	if body := msg.GetBody(peekSection); body != nil {
		envelope, err := enmime.ReadEnvelope(body)
		if err == nil {
			inbound.BodyText = envelope.Text
			if inbound.MessageID == "" {
				inbound.MessageID = normalizeMessageID(envelope.GetHeader("Message-ID"))
			}
			if inbound.Subject == "" {
				inbound.Subject = envelope.GetHeader("Subject")
			}
		}
	}

	return inbound
}

// normalizeMessageID strips the optional angle brackets so lookups match
// regardless of how the server reports the header.
func normalizeMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}
