package smtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/models"
)

func validOutbound() *models.OutboundMessage {
	return &models.OutboundMessage{
		FromAddress: "sender@example.com",
		ToAddresses: []string{"receiver@example.com"},
		Subject:     "hello",
		BodyText:    "hello there",
	}
}

func TestValidateMessage_FailuresArePermanent(t *testing.T) {
	conn := &Connection{}

	tests := []struct {
		name   string
		mutate func(m *models.OutboundMessage)
	}{
		{"missing from", func(m *models.OutboundMessage) { m.FromAddress = "" }},
		{"invalid from", func(m *models.OutboundMessage) { m.FromAddress = "not an address" }},
		{"no recipients", func(m *models.OutboundMessage) { m.ToAddresses = nil }},
		{"invalid recipient", func(m *models.OutboundMessage) { m.ToAddresses = []string{"not-an-address"} }},
		{"missing subject", func(m *models.OutboundMessage) { m.Subject = "" }},
		{"empty body", func(m *models.OutboundMessage) { m.BodyText = ""; m.BodyHTML = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message := validOutbound()
			tt.mutate(message)

			err := conn.validateMessage(message)

			require.Error(t, err)
			// The queue must dead-letter these on the first attempt.
			assert.True(t, warmuperrors.IsPermanent(err))
		})
	}
}

func TestValidateMessage_AcceptsWellFormedMessage(t *testing.T) {
	conn := &Connection{}
	assert.NoError(t, conn.validateMessage(validOutbound()))
}

func TestBuildMessage_QuotedPrintableEncodesBody(t *testing.T) {
	// Arrange: non-ASCII and a literal '=' in the body
	message := validOutbound()
	message.BodyText = "café at 100% = fun"

	// Act
	wire := string(BuildMessage(message))

	// Assert: body matches the declared transfer encoding
	assert.Contains(t, wire, "Content-Transfer-Encoding: quoted-printable")
	assert.Contains(t, wire, "caf=C3=A9 at 100% =3D fun")
	assert.NotContains(t, wire, "café")
}

func TestBuildMessage_MultipartAlternative(t *testing.T) {
	// Arrange
	message := validOutbound()
	message.MessageID = "<m1@example.com>"
	message.BodyHTML = "<p>hello = world</p>"

	// Act
	wire := string(BuildMessage(message))

	// Assert
	assert.Contains(t, wire, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, wire, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, wire, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, wire, "<p>hello =3D world</p>")
	assert.Contains(t, wire, "Message-ID: <m1@example.com>")
	assert.Equal(t, 2, strings.Count(wire, "Content-Transfer-Encoding: quoted-printable"))
}

func TestSenderDomain(t *testing.T) {
	assert.Equal(t, "example.com", senderDomain("user@example.com"))
	assert.Equal(t, "localhost", senderDomain("no-at-sign"))
}
