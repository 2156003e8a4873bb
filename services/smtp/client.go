package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
	"github.com/emailmax/warmup/internal/utils"
)

const DefaultConnectTimeout = 5 * time.Second

// Connection is a single authenticated SMTP session to one mailbox. One
// Connection owns at most one live socket; Close must be called on every
// exit path.
type Connection struct {
	account     *models.MailboxAccount
	credentials interfaces.CredentialResolver

	conn   net.Conn
	client *smtp.Client
}

func NewConnection(account *models.MailboxAccount, credentials interfaces.CredentialResolver) *Connection {
	return &Connection{
		account:     account,
		credentials: credentials,
	}
}

// Connect dials the SMTP server, negotiates TLS per the account's security
// mode and authenticates. A failed connect leaves no resources allocated.
func (c *Connection) Connect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPConnection.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, c.account.ID)

	if c.client != nil {
		return nil
	}

	password, err := c.credentials.Resolve(ctx, c.account.CredentialRef, enum.CredentialSmtpPassword)
	if err != nil {
		tracing.TraceErr(span, err)
		return warmuperrors.NewAuthError(err)
	}

	addr := fmt.Sprintf("%s:%d", c.account.SmtpHost, c.account.SmtpPort)
	dialer := &net.Dialer{Timeout: connectTimeout(ctx)}

	var conn net.Conn
	if c.account.SmtpSecurity == enum.EmailSecurityTLS || c.account.SmtpSecurity == enum.EmailSecuritySSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: c.account.SmtpHost})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to connect to %s", addr)
		tracing.TraceErr(span, err)
		return warmuperrors.NewNetworkError(err)
	}

	client, err := smtp.NewClient(conn, c.account.SmtpHost)
	if err != nil {
		conn.Close()
		err = errors.Wrap(err, "SMTP handshake failed")
		tracing.TraceErr(span, err)
		return warmuperrors.NewProtocolError(err)
	}

	if c.account.SmtpSecurity == enum.EmailSecurityStartTLS {
		if err = client.StartTLS(&tls.Config{ServerName: c.account.SmtpHost}); err != nil {
			client.Close()
			err = errors.Wrap(err, "failed to start TLS")
			tracing.TraceErr(span, err)
			return warmuperrors.NewProtocolError(err)
		}
	}

	auth := smtp.PlainAuth("", c.account.SmtpUsername, password, c.account.SmtpHost)
	if err = client.Auth(auth); err != nil {
		client.Close()
		err = errors.Wrap(err, "SMTP authentication failed")
		tracing.TraceErr(span, err)
		return warmuperrors.NewAuthError(err)
	}

	c.conn = conn
	c.client = client
	return nil
}

// Send transmits one message over the established session.
func (c *Connection) Send(ctx context.Context, message *models.OutboundMessage) (*models.SendReceipt, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SMTPConnection.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, c.account.ID)

	if c.client == nil {
		err := errors.New("not connected")
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err := c.validateMessage(message); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if message.MessageID == "" {
		message.MessageID = utils.GenerateMessageID(senderDomain(message.FromAddress), "")
	}

	if err := c.client.Mail(message.FromAddress); err != nil {
		err = errors.Wrap(err, "SMTP MAIL command failed")
		tracing.TraceErr(span, err)
		return nil, warmuperrors.NewProtocolError(err)
	}

	accepted := make([]string, 0, len(message.ToAddresses))
	for _, recipient := range message.ToAddresses {
		if err := c.client.Rcpt(recipient); err != nil {
			err = errors.Wrapf(err, "SMTP RCPT command failed for %s", recipient)
			tracing.TraceErr(span, err)
			return nil, warmuperrors.NewProtocolError(err)
		}
		accepted = append(accepted, recipient)
	}

	dataWriter, err := c.client.Data()
	if err != nil {
		err = errors.Wrap(err, "SMTP DATA command failed")
		tracing.TraceErr(span, err)
		return nil, warmuperrors.NewNetworkError(err)
	}

	body := BuildMessage(message)
	if _, err = dataWriter.Write(body); err != nil {
		dataWriter.Close()
		err = errors.Wrap(err, "failed to write message data")
		tracing.TraceErr(span, err)
		return nil, warmuperrors.NewNetworkError(err)
	}
	if err = dataWriter.Close(); err != nil {
		err = errors.Wrap(err, "failed to close data writer")
		tracing.TraceErr(span, err)
		return nil, warmuperrors.NewNetworkError(err)
	}

	return &models.SendReceipt{
		MessageID: message.MessageID,
		Accepted:  accepted,
		SentAt:    utils.Now(),
	}, nil
}

// Close releases the session and underlying socket. Safe to call when not
// connected.
func (c *Connection) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Quit()
	if err != nil {
		c.client.Close()
	}
	c.client = nil
	c.conn = nil
	return err
}

// validateMessage rejects malformed messages before any SMTP command runs.
// Failures are permanent: retrying cannot make a bad address valid, so the
// queue dead-letters them on the first attempt.
func (c *Connection) validateMessage(message *models.OutboundMessage) error {
	if message == nil {
		return warmuperrors.NewPermanentError(errors.New("message cannot be nil"))
	}
	if message.FromAddress == "" {
		return warmuperrors.NewPermanentError(errors.New("from address is required"))
	}
	validation := mailvalidate.ValidateEmailSyntax(message.FromAddress)
	if !validation.IsValid {
		return warmuperrors.NewPermanentError(fmt.Errorf("from address %q is not valid", message.FromAddress))
	}
	if len(message.ToAddresses) == 0 {
		return warmuperrors.NewPermanentError(errors.New("at least one recipient is required"))
	}
	for _, recipient := range message.ToAddresses {
		if v := mailvalidate.ValidateEmailSyntax(recipient); !v.IsValid {
			return warmuperrors.NewPermanentError(fmt.Errorf("recipient address %q is not valid", recipient))
		}
	}
	if message.Subject == "" {
		return warmuperrors.NewPermanentError(errors.New("message must have a subject"))
	}
	if message.BodyText == "" && message.BodyHTML == "" {
		return warmuperrors.NewPermanentError(errors.New("message must have either text or HTML content"))
	}
	return nil
}

func senderDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return "localhost"
	}
	return address[at+1:]
}

func connectTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < DefaultConnectTimeout {
			return remaining
		}
	}
	return DefaultConnectTimeout
}
