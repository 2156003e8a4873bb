package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	commandTimeout        = 30 * time.Second
)

// Connection is a single authenticated IMAP session to one mailbox.
type Connection struct {
	account     *models.MailboxAccount
	credentials interfaces.CredentialResolver

	client *client.Client
	folder string
}

func NewConnection(account *models.MailboxAccount, credentials interfaces.CredentialResolver) *Connection {
	return &Connection{
		account:     account,
		credentials: credentials,
	}
}

// Connect dials the IMAP server and logs in. A failed connect leaves no
// resources allocated.
func (c *Connection) Connect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnection.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, c.account.ID)

	if c.client != nil {
		return nil
	}

	password, err := c.credentials.Resolve(ctx, c.account.CredentialRef, enum.CredentialImapPassword)
	if err != nil {
		tracing.TraceErr(span, err)
		return warmuperrors.NewAuthError(err)
	}

	serverAddr := fmt.Sprintf("%s:%d", c.account.ImapHost, c.account.ImapPort)
	dialer := &net.Dialer{
		Timeout:   connectTimeout(ctx),
		KeepAlive: 30 * time.Second,
	}

	var imapClient *client.Client
	if c.account.ImapSecurity == enum.EmailSecurityTLS || c.account.ImapSecurity == enum.EmailSecuritySSL {
		tlsConfig := &tls.Config{ServerName: c.account.ImapHost}
		imapClient, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		imapClient, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to connect to %s", serverAddr)
		tracing.TraceErr(span, err)
		return warmuperrors.NewNetworkError(err)
	}

	imapClient.Timeout = commandTimeout
	if _, err = imapClient.Capability(); err != nil {
		imapClient.Logout()
		err = errors.Wrap(err, "capability check failed")
		tracing.TraceErr(span, err)
		return warmuperrors.NewProtocolError(err)
	}

	if err = imapClient.Login(c.account.ImapUsername, password); err != nil {
		imapClient.Logout()
		err = errors.Wrap(err, "login failed")
		tracing.TraceErr(span, err)
		return warmuperrors.NewAuthError(err)
	}
	imapClient.Timeout = 0

	c.client = imapClient
	return nil
}

// Select opens a folder. Required before search or watch operations.
func (c *Connection) Select(ctx context.Context, folder string) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPConnection.Select")
	defer span.Finish()
	tracing.TagAccount(span, c.account.ID)
	tracing.TagFolder(span, folder)

	if c.client == nil {
		return errors.New("not connected")
	}

	c.client.Timeout = commandTimeout
	_, err := c.client.Select(folder, false)
	c.client.Timeout = 0
	if err != nil {
		err = errors.Wrapf(err, "error selecting folder %s", folder)
		tracing.TraceErr(span, err)
		return err
	}
	c.folder = folder
	return nil
}

// SearchMessageID finds messages by Message-ID header in the selected folder.
func (c *Connection) SearchMessageID(ctx context.Context, messageID string) ([]uint32, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPConnection.SearchMessageID")
	defer span.Finish()
	tracing.TagAccount(span, c.account.ID)

	if c.client == nil {
		return nil, errors.New("not connected")
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-ID", messageID)

	c.client.Timeout = commandTimeout
	uids, err := c.client.UidSearch(criteria)
	c.client.Timeout = 0
	if err != nil {
		err = errors.Wrap(err, "message-id search failed")
		tracing.TraceErr(span, err)
		return nil, err
	}
	return uids, nil
}

// Close logs out and releases the socket. Safe to call when not connected.
func (c *Connection) Close() error {
	if c.client == nil {
		return nil
	}
	c.client.Timeout = 5 * time.Second
	err := c.client.Logout()
	c.client = nil
	return err
}

// Client exposes the underlying go-imap client for the monitor's IDLE loop.
func (c *Connection) Client() *client.Client {
	return c.client
}

// IsConnectionError reports whether an error indicates the session is gone
// and a reconnect is needed.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "connection reset")
}

func connectTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < DefaultConnectTimeout {
			return remaining
		}
	}
	return DefaultConnectTimeout
}
