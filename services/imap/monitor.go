package imap

import (
	"context"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
)

const (
	DefaultIdleTimeout         = 5 * time.Minute
	DefaultReconnectBackoff    = time.Second
	DefaultMaxReconnectBackoff = 2 * time.Minute
	DefaultMaxReconnects       = 5
)

type MonitorConfig struct {
	// IdleTimeout forces a watch re-issue even without a server push; some
	// servers drop IDLE sessions that are never refreshed.
	IdleTimeout         time.Duration
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
	MaxReconnects       int
}

func (c *MonitorConfig) applyDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = DefaultReconnectBackoff
	}
	if c.MaxReconnectBackoff <= 0 {
		c.MaxReconnectBackoff = DefaultMaxReconnectBackoff
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = DefaultMaxReconnects
	}
}

type reselectRequest struct {
	folder string
	reply  chan error
}

// Monitor watches one mailbox folder over IMAP IDLE and dispatches typed
// events to registered listeners. State machine:
// disconnected -> connecting -> watching, with reconnection on unexpected
// drops up to a capped retry count.
type Monitor struct {
	account     *models.MailboxAccount
	credentials interfaces.CredentialResolver
	log         logger.Logger
	config      MonitorConfig

	mu        sync.Mutex
	state     enum.MonitorState
	conn      *Connection
	folder    string
	lastCount uint32
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	reselect chan reselectRequest

	listenerMu         sync.RWMutex
	onNewMessage       []func(msg *models.InboundMessage)
	onMessageFlagged   []func(seqNum uint32, flags []string)
	onMessageDeleted   []func(seqNum uint32)
	onConnectionError  []func(err error)
	onConnectionClosed []func()
}

func NewMonitor(account *models.MailboxAccount, folder string, credentials interfaces.CredentialResolver, log logger.Logger, config MonitorConfig) *Monitor {
	config.applyDefaults()
	return &Monitor{
		account:     account,
		credentials: credentials,
		log:         log,
		config:      config,
		folder:      folder,
		state:       enum.MonitorDisconnected,
		reselect:    make(chan reselectRequest),
	}
}

func (m *Monitor) OnNewMessage(listener func(msg *models.InboundMessage)) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.onNewMessage = append(m.onNewMessage, listener)
}

func (m *Monitor) OnMessageFlagged(listener func(seqNum uint32, flags []string)) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.onMessageFlagged = append(m.onMessageFlagged, listener)
}

func (m *Monitor) OnMessageDeleted(listener func(seqNum uint32)) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.onMessageDeleted = append(m.onMessageDeleted, listener)
}

func (m *Monitor) OnConnectionError(listener func(err error)) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.onConnectionError = append(m.onConnectionError, listener)
}

func (m *Monitor) OnConnectionClosed(listener func()) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.onConnectionClosed = append(m.onConnectionClosed, listener)
}

func (m *Monitor) State() enum.MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) setState(state enum.MonitorState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// StartListening connects, selects the folder and enters the watching state.
// Fails when the account lacks idle watch support or the connection cannot
// be established.
func (m *Monitor) StartListening(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Monitor.StartListening")
	defer span.Finish()
	tracing.TagComponentMonitor(span)
	tracing.TagAccount(span, m.account.ID)
	tracing.TagFolder(span, m.folder)

	if !m.account.SupportsIdleWatch {
		tracing.TraceErr(span, warmuperrors.ErrIdleNotSupported)
		return warmuperrors.ErrIdleNotSupported
	}

	m.mu.Lock()
	if m.state != enum.MonitorDisconnected {
		m.mu.Unlock()
		return errors.New("monitor already started")
	}
	m.state = enum.MonitorConnecting
	m.mu.Unlock()

	conn := NewConnection(m.account, m.credentials)
	connectCtx, cancelConnect := context.WithTimeout(ctx, DefaultConnectTimeout)
	err := conn.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		m.setState(enum.MonitorDisconnected)
		tracing.TraceErr(span, err)
		return err
	}

	if err := conn.Select(ctx, m.folder); err != nil {
		conn.Close()
		m.setState(enum.MonitorDisconnected)
		tracing.TraceErr(span, err)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.conn = conn
	m.cancel = cancel
	m.state = enum.MonitorWatching
	if mbox := conn.Client().Mailbox(); mbox != nil {
		m.lastCount = mbox.Messages
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(runCtx)

	return nil
}

// StopListening cancels any in-flight watch and closes the connection.
// Idempotent.
func (m *Monitor) StopListening() error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	m.wg.Wait()
	m.setState(enum.MonitorDisconnected)
	return nil
}

// ChangeMailbox interrupts the current watch, selects the new folder on the
// wire and resumes watching. Not a field mutation: the IDLE command is
// stopped and re-issued against the new selection.
func (m *Monitor) ChangeMailbox(ctx context.Context, folderName string) error {
	if m.State() != enum.MonitorWatching {
		return errors.New("monitor is not watching")
	}

	req := reselectRequest{folder: folderName, reply: make(chan error, 1)}
	select {
	case m.reselect <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run owns the watch lifecycle: it re-enters the IDLE loop after connection
// drops with exponential backoff, and emits a terminal connection-closed
// event once the retry ceiling is reached.
func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()
	defer m.closeConn()

	backoff := m.config.ReconnectBackoff
	reconnects := 0

	for {
		err := m.watchLoop(ctx)
		if ctx.Err() != nil {
			m.setState(enum.MonitorDisconnected)
			return
		}
		if err == nil {
			err = errors.New("watch terminated unexpectedly")
		}

		// Unexpected connection drop.
		m.setState(enum.MonitorDisconnected)
		m.closeConn()
		m.emitConnectionError(err)

		reconnects++
		if reconnects > m.config.MaxReconnects {
			m.log.Warnf("[%s][%s] reconnect ceiling reached, stopping monitor", m.account.ID, m.folder)
			m.emitConnectionClosed()
			return
		}

		m.log.Infof("[%s][%s] reconnecting in %v (attempt %d/%d)", m.account.ID, m.folder, backoff, reconnects, m.config.MaxReconnects)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > m.config.MaxReconnectBackoff {
			backoff = m.config.MaxReconnectBackoff
		}

		m.setState(enum.MonitorConnecting)
		if err := m.reconnect(ctx); err != nil {
			m.log.Errorf("[%s][%s] reconnect failed: %v", m.account.ID, m.folder, err)
			continue
		}
		reconnects = 0
		backoff = m.config.ReconnectBackoff
		m.setState(enum.MonitorWatching)
	}
}

func (m *Monitor) reconnect(ctx context.Context) error {
	conn := NewConnection(m.account, m.credentials)
	connectCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()
	if err := conn.Connect(connectCtx); err != nil {
		return err
	}
	if err := conn.Select(ctx, m.currentFolder()); err != nil {
		conn.Close()
		return err
	}

	m.mu.Lock()
	m.conn = conn
	if mbox := conn.Client().Mailbox(); mbox != nil {
		m.lastCount = mbox.Messages
	}
	m.mu.Unlock()
	return nil
}

// watchLoop issues blocking IDLE requests and processes server pushes until
// the context is cancelled or the connection drops. Any interruption to
// handle an event is followed by an immediate re-issue so coverage has no
// gap.
func (m *Monitor) watchLoop(ctx context.Context) error {
	span := opentracing.StartSpan("Monitor.watchLoop")
	defer span.Finish()
	tracing.TagComponentMonitor(span)
	span.LogFields(tracingLog.String("folder", m.currentFolder()))

	c := m.clientLocked()
	if c == nil {
		return errors.New("no connection")
	}

	updates := make(chan client.Update, 100)
	c.Updates = updates
	defer func() { c.Updates = nil }()

	for {
		var stopOnce sync.Once
		stop := make(chan struct{})
		safeStop := func() { stopOnce.Do(func() { close(stop) }) }

		idleDone := make(chan error, 1)
		go func() {
			c.Timeout = 0
			idleDone <- c.Idle(stop, &client.IdleOptions{
				LogoutTimeout: m.config.IdleTimeout,
			})
		}()

		fetchFrom, fetchTo, reissue, err := m.processUpdates(ctx, updates, idleDone, safeStop)
		if err != nil {
			return err
		}
		if !reissue {
			return nil
		}
		if fetchTo > 0 {
			if err := m.fetchAndEmit(ctx, c, fetchFrom, fetchTo); err != nil {
				if IsConnectionError(err) {
					return err
				}
				m.log.Errorf("[%s][%s] error fetching new messages: %v", m.account.ID, m.folder, err)
			}
		}
	}
}

// processUpdates consumes server pushes while one IDLE command is in flight.
// Returns a fetch range when new messages were announced; the caller stops
// idling, fetches, and re-issues the watch.
func (m *Monitor) processUpdates(
	ctx context.Context,
	updates chan client.Update,
	idleDone chan error,
	safeStop func(),
) (fetchFrom, fetchTo uint32, reissue bool, err error) {
	for {
		select {
		case <-ctx.Done():
			safeStop()
			<-idleDone
			return 0, 0, false, nil

		case req := <-m.reselect:
			safeStop()
			<-idleDone
			req.reply <- m.applyReselect(ctx, req.folder)
			return 0, 0, true, nil

		case update := <-updates:
			from, to := m.handleUpdate(update)
			if to > 0 {
				// Stop idling so the fetch can run, then re-issue.
				safeStop()
				<-idleDone
				return from, to, true, nil
			}

		case idleErr := <-idleDone:
			if idleErr != nil && ctx.Err() == nil {
				return 0, 0, false, idleErr
			}
			// IDLE ended without error: re-issue immediately.
			return 0, 0, true, nil
		}
	}
}

// applyReselect performs the protocol-level unselect/select for a folder
// change request.
func (m *Monitor) applyReselect(ctx context.Context, folder string) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return errors.New("no connection")
	}

	if err := conn.Select(ctx, folder); err != nil {
		// Try to restore the previous selection so watching can continue.
		if restoreErr := conn.Select(ctx, m.currentFolder()); restoreErr != nil {
			return restoreErr
		}
		return err
	}

	m.mu.Lock()
	m.folder = folder
	if mbox := conn.Client().Mailbox(); mbox != nil {
		m.lastCount = mbox.Messages
	}
	m.mu.Unlock()
	return nil
}

// handleUpdate turns one server push into listener events. Returns a fetch
// range when the folder grew.
func (m *Monitor) handleUpdate(update client.Update) (fetchFrom, fetchTo uint32) {
	switch u := update.(type) {
	case *client.MailboxUpdate:
		m.mu.Lock()
		current := m.lastCount
		if u.Mailbox.Messages > current {
			fetchFrom = current + 1
			fetchTo = u.Mailbox.Messages
			m.lastCount = u.Mailbox.Messages
		}
		m.mu.Unlock()

	case *client.ExpungeUpdate:
		m.mu.Lock()
		if u.SeqNum <= m.lastCount && m.lastCount > 0 {
			m.lastCount--
		}
		m.mu.Unlock()
		m.emitMessageDeleted(u.SeqNum)

	case *client.MessageUpdate:
		if u.Message != nil {
			flags := make([]string, len(u.Message.Flags))
			copy(flags, u.Message.Flags)
			m.emitMessageFlagged(u.Message.SeqNum, flags)
		}
	}
	return fetchFrom, fetchTo
}

func (m *Monitor) fetchAndEmit(ctx context.Context, c *client.Client, from, to uint32) error {
	messages, err := fetchRange(ctx, c, from, to)
	for _, msg := range messages {
		m.emitNewMessage(msg)
	}
	return err
}

func (m *Monitor) currentFolder() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.folder
}

func (m *Monitor) clientLocked() *client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	return m.conn.Client()
}

func (m *Monitor) closeConn() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// emit helpers run every registered listener; a panicking listener is
// recovered so one faulty subscriber cannot halt the monitor loop.

func (m *Monitor) emitNewMessage(msg *models.InboundMessage) {
	m.listenerMu.RLock()
	listeners := m.onNewMessage
	m.listenerMu.RUnlock()
	for _, listener := range listeners {
		m.safeEmit(func() { listener(msg) })
	}
}

func (m *Monitor) emitMessageFlagged(seqNum uint32, flags []string) {
	m.listenerMu.RLock()
	listeners := m.onMessageFlagged
	m.listenerMu.RUnlock()
	for _, listener := range listeners {
		m.safeEmit(func() { listener(seqNum, flags) })
	}
}

func (m *Monitor) emitMessageDeleted(seqNum uint32) {
	m.listenerMu.RLock()
	listeners := m.onMessageDeleted
	m.listenerMu.RUnlock()
	for _, listener := range listeners {
		m.safeEmit(func() { listener(seqNum) })
	}
}

func (m *Monitor) emitConnectionError(err error) {
	m.listenerMu.RLock()
	listeners := m.onConnectionError
	m.listenerMu.RUnlock()
	for _, listener := range listeners {
		m.safeEmit(func() { listener(err) })
	}
}

func (m *Monitor) emitConnectionClosed() {
	m.listenerMu.RLock()
	listeners := m.onConnectionClosed
	m.listenerMu.RUnlock()
	for _, listener := range listeners {
		m.safeEmit(listener)
	}
}

func (m *Monitor) safeEmit(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("[%s][%s] listener panic recovered: %v", m.account.ID, m.currentFolder(), r)
		}
	}()
	fn()
}
