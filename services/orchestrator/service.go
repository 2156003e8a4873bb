package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
	"github.com/emailmax/warmup/internal/utils"
	"github.com/emailmax/warmup/services/dispatch"
	"github.com/emailmax/warmup/services/imap"
	"github.com/emailmax/warmup/services/smtp"
)

const (
	DefaultTimeBetweenSends = 1 * time.Second
	DefaultMaxParallel      = 4
	DefaultMinInterval      = 1 * time.Second
	DefaultMaxInterval      = 5 * time.Second
	DefaultSendTimeout      = 30 * time.Second
)

type Config struct {
	Dispatch dispatch.Config
	Monitor  imap.MonitorConfig

	TimeBetweenSends time.Duration
	MaxParallel      int
	MinInterval      time.Duration
	MaxInterval      time.Duration
	SendTimeout      time.Duration
}

func (c *Config) applyDefaults() {
	if c.TimeBetweenSends <= 0 {
		c.TimeBetweenSends = DefaultTimeBetweenSends
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = DefaultMaxParallel
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.MaxInterval < c.MinInterval {
		c.MaxInterval = c.MinInterval + DefaultMaxInterval
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
}

// Service owns the warmup network state: registered accounts, templates and
// the interaction registry, plus one dispatch queue and any per-account
// mailbox monitors. One Service instance owns its registries exclusively;
// a mailbox must not be watched by two Service instances at once.
type Service struct {
	log       logger.Logger
	creds     interfaces.CredentialResolver
	publisher interfaces.InteractionEventPublisher
	config    Config

	queue interfaces.DispatchQueue

	// Factories exist so tests can substitute fake transports.
	smtpFactory func(account *models.MailboxAccount) interfaces.SMTPConnection
	imapFactory func(account *models.MailboxAccount) interfaces.IMAPConnection

	mu           sync.RWMutex
	accounts     map[string]*models.MailboxAccount
	templates    map[string]*models.EmailTemplate
	interactions map[string]*models.Interaction
	monitors     map[string]interfaces.EventMonitor

	waitMu  sync.Mutex
	waiters map[string]chan *models.DispatchResult

	routerWg sync.WaitGroup
	stopOnce sync.Once

	rng   *rand.Rand
	rngMu sync.Mutex
}

func NewService(log logger.Logger, creds interfaces.CredentialResolver, publisher interfaces.InteractionEventPublisher, config Config) *Service {
	config.applyDefaults()
	s := &Service{
		log:          log,
		creds:        creds,
		publisher:    publisher,
		config:       config,
		accounts:     make(map[string]*models.MailboxAccount),
		templates:    make(map[string]*models.EmailTemplate),
		interactions: make(map[string]*models.Interaction),
		monitors:     make(map[string]interfaces.EventMonitor),
		waiters:      make(map[string]chan *models.DispatchResult),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.smtpFactory = func(account *models.MailboxAccount) interfaces.SMTPConnection {
		return smtp.NewConnection(account, creds)
	}
	s.imapFactory = func(account *models.MailboxAccount) interfaces.IMAPConnection {
		return imap.NewConnection(account, creds)
	}
	s.queue = dispatch.NewQueue(s.transmit, log, config.Dispatch)
	return s
}

// Start launches the dispatch queue and the result router.
func (s *Service) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.routerWg.Add(1)
	go s.routeResults()
}

// Stop shuts down the queue, the result router and every owned monitor.
// Pending interactions stay in the registry.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		monitors := make([]interfaces.EventMonitor, 0, len(s.monitors))
		for _, m := range s.monitors {
			monitors = append(monitors, m)
		}
		s.monitors = make(map[string]interfaces.EventMonitor)
		s.mu.Unlock()

		for _, m := range monitors {
			m.StopListening()
		}

		s.queue.Stop()
		s.routerWg.Wait()

		if s.publisher != nil {
			if err := s.publisher.Close(); err != nil {
				s.log.Warnf("failed to close event publisher: %v", err)
			}
		}
	})
}

// AddAccount registers an account, resolving provider defaults. Returns false
// when the id is already present; registration never overwrites.
func (s *Service) AddAccount(ctx context.Context, account *models.MailboxAccount) bool {
	span, _ := opentracing.StartSpanFromContext(ctx, "InteractionOrchestrator.AddAccount")
	defer span.Finish()

	if account.ID == "" {
		account.ID = utils.GenerateIdWithPrefix("acct", 16)
	}
	tracing.TagAccount(span, account.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		tracing.TraceErr(span, warmuperrors.ErrAccountExists)
		return false
	}

	account.ApplyProviderDefaults()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = utils.Now()
	}
	s.accounts[account.ID] = account
	s.log.Infof("registered account %s (%s, provider %s)", account.ID, account.EmailAddress, account.Provider)
	return true
}

// RemoveAccount deregisters an account and stops any monitor owned for it.
// Returns false when the id is unknown.
func (s *Service) RemoveAccount(ctx context.Context, accountID string) bool {
	span, _ := opentracing.StartSpanFromContext(ctx, "InteractionOrchestrator.RemoveAccount")
	defer span.Finish()
	tracing.TagAccount(span, accountID)

	s.mu.Lock()
	_, exists := s.accounts[accountID]
	if !exists {
		s.mu.Unlock()
		return false
	}
	delete(s.accounts, accountID)
	monitor := s.monitors[accountID]
	delete(s.monitors, accountID)
	s.mu.Unlock()

	if monitor != nil {
		monitor.StopListening()
	}
	s.log.Infof("removed account %s", accountID)
	return true
}

func (s *Service) GetAccount(accountID string) (*models.MailboxAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	return account, ok
}

// ListAccounts returns a snapshot of all registered accounts.
func (s *Service) ListAccounts() []*models.MailboxAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]*models.MailboxAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	return accounts
}

// RegisterTemplate upserts a template under the given name. Only a non-empty
// name is required.
func (s *Service) RegisterTemplate(name string, template *models.EmailTemplate) error {
	if name == "" {
		return warmuperrors.ErrTemplateName
	}
	template.Name = name

	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[name] = template
	return nil
}

func (s *Service) GetTemplate(name string) (*models.EmailTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	template, ok := s.templates[name]
	return template, ok
}

// GetInteraction returns an interaction from the registry.
func (s *Service) GetInteraction(interactionID string) (*models.Interaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	interaction, ok := s.interactions[interactionID]
	return interaction, ok
}

// QueueStats exposes the dispatch queue snapshot.
func (s *Service) QueueStats() models.QueueStats {
	return s.queue.Stats()
}

// StartWatching builds and starts a mailbox monitor for a registered account.
// At most one monitor per account is owned; starting again replaces nothing
// and errors if a monitor is already running.
func (s *Service) StartWatching(ctx context.Context, accountID, folder string) error {
	s.mu.Lock()
	account, ok := s.accounts[accountID]
	if !ok {
		s.mu.Unlock()
		return warmuperrors.ErrAccountNotFound
	}
	if _, running := s.monitors[accountID]; running {
		s.mu.Unlock()
		return warmuperrors.ErrAccountExists
	}
	monitor := imap.NewMonitor(account, folder, s.creds, s.log, s.config.Monitor)
	s.monitors[accountID] = monitor
	s.mu.Unlock()

	monitor.OnNewMessage(func(message *models.InboundMessage) {
		s.log.Infof("account %s received message %s", accountID, message.MessageID)
	})

	if err := monitor.StartListening(ctx); err != nil {
		s.mu.Lock()
		delete(s.monitors, accountID)
		s.mu.Unlock()
		return err
	}
	return nil
}

// StopWatching stops and releases the monitor owned for an account.
func (s *Service) StopWatching(accountID string) {
	s.mu.Lock()
	monitor := s.monitors[accountID]
	delete(s.monitors, accountID)
	s.mu.Unlock()
	if monitor != nil {
		monitor.StopListening()
	}
}

// transmit is the queue's wire function: one SMTP session per job.
func (s *Service) transmit(ctx context.Context, item *models.QueueItem) (*models.SendReceipt, error) {
	s.mu.RLock()
	account, ok := s.accounts[item.AccountID]
	s.mu.RUnlock()
	if !ok {
		return nil, warmuperrors.ErrAccountNotFound
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
	defer cancel()

	conn := s.smtpFactory(account)
	if err := conn.Connect(sendCtx); err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.Send(sendCtx, item.Message)
}

// routeResults fans queue outcomes out to the per-job waiters registered at
// enqueue time.
func (s *Service) routeResults() {
	defer s.routerWg.Done()
	for result := range s.queue.Results() {
		s.waitMu.Lock()
		waiter := s.waiters[result.QueueID]
		delete(s.waiters, result.QueueID)
		s.waitMu.Unlock()

		if waiter == nil {
			s.log.Warnf("dispatch result for unknown job %s", result.QueueID)
			continue
		}
		waiter <- result
	}

	// Queue closed: release anyone still waiting.
	s.waitMu.Lock()
	for id, waiter := range s.waiters {
		close(waiter)
		delete(s.waiters, id)
	}
	s.waitMu.Unlock()
}

// enqueueAndWait hands one job to the dispatch queue and blocks until it
// settles (sent or dead-lettered) or the context ends.
func (s *Service) enqueueAndWait(ctx context.Context, item *models.QueueItem) (*models.DispatchResult, error) {
	waiter := make(chan *models.DispatchResult, 1)

	s.waitMu.Lock()
	if item.ID == "" {
		item.ID = utils.GenerateIdWithPrefix("job", 16)
	}
	s.waiters[item.ID] = waiter
	s.waitMu.Unlock()

	if _, err := s.queue.Enqueue(item); err != nil {
		s.waitMu.Lock()
		delete(s.waiters, item.ID)
		s.waitMu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		s.waitMu.Lock()
		delete(s.waiters, item.ID)
		s.waitMu.Unlock()
		return nil, ctx.Err()
	case result, ok := <-waiter:
		if !ok {
			return nil, warmuperrors.ErrQueueClosed
		}
		return result, nil
	}
}

// publishEvent notifies the broker of a lifecycle transition. A nil publisher
// disables publishing.
func (s *Service) publishEvent(ctx context.Context, eventType string, interaction *models.Interaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishInteractionEvent(ctx, eventType, interaction); err != nil {
		s.log.Warnf("failed to publish %s event for interaction %s: %v", eventType, interaction.ID, err)
	}
}

// transition advances an interaction under the registry lock and publishes
// the matching event.
func (s *Service) transition(ctx context.Context, interaction *models.Interaction, status enum.InteractionStatus) bool {
	s.mu.Lock()
	ok := interaction.TransitionTo(status, utils.Now())
	s.mu.Unlock()
	if ok {
		s.publishEvent(ctx, "interaction."+status.String(), interaction)
	}
	return ok
}

func (s *Service) randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}
