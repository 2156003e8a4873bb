package automation

import (
	"context"
	"sync"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/models"
)

// Factory hands out one automation driver per account, each backed by its own
// browser session. Sessions are started lazily on first use; an account that
// never touches a folder endpoint never pays for a Chrome process.
type Factory struct {
	log      logger.Logger
	config   DriverConfig
	headless bool

	newBrowser func(ctx context.Context) (interfaces.Browser, error)

	mu      sync.Mutex
	drivers map[string]*Driver
}

func NewFactory(log logger.Logger, config DriverConfig, headless bool) *Factory {
	config.applyDefaults()
	factory := &Factory{
		log:      log,
		config:   config,
		headless: headless,
		drivers:  make(map[string]*Driver),
	}
	factory.newBrowser = func(ctx context.Context) (interfaces.Browser, error) {
		return NewChromeBrowser(ctx, factory.headless)
	}
	return factory
}

// DriverFor returns the account's driver, starting a browser session when the
// account has none yet. Drivers keep their learned selectors and folder cache
// across calls.
func (f *Factory) DriverFor(ctx context.Context, account *models.MailboxAccount) (interfaces.AutomationDriver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if driver, ok := f.drivers[account.ID]; ok {
		return driver, nil
	}

	browser, err := f.newBrowser(ctx)
	if err != nil {
		return nil, err
	}
	driver := NewDriver(account, browser, f.log, f.config)
	f.drivers[account.ID] = driver
	f.log.Infof("[%s] started automation session", account.ID)
	return driver, nil
}

// CloseAccount tears down the session of a deregistered account. No-op when
// the account has no session.
func (f *Factory) CloseAccount(accountID string) error {
	f.mu.Lock()
	driver, ok := f.drivers[accountID]
	delete(f.drivers, accountID)
	f.mu.Unlock()

	if !ok {
		return nil
	}
	return driver.Close()
}

// Close shuts down every open browser session.
func (f *Factory) Close() error {
	f.mu.Lock()
	drivers := f.drivers
	f.drivers = make(map[string]*Driver)
	f.mu.Unlock()

	var firstErr error
	for id, driver := range drivers {
		if err := driver.Close(); err != nil {
			f.log.Errorf("[%s] error closing automation session: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
