package services

import (
	"time"

	"github.com/emailmax/warmup/config"
	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/services/automation"
	"github.com/emailmax/warmup/services/credentials"
	"github.com/emailmax/warmup/services/dispatch"
	"github.com/emailmax/warmup/services/events"
	"github.com/emailmax/warmup/services/imap"
	"github.com/emailmax/warmup/services/orchestrator"
)

type Services struct {
	CredentialStore *credentials.Store
	EventPublisher  interfaces.InteractionEventPublisher
	Orchestrator    *orchestrator.Service
	Automation      *automation.Factory
}

func InitServices(cfg *config.Config, log logger.Logger) (*Services, error) {
	credentialStore := credentials.NewStore()

	// events are optional: no broker URL means lifecycle transitions are
	// only logged locally
	var publisher interfaces.InteractionEventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisherConfig := &events.PublisherConfig{
			MessageTTL:          events.DefaultMessageTTL,
			MaxRetries:          events.DefaultMaxRetries,
			PublishTimeout:      events.DefaultPublishTimeout,
			ReconnectBackoff:    events.DefaultReconnectBackoff,
			MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
		}
		rabbitPublisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, publisherConfig)
		if err != nil {
			return nil, err
		}
		publisher = rabbitPublisher
	}

	orchestratorConfig := orchestrator.Config{
		Dispatch: dispatch.Config{
			RateCaps: dispatch.RateCaps{
				PerMinute: cfg.RateLimitConfig.SendsPerMinute,
				PerHour:   cfg.RateLimitConfig.SendsPerHour,
				PerDay:    cfg.RateLimitConfig.SendsPerDay,
			},
		},
		Monitor: imap.MonitorConfig{
			IdleTimeout:   time.Duration(cfg.MonitorConfig.IdleTimeoutSeconds) * time.Second,
			MaxReconnects: cfg.MonitorConfig.MaxReconnects,
		},
		TimeBetweenSends: time.Duration(cfg.SendConfig.TimeBetweenSendsMs) * time.Millisecond,
		MaxParallel:      cfg.SendConfig.MaxParallel,
		MinInterval:      time.Duration(cfg.SendConfig.MinIntervalMs) * time.Millisecond,
		MaxInterval:      time.Duration(cfg.SendConfig.MaxIntervalMs) * time.Millisecond,
	}

	automationFactory := automation.NewFactory(log, automation.DriverConfig{
		MinConfidence:   cfg.AutomationConfig.MinConfidence,
		LearningEnabled: cfg.AutomationConfig.LearningEnabled,
	}, cfg.AutomationConfig.Headless)

	services := Services{
		CredentialStore: credentialStore,
		EventPublisher:  publisher,
		Orchestrator:    orchestrator.NewService(log, credentialStore, publisher, orchestratorConfig),
		Automation:      automationFactory,
	}

	return &services, nil
}
