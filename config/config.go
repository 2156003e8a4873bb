package config

import (
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/tracing"
)

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	Logger      *logger.Config
	Tracing     *tracing.JaegerConfig
}

// RateLimitConfig sets the per-window outbound send caps enforced by the
// dispatch queue. A zero cap disables that window.
type RateLimitConfig struct {
	SendsPerMinute int `env:"WARMUP_SENDS_PER_MINUTE" envDefault:"10"`
	SendsPerHour   int `env:"WARMUP_SENDS_PER_HOUR" envDefault:"100"`
	SendsPerDay    int `env:"WARMUP_SENDS_PER_DAY" envDefault:"500"`
}

// MonitorConfig tunes the IMAP IDLE watchers.
type MonitorConfig struct {
	IdleTimeoutSeconds int `env:"WARMUP_IDLE_TIMEOUT_SECONDS" envDefault:"300"`
	MaxReconnects      int `env:"WARMUP_MAX_RECONNECTS" envDefault:"5"`
}

// AutomationConfig tunes the webmail automation driver.
type AutomationConfig struct {
	MinConfidence   float64 `env:"WARMUP_AUTOMATION_MIN_CONFIDENCE" envDefault:"0.6"`
	LearningEnabled bool    `env:"WARMUP_AUTOMATION_LEARNING" envDefault:"true"`
	Headless        bool    `env:"WARMUP_AUTOMATION_HEADLESS" envDefault:"true"`
}

// SendConfig sets orchestrator pacing defaults, overridable per cross-send.
type SendConfig struct {
	TimeBetweenSendsMs int `env:"WARMUP_TIME_BETWEEN_SENDS_MS" envDefault:"1000"`
	MaxParallel        int `env:"WARMUP_MAX_PARALLEL" envDefault:"4"`
	MinIntervalMs      int `env:"WARMUP_MIN_INTERVAL_MS" envDefault:"1000"`
	MaxIntervalMs      int `env:"WARMUP_MAX_INTERVAL_MS" envDefault:"5000"`
}
