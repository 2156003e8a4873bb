package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/tracing"
)

type Config struct {
	AppConfig        *AppConfig
	Logger           *logger.Config
	Tracing          *tracing.JaegerConfig
	RateLimitConfig  *RateLimitConfig
	MonitorConfig    *MonitorConfig
	AutomationConfig *AutomationConfig
	SendConfig       *SendConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:        &AppConfig{},
		Logger:           &logger.Config{},
		Tracing:          &tracing.JaegerConfig{},
		RateLimitConfig:  &RateLimitConfig{},
		MonitorConfig:    &MonitorConfig{},
		AutomationConfig: &AutomationConfig{},
		SendConfig:       &SendConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading warmup config: %v", err)
	}

	return config, nil
}
