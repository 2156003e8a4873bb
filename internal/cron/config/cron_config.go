package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Interaction retention cleanup, daily at midnight
	CronScheduleRetentionCleanup string `env:"CRON_SCHEDULE_RETENTION_CLEANUP" envDefault:"0 0 0 * * *"`
	// Interactions older than this many days are removed by the cleanup job
	RetentionMaxAgeDays int `env:"RETENTION_MAX_AGE_DAYS" envDefault:"30"`
}
