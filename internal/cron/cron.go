package cron

import (
	"context"
	"os"
	"sync"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/emailmax/warmup/interfaces"
	cron_config "github.com/emailmax/warmup/internal/cron/config"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/tracing"
)

const (
	// GroupWarmup serializes jobs that mutate the interaction registry
	GroupWarmup = "warmup"
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupWarmup: new(sync.Mutex),
	},
}

type CronManager struct {
	log          logger.Logger
	cron         *cronv3.Cron
	stopCh       chan struct{}
	jobIDs       map[string]cronv3.EntryID
	orchestrator interfaces.InteractionOrchestrator
}

func NewCronManager(log logger.Logger, orchestrator interfaces.InteractionOrchestrator) *CronManager {
	return &CronManager{
		log:          log,
		stopCh:       make(chan struct{}),
		jobIDs:       make(map[string]cronv3.EntryID),
		orchestrator: orchestrator,
	}
}

// Stop gracefully stops the cron manager, waiting for running jobs.
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleRetentionCleanup != "" {
		maxAgeDays := cronConfig.RetentionMaxAgeDays
		id, err := c.AddFunc(cronConfig.CronScheduleRetentionCleanup, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupWarmup].Lock()
			defer jobLocks.locks[GroupWarmup].Unlock()
			cm.cleanupOldInteractions(maxAgeDays)
		})
		if err != nil {
			cm.log.Fatalf("Could not add retention cleanup cron job: %v", err)
		}
		cm.jobIDs["retention_cleanup"] = id
		cm.log.Infof("Registered retention cleanup job with schedule: %s", cronConfig.CronScheduleRetentionCleanup)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) cleanupOldInteractions(maxAgeDays int) {
	cm.log.Info("Running interaction retention cleanup")

	ctx := context.Background()

	span, _ := tracing.StartTracerSpan(ctx, "CronManager.cleanupOldInteractions")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	removed := cm.orchestrator.CleanupOldInteractions(maxAgeDays)
	cm.log.Infof("Retention cleanup completed, removed %d interaction(s)", removed)
}
