package cron

import (
	"context"
	"os"
	"sync"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/inboxia/mailcore/config"
	"github.com/inboxia/mailcore/interfaces"
	cron_config "github.com/inboxia/mailcore/internal/cron/config"
	er "github.com/inboxia/mailcore/internal/errors"
	"github.com/inboxia/mailcore/internal/logger"
	"github.com/inboxia/mailcore/internal/tracing"
)

// GroupSync serializes the scheduled sync job against itself.
const GroupSync = "sync"

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupSync: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg          *config.Config
	log          logger.Logger
	cron         *cronv3.Cron
	stopCh       chan struct{}
	jobIDs       map[string]cronv3.EntryID
	accounts     interfaces.AccountRepository
	orchestrator interfaces.SyncOrchestrator
}

func NewCronManager(cfg *config.Config, log logger.Logger, accounts interfaces.AccountRepository, orchestrator interfaces.SyncOrchestrator) *CronManager {
	return &CronManager{
		cfg:          cfg,
		log:          log,
		stopCh:       make(chan struct{}),
		jobIDs:       make(map[string]cronv3.EntryID),
		accounts:     accounts,
		orchestrator: orchestrator,
	}
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	// Load cron config from environment variables
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	// Register heartbeat job
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

	// Scheduled incremental sync over all bootstrapped accounts
	if cronConfig.CronScheduleIncrementalSync != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleIncrementalSync, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupSync].Lock()
			defer jobLocks.locks[GroupSync].Unlock()
			cm.syncAccounts()
		})
		if err != nil {
			cm.log.Fatalf("Could not add incremental sync cron job: %v", err)
		}
		cm.jobIDs["incremental_sync"] = id
		cm.log.Infof("Registered incremental sync job with schedule: %s", cronConfig.CronScheduleIncrementalSync)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) syncAccounts() {
	cm.log.Info("Running scheduled incremental sync")

	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.syncAccounts")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	accounts, err := cm.accounts.List(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list accounts for scheduled sync: %v", err)
		return
	}

	for _, account := range accounts {
		if !account.IsSyncReady() {
			// Bootstrapping is an explicit API action, never scheduled.
			continue
		}
		result, err := cm.orchestrator.IncrementalSync(ctx, account.ID)
		if err != nil {
			if err == er.ErrSyncInProgress {
				continue
			}
			tracing.TraceErr(span, err)
			cm.log.Errorf("Scheduled sync failed for account %s: %v", account.ID, err)
			continue
		}
		cm.log.Infof("Scheduled sync for account %s: %d records, %d new", account.ID, result.RecordsProcessed, result.EmailsCreated)
	}

	cm.log.Info("Completed scheduled incremental sync")
}
