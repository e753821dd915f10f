package jobs

import (
	"time"

	"bikey/config"
	"bikey/internal/logger"
	"bikey/internal/services"
)

// Schedule constants, reachable inside RegisterAllJobs where the services
// parameter shadows the package.
const (
	Daily           = services.Daily
	INBOX_RETENTION = services.INBOX_RETENTION
)

// RegisterAllJobs adds the inbox jobs when the scheduler and the inbox are
// both configured.
func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	config config.Config,
	services services.Service,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")

	if !config.SchedulerEnabled {
		log.Info("Scheduler disabled, skipping job registration")
		return nil
	}

	if !services.Inbox.Enabled() {
		log.Info("No import inbox configured, skipping inbox jobs")
		return nil
	}

	interval := time.Duration(config.ImportInboxIntervalMinutes) * time.Minute
	if err := schedulerService.AddJob(NewImportInboxJob(services.Inbox, interval)); err != nil {
		return log.Err("failed to register import inbox job", err)
	}
	log.Info("Registered import inbox job", "interval", interval)

	cleanupJob := NewInboxCleanupJob(services.Inbox, INBOX_RETENTION, Daily)
	if err := schedulerService.AddJob(cleanupJob); err != nil {
		return log.Err("failed to register inbox cleanup job", err)
	}
	log.Info("Registered inbox cleanup job", "schedule", "daily")

	return nil
}
