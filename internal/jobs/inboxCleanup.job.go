package jobs

import (
	"context"
	"time"

	"bikey/internal/logger"
	"bikey/internal/services"
)

type InboxCleanupJob struct {
	inbox     InboxProcessor
	retention time.Duration
	log       logger.Logger
	schedule  services.Schedule
}

func NewInboxCleanupJob(
	inbox InboxProcessor,
	retention time.Duration,
	schedule services.Schedule,
) *InboxCleanupJob {
	log := logger.New("inboxCleanupJob")
	log.Info("Creating new inbox cleanup job", "schedule", schedule.String(), "retention", retention)

	return &InboxCleanupJob{
		inbox:     inbox,
		retention: retention,
		log:       log,
		schedule:  schedule,
	}
}

func (j *InboxCleanupJob) Name() string {
	return "InboxCleanup"
}

func (j *InboxCleanupJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	removed, err := j.inbox.CleanupProcessed(ctx, j.retention)
	if err != nil {
		return log.Err("inbox cleanup failed", err)
	}

	log.Info("Inbox cleanup completed", "removed", removed)
	return nil
}

func (j *InboxCleanupJob) Schedule() services.Schedule {
	return j.schedule
}
