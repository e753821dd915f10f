package jobs

import (
	"context"
	"time"

	"bikey/internal/logger"
	"bikey/internal/services"
)

// InboxProcessor is the part of InboxService the jobs use.
type InboxProcessor interface {
	ProcessPending(ctx context.Context) (services.InboxReport, error)
	CleanupProcessed(ctx context.Context, retention time.Duration) (int, error)
}

type ImportInboxJob struct {
	inbox    InboxProcessor
	interval time.Duration
	log      logger.Logger
}

func NewImportInboxJob(inbox InboxProcessor, interval time.Duration) *ImportInboxJob {
	log := logger.New("importInboxJob")
	log.Info("Creating new import inbox job", "interval", interval)

	return &ImportInboxJob{
		inbox:    inbox,
		interval: interval,
		log:      log,
	}
}

func (j *ImportInboxJob) Name() string {
	return "ImportInbox"
}

func (j *ImportInboxJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	report, err := j.inbox.ProcessPending(ctx)
	if err != nil {
		return log.Err("inbox processing failed", err)
	}

	if len(report.Failed) > 0 {
		log.Warn("Some inbox documents failed", "failed", report.Failed)
	}
	return nil
}

func (j *ImportInboxJob) Schedule() services.Schedule {
	return services.Interval
}

func (j *ImportInboxJob) Interval() time.Duration {
	return j.interval
}
