package jobs

import (
	"context"
	"time"

	"library-lending/internal/config"
	"library-lending/internal/logger"
	"library-lending/internal/notification"
	"library-lending/internal/repository"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	ledger repository.Ledger
	sink   notification.Sink
	config *config.Config
	now    func() time.Time
}

// Result summarizes one job firing.
type Result struct {
	Scanned int
	Changed int
	Failed  int
}

// NewJobRunner creates a new job runner with all dependencies.
// A nil clock uses the system time in UTC.
func NewJobRunner(ledger repository.Ledger, sink notification.Sink, cfg *config.Config, clock func() time.Time) *JobRunner {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &JobRunner{
		ledger: ledger,
		sink:   sink,
		config: cfg,
		now:    clock,
	}
}

// Config returns the configuration the jobs were built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	log := logger.WithJob(jobName)
	log.Info("Starting job")
	start := time.Now()
	res := jobFunc(context.Background())
	log.Info("Job completed",
		"scanned", res.Scanned,
		"changed", res.Changed,
		"failed", res.Failed,
		"duration", time.Since(start))
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.MarkOverdueItems()
	jr.RollbackStaleSettlements()
	jr.SendOverdueNotifications()
}

func (jr *JobRunner) pageSize() int {
	if jr.config.Scheduler.PageSize > 0 {
		return jr.config.Scheduler.PageSize
	}
	return 50
}
