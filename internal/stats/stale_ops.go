package stats

import (
	"log/slog"
	"time"

	"avatar-hub/internal/pending"
)

// StaleOpsJob periodically reports mutation operations that have been
// in-flight longer than the timeout. Diagnostic only: the tracker never
// cancels the underlying remote calls.
type StaleOpsJob struct {
	log     *slog.Logger
	tracker *pending.Tracker
	timeout time.Duration

	stopChan chan bool
}

func NewStaleOpsJob(log *slog.Logger, tracker *pending.Tracker, timeout time.Duration) *StaleOpsJob {
	if timeout <= 0 {
		timeout = pending.DefaultTimeout
	}
	return &StaleOpsJob{
		log:      log,
		tracker:  tracker,
		timeout:  timeout,
		stopChan: make(chan bool, 1),
	}
}

func (j *StaleOpsJob) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stale := j.tracker.CheckTimeouts(j.timeout)
			if len(stale) > 0 {
				j.log.Warn("stale_operations_detected",
					"count", len(stale),
					"op_ids", stale,
					"timeout", j.timeout.String(),
				)
			}
		case <-j.stopChan:
			j.log.Info("stale_ops_job_stopped")
			return
		}
	}
}

func (j *StaleOpsJob) Stop() {
	select {
	case j.stopChan <- true:
	default:
	}
}
