// Package daemon runs the queue-driven reconstruction loop: it claims
// pending trials, pushes them through the pipeline, and records the
// two-part outcome back on the queue.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"mocap/internal/config"
	"mocap/internal/logging"
	"mocap/internal/pipeline"
	"mocap/internal/queue"
	"mocap/internal/recon"
)

// TrialRunner executes one trial through the reconstruction stages.
type TrialRunner interface {
	Run(ctx context.Context, trial *pipeline.Trial) error
}

// Daemon owns the poll loop and the single-instance lock.
type Daemon struct {
	cfg    *config.Config
	store  *queue.Store
	runner TrialRunner
	logger *slog.Logger
	lock   *flock.Flock
}

// New acquires the instance lock and builds the daemon. A second daemon
// against the same data directory fails here rather than competing for
// queue items.
func New(cfg *config.Config, store *queue.Store, runner TrialRunner, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "mocapd.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another daemon instance holds %s", lock.Path())
	}
	return &Daemon{
		cfg:    cfg,
		store:  store,
		runner: runner,
		logger: logging.WithComponent(logger, "daemon"),
		lock:   lock,
	}, nil
}

// Close releases the instance lock.
func (d *Daemon) Close() error {
	return d.lock.Unlock()
}

// Run polls the queue until the context is cancelled. Trials orphaned in
// the processing state by a previous crash are requeued first.
func (d *Daemon) Run(ctx context.Context) error {
	reset, err := d.store.ResetStuckProcessing(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		d.logger.Info("requeued stuck trials", "count", reset)
	}

	poll := intervalSeconds(d.cfg.Workflow.QueuePollInterval, 5*time.Second)
	retry := intervalSeconds(d.cfg.Workflow.ErrorRetryInterval, 15*time.Second)
	d.logger.Info("daemon started", "queue", d.store.Path(), "poll_interval", poll)

	for {
		processed, err := d.ProcessNext(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case err != nil:
			d.logger.Error("queue processing failed", "error", err)
			if !sleep(ctx, retry) {
				return ctx.Err()
			}
		case processed:
			// Drain the backlog before idling again.
		default:
			if !sleep(ctx, poll) {
				return ctx.Err()
			}
		}
	}
}

// ProcessNext claims and runs the oldest pending trial. It reports false
// when the queue is drained. A trial failure is recorded on the queue and
// does not surface as a loop error.
func (d *Daemon) ProcessNext(ctx context.Context) (bool, error) {
	item, err := d.store.NextPending(ctx)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	claimed, err := d.store.MarkProcessing(ctx, item.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		// Someone else took it; there may be more behind it.
		return true, nil
	}

	log := d.logger.With(
		logging.FieldTrialID, item.TrialID,
		"session", item.Session,
		"trial", item.Name,
	)
	log.Info("trial started")

	trial := &pipeline.Trial{
		ID:         item.TrialID,
		Session:    item.Session,
		Name:       item.Name,
		Activity:   item.Activity,
		SessionDir: d.cfg.SessionDir(item.Session),
	}
	if err := d.runner.Run(ctx, trial); err != nil {
		user, dev := recon.Messages(err)
		kind := recon.KindOf(err).String()
		if markErr := d.store.MarkFailed(ctx, item.ID, kind, user, dev); markErr != nil {
			return true, markErr
		}
		log.Error("trial failed", "kind", kind, "error", err)
		return true, nil
	}
	if err := d.store.MarkCompleted(ctx, item.ID, trial.OutputPath); err != nil {
		return true, err
	}
	log.Info("trial completed", "output", trial.OutputPath)
	return true, nil
}

func intervalSeconds(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// sleep waits for the interval or the context, whichever ends first, and
// reports whether the context is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
