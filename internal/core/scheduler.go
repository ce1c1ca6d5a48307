package core

// scheduler.go provides watch mode: classify the drop zone on a fixed
// interval until the context is cancelled.
//
// A failed run is logged and the scheduler keeps going; only configuration
// errors (missing or invalid schema catalog) stop it, since every later run
// would fail the same way.

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/JonMunkholm/dropzone/internal/schema"
)

// DefaultWatchInterval is how often watch mode runs when none is configured.
const DefaultWatchInterval = 5 * time.Minute

// Watch runs a batch immediately, then every interval. It returns nil when
// ctx is cancelled, or the error of a run that failed on configuration.
// onRun, if non-nil, is called after every completed run.
func (s *Service) Watch(ctx context.Context, interval time.Duration, onRun func(*RunResult)) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	logger := logging.FromContext(ctx)
	logger.Info("watch started", "interval", interval.String(), "root", s.cfg.Root)

	ctx = ContextWithTrigger(ctx, Trigger{Source: "watch"})

	// Run immediately on startup
	if err := s.watchOnce(ctx, onRun); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case <-ticker.C:
			if err := s.watchOnce(ctx, onRun); err != nil {
				return err
			}
		}
	}
}

// watchOnce runs one batch. Only fatal configuration errors are returned.
func (s *Service) watchOnce(ctx context.Context, onRun func(*RunResult)) error {
	start := time.Now()

	result, err := s.Classify(ctx, RunRequest{})
	switch {
	case errors.Is(err, schema.ErrSchemaDirNotFound), errors.Is(err, schema.ErrInvalidSchema):
		logging.FromContext(ctx).Error("watch stopped on configuration error", "error", err)
		return err
	case ctx.Err() != nil:
		return nil
	case err != nil:
		logging.FromContext(ctx).Error("watch run failed", "error", err, "code", MapError(err).Code)
	}

	if result != nil {
		if onRun != nil {
			onRun(result)
		}
		logging.FromContext(ctx).Debug("watch run completed",
			"run_id", result.RunID,
			"summary", result.Summary.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return nil
}
