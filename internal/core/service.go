package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/JonMunkholm/dropzone/internal/schema"
	"github.com/google/uuid"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Options are the per-run orchestrator settings.
	Options

	// SchemaDir holds the YAML schema definitions, reloaded for every run.
	SchemaDir string

	// HistorySize is how many run results are kept in memory.
	HistorySize int

	// RunWait is how long Classify waits for an active run to finish.
	// Zero fails immediately with ErrRunInProgress.
	RunWait time.Duration
}

// RunRequest carries per-run overrides.
type RunRequest struct {
	// DryRun forces a dry run even when the service is configured to move files.
	DryRun bool
}

// Service is the entry point used by the CLI, the HTTP API and the menu.
// It serializes runs, keeps recent results and forwards records to the
// optional audit sink.
type Service struct {
	cfg     ServiceConfig
	limiter *RunLimiter
	history *RunHistory
	sink    *AuditSink
}

// NewService creates a Service. sink may be nil.
func NewService(cfg ServiceConfig, sink *AuditSink) *Service {
	return &Service{
		cfg:     cfg,
		limiter: NewRunLimiter(cfg.RunWait),
		history: NewRunHistory(cfg.HistorySize),
		sink:    sink,
	}
}

// Classify runs one batch over the drop zone.
//
// The schema catalog is loaded before any file is touched; a missing or
// invalid catalog aborts the run. Only one run executes at a time.
func (s *Service) Classify(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := uuid.NewString()
	if err := s.limiter.Acquire(ctx, runID); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	cat, err := schema.LoadCatalog(s.cfg.SchemaDir)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.Options
	opts.DryRun = opts.DryRun || req.DryRun

	orch, err := NewOrchestrator(opts, cat)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("schema catalog loaded",
		"dir", s.cfg.SchemaDir,
		"schemas", cat.Len(),
	)

	result, err := orch.Run(logging.WithRunID(ctx, runID))
	if result != nil {
		s.history.Add(result)
		s.recordAudit(ctx, result)
	}
	return result, err
}

// recordAudit copies the run's records to the sink. Failures are logged only.
func (s *Service) recordAudit(ctx context.Context, result *RunResult) {
	if s.sink == nil || len(result.Records) == 0 {
		return
	}

	// the run context may already be cancelled; the audit write still runs
	auditCtx := logging.WithRunID(context.WithoutCancel(ctx), result.RunID)
	if err := s.sink.RecordRun(auditCtx, result); err != nil {
		msg := MapError(err)
		logging.FromContext(auditCtx).Error("audit sink write failed",
			"error", err,
			"code", msg.Code,
			"records", len(result.Records),
		)
	}
}

// Schemas loads the current catalog.
func (s *Service) Schemas() ([]schema.Schema, error) {
	cat, err := schema.LoadCatalog(s.cfg.SchemaDir)
	if err != nil {
		return nil, err
	}
	return cat.All(), nil
}

// History returns the in-memory run history.
func (s *Service) History() *RunHistory {
	return s.history
}

// Status reports whether a run is active.
func (s *Service) Status() RunLimiterStatus {
	return s.limiter.Status()
}

// Router returns the drop zone layout under the configured root.
func (s *Service) Router() Router {
	return NewRouter(s.cfg.Root)
}

// Audit returns the audit sink, or nil when auditing is disabled.
func (s *Service) Audit() *AuditSink {
	return s.sink
}

// WaitForDrain blocks until the active run, if any, completes.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// SchemaDir returns the directory schemas are loaded from.
func (s *Service) SchemaDir() string {
	return s.cfg.SchemaDir
}

func (s *Service) String() string {
	return fmt.Sprintf("root=%s schemas=%s workers=%d dry_run=%v",
		s.cfg.Root, s.cfg.SchemaDir, s.cfg.Workers, s.cfg.DryRun)
}
