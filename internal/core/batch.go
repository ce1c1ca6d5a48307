package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/JonMunkholm/dropzone/internal/schema"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultFileTimeout bounds probing and matching of a single file.
const DefaultFileTimeout = 2 * time.Minute

// ErrFileTimeout is the rejection cause for files that took too long to probe.
var ErrFileTimeout = errors.New("probe timed out")

// Options configures an Orchestrator.
type Options struct {
	// Root is the storage root containing drop_zone/ and raw/.
	Root string

	// MaxRows caps rows probed per file (DefaultMaxRows when <= 0).
	MaxRows int

	// Workers > 1 processes files concurrently. Records keep input order.
	Workers int

	// FileTimeout bounds one file's probe and match. Zero disables it.
	FileTimeout time.Duration

	// DryRun routes files without moving them or writing a log.
	DryRun bool

	// Clock overrides time.Now for run timestamps.
	Clock func() time.Time
}

// fileProber reads the row prefix of one file.
type fileProber interface {
	Probe(ctx context.Context, path string) (*ProbedFile, error)
}

// Orchestrator runs one batch over drop_zone/incoming: probe, match and
// relocate every file, then write the classification log.
type Orchestrator struct {
	opts      Options
	router    Router
	prober    fileProber
	matcher   *Matcher
	relocator *Relocator
	now       func() time.Time
}

// NewOrchestrator builds an orchestrator over cat. The catalog is fixed for
// the orchestrator's lifetime.
func NewOrchestrator(opts Options, cat *schema.Catalog) (*Orchestrator, error) {
	matcher, err := NewMatcher(cat)
	if err != nil {
		return nil, err
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	router := NewRouter(opts.Root)
	return &Orchestrator{
		opts:      opts,
		router:    router,
		prober:    NewProber(opts.MaxRows),
		matcher:   matcher,
		relocator: NewRelocator(router, WithDryRun(opts.DryRun), WithClock(now)),
		now:       now,
	}, nil
}

// Router returns the orchestrator's path layout.
func (o *Orchestrator) Router() Router {
	return o.router
}

// Run classifies every regular file in drop_zone/incoming, in name order.
// The run id is taken from ctx (logging.WithRunID) or generated.
//
// A missing incoming directory is not an error: the result is empty and
// IncomingMissing is set. If ctx is cancelled mid-run, files not yet
// processed stay in incoming, the log covers the processed ones, and the
// returned error wraps ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	runID := logging.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}
	logger := logging.FromContext(ctx)

	started := o.now()
	result := &RunResult{
		RunID:     runID,
		StartedAt: started,
		LoadDate:  started.Format(LoadDateLayout),
		DryRun:    o.opts.DryRun,
		Trigger:   TriggerFromContext(ctx),
		Records:   []Record{},
	}

	incoming := o.router.IncomingDir()
	files, err := listIncoming(incoming)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("incoming directory does not exist", "dir", incoming)
		result.IncomingMissing = true
		result.FinishedAt = o.now()
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		logger.Info("No files found in incoming", "dir", incoming)
		result.FinishedAt = o.now()
		return result, nil
	}

	logger.Info("classification run started",
		"files", len(files),
		"load_date", result.LoadDate,
		"workers", o.opts.Workers,
		"dry_run", o.opts.DryRun,
	)

	result.Records = o.process(ctx, files, started)
	result.Summary = Summarize(result.Records)
	result.FinishedAt = o.now()

	if len(result.Records) > 0 && !o.opts.DryRun {
		result.LogPath = o.router.LogPath(result.FinishedAt)
		if err := WriteLog(result.LogPath, result.Records); err != nil {
			return result, fmt.Errorf("write classification log: %w", err)
		}
		logger.Info("classification log written", "path", result.LogPath)
	}

	logger.Info("classification summary",
		"summary", result.Summary.String(),
		"duration_ms", result.Duration().Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("run interrupted after %d of %d files: %w",
			len(result.Records), len(files), err)
	}
	return result, nil
}

// listIncoming returns regular files directly under dir, sorted by name.
// Symlinks to regular files are included.
func listIncoming(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("incoming %s: %w", dir, fs.ErrNotExist)
	}

	// os.ReadDir returns entries sorted by filename
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read incoming directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

type fileResult struct {
	index  int
	record Record
	done   bool
}

// process classifies files and returns the records of processed files in
// input order.
func (o *Orchestrator) process(ctx context.Context, files []string, loadDate time.Time) []Record {
	results := make([]fileResult, len(files))

	if o.opts.Workers <= 1 {
		for i, path := range files {
			if ctx.Err() != nil {
				break
			}
			rec, ok := o.classifyFile(ctx, path, loadDate)
			results[i] = fileResult{index: i, record: rec, done: ok}
		}
		return collectRecords(results)
	}

	out := make(chan fileResult)

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	go func() {
		for i, path := range files {
			if ctx.Err() != nil {
				break
			}
			i, path := i, path
			g.Go(func() error {
				rec, ok := o.classifyFile(ctx, path, loadDate)
				out <- fileResult{index: i, record: rec, done: ok}
				return nil
			})
		}
		g.Wait()
		close(out)
	}()

	// single collector; records are placed by input index
	for r := range out {
		results[r.index] = r
	}
	return collectRecords(results)
}

func collectRecords(results []fileResult) []Record {
	records := make([]Record, 0, len(results))
	for _, r := range results {
		if r.done {
			records = append(records, r.record)
		}
	}
	return records
}

// classifyFile runs one file through probe, match and relocate. Any failure
// rejects the file. ok is false only when the run was cancelled before the
// file reached a terminal state; the file is then left in incoming.
func (o *Orchestrator) classifyFile(ctx context.Context, path string, loadDate time.Time) (Record, bool) {
	logger := logging.WithFields(ctx, "file", filepath.Base(path))
	state := StatePending

	pf, outcome, err := o.inspect(ctx, path)
	if err == nil {
		state = StateProbed
		logger.Debug("file probed", "state", state, "rows", len(pf.Rows))

		if outcome.Status == StatusMatched {
			state = StateMatched
		} else {
			state = StateUnclassified
		}

		var rec Record
		rec, err = o.relocator.Relocate(ctx, pf, outcome, loadDate)
		if err == nil {
			state = StateRelocated
			logger.Info("file classified",
				"state", state,
				"status", rec.Status,
				"schema_id", rec.SchemaID,
				"reason", rec.Reason,
				"rows_scanned", outcome.RowsScanned,
				"target", rec.TargetPath,
			)
			return rec, true
		}
	}

	if ctx.Err() != nil {
		logger.Warn("run cancelled, file left in incoming", "state", state)
		return Record{}, false
	}

	state = StateFailed
	logger.Error("file failed, rejecting", "state", state, "error", err)

	rec, rerr := o.relocator.Reject(ctx, path, err)
	if rerr != nil {
		logger.Error("reject move failed, file left in place",
			"target", rec.TargetPath,
			"error", rerr,
		)
		return rec, true
	}

	logger.Info("file classified",
		"state", StateRejected,
		"status", rec.Status,
		"code", rec.Code,
		"target", rec.TargetPath,
	)
	return rec, true
}

// inspect probes and matches path within the per-file timeout.
func (o *Orchestrator) inspect(ctx context.Context, path string) (*ProbedFile, Outcome, error) {
	if o.opts.FileTimeout <= 0 {
		return o.probeAndMatch(ctx, path)
	}

	fctx, cancel := context.WithTimeout(ctx, o.opts.FileTimeout)
	defer cancel()

	type inspected struct {
		pf      *ProbedFile
		outcome Outcome
		err     error
	}
	ch := make(chan inspected, 1)
	go func() {
		pf, outcome, err := o.probeAndMatch(fctx, path)
		ch <- inspected{pf: pf, outcome: outcome, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && fctx.Err() != nil && ctx.Err() == nil {
			return nil, Outcome{}, o.timeoutError(path)
		}
		return r.pf, r.outcome, r.err
	case <-fctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, Outcome{}, err
		}
		return nil, Outcome{}, o.timeoutError(path)
	}
}

func (o *Orchestrator) timeoutError(path string) error {
	return fmt.Errorf("%w after %s: %s", ErrFileTimeout, o.opts.FileTimeout, path)
}

func (o *Orchestrator) probeAndMatch(ctx context.Context, path string) (*ProbedFile, Outcome, error) {
	pf, err := o.prober.Probe(ctx, path)
	if err != nil {
		return nil, Outcome{}, err
	}
	return pf, o.matcher.Match(pf), nil
}
