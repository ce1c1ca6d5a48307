package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/dropzone/internal/admin"
	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/go-chi/chi/v5"
)

// errAuditDisabled is returned by audit routes when no sink is configured.
var errAuditDisabled = errors.New("audit sink is not configured")

/* ----------------------------------------
	Health and catalog
---------------------------------------- */

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
		"run":            s.service.Status(),
	})
}

// handleListSchemas returns the catalog as it would be loaded for the next run.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.service.Schemas()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dir":     s.service.SchemaDir(),
		"schemas": schemas,
	})
}

/* ----------------------------------------
	Runs
---------------------------------------- */

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// handleStartRun runs one batch synchronously and returns its result.
// ?dry_run=true computes destinations without moving files.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	dryRun, err := parseBoolParam(r, "dry_run")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   err.Error(),
			Message: "dry_run must be true or false",
			Code:    "REQ001",
		})
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)

	// the run is not tied to the client connection or the request timeout
	runCtx := context.WithoutCancel(ctx)
	if timeout := s.cfg.Classify.RunTimeout; timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	result, err := s.service.Classify(runCtx, core.RunRequest{DryRun: dryRun})
	if err != nil && result == nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err != nil {
		// interrupted run: files already moved are reported
		logging.FromContext(ctx).Warn("run finished with error", "error", err, "run_id", result.RunID)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.service.History().List()

	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, summarizeRun(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.service.History().Latest()
	if !ok {
		writeNotFound(w, "no runs yet")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.service.History().Get(chi.URLParam(r, "runID"))
	if !ok {
		writeNotFound(w, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRunLog returns a run's records in classification log CSV format.
func (s *Server) handleRunLog(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, ok := s.service.History().Get(runID)
	if !ok {
		writeNotFound(w, "run not found")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="classification_%s.csv"`, runID))
	if err := core.EncodeLog(w, run.Records); err != nil {
		logging.FromContext(r.Context()).Error("write run log", "error", err, "run_id", runID)
	}
}

// runSummary is the list view of a run, without records.
type runSummary struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	DryRun     bool         `json:"dry_run"`
	Trigger    core.Trigger `json:"trigger"`
	Summary    core.Summary `json:"summary"`
	LogPath    string       `json:"log_path,omitempty"`
}

func summarizeRun(run *core.RunResult) runSummary {
	return runSummary{
		RunID:      run.RunID,
		StartedAt:  run.StartedAt,
		DurationMS: run.Duration().Milliseconds(),
		DryRun:     run.DryRun,
		Trigger:    run.Trigger,
		Summary:    run.Summary,
		LogPath:    run.LogPath,
	}
}

/* ----------------------------------------
	Requeue
---------------------------------------- */

// handleRequeue moves files from unclassified or rejected back to incoming.
// ?file=name requeues a single file.
func (s *Server) handleRequeue(w http.ResponseWriter, r *http.Request) {
	area, err := admin.ParseArea(chi.URLParam(r, "area"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   err.Error(),
			Message: "area must be unclassified or rejected",
			Code:    "REQ002",
		})
		return
	}

	requeuer := &admin.Requeuer{Router: s.service.Router()}
	ctx := WithRequestMetadata(r.Context(), r)

	if name := r.URL.Query().Get("file"); name != "" {
		moved, err := requeuer.RequeueFile(ctx, area, name)
		if err != nil {
			s.respondError(w, r, err, 0)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"moved": []admin.Moved{moved}})
		return
	}

	moved, err := requeuer.Requeue(ctx, area)
	if moved == nil {
		moved = []admin.Moved{}
	}
	if err != nil {
		msg := core.MapError(err)
		writeJSON(w, statusFor(err), map[string]any{
			"moved": moved,
			"error": ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved})
}

/* ----------------------------------------
	Audit
---------------------------------------- */

// handleListAudit queries the audit sink. Supports run_id, status and limit.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	sink := s.service.Audit()
	if sink == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   errAuditDisabled.Error(),
			Message: "Classification records are not stored in a database",
			Action:  "Set DATABASE_URL to enable the audit sink",
			Code:    "DB003",
		})
		return
	}

	q := r.URL.Query()
	filter := core.AuditFilter{
		RunID:  q.Get("run_id"),
		Status: core.Status(q.Get("status")),
		Limit:  parseIntParam(r, "limit", core.DefaultAuditLimit),
	}

	records, err := sink.ListRecords(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

/* ----------------------------------------
	Helpers
---------------------------------------- */

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseBoolParam parses an optional boolean query parameter.
func parseBoolParam(r *http.Request, name string) (bool, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, val)
	}
	return b, nil
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: message, Message: message, Code: "REQ404"})
}
