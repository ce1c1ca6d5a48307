package core

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/dropzone/internal/schema"
	"github.com/google/uuid"
)

/* ----------------------------------------
	Outcome
---------------------------------------- */

// Status is the terminal classification of one file.
type Status string

const (
	StatusMatched      Status = "matched"
	StatusUnclassified Status = "unclassified"
	StatusRejected     Status = "rejected"
)

// Machine-readable reasons carried by unclassified outcomes.
const (
	ReasonNoFilePatternMatch = "no_file_pattern_match"
	ReasonNoHeaderMatch      = "no_header_match_for_any_candidate"
)

// Outcome is the decision for one probed file. Exactly one of the three
// shapes is populated, selected by Status:
//
//   - matched: Schema, HeaderRowIndex, MatchedColumns
//   - unclassified: Reason is one of the Reason* codes
//   - rejected: Reason is free text describing the failure
type Outcome struct {
	Status         Status
	Schema         *schema.Schema
	HeaderRowIndex int
	MatchedColumns []string
	Reason         string

	// RowsScanned counts probed rows examined across all candidates.
	RowsScanned int
}

// Matched builds a matched outcome.
func Matched(s schema.Schema, headerRow, scanned int) Outcome {
	cols := make([]string, len(s.RequiredColumns))
	copy(cols, s.RequiredColumns)
	return Outcome{
		Status:         StatusMatched,
		Schema:         &s,
		HeaderRowIndex: headerRow,
		MatchedColumns: cols,
		RowsScanned:    scanned,
	}
}

// Unclassified builds an unclassified outcome with a reason code.
func Unclassified(reason string, scanned int) Outcome {
	return Outcome{Status: StatusUnclassified, Reason: reason, HeaderRowIndex: -1, RowsScanned: scanned}
}

// Rejected builds a rejected outcome with a free-text reason.
func Rejected(reason string) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason, HeaderRowIndex: -1}
}

/* ----------------------------------------
	Probed file
---------------------------------------- */

// ProbedFile is the bounded row prefix of one file. Rows are never mutated
// after Probe returns.
type ProbedFile struct {
	Path      string
	Name      string
	Extension string
	Rows      [][]string
}

/* ----------------------------------------
	Per-file state
---------------------------------------- */

// FileState tracks one file through a run.
//
//	Pending -> Probed -> Matched|Unclassified -> Relocated
//	Pending -> Failed -> Rejected
type FileState string

const (
	StatePending      FileState = "pending"
	StateProbed       FileState = "probed"
	StateMatched      FileState = "matched"
	StateUnclassified FileState = "unclassified"
	StateRelocated    FileState = "relocated"
	StateFailed       FileState = "failed"
	StateRejected     FileState = "rejected"
)

/* ----------------------------------------
	Audit record
---------------------------------------- */

// Record is the audit entry for one processed file.
type Record struct {
	ID             uuid.UUID `json:"id"`
	RunID          string    `json:"run_id"`
	Timestamp      time.Time `json:"timestamp_utc"`
	OriginalPath   string    `json:"original_path"`
	TargetPath     string    `json:"target_path,omitempty"`
	Status         Status    `json:"status"`
	SchemaID       string    `json:"schema_id,omitempty"`
	SourceSystem   string    `json:"source_system,omitempty"`
	DatasetName    string    `json:"dataset_name,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	HeaderRowIndex *int      `json:"header_row_index,omitempty"`

	// Code is the support code for rejections (see MapError).
	Code string `json:"code,omitempty"`
}

// Summary counts records per status.
type Summary struct {
	Matched      int `json:"matched"`
	Unclassified int `json:"unclassified"`
	Rejected     int `json:"rejected"`
	Total        int `json:"total"`
}

// Summarize counts records by status.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		switch r.Status {
		case StatusMatched:
			s.Matched++
		case StatusUnclassified:
			s.Unclassified++
		case StatusRejected:
			s.Rejected++
		}
	}
	s.Total = len(records)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("matched=%d, unclassified=%d, rejected=%d, total=%d",
		s.Matched, s.Unclassified, s.Rejected, s.Total)
}

// RunResult describes one batch run.
type RunResult struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	LoadDate   string    `json:"load_date"`
	DryRun     bool      `json:"dry_run"`
	Trigger    Trigger   `json:"trigger"`
	Records    []Record  `json:"records"`
	Summary    Summary   `json:"summary"`

	// LogPath is empty when no log was written (no files, or dry run).
	LogPath string `json:"log_path,omitempty"`

	// IncomingMissing is set when drop_zone/incoming did not exist.
	IncomingMissing bool `json:"incoming_missing,omitempty"`
}

// Duration returns how long the run took.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
