package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of *pgxpool.Pool the audit sink uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// DefaultAuditTimeout bounds one sink write.
const DefaultAuditTimeout = 30 * time.Second

const createAuditTableSQL = `
CREATE TABLE IF NOT EXISTS classification_audit (
	id               UUID PRIMARY KEY,
	run_id           TEXT NOT NULL,
	recorded_at      TIMESTAMPTZ NOT NULL,
	original_path    TEXT NOT NULL,
	target_path      TEXT,
	status           TEXT NOT NULL,
	schema_id        TEXT,
	source_system    TEXT,
	dataset_name     TEXT,
	reason           TEXT,
	header_row_index INTEGER,
	error_code       TEXT,
	load_date        DATE NOT NULL,
	dry_run          BOOLEAN NOT NULL DEFAULT FALSE,
	triggered_by     TEXT
);
CREATE INDEX IF NOT EXISTS classification_audit_run_id_idx ON classification_audit (run_id);`

const insertAuditSQL = `
INSERT INTO classification_audit (
	id, run_id, recorded_at, original_path, target_path, status, schema_id,
	source_system, dataset_name, reason, header_row_index, error_code,
	load_date, dry_run, triggered_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO NOTHING`

const selectAuditSQL = `
SELECT id, run_id, recorded_at, original_path, target_path, status, schema_id,
	source_system, dataset_name, reason, header_row_index, error_code
FROM classification_audit`

// AuditSink copies run records into Postgres. Failures are reported to the
// caller and never change file outcomes.
type AuditSink struct {
	db      DBTX
	timeout time.Duration
}

// NewAuditSink returns a sink writing through db.
func NewAuditSink(db DBTX, timeout time.Duration) *AuditSink {
	if timeout <= 0 {
		timeout = DefaultAuditTimeout
	}
	return &AuditSink{db: db, timeout: timeout}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *AuditSink) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.Exec(ctx, createAuditTableSQL); err != nil {
		return fmt.Errorf("create classification_audit: %w", err)
	}
	return nil
}

// RecordRun inserts every record of run in one batch.
func (s *AuditSink) RecordRun(ctx context.Context, run *RunResult) error {
	if run == nil || len(run.Records) == 0 {
		return nil
	}

	loadDate, err := time.Parse(LoadDateLayout, run.LoadDate)
	if err != nil {
		return fmt.Errorf("audit run %s: load date: %w", run.RunID, err)
	}

	batch := &pgx.Batch{}
	for _, r := range run.Records {
		batch.Queue(insertAuditSQL,
			pgtype.UUID{Bytes: r.ID, Valid: r.ID != uuid.Nil},
			run.RunID,
			pgtype.Timestamptz{Time: r.Timestamp, Valid: true},
			r.OriginalPath,
			toPgText(r.TargetPath),
			string(r.Status),
			toPgText(r.SchemaID),
			toPgText(r.SourceSystem),
			toPgText(r.DatasetName),
			toPgText(r.Reason),
			toPgInt4(r.HeaderRowIndex),
			toPgText(r.Code),
			pgtype.Date{Time: loadDate, Valid: true},
			run.DryRun,
			toPgText(run.Trigger.String()),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	br := s.db.SendBatch(ctx, batch)
	for _, r := range run.Records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("audit insert for %s: %w", r.OriginalPath, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("audit batch for run %s: %w", run.RunID, err)
	}
	return nil
}

// AuditFilter narrows ListRecords. Zero values match everything.
type AuditFilter struct {
	RunID  string
	Status Status
	Limit  int
}

// DefaultAuditLimit caps ListRecords when no limit is given.
const DefaultAuditLimit = 100

// ListRecords returns audit rows, newest first.
func (s *AuditSink) ListRecords(ctx context.Context, filter AuditFilter) ([]Record, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}

	var conditions []string
	var args []any
	if filter.RunID != "" {
		args = append(args, filter.RunID)
		conditions = append(conditions, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := selectAuditSQL
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY recorded_at DESC LIMIT $%d", len(args))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query classification_audit: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanAuditRecord)
	if err != nil {
		return nil, fmt.Errorf("scan classification_audit: %w", err)
	}
	return records, nil
}

func scanAuditRecord(row pgx.CollectableRow) (Record, error) {
	var r Record
	var status string
	var id pgtype.UUID
	var recordedAt pgtype.Timestamptz
	var target, schemaID, source, dataset, why, code pgtype.Text
	var headerRow pgtype.Int4

	err := row.Scan(&id, &r.RunID, &recordedAt, &r.OriginalPath, &target, &status,
		&schemaID, &source, &dataset, &why, &headerRow, &code)
	if err != nil {
		return Record{}, err
	}

	r.ID = uuid.UUID(id.Bytes)
	r.Timestamp = recordedAt.Time
	r.TargetPath = target.String
	r.Status = Status(status)
	r.SchemaID = schemaID.String
	r.SourceSystem = source.String
	r.DatasetName = dataset.String
	r.Reason = why.String
	r.Code = code.String
	if headerRow.Valid {
		idx := int(headerRow.Int32)
		r.HeaderRowIndex = &idx
	}
	return r, nil
}

// Helper functions for type conversion

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgInt4(i *int) pgtype.Int4 {
	if i == nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(*i), Valid: true}
}
