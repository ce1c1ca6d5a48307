package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// LogTimeLayout formats timestamp_utc values in the classification log.
const LogTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// LogColumns is the header row of every classification log.
var LogColumns = []string{
	"timestamp_utc",
	"original_path",
	"target_path",
	"status",
	"schema_id",
	"source_system",
	"dataset_name",
	"reason",
	"header_row_index",
}

// WriteLog writes records to a new CSV file at path, creating parent
// directories. Fields that do not apply are left blank.
func WriteLog(path string, records []Record) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create classification log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close classification log: %w", cerr)
		}
	}()

	return EncodeLog(f, records)
}

// EncodeLog writes records as classification log CSV to w, header first.
func EncodeLog(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LogColumns); err != nil {
		return fmt.Errorf("write log header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(logRow(r)); err != nil {
			return fmt.Errorf("write log row for %s: %w", r.OriginalPath, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush classification log: %w", err)
	}
	return nil
}

func logRow(r Record) []string {
	headerRow := ""
	if r.HeaderRowIndex != nil {
		headerRow = strconv.Itoa(*r.HeaderRowIndex)
	}
	return []string{
		r.Timestamp.UTC().Format(LogTimeLayout),
		r.OriginalPath,
		r.TargetPath,
		string(r.Status),
		r.SchemaID,
		r.SourceSystem,
		r.DatasetName,
		r.Reason,
		headerRow,
	}
}
