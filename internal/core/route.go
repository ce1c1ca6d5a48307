package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/dropzone/internal/schema"
)

const (
	// LoadDateLayout formats the load_date partition value.
	LoadDateLayout = "2006-01-02"

	// LogTimestampLayout formats the classification log file name.
	LogTimestampLayout = "20060102_150405"

	loadDatePrefix = "load_date="
)

// ErrNotRawPath is returned by ParseRawPath for paths outside the raw layout.
var ErrNotRawPath = errors.New("not a raw layer path")

// Router computes destinations under a storage root. It does no I/O.
type Router struct {
	Root string
}

// NewRouter returns a Router for root.
func NewRouter(root string) Router {
	return Router{Root: root}
}

/* ----------------------------------------
	Destinations
---------------------------------------- */

// RawPath returns {root}/raw/{source_system}/{dataset_name}/load_date={date}/{filename}.
func (r Router) RawPath(s schema.Schema, loadDate time.Time, filename string) string {
	return filepath.Join(r.Root, "raw", s.SourceSystem, s.DatasetName,
		loadDatePrefix+loadDate.Format(LoadDateLayout), filename)
}

// UnclassifiedPath returns {root}/drop_zone/unclassified/{filename}.
func (r Router) UnclassifiedPath(filename string) string {
	return filepath.Join(r.Root, "drop_zone", "unclassified", filename)
}

// RejectedPath returns {root}/drop_zone/rejected/{filename}.
func (r Router) RejectedPath(filename string) string {
	return filepath.Join(r.Root, "drop_zone", "rejected", filename)
}

// Destination returns where a file with outcome o belongs. Unknown statuses
// route to unclassified.
func (r Router) Destination(o Outcome, loadDate time.Time, filename string) string {
	switch o.Status {
	case StatusMatched:
		if o.Schema != nil {
			return r.RawPath(*o.Schema, loadDate, filename)
		}
	case StatusRejected:
		return r.RejectedPath(filename)
	}
	return r.UnclassifiedPath(filename)
}

/* ----------------------------------------
	Drop zone layout
---------------------------------------- */

// IncomingDir returns {root}/drop_zone/incoming.
func (r Router) IncomingDir() string {
	return filepath.Join(r.Root, "drop_zone", "incoming")
}

// UnclassifiedDir returns {root}/drop_zone/unclassified.
func (r Router) UnclassifiedDir() string {
	return filepath.Join(r.Root, "drop_zone", "unclassified")
}

// RejectedDir returns {root}/drop_zone/rejected.
func (r Router) RejectedDir() string {
	return filepath.Join(r.Root, "drop_zone", "rejected")
}

// LogDir returns {root}/drop_zone/classification_logs.
func (r Router) LogDir() string {
	return filepath.Join(r.Root, "drop_zone", "classification_logs")
}

// LogPath returns the classification log path for a run finished at ts.
// ts is converted to UTC.
func (r Router) LogPath(ts time.Time) string {
	return filepath.Join(r.LogDir(), "classification_"+ts.UTC().Format(LogTimestampLayout)+".csv")
}

/* ----------------------------------------
	Raw layer parsing
---------------------------------------- */

// Partition identifies one load of one dataset in the raw layer.
type Partition struct {
	SourceSystem string
	DatasetName  string
	LoadDate     time.Time
	Filename     string
}

// ParseRawPath recovers the partition of a path built by RawPath.
func (r Router) ParseRawPath(path string) (Partition, error) {
	rel, err := filepath.Rel(filepath.Join(r.Root, "raw"), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Partition{}, fmt.Errorf("%w: %s", ErrNotRawPath, path)
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 || !strings.HasPrefix(parts[2], loadDatePrefix) {
		return Partition{}, fmt.Errorf("%w: %s", ErrNotRawPath, path)
	}

	d, err := time.Parse(LoadDateLayout, strings.TrimPrefix(parts[2], loadDatePrefix))
	if err != nil {
		return Partition{}, fmt.Errorf("%w: %s: %v", ErrNotRawPath, path, err)
	}

	return Partition{
		SourceSystem: parts[0],
		DatasetName:  parts[1],
		LoadDate:     d,
		Filename:     parts[3],
	}, nil
}
