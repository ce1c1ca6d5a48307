package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/google/uuid"
)

// Relocator moves classified files to their destinations and produces the
// audit record for each move.
type Relocator struct {
	router Router
	dryRun bool
	now    func() time.Time
}

// RelocatorOption configures a Relocator.
type RelocatorOption func(*Relocator)

// WithDryRun computes destinations and records without touching the filesystem.
func WithDryRun(dryRun bool) RelocatorOption {
	return func(r *Relocator) { r.dryRun = dryRun }
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) RelocatorOption {
	return func(r *Relocator) { r.now = now }
}

// NewRelocator returns a Relocator writing under router.Root.
func NewRelocator(router Router, opts ...RelocatorOption) *Relocator {
	r := &Relocator{router: router, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DryRun reports whether moves are skipped.
func (r *Relocator) DryRun() bool {
	return r.dryRun
}

// Relocate moves pf.Path to the destination for o and returns its record.
// On failure no record is returned; the caller decides how to reject.
func (r *Relocator) Relocate(ctx context.Context, pf *ProbedFile, o Outcome, loadDate time.Time) (Record, error) {
	target := r.router.Destination(o, loadDate, pf.Name)

	if err := r.move(ctx, pf.Path, target); err != nil {
		return Record{}, err
	}

	rec := r.newRecord(ctx, pf.Path, target, o.Status, o.Reason)
	if o.Status == StatusMatched && o.Schema != nil {
		rec.SchemaID = o.Schema.ID
		rec.SourceSystem = o.Schema.SourceSystem
		rec.DatasetName = o.Schema.DatasetName
		idx := o.HeaderRowIndex
		rec.HeaderRowIndex = &idx
	}
	return rec, nil
}

// Reject moves path to drop_zone/rejected with cause as the reason. The
// record is always returned, with the computed rejected path as target; a
// non-nil error means the file could not be moved and is still at path.
func (r *Relocator) Reject(ctx context.Context, path string, cause error) (Record, error) {
	o := Rejected(cause.Error())
	target := r.router.Destination(o, time.Time{}, filepath.Base(path))

	rec := r.newRecord(ctx, path, target, o.Status, o.Reason)
	rec.Code = MapError(cause).Code

	if _, err := os.Lstat(path); err != nil {
		// nothing left to move
		if errors.Is(err, fs.ErrNotExist) {
			return rec, nil
		}
		return rec, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := r.move(ctx, path, target); err != nil {
		return rec, err
	}
	return rec, nil
}

func (r *Relocator) newRecord(ctx context.Context, path, target string, status Status, reason string) Record {
	return Record{
		ID:           uuid.New(),
		RunID:        logging.RunID(ctx),
		Timestamp:    r.now().UTC(),
		OriginalPath: path,
		TargetPath:   target,
		Status:       status,
		Reason:       reason,
	}
}

func (r *Relocator) move(ctx context.Context, src, dst string) error {
	logger := logging.WithFields(ctx, "src", src, "dst", dst)

	if r.dryRun {
		logger.Debug("dry run: skipping move")
		return nil
	}

	if _, err := os.Lstat(dst); err == nil {
		logger.Warn("destination exists, overwriting")
	}

	if err := MoveFile(src, dst); err != nil {
		return err
	}
	logger.Debug("file moved")
	return nil
}

/* ----------------------------------------
	Filesystem moves
---------------------------------------- */

// MoveFile moves src to dst, creating parent directories and replacing an
// existing dst. Moves across filesystems fall back to copy and delete.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}

	return copyThenRemove(src, dst)
}

// removeFile deletes the source after a cross-device copy.
var removeFile = os.Remove

// copyThenRemove copies src to dst and deletes src. When src cannot be
// deleted the copy is removed again, so the file stays only at src.
func copyThenRemove(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := removeFile(src); err != nil {
		err = fmt.Errorf("remove %s after copy: %w", src, err)
		if rerr := os.Remove(dst); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			return errors.Join(err, fmt.Errorf("undo copy to %s: %w", dst, rerr))
		}
		return err
	}
	return nil
}

// copyFile copies src to dst and syncs it. A partial dst is removed on failure.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source file: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close destination file: %w", cerr)
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return nil
}
