// Package admin provides administrative operations on the drop zone.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/handler"
	"github.com/JonMunkholm/dropzone/internal/logging"
	tea "github.com/charmbracelet/bubbletea"
)

// RequeueTimeout is the maximum duration for a requeue operation.
const RequeueTimeout = 30 * time.Second

// ErrRequeueConflict is returned when incoming already holds a file with the
// same name. The file is left where it is.
var ErrRequeueConflict = errors.New("file already in incoming")

// Area is a drop zone directory files can be requeued from.
type Area string

const (
	AreaUnclassified Area = "unclassified"
	AreaRejected     Area = "rejected"
)

// ParseArea validates an area name.
func ParseArea(s string) (Area, error) {
	switch Area(s) {
	case AreaUnclassified, AreaRejected:
		return Area(s), nil
	}
	return "", fmt.Errorf("unknown drop zone area %q (want %s or %s)", s, AreaUnclassified, AreaRejected)
}

// Moved is one requeued file.
type Moved struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Requeuer moves files from unclassified or rejected back to incoming so the
// next run classifies them again, typically after a schema was added.
type Requeuer struct {
	Router core.Router
	DryRun bool
}

func (r *Requeuer) dir(area Area) (string, error) {
	switch area {
	case AreaUnclassified:
		return r.Router.UnclassifiedDir(), nil
	case AreaRejected:
		return r.Router.RejectedDir(), nil
	}
	return "", fmt.Errorf("unknown drop zone area %q", area)
}

// Requeue moves every regular file in area to incoming. Conflicting names
// are skipped; their errors are joined into the returned error alongside the
// files that did move.
func (r *Requeuer) Requeue(ctx context.Context, area Area) ([]Moved, error) {
	dir, err := r.dir(area)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var moved []Moved
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !entry.Type().IsRegular() {
			continue
		}

		m, err := r.RequeueFile(ctx, area, entry.Name())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		moved = append(moved, m)
	}
	return moved, errors.Join(errs...)
}

// RequeueFile moves one file, named by its base name, from area to incoming.
func (r *Requeuer) RequeueFile(ctx context.Context, area Area, name string) (Moved, error) {
	dir, err := r.dir(area)
	if err != nil {
		return Moved{}, err
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return Moved{}, fmt.Errorf("invalid file name %q", name)
	}

	m := Moved{
		From: filepath.Join(dir, name),
		To:   filepath.Join(r.Router.IncomingDir(), name),
	}

	info, err := os.Stat(m.From)
	if err != nil {
		return Moved{}, fmt.Errorf("%w: %s", core.ErrFileNotFound, m.From)
	}
	if !info.Mode().IsRegular() {
		return Moved{}, fmt.Errorf("%w: %s is not a regular file", core.ErrFileNotFound, m.From)
	}
	if _, err := os.Lstat(m.To); err == nil {
		return Moved{}, fmt.Errorf("%w: %s", ErrRequeueConflict, name)
	}

	logger := logging.WithFields(ctx, "from", m.From, "to", m.To)
	if r.DryRun {
		logger.Info("dry run: would requeue file")
		return m, nil
	}

	if err := core.MoveFile(m.From, m.To); err != nil {
		return Moved{}, err
	}
	logger.Info("file requeued", "area", area)
	return m, nil
}

/* ----------------------------------------
	Menu actions
---------------------------------------- */

// RequeueUnclassified requeues every unclassified file.
func (r *Requeuer) RequeueUnclassified() tea.Cmd {
	return r.requeueCmd(AreaUnclassified)
}

// RequeueRejected requeues every rejected file.
func (r *Requeuer) RequeueRejected() tea.Cmd {
	return r.requeueCmd(AreaRejected)
}

func (r *Requeuer) requeueCmd(area Area) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RequeueTimeout)
		defer cancel()

		moved, err := r.Requeue(ctx, area)
		if err != nil {
			return handler.ErrMsg{Err: fmt.Errorf("requeued %d %s file(s): %w", len(moved), area, err)}
		}
		return handler.DoneMsg(fmt.Sprintf("Requeued %d %s file(s)", len(moved), area))
	}
}
