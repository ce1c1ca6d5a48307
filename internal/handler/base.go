// Package handler adapts classification operations to Bubble Tea commands
// for the interactive menu.
package handler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/dropzone/internal/core"
	tea "github.com/charmbracelet/bubbletea"
)

// RunTimeout is the maximum duration for a menu-triggered run.
// Can be overridden for testing.
var RunTimeout = 10 * time.Minute

type WdMsg string
type DoneMsg string
type ErrMsg struct{ Err error }

// RunMsg carries the result of a completed run.
type RunMsg struct{ Result *core.RunResult }

// Classifier exposes Service operations as menu actions.
type Classifier struct {
	Service *core.Service
}

// NewClassifier returns a Classifier backed by svc.
func NewClassifier(svc *core.Service) *Classifier {
	return &Classifier{Service: svc}
}

// Classify moves every file in incoming to its destination.
func (c *Classifier) Classify() tea.Cmd {
	return c.run(core.RunRequest{})
}

// DryRun reports where files would go without moving them.
func (c *Classifier) DryRun() tea.Cmd {
	return c.run(core.RunRequest{DryRun: true})
}

func (c *Classifier) run(req core.RunRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RunTimeout)
		defer cancel()

		ctx = core.ContextWithTrigger(ctx, core.Trigger{Source: "menu"})

		result, err := c.Service.Classify(ctx, req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrMsg{Err: fmt.Errorf("run timed out after %v", RunTimeout)}
			}
			return ErrMsg{Err: core.NewUserError(err)}
		}
		return RunMsg{Result: result}
	}
}

// ListSchemas reports the loaded schema catalog.
func (c *Classifier) ListSchemas() tea.Cmd {
	return func() tea.Msg {
		schemas, err := c.Service.Schemas()
		if err != nil {
			return ErrMsg{Err: core.NewUserError(err)}
		}
		if len(schemas) == 0 {
			return WdMsg("No schemas defined in " + c.Service.SchemaDir())
		}

		var b strings.Builder
		for i, s := range schemas {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s -> %s/%s  %s", s.ID, s.SourceSystem, s.DatasetName,
				strings.Join(s.FilePatterns, ", "))
		}
		return WdMsg(b.String())
	}
}

// LastRun reports the most recent run kept in history.
func (c *Classifier) LastRun() tea.Cmd {
	return func() tea.Msg {
		result, ok := c.Service.History().Latest()
		if !ok {
			return WdMsg("No runs yet")
		}
		return RunMsg{Result: result}
	}
}

// FormatRun renders a run result as plain text, one line per file.
func FormatRun(r *core.RunResult) string {
	var b strings.Builder

	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(&b, "Run %s%s: %s", r.RunID, mode, r.Summary.String())

	if r.IncomingMissing {
		b.WriteString("\nincoming directory does not exist")
	}
	for _, rec := range r.Records {
		detail := rec.Reason
		if rec.Status == core.StatusMatched {
			detail = rec.SchemaID
		}
		fmt.Fprintf(&b, "\n  %-12s %s -> %s", rec.Status, filepath.Base(rec.OriginalPath), detail)
	}
	if r.LogPath != "" {
		fmt.Fprintf(&b, "\nlog: %s", r.LogPath)
	}
	return b.String()
}
