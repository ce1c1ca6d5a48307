package core

import (
	"fmt"

	"github.com/JonMunkholm/dropzone/internal/schema"
)

// Matcher picks the schema a probed file belongs to. It is built once per
// run from a catalog and is safe for concurrent use.
type Matcher struct {
	entries []matchEntry
}

type matchEntry struct {
	schema   schema.Schema
	globs    []*Glob
	required map[string]struct{}
}

// NewMatcher compiles the file patterns of every schema in cat.
func NewMatcher(cat *schema.Catalog) (*Matcher, error) {
	m := &Matcher{entries: make([]matchEntry, 0, cat.Len())}

	for _, s := range cat.All() {
		e := matchEntry{
			schema:   s,
			globs:    make([]*Glob, 0, len(s.FilePatterns)),
			required: make(map[string]struct{}, len(s.RequiredColumns)),
		}
		for _, p := range s.FilePatterns {
			g, err := CompileGlob(p)
			if err != nil {
				return nil, fmt.Errorf("schema %s: %w", s.ID, err)
			}
			e.globs = append(e.globs, g)
		}
		for _, col := range s.RequiredColumns {
			e.required[col] = struct{}{}
		}
		m.entries = append(m.entries, e)
	}

	return m, nil
}

// Match classifies pf. It never returns a rejected outcome; read failures
// are the caller's concern.
//
// Candidates are schemas with a file pattern matching the base name. Among
// candidates whose required columns all appear in one row, the schema with
// the most required columns wins, then the lowest header row, then catalog
// order.
func (m *Matcher) Match(pf *ProbedFile) Outcome {
	best := -1
	bestRow := -1
	bestCount := -1
	candidates := 0
	scanned := 0

	for i := range m.entries {
		e := &m.entries[i]
		if !e.matchesName(pf.Name) {
			continue
		}
		candidates++

		row, n := e.headerRow(pf.Rows)
		scanned += n
		if row < 0 {
			continue
		}

		count := len(e.schema.RequiredColumns)
		if count > bestCount || (count == bestCount && row < bestRow) {
			best, bestRow, bestCount = i, row, count
		}
	}

	switch {
	case candidates == 0:
		return Unclassified(ReasonNoFilePatternMatch, 0)
	case best < 0:
		return Unclassified(ReasonNoHeaderMatch, scanned)
	}
	return Matched(m.entries[best].schema, bestRow, scanned)
}

func (e *matchEntry) matchesName(name string) bool {
	for _, g := range e.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// headerRow returns the index of the first row containing every required
// column, or -1, along with how many rows were examined.
func (e *matchEntry) headerRow(rows [][]string) (int, int) {
	for idx, row := range rows {
		if containsAll(row, e.required) {
			return idx, idx + 1
		}
	}
	return -1, len(rows)
}

// containsAll reports whether the non-empty cells of row include every key
// of required. Rows with no non-empty cells never qualify.
func containsAll(row []string, required map[string]struct{}) bool {
	present := make(map[string]struct{}, len(row))
	for _, cell := range row {
		if cell != "" {
			present[cell] = struct{}{}
		}
	}
	if len(present) == 0 {
		return false
	}
	for col := range required {
		if _, ok := present[col]; !ok {
			return false
		}
	}
	return true
}
