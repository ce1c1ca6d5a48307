package application

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/handler"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "drop_zone", "incoming"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "schemas"), 0o755))

	svc := core.NewService(core.ServiceConfig{
		Options:   core.Options{Root: root},
		SchemaDir: filepath.Join(root, "schemas"),
	}, nil)
	return New(svc)
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

var (
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyQuit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
)

func TestModel_Navigation(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, "Main Menu", m.menu.Title)

	m, _ = press(t, m, keyUp)
	assert.Equal(t, 0, m.cursor, "cursor stops at the top")

	m, _ = press(t, m, keyDown, keyDown, keyEnter)
	assert.Equal(t, "Info", m.menu.Title)
	assert.Equal(t, 0, m.cursor)

	m, _ = press(t, m, keyEsc)
	assert.Equal(t, "Main Menu", m.menu.Title)

	m, _ = press(t, m, keyDown, keyDown, keyDown, keyEnter)
	assert.Equal(t, "Requeue", m.menu.Title)

	// "Back" returns to the parent
	m, _ = press(t, m, keyDown, keyDown, keyEnter)
	assert.Equal(t, "Main Menu", m.menu.Title)

	m, _ = press(t, m, keyDown, keyDown, keyDown, keyDown, keyDown)
	assert.Equal(t, len(m.menu.Items)-1, m.cursor, "cursor stops at the bottom")
}

func TestModel_ActionRoundTrip(t *testing.T) {
	m := newTestModel(t)

	m, cmd := press(t, m, keyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Contains(t, m.View(), "Working...")

	// a second enter while busy is ignored
	_, again := press(t, m, keyEnter)
	assert.Nil(t, again)

	msg := cmd()
	require.IsType(t, handler.RunMsg{}, msg)

	next, _ := m.Update(msg)
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Contains(t, m.View(), "total=0")
}

func TestModel_ErrorMessage(t *testing.T) {
	m := newTestModel(t)

	next, _ := m.Update(handler.ErrMsg{Err: core.NewUserError(core.ErrRunInProgress)})
	m = next.(Model)
	assert.Contains(t, m.View(), "RUN001")

	next, _ = m.Update(handler.DoneMsg("ok"))
	m = next.(Model)
	assert.NotContains(t, m.View(), "RUN001")
	assert.Contains(t, m.View(), "ok")

	next, _ = m.Update(handler.ErrMsg{Err: errors.New("boom")})
	m = next.(Model)
	assert.Contains(t, m.View(), "ERR000")
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t)

	_, cmd := press(t, m, keyQuit)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
