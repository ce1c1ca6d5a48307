// Package application implements the interactive terminal menu.
package application

import (
	"strings"

	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/handler"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#86AAEC")).MarginBottom(1)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).MarginTop(1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).MarginTop(1)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).PaddingLeft(2)
)

// Model is the Bubble Tea model for the menu.
type Model struct {
	svc    *core.Service
	menu   *Menu
	cursor int

	busy   bool
	status string
	err    error
}

// New builds the menu over svc.
func New(svc *core.Service) Model {
	m := Model{svc: svc}
	m.menu = buildMenuTree(&m)
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case handler.WdMsg:
		m.busy, m.status, m.err = false, string(msg), nil
	case handler.DoneMsg:
		m.busy, m.status, m.err = false, string(msg), nil
	case handler.RunMsg:
		m.busy, m.status, m.err = false, handler.FormatRun(msg.Result), nil
	case handler.ErrMsg:
		m.busy, m.status, m.err = false, "", msg.Err
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.menu.Items)-1 {
			m.cursor++
		}
	case "esc", "backspace":
		if m.menu.Parent != nil {
			m.menu, m.cursor = m.menu.Parent, 0
		}
	case "enter", " ":
		if m.busy {
			return m, nil
		}
		return m.selectItem()
	}
	return m, nil
}

func (m Model) selectItem() (tea.Model, tea.Cmd) {
	item := m.menu.Items[m.cursor]

	switch {
	case item.Label == "Back" && item.Submenu == nil:
		// Back on the root menu
		return m, nil
	case item.Submenu != nil:
		m.menu, m.cursor = item.Submenu, 0
		return m, nil
	case item.Action != nil:
		m.busy, m.status, m.err = true, "Working...", nil
		return m, item.Action()
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.menu.Title))
	b.WriteString("\n")

	for i, item := range m.menu.Items {
		switch {
		case i == m.cursor:
			b.WriteString(cursorStyle.Render("> " + item.Label))
		case item.Action == nil && item.Submenu == nil && item.Label != "Back":
			b.WriteString(disabledStyle.Render(item.Label))
		default:
			b.WriteString(itemStyle.Render(item.Label))
		}
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + core.FormatUserError(m.err)))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move • enter select • esc back • q quit"))
	b.WriteString("\n")
	return b.String()
}
