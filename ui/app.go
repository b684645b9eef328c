// Package ui is the interactive session browser: the same resolved rows as
// the text output, in a scrollable fullscreen view.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/lastdb/lastdb/model"
	"github.com/lastdb/lastdb/render"
	"github.com/lastdb/lastdb/timefmt"
)

// Item is one browsable row plus the raw login time it was resolved from,
// kept for relative-time display.
type Item struct {
	Row   model.Row
	Login uint64
}

// lineCfg matches the default text output of the last subcommand.
var lineCfg = render.Config{LoginLen: 16, LogoutLen: 5}

// Model is the bubbletea model.
type Model struct {
	items  []Item
	footer string

	width  int
	height int

	cursor   int
	offset   int // first visible row
	showHelp bool
}

// Browse runs the interactive browser over pre-resolved rows.
func Browse(items []Item, footer string) error {
	m := Model{items: items, footer: footer}
	_, err := tea.NewProgram(&m, tea.WithAltScreen()).Run()
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd { return nil }

// visibleRows is the number of item lines that fit between the chrome.
func (m *Model) visibleRows() int {
	// title + column header above, status + help below
	n := m.height - 4
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Model) clampScroll() {
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	vis := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+vis {
		m.offset = m.cursor - vis + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.cursor--
		case "down", "j":
			m.cursor++
		case "pgup":
			m.cursor -= m.visibleRows()
		case "pgdown", " ":
			m.cursor += m.visibleRows()
		case "g", "home":
			m.cursor = 0
		case "G", "end":
			m.cursor = len(m.items) - 1
		case "?":
			m.showHelp = !m.showHelp
		}
		m.clampScroll()
	}
	return m, nil
}

// stateStyle picks the row color from the duration's state marker.
func stateStyle(r model.Row) func(...string) string {
	switch {
	case strings.HasPrefix(r.Duration, "?") || r.Logout == "crash":
		return crashStyle.Render
	case strings.HasPrefix(r.Duration, ".") || r.Logout == "still":
		return liveStyle.Render
	}
	return rowStyle.Render
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("lastdb — session history"))
	b.WriteString("\n")
	header := render.Line(model.Row{
		User: "USER", TTY: "TTY", Host: "HOST",
		Login: "LOGIN", Logout: "OUT", Duration: "LENGTH",
	}, lineCfg)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString(statusStyle.Render("(no entries)"))
		b.WriteString("\n")
	}

	vis := m.visibleRows()
	for i := m.offset; i < len(m.items) && i < m.offset+vis; i++ {
		line := render.Line(m.items[i].Row, lineCfg)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(stateStyle(m.items[i].Row)(line))
		}
		b.WriteString("\n")
	}

	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(helpStyle.Render("↑/↓ move · pgup/pgdn page · g/G ends · q quit"))
	} else {
		b.WriteString(helpStyle.Render("? help · q quit"))
	}
	return b.String()
}

// statusLine describes the selected session and the database footer.
func (m *Model) statusLine() string {
	if len(m.items) == 0 {
		return m.footer
	}
	it := m.items[m.cursor]
	logged := humanize.Time(time.Unix(int64(it.Login/timefmt.UsecPerSec), 0))
	return fmt.Sprintf("%d/%d · %s logged in %s · %s",
		m.cursor+1, len(m.items), strings.TrimSpace(it.Row.User), logged, m.footer)
}
