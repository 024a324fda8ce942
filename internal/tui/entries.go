package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/ledger"
)

// entryPageSize bounds the entry list; the journal grows with every accrual
// run.
const entryPageSize = 500

type entriesLoadedMsg struct {
	entries []ledger.Entry
	err     error
}

type entryListModel struct {
	entries []ledger.Entry
	cursor  int
	loading bool
	err     error
	width   int
	height  int
}

func (m *entryListModel) init(c *client.Client) tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		entries, err := c.ListEntries(context.Background(), ledger.EntryFilter{Limit: entryPageSize})
		return entriesLoadedMsg{entries: entries, err: err}
	}
}

func (m entryListModel) update(msg tea.Msg) (entryListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case entriesLoadedMsg:
		m.loading = false
		m.entries = msg.entries
		m.err = msg.err
		if m.cursor >= len(m.entries) {
			m.cursor = 0
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m *entryListModel) selectedID() string {
	if m.cursor >= 0 && m.cursor < len(m.entries) {
		return m.entries[m.cursor].ID
	}
	return ""
}

func (m *entryListModel) view() string {
	if m.loading {
		return "Loading journal..."
	}
	if m.err != nil {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	if len(m.entries) == 0 {
		return dimStyle.Render("No journal entries. Press 't' to post one.")
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Journal"))
	b.WriteString("\n")

	header := fmt.Sprintf("  %-10s %-18s %-10s %-7s %12s  %s", "DATE", "SOURCE", "STUDENT", "STATUS", "AMOUNT", "DESCRIPTION")
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	maxRows := m.height - 4
	if maxRows < 1 {
		maxRows = 10
	}

	start := 0
	if m.cursor >= maxRows {
		start = m.cursor - maxRows + 1
	}

	for i := start; i < len(m.entries) && i < start+maxRows; i++ {
		e := m.entries[i]
		line := fmt.Sprintf("  %-10s %-18s %-10s %-7s %12s  %s",
			e.Date.Format(ledger.DateLayout),
			e.Source,
			truncate(e.StudentID, 10),
			e.Status,
			ledger.FormatAmount(e.TotalDebit),
			truncate(e.Description, 36),
		)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line[2:]))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\n  %d entries", len(m.entries)))
	return b.String()
}
