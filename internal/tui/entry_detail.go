package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/ledger"
)

type entryDetailLoadedMsg struct {
	entry *ledger.Entry
	err   error
}

type entryDetailModel struct {
	entry   *ledger.Entry
	loading bool
	err     error
	width   int
}

func (m *entryDetailModel) init(c *client.Client, id string) tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		e, err := c.GetEntry(context.Background(), id)
		return entryDetailLoadedMsg{entry: e, err: err}
	}
}

func (m entryDetailModel) update(msg tea.Msg) (entryDetailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case entryDetailLoadedMsg:
		m.loading = false
		m.entry = msg.entry
		m.err = msg.err
	}
	return m, nil
}

func (m *entryDetailModel) view() string {
	if m.loading {
		return "Loading entry..."
	}
	if m.err != nil {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	if m.entry == nil {
		return ""
	}
	e := m.entry

	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Entry: %s", e.ID)))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Description:"), e.Description))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Date:"), e.Date.Format(ledger.DateLayout)))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Source:"), e.Source))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Status:"), e.Status))
	if e.StudentID != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Student:"), e.StudentID))
	}
	if month := e.ObligationMonth(); month != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Month:"), month))
	}
	b.WriteString("\n")

	header := fmt.Sprintf("  %-4s %-16s %-34s %12s %12s", "TYPE", "ACCOUNT", "NAME", "DEBIT", "CREDIT")
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	for _, l := range e.Lines {
		direction := "DR"
		if l.Credit.IsPositive() {
			direction = "CR"
		}
		line := fmt.Sprintf("  %-4s %-16s %-34s %12s %12s",
			direction, l.AccountCode, truncate(l.AccountName, 34),
			amountOrBlank(l.Debit), amountOrBlank(l.Credit))
		if direction == "DR" {
			b.WriteString(debitStyle.Render(line))
		} else {
			b.WriteString(creditStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("  %-57s %12s %12s\n", "", ledger.FormatAmount(e.TotalDebit), ledger.FormatAmount(e.TotalCredit)))

	b.WriteString("\n" + dimStyle.Render("  Press ESC to go back"))
	return b.String()
}
