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

type accountsLoadedMsg struct {
	accounts []ledger.Account
	err      error
}

// accountDeactivateConfirmedMsg is sent when the user confirms with "y".
type accountDeactivateConfirmedMsg struct {
	code string
}

type accountDeactivatedMsg struct {
	code string
	err  error
}

type accountListModel struct {
	accounts      []ledger.Account
	cursor        int
	loading       bool
	err           error
	width         int
	height        int
	confirming    bool
	confirmTarget string
}

func (m *accountListModel) init(c *client.Client) tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		accounts, err := c.ListAccounts(context.Background(), "", false)
		return accountsLoadedMsg{accounts: accounts, err: err}
	}
}

func (m accountListModel) update(msg tea.Msg) (accountListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case accountsLoadedMsg:
		m.loading = false
		m.accounts = msg.accounts
		m.err = msg.err
		if m.cursor >= len(m.accounts) {
			m.cursor = 0
		}

	case accountDeactivatedMsg:
		m.confirming = false
		m.confirmTarget = ""
		if msg.err != nil {
			m.err = msg.err
		}

	case tea.KeyMsg:
		if m.confirming {
			code := m.confirmTarget
			m.confirming = false
			m.confirmTarget = ""
			if msg.String() == "y" || msg.String() == "Y" {
				return m, func() tea.Msg {
					return accountDeactivateConfirmedMsg{code: code}
				}
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.accounts)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Deactivate):
			if acct := m.selected(); acct != nil && !acct.IsSystem && acct.IsActive {
				m.confirming = true
				m.confirmTarget = acct.Code
				m.err = nil
			}
		}
	}
	return m, nil
}

func (m *accountListModel) selected() *ledger.Account {
	if m.cursor >= 0 && m.cursor < len(m.accounts) {
		return &m.accounts[m.cursor]
	}
	return nil
}

func (m *accountListModel) selectedCode() string {
	if a := m.selected(); a != nil {
		return a.Code
	}
	return ""
}

func (m *accountListModel) view() string {
	if m.loading {
		return "Loading accounts..."
	}
	if m.err != nil {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	if len(m.accounts) == 0 {
		return dimStyle.Render("No accounts found.")
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Chart of Accounts"))
	b.WriteString("\n")

	header := fmt.Sprintf("  %-8s %-34s %-10s %-7s %s", "CODE", "NAME", "TYPE", "NORMAL", "STATUS")
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

	for i := start; i < len(m.accounts) && i < start+maxRows; i++ {
		a := m.accounts[i]
		name := a.Name
		if len(name) > 32 {
			name = name[:32] + ".."
		}
		status := "active"
		switch {
		case a.IsSystem:
			status = "system"
		case !a.IsActive:
			status = "inactive"
		}

		line := fmt.Sprintf("  %-8s %-34s %-10s %-7s %s", a.Code, name, a.Type, ledger.NormalBalance(a.Type), status)
		switch {
		case i == m.cursor:
			b.WriteString(selectedStyle.Render("> " + line[2:]))
		case !a.IsActive:
			b.WriteString(dimStyle.Render(line))
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	if m.confirming {
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("  Deactivate account %s? (y/n)", m.confirmTarget)))
	} else {
		b.WriteString(fmt.Sprintf("\n  %d accounts", len(m.accounts)))
	}

	return b.String()
}

