package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/ledger"
)

type accountDetailLoadedMsg struct {
	account *ledger.Account
	entries []ledger.Entry
	err     error
}

type accountDetailModel struct {
	account *ledger.Account
	entries []ledger.Entry
	loading bool
	err     error
	width   int
}

func (m *accountDetailModel) init(c *client.Client, code string) tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		acct, err := c.GetAccount(context.Background(), code)
		if err != nil {
			return accountDetailLoadedMsg{err: err}
		}
		entries, err := c.ListEntries(context.Background(), ledger.EntryFilter{
			AccountPrefix: code,
			Status:        ledger.StatusPosted,
		})
		return accountDetailLoadedMsg{account: acct, entries: entries, err: err}
	}
}

func (m accountDetailModel) update(msg tea.Msg) (accountDetailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case accountDetailLoadedMsg:
		m.loading = false
		m.account = msg.account
		m.entries = msg.entries
		m.err = msg.err
	}
	return m, nil
}

// inAccount reports whether a line posts to code or to one of its party
// sub-accounts.
func inAccount(line, code string) bool {
	return line == code || strings.HasPrefix(line, code+"-")
}

func (m *accountDetailModel) view() string {
	if m.loading {
		return "Loading account..."
	}
	if m.err != nil {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	if m.account == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Account: %s", m.account.Code)))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Name:"), m.account.Name))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Type:"), m.account.Type))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Normal side:"), ledger.NormalBalance(m.account.Type)))
	b.WriteString(fmt.Sprintf("%s %v\n", labelStyle.Render("System:"), m.account.IsSystem))
	b.WriteString(fmt.Sprintf("%s %v\n", labelStyle.Render("Active:"), m.account.IsActive))

	var debit, credit decimal.Decimal
	var rows []string
	for _, e := range m.entries {
		for _, l := range e.Lines {
			if !inAccount(l.AccountCode, m.account.Code) {
				continue
			}
			debit = debit.Add(l.Debit)
			credit = credit.Add(l.Credit)

			line := fmt.Sprintf("  %-10s %-14s %-28s %12s %12s",
				e.Date.Format(ledger.DateLayout), l.AccountCode, truncate(e.Description, 28),
				amountOrBlank(l.Debit), amountOrBlank(l.Credit))
			if l.Debit.IsPositive() {
				rows = append(rows, debitStyle.Render(line))
			} else {
				rows = append(rows, creditStyle.Render(line))
			}
		}
	}

	balance := debit.Sub(credit)
	if ledger.NormalBalance(m.account.Type) == "Credit" {
		balance = balance.Neg()
	}
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Balance:"), formatSigned(balance)))
	b.WriteString("\n")

	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("  No postings."))
	} else {
		header := fmt.Sprintf("  %-10s %-14s %-28s %12s %12s", "DATE", "ACCOUNT", "DESCRIPTION", "DEBIT", "CREDIT")
		b.WriteString(headerStyle.Render(header))
		b.WriteString("\n")
		b.WriteString(strings.Join(rows, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n" + dimStyle.Render("  Press ESC to go back"))
	return b.String()
}

func amountOrBlank(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return ledger.FormatAmount(d)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-2] + ".."
	}
	return s
}
