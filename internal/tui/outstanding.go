package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/ledger"
)

type outstandingLoadedMsg struct {
	outstanding *client.Outstanding
	leases      []ledger.Lease
	err         error
}

// outstandingModel looks up one student's month-by-month balances.
type outstandingModel struct {
	student     textinput.Model
	outstanding *client.Outstanding
	leases      []ledger.Lease
	loading     bool
	err         error
	width       int
	height      int
}

func newOutstanding() outstandingModel {
	in := textinput.New()
	in.Placeholder = "student id"
	in.CharLimit = 64
	in.Focus()
	return outstandingModel{student: in}
}

// editing reports whether keystrokes belong to the student input.
func (m *outstandingModel) editing() bool {
	return m.student.Focused()
}

func (m *outstandingModel) load(c *client.Client) tea.Cmd {
	studentID := strings.TrimSpace(m.student.Value())
	if studentID == "" {
		return nil
	}
	m.loading = true
	return func() tea.Msg {
		out, err := c.Outstanding(context.Background(), studentID)
		if err != nil {
			return outstandingLoadedMsg{err: err}
		}
		leases, err := c.ListLeases(context.Background(), studentID)
		return outstandingLoadedMsg{outstanding: out, leases: leases, err: err}
	}
}

func (m outstandingModel) update(msg tea.Msg, c *client.Client) (outstandingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case outstandingLoadedMsg:
		m.loading = false
		m.outstanding = msg.outstanding
		m.leases = msg.leases
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if !m.editing() {
			if key.Matches(msg, keys.Enter) {
				m.student.Focus()
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, keys.Enter):
			m.student.Blur()
			m.err = nil
			return m, m.load(c)
		case key.Matches(msg, keys.Escape):
			m.student.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.student, cmd = m.student.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *outstandingModel) view() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Student Outstanding"))
	b.WriteString("\n")
	b.WriteString("  Student: " + m.student.View() + "\n\n")

	switch {
	case m.loading:
		b.WriteString("  Loading balances...")
		return b.String()
	case m.err != nil:
		b.WriteString(errorStyle.Render("  Error: " + m.err.Error()))
		return b.String()
	case m.outstanding == nil:
		b.WriteString(dimStyle.Render("  Enter a student id and press enter."))
		return b.String()
	}

	for _, l := range m.leases {
		end := "open"
		if l.End != nil {
			end = l.End.Format(ledger.DateLayout)
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("  lease %s  %s  %s → %s  rent %s  admin %s  deposit %s",
			truncate(l.ID, 10), l.ResidenceID, l.Start.Format(ledger.DateLayout), end,
			ledger.FormatAmount(l.MonthlyRent), ledger.FormatAmount(l.MonthlyAdminFee), ledger.FormatAmount(l.Deposit))))
		b.WriteString("\n")
	}
	if len(m.leases) > 0 {
		b.WriteString("\n")
	}

	if len(m.outstanding.Months) == 0 {
		b.WriteString(dimStyle.Render("  No accrued months."))
		return b.String()
	}

	header := fmt.Sprintf("  %-8s %21s %21s %21s", "MONTH", "RENT owed/paid", "ADMIN owed/paid", "DEPOSIT owed/paid")
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	for _, mb := range m.outstanding.Months {
		b.WriteString(fmt.Sprintf("  %-8s %s %s %s\n", mb.Month,
			owedCell(mb.RentOwed, mb.RentPaid, mb.RentOutstanding),
			owedCell(mb.AdminOwed, mb.AdminPaid, mb.AdminOutstanding),
			owedCell(mb.DepositOwed, mb.DepositPaid, mb.DepositOutstanding)))
	}

	b.WriteString("\n")
	total := "  Total outstanding: " + ledger.FormatAmount(m.outstanding.TotalOutstanding)
	if m.outstanding.TotalOutstanding.IsPositive() {
		b.WriteString(owedStyle.Render(total))
	} else {
		b.WriteString(successStyle.Render(total))
	}
	return b.String()
}

func owedCell(owed, paid, outstanding decimal.Decimal) string {
	cell := fmt.Sprintf("%21s", ledger.FormatAmount(owed)+" / "+ledger.FormatAmount(paid))
	switch {
	case owed.IsZero():
		return dimStyle.Render(cell)
	case outstanding.IsPositive():
		return owedStyle.Render(cell)
	default:
		return settledStyle.Render(cell)
	}
}
