package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/ledger"
)

type balanceSheetLoadedMsg struct {
	bs  *ledger.BalanceSheet
	err error
}

type balanceSheetModel struct {
	bs      *ledger.BalanceSheet
	loading bool
	err     error
	width   int
	height  int
}

func (m *balanceSheetModel) init(c *client.Client) tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		bs, err := c.BalanceSheet(context.Background(), time.Time{})
		return balanceSheetLoadedMsg{bs: bs, err: err}
	}
}

func (m balanceSheetModel) update(msg tea.Msg) (balanceSheetModel, tea.Cmd) {
	switch msg := msg.(type) {
	case balanceSheetLoadedMsg:
		m.loading = false
		m.bs = msg.bs
		m.err = msg.err
	}
	return m, nil
}

func (m *balanceSheetModel) view() string {
	if m.loading {
		return "Loading balance sheet..."
	}
	if m.err != nil {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	if m.bs == nil {
		return dimStyle.Render("No data available.")
	}

	var b strings.Builder
	w := m.width
	if w < 60 {
		w = 80
	}

	// indent(4) + code(14) + gap + amount(14) leaves the rest for the name
	nameW := w - 34
	if nameW < 10 {
		nameW = 10
	}
	if nameW > 44 {
		nameW = 44
	}

	b.WriteString(titleStyle.Render(centerStr("BALANCE SHEET", w)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(centerStr("As of "+m.bs.AsOf.Format(ledger.DateLayout), w)))
	b.WriteString("\n\n")

	renderSection := func(title string, s ledger.StatementSection) {
		b.WriteString(fmt.Sprintf("  %s\n", headerStyle.Render(title)))
		if len(s.Lines) == 0 {
			b.WriteString(dimStyle.Render("    (no balances)") + "\n\n")
			return
		}
		for _, l := range s.Lines {
			b.WriteString(fmt.Sprintf("    %-14s %-*s %14s\n",
				l.AccountCode, nameW, truncate(l.AccountName, nameW), formatSigned(l.Amount)))
			for _, d := range l.Detail {
				b.WriteString(dimStyle.Render(fmt.Sprintf("      %-12s %-*s %14s",
					d.AccountCode, nameW, truncate(d.AccountName, nameW), formatSigned(d.Amount))) + "\n")
			}
		}
		b.WriteString(fmt.Sprintf("    %s\n", strings.Repeat("─", w-8)))
		b.WriteString(fmt.Sprintf("    %-*s %14s\n", nameW+15, "Total "+title, formatSigned(s.Total)))
		b.WriteString("\n")
	}

	renderSection("Assets", m.bs.Assets)
	renderSection("Liabilities", m.bs.Liabilities)
	renderSection("Equity", m.bs.Equity)

	b.WriteString(fmt.Sprintf("    %s\n", strings.Repeat("═", w-8)))
	b.WriteString(fmt.Sprintf("    %-*s %14s\n",
		nameW+15, "Total L + E", formatSigned(m.bs.Liabilities.Total.Add(m.bs.Equity.Total))))

	b.WriteString("\n")
	if m.bs.Balanced {
		b.WriteString(successStyle.Render("    [BALANCED]"))
	} else {
		b.WriteString(errorStyle.Render("    [UNBALANCED by " + formatSigned(m.bs.BalanceCheck) + "]"))
	}

	return b.String()
}

// formatSigned puts negative amounts in parentheses.
func formatSigned(d decimal.Decimal) string {
	if d.IsNegative() {
		return "(" + ledger.FormatAmount(d.Neg()) + ")"
	}
	return ledger.FormatAmount(d)
}

func centerStr(s string, w int) string {
	if len(s) >= w {
		return s
	}
	pad := (w - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
