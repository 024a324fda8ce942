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

type jeStep int

const (
	jeStepDescription jeStep = iota
	jeStepLineAccount
	jeStepLineSide
	jeStepLineAmount
	jeStepLineMore
	jeStepConfirm
)

type draftLine struct {
	account string
	isDebit bool
	amount  decimal.Decimal
}

type accountsForJEMsg struct {
	accounts []ledger.Account
	err      error
}

type entryCreatedMsg struct {
	entry *ledger.Entry
	err   error
}

// journalEntryModel walks the user through a balanced manual entry one
// line at a time.
type journalEntryModel struct {
	step        jeStep
	description textinput.Model
	lines       []draftLine

	accountInput textinput.Model
	amountInput  textinput.Model
	isDebit      bool
	moreCursor   int // 0 = add another, 1 = done

	accounts []ledger.Account

	err       error
	done      bool
	cancelled bool
	statusMsg string
	width     int
}

func newJournalEntry() journalEntryModel {
	descInput := textinput.New()
	descInput.Placeholder = "e.g. Plumbing repair, block B"
	descInput.CharLimit = 100
	descInput.Focus()

	acctInput := textinput.New()
	acctInput.Placeholder = "e.g. 5100 or 2000-v12"
	acctInput.CharLimit = 40

	amtInput := textinput.New()
	amtInput.Placeholder = "e.g. 250.00"
	amtInput.CharLimit = 20

	return journalEntryModel{
		step:         jeStepDescription,
		description:  descInput,
		accountInput: acctInput,
		amountInput:  amtInput,
		isDebit:      true,
	}
}

func (m *journalEntryModel) loadAccounts(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		accounts, err := c.ListAccounts(context.Background(), "", true)
		return accountsForJEMsg{accounts: accounts, err: err}
	}
}

func (m journalEntryModel) update(msg tea.Msg, c *client.Client) (journalEntryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case accountsForJEMsg:
		m.accounts = msg.accounts
		return m, nil

	case entryCreatedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.step = jeStepConfirm
			return m, nil
		}
		m.done = true
		m.statusMsg = fmt.Sprintf("Entry %s posted", truncate(msg.entry.ID, 10))
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Escape) {
			m.cancelled = true
			return m, nil
		}

		switch m.step {
		case jeStepDescription:
			return m.updateDescription(msg)
		case jeStepLineAccount:
			return m.updateLineAccount(msg)
		case jeStepLineSide:
			return m.updateLineSide(msg)
		case jeStepLineAmount:
			return m.updateLineAmount(msg)
		case jeStepLineMore:
			return m.updateLineMore(msg)
		case jeStepConfirm:
			return m.updateConfirm(msg, c)
		}
	}
	return m, nil
}

func (m journalEntryModel) updateDescription(msg tea.KeyMsg) (journalEntryModel, tea.Cmd) {
	if key.Matches(msg, keys.Enter) {
		if strings.TrimSpace(m.description.Value()) == "" {
			m.err = fmt.Errorf("description is required")
			return m, nil
		}
		m.err = nil
		m.step = jeStepLineAccount
		m.accountInput.SetValue("")
		m.accountInput.Focus()
		return m, nil
	}
	var cmd tea.Cmd
	m.description, cmd = m.description.Update(msg)
	return m, cmd
}

func (m journalEntryModel) updateLineAccount(msg tea.KeyMsg) (journalEntryModel, tea.Cmd) {
	if key.Matches(msg, keys.Enter) {
		code := strings.TrimSpace(m.accountInput.Value())
		if _, _, err := ledger.SplitCode(code); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.step = jeStepLineSide
		m.isDebit = true
		return m, nil
	}
	var cmd tea.Cmd
	m.accountInput, cmd = m.accountInput.Update(msg)
	return m, cmd
}

func (m journalEntryModel) updateLineSide(msg tea.KeyMsg) (journalEntryModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up), key.Matches(msg, keys.Down):
		m.isDebit = !m.isDebit
	case key.Matches(msg, keys.Enter):
		m.err = nil
		m.step = jeStepLineAmount
		m.amountInput.SetValue("")
		m.amountInput.Focus()
	}
	return m, nil
}

func (m journalEntryModel) updateLineAmount(msg tea.KeyMsg) (journalEntryModel, tea.Cmd) {
	if key.Matches(msg, keys.Enter) {
		amt, err := ledger.ParseAmount(m.amountInput.Value())
		if err != nil {
			m.err = err
			return m, nil
		}
		if !amt.IsPositive() {
			m.err = fmt.Errorf("amount must be greater than zero")
			return m, nil
		}
		m.lines = append(m.lines, draftLine{
			account: strings.TrimSpace(m.accountInput.Value()),
			isDebit: m.isDebit,
			amount:  amt,
		})
		m.err = nil
		m.moreCursor = 0
		m.step = jeStepLineMore
		return m, nil
	}
	var cmd tea.Cmd
	m.amountInput, cmd = m.amountInput.Update(msg)
	return m, cmd
}

func (m journalEntryModel) updateLineMore(msg tea.KeyMsg) (journalEntryModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up), key.Matches(msg, keys.Down):
		m.moreCursor = 1 - m.moreCursor
	case key.Matches(msg, keys.Enter):
		if m.moreCursor == 0 {
			m.step = jeStepLineAccount
			m.accountInput.SetValue("")
			m.accountInput.Focus()
			m.isDebit = true
			m.err = nil
			return m, nil
		}
		if len(m.lines) < 2 {
			m.err = fmt.Errorf("need at least 2 lines")
			m.moreCursor = 0
			return m, nil
		}
		if !m.isBalanced() {
			m.err = fmt.Errorf("debits and credits differ, add another line")
			m.moreCursor = 0
			return m, nil
		}
		m.err = nil
		m.step = jeStepConfirm
	}
	return m, nil
}

func (m journalEntryModel) updateConfirm(msg tea.KeyMsg, c *client.Client) (journalEntryModel, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		req := client.ManualEntry{
			Description: strings.TrimSpace(m.description.Value()),
			Author:      "tui",
		}
		for _, l := range m.lines {
			line := client.EntryLine{AccountCode: l.account}
			if l.isDebit {
				line.Debit = l.amount
			} else {
				line.Credit = l.amount
			}
			req.Lines = append(req.Lines, line)
		}
		return m, func() tea.Msg {
			created, err := c.CreateEntry(context.Background(), req)
			return entryCreatedMsg{entry: created, err: err}
		}
	case "n", "N":
		m.cancelled = true
	}
	return m, nil
}

func (m *journalEntryModel) totals() (debit, credit decimal.Decimal) {
	for _, l := range m.lines {
		if l.isDebit {
			debit = debit.Add(l.amount)
		} else {
			credit = credit.Add(l.amount)
		}
	}
	return debit, credit
}

func (m *journalEntryModel) isBalanced() bool {
	debit, credit := m.totals()
	return ledger.Equal(debit, credit)
}

func (m *journalEntryModel) balanceSummary() string {
	if len(m.lines) == 0 {
		return ""
	}
	debit, credit := m.totals()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  Debits:  %s\n", ledger.FormatAmount(debit)))
	b.WriteString(fmt.Sprintf("  Credits: %s\n", ledger.FormatAmount(credit)))

	diff := debit.Sub(credit)
	switch {
	case m.isBalanced():
		b.WriteString(successStyle.Render("  BALANCED"))
	case diff.IsPositive():
		b.WriteString(errorStyle.Render("  UNBALANCED: over-debited by " + ledger.FormatAmount(diff)))
	default:
		b.WriteString(errorStyle.Render("  UNBALANCED: over-credited by " + ledger.FormatAmount(diff.Neg())))
	}
	return b.String()
}

func (m *journalEntryModel) view() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("New Journal Entry"))
	b.WriteString("\n\n")

	if len(m.lines) > 0 {
		b.WriteString(dimStyle.Render("  Lines so far:") + "\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("    %-4s %-16s %12s", "TYPE", "ACCOUNT", "AMOUNT")) + "\n")
		for _, l := range m.lines {
			typ, style := "DR", debitStyle
			if !l.isDebit {
				typ, style = "CR", creditStyle
			}
			b.WriteString(style.Render(fmt.Sprintf("    %-4s %-16s %12s", typ, l.account, ledger.FormatAmount(l.amount))) + "\n")
		}
		b.WriteString("\n")
		b.WriteString(m.balanceSummary())
		b.WriteString("\n\n")
	}

	switch m.step {
	case jeStepDescription:
		b.WriteString("  Enter entry description:\n\n")
		b.WriteString("  " + m.description.View() + "\n")

	case jeStepLineAccount:
		b.WriteString(fmt.Sprintf("  Line #%d: enter account code:\n\n", len(m.lines)+1))
		b.WriteString("  " + m.accountInput.View() + "\n")

		if len(m.accounts) > 0 {
			b.WriteString("\n" + dimStyle.Render("  Active accounts:") + "\n")
			for _, a := range m.accounts {
				b.WriteString(dimStyle.Render(fmt.Sprintf("    %-8s %s", a.Code, truncate(a.Name, 40))) + "\n")
			}
			b.WriteString(dimStyle.Render("    party accounts take a suffix, e.g. 1100-<student> or 2000-<vendor>") + "\n")
		}

	case jeStepLineSide:
		b.WriteString(fmt.Sprintf("  Account: %s\n", m.accountInput.Value()))
		b.WriteString("  Debit or credit?\n\n")
		if m.isDebit {
			b.WriteString(selectedStyle.Render("  > Debit (DR)") + "\n")
			b.WriteString("    Credit (CR)\n")
		} else {
			b.WriteString("    Debit (DR)\n")
			b.WriteString(selectedStyle.Render("  > Credit (CR)") + "\n")
		}

	case jeStepLineAmount:
		side := "Debit"
		if !m.isDebit {
			side = "Credit"
		}
		b.WriteString(fmt.Sprintf("  Account: %s | %s\n", m.accountInput.Value(), side))
		b.WriteString("  Enter amount:\n\n")
		b.WriteString("  " + m.amountInput.View() + "\n")

	case jeStepLineMore:
		options := []string{"Add another line", "Done, review and post"}
		if len(m.lines) < 2 {
			options[1] = "Done (need at least 2 lines)"
		} else if !m.isBalanced() {
			options[1] = "Done (lines must balance first)"
		}

		b.WriteString("  What next?\n\n")
		for i, opt := range options {
			if i == m.moreCursor {
				b.WriteString(selectedStyle.Render("  > "+opt) + "\n")
			} else {
				b.WriteString(fmt.Sprintf("    %s\n", opt))
			}
		}

	case jeStepConfirm:
		b.WriteString("  Review journal entry:\n\n")

		var summary strings.Builder
		summary.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Description:"), m.description.Value()))
		summary.WriteString(fmt.Sprintf("%-16s %12s %12s\n", "ACCOUNT", "DEBIT", "CREDIT"))
		summary.WriteString(fmt.Sprintf("%-16s %12s %12s\n", "-------", "-----", "------"))
		for _, l := range m.lines {
			debit, credit := ledger.FormatAmount(l.amount), ""
			if !l.isDebit {
				debit, credit = "", debit
			}
			summary.WriteString(fmt.Sprintf("%-16s %12s %12s\n", l.account, debit, credit))
		}

		b.WriteString(boxStyle.Render(summary.String()))
		b.WriteString("\n\n")
		b.WriteString("  Post this entry? (y/n)\n")
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("  ESC to cancel"))
	return b.String()
}
