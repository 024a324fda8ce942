// Package tui is the terminal front end. It talks to a running server
// through the HTTP client only.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonvc/rentledger/internal/client"
)

type mode int

const (
	modeAccountList mode = iota
	modeAccountDetail
	modeEntryList
	modeEntryDetail
	modeOutstanding
	modeBalanceSheet
	modeJournalEntry
)

var tabModes = []mode{modeAccountList, modeEntryList, modeOutstanding, modeBalanceSheet}

func tabLabel(m mode) string {
	switch m {
	case modeAccountList:
		return "Accounts"
	case modeEntryList:
		return "Journal"
	case modeOutstanding:
		return "Students"
	case modeBalanceSheet:
		return "Balance Sheet"
	default:
		return ""
	}
}

type App struct {
	client        *client.Client
	mode          mode
	tabIndex      int
	width, height int
	statusMsg     string

	accountList   accountListModel
	accountDetail accountDetailModel
	entryList     entryListModel
	entryDetail   entryDetailModel
	outstanding   outstandingModel
	balanceSheet  balanceSheetModel
	journalEntry  journalEntryModel
}

func NewApp(c *client.Client) *App {
	return &App{
		client:      c,
		mode:        modeAccountList,
		outstanding: newOutstanding(),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.accountList.init(a.client),
		a.entryList.init(a.client),
		a.balanceSheet.init(a.client),
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		a.width = msg.Width
		a.height = msg.Height
		a.accountList.width, a.accountList.height = msg.Width, msg.Height-6
		a.entryList.width, a.entryList.height = msg.Width, msg.Height-6
		a.balanceSheet.width, a.balanceSheet.height = msg.Width, msg.Height-6
		a.outstanding.width, a.outstanding.height = msg.Width, msg.Height-6
		a.accountDetail.width = msg.Width
		a.entryDetail.width = msg.Width
		a.journalEntry.width = msg.Width
		return a, nil
	}

	// Loads fire concurrently from Init, so results are routed by type
	// rather than by the active mode.
	switch typedMsg := msg.(type) {
	case accountsLoadedMsg:
		var cmd tea.Cmd
		a.accountList, cmd = a.accountList.update(msg)
		return a, cmd
	case entriesLoadedMsg:
		var cmd tea.Cmd
		a.entryList, cmd = a.entryList.update(msg)
		return a, cmd
	case balanceSheetLoadedMsg:
		var cmd tea.Cmd
		a.balanceSheet, cmd = a.balanceSheet.update(msg)
		return a, cmd
	case accountDetailLoadedMsg:
		var cmd tea.Cmd
		a.accountDetail, cmd = a.accountDetail.update(msg)
		return a, cmd
	case entryDetailLoadedMsg:
		var cmd tea.Cmd
		a.entryDetail, cmd = a.entryDetail.update(msg)
		return a, cmd
	case outstandingLoadedMsg:
		var cmd tea.Cmd
		a.outstanding, cmd = a.outstanding.update(msg, a.client)
		return a, cmd
	case accountDeactivateConfirmedMsg:
		code := typedMsg.code
		return a, func() tea.Msg {
			err := a.client.DeactivateAccount(context.Background(), code)
			return accountDeactivatedMsg{code: code, err: err}
		}
	case accountDeactivatedMsg:
		a.accountList, _ = a.accountList.update(msg)
		if typedMsg.err != nil {
			return a, nil
		}
		a.statusMsg = "Account " + typedMsg.code + " deactivated"
		return a, a.accountList.init(a.client)
	}

	if a.mode == modeJournalEntry {
		var cmd tea.Cmd
		a.journalEntry, cmd = a.journalEntry.update(msg, a.client)
		if a.journalEntry.done {
			a.mode = modeEntryList
			a.statusMsg = a.journalEntry.statusMsg
			return a, tea.Batch(a.entryList.init(a.client), a.balanceSheet.init(a.client))
		}
		if a.journalEntry.cancelled {
			a.mode = modeEntryList
			a.statusMsg = "Entry cancelled"
		}
		return a, cmd
	}

	// Inline inputs own the keyboard until they finish.
	if (a.mode == modeAccountList && a.accountList.confirming) ||
		(a.mode == modeOutstanding && a.outstanding.editing()) {
		return a, a.delegate(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit

		case key.Matches(msg, keys.Tab):
			a.tabIndex = (a.tabIndex + 1) % len(tabModes)
			a.mode = tabModes[a.tabIndex]
			a.statusMsg = ""
			return a, a.refreshTab()

		case key.Matches(msg, keys.ShiftTab):
			a.tabIndex = (a.tabIndex - 1 + len(tabModes)) % len(tabModes)
			a.mode = tabModes[a.tabIndex]
			a.statusMsg = ""
			return a, a.refreshTab()

		case key.Matches(msg, keys.Refresh):
			return a, a.refreshTab()

		case key.Matches(msg, keys.Escape):
			switch a.mode {
			case modeAccountDetail:
				a.mode = modeAccountList
			case modeEntryDetail:
				a.mode = modeEntryList
			}
			return a, nil

		case key.Matches(msg, keys.NewEntry):
			if a.mode == modeEntryList {
				a.mode = modeJournalEntry
				a.journalEntry = newJournalEntry()
				return a, a.journalEntry.loadAccounts(a.client)
			}

		case key.Matches(msg, keys.Enter):
			switch a.mode {
			case modeAccountList:
				if code := a.accountList.selectedCode(); code != "" {
					a.mode = modeAccountDetail
					return a, a.accountDetail.init(a.client, code)
				}
				return a, nil
			case modeEntryList:
				if id := a.entryList.selectedID(); id != "" {
					a.mode = modeEntryDetail
					return a, a.entryDetail.init(a.client, id)
				}
				return a, nil
			}
		}
	}

	return a, a.delegate(msg)
}

func (a *App) delegate(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.mode {
	case modeAccountList:
		a.accountList, cmd = a.accountList.update(msg)
	case modeAccountDetail:
		a.accountDetail, cmd = a.accountDetail.update(msg)
	case modeEntryList:
		a.entryList, cmd = a.entryList.update(msg)
	case modeEntryDetail:
		a.entryDetail, cmd = a.entryDetail.update(msg)
	case modeOutstanding:
		a.outstanding, cmd = a.outstanding.update(msg, a.client)
	case modeBalanceSheet:
		a.balanceSheet, cmd = a.balanceSheet.update(msg)
	}
	return cmd
}

func (a *App) refreshTab() tea.Cmd {
	switch a.mode {
	case modeAccountList:
		return a.accountList.init(a.client)
	case modeEntryList:
		return a.entryList.init(a.client)
	case modeOutstanding:
		return a.outstanding.load(a.client)
	case modeBalanceSheet:
		return a.balanceSheet.init(a.client)
	}
	return nil
}

func (a *App) View() string {
	tabs := ""
	for i, m := range tabModes {
		label := tabLabel(m)
		if i == a.tabIndex && a.mode != modeJournalEntry {
			tabs += activeTabStyle.Render(label)
		} else {
			tabs += inactiveTabStyle.Render(label)
		}
		if i < len(tabModes)-1 {
			tabs += " "
		}
	}

	var content string
	switch a.mode {
	case modeAccountList:
		content = a.accountList.view()
	case modeAccountDetail:
		content = a.accountDetail.view()
	case modeEntryList:
		content = a.entryList.view()
	case modeEntryDetail:
		content = a.entryDetail.view()
	case modeOutstanding:
		content = a.outstanding.view()
	case modeBalanceSheet:
		content = a.balanceSheet.view()
	case modeJournalEntry:
		content = a.journalEntry.view()
	}

	status := ""
	if a.statusMsg != "" {
		status = successStyle.Render(a.statusMsg)
	}

	helpText := dimStyle.Render("tab:switch  enter:select  esc:back  d:deactivate  t:new entry  r:refresh  q:quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		tabs,
		"",
		content,
		"",
		status,
		helpText,
	)
}
