package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/simonvc/rentledger/internal/audit"
	"github.com/simonvc/rentledger/internal/ledger"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Financial statements rebuilt from the journal",
}

var (
	reportFrom  string
	reportTo    string
	reportAsOf  string
	reportBasis string
	reportYear  int
	reportMode  string
)

var incomeCmd = &cobra.Command{
	Use:   "income",
	Short: "Show the income statement for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDay(reportFrom)
		if err != nil {
			return err
		}
		to, err := parseDay(reportTo)
		if err != nil {
			return err
		}
		basis, err := ledger.ParseBasis(reportBasis)
		if err != nil {
			return err
		}

		is, err := newClient().IncomeStatement(context.Background(), from, to, basis)
		if err != nil {
			return err
		}
		return emit(is, func() { printIncomeStatement(is) })
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the balance sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseDay(reportAsOf)
		if err != nil {
			return err
		}
		bs, err := newClient().BalanceSheet(context.Background(), asOf)
		if err != nil {
			return err
		}
		return emit(bs, func() { printBalanceSheet(bs) })
	},
}

var trialBalanceCmd = &cobra.Command{
	Use:   "trial",
	Short: "Show the trial balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseDay(reportAsOf)
		if err != nil {
			return err
		}
		tb, err := newClient().TrialBalance(context.Background(), asOf)
		if err != nil {
			return err
		}
		return emit(tb, func() { printTrialBalance(tb) })
	},
}

var monthlyCmd = &cobra.Command{
	Use:   "monthly",
	Short: "Show month-by-month income and balances for a year",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := ledger.ParseBreakdownMode(reportMode)
		if err != nil {
			return err
		}
		basis, err := ledger.ParseBasis(reportBasis)
		if err != nil {
			return err
		}
		if reportYear == 0 {
			reportYear = time.Now().Year()
		}

		mb, err := newClient().MonthlyBreakdown(context.Background(), reportYear, mode, basis)
		if err != nil {
			return err
		}
		return emit(mb, func() { printMonthly(mb) })
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check the journal for integrity problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseDay(reportAsOf)
		if err != nil {
			return err
		}
		rep, err := newClient().Audit(context.Background(), asOf)
		if err != nil {
			return err
		}
		if err := emit(rep, func() { printAudit(rep) }); err != nil {
			return err
		}
		if !rep.Clean {
			return fmt.Errorf("audit found %d problems", len(rep.Findings))
		}
		return nil
	},
}

func printIncomeStatement(is *ledger.IncomeStatement) {
	w := 64
	fmt.Println()
	fmt.Println(center("INCOME STATEMENT", w))
	fmt.Println(center(fmt.Sprintf("%s to %s (%s basis)",
		is.PeriodStart.Format(ledger.DateLayout), is.PeriodEnd.Format(ledger.DateLayout), is.Basis), w))
	fmt.Println()

	printSection("REVENUE", is.Revenue, w)
	printSection("EXPENSES", is.Expenses, w)

	fmt.Printf("%*s%s\n", w-15, "", "═════════════")
	fmt.Printf("%-*s%15s\n", w-15, "Net Income", formatSigned(is.NetIncome))
}

func printBalanceSheet(bs *ledger.BalanceSheet) {
	w := 64
	fmt.Println()
	fmt.Println(center("BALANCE SHEET", w))
	fmt.Println(center("as of "+bs.AsOf.Format(ledger.DateLayout), w))
	fmt.Println()

	printSection("ASSETS", bs.Assets, w)
	printSection("LIABILITIES", bs.Liabilities, w)
	printSection("EQUITY", bs.Equity, w)

	fmt.Printf("%*s%s\n", w-15, "", "═════════════")
	fmt.Printf("%-*s%15s\n", w-15, "Total L + E", formatSigned(bs.Liabilities.Total.Add(bs.Equity.Total)))

	if bs.Balanced {
		fmt.Println("\n  [BALANCED]")
	} else {
		fmt.Printf("\n  [UNBALANCED by %s]\n", formatSigned(bs.BalanceCheck))
	}
}

func printSection(title string, s ledger.StatementSection, w int) {
	fmt.Printf("  %s\n", title)
	fmt.Printf("  %s\n", strings.Repeat("─", w-4))
	for _, l := range s.Lines {
		fmt.Printf("  %-6s %-*s%15s\n", l.AccountCode, w-24, truncate(l.AccountName, w-26), formatSigned(l.Amount))
		for _, d := range l.Detail {
			fmt.Printf("    %-14s %-*s%15s\n", d.AccountCode, w-34, truncate(d.AccountName, w-36), formatSigned(d.Amount))
		}
	}
	fmt.Printf("%*s%s\n", w-15, "", "─────────────")
	fmt.Printf("%-*s%15s\n", w-15, "Total "+strings.ToLower(title), formatSigned(s.Total))
	fmt.Println()
}

func printTrialBalance(tb *ledger.TrialBalance) {
	w := 76
	fmt.Println()
	fmt.Println(center("TRIAL BALANCE", w))
	fmt.Println(center("as of "+tb.AsOf.Format(ledger.DateLayout), w))
	fmt.Println()

	fmt.Printf("  %-14s %-30s %12s %12s\n", "ACCOUNT", "NAME", "DEBIT", "CREDIT")
	fmt.Printf("  %-14s %-30s %12s %12s\n", "-------", "----", "-----", "------")

	for _, l := range tb.Lines {
		debit, credit := "", ""
		if l.Debit.IsPositive() {
			debit = ledger.FormatAmount(l.Debit)
		}
		if l.Credit.IsPositive() {
			credit = ledger.FormatAmount(l.Credit)
		}
		fmt.Printf("  %-14s %-30s %12s %12s\n", l.AccountCode, truncate(l.AccountName, 30), debit, credit)
	}

	fmt.Printf("  %s\n", strings.Repeat("─", w-4))
	fmt.Printf("  %-45s %12s %12s\n", "TOTALS",
		ledger.FormatAmount(tb.TotalDebit),
		ledger.FormatAmount(tb.TotalCredit))

	if tb.Balanced {
		fmt.Println("\n  [BALANCED]")
	} else {
		fmt.Println("\n  [UNBALANCED!]")
	}
}

func printMonthly(mb *ledger.MonthlyBreakdown) {
	fmt.Printf("%d %s breakdown (%s basis)\n\n", mb.Year, mb.Mode, mb.Basis)
	fmt.Printf("%-8s %12s %12s %12s %12s %12s %12s\n",
		"MONTH", "REVENUE", "EXPENSES", "NET", "ASSETS", "LIABILITIES", "EQUITY")
	for _, m := range mb.Months {
		is, bs := m.IncomeStatement, m.BalanceSheet
		fmt.Printf("%-8s %12s %12s %12s %12s %12s %12s\n", m.Month,
			formatSigned(is.Revenue.Total), formatSigned(is.Expenses.Total), formatSigned(is.NetIncome),
			formatSigned(bs.Assets.Total), formatSigned(bs.Liabilities.Total), formatSigned(bs.Equity.Total))
	}
}

func printAudit(rep *audit.Report) {
	fmt.Printf("Checked %d entries: debits %s, credits %s\n",
		rep.EntriesChecked, ledger.FormatAmount(rep.TotalDebit), ledger.FormatAmount(rep.TotalCredit))
	if rep.Clean {
		fmt.Println("No problems found.")
		return
	}
	for _, f := range rep.Findings {
		subject := f.EntryID
		if subject == "" {
			subject = strings.TrimSpace(f.StudentID + " " + string(f.Month) + " " + f.Account)
		}
		fmt.Printf("  %-18s %-40s %s\n", f.Check, truncate(subject, 40), f.Message)
	}
}

func init() {
	incomeCmd.Flags().StringVar(&reportFrom, "from", "", "Period start YYYY-MM-DD (default start of year)")
	incomeCmd.Flags().StringVar(&reportTo, "to", "", "Period end YYYY-MM-DD (default today)")
	incomeCmd.Flags().StringVar(&reportBasis, "basis", "accrual", "accrual or cash")

	for _, c := range []*cobra.Command{balanceCmd, trialBalanceCmd, auditCmd} {
		c.Flags().StringVar(&reportAsOf, "as-of", "", "Report date YYYY-MM-DD (default today)")
	}

	monthlyCmd.Flags().IntVar(&reportYear, "year", 0, "Year (default current)")
	monthlyCmd.Flags().StringVar(&reportMode, "mode", "cumulative", "cumulative or monthly")
	monthlyCmd.Flags().StringVar(&reportBasis, "basis", "accrual", "accrual or cash")

	reportCmd.AddCommand(incomeCmd, balanceCmd, trialBalanceCmd, monthlyCmd, auditCmd)
	rootCmd.AddCommand(reportCmd)
}
