package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/ledger"
)

var entryCmd = &cobra.Command{
	Use:     "entry",
	Aliases: []string{"je"},
	Short:   "Journal entries",
}

// entry create
var (
	entryDescription string
	entryDate        string
	entryReference   string
	entryStudent     string
	entryVendor      string
	entryDraft       bool
	entryLines       []string // format: "account:dr|cr:amount"
)

var entryCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Post a manual journal entry",
	Long: `Post a balanced manual entry.
Each --line is formatted as "account:dr|cr:amount" (e.g. "5100:dr:250.00" or "2000-v7:cr:250.00")`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := client.ManualEntry{
			Date:        entryDate,
			Description: entryDescription,
			Reference:   entryReference,
			StudentID:   entryStudent,
			VendorID:    entryVendor,
			Author:      "cli",
			Draft:       entryDraft,
		}
		for _, raw := range entryLines {
			line, err := parseLine(raw)
			if err != nil {
				return err
			}
			req.Lines = append(req.Lines, line)
		}

		created, err := newClient().CreateEntry(context.Background(), req)
		if err != nil {
			return err
		}
		return emit(created, func() {
			fmt.Printf("Entry created: %s (%s)\n", created.ID, created.Status)
			printEntry(created)
		})
	},
}

func parseLine(raw string) (client.EntryLine, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return client.EntryLine{}, fmt.Errorf("invalid line %q, expected account:dr|cr:amount", raw)
	}
	amount, err := ledger.ParseAmount(parts[2])
	if err != nil {
		return client.EntryLine{}, fmt.Errorf("line %q: %w", raw, err)
	}
	line := client.EntryLine{AccountCode: parts[0]}
	switch strings.ToLower(parts[1]) {
	case "dr", "debit":
		line.Debit = amount
	case "cr", "credit":
		line.Credit = amount
	default:
		return client.EntryLine{}, fmt.Errorf("line %q: side must be dr or cr", raw)
	}
	return line, nil
}

// entry bill
var (
	billAccount     string
	billAmount      string
	billDate        string
	billDescription string
)

var entryBillCmd = &cobra.Command{
	Use:   "bill [vendor]",
	Short: "Record a vendor bill (debit expense, credit the vendor's payable)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmountFlag("amount", billAmount)
		if err != nil {
			return err
		}
		created, err := newClient().CreateVendorBill(context.Background(), args[0], client.VendorBill{
			Date:           billDate,
			Description:    billDescription,
			ExpenseAccount: billAccount,
			Amount:         amount,
		})
		if err != nil {
			return err
		}
		return emit(created, func() {
			fmt.Printf("Bill recorded: %s\n", created.ID)
			printEntry(created)
		})
	},
}

// entry list
var (
	entryListFrom    string
	entryListTo      string
	entryListAccount string
	entryListStudent string
	entryListSource  string
	entryListLimit   int
)

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := ledger.EntryFilter{
			AccountPrefix: entryListAccount,
			StudentID:     entryListStudent,
			Limit:         entryListLimit,
		}
		var err error
		if f.From, err = parseDay(entryListFrom); err != nil {
			return err
		}
		if f.To, err = parseDay(entryListTo); err != nil {
			return err
		}
		if entryListSource != "" {
			for _, s := range strings.Split(entryListSource, ",") {
				f.Sources = append(f.Sources, ledger.Source(strings.TrimSpace(s)))
			}
		}

		entries, err := newClient().ListEntries(context.Background(), f)
		if err != nil {
			return err
		}
		return emit(entries, func() {
			if len(entries) == 0 {
				fmt.Println("No entries found.")
				return
			}
			fmt.Printf("%-36s %-10s %-18s %-12s %12s  %s\n", "ID", "DATE", "SOURCE", "STUDENT", "AMOUNT", "DESCRIPTION")
			for _, e := range entries {
				fmt.Printf("%-36s %-10s %-18s %-12s %12s  %s\n",
					e.ID, e.Date.Format(ledger.DateLayout), e.Source, truncate(e.StudentID, 12),
					ledger.FormatAmount(e.TotalDebit), truncate(e.Description, 40))
			}
		})
	},
}

// entry get
var entryGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get entry details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newClient().GetEntry(context.Background(), args[0])
		if err != nil {
			return err
		}
		return emit(e, func() {
			fmt.Printf("Entry: %s\n", e.ID)
			printEntry(e)
		})
	},
}

func printEntry(e *ledger.Entry) {
	fmt.Printf("Date:        %s\n", e.Date.Format(ledger.DateLayout))
	fmt.Printf("Description: %s\n", e.Description)
	fmt.Printf("Source:      %s\n", e.Source)
	if month := e.ObligationMonth(); month != "" {
		fmt.Printf("Month:       %s\n", month)
	}
	fmt.Println()
	fmt.Printf("  %-16s %-36s %12s %12s\n", "ACCOUNT", "NAME", "DEBIT", "CREDIT")
	for _, l := range e.Lines {
		debit, credit := "", ""
		if l.Debit.IsPositive() {
			debit = ledger.FormatAmount(l.Debit)
		}
		if l.Credit.IsPositive() {
			credit = ledger.FormatAmount(l.Credit)
		}
		fmt.Printf("  %-16s %-36s %12s %12s\n", l.AccountCode, truncate(l.AccountName, 36), debit, credit)
	}
	fmt.Printf("  %-53s %12s %12s\n", "TOTALS", ledger.FormatAmount(e.TotalDebit), ledger.FormatAmount(e.TotalCredit))
}

func init() {
	entryCreateCmd.Flags().StringVarP(&entryDescription, "description", "d", "", "Entry description")
	entryCreateCmd.Flags().StringVar(&entryDate, "date", "", "Entry date YYYY-MM-DD (default today)")
	entryCreateCmd.Flags().StringVar(&entryReference, "reference", "", "External reference")
	entryCreateCmd.Flags().StringVar(&entryStudent, "student", "", "Student the entry concerns")
	entryCreateCmd.Flags().StringVar(&entryVendor, "vendor", "", "Vendor the entry concerns")
	entryCreateCmd.Flags().BoolVar(&entryDraft, "draft", false, "Store without posting")
	entryCreateCmd.Flags().StringArrayVarP(&entryLines, "line", "l", nil, "Line in account:dr|cr:amount format (repeatable)")
	_ = entryCreateCmd.MarkFlagRequired("description")
	_ = entryCreateCmd.MarkFlagRequired("line")

	entryBillCmd.Flags().StringVar(&billAccount, "account", ledger.CodeMaintenanceExpense, "Expense account code")
	entryBillCmd.Flags().StringVar(&billAmount, "amount", "", "Bill amount")
	entryBillCmd.Flags().StringVar(&billDate, "date", "", "Bill date YYYY-MM-DD (default today)")
	entryBillCmd.Flags().StringVarP(&billDescription, "description", "d", "", "Bill description")
	_ = entryBillCmd.MarkFlagRequired("amount")
	_ = entryBillCmd.MarkFlagRequired("description")

	entryListCmd.Flags().StringVar(&entryListFrom, "from", "", "From date YYYY-MM-DD")
	entryListCmd.Flags().StringVar(&entryListTo, "to", "", "To date YYYY-MM-DD")
	entryListCmd.Flags().StringVar(&entryListAccount, "account", "", "Account code or prefix")
	entryListCmd.Flags().StringVar(&entryListStudent, "student", "", "Student id")
	entryListCmd.Flags().StringVar(&entryListSource, "source", "", "Comma-separated sources")
	entryListCmd.Flags().IntVar(&entryListLimit, "limit", 0, "Maximum entries")

	entryCmd.AddCommand(entryCreateCmd, entryBillCmd, entryListCmd, entryGetCmd)
	rootCmd.AddCommand(entryCmd)
}
