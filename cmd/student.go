package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonvc/rentledger/internal/allocation"
	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/ledger"
)

// pay
var (
	payID        string
	payRent      string
	payAdmin     string
	payDeposit   string
	payDate      string
	payReference string
)

var payCmd = &cobra.Command{
	Use:   "pay [student]",
	Short: "Allocate a payment to the oldest outstanding months",
	Long: "Splits a payment into rent, admin fee and deposit buckets. Each bucket settles the oldest " +
		"outstanding month first; anything left over is held as unapplied credit.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := client.Payment{PaymentID: payID, Date: payDate, Reference: payReference}
		var err error
		if p.Rent, err = parseAmountFlag("rent", payRent); err != nil {
			return err
		}
		if p.Admin, err = parseAmountFlag("admin", payAdmin); err != nil {
			return err
		}
		if p.Deposit, err = parseAmountFlag("deposit", payDeposit); err != nil {
			return err
		}

		result, err := newClient().AllocatePayment(context.Background(), args[0], p)
		if err != nil {
			return err
		}
		return emit(result, func() { printAllocation(result) })
	},
}

// credit apply
var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Manage unapplied credit",
}

var creditDate string

var creditApplyCmd = &cobra.Command{
	Use:   "apply [student]",
	Short: "Apply a student's unapplied credit to outstanding months",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseDay(creditDate)
		if err != nil {
			return err
		}
		result, err := newClient().ApplyCredit(context.Background(), args[0], on)
		if err != nil {
			return err
		}
		return emit(result, func() { printAllocation(result) })
	},
}

// deposit forfeit
var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Manage security deposits",
}

var (
	forfeitAmount string
	forfeitDate   string
	forfeitReason string
)

var depositForfeitCmd = &cobra.Command{
	Use:   "forfeit [student]",
	Short: "Forfeit part of a held deposit to income",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmountFlag("amount", forfeitAmount)
		if err != nil {
			return err
		}
		on, err := parseDay(forfeitDate)
		if err != nil {
			return err
		}

		entry, err := newClient().ForfeitDeposit(context.Background(), args[0], amount, on, forfeitReason)
		if err != nil {
			return err
		}
		return emit(entry, func() {
			fmt.Printf("Forfeited %s of %s's deposit: entry %s\n", ledger.FormatAmount(amount), args[0], entry.ID)
		})
	},
}

// outstanding
var outstandingCmd = &cobra.Command{
	Use:   "outstanding [student]",
	Short: "Show what a student owes per month",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newClient().Outstanding(context.Background(), args[0])
		if err != nil {
			return err
		}
		return emit(out, func() { printOutstanding(out) })
	},
}

func printAllocation(r *allocation.Result) {
	if r.PaymentID != "" {
		fmt.Printf("Payment %s for %s\n", r.PaymentID, r.StudentID)
	} else {
		fmt.Printf("Credit applied for %s\n", r.StudentID)
	}
	if len(r.Settlements) == 0 {
		fmt.Println("  nothing settled")
	}
	for _, s := range r.Settlements {
		fmt.Printf("  %-8s %-10s %12s  entry %s\n", s.Month, s.Category, ledger.FormatAmount(s.Amount), s.EntryID)
	}
	if r.Unallocated.IsPositive() {
		fmt.Printf("  %s held as unapplied credit", ledger.FormatAmount(r.Unallocated))
		if r.UnappliedEntryID != "" {
			fmt.Printf(" (entry %s)", r.UnappliedEntryID)
		}
		fmt.Println()
	}
}

func printOutstanding(o *client.Outstanding) {
	if len(o.Months) == 0 {
		fmt.Printf("No accruals for %s.\n", o.StudentID)
		return
	}
	fmt.Printf("%-8s %12s %12s %12s %12s %12s %12s\n",
		"MONTH", "RENT OWED", "RENT PAID", "ADMIN OWED", "ADMIN PAID", "DEP OWED", "DEP PAID")
	for _, b := range o.Months {
		fmt.Printf("%-8s %12s %12s %12s %12s %12s %12s\n", b.Month,
			ledger.FormatAmount(b.RentOwed), ledger.FormatAmount(b.RentPaid),
			ledger.FormatAmount(b.AdminOwed), ledger.FormatAmount(b.AdminPaid),
			ledger.FormatAmount(b.DepositOwed), ledger.FormatAmount(b.DepositPaid))
	}
	fmt.Printf("\nTotal outstanding: %s\n", ledger.FormatAmount(o.TotalOutstanding))
}

func init() {
	payCmd.Flags().StringVar(&payID, "id", "", "Payment id (generated when empty; reuse is rejected)")
	payCmd.Flags().StringVar(&payRent, "rent", "", "Amount for rent")
	payCmd.Flags().StringVar(&payAdmin, "admin", "", "Amount for admin fees")
	payCmd.Flags().StringVar(&payDeposit, "deposit", "", "Amount for the deposit")
	payCmd.Flags().StringVar(&payDate, "date", "", "Payment date YYYY-MM-DD (default today)")
	payCmd.Flags().StringVar(&payReference, "reference", "", "Bank reference")

	creditApplyCmd.Flags().StringVar(&creditDate, "date", "", "Posting date YYYY-MM-DD (default today)")
	creditCmd.AddCommand(creditApplyCmd)

	depositForfeitCmd.Flags().StringVar(&forfeitAmount, "amount", "", "Amount to forfeit")
	depositForfeitCmd.Flags().StringVar(&forfeitDate, "date", "", "Posting date YYYY-MM-DD (default today)")
	depositForfeitCmd.Flags().StringVar(&forfeitReason, "reason", "", "Reason recorded on the entry")
	_ = depositForfeitCmd.MarkFlagRequired("amount")
	_ = depositForfeitCmd.MarkFlagRequired("reason")
	depositCmd.AddCommand(depositForfeitCmd)

	rootCmd.AddCommand(payCmd, creditCmd, depositCmd, outstandingCmd)
}
