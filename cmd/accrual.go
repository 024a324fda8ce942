package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simonvc/rentledger/internal/ledger"
)

var (
	accrueMonth int
	accrueYear  int
)

var accrueCmd = &cobra.Command{
	Use:   "accrue",
	Short: "Post monthly accruals for every active lease",
	Long:  "Posts rent, admin fee and deposit receivables for the given month. Running it twice for the same month skips students already accrued.",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		if accrueMonth == 0 {
			accrueMonth = int(now.Month())
		}
		if accrueYear == 0 {
			accrueYear = now.Year()
		}

		run, err := newClient().CreateAccruals(context.Background(), time.Month(accrueMonth), accrueYear)
		if err != nil {
			return err
		}

		return emit(run, func() {
			fmt.Printf("Accruals for %s: %d created, %d skipped, %d errors\n",
				run.Month, run.Created, run.Skipped, len(run.Errors))
			for _, e := range run.Errors {
				fmt.Printf("  lease %-12s student %-12s %s\n", e.LeaseID, e.StudentID, e.Reason)
			}
		})
	},
}

var reverseReason string

var reverseCmd = &cobra.Command{
	Use:   "reverse [student] [YYYY-MM]",
	Short: "Reverse a student's accrual for one month",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		month, err := ledger.ParseMonthKey(args[1])
		if err != nil {
			return err
		}

		entry, err := newClient().ReverseAccrual(context.Background(), args[0], month, reverseReason)
		if err != nil {
			return err
		}

		return emit(entry, func() {
			fmt.Printf("Reversed %s for %s: entry %s (%s)\n",
				month, args[0], entry.ID, ledger.FormatAmount(entry.TotalDebit))
		})
	},
}

func init() {
	accrueCmd.Flags().IntVar(&accrueMonth, "month", 0, "Month 1-12 (default current)")
	accrueCmd.Flags().IntVar(&accrueYear, "year", 0, "Year (default current)")
	reverseCmd.Flags().StringVar(&reverseReason, "reason", "", "Reason recorded on the reversal")

	rootCmd.AddCommand(accrueCmd, reverseCmd)
}
