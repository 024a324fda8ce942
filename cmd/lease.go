package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/ledger"
)

var leaseCmd = &cobra.Command{
	Use:   "lease",
	Short: "Manage leases",
}

// lease create
var (
	leaseStudent   string
	leaseResidence string
	leaseRoom      string
	leaseStart     string
	leaseEnd       string
	leaseRent      string
	leaseAdmin     string
	leaseDeposit   string
)

var leaseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a lease",
	RunE: func(cmd *cobra.Command, args []string) error {
		l := client.Lease{
			StudentID:   leaseStudent,
			ResidenceID: leaseResidence,
			RoomID:      leaseRoom,
			Start:       leaseStart,
			End:         leaseEnd,
		}
		var err error
		if l.MonthlyRent, err = parseAmountFlag("rent", leaseRent); err != nil {
			return err
		}
		if l.MonthlyAdminFee, err = parseAmountFlag("admin", leaseAdmin); err != nil {
			return err
		}
		if l.Deposit, err = parseAmountFlag("deposit", leaseDeposit); err != nil {
			return err
		}

		created, err := newClient().CreateLease(context.Background(), l)
		if err != nil {
			return err
		}
		return emit(created, func() {
			fmt.Printf("Lease created: %s\n", created.ID)
			printLease(created)
		})
	},
}

// lease list
var leaseListStudent string

var leaseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leases",
	RunE: func(cmd *cobra.Command, args []string) error {
		leases, err := newClient().ListLeases(context.Background(), leaseListStudent)
		if err != nil {
			return err
		}
		return emit(leases, func() {
			if len(leases) == 0 {
				fmt.Println("No leases found.")
				return
			}
			fmt.Printf("%-36s %-12s %-10s %-10s %-10s %10s %8s %10s\n",
				"ID", "STUDENT", "RESIDENCE", "START", "END", "RENT", "ADMIN", "DEPOSIT")
			for _, l := range leases {
				fmt.Printf("%-36s %-12s %-10s %-10s %-10s %10s %8s %10s\n",
					l.ID, truncate(l.StudentID, 12), truncate(l.ResidenceID, 10),
					l.Start.Format(ledger.DateLayout), leaseEndLabel(&l),
					ledger.FormatAmount(l.MonthlyRent), ledger.FormatAmount(l.MonthlyAdminFee),
					ledger.FormatAmount(l.Deposit))
			}
		})
	},
}

// lease get
var leaseGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get lease details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := newClient().GetLease(context.Background(), args[0])
		if err != nil {
			return err
		}
		return emit(l, func() { printLease(l) })
	},
}

func leaseEndLabel(l *ledger.Lease) string {
	if l.End == nil {
		return "open"
	}
	return l.End.Format(ledger.DateLayout)
}

func printLease(l *ledger.Lease) {
	fmt.Printf("  Student:    %s\n", l.StudentID)
	fmt.Printf("  Residence:  %s\n", l.ResidenceID)
	if l.RoomID != "" {
		fmt.Printf("  Room:       %s\n", l.RoomID)
	}
	fmt.Printf("  Period:     %s to %s\n", l.Start.Format(ledger.DateLayout), leaseEndLabel(l))
	fmt.Printf("  Rent:       %s / month\n", ledger.FormatAmount(l.MonthlyRent))
	fmt.Printf("  Admin fee:  %s / month\n", ledger.FormatAmount(l.MonthlyAdminFee))
	fmt.Printf("  Deposit:    %s\n", ledger.FormatAmount(l.Deposit))
}

func init() {
	leaseCreateCmd.Flags().StringVar(&leaseStudent, "student", "", "Student id")
	leaseCreateCmd.Flags().StringVar(&leaseResidence, "residence", "", "Residence id")
	leaseCreateCmd.Flags().StringVar(&leaseRoom, "room", "", "Room id")
	leaseCreateCmd.Flags().StringVar(&leaseStart, "start", "", "Start date YYYY-MM-DD")
	leaseCreateCmd.Flags().StringVar(&leaseEnd, "end", "", "End date YYYY-MM-DD (open-ended when empty)")
	leaseCreateCmd.Flags().StringVar(&leaseRent, "rent", "", "Monthly rent")
	leaseCreateCmd.Flags().StringVar(&leaseAdmin, "admin", "", "Monthly admin fee")
	leaseCreateCmd.Flags().StringVar(&leaseDeposit, "deposit", "", "Security deposit")
	_ = leaseCreateCmd.MarkFlagRequired("student")
	_ = leaseCreateCmd.MarkFlagRequired("residence")
	_ = leaseCreateCmd.MarkFlagRequired("start")

	leaseListCmd.Flags().StringVar(&leaseListStudent, "student", "", "Filter by student id")

	leaseCmd.AddCommand(leaseCreateCmd, leaseListCmd, leaseGetCmd)
	rootCmd.AddCommand(leaseCmd)
}
