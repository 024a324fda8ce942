package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonvc/rentledger/internal/ledger"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the chart of accounts",
}

// account create
var (
	acctCreateCode string
	acctCreateName string
	acctCreateType string
)

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add an account to the chart",
	Long:  "Add an account. The type defaults to the one implied by the code's leading digit (1 asset ... 5 expense).",
	RunE: func(cmd *cobra.Command, args []string) error {
		acct := &ledger.Account{
			Code: acctCreateCode,
			Name: acctCreateName,
			Type: ledger.AccountType(acctCreateType),
		}

		created, err := newClient().CreateAccount(context.Background(), acct)
		if err != nil {
			return err
		}
		return emit(created, func() {
			fmt.Printf("Account created: %s (%s) %s\n", created.Code, created.Name, created.Type)
		})
	},
}

// account list
var (
	acctListType   string
	acctListActive bool
)

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		accounts, err := newClient().ListAccounts(context.Background(), acctListType, acctListActive)
		if err != nil {
			return err
		}
		return emit(accounts, func() {
			if len(accounts) == 0 {
				fmt.Println("No accounts found.")
				return
			}
			fmt.Printf("%-8s %-36s %-10s %-7s %s\n", "CODE", "NAME", "TYPE", "NORMAL", "STATUS")
			fmt.Printf("%-8s %-36s %-10s %-7s %s\n", "----", "----", "----", "------", "------")
			for _, a := range accounts {
				fmt.Printf("%-8s %-36s %-10s %-7s %s\n",
					a.Code, truncate(a.Name, 36), a.Type, ledger.NormalBalance(a.Type), accountStatus(a))
			}
		})
	},
}

// account get
var accountGetCmd = &cobra.Command{
	Use:   "get [code]",
	Short: "Get account details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newClient().GetAccount(context.Background(), args[0])
		if err != nil {
			return err
		}
		return emit(a, func() {
			fmt.Printf("Code:     %s\n", a.Code)
			fmt.Printf("Name:     %s\n", a.Name)
			fmt.Printf("Type:     %s\n", a.Type)
			fmt.Printf("Normal:   %s\n", ledger.NormalBalance(a.Type))
			fmt.Printf("Status:   %s\n", accountStatus(*a))
		})
	},
}

// account deactivate
var accountDeactivateCmd = &cobra.Command{
	Use:   "deactivate [code]",
	Short: "Deactivate an account so it accepts no new postings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeactivateAccount(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Account %s deactivated\n", args[0])
		return nil
	},
}

func accountStatus(a ledger.Account) string {
	switch {
	case a.IsSystem:
		return "system"
	case !a.IsActive:
		return "inactive"
	default:
		return "active"
	}
}

func init() {
	accountCreateCmd.Flags().StringVar(&acctCreateCode, "code", "", "Four-digit account code")
	accountCreateCmd.Flags().StringVar(&acctCreateName, "name", "", "Account name")
	accountCreateCmd.Flags().StringVar(&acctCreateType, "type", "", "Asset, Liability, Equity, Income or Expense")
	_ = accountCreateCmd.MarkFlagRequired("code")
	_ = accountCreateCmd.MarkFlagRequired("name")

	accountListCmd.Flags().StringVar(&acctListType, "type", "", "Filter by account type")
	accountListCmd.Flags().BoolVar(&acctListActive, "active", false, "Only active accounts")

	accountCmd.AddCommand(accountCreateCmd, accountListCmd, accountGetCmd, accountDeactivateCmd)
	rootCmd.AddCommand(accountCmd)
}
