package ledger

import (
	"fmt"
	"sort"
)

// Codes of the accounts the engines post to.
const (
	CodeCash               = "1000"
	CodeStudentReceivable  = "1100"
	CodeVendorPayable      = "2000"
	CodeTenantDeposits     = "2020"
	CodeUnappliedCredit    = "2030"
	CodeOwnersEquity       = "3000"
	CodeRetainedEarnings   = "3100"
	CodeRentalIncome       = "4000"
	CodeAdminFeeIncome     = "4100"
	CodeForfeitedDeposits  = "4200"
	CodeOtherIncome        = "4900"
	CodeMaintenanceExpense = "5000"
)

// PredefinedAccounts is the chart of accounts seeded into every ledger.
var PredefinedAccounts = []Account{
	// Assets (1xxx)
	{Code: CodeCash, Name: "Cash at Bank", Type: AccountAsset, IsActive: true, IsSystem: true},
	{Code: CodeStudentReceivable, Name: "Accounts Receivable - Students", Type: AccountAsset, IsActive: true, IsSystem: true},

	// Liabilities (2xxx)
	{Code: CodeVendorPayable, Name: "Accounts Payable - Vendors", Type: AccountLiability, IsActive: true, IsSystem: true},
	{Code: CodeTenantDeposits, Name: "Tenant Security Deposits", Type: AccountLiability, IsActive: true, IsSystem: true},
	{Code: CodeUnappliedCredit, Name: "Unapplied Student Credit", Type: AccountLiability, IsActive: true, IsSystem: true},

	// Equity (3xxx)
	{Code: CodeOwnersEquity, Name: "Owner's Equity", Type: AccountEquity, IsActive: true, IsSystem: true},
	{Code: CodeRetainedEarnings, Name: "Retained Earnings", Type: AccountEquity, IsActive: true, IsSystem: true},

	// Income (4xxx)
	{Code: CodeRentalIncome, Name: "Rental Income", Type: AccountIncome, IsActive: true, IsSystem: true},
	{Code: CodeAdminFeeIncome, Name: "Administration Fee Income", Type: AccountIncome, IsActive: true, IsSystem: true},
	{Code: CodeForfeitedDeposits, Name: "Forfeited Deposit Income", Type: AccountIncome, IsActive: true, IsSystem: true},
	{Code: CodeOtherIncome, Name: "Other Income", Type: AccountIncome, IsActive: true, IsSystem: true},

	// Expenses (5xxx)
	{Code: CodeMaintenanceExpense, Name: "Maintenance & Repairs", Type: AccountExpense, IsActive: true, IsSystem: true},
	{Code: "5100", Name: "Utilities", Type: AccountExpense, IsActive: true, IsSystem: true},
	{Code: "5200", Name: "Cleaning", Type: AccountExpense, IsActive: true, IsSystem: true},
	{Code: "5300", Name: "Administrative Expenses", Type: AccountExpense, IsActive: true, IsSystem: true},
	{Code: "5900", Name: "Other Expenses", Type: AccountExpense, IsActive: true, IsSystem: true},
}

// ReceivableAccount is the per-student receivable code, e.g. "1100-s42".
func ReceivableAccount(studentID string) string {
	return CodeStudentReceivable + "-" + studentID
}

// DepositAccount is the per-student security deposit liability code.
func DepositAccount(studentID string) string {
	return CodeTenantDeposits + "-" + studentID
}

// UnappliedCreditAccount is the per-student unapplied credit liability code.
func UnappliedCreditAccount(studentID string) string {
	return CodeUnappliedCredit + "-" + studentID
}

// PayableAccount is the per-vendor payable code.
func PayableAccount(vendorID string) string {
	return CodeVendorPayable + "-" + vendorID
}

// Chart resolves account codes, including parameterized party sub-accounts,
// to their names and types.
type Chart struct {
	accounts map[string]Account
}

// NewChart builds a chart from the given accounts. Later duplicates win.
func NewChart(accounts []Account) *Chart {
	c := &Chart{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		c.accounts[a.Code] = a
	}
	return c
}

// DefaultChart is the chart built from PredefinedAccounts.
func DefaultChart() *Chart {
	return NewChart(PredefinedAccounts)
}

// Resolve returns the account for a code. Party sub-accounts such as
// "1100-s42" inherit their base account's type and name.
func (c *Chart) Resolve(code string) (Account, error) {
	base, key, err := SplitCode(code)
	if err != nil {
		return Account{}, err
	}
	acct, ok := c.accounts[base]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
	}
	if !acct.IsActive {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountInactive, code)
	}
	if key != "" {
		acct.Code = code
		acct.Name = acct.Name + " (" + key + ")"
	}
	return acct, nil
}

// Line builds a ledger line for a resolved account.
func (c *Chart) Line(code string) (Line, error) {
	acct, err := c.Resolve(code)
	if err != nil {
		return Line{}, err
	}
	return Line{AccountCode: acct.Code, AccountName: acct.Name, AccountType: acct.Type}, nil
}

// Accounts returns the chart's accounts ordered by code.
func (c *Chart) Accounts() []Account {
	out := make([]Account, 0, len(c.accounts))
	for _, a := range c.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// BaseName returns the name of a code's base account, or the code itself.
func (c *Chart) BaseName(code string) string {
	base, _, err := SplitCode(code)
	if err != nil {
		return code
	}
	if a, ok := c.accounts[base]; ok {
		return a.Name
	}
	return base
}
