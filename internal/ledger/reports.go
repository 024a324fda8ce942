package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Basis selects when income is recognized.
type Basis string

const (
	BasisAccrual Basis = "accrual"
	BasisCash    Basis = "cash"
)

// ParseBasis defaults an empty string to accrual.
func ParseBasis(s string) (Basis, error) {
	switch Basis(s) {
	case "", BasisAccrual:
		return BasisAccrual, nil
	case BasisCash:
		return BasisCash, nil
	default:
		return "", fmt.Errorf("invalid basis %q (want accrual or cash)", s)
	}
}

// BreakdownMode selects running totals or per-month activity.
type BreakdownMode string

const (
	ModeCumulative BreakdownMode = "cumulative"
	ModeMonthly    BreakdownMode = "monthly"
)

// ParseBreakdownMode defaults an empty string to cumulative.
func ParseBreakdownMode(s string) (BreakdownMode, error) {
	switch BreakdownMode(s) {
	case "", ModeCumulative:
		return ModeCumulative, nil
	case ModeMonthly:
		return ModeMonthly, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want cumulative or monthly)", s)
	}
}

// Balance is one month of a student's obligations.
type Balance struct {
	Month              MonthKey        `json:"month_key"`
	RentOwed           decimal.Decimal `json:"rent_owed"`
	RentPaid           decimal.Decimal `json:"rent_paid"`
	RentOutstanding    decimal.Decimal `json:"rent_outstanding"`
	AdminOwed          decimal.Decimal `json:"admin_owed"`
	AdminPaid          decimal.Decimal `json:"admin_paid"`
	AdminOutstanding   decimal.Decimal `json:"admin_outstanding"`
	DepositOwed        decimal.Decimal `json:"deposit_owed"`
	DepositPaid        decimal.Decimal `json:"deposit_paid"`
	DepositOutstanding decimal.Decimal `json:"deposit_outstanding"`
}

// Owed returns the owed amount for a category.
func (b *Balance) Owed(c Category) decimal.Decimal {
	switch c {
	case CategoryRent:
		return b.RentOwed
	case CategoryAdminFee:
		return b.AdminOwed
	default:
		return b.DepositOwed
	}
}

// Paid returns the paid amount for a category.
func (b *Balance) Paid(c Category) decimal.Decimal {
	switch c {
	case CategoryRent:
		return b.RentPaid
	case CategoryAdminFee:
		return b.AdminPaid
	default:
		return b.DepositPaid
	}
}

// Outstanding returns owed minus paid for a category.
func (b *Balance) Outstanding(c Category) decimal.Decimal {
	return b.Owed(c).Sub(b.Paid(c))
}

// AddOwed adds to the owed amount of a category.
func (b *Balance) AddOwed(c Category, d decimal.Decimal) {
	switch c {
	case CategoryRent:
		b.RentOwed = b.RentOwed.Add(d)
	case CategoryAdminFee:
		b.AdminOwed = b.AdminOwed.Add(d)
	case CategoryDeposit:
		b.DepositOwed = b.DepositOwed.Add(d)
	}
}

// AddPaid adds to the paid amount of a category.
func (b *Balance) AddPaid(c Category, d decimal.Decimal) {
	switch c {
	case CategoryRent:
		b.RentPaid = b.RentPaid.Add(d)
	case CategoryAdminFee:
		b.AdminPaid = b.AdminPaid.Add(d)
	case CategoryDeposit:
		b.DepositPaid = b.DepositPaid.Add(d)
	}
}

// Finalize rounds every field and recomputes the outstanding columns.
func (b *Balance) Finalize() {
	b.RentOwed, b.RentPaid = Round(b.RentOwed), Round(b.RentPaid)
	b.AdminOwed, b.AdminPaid = Round(b.AdminOwed), Round(b.AdminPaid)
	b.DepositOwed, b.DepositPaid = Round(b.DepositOwed), Round(b.DepositPaid)
	b.RentOutstanding = b.RentOwed.Sub(b.RentPaid)
	b.AdminOutstanding = b.AdminOwed.Sub(b.AdminPaid)
	b.DepositOutstanding = b.DepositOwed.Sub(b.DepositPaid)
}

// StatementLine is one account on a statement.
type StatementLine struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
	Detail      []StatementLine `json:"detail,omitempty"`
}

// StatementSection groups lines of one account type.
type StatementSection struct {
	Lines []StatementLine `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type IncomeStatement struct {
	PeriodStart time.Time        `json:"period_start"`
	PeriodEnd   time.Time        `json:"period_end"`
	Basis       Basis            `json:"basis"`
	Revenue     StatementSection `json:"revenue"`
	Expenses    StatementSection `json:"expenses"`
	NetIncome   decimal.Decimal  `json:"net_income"`
	GeneratedAt time.Time        `json:"generated_at"`
}

type BalanceSheet struct {
	AsOf         time.Time        `json:"as_of"`
	PeriodStart  *time.Time       `json:"period_start,omitempty"`
	Assets       StatementSection `json:"assets"`
	Liabilities  StatementSection `json:"liabilities"`
	Equity       StatementSection `json:"equity"`
	Balanced     bool             `json:"balanced"`
	BalanceCheck decimal.Decimal  `json:"balance_check"` // assets - (liabilities + equity), reported not corrected
	GeneratedAt  time.Time        `json:"generated_at"`
}

// TrialBalanceLine represents a single line in the trial balance.
type TrialBalanceLine struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

type TrialBalance struct {
	AsOf        time.Time          `json:"as_of"`
	Lines       []TrialBalanceLine `json:"lines"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
	Balanced    bool               `json:"balanced"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// MonthReport is one month of a yearly breakdown.
type MonthReport struct {
	Month           MonthKey         `json:"month"`
	IncomeStatement *IncomeStatement `json:"income_statement"`
	BalanceSheet    *BalanceSheet    `json:"balance_sheet"`
}

type MonthlyBreakdown struct {
	Year   int           `json:"year"`
	Mode   BreakdownMode `json:"mode"`
	Basis  Basis         `json:"basis"`
	Months []MonthReport `json:"months"`
}

// AccountTotal is the posted debit and credit turnover of one account code.
type AccountTotal struct {
	AccountCode string          `json:"account_code"`
	AccountType AccountType     `json:"account_type"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}
