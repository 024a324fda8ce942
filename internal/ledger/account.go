package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type AccountType string

const (
	AccountAsset     AccountType = "Asset"
	AccountLiability AccountType = "Liability"
	AccountEquity    AccountType = "Equity"
	AccountIncome    AccountType = "Income"
	AccountExpense   AccountType = "Expense"
)

var AllAccountTypes = []AccountType{
	AccountAsset,
	AccountLiability,
	AccountEquity,
	AccountIncome,
	AccountExpense,
}

type Account struct {
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	IsActive  bool        `json:"is_active"`
	IsSystem  bool        `json:"is_system"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
}

const partyKey = `[A-Za-z0-9_.:]+(?:-[A-Za-z0-9_.:]+)*`

var (
	codePattern     = regexp.MustCompile(`^([1-5][0-9]{3})(?:-(` + partyKey + `))?$`)
	partyKeyPattern = regexp.MustCompile(`^` + partyKey + `$`)
)

// ValidPartyKey reports whether key can be appended to a base code to name a
// student or vendor account.
func ValidPartyKey(key string) bool {
	return partyKeyPattern.MatchString(key)
}

// SplitCode separates a parameterized code like "1100-s42" into its base
// account and the party key. Plain codes return an empty key.
func SplitCode(code string) (base, key string, err error) {
	m := codePattern.FindStringSubmatch(code)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAccountCode, code)
	}
	return m[1], m[2], nil
}

// TypeForCode derives the account type from the first digit of the base code.
func TypeForCode(code string) (AccountType, error) {
	base, _, err := SplitCode(code)
	if err != nil {
		return "", err
	}
	switch base[0] {
	case '1':
		return AccountAsset, nil
	case '2':
		return AccountLiability, nil
	case '3':
		return AccountEquity, nil
	case '4':
		return AccountIncome, nil
	default:
		return AccountExpense, nil
	}
}

// Validate checks account invariants.
func (a *Account) Validate() error {
	base, key, err := SplitCode(a.Code)
	if err != nil {
		return err
	}
	if key != "" {
		return fmt.Errorf("%w: %q is a party sub-account, register %s instead", ErrInvalidAccountCode, a.Code, base)
	}
	expected, _ := TypeForCode(a.Code)
	if a.Type == "" {
		a.Type = expected
	}
	if a.Type != expected {
		return fmt.Errorf("%w: code %s should be %s, got %s", ErrInvalidAccountCode, a.Code, expected, a.Type)
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: account %s has no name", ErrInvalidAccountCode, a.Code)
	}
	return nil
}

// NormalBalance returns "Debit" or "Credit" for an account type.
// Assets and Expenses are debit-normal; Liabilities, Equity, and Income are credit-normal.
func NormalBalance(t AccountType) string {
	switch t {
	case AccountAsset, AccountExpense:
		return "Debit"
	default:
		return "Credit"
	}
}

// ValidAccountType checks if an account type string is valid.
func ValidAccountType(t AccountType) bool {
	for _, at := range AllAccountTypes {
		if at == t {
			return true
		}
	}
	return false
}
