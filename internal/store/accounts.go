package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/simonvc/rentledger/internal/ledger"
)

type AccountFilter struct {
	Type       ledger.AccountType
	ActiveOnly bool
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CreateAccount registers a custom base account. Party sub-accounts are
// never stored; they resolve through their base.
func (s *Store) CreateAccount(ctx context.Context, acct *ledger.Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}
	acct.IsActive = true
	acct.IsSystem = false
	acct.CreatedAt = s.now().UTC()

	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO accounts (code, name, type, is_active, is_system, created_at) VALUES (?, ?, ?, 1, 0, ?)`,
		acct.Code, acct.Name, string(acct.Type), formatTime(acct.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateAccount, acct.Code)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, code string) (*ledger.Account, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT code, name, type, is_active, is_system, created_at FROM accounts WHERE code = ?`, code)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	defer rows.Close()

	accounts, err := scanAccounts(rows)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, code)
	}
	return &accounts[0], nil
}

func (s *Store) ListAccounts(ctx context.Context, filter AccountFilter) ([]ledger.Account, error) {
	query := `SELECT code, name, type, is_active, is_system, created_at FROM accounts WHERE 1=1`
	args := []any{}

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY code`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// DeactivateAccount stops new postings to a custom account. Its history
// stays in the ledger and in reports.
func (s *Store) DeactivateAccount(ctx context.Context, code string) error {
	acct, err := s.GetAccount(ctx, code)
	if err != nil {
		return err
	}
	if acct.IsSystem {
		return fmt.Errorf("%w: %s", ledger.ErrSystemAccount, code)
	}

	_, err = s.writer.ExecContext(ctx, `UPDATE accounts SET is_active = 0 WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	return nil
}

// Chart returns the current chart of accounts, inactive accounts included.
func (s *Store) Chart(ctx context.Context) (*ledger.Chart, error) {
	return loadChart(ctx, s.reader)
}

func loadChart(ctx context.Context, q querier) (*ledger.Chart, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT code, name, type, is_active, is_system, created_at FROM accounts ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("load chart: %w", err)
	}
	defer rows.Close()

	accounts, err := scanAccounts(rows)
	if err != nil {
		return nil, err
	}
	return ledger.NewChart(accounts), nil
}

func scanAccounts(rows *sql.Rows) ([]ledger.Account, error) {
	var accounts []ledger.Account
	for rows.Next() {
		var acct ledger.Account
		var acctType, createdAt string
		var isActive, isSystem int
		if err := rows.Scan(&acct.Code, &acct.Name, &acctType, &isActive, &isSystem, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		acct.Type = ledger.AccountType(acctType)
		acct.IsActive = isActive == 1
		acct.IsSystem = isSystem == 1
		acct.CreatedAt = parseTime(createdAt)
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}
