package store

import (
	"context"
	"fmt"
	"time"

	"github.com/simonvc/rentledger/internal/ledger"
)

// AccountTotals aggregates posted lines per account code in SQL, up to and
// including asOf when it is set. The audit cross-checks these sums against
// the entry-level reconstruction.
func (s *Store) AccountTotals(ctx context.Context, asOf time.Time) ([]ledger.AccountTotal, error) {
	query := `SELECT l.account_code, MAX(l.account_type),
			COALESCE(SUM(l.debit_minor), 0), COALESCE(SUM(l.credit_minor), 0)
		FROM ledger_lines l
		JOIN ledger_entries e ON e.id = l.entry_id
		WHERE e.status = 'posted'`
	args := []any{}
	if !asOf.IsZero() {
		query += ` AND e.date <= ?`
		args = append(args, asOf.Format(ledger.DateLayout))
	}
	query += ` GROUP BY l.account_code ORDER BY l.account_code`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("account totals query: %w", err)
	}
	defer rows.Close()

	var totals []ledger.AccountTotal
	for rows.Next() {
		var t ledger.AccountTotal
		var acctType string
		var debit, credit int64
		if err := rows.Scan(&t.AccountCode, &acctType, &debit, &credit); err != nil {
			return nil, fmt.Errorf("scan account totals: %w", err)
		}
		t.AccountType = ledger.AccountType(acctType)
		t.Debit = ledger.FromMinorUnits(debit)
		t.Credit = ledger.FromMinorUnits(credit)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
