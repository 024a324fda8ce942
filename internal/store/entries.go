package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/simonvc/rentledger/internal/ledger"
)

// AppendEntries validates entries against the chart and writes them in one
// transaction. Each entry is inserted as a draft, its lines added, and then
// posted, at which point the balance trigger and the duplicate-accrual
// indexes fire.
func (s *Store) AppendEntries(ctx context.Context, entries ...*ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	chart, err := loadChart(ctx, tx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	seenPayments := map[string]bool{}
	for _, e := range entries {
		if err := prepareEntry(e, chart, now); err != nil {
			return err
		}
		if pid := paymentID(e); pid != "" && !seenPayments[pid] {
			seenPayments[pid] = true
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE payment_id = ?)`, pid,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check payment: %w", err)
			}
			if exists {
				return fmt.Errorf("%w: %s", ledger.ErrDuplicatePayment, pid)
			}
		}
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// prepareEntry assigns identity, validates and fills account names and types
// from the chart.
func prepareEntry(e *ledger.Entry, chart *ledger.Chart, now time.Time) error {
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("entry %s: %w", e.ID, err)
	}
	for i := range e.Lines {
		l := &e.Lines[i]
		acct, err := chart.Resolve(l.AccountCode)
		if err != nil {
			return fmt.Errorf("entry %s line %d: %w", e.ID, i, err)
		}
		if l.AccountName == "" {
			l.AccountName = acct.Name
		}
		l.AccountType = acct.Type
	}
	return nil
}

func paymentID(e *ledger.Entry) string {
	if md, ok := e.Metadata.(ledger.PaymentAllocationMetadata); ok {
		return md.PaymentID
	}
	return ""
}

func insertEntry(ctx context.Context, tx *sql.Tx, e *ledger.Entry) error {
	var metadata any
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(raw)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, date, description, source, source_id, status,
			total_debit_minor, total_credit_minor, student_id, month_key, payment_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, 'draft', ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date.Format(ledger.DateLayout), e.Description, string(e.Source), e.SourceID,
		ledger.ToMinorUnits(e.TotalDebit), ledger.ToMinorUnits(e.TotalCredit),
		e.StudentID, string(e.ObligationMonth()), paymentID(e), metadata, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.ID, err)
	}

	for i, l := range e.Lines {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO ledger_lines (entry_id, line_no, account_code, account_name, account_type,
				category, debit_minor, credit_minor, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, i, l.AccountCode, l.AccountName, string(l.AccountType),
			string(l.Category), ledger.ToMinorUnits(l.Debit), ledger.ToMinorUnits(l.Credit), l.Description,
		)
		if err != nil {
			return fmt.Errorf("insert line %d of %s: %w", i, e.ID, err)
		}
	}

	if e.Status != ledger.StatusPosted {
		return nil
	}
	// Posting fires trg_check_balance and the per-month unique indexes.
	_, err = tx.ExecContext(ctx, `UPDATE ledger_entries SET status = 'posted' WHERE id = ?`, e.ID)
	if err != nil {
		return postError(e, err)
	}
	return nil
}

func postError(e *ledger.Entry, err error) error {
	if isUniqueViolation(err) {
		switch e.Source {
		case ledger.SourceRentalAccrual:
			return fmt.Errorf("%w: student %s month %s", ledger.ErrDuplicateAccrual, e.StudentID, e.ObligationMonth())
		case ledger.SourceAccrualReversal:
			return fmt.Errorf("%w: student %s month %s", ledger.ErrDuplicateReversal, e.StudentID, e.ObligationMonth())
		}
	}
	if strings.Contains(err.Error(), "do not balance") {
		return fmt.Errorf("%w: entry %s", ledger.ErrUnbalancedEntry, e.ID)
	}
	return fmt.Errorf("post entry %s: %w", e.ID, err)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) GetEntry(ctx context.Context, id string) (*ledger.Entry, error) {
	entries, err := s.queryEntries(ctx, `id = ?`, []any{id}, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
	}
	return &entries[0], nil
}

func (s *Store) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	where, args := entryWhere(filter)
	return s.queryEntries(ctx, where, args, filter.Limit, filter.Offset)
}

func (s *Store) FindAccrual(ctx context.Context, studentID string, month ledger.MonthKey) (*ledger.Entry, error) {
	entries, err := s.queryEntries(ctx,
		`source = ? AND status = 'posted' AND student_id = ? AND month_key = ?`,
		[]any{string(ledger.SourceRentalAccrual), studentID, string(month)}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: student %s month %s", ledger.ErrAccrualNotFound, studentID, month)
	}
	return &entries[0], nil
}

func (s *Store) PaymentExists(ctx context.Context, paymentID string) (bool, error) {
	var exists bool
	err := s.reader.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE payment_id = ?)`, paymentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("payment exists: %w", err)
	}
	return exists, nil
}

func entryWhere(f ledger.EntryFilter) (string, []any) {
	clauses := []string{"1=1"}
	var args []any

	if !f.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.Format(ledger.DateLayout))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To.Format(ledger.DateLayout))
	}
	if f.StudentID != "" {
		clauses = append(clauses, "student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(f.Sources) > 0 {
		marks := make([]string, len(f.Sources))
		for i, src := range f.Sources {
			marks[i] = "?"
			args = append(args, string(src))
		}
		clauses = append(clauses, "source IN ("+strings.Join(marks, ",")+")")
	}
	if f.AccountPrefix != "" {
		// substr rather than LIKE: codes may contain '_'
		clauses = append(clauses, `EXISTS (SELECT 1 FROM ledger_lines x
			WHERE x.entry_id = ledger_entries.id AND substr(x.account_code, 1, length(?)) = ?)`)
		args = append(args, f.AccountPrefix, f.AccountPrefix)
	}
	return strings.Join(clauses, " AND "), args
}

// queryEntries loads entries matching where, with their lines, in one
// statement so a report reads a single snapshot.
func (s *Store) queryEntries(ctx context.Context, where string, args []any, limit, offset int) ([]ledger.Entry, error) {
	inner := `SELECT id FROM ledger_entries WHERE ` + where + ` ORDER BY date, created_at, id`
	if limit > 0 {
		inner += fmt.Sprintf(` LIMIT %d`, limit)
		if offset > 0 {
			inner += fmt.Sprintf(` OFFSET %d`, offset)
		}
	}

	query := `SELECT e.id, e.date, e.description, e.source, e.source_id, e.status,
			e.total_debit_minor, e.total_credit_minor, e.student_id, e.metadata, e.created_at,
			l.account_code, l.account_name, l.account_type, l.category,
			l.debit_minor, l.credit_minor, l.description
		FROM ledger_entries e
		JOIN ledger_lines l ON l.entry_id = e.id
		WHERE e.id IN (` + inner + `)
		ORDER BY e.date, e.created_at, e.id, l.line_no`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e                  ledger.Entry
			l                  ledger.Line
			date, createdAt    string
			metadata           sql.NullString
			totalDr, totalCr   int64
			lineDr, lineCr     int64
			source, status     string
			acctType, category string
		)
		if err := rows.Scan(&e.ID, &date, &e.Description, &source, &e.SourceID, &status,
			&totalDr, &totalCr, &e.StudentID, &metadata, &createdAt,
			&l.AccountCode, &l.AccountName, &acctType, &category,
			&lineDr, &lineCr, &l.Description,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		l.AccountType = ledger.AccountType(acctType)
		l.Category = ledger.Category(category)
		l.Debit = ledger.FromMinorUnits(lineDr)
		l.Credit = ledger.FromMinorUnits(lineCr)

		if n := len(entries); n > 0 && entries[n-1].ID == e.ID {
			entries[n-1].Lines = append(entries[n-1].Lines, l)
			continue
		}

		e.Source = ledger.Source(source)
		e.Status = ledger.Status(status)
		e.TotalDebit = ledger.FromMinorUnits(totalDr)
		e.TotalCredit = ledger.FromMinorUnits(totalCr)
		e.CreatedAt = parseTime(createdAt)
		if e.Date, err = ledger.ParseDate(date); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		if metadata.Valid {
			if e.Metadata, err = ledger.DecodeMetadata(e.Source, []byte(metadata.String)); err != nil {
				return nil, fmt.Errorf("entry %s: %w", e.ID, err)
			}
		}
		e.Lines = []ledger.Line{l}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
