// Package memory is an in-memory ledger repository for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/ledger"
)

// Store keeps entries and leases in memory. It enforces the same write rules
// as the SQLite store: validation against the chart, atomic appends, one
// posted accrual and reversal per student-month, and unique payment ids.
type Store struct {
	mu      sync.RWMutex
	chart   *ledger.Chart
	entries []ledger.Entry
	leases  []ledger.Lease
	now     func() time.Time
}

var _ ledger.Repository = (*Store)(nil)

func New() *Store {
	return &Store{chart: ledger.DefaultChart(), now: time.Now}
}

func (m *Store) AppendEntries(ctx context.Context, entries ...*ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// validate the whole batch against current state before writing any of it
	staged := make([]ledger.Entry, 0, len(entries))
	accruals := map[string]bool{}
	payments := map[string]bool{}
	for _, e := range m.entries {
		if k := uniqueKey(&e); k != "" {
			accruals[k] = true
		}
		if md, ok := e.Metadata.(ledger.PaymentAllocationMetadata); ok {
			payments[md.PaymentID] = true
		}
	}

	now := m.now().UTC()
	for _, e := range entries {
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
			acct, err := m.chart.Resolve(e.Lines[i].AccountCode)
			if err != nil {
				return fmt.Errorf("entry %s line %d: %w", e.ID, i, err)
			}
			if e.Lines[i].AccountName == "" {
				e.Lines[i].AccountName = acct.Name
			}
			e.Lines[i].AccountType = acct.Type
		}
		if k := uniqueKey(e); k != "" {
			if accruals[k] {
				if e.Source == ledger.SourceAccrualReversal {
					return fmt.Errorf("%w: student %s month %s", ledger.ErrDuplicateReversal, e.StudentID, e.ObligationMonth())
				}
				return fmt.Errorf("%w: student %s month %s", ledger.ErrDuplicateAccrual, e.StudentID, e.ObligationMonth())
			}
			accruals[k] = true
		}
		if md, ok := e.Metadata.(ledger.PaymentAllocationMetadata); ok {
			if payments[md.PaymentID] {
				return fmt.Errorf("%w: %s", ledger.ErrDuplicatePayment, md.PaymentID)
			}
		}
		staged = append(staged, cloneEntry(*e))
	}

	m.entries = append(m.entries, staged...)
	return nil
}

// uniqueKey is non-empty for entries limited to one per student-month.
func uniqueKey(e *ledger.Entry) string {
	if !e.Posted() {
		return ""
	}
	switch e.Source {
	case ledger.SourceRentalAccrual, ledger.SourceAccrualReversal:
		return string(e.Source) + "|" + e.StudentID + "|" + string(e.ObligationMonth())
	}
	return ""
}

func (m *Store) GetEntry(ctx context.Context, id string) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.ID == id {
			out := cloneEntry(e)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
}

func (m *Store) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Entry
	for i := range m.entries {
		if filter.Matches(&m.entries[i]) {
			out = append(out, cloneEntry(m.entries[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Store) FindAccrual(ctx context.Context, studentID string, month ledger.MonthKey) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.Source == ledger.SourceRentalAccrual && e.Posted() && e.StudentID == studentID && e.ObligationMonth() == month {
			out := cloneEntry(e)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: student %s month %s", ledger.ErrAccrualNotFound, studentID, month)
}

func (m *Store) PaymentExists(ctx context.Context, paymentID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if md, ok := e.Metadata.(ledger.PaymentAllocationMetadata); ok && md.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}

// AccountTotals sums posted lines per account code up to asOf.
func (m *Store) AccountTotals(ctx context.Context, asOf time.Time) ([]ledger.AccountTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byCode := map[string]*ledger.AccountTotal{}
	for _, e := range m.entries {
		if !e.Posted() || (!asOf.IsZero() && e.Date.After(ledger.Truncate(asOf))) {
			continue
		}
		for _, l := range e.Lines {
			t, ok := byCode[l.AccountCode]
			if !ok {
				t = &ledger.AccountTotal{AccountCode: l.AccountCode, AccountType: l.AccountType, Debit: decimal.Zero, Credit: decimal.Zero}
				byCode[l.AccountCode] = t
			}
			t.Debit = t.Debit.Add(l.Debit)
			t.Credit = t.Credit.Add(l.Credit)
		}
	}

	out := make([]ledger.AccountTotal, 0, len(byCode))
	for _, t := range byCode {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountCode < out[j].AccountCode })
	return out, nil
}

// Chart returns the chart entries are validated against.
func (m *Store) Chart(ctx context.Context) (*ledger.Chart, error) {
	return m.chart, nil
}

// Insert places an entry without any checks. Tests use it to seed ledgers
// that the normal write path would refuse.
func (m *Store) Insert(e ledger.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.Status == "" {
		e.Status = ledger.StatusPosted
	}
	if e.Metadata != nil && e.StudentID == "" {
		e.StudentID = e.Metadata.Student()
	}
	m.entries = append(m.entries, cloneEntry(e))
}

func (m *Store) CreateLease(ctx context.Context, l *ledger.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.Must(uuid.NewV7()).String()
	}
	if err := ledger.CheckStudentID(l.StudentID); err != nil {
		return err
	}
	l.CreatedAt = m.now().UTC()
	m.leases = append(m.leases, *l)
	return nil
}

func (m *Store) LeasesActiveBetween(ctx context.Context, from, to time.Time) ([]ledger.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Lease
	for _, l := range m.leases {
		if l.ActiveDuring(from, to) {
			out = append(out, l)
		}
	}
	return out, nil
}

func cloneEntry(e ledger.Entry) ledger.Entry {
	e.Lines = append([]ledger.Line(nil), e.Lines...)
	return e
}
