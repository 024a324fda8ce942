package ledger

import (
	"context"
	"strings"
	"time"
)

// EntryFilter narrows a ledger scan. Zero values match everything.
type EntryFilter struct {
	From          time.Time // inclusive
	To            time.Time // inclusive
	AccountPrefix string    // entries with at least one line whose code starts with this
	Sources       []Source
	StudentID     string
	Status        Status
	Limit         int
	Offset        int
}

// Matches applies the filter to an entry held in memory.
func (f EntryFilter) Matches(e *Entry) bool {
	if !f.From.IsZero() && e.Date.Before(Truncate(f.From)) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(Truncate(f.To)) {
		return false
	}
	if f.StudentID != "" && e.StudentID != f.StudentID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if len(f.Sources) > 0 {
		found := false
		for _, s := range f.Sources {
			if s == e.Source {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.AccountPrefix != "" {
		found := false
		for _, l := range e.Lines {
			if strings.HasPrefix(l.AccountCode, f.AccountPrefix) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Repository is the only path to the ledger. Implementations validate every
// entry and refuse duplicate accruals and reversals at write time.
type Repository interface {
	// AppendEntries validates and stores entries atomically: either all are
	// written or none are.
	AppendEntries(ctx context.Context, entries ...*Entry) error
	GetEntry(ctx context.Context, id string) (*Entry, error)
	// ListEntries returns matching entries ordered by date, then creation.
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	// FindAccrual returns the posted rental accrual for a student and month,
	// or ErrAccrualNotFound.
	FindAccrual(ctx context.Context, studentID string, month MonthKey) (*Entry, error)
	PaymentExists(ctx context.Context, paymentID string) (bool, error)
}
