// Package accrual posts monthly rental accruals for active leases.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/calendar"
	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/keylock"
	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/metrics"
)

// LeaseSource supplies lease facts owned by the student records system.
type LeaseSource interface {
	LeasesActiveBetween(ctx context.Context, from, to time.Time) ([]ledger.Lease, error)
}

// RunError is one lease the batch could not accrue.
type RunError struct {
	LeaseID   string `json:"lease_id"`
	StudentID string `json:"student_id,omitempty"`
	Reason    string `json:"reason"`
}

// Run summarizes one accrual batch.
type Run struct {
	Month    ledger.MonthKey `json:"month"`
	Created  int             `json:"created"`
	Skipped  int             `json:"skipped"`
	Errors   []RunError      `json:"errors"`
	EntryIDs []string        `json:"entry_ids"`
}

type Generator struct {
	repo      ledger.Repository
	leases    LeaseSource
	locks     *keylock.Map
	logger    *zap.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
	now       func() time.Time
}

type Option func(*Generator)

func WithLogger(l *zap.Logger) Option         { return func(g *Generator) { g.logger = l } }
func WithMetrics(m *metrics.Metrics) Option   { return func(g *Generator) { g.metrics = m } }
func WithPublisher(p events.Publisher) Option { return func(g *Generator) { g.publisher = p } }
func WithClock(now func() time.Time) Option   { return func(g *Generator) { g.now = now } }

// WithLocks shares the per-student lock with the allocation engine.
func WithLocks(locks *keylock.Map) Option { return func(g *Generator) { g.locks = locks } }

func New(repo ledger.Repository, leases LeaseSource, opts ...Option) *Generator {
	g := &Generator{
		repo:   repo,
		leases: leases,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.locks == nil {
		g.locks = keylock.New()
	}
	if g.metrics == nil {
		g.metrics = metrics.NewUnregistered()
	}
	g.logger = g.logger.Named("accrual")
	return g
}

// CreateMonthlyAccruals ensures every lease active in the month has exactly
// one posted accrual. Re-running a month only fills in what is missing.
// Problems with a single lease are recorded in the run and never abort the
// batch; the returned error is reserved for the batch as a whole.
func (g *Generator) CreateMonthlyAccruals(ctx context.Context, month time.Month, year int) (*Run, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d", ledger.ErrInvalidMonth, month)
	}
	key := ledger.NewMonthKey(year, month)
	if current := ledger.MonthOf(g.now().UTC()); key > current {
		return nil, fmt.Errorf("%w: %s (current month %s)", ledger.ErrFutureMonth, key, current)
	}

	leases, err := g.leases.LeasesActiveBetween(ctx, key.Start(), key.End())
	if err != nil {
		return nil, fmt.Errorf("load leases for %s: %w", key, err)
	}

	run := &Run{Month: key, Errors: []RunError{}, EntryIDs: []string{}}
	log := g.logger.With(zap.String("month", string(key)))
	log.Info("accrual run started", zap.Int("leases", len(leases)))

	for i := range leases {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		lease := leases[i]

		id, err := g.accrueLease(ctx, lease, key)
		switch {
		case err == nil && id == "":
			run.Skipped++
			g.metrics.AccrualsSkipped.Inc()
		case err == nil:
			run.Created++
			run.EntryIDs = append(run.EntryIDs, id)
			g.metrics.AccrualsCreated.Inc()
		default:
			run.Errors = append(run.Errors, RunError{LeaseID: lease.ID, StudentID: lease.StudentID, Reason: err.Error()})
			g.metrics.AccrualErrors.WithLabelValues(errorReason(err)).Inc()
			log.Warn("lease skipped",
				zap.String("lease_id", lease.ID),
				zap.String("student_id", lease.StudentID),
				zap.Error(err),
			)
		}
	}

	log.Info("accrual run finished",
		zap.Int("created", run.Created),
		zap.Int("skipped", run.Skipped),
		zap.Int("errors", len(run.Errors)),
	)
	return run, nil
}

// accrueLease posts the month's accrual for one lease. It returns an empty
// id when there is nothing to do.
func (g *Generator) accrueLease(ctx context.Context, lease ledger.Lease, month ledger.MonthKey) (string, error) {
	if err := lease.Validate(); err != nil {
		return "", err
	}
	obligation, ok := calendar.ObligationFor(lease, month)
	if !ok {
		return "", nil
	}

	unlock := g.locks.Lock(lease.StudentID)
	defer unlock()

	_, err := g.repo.FindAccrual(ctx, lease.StudentID, month)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, ledger.ErrAccrualNotFound) {
		return "", err
	}

	entry := BuildEntry(lease, obligation)
	if entry == nil {
		return "", nil
	}
	err = g.repo.AppendEntries(ctx, entry)
	if errors.Is(err, ledger.ErrDuplicateAccrual) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	g.metrics.EntriesPosted.WithLabelValues(string(entry.Source)).Inc()
	events.Emit(ctx, g.publisher, g.logger, events.Event{
		Type:      events.AccrualPosted,
		StudentID: lease.StudentID,
		EntryIDs:  []string{entry.ID},
		Payload:   obligation,
	})
	return entry.ID, nil
}

// BuildEntry turns one month's obligation into an accrual entry dated the
// first of the month. It returns nil when nothing is owed.
func BuildEntry(lease ledger.Lease, o calendar.Obligation) *ledger.Entry {
	receivable := ledger.ReceivableAccount(lease.StudentID)
	var lines []ledger.Line

	add := func(c ledger.Category, amount decimal.Decimal, creditAccount, desc string) {
		if !amount.IsPositive() {
			return
		}
		lines = append(lines,
			ledger.Line{AccountCode: receivable, Debit: amount, Category: c, Description: desc},
			ledger.Line{AccountCode: creditAccount, Credit: amount, Description: desc},
		)
	}
	add(ledger.CategoryRent, o.RentDue, ledger.CodeRentalIncome, "Rent "+string(o.Month))
	add(ledger.CategoryAdminFee, o.AdminFeeDue, ledger.CodeAdminFeeIncome, "Admin fee "+string(o.Month))
	add(ledger.CategoryDeposit, o.DepositDue, ledger.DepositAccount(lease.StudentID), "Security deposit")

	if len(lines) == 0 {
		return nil
	}
	return &ledger.Entry{
		Date:        o.Month.Start(),
		Description: fmt.Sprintf("Rental accrual %s for lease %s", o.Month, lease.ID),
		Source:      ledger.SourceRentalAccrual,
		SourceID:    lease.ID,
		Metadata: ledger.AccrualMetadata{
			StudentID:   lease.StudentID,
			LeaseID:     lease.ID,
			ResidenceID: lease.ResidenceID,
			Month:       o.Month,
			Prorated:    o.Prorated,
		},
		Lines: lines,
	}
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrMissingResidence):
		return "missing_residence"
	case errors.Is(err, ledger.ErrMissingStudent):
		return "missing_student"
	case errors.Is(err, ledger.ErrInvalidLease):
		return "invalid_lease"
	default:
		return "storage"
	}
}
