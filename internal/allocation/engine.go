// Package allocation settles student payments against outstanding months,
// oldest first, and manages the unapplied credit and deposit balances that
// settlement leaves behind.
package allocation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/keylock"
	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/metrics"
)

// Request is one payment split by category. Categories may be zero but
// not all of them.
type Request struct {
	StudentID string
	PaymentID string // generated when empty
	Rent      decimal.Decimal
	AdminFee  decimal.Decimal
	Deposit   decimal.Decimal
	Date      time.Time
	Reference string
}

func (r Request) amount(c ledger.Category) decimal.Decimal {
	switch c {
	case ledger.CategoryRent:
		return ledger.Round(r.Rent)
	case ledger.CategoryAdminFee:
		return ledger.Round(r.AdminFee)
	default:
		return ledger.Round(r.Deposit)
	}
}

// Settlement is one slice of cash applied to one month and category.
type Settlement struct {
	Month    ledger.MonthKey `json:"month"`
	Category ledger.Category `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	EntryID  string          `json:"ledger_entry_id"`
}

type Result struct {
	PaymentID        string          `json:"payment_id,omitempty"`
	StudentID        string          `json:"student_id"`
	Settlements      []Settlement    `json:"settlements"`
	Unallocated      decimal.Decimal `json:"unallocated"`
	UnappliedEntryID string          `json:"unapplied_entry_id,omitempty"`
}

type Engine struct {
	repo        ledger.Repository
	locks       *keylock.Map
	logger      *zap.Logger
	metrics     *metrics.Metrics
	publisher   events.Publisher
	cashAccount string
	now         func() time.Time
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option         { return func(e *Engine) { e.logger = l } }
func WithMetrics(m *metrics.Metrics) Option   { return func(e *Engine) { e.metrics = m } }
func WithPublisher(p events.Publisher) Option { return func(e *Engine) { e.publisher = p } }
func WithLocks(locks *keylock.Map) Option     { return func(e *Engine) { e.locks = locks } }
func WithCashAccount(code string) Option      { return func(e *Engine) { e.cashAccount = code } }
func WithClock(now func() time.Time) Option   { return func(e *Engine) { e.now = now } }

func New(repo ledger.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:        repo,
		logger:      zap.NewNop(),
		cashAccount: ledger.CodeCash,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locks == nil {
		e.locks = keylock.New()
	}
	if e.metrics == nil {
		e.metrics = metrics.NewUnregistered()
	}
	e.logger = e.logger.Named("allocation")
	return e
}

// Outstanding returns the student's obligations per month, oldest first.
func (e *Engine) Outstanding(ctx context.Context, studentID string) ([]ledger.Balance, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, ledger.ErrMissingStudent
	}
	entries, err := e.studentEntries(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return Balances(entries, studentID), nil
}

func (e *Engine) studentEntries(ctx context.Context, studentID string) ([]ledger.Entry, error) {
	return e.repo.ListEntries(ctx, ledger.EntryFilter{StudentID: studentID, Status: ledger.StatusPosted})
}

// Allocate applies each category amount to that category's oldest
// outstanding months. Every slice is its own balanced entry, debit cash and
// credit the student's receivable, tagged with the month it settles. Cash
// left over once nothing is outstanding becomes unapplied credit on the
// student's 2030 account. All entries of the payment are written together
// or not at all.
func (e *Engine) Allocate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.StudentID) == "" {
		return nil, ledger.ErrMissingStudent
	}
	total := decimal.Zero
	for _, c := range ledger.Categories {
		a := req.amount(c)
		if a.IsNegative() {
			return nil, fmt.Errorf("%w: %s amount %s is negative", ledger.ErrInvalidAmount, c, a)
		}
		total = total.Add(a)
	}
	if err := ledger.CheckAmount(total); err != nil {
		return nil, fmt.Errorf("payment: %w", err)
	}
	if !total.IsPositive() {
		return nil, ledger.ErrEmptyPayment
	}
	if req.PaymentID == "" {
		req.PaymentID = uuid.Must(uuid.NewV7()).String()
	}
	if req.Date.IsZero() {
		req.Date = e.now()
	}
	req.Date = ledger.Truncate(req.Date)

	unlock := e.locks.Lock(req.StudentID)
	defer unlock()

	exists, err := e.repo.PaymentExists(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ledger.ErrDuplicatePayment, req.PaymentID)
	}

	entries, err := e.studentEntries(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	balances := Balances(entries, req.StudentID)

	res := &Result{PaymentID: req.PaymentID, StudentID: req.StudentID, Settlements: []Settlement{}, Unallocated: decimal.Zero}
	var out []*ledger.Entry

	for _, c := range ledger.Categories {
		remaining := req.amount(c)
		for i := range balances {
			if !remaining.IsPositive() {
				break
			}
			b := &balances[i]
			due := b.Outstanding(c)
			if !due.IsPositive() {
				continue
			}
			slice := decimal.Min(remaining, due)
			entry := e.settlementEntry(req, b.Month, c, slice)
			out = append(out, entry)
			res.Settlements = append(res.Settlements, Settlement{Month: b.Month, Category: c, Amount: slice})
			b.AddPaid(c, slice)
			remaining = remaining.Sub(slice)
		}
		res.Unallocated = res.Unallocated.Add(remaining)
	}

	var unapplied *ledger.Entry
	if res.Unallocated.IsPositive() {
		unapplied = e.unappliedEntry(req, res.Unallocated)
		out = append(out, unapplied)
	}

	if err := e.repo.AppendEntries(ctx, out...); err != nil {
		return nil, fmt.Errorf("allocate payment %s: %w", req.PaymentID, err)
	}

	// AppendEntries assigned ids; settlements and entries are index-aligned.
	for i := range res.Settlements {
		res.Settlements[i].EntryID = out[i].ID
		e.metrics.AllocatedAmount.WithLabelValues(string(res.Settlements[i].Category)).Add(res.Settlements[i].Amount.InexactFloat64())
	}
	if unapplied != nil {
		res.UnappliedEntryID = unapplied.ID
		e.metrics.AllocatedAmount.WithLabelValues(string(ledger.AllocationUnappliedCredit)).Add(res.Unallocated.InexactFloat64())
	}
	e.metrics.PaymentsAllocated.Inc()
	e.metrics.EntriesPosted.WithLabelValues(string(ledger.SourcePayment)).Add(float64(len(out)))

	e.logger.Info("payment allocated",
		zap.String("student_id", req.StudentID),
		zap.String("payment_id", req.PaymentID),
		zap.Int("settlements", len(res.Settlements)),
		zap.String("unallocated", ledger.FormatAmount(res.Unallocated)),
	)
	events.Emit(ctx, e.publisher, e.logger, events.Event{
		Type:      events.PaymentAllocated,
		StudentID: req.StudentID,
		EntryIDs:  entryIDs(out),
		Payload:   res,
	})
	return res, nil
}

func (e *Engine) settlementEntry(req Request, month ledger.MonthKey, c ledger.Category, amount decimal.Decimal) *ledger.Entry {
	desc := fmt.Sprintf("Payment %s: %s %s", req.PaymentID, c, month)
	return &ledger.Entry{
		Date:        req.Date,
		Description: desc,
		Source:      ledger.SourcePayment,
		SourceID:    req.PaymentID,
		Metadata: ledger.PaymentAllocationMetadata{
			StudentID:      req.StudentID,
			PaymentID:      req.PaymentID,
			MonthSettled:   month,
			AllocationType: ledger.AllocationType(c),
		},
		Lines: []ledger.Line{
			{AccountCode: e.cashAccount, Debit: amount, Description: req.Reference},
			{AccountCode: ledger.ReceivableAccount(req.StudentID), Credit: amount, Category: c, Description: desc},
		},
	}
}

func (e *Engine) unappliedEntry(req Request, amount decimal.Decimal) *ledger.Entry {
	desc := fmt.Sprintf("Payment %s: unapplied credit", req.PaymentID)
	return &ledger.Entry{
		Date:        req.Date,
		Description: desc,
		Source:      ledger.SourcePayment,
		SourceID:    req.PaymentID,
		Metadata: ledger.PaymentAllocationMetadata{
			StudentID:      req.StudentID,
			PaymentID:      req.PaymentID,
			AllocationType: ledger.AllocationUnappliedCredit,
		},
		Lines: []ledger.Line{
			{AccountCode: e.cashAccount, Debit: amount, Description: req.Reference},
			{AccountCode: ledger.UnappliedCreditAccount(req.StudentID), Credit: amount, Description: desc},
		},
	}
}

func entryIDs(entries []*ledger.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
