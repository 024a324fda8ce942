// Package journal posts manual entries: vendor bills, expenses, owner
// capital and corrections that no engine produces.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/metrics"
)

// ChartSource supplies the current chart of accounts.
type ChartSource interface {
	Chart(ctx context.Context) (*ledger.Chart, error)
}

type LineRequest struct {
	AccountCode string          `json:"account_code" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
	Category    ledger.Category `json:"category,omitempty" validate:"omitempty,oneof=rent admin_fee deposit"`
}

// ManualEntryRequest describes one manual entry. Draft entries are stored
// but do not count toward any balance.
type ManualEntryRequest struct {
	Date        time.Time     `json:"date"`
	Description string        `json:"description" validate:"required"`
	Reference   string        `json:"reference,omitempty"`
	StudentID   string        `json:"student_id,omitempty"`
	VendorID    string        `json:"vendor_id,omitempty"`
	Author      string        `json:"author,omitempty"`
	Draft       bool          `json:"draft,omitempty"`
	Lines       []LineRequest `json:"lines" validate:"min=2,dive"`
}

type Journal struct {
	repo      ledger.Repository
	charts    ChartSource
	validate  *validator.Validate
	logger    *zap.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
	now       func() time.Time
}

type Option func(*Journal)

func WithLogger(l *zap.Logger) Option         { return func(j *Journal) { j.logger = l } }
func WithMetrics(m *metrics.Metrics) Option   { return func(j *Journal) { j.metrics = m } }
func WithPublisher(p events.Publisher) Option { return func(j *Journal) { j.publisher = p } }
func WithClock(now func() time.Time) Option   { return func(j *Journal) { j.now = now } }

func New(repo ledger.Repository, charts ChartSource, opts ...Option) *Journal {
	j := &Journal{
		repo:     repo,
		charts:   charts,
		validate: validator.New(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.metrics == nil {
		j.metrics = metrics.NewUnregistered()
	}
	j.logger = j.logger.Named("journal")
	return j
}

// Post resolves every line against the chart and appends a manual entry.
func (j *Journal) Post(ctx context.Context, req ManualEntryRequest) (*ledger.Entry, error) {
	if err := j.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidLine, err)
	}
	chart, err := j.charts.Chart(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chart: %w", err)
	}

	entry := &ledger.Entry{
		Date:        req.Date,
		Description: strings.TrimSpace(req.Description),
		Source:      ledger.SourceManual,
		SourceID:    req.Reference,
		Status:      ledger.StatusPosted,
		Metadata: ledger.ManualMetadata{
			StudentID: req.StudentID,
			VendorID:  req.VendorID,
			Reference: req.Reference,
			Author:    req.Author,
		},
	}
	if entry.Date.IsZero() {
		entry.Date = j.now()
	}
	if req.Draft {
		entry.Status = ledger.StatusDraft
	}
	for i, lr := range req.Lines {
		line, err := chart.Line(lr.AccountCode)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		line.Debit, line.Credit = lr.Debit, lr.Credit
		line.Description = lr.Description
		line.Category = lr.Category
		entry.Lines = append(entry.Lines, line)
	}

	if err := j.repo.AppendEntries(ctx, entry); err != nil {
		return nil, err
	}

	j.logger.Info("manual entry posted",
		zap.String("entry_id", entry.ID),
		zap.String("status", string(entry.Status)),
		zap.String("amount", ledger.FormatAmount(entry.TotalDebit)),
	)
	if !entry.Posted() {
		return entry, nil
	}
	j.metrics.EntriesPosted.WithLabelValues(string(ledger.SourceManual)).Inc()
	events.Emit(ctx, j.publisher, j.logger, events.Event{
		Type:      events.ManualEntryPosted,
		StudentID: entry.StudentID,
		EntryIDs:  []string{entry.ID},
		Payload:   entry,
	})
	return entry, nil
}

// VendorBill records an expense owed to a vendor: debit the expense
// account, credit the vendor's payable.
func (j *Journal) VendorBill(ctx context.Context, vendorID, expenseCode string, amount decimal.Decimal, date time.Time, description string) (*ledger.Entry, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, fmt.Errorf("%w: vendor is required", ledger.ErrInvalidAccountCode)
	}
	return j.Post(ctx, ManualEntryRequest{
		Date:        date,
		Description: description,
		VendorID:    vendorID,
		Lines: []LineRequest{
			{AccountCode: expenseCode, Debit: amount},
			{AccountCode: ledger.PayableAccount(vendorID), Credit: amount},
		},
	})
}
