// Package audit checks the ledger for integrity problems and reports them.
// It never writes: fixes go through reversals and manual entries.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/allocation"
	"github.com/simonvc/rentledger/internal/ledger"
)

// Check names.
const (
	CheckUnbalanced       = "unbalanced_entry"
	CheckDuplicateAccrual = "duplicate_accrual"
	CheckOrphanPayment    = "orphan_payment"
	CheckOverSettled      = "over_settled"
	CheckClosure          = "ledger_closure"
	CheckAccountTotals    = "account_totals"
)

type Finding struct {
	Check     string          `json:"check"`
	EntryID   string          `json:"entry_id,omitempty"`
	StudentID string          `json:"student_id,omitempty"`
	Month     ledger.MonthKey `json:"month,omitempty"`
	Account   string          `json:"account,omitempty"`
	Message   string          `json:"message"`
}

type Report struct {
	AsOf           time.Time       `json:"as_of,omitempty"`
	EntriesChecked int             `json:"entries_checked"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
	Findings       []Finding       `json:"findings"`
	Clean          bool            `json:"clean"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// TotalsSource aggregates posted lines per account independently of the
// entry reader, so the two can be compared.
type TotalsSource interface {
	AccountTotals(ctx context.Context, asOf time.Time) ([]ledger.AccountTotal, error)
}

type Auditor struct {
	repo   ledger.Repository
	totals TotalsSource
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Auditor)

func WithLogger(l *zap.Logger) Option       { return func(a *Auditor) { a.logger = l } }
func WithTotals(t TotalsSource) Option      { return func(a *Auditor) { a.totals = t } }
func WithClock(now func() time.Time) Option { return func(a *Auditor) { a.now = now } }

func New(repo ledger.Repository, opts ...Option) *Auditor {
	a := &Auditor{repo: repo, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("audit")
	return a
}

// Run checks every posted entry dated on or before asOf. A zero asOf
// checks the whole ledger.
func (a *Auditor) Run(ctx context.Context, asOf time.Time) (*Report, error) {
	if !asOf.IsZero() {
		asOf = ledger.Truncate(asOf)
	}
	entries, err := a.repo.ListEntries(ctx, ledger.EntryFilter{To: asOf, Status: ledger.StatusPosted})
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	r := &Report{
		AsOf:           asOf,
		EntriesChecked: len(entries),
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
		Findings:       []Finding{},
		GeneratedAt:    a.now().UTC(),
	}
	r.checkEntries(entries)
	r.checkAccruals(entries)
	r.checkSettlements(entries)

	if a.totals != nil {
		totals, err := a.totals.AccountTotals(ctx, asOf)
		if err != nil {
			return nil, fmt.Errorf("account totals: %w", err)
		}
		r.checkTotals(entries, totals)
	}

	r.Clean = len(r.Findings) == 0
	for _, f := range r.Findings {
		a.logger.Warn("audit finding",
			zap.String("check", f.Check),
			zap.String("entry_id", f.EntryID),
			zap.String("student_id", f.StudentID),
			zap.String("month", string(f.Month)),
			zap.String("message", f.Message),
		)
	}
	a.logger.Info("audit complete", zap.Int("entries", r.EntriesChecked), zap.Int("findings", len(r.Findings)))
	return r, nil
}

func (r *Report) add(f Finding) { r.Findings = append(r.Findings, f) }

// checkEntries recomputes each entry from its lines and sums the ledger.
func (r *Report) checkEntries(entries []ledger.Entry) {
	for i := range entries {
		e := &entries[i]
		debit, credit := decimal.Zero, decimal.Zero
		for _, l := range e.Lines {
			debit = debit.Add(l.Debit)
			credit = credit.Add(l.Credit)
		}
		r.TotalDebit = r.TotalDebit.Add(debit)
		r.TotalCredit = r.TotalCredit.Add(credit)

		switch {
		case len(e.Lines) < 2:
			r.add(Finding{Check: CheckUnbalanced, EntryID: e.ID, StudentID: e.StudentID,
				Message: fmt.Sprintf("entry has %d line(s)", len(e.Lines))})
		case !ledger.Equal(debit, credit):
			r.add(Finding{Check: CheckUnbalanced, EntryID: e.ID, StudentID: e.StudentID,
				Message: fmt.Sprintf("debit %s does not equal credit %s", ledger.FormatAmount(debit), ledger.FormatAmount(credit))})
		}
	}
	r.TotalDebit, r.TotalCredit = ledger.Round(r.TotalDebit), ledger.Round(r.TotalCredit)
	if !ledger.Equal(r.TotalDebit, r.TotalCredit) {
		r.add(Finding{Check: CheckClosure,
			Message: fmt.Sprintf("ledger debits %s, credits %s", ledger.FormatAmount(r.TotalDebit), ledger.FormatAmount(r.TotalCredit))})
	}
}

func (r *Report) checkAccruals(entries []ledger.Entry) {
	seen := map[string][]string{}
	var keys []string
	for i := range entries {
		e := &entries[i]
		if e.Source != ledger.SourceRentalAccrual {
			continue
		}
		key := e.StudentID + "|" + string(e.ObligationMonth())
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
		seen[key] = append(seen[key], e.ID)
	}
	for _, key := range keys {
		ids := seen[key]
		if len(ids) < 2 {
			continue
		}
		e := findEntry(entries, ids[1])
		r.add(Finding{Check: CheckDuplicateAccrual, EntryID: ids[1], StudentID: e.StudentID, Month: e.ObligationMonth(),
			Message: fmt.Sprintf("%d accruals for the same month: %v", len(ids), ids)})
	}
}

// checkSettlements flags settlements against months that were never
// accrued and months settled beyond what was owed.
func (r *Report) checkSettlements(entries []ledger.Entry) {
	accrued := map[string]bool{}
	students := map[string]bool{}
	for i := range entries {
		e := &entries[i]
		if e.StudentID != "" {
			students[e.StudentID] = true
		}
		if e.Source == ledger.SourceRentalAccrual {
			accrued[e.StudentID+"|"+string(e.ObligationMonth())] = true
		}
	}

	for i := range entries {
		e := &entries[i]
		if e.Source != ledger.SourcePayment && e.Source != ledger.SourceCreditApplication {
			continue
		}
		month := e.ObligationMonth()
		if month == "" {
			continue // unapplied credit
		}
		if !accrued[e.StudentID+"|"+string(month)] {
			r.add(Finding{Check: CheckOrphanPayment, EntryID: e.ID, StudentID: e.StudentID, Month: month,
				Message: fmt.Sprintf("settles %s which has no accrual", month)})
		}
	}

	ids := make([]string, 0, len(students))
	for id := range students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, sid := range ids {
		for _, b := range allocation.Balances(entries, sid) {
			for _, c := range ledger.Categories {
				if over := b.Outstanding(c); over.IsNegative() {
					r.add(Finding{Check: CheckOverSettled, StudentID: sid, Month: b.Month,
						Message: fmt.Sprintf("%s paid %s against %s owed", c, ledger.FormatAmount(b.Paid(c)), ledger.FormatAmount(b.Owed(c)))})
				}
			}
		}
	}
}

// checkTotals compares per-account sums from the entries with the
// independently aggregated totals.
func (r *Report) checkTotals(entries []ledger.Entry, totals []ledger.AccountTotal) {
	type pair struct{ debit, credit decimal.Decimal }
	fromEntries := map[string]pair{}
	for i := range entries {
		for _, l := range entries[i].Lines {
			p := fromEntries[l.AccountCode]
			p.debit = p.debit.Add(l.Debit)
			p.credit = p.credit.Add(l.Credit)
			fromEntries[l.AccountCode] = p
		}
	}

	for _, t := range totals {
		p, ok := fromEntries[t.AccountCode]
		delete(fromEntries, t.AccountCode)
		if ok && ledger.Equal(p.debit, t.Debit) && ledger.Equal(p.credit, t.Credit) {
			continue
		}
		r.add(Finding{Check: CheckAccountTotals, Account: t.AccountCode,
			Message: fmt.Sprintf("entries give %s/%s, totals give %s/%s",
				ledger.FormatAmount(p.debit), ledger.FormatAmount(p.credit),
				ledger.FormatAmount(t.Debit), ledger.FormatAmount(t.Credit))})
	}
	codes := make([]string, 0, len(fromEntries))
	for code := range fromEntries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		r.add(Finding{Check: CheckAccountTotals, Account: code, Message: "account missing from totals"})
	}
}

func findEntry(entries []ledger.Entry, id string) *ledger.Entry {
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i]
		}
	}
	return &ledger.Entry{}
}
