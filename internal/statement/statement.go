// Package statement rebuilds financial statements from the ledger entries
// alone. Nothing is cached: every report reads one snapshot of posted
// entries and derives its figures from the lines.
package statement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/metrics"
)

// CurrentEarnings names the computed equity line holding net income to date.
const CurrentEarnings = "Current Earnings"

// accrualSources are the entry sources recognized on the accrual basis.
var accrualSources = map[ledger.Source]bool{
	ledger.SourceRentalAccrual:     true,
	ledger.SourcePayment:           true,
	ledger.SourceManual:            true,
	ledger.SourceAccrualReversal:   true,
	ledger.SourceDepositForfeiture: true,
}

// cashIncome maps a settled category to the income account it is
// recognized in on the cash basis. Deposits are a liability, never income.
var cashIncome = map[ledger.Category]string{
	ledger.CategoryRent:     ledger.CodeRentalIncome,
	ledger.CategoryAdminFee: ledger.CodeAdminFeeIncome,
}

// ChartSource supplies the current chart of accounts, custom accounts
// included.
type ChartSource interface {
	Chart(ctx context.Context) (*ledger.Chart, error)
}

type Reconstructor struct {
	repo    ledger.Repository
	charts  ChartSource
	chart   *ledger.Chart
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Reconstructor)

func WithLogger(l *zap.Logger) Option       { return func(r *Reconstructor) { r.logger = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(r *Reconstructor) { r.metrics = m } }
func WithCharts(c ChartSource) Option       { return func(r *Reconstructor) { r.charts = c } }
func WithClock(now func() time.Time) Option { return func(r *Reconstructor) { r.now = now } }

func New(repo ledger.Repository, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		repo:   repo,
		chart:  ledger.DefaultChart(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.NewUnregistered()
	}
	r.logger = r.logger.Named("statement")
	return r
}

func (r *Reconstructor) observe(report string, start time.Time) {
	r.metrics.ReportDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
}

// chartFor names accounts from the live chart, falling back to the
// predefined one when it cannot be loaded.
func (r *Reconstructor) chartFor(ctx context.Context) *ledger.Chart {
	if r.charts == nil {
		return r.chart
	}
	chart, err := r.charts.Chart(ctx)
	if err != nil {
		r.logger.Warn("load chart failed, using predefined accounts", zap.Error(err))
		return r.chart
	}
	return chart
}

func (r *Reconstructor) snapshot(ctx context.Context, from, to time.Time) ([]ledger.Entry, error) {
	entries, err := r.repo.ListEntries(ctx, ledger.EntryFilter{From: from, To: to, Status: ledger.StatusPosted})
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return entries, nil
}

// IncomeStatement reports revenue and expenses between from and to, both
// inclusive, on the given basis.
func (r *Reconstructor) IncomeStatement(ctx context.Context, from, to time.Time, basis ledger.Basis) (*ledger.IncomeStatement, error) {
	defer r.observe("income_statement", time.Now())

	from, to = ledger.Truncate(from), ledger.Truncate(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: period ends %s before it starts %s", ledger.ErrInvalidDate,
			to.Format(ledger.DateLayout), from.Format(ledger.DateLayout))
	}
	entries, err := r.snapshot(ctx, from, to)
	if err != nil {
		return nil, err
	}
	is := r.incomeStatement(r.chartFor(ctx), entries, from, to, basis)
	r.logger.Debug("income statement built",
		zap.String("basis", string(basis)),
		zap.Int("entries", len(entries)),
		zap.String("net_income", ledger.FormatAmount(is.NetIncome)),
	)
	return is, nil
}

// BalanceSheet reports every balance sheet account as of a date, with net
// income to date shown as current earnings under equity.
func (r *Reconstructor) BalanceSheet(ctx context.Context, asOf time.Time) (*ledger.BalanceSheet, error) {
	defer r.observe("balance_sheet", time.Now())

	asOf = ledger.Truncate(asOf)
	entries, err := r.snapshot(ctx, time.Time{}, asOf)
	if err != nil {
		return nil, err
	}
	bs := r.balanceSheet(r.chartFor(ctx), entries, time.Time{}, asOf)
	if !bs.Balanced {
		r.logger.Warn("balance sheet does not balance",
			zap.String("as_of", asOf.Format(ledger.DateLayout)),
			zap.String("difference", ledger.FormatAmount(bs.BalanceCheck)),
		)
	}
	return bs, nil
}

// TrialBalance lists the net debit or credit of every account code with
// activity up to asOf.
func (r *Reconstructor) TrialBalance(ctx context.Context, asOf time.Time) (*ledger.TrialBalance, error) {
	defer r.observe("trial_balance", time.Now())

	asOf = ledger.Truncate(asOf)
	entries, err := r.snapshot(ctx, time.Time{}, asOf)
	if err != nil {
		return nil, err
	}

	net := map[string]decimal.Decimal{}
	names := map[string]string{}
	for i := range entries {
		for _, l := range entries[i].Lines {
			net[l.AccountCode] = net[l.AccountCode].Add(l.Net())
			if names[l.AccountCode] == "" {
				names[l.AccountCode] = l.AccountName
			}
		}
	}

	tb := &ledger.TrialBalance{
		AsOf:        asOf,
		Lines:       []ledger.TrialBalanceLine{},
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		GeneratedAt: r.now().UTC(),
	}
	for _, code := range sortedKeys(net) {
		balance := ledger.Round(net[code])
		if balance.IsZero() {
			continue
		}
		line := ledger.TrialBalanceLine{AccountCode: code, AccountName: names[code], Debit: decimal.Zero, Credit: decimal.Zero}
		if balance.IsPositive() {
			line.Debit = balance
			tb.TotalDebit = tb.TotalDebit.Add(balance)
		} else {
			line.Credit = balance.Neg()
			tb.TotalCredit = tb.TotalCredit.Add(line.Credit)
		}
		tb.Lines = append(tb.Lines, line)
	}
	tb.Balanced = ledger.WithinEpsilon(tb.TotalDebit, tb.TotalCredit)
	return tb, nil
}

// MonthlyBreakdown reports each month of a year up to the current month.
// Cumulative mode gives year-to-date income and the balance sheet at month
// end; monthly mode gives only that month's activity.
func (r *Reconstructor) MonthlyBreakdown(ctx context.Context, year int, mode ledger.BreakdownMode, basis ledger.Basis) (*ledger.MonthlyBreakdown, error) {
	defer r.observe("monthly_breakdown", time.Now())

	if year < 1 {
		return nil, fmt.Errorf("%w: year %d", ledger.ErrInvalidDate, year)
	}
	first := ledger.NewMonthKey(year, time.January)
	last := ledger.NewMonthKey(year, time.December)
	if current := ledger.MonthOf(r.now().UTC()); current < last {
		last = current
	}

	out := &ledger.MonthlyBreakdown{Year: year, Mode: mode, Basis: basis, Months: []ledger.MonthReport{}}
	if last < first {
		return out, nil
	}

	// one snapshot serves every month so the months agree with each other
	entries, err := r.snapshot(ctx, time.Time{}, last.End())
	if err != nil {
		return nil, err
	}

	chart := r.chartFor(ctx)
	for m := first; m <= last; m = m.Next() {
		report := ledger.MonthReport{Month: m}
		switch mode {
		case ledger.ModeMonthly:
			report.IncomeStatement = r.incomeStatement(chart, entries, m.Start(), m.End(), basis)
			report.BalanceSheet = r.balanceSheet(chart, entries, m.Start(), m.End())
		default:
			report.IncomeStatement = r.incomeStatement(chart, entries, first.Start(), m.End(), basis)
			report.BalanceSheet = r.balanceSheet(chart, entries, time.Time{}, m.End())
		}
		out.Months = append(out.Months, report)
	}
	return out, nil
}

func (r *Reconstructor) incomeStatement(chart *ledger.Chart, entries []ledger.Entry, from, to time.Time, basis ledger.Basis) *ledger.IncomeStatement {
	revenue := newRollup()
	expenses := newRollup()

	for i := range entries {
		e := &entries[i]
		if !within(e, from, to) {
			continue
		}
		if basis == ledger.BasisCash {
			addCash(e, revenue, expenses)
			continue
		}
		if !accrualSources[e.Source] {
			continue
		}
		for _, l := range e.Lines {
			switch lineType(l) {
			case ledger.AccountIncome:
				revenue.add(l.AccountCode, l.Credit.Sub(l.Debit))
			case ledger.AccountExpense:
				expenses.add(l.AccountCode, l.Net())
			}
		}
	}

	is := &ledger.IncomeStatement{
		PeriodStart: from,
		PeriodEnd:   to,
		Basis:       basis,
		Revenue:     revenue.section(chart),
		Expenses:    expenses.section(chart),
		GeneratedAt: r.now().UTC(),
	}
	is.NetIncome = is.Revenue.Total.Sub(is.Expenses.Total)
	return is
}

// addCash recognizes income when cash settles an obligation. Manual and
// forfeiture entries have no accrual counterpart and count as they are.
func addCash(e *ledger.Entry, revenue, expenses *rollup) {
	switch e.Source {
	case ledger.SourcePayment, ledger.SourceCreditApplication:
		receivable := ledger.ReceivableAccount(e.StudentID)
		for _, l := range e.Lines {
			if l.AccountCode != receivable {
				continue
			}
			if code, ok := cashIncome[l.Category]; ok {
				revenue.add(code, l.Credit.Sub(l.Debit))
			}
		}
	case ledger.SourceManual, ledger.SourceDepositForfeiture:
		for _, l := range e.Lines {
			switch lineType(l) {
			case ledger.AccountIncome:
				revenue.add(l.AccountCode, l.Credit.Sub(l.Debit))
			case ledger.AccountExpense:
				expenses.add(l.AccountCode, l.Net())
			}
		}
	}
}

// balanceSheet covers entries dated from (when set) through asOf.
func (r *Reconstructor) balanceSheet(chart *ledger.Chart, entries []ledger.Entry, from, asOf time.Time) *ledger.BalanceSheet {
	assets := newRollup()
	liabilities := newRollup()
	equity := newRollup()
	earnings := decimal.Zero

	for i := range entries {
		e := &entries[i]
		if !within(e, from, asOf) {
			continue
		}
		for _, l := range e.Lines {
			switch lineType(l) {
			case ledger.AccountAsset:
				assets.add(l.AccountCode, l.Net())
			case ledger.AccountLiability:
				liabilities.add(l.AccountCode, l.Credit.Sub(l.Debit))
			case ledger.AccountEquity:
				equity.add(l.AccountCode, l.Credit.Sub(l.Debit))
			case ledger.AccountIncome, ledger.AccountExpense:
				earnings = earnings.Add(l.Credit.Sub(l.Debit))
			}
		}
	}

	bs := &ledger.BalanceSheet{
		AsOf:        asOf,
		Assets:      assets.section(chart),
		Liabilities: liabilities.section(chart),
		Equity:      equity.section(chart),
		GeneratedAt: r.now().UTC(),
	}
	if !from.IsZero() {
		start := from
		bs.PeriodStart = &start
	}
	earnings = ledger.Round(earnings)
	if !earnings.IsZero() {
		bs.Equity.Lines = append(bs.Equity.Lines, ledger.StatementLine{AccountName: CurrentEarnings, Amount: earnings})
		bs.Equity.Total = bs.Equity.Total.Add(earnings)
	}
	bs.BalanceCheck = bs.Assets.Total.Sub(bs.Liabilities.Total.Add(bs.Equity.Total))
	bs.Balanced = bs.BalanceCheck.Abs().LessThanOrEqual(ledger.Epsilon)
	return bs
}

func within(e *ledger.Entry, from, to time.Time) bool {
	if !from.IsZero() && e.Date.Before(from) {
		return false
	}
	return to.IsZero() || !e.Date.After(to)
}

// lineType trusts the type stored on the line and falls back to the code's
// leading digit for lines written without one.
func lineType(l ledger.Line) ledger.AccountType {
	if l.AccountType != "" {
		return l.AccountType
	}
	t, err := ledger.TypeForCode(l.AccountCode)
	if err != nil {
		return ""
	}
	return t
}

// rollup sums amounts per base account, keeping party sub-accounts as
// detail under their base.
type rollup struct {
	base   map[string]decimal.Decimal
	detail map[string]map[string]decimal.Decimal
}

func newRollup() *rollup {
	return &rollup{base: map[string]decimal.Decimal{}, detail: map[string]map[string]decimal.Decimal{}}
}

func (r *rollup) add(code string, amount decimal.Decimal) {
	base, key, err := ledger.SplitCode(code)
	if err != nil {
		base = code
	}
	r.base[base] = r.base[base].Add(amount)
	if key == "" {
		return
	}
	if r.detail[base] == nil {
		r.detail[base] = map[string]decimal.Decimal{}
	}
	r.detail[base][code] = r.detail[base][code].Add(amount)
}

func (r *rollup) section(chart *ledger.Chart) ledger.StatementSection {
	s := ledger.StatementSection{Lines: []ledger.StatementLine{}, Total: decimal.Zero}
	for _, base := range sortedKeys(r.base) {
		amount := ledger.Round(r.base[base])
		line := ledger.StatementLine{AccountCode: base, AccountName: chart.BaseName(base), Amount: amount}
		for _, code := range sortedKeys(r.detail[base]) {
			sub := ledger.Round(r.detail[base][code])
			if sub.IsZero() {
				continue
			}
			line.Detail = append(line.Detail, ledger.StatementLine{AccountCode: code, AccountName: accountName(chart, code), Amount: sub})
		}
		if amount.IsZero() && len(line.Detail) == 0 {
			continue
		}
		s.Lines = append(s.Lines, line)
		s.Total = s.Total.Add(amount)
	}
	return s
}

func accountName(chart *ledger.Chart, code string) string {
	if acct, err := chart.Resolve(code); err == nil {
		return acct.Name
	}
	return chart.BaseName(code)
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
