package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/ledger"
)

// Balances derives a student's per-month obligations from the ledger.
// Owed comes from receivable lines of accruals and their reversals, paid
// from receivable lines of settlements tagged with the month they settled.
// Entries for other students and unposted entries are ignored. The result
// is ordered by month.
func Balances(entries []ledger.Entry, studentID string) []ledger.Balance {
	receivable := ledger.ReceivableAccount(studentID)
	byMonth := map[ledger.MonthKey]*ledger.Balance{}

	get := func(m ledger.MonthKey) *ledger.Balance {
		b, ok := byMonth[m]
		if !ok {
			b = &ledger.Balance{Month: m}
			byMonth[m] = b
		}
		return b
	}

	for i := range entries {
		e := &entries[i]
		if !e.Posted() || e.StudentID != studentID {
			continue
		}
		month := e.ObligationMonth()
		if month == "" {
			continue
		}

		for _, l := range e.Lines {
			if l.AccountCode != receivable {
				continue
			}
			c := lineCategory(e, l)
			if c == "" {
				continue
			}
			switch e.Source {
			case ledger.SourceRentalAccrual, ledger.SourceAccrualReversal:
				get(month).AddOwed(c, l.Debit.Sub(l.Credit))
			case ledger.SourcePayment, ledger.SourceCreditApplication:
				get(month).AddPaid(c, l.Credit.Sub(l.Debit))
			}
		}
	}

	out := make([]ledger.Balance, 0, len(byMonth))
	for _, b := range byMonth {
		b.Finalize()
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// lineCategory falls back to the settlement's allocation type for lines
// written without a category.
func lineCategory(e *ledger.Entry, l ledger.Line) ledger.Category {
	if l.Category != "" {
		return l.Category
	}
	var t ledger.AllocationType
	switch md := e.Metadata.(type) {
	case ledger.PaymentAllocationMetadata:
		t = md.AllocationType
	case ledger.CreditApplicationMetadata:
		t = md.AllocationType
	}
	if c := ledger.Category(t); ledger.ValidCategory(c) {
		return c
	}
	return ""
}

// accountBalance is credit minus debit on one account across posted entries.
func accountBalance(entries []ledger.Entry, code string) decimal.Decimal {
	total := decimal.Zero
	for i := range entries {
		if !entries[i].Posted() {
			continue
		}
		for _, l := range entries[i].Lines {
			if l.AccountCode == code {
				total = total.Add(l.Credit).Sub(l.Debit)
			}
		}
	}
	return ledger.Round(total)
}

// TotalOutstanding sums what is still owed across all months and categories.
func TotalOutstanding(balances []ledger.Balance) decimal.Decimal {
	total := decimal.Zero
	for i := range balances {
		for _, c := range ledger.Categories {
			if out := balances[i].Outstanding(c); out.IsPositive() {
				total = total.Add(out)
			}
		}
	}
	return total
}
