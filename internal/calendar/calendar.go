// Package calendar derives what a lease owes for each calendar month.
package calendar

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/ledger"
)

// Obligation is what a lease owes for one month.
type Obligation struct {
	Month        ledger.MonthKey `json:"month"`
	RentDue      decimal.Decimal `json:"rent_due"`
	AdminFeeDue  decimal.Decimal `json:"admin_fee_due"`
	DepositDue   decimal.Decimal `json:"deposit_due"`
	DaysOccupied int             `json:"days_occupied"`
	DaysInMonth  int             `json:"days_in_month"`
	Prorated     bool            `json:"prorated"`
}

// Due returns the amount due for a category.
func (o Obligation) Due(c ledger.Category) decimal.Decimal {
	switch c {
	case ledger.CategoryRent:
		return o.RentDue
	case ledger.CategoryAdminFee:
		return o.AdminFeeDue
	default:
		return o.DepositDue
	}
}

// Total is the sum of all charges for the month.
func (o Obligation) Total() decimal.Decimal {
	return o.RentDue.Add(o.AdminFeeDue).Add(o.DepositDue)
}

// MonthsFor enumerates the months from the lease's start month to the
// earlier of its end and asOf. The deposit falls in the start month only.
// Rent for a partly occupied month is monthlyRent / daysInMonth per day
// occupied, both ends inclusive. The admin fee is a flat monthly charge.
func MonthsFor(lease ledger.Lease, asOf time.Time) []Obligation {
	if lease.Start.IsZero() {
		return nil
	}
	start := ledger.Truncate(lease.Start)
	last := ledger.Truncate(asOf)
	if lease.End != nil {
		end := ledger.Truncate(*lease.End)
		if end.Before(start) {
			return nil
		}
		if end.Before(last) {
			last = end
		}
	}
	if start.After(last) {
		return nil
	}

	// Months past asOf are not due yet, but a month that has started is
	// owed in full up to the lease end.
	var months []Obligation
	for m := ledger.MonthOf(start); m <= ledger.MonthOf(last); m = m.Next() {
		months = append(months, obligationFor(lease, m))
	}
	return months
}

// ObligationFor returns the obligation for a single month and whether the
// lease occupies any day of it.
func ObligationFor(lease ledger.Lease, month ledger.MonthKey) (Obligation, bool) {
	if lease.Start.IsZero() || !lease.ActiveDuring(month.Start(), month.End()) {
		return Obligation{}, false
	}
	return obligationFor(lease, month), true
}

func obligationFor(lease ledger.Lease, month ledger.MonthKey) Obligation {
	days := month.Days()
	first, lastDay := 1, days

	start := ledger.Truncate(lease.Start)
	if ledger.MonthOf(start) == month {
		first = start.Day()
	}
	if lease.End != nil {
		end := ledger.Truncate(*lease.End)
		if ledger.MonthOf(end) == month {
			lastDay = end.Day()
		}
	}
	occupied := lastDay - first + 1

	o := Obligation{
		Month:        month,
		RentDue:      ledger.Round(lease.MonthlyRent),
		AdminFeeDue:  ledger.Round(lease.MonthlyAdminFee),
		DepositDue:   decimal.Zero,
		DaysOccupied: occupied,
		DaysInMonth:  days,
	}
	if occupied < days {
		// rent * occupied / days keeps the daily rate unrounded
		o.RentDue = ledger.Round(lease.MonthlyRent.
			Mul(decimal.NewFromInt(int64(occupied))).
			Div(decimal.NewFromInt(int64(days))))
		o.Prorated = true
	}
	if ledger.MonthOf(start) == month {
		o.DepositDue = ledger.Round(lease.Deposit)
	}
	return o
}
