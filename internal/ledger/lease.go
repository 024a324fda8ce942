package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Lease is the tenancy a student holds at a residence. Leases are owned by
// the student records system; the ledger reads them as facts.
type Lease struct {
	ID              string          `json:"id"`
	StudentID       string          `json:"student_id" validate:"required"`
	ResidenceID     string          `json:"residence_id"`
	RoomID          string          `json:"room_id,omitempty"`
	Start           time.Time       `json:"start" validate:"required"`
	End             *time.Time      `json:"end,omitempty"`
	MonthlyRent     decimal.Decimal `json:"monthly_rent"`
	MonthlyAdminFee decimal.Decimal `json:"monthly_admin_fee"`
	Deposit         decimal.Decimal `json:"deposit"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
}

// Validate checks the facts the accrual batch depends on. A missing
// residence is reported separately so the batch can skip and log it.
func (l *Lease) Validate() error {
	if err := CheckStudentID(l.StudentID); err != nil {
		return err
	}
	if strings.TrimSpace(l.ResidenceID) == "" {
		return fmt.Errorf("%w: lease %s", ErrMissingResidence, l.ID)
	}
	if l.Start.IsZero() {
		return fmt.Errorf("%w: lease %s has no start date", ErrInvalidLease, l.ID)
	}
	for name, amt := range map[string]decimal.Decimal{
		"monthly_rent":      l.MonthlyRent,
		"monthly_admin_fee": l.MonthlyAdminFee,
		"deposit":           l.Deposit,
	} {
		if amt.IsNegative() {
			return fmt.Errorf("%w: %s is negative", ErrInvalidLease, name)
		}
	}
	return nil
}

// CheckStudentID rejects ids that cannot key the student's receivable,
// prepayment and deposit accounts.
func CheckStudentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingStudent
	}
	if !ValidPartyKey(id) {
		return fmt.Errorf("%w: student id %q cannot name an account", ErrInvalidLease, id)
	}
	return nil
}

// ActiveDuring reports whether the lease overlaps [from, to].
func (l *Lease) ActiveDuring(from, to time.Time) bool {
	start := Truncate(l.Start)
	if start.After(Truncate(to)) {
		return false
	}
	if l.End != nil {
		end := Truncate(*l.End)
		if end.Before(start) || end.Before(Truncate(from)) {
			return false
		}
	}
	return true
}
