package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source tags the business event that produced a ledger entry.
type Source string

const (
	SourceRentalAccrual     Source = "rental_accrual"
	SourcePayment           Source = "payment"
	SourceAccrualReversal   Source = "rental_accrual_reversal"
	SourceManual            Source = "manual"
	SourceCreditApplication Source = "unapplied_credit_application"
	SourceDepositForfeiture Source = "deposit_forfeiture"
)

var AllSources = []Source{
	SourceRentalAccrual,
	SourcePayment,
	SourceAccrualReversal,
	SourceManual,
	SourceCreditApplication,
	SourceDepositForfeiture,
}

// ValidSource checks if a source tag is known.
func ValidSource(s Source) bool {
	for _, v := range AllSources {
		if v == s {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPosted Status = "posted"
	StatusDraft  Status = "draft"
)

// Category is the kind of charge a receivable line belongs to.
type Category string

const (
	CategoryRent     Category = "rent"
	CategoryAdminFee Category = "admin_fee"
	CategoryDeposit  Category = "deposit"
)

// Categories is the allocation order within a payment.
var Categories = []Category{CategoryRent, CategoryAdminFee, CategoryDeposit}

// ValidCategory checks if a category is known.
func ValidCategory(c Category) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Line is one debit or credit within a ledger entry.
type Line struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	AccountType AccountType     `json:"account_type"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
	Category    Category        `json:"category,omitempty"`
}

// Net returns debit minus credit.
func (l Line) Net() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// Entry is one balanced accounting event.
type Entry struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Source      Source          `json:"source"`
	SourceID    string          `json:"source_id,omitempty"`
	Status      Status          `json:"status"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	StudentID   string          `json:"student_id,omitempty"`
	Metadata    Metadata        `json:"metadata,omitempty"`
	Lines       []Line          `json:"lines"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

// Validate checks entry invariants and fills the debit/credit totals:
// at least two lines, each line one-sided and non-negative, debits equal
// credits to the cent, and metadata matching the source.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if !ValidSource(e.Source) {
		return fmt.Errorf("%w: %q", ErrInvalidSource, e.Source)
	}
	if e.Status == "" {
		e.Status = StatusPosted
	}
	if e.Status != StatusPosted && e.Status != StatusDraft {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: entry date is required", ErrInvalidDate)
	}
	if e.Metadata != nil {
		if e.Metadata.Kind() != e.Source {
			return fmt.Errorf("%w: %s metadata on %s entry", ErrMetadataMismatch, e.Metadata.Kind(), e.Source)
		}
		if sid := e.Metadata.Student(); sid != "" {
			if e.StudentID != "" && e.StudentID != sid {
				return fmt.Errorf("%w: student %s vs %s", ErrMetadataMismatch, e.StudentID, sid)
			}
			e.StudentID = sid
		}
	} else if e.Source != SourceManual {
		return fmt.Errorf("%w: %s entry requires metadata", ErrMetadataMismatch, e.Source)
	}
	if len(e.Lines) < 2 {
		return ErrTooFewLines
	}

	debit, credit := decimal.Zero, decimal.Zero
	for i := range e.Lines {
		l := &e.Lines[i]
		if l.AccountCode == "" {
			return fmt.Errorf("%w: line %d has no account", ErrInvalidAccountCode, i)
		}
		l.Debit, l.Credit = Round(l.Debit), Round(l.Credit)
		if err := CheckAmount(l.Debit.Add(l.Credit)); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative amount", ErrInvalidLine, i)
		}
		if l.Debit.IsPositive() == l.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d (%s)", ErrInvalidLine, i, l.AccountCode)
		}
		if l.Category != "" && !ValidCategory(l.Category) {
			return fmt.Errorf("%w: line %d has category %q", ErrInvalidLine, i, l.Category)
		}
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	if err := CheckAmount(debit); err != nil {
		return fmt.Errorf("entry total: %w", err)
	}
	if !Equal(debit, credit) {
		return fmt.Errorf("%w: debit=%s credit=%s", ErrUnbalancedEntry, FormatAmount(debit), FormatAmount(credit))
	}
	e.TotalDebit, e.TotalCredit = debit, credit
	e.Date = Truncate(e.Date)
	return nil
}

// Posted reports whether the entry counts toward balances.
func (e *Entry) Posted() bool {
	return e.Status == StatusPosted
}

// ObligationMonth returns the month an entry accrues or settles, if any.
func (e *Entry) ObligationMonth() MonthKey {
	switch m := e.Metadata.(type) {
	case AccrualMetadata:
		return m.Month
	case ReversalMetadata:
		return m.Month
	case PaymentAllocationMetadata:
		return m.MonthSettled
	case CreditApplicationMetadata:
		return m.MonthSettled
	}
	return ""
}

type entryJSON struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Source      Source          `json:"source"`
	SourceID    string          `json:"source_id,omitempty"`
	Status      Status          `json:"status"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	StudentID   string          `json:"student_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Lines       []Line          `json:"lines"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		ID:          e.ID,
		Date:        e.Date.Format(DateLayout),
		Description: e.Description,
		Source:      e.Source,
		SourceID:    e.SourceID,
		Status:      e.Status,
		TotalDebit:  e.TotalDebit,
		TotalCredit: e.TotalCredit,
		StudentID:   e.StudentID,
		Lines:       e.Lines,
		CreatedAt:   e.CreatedAt,
	}
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		out.Metadata = raw
	}
	return json.Marshal(out)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return err
	}
	md, err := DecodeMetadata(in.Source, in.Metadata)
	if err != nil {
		return err
	}
	*e = Entry{
		ID:          in.ID,
		Date:        date,
		Description: in.Description,
		Source:      in.Source,
		SourceID:    in.SourceID,
		Status:      in.Status,
		TotalDebit:  in.TotalDebit,
		TotalCredit: in.TotalCredit,
		StudentID:   in.StudentID,
		Metadata:    md,
		Lines:       in.Lines,
		CreatedAt:   in.CreatedAt,
	}
	return nil
}
