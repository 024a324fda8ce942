package ledger

import "errors"

var (
	ErrInvalidAccountCode  = errors.New("invalid account code")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrDuplicateAccount    = errors.New("account already exists")
	ErrSystemAccount       = errors.New("system accounts cannot be changed")
	ErrUnbalancedEntry     = errors.New("ledger entry debits and credits do not balance")
	ErrTooFewLines         = errors.New("ledger entry must have at least 2 lines")
	ErrInvalidLine         = errors.New("ledger line must have exactly one of debit or credit")
	ErrEmptyDescription    = errors.New("ledger entry description is required")
	ErrInvalidSource       = errors.New("invalid ledger entry source")
	ErrInvalidStatus       = errors.New("invalid ledger entry status")
	ErrMetadataMismatch    = errors.New("metadata does not match entry source")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEntryNotFound       = errors.New("ledger entry not found")
	ErrDuplicateAccrual    = errors.New("rental accrual already exists for student and month")
	ErrDuplicateReversal   = errors.New("rental accrual already reversed")
	ErrAccrualNotFound     = errors.New("rental accrual not found")
	ErrAccrualSettled      = errors.New("rental accrual has settlements and cannot be reversed")
	ErrDuplicatePayment    = errors.New("payment already allocated")
	ErrEmptyPayment        = errors.New("payment has no positive category amount")
	ErrNoOutstanding       = errors.New("no outstanding obligation")
	ErrNoUnappliedCredit   = errors.New("student has no unapplied credit")
	ErrInsufficientDeposit = errors.New("forfeiture exceeds deposit held")
	ErrFutureMonth         = errors.New("cannot accrue a month that has not started")
	ErrInvalidLease        = errors.New("invalid lease")
	ErrLeaseNotFound       = errors.New("lease not found")
	ErrMissingResidence    = errors.New("lease has no residence")
	ErrMissingStudent      = errors.New("lease has no student")
)
