package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Metadata is the source-specific payload of a ledger entry. Each Source has
// exactly one metadata type; Kind reports which.
type Metadata interface {
	Kind() Source
	Student() string
}

// AllocationType says what a payment slice was applied to.
type AllocationType string

const (
	AllocationRent            AllocationType = AllocationType(CategoryRent)
	AllocationAdminFee        AllocationType = AllocationType(CategoryAdminFee)
	AllocationDeposit         AllocationType = AllocationType(CategoryDeposit)
	AllocationUnappliedCredit AllocationType = "unapplied_credit"
)

type AccrualMetadata struct {
	StudentID   string   `json:"studentId"`
	LeaseID     string   `json:"leaseId"`
	ResidenceID string   `json:"residenceId"`
	Month       MonthKey `json:"month"`
	Prorated    bool     `json:"prorated,omitempty"`
}

func (AccrualMetadata) Kind() Source      { return SourceRentalAccrual }
func (m AccrualMetadata) Student() string { return m.StudentID }

type PaymentAllocationMetadata struct {
	StudentID      string         `json:"studentId"`
	PaymentID      string         `json:"paymentId"`
	MonthSettled   MonthKey       `json:"monthSettled,omitempty"`
	AllocationType AllocationType `json:"allocationType"`
}

func (PaymentAllocationMetadata) Kind() Source      { return SourcePayment }
func (m PaymentAllocationMetadata) Student() string { return m.StudentID }

type ReversalMetadata struct {
	StudentID       string   `json:"studentId"`
	Month           MonthKey `json:"month"`
	ReversedEntryID string   `json:"reversedEntryId"`
	Reason          string   `json:"reason,omitempty"`
}

func (ReversalMetadata) Kind() Source      { return SourceAccrualReversal }
func (m ReversalMetadata) Student() string { return m.StudentID }

type CreditApplicationMetadata struct {
	StudentID      string         `json:"studentId"`
	MonthSettled   MonthKey       `json:"monthSettled"`
	AllocationType AllocationType `json:"allocationType"`
}

func (CreditApplicationMetadata) Kind() Source      { return SourceCreditApplication }
func (m CreditApplicationMetadata) Student() string { return m.StudentID }

type ForfeitureMetadata struct {
	StudentID    string          `json:"studentId"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason,omitempty"`
	IsForfeiture bool            `json:"isForfeiture"`
}

func (ForfeitureMetadata) Kind() Source      { return SourceDepositForfeiture }
func (m ForfeitureMetadata) Student() string { return m.StudentID }

type ManualMetadata struct {
	StudentID string `json:"studentId,omitempty"`
	VendorID  string `json:"vendorId,omitempty"`
	Reference string `json:"reference,omitempty"`
	Author    string `json:"author,omitempty"`
}

func (ManualMetadata) Kind() Source      { return SourceManual }
func (m ManualMetadata) Student() string { return m.StudentID }

// DecodeMetadata decodes raw JSON into the metadata type owned by source.
// Empty input yields nil metadata.
func DecodeMetadata(source Source, raw []byte) (Metadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var (
		md  Metadata
		err error
	)
	switch source {
	case SourceRentalAccrual:
		var m AccrualMetadata
		err = json.Unmarshal(raw, &m)
		md = m
	case SourcePayment:
		var m PaymentAllocationMetadata
		err = json.Unmarshal(raw, &m)
		md = m
	case SourceAccrualReversal:
		var m ReversalMetadata
		err = json.Unmarshal(raw, &m)
		md = m
	case SourceCreditApplication:
		var m CreditApplicationMetadata
		err = json.Unmarshal(raw, &m)
		md = m
	case SourceDepositForfeiture:
		var m ForfeitureMetadata
		err = json.Unmarshal(raw, &m)
		md = m
	case SourceManual:
		var m ManualMetadata
		err = json.Unmarshal(raw, &m)
		md = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", source, err)
	}
	return md, nil
}
