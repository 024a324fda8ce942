package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/rentledger/internal/ledger"
)

func rentAccrual(student string, month ledger.MonthKey) *ledger.Entry {
	return &ledger.Entry{
		Date:        month.Start(),
		Description: "accrual",
		Source:      ledger.SourceRentalAccrual,
		Metadata:    ledger.AccrualMetadata{StudentID: student, Month: month, ResidenceID: "r1"},
		Lines: []ledger.Line{
			{AccountCode: ledger.ReceivableAccount(student), Debit: decimal.NewFromInt(100), Category: ledger.CategoryRent},
			{AccountCode: ledger.CodeRentalIncome, Credit: decimal.NewFromInt(100)},
		},
	}
}

func TestAppendRefusesDuplicateAccrualAtomically(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.AppendEntries(ctx, rentAccrual("s1", "2025-06")))

	err := m.AppendEntries(ctx, rentAccrual("s2", "2025-06"), rentAccrual("s1", "2025-06"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateAccrual)

	all, err := m.ListEntries(ctx, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "the s2 accrual in the failed batch is not written")
}

func TestListEntriesReturnsCopies(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.AppendEntries(ctx, rentAccrual("s1", "2025-06")))

	all, err := m.ListEntries(ctx, ledger.EntryFilter{})
	require.NoError(t, err)
	all[0].Lines[0].Debit = decimal.NewFromInt(1)

	again, err := m.ListEntries(ctx, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.True(t, again[0].Lines[0].Debit.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Accounts Receivable - Students (s1)", again[0].Lines[0].AccountName)
}

func TestFindAccrual(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.AppendEntries(ctx, rentAccrual("s1", "2025-06")))

	e, err := m.FindAccrual(ctx, "s1", "2025-06")
	require.NoError(t, err)
	assert.Equal(t, "s1", e.StudentID)

	_, err = m.FindAccrual(ctx, "s1", "2025-07")
	assert.ErrorIs(t, err, ledger.ErrAccrualNotFound)
}

func TestCreateLeaseRejectsUnaccruableStudentID(t *testing.T) {
	m := New()
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	err := m.CreateLease(ctx, &ledger.Lease{StudentID: "s1@uni", ResidenceID: "r1", Start: start})
	assert.ErrorIs(t, err, ledger.ErrInvalidLease)
	err = m.CreateLease(ctx, &ledger.Lease{ResidenceID: "r1", Start: start})
	assert.ErrorIs(t, err, ledger.ErrMissingStudent)

	leases, err := m.LeasesActiveBetween(ctx, start, start.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, leases)
}
