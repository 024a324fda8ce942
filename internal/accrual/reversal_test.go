package accrual

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/rentledger/internal/ledger"
)

func TestReverseAccrual(t *testing.T) {
	g, repo := setup(t)
	ctx := context.Background()

	_, err := g.CreateMonthlyAccruals(ctx, time.July, 2025)
	require.NoError(t, err)
	accrual, err := repo.FindAccrual(ctx, "s1", "2025-07")
	require.NoError(t, err)

	reversal, err := g.ReverseAccrual(ctx, "s1", "2025-07", "lease cancelled")
	require.NoError(t, err)
	assert.Equal(t, ledger.SourceAccrualReversal, reversal.Source)
	assert.Equal(t, accrual.Date, reversal.Date, "reversal is dated to the accrual it reverses")
	assert.Equal(t, accrual.ID, reversal.SourceID)
	require.Len(t, reversal.Lines, len(accrual.Lines))
	for i := range accrual.Lines {
		assert.True(t, reversal.Lines[i].Credit.Equal(accrual.Lines[i].Debit))
		assert.True(t, reversal.Lines[i].Debit.Equal(accrual.Lines[i].Credit))
		assert.Equal(t, accrual.Lines[i].Category, reversal.Lines[i].Category)
	}

	_, err = g.ReverseAccrual(ctx, "s1", "2025-07", "again")
	assert.ErrorIs(t, err, ledger.ErrDuplicateReversal)
}

func TestReverseAccrualRefusesSettledMonth(t *testing.T) {
	g, repo := setup(t)
	ctx := context.Background()

	_, err := g.CreateMonthlyAccruals(ctx, time.June, 2025)
	require.NoError(t, err)

	require.NoError(t, repo.AppendEntries(ctx, &ledger.Entry{
		Date:        time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Description: "Payment p1",
		Source:      ledger.SourcePayment,
		Metadata: ledger.PaymentAllocationMetadata{
			StudentID: "s1", PaymentID: "p1", MonthSettled: "2025-06", AllocationType: ledger.AllocationRent,
		},
		Lines: []ledger.Line{
			{AccountCode: ledger.CodeCash, Debit: amt("50")},
			{AccountCode: "1100-s1", Credit: amt("50"), Category: ledger.CategoryRent},
		},
	}))

	_, err = g.ReverseAccrual(ctx, "s1", "2025-06", "")
	assert.ErrorIs(t, err, ledger.ErrAccrualSettled)
}

func TestReverseMissingAccrual(t *testing.T) {
	g, _ := setup(t)
	_, err := g.ReverseAccrual(context.Background(), "s1", "2025-05", "")
	assert.ErrorIs(t, err, ledger.ErrAccrualNotFound)

	_, err = g.ReverseAccrual(context.Background(), "s1", "May", "")
	assert.ErrorIs(t, err, ledger.ErrInvalidMonth)
}
