package allocation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/rentledger/internal/accrual"
	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/store/memory"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

// seedRent posts a rent-only accrual for each month.
func seedRent(t *testing.T, repo ledger.Repository, student string, rent string, months ...ledger.MonthKey) {
	t.Helper()
	for _, m := range months {
		require.NoError(t, repo.AppendEntries(context.Background(), &ledger.Entry{
			Date:        m.Start(),
			Description: "Rental accrual " + string(m),
			Source:      ledger.SourceRentalAccrual,
			Metadata:    ledger.AccrualMetadata{StudentID: student, ResidenceID: "r1", Month: m},
			Lines: []ledger.Line{
				{AccountCode: ledger.ReceivableAccount(student), Debit: amt(rent), Category: ledger.CategoryRent},
				{AccountCode: ledger.CodeRentalIncome, Credit: amt(rent)},
			},
		}))
	}
}

func outstanding(t *testing.T, e *Engine, student string) map[ledger.MonthKey]ledger.Balance {
	t.Helper()
	balances, err := e.Outstanding(context.Background(), student)
	require.NoError(t, err)
	out := map[ledger.MonthKey]ledger.Balance{}
	for _, b := range balances {
		out[b.Month] = b
	}
	return out
}

func TestAllocateFIFO(t *testing.T) {
	repo := memory.New()
	seedRent(t, repo, "s1", "50", "2025-05", "2025-06", "2025-07")
	e := New(repo)

	res, err := e.Allocate(context.Background(), Request{StudentID: "s1", PaymentID: "p1", Rent: amt("75"), Date: day(2025, 7, 2)})
	require.NoError(t, err)

	require.Len(t, res.Settlements, 2)
	assert.Equal(t, ledger.MonthKey("2025-05"), res.Settlements[0].Month)
	assert.True(t, res.Settlements[0].Amount.Equal(amt("50")))
	assert.Equal(t, ledger.MonthKey("2025-06"), res.Settlements[1].Month)
	assert.True(t, res.Settlements[1].Amount.Equal(amt("25")))
	assert.True(t, res.Unallocated.IsZero())
	assert.Empty(t, res.UnappliedEntryID)

	bal := outstanding(t, e, "s1")
	assert.True(t, bal["2025-05"].RentOutstanding.IsZero())
	assert.True(t, bal["2025-06"].RentOutstanding.Equal(amt("25")))
	assert.True(t, bal["2025-07"].RentOutstanding.Equal(amt("50")), "July is untouched")

	entry, err := repo.GetEntry(context.Background(), res.Settlements[1].EntryID)
	require.NoError(t, err)
	md := entry.Metadata.(ledger.PaymentAllocationMetadata)
	assert.Equal(t, ledger.MonthKey("2025-06"), md.MonthSettled)
	assert.Equal(t, ledger.AllocationRent, md.AllocationType)
	assert.True(t, entry.TotalDebit.Equal(entry.TotalCredit))
	assert.Equal(t, ledger.CodeCash, entry.Lines[0].AccountCode)
	assert.Equal(t, "1100-s1", entry.Lines[1].AccountCode)
}

func TestScenarioJuneJuly(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	end := day(2025, 12, 31)
	require.NoError(t, repo.CreateLease(ctx, &ledger.Lease{
		ID: "lease-1", StudentID: "s1", ResidenceID: "res-1",
		Start: day(2025, 6, 1), End: &end,
		MonthlyRent: amt("180"), MonthlyAdminFee: amt("20"), Deposit: amt("180"),
	}))
	gen := accrual.New(repo, repo, accrual.WithClock(func() time.Time { return day(2025, 7, 20) }))
	_, err := gen.CreateMonthlyAccruals(ctx, time.June, 2025)
	require.NoError(t, err)
	_, err = gen.CreateMonthlyAccruals(ctx, time.July, 2025)
	require.NoError(t, err)

	e := New(repo)
	balances, err := e.Outstanding(ctx, "s1")
	require.NoError(t, err)
	rent, admin, deposit := decimal.Zero, decimal.Zero, decimal.Zero
	for _, b := range balances {
		rent = rent.Add(b.RentOutstanding)
		admin = admin.Add(b.AdminOutstanding)
		deposit = deposit.Add(b.DepositOutstanding)
	}
	assert.True(t, rent.Equal(amt("360")), "rent outstanding %s", rent)
	assert.True(t, admin.Equal(amt("40")))
	assert.True(t, deposit.Equal(amt("180")))

	res, err := e.Allocate(ctx, Request{StudentID: "s1", Rent: amt("180"), AdminFee: amt("20"), Deposit: amt("180"), Date: day(2025, 6, 15)})
	require.NoError(t, err)
	require.Len(t, res.Settlements, 3)
	for _, s := range res.Settlements {
		assert.Equal(t, ledger.MonthKey("2025-06"), s.Month)
	}

	bal := outstanding(t, e, "s1")
	june, july := bal["2025-06"], bal["2025-07"]
	assert.True(t, june.RentOutstanding.IsZero())
	assert.True(t, june.AdminOutstanding.IsZero())
	assert.True(t, june.DepositOutstanding.IsZero())
	assert.True(t, july.RentOutstanding.Equal(amt("180")))
	assert.True(t, july.AdminOutstanding.Equal(amt("20")))
	assert.True(t, july.DepositOwed.IsZero())
}

func TestExcessBecomesUnappliedCredit(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	seedRent(t, repo, "s1", "50", "2025-05")
	rec := &events.Recorder{}
	e := New(repo, WithPublisher(rec))

	res, err := e.Allocate(ctx, Request{StudentID: "s1", PaymentID: "p1", Rent: amt("200"), Date: day(2025, 5, 3)})
	require.NoError(t, err)
	require.Len(t, res.Settlements, 1)
	assert.True(t, res.Unallocated.Equal(amt("150")))
	require.NotEmpty(t, res.UnappliedEntryID)

	credit, err := repo.GetEntry(ctx, res.UnappliedEntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.UnappliedCreditAccount("s1"), credit.Lines[1].AccountCode)
	assert.True(t, credit.Lines[1].Credit.Equal(amt("150")))
	md := credit.Metadata.(ledger.PaymentAllocationMetadata)
	assert.Equal(t, ledger.AllocationUnappliedCredit, md.AllocationType)
	assert.Empty(t, md.MonthSettled)

	require.Len(t, rec.Events(), 1)
	assert.Len(t, rec.Events()[0].EntryIDs, 2)

	// Next month's rent is paid from the credit.
	seedRent(t, repo, "s1", "50", "2025-06")
	applied, err := e.ApplyUnappliedCredit(ctx, "s1", day(2025, 6, 1))
	require.NoError(t, err)
	require.Len(t, applied.Settlements, 1)
	assert.Equal(t, ledger.MonthKey("2025-06"), applied.Settlements[0].Month)
	assert.True(t, applied.Unallocated.Equal(amt("100")))

	bal := outstanding(t, e, "s1")
	assert.True(t, bal["2025-06"].RentOutstanding.IsZero())

	_, err = e.ApplyUnappliedCredit(ctx, "s1", day(2025, 6, 2))
	assert.ErrorIs(t, err, ledger.ErrNoOutstanding)
}

func TestPaymentWithNoObligations(t *testing.T) {
	repo := memory.New()
	e := New(repo)

	res, err := e.Allocate(context.Background(), Request{StudentID: "s1", AdminFee: amt("20"), Date: day(2025, 6, 1)})
	require.NoError(t, err)
	assert.Empty(t, res.Settlements)
	assert.True(t, res.Unallocated.Equal(amt("20")))

	all, err := repo.ListEntries(context.Background(), ledger.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	for _, l := range all[0].Lines {
		assert.NotEqual(t, "1100-s1", l.AccountCode, "no orphan receivable credit")
	}

	_, err = e.ApplyUnappliedCredit(context.Background(), "s2", day(2025, 6, 1))
	assert.ErrorIs(t, err, ledger.ErrNoUnappliedCredit)
}

func TestAllocateRejectsBadRequests(t *testing.T) {
	repo := memory.New()
	seedRent(t, repo, "s1", "50", "2025-05")
	e := New(repo)
	ctx := context.Background()

	_, err := e.Allocate(ctx, Request{StudentID: "s1"})
	assert.ErrorIs(t, err, ledger.ErrEmptyPayment)

	_, err = e.Allocate(ctx, Request{StudentID: "s1", Rent: amt("-5"), AdminFee: amt("10")})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = e.Allocate(ctx, Request{Rent: amt("5")})
	assert.ErrorIs(t, err, ledger.ErrMissingStudent)

	_, err = e.Allocate(ctx, Request{StudentID: "s1", PaymentID: "p1", Rent: amt("10"), Date: day(2025, 5, 2)})
	require.NoError(t, err)
	_, err = e.Allocate(ctx, Request{StudentID: "s1", PaymentID: "p1", Rent: amt("10"), Date: day(2025, 5, 2)})
	assert.ErrorIs(t, err, ledger.ErrDuplicatePayment)
}

func TestAllocateAbortsAtomically(t *testing.T) {
	repo := memory.New()
	seedRent(t, repo, "s1", "50", "2025-05", "2025-06")
	e := New(repo, WithCashAccount("1999")) // not in the chart

	_, err := e.Allocate(context.Background(), Request{StudentID: "s1", Rent: amt("100"), Date: day(2025, 6, 2)})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	payments, err := repo.ListEntries(context.Background(), ledger.EntryFilter{Sources: []ledger.Source{ledger.SourcePayment}})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestSettlementNeverGoesNegative(t *testing.T) {
	repo := memory.New()
	seedRent(t, repo, "s1", "33.33", "2025-01", "2025-02", "2025-03", "2025-04")
	e := New(repo)
	ctx := context.Background()

	for i, pay := range []string{"10", "0.01", "40", "33.32", "70", "5"} {
		_, err := e.Allocate(ctx, Request{StudentID: "s1", PaymentID: fmt.Sprintf("p%d", i), Rent: amt(pay), Date: day(2025, 4, 10)})
		require.NoError(t, err)
		for _, b := range outstanding(t, e, "s1") {
			assert.False(t, b.RentOutstanding.IsNegative(), "month %s went negative", b.Month)
		}
	}
}

func TestConcurrentPaymentsDoNotDoubleSettle(t *testing.T) {
	repo := memory.New()
	seedRent(t, repo, "s1", "50", "2025-05", "2025-06", "2025-07")
	e := New(repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Allocate(ctx, Request{StudentID: "s1", PaymentID: fmt.Sprintf("p%d", i), Rent: amt("50"), Date: day(2025, 7, 1)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, b := range outstanding(t, e, "s1") {
		assert.True(t, b.RentPaid.Equal(amt("50")), "month %s paid %s", b.Month, b.RentPaid)
	}
	entries, err := repo.ListEntries(ctx, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.True(t, accountBalance(entries, ledger.UnappliedCreditAccount("s1")).Equal(amt("350")))
}

func TestForfeitDeposit(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	require.NoError(t, repo.AppendEntries(ctx, &ledger.Entry{
		Date:        day(2025, 6, 1),
		Description: "Rental accrual 2025-06",
		Source:      ledger.SourceRentalAccrual,
		Metadata:    ledger.AccrualMetadata{StudentID: "s1", ResidenceID: "r1", Month: "2025-06"},
		Lines: []ledger.Line{
			{AccountCode: "1100-s1", Debit: amt("180"), Category: ledger.CategoryDeposit},
			{AccountCode: ledger.DepositAccount("s1"), Credit: amt("180")},
		},
	}))
	e := New(repo)

	_, err := e.ForfeitDeposit(ctx, ForfeitureRequest{StudentID: "s1", Amount: amt("50"), Date: day(2025, 6, 2)})
	assert.ErrorIs(t, err, ledger.ErrInsufficientDeposit, "nothing paid yet")

	_, err = e.Allocate(ctx, Request{StudentID: "s1", Deposit: amt("180"), Date: day(2025, 6, 3)})
	require.NoError(t, err)

	entry, err := e.ForfeitDeposit(ctx, ForfeitureRequest{StudentID: "s1", Amount: amt("100"), Date: day(2025, 12, 31), Reason: "damage"})
	require.NoError(t, err)
	md := entry.Metadata.(ledger.ForfeitureMetadata)
	assert.True(t, md.IsForfeiture)
	assert.Equal(t, ledger.CodeForfeitedDeposits, entry.Lines[1].AccountCode)

	_, err = e.ForfeitDeposit(ctx, ForfeitureRequest{StudentID: "s1", Amount: amt("80.01"), Date: day(2025, 12, 31)})
	assert.ErrorIs(t, err, ledger.ErrInsufficientDeposit)

	entries, err := repo.ListEntries(ctx, ledger.EntryFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.True(t, HeldDeposit(entries, "s1").Equal(amt("80")))
}

func TestAllocateRejectsAmountBeyondStorableRange(t *testing.T) {
	repo := memory.New()
	seedRent(t, repo, "s1", "50", "2025-05")
	e := New(repo)
	ctx := context.Background()

	_, err := e.Allocate(ctx, Request{StudentID: "s1", Rent: amt("184467440737095516.16"), Date: day(2025, 5, 2)})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	payments, err := repo.ListEntries(ctx, ledger.EntryFilter{Sources: []ledger.Source{ledger.SourcePayment}})
	require.NoError(t, err)
	assert.Empty(t, payments)
}
