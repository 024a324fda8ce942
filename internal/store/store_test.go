package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/rentledger/internal/ledger"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func amt(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func accrual(student string, month ledger.MonthKey, rent string) *ledger.Entry {
	return &ledger.Entry{
		Date:        month.Start(),
		Description: "Rent accrual " + string(month),
		Source:      ledger.SourceRentalAccrual,
		SourceID:    "lease-" + student,
		Metadata:    ledger.AccrualMetadata{StudentID: student, LeaseID: "lease-" + student, ResidenceID: "r1", Month: month},
		Lines: []ledger.Line{
			{AccountCode: ledger.ReceivableAccount(student), Debit: amt(rent), Category: ledger.CategoryRent},
			{AccountCode: ledger.CodeRentalIncome, Credit: amt(rent)},
		},
	}
}

func payment(student, paymentID string, month ledger.MonthKey, value string) *ledger.Entry {
	return &ledger.Entry{
		Date:        month.Start().AddDate(0, 0, 4),
		Description: "Payment " + paymentID,
		Source:      ledger.SourcePayment,
		SourceID:    paymentID,
		Metadata: ledger.PaymentAllocationMetadata{
			StudentID: student, PaymentID: paymentID, MonthSettled: month, AllocationType: ledger.AllocationRent,
		},
		Lines: []ledger.Line{
			{AccountCode: ledger.CodeCash, Debit: amt(value)},
			{AccountCode: ledger.ReceivableAccount(student), Credit: amt(value), Category: ledger.CategoryRent},
		},
	}
}

func TestOpenSeedsChart(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	accounts, err := s.ListAccounts(ctx, AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, accounts, len(ledger.PredefinedAccounts))
	assert.Equal(t, ledger.CodeCash, accounts[0].Code)
	assert.True(t, accounts[0].IsSystem)

	income, err := s.ListAccounts(ctx, AccountFilter{Type: ledger.AccountIncome})
	require.NoError(t, err)
	assert.Len(t, income, 4)
}

func TestReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendEntries(context.Background(), accrual("s1", "2025-06", "180")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.ListEntries(context.Background(), ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAppendAndGetEntry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := accrual("s1", "2025-06", "180")
	require.NoError(t, s.AppendEntries(ctx, e))
	require.NotEmpty(t, e.ID)

	got, err := s.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPosted, got.Status)
	assert.Equal(t, "s1", got.StudentID)
	assert.True(t, got.TotalDebit.Equal(amt("180")))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Accounts Receivable - Students (s1)", got.Lines[0].AccountName)
	assert.Equal(t, ledger.AccountAsset, got.Lines[0].AccountType)
	assert.Equal(t, ledger.CategoryRent, got.Lines[0].Category)

	md, ok := got.Metadata.(ledger.AccrualMetadata)
	require.True(t, ok)
	assert.Equal(t, ledger.MonthKey("2025-06"), md.Month)

	_, err = s.GetEntry(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

func TestDuplicateAccrualRefused(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEntries(ctx, accrual("s1", "2025-06", "180")))
	err := s.AppendEntries(ctx, accrual("s1", "2025-06", "180"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateAccrual)

	// other students and months are unaffected
	require.NoError(t, s.AppendEntries(ctx, accrual("s2", "2025-06", "180")))
	require.NoError(t, s.AppendEntries(ctx, accrual("s1", "2025-07", "180")))

	found, err := s.FindAccrual(ctx, "s1", "2025-06")
	require.NoError(t, err)
	assert.Equal(t, ledger.SourceRentalAccrual, found.Source)

	_, err = s.FindAccrual(ctx, "s1", "2025-08")
	assert.ErrorIs(t, err, ledger.ErrAccrualNotFound)
}

func TestAppendIsAtomic(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	good := payment("s1", "p1", "2025-06", "50")
	bad := payment("s1", "p1", "2025-07", "50")
	bad.Lines[1].Credit = amt("49")

	err := s.AppendEntries(ctx, good, bad)
	assert.ErrorIs(t, err, ledger.ErrUnbalancedEntry)

	entries, err := s.ListEntries(ctx, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	exists, err := s.PaymentExists(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDuplicatePaymentRefused(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// several slices of one payment in one call are fine
	require.NoError(t, s.AppendEntries(ctx,
		payment("s1", "p1", "2025-06", "50"),
		payment("s1", "p1", "2025-07", "25"),
	))
	exists, err := s.PaymentExists(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, exists)

	err = s.AppendEntries(ctx, payment("s1", "p1", "2025-08", "10"))
	assert.ErrorIs(t, err, ledger.ErrDuplicatePayment)
}

func TestUnknownAccountRefused(t *testing.T) {
	s := setupTestStore(t)
	e := payment("s1", "p1", "2025-06", "50")
	e.Lines[0].AccountCode = "1999"
	err := s.AppendEntries(context.Background(), e)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestListEntriesFilters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEntries(ctx,
		accrual("s1", "2025-06", "180"),
		accrual("s2", "2025-06", "200"),
		accrual("s1", "2025-07", "180"),
		payment("s1", "p1", "2025-06", "180"),
	))

	all, err := s.ListEntries(ctx, ledger.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Date.Before(all[i-1].Date), "entries are ordered by date")
	}

	byStudent, err := s.ListEntries(ctx, ledger.EntryFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Len(t, byStudent, 3)

	june, err := s.ListEntries(ctx, ledger.EntryFilter{From: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Len(t, june, 3)

	prefix, err := s.ListEntries(ctx, ledger.EntryFilter{AccountPrefix: "1100-s2"})
	require.NoError(t, err)
	assert.Len(t, prefix, 1)

	payments, err := s.ListEntries(ctx, ledger.EntryFilter{Sources: []ledger.Source{ledger.SourcePayment}})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, ledger.MonthKey("2025-06"), payments[0].ObligationMonth())

	page, err := s.ListEntries(ctx, ledger.EntryFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestPostedLinesAreImmutable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := accrual("s1", "2025-06", "180")
	require.NoError(t, s.AppendEntries(ctx, e))

	_, err := s.writer.ExecContext(ctx, `UPDATE ledger_lines SET debit_minor = 1 WHERE entry_id = ?`, e.ID)
	assert.Error(t, err)
	_, err = s.writer.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, e.ID)
	assert.Error(t, err)
}

func TestDraftEntriesAreStoredUnposted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := &ledger.Entry{
		Date:        time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		Description: "Plumber invoice",
		Source:      ledger.SourceManual,
		Status:      ledger.StatusDraft,
		Lines: []ledger.Line{
			{AccountCode: ledger.CodeMaintenanceExpense, Debit: amt("75")},
			{AccountCode: ledger.PayableAccount("v1"), Credit: amt("75")},
		},
	}
	require.NoError(t, s.AppendEntries(ctx, e))

	posted, err := s.ListEntries(ctx, ledger.EntryFilter{Status: ledger.StatusPosted})
	require.NoError(t, err)
	assert.Empty(t, posted)

	totals, err := s.AccountTotals(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, totals)
}

func TestAccountTotals(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEntries(ctx,
		accrual("s1", "2025-06", "180"),
		accrual("s1", "2025-07", "180"),
		payment("s1", "p1", "2025-06", "100"),
	))

	totals, err := s.AccountTotals(ctx, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	byCode := map[string]ledger.AccountTotal{}
	debit, credit := decimal.Zero, decimal.Zero
	for _, tt := range totals {
		byCode[tt.AccountCode] = tt
		debit = debit.Add(tt.Debit)
		credit = credit.Add(tt.Credit)
	}
	assert.True(t, debit.Equal(credit))
	assert.True(t, byCode["1100-s1"].Debit.Equal(amt("180")))
	assert.True(t, byCode["1100-s1"].Credit.Equal(amt("100")))
	assert.True(t, byCode[ledger.CodeCash].Debit.Equal(amt("100")))
}

func TestAccounts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	acct := &ledger.Account{Code: "5400", Name: "Insurance"}
	require.NoError(t, s.CreateAccount(ctx, acct))
	assert.Equal(t, ledger.AccountExpense, acct.Type)

	err := s.CreateAccount(ctx, &ledger.Account{Code: "5400", Name: "Again"})
	assert.ErrorIs(t, err, ledger.ErrDuplicateAccount)

	require.NoError(t, s.DeactivateAccount(ctx, "5400"))
	got, err := s.GetAccount(ctx, "5400")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	e := &ledger.Entry{
		Date:        time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		Description: "Insurance premium",
		Source:      ledger.SourceManual,
		Lines: []ledger.Line{
			{AccountCode: "5400", Debit: amt("20")},
			{AccountCode: ledger.CodeCash, Credit: amt("20")},
		},
	}
	assert.ErrorIs(t, s.AppendEntries(ctx, e), ledger.ErrAccountInactive)

	assert.ErrorIs(t, s.DeactivateAccount(ctx, ledger.CodeCash), ledger.ErrSystemAccount)

	chart, err := s.Chart(ctx)
	require.NoError(t, err)
	_, err = chart.Resolve("2000-acme")
	assert.NoError(t, err)
}

func TestLeases(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	l := &ledger.Lease{
		StudentID:       "s1",
		ResidenceID:     "r1",
		Start:           time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:             &end,
		MonthlyRent:     amt("180"),
		MonthlyAdminFee: amt("20"),
		Deposit:         amt("180"),
	}
	require.NoError(t, s.CreateLease(ctx, l))
	require.NoError(t, s.CreateLease(ctx, &ledger.Lease{
		StudentID: "s2", ResidenceID: "r1", Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), MonthlyRent: amt("200"),
	}))

	got, err := s.GetLease(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.MonthlyRent.Equal(amt("180")))
	require.NotNil(t, got.End)
	assert.Equal(t, end, *got.End)

	june := ledger.MonthKey("2025-06")
	active, err := s.LeasesActiveBetween(ctx, june.Start(), june.End())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s1", active[0].StudentID)

	jan := ledger.MonthKey("2026-01")
	active, err = s.LeasesActiveBetween(ctx, jan.Start(), jan.End())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s2", active[0].StudentID)

	mine, err := s.ListLeases(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = s.GetLease(ctx, "nope")
	assert.ErrorIs(t, err, ledger.ErrLeaseNotFound)

	err = s.CreateLease(ctx, &ledger.Lease{
		StudentID: "s 3", ResidenceID: "r1", Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidLease)
	mine, err = s.ListLeases(ctx, "s 3")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestOversizedAmountRefused(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.AppendEntries(ctx, accrual("s1", "2025-06", "184467440737095516.16"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	entries, err := s.ListEntries(ctx, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// the largest allowed amount survives the round trip to cents
	largest := accrual("s1", "2025-07", ledger.MaxAmount.String())
	require.NoError(t, s.AppendEntries(ctx, largest))
	got, err := s.GetEntry(ctx, largest.ID)
	require.NoError(t, err)
	assert.True(t, got.Lines[0].Debit.Equal(ledger.MaxAmount))
	assert.True(t, got.Lines[1].Credit.Equal(ledger.MaxAmount))
}
