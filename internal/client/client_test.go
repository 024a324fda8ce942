package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/server"
	"github.com/simonvc/rentledger/internal/store"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setupClient(t *testing.T) *Client {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := func() time.Time { return time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(server.New(st, "", server.WithClock(clock)).Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func TestClientRoundTrip(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	lease, err := c.CreateLease(ctx, Lease{
		StudentID: "s1", ResidenceID: "res-1", Start: "2025-06-16",
		MonthlyRent: amt("300"), MonthlyAdminFee: amt("20"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, lease.ID)

	run, err := c.CreateAccruals(ctx, time.June, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Created)

	again, err := c.CreateAccruals(ctx, time.June, 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 1, again.Skipped)

	out, err := c.Outstanding(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, out.Months, 1)
	assert.True(t, out.Months[0].RentOwed.Equal(amt("150")), "prorated rent %s", out.Months[0].RentOwed)

	res, err := c.AllocatePayment(ctx, "s1", Payment{Rent: amt("200"), Admin: amt("20"), Date: "2025-06-20"})
	require.NoError(t, err)
	assert.True(t, res.Unallocated.Equal(amt("50")))
	assert.NotEmpty(t, res.UnappliedEntryID)

	entry, err := c.GetEntry(ctx, res.Settlements[0].EntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.SourcePayment, entry.Source)
	md, ok := entry.Metadata.(ledger.PaymentAllocationMetadata)
	require.True(t, ok)
	assert.Equal(t, ledger.MonthKey("2025-06"), md.MonthSettled)

	_, err = c.ApplyCredit(ctx, "s1", time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)

	is, err := c.IncomeStatement(ctx, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), ledger.BasisAccrual)
	require.NoError(t, err)
	assert.True(t, is.NetIncome.Equal(amt("170")))

	tb, err := c.TrialBalance(ctx, time.Time{})
	require.NoError(t, err)
	assert.True(t, tb.Balanced)

	mb, err := c.MonthlyBreakdown(ctx, 2025, ledger.ModeMonthly, ledger.BasisCash)
	require.NoError(t, err)
	assert.Len(t, mb.Months, 7)

	report, err := c.Audit(ctx, time.Time{})
	require.NoError(t, err)
	assert.True(t, report.Clean)

	entries, err := c.ListEntries(ctx, ledger.EntryFilter{StudentID: "s1", Sources: []ledger.Source{ledger.SourcePayment}})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestClientManualEntriesAndAccounts(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	_, err := c.CreateAccount(ctx, &ledger.Account{Code: "5400", Name: "Insurance"})
	require.NoError(t, err)
	accounts, err := c.ListAccounts(ctx, string(ledger.AccountExpense), true)
	require.NoError(t, err)
	assert.NotEmpty(t, accounts)

	entry, err := c.CreateEntry(ctx, ManualEntry{
		Date:        "2025-06-01",
		Description: "Owner capital",
		Lines: []EntryLine{
			{AccountCode: ledger.CodeCash, Debit: amt("1000")},
			{AccountCode: ledger.CodeOwnersEquity, Credit: amt("1000")},
		},
	})
	require.NoError(t, err)
	assert.True(t, entry.TotalDebit.Equal(amt("1000")))

	bill, err := c.CreateVendorBill(ctx, "acme", VendorBill{
		Date:           "2025-06-10",
		Description:    "Boiler repair",
		ExpenseAccount: ledger.CodeMaintenanceExpense,
		Amount:         amt("120.50"),
	})
	require.NoError(t, err)
	require.Len(t, bill.Lines, 2)
	assert.Equal(t, ledger.PayableAccount("acme"), bill.Lines[1].AccountCode)

	bs, err := c.BalanceSheet(ctx, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bs.Balanced)
	assert.True(t, bs.Assets.Total.Equal(amt("1000")))
	assert.True(t, bs.Liabilities.Total.Equal(amt("120.50")))

	_, err = c.GetAccount(ctx, "5999")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
