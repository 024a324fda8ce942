package journal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/store/memory"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPostResolvesAccounts(t *testing.T) {
	repo := memory.New()
	rec := &events.Recorder{}
	j := New(repo, repo, WithPublisher(rec))

	entry, err := j.Post(context.Background(), ManualEntryRequest{
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "Owner capital",
		Author:      "ops",
		Lines: []LineRequest{
			{AccountCode: ledger.CodeCash, Debit: amt("5000")},
			{AccountCode: ledger.CodeOwnersEquity, Credit: amt("5000")},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, ledger.SourceManual, entry.Source)
	assert.Equal(t, "Cash at Bank", entry.Lines[0].AccountName)
	assert.Equal(t, ledger.AccountEquity, entry.Lines[1].AccountType)

	stored, err := repo.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalDebit.Equal(amt("5000")))

	require.Len(t, rec.Events(), 1)
	assert.Equal(t, events.ManualEntryPosted, rec.Events()[0].Type)
}

func TestVendorBill(t *testing.T) {
	repo := memory.New()
	j := New(repo, repo)

	entry, err := j.VendorBill(context.Background(), "v1", ledger.CodeMaintenanceExpense, amt("120.50"),
		time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), "Boiler repair")
	require.NoError(t, err)
	assert.Equal(t, "2000-v1", entry.Lines[1].AccountCode)
	assert.Equal(t, "Accounts Payable - Vendors (v1)", entry.Lines[1].AccountName)
	assert.Equal(t, "v1", entry.Metadata.(ledger.ManualMetadata).VendorID)

	_, err = j.VendorBill(context.Background(), "", ledger.CodeMaintenanceExpense, amt("1"), time.Now(), "x")
	assert.ErrorIs(t, err, ledger.ErrInvalidAccountCode)
}

func TestPostRejects(t *testing.T) {
	repo := memory.New()
	j := New(repo, repo)
	ctx := context.Background()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		req  ManualEntryRequest
		err  error
	}{
		{
			name: "unbalanced",
			req: ManualEntryRequest{Date: date, Description: "x", Lines: []LineRequest{
				{AccountCode: ledger.CodeCash, Debit: amt("10")},
				{AccountCode: ledger.CodeOtherIncome, Credit: amt("9")},
			}},
			err: ledger.ErrUnbalancedEntry,
		},
		{
			name: "unknown account",
			req: ManualEntryRequest{Date: date, Description: "x", Lines: []LineRequest{
				{AccountCode: "1999", Debit: amt("10")},
				{AccountCode: ledger.CodeOtherIncome, Credit: amt("10")},
			}},
			err: ledger.ErrAccountNotFound,
		},
		{
			name: "single line",
			req: ManualEntryRequest{Date: date, Description: "x", Lines: []LineRequest{
				{AccountCode: ledger.CodeCash, Debit: amt("10")},
			}},
			err: ledger.ErrInvalidLine,
		},
		{
			name: "missing description",
			req: ManualEntryRequest{Date: date, Lines: []LineRequest{
				{AccountCode: ledger.CodeCash, Debit: amt("10")},
				{AccountCode: ledger.CodeOtherIncome, Credit: amt("10")},
			}},
			err: ledger.ErrInvalidLine,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := j.Post(ctx, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	all, err := repo.ListEntries(ctx, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDraftIsStoredUnposted(t *testing.T) {
	repo := memory.New()
	rec := &events.Recorder{}
	j := New(repo, repo, WithPublisher(rec))

	entry, err := j.Post(context.Background(), ManualEntryRequest{
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "Proposed write-off",
		Draft:       true,
		Lines: []LineRequest{
			{AccountCode: "5900", Debit: amt("30")},
			{AccountCode: ledger.ReceivableAccount("s1"), Credit: amt("30")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusDraft, entry.Status)
	assert.Empty(t, rec.Events())

	posted, err := repo.ListEntries(context.Background(), ledger.EntryFilter{Status: ledger.StatusPosted})
	require.NoError(t, err)
	assert.Empty(t, posted)
}
