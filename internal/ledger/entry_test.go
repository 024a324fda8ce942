package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func paymentEntry(debit, credit string) *Entry {
	return &Entry{
		Description: "rent payment",
		Date:        time.Date(2025, 6, 15, 13, 30, 0, 0, time.UTC),
		Source:      SourcePayment,
		Metadata: PaymentAllocationMetadata{
			StudentID:      "s1",
			PaymentID:      "p1",
			MonthSettled:   "2025-06",
			AllocationType: AllocationRent,
		},
		Lines: []Line{
			{AccountCode: CodeCash, Debit: d(debit)},
			{AccountCode: ReceivableAccount("s1"), Credit: d(credit), Category: CategoryRent},
		},
	}
}

func TestEntryValidate(t *testing.T) {
	t.Run("balanced entry fills totals", func(t *testing.T) {
		e := paymentEntry("180.00", "180")
		require.NoError(t, e.Validate())
		assert.True(t, e.TotalDebit.Equal(d("180")))
		assert.True(t, e.TotalCredit.Equal(d("180")))
		assert.Equal(t, StatusPosted, e.Status)
		assert.Equal(t, "s1", e.StudentID)
		assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), e.Date)
	})

	t.Run("unbalanced entry is rejected", func(t *testing.T) {
		e := paymentEntry("180.00", "179.98")
		assert.ErrorIs(t, e.Validate(), ErrUnbalancedEntry)
	})

	t.Run("sub-cent noise rounds away", func(t *testing.T) {
		e := paymentEntry("100.004", "100")
		assert.NoError(t, e.Validate())
	})

	t.Run("line with both sides", func(t *testing.T) {
		e := paymentEntry("10", "10")
		e.Lines[0].Credit = d("5")
		assert.ErrorIs(t, e.Validate(), ErrInvalidLine)
	})

	t.Run("line with neither side", func(t *testing.T) {
		e := paymentEntry("10", "10")
		e.Lines = append(e.Lines, Line{AccountCode: CodeCash})
		assert.ErrorIs(t, e.Validate(), ErrInvalidLine)
	})

	t.Run("negative amount", func(t *testing.T) {
		e := paymentEntry("10", "10")
		e.Lines[0].Debit = d("-10")
		assert.ErrorIs(t, e.Validate(), ErrInvalidLine)
	})

	t.Run("too few lines", func(t *testing.T) {
		e := paymentEntry("10", "10")
		e.Lines = e.Lines[:1]
		assert.ErrorIs(t, e.Validate(), ErrTooFewLines)
	})

	t.Run("metadata kind must match source", func(t *testing.T) {
		e := paymentEntry("10", "10")
		e.Source = SourceRentalAccrual
		assert.ErrorIs(t, e.Validate(), ErrMetadataMismatch)
	})

	t.Run("non-manual entries need metadata", func(t *testing.T) {
		e := paymentEntry("10", "10")
		e.Metadata = nil
		assert.ErrorIs(t, e.Validate(), ErrMetadataMismatch)
	})

	t.Run("amount beyond storable range", func(t *testing.T) {
		e := paymentEntry("184467440737095516.16", "184467440737095516.16")
		assert.ErrorIs(t, e.Validate(), ErrInvalidAmount)
	})

	t.Run("unknown source", func(t *testing.T) {
		e := paymentEntry("10", "10")
		e.Source = "fix_script"
		assert.ErrorIs(t, e.Validate(), ErrInvalidSource)
	})
}

func TestEntryJSONKeepsMetadataType(t *testing.T) {
	e := paymentEntry("180", "180")
	e.ID = "e1"
	require.NoError(t, e.Validate())

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"monthSettled":"2025-06"`)
	assert.Contains(t, string(raw), `"date":"2025-06-15"`)

	var back Entry
	require.NoError(t, json.Unmarshal(raw, &back))
	md, ok := back.Metadata.(PaymentAllocationMetadata)
	require.True(t, ok, "metadata decoded as %T", back.Metadata)
	assert.Equal(t, MonthKey("2025-06"), md.MonthSettled)
	assert.Equal(t, MonthKey("2025-06"), back.ObligationMonth())
	assert.Equal(t, CategoryRent, back.Lines[1].Category)
}

func TestChartResolve(t *testing.T) {
	c := DefaultChart()

	acct, err := c.Resolve("1100-stu-42")
	require.NoError(t, err)
	assert.Equal(t, AccountAsset, acct.Type)
	assert.Equal(t, "1100-stu-42", acct.Code)
	assert.Equal(t, "Accounts Receivable - Students (stu-42)", acct.Name)

	_, err = c.Resolve("1999")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = c.Resolve("abc")
	assert.ErrorIs(t, err, ErrInvalidAccountCode)

	inactive := NewChart(append(PredefinedAccounts, Account{Code: "5400", Name: "Insurance", Type: AccountExpense}))
	_, err = inactive.Resolve("5400")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestAccountValidate(t *testing.T) {
	a := Account{Code: "5400", Name: "Insurance"}
	require.NoError(t, a.Validate())
	assert.Equal(t, AccountExpense, a.Type)

	bad := Account{Code: "5400", Name: "Insurance", Type: AccountIncome}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAccountCode)

	party := Account{Code: "1100-s1", Name: "x"}
	assert.ErrorIs(t, party.Validate(), ErrInvalidAccountCode)
}

func TestMonthKey(t *testing.T) {
	m, err := ParseMonthKey("2024-02")
	require.NoError(t, err)
	assert.Equal(t, 29, m.Days())
	assert.Equal(t, MonthKey("2024-03"), m.Next())
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), m.End())
	assert.Equal(t, MonthKey("2025-01"), MonthKey("2024-12").Next())

	_, err = ParseMonthKey("2024-13")
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestLeaseActiveDuring(t *testing.T) {
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	l := Lease{StudentID: "s1", ResidenceID: "r1", Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), End: &end}

	june := MonthKey("2025-06")
	assert.True(t, l.ActiveDuring(june.Start(), june.End()))
	may := MonthKey("2025-05")
	assert.False(t, l.ActiveDuring(may.Start(), may.End()))
	jan := MonthKey("2026-01")
	assert.False(t, l.ActiveDuring(jan.Start(), jan.End()))

	l.ResidenceID = ""
	assert.ErrorIs(t, l.Validate(), ErrMissingResidence)
}

func TestLeaseStudentIDMustNameAccounts(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"s1", "stu-2025.01", "uni:s_7"} {
		l := Lease{StudentID: id, ResidenceID: "r1", Start: start}
		assert.NoError(t, l.Validate(), id)
		_, err := DefaultChart().Resolve(ReceivableAccount(id))
		assert.NoError(t, err, id)
	}
	for _, id := range []string{"s 1", "s1@uni", "-s1", "s1-", "s1/2"} {
		l := Lease{StudentID: id, ResidenceID: "r1", Start: start}
		assert.ErrorIs(t, l.Validate(), ErrInvalidLease, id)
	}
	assert.ErrorIs(t, CheckStudentID("  "), ErrMissingStudent)
}

func TestRoundHalfToEven(t *testing.T) {
	assert.Equal(t, "0.12", FormatAmount(d("0.125")))
	assert.Equal(t, "0.14", FormatAmount(d("0.135")))
	assert.Equal(t, "-0.12", FormatAmount(d("-0.125")))
	assert.NoError(t, CheckAmount(MaxAmount))
	assert.ErrorIs(t, CheckAmount(MaxAmount.Add(d("0.01"))), ErrInvalidAmount)
}
