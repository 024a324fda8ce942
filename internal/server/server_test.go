package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/store"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := func() time.Time { return time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(New(st, "", WithClock(clock)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func seedLease(t *testing.T, srv *httptest.Server) {
	t.Helper()
	status := call(t, srv, http.MethodPost, "/api/v1/leases", map[string]any{
		"id": "lease-1", "student_id": "s1", "residence_id": "res-1",
		"start": "2025-06-01", "end": "2025-12-31",
		"monthly_rent": "180", "monthly_admin_fee": "20", "deposit": "180",
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	for _, m := range []int{6, 7} {
		var run struct {
			Created int `json:"created"`
		}
		require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/api/v1/accruals", map[string]int{"month": m, "year": 2025}, &run))
		require.Equal(t, 1, run.Created)
	}
}

func TestPaymentFlow(t *testing.T) {
	srv := setupServer(t)
	seedLease(t, srv)

	var res struct {
		PaymentID   string `json:"payment_id"`
		Settlements []struct {
			Month    string `json:"month"`
			Category string `json:"category"`
			Amount   string `json:"amount"`
			EntryID  string `json:"ledger_entry_id"`
		} `json:"settlements"`
		Unallocated string `json:"unallocated"`
	}
	status := call(t, srv, http.MethodPost, "/api/v1/students/s1/payments", map[string]any{
		"payment_id": "pay-1", "rent": 180, "admin": 20, "deposit": 180, "date": "2025-06-15",
	}, &res)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, res.Settlements, 3)
	for _, s := range res.Settlements {
		assert.Equal(t, "2025-06", s.Month)
		assert.NotEmpty(t, s.EntryID)
	}
	assert.Equal(t, "0", res.Unallocated)

	var out struct {
		Months []struct {
			Month           string `json:"month_key"`
			RentOutstanding string `json:"rent_outstanding"`
		} `json:"months"`
		TotalOutstanding string `json:"total_outstanding"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/students/s1/outstanding", nil, &out))
	require.Len(t, out.Months, 2)
	assert.Equal(t, "2025-07", out.Months[1].Month)
	assert.Equal(t, "180", out.Months[1].RentOutstanding)
	assert.Equal(t, "200", out.TotalOutstanding)

	// the same payment id again is refused
	status = call(t, srv, http.MethodPost, "/api/v1/students/s1/payments", map[string]any{
		"payment_id": "pay-1", "rent": 10, "date": "2025-07-01",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)

	var bs ledger.BalanceSheet
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/reports/balance-sheet?as_of=2025-07-31", nil, &bs))
	assert.True(t, bs.Balanced)

	var report struct {
		Clean bool `json:"clean"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/reports/audit", nil, &report))
	assert.True(t, report.Clean)
}

func TestAccrualErrors(t *testing.T) {
	srv := setupServer(t)
	seedLease(t, srv)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"month out of range", "/api/v1/accruals", map[string]int{"month": 13, "year": 2025}, http.StatusBadRequest},
		{"future month", "/api/v1/accruals", map[string]int{"month": 9, "year": 2025}, http.StatusUnprocessableEntity},
		{"reversal needs a student", "/api/v1/accruals/reversals", map[string]string{"month": "2025-06"}, http.StatusBadRequest},
		{"reversal of missing accrual", "/api/v1/accruals/reversals", map[string]string{"student_id": "nobody", "month": "2025-06"}, http.StatusNotFound},
		{"reversal with a bad month", "/api/v1/accruals/reversals", map[string]string{"student_id": "s1", "month": "June"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, call(t, srv, http.MethodPost, tt.path, tt.body, nil))
		})
	}

	var entry ledger.Entry
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/api/v1/accruals/reversals",
		map[string]string{"student_id": "s1", "month": "2025-07", "reason": "left early"}, &entry))
	assert.Equal(t, ledger.SourceAccrualReversal, entry.Source)
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/api/v1/accruals/reversals",
		map[string]string{"student_id": "s1", "month": "2025-07"}, nil))
}

func TestEntriesAndAccounts(t *testing.T) {
	srv := setupServer(t)

	status := call(t, srv, http.MethodPost, "/api/v1/accounts", map[string]string{"code": "5400", "name": "Insurance"}, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/api/v1/accounts", map[string]string{"code": "5400", "name": "Again"}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, "/api/v1/accounts", map[string]string{"code": "5400-x", "name": "Party"}, nil))

	var entry ledger.Entry
	status = call(t, srv, http.MethodPost, "/api/v1/entries", map[string]any{
		"date": "2025-06-02", "description": "Annual insurance", "vendor_id": "acme",
		"lines": []map[string]any{
			{"account_code": "5400", "debit": "1200"},
			{"account_code": "2000-acme", "credit": "1200"},
		},
	}, &entry)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Insurance", entry.Lines[0].AccountName)

	var got ledger.Entry
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/entries/"+entry.ID, nil, &got))
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/api/v1/entries/missing", nil, nil))

	var list []ledger.Entry
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/v1/entries?account=2000&source=manual", nil, &list))
	assert.Len(t, list, 1)
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, "/api/v1/entries?source=bogus", nil, nil))

	status = call(t, srv, http.MethodPost, "/api/v1/entries", map[string]any{
		"description": "lopsided",
		"lines": []map[string]any{
			{"account_code": "1000", "debit": "10"},
			{"account_code": "4900", "credit": "9"},
		},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, http.StatusNoContent, call(t, srv, http.MethodDelete, "/api/v1/accounts/5400", nil, nil))
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodDelete, "/api/v1/accounts/1000", nil, nil))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := setupServer(t)
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/health", nil, nil))

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rentledger_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrap: %w", ledger.ErrDuplicatePayment), http.StatusConflict},
		{ledger.ErrEntryNotFound, http.StatusNotFound},
		{ledger.ErrUnbalancedEntry, http.StatusBadRequest},
		{ledger.ErrInsufficientDeposit, http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, mapError(tt.err), tt.err.Error())
	}
}

func TestShutdownRacingServe(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	t.Run("shutdown before serve", func(t *testing.T) {
		s := New(st, "")
		require.NoError(t, s.Shutdown(context.Background()))
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		assert.NoError(t, s.Serve(ln))
	})

	t.Run("shutdown while serve starts", func(t *testing.T) {
		s := New(st, "")
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		done := make(chan error, 1)
		go func() { done <- s.Serve(ln) }()
		require.NoError(t, s.Shutdown(context.Background()))
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("serve did not return after shutdown")
		}
	})
}

func TestCreateLeaseRejectsUnaccruableStudentID(t *testing.T) {
	srv := setupServer(t)
	var body map[string]string
	status := call(t, srv, http.MethodPost, "/api/v1/leases", map[string]any{
		"id": "lease-bad", "student_id": "s 1@uni", "residence_id": "res-1",
		"start": "2025-06-01", "monthly_rent": "180",
	}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "student id")
}
