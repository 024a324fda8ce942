// Package client is the HTTP client the CLI and TUI use to reach the
// rentledger server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/accrual"
	"github.com/simonvc/rentledger/internal/allocation"
	"github.com/simonvc/rentledger/internal/audit"
	"github.com/simonvc/rentledger/internal/ledger"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(ledger.DateLayout)
}

// Accruals

func (c *Client) CreateAccruals(ctx context.Context, month time.Month, year int) (*accrual.Run, error) {
	var result accrual.Run
	body := map[string]any{"month": int(month), "year": year}
	if err := c.post(ctx, "/api/v1/accruals", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ReverseAccrual(ctx context.Context, studentID string, month ledger.MonthKey, reason string) (*ledger.Entry, error) {
	var result ledger.Entry
	body := map[string]any{"student_id": studentID, "month": string(month), "reason": reason}
	if err := c.post(ctx, "/api/v1/accruals/reversals", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Students

type Payment struct {
	PaymentID string          `json:"payment_id,omitempty"`
	Rent      decimal.Decimal `json:"rent"`
	Admin     decimal.Decimal `json:"admin"`
	Deposit   decimal.Decimal `json:"deposit"`
	Date      string          `json:"date,omitempty"`
	Reference string          `json:"reference,omitempty"`
}

func (c *Client) AllocatePayment(ctx context.Context, studentID string, p Payment) (*allocation.Result, error) {
	var result allocation.Result
	if err := c.post(ctx, studentPath(studentID, "payments"), p, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ApplyCredit(ctx context.Context, studentID string, on time.Time) (*allocation.Result, error) {
	var result allocation.Result
	if err := c.post(ctx, studentPath(studentID, "credit/apply"), map[string]string{"date": date(on)}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ForfeitDeposit(ctx context.Context, studentID string, amount decimal.Decimal, on time.Time, reason string) (*ledger.Entry, error) {
	var result ledger.Entry
	body := map[string]any{"amount": amount, "date": date(on), "reason": reason}
	if err := c.post(ctx, studentPath(studentID, "deposit/forfeit"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type Outstanding struct {
	StudentID        string           `json:"student_id"`
	Months           []ledger.Balance `json:"months"`
	TotalOutstanding decimal.Decimal  `json:"total_outstanding"`
}

func (c *Client) Outstanding(ctx context.Context, studentID string) (*Outstanding, error) {
	var result Outstanding
	if err := c.get(ctx, studentPath(studentID, "outstanding"), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func studentPath(studentID, rest string) string {
	return "/api/v1/students/" + url.PathEscape(studentID) + "/" + rest
}

// Entries

type EntryLine struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
	Category    ledger.Category `json:"category,omitempty"`
}

type ManualEntry struct {
	Date        string      `json:"date,omitempty"`
	Description string      `json:"description"`
	Reference   string      `json:"reference,omitempty"`
	StudentID   string      `json:"student_id,omitempty"`
	VendorID    string      `json:"vendor_id,omitempty"`
	Author      string      `json:"author,omitempty"`
	Draft       bool        `json:"draft,omitempty"`
	Lines       []EntryLine `json:"lines"`
}

func (c *Client) CreateEntry(ctx context.Context, e ManualEntry) (*ledger.Entry, error) {
	var result ledger.Entry
	if err := c.post(ctx, "/api/v1/entries", e, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VendorBill records an expense owed to a vendor.
type VendorBill struct {
	Date           string          `json:"date,omitempty"`
	Description    string          `json:"description"`
	ExpenseAccount string          `json:"expense_account"`
	Amount         decimal.Decimal `json:"amount"`
}

func (c *Client) CreateVendorBill(ctx context.Context, vendorID string, b VendorBill) (*ledger.Entry, error) {
	var result ledger.Entry
	if err := c.post(ctx, "/api/v1/vendors/"+url.PathEscape(vendorID)+"/bills", b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListEntries(ctx context.Context, f ledger.EntryFilter) ([]ledger.Entry, error) {
	params := url.Values{}
	if !f.From.IsZero() {
		params.Set("from", date(f.From))
	}
	if !f.To.IsZero() {
		params.Set("to", date(f.To))
	}
	if f.AccountPrefix != "" {
		params.Set("account", f.AccountPrefix)
	}
	if f.StudentID != "" {
		params.Set("student_id", f.StudentID)
	}
	if f.Status != "" {
		params.Set("status", string(f.Status))
	}
	if len(f.Sources) > 0 {
		parts := make([]string, len(f.Sources))
		for i, s := range f.Sources {
			parts[i] = string(s)
		}
		params.Set("source", strings.Join(parts, ","))
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		params.Set("offset", strconv.Itoa(f.Offset))
	}
	var result []ledger.Entry
	if err := c.get(ctx, "/api/v1/entries?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetEntry(ctx context.Context, id string) (*ledger.Entry, error) {
	var result ledger.Entry
	if err := c.get(ctx, "/api/v1/entries/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Accounts

func (c *Client) CreateAccount(ctx context.Context, acct *ledger.Account) (*ledger.Account, error) {
	body := map[string]any{
		"code": acct.Code,
		"name": acct.Name,
		"type": acct.Type,
	}
	var result ledger.Account
	if err := c.post(ctx, "/api/v1/accounts", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListAccounts(ctx context.Context, accountType string, activeOnly bool) ([]ledger.Account, error) {
	params := url.Values{}
	if accountType != "" {
		params.Set("type", accountType)
	}
	if activeOnly {
		params.Set("active", "true")
	}
	var result []ledger.Account
	if err := c.get(ctx, "/api/v1/accounts?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetAccount(ctx context.Context, code string) (*ledger.Account, error) {
	var result ledger.Account
	if err := c.get(ctx, "/api/v1/accounts/"+url.PathEscape(code), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeactivateAccount(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/accounts/"+url.PathEscape(code), nil, nil)
}

// Leases

type Lease struct {
	ID              string          `json:"id,omitempty"`
	StudentID       string          `json:"student_id"`
	ResidenceID     string          `json:"residence_id"`
	RoomID          string          `json:"room_id,omitempty"`
	Start           string          `json:"start"`
	End             string          `json:"end,omitempty"`
	MonthlyRent     decimal.Decimal `json:"monthly_rent"`
	MonthlyAdminFee decimal.Decimal `json:"monthly_admin_fee"`
	Deposit         decimal.Decimal `json:"deposit"`
}

func (c *Client) CreateLease(ctx context.Context, l Lease) (*ledger.Lease, error) {
	var result ledger.Lease
	if err := c.post(ctx, "/api/v1/leases", l, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListLeases(ctx context.Context, studentID string) ([]ledger.Lease, error) {
	params := url.Values{}
	if studentID != "" {
		params.Set("student_id", studentID)
	}
	var result []ledger.Lease
	if err := c.get(ctx, "/api/v1/leases?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetLease(ctx context.Context, id string) (*ledger.Lease, error) {
	var result ledger.Lease
	if err := c.get(ctx, "/api/v1/leases/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reports

func (c *Client) IncomeStatement(ctx context.Context, from, to time.Time, basis ledger.Basis) (*ledger.IncomeStatement, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("from", date(from))
	}
	if !to.IsZero() {
		params.Set("to", date(to))
	}
	if basis != "" {
		params.Set("basis", string(basis))
	}
	var result ledger.IncomeStatement
	if err := c.get(ctx, "/api/v1/reports/income-statement?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) BalanceSheet(ctx context.Context, asOf time.Time) (*ledger.BalanceSheet, error) {
	var result ledger.BalanceSheet
	if err := c.get(ctx, "/api/v1/reports/balance-sheet"+asOfQuery(asOf), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) TrialBalance(ctx context.Context, asOf time.Time) (*ledger.TrialBalance, error) {
	var result ledger.TrialBalance
	if err := c.get(ctx, "/api/v1/reports/trial-balance"+asOfQuery(asOf), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) MonthlyBreakdown(ctx context.Context, year int, mode ledger.BreakdownMode, basis ledger.Basis) (*ledger.MonthlyBreakdown, error) {
	params := url.Values{}
	params.Set("year", strconv.Itoa(year))
	if mode != "" {
		params.Set("mode", string(mode))
	}
	if basis != "" {
		params.Set("basis", string(basis))
	}
	var result ledger.MonthlyBreakdown
	if err := c.get(ctx, "/api/v1/reports/monthly?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Audit(ctx context.Context, asOf time.Time) (*audit.Report, error) {
	var result audit.Report
	if err := c.get(ctx, "/api/v1/reports/audit"+asOfQuery(asOf), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func asOfQuery(asOf time.Time) string {
	if asOf.IsZero() {
		return ""
	}
	return "?as_of=" + date(asOf)
}

// Ping checks if the server is reachable and its database answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doRequest(req, result)
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) doRequest(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: string(bodyBytes)}
	}

	if result != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
