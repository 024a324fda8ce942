package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/store"
)

type createAccountRequest struct {
	Code string             `json:"code" validate:"required"`
	Name string             `json:"name" validate:"required"`
	Type ledger.AccountType `json:"type,omitempty"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}

	acct := &ledger.Account{Code: req.Code, Name: req.Name, Type: req.Type}
	if err := s.store.CreateAccount(r.Context(), acct); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	filter := store.AccountFilter{}
	if t := r.URL.Query().Get("type"); t != "" {
		filter.Type = ledger.AccountType(t)
		if !ledger.ValidAccountType(filter.Type) {
			writeError(w, http.StatusBadRequest, "unknown account type "+t)
			return
		}
	}
	if active := r.URL.Query().Get("active"); active == "true" || active == "1" {
		filter.ActiveOnly = true
	}

	accounts, err := s.store.ListAccounts(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.store.GetAccount(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeactivateAccount(r.Context(), chi.URLParam(r, "code")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getChart lists the chart with the per-party account patterns it resolves.
func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	chart, err := s.store.Chart(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": chart.Accounts(),
		"party_accounts": map[string]string{
			"student_receivable": ledger.ReceivableAccount("{studentId}"),
			"student_deposit":    ledger.DepositAccount("{studentId}"),
			"student_credit":     ledger.UnappliedCreditAccount("{studentId}"),
			"vendor_payable":     ledger.PayableAccount("{vendorId}"),
		},
	})
}
