package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/simonvc/rentledger/internal/ledger"
)

func (s *Server) incomeStatement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := ledger.Truncate(s.now())
	from, err := parseDate(q.Get("from"), time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		s.fail(w, err)
		return
	}
	to, err := parseDate(q.Get("to"), today)
	if err != nil {
		s.fail(w, err)
		return
	}
	basis, err := ledger.ParseBasis(q.Get("basis"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	is, err := s.statements.IncomeStatement(r.Context(), from, to, basis)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, is)
}

func (s *Server) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"), ledger.Truncate(s.now()))
	if err != nil {
		s.fail(w, err)
		return
	}
	bs, err := s.statements.BalanceSheet(r.Context(), asOf)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"), ledger.Truncate(s.now()))
	if err != nil {
		s.fail(w, err)
		return
	}
	tb, err := s.statements.TrialBalance(r.Context(), asOf)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}

func (s *Server) monthlyBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year := s.now().Year()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year "+v)
			return
		}
		year = n
	}
	mode, err := ledger.ParseBreakdownMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	basis, err := ledger.ParseBasis(q.Get("basis"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mb, err := s.statements.MonthlyBreakdown(r.Context(), year, mode, basis)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mb)
}

func (s *Server) auditReport(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"), time.Time{})
	if err != nil {
		s.fail(w, err)
		return
	}
	report, err := s.auditor.Run(r.Context(), asOf)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
