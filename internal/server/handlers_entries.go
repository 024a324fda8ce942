package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/journal"
	"github.com/simonvc/rentledger/internal/ledger"
)

type createEntryRequest struct {
	Date        string `json:"date,omitempty"`
	Description string `json:"description" validate:"required"`
	Reference   string `json:"reference,omitempty"`
	StudentID   string `json:"student_id,omitempty"`
	VendorID    string `json:"vendor_id,omitempty"`
	Author      string `json:"author,omitempty"`
	Draft       bool   `json:"draft,omitempty"`
	Lines       []struct {
		AccountCode string          `json:"account_code" validate:"required"`
		Debit       decimal.Decimal `json:"debit"`
		Credit      decimal.Decimal `json:"credit"`
		Description string          `json:"description,omitempty"`
		Category    ledger.Category `json:"category,omitempty"`
	} `json:"lines" validate:"min=2,dive"`
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	date, err := parseDate(req.Date, s.now())
	if err != nil {
		s.fail(w, err)
		return
	}

	mreq := journal.ManualEntryRequest{
		Date:        date,
		Description: req.Description,
		Reference:   req.Reference,
		StudentID:   req.StudentID,
		VendorID:    req.VendorID,
		Author:      req.Author,
		Draft:       req.Draft,
	}
	for _, l := range req.Lines {
		mreq.Lines = append(mreq.Lines, journal.LineRequest{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
			Category:    l.Category,
		})
	}

	entry, err := s.journal.Post(r.Context(), mreq)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.EntryFilter{
		AccountPrefix: q.Get("account"),
		StudentID:     q.Get("student_id"),
		Status:        ledger.Status(q.Get("status")),
		Limit:         100,
	}
	var err error
	if filter.From, err = parseDate(q.Get("from"), filter.From); err != nil {
		s.fail(w, err)
		return
	}
	if filter.To, err = parseDate(q.Get("to"), filter.To); err != nil {
		s.fail(w, err)
		return
	}
	if src := q.Get("source"); src != "" {
		for _, part := range strings.Split(src, ",") {
			source := ledger.Source(strings.TrimSpace(part))
			if !ledger.ValidSource(source) {
				writeError(w, http.StatusBadRequest, "unknown source "+string(source))
				return
			}
			filter.Sources = append(filter.Sources, source)
		}
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid "+name+" "+v)
				return
			}
			*dst = n
		}
	}

	entries, err := s.store.ListEntries(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type vendorBillRequest struct {
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description" validate:"required"`
	Account     string          `json:"expense_account" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

func (s *Server) createVendorBill(w http.ResponseWriter, r *http.Request) {
	var req vendorBillRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	date, err := parseDate(req.Date, s.now())
	if err != nil {
		s.fail(w, err)
		return
	}

	entry, err := s.journal.VendorBill(r.Context(), chi.URLParam(r, "id"), req.Account, req.Amount, date, req.Description)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
