package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/allocation"
	"github.com/simonvc/rentledger/internal/ledger"
)

type paymentRequest struct {
	PaymentID string          `json:"payment_id,omitempty"`
	Rent      decimal.Decimal `json:"rent"`
	Admin     decimal.Decimal `json:"admin"`
	Deposit   decimal.Decimal `json:"deposit"`
	Date      string          `json:"date,omitempty"`
	Reference string          `json:"reference,omitempty"`
}

func (s *Server) allocatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	date, err := parseDate(req.Date, s.now())
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.allocator.Allocate(r.Context(), allocation.Request{
		StudentID: chi.URLParam(r, "id"),
		PaymentID: req.PaymentID,
		Rent:      req.Rent,
		AdminFee:  req.Admin,
		Deposit:   req.Deposit,
		Date:      date,
		Reference: req.Reference,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type applyCreditRequest struct {
	Date string `json:"date,omitempty"`
}

func (s *Server) applyCredit(w http.ResponseWriter, r *http.Request) {
	var req applyCreditRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			s.fail(w, err)
			return
		}
	}
	date, err := parseDate(req.Date, s.now())
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.allocator.ApplyUnappliedCredit(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type forfeitRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date,omitempty"`
	Reason string          `json:"reason" validate:"required"`
}

func (s *Server) forfeitDeposit(w http.ResponseWriter, r *http.Request) {
	var req forfeitRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	date, err := parseDate(req.Date, s.now())
	if err != nil {
		s.fail(w, err)
		return
	}
	entry, err := s.allocator.ForfeitDeposit(r.Context(), allocation.ForfeitureRequest{
		StudentID: chi.URLParam(r, "id"),
		Amount:    req.Amount,
		Date:      date,
		Reason:    req.Reason,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// OutstandingResponse is the per-month view of what a student owes.
type OutstandingResponse struct {
	StudentID        string           `json:"student_id"`
	Months           []ledger.Balance `json:"months"`
	TotalOutstanding decimal.Decimal  `json:"total_outstanding"`
}

func (s *Server) outstanding(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")
	balances, err := s.allocator.Outstanding(r.Context(), studentID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OutstandingResponse{
		StudentID:        studentID,
		Months:           balances,
		TotalOutstanding: allocation.TotalOutstanding(balances),
	})
}
