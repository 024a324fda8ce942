package server

import (
	"net/http"
	"time"

	"github.com/simonvc/rentledger/internal/ledger"
)

type accrualRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=1900"`
}

func (s *Server) createAccruals(w http.ResponseWriter, r *http.Request) {
	var req accrualRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	run, err := s.accruals.CreateMonthlyAccruals(r.Context(), time.Month(req.Month), req.Year)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type reversalRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Month     string `json:"month" validate:"required"`
	Reason    string `json:"reason"`
}

func (s *Server) reverseAccrual(w http.ResponseWriter, r *http.Request) {
	var req reversalRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	month, err := ledger.ParseMonthKey(req.Month)
	if err != nil {
		s.fail(w, err)
		return
	}
	entry, err := s.accruals.ReverseAccrual(r.Context(), req.StudentID, month, req.Reason)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
