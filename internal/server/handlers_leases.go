package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/simonvc/rentledger/internal/ledger"
)

type createLeaseRequest struct {
	ID              string          `json:"id,omitempty"`
	StudentID       string          `json:"student_id" validate:"required"`
	ResidenceID     string          `json:"residence_id"`
	RoomID          string          `json:"room_id,omitempty"`
	Start           string          `json:"start" validate:"required"`
	End             string          `json:"end,omitempty"`
	MonthlyRent     decimal.Decimal `json:"monthly_rent"`
	MonthlyAdminFee decimal.Decimal `json:"monthly_admin_fee"`
	Deposit         decimal.Decimal `json:"deposit"`
}

func (s *Server) createLease(w http.ResponseWriter, r *http.Request) {
	var req createLeaseRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	start, err := ledger.ParseDate(req.Start)
	if err != nil {
		s.fail(w, err)
		return
	}
	lease := &ledger.Lease{
		ID:              req.ID,
		StudentID:       req.StudentID,
		ResidenceID:     req.ResidenceID,
		RoomID:          req.RoomID,
		Start:           start,
		MonthlyRent:     req.MonthlyRent,
		MonthlyAdminFee: req.MonthlyAdminFee,
		Deposit:         req.Deposit,
	}
	if req.End != "" {
		end, err := ledger.ParseDate(req.End)
		if err != nil {
			s.fail(w, err)
			return
		}
		lease.End = &end
	}
	for _, amt := range []decimal.Decimal{lease.MonthlyRent, lease.MonthlyAdminFee, lease.Deposit} {
		if amt.IsNegative() {
			writeError(w, http.StatusBadRequest, ledger.ErrInvalidAmount.Error()+": lease amounts cannot be negative")
			return
		}
	}

	if err := s.store.CreateLease(r.Context(), lease); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lease)
}

func (s *Server) listLeases(w http.ResponseWriter, r *http.Request) {
	leases, err := s.store.ListLeases(r.Context(), r.URL.Query().Get("student_id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if leases == nil {
		leases = []ledger.Lease{}
	}
	writeJSON(w, http.StatusOK, leases)
}

func (s *Server) getLease(w http.ResponseWriter, r *http.Request) {
	lease, err := s.store.GetLease(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lease)
}
