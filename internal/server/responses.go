package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// decode reads a JSON body into v and runs its validate tags.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return err
	}
	return nil
}

var errBadRequest = errors.New("bad request")

// parseDate parses an optional YYYY-MM-DD value, returning fallback when empty.
func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return ledger.ParseDate(s)
}

func mapError(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, ledger.ErrAccrualNotFound),
		errors.Is(err, ledger.ErrLeaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateAccount),
		errors.Is(err, ledger.ErrDuplicateAccrual),
		errors.Is(err, ledger.ErrDuplicateReversal),
		errors.Is(err, ledger.ErrDuplicatePayment),
		errors.Is(err, ledger.ErrAccrualSettled),
		errors.Is(err, ledger.ErrSystemAccount):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnbalancedEntry),
		errors.Is(err, ledger.ErrTooFewLines),
		errors.Is(err, ledger.ErrInvalidLine),
		errors.Is(err, ledger.ErrEmptyDescription),
		errors.Is(err, ledger.ErrInvalidAccountCode),
		errors.Is(err, ledger.ErrAccountInactive),
		errors.Is(err, ledger.ErrInvalidSource),
		errors.Is(err, ledger.ErrInvalidStatus),
		errors.Is(err, ledger.ErrMetadataMismatch),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidMonth),
		errors.Is(err, ledger.ErrInvalidDate),
		errors.Is(err, ledger.ErrEmptyPayment),
		errors.Is(err, ledger.ErrInvalidLease),
		errors.Is(err, ledger.ErrMissingResidence),
		errors.Is(err, ledger.ErrMissingStudent):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNoOutstanding),
		errors.Is(err, ledger.ErrNoUnappliedCredit),
		errors.Is(err, ledger.ErrInsufficientDeposit),
		errors.Is(err, ledger.ErrFutureMonth):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
