package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jbily/BANKS-MO/internal/cards"
	"github.com/jbily/BANKS-MO/internal/ledger"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps ledger and card error kinds onto transport
// responses. Unrecognized errors become an opaque 500 so no persistence
// detail leaks to the caller.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnsupportedCurrency),
		errors.Is(err, ledger.ErrCurrencyMismatch),
		errors.Is(err, ledger.ErrInvalidAccountType),
		errors.Is(err, ledger.ErrInvalidTransfer):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInactiveAccount),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrLimitExceeded),
		errors.Is(err, ledger.ErrBalanceNonZero),
		errors.Is(err, ledger.ErrNotRefundable),
		errors.Is(err, ledger.ErrTransactionFinal),
		errors.Is(err, cards.ErrFrozen),
		errors.Is(err, cards.ErrInactive),
		errors.Is(err, cards.ErrExpired),
		errors.Is(err, cards.ErrChannelBlocked):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrContentionTimeout):
		WriteError(w, http.StatusServiceUnavailable, "operation timed out, retry")
	default:
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
