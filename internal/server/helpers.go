// Package server exposes the betting backend over JSON HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/betonem/backend/internal/service"
)

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError translates a service error into an HTTP response. Errors
// outside the domain taxonomy become opaque 500s; the detail stays in
// the logs.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotCreator),
		errors.Is(err, service.ErrNotAMember):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrMarketClosed),
		errors.Is(err, service.ErrAlreadyResolved),
		errors.Is(err, service.ErrAlreadySettled),
		errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrWagerExpired),
		errors.Is(err, service.ErrSettlementExists),
		errors.Is(err, service.ErrLedgerCorruption):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidTitle),
		errors.Is(err, service.ErrInvalidStake),
		errors.Is(err, service.ErrInvalidDeadline),
		errors.Is(err, service.ErrInvalidHandle),
		errors.Is(err, service.ErrMissingPayoutHandle),
		errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrUncapturedParticipants),
		errors.Is(err, service.ErrNoWinners),
		errors.Is(err, service.ErrNothingToSettle):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("internal error", "error", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseAmount parses a positive integer query parameter.
func parseAmount(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
