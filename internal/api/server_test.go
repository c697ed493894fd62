package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ticket-exchange/internal/model"
)

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{model.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
		{model.ErrInsufficientFunds, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"},
		{model.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{model.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
		{model.ErrTiming, http.StatusTooEarly, "TIMING"},
		{model.ErrLimitExceeded, http.StatusUnprocessableEntity, "LIMIT_EXCEEDED"},
		{model.ErrReentrancy, http.StatusLocked, "REENTRANCY"},
		{model.ErrTransferFailed, http.StatusBadGateway, "TRANSFER_FAILED"},
		{model.ErrOverflow, http.StatusInternalServerError, "OVERFLOW"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeErr(rec, fmt.Errorf("op: %w", tc.err))
		if rec.Code != tc.want {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.want, rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%v: decode body: %v", tc.err, err)
		}
		if body["code"] != tc.code {
			t.Fatalf("%v: expected code %s, got %s", tc.err, tc.code, body["code"])
		}
	}
}

// A second create for a key that is still listed must surface as a conflict;
// the storage layer raises it as an invalid-state error.
func TestDuplicateListingMapsToConflict(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, fmt.Errorf("%w: already listed", model.ErrInvalidState))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}
