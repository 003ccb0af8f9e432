package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesOnKind(t *testing.T) {
	err := Wrap(KindNotFound, "transfer not found", errors.New("record not found"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected errors.Is to match not_found kind")
	}
	if errors.Is(err, ErrChecksumMismatch) {
		t.Fatal("did not expect checksum mismatch match")
	}

	wrapped := fmt.Errorf("status lookup: %w", err)
	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("expected not_found through fmt wrap, got %s", KindOf(wrapped))
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("plain errors should map to internal")
	}
}

func TestHTTPStatusAndRetryable(t *testing.T) {
	cases := []struct {
		kind      Kind
		status    int
		retryable bool
	}{
		{KindValidation, http.StatusUnprocessableEntity, false},
		{KindChecksumMismatch, http.StatusUnprocessableEntity, false},
		{KindInFlightConflict, http.StatusConflict, true},
		{KindStoreUnavailable, http.StatusServiceUnavailable, true},
		{KindNotFound, http.StatusNotFound, false},
		{KindInternal, http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.kind); got != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.kind, tc.status, got)
		}
		if got := Retryable(tc.kind); got != tc.retryable {
			t.Fatalf("%s: expected retryable=%v", tc.kind, tc.retryable)
		}
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(KindStoreUnavailable, "begin transaction", errors.New("dial tcp: refused"))
	if err.Error() != "begin transaction: dial tcp: refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestStatusOfHonorsOverride(t *testing.T) {
	if got := StatusOf(BadRequest("malformed JSON body", nil)); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
	if KindOf(BadRequest("x", nil)) != KindValidation {
		t.Fatal("bad request must keep the validation kind")
	}
	if got := StatusOf(fmt.Errorf("wrapped: %w", ErrChecksumMismatch)); got != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", got)
	}
	if got := StatusOf(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}
