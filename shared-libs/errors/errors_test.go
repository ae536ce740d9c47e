package errors

import (
	"net/http"
	"testing"
)

func TestCodeForStatusRoundTrips(t *testing.T) {
	for _, status := range []int{
		http.StatusNotFound,
		http.StatusUnauthorized,
		http.StatusConflict,
		http.StatusBadRequest,
		http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
	} {
		code := CodeForStatus(status)
		if got := ToStatusCode(code); got != status {
			t.Fatalf("status %d -> code %q -> %d", status, code, got)
		}
	}
}

func TestToStatusCodeDefaultsToInternal(t *testing.T) {
	if got := ToStatusCode("teapot"); got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}
