package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind Kind
	}{
		{"rate limit", 429, KindTransient},
		{"internal server error", 500, KindTransient},
		{"bad gateway", 502, KindTransient},
		{"service unavailable", 503, KindTransient},
		{"gateway timeout", 504, KindTransient},
		{"unauthorized", 401, KindAuth},
		{"forbidden", 403, KindAuth},
		{"bad request", 400, KindAuth},
		{"not found", 404, KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus("spotify", tt.status, "")
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Transient("store", errors.New("boom"))) {
		t.Error("transient error should be retryable")
	}
	if IsRetryable(Auth("spotify", errors.New("denied"))) {
		t.Error("auth error should not be retryable")
	}
	if IsRetryable(NotFound("params", errors.New("missing"))) {
		t.Error("not-found error should not be retryable")
	}
	if IsRetryable(Validation("etl", errors.New("bad duration"))) {
		t.Error("validation error should not be retryable")
	}
	if IsRetryable(errors.New("plain error")) {
		t.Error("unclassified error should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil error should not be retryable")
	}
}

func TestKindOfWrappedError(t *testing.T) {
	inner := Transient("storage", errors.New("write failed"))
	wrapped := fmt.Errorf("uploading raw object: %w", inner)

	if got := KindOf(wrapped); got != KindTransient {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindTransient)
	}
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("params", errors.New(`parameter "spotify_refresh_token" not found`))
	want := `params: not found: parameter "spotify_refresh_token" not found`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
