package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}
}

func TestDoRetriesTransientUntilExhausted(t *testing.T) {
	calls := 0
	wantErr := faults.Transient("storage", errors.New("upstream 503"))

	err := fastPolicy().Do(context.Background(), "write raw object", func() error {
		calls++
		return wantErr
	})

	if calls != 5 {
		t.Errorf("got %d attempts, want 5", calls)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want %v", err, wantErr)
	}
}

func TestDoStopsRetryingOnSuccess(t *testing.T) {
	calls := 0

	err := fastPolicy().Do(context.Background(), "exchange token", func() error {
		calls++
		if calls < 3 {
			return faults.Transient("token exchange", errors.New("rate limited"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("got %d attempts, want 3", calls)
	}
}

func TestDoDoesNotRetryNonTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"auth", faults.Auth("token exchange", errors.New("invalid_grant"))},
		{"not found", faults.NotFound("params", errors.New("parameter missing"))},
		{"validation", faults.Validation("etl", errors.New("bad duration"))},
		{"unclassified", errors.New("plain error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fastPolicy().Do(context.Background(), "op", func() error {
				calls++
				return tt.err
			})

			if calls != 1 {
				t.Errorf("got %d attempts, want 1", calls)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("Do() error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Policy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond}.Do(ctx, "op", func() error {
		calls++
		cancel()
		return faults.Transient("storage", errors.New("boom"))
	})

	if err == nil {
		t.Fatal("Do() error = nil, want error after cancellation")
	}
	if calls != 1 {
		t.Errorf("got %d attempts, want 1", calls)
	}
}
