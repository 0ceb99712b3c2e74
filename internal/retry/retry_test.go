package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func fastConfig() Config {
	return Config{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 10 * time.Millisecond, Multiplier: 2}
}

func TestDoWithResult_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	var retries []int

	result, attempts, err := DoWithResult(context.Background(), fastConfig(), Policy{
		ShouldRetry: func(err error) bool { return errors.Is(err, errTransient) },
		OnRetry:     func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) },
	}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errTransient
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %q", result)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if len(retries) != 1 || retries[0] != 1 {
		t.Errorf("expected one retry after attempt 1, got %v", retries)
	}
}

func TestDoWithResult_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	_, attempts, err := DoWithResult(context.Background(), fastConfig(), Policy{}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	if !errors.Is(err, errTransient) {
		t.Errorf("expected transient error, got %v", err)
	}
	if calls != 3 || attempts != 3 {
		t.Errorf("expected 3 calls, got calls=%d attempts=%d", calls, attempts)
	}
}

func TestDoWithResult_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	_, _, err := DoWithResult(context.Background(), fastConfig(), Policy{
		ShouldRetry: func(err error) bool { return errors.Is(err, errTransient) },
	}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errPermanent
	})

	if !errors.Is(err, errPermanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoWithResult_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 3, InitialWait: time.Hour, Multiplier: 2}

	done := make(chan error, 1)
	go func() {
		_, _, err := DoWithResult(ctx, cfg, Policy{}, func(ctx context.Context) (int, error) {
			return 0, errTransient
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, errTransient) {
			t.Errorf("expected last error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop on cancellation")
	}
}

func TestBackoff(t *testing.T) {
	cfg := Config{InitialWait: time.Second, MaxWait: 3 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
	}
	for _, tc := range tests {
		if got := cfg.Backoff(tc.attempt); got != tc.expected {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.expected)
		}
	}
}
