package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/jobtrack/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)
	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v", got, 10*time.Second)
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(100*time.Millisecond, time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		upper := 100 * time.Millisecond << (attempt - 1)
		if upper > time.Second {
			upper = time.Second
		}
		for range 50 {
			got := e.Delay(attempt)
			if got < 0 || got > upper {
				t.Fatalf("Delay(%d) = %v, want within [0, %v]", attempt, got, upper)
			}
		}
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := backoff.Retry(context.Background(), backoff.NewConstant(time.Millisecond), 5, func(int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	err := backoff.Retry(context.Background(), backoff.NewConstant(time.Millisecond), 4, func(int) error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("err = %v, want %v", err, transient)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	gone := errors.New("gone")
	calls := 0
	err := backoff.Retry(context.Background(), backoff.NewConstant(time.Millisecond), 10, func(int) error {
		calls++
		return backoff.Permanent(gone)
	})
	if err != gone { //nolint:errorlint // the wrapper must be stripped
		t.Fatalf("err = %v, want %v", err, gone)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := backoff.Retry(ctx, backoff.NewConstant(time.Hour), 0, func(int) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
