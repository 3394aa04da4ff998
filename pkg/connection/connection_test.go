package connection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoffDefaultIsConstant(t *testing.T) {
	b := NewBackoff()

	for i := 0; i < 5; i++ {
		if d := b.Next(); d != DefaultPause {
			t.Errorf("attempt %d: delay = %v, want %v", i, d, DefaultPause)
		}
	}
	if b.Attempts() != 5 {
		t.Errorf("Attempts = %d, want 5", b.Attempts())
	}
}

func TestBackoffGrowing(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial:    10 * time.Millisecond,
		Max:        50 * time.Millisecond,
		Multiplier: 2,
	})

	expected := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
	}
	for i, exp := range expected {
		if got := b.Next(); got != exp {
			t.Errorf("attempt %d: delay = %v, want %v", i, got, exp)
		}
	}

	b.Reset()
	if b.Current() != 10*time.Millisecond || b.Attempts() != 0 {
		t.Errorf("after Reset: current = %v attempts = %d", b.Current(), b.Attempts())
	}
}

func TestBackoffJitter(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Multiplier: 1, Jitter: 0.25})

	for i := 0; i < 20; i++ {
		d := b.Next()
		if d < time.Second || d > 1250*time.Millisecond {
			t.Errorf("sample %d: %v out of range [1s, 1.25s]", i, d)
		}
	}
}

func TestBackoffConfigNormalization(t *testing.T) {
	tests := []struct {
		name     string
		cfg      BackoffConfig
		wantInit time.Duration
		wantMax  time.Duration
	}{
		{"zero", BackoffConfig{}, DefaultPause, DefaultPause},
		{"growing without max", BackoffConfig{Initial: time.Second, Multiplier: 2}, time.Second, DefaultMaxBackoff},
		{"max below initial", BackoffConfig{Initial: time.Second, Max: time.Millisecond, Multiplier: 3}, time.Second, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackoffWithConfig(tt.cfg)
			if b.initial != tt.wantInit || b.max != tt.wantMax {
				t.Errorf("initial=%v max=%v, want %v/%v", b.initial, b.max, tt.wantInit, tt.wantMax)
			}
		})
	}
}

func TestBackoffWaitCancelled(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if b.Wait(ctx) {
		t.Error("Wait returned true on cancelled context")
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond})

	var calls atomic.Int32
	var failures []int
	err := Retry(context.Background(), b, func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("refused")
		}
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		failures = append(failures, attempt)
	})

	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(failures) != 2 || failures[0] != 1 || failures[1] != 2 {
		t.Errorf("failures = %v, want [1 2]", failures)
	}
	if b.Attempts() != 0 {
		t.Errorf("backoff not reset after success: attempts = %d", b.Attempts())
	}
}

func TestRetryCancelled(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, b, func(ctx context.Context) error {
			calls.Add(1)
			return errors.New("refused")
		}, nil)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrReconnectCancelled) {
			t.Errorf("err = %v, want ErrReconnectCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Retry did not stop after cancel")
	}

	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != n {
		t.Errorf("attempts continued after cancel: %d -> %d", n, calls.Load())
	}
	if n < 2 {
		t.Errorf("calls = %d, want at least 2", n)
	}
}
