package textgen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestLimiter_AcquireRelease(t *testing.T) {
	l := NewLimiter(2, time.Second)
	ctx := context.Background()

	if got := l.Available(); got != 2 {
		t.Errorf("initial Available = %d, want 2", got)
	}
	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if got := l.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
	if got := l.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}

	l.Release()
	l.Release()
	if got := l.Status(); got != (LimiterStatus{Active: 0, Available: 2, MaxConcurrent: 2}) {
		t.Errorf("Status = %+v", got)
	}
}

func TestLimiter_TimesOutWhenFull(t *testing.T) {
	l := NewLimiter(1, 30*time.Millisecond)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	start := time.Now()
	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("Acquire = %v, want ErrTooManyRequests", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Acquire returned after %v, expected to wait", elapsed)
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire = %v, want context.Canceled", err)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, 0)
	if got := l.Status().MaxConcurrent; got != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrent)
	}
	if l.maxWait != DefaultMaxWait {
		t.Errorf("maxWait = %v, want %v", l.maxWait, DefaultMaxWait)
	}
}

func TestLimiter_WaitForDrain(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := NewLimiter(3, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(20 * time.Millisecond)
			l.Release()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.WaitForDrain(ctx); err != nil {
		t.Fatalf("WaitForDrain: %v", err)
	}
	wg.Wait()
}

func TestLimiter_WaitForDrainTimeout(t *testing.T) {
	l := NewLimiter(1, time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain = %v, want DeadlineExceeded", err)
	}
}
