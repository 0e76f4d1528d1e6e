package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(max int) RetryPolicy {
	return RetryPolicy{MaxAttempts: max, MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	retries := 0
	attempts, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context, attempt int) error {
		calls++
		if attempt != calls {
			t.Fatalf("attempt %d reported on call %d", attempt, calls)
		}
		return boom
	}, func(int, error, time.Duration) { retries++ })
	if !errors.Is(err, boom) {
		t.Fatalf("Retry: got %v want boom", err)
	}
	if attempts != 3 || calls != 3 || retries != 2 {
		t.Fatalf("attempts=%d calls=%d retries=%d, want 3/3/2", attempts, calls, retries)
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	attempts, err := Retry(context.Background(), fastPolicy(5), func(ctx context.Context, attempt int) error {
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	if err != nil || attempts != 2 {
		t.Fatalf("Retry: attempts=%d err=%v", attempts, err)
	}
}

func TestRetryHonorsRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	p := fastPolicy(5)
	p.Retryable = func(err error) bool { return !errors.Is(err, fatal) }
	attempts, err := Retry(context.Background(), p, func(context.Context, int) error { return fatal }, nil)
	if attempts != 1 || !errors.Is(err, fatal) {
		t.Fatalf("Retry: attempts=%d err=%v", attempts, err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 10, MinBackoff: time.Hour, MaxBackoff: time.Hour}
	attempts, err := Retry(ctx, p, func(context.Context, int) error {
		cancel()
		return errors.New("x")
	}, nil)
	if err == nil || attempts != 1 {
		t.Fatalf("Retry: attempts=%d err=%v, want one failed attempt", attempts, err)
	}
}

func TestBackoffCapped(t *testing.T) {
	p := RetryPolicy{MinBackoff: time.Second, MaxBackoff: 4 * time.Second, JitterFrac: 0.1}
	for attempt := 1; attempt < 10; attempt++ {
		if d := p.Backoff(attempt); d > 4400*time.Millisecond {
			t.Fatalf("attempt %d: backoff %s exceeds cap", attempt, d)
		}
	}
}

func TestStateLedger(t *testing.T) {
	var st State
	now := time.Now()
	st.Start("classify", now)
	st.Start("classify", now)
	st.Finish("classify", StageSucceeded, nil, now, map[string]any{"category": "subject"})
	ss := st.Stages["classify"]
	if ss.Attempts != 2 || ss.Status != StageSucceeded || ss.Outputs["category"] != "subject" {
		t.Fatalf("unexpected stage state: %+v", ss)
	}
	if st.Status("missing") != StagePending {
		t.Fatalf("missing stage should read as pending")
	}
}
