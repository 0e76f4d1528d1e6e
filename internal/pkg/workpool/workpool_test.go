package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEachRespectsLimit(t *testing.T) {
	p := New(3)
	var inFlight, peak int32
	items := make([]int, 20)
	errs := Each(context.Background(), p, items, func(ctx context.Context, i int, _ int) error {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})
	if len(errs) != len(items) {
		t.Fatalf("errs len %d want %d", len(errs), len(items))
	}
	if peak > 3 {
		t.Fatalf("peak concurrency %d exceeds limit 3", peak)
	}
}

func TestEachKeepsErrorsByIndex(t *testing.T) {
	boom := errors.New("boom")
	errs := Each(context.Background(), New(2), []string{"a", "b", "c"}, func(ctx context.Context, i int, s string) error {
		if s == "b" {
			return boom
		}
		return nil
	})
	if errs[0] != nil || !errors.Is(errs[1], boom) || errs[2] != nil {
		t.Fatalf("unexpected errs: %v", errs)
	}
}

func TestMapPairsResultsWithInputs(t *testing.T) {
	in := []int{5, 1, 3, 2}
	out, errs := Map(context.Background(), New(4), in, func(ctx context.Context, i int, v int) (int, error) {
		time.Sleep(time.Duration(v) * time.Millisecond)
		return v * 10, nil
	})
	for i := range in {
		if errs[i] != nil || out[i] != in[i]*10 {
			t.Fatalf("index %d: got %d err %v", i, out[i], errs[i])
		}
	}
}

func TestEachCanceledSkipsWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran int32
	errs := Each(ctx, New(1), []int{1, 2, 3}, func(context.Context, int, int) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	if ran != 0 {
		t.Fatalf("ran %d tasks after cancel", ran)
	}
	for _, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled, got %v", err)
		}
	}
}

func TestNewDefaultsLimit(t *testing.T) {
	if New(0).Limit() != DefaultLimit {
		t.Fatalf("default limit not applied")
	}
}
