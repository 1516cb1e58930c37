package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

func TestForEach(t *testing.T) {
	var called int32
	errs := ForEach(context.Background(), 3, 2, func(_ context.Context, i int) error {
		atomic.AddInt32(&called, 1)
		if i == 1 {
			return errors.New("test error")
		}
		return nil
	})

	if called != 3 {
		t.Fatalf("expected 3 calls, got %d", called)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
}

func TestForEachKeepsIndexOrder(t *testing.T) {
	out := make([]int, 50)
	errs := ForEach(context.Background(), len(out), 8, func(_ context.Context, i int) error {
		out[i] = i * i
		if i%10 == 0 {
			return fmt.Errorf("item %d", i)
		}
		return nil
	})
	for i, v := range out {
		if v != i*i {
			t.Fatalf("index %d: got %d", i, v)
		}
	}
	if len(errs) != 5 {
		t.Fatalf("expected 5 errors, got %d", len(errs))
	}
	for k, err := range errs {
		if err.Error() != fmt.Sprintf("item %d", k*10) {
			t.Fatalf("errors out of order: %v", errs)
		}
	}
}

func TestForEachVisitsAllAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var called int32
	errs := ForEach(ctx, 4, 1, func(ctx context.Context, _ int) error {
		atomic.AddInt32(&called, 1)
		return ctx.Err()
	})
	if called != 4 || len(errs) != 4 {
		t.Fatalf("expected 4 calls and 4 errors, got %d and %d", called, len(errs))
	}
}

func TestForEachNoWork(t *testing.T) {
	if errs := ForEach(context.Background(), 0, 2, func(context.Context, int) error { return nil }); errs != nil {
		t.Fatalf("expected nil, got %v", errs)
	}
}
