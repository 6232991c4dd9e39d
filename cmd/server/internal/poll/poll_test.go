package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitSucceedsOnNthAttempt(t *testing.T) {
	calls := 0
	err := Wait(context.Background(), time.Millisecond, 5, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWaitExhaustsBudget(t *testing.T) {
	calls := 0
	err := Wait(context.Background(), time.Millisecond, 4, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
}

func TestWaitStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Wait(context.Background(), time.Millisecond, 10, func(ctx context.Context) (bool, error) {
		calls++
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, 50*time.Millisecond, 10, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitZeroAttempts(t *testing.T) {
	err := Wait(context.Background(), time.Millisecond, 0, func(ctx context.Context) (bool, error) {
		t.Fatal("fn should not be called")
		return false, nil
	})
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
}
