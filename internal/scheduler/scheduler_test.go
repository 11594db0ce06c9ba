package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScheduler_RunsTasksPeriodically(t *testing.T) {
	s := New(testLogger())

	var runs atomic.Int32
	s.Add("counter", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	s.Wait()

	if got := runs.Load(); got < 3 {
		t.Errorf("task ran %d times in 100ms at a 5ms interval, want at least 3", got)
	}
}

func TestScheduler_FailureDoesNotCancelSchedule(t *testing.T) {
	s := New(testLogger())

	var runs atomic.Int32
	s.Add("flaky", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("upstream briefly unavailable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	s.Wait()

	if got := runs.Load(); got < 3 {
		t.Errorf("failing task ran %d times, schedule should continue after errors", got)
	}
}

func TestScheduler_PanicIsContained(t *testing.T) {
	s := New(testLogger())

	var panics, neighbors atomic.Int32
	s.Add("panicky", 5*time.Millisecond, func(ctx context.Context) error {
		panics.Add(1)
		panic("poller exploded")
	})
	s.Add("neighbor", 5*time.Millisecond, func(ctx context.Context) error {
		neighbors.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	s.Wait()

	if got := panics.Load(); got < 2 {
		t.Errorf("panicking task ran %d times, panic should not kill its schedule", got)
	}
	if got := neighbors.Load(); got < 3 {
		t.Errorf("neighbor task ran %d times, a sibling panic should not affect it", got)
	}
}

func TestScheduler_SlowTaskNeverOverlapsItself(t *testing.T) {
	s := New(testLogger())

	var inFlight, maxInFlight atomic.Int32
	s.Add("slow", time.Millisecond, func(ctx context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			prev := maxInFlight.Load()
			if n <= prev || maxInFlight.CompareAndSwap(prev, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(120 * time.Millisecond)
	cancel()
	s.Wait()

	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("observed %d concurrent runs of the same task, want at most 1", got)
	}
}
