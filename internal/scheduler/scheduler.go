package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TaskFunc is one unit of periodic work.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	running  atomic.Bool
}

// Scheduler runs a set of independent named periodic tasks. Each task is
// rescheduled a full interval after the previous run completes, so a slow run
// is never overlapped by its own next invocation. One task's failure never
// affects another task or its own future schedule.
type Scheduler struct {
	tasks  []*task
	logger *slog.Logger
	wg     sync.WaitGroup
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add registers a named task. Must be called before Start.
func (s *Scheduler) Add(name string, interval time.Duration, fn TaskFunc) {
	s.tasks = append(s.tasks, &task{name: name, interval: interval, fn: fn})
}

// Start launches one goroutine per task and returns. Tasks run until the
// context is cancelled; Wait blocks until they have all exited.
func (s *Scheduler) Start(ctx context.Context) {
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	s.logger.Info("scheduler started", "tasks", len(s.tasks))
}

// Wait blocks until all task goroutines have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	defer s.wg.Done()

	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runOnce(ctx, t)
			// Relative delay from completion, not an absolute slot.
			timer.Reset(t.interval)
		}
	}
}

// runOnce executes the task with the overlap guard and panic containment.
func (s *Scheduler) runOnce(ctx context.Context, t *task) {
	if !t.running.CompareAndSwap(false, true) {
		s.logger.Warn("skipping overlapping task run", "task", t.name)
		return
	}
	defer t.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "task", t.name, "panic", r)
		}
	}()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		s.logger.Error("task failed", "task", t.name, "error", err)
		return
	}
	s.logger.Debug("task completed", "task", t.name, "elapsed", time.Since(start))
}
