package session

import (
	"context"
	"log/slog"
)

// Runner is the single writer for a Session. Transport messages, player
// events and timer callbacks are all submitted with Go and executed in order
// on the goroutine running Run.
type Runner struct {
	queue  *taskQueue
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		queue:  newTaskQueue(),
		logger: logger,
	}
}

// Go submits task. It returns false once the runner has stopped.
func (r *Runner) Go(task func()) bool {
	return r.queue.Enqueue(task)
}

// Executor adapts the runner for WithExecutor.
func (r *Runner) Executor() func(func()) {
	return func(task func()) {
		if !r.Go(task) {
			r.logger.Debug("task submitted after runner stopped")
		}
	}
}

// Do submits task and waits for it to finish. It returns ctx.Err() if ctx is
// done first, or ErrClosed if the runner has stopped.
func (r *Runner) Do(ctx context.Context, task func()) error {
	done := make(chan struct{})
	if !r.Go(func() {
		defer close(done)
		task()
	}) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes submitted tasks until ctx is cancelled or Stop is called. It
// must be called from exactly one goroutine.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if task, ok := r.queue.TryDequeue(); ok {
			r.run(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			r.queue.Close()
			return ctx.Err()
		case <-r.queue.Wait():
			if r.queue.Len() == 0 {
				select {
				case <-ctx.Done():
					r.queue.Close()
					return ctx.Err()
				default:
				}
				if r.stopped() {
					return nil
				}
			}
		}
	}
}

func (r *Runner) Stop() {
	r.queue.Close()
}

func (r *Runner) stopped() bool {
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()

	return r.queue.closed
}

func (r *Runner) run(ctx context.Context, task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "session task panicked", "panic", rec)
		}
	}()

	task()
}
