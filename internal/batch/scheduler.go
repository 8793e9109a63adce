package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/batchq/internal/domain"
)

// ProcessQueue drives the queue to empty while respecting the
// concurrency limit, then waits for all in-flight tasks to settle
// before returning. Handler errors never propagate to the caller;
// partial failure is a normal run outcome, visible through
// QueueStatus and per-task state.
//
// When ctx is cancelled, admission stops, already-running tasks are
// allowed to finish, and ctx.Err() is returned.
func (p *Processor) ProcessQueue(ctx context.Context) error {
	p.mu.Lock()
	queued := len(p.queue)
	p.mu.Unlock()

	p.logger.Info("starting batch processing", "queued", queued)

	for {
		p.admit(ctx)

		p.mu.Lock()
		drained := len(p.queue) == 0 && len(p.running) == 0
		p.mu.Unlock()

		if drained || ctx.Err() != nil {
			break
		}

		select {
		case <-ctx.Done():
		case <-time.After(p.cfg.PollInterval):
		}
	}

	p.wg.Wait()
	p.logSummary()

	return ctx.Err()
}

// Run keeps the admission loop alive until ctx is cancelled, so tasks
// enqueued while the processor is idle get picked up. This is the
// long-lived service mode; ProcessQueue is the drain-and-return batch
// mode. In-flight tasks settle before Run returns.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("batch processor running",
		"max_concurrent", p.cfg.MaxConcurrent,
		"max_retries", p.cfg.MaxRetries,
		"handlers", p.RegisteredTypes())

	for {
		p.admit(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("batch processor stopping, waiting for in-flight tasks")
			p.wg.Wait()
			p.logSummary()
			return ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// admit promotes pending tasks into the running set while a
// concurrency slot is free, starting one goroutine per admitted task.
// Execution never blocks admission.
func (p *Processor) admit(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.running) < p.cfg.MaxConcurrent && len(p.queue) > 0 && ctx.Err() == nil {
		task := p.queue[0]
		p.queue = p.queue[1:]
		task.MarkRunning()
		p.running[task.ID] = task

		p.wg.Add(1)
		go p.runTask(ctx, task)
	}
}

// runTask executes one task through its retry budget and moves it to
// the appropriate terminal collection. The task stays in the running
// set, with status running, for the whole attempt/retry cycle.
func (p *Processor) runTask(ctx context.Context, task *domain.Task) {
	defer p.wg.Done()

	logger := p.logger.With(
		"task_id", task.ID,
		"task_type", task.Type)

	for {
		logger.Info("executing task")

		result, err := p.executeAttempt(ctx, task)
		if err == nil {
			p.mu.Lock()
			delete(p.running, task.ID)
			task.MarkCompleted(result)
			p.completed = append(p.completed, task)
			p.mu.Unlock()

			logger.Info("task completed")
			p.persist(ctx)
			return
		}

		p.mu.Lock()
		retries := task.RetryCount
		p.mu.Unlock()

		// A missing handler is a configuration error: retrying cannot
		// fix it, so it consumes no retries.
		if errors.Is(err, ErrNoHandler) || retries >= p.cfg.MaxRetries {
			p.failTask(ctx, task, err, logger)
			return
		}

		p.mu.Lock()
		task.RetryCount++
		attempt := task.RetryCount
		p.mu.Unlock()

		logger.Info("retrying task",
			"error", err,
			"attempt", attempt,
			"max_retries", p.cfg.MaxRetries)

		select {
		case <-ctx.Done():
			// Shutting down mid-retry: record the last failure rather
			// than leaving the task stranded in the running set.
			p.failTask(ctx, task, err, logger)
			return
		case <-time.After(p.cfg.RetryDelay):
		}
	}
}

// failTask moves a task from the running set to the failed collection.
func (p *Processor) failTask(ctx context.Context, task *domain.Task, cause error, logger *slog.Logger) {
	p.mu.Lock()
	delete(p.running, task.ID)
	task.MarkFailed(cause.Error())
	p.failed = append(p.failed, task)
	retries := task.RetryCount
	p.mu.Unlock()

	logger.Error("task failed permanently",
		"error", cause,
		"retry_count", retries)
	p.persist(ctx)
}

// executeAttempt runs one handler attempt. Panics inside the handler
// are recovered and reported as the attempt's error so a misbehaving
// handler cannot crash the scheduler.
func (p *Processor) executeAttempt(ctx context.Context, task *domain.Task) (result map[string]any, err error) {
	p.mu.Lock()
	handler, ok := p.handlers[task.Type]
	payload := task.Data
	p.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, task.Type)
	}

	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler(ctx, payload)
}
