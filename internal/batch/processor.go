package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/batchq/internal/domain"
	"github.com/phrazzld/batchq/internal/store"
)

// ErrNoHandler is returned when a task's type has no registered
// handler at execution time. This is a configuration error, not a
// transient fault, so the task fails immediately without retries.
var ErrNoHandler = errors.New("no handler registered for task type")

// HandlerFunc executes one task attempt. It receives the task's
// payload verbatim and returns a result payload or an error. Handlers
// must be idempotent-safe under retry since the same payload is
// replayed on each attempt.
type HandlerFunc func(ctx context.Context, payload map[string]any) (map[string]any, error)

// TaskSpec describes one task in a bulk enqueue request.
type TaskSpec struct {
	Type     string
	Data     map[string]any
	Priority int
}

// Processor owns one logical task queue: the handler registry, the
// four task collections, and the scheduling loop that drives them.
// Construct one Processor per queue and pass it explicitly to
// collaborators; there is no package-level instance.
type Processor struct {
	mu        sync.Mutex
	cfg       Config
	handlers  map[string]HandlerFunc
	queue     []*domain.Task
	running   map[uuid.UUID]*domain.Task
	completed []*domain.Task
	failed    []*domain.Task

	snapshots store.SnapshotStore
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// New creates a Processor with the given configuration. The snapshot
// store may be nil, in which case persistence is disabled regardless
// of cfg.SaveState.
func New(cfg Config, snapshots store.SnapshotStore, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		logger.Warn("invalid max concurrent specified, using default",
			"specified", cfg.MaxConcurrent,
			"default", defaults.MaxConcurrent)
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}

	if cfg.SaveState && snapshots == nil {
		logger.Warn("state saving requested but no snapshot store provided, persistence disabled")
		cfg.SaveState = false
	}

	return &Processor{
		cfg:       cfg,
		handlers:  make(map[string]HandlerFunc),
		queue:     make([]*domain.Task, 0),
		running:   make(map[uuid.UUID]*domain.Task),
		completed: make([]*domain.Task, 0),
		failed:    make([]*domain.Task, 0),
		snapshots: snapshots,
		logger:    logger,
	}
}

// Register stores the handler for a task type. Re-registering the same
// type overwrites the previous handler; last writer wins.
func (p *Processor) Register(taskType string, handler HandlerFunc) {
	p.mu.Lock()
	p.handlers[taskType] = handler
	p.mu.Unlock()

	p.logger.Info("registered task handler", "task_type", taskType)
}

// RegisteredTypes returns the task types that currently have handlers,
// in no particular order.
func (p *Processor) RegisteredTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]string, 0, len(p.handlers))
	for t := range p.handlers {
		types = append(types, t)
	}
	return types
}

// AddTask creates a task and appends it to the priority queue.
// Returns the new task's ID.
func (p *Processor) AddTask(taskType string, data map[string]any, priority int) (uuid.UUID, error) {
	task, err := domain.NewTask(taskType, data, priority)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create task: %w", err)
	}

	p.mu.Lock()
	p.queue = append(p.queue, task)
	p.sortQueueLocked()
	p.mu.Unlock()

	p.logger.Info("task added",
		"task_id", task.ID,
		"task_type", taskType,
		"priority", priority)

	p.persist(context.Background())

	return task.ID, nil
}

// AddTasksBulk creates all tasks, inserts them, and re-sorts the queue
// once rather than once per task. Returns the new task IDs in input
// order. On a validation error nothing is enqueued.
func (p *Processor) AddTasksBulk(specs []TaskSpec) ([]uuid.UUID, error) {
	tasks := make([]*domain.Task, 0, len(specs))
	ids := make([]uuid.UUID, 0, len(specs))

	for i, spec := range specs {
		task, err := domain.NewTask(spec.Type, spec.Data, spec.Priority)
		if err != nil {
			return nil, fmt.Errorf("failed to create task %d: %w", i, err)
		}
		tasks = append(tasks, task)
		ids = append(ids, task.ID)
	}

	p.mu.Lock()
	p.queue = append(p.queue, tasks...)
	p.sortQueueLocked()
	p.mu.Unlock()

	p.logger.Info("tasks added in bulk", "count", len(ids))

	p.persist(context.Background())

	return ids, nil
}

// Cancel removes a still-pending task from the queue and records it as
// cancelled alongside the failures. Returns false when the task is not
// in the queue (already running, finished, or unknown), in which case
// nothing changes.
func (p *Processor) Cancel(id uuid.UUID) bool {
	p.mu.Lock()
	for i, task := range p.queue {
		if task.ID == id {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			task.MarkCancelled()
			p.failed = append(p.failed, task)
			p.mu.Unlock()

			p.logger.Info("task cancelled", "task_id", id)
			p.persist(context.Background())
			return true
		}
	}
	p.mu.Unlock()

	p.logger.Warn("cannot cancel task, not in queue", "task_id", id)
	return false
}

// TaskStatus returns a copy of the task with the given ID, searching
// all four collections. The second return value is false when no task
// with that ID exists.
func (p *Processor) TaskStatus(id uuid.UUID) (*domain.Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if task, ok := p.running[id]; ok {
		return task.Clone(), true
	}
	for _, list := range [][]*domain.Task{p.queue, p.completed, p.failed} {
		for _, task := range list {
			if task.ID == id {
				return task.Clone(), true
			}
		}
	}

	return nil, false
}

// ClearCompleted drops the completed collection to bound memory and
// returns how many tasks were dropped.
func (p *Processor) ClearCompleted() int {
	p.mu.Lock()
	count := len(p.completed)
	p.completed = p.completed[:0]
	p.mu.Unlock()

	p.logger.Info("cleared completed tasks", "count", count)

	p.persist(context.Background())
	return count
}

// Restore loads the previous snapshot, if any, into the processor.
// Queued, completed, and failed tasks come back as they were saved.
// Tasks that were running when the snapshot was taken were interrupted
// mid-flight, so they are re-queued as pending rather than dropped;
// their start time is cleared because the next attempt starts a fresh
// execution.
func (p *Processor) Restore(ctx context.Context) error {
	if p.snapshots == nil {
		return nil
	}

	snap, err := p.snapshots.Load(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	p.mu.Lock()
	p.queue = append(p.queue, snap.Queue...)
	p.completed = append(p.completed, snap.Completed...)
	p.failed = append(p.failed, snap.Failed...)

	for _, task := range snap.Running {
		task.Status = domain.StatusPending
		task.StartedAt = nil
		p.queue = append(p.queue, task)
	}
	p.sortQueueLocked()

	queued := len(p.queue)
	p.mu.Unlock()

	p.logger.Info("restored state from snapshot",
		"queued", queued,
		"requeued_running", len(snap.Running),
		"completed", len(snap.Completed),
		"failed", len(snap.Failed),
		"saved_at", snap.SavedAt)

	return nil
}

// sortQueueLocked keeps the queue ordered by priority descending.
// The sort is stable so tasks of equal priority keep insertion order.
// Caller must hold p.mu.
func (p *Processor) sortQueueLocked() {
	sort.SliceStable(p.queue, func(i, j int) bool {
		return p.queue[i].Priority > p.queue[j].Priority
	})
}

// persist writes the current state through the snapshot store. Failures
// are logged and swallowed: durability is best-effort and must never
// affect the in-memory outcome of the operation that triggered it.
func (p *Processor) persist(ctx context.Context) {
	if !p.cfg.SaveState || p.snapshots == nil {
		return
	}

	p.mu.Lock()
	snap := &store.Snapshot{
		Queue:     cloneTasks(p.queue),
		Running:   make([]*domain.Task, 0, len(p.running)),
		Completed: cloneTasks(p.completed),
		Failed:    cloneTasks(p.failed),
		SavedAt:   time.Now().UTC(),
	}
	for _, task := range p.running {
		snap.Running = append(snap.Running, task.Clone())
	}
	p.mu.Unlock()

	if err := p.snapshots.Save(ctx, snap); err != nil {
		p.logger.Error("failed to save state", "error", err)
	}
}

func cloneTasks(tasks []*domain.Task) []*domain.Task {
	cloned := make([]*domain.Task, len(tasks))
	for i, task := range tasks {
		cloned[i] = task.Clone()
	}
	return cloned
}
