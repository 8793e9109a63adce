package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a batch task.
type Status string

// Possible task status values. The lowercase strings are the wire and
// snapshot-file representation and must not change.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID   = errors.New("task ID cannot be empty")
	ErrEmptyTaskType = errors.New("task type cannot be empty")
	ErrInvalidStatus = errors.New("invalid task status")
)

// Task represents a single unit of work in the batch queue. Identity,
// type, payload, and priority are fixed at creation; status, timestamps,
// and the outcome fields evolve as the task is processed.
//
// The JSON field names match the snapshot-file format and must stay
// stable for compatibility with previously persisted state.
type Task struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"task_type"`
	Data        map[string]any `json:"data"`
	Status      Status         `json:"status"`
	Priority    int            `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	RetryCount  int            `json:"retry_count"`
}

// NewTask creates a new Task with the given type, payload, and priority.
// It generates a new UUID for the task ID, sets the status to pending,
// and sets the creation timestamp.
// Returns an error if validation fails.
func NewTask(taskType string, data map[string]any, priority int) (*Task, error) {
	task := &Task{
		ID:        uuid.New(),
		Type:      taskType,
		Data:      data,
		Status:    StatusPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Type == "" {
		return ErrEmptyTaskType
	}

	if !isValidStatus(t.Status) {
		return ErrInvalidStatus
	}

	return nil
}

// MarkRunning transitions the task to running and records the start
// time. The start time is set once; a retry re-attempt keeps the
// original value.
func (t *Task) MarkRunning() {
	t.Status = StatusRunning
	if t.StartedAt == nil {
		now := time.Now().UTC()
		t.StartedAt = &now
	}
}

// MarkCompleted transitions the task to completed with the handler's
// result payload and records the completion time.
func (t *Task) MarkCompleted(result map[string]any) {
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.Result = result
	t.CompletedAt = &now
}

// MarkFailed transitions the task to failed and records the cause of
// the last failed attempt.
func (t *Task) MarkFailed(cause string) {
	t.Status = StatusFailed
	t.Error = cause
}

// MarkCancelled transitions a still-pending task to cancelled.
func (t *Task) MarkCancelled() {
	t.Status = StatusCancelled
}

// Terminal reports whether the task is in an absorbing state from which
// no further transition occurs.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted ||
		t.Status == StatusFailed ||
		t.Status == StatusCancelled
}

// Clone returns a deep copy of the task. Callers reading task state
// while the processor is running receive clones so they cannot mutate
// live scheduler state.
func (t *Task) Clone() *Task {
	c := *t
	c.Data = cloneMap(t.Data)
	c.Result = cloneMap(t.Result)
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// isValidStatus checks if the provided status is one of the defined values.
func isValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
