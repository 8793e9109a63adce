package api

import (
	"time"

	"github.com/phrazzld/batchq/internal/domain"
)

// Common request/response structures

// AddTaskRequest defines the payload for the single-task enqueue endpoint.
type AddTaskRequest struct {
	TaskType string         `json:"task_type" validate:"required,min=1"`
	Data     map[string]any `json:"data"`
	Priority int            `json:"priority"`
}

// AddTaskResponse defines the successful response for the enqueue endpoint.
type AddTaskResponse struct {
	TaskID string `json:"task_id"`
}

// AddTasksBulkRequest defines the payload for the bulk enqueue endpoint.
type AddTasksBulkRequest struct {
	Tasks []AddTaskRequest `json:"tasks" validate:"required,min=1,dive"`
}

// AddTasksBulkResponse defines the successful response for the bulk
// enqueue endpoint. Task IDs are returned in input order.
type AddTasksBulkResponse struct {
	TaskIDs []string `json:"task_ids"`
}

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ClearCompletedResponse reports how many tasks were dropped.
type ClearCompletedResponse struct {
	Cleared int `json:"cleared"`
}

// ExportRequest defines the payload for the results export endpoint.
type ExportRequest struct {
	Path string `json:"path" validate:"required"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID          string         `json:"id"`
	TaskType    string         `json:"task_type"`
	Data        map[string]any `json:"data,omitempty"`
	Status      string         `json:"status"`
	Priority    int            `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	RetryCount  int            `json:"retry_count"`
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID.String(),
		TaskType:    task.Type,
		Data:        task.Data,
		Status:      string(task.Status),
		Priority:    task.Priority,
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
		Error:       task.Error,
		Result:      task.Result,
		RetryCount:  task.RetryCount,
	}
}
