package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phrazzld/batchq/internal/api/shared"
	"github.com/phrazzld/batchq/internal/batch"
	"github.com/phrazzld/batchq/internal/domain"
)

// BatchProcessor is the slice of the processor API the HTTP layer
// needs. Satisfied by *batch.Processor.
type BatchProcessor interface {
	AddTask(taskType string, data map[string]any, priority int) (uuid.UUID, error)
	AddTasksBulk(specs []batch.TaskSpec) ([]uuid.UUID, error)
	Cancel(id uuid.UUID) bool
	TaskStatus(id uuid.UUID) (*domain.Task, bool)
	QueueStatus() batch.Stats
	ClearCompleted() int
	ExportResults(path string) error
}

// TaskHandler handles task queue HTTP requests.
type TaskHandler struct {
	processor BatchProcessor
	validator *validator.Validate
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(processor BatchProcessor) *TaskHandler {
	return &TaskHandler{
		processor: processor,
		validator: validator.New(),
	}
}

// AddTask handles POST /api/tasks requests.
func (h *TaskHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	var req AddTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	id, err := h.processor.AddTask(req.TaskType, req.Data, req.Priority)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyTaskType) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Task type is required")
			return
		}
		slog.Error("failed to add task", "error", err, "task_type", req.TaskType)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to add task")
		return
	}

	// 202 because execution happens asynchronously.
	shared.RespondWithJSON(w, r, http.StatusAccepted, AddTaskResponse{TaskID: id.String()})
}

// AddTasksBulk handles POST /api/tasks/bulk requests.
func (h *TaskHandler) AddTasksBulk(w http.ResponseWriter, r *http.Request) {
	var req AddTasksBulkRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	specs := make([]batch.TaskSpec, len(req.Tasks))
	for i, task := range req.Tasks {
		specs[i] = batch.TaskSpec{
			Type:     task.TaskType,
			Data:     task.Data,
			Priority: task.Priority,
		}
	}

	ids, err := h.processor.AddTasksBulk(specs)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyTaskType) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Task type is required for every task")
			return
		}
		slog.Error("failed to add tasks in bulk", "error", err, "count", len(specs))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to add tasks")
		return
	}

	resp := AddTasksBulkResponse{TaskIDs: make([]string, len(ids))}
	for i, id := range ids {
		resp.TaskIDs[i] = id.String()
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, resp)
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, ok := h.processor.TaskStatus(id)
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// CancelTask handles DELETE /api/tasks/{id} requests. Only tasks that
// are still pending can be cancelled; anything else is a conflict.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if h.processor.Cancel(id) {
		shared.RespondWithJSON(w, r, http.StatusOK, CancelResponse{Cancelled: true})
		return
	}

	if _, ok := h.processor.TaskStatus(id); !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	shared.RespondWithError(w, r, http.StatusConflict, "Task is no longer pending")
}

// QueueStatus handles GET /api/queue/status requests.
func (h *TaskHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.processor.QueueStatus())
}

// ClearCompleted handles DELETE /api/tasks/completed requests.
func (h *TaskHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	cleared := h.processor.ClearCompleted()
	shared.RespondWithJSON(w, r, http.StatusOK, ClearCompletedResponse{Cleared: cleared})
}

// Export handles POST /api/export requests, writing completed and
// failed tasks to a server-side file.
func (h *TaskHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.processor.ExportResults(req.Path); err != nil {
		slog.Error("failed to export results", "error", err, "path", req.Path)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to export results")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"path": req.Path})
}
