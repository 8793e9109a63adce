package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/batchq/internal/batch"
)

func testProcessor() *batch.Processor {
	cfg := batch.DefaultConfig()
	cfg.RetryDelay = 0
	cfg.PollInterval = 5 * time.Millisecond
	cfg.SaveState = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return batch.New(cfg, nil, logger)
}

func testServer(t *testing.T, p *batch.Processor) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(NewRouter(NewTaskHandler(p), nil))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	defer func() {
		_ = resp.Body.Close()
	}()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestTaskHandler_AddTask(t *testing.T) {
	t.Parallel()

	t.Run("valid request returns accepted with id", func(t *testing.T) {
		t.Parallel()

		p := testProcessor()
		server := testServer(t, p)

		resp := postJSON(t, server.URL+"/api/tasks", AddTaskRequest{
			TaskType: "generate_video",
			Data:     map[string]any{"topic_id": 1},
			Priority: 2,
		})

		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body AddTaskResponse
		decodeBody(t, resp, &body)

		id, err := uuid.Parse(body.TaskID)
		require.NoError(t, err)

		task, ok := p.TaskStatus(id)
		require.True(t, ok)
		assert.Equal(t, "generate_video", task.Type)
		assert.Equal(t, 2, task.Priority)
	})

	t.Run("missing task type is rejected", func(t *testing.T) {
		t.Parallel()

		server := testServer(t, testProcessor())

		resp := postJSON(t, server.URL+"/api/tasks", map[string]any{
			"data": map[string]any{"x": 1},
		})
		defer func() {
			_ = resp.Body.Close()
		}()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		t.Parallel()

		server := testServer(t, testProcessor())

		resp, err := http.Post(server.URL+"/api/tasks", "application/json",
			bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTaskHandler_AddTasksBulk(t *testing.T) {
	t.Parallel()

	t.Run("enqueues all tasks", func(t *testing.T) {
		t.Parallel()

		p := testProcessor()
		server := testServer(t, p)

		resp := postJSON(t, server.URL+"/api/tasks/bulk", AddTasksBulkRequest{
			Tasks: []AddTaskRequest{
				{TaskType: "generate_video", Priority: 1},
				{TaskType: "upload_video"},
			},
		})

		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body AddTasksBulkResponse
		decodeBody(t, resp, &body)
		assert.Len(t, body.TaskIDs, 2)
		assert.Equal(t, 2, p.QueueStatus().Pending)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		t.Parallel()

		server := testServer(t, testProcessor())

		resp := postJSON(t, server.URL+"/api/tasks/bulk", AddTasksBulkRequest{})
		defer func() {
			_ = resp.Body.Close()
		}()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTaskHandler_GetTask(t *testing.T) {
	t.Parallel()

	p := testProcessor()
	server := testServer(t, p)

	id, err := p.AddTask("generate_video", map[string]any{"title": "Video 1"}, 0)
	require.NoError(t, err)

	t.Run("existing task", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Get(server.URL + "/api/tasks/" + id.String())
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body TaskResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, id.String(), body.ID)
		assert.Equal(t, "pending", body.Status)
		assert.Equal(t, "generate_video", body.TaskType)
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Get(server.URL + "/api/tasks/" + uuid.NewString())
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed id", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Get(server.URL + "/api/tasks/not-a-uuid")
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func deleteRequest(t *testing.T, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestTaskHandler_CancelTask(t *testing.T) {
	t.Parallel()

	t.Run("pending task is cancelled", func(t *testing.T) {
		t.Parallel()

		p := testProcessor()
		server := testServer(t, p)

		id, err := p.AddTask("generate_video", nil, 0)
		require.NoError(t, err)

		resp := deleteRequest(t, server.URL+"/api/tasks/"+id.String())
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body CancelResponse
		decodeBody(t, resp, &body)
		assert.True(t, body.Cancelled)
	})

	t.Run("completed task conflicts", func(t *testing.T) {
		t.Parallel()

		p := testProcessor()
		server := testServer(t, p)

		p.Register("noop", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			return nil, nil
		})
		id, err := p.AddTask("noop", nil, 0)
		require.NoError(t, err)
		require.NoError(t, p.ProcessQueue(context.Background()))

		resp := deleteRequest(t, server.URL+"/api/tasks/"+id.String())
		defer func() {
			_ = resp.Body.Close()
		}()

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown task is not found", func(t *testing.T) {
		t.Parallel()

		server := testServer(t, testProcessor())

		resp := deleteRequest(t, server.URL+"/api/tasks/"+uuid.NewString())
		defer func() {
			_ = resp.Body.Close()
		}()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestTaskHandler_QueueStatus(t *testing.T) {
	t.Parallel()

	p := testProcessor()
	server := testServer(t, p)

	_, err := p.AddTask("generate_video", nil, 0)
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/api/queue/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats batch.Stats
	decodeBody(t, resp, &stats)
	assert.Equal(t, batch.Stats{Pending: 1, Total: 1}, stats)
}

func TestTaskHandler_ClearCompleted(t *testing.T) {
	t.Parallel()

	p := testProcessor()
	server := testServer(t, p)

	p.Register("noop", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return nil, nil
	})
	_, err := p.AddTask("noop", nil, 0)
	require.NoError(t, err)
	require.NoError(t, p.ProcessQueue(context.Background()))

	resp := deleteRequest(t, server.URL+"/api/tasks/completed")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ClearCompletedResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, 1, body.Cleared)
	assert.Equal(t, 0, p.QueueStatus().Completed)
}

func TestTaskHandler_Export(t *testing.T) {
	t.Parallel()

	p := testProcessor()
	server := testServer(t, p)

	p.Register("noop", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	})
	_, err := p.AddTask("noop", nil, 0)
	require.NoError(t, err)
	require.NoError(t, p.ProcessQueue(context.Background()))

	path := filepath.Join(t.TempDir(), "results.json")
	resp := postJSON(t, server.URL+"/api/export", ExportRequest{Path: path})
	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.FileExists(t, path)
}
