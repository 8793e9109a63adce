package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/batchq/internal/domain"
	"github.com/phrazzld/batchq/internal/store"
)

// Collection buckets as stored in the batch_tasks.bucket column.
const (
	bucketQueue     = "queue"
	bucketRunning   = "running"
	bucketCompleted = "completed"
	bucketFailed    = "failed"
)

// SnapshotStore implements the store.SnapshotStore interface using a
// PostgreSQL database as the storage backend. Each Save replaces the
// whole snapshot transactionally, so Load always sees a consistent
// point-in-time state.
type SnapshotStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSnapshotStore creates a new PostgreSQL implementation of the
// SnapshotStore interface. The database connection should be
// initialized and managed by the caller.
// If logger is nil, the default logger is used.
func NewSnapshotStore(db *sql.DB, logger *slog.Logger) *SnapshotStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SnapshotStore{
		db:     db,
		logger: logger.With(slog.String("component", "snapshot_store")),
	}
}

// Ensure SnapshotStore implements store.SnapshotStore interface
var _ store.SnapshotStore = (*SnapshotStore)(nil)

// Save replaces the persisted snapshot with the provided one inside a
// single transaction.
func (s *SnapshotStore) Save(ctx context.Context, snap *store.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_tasks`); err != nil {
		return MapError(err)
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	metaQuery := `
		INSERT INTO batch_snapshots (id, saved_at)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET saved_at = EXCLUDED.saved_at
	`
	if _, err := tx.ExecContext(ctx, metaQuery, savedAt); err != nil {
		return MapError(err)
	}

	buckets := []struct {
		name  string
		tasks []*domain.Task
	}{
		{bucketQueue, snap.Queue},
		{bucketRunning, snap.Running},
		{bucketCompleted, snap.Completed},
		{bucketFailed, snap.Failed},
	}

	insertQuery := `
		INSERT INTO batch_tasks
			(id, task_type, data, status, priority, created_at, started_at,
			 completed_at, error, result, retry_count, bucket, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for _, b := range buckets {
		for i, task := range b.tasks {
			data, err := marshalJSONB(task.Data)
			if err != nil {
				return fmt.Errorf("failed to encode task data: %w", err)
			}
			result, err := marshalJSONB(task.Result)
			if err != nil {
				return fmt.Errorf("failed to encode task result: %w", err)
			}

			_, err = tx.ExecContext(ctx, insertQuery,
				task.ID,
				task.Type,
				data,
				task.Status,
				task.Priority,
				task.CreatedAt,
				task.StartedAt,
				task.CompletedAt,
				nullString(task.Error),
				result,
				task.RetryCount,
				b.name,
				i,
			)
			if err != nil {
				return MapError(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}

	return nil
}

// Load reconstructs the most recent snapshot from the database.
// Returns store.ErrNoSnapshot when no snapshot has ever been saved.
func (s *SnapshotStore) Load(ctx context.Context) (*store.Snapshot, error) {
	snap := &store.Snapshot{
		Queue:     []*domain.Task{},
		Running:   []*domain.Task{},
		Completed: []*domain.Task{},
		Failed:    []*domain.Task{},
	}

	err := s.db.QueryRowContext(ctx, `SELECT saved_at FROM batch_snapshots WHERE id = 1`).
		Scan(&snap.SavedAt)
	if err != nil {
		return nil, MapError(err)
	}

	query := `
		SELECT id, task_type, data, status, priority, created_at, started_at,
		       completed_at, error, result, retry_count, bucket
		FROM batch_tasks
		ORDER BY bucket, position
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			task        domain.Task
			id          uuid.UUID
			data        []byte
			result      []byte
			startedAt   sql.NullTime
			completedAt sql.NullTime
			errMsg      sql.NullString
			bucket      string
		)

		err := rows.Scan(&id, &task.Type, &data, &task.Status, &task.Priority,
			&task.CreatedAt, &startedAt, &completedAt, &errMsg, &result,
			&task.RetryCount, &bucket)
		if err != nil {
			return nil, MapError(err)
		}

		task.ID = id
		if startedAt.Valid {
			ts := startedAt.Time
			task.StartedAt = &ts
		}
		if completedAt.Valid {
			ts := completedAt.Time
			task.CompletedAt = &ts
		}
		if errMsg.Valid {
			task.Error = errMsg.String
		}
		if task.Data, err = unmarshalJSONB(data); err != nil {
			return nil, fmt.Errorf("%w: task %s data", store.ErrInvalidSnapshot, id)
		}
		if task.Result, err = unmarshalJSONB(result); err != nil {
			return nil, fmt.Errorf("%w: task %s result", store.ErrInvalidSnapshot, id)
		}

		switch bucket {
		case bucketQueue:
			snap.Queue = append(snap.Queue, &task)
		case bucketRunning:
			snap.Running = append(snap.Running, &task)
		case bucketCompleted:
			snap.Completed = append(snap.Completed, &task)
		case bucketFailed:
			snap.Failed = append(snap.Failed, &task)
		default:
			s.logger.Warn("ignoring task in unknown bucket",
				slog.String("task_id", id.String()),
				slog.String("bucket", bucket))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return snap, nil
}

func marshalJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONB(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
