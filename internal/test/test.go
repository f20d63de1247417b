package test

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"mediadigest/internal/db"
)

// MockTaskEnqueuer records enqueued tasks and can simulate enqueue errors.
type MockTaskEnqueuer struct {
	EnqueuedTasks []*asynq.Task
	Err           error
}

func (m *MockTaskEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.EnqueuedTasks = append(m.EnqueuedTasks, task)
	return &asynq.TaskInfo{ID: "test-task-id", Queue: "default"}, nil
}

// NewMockDB swaps the package-level db connection for a sqlmock and
// restores it when the test finishes.
func NewMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	sqlxDB := sqlx.NewDb(mockDb, "sqlmock")

	originalDB := db.DB
	db.DB = sqlxDB
	t.Cleanup(func() {
		db.DB = originalDB
		mockDb.Close()
	})

	return sqlxDB, mock
}

// EpisodeColumns matches SELECT * scans of the episodes table.
var EpisodeColumns = []string{
	"id", "source_id", "fingerprint", "url", "title", "audio_url",
	"transcript", "summary", "status", "failure_reason",
	"published_at", "processed_at", "created_at", "updated_at",
}

// SourceColumns matches SELECT * scans of the sources table.
var SourceColumns = []string{
	"id", "url", "name", "kind", "enabled", "last_polled_at", "created_at",
}

// UserColumns matches SELECT * scans of the users table.
var UserColumns = []string{
	"id", "email", "telegram_chat_id", "channel", "digest_hour",
	"digest_uuid", "created_at", "updated_at",
}

// DeliveryColumns matches SELECT * scans of the delivery_records table.
var DeliveryColumns = []string{
	"id", "user_id", "episode_id", "channel", "status", "attempts",
	"last_error", "created_at", "updated_at",
}
