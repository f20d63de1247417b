package handlers_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"mediadigest/internal/handlers"
	"mediadigest/internal/models"
	"mediadigest/internal/test"
	"mediadigest/pkg/tasks"
)

func episodeRow(id int, status models.EpisodeStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(test.EpisodeColumns).
		AddRow(id, nil, "fp", "https://youtube.com/watch?v=dQw4w9WgXcQ", nil, nil,
			nil, nil, string(status), nil, nil, nil, now, now)
}

func submit(t *testing.T, h *handlers.Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.PostSubmit(rr, req)
	return rr
}

func TestPostSubmitNewEpisode(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`INSERT INTO episodes`).WillReturnRows(episodeRow(1, models.StatusPending))

	enqueuer := &test.MockTaskEnqueuer{}
	h := handlers.New(enqueuer)

	rr := submit(t, h, `{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "processing started", resp["message"])
	assert.Equal(t, float64(1), resp["episode_id"])

	assert.Len(t, enqueuer.EnqueuedTasks, 1)
	assert.Equal(t, tasks.TypeProcessEpisode, enqueuer.EnqueuedTasks[0].Type())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostSubmitDuplicateAttachesToExisting(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`INSERT INTO episodes`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE fingerprint = \$1`).
		WillReturnRows(episodeRow(1, models.StatusTranscribing))

	enqueuer := &test.MockTaskEnqueuer{}
	h := handlers.New(enqueuer)

	// A short youtu.be link for the same video lands on the same episode.
	rr := submit(t, h, `{"url": "https://youtu.be/dQw4w9WgXcQ"}`)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "already processing", resp["message"])
	assert.Empty(t, enqueuer.EnqueuedTasks, "duplicates never start a second run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostSubmitCompletedEpisode(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`INSERT INTO episodes`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE fingerprint = \$1`).
		WillReturnRows(episodeRow(1, models.StatusCompleted))

	h := handlers.New(&test.MockTaskEnqueuer{})
	rr := submit(t, h, `{"url": "https://youtu.be/dQw4w9WgXcQ"}`)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "summary already available", resp["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostSubmitResubmitFailedEpisodeRetries(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`INSERT INTO episodes`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE fingerprint = \$1`).
		WillReturnRows(episodeRow(1, models.StatusFailed))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enqueuer := &test.MockTaskEnqueuer{}
	h := handlers.New(enqueuer)
	rr := submit(t, h, `{"url": "https://youtu.be/dQw4w9WgXcQ"}`)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "retrying failed episode", resp["message"])
	assert.Equal(t, string(models.StatusPending), resp["status"])
	assert.Len(t, enqueuer.EnqueuedTasks, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostSubmitInvalidURL(t *testing.T) {
	h := handlers.New(&test.MockTaskEnqueuer{})

	for _, body := range []string{
		`{"url": ""}`,
		`{"url": "not a url"}`,
		`not json`,
	} {
		rr := submit(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestGetEpisodeStatus(t *testing.T) {
	_, mock := test.NewMockDB(t)

	now := time.Now()
	reason := "content unavailable: video removed"
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(test.EpisodeColumns).
			AddRow(1, nil, "fp", "https://youtu.be/dQw4w9WgXcQ", nil, nil,
				nil, nil, string(models.StatusFailed), reason, nil, nil, now, now))

	h := handlers.New(&test.MockTaskEnqueuer{})
	req := httptest.NewRequest(http.MethodGet, "/episodes/1/status", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	rr := httptest.NewRecorder()
	h.GetEpisodeStatus(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, string(models.StatusFailed), resp["status"])
	assert.Equal(t, false, resp["has_summary"])
	assert.Equal(t, reason, resp["failure_reason"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEpisodeReportsSubscribers(t *testing.T) {
	_, mock := test.NewMockDB(t)

	now := time.Now()
	summary := "Key points here."
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(test.EpisodeColumns).
			AddRow(1, 5, "fp", "https://youtu.be/dQw4w9WgXcQ", "A Talk", nil,
				nil, summary, string(models.StatusCompleted), nil, nil, now, now, now))
	// Union of direct episode subscribers and the source's standing ones.
	mock.ExpectQuery(`SELECT DISTINCT user_id FROM subscriptions`).
		WithArgs(1, 5).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(1)).AddRow(int64(2)))

	h := handlers.New(&test.MockTaskEnqueuer{})
	req := httptest.NewRequest(http.MethodGet, "/episodes/1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	rr := httptest.NewRecorder()
	h.GetEpisode(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["subscribers"])
	assert.Equal(t, summary, resp["summary"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEpisodeNotFound(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	h := handlers.New(&test.MockTaskEnqueuer{})
	req := httptest.NewRequest(http.MethodGet, "/episodes/99", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "99"})
	rr := httptest.NewRecorder()
	h.GetEpisode(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostReprocessNonFailedEpisodeConflicts(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs(1).
		WillReturnRows(episodeRow(1, models.StatusCompleted))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	h := handlers.New(&test.MockTaskEnqueuer{})
	req := httptest.NewRequest(http.MethodPost, "/episodes/1/reprocess", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	rr := httptest.NewRecorder()
	h.PostReprocess(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
