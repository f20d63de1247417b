package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"mediadigest/internal/handlers"
	"mediadigest/internal/models"
	"mediadigest/internal/test"
)

func userRow(id int64, email string, hour int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(test.UserColumns).
		AddRow(id, email, nil, string(models.ChannelEmail), hour, "3e0f8a5c-0000-0000-0000-000000000000", now, now)
}

func TestPostUserCreates(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnRows(userRow(1, "reader@example.com", 8))

	h := handlers.New(&test.MockTaskEnqueuer{})
	req := httptest.NewRequest(http.MethodPost, "/users",
		strings.NewReader(`{"email": "reader@example.com", "channel": "email", "digest_hour": 8}`))
	rr := httptest.NewRecorder()
	h.PostUser(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["id"])
	assert.NotEmpty(t, resp["digest_uuid"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostUserValidation(t *testing.T) {
	h := handlers.New(&test.MockTaskEnqueuer{})

	cases := []string{
		`{"channel": "email", "digest_hour": 8}`,                                  // email channel without address
		`{"channel": "telegram", "digest_hour": 8}`,                               // telegram channel without chat id
		`{"email": "a@b.c", "channel": "carrier-pigeon", "digest_hour": 8}`,       // unknown channel
		`{"email": "a@b.c", "channel": "email", "digest_hour": 24}`,               // hour out of range
		`{"email": "a@b.c", "channel": "email", "digest_hour": -1}`,               // hour out of range
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
		rr := httptest.NewRecorder()
		h.PostUser(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestPostUserDefaultsDigestHour(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("reader@example.com", nil, string(models.ChannelEmail), 8, sqlmock.AnyArg()).
		WillReturnRows(userRow(1, "reader@example.com", 8))

	h := handlers.New(&test.MockTaskEnqueuer{})
	req := httptest.NewRequest(http.MethodPost, "/users",
		strings.NewReader(`{"email": "reader@example.com", "channel": "email"}`))
	rr := httptest.NewRecorder()
	h.PostUser(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostSubscribeUnknownSource(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM users WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(userRow(1, "reader@example.com", 8))
	mock.ExpectQuery(`SELECT \* FROM subscriptions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "source_id", "episode_id", "created_at"}))
	mock.ExpectQuery(`SELECT \* FROM sources WHERE id = \$1`).
		WithArgs(42).
		WillReturnError(assert.AnError)

	h := handlers.New(&test.MockTaskEnqueuer{})
	req := httptest.NewRequest(http.MethodPost, "/users/1/subscriptions", strings.NewReader(`{"source_id": 42}`))
	req = muxSetID(req, "1")
	rr := httptest.NewRecorder()
	h.PostSubscribe(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutUserSettings(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM users WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(userRow(1, "reader@example.com", 8))
	mock.ExpectExec(`UPDATE users`).
		WithArgs(string(models.ChannelEmail), 20, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := handlers.New(&test.MockTaskEnqueuer{})
	req := httptest.NewRequest(http.MethodPut, "/users/1/settings",
		strings.NewReader(`{"channel": "email", "digest_hour": 20}`))
	req = muxSetID(req, "1")
	rr := httptest.NewRecorder()
	h.PutUserSettings(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, float64(20), resp["digest_hour"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutUserSettingsKeepsStoredHourWhenOmitted(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM users WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(userRow(1, "reader@example.com", 8))
	// digest_hour absent from the body: the stored hour survives the update.
	mock.ExpectExec(`UPDATE users`).
		WithArgs(string(models.ChannelEmail), 8, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := handlers.New(&test.MockTaskEnqueuer{})
	req := httptest.NewRequest(http.MethodPut, "/users/1/settings",
		strings.NewReader(`{"channel": "email"}`))
	req = muxSetID(req, "1")
	rr := httptest.NewRecorder()
	h.PutUserSettings(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, float64(8), resp["digest_hour"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
