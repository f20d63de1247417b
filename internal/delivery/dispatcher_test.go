package delivery

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"mediadigest/internal/db"
	"mediadigest/internal/models"
	"mediadigest/internal/test"
)

type fakeSender struct {
	err   error
	calls int
	body  string
}

func (f *fakeSender) Send(_ context.Context, _ models.User, _, body string) error {
	f.calls++
	f.body = body
	return f.err
}

func emailUser() models.User {
	email := "reader@example.com"
	return models.User{ID: 1, Email: &email, Channel: models.ChannelEmail}
}

func completedEpisode(id int, title string) models.Episode {
	summary := "summary of " + title
	return models.Episode{ID: id, Title: &title, Summary: &summary, Status: models.StatusCompleted}
}

func deliveryRow(id, episodeID int, status models.DeliveryStatus, attempts int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(test.DeliveryColumns).
		AddRow(id, 1, episodeID, string(models.ChannelEmail), string(status), attempts, nil, now, now)
}

func TestDeliverSendsOneBatchAndMarksRecords(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`INSERT INTO delivery_records`).
		WithArgs(int64(1), 10, string(models.ChannelEmail)).
		WillReturnRows(deliveryRow(100, 10, models.DeliveryPending, 0))
	mock.ExpectQuery(`INSERT INTO delivery_records`).
		WithArgs(int64(1), 11, string(models.ChannelEmail)).
		WillReturnRows(deliveryRow(101, 11, models.DeliveryPending, 0))
	mock.ExpectExec(`UPDATE delivery_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE delivery_records`).WillReturnResult(sqlmock.NewResult(0, 1))

	sender := &fakeSender{}
	d := NewDispatcher(map[models.Channel]Sender{models.ChannelEmail: sender})

	err := d.Deliver(context.Background(), emailUser(), []models.Episode{
		completedEpisode(10, "First"),
		completedEpisode(11, "Second"),
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, sender.calls, "both episodes go out in one batched message")
	assert.Contains(t, sender.body, "First")
	assert.Contains(t, sender.body, "Second")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverSkipsAlreadySentEpisodes(t *testing.T) {
	_, mock := test.NewMockDB(t)

	// Insert conflicts, the existing record says SENT.
	mock.ExpectQuery(`INSERT INTO delivery_records`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT \* FROM delivery_records`).
		WillReturnRows(deliveryRow(100, 10, models.DeliverySent, 1))

	sender := &fakeSender{}
	d := NewDispatcher(map[models.Channel]Sender{models.ChannelEmail: sender})

	err := d.Deliver(context.Background(), emailUser(), []models.Episode{completedEpisode(10, "First")})

	assert.NoError(t, err)
	assert.Equal(t, 0, sender.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverSkipsExhaustedRecords(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`INSERT INTO delivery_records`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT \* FROM delivery_records`).
		WillReturnRows(deliveryRow(100, 10, models.DeliveryFailed, db.MaxDeliveryAttempts))

	sender := &fakeSender{}
	d := NewDispatcher(map[models.Channel]Sender{models.ChannelEmail: sender})

	err := d.Deliver(context.Background(), emailUser(), []models.Episode{completedEpisode(10, "First")})

	assert.NoError(t, err)
	assert.Equal(t, 0, sender.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverMarksFailedOnTransportError(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`INSERT INTO delivery_records`).
		WillReturnRows(deliveryRow(100, 10, models.DeliveryPending, 0))
	mock.ExpectExec(`UPDATE delivery_records`).
		WithArgs("smtp down", 100).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sender := &fakeSender{err: errors.New("smtp down")}
	d := NewDispatcher(map[models.Channel]Sender{models.ChannelEmail: sender})

	err := d.Deliver(context.Background(), emailUser(), []models.Episode{completedEpisode(10, "First")})

	assert.ErrorIs(t, err, ErrDeliveryChannel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverUserWithoutAddress(t *testing.T) {
	// Channel chosen but no address on file: refused before any record is
	// created or attempt counted.
	user := models.User{ID: 1, Channel: models.ChannelEmail}

	sender := &fakeSender{}
	d := NewDispatcher(map[models.Channel]Sender{models.ChannelEmail: sender})

	err := d.Deliver(context.Background(), user, []models.Episode{completedEpisode(10, "First")})

	assert.ErrorIs(t, err, ErrDeliveryChannel)
	assert.Equal(t, 0, sender.calls)
}

func TestDeliverUnknownChannel(t *testing.T) {
	d := NewDispatcher(map[models.Channel]Sender{})
	err := d.Deliver(context.Background(), emailUser(), []models.Episode{completedEpisode(10, "First")})
	assert.ErrorIs(t, err, ErrDeliveryChannel)
}

func TestDeliverNothingDue(t *testing.T) {
	d := NewDispatcher(map[models.Channel]Sender{})
	assert.NoError(t, d.Deliver(context.Background(), emailUser(), nil))
}
