package poller_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"mediadigest/internal/fingerprint"
	"mediadigest/internal/models"
	"mediadigest/internal/poller"
	"mediadigest/internal/test"
)

type fakeFetcher struct {
	entries []poller.Entry
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ models.Source) ([]poller.Entry, error) {
	return f.entries, f.err
}

func newEpisodeRow(id int, fp string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(test.EpisodeColumns).
		AddRow(id, 1, fp, "https://example.com/ep", nil, nil,
			nil, nil, string(models.StatusPending), nil, nil, nil, now, now)
}

func TestPollEnqueuesOnlyNewEntries(t *testing.T) {
	_, mock := test.NewMockDB(t)

	// First entry is new, second already known.
	mock.ExpectQuery(`INSERT INTO episodes`).WillReturnRows(newEpisodeRow(10, "fp-new"))
	mock.ExpectQuery(`INSERT INTO episodes`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE fingerprint = \$1`).
		WithArgs("fp-known").
		WillReturnRows(newEpisodeRow(11, "fp-known"))
	mock.ExpectExec(`UPDATE sources SET last_polled_at`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enqueuer := &test.MockTaskEnqueuer{}
	p := poller.New(&fakeFetcher{entries: []poller.Entry{
		{Fingerprint: "fp-new", URL: "https://example.com/new"},
		{Fingerprint: "fp-known", URL: "https://example.com/known"},
	}}, enqueuer)

	created, err := p.Poll(context.Background(), models.Source{ID: 1, Kind: models.KindPodcastFeed})

	assert.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Len(t, enqueuer.EnqueuedTasks, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPollFetchFailureLeavesTimestamp(t *testing.T) {
	_, mock := test.NewMockDB(t)

	enqueuer := &test.MockTaskEnqueuer{}
	p := poller.New(&fakeFetcher{err: assert.AnError}, enqueuer)

	_, err := p.Poll(context.Background(), models.Source{ID: 1, Kind: models.KindPodcastFeed})

	assert.Error(t, err)
	assert.Empty(t, enqueuer.EnqueuedTasks)
	// No UPDATE of last_polled_at was expected, so the mock must be clean.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtractYouTubeChannelID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/feeds/videos.xml?channel_id=UCBa659QWEk1AI4Tg--mrJ2A": "UCBa659QWEk1AI4Tg--mrJ2A",
		"https://www.youtube.com/channel/UCBa659QWEk1AI4Tg--mrJ2A":                      "UCBa659QWEk1AI4Tg--mrJ2A",
		"https://www.youtube.com/channel/UCBa659QWEk1AI4Tg--mrJ2A/videos":               "UCBa659QWEk1AI4Tg--mrJ2A",
		"UCBa659QWEk1AI4Tg--mrJ2A":                                                      "UCBa659QWEk1AI4Tg--mrJ2A",
	}
	for url, want := range cases {
		got, err := poller.ExtractYouTubeChannelID(url)
		assert.NoError(t, err, url)
		assert.Equal(t, want, got, url)
	}

	_, err := poller.ExtractYouTubeChannelID("https://www.youtube.com/@somehandle")
	assert.ErrorIs(t, err, fingerprint.ErrInvalidURL)
}
