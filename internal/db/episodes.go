package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mediadigest/internal/models"
)

// ErrStateConflict is returned by conditional updates when the stored status
// no longer matches the expected one. Another worker owns the run; callers
// drop the work instead of surfacing the error.
var ErrStateConflict = errors.New("episode state conflict")

// NewEpisode carries everything known about an episode on first sight.
type NewEpisode struct {
	Fingerprint string
	URL         string
	SourceID    *int
	Title       *string
	AudioURL    *string
	PublishedAt *time.Time
}

// GetOrCreateEpisode inserts an episode for a fingerprint never seen before,
// or returns the existing row. The unique index on fingerprint makes this
// atomic: under concurrent submission of the same content exactly one caller
// sees created=true.
func GetOrCreateEpisode(e NewEpisode) (models.Episode, bool, error) {
	episode := models.Episode{}
	err := DB.Get(&episode, `
		INSERT INTO episodes (fingerprint, url, source_id, title, audio_url, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING *`,
		e.Fingerprint, e.URL, e.SourceID, e.Title, e.AudioURL, e.PublishedAt)
	if err == nil {
		return episode, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return episode, false, fmt.Errorf("insert episode: %w", err)
	}

	// Conflict: the fingerprint already exists, possibly inserted a moment
	// ago by a concurrent submission.
	err = DB.Get(&episode, "SELECT * FROM episodes WHERE fingerprint = $1", e.Fingerprint)
	if err != nil {
		return episode, false, fmt.Errorf("load episode by fingerprint: %w", err)
	}
	return episode, false, nil
}

func GetEpisodeByID(id int) (models.Episode, error) {
	episode := models.Episode{}
	err := DB.Get(&episode, "SELECT * FROM episodes WHERE id = $1", id)
	return episode, err
}

// StagePayload carries the artifacts persisted together with a state change.
// Nil fields leave the stored column untouched.
type StagePayload struct {
	Title      *string
	AudioURL   *string
	Transcript *string
	Summary    *string
}

// AdvanceEpisode moves an episode from expected to next in one conditional
// update. Zero rows affected means the stored status was not the expected
// one and the caller lost the race: ErrStateConflict.
func AdvanceEpisode(id int, expected, next models.EpisodeStatus, p StagePayload) error {
	res, err := DB.Exec(`
		UPDATE episodes
		SET status = $1,
		    title = COALESCE($2, title),
		    audio_url = COALESCE($3, audio_url),
		    transcript = COALESCE($4, transcript),
		    summary = COALESCE($5, summary),
		    processed_at = CASE WHEN $1 = 'COMPLETED' THEN NOW() ELSE processed_at END,
		    updated_at = NOW()
		WHERE id = $6 AND status = $7`,
		next, p.Title, p.AudioURL, p.Transcript, p.Summary, id, expected)
	if err != nil {
		return fmt.Errorf("advance episode %d to %s: %w", id, next, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance episode %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}

// MarkEpisodeFailed is the unconditional terminal write. It always succeeds
// regardless of the current status.
func MarkEpisodeFailed(id int, reason string) error {
	_, err := DB.Exec(`
		UPDATE episodes
		SET status = 'FAILED', failure_reason = $1, updated_at = NOW()
		WHERE id = $2`, reason, id)
	return err
}

// ResetEpisodeForRetry puts a failed episode back at the start of the
// pipeline. Only FAILED episodes may be reset.
func ResetEpisodeForRetry(id int) error {
	res, err := DB.Exec(`
		UPDATE episodes
		SET status = 'PENDING', failure_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'FAILED'`, id)
	if err != nil {
		return fmt.Errorf("reset episode %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}
