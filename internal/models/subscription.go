package models

import "time"

// Subscription relates a user to a source (standing) or directly to an
// episode (one-off submission). Exactly one of SourceID/EpisodeID is set.
type Subscription struct {
	ID        int       `db:"id"`
	UserID    int64     `db:"user_id"`
	SourceID  *int      `db:"source_id"`
	EpisodeID *int      `db:"episode_id"`
	CreatedAt time.Time `db:"created_at"`
}
