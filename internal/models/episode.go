package models

import "time"

// EpisodeStatus is the pipeline state machine. Stages only ever move
// forward; any state may drop to FAILED with a recorded reason.
type EpisodeStatus string

const (
	StatusPending      EpisodeStatus = "PENDING"
	StatusExtracting   EpisodeStatus = "EXTRACTING"
	StatusTranscribing EpisodeStatus = "TRANSCRIBING"
	StatusSummarizing  EpisodeStatus = "SUMMARIZING"
	StatusCompleted    EpisodeStatus = "COMPLETED"
	StatusFailed       EpisodeStatus = "FAILED"
)

// Terminal reports whether the pipeline is done with this status.
func (s EpisodeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Episode struct {
	ID            int           `db:"id"`
	SourceID      *int          `db:"source_id"`
	Fingerprint   string        `db:"fingerprint"`
	URL           string        `db:"url"`
	Title         *string       `db:"title"`
	AudioURL      *string       `db:"audio_url"`
	Transcript    *string       `db:"transcript"`
	Summary       *string       `db:"summary"`
	Status        EpisodeStatus `db:"status"`
	FailureReason *string       `db:"failure_reason"`
	PublishedAt   *time.Time    `db:"published_at"`
	ProcessedAt   *time.Time    `db:"processed_at"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}
