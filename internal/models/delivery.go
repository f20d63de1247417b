package models

import "time"

// DeliveryStatus is the outcome of a fan-out attempt for one
// (user, episode, channel) triple.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

// DeliveryRecord is created the first time fan-out is attempted and is
// unique per (user, episode, channel), which is what makes retries safe.
type DeliveryRecord struct {
	ID        int            `db:"id"`
	UserID    int64          `db:"user_id"`
	EpisodeID int            `db:"episode_id"`
	Channel   Channel        `db:"channel"`
	Status    DeliveryStatus `db:"status"`
	Attempts  int            `db:"attempts"`
	LastError *string        `db:"last_error"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}
