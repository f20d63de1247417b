package models

import "time"

// SourceKind discriminates how a source is polled.
type SourceKind string

const (
	KindSingleVideo SourceKind = "single-video"
	KindChannelFeed SourceKind = "channel-feed"
	KindPodcastFeed SourceKind = "podcast-feed"
)

// Source is a pollable origin (YouTube channel or podcast RSS feed).
type Source struct {
	ID           int        `db:"id"`
	URL          string     `db:"url"`
	Name         string     `db:"name"`
	Kind         SourceKind `db:"kind"`
	Enabled      bool       `db:"enabled"`
	LastPolledAt *time.Time `db:"last_polled_at"`
	CreatedAt    time.Time  `db:"created_at"`
}
