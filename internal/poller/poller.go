// Package poller checks registered sources for new episodes. Polling is
// stateless beyond "what episodes exist now vs. last known": a skipped or
// delayed tick is caught up by the next one.
package poller

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"mediadigest/internal/db"
	"mediadigest/internal/fingerprint"
	"mediadigest/internal/models"
	"mediadigest/internal/pipeline"
	"mediadigest/pkg/tasks"
)

const youtubeFeedTemplate = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

// Entry is one feed item reduced to what the episode store needs.
type Entry struct {
	Fingerprint string
	URL         string
	Title       *string
	AudioURL    *string
	PublishedAt *time.Time
}

// FeedFetcher retrieves the current entry list for a source.
type FeedFetcher interface {
	Fetch(ctx context.Context, source models.Source) ([]Entry, error)
}

// GofeedFetcher parses YouTube channel feeds and podcast RSS with gofeed.
type GofeedFetcher struct {
	parser *gofeed.Parser
}

func NewGofeedFetcher() *GofeedFetcher {
	return &GofeedFetcher{parser: gofeed.NewParser()}
}

func (f *GofeedFetcher) Fetch(ctx context.Context, source models.Source) ([]Entry, error) {
	var feedURL string
	switch source.Kind {
	case models.KindChannelFeed:
		channelID, err := ExtractYouTubeChannelID(source.URL)
		if err != nil {
			return nil, err
		}
		feedURL = fmt.Sprintf(youtubeFeedTemplate, channelID)
	case models.KindPodcastFeed:
		feedURL = source.URL
	default:
		// Single-video sources have nothing to poll.
		return nil, nil
	}

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch feed %s: %v", pipeline.ErrTransient, feedURL, err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" && item.GUID == "" {
			continue
		}
		fp, err := fingerprint.FeedEntryFingerprint(item.GUID, item.Link)
		if err != nil {
			log.Printf("Skipping feed entry with bad link %q: %v", item.Link, err)
			continue
		}

		entry := Entry{
			Fingerprint: fp,
			URL:         item.Link,
			PublishedAt: item.PublishedParsed,
		}
		if item.Title != "" {
			title := item.Title
			entry.Title = &title
		}
		for _, enc := range item.Enclosures {
			if strings.HasPrefix(enc.Type, "audio/") {
				audioURL := enc.URL
				entry.AudioURL = &audioURL
				break
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Poller submits freshly seen feed entries as new work. Already-known
// entries are no-ops thanks to the fingerprint dedup in the episode store.
type Poller struct {
	fetcher  FeedFetcher
	enqueuer tasks.TaskEnqueuer
}

func New(fetcher FeedFetcher, enqueuer tasks.TaskEnqueuer) *Poller {
	return &Poller{fetcher: fetcher, enqueuer: enqueuer}
}

// Poll fetches the source's current entries and enqueues processing for the
// ones never seen before. Returns the number of new episodes. The source's
// last-poll timestamp moves only after a successful fetch.
func (p *Poller) Poll(ctx context.Context, source models.Source) (int, error) {
	entries, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("poll source %d: %w", source.ID, err)
	}

	created := 0
	for _, entry := range entries {
		episode, isNew, err := db.GetOrCreateEpisode(db.NewEpisode{
			Fingerprint: entry.Fingerprint,
			URL:         entry.URL,
			SourceID:    &source.ID,
			Title:       entry.Title,
			AudioURL:    entry.AudioURL,
			PublishedAt: entry.PublishedAt,
		})
		if err != nil {
			log.Printf("Failed to store episode for %q: %v", entry.URL, err)
			continue
		}
		if !isNew {
			continue
		}

		task, err := tasks.NewProcessEpisodeTask(episode.ID)
		if err != nil {
			log.Printf("Failed to create process task for episode %d: %v", episode.ID, err)
			continue
		}
		if _, err := p.enqueuer.Enqueue(task); err != nil {
			log.Printf("Failed to enqueue process task for episode %d: %v", episode.ID, err)
			continue
		}
		created++
	}

	if err := db.TouchSourcePolled(source.ID); err != nil {
		log.Printf("Failed to update last poll time for source %d: %v", source.ID, err)
	}
	return created, nil
}
