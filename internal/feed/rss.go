package feed

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/eduncan911/podcast"

	"mediadigest/internal/models"
)

func getBaseURL(r *http.Request) string {
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		return baseURL
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if r.Header.Get("X-Forwarded-Proto") != "" {
			scheme = r.Header.Get("X-Forwarded-Proto")
		}
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateRSS renders a user's digest queue as an RSS feed. Each item
// carries the episode summary as its description and links back to the
// original content.
func GenerateRSS(user *models.User, episodes []models.Episode, r *http.Request) (string, error) {
	baseURL := getBaseURL(r)

	p := podcast.New(
		"Your Knowledge Digest",
		fmt.Sprintf("%s/digest/%s.rss", baseURL, user.DigestUUID),
		"Summaries of the videos and podcasts you follow.",
		&time.Time{}, &time.Time{},
	)

	for _, episode := range episodes {
		title := episode.URL
		if episode.Title != nil && *episode.Title != "" {
			title = *episode.Title
		}
		description := ""
		if episode.Summary != nil {
			description = *episode.Summary
		}
		item := podcast.Item{
			Title:       title,
			Description: description,
			Link:        episode.URL,
			PubDate:     episode.ProcessedAt,
		}
		if _, err := p.AddItem(item); err != nil {
			return "", err
		}
	}

	return p.String(), nil
}
