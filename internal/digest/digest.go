// Package digest turns a user's due episodes into one batched notification.
package digest

import (
	"fmt"
	"strings"
	"time"

	"mediadigest/internal/models"
)

// Render builds the digest body. One episode reads as a plain summary;
// several get a briefing header and are separated by rules so the result is
// scannable in one message.
func Render(episodes []models.Episode) string {
	if len(episodes) == 0 {
		return ""
	}
	if len(episodes) == 1 {
		return renderItem(episodes[0])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Your digest: %d new summaries*\n\n", len(episodes))
	for i, episode := range episodes {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(renderItem(episode))
	}
	return b.String()
}

func renderItem(episode models.Episode) string {
	title := episode.URL
	if episode.Title != nil && *episode.Title != "" {
		title = *episode.Title
	}
	summary := ""
	if episode.Summary != nil {
		summary = *episode.Summary
	}
	return fmt.Sprintf("*%s*\n\n%s", title, summary)
}

// Subject is the email subject line for a digest sent at the given time.
func Subject(episodes []models.Episode, now time.Time) string {
	if len(episodes) == 1 && episodes[0].Title != nil {
		return "Summary: " + *episodes[0].Title
	}
	return "Your Knowledge Digest - " + now.UTC().Format("January 2")
}
