package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	"mediadigest/internal/models"
)

var execCommandContext = exec.CommandContext

// Extraction is the output of the extract stage: resolved metadata and a
// direct media URL for the transcriber to pull from.
type Extraction struct {
	Title    string
	AudioURL string
}

// Extractor resolves a submitted content reference into media metadata.
type Extractor interface {
	Extract(ctx context.Context, episode models.Episode) (Extraction, error)
}

// YtDlpExtractor probes content through the yt-dlp tool. It never downloads
// media; it only resolves the title and the best audio stream URL.
type YtDlpExtractor struct {
	Timeout time.Duration
}

func NewYtDlpExtractor() *YtDlpExtractor {
	return &YtDlpExtractor{Timeout: 60 * time.Second}
}

type ytDlpProbe struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (e *YtDlpExtractor) Extract(ctx context.Context, episode models.Episode) (Extraction, error) {
	// Podcast entries arrive with the enclosure URL already known from the
	// feed; nothing to probe.
	if episode.AudioURL != nil && *episode.AudioURL != "" {
		ex := Extraction{AudioURL: *episode.AudioURL}
		if episode.Title != nil {
			ex.Title = *episode.Title
		}
		return ex, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := execCommandContext(ctx, "yt-dlp",
		"-j",
		"--no-download",
		"-f", "bestaudio",
		episode.URL,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		out := string(output)
		log.Printf("yt-dlp probe failed for %s: %v, output: %s", episode.URL, err, out)
		if isUnavailable(out) {
			return Extraction{}, fmt.Errorf("%w: %s", ErrContentUnavailable, firstLine(out))
		}
		return Extraction{}, fmt.Errorf("%w: yt-dlp probe: %v", ErrTransient, err)
	}

	// yt-dlp sometimes writes warnings before the JSON document.
	jsonStart := strings.Index(string(output), "{")
	if jsonStart == -1 {
		return Extraction{}, fmt.Errorf("%w: no JSON in yt-dlp output", ErrTransient)
	}

	var probe ytDlpProbe
	if err := json.Unmarshal(output[jsonStart:], &probe); err != nil {
		return Extraction{}, fmt.Errorf("%w: unmarshal yt-dlp output: %v", ErrTransient, err)
	}

	if probe.URL == "" {
		return Extraction{}, fmt.Errorf("%w: no audio stream resolved", ErrContentUnavailable)
	}

	return Extraction{Title: probe.Title, AudioURL: probe.URL}, nil
}

func isUnavailable(output string) bool {
	for _, marker := range []string{
		"Video unavailable",
		"Private video",
		"This video is not available",
		"has been removed",
		"HTTP Error 404",
		"HTTP Error 410",
	} {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
