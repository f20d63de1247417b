package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// Summarizer condenses a transcript into a digest-ready summary.
type Summarizer interface {
	Summarize(ctx context.Context, title, transcript string) (string, error)
}

const summarySystemPrompt = `You summarize audio transcripts of podcasts and YouTube videos into an easily digestible format.

The summary has four sections: 1) Overall Summary, 2) Main Topics Discussed, 3) Notable Quotes, 4) Action Items.
- Overall Summary: 1-2 sentences, under 250 characters, naming the host and guests.
- Main Topics Discussed: at most 5 topics, under 2000 characters total.
- Notable Quotes: 3 quotes, each attributed to a specific speaker.
- Action Items: 2 actionable takeaways.
Use informal, conversational language. No emojis or hashtags.
Use *single asterisks* for bold and _underscores_ for italics; close every formatting mark you open.`

// Transcripts beyond this length are truncated before the model call.
const maxTranscriptChars = 100000

// ClaudeSummarizer generates summaries through the Anthropic API.
type ClaudeSummarizer struct {
	APIKey    string
	Model     string
	MaxTokens int
}

func NewClaudeSummarizer() *ClaudeSummarizer {
	return &ClaudeSummarizer{
		APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 2000,
	}
}

func (s *ClaudeSummarizer) Summarize(ctx context.Context, title, transcript string) (string, error) {
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars] + "\n\n[Transcript truncated due to length...]"
	}

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", title)
	}
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)

	settings := types.RequestSettings{
		Model:     s.Model,
		MaxTokens: s.MaxTokens,
	}
	response, err := anthropic.PromptWithSettings(summarySystemPrompt, b.String(), "", s.APIKey, settings)
	if err != nil {
		// The kit does not distinguish timeouts from other failures;
		// treat the whole call as retriable.
		return "", fmt.Errorf("%w: summarization: %v", ErrTransient, err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("%w: empty summarization response", ErrTransient)
	}
	return response.Content[0].Text, nil
}
