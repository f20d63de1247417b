package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Transcriber turns a media URL into text. The actual speech-to-text model
// is an opaque remote service.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// TranscribeClient calls a Whisper-compatible transcription API that pulls
// the audio itself from the given URL.
type TranscribeClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewTranscribeClient() *TranscribeClient {
	return &TranscribeClient{
		BaseURL: os.Getenv("TRANSCRIBE_API_URL"),
		APIKey:  os.Getenv("TRANSCRIBE_API_KEY"),
		// Long podcasts take a while; the service streams the audio in on
		// its side before transcribing.
		HTTPClient: &http.Client{Timeout: 15 * time.Minute},
	}
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcribeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (c *TranscribeClient) Transcribe(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcribeRequest{AudioURL: audioURL})
	if err != nil {
		return "", fmt.Errorf("marshal transcribe request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/transcribe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: transcribe call: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read transcribe response: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: transcribe service: %s", ErrContentUnavailable, string(raw))
	default:
		// 429s and 5xx are worth another attempt.
		return "", fmt.Errorf("%w: transcribe service returned %d: %s", ErrTransient, resp.StatusCode, string(raw))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: unmarshal transcribe response: %v", ErrTransient, err)
	}
	if parsed.Text == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrTransient)
	}
	return parsed.Text, nil
}
