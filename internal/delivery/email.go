package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"mediadigest/internal/models"
)

const resendEndpoint = "https://api.resend.com/emails"

// EmailSender delivers digests through the Resend HTTP API.
type EmailSender struct {
	APIKey     string
	From       string
	HTTPClient *http.Client
	Endpoint   string
}

func NewEmailSender() *EmailSender {
	from := os.Getenv("FROM_EMAIL")
	if from == "" {
		from = "digest@example.com"
	}
	return &EmailSender{
		APIKey:     os.Getenv("RESEND_API_KEY"),
		From:       from,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Endpoint:   resendEndpoint,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (s *EmailSender) Send(ctx context.Context, user models.User, subject, body string) error {
	if user.Email == nil || *user.Email == "" {
		return fmt.Errorf("user %d has no email address", user.ID)
	}

	payload, err := json.Marshal(resendRequest{
		From:    s.From,
		To:      []string{*user.Email},
		Subject: subject,
		HTML:    renderHTML(body),
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email service returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// renderHTML wraps the digest's paragraphs in a minimal HTML body. The
// digest markdown is intentionally simple, so escaping plus paragraph tags
// is enough for mail clients.
func renderHTML(body string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, para := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		if strings.TrimSpace(para) == "---" {
			b.WriteString("<hr>")
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
