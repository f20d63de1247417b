// Package fingerprint derives a stable content identity from a submitted
// URL so that identical submissions collapse onto one unit of work.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned when the input cannot be parsed into a
// recognized content reference. Non-retriable: it is a user-input problem.
var ErrInvalidURL = errors.New("invalid content URL")

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`[?&]v=([a-zA-Z0-9_-]{11})`),
}

// Fingerprint maps a raw URL to a deterministic 32-char hex identity.
// Tracking parameters, protocol and trailing slashes never change the
// result; distinct content practically never collides.
func Fingerprint(rawURL string) (string, error) {
	identity, err := canonicalize(rawURL)
	if err != nil {
		return "", err
	}
	return digest(identity), nil
}

// FeedEntryFingerprint derives the identity for a polled feed entry.
// YouTube entries canonicalize on the video id so a poll result and a direct
// submission of the same video collapse onto one episode; other entries use
// the feed GUID, which is stable across polls, before falling back to the
// link.
func FeedEntryFingerprint(guid, link string) (string, error) {
	if id, ok := youtubeVideoID(link); ok {
		return digest("youtube:" + id), nil
	}
	if guid != "" {
		return digest("guid:" + guid), nil
	}
	return Fingerprint(link)
}

// NormalizeURL returns the canonical form of a URL without hashing, for
// storage and display.
func NormalizeURL(rawURL string) (string, error) {
	u, err := parse(rawURL)
	if err != nil {
		return "", err
	}
	if id, ok := youtubeVideoID(rawURL); ok {
		return "https://youtube.com/watch?v=" + id, nil
	}
	stripped := *u
	stripped.RawQuery = ""
	stripped.Fragment = ""
	stripped.Host = strings.ToLower(trimDefaultPort(u))
	stripped.Scheme = strings.ToLower(u.Scheme)
	stripped.Path = strings.TrimSuffix(stripped.Path, "/")
	return stripped.String(), nil
}

func canonicalize(rawURL string) (string, error) {
	if id, ok := youtubeVideoID(rawURL); ok {
		return "youtube:" + id, nil
	}
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	return normalized, nil
}

func parse(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

func youtubeVideoID(rawURL string) (string, bool) {
	for _, p := range youtubeIDPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func trimDefaultPort(u *url.URL) string {
	host := u.Host
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

func digest(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])[:32]
}
