package poller

import (
	"fmt"
	"regexp"
	"strings"

	"mediadigest/internal/fingerprint"
)

var channelIDPattern = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)

// ExtractYouTubeChannelID pulls the UC... channel id out of the canonical
// channel URL forms we accept at registration.
func ExtractYouTubeChannelID(url string) (string, error) {
	if idx := strings.Index(url, "channel_id="); idx != -1 {
		id := url[idx+len("channel_id="):]
		if amp := strings.IndexByte(id, '&'); amp != -1 {
			id = id[:amp]
		}
		return id, nil
	}
	if idx := strings.Index(url, "/channel/"); idx != -1 {
		id := url[idx+len("/channel/"):]
		id = strings.SplitN(id, "/", 2)[0]
		id = strings.SplitN(id, "?", 2)[0]
		return id, nil
	}
	if channelIDPattern.MatchString(url) {
		return url, nil
	}
	return "", fmt.Errorf("%w: no channel id in %q", fingerprint.ErrInvalidURL, url)
}
