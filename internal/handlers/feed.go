package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"mediadigest/internal/db"
	"mediadigest/internal/feed"
)

// GetDigestFeed serves a user's digest queue as RSS, addressed by the
// user's feed token rather than their id so the URL is shareable with a
// feed reader but not guessable.
func (h *Handlers) GetDigestFeed(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	digestUUID := vars["uuid"]

	user, err := db.GetUserByDigestUUID(digestUUID)
	if err != nil {
		http.Error(w, "Feed not found", http.StatusNotFound)
		return
	}

	episodes, err := db.UndeliveredCompletedEpisodes(user.ID, user.Channel)
	if err != nil {
		log.Printf("Error getting digest queue for user %d: %v", user.ID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(user, episodes, r)
	if err != nil {
		log.Printf("Error generating RSS: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}
