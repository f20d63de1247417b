package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"

	"mediadigest/internal/db"
	"mediadigest/internal/models"
	"mediadigest/internal/poller"
	"mediadigest/pkg/tasks"
)

type sourceRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type sourceResponse struct {
	ID           int    `json:"id"`
	URL          string `json:"url"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Enabled      bool   `json:"enabled"`
	LastPolledAt any    `json:"last_polled_at"`
}

func toSourceResponse(s models.Source) sourceResponse {
	resp := sourceResponse{
		ID:      s.ID,
		URL:     s.URL,
		Name:    s.Name,
		Kind:    string(s.Kind),
		Enabled: s.Enabled,
	}
	if s.LastPolledAt != nil {
		resp.LastPolledAt = *s.LastPolledAt
	}
	return resp
}

// PostSource registers a pollable source. Registration is idempotent on the
// canonical URL; re-registering returns the existing source.
func (h *Handlers) PostSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	kind := models.SourceKind(req.Kind)
	switch kind {
	case models.KindChannelFeed, models.KindPodcastFeed, models.KindSingleVideo:
	default:
		respondError(w, http.StatusBadRequest, "kind must be channel-feed, podcast-feed or single-video")
		return
	}

	if kind == models.KindChannelFeed {
		if _, err := poller.ExtractYouTubeChannelID(req.URL); err != nil {
			respondError(w, http.StatusBadRequest, "could not extract channel id from url")
			return
		}
	}

	source, created, err := db.CreateSource(req.URL, req.Name, kind)
	if err != nil {
		log.Printf("Error creating source: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if created {
		h.enqueuePoll(source.ID)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, toSourceResponse(source))
}

// PostSourcePoll triggers an out-of-schedule poll for one source.
func (h *Handlers) PostSourcePoll(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	source, err := db.GetSourceByID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "source not found")
		return
	}

	h.enqueuePoll(source.ID)
	respondJSON(w, http.StatusAccepted, map[string]any{"source_id": source.ID, "status": "poll queued"})
}

func (h *Handlers) enqueuePoll(sourceID int) {
	task, err := tasks.NewPollSourceTask(sourceID)
	if err != nil {
		log.Printf("Error creating poll task for source %d: %v", sourceID, err)
		return
	}
	if _, err := h.asynqClient.Enqueue(task); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		log.Printf("Error enqueuing poll task for source %d: %v", sourceID, err)
	}
}
