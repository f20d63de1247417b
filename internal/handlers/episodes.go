package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mediadigest/internal/db"
	"mediadigest/internal/fingerprint"
	"mediadigest/internal/models"
	"mediadigest/pkg/tasks"
)

type submitRequest struct {
	URL    string `json:"url"`
	UserID int64  `json:"user_id"`
}

type submitResponse struct {
	Message   string `json:"message"`
	EpisodeID int    `json:"episode_id"`
	Status    string `json:"status"`
}

// PostSubmit accepts a one-off URL. Submission always succeeds immediately;
// processing is asynchronous. Duplicate submissions of the same content
// attach to the existing episode instead of creating new work.
func (h *Handlers) PostSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	fp, err := fingerprint.Fingerprint(req.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid or unsupported content URL")
		return
	}
	normalized, err := fingerprint.NormalizeURL(req.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid or unsupported content URL")
		return
	}

	episode, created, err := db.GetOrCreateEpisode(db.NewEpisode{
		Fingerprint: fp,
		URL:         normalized,
	})
	if err != nil {
		log.Printf("Error storing submitted episode: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// A submitting user gets an implicit subscription to this one episode
	// so the digest fan-out treats them like any other subscriber.
	if req.UserID != 0 {
		if _, err := db.SubscribeToEpisode(req.UserID, episode.ID); err != nil {
			log.Printf("Error subscribing user %d to episode %d: %v", req.UserID, episode.ID, err)
		}
	}

	message := "already processing"
	switch {
	case created:
		message = "processing started"
		h.enqueueProcess(episode.ID)
	case episode.Status == models.StatusFailed:
		// Resubmitting a failed episode retries it.
		if err := db.ResetEpisodeForRetry(episode.ID); err == nil {
			episode.Status = models.StatusPending
			message = "retrying failed episode"
			h.enqueueProcess(episode.ID)
		}
	case episode.Status == models.StatusCompleted:
		message = "summary already available"
	}

	respondJSON(w, http.StatusAccepted, submitResponse{
		Message:   message,
		EpisodeID: episode.ID,
		Status:    string(episode.Status),
	})
}

func (h *Handlers) GetEpisode(w http.ResponseWriter, r *http.Request) {
	episode, ok := h.episodeFromPath(w, r)
	if !ok {
		return
	}

	subscriberIDs, err := db.SubscriberIDsForEpisode(episode.ID, episode.SourceID)
	if err != nil {
		log.Printf("Error listing subscribers for episode %d: %v", episode.ID, err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := map[string]any{
		"id":           episode.ID,
		"url":          episode.URL,
		"status":       string(episode.Status),
		"title":        episode.Title,
		"published_at": episode.PublishedAt,
		"processed_at": episode.ProcessedAt,
		"subscribers":  len(subscriberIDs),
	}
	if episode.Status == models.StatusCompleted {
		resp["summary"] = episode.Summary
	}
	if episode.Status == models.StatusFailed {
		resp["failure_reason"] = episode.FailureReason
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetEpisodeStatus reports the latest known state, including the recorded
// reason on terminal failure.
func (h *Handlers) GetEpisodeStatus(w http.ResponseWriter, r *http.Request) {
	episode, ok := h.episodeFromPath(w, r)
	if !ok {
		return
	}

	resp := map[string]any{
		"episode_id":  episode.ID,
		"status":      string(episode.Status),
		"has_summary": episode.Summary != nil,
	}
	if episode.FailureReason != nil {
		resp["failure_reason"] = *episode.FailureReason
	}
	respondJSON(w, http.StatusOK, resp)
}

// PostReprocess resets a failed episode back to pending and queues a new
// pipeline run.
func (h *Handlers) PostReprocess(w http.ResponseWriter, r *http.Request) {
	episode, ok := h.episodeFromPath(w, r)
	if !ok {
		return
	}

	if err := db.ResetEpisodeForRetry(episode.ID); err != nil {
		if errors.Is(err, db.ErrStateConflict) {
			respondError(w, http.StatusConflict, "episode is not in a failed state")
			return
		}
		log.Printf("Error resetting episode %d: %v", episode.ID, err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.enqueueProcess(episode.ID)
	respondJSON(w, http.StatusAccepted, map[string]any{"episode_id": episode.ID, "status": "pending"})
}

func (h *Handlers) episodeFromPath(w http.ResponseWriter, r *http.Request) (models.Episode, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid episode id")
		return models.Episode{}, false
	}
	episode, err := db.GetEpisodeByID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "episode not found")
		return models.Episode{}, false
	}
	return episode, true
}

func (h *Handlers) enqueueProcess(episodeID int) {
	task, err := tasks.NewProcessEpisodeTask(episodeID)
	if err != nil {
		log.Printf("Error creating process task for episode %d: %v", episodeID, err)
		return
	}
	if _, err := h.asynqClient.Enqueue(task); err != nil {
		log.Printf("Error enqueuing process task for episode %d: %v", episodeID, err)
	}
}
