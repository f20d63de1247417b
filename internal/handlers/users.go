package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mediadigest/internal/db"
	"mediadigest/internal/middleware"
	"mediadigest/internal/models"
)

const maxSubscriptionsPerUser = 50

type userRequest struct {
	Email          *string `json:"email"`
	TelegramChatID *string `json:"telegram_chat_id"`
	Channel        string  `json:"channel"`
	DigestHour     *int    `json:"digest_hour"`
}

const defaultDigestHour = 8

func (h *Handlers) PostUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	hour := defaultDigestHour
	if req.DigestHour != nil {
		hour = *req.DigestHour
	}
	channel := models.Channel(req.Channel)
	if !validUserSettings(channel, hour, req.Email, req.TelegramChatID) {
		respondError(w, http.StatusBadRequest, "channel must be email or telegram with a matching address, digest_hour in 0-23")
		return
	}

	user, err := db.CreateUser(db.NewUser{
		Email:          req.Email,
		TelegramChatID: req.TelegramChatID,
		Channel:        channel,
		DigestHour:     hour,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":          user.ID,
		"channel":     string(user.Channel),
		"digest_hour": user.DigestHour,
		"digest_uuid": user.DigestUUID,
	})
}

func (h *Handlers) PutUserSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	// Omitted fields keep their stored values; only what the body names
	// changes.
	channel := models.Channel(req.Channel)
	email := req.Email
	if email == nil {
		email = user.Email
	}
	chatID := req.TelegramChatID
	if chatID == nil {
		chatID = user.TelegramChatID
	}
	hour := user.DigestHour
	if req.DigestHour != nil {
		hour = *req.DigestHour
	}
	if !validUserSettings(channel, hour, email, chatID) {
		respondError(w, http.StatusBadRequest, "channel must be email or telegram with a matching address, digest_hour in 0-23")
		return
	}

	if err := db.UpdateUserSettings(user.ID, channel, hour); err != nil {
		log.Printf("Error updating settings for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": user.ID, "channel": string(channel), "digest_hour": hour})
}

type subscribeRequest struct {
	SourceID int `json:"source_id"`
}

// PostSubscribe adds a standing subscription; repeating it is a no-op.
func (h *Handlers) PostSubscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	existing, err := db.GetSubscriptionsByUserID(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(existing) >= maxSubscriptionsPerUser {
		respondError(w, http.StatusForbidden, "subscription limit reached")
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if _, err := db.GetSourceByID(req.SourceID); err != nil {
		respondError(w, http.StatusNotFound, "source not found")
		return
	}

	sub, err := db.SubscribeToSource(user.ID, req.SourceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"subscription_id": sub.ID, "source_id": req.SourceID})
}

func (h *Handlers) DeleteSubscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := db.UnsubscribeFromSource(user.ID, req.SourceID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDigestQueue lists the user's completed-but-undelivered episodes.
func (h *Handlers) GetDigestQueue(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	episodes, err := db.UndeliveredCompletedEpisodes(user.ID, user.Channel)
	if err != nil {
		log.Printf("Error loading digest queue for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items := make([]map[string]any, 0, len(episodes))
	for _, episode := range episodes {
		items = append(items, map[string]any{
			"episode_id":   episode.ID,
			"title":        episode.Title,
			"url":          episode.URL,
			"summary":      episode.Summary,
			"processed_at": episode.ProcessedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": user.ID, "episodes": items})
}

// GetMySubscriptions lists the authenticated Mini App user's subscriptions.
func (h *Handlers) GetMySubscriptions(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(*models.User)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	subs, err := db.GetSubscriptionsByUserID(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items := make([]map[string]any, 0, len(subs))
	for _, sub := range subs {
		items = append(items, map[string]any{
			"subscription_id": sub.ID,
			"source_id":       sub.SourceID,
			"episode_id":      sub.EpisodeID,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"subscriptions": items})
}

func (h *Handlers) userFromPath(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return nil, false
	}
	user, err := db.GetUserByID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	return user, true
}

func validUserSettings(channel models.Channel, digestHour int, email, chatID *string) bool {
	if digestHour < 0 || digestHour > 23 {
		return false
	}
	switch channel {
	case models.ChannelEmail:
		return email != nil && *email != ""
	case models.ChannelTelegram:
		return chatID != nil && *chatID != ""
	}
	return false
}
