package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"mediadigest/internal/models"
)

// SubscribeToSource creates a standing subscription. Re-subscribing is a
// no-op returning the existing row.
func SubscribeToSource(userID int64, sourceID int) (*models.Subscription, error) {
	sub := &models.Subscription{}
	err := DB.Get(sub, `
		INSERT INTO subscriptions (user_id, source_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, source_id) DO NOTHING
		RETURNING *`, userID, sourceID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Printf("Error adding source subscription for user %d: %v", userID, err)
		return nil, err
	}

	err = DB.Get(sub, "SELECT * FROM subscriptions WHERE user_id = $1 AND source_id = $2", userID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}

// SubscribeToEpisode pins a user directly to one episode. This is how a
// one-off submission becomes visible to fan-out without a standing source
// subscription.
func SubscribeToEpisode(userID int64, episodeID int) (*models.Subscription, error) {
	sub := &models.Subscription{}
	err := DB.Get(sub, `
		INSERT INTO subscriptions (user_id, episode_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, episode_id) DO NOTHING
		RETURNING *`, userID, episodeID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Printf("Error adding episode subscription for user %d: %v", userID, err)
		return nil, err
	}

	err = DB.Get(sub, "SELECT * FROM subscriptions WHERE user_id = $1 AND episode_id = $2", userID, episodeID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}

func UnsubscribeFromSource(userID int64, sourceID int) error {
	_, err := DB.Exec(`
		DELETE FROM subscriptions
		WHERE user_id = $1 AND source_id = $2`, userID, sourceID)
	if err != nil {
		log.Printf("Error deleting subscription to source %d for user %d: %v", sourceID, userID, err)
		return err
	}
	return nil
}

func GetSubscriptionsByUserID(userID int64) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := DB.Select(&subscriptions, `
		SELECT * FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		log.Printf("Error getting subscriptions for user %d: %v", userID, err)
		return nil, err
	}
	return subscriptions, nil
}

// SubscriberIDsForEpisode returns every user entitled to the episode: direct
// episode subscribers plus standing subscribers of its source. Both relation
// kinds feed the same fan-out path.
func SubscriberIDsForEpisode(episodeID int, sourceID *int) ([]int64, error) {
	var userIDs []int64
	err := DB.Select(&userIDs, `
		SELECT DISTINCT user_id FROM subscriptions
		WHERE episode_id = $1 OR source_id = $2
		ORDER BY user_id`, episodeID, sourceID)
	return userIDs, err
}
