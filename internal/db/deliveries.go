package db

import (
	"database/sql"
	"errors"
	"fmt"

	"mediadigest/internal/models"
)

// MaxDeliveryAttempts bounds per-record retries. A record that fails this
// many times stays FAILED and stops being due.
const MaxDeliveryAttempts = 3

// GetOrCreateDeliveryRecord inserts the delivery record for one
// (user, episode, channel) triple, or returns the existing one. The unique
// index is what prevents duplicate sends on retry.
func GetOrCreateDeliveryRecord(userID int64, episodeID int, channel models.Channel) (models.DeliveryRecord, bool, error) {
	record := models.DeliveryRecord{}
	err := DB.Get(&record, `
		INSERT INTO delivery_records (user_id, episode_id, channel)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, episode_id, channel) DO NOTHING
		RETURNING *`, userID, episodeID, channel)
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return record, false, fmt.Errorf("insert delivery record: %w", err)
	}

	err = DB.Get(&record, `
		SELECT * FROM delivery_records
		WHERE user_id = $1 AND episode_id = $2 AND channel = $3`,
		userID, episodeID, channel)
	if err != nil {
		return record, false, fmt.Errorf("load delivery record: %w", err)
	}
	return record, false, nil
}

func MarkDeliverySent(id int) error {
	_, err := DB.Exec(`
		UPDATE delivery_records
		SET status = 'SENT', attempts = attempts + 1, last_error = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func MarkDeliveryFailed(id int, reason string) error {
	_, err := DB.Exec(`
		UPDATE delivery_records
		SET status = 'FAILED', attempts = attempts + 1, last_error = $1, updated_at = NOW()
		WHERE id = $2`, reason, id)
	return err
}

// UndeliveredCompletedEpisodes returns the episodes due for a user's digest:
// completed, covered by one of the user's subscriptions, and without a sent
// or exhausted delivery record on the given channel. Episodes still in
// flight at digest time are simply not due yet.
func UndeliveredCompletedEpisodes(userID int64, channel models.Channel) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT DISTINCT e.* FROM episodes e
		JOIN subscriptions s
		  ON s.episode_id = e.id OR (s.source_id IS NOT NULL AND s.source_id = e.source_id)
		WHERE s.user_id = $1
		  AND e.status = 'COMPLETED'
		  AND NOT EXISTS (
			SELECT 1 FROM delivery_records d
			WHERE d.user_id = $1 AND d.episode_id = e.id AND d.channel = $2
			  AND (d.status = 'SENT' OR d.attempts >= $3)
		  )
		ORDER BY e.processed_at`, userID, channel, MaxDeliveryAttempts)
	return episodes, err
}
