package db

import (
	"log"

	"github.com/google/uuid"

	"mediadigest/internal/models"
)

// NewUser carries registration input.
type NewUser struct {
	Email          *string
	TelegramChatID *string
	Channel        models.Channel
	DigestHour     int
}

func CreateUser(n NewUser) (*models.User, error) {
	query := `
		INSERT INTO users (email, telegram_chat_id, channel, digest_hour, digest_uuid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`
	user := &models.User{}
	err := DB.Get(user, query, n.Email, n.TelegramChatID, n.Channel, n.DigestHour, uuid.NewString())
	if err != nil {
		log.Printf("Error creating user: %v", err)
		return nil, err
	}
	return user, nil
}

// UpsertTelegramUser inserts or refreshes a user authenticated through the
// Telegram Mini App, keyed by chat id.
func UpsertTelegramUser(chatID string) (*models.User, error) {
	query := `
		INSERT INTO users (telegram_chat_id, channel, digest_hour, digest_uuid)
		VALUES ($1, 'telegram', 8, $2)
		ON CONFLICT (telegram_chat_id) DO UPDATE SET
			updated_at = NOW()
		RETURNING *
	`
	user := &models.User{}
	err := DB.Get(user, query, chatID, uuid.NewString())
	if err != nil {
		log.Printf("Error upserting telegram user: %v", err)
		return nil, err
	}
	return user, nil
}

func GetUserByID(id int64) (*models.User, error) {
	user := &models.User{}
	err := DB.Get(user, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func GetUserByDigestUUID(digestUUID string) (*models.User, error) {
	user := &models.User{}
	err := DB.Get(user, "SELECT * FROM users WHERE digest_uuid = $1", digestUUID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func UpdateUserSettings(id int64, channel models.Channel, digestHour int) error {
	_, err := DB.Exec(`
		UPDATE users
		SET channel = $1, digest_hour = $2, updated_at = NOW()
		WHERE id = $3`, channel, digestHour, id)
	return err
}

// UsersDueAtHour returns the users whose preferred delivery hour (UTC)
// matches the given hour.
func UsersDueAtHour(hour int) ([]models.User, error) {
	var users []models.User
	err := DB.Select(&users, "SELECT * FROM users WHERE digest_hour = $1 ORDER BY id", hour)
	if err != nil {
		log.Printf("Error loading users due at hour %d: %v", hour, err)
		return nil, err
	}
	return users, nil
}
