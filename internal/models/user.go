package models

import "time"

// Channel is a delivery transport.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

// User represents a digest recipient.
type User struct {
	ID             int64     `db:"id"`
	Email          *string   `db:"email"`
	TelegramChatID *string   `db:"telegram_chat_id"`
	Channel        Channel   `db:"channel"`
	DigestHour     int       `db:"digest_hour"`
	DigestUUID     string    `db:"digest_uuid"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Address returns the contact address for the user's preferred channel.
func (u *User) Address() string {
	switch u.Channel {
	case ChannelTelegram:
		if u.TelegramChatID != nil {
			return *u.TelegramChatID
		}
	case ChannelEmail:
		if u.Email != nil {
			return *u.Email
		}
	}
	return ""
}
