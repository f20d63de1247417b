package delivery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mediadigest/internal/models"
)

const telegramMaxLength = 4096

// botAPI is the slice of tgbotapi.BotAPI the sender needs; faked in tests.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers digests as Telegram messages, splitting long
// digests at paragraph boundaries to stay under the message size cap.
type TelegramSender struct {
	bot botAPI
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

func (s *TelegramSender) Send(ctx context.Context, user models.User, subject, body string) error {
	if user.TelegramChatID == nil {
		return fmt.Errorf("user %d has no telegram chat id", user.ID)
	}
	chatID, err := strconv.ParseInt(*user.TelegramChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("user %d has malformed telegram chat id %q", user.ID, *user.TelegramChatID)
	}

	for i, chunk := range splitMessage(body, telegramMaxLength) {
		if i > 0 {
			// Gentle pacing between chunks of one digest.
			time.Sleep(500 * time.Millisecond)
		}
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := s.bot.Send(msg); err != nil {
			return fmt.Errorf("telegram send to chat %d: %w", chatID, err)
		}
	}
	return nil
}

// splitMessage breaks a long message into chunks at paragraph boundaries,
// force-splitting a single oversized paragraph as a last resort.
func splitMessage(message string, maxLength int) []string {
	if len(message) <= maxLength {
		return []string{message}
	}

	var chunks []string
	current := ""
	for _, para := range strings.Split(message, "\n\n") {
		if len(current)+len(para)+2 <= maxLength {
			current += para + "\n\n"
			continue
		}
		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = ""
		}
		if len(para) > maxLength {
			for i := 0; i < len(para); i += maxLength {
				end := i + maxLength
				if end > len(para) {
					end = len(para)
				}
				chunks = append(chunks, para[i:end])
			}
			continue
		}
		current = para + "\n\n"
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}
