// Package delivery fans completed episodes out to subscribers. Each
// (user, episode, channel) triple gets exactly one delivery record, and the
// record's status is what makes retries safe.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mediadigest/internal/db"
	"mediadigest/internal/digest"
	"mediadigest/internal/models"
)

// ErrDeliveryChannel marks a transport failure for one user. Retriable for
// that user; other users' deliveries are unaffected.
var ErrDeliveryChannel = errors.New("delivery channel error")

// Sender pushes one rendered digest to a user over a single transport.
type Sender interface {
	Send(ctx context.Context, user models.User, subject, body string) error
}

// Dispatcher resolves the user's channel through a fixed lookup table and
// records per-episode outcomes.
type Dispatcher struct {
	senders map[models.Channel]Sender
}

func NewDispatcher(senders map[models.Channel]Sender) *Dispatcher {
	return &Dispatcher{senders: senders}
}

// Deliver sends one batched digest covering the given episodes to the user.
// Episodes already sent on this channel drop out of the batch, so re-running
// after a partial failure never duplicates a send. A transport failure marks
// every attempted record failed and returns ErrDeliveryChannel so the job is
// retried for this user alone.
func (d *Dispatcher) Deliver(ctx context.Context, user models.User, episodes []models.Episode) error {
	if len(episodes) == 0 {
		return nil
	}
	sender, ok := d.senders[user.Channel]
	if !ok {
		return fmt.Errorf("%w: no sender for channel %q", ErrDeliveryChannel, user.Channel)
	}
	if user.Address() == "" {
		return fmt.Errorf("%w: user %d has no %s address", ErrDeliveryChannel, user.ID, user.Channel)
	}

	var due []models.Episode
	var records []models.DeliveryRecord
	for _, episode := range episodes {
		record, _, err := db.GetOrCreateDeliveryRecord(user.ID, episode.ID, user.Channel)
		if err != nil {
			return fmt.Errorf("delivery record for user %d episode %d: %w", user.ID, episode.ID, err)
		}
		if record.Status == models.DeliverySent {
			continue
		}
		if record.Attempts >= db.MaxDeliveryAttempts {
			continue
		}
		due = append(due, episode)
		records = append(records, record)
	}
	if len(due) == 0 {
		return nil
	}

	body := digest.Render(due)
	subject := digest.Subject(due, time.Now())

	if err := sender.Send(ctx, user, subject, body); err != nil {
		for _, record := range records {
			if markErr := db.MarkDeliveryFailed(record.ID, err.Error()); markErr != nil {
				log.Printf("Failed to mark delivery %d failed: %v", record.ID, markErr)
			}
		}
		return fmt.Errorf("%w: user %d via %s: %v", ErrDeliveryChannel, user.ID, user.Channel, err)
	}

	for _, record := range records {
		if err := db.MarkDeliverySent(record.ID); err != nil {
			log.Printf("Failed to mark delivery %d sent: %v", record.ID, err)
		}
	}
	log.Printf("Delivered digest of %d episodes to user %d via %s", len(due), user.ID, user.Channel)
	return nil
}
