package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"mediadigest/internal/db"
	"mediadigest/internal/delivery"
	"mediadigest/internal/fingerprint"
	"mediadigest/internal/pipeline"
	"mediadigest/internal/poller"
	"mediadigest/pkg/tasks"
)

// TaskHandler binds the queue to the domain components. Workers coordinate
// only through the store and the queue; the handler itself is stateless.
type TaskHandler struct {
	asynqClient  tasks.TaskEnqueuer
	orchestrator *pipeline.Orchestrator
	poller       *poller.Poller
	dispatcher   *delivery.Dispatcher
}

func NewTaskHandler(client tasks.TaskEnqueuer, orch *pipeline.Orchestrator, p *poller.Poller, d *delivery.Dispatcher) *TaskHandler {
	return &TaskHandler{
		asynqClient:  client,
		orchestrator: orch,
		poller:       p,
		dispatcher:   d,
	}
}

// HandlePollAllSourcesTask is the hourly poll tick: one poll task per
// enabled source. The tick-scoped task id means a source can only carry one
// poll task per tick; a duplicate enqueue within the tick is dropped.
func (h *TaskHandler) HandlePollAllSourcesTask(ctx context.Context, t *asynq.Task) error {
	sources, err := db.ListEnabledSources()
	if err != nil {
		return fmt.Errorf("failed to list enabled sources: %w", err)
	}

	for _, source := range sources {
		task, err := tasks.NewPollSourceTask(source.ID)
		if err != nil {
			log.Printf("failed to create poll task for source %d: %v", source.ID, err)
			continue
		}
		if _, err := h.asynqClient.Enqueue(task); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				log.Printf("source %d already has a poll task this tick, skipping", source.ID)
				continue
			}
			log.Printf("failed to enqueue poll task for source %d: %v", source.ID, err)
		}
	}
	log.Printf("Poll tick queued %d sources", len(sources))
	return nil
}

func (h *TaskHandler) HandlePollSourceTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.PollSourceTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	source, err := db.GetSourceByID(p.SourceID)
	if err != nil {
		return fmt.Errorf("failed to get source %d: %w", p.SourceID, err)
	}

	created, err := h.poller.Poll(ctx, source)
	if err != nil {
		return err
	}
	log.Printf("Polled source %d (%s): %d new episodes", source.ID, source.Name, created)
	return nil
}

// HandleProcessEpisodeTask runs the pipeline for one episode and routes its
// failures: unprocessable content fails the episode terminally and skips
// further retries, transient errors ride the queue's backoff until the
// retry bound, after which the episode is failed with the last reason.
func (h *TaskHandler) HandleProcessEpisodeTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.ProcessEpisodeTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	err := h.orchestrator.Process(ctx, p.EpisodeID)
	if err == nil {
		return nil
	}

	if errors.Is(err, pipeline.ErrContentUnavailable) || errors.Is(err, fingerprint.ErrInvalidURL) {
		log.Printf("Episode %d unprocessable: %v", p.EpisodeID, err)
		if markErr := db.MarkEpisodeFailed(p.EpisodeID, reasonFor(err)); markErr != nil {
			log.Printf("failed to mark episode %d failed: %v", p.EpisodeID, markErr)
		}
		return fmt.Errorf("episode %d unprocessable: %v: %w", p.EpisodeID, err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried >= maxRetry {
		log.Printf("Episode %d exhausted %d retries: %v", p.EpisodeID, maxRetry, err)
		if markErr := db.MarkEpisodeFailed(p.EpisodeID, reasonFor(err)); markErr != nil {
			log.Printf("failed to mark episode %d failed: %v", p.EpisodeID, markErr)
		}
	}
	return err
}

// HandleScheduleDigestTask is the hourly digest tick: one delivery job per
// user whose preferred hour is now. The (user, hour) task id keeps a slow
// delivery from running concurrently with itself.
func (h *TaskHandler) HandleScheduleDigestTask(ctx context.Context, t *asynq.Task) error {
	hour := time.Now().UTC().Hour()
	users, err := db.UsersDueAtHour(hour)
	if err != nil {
		return fmt.Errorf("failed to load users due at hour %d: %w", hour, err)
	}

	for _, user := range users {
		task, err := tasks.NewDeliverDigestTask(user.ID, hour)
		if err != nil {
			log.Printf("failed to create digest task for user %d: %v", user.ID, err)
			continue
		}
		if _, err := h.asynqClient.Enqueue(task); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				log.Printf("digest for user %d already queued this hour, skipping", user.ID)
				continue
			}
			log.Printf("failed to enqueue digest task for user %d: %v", user.ID, err)
		}
	}
	log.Printf("Digest tick at hour %d queued %d users", hour, len(users))
	return nil
}

func (h *TaskHandler) HandleDeliverDigestTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.DeliverDigestTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	user, err := db.GetUserByID(p.UserID)
	if err != nil {
		return fmt.Errorf("failed to get user %d: %w", p.UserID, err)
	}

	episodes, err := db.UndeliveredCompletedEpisodes(user.ID, user.Channel)
	if err != nil {
		return fmt.Errorf("failed to load due episodes for user %d: %w", user.ID, err)
	}
	if len(episodes) == 0 {
		return nil
	}

	// Delivery failures come back as ErrDeliveryChannel; the per-record
	// outcomes are already persisted, so a retry only re-sends what is
	// still pending.
	return h.dispatcher.Deliver(ctx, *user, episodes)
}

// reasonFor strips the wrapping down to the taxonomy label plus detail for
// the human-readable failure_reason column.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrContentUnavailable):
		return "content unavailable: " + err.Error()
	case errors.Is(err, fingerprint.ErrInvalidURL):
		return "invalid URL: " + err.Error()
	case errors.Is(err, pipeline.ErrTransient):
		return "transient service error: " + err.Error()
	default:
		return err.Error()
	}
}
