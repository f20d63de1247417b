package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypePollAllSources = "sources:poll_all"
	TypePollSource     = "source:poll"
	TypeProcessEpisode = "episode:process"
	TypeScheduleDigest = "digest:schedule"
	TypeDeliverDigest  = "digest:deliver"
)

// ProcessMaxRetry bounds transient pipeline retries; exhaustion marks the
// episode FAILED with the last reason.
const ProcessMaxRetry = 3

type PollSourceTaskPayload struct {
	SourceID int
}

// pollTaskID scopes the poll task id to the hourly tick. Within one tick a
// source is never polled concurrently with itself; a task archived after
// retry exhaustion keeps its id in the broker, so an unscoped id would block
// every future tick for that source.
func pollTaskID(sourceID int, now time.Time) string {
	return fmt.Sprintf("poll:%d:%d", sourceID, now.UTC().Unix()/3600)
}

// NewPollSourceTask polls one source. The tick-scoped task id caps a source
// at one poll task per tick.
func NewPollSourceTask(sourceID int) (*asynq.Task, error) {
	payload, err := json.Marshal(PollSourceTaskPayload{SourceID: sourceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePollSource, payload,
		asynq.TaskID(pollTaskID(sourceID, time.Now())),
		asynq.MaxRetry(ProcessMaxRetry),
	), nil
}

type ProcessEpisodeTaskPayload struct {
	EpisodeID int
}

func NewProcessEpisodeTask(episodeID int) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessEpisodeTaskPayload{EpisodeID: episodeID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcessEpisode, payload,
		asynq.MaxRetry(ProcessMaxRetry),
	), nil
}

type DeliverDigestTaskPayload struct {
	UserID int64
	// Hour is the digest tick (UTC hour) that produced this job; it scopes
	// the task id so one user's digest never runs concurrently with itself.
	Hour int
}

// digestTaskID scopes the digest task id to the calendar day. A user's hour
// is fixed, so an id without the date would stay taken in the broker after a
// retry-exhausted delivery and silence every later digest for that user.
func digestTaskID(userID int64, hour int, now time.Time) string {
	return fmt.Sprintf("digest:%d:%s:%d", userID, now.UTC().Format("2006-01-02"), hour)
}

func NewDeliverDigestTask(userID int64, hour int) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverDigestTaskPayload{UserID: userID, Hour: hour})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDeliverDigest, payload,
		asynq.TaskID(digestTaskID(userID, hour, time.Now())),
		asynq.MaxRetry(ProcessMaxRetry),
	), nil
}

func NewPollAllSourcesTask() (*asynq.Task, error) {
	return asynq.NewTask(TypePollAllSources, nil), nil
}

func NewScheduleDigestTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeScheduleDigest, nil), nil
}
