// Package pipeline drives an episode through its processing stages:
// extract, transcribe, summarize. Stage transitions go through the episode
// store's conditional advance, which is what keeps at most one run active
// per episode no matter how many duplicate submissions triggered it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mediadigest/internal/db"
	"mediadigest/internal/models"
)

// Orchestrator owns the stage sequence for one episode at a time. The
// external collaborators are injected so tests can fake them.
type Orchestrator struct {
	extractor   Extractor
	transcriber Transcriber
	summarizer  Summarizer
}

func NewOrchestrator(e Extractor, t Transcriber, s Summarizer) *Orchestrator {
	return &Orchestrator{extractor: e, transcriber: t, summarizer: s}
}

// Process advances the episode through its remaining stages. An episode
// found mid-pipeline resumes at the stage its status names, so a crashed
// run never redoes completed work. A state conflict means another worker
// owns the run; it is swallowed here because it signals correct
// de-duplication, not a fault.
func (o *Orchestrator) Process(ctx context.Context, episodeID int) error {
	episode, err := db.GetEpisodeByID(episodeID)
	if err != nil {
		return fmt.Errorf("load episode %d: %w", episodeID, err)
	}

	for !episode.Status.Terminal() {
		if err := o.step(ctx, &episode); err != nil {
			if errors.Is(err, db.ErrStateConflict) {
				log.Printf("Episode %d: lost the run to another worker, dropping", episode.ID)
				return nil
			}
			return err
		}
	}
	return nil
}

// step performs the stage named by the current status and advances past it.
// The stage's output lands in the same conditional update that moves the
// state forward, so a crash between work and advance only ever repeats the
// stage, never skips it.
func (o *Orchestrator) step(ctx context.Context, episode *models.Episode) error {
	switch episode.Status {
	case models.StatusPending:
		// The claim: only the caller that wins this transition runs the
		// pipeline.
		if err := db.AdvanceEpisode(episode.ID, models.StatusPending, models.StatusExtracting, db.StagePayload{}); err != nil {
			return err
		}
		episode.Status = models.StatusExtracting
		return nil

	case models.StatusExtracting:
		ex, err := o.extractor.Extract(ctx, *episode)
		if err != nil {
			return fmt.Errorf("extract episode %d: %w", episode.ID, err)
		}
		payload := db.StagePayload{}
		if ex.Title != "" {
			payload.Title = &ex.Title
		}
		if ex.AudioURL != "" {
			payload.AudioURL = &ex.AudioURL
		}
		if err := db.AdvanceEpisode(episode.ID, models.StatusExtracting, models.StatusTranscribing, payload); err != nil {
			return err
		}
		if payload.Title != nil {
			episode.Title = payload.Title
		}
		if payload.AudioURL != nil {
			episode.AudioURL = payload.AudioURL
		}
		episode.Status = models.StatusTranscribing
		return nil

	case models.StatusTranscribing:
		if episode.AudioURL == nil || *episode.AudioURL == "" {
			return fmt.Errorf("episode %d: %w: no media resolved", episode.ID, ErrContentUnavailable)
		}
		transcript, err := o.transcriber.Transcribe(ctx, *episode.AudioURL)
		if err != nil {
			return fmt.Errorf("transcribe episode %d: %w", episode.ID, err)
		}
		payload := db.StagePayload{Transcript: &transcript}
		if err := db.AdvanceEpisode(episode.ID, models.StatusTranscribing, models.StatusSummarizing, payload); err != nil {
			return err
		}
		episode.Transcript = &transcript
		episode.Status = models.StatusSummarizing
		return nil

	case models.StatusSummarizing:
		if episode.Transcript == nil || *episode.Transcript == "" {
			return fmt.Errorf("episode %d: %w: transcript missing", episode.ID, ErrTransient)
		}
		title := ""
		if episode.Title != nil {
			title = *episode.Title
		}
		summary, err := o.summarizer.Summarize(ctx, title, *episode.Transcript)
		if err != nil {
			return fmt.Errorf("summarize episode %d: %w", episode.ID, err)
		}
		payload := db.StagePayload{Summary: &summary}
		if err := db.AdvanceEpisode(episode.ID, models.StatusSummarizing, models.StatusCompleted, payload); err != nil {
			return err
		}
		episode.Summary = &summary
		episode.Status = models.StatusCompleted
		return nil

	default:
		return fmt.Errorf("episode %d: unexpected status %s", episode.ID, episode.Status)
	}
}
