package pipeline

import "errors"

var (
	// ErrContentUnavailable means the content is gone (deleted, private,
	// region-locked). Non-retriable: the episode fails terminally.
	ErrContentUnavailable = errors.New("content unavailable")

	// ErrTransient covers timeouts, rate limits and temporary outages of
	// the external services. Retried with backoff up to the task's bound.
	ErrTransient = errors.New("transient service error")
)
