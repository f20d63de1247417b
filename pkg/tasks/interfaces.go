package tasks

import "github.com/hibiken/asynq"

// TaskEnqueuer is the narrow slice of asynq.Client the rest of the system
// needs. Mocked in tests.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
