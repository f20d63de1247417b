package main

import (
	"log"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"mediadigest/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddr},
		&asynq.SchedulerOpts{},
	)

	pollTask, err := tasks.NewPollAllSourcesTask()
	if err != nil {
		log.Fatalf("could not create poll task: %v", err)
	}
	digestTask, err := tasks.NewScheduleDigestTask()
	if err != nil {
		log.Fatalf("could not create digest task: %v", err)
	}

	// Poll at :00; digest at :05, so new episodes have a head start on
	// processing before delivery is considered. Episodes still in flight
	// at :05 are picked up by a later digest tick.
	if _, err := scheduler.Register("0 * * * *", pollTask); err != nil {
		log.Fatalf("could not register poll task: %v", err)
	}
	if _, err := scheduler.Register("5 * * * *", digestTask); err != nil {
		log.Fatalf("could not register digest task: %v", err)
	}

	log.Printf("Scheduler starting (commit: %s)", CommitSHA)
	if err := scheduler.Run(); err != nil {
		log.Fatalf("could not run scheduler: %v", err)
	}
}
