package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"mediadigest/internal/db"
	"mediadigest/internal/delivery"
	"mediadigest/internal/models"
	"mediadigest/internal/pipeline"
	"mediadigest/internal/poller"
	"mediadigest/internal/worker"
	"mediadigest/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	concurrency := 2
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			concurrency = n
		}
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 2,
				"default":  1,
			},
			// Exponential backoff for transient stage failures: 1m, 2m,
			// 4m, ... capped at an hour.
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Minute
				maxDelay := time.Hour
				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}
				log.Printf("Task %s failed %d times, retrying in %v", task.Type(), n+1, delay)
				return delay
			},
		},
	)

	senders := map[models.Channel]delivery.Sender{
		models.ChannelEmail: delivery.NewEmailSender(),
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		telegram, err := delivery.NewTelegramSender(token)
		if err != nil {
			log.Fatalf("could not init telegram sender: %v", err)
		}
		senders[models.ChannelTelegram] = telegram
	}

	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewYtDlpExtractor(),
		pipeline.NewTranscribeClient(),
		pipeline.NewClaudeSummarizer(),
	)

	taskHandler := worker.NewTaskHandler(
		client,
		orchestrator,
		poller.New(poller.NewGofeedFetcher(), client),
		delivery.NewDispatcher(senders),
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePollAllSources, taskHandler.HandlePollAllSourcesTask)
	mux.HandleFunc(tasks.TypePollSource, taskHandler.HandlePollSourceTask)
	mux.HandleFunc(tasks.TypeProcessEpisode, taskHandler.HandleProcessEpisodeTask)
	mux.HandleFunc(tasks.TypeScheduleDigest, taskHandler.HandleScheduleDigestTask)
	mux.HandleFunc(tasks.TypeDeliverDigest, taskHandler.HandleDeliverDigestTask)

	log.Printf("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
