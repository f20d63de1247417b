package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"mediadigest/internal/db"
	"mediadigest/internal/handlers"
	"mediadigest/internal/middleware"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func newRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/sources", h.PostSource).Methods(http.MethodPost)
	r.HandleFunc("/sources/{id:[0-9]+}/poll", h.PostSourcePoll).Methods(http.MethodPost)

	r.HandleFunc("/episodes/submit", h.PostSubmit).Methods(http.MethodPost)
	r.HandleFunc("/episodes/{id:[0-9]+}", h.GetEpisode).Methods(http.MethodGet)
	r.HandleFunc("/episodes/{id:[0-9]+}/status", h.GetEpisodeStatus).Methods(http.MethodGet)
	r.HandleFunc("/episodes/{id:[0-9]+}/reprocess", h.PostReprocess).Methods(http.MethodPost)

	r.HandleFunc("/users", h.PostUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}/settings", h.PutUserSettings).Methods(http.MethodPut)
	r.HandleFunc("/users/{id:[0-9]+}/subscribe", h.PostSubscribe).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}/subscribe", h.DeleteSubscribe).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id:[0-9]+}/digest-queue", h.GetDigestQueue).Methods(http.MethodGet)

	r.HandleFunc("/digest/{uuid}.rss", h.GetDigestFeed).Methods(http.MethodGet)

	// The Telegram Mini App reaches its own authenticated corner of the
	// API; everything else is for service-to-service use.
	rl := middleware.NewRateLimiterMiddleware(rate.Limit(5), 10)
	r.Handle("/app/subscriptions",
		middleware.AuthMiddleware(rl.Middleware(http.HandlerFunc(h.GetMySubscriptions)))).
		Methods(http.MethodGet)

	return r
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	router := newRouter(handlers.New(client))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on :%s (commit: %s)", port, CommitSHA)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}
