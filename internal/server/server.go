package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mealplan/internal/handler"
	"github.com/dukerupert/mealplan/internal/middleware"
	"github.com/dukerupert/mealplan/internal/notify"
	"github.com/dukerupert/mealplan/internal/store"
)

// Config holds the HTTP surface settings.
type Config struct {
	CronAuth      middleware.CronAuth
	CronRateLimit int // requests per minute per client IP
	BatchLimit    int
}

type Server struct {
	db                *sql.DB
	notificationStore *store.NotificationStore
	scheduleStore     *store.ScheduleStore
	leaseStore        *store.LeaseStore
	job               *notify.Job
	cleanup           *notify.Cleanup
	cronH             *handler.CronHandler
	cronAuth          middleware.CronAuth
	rateLimiter       *middleware.RateLimiter
	logger            *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	notificationStore := store.NewNotificationStore(db)

	job := notify.NewJob(notificationStore, logger.With("component", "windowed_job"))
	cleanup := notify.NewCleanup(notificationStore, notify.DefaultRetention, logger.With("component", "cleanup_job"))

	return &Server{
		db:                db,
		notificationStore: notificationStore,
		scheduleStore:     store.NewScheduleStore(db),
		leaseStore:        store.NewLeaseStore(db),
		job:               job,
		cleanup:           cleanup,
		cronH:             handler.NewCronHandler(job, cleanup, cfg.BatchLimit, logger.With("component", "cron")),
		cronAuth:          cfg.CronAuth,
		rateLimiter:       middleware.NewRateLimiter(cfg.CronRateLimit),
		logger:            logger,
	}
}

// Job returns the windowed scheduler job shared by the runner and /tick.
func (s *Server) Job() *notify.Job {
	return s.job
}

// Cleanup returns the cleanup job shared by the runner and /cleanup.
func (s *Server) Cleanup() *notify.Cleanup {
	return s.cleanup
}

// LeaseStore returns the lease store for the runner.
func (s *Server) LeaseStore() *store.LeaseStore {
	return s.leaseStore
}

// ScheduleStore returns the schedule store used by collaborators.
func (s *Server) ScheduleStore() *store.ScheduleStore {
	return s.scheduleStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	cron := func(h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(s.rateLimiter)(middleware.RequireCron(s.cronAuth)(h))
	}
	mux.Handle("GET /tick", cron(s.cronH.Tick))
	mux.Handle("GET /cleanup", cron(s.cronH.Cleanup))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
