package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wizardAPI/handlers"
	"wizardAPI/internal/logger"
	"wizardAPI/middleware"
)

type routerDeps struct {
	log           *logger.Logger
	auth          *middleware.Auth
	limiter       *middleware.RateLimiter
	challenges    *handlers.ChallengeHandler
	notifications *handlers.NotificationHandler
	webhook       *handlers.WebhookHandler // nil disables /webhooks/clerk
	health        func(ctx context.Context) error
	metricsUser   string
	metricsPass   string
}

func newRouter(d routerDeps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.RequestLogger(d.log))
	r.Use(d.limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(d.metricsUser, d.metricsPass)(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := d.health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "wizard-api"}`))
	}).Methods("GET")

	if d.webhook != nil {
		r.HandleFunc("/webhooks/clerk", d.webhook.HandleClerkWebhook).Methods("POST")
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	public := api.PathPrefix("").Subrouter()
	public.Use(d.auth.Optional)
	public.HandleFunc("/challenges", d.challenges.ListChallenges).Methods("GET")
	public.HandleFunc("/challenges/{id}", d.challenges.GetChallenge).Methods("GET")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(d.auth.Require)
	protected.HandleFunc("/challenges/my/active", d.challenges.GetActiveChallenges).Methods("GET")
	protected.HandleFunc("/challenges/{id}/start", d.challenges.StartChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/pause", d.challenges.PauseChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/resume", d.challenges.ResumeChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{challengeId}/rituals/{ritualId}/complete", d.challenges.CompleteRitual).Methods("POST")
	protected.HandleFunc("/challenges/{id}/progress", d.challenges.GetProgress).Methods("GET")
	protected.HandleFunc("/notifications/register-device", d.notifications.RegisterDevice).Methods("POST")

	return r
}
