package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"wizardAPI/handlers"
	"wizardAPI/internal/config"
	"wizardAPI/internal/database"
	"wizardAPI/internal/logger"
	"wizardAPI/internal/notification"
	"wizardAPI/middleware"
	"wizardAPI/repository"
	"wizardAPI/services"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			return serve(cmd.Context(), cfg, log)
		},
	}
}

func tokenVerifier(cfg *config.Config) middleware.TokenVerifier {
	if cfg.AuthProvider == config.AuthProviderJWT {
		return middleware.NewJWTVerifier(cfg.JWTSecret)
	}
	clerk.SetKey(cfg.ClerkSecretKey)
	return middleware.ClerkVerifier{}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database connection pool")
		pool.Close()
	}()
	log.Info("connected to database")

	userService := services.NewUserService(repository.NewPostgresUserRepository(pool), log)
	challengeService := services.NewChallengeService(repository.NewPostgresChallengeRepository(pool), log)
	notificationService := services.NewNotificationService(repository.NewPostgresDeviceRepository(pool), log)

	fcmService, err := notification.NewFCMService(ctx, cfg.FCMCredentialsJSON, cfg.FCMCredentialsFile, log)
	if err != nil {
		log.Warn("could not initialize FCM, push notifications disabled", "error", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Info("FCM push provider initialized")
	}
	notificationService.Start(ctx)
	defer notificationService.Stop()
	challengeService.SetNotifier(notificationService)

	middleware.InitPrometheus(prometheus.DefaultRegisterer)
	services.RegisterMetrics(prometheus.DefaultRegisterer)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.CleanupVisitors(ctx)

	var webhookHandler *handlers.WebhookHandler
	if cfg.ClerkWebhookSecret != "" {
		webhookHandler, err = handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret, log)
		if err != nil {
			return err
		}
	} else {
		log.Warn("CLERK_WEBHOOK_SECRET not set, user sync webhook disabled")
	}

	router := newRouter(routerDeps{
		log:           log,
		auth:          middleware.NewAuth(tokenVerifier(cfg), userService, log),
		limiter:       limiter,
		challenges:    handlers.NewChallengeHandler(challengeService, log),
		notifications: handlers.NewNotificationHandler(notificationService, log),
		webhook:       webhookHandler,
		health:        pool.Ping,
		metricsUser:   cfg.MetricsUser,
		metricsPass:   cfg.MetricsPass,
	})

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(cfg.CORSOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
		return err
	}

	log.Info("server shutdown complete")
	return nil
}
