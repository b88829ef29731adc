package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/glowingemp118/vital-sign-be/internal/auth"
	"github.com/glowingemp118/vital-sign-be/internal/chat"
	"github.com/glowingemp118/vital-sign-be/internal/config"
	"github.com/glowingemp118/vital-sign-be/internal/crypt"
	"github.com/glowingemp118/vital-sign-be/internal/data"
	"github.com/glowingemp118/vital-sign-be/internal/db"
	"github.com/glowingemp118/vital-sign-be/internal/middleware"
	"github.com/glowingemp118/vital-sign-be/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	// Database
	dbClient, err := db.New(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to create indexes")
	}

	// At-rest content encryption
	cipher, err := crypt.New(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize content cipher")
	}

	// Stores
	msgStore := data.NewMessagesStore(dbClient.MessagesCollection(), cipher)
	registry := data.NewConnectionRegistry(dbClient.ConnectionsCollection(), cfg.StaleConnectionMaxAge)
	users := data.NewUsersStore(dbClient.UsersCollection())

	// Push notification collaborator: FCM when credentials are configured,
	// log-only otherwise.
	var notifier notify.Sender
	if cfg.FirebaseCredentialsFile != "" {
		notifyStore := notify.NewStore(dbClient.DevicesCollection(), dbClient.NotificationsCollection())
		notifier, err = notify.NewFCMSender(ctx, cfg.FirebaseCredentialsFile, notifyStore, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize FCM sender")
		}
	} else {
		logger.Warn().Msg("no FCM credentials configured; push notifications are log-only")
		notifier = notify.NewLogSender(logger)
	}

	// Chat core
	hub := NewSessionHub()
	chatSvc := chat.NewService(msgStore, registry, users, hub, notifier, logger, cfg.PageSize, cfg.BaseURL)

	// Background reaper for stale bindings
	sweeper := chat.NewSweeper(registry, cfg.SweepInterval, cfg.StaleConnectionMaxAge, logger)
	sweeper.Start()
	defer sweeper.Stop()

	// Identity + rate limiting
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.AuthTokenDuration)
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer limiterStore.Stop()

	srv := newServer(chatSvc, hub, jwtMgr, limiterStore, cfg.Origins(), logger)

	corsMW := cors.New(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      corsMW.Handler(srv.routes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("chat server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exit")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}

// newLogger builds the process logger: pretty console output in development,
// JSON elsewhere.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}
	return logger
}
