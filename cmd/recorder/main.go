package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zanzhit/voice_recorder/internal/config"
	"github.com/zanzhit/voice_recorder/internal/domain/models"
	authhandler "github.com/zanzhit/voice_recorder/internal/http-server/handlers/auth"
	recordinghandler "github.com/zanzhit/voice_recorder/internal/http-server/handlers/recordings"
	authmiddleware "github.com/zanzhit/voice_recorder/internal/http-server/middleware/auth"
	"github.com/zanzhit/voice_recorder/internal/http-server/middleware/logger"
	"github.com/zanzhit/voice_recorder/internal/lib/sl"
	authservice "github.com/zanzhit/voice_recorder/internal/services/auth"
	"github.com/zanzhit/voice_recorder/internal/services/session"
	"github.com/zanzhit/voice_recorder/internal/services/transcribe"
	"github.com/zanzhit/voice_recorder/internal/services/transcribe/speech"
	"github.com/zanzhit/voice_recorder/internal/storage/postgres"
	authstorage "github.com/zanzhit/voice_recorder/internal/storage/postgres/auth"
	markerstorage "github.com/zanzhit/voice_recorder/internal/storage/postgres/markers"
	recordingstorage "github.com/zanzhit/voice_recorder/internal/storage/postgres/recordings"
	"github.com/zanzhit/voice_recorder/internal/storage/waypoints"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting voice recorder", slog.String("env", cfg.Env))

	if cfg.DB.Password == "" {
		panic("POSTGRES_PASSWORD is required")
	}

	storage, err := postgres.New(cfg.DB)
	if err != nil {
		panic(err)
	}

	if err := os.MkdirAll(cfg.Session.RecordingsPath, 0o755); err != nil {
		panic(err)
	}
	if err := os.MkdirAll(cfg.Waypoints.Path, 0o755); err != nil {
		panic(err)
	}

	authStorage := authstorage.New(storage)
	recordingStorage := recordingstorage.New(storage)
	markerStorage := markerstorage.New(storage)

	waypointStore := waypoints.New(cfg.Waypoints.Path)

	authService := authservice.New(log, authStorage, cfg.TokenTTL, cfg.Secret)
	if err := authService.CreateInitialAdmin(); err != nil {
		log.Warn("initial admin not created", sl.Err(err))
	}

	transcribeService := transcribe.New(
		log,
		recordingStorage,
		speech.New(cfg.Speech),
		waypointStore,
		transcribe.NewLogNotifier(log),
		cfg.Waypoints.Name,
		cfg.Speech.Enabled,
	)

	sessionController := session.New(
		log,
		session.NewGpsdLocator(cfg.Session.GpsdAddress),
		session.NewEspeakAnnouncer(cfg.Session.Voice),
		session.NewGstRecorder(cfg.Session.HandsFreeDevice),
		recordingStorage,
		markerStorage,
		session.NewLogSink(log),
		session.Config{
			RecordingsPath:  cfg.Session.RecordingsPath,
			Duration:        time.Duration(cfg.Session.DurationSeconds) * time.Second,
			LocationTimeout: cfg.Session.LocationTimeout,
			CaptureSetup:    cfg.Session.CaptureSetup,
			AnnounceTimeout: cfg.Session.AnnounceTimeout,
			GraceDelay:      cfg.Session.GraceDelay,
			Profile:         models.CaptureProfile(cfg.Session.Profile),
			TranscriptionOn: cfg.Speech.Enabled,
		},
	)

	authHandler := authhandler.New(log, authService)
	recordingHandler := recordinghandler.New(log, sessionController, recordingStorage, transcribeService)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(logger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Post("/auth/login", authHandler.Login)

	router.Group(func(r chi.Router) {
		r.Use(authmiddleware.JWTAuth(cfg.Secret))

		r.Group(func(r chi.Router) {
			r.Use(authmiddleware.AdminRequired)

			r.Post("/auth/register", authHandler.RegisterNewUser)
		})

		r.Post("/recordings/launch", recordingHandler.Launch)
		r.Get("/recordings", recordingHandler.Recordings)
		r.Post("/recordings/transcribe", recordingHandler.Transcribe)
		r.Post("/recordings/{id}/retry", recordingHandler.Retry)
		r.Get("/recordings/{id}/export", recordingHandler.Export)
		r.Delete("/recordings/{id}", recordingHandler.Delete)
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", sl.Err(err))
		}
	}()

	log.Info("server started", slog.String("address", cfg.HTTPServer.Address))

	<-done
	log.Info("stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("failed to stop server", sl.Err(err))

		return
	}

	log.Info("server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
