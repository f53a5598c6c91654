package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aoe4hub/tournament-engine/config"
	"github.com/aoe4hub/tournament-engine/db"
	"github.com/aoe4hub/tournament-engine/handlers"
	"github.com/aoe4hub/tournament-engine/realtime"
	"github.com/aoe4hub/tournament-engine/repositories"
	"github.com/aoe4hub/tournament-engine/routes"
	"github.com/aoe4hub/tournament-engine/services"
	"github.com/aoe4hub/tournament-engine/storage"
	"github.com/aoe4hub/tournament-engine/tasks"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	schedulerLoc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		logger.Error("invalid scheduler timezone", slog.String("timezone", cfg.SchedulerTimezone), slog.Any("error", err))
		os.Exit(1)
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("Cloudflare R2 not configured, logo uploads disabled")
	}

	hub := realtime.NewHub(logger)
	go hub.Run()

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	entrantRepo := repositories.NewPostgresEntrantRepository(dbConn)
	stageRepo := repositories.NewPostgresStageRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	inviteRepo := repositories.NewPostgresInviteRepository(dbConn)
	requestRepo := repositories.NewPostgresJoinRequestRepository(dbConn)
	availabilityRepo := repositories.NewPostgresAvailabilityRepository(dbConn)
	taskRepo := repositories.NewPostgresTaskRepository(dbConn)

	queue := tasks.NewQueue(taskRepo)

	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey, cfg.JWTTokenTTL)
	tournamentService := services.NewTournamentService(tournamentRepo, userRepo, queue, uploader, logger)
	joinService := services.NewJoinService(dbConn, tournamentRepo, participantRepo, entrantRepo, inviteRepo, userRepo, logger)
	entrantService := services.NewEntrantService(dbConn, tournamentRepo, entrantRepo, participantRepo, userRepo, logger)
	requestService := services.NewJoinRequestService(dbConn, tournamentRepo, participantRepo, entrantRepo, requestRepo, userRepo, logger)
	availabilityService := services.NewAvailabilityService(dbConn, availabilityRepo, logger)
	bracketService := services.NewBracketService(tournamentRepo, stageRepo, matchRepo, entrantRepo)

	leagueService := services.NewLeagueFormatService(stageRepo, matchRepo)
	singleElimService := services.NewSingleElimFormatService(stageRepo, matchRepo)
	structureService := services.NewStructureService(dbConn, tournamentRepo, entrantRepo, stageRepo, leagueService, singleElimService, logger)
	schedulingService := services.NewSchedulingService(dbConn, tournamentRepo, matchRepo, entrantRepo, availabilityRepo, schedulerLoc, logger)

	worker := tasks.NewWorker(taskRepo, structureService, schedulingService, hub, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go func() {
		if err := worker.Run(workerCtx, cfg.WorkerCount); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker pool stopped", slog.Any("error", err))
		}
	}()
	logger.Info("worker pool started", slog.Int("workers", cfg.WorkerCount))

	router := routes.InitRoutes(routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Tournament:   handlers.NewTournamentHandler(tournamentService, bracketService),
		Join:         handlers.NewJoinHandler(joinService),
		Entrant:      handlers.NewEntrantHandler(entrantService),
		JoinRequest:  handlers.NewJoinRequestHandler(requestService),
		Availability: handlers.NewAvailabilityHandler(availabilityService),
		Task:         handlers.NewTaskHandler(queue),
		WebSocket:    handlers.NewWebSocketHandler(hub, logger),
	}, authService, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		stopWorkers()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
	}
	logger.Info("application exited")
}
