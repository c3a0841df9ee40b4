package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/orchestrator"
	"server/internal/prompts"
	"server/internal/providers/kontext"
	"server/internal/providers/vision"
	"server/internal/storage"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Session store backend
	var sessions domain.SessionRepository
	switch cfg.SessionStore {
	case infra.StoreBackendPostgres:
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		sessions = repo.NewSessionRepository(dbpool)
	case infra.StoreBackendFilesystem:
		store, err := storage.NewSessionStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("failed to open session store")
		}
		sessions = store
	}

	// Providers
	visionClient, err := vision.NewClient(vision.Options{
		APIKey:  cfg.MistralAPIKey,
		BaseURL: cfg.MistralBaseURL,
		Model:   cfg.MistralModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build vision client")
	}
	if !visionClient.HasCredentials() {
		logger.Warn().Msg("MISTRAL_API_KEY not set, prompt generation runs in static-only mode")
	}
	kontextClient, err := kontext.NewClient(kontext.Options{
		APIKey:  cfg.BFLAPIKey,
		BaseURL: cfg.BFLBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build kontext client")
	}
	if !kontextClient.HasCredentials() {
		logger.Warn().Msg("BFL_API_KEY not set, transformations will fail until one is provided")
	}

	generator := prompts.NewGenerator(prompts.Options{
		Source:      visionClient,
		StaticCount: cfg.StaticPromptCount,
		Logger:      &logger,
	})
	runner := orchestrator.New(orchestrator.Options{
		Client:       kontextClient,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
		Logger:       &logger,
	})

	app := handlers.NewApp(cfg, logger, sessions, generator, runner)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
