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
	"server/internal/alerts"
	"server/internal/credpool"
	"server/internal/gateway"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/providers/kie"
	"server/internal/status"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := infra.RunMigrations(cfg, "migrations", logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	runner := infra.NewSQLRunner(dbpool, logger)
	credRepo := repo.NewCredentialRepository(runner)
	alertRepo := repo.NewAlertRepository(runner)

	upstream := kie.NewClient(kie.Options{BaseURL: cfg.UpstreamBaseURL, Logger: &logger})
	sink := alerts.NewSink(alertRepo, cfg.AlertDedupWindow, logger)
	pool := credpool.NewManager(credRepo, upstream, sink, cfg.CreditThreshold, logger)

	relocator, err := newRelocator(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure media store")
	}
	normalizer := status.NewNormalizer(relocator, logger)

	gw := gateway.New(gateway.Options{
		Pool:        pool,
		Upstream:    upstream,
		Normalizer:  normalizer,
		FallbackKey: cfg.UpstreamFallbackKey,
		Logger:      logger,
	})

	app := handlers.NewApp(pool, gw, alertRepo, logger)
	router := httpapi.NewRouter(app, cfg, logger)
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

// newRelocator selects the media store implementation. "off" disables
// relocation entirely; completed jobs then keep their upstream URLs.
func newRelocator(cfg *infra.Config, logger infra.Logger) (status.Relocator, error) {
	switch cfg.MediaStore {
	case "cloudinary":
		return storage.NewCloudinaryStore(storage.CloudinaryOptions{
			CloudName: cfg.CloudinaryCloud,
			APIKey:    cfg.CloudinaryKey,
			APISecret: cfg.CloudinarySecret,
			Preset:    cfg.CloudinaryPreset,
			Logger:    logger,
		})
	case "filesystem":
		return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL, logger)
	default:
		return nil, nil
	}
}
