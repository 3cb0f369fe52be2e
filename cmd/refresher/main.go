package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/alerts"
	"server/internal/credpool"
	"server/internal/infra"
	"server/internal/providers/kie"
)

// The refresher re-probes every pool credential on a fixed interval so
// balances stay fresh independent of request traffic.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "refresher").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("refresher: db connection failed")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	credRepo := repo.NewCredentialRepository(runner)
	alertRepo := repo.NewAlertRepository(runner)
	upstream := kie.NewClient(kie.Options{BaseURL: cfg.UpstreamBaseURL, Logger: &logger})
	sink := alerts.NewSink(alertRepo, cfg.AlertDedupWindow, logger)
	pool := credpool.NewManager(credRepo, upstream, sink, cfg.CreditThreshold, logger)

	if err := run(ctx, pool, cfg.PoolRefreshInterval, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("refresher: stopped with error")
	}
	logger.Info().Msg("refresher: stopped")
}

func run(ctx context.Context, pool *credpool.Manager, interval time.Duration, logger infra.Logger) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	logger.Info().Dur("interval", interval).Msg("refresher: started")

	// One refresh at startup, then on the ticker.
	refresh(ctx, pool, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh(ctx, pool, logger)
		}
	}
}

func refresh(ctx context.Context, pool *credpool.Manager, logger infra.Logger) {
	if err := pool.RefreshAll(ctx); err != nil {
		logger.Error().Err(err).Msg("refresher: refresh failed")
	}
}
