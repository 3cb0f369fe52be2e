package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/alerts"
	"server/internal/credpool"
	"server/internal/infra"
	"server/internal/providers/kie"
)

// apikey registers an upstream credential in the pool from the command line.
func main() {
	var (
		keyFlag  string
		nameFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "upstream API key (falls back to UPSTREAM_API_KEY)")
	flag.StringVar(&nameFlag, "name", "", "display name for the credential")
	flag.Parse()

	_ = godotenv.Load()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("UPSTREAM_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "API key is required via -key or UPSTREAM_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgpool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pgpool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "apikey").Logger()
	runner := infra.NewSQLRunner(pgpool, logger)

	threshold := float64(credpool.DefaultCreditThreshold)
	if v, err := strconv.ParseFloat(os.Getenv("CREDIT_THRESHOLD"), 64); err == nil && v > 0 {
		threshold = v
	}

	upstream := kie.NewClient(kie.Options{BaseURL: os.Getenv("UPSTREAM_BASE_URL"), Logger: &logger})
	sink := alerts.NewSink(repo.NewAlertRepository(runner), 0, logger)
	pool := credpool.NewManager(repo.NewCredentialRepository(runner), upstream, sink, threshold, logger)

	cred, err := pool.AddCredential(ctx, key, strings.TrimSpace(nameFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to store credential: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("credential %s stored (credits=%.2f active=%t current=%t)\n", cred.ID, cred.Credits, cred.Active, cred.Current)
}
