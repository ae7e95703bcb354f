package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/config"
	server "github.com/scottsumerford/AutoPrep-Team-sub000/internal/http"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/migrate"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/poller"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/storage"
	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	role := flag.String("role", "all", "process role: api|sweeper|poll|all")
	pollEventID := flag.Int64("event", 0, "event id to poll (role=poll)")
	pollKind := flag.String("kind", string(jobs.KindPresalesReport), "job kind to poll: presales_report|slides (role=poll)")
	flag.Parse()

	cfg := config.Load(*configPath)

	// The poll role is a thin API client; it needs no database or
	// migrations.
	if *role == "poll" {
		runPoller(cfg, *pollEventID, jobs.Kind(*pollKind))
		return
	}

	// Run migrations once at startup on a short-lived connection.
	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	// Create a shared *sql.DB with pooling for the Store
	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(db)

	rootCtx := context.Background()

	// Ensure initial admin API key if configured
	if cfg.Auth.Enabled && cfg.Auth.InitialAdminKey != "" {
		if _, err := st.EnsureAdminAPIKey(rootCtx, cfg.Auth.InitialAdminKey, "initial-admin"); err != nil {
			log.Fatalf("ensure admin api key failed: %v", err)
		}
	}

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	storageSvc, err := storage.New(rootCtx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage setup failed: %v", err)
	}

	sweeper := jobs.NewSweeper(cfg, st, logger)

	switch *role {
	case "api":
		// API-only: staleness is still enforced lazily on trigger.
		s := server.NewServer(cfg, st, storageSvc, logger)
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case "sweeper":
		// Sweeper-only: run the background sweep loop and block.
		sweeper.Start(rootCtx)
	case "all":
		// Default: run both API and sweeper in one process.
		go sweeper.Start(rootCtx)
		s := server.NewServer(cfg, st, storageSvc, logger)
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	default:
		log.Fatalf("invalid role: %s (expected api|sweeper|poll|all)", *role)
	}
}

// runPoller watches one event's job from the command line until it
// reaches a terminal state or the staleness budget elapses.
func runPoller(cfg *config.Config, eventID int64, kind jobs.Kind) {
	if eventID <= 0 {
		log.Fatal("role=poll requires -event")
	}
	if !kind.Valid() {
		log.Fatalf("invalid kind: %s (expected presales_report|slides)", kind)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	baseURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	client := poller.NewClient(baseURL, os.Getenv("AUTOPREP_API_KEY"))

	interval := time.Duration(cfg.Jobs.PollIntervalSecs) * time.Second
	p := poller.New(client, interval, jobs.StaleAfter(cfg), logger)

	outcome, err := p.Poll(context.Background(), eventID, kind)
	if err != nil {
		log.Fatalf("poll failed: %v", err)
	}

	logger.Info("poll finished",
		"event_id", eventID,
		"kind", string(kind),
		"state", string(outcome.State),
		"url", outcome.Result.URL,
	)
	if outcome.State != poller.StateCompleted {
		os.Exit(1)
	}
}
