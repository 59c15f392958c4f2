// cmd/service/main.go
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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/bhardwajvicky/DevView/internal/api"
	"github.com/bhardwajvicky/DevView/internal/bitbucket"
	"github.com/bhardwajvicky/DevView/internal/config"
	"github.com/bhardwajvicky/DevView/internal/database"
	"github.com/bhardwajvicky/DevView/internal/model"
	"github.com/bhardwajvicky/DevView/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	client, err := bitbucket.NewClient(cfg.BitbucketAPIBaseURL, cfg.BitbucketTokenURL,
		cfg.BitbucketConsumerKey, cfg.BitbucketConsumerSecret, logger)
	if err != nil {
		return fmt.Errorf("failed to create Bitbucket client: %w", err)
	}

	db := database.New(dbpool)
	userSync := syncer.NewUserSync(db, client, logger)
	repoSync := syncer.NewRepoSync(db, client, logger)
	commitSync := syncer.NewCommitSync(db, client, logger)
	prSync := syncer.NewPullRequestSync(db, client, commitSync, logger)

	orch := syncer.NewOrchestrator(db, commitSync, prSync, logger, syncer.Options{
		Mode:             model.SyncMode(cfg.SyncMode),
		BatchDays:        cfg.BatchDays,
		DeltaDays:        cfg.DeltaDays,
		Overwrite:        cfg.OverwriteExisting,
		SyncCommits:      cfg.SyncCommits,
		SyncPullRequests: cfg.SyncPullRequests,
	})

	router := api.NewRouter(db, userSync, repoSync, commitSync, prSync, api.EntityFlags{
		Users:        cfg.SyncUsers,
		Repositories: cfg.SyncRepositories,
		Commits:      cfg.SyncCommits,
		PullRequests: cfg.SyncPullRequests,
	}, logger)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// 6. Run the HTTP server and the periodic sync loop side by side
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		runSyncLoop(gctx, orch, userSync, repoSync, cfg, logger)
		return nil
	})

	logger.Info("Application started. Waiting for shutdown signal...")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// runSyncLoop performs a sync pass immediately and then on every tick. Each
// pass refreshes users and repositories first so the windowed services can
// resolve their foreign keys.
func runSyncLoop(ctx context.Context, orch *syncer.Orchestrator, users *syncer.UserSync, repos *syncer.RepoSync, cfg *config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	runOnce := func() {
		if cfg.SyncUsers {
			if err := users.Sync(ctx, cfg.Workspace); err != nil {
				logger.Error("User sync failed", "error", err)
			}
		}
		if cfg.SyncRepositories {
			if err := repos.Sync(ctx, cfg.Workspace); err != nil {
				logger.Error("Repository sync failed", "error", err)
			}
		}
		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Sync run failed", "error", err)
		}
	}

	runOnce()
	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-ctx.Done():
			logger.Info("Sync loop shutting down", "reason", ctx.Err())
			return
		}
	}
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
