// cmd/autosync/main.go

// autosync runs one historical sync walk and exits. It shares configuration
// with the service; flags override the configured mode and window sizes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bhardwajvicky/DevView/internal/bitbucket"
	"github.com/bhardwajvicky/DevView/internal/config"
	"github.com/bhardwajvicky/DevView/internal/database"
	"github.com/bhardwajvicky/DevView/internal/model"
	"github.com/bhardwajvicky/DevView/internal/syncer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		mode      string
		batchDays int
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "autosync",
		Short: "Walk repository history in date windows and mirror it into the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutoSync(cmd.Context(), mode, batchDays, overwrite)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&mode, "mode", "", "sync mode: full or delta (default from configuration)")
	cmd.Flags().IntVar(&batchDays, "batch-days", 0, "window size in days (default from configuration)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "re-run windows that already completed")

	return cmd
}

func runAutoSync(parent context.Context, mode string, batchDays int, overwrite bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if mode != "" {
		if mode != string(model.ModeFull) && mode != string(model.ModeDelta) {
			return fmt.Errorf("invalid --mode %q: must be full or delta", mode)
		}
		cfg.SyncMode = mode
	}
	if batchDays > 0 {
		cfg.BatchDays = batchDays
	}
	if overwrite {
		cfg.OverwriteExisting = true
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	client, err := bitbucket.NewClient(cfg.BitbucketAPIBaseURL, cfg.BitbucketTokenURL,
		cfg.BitbucketConsumerKey, cfg.BitbucketConsumerSecret, logger)
	if err != nil {
		return fmt.Errorf("failed to create Bitbucket client: %w", err)
	}

	db := database.New(dbpool)
	commitSync := syncer.NewCommitSync(db, client, logger)
	prSync := syncer.NewPullRequestSync(db, client, commitSync, logger)

	if cfg.SyncUsers {
		if err := syncer.NewUserSync(db, client, logger).Sync(ctx, cfg.Workspace); err != nil {
			return fmt.Errorf("user sync: %w", err)
		}
	}
	if cfg.SyncRepositories {
		if err := syncer.NewRepoSync(db, client, logger).Sync(ctx, cfg.Workspace); err != nil {
			return fmt.Errorf("repository sync: %w", err)
		}
	}

	orch := syncer.NewOrchestrator(db, commitSync, prSync, logger, syncer.Options{
		Mode:             model.SyncMode(cfg.SyncMode),
		BatchDays:        cfg.BatchDays,
		DeltaDays:        cfg.DeltaDays,
		Overwrite:        cfg.OverwriteExisting,
		SyncCommits:      cfg.SyncCommits,
		SyncPullRequests: cfg.SyncPullRequests,
	})

	logger.Info("Starting autosync walk", "mode", cfg.SyncMode, "batch_days", cfg.BatchDays)
	if err := orch.Run(ctx); err != nil {
		return fmt.Errorf("sync walk: %w", err)
	}
	logger.Info("Autosync complete")
	return nil
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
