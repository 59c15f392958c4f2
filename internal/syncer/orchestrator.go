// internal/syncer/orchestrator.go
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bhardwajvicky/DevView/internal/database"
	"github.com/bhardwajvicky/DevView/internal/model"
)

// maxConsecutiveFailures caps how many windows in a row a repository may
// fail before the walk marks it complete-degraded instead of retrying it
// forever.
const maxConsecutiveFailures = 3

// WindowSyncer is one history-bearing entity service, reporting whether
// history older than the window remains.
type WindowSyncer interface {
	Sync(ctx context.Context, workspace, slug string, window model.DateWindow) (bool, error)
}

// Options configures one orchestrator run.
type Options struct {
	Mode             model.SyncMode
	BatchDays        int
	DeltaDays        int
	Overwrite        bool
	SyncCommits      bool
	SyncPullRequests bool
}

// Orchestrator drives the commit and pull request services over every
// mirrored repository, walking backward through time in fixed-size windows
// and checkpointing each (repository, window) attempt.
type Orchestrator struct {
	db      database.Querier
	commits WindowSyncer
	prs     WindowSyncer
	logger  *slog.Logger
	opts    Options

	// now is swapped in tests to pin the window cursor.
	now func() time.Time
}

func NewOrchestrator(db database.Querier, commits, prs WindowSyncer, logger *slog.Logger, opts Options) *Orchestrator {
	return &Orchestrator{
		db:      db,
		commits: commits,
		prs:     prs,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Run executes one full- or delta-mode pass. In full mode it loops until
// every repository has reached the end of its history (or its failure cap);
// in delta mode each repository gets exactly one recent window.
func (o *Orchestrator) Run(ctx context.Context) error {
	repos, err := o.db.ListRepositories(ctx)
	if err != nil {
		return fmt.Errorf("listing repositories: %w", err)
	}
	if len(repos) == 0 {
		o.logger.Info("No repositories to sync")
		return nil
	}

	if o.opts.Mode == model.ModeDelta {
		return o.runDelta(ctx, repos)
	}
	return o.runFull(ctx, repos)
}

func (o *Orchestrator) runDelta(ctx context.Context, repos []model.Repository) error {
	end := o.now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	window := model.DateWindow{Start: end.AddDate(0, 0, -o.opts.DeltaDays), End: end}

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := o.runWindow(ctx, repo, window); err != nil {
			o.logger.Error("Delta batch failed", "repo", repo.Slug, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) runFull(ctx context.Context, repos []model.Repository) error {
	endDates := make(map[int64]time.Time, len(repos))
	completed := make(map[int64]bool, len(repos))
	failures := make(map[int64]int, len(repos))
	start := o.now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	for _, r := range repos {
		endDates[r.ID] = start
	}

	for len(completed) < len(repos) {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.logger.Info("Starting batch iteration", "completed", len(completed), "total", len(repos))

		for _, repo := range repos {
			if completed[repo.ID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			end := endDates[repo.ID]
			window := model.DateWindow{Start: end.AddDate(0, 0, -o.opts.BatchDays), End: end}

			hasMore, err := o.runWindow(ctx, repo, window)
			if err != nil {
				failures[repo.ID]++
				o.logger.Error("Batch failed", "repo", repo.Slug, "failures", failures[repo.ID], "error", err)
				if failures[repo.ID] >= maxConsecutiveFailures {
					completed[repo.ID] = true
					o.logger.Error("Repository exceeded failure cap, marking complete-degraded", "repo", repo.Slug)
				}
				continue
			}
			failures[repo.ID] = 0

			if hasMore {
				endDates[repo.ID] = window.Start
			} else {
				completed[repo.ID] = true
				o.logger.Info("No more history found, marking repository complete", "repo", repo.Slug)
			}
		}
	}

	o.logger.Info("Full sync walk complete", "repositories", len(repos))
	return nil
}

// runWindow syncs one (repository, window), writing the checkpoint around
// it. Windows already recorded as Completed are skipped (unless overwrite is
// on) but still report more history so the cursor keeps walking past them.
func (o *Orchestrator) runWindow(ctx context.Context, repo model.Repository, window model.DateWindow) (bool, error) {
	logger := o.logger.With("repo", repo.Slug, "from", window.Start, "to", window.End)

	if !o.opts.Overwrite {
		done, err := o.db.HasCompletedSyncLog(ctx, database.SyncWindowParams{
			RepositoryID: repo.ID,
			StartDate:    window.Start,
			EndDate:      window.End,
		})
		if err != nil {
			return false, err
		}
		if done {
			logger.Info("Window already completed, skipping")
			return true, nil
		}
	}

	logID, err := o.db.CreateSyncLog(ctx, database.CreateSyncLogParams{
		RepositoryID: repo.ID,
		StartDate:    window.Start,
		EndDate:      window.End,
		Status:       model.SyncStarted,
	})
	if err != nil {
		return false, err
	}

	hasMore, err := o.syncWindow(ctx, repo, window)
	if err != nil {
		if uerr := o.db.UpdateSyncLog(ctx, database.UpdateSyncLogParams{
			ID: logID, Status: model.SyncFailed, Message: err.Error(),
		}); uerr != nil {
			logger.Error("Failed to record checkpoint failure", "error", uerr)
		}
		return false, err
	}

	if err := o.db.UpdateSyncLog(ctx, database.UpdateSyncLogParams{
		ID: logID, Status: model.SyncCompleted,
	}); err != nil {
		return false, err
	}
	logger.Info("Batch complete", "has_more_history", hasMore)
	return hasMore, nil
}

// syncWindow runs commits before pull requests: the PR pass creates commit
// join rows and needs the commit upsert path in place.
func (o *Orchestrator) syncWindow(ctx context.Context, repo model.Repository, window model.DateWindow) (bool, error) {
	hasMore := false

	if o.opts.SyncCommits {
		more, err := o.commits.Sync(ctx, repo.Workspace, repo.Slug, window)
		if err != nil {
			return false, fmt.Errorf("commit sync: %w", err)
		}
		hasMore = hasMore || more
	}

	if o.opts.SyncPullRequests {
		more, err := o.prs.Sync(ctx, repo.Workspace, repo.Slug, window)
		if err != nil {
			return false, fmt.Errorf("pull request sync: %w", err)
		}
		hasMore = hasMore || more
	}

	return hasMore, nil
}
