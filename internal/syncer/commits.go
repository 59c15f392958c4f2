// internal/syncer/commits.go
package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/bhardwajvicky/DevView/internal/apperrors"
	"github.com/bhardwajvicky/DevView/internal/bitbucket"
	"github.com/bhardwajvicky/DevView/internal/database"
	"github.com/bhardwajvicky/DevView/internal/diff"
	"github.com/bhardwajvicky/DevView/internal/model"
)

// CommitSync walks a repository's commit history newest-first inside a date
// window, classifying each new commit's diff and writing the commit row
// together with its per-file detail rows.
type CommitSync struct {
	db     database.Querier
	api    API
	logger *slog.Logger
}

func NewCommitSync(db database.Querier, api API, logger *slog.Logger) *CommitSync {
	return &CommitSync{db: db, api: api, logger: logger}
}

// Sync processes the window and reports whether older history exists beyond
// its start. Individual commit failures are logged and skipped; only
// gateway-level failures abort the call.
func (s *CommitSync) Sync(ctx context.Context, workspace, slug string, window model.DateWindow) (bool, error) {
	logger := s.logger.With("workspace", workspace, "repo", slug)
	logger.Info("Starting commit sync", "from", window.Start, "to", window.End)

	if wait := s.api.RateLimitWaitTime(); wait > 0 {
		logger.Warn("API is currently rate limited", "wait", wait.String())
	}

	repo, err := s.db.GetRepositoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.ErrRepositoryNotFound
		}
		return false, err
	}

	next := ""
	hasMore := false
	for {
		page, err := s.api.Commits(ctx, workspace, slug, next)
		if err != nil {
			return false, err
		}
		if len(page.Values) == 0 {
			break
		}

		pastWindow := false
		for _, c := range page.Values {
			if c.Date.Before(window.Start) {
				// Older than the window: more history exists. Keep scanning
				// the rest of this page in case the upstream order is not
				// strictly descending, but stop paging afterwards.
				hasMore = true
				pastWindow = true
				continue
			}
			if c.Date.After(window.End) {
				continue
			}

			if _, err := s.EnsureCommit(ctx, repo.ID, workspace, slug, c); err != nil {
				if isFatal(err) {
					return false, err
				}
				logger.Warn("Skipping commit", "hash", c.Hash, "error", err)
			}
		}

		next = page.Next
		if next == "" || pastWindow {
			break
		}
	}

	logger.Info("Commit sync finished", "has_more_history", hasMore)
	return hasMore, nil
}

// EnsureCommit makes sure one commit is fully mirrored and returns its local
// id. Already-classified commits are returned without touching the upstream
// (the idempotent short-circuit); rows from an earlier, metadata-only pass
// are completed in place.
func (s *CommitSync) EnsureCommit(ctx context.Context, repoID int64, workspace, slug string, c bitbucket.Commit) (int64, error) {
	existing, err := s.db.GetCommitByHash(ctx, c.Hash)
	switch {
	case err == nil && existing.Stats != nil:
		return existing.ID, nil
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return 0, err
	}
	known := err == nil

	diffText, err := s.api.CommitDiff(ctx, workspace, slug, c.Hash)
	if err != nil {
		return 0, err
	}
	summary := diff.Classify(diffText)
	stats := summary.Stats()

	isMerge := c.IsMerge()
	// Merge commits overwhelmingly come from PR merges; the flag is refined
	// later from the PR-commit join.
	isPRMerge := isMerge

	var commitID int64
	if known {
		commitID = existing.ID
	} else {
		authorID, err := resolveAuthor(ctx, s.db, c.Author, c.Hash, c.Date)
		if err != nil {
			return 0, err
		}
		inserted, err := s.db.InsertCommit(ctx, database.InsertCommitParams{
			Hash:            c.Hash,
			RepositoryID:    repoID,
			AuthorID:        authorID,
			Date:            c.Date,
			Message:         c.Message,
			IsMerge:         isMerge,
			IsPRMergeCommit: isPRMerge,
		})
		if err != nil {
			return 0, err
		}
		commitID = inserted.ID
		s.logger.Debug("Added commit", "hash", c.Hash, "is_merge", isMerge)
	}

	// File rows land before the stats flip to populated. A failure between
	// the two leaves the row with NULL stats, so the next pass retries it
	// and replaces whatever file rows made it through.
	if err := s.db.DeleteCommitFiles(ctx, commitID); err != nil {
		return 0, err
	}
	if _, err := s.db.InsertCommitFiles(ctx, commitID, fileParams(summary.FileChanges)); err != nil {
		return 0, err
	}
	if err := s.db.UpdateCommitStats(ctx, database.UpdateCommitStatsParams{
		ID:              commitID,
		IsMerge:         isMerge,
		IsPRMergeCommit: isPRMerge,
		Stats:           stats,
	}); err != nil {
		return 0, err
	}
	s.logger.Debug("Classified commit", "hash", c.Hash)
	return commitID, nil
}

// RefreshAllStats re-fetches and re-classifies the diff of every stored
// commit, replacing its file rows. Per-commit failures are logged and
// skipped; the count of refreshed commits is returned.
func (s *CommitSync) RefreshAllStats(ctx context.Context) (int, error) {
	rows, err := s.db.ListCommitsForRefresh(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, row := range rows {
		existing, err := s.db.GetCommitByHash(ctx, row.Hash)
		if err != nil {
			s.logger.Warn("Skipping commit refresh", "hash", row.Hash, "error", err)
			continue
		}

		diffText, err := s.api.CommitDiff(ctx, row.Workspace, row.Slug, row.Hash)
		if err != nil {
			if isFatal(err) {
				return refreshed, err
			}
			s.logger.Warn("Skipping commit refresh", "hash", row.Hash, "error", err)
			continue
		}
		summary := diff.Classify(diffText)

		if err := s.db.DeleteCommitFiles(ctx, row.ID); err != nil {
			return refreshed, err
		}
		if _, err := s.db.InsertCommitFiles(ctx, row.ID, fileParams(summary.FileChanges)); err != nil {
			return refreshed, err
		}
		if err := s.db.UpdateCommitStats(ctx, database.UpdateCommitStatsParams{
			ID:              row.ID,
			IsMerge:         existing.IsMerge,
			IsPRMergeCommit: existing.IsPRMergeCommit,
			Stats:           summary.Stats(),
		}); err != nil {
			return refreshed, err
		}
		refreshed++
	}

	s.logger.Info("Commit line counts refreshed", "count", refreshed)
	return refreshed, nil
}

func fileParams(changes []diff.FileChange) []database.CommitFileParams {
	params := make([]database.CommitFileParams, len(changes))
	for i, fc := range changes {
		params[i] = database.CommitFileParams{
			FilePath:      fc.Path,
			FileType:      fc.Category,
			ChangeStatus:  fc.ChangeStatus,
			LinesAdded:    fc.LinesAdded,
			LinesRemoved:  fc.LinesRemoved,
			FileExtension: fc.Extension,
		}
	}
	return params
}
