// internal/syncer/pullrequests.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bhardwajvicky/DevView/internal/apperrors"
	"github.com/bhardwajvicky/DevView/internal/bitbucket"
	"github.com/bhardwajvicky/DevView/internal/database"
	"github.com/bhardwajvicky/DevView/internal/model"
)

// PullRequestSync mirrors pull requests for a window: the PR row itself,
// its approval activity, its constituent commits and the PR↔commit joins.
type PullRequestSync struct {
	db      database.Querier
	api     API
	commits *CommitSync
	logger  *slog.Logger
}

func NewPullRequestSync(db database.Querier, api API, commits *CommitSync, logger *slog.Logger) *PullRequestSync {
	return &PullRequestSync{db: db, api: api, commits: commits, logger: logger}
}

// Sync processes the window and reports whether PRs older than its start
// exist. A single PR's failure is logged and skipped.
func (s *PullRequestSync) Sync(ctx context.Context, workspace, slug string, window model.DateWindow) (bool, error) {
	logger := s.logger.With("workspace", workspace, "repo", slug)
	logger.Info("Starting pull request sync", "from", window.Start, "to", window.End)

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
		page, err := s.api.PullRequests(ctx, workspace, slug, window.Start, window.End, next)
		if err != nil {
			return false, err
		}
		if len(page.Values) == 0 {
			break
		}

		pastWindow := false
		for _, pr := range page.Values {
			if pr.CreatedOn.Before(window.Start) {
				hasMore = true
				pastWindow = true
				continue
			}
			if pr.CreatedOn.After(window.End) {
				continue
			}

			if err := s.syncOne(ctx, repo, workspace, slug, pr); err != nil {
				if isFatal(err) {
					return false, err
				}
				logger.Warn("Skipping pull request", "pr", pr.ID, "error", err)
			}
		}

		next = page.Next
		if next == "" || pastWindow {
			break
		}
	}

	logger.Info("Pull request sync finished", "has_more_history", hasMore)
	return hasMore, nil
}

func (s *PullRequestSync) syncOne(ctx context.Context, repo model.Repository, workspace, slug string, pr bitbucket.PullRequest) error {
	if pr.Author == nil || pr.Author.UUID == "" {
		s.logger.Warn("Pull request has no author UUID, skipping", "pr", pr.ID)
		return nil
	}
	author, err := s.db.GetUserByBitbucketID(ctx, pr.Author.UUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("Pull request author unknown, sync users first", "pr", pr.ID, "uuid", pr.Author.UUID)
			return nil
		}
		return err
	}

	state := model.PullRequestState(pr.State)
	row, err := s.db.UpsertPullRequest(ctx, database.UpsertPullRequestParams{
		BitbucketPRID: strconv.Itoa(pr.ID),
		RepositoryID:  repo.ID,
		AuthorID:      author.ID,
		Title:         pr.Title,
		State:         state,
		CreatedOn:     pr.CreatedOn,
		UpdatedOn:     pr.UpdatedOn,
		MergedOn:      effectiveMergedOn(pr),
		ClosedOn:      effectiveClosedOn(pr),
	})
	if err != nil {
		return err
	}

	if err := s.syncApprovals(ctx, workspace, slug, pr.ID, row.ID); err != nil {
		return err
	}
	return s.syncCommits(ctx, repo, workspace, slug, pr.ID, row.ID)
}

// effectiveMergedOn prefers the merge commit's own date; merged PRs without
// one fall back to their last update.
func effectiveMergedOn(pr bitbucket.PullRequest) *time.Time {
	if model.PullRequestState(pr.State) != model.PRStateMerged {
		return nil
	}
	if pr.MergeCommit != nil && !pr.MergeCommit.Date.IsZero() {
		d := pr.MergeCommit.Date
		return &d
	}
	return pr.UpdatedOn
}

func effectiveClosedOn(pr bitbucket.PullRequest) *time.Time {
	switch model.PullRequestState(pr.State) {
	case model.PRStateDeclined, model.PRStateSuperseded:
		return pr.ClosedOn
	default:
		return nil
	}
}

// syncApprovals extracts approval events from the PR's activity stream and
// upserts one row per approving reviewer.
func (s *PullRequestSync) syncApprovals(ctx context.Context, workspace, slug string, prID int, prDBID int64) error {
	next := ""
	for {
		page, err := s.api.PullRequestActivity(ctx, workspace, slug, prID, next)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil
			}
			return err
		}

		for _, activity := range page.Values {
			a := activity.Approval
			if a == nil || a.User.UUID == "" {
				continue
			}
			approvedOn := a.Date
			if err := s.db.UpsertPullRequestApproval(ctx, database.UpsertPullRequestApprovalParams{
				PullRequestID: prDBID,
				UserUUID:      a.User.UUID,
				DisplayName:   a.User.DisplayName,
				Role:          "REVIEWER",
				Approved:      true,
				State:         "approved",
				ApprovedOn:    &approvedOn,
			}); err != nil {
				return err
			}
		}

		next = page.Next
		if next == "" {
			return nil
		}
	}
}

// syncCommits mirrors the PR's commits and their join rows. A 404 on the
// commit list is normal for empty or draft PRs and for deleted branches.
func (s *PullRequestSync) syncCommits(ctx context.Context, repo model.Repository, workspace, slug string, prID int, prDBID int64) error {
	next := ""
	for {
		page, err := s.api.PullRequestCommits(ctx, workspace, slug, prID, next)
		if err != nil {
			if apperrors.IsNotFound(err) {
				s.logger.Info("Pull request has no accessible commits", "pr", prID)
				return nil
			}
			return err
		}
		if len(page.Values) == 0 {
			return nil
		}

		for _, c := range page.Values {
			commitID, err := s.commits.EnsureCommit(ctx, repo.ID, workspace, slug, c)
			if err != nil {
				if isFatal(err) {
					return err
				}
				s.logger.Warn("Skipping pull request commit", "pr", prID, "hash", c.Hash, "error", err)
				continue
			}
			if err := s.db.InsertPullRequestCommit(ctx, prDBID, commitID); err != nil {
				return err
			}
		}

		next = page.Next
		if next == "" {
			return nil
		}
	}
}
