// internal/syncer/syncer.go

// Package syncer holds the per-entity sync services (users, repositories,
// commits, pull requests) and the batch orchestrator that drives windowed
// passes over repository history.
package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/bhardwajvicky/DevView/internal/apperrors"
	"github.com/bhardwajvicky/DevView/internal/bitbucket"
)

// API is the gateway surface the sync services consume. *bitbucket.Client
// satisfies it; tests substitute fakes.
type API interface {
	WorkspaceMembers(ctx context.Context, workspace, nextURL string) (bitbucket.Page[bitbucket.WorkspaceMembership], error)
	WorkspaceRepositories(ctx context.Context, workspace, nextURL string) (bitbucket.Page[bitbucket.Repository], error)
	Commits(ctx context.Context, workspace, slug, nextURL string) (bitbucket.Page[bitbucket.Commit], error)
	CommitDiff(ctx context.Context, workspace, slug, hash string) (string, error)
	PullRequests(ctx context.Context, workspace, slug string, start, end time.Time, nextURL string) (bitbucket.Page[bitbucket.PullRequest], error)
	PullRequestCommits(ctx context.Context, workspace, slug string, prID int, nextURL string) (bitbucket.Page[bitbucket.Commit], error)
	PullRequestActivity(ctx context.Context, workspace, slug string, prID int, nextURL string) (bitbucket.Page[bitbucket.Activity], error)
	RateLimitWaitTime() time.Duration
}

var _ API = (*bitbucket.Client)(nil)

// isFatal separates gateway-level failures, which abort the whole sync
// call, from record-level ones, which are logged and skipped.
func isFatal(err error) bool {
	var rle *apperrors.RateLimitError
	return errors.As(err, &rle) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
