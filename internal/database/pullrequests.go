// internal/database/pullrequests.go
package database

import (
	"context"
	"time"

	"github.com/bhardwajvicky/DevView/internal/model"
)

type UpsertPullRequestParams struct {
	BitbucketPRID string
	RepositoryID  int64
	AuthorID      int64
	Title         string
	State         model.PullRequestState
	CreatedOn     time.Time
	UpdatedOn     *time.Time
	MergedOn      *time.Time
	ClosedOn      *time.Time
}

const upsertPullRequestSQL = `
INSERT INTO pull_requests (
    bitbucket_pr_id, repository_id, author_id, title, state,
    created_on, updated_on, merged_on, closed_on
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (repository_id, bitbucket_pr_id) DO UPDATE SET
    title      = EXCLUDED.title,
    state      = EXCLUDED.state,
    updated_on = EXCLUDED.updated_on,
    merged_on  = EXCLUDED.merged_on,
    closed_on  = EXCLUDED.closed_on
RETURNING id, bitbucket_pr_id, repository_id, author_id, title, state,
          created_on, updated_on, merged_on, closed_on
`

// UpsertPullRequest inserts a PR or, when the (repository, external id) key
// exists, updates its mutable fields so state transitions are reflected.
func (q *Queries) UpsertPullRequest(ctx context.Context, arg UpsertPullRequestParams) (model.PullRequest, error) {
	var pr model.PullRequest
	err := q.db.QueryRow(ctx, upsertPullRequestSQL,
		arg.BitbucketPRID, arg.RepositoryID, arg.AuthorID, arg.Title, string(arg.State),
		arg.CreatedOn, arg.UpdatedOn, arg.MergedOn, arg.ClosedOn,
	).Scan(&pr.ID, &pr.BitbucketPRID, &pr.RepositoryID, &pr.AuthorID, &pr.Title, &pr.State,
		&pr.CreatedOn, &pr.UpdatedOn, &pr.MergedOn, &pr.ClosedOn)
	return pr, err
}

type UpsertPullRequestApprovalParams struct {
	PullRequestID int64
	UserUUID      string
	DisplayName   string
	Role          string
	Approved      bool
	State         string
	ApprovedOn    *time.Time
}

const upsertPullRequestApprovalSQL = `
INSERT INTO pull_request_approvals (
    pull_request_id, user_uuid, display_name, role, approved, state, approved_on
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (pull_request_id, user_uuid) DO UPDATE SET
    display_name = EXCLUDED.display_name,
    role         = EXCLUDED.role,
    approved     = EXCLUDED.approved,
    state        = EXCLUDED.state,
    approved_on  = EXCLUDED.approved_on
`

// UpsertPullRequestApproval records one reviewer's latest approval activity.
func (q *Queries) UpsertPullRequestApproval(ctx context.Context, arg UpsertPullRequestApprovalParams) error {
	_, err := q.db.Exec(ctx, upsertPullRequestApprovalSQL,
		arg.PullRequestID, arg.UserUUID, arg.DisplayName, arg.Role, arg.Approved, arg.State, arg.ApprovedOn)
	return err
}

// InsertPullRequestCommit adds the PR↔commit association; inserting the same
// pair twice is a no-op.
func (q *Queries) InsertPullRequestCommit(ctx context.Context, pullRequestID, commitID int64) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO pull_request_commits (pull_request_id, commit_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`, pullRequestID, commitID)
	return err
}

const fixPRMergeFlagsSQL = `
UPDATE commits SET is_pr_merge_commit = TRUE
WHERE is_merge = TRUE
  AND is_pr_merge_commit = FALSE
  AND id IN (SELECT commit_id FROM pull_request_commits)
`

// FixPRMergeFlags marks merge commits that belong to a pull request and
// returns how many rows changed.
func (q *Queries) FixPRMergeFlags(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, fixPRMergeFlagsSQL)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
