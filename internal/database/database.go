// internal/database/database.go

// Package database is the pgx-backed relational store. All writes are
// upserts keyed by the entities' natural keys (upstream UUIDs, commit
// hashes, composite PR keys) so repeating a sync pass is safe.
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bhardwajvicky/DevView/internal/model"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same queries
// run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Queries implements Querier against a DBTX.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given connection, pool or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Querier is the store surface the sync services depend on. Kept as an
// interface so service tests can substitute a mock.
type Querier interface {
	UpsertUser(ctx context.Context, arg UpsertUserParams) (model.User, error)
	InsertUserIfAbsent(ctx context.Context, arg UpsertUserParams) (model.User, error)
	GetUserByBitbucketID(ctx context.Context, bitbucketUserID string) (model.User, error)

	UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) (model.Repository, error)
	GetRepositoryBySlug(ctx context.Context, slug string) (model.Repository, error)
	ListRepositories(ctx context.Context) ([]model.Repository, error)

	GetCommitByHash(ctx context.Context, hash string) (model.Commit, error)
	InsertCommit(ctx context.Context, arg InsertCommitParams) (model.Commit, error)
	UpdateCommitStats(ctx context.Context, arg UpdateCommitStatsParams) error
	InsertCommitFiles(ctx context.Context, commitID int64, files []CommitFileParams) (int64, error)
	DeleteCommitFiles(ctx context.Context, commitID int64) error
	ListCommitsForRefresh(ctx context.Context) ([]CommitForRefreshRow, error)

	UpsertPullRequest(ctx context.Context, arg UpsertPullRequestParams) (model.PullRequest, error)
	UpsertPullRequestApproval(ctx context.Context, arg UpsertPullRequestApprovalParams) error
	InsertPullRequestCommit(ctx context.Context, pullRequestID, commitID int64) error
	FixPRMergeFlags(ctx context.Context) (int64, error)

	CreateSyncLog(ctx context.Context, arg CreateSyncLogParams) (int64, error)
	UpdateSyncLog(ctx context.Context, arg UpdateSyncLogParams) error
	HasCompletedSyncLog(ctx context.Context, arg SyncWindowParams) (bool, error)
}

var _ Querier = (*Queries)(nil)

// SyncWindowParams identifies one (repository, window) checkpoint.
type SyncWindowParams struct {
	RepositoryID int64
	StartDate    time.Time
	EndDate      time.Time
}
