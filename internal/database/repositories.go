// internal/database/repositories.go
package database

import (
	"context"
	"time"

	"github.com/bhardwajvicky/DevView/internal/model"
)

type UpsertRepositoryParams struct {
	BitbucketRepoID string
	Slug            string
	FullName        string
	Workspace       string
	CreatedOn       *time.Time
}

const upsertRepositorySQL = `
INSERT INTO repositories (bitbucket_repo_id, slug, full_name, workspace, created_on)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (bitbucket_repo_id) DO UPDATE SET
    slug       = EXCLUDED.slug,
    full_name  = EXCLUDED.full_name,
    workspace  = EXCLUDED.workspace,
    created_on = COALESCE(EXCLUDED.created_on, repositories.created_on)
RETURNING id, bitbucket_repo_id, slug, full_name, workspace, created_on
`

// UpsertRepository inserts or refreshes one repository by its upstream UUID.
func (q *Queries) UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) (model.Repository, error) {
	var r model.Repository
	err := q.db.QueryRow(ctx, upsertRepositorySQL,
		arg.BitbucketRepoID, arg.Slug, arg.FullName, arg.Workspace, arg.CreatedOn,
	).Scan(&r.ID, &r.BitbucketRepoID, &r.Slug, &r.FullName, &r.Workspace, &r.CreatedOn)
	return r, err
}

const getRepositoryBySlugSQL = `
SELECT id, bitbucket_repo_id, slug, full_name, workspace, created_on
FROM repositories WHERE slug = $1
`

// GetRepositoryBySlug is the secondary lookup the sync services use.
func (q *Queries) GetRepositoryBySlug(ctx context.Context, slug string) (model.Repository, error) {
	var r model.Repository
	err := q.db.QueryRow(ctx, getRepositoryBySlugSQL, slug).
		Scan(&r.ID, &r.BitbucketRepoID, &r.Slug, &r.FullName, &r.Workspace, &r.CreatedOn)
	return r, err
}

const listRepositoriesSQL = `
SELECT id, bitbucket_repo_id, slug, full_name, workspace, created_on
FROM repositories ORDER BY id
`

// ListRepositories returns every mirrored repository.
func (q *Queries) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	rows, err := q.db.Query(ctx, listRepositoriesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		var r model.Repository
		if err := rows.Scan(&r.ID, &r.BitbucketRepoID, &r.Slug, &r.FullName, &r.Workspace, &r.CreatedOn); err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}
