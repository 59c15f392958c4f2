// internal/syncer/repositories.go
package syncer

import (
	"context"
	"log/slog"

	"github.com/bhardwajvicky/DevView/internal/database"
)

// RepoSync mirrors the workspace's repositories. It must run before the
// commit and pull request services, which resolve repositories by slug.
type RepoSync struct {
	db     database.Querier
	api    API
	logger *slog.Logger
}

func NewRepoSync(db database.Querier, api API, logger *slog.Logger) *RepoSync {
	return &RepoSync{db: db, api: api, logger: logger}
}

// Sync upserts every repository in the workspace.
func (s *RepoSync) Sync(ctx context.Context, workspace string) error {
	logger := s.logger.With("workspace", workspace)
	logger.Info("Starting repository sync")

	next := ""
	total := 0
	for {
		page, err := s.api.WorkspaceRepositories(ctx, workspace, next)
		if err != nil {
			return err
		}
		if len(page.Values) == 0 {
			break
		}

		for _, r := range page.Values {
			if r.UUID == "" {
				continue
			}
			slug := r.Slug
			if slug == "" {
				slug = r.Name
			}
			ws := r.Workspace.Slug
			if ws == "" {
				ws = workspace
			}
			if _, err := s.db.UpsertRepository(ctx, database.UpsertRepositoryParams{
				BitbucketRepoID: r.UUID,
				Slug:            slug,
				FullName:        r.FullName,
				Workspace:       ws,
				CreatedOn:       r.CreatedOn,
			}); err != nil {
				return err
			}
			total++
		}

		next = page.Next
		if next == "" {
			break
		}
	}

	logger.Info("Repository sync finished", "count", total)
	return nil
}
