// internal/syncer/users.go
package syncer

import (
	"context"
	"log/slog"

	"github.com/bhardwajvicky/DevView/internal/database"
)

// UserSync mirrors workspace members into the users table.
type UserSync struct {
	db     database.Querier
	api    API
	logger *slog.Logger
}

func NewUserSync(db database.Querier, api API, logger *slog.Logger) *UserSync {
	return &UserSync{db: db, api: api, logger: logger}
}

// Sync upserts every member of the workspace, following pagination to the
// last page.
func (s *UserSync) Sync(ctx context.Context, workspace string) error {
	logger := s.logger.With("workspace", workspace)
	logger.Info("Starting user sync")

	next := ""
	total := 0
	for {
		page, err := s.api.WorkspaceMembers(ctx, workspace, next)
		if err != nil {
			return err
		}
		if len(page.Values) == 0 {
			break
		}

		for _, m := range page.Values {
			u := m.User
			if u.UUID == "" {
				continue
			}
			if u.DisplayName == "" {
				logger.Warn("Workspace member has no display name, skipping", "uuid", u.UUID)
				continue
			}

			var avatar *string
			if u.Links.Avatar.Href != "" {
				href := u.Links.Avatar.Href
				avatar = &href
			}
			if _, err := s.db.UpsertUser(ctx, database.UpsertUserParams{
				BitbucketUserID: u.UUID,
				DisplayName:     u.DisplayName,
				AvatarURL:       avatar,
				CreatedOn:       u.CreatedOn,
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

	logger.Info("User sync finished", "count", total)
	return nil
}
