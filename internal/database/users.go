// internal/database/users.go
package database

import (
	"context"
	"time"

	"github.com/bhardwajvicky/DevView/internal/model"
)

type UpsertUserParams struct {
	BitbucketUserID string
	DisplayName     string
	AvatarURL       *string
	CreatedOn       *time.Time
}

const upsertUserSQL = `
INSERT INTO users (bitbucket_user_id, display_name, avatar_url, created_on)
VALUES ($1, $2, $3, $4)
ON CONFLICT (bitbucket_user_id) DO UPDATE SET
    display_name = EXCLUDED.display_name,
    avatar_url   = EXCLUDED.avatar_url,
    created_on   = COALESCE(EXCLUDED.created_on, users.created_on)
RETURNING id, bitbucket_user_id, display_name, avatar_url, created_on
`

// UpsertUser inserts or refreshes a workspace member.
func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) (model.User, error) {
	var u model.User
	err := q.db.QueryRow(ctx, upsertUserSQL,
		arg.BitbucketUserID, arg.DisplayName, arg.AvatarURL, arg.CreatedOn,
	).Scan(&u.ID, &u.BitbucketUserID, &u.DisplayName, &u.AvatarURL, &u.CreatedOn)
	return u, err
}

const insertUserIfAbsentSQL = `
WITH ins AS (
    INSERT INTO users (bitbucket_user_id, display_name, avatar_url, created_on)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (bitbucket_user_id) DO NOTHING
    RETURNING id, bitbucket_user_id, display_name, avatar_url, created_on
)
SELECT id, bitbucket_user_id, display_name, avatar_url, created_on FROM ins
UNION ALL
SELECT id, bitbucket_user_id, display_name, avatar_url, created_on FROM users WHERE bitbucket_user_id = $1
LIMIT 1
`

// InsertUserIfAbsent creates the user only when its natural key is new and
// returns the stored row either way. Used for synthetic identities, whose
// first-seen display name must stay stable.
func (q *Queries) InsertUserIfAbsent(ctx context.Context, arg UpsertUserParams) (model.User, error) {
	var u model.User
	err := q.db.QueryRow(ctx, insertUserIfAbsentSQL,
		arg.BitbucketUserID, arg.DisplayName, arg.AvatarURL, arg.CreatedOn,
	).Scan(&u.ID, &u.BitbucketUserID, &u.DisplayName, &u.AvatarURL, &u.CreatedOn)
	return u, err
}

const getUserByBitbucketIDSQL = `
SELECT id, bitbucket_user_id, display_name, avatar_url, created_on
FROM users WHERE bitbucket_user_id = $1
`

// GetUserByBitbucketID looks a user up by its upstream UUID (or synthetic
// key). Returns pgx.ErrNoRows when absent.
func (q *Queries) GetUserByBitbucketID(ctx context.Context, bitbucketUserID string) (model.User, error) {
	var u model.User
	err := q.db.QueryRow(ctx, getUserByBitbucketIDSQL, bitbucketUserID).
		Scan(&u.ID, &u.BitbucketUserID, &u.DisplayName, &u.AvatarURL, &u.CreatedOn)
	return u, err
}
