// internal/syncer/authors.go
package syncer

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bhardwajvicky/DevView/internal/bitbucket"
	"github.com/bhardwajvicky/DevView/internal/database"
)

// rawAuthorRe splits a git author string of the form "Jane Doe <jane@x.com>".
var rawAuthorRe = regexp.MustCompile(`^(.*?)\s*<(.+?)>$`)

// resolveAuthor maps a commit's author to a local user id, fabricating a
// synthetic identity when the author has no linked upstream account. The
// fallback order for the natural key is fixed: upstream UUID, then an
// email-derived key, then a commit-hash-derived key; changing it would
// break key stability for previously synced synthetic users.
func resolveAuthor(ctx context.Context, q database.Querier, author bitbucket.CommitAuthor, commitHash string, commitDate time.Time) (int64, error) {
	key := ""
	if author.User != nil && author.User.UUID != "" {
		key = author.User.UUID
		u, err := q.GetUserByBitbucketID(ctx, key)
		if err == nil {
			return u.ID, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
	}

	display, email := parseRawAuthor(author.Raw)
	if key == "" && email != "" {
		key = "synthetic:" + email
	}
	if key == "" {
		key = "synthetic:unknown:" + commitHash
	}
	if display == "" {
		display = "Unknown"
	}

	u, err := q.InsertUserIfAbsent(ctx, database.UpsertUserParams{
		BitbucketUserID: key,
		DisplayName:     display,
		CreatedOn:       &commitDate,
	})
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

func parseRawAuthor(raw string) (display, email string) {
	if raw == "" {
		return "", ""
	}
	if m := rawAuthorRe.FindStringSubmatch(raw); m != nil {
		return m[1], m[2]
	}
	return raw, ""
}
