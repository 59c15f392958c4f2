// internal/database/commits.go
package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bhardwajvicky/DevView/internal/model"
)

type InsertCommitParams struct {
	Hash            string
	RepositoryID    int64
	AuthorID        int64
	Date            time.Time
	Message         string
	IsMerge         bool
	IsPRMergeCommit bool
	Stats           *model.CommitStats
}

type UpdateCommitStatsParams struct {
	ID              int64
	IsMerge         bool
	IsPRMergeCommit bool
	Stats           model.CommitStats
}

type CommitFileParams struct {
	FilePath      string
	FileType      model.FileCategory
	ChangeStatus  string
	LinesAdded    int
	LinesRemoved  int
	FileExtension string
}

// CommitForRefreshRow carries what a re-classification pass needs to fetch
// a commit's diff again.
type CommitForRefreshRow struct {
	ID        int64
	Hash      string
	Workspace string
	Slug      string
}

const commitColumns = `
id, bitbucket_commit_hash, repository_id, author_id, date, message,
is_merge, is_pr_merge_commit,
lines_added, lines_removed,
code_lines_added, code_lines_removed,
data_lines_added, data_lines_removed,
config_lines_added, config_lines_removed,
docs_lines_added, docs_lines_removed
`

func scanCommit(row pgx.Row) (model.Commit, error) {
	var c model.Commit
	var la, lr, ca, cr, da, dr, cfa, cfr, doa, dor *int
	err := row.Scan(&c.ID, &c.Hash, &c.RepositoryID, &c.AuthorID, &c.Date, &c.Message,
		&c.IsMerge, &c.IsPRMergeCommit,
		&la, &lr, &ca, &cr, &da, &dr, &cfa, &cfr, &doa, &dor)
	if err != nil {
		return model.Commit{}, err
	}
	// lines_added is only ever written together with the rest, so it alone
	// decides whether the row has left its unclassified phase.
	if la != nil {
		c.Stats = &model.CommitStats{
			LinesAdded: *la, LinesRemoved: deref(lr),
			CodeLinesAdded: deref(ca), CodeLinesRemoved: deref(cr),
			DataLinesAdded: deref(da), DataLinesRemoved: deref(dr),
			ConfigLinesAdded: deref(cfa), ConfigLinesRemoved: deref(cfr),
			DocsLinesAdded: deref(doa), DocsLinesRemoved: deref(dor),
		}
	}
	return c, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

const getCommitByHashSQL = `SELECT ` + commitColumns + ` FROM commits WHERE bitbucket_commit_hash = $1`

// GetCommitByHash returns pgx.ErrNoRows when the hash is unknown.
func (q *Queries) GetCommitByHash(ctx context.Context, hash string) (model.Commit, error) {
	return scanCommit(q.db.QueryRow(ctx, getCommitByHashSQL, hash))
}

const insertCommitSQL = `
INSERT INTO commits (
    bitbucket_commit_hash, repository_id, author_id, date, message,
    is_merge, is_pr_merge_commit,
    lines_added, lines_removed,
    code_lines_added, code_lines_removed,
    data_lines_added, data_lines_removed,
    config_lines_added, config_lines_removed,
    docs_lines_added, docs_lines_removed
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (bitbucket_commit_hash) DO NOTHING
RETURNING ` + commitColumns

// InsertCommit writes a commit row; a nil Stats leaves the classification
// columns NULL (the unclassified first phase). An already-present hash is
// returned as-is, untouched.
func (q *Queries) InsertCommit(ctx context.Context, arg InsertCommitParams) (model.Commit, error) {
	var la, lr, ca, cr, da, dr, cfa, cfr, doa, dor *int
	if s := arg.Stats; s != nil {
		la, lr = &s.LinesAdded, &s.LinesRemoved
		ca, cr = &s.CodeLinesAdded, &s.CodeLinesRemoved
		da, dr = &s.DataLinesAdded, &s.DataLinesRemoved
		cfa, cfr = &s.ConfigLinesAdded, &s.ConfigLinesRemoved
		doa, dor = &s.DocsLinesAdded, &s.DocsLinesRemoved
	}
	c, err := scanCommit(q.db.QueryRow(ctx, insertCommitSQL,
		arg.Hash, arg.RepositoryID, arg.AuthorID, arg.Date, arg.Message,
		arg.IsMerge, arg.IsPRMergeCommit,
		la, lr, ca, cr, da, dr, cfa, cfr, doa, dor))
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: another pass already inserted this hash.
		return q.GetCommitByHash(ctx, arg.Hash)
	}
	return c, err
}

const updateCommitStatsSQL = `
UPDATE commits SET
    is_merge = $2, is_pr_merge_commit = $3,
    lines_added = $4, lines_removed = $5,
    code_lines_added = $6, code_lines_removed = $7,
    data_lines_added = $8, data_lines_removed = $9,
    config_lines_added = $10, config_lines_removed = $11,
    docs_lines_added = $12, docs_lines_removed = $13
WHERE id = $1
`

// UpdateCommitStats completes a two-phase commit row in place.
func (q *Queries) UpdateCommitStats(ctx context.Context, arg UpdateCommitStatsParams) error {
	s := arg.Stats
	_, err := q.db.Exec(ctx, updateCommitStatsSQL, arg.ID,
		arg.IsMerge, arg.IsPRMergeCommit,
		s.LinesAdded, s.LinesRemoved,
		s.CodeLinesAdded, s.CodeLinesRemoved,
		s.DataLinesAdded, s.DataLinesRemoved,
		s.ConfigLinesAdded, s.ConfigLinesRemoved,
		s.DocsLinesAdded, s.DocsLinesRemoved)
	return err
}

// InsertCommitFiles bulk-inserts the per-file rows for one commit.
func (q *Queries) InsertCommitFiles(ctx context.Context, commitID int64, files []CommitFileParams) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, len(files))
	for i, f := range files {
		rows[i] = []any{commitID, f.FilePath, string(f.FileType), f.ChangeStatus, f.LinesAdded, f.LinesRemoved, f.FileExtension, now}
	}
	return q.db.CopyFrom(ctx,
		pgx.Identifier{"commit_files"},
		[]string{"commit_id", "file_path", "file_type", "change_status", "lines_added", "lines_removed", "file_extension", "created_on"},
		pgx.CopyFromRows(rows))
}

// DeleteCommitFiles clears a commit's file rows before a re-classification
// writes fresh ones.
func (q *Queries) DeleteCommitFiles(ctx context.Context, commitID int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM commit_files WHERE commit_id = $1`, commitID)
	return err
}

const listCommitsForRefreshSQL = `
SELECT c.id, c.bitbucket_commit_hash, r.workspace, r.slug
FROM commits c
JOIN repositories r ON r.id = c.repository_id
ORDER BY c.id
`

// ListCommitsForRefresh returns every stored commit with its repository
// coordinates so diffs can be fetched and re-classified.
func (q *Queries) ListCommitsForRefresh(ctx context.Context) ([]CommitForRefreshRow, error) {
	rows, err := q.db.Query(ctx, listCommitsForRefreshSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommitForRefreshRow
	for rows.Next() {
		var r CommitForRefreshRow
		if err := rows.Scan(&r.ID, &r.Hash, &r.Workspace, &r.Slug); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
