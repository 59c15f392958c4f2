// internal/database/synclog.go
package database

import (
	"context"
	"time"

	"github.com/bhardwajvicky/DevView/internal/model"
)

type CreateSyncLogParams struct {
	RepositoryID int64
	StartDate    time.Time
	EndDate      time.Time
	Status       model.SyncStatus
}

const createSyncLogSQL = `
INSERT INTO repository_sync_log (repository_id, start_date, end_date, status, synced_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`

// CreateSyncLog writes the checkpoint row for one window attempt, normally
// with status Started, and returns its id.
func (q *Queries) CreateSyncLog(ctx context.Context, arg CreateSyncLogParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createSyncLogSQL,
		arg.RepositoryID, arg.StartDate, arg.EndDate, string(arg.Status), time.Now().UTC(),
	).Scan(&id)
	return id, err
}

type UpdateSyncLogParams struct {
	ID      int64
	Status  model.SyncStatus
	Message string
}

// UpdateSyncLog records the outcome of a window attempt.
func (q *Queries) UpdateSyncLog(ctx context.Context, arg UpdateSyncLogParams) error {
	_, err := q.db.Exec(ctx,
		`UPDATE repository_sync_log SET status = $2, message = $3 WHERE id = $1`,
		arg.ID, string(arg.Status), arg.Message)
	return err
}

const hasCompletedSyncLogSQL = `
SELECT EXISTS (
    SELECT 1 FROM repository_sync_log
    WHERE repository_id = $1 AND start_date = $2 AND end_date = $3 AND status = 'Completed'
)
`

// HasCompletedSyncLog reports whether the exact window already finished
// successfully. Rows left in Started by a crash count as not completed.
func (q *Queries) HasCompletedSyncLog(ctx context.Context, arg SyncWindowParams) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, hasCompletedSyncLogSQL, arg.RepositoryID, arg.StartDate, arg.EndDate).Scan(&exists)
	return exists, err
}
