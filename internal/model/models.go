// internal/model/models.go
package model

import "time"

// FileCategory is the classification bucket a changed file falls into.
type FileCategory string

const (
	CategoryCode   FileCategory = "code"
	CategoryData   FileCategory = "data"
	CategoryConfig FileCategory = "config"
	CategoryDocs   FileCategory = "docs"
)

// PullRequestState mirrors the states the upstream API reports.
type PullRequestState string

const (
	PRStateOpen       PullRequestState = "OPEN"
	PRStateMerged     PullRequestState = "MERGED"
	PRStateDeclined   PullRequestState = "DECLINED"
	PRStateSuperseded PullRequestState = "SUPERSEDED"
)

// SyncStatus is the lifecycle of one (repository, window) sync attempt.
type SyncStatus string

const (
	SyncStarted   SyncStatus = "Started"
	SyncCompleted SyncStatus = "Completed"
	SyncFailed    SyncStatus = "Failed"
)

// SyncMode selects between walking all history and one recent window.
type SyncMode string

const (
	ModeFull  SyncMode = "full"
	ModeDelta SyncMode = "delta"
)

// User is a workspace member or a synthetic identity fabricated for an
// unlinked commit author. BitbucketUserID is the natural key; synthetic
// identities use a "synthetic:" prefix.
type User struct {
	ID              int64
	BitbucketUserID string
	DisplayName     string
	AvatarURL       *string
	CreatedOn       *time.Time
}

// Repository is a mirrored repository. BitbucketRepoID is the natural key;
// Slug is the secondary lookup key the sync services use.
type Repository struct {
	ID              int64
	BitbucketRepoID string
	Slug            string
	FullName        string
	Workspace       string
	CreatedOn       *time.Time
}

// CommitStats holds the per-category line counts computed from a commit's
// diff. A nil *CommitStats on Commit means the row is still in its first,
// unclassified phase.
type CommitStats struct {
	LinesAdded         int
	LinesRemoved       int
	CodeLinesAdded     int
	CodeLinesRemoved   int
	DataLinesAdded     int
	DataLinesRemoved   int
	ConfigLinesAdded   int
	ConfigLinesRemoved int
	DocsLinesAdded     int
	DocsLinesRemoved   int
}

// Commit is one immutable commit, keyed by its content hash.
type Commit struct {
	ID              int64
	Hash            string
	RepositoryID    int64
	AuthorID        int64
	Date            time.Time
	Message         string
	IsMerge         bool
	IsPRMergeCommit bool
	Stats           *CommitStats
}

// CommitFile is one file touched by a commit. Written atomically with the
// commit's classification and never updated afterwards.
type CommitFile struct {
	ID            int64
	CommitID      int64
	FilePath      string
	FileType      FileCategory
	ChangeStatus  string
	LinesAdded    int
	LinesRemoved  int
	FileExtension string
	CreatedOn     time.Time
}

// PullRequest is keyed by (RepositoryID, BitbucketPRID) and stays mutable
// until it reaches a terminal state.
type PullRequest struct {
	ID            int64
	BitbucketPRID string
	RepositoryID  int64
	AuthorID      int64
	Title         string
	State         PullRequestState
	CreatedOn     time.Time
	UpdatedOn     *time.Time
	MergedOn      *time.Time
	ClosedOn      *time.Time
}

// PullRequestApproval is one reviewer's approval activity on a PR, keyed by
// (PullRequestID, UserUUID).
type PullRequestApproval struct {
	ID            int64
	PullRequestID int64
	UserUUID      string
	DisplayName   string
	Role          string
	Approved      bool
	State         string
	ApprovedOn    *time.Time
}

// SyncLog is the durable checkpoint for one (repository, window) attempt.
type SyncLog struct {
	ID           int64
	RepositoryID int64
	StartDate    time.Time
	EndDate      time.Time
	Status       SyncStatus
	Message      string
	SyncedAt     time.Time
}

// DateWindow is a bounded date range (both ends inclusive) one sync pass is
// evaluated over.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
