// internal/syncer/commits_test.go
package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bhardwajvicky/DevView/internal/apperrors"
	"github.com/bhardwajvicky/DevView/internal/bitbucket"
	"github.com/bhardwajvicky/DevView/internal/database"
	"github.com/bhardwajvicky/DevView/internal/diff"
	"github.com/bhardwajvicky/DevView/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

func classifiedCommit(id int64, hash string) model.Commit {
	return model.Commit{ID: id, Hash: hash, Stats: &model.CommitStats{LinesAdded: 1}}
}

func commitsPage(next string, commits ...bitbucket.Commit) bitbucket.Page[bitbucket.Commit] {
	return bitbucket.Page[bitbucket.Commit]{Values: commits, Next: next}
}

func TestCommitSyncWindowBoundary(t *testing.T) {
	window := model.DateWindow{Start: day(3), End: day(5)}

	// Upstream page newest-first: d5, d4, d3 inside the window, then d2 and
	// d1 past its start. The page advertises a next URL that must never be
	// followed once the boundary is seen.
	api := &fakeAPI{
		commits: func(ctx context.Context, workspace, slug, nextURL string) (bitbucket.Page[bitbucket.Commit], error) {
			require.Empty(t, nextURL, "must stop paging after the boundary page")
			return commitsPage("https://api.example/next",
				bitbucket.Commit{Hash: "c5", Date: day(5)},
				bitbucket.Commit{Hash: "c4", Date: day(4)},
				bitbucket.Commit{Hash: "c3", Date: day(3)},
				bitbucket.Commit{Hash: "c2", Date: day(2)},
				bitbucket.Commit{Hash: "c1", Date: day(1)},
			), nil
		},
	}

	db := new(MockQuerier)
	db.On("GetRepositoryBySlug", mock.Anything, "repo").Return(model.Repository{ID: 7, Slug: "repo"}, nil)
	db.On("GetCommitByHash", mock.Anything, "c5").Return(classifiedCommit(15, "c5"), nil)
	db.On("GetCommitByHash", mock.Anything, "c4").Return(classifiedCommit(14, "c4"), nil)
	db.On("GetCommitByHash", mock.Anything, "c3").Return(classifiedCommit(13, "c3"), nil)

	s := NewCommitSync(db, api, discardLogger())
	hasMore, err := s.Sync(context.Background(), "acme", "repo", window)

	require.NoError(t, err)
	assert.True(t, hasMore, "records past the window start mean older history exists")
	assert.Equal(t, 0, api.diffCalls, "already-classified commits must not refetch their diff")
	db.AssertNotCalled(t, "GetCommitByHash", mock.Anything, "c2")
	db.AssertNotCalled(t, "GetCommitByHash", mock.Anything, "c1")
	db.AssertExpectations(t)
}

func TestCommitSyncIgnoresCommitsAfterWindowEnd(t *testing.T) {
	window := model.DateWindow{Start: day(3), End: day(5)}

	api := &fakeAPI{
		commits: func(ctx context.Context, workspace, slug, nextURL string) (bitbucket.Page[bitbucket.Commit], error) {
			return commitsPage("",
				bitbucket.Commit{Hash: "c9", Date: day(9)},
				bitbucket.Commit{Hash: "c4", Date: day(4)},
			), nil
		},
	}

	db := new(MockQuerier)
	db.On("GetRepositoryBySlug", mock.Anything, "repo").Return(model.Repository{ID: 7, Slug: "repo"}, nil)
	db.On("GetCommitByHash", mock.Anything, "c4").Return(classifiedCommit(14, "c4"), nil)

	s := NewCommitSync(db, api, discardLogger())
	hasMore, err := s.Sync(context.Background(), "acme", "repo", window)

	require.NoError(t, err)
	assert.False(t, hasMore)
	db.AssertNotCalled(t, "GetCommitByHash", mock.Anything, "c9")
	db.AssertExpectations(t)
}

func TestCommitSyncUnknownRepository(t *testing.T) {
	db := new(MockQuerier)
	db.On("GetRepositoryBySlug", mock.Anything, "ghost").Return(model.Repository{}, pgx.ErrNoRows)

	s := NewCommitSync(db, &fakeAPI{}, discardLogger())
	_, err := s.Sync(context.Background(), "acme", "ghost", model.DateWindow{Start: day(1), End: day(5)})

	require.ErrorIs(t, err, apperrors.ErrRepositoryNotFound)
}

func TestCommitSyncSkipsFailingCommitButContinues(t *testing.T) {
	window := model.DateWindow{Start: day(1), End: day(5)}

	api := &fakeAPI{
		commits: func(ctx context.Context, workspace, slug, nextURL string) (bitbucket.Page[bitbucket.Commit], error) {
			return commitsPage("",
				bitbucket.Commit{Hash: "bad", Date: day(4)},
				bitbucket.Commit{Hash: "good", Date: day(3)},
			), nil
		},
	}

	db := new(MockQuerier)
	db.On("GetRepositoryBySlug", mock.Anything, "repo").Return(model.Repository{ID: 7, Slug: "repo"}, nil)
	db.On("GetCommitByHash", mock.Anything, "bad").Return(model.Commit{}, errors.New("connection reset"))
	db.On("GetCommitByHash", mock.Anything, "good").Return(classifiedCommit(1, "good"), nil)

	s := NewCommitSync(db, api, discardLogger())
	hasMore, err := s.Sync(context.Background(), "acme", "repo", window)

	require.NoError(t, err, "one bad commit must not abort the window")
	assert.False(t, hasMore)
	db.AssertExpectations(t)
}

func TestCommitSyncAbortsOnRateLimit(t *testing.T) {
	window := model.DateWindow{Start: day(1), End: day(5)}

	api := &fakeAPI{
		commits: func(ctx context.Context, workspace, slug, nextURL string) (bitbucket.Page[bitbucket.Commit], error) {
			return commitsPage("", bitbucket.Commit{Hash: "c1", Date: day(3)}), nil
		},
		commitDiff: func(ctx context.Context, workspace, slug, hash string) (string, error) {
			return "", &apperrors.RateLimitError{RetryAfter: time.Minute, Attempts: 5}
		},
	}

	db := new(MockQuerier)
	db.On("GetRepositoryBySlug", mock.Anything, "repo").Return(model.Repository{ID: 7, Slug: "repo"}, nil)
	db.On("GetCommitByHash", mock.Anything, "c1").Return(model.Commit{}, pgx.ErrNoRows)

	s := NewCommitSync(db, api, discardLogger())
	_, err := s.Sync(context.Background(), "acme", "repo", window)

	var rle *apperrors.RateLimitError
	require.ErrorAs(t, err, &rle, "rate limiting is fatal for the whole window")
}

const sampleDiff = `diff --git a/src/main.py b/src/main.py
--- a/src/main.py
+++ b/src/main.py
@@ -1,2 +1,3 @@
-print('old')
+print('new')
+# comment`

func TestEnsureCommitInsertsNewCommit(t *testing.T) {
	upstream := bitbucket.Commit{
		Hash:    "abc123",
		Date:    day(4),
		Message: "tweak output",
		Author:  bitbucket.CommitAuthor{Raw: "Jane Doe <jane@x.com>"},
	}

	api := &fakeAPI{
		commitDiff: func(ctx context.Context, workspace, slug, hash string) (string, error) {
			assert.Equal(t, "abc123", hash)
			return sampleDiff, nil
		},
	}

	db := new(MockQuerier)
	db.On("GetCommitByHash", mock.Anything, "abc123").Return(model.Commit{}, pgx.ErrNoRows)
	db.On("InsertUserIfAbsent", mock.Anything, mock.MatchedBy(func(arg database.UpsertUserParams) bool {
		return arg.BitbucketUserID == "synthetic:jane@x.com" && arg.DisplayName == "Jane Doe"
	})).Return(model.User{ID: 42}, nil)
	db.On("InsertCommit", mock.Anything, mock.MatchedBy(func(arg database.InsertCommitParams) bool {
		// The first write carries metadata only; stats follow the file rows.
		return arg.Hash == "abc123" &&
			arg.RepositoryID == 7 &&
			arg.AuthorID == 42 &&
			!arg.IsMerge &&
			arg.Stats == nil
	})).Return(model.Commit{ID: 99, Hash: "abc123"}, nil)
	db.On("DeleteCommitFiles", mock.Anything, int64(99)).Return(nil)
	db.On("InsertCommitFiles", mock.Anything, int64(99), mock.MatchedBy(func(files []database.CommitFileParams) bool {
		return len(files) == 1 && files[0].FilePath == "src/main.py" && files[0].FileType == model.CategoryCode
	})).Return(int64(1), nil)
	db.On("UpdateCommitStats", mock.Anything, mock.MatchedBy(func(arg database.UpdateCommitStatsParams) bool {
		return arg.ID == 99 &&
			arg.Stats.LinesAdded == 2 &&
			arg.Stats.LinesRemoved == 1 &&
			arg.Stats.CodeLinesAdded == 1
	})).Return(nil)

	s := NewCommitSync(db, api, discardLogger())
	id, err := s.EnsureCommit(context.Background(), 7, "acme", "repo", upstream)

	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
	db.AssertExpectations(t)
}

func TestEnsureCommitShortCircuitsClassifiedRow(t *testing.T) {
	db := new(MockQuerier)
	db.On("GetCommitByHash", mock.Anything, "abc123").Return(classifiedCommit(99, "abc123"), nil)

	api := &fakeAPI{}
	s := NewCommitSync(db, api, discardLogger())
	id, err := s.EnsureCommit(context.Background(), 7, "acme", "repo", bitbucket.Commit{Hash: "abc123", Date: day(4)})

	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
	assert.Equal(t, 0, api.diffCalls)
	db.AssertNotCalled(t, "InsertCommit", mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "UpdateCommitStats", mock.Anything, mock.Anything)
}

func TestEnsureCommitCompletesMetadataOnlyRow(t *testing.T) {
	// The row exists from an earlier pass but lines_added is still NULL.
	db := new(MockQuerier)
	db.On("GetCommitByHash", mock.Anything, "abc123").Return(model.Commit{ID: 55, Hash: "abc123"}, nil)
	db.On("DeleteCommitFiles", mock.Anything, int64(55)).Return(nil)
	db.On("InsertCommitFiles", mock.Anything, int64(55), mock.Anything).Return(int64(1), nil)
	db.On("UpdateCommitStats", mock.Anything, mock.MatchedBy(func(arg database.UpdateCommitStatsParams) bool {
		return arg.ID == 55 && arg.Stats.LinesAdded == 2 && arg.Stats.CodeLinesAdded == 1
	})).Return(nil)

	api := &fakeAPI{
		commitDiff: func(ctx context.Context, workspace, slug, hash string) (string, error) {
			return sampleDiff, nil
		},
	}

	s := NewCommitSync(db, api, discardLogger())
	id, err := s.EnsureCommit(context.Background(), 7, "acme", "repo", bitbucket.Commit{Hash: "abc123", Date: day(4)})

	require.NoError(t, err)
	assert.Equal(t, int64(55), id)
	db.AssertNotCalled(t, "InsertCommit", mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "InsertUserIfAbsent", mock.Anything, mock.Anything)
	db.AssertExpectations(t)
}

func TestEnsureCommitConvergesAfterPartialWrite(t *testing.T) {
	upstream := bitbucket.Commit{
		Hash:   "abc123",
		Date:   day(4),
		Author: bitbucket.CommitAuthor{Raw: "Jane Doe <jane@x.com>"},
	}
	api := &fakeAPI{
		commitDiff: func(ctx context.Context, workspace, slug, hash string) (string, error) {
			return sampleDiff, nil
		},
	}

	// First pass: the commit row lands but the file insert dies. The stats
	// must stay unpopulated so the row is still repairable.
	db := new(MockQuerier)
	db.On("GetCommitByHash", mock.Anything, "abc123").Return(model.Commit{}, pgx.ErrNoRows)
	db.On("InsertUserIfAbsent", mock.Anything, mock.Anything).Return(model.User{ID: 42}, nil)
	db.On("InsertCommit", mock.Anything, mock.Anything).Return(model.Commit{ID: 99, Hash: "abc123"}, nil)
	db.On("DeleteCommitFiles", mock.Anything, int64(99)).Return(nil)
	db.On("InsertCommitFiles", mock.Anything, int64(99), mock.Anything).Return(int64(0), errors.New("connection reset"))

	s := NewCommitSync(db, api, discardLogger())
	_, err := s.EnsureCommit(context.Background(), 7, "acme", "repo", upstream)
	require.Error(t, err)
	db.AssertNotCalled(t, "UpdateCommitStats", mock.Anything, mock.Anything)

	// Second pass: the stored row still reads as unclassified, so the diff
	// is re-fetched and the file rows are written before the stats flip.
	db2 := new(MockQuerier)
	db2.On("GetCommitByHash", mock.Anything, "abc123").Return(model.Commit{ID: 99, Hash: "abc123"}, nil)
	db2.On("DeleteCommitFiles", mock.Anything, int64(99)).Return(nil)
	db2.On("InsertCommitFiles", mock.Anything, int64(99), mock.MatchedBy(func(files []database.CommitFileParams) bool {
		return len(files) == 1 && files[0].FilePath == "src/main.py"
	})).Return(int64(1), nil)
	db2.On("UpdateCommitStats", mock.Anything, mock.MatchedBy(func(arg database.UpdateCommitStatsParams) bool {
		return arg.ID == 99 && arg.Stats.LinesAdded == 2
	})).Return(nil)

	s2 := NewCommitSync(db2, api, discardLogger())
	id, err := s2.EnsureCommit(context.Background(), 7, "acme", "repo", upstream)
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
	db2.AssertNotCalled(t, "InsertCommit", mock.Anything, mock.Anything)
	db2.AssertExpectations(t)
}

func TestEnsureCommitMarksMergeCommits(t *testing.T) {
	upstream := bitbucket.Commit{
		Hash:    "merge1",
		Date:    day(4),
		Author:  bitbucket.CommitAuthor{Raw: "Jane Doe <jane@x.com>"},
		Parents: []bitbucket.CommitParent{{Hash: "a"}, {Hash: "b"}},
	}

	db := new(MockQuerier)
	db.On("GetCommitByHash", mock.Anything, "merge1").Return(model.Commit{}, pgx.ErrNoRows)
	db.On("InsertUserIfAbsent", mock.Anything, mock.Anything).Return(model.User{ID: 1}, nil)
	db.On("InsertCommit", mock.Anything, mock.MatchedBy(func(arg database.InsertCommitParams) bool {
		return arg.IsMerge && arg.IsPRMergeCommit
	})).Return(model.Commit{ID: 5}, nil)
	db.On("DeleteCommitFiles", mock.Anything, int64(5)).Return(nil)
	db.On("InsertCommitFiles", mock.Anything, int64(5), mock.Anything).Return(int64(0), nil)
	db.On("UpdateCommitStats", mock.Anything, mock.MatchedBy(func(arg database.UpdateCommitStatsParams) bool {
		return arg.IsMerge && arg.IsPRMergeCommit
	})).Return(nil)

	s := NewCommitSync(db, &fakeAPI{}, discardLogger())
	_, err := s.EnsureCommit(context.Background(), 7, "acme", "repo", upstream)

	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestRefreshAllStats(t *testing.T) {
	rows := []database.CommitForRefreshRow{
		{ID: 1, Hash: "c1", Workspace: "acme", Slug: "repo"},
		{ID: 2, Hash: "c2", Workspace: "acme", Slug: "repo"},
	}

	db := new(MockQuerier)
	db.On("ListCommitsForRefresh", mock.Anything).Return(rows, nil)
	db.On("GetCommitByHash", mock.Anything, "c1").Return(model.Commit{ID: 1, Hash: "c1", IsMerge: true, IsPRMergeCommit: true}, nil)
	db.On("GetCommitByHash", mock.Anything, "c2").Return(model.Commit{ID: 2, Hash: "c2"}, nil)
	db.On("UpdateCommitStats", mock.Anything, mock.MatchedBy(func(arg database.UpdateCommitStatsParams) bool {
		// Merge flags survive the refresh untouched.
		return (arg.ID != 1 || arg.IsMerge) && (arg.ID != 2 || !arg.IsMerge)
	})).Return(nil)
	db.On("DeleteCommitFiles", mock.Anything, mock.Anything).Return(nil)
	db.On("InsertCommitFiles", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	api := &fakeAPI{
		commitDiff: func(ctx context.Context, workspace, slug, hash string) (string, error) {
			return sampleDiff, nil
		},
	}

	s := NewCommitSync(db, api, discardLogger())
	refreshed, err := s.RefreshAllStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, refreshed)
	db.AssertExpectations(t)
}

func TestRefreshAllStatsSkipsFailedDiffFetch(t *testing.T) {
	rows := []database.CommitForRefreshRow{
		{ID: 1, Hash: "gone", Workspace: "acme", Slug: "repo"},
		{ID: 2, Hash: "ok", Workspace: "acme", Slug: "repo"},
	}

	db := new(MockQuerier)
	db.On("ListCommitsForRefresh", mock.Anything).Return(rows, nil)
	db.On("GetCommitByHash", mock.Anything, mock.Anything).Return(model.Commit{ID: 2, Hash: "ok"}, nil)
	db.On("UpdateCommitStats", mock.Anything, mock.Anything).Return(nil)
	db.On("DeleteCommitFiles", mock.Anything, mock.Anything).Return(nil)
	db.On("InsertCommitFiles", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)

	api := &fakeAPI{
		commitDiff: func(ctx context.Context, workspace, slug, hash string) (string, error) {
			if hash == "gone" {
				return "", &apperrors.HTTPError{StatusCode: 404, URL: "u"}
			}
			return sampleDiff, nil
		},
	}

	s := NewCommitSync(db, api, discardLogger())
	refreshed, err := s.RefreshAllStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
}

func TestFileParamsConversion(t *testing.T) {
	params := fileParams(diff.Classify(sampleDiff).FileChanges)
	require.Len(t, params, 1)
	assert.Equal(t, "src/main.py", params[0].FilePath)
	assert.Equal(t, model.CategoryCode, params[0].FileType)
	assert.Equal(t, "modified", params[0].ChangeStatus)
	assert.Equal(t, 2, params[0].LinesAdded)
	assert.Equal(t, 1, params[0].LinesRemoved)
	assert.Equal(t, "py", params[0].FileExtension)
}
