// internal/syncer/mock_test.go
package syncer

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bhardwajvicky/DevView/internal/bitbucket"
	"github.com/bhardwajvicky/DevView/internal/database"
	"github.com/bhardwajvicky/DevView/internal/model"
)

// MockQuerier is a mock of the database.Querier interface.
type MockQuerier struct {
	mock.Mock
}

var _ database.Querier = (*MockQuerier)(nil)

func (m *MockQuerier) UpsertUser(ctx context.Context, arg database.UpsertUserParams) (model.User, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockQuerier) InsertUserIfAbsent(ctx context.Context, arg database.UpsertUserParams) (model.User, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockQuerier) GetUserByBitbucketID(ctx context.Context, bitbucketUserID string) (model.User, error) {
	args := m.Called(ctx, bitbucketUserID)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockQuerier) UpsertRepository(ctx context.Context, arg database.UpsertRepositoryParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) GetRepositoryBySlug(ctx context.Context, slug string) (model.Repository, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Repository), args.Error(1)
}

func (m *MockQuerier) GetCommitByHash(ctx context.Context, hash string) (model.Commit, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(model.Commit), args.Error(1)
}

func (m *MockQuerier) InsertCommit(ctx context.Context, arg database.InsertCommitParams) (model.Commit, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Commit), args.Error(1)
}

func (m *MockQuerier) UpdateCommitStats(ctx context.Context, arg database.UpdateCommitStatsParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockQuerier) InsertCommitFiles(ctx context.Context, commitID int64, files []database.CommitFileParams) (int64, error) {
	args := m.Called(ctx, commitID, files)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuerier) DeleteCommitFiles(ctx context.Context, commitID int64) error {
	args := m.Called(ctx, commitID)
	return args.Error(0)
}

func (m *MockQuerier) ListCommitsForRefresh(ctx context.Context) ([]database.CommitForRefreshRow, error) {
	args := m.Called(ctx)
	return args.Get(0).([]database.CommitForRefreshRow), args.Error(1)
}

func (m *MockQuerier) UpsertPullRequest(ctx context.Context, arg database.UpsertPullRequestParams) (model.PullRequest, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.PullRequest), args.Error(1)
}

func (m *MockQuerier) UpsertPullRequestApproval(ctx context.Context, arg database.UpsertPullRequestApprovalParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockQuerier) InsertPullRequestCommit(ctx context.Context, pullRequestID, commitID int64) error {
	args := m.Called(ctx, pullRequestID, commitID)
	return args.Error(0)
}

func (m *MockQuerier) FixPRMergeFlags(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuerier) CreateSyncLog(ctx context.Context, arg database.CreateSyncLogParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuerier) UpdateSyncLog(ctx context.Context, arg database.UpdateSyncLogParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockQuerier) HasCompletedSyncLog(ctx context.Context, arg database.SyncWindowParams) (bool, error) {
	args := m.Called(ctx, arg)
	return args.Bool(0), args.Error(1)
}

// fakeAPI implements the API interface with overridable functions so each
// test controls exactly the upstream calls it expects. Unset functions
// return empty pages.
type fakeAPI struct {
	members    func(ctx context.Context, workspace, nextURL string) (bitbucket.Page[bitbucket.WorkspaceMembership], error)
	repos      func(ctx context.Context, workspace, nextURL string) (bitbucket.Page[bitbucket.Repository], error)
	commits    func(ctx context.Context, workspace, slug, nextURL string) (bitbucket.Page[bitbucket.Commit], error)
	commitDiff func(ctx context.Context, workspace, slug, hash string) (string, error)
	prs        func(ctx context.Context, workspace, slug string, start, end time.Time, nextURL string) (bitbucket.Page[bitbucket.PullRequest], error)
	prCommits  func(ctx context.Context, workspace, slug string, prID int, nextURL string) (bitbucket.Page[bitbucket.Commit], error)
	prActivity func(ctx context.Context, workspace, slug string, prID int, nextURL string) (bitbucket.Page[bitbucket.Activity], error)
	waitTime   time.Duration

	diffCalls int
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) WorkspaceMembers(ctx context.Context, workspace, nextURL string) (bitbucket.Page[bitbucket.WorkspaceMembership], error) {
	if f.members == nil {
		return bitbucket.Page[bitbucket.WorkspaceMembership]{}, nil
	}
	return f.members(ctx, workspace, nextURL)
}

func (f *fakeAPI) WorkspaceRepositories(ctx context.Context, workspace, nextURL string) (bitbucket.Page[bitbucket.Repository], error) {
	if f.repos == nil {
		return bitbucket.Page[bitbucket.Repository]{}, nil
	}
	return f.repos(ctx, workspace, nextURL)
}

func (f *fakeAPI) Commits(ctx context.Context, workspace, slug, nextURL string) (bitbucket.Page[bitbucket.Commit], error) {
	if f.commits == nil {
		return bitbucket.Page[bitbucket.Commit]{}, nil
	}
	return f.commits(ctx, workspace, slug, nextURL)
}

func (f *fakeAPI) CommitDiff(ctx context.Context, workspace, slug, hash string) (string, error) {
	f.diffCalls++
	if f.commitDiff == nil {
		return "", nil
	}
	return f.commitDiff(ctx, workspace, slug, hash)
}

func (f *fakeAPI) PullRequests(ctx context.Context, workspace, slug string, start, end time.Time, nextURL string) (bitbucket.Page[bitbucket.PullRequest], error) {
	if f.prs == nil {
		return bitbucket.Page[bitbucket.PullRequest]{}, nil
	}
	return f.prs(ctx, workspace, slug, start, end, nextURL)
}

func (f *fakeAPI) PullRequestCommits(ctx context.Context, workspace, slug string, prID int, nextURL string) (bitbucket.Page[bitbucket.Commit], error) {
	if f.prCommits == nil {
		return bitbucket.Page[bitbucket.Commit]{}, nil
	}
	return f.prCommits(ctx, workspace, slug, prID, nextURL)
}

func (f *fakeAPI) PullRequestActivity(ctx context.Context, workspace, slug string, prID int, nextURL string) (bitbucket.Page[bitbucket.Activity], error) {
	if f.prActivity == nil {
		return bitbucket.Page[bitbucket.Activity]{}, nil
	}
	return f.prActivity(ctx, workspace, slug, prID, nextURL)
}

func (f *fakeAPI) RateLimitWaitTime() time.Duration { return f.waitTime }
