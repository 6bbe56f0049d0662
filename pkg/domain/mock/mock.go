// Package mock provides function-field test doubles for the domain interfaces.
// An unset function returns zero values.
package mock

import (
	"context"
	"os"
	"sync"

	"github.com/analogj/capsulecd/pkg/domain/interfaces"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/google/go-github/v75/github"
)

var (
	_ interfaces.GitHubClient    = &GitHubClientMock{}
	_ interfaces.GitClient       = &GitClientMock{}
	_ interfaces.CommandRunner   = &CommandRunnerMock{}
	_ interfaces.SourceAdapter   = &SourceAdapterMock{}
	_ interfaces.RunnerAdapter   = &RunnerAdapterMock{}
	_ interfaces.PackageStrategy = &PackageStrategyMock{}
	_ interfaces.Notifier        = &NotifierMock{}
)

// Call is a recorded invocation
type Call struct {
	Method string
	Args   []any
}

type recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recorder) record(method string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

// Calls returns recorded invocations of method, or all invocations when method is empty
func (r *recorder) Calls(method string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Methods returns the names of recorded invocations in order
func (r *recorder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.Method)
	}
	return out
}

type GitHubClientMock struct {
	recorder
	TokenFunc              func(ctx context.Context) (string, error)
	GetPullRequestFunc     func(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	IsCollaboratorFunc     func(ctx context.Context, owner, repo, user string) (bool, error)
	CreateCommentFunc      func(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error)
	CreateStatusFunc       func(ctx context.Context, owner, repo, ref string, status *github.RepoStatus) error
	CreateReleaseFunc      func(ctx context.Context, owner, repo string, release *github.RepositoryRelease) (*github.RepositoryRelease, error)
	UploadReleaseAssetFunc func(ctx context.Context, owner, repo string, releaseID int64, name string, file *os.File) error
	DeleteBranchFunc       func(ctx context.Context, owner, repo, branch string) error
}

func (m *GitHubClientMock) Token(ctx context.Context) (string, error) {
	m.record("Token")
	if m.TokenFunc != nil {
		return m.TokenFunc(ctx)
	}
	return "", nil
}

func (m *GitHubClientMock) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	m.record("GetPullRequest", owner, repo, number)
	if m.GetPullRequestFunc != nil {
		return m.GetPullRequestFunc(ctx, owner, repo, number)
	}
	return &github.PullRequest{}, nil
}

func (m *GitHubClientMock) IsCollaborator(ctx context.Context, owner, repo, user string) (bool, error) {
	m.record("IsCollaborator", owner, repo, user)
	if m.IsCollaboratorFunc != nil {
		return m.IsCollaboratorFunc(ctx, owner, repo, user)
	}
	return false, nil
}

func (m *GitHubClientMock) CreateComment(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error) {
	m.record("CreateComment", owner, repo, number, comment)
	if m.CreateCommentFunc != nil {
		return m.CreateCommentFunc(ctx, owner, repo, number, comment)
	}
	return comment, nil, nil
}

func (m *GitHubClientMock) CreateStatus(ctx context.Context, owner, repo, ref string, status *github.RepoStatus) error {
	m.record("CreateStatus", owner, repo, ref, status)
	if m.CreateStatusFunc != nil {
		return m.CreateStatusFunc(ctx, owner, repo, ref, status)
	}
	return nil
}

func (m *GitHubClientMock) CreateRelease(ctx context.Context, owner, repo string, release *github.RepositoryRelease) (*github.RepositoryRelease, error) {
	m.record("CreateRelease", owner, repo, release)
	if m.CreateReleaseFunc != nil {
		return m.CreateReleaseFunc(ctx, owner, repo, release)
	}
	return release, nil
}

func (m *GitHubClientMock) UploadReleaseAsset(ctx context.Context, owner, repo string, releaseID int64, name string, file *os.File) error {
	m.record("UploadReleaseAsset", owner, repo, releaseID, name, file.Name())
	if m.UploadReleaseAssetFunc != nil {
		return m.UploadReleaseAssetFunc(ctx, owner, repo, releaseID, name, file)
	}
	return nil
}

func (m *GitHubClientMock) DeleteBranch(ctx context.Context, owner, repo, branch string) error {
	m.record("DeleteBranch", owner, repo, branch)
	if m.DeleteBranchFunc != nil {
		return m.DeleteBranchFunc(ctx, owner, repo, branch)
	}
	return nil
}

type GitClientMock struct {
	recorder
	CloneFunc    func(ctx context.Context, parentPath, name, remote string) (string, error)
	FetchFunc    func(ctx context.Context, repoPath, remoteRef, localBranch string) error
	CheckoutFunc func(ctx context.Context, repoPath, ref string) error
	CommitFunc   func(ctx context.Context, repoPath, message string) error
	TagFunc      func(ctx context.Context, repoPath, tag, message string) (string, error)
	PushFunc     func(ctx context.Context, repoPath, localBranch, remoteBranch string) error
	LogFunc      func(ctx context.Context, repoPath, base, head string) ([]*model.Commit, error)
	TagsFunc     func(ctx context.Context, repoPath string) ([]string, error)
	RevParseFunc func(ctx context.Context, repoPath, ref string) (string, error)
}

func (m *GitClientMock) Clone(ctx context.Context, parentPath, name, remote string) (string, error) {
	m.record("Clone", parentPath, name, remote)
	if m.CloneFunc != nil {
		return m.CloneFunc(ctx, parentPath, name, remote)
	}
	return parentPath + "/" + name, nil
}

func (m *GitClientMock) Fetch(ctx context.Context, repoPath, remoteRef, localBranch string) error {
	m.record("Fetch", repoPath, remoteRef, localBranch)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, repoPath, remoteRef, localBranch)
	}
	return nil
}

func (m *GitClientMock) Checkout(ctx context.Context, repoPath, ref string) error {
	m.record("Checkout", repoPath, ref)
	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ctx, repoPath, ref)
	}
	return nil
}

func (m *GitClientMock) Commit(ctx context.Context, repoPath, message string) error {
	m.record("Commit", repoPath, message)
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx, repoPath, message)
	}
	return nil
}

func (m *GitClientMock) Tag(ctx context.Context, repoPath, tag, message string) (string, error) {
	m.record("Tag", repoPath, tag, message)
	if m.TagFunc != nil {
		return m.TagFunc(ctx, repoPath, tag, message)
	}
	return "", nil
}

func (m *GitClientMock) Push(ctx context.Context, repoPath, localBranch, remoteBranch string) error {
	m.record("Push", repoPath, localBranch, remoteBranch)
	if m.PushFunc != nil {
		return m.PushFunc(ctx, repoPath, localBranch, remoteBranch)
	}
	return nil
}

func (m *GitClientMock) Log(ctx context.Context, repoPath, base, head string) ([]*model.Commit, error) {
	m.record("Log", repoPath, base, head)
	if m.LogFunc != nil {
		return m.LogFunc(ctx, repoPath, base, head)
	}
	return nil, nil
}

func (m *GitClientMock) Tags(ctx context.Context, repoPath string) ([]string, error) {
	m.record("Tags", repoPath)
	if m.TagsFunc != nil {
		return m.TagsFunc(ctx, repoPath)
	}
	return nil, nil
}

func (m *GitClientMock) RevParse(ctx context.Context, repoPath, ref string) (string, error) {
	m.record("RevParse", repoPath, ref)
	if m.RevParseFunc != nil {
		return m.RevParseFunc(ctx, repoPath, ref)
	}
	return "", nil
}

type CommandRunnerMock struct {
	recorder
	RunFunc func(ctx context.Context, dir string, env []string, command string) (string, error)
}

func (m *CommandRunnerMock) Run(ctx context.Context, dir string, env []string, command string) (string, error) {
	m.record("Run", dir, env, command)
	if m.RunFunc != nil {
		return m.RunFunc(ctx, dir, env, command)
	}
	return "", nil
}

// Commands returns the commands passed to Run in order
func (m *CommandRunnerMock) Commands() []string {
	var out []string
	for _, c := range m.Calls("Run") {
		out = append(out, c.Args[2].(string))
	}
	return out
}

type SourceAdapterMock struct {
	recorder
	ConfigureFunc                 func(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
	FetchPullRequestFunc          func(ctx context.Context, repoFullName string, number int) (*model.Payload, error)
	ProcessPullRequestPayloadFunc func(ctx context.Context, cfg *model.Config, data *model.PipelineData, payload *model.Payload) error
	ProcessPushPayloadFunc        func(ctx context.Context, cfg *model.Config, data *model.PipelineData, payload *model.Payload) error
	ReleaseFunc                   func(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
	ProcessFailureFunc            func(ctx context.Context, cfg *model.Config, data *model.PipelineData, cause error) error
	CleanupFunc                   func(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
}

func (m *SourceAdapterMock) Configure(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	m.record("Configure")
	if m.ConfigureFunc != nil {
		return m.ConfigureFunc(ctx, cfg, data)
	}
	return nil
}

func (m *SourceAdapterMock) FetchPullRequest(ctx context.Context, repoFullName string, number int) (*model.Payload, error) {
	m.record("FetchPullRequest", repoFullName, number)
	if m.FetchPullRequestFunc != nil {
		return m.FetchPullRequestFunc(ctx, repoFullName, number)
	}
	return nil, nil
}

func (m *SourceAdapterMock) ProcessPullRequestPayload(ctx context.Context, cfg *model.Config, data *model.PipelineData, payload *model.Payload) error {
	m.record("ProcessPullRequestPayload", payload)
	if m.ProcessPullRequestPayloadFunc != nil {
		return m.ProcessPullRequestPayloadFunc(ctx, cfg, data, payload)
	}
	return nil
}

func (m *SourceAdapterMock) ProcessPushPayload(ctx context.Context, cfg *model.Config, data *model.PipelineData, payload *model.Payload) error {
	m.record("ProcessPushPayload", payload)
	if m.ProcessPushPayloadFunc != nil {
		return m.ProcessPushPayloadFunc(ctx, cfg, data, payload)
	}
	return nil
}

func (m *SourceAdapterMock) Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	m.record("Release")
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, cfg, data)
	}
	return nil
}

func (m *SourceAdapterMock) ProcessFailure(ctx context.Context, cfg *model.Config, data *model.PipelineData, cause error) error {
	m.record("ProcessFailure", cause)
	if m.ProcessFailureFunc != nil {
		return m.ProcessFailureFunc(ctx, cfg, data, cause)
	}
	return nil
}

func (m *SourceAdapterMock) Cleanup(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	m.record("Cleanup")
	if m.CleanupFunc != nil {
		return m.CleanupFunc(ctx, cfg, data)
	}
	return nil
}

type RunnerAdapterMock struct {
	recorder
	RetrievePayloadFunc func(ctx context.Context, cfg *model.Config, fetcher interfaces.PullRequestFetcher) (*model.Payload, bool, error)
}

func (m *RunnerAdapterMock) RetrievePayload(ctx context.Context, cfg *model.Config, fetcher interfaces.PullRequestFetcher) (*model.Payload, bool, error) {
	m.record("RetrievePayload")
	if m.RetrievePayloadFunc != nil {
		return m.RetrievePayloadFunc(ctx, cfg, fetcher)
	}
	return nil, false, nil
}

type PackageStrategyMock struct {
	recorder
	BuildFunc   func(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
	TestFunc    func(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
	PackageFunc func(ctx context.Context, cfg *model.Config, data *model.PipelineData) (*model.ReleaseCommit, error)
	ReleaseFunc func(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
}

func (m *PackageStrategyMock) Build(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	m.record("Build")
	if m.BuildFunc != nil {
		return m.BuildFunc(ctx, cfg, data)
	}
	return nil
}

func (m *PackageStrategyMock) Test(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	m.record("Test")
	if m.TestFunc != nil {
		return m.TestFunc(ctx, cfg, data)
	}
	return nil
}

func (m *PackageStrategyMock) Package(ctx context.Context, cfg *model.Config, data *model.PipelineData) (*model.ReleaseCommit, error) {
	m.record("Package")
	if m.PackageFunc != nil {
		return m.PackageFunc(ctx, cfg, data)
	}
	return nil, nil
}

func (m *PackageStrategyMock) Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	m.record("Release")
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, cfg, data)
	}
	return nil
}

type NotifierMock struct {
	recorder
	NotifySuccessFunc func(ctx context.Context, data *model.PipelineData) error
	NotifyFailureFunc func(ctx context.Context, data *model.PipelineData, cause error) error
}

func (m *NotifierMock) NotifySuccess(ctx context.Context, data *model.PipelineData) error {
	m.record("NotifySuccess")
	if m.NotifySuccessFunc != nil {
		return m.NotifySuccessFunc(ctx, data)
	}
	return nil
}

func (m *NotifierMock) NotifyFailure(ctx context.Context, data *model.PipelineData, cause error) error {
	m.record("NotifyFailure", cause)
	if m.NotifyFailureFunc != nil {
		return m.NotifyFailureFunc(ctx, data, cause)
	}
	return nil
}
