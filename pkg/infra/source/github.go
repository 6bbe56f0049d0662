package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/analogj/capsulecd/pkg/domain/interfaces"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	githubinfra "github.com/analogj/capsulecd/pkg/infra/github"
)

const (
	// statusDescriptionLimit keeps descriptions under the host's 140 character field limit
	statusDescriptionLimit = 135
	shaLength              = 40

	defaultStatusContext = "CapsuleCD"
)

const unauthorizedComment = "Hi.\n\n" +
	"I'm an automated pull request bot named [CapsuleCD](http://www.github.com/AnalogJ/capsulecd). " +
	"I handle testing, versioning and package releases for this project. " +
	"Unfortunately you're not an authorized collaborator for this project, " +
	"but don't worry, someone will be by shortly to check on your pull request. \n\n" +
	"If you're interested in learning more about [CapsuleCD](http://www.github.com/AnalogJ/capsulecd), " +
	"or adding it to your project, you can check it out [here](http://www.github.com/AnalogJ/capsulecd)"

// ClientFactory builds an authenticated host client from source settings
type ClientFactory func(ctx context.Context, settings model.SourceSettings) (interfaces.GitHubClient, error)

// GitHub is the source adapter for github.com and GitHub Enterprise
type GitHub struct {
	git           interfaces.GitClient
	clientFactory ClientFactory
	client        interfaces.GitHubClient
}

// Option configures the GitHub source adapter
type Option func(*GitHub)

func WithGitClient(git interfaces.GitClient) Option {
	return func(x *GitHub) {
		x.git = git
	}
}

func WithClientFactory(factory ClientFactory) Option {
	return func(x *GitHub) {
		x.clientFactory = factory
	}
}

// New selects the source adapter for src
func New(src types.SourceType, git interfaces.GitClient, opts ...Option) (interfaces.SourceAdapter, error) {
	switch src {
	case types.SourceGitHub:
		return NewGitHub(append([]Option{WithGitClient(git)}, opts...)...), nil
	default:
		return nil, goerr.Wrap(types.ErrSourceUnspecified, "no source adapter for source", goerr.V("source", src))
	}
}

// NewGitHub creates the GitHub source adapter
func NewGitHub(opts ...Option) *GitHub {
	x := &GitHub{clientFactory: DefaultClientFactory}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// DefaultClientFactory authenticates with an access token, or with GitHub App credentials when no token is set
func DefaultClientFactory(ctx context.Context, s model.SourceSettings) (interfaces.GitHubClient, error) {
	var opts []githubinfra.Option
	if s.GitHubAPIEndpoint != "" {
		opts = append(opts, githubinfra.WithAPIEndpoint(s.GitHubAPIEndpoint))
	}

	if s.GitHubAccessToken != "" {
		return githubinfra.NewClient(ctx, s.GitHubAccessToken, opts...)
	}

	key, err := s.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}
	return githubinfra.NewAppClient(s.GitHubAppID, s.GitHubInstallationID, key, opts...)
}

// Configure authenticates, allocates a fresh workspace parent directory and resets release state
func (x *GitHub) Configure(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	logger := ctxlog.From(ctx)
	s := cfg.Source()

	if s.GitHubAccessToken == "" && !s.HasAppCredential() {
		return goerr.Wrap(types.ErrSourceAuthenticationFailed, "missing GitHub access token or App credential")
	}

	client, err := x.clientFactory(ctx, s)
	if err != nil {
		return goerr.Wrap(err, "failed to create GitHub client")
	}
	x.client = client

	if s.GitParentPath != "" {
		if err := os.MkdirAll(s.GitParentPath, 0700); err != nil {
			return goerr.Wrap(err, "failed to create workspace root", goerr.V("path", s.GitParentPath))
		}
	}
	parent, err := os.MkdirTemp(s.GitParentPath, types.AppName+"-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create workspace parent directory")
	}
	if err := os.Chmod(parent, 0700); err != nil {
		return goerr.Wrap(err, "failed to restrict workspace permissions", goerr.V("path", parent))
	}

	data.GitParentPath = parent
	data.ReleaseCommit = nil
	data.ReleaseArtifacts = []model.ReleaseArtifact{}

	logger.Info("GitHub source configured", "workspace_parent", parent, "api_endpoint", s.GitHubAPIEndpoint)
	return nil
}

// FetchPullRequest retrieves the authoritative pull request payload from the host
func (x *GitHub) FetchPullRequest(ctx context.Context, repoFullName string, number int) (*model.Payload, error) {
	if x.client == nil {
		return nil, goerr.New("GitHub source is not configured")
	}

	owner, repo := model.SplitFullName(repoFullName)
	pr, err := x.client.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch pull request", goerr.V("repo", repoFullName), goerr.V("number", number))
	}
	return payloadFromPullRequest(pr), nil
}

// ProcessPullRequestPayload enforces, in order: open state, default branch target, canonical repository and
// collaborator opener. Nothing from the pull request is cloned or trusted before these checks pass.
func (x *GitHub) ProcessPullRequestPayload(ctx context.Context, cfg *model.Config, data *model.PipelineData, p *model.Payload) error {
	logger := ctxlog.From(ctx)

	if p == nil || p.Base == nil || p.Base.Repo == nil {
		return goerr.Wrap(types.ErrSourcePayloadFormat, "pull request payload is missing 'base'")
	}

	if p.State != "open" {
		return goerr.Wrap(types.ErrSourcePayloadUnsupported,
			"pull request has an invalid action, only open pull requests are processed",
			goerr.V("state", p.State))
	}

	if p.Base.Ref != p.Base.Repo.DefaultBranch {
		return goerr.Wrap(types.ErrSourcePayloadUnsupported,
			"pull request is not targeting the default branch of the repository",
			goerr.V("base_ref", p.Base.Ref),
			goerr.V("default_branch", p.Base.Repo.DefaultBranch))
	}

	if canonical := cfg.Runner().RepoFullName; canonical != "" && !strings.EqualFold(canonical, p.Base.Repo.FullName) {
		return goerr.Wrap(types.ErrSourcePayloadUnsupported,
			"pull request is not targeting the canonical repository",
			goerr.V("base_repo", p.Base.Repo.FullName),
			goerr.V("canonical_repo", canonical))
	}

	if err := x.authorize(ctx, p); err != nil {
		return err
	}

	if err := p.Base.Validate(); err != nil {
		return err
	}
	if err := p.Head.Validate(); err != nil {
		return err
	}

	data.GitBaseInfo = p.Base
	data.GitHeadInfo = p.Head

	remote, err := x.authenticatedURL(ctx, p.Base.Repo.CloneURL)
	if err != nil {
		return err
	}
	path, err := x.git.Clone(ctx, data.GitParentPath, p.Base.Repo.Name, remote)
	if err != nil {
		return goerr.Wrap(err, "failed to clone base repository", goerr.V("repo", p.Base.Repo.FullName))
	}

	branch := fmt.Sprintf("pr_%d", p.Number)
	if err := x.git.Fetch(ctx, path, fmt.Sprintf("refs/pull/%d/merge", p.Number), branch); err != nil {
		return goerr.Wrap(err, "failed to fetch pull request merge ref", goerr.V("number", p.Number))
	}
	if err := x.git.Checkout(ctx, path, branch); err != nil {
		return goerr.Wrap(err, "failed to check out pull request branch", goerr.V("branch", branch))
	}

	data.GitRemote = remote
	data.GitLocalPath = path
	data.GitLocalBranch = branch

	logger.Info("pull request checked out", "number", p.Number, "branch", branch, "path", path)

	return x.createStatus(ctx, cfg, data, types.StatusPending,
		"Started processing package. Pull request will be merged automatically when complete.")
}

func (x *GitHub) authorize(ctx context.Context, p *model.Payload) error {
	owner, repo := model.SplitFullName(p.Base.Repo.FullName)

	login := ""
	if p.User != nil {
		login = p.User.Login
	}

	if login != "" {
		ok, err := x.client.IsCollaborator(ctx, owner, repo, login)
		if err != nil {
			return goerr.Wrap(err, "failed to check collaborator", goerr.V("user", login))
		}
		if ok {
			return nil
		}
	}

	if _, _, err := x.client.CreateComment(ctx, owner, repo, p.Number, &github.IssueComment{
		Body: github.Ptr(unauthorizedComment),
	}); err != nil {
		ctxlog.From(ctx).Warn("failed to comment on pull request", "error", err, "number", p.Number)
	}

	return goerr.Wrap(types.ErrSourceUnauthorizedUser,
		"pull request was opened by an unauthorized user",
		goerr.V("user", login),
		goerr.V("repo", p.Base.Repo.FullName))
}

// ProcessPushPayload validates the head commit and checks out the pushed ref
func (x *GitHub) ProcessPushPayload(ctx context.Context, cfg *model.Config, data *model.PipelineData, p *model.Payload) error {
	if p == nil {
		return goerr.Wrap(types.ErrSourcePayloadFormat, "push payload is empty")
	}
	if err := p.Head.Validate(); err != nil {
		return err
	}
	data.GitHeadInfo = p.Head

	remote, err := x.authenticatedURL(ctx, p.Head.Repo.CloneURL)
	if err != nil {
		return err
	}
	path, err := x.git.Clone(ctx, data.GitParentPath, p.Head.Repo.Name, remote)
	if err != nil {
		return goerr.Wrap(err, "failed to clone repository", goerr.V("repo", p.Head.Repo.FullName))
	}
	if err := x.git.Checkout(ctx, path, p.Head.Ref); err != nil {
		return goerr.Wrap(err, "failed to check out ref", goerr.V("ref", p.Head.Ref))
	}

	data.GitRemote = remote
	data.GitLocalPath = path
	data.GitLocalBranch = p.Head.Ref

	ctxlog.From(ctx).Info("push checked out", "ref", p.Head.Ref, "path", path)
	return nil
}

// Release pushes the release commit to the base branch, creates a host release with a changelog and
// uploads the release artifacts. The workspace is removed and a success status posted on completion.
func (x *GitHub) Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	logger := ctxlog.From(ctx)
	s := cfg.Source()

	if data.ReleaseCommit == nil || data.GitBaseInfo == nil || data.GitHeadInfo == nil {
		return goerr.Wrap(types.ErrStagePostcondition, "release requires a release commit and pull request information")
	}

	if err := x.git.Push(ctx, data.GitLocalPath, data.GitLocalBranch, data.GitBaseInfo.Ref); err != nil {
		return goerr.Wrap(err, "failed to push release", goerr.V("branch", data.GitBaseInfo.Ref))
	}

	// tags need a moment to propagate on the host before a release can reference them
	if err := sleep(ctx, s.ReleaseDelay); err != nil {
		return err
	}

	commits, err := x.git.Log(ctx, data.GitLocalPath, data.GitBaseInfo.Sha, data.GitHeadInfo.Sha)
	if err != nil {
		return goerr.Wrap(err, "failed to list pull request commits")
	}

	fullName := data.RepoFullName()
	owner, repo := model.SplitFullName(fullName)
	tag := data.ReleaseCommit.TagName

	release, err := x.client.CreateRelease(ctx, owner, repo, &github.RepositoryRelease{
		TagName:         github.Ptr(tag),
		TargetCommitish: github.Ptr(padSha(data.ReleaseCommit.Sha)),
		Name:            github.Ptr(tag),
		Body:            github.Ptr(Changelog(commits, s.GitHubWebEndpoint, fullName)),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create release", goerr.V("tag", tag))
	}

	for _, artifact := range data.ReleaseArtifacts {
		if err := x.uploadArtifact(ctx, owner, repo, release.GetID(), data, artifact); err != nil {
			return err
		}
	}

	logger.Info("release published", "tag", tag, "repo", fullName, "artifacts", len(data.ReleaseArtifacts))

	x.removeWorkspace(ctx, cfg, data)
	if err := x.createStatus(ctx, cfg, data, types.StatusSuccess,
		"Pull-request was successfully merged, new release created."); err != nil {
		return err
	}

	if s.EnableBranchCleanup {
		x.cleanupBranch(ctx, data)
	}
	return nil
}

func (x *GitHub) uploadArtifact(ctx context.Context, owner, repo string, releaseID int64, data *model.PipelineData, artifact model.ReleaseArtifact) error {
	path := data.WorkspacePath(artifact.Path)
	file, err := os.Open(path)
	if err != nil {
		return goerr.Wrap(err, "failed to open release artifact", goerr.V("name", artifact.Name), goerr.V("path", path))
	}
	defer file.Close()

	if err := x.client.UploadReleaseAsset(ctx, owner, repo, releaseID, artifact.Name, file); err != nil {
		return goerr.Wrap(err, "failed to upload release artifact", goerr.V("name", artifact.Name))
	}
	return nil
}

// ProcessFailure removes the workspace and posts a failure status to the head commit when one is known
func (x *GitHub) ProcessFailure(ctx context.Context, cfg *model.Config, data *model.PipelineData, cause error) error {
	x.removeWorkspace(ctx, cfg, data)

	if x.client == nil || data.GitHeadInfo == nil {
		ctxlog.From(ctx).Info("no head commit known, failure status not posted")
		return nil
	}
	return x.createStatus(ctx, cfg, data, types.StatusFailure, cause.Error())
}

// Cleanup removes the workspace if neither release nor failure handling did
func (x *GitHub) Cleanup(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	x.removeWorkspace(ctx, cfg, data)
	return nil
}

func (x *GitHub) removeWorkspace(ctx context.Context, cfg *model.Config, data *model.PipelineData) {
	logger := ctxlog.From(ctx)
	if data.GitParentPath == "" {
		return
	}

	path := data.GitParentPath
	data.GitParentPath = ""

	if cfg.Engine().DisableCleanup {
		logger.Warn("workspace cleanup disabled, leaving workspace in place", "path", path)
		return
	}
	if err := os.RemoveAll(path); err != nil {
		logger.Warn("Failed to clean up workspace", "path", path, "error", err)
		return
	}
	logger.Debug("Cleaned up workspace", "path", path)
}

func (x *GitHub) cleanupBranch(ctx context.Context, data *model.PipelineData) {
	logger := ctxlog.From(ctx)
	head, base := data.GitHeadInfo, data.GitBaseInfo

	if head.Repo == nil || base.Repo == nil ||
		!strings.EqualFold(head.Repo.FullName, base.Repo.FullName) ||
		head.Ref == base.Repo.DefaultBranch {
		logger.Debug("head branch is not eligible for cleanup", "ref", head.Ref)
		return
	}

	owner, repo := model.SplitFullName(base.Repo.FullName)
	if err := x.client.DeleteBranch(ctx, owner, repo, head.Ref); err != nil {
		logger.Warn("failed to delete merged branch", "ref", head.Ref, "error", err)
		return
	}
	logger.Info("deleted merged branch", "ref", head.Ref)
}

func (x *GitHub) createStatus(ctx context.Context, cfg *model.Config, data *model.PipelineData, state types.StatusState, description string) error {
	s := cfg.Source()
	statusContext := s.StatusContext
	if statusContext == "" {
		statusContext = defaultStatusContext
	}

	owner, repo := model.SplitFullName(data.RepoFullName())
	status := &github.RepoStatus{
		State:       github.Ptr(string(state)),
		Description: github.Ptr(truncate(description, statusDescriptionLimit)),
		Context:     github.Ptr(statusContext),
	}
	if s.StatusTargetURL != "" {
		status.TargetURL = github.Ptr(s.StatusTargetURL)
	}

	if err := x.client.CreateStatus(ctx, owner, repo, data.GitHeadInfo.Sha, status); err != nil {
		return goerr.Wrap(err, "failed to post commit status", goerr.V("state", state))
	}
	return nil
}

// authenticatedURL embeds the host credential into a clone URL
func (x *GitHub) authenticatedURL(ctx context.Context, cloneURL string) (string, error) {
	token, err := x.client.Token(ctx)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(cloneURL)
	if err != nil {
		return "", goerr.Wrap(types.ErrSourcePayloadFormat, "invalid clone_url", goerr.V("clone_url", cloneURL))
	}
	u.User = url.UserPassword("x-access-token", token)
	return u.String(), nil
}

func payloadFromPullRequest(pr *github.PullRequest) *model.Payload {
	p := &model.Payload{
		Number: pr.GetNumber(),
		State:  pr.GetState(),
		Title:  pr.GetTitle(),
		Base:   commitFromBranch(pr.GetBase()),
		Head:   commitFromBranch(pr.GetHead()),
	}
	if pr.GetUser() != nil {
		p.User = &model.User{Login: pr.GetUser().GetLogin()}
	}
	return p
}

func commitFromBranch(b *github.PullRequestBranch) *model.CommitInfo {
	if b == nil {
		return nil
	}
	c := &model.CommitInfo{Sha: b.GetSHA(), Ref: b.GetRef()}
	if r := b.GetRepo(); r != nil {
		c.Repo = &model.RepoInfo{
			CloneURL:      r.GetCloneURL(),
			Name:          r.GetName(),
			FullName:      r.GetFullName(),
			DefaultBranch: r.GetDefaultBranch(),
		}
	}
	return c
}

// padSha left-pads a sha with zeros to the 40 characters the host API expects
func padSha(sha string) string {
	sha = strings.TrimSpace(sha)
	if len(sha) >= shaLength {
		return sha
	}
	return strings.Repeat("0", shaLength-len(sha)) + sha
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "interrupted while waiting for tag propagation")
	}
}
