package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/analogj/capsulecd/pkg/domain/interfaces"
	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

type client struct {
	githubClient *github.Client
	token        func(ctx context.Context) (string, error)
}

type options struct {
	apiEndpoint string
	transport   http.RoundTripper
}

// Option configures the GitHub client
type Option func(*options)

// WithAPIEndpoint points the client at a GitHub Enterprise (or test) API base URL
func WithAPIEndpoint(endpoint string) Option {
	return func(o *options) {
		o.apiEndpoint = endpoint
	}
}

// WithTransport sets the underlying HTTP transport
func WithTransport(tr http.RoundTripper) Option {
	return func(o *options) {
		o.transport = tr
	}
}

func newOptions(opts []Option) *options {
	o := &options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewClient creates a GitHub client authenticated with a personal or OAuth access token
func NewClient(ctx context.Context, token string, opts ...Option) (interfaces.GitHubClient, error) {
	if token == "" {
		return nil, fmt.Errorf("access token is empty: %w", types.ErrSourceAuthenticationFailed)
	}
	o := newOptions(opts)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: o.transport})
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	githubClient, err := newGitHubClient(httpClient, o.apiEndpoint)
	if err != nil {
		return nil, err
	}

	return &client{
		githubClient: githubClient,
		token: func(context.Context) (string, error) {
			return token, nil
		},
	}, nil
}

// NewAppClient creates a GitHub client with App installation authentication
func NewAppClient(appID, installationID int64, privateKey []byte, opts ...Option) (interfaces.GitHubClient, error) {
	o := newOptions(opts)

	itr, err := ghinstallation.New(o.transport, appID, installationID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %v: %w", err, types.ErrSourceAuthenticationFailed)
	}
	if o.apiEndpoint != "" {
		itr.BaseURL = strings.TrimSuffix(o.apiEndpoint, "/")
	}

	githubClient, err := newGitHubClient(&http.Client{Transport: itr}, o.apiEndpoint)
	if err != nil {
		return nil, err
	}

	return &client{
		githubClient: githubClient,
		token:        itr.Token,
	}, nil
}

func newGitHubClient(httpClient *http.Client, endpoint string) (*github.Client, error) {
	githubClient := github.NewClient(httpClient)
	if endpoint == "" {
		return githubClient, nil
	}

	baseURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API endpoint %q: %w", endpoint, err)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}

	// GitHub Enterprise serves uploads from /api/uploads next to /api/v3
	uploadURL := *baseURL
	if strings.HasSuffix(uploadURL.Path, "/api/v3/") {
		uploadURL.Path = strings.TrimSuffix(uploadURL.Path, "v3/") + "uploads/"
	}

	githubClient.BaseURL = baseURL
	githubClient.UploadURL = &uploadURL
	return githubClient, nil
}

func (c *client) Token(ctx context.Context) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %v: %w", err, types.ErrSourceAuthenticationFailed)
	}
	return token, nil
}

func (c *client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := c.githubClient.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	return pr, nil
}

func (c *client) IsCollaborator(ctx context.Context, owner, repo, user string) (bool, error) {
	ok, _, err := c.githubClient.Repositories.IsCollaborator(ctx, owner, repo, user)
	if err != nil {
		return false, fmt.Errorf("failed to check collaborator %s on %s/%s: %w", user, owner, repo, err)
	}
	return ok, nil
}

// CreateComment creates a comment on a pull request or issue
func (c *client) CreateComment(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error) {
	return c.githubClient.Issues.CreateComment(ctx, owner, repo, number, comment)
}

func (c *client) CreateStatus(ctx context.Context, owner, repo, ref string, status *github.RepoStatus) error {
	if _, _, err := c.githubClient.Repositories.CreateStatus(ctx, owner, repo, ref, status); err != nil {
		return fmt.Errorf("failed to create %s status on %s/%s@%s: %w", status.GetState(), owner, repo, ref, err)
	}
	return nil
}

func (c *client) CreateRelease(ctx context.Context, owner, repo string, release *github.RepositoryRelease) (*github.RepositoryRelease, error) {
	created, _, err := c.githubClient.Repositories.CreateRelease(ctx, owner, repo, release)
	if err != nil {
		return nil, fmt.Errorf("failed to create release %s on %s/%s: %w", release.GetTagName(), owner, repo, err)
	}
	return created, nil
}

func (c *client) UploadReleaseAsset(ctx context.Context, owner, repo string, releaseID int64, name string, file *os.File) error {
	_, _, err := c.githubClient.Repositories.UploadReleaseAsset(ctx, owner, repo, releaseID, &github.UploadOptions{Name: name}, file)
	if err != nil {
		return fmt.Errorf("failed to upload release asset %s to %s/%s: %w", name, owner, repo, err)
	}
	return nil
}

func (c *client) DeleteBranch(ctx context.Context, owner, repo, branch string) error {
	if _, err := c.githubClient.Git.DeleteRef(ctx, owner, repo, "heads/"+branch); err != nil {
		return fmt.Errorf("failed to delete branch %s on %s/%s: %w", branch, owner, repo, err)
	}
	return nil
}
