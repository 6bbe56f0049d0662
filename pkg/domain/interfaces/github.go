package interfaces

import (
	"context"
	"os"

	"github.com/google/go-github/v75/github"
)

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	// Token returns the credential to embed into clone URLs
	Token(ctx context.Context) (string, error)

	// GetPullRequest fetches the authoritative pull request
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)

	// IsCollaborator reports whether user may push to the repository
	IsCollaborator(ctx context.Context, owner, repo, user string) (bool, error)

	// CreateComment creates a comment on a pull request or issue
	CreateComment(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error)

	// CreateStatus sets a commit status on ref
	CreateStatus(ctx context.Context, owner, repo, ref string, status *github.RepoStatus) error

	CreateRelease(ctx context.Context, owner, repo string, release *github.RepositoryRelease) (*github.RepositoryRelease, error)

	UploadReleaseAsset(ctx context.Context, owner, repo string, releaseID int64, name string, file *os.File) error

	// DeleteBranch removes refs/heads/<branch>
	DeleteBranch(ctx context.Context, owner, repo, branch string) error
}
