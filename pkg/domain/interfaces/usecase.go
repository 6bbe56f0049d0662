package interfaces

import (
	"context"

	"github.com/analogj/capsulecd/pkg/domain/model"
)

// SourceAdapter is the integration with the source-control host. It owns the workspace of one run.
type SourceAdapter interface {
	// Configure authenticates and allocates the workspace parent directory
	Configure(ctx context.Context, cfg *model.Config, data *model.PipelineData) error

	PullRequestFetcher

	// ProcessPullRequestPayload authorizes the pull request and checks out its merge ref
	ProcessPullRequestPayload(ctx context.Context, cfg *model.Config, data *model.PipelineData, payload *model.Payload) error

	// ProcessPushPayload checks out the pushed ref
	ProcessPushPayload(ctx context.Context, cfg *model.Config, data *model.PipelineData, payload *model.Payload) error

	// Release pushes the release commit and publishes a host release
	Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error

	// ProcessFailure removes the workspace and reports the failure to the host
	ProcessFailure(ctx context.Context, cfg *model.Config, data *model.PipelineData, cause error) error

	// Cleanup removes the workspace if it still exists
	Cleanup(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
}

// PullRequestFetcher is the part of the source adapter a runner delegates to
type PullRequestFetcher interface {
	FetchPullRequest(ctx context.Context, repoFullName string, number int) (*model.Payload, error)
}

// RunnerAdapter translates CI signals into a payload
type RunnerAdapter interface {
	RetrievePayload(ctx context.Context, cfg *model.Config, fetcher PullRequestFetcher) (payload *model.Payload, isPullRequest bool, err error)
}

// PackageStrategy is the ecosystem specific build, test, package and release behavior
type PackageStrategy interface {
	Build(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
	Test(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
	// Package commits and tags the release and returns the release commit
	Package(ctx context.Context, cfg *model.Config, data *model.PipelineData) (*model.ReleaseCommit, error)
	Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error
}

// Notifier reports run outcomes to people
type Notifier interface {
	NotifySuccess(ctx context.Context, data *model.PipelineData) error
	NotifyFailure(ctx context.Context, data *model.PipelineData, cause error) error
}

// ConfigResolver re-resolves configuration once the workspace is checked out
type ConfigResolver interface {
	// ResolveRepoFile resolves every layer again with path as the repository file
	ResolveRepoFile(ctx context.Context, path string) (*model.Config, error)
}
