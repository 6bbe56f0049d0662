package runner

import (
	"context"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/interfaces"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

// New selects the runner adapter for the CI environment
func New(runnerType types.RunnerType) (interfaces.RunnerAdapter, error) {
	switch runnerType {
	case types.RunnerDefault:
		return &Default{}, nil
	case types.RunnerCircleCI:
		return &CircleCI{}, nil
	case types.RunnerGitHubActions:
		return &GitHubActions{}, nil
	default:
		return nil, goerr.Wrap(types.ErrRunnerUnspecified, "no runner adapter for runner", goerr.V("runner", runnerType))
	}
}

// Default reads the pull request number from runner_pull_request. Without one the run is a push.
type Default struct{}

func (x *Default) RetrievePayload(ctx context.Context, cfg *model.Config, fetcher interfaces.PullRequestFetcher) (*model.Payload, bool, error) {
	pr := strings.TrimSpace(cfg.Runner().PullRequest)
	if pr == "" {
		return pushPayload(ctx, cfg), false, nil
	}

	number, err := strconv.Atoi(pr)
	if err != nil {
		return nil, false, goerr.Wrap(types.ErrSourcePayloadFormat, "runner_pull_request is not a pull request number", goerr.V("value", pr))
	}
	return fetchPullRequest(ctx, cfg, fetcher, cfg.Runner().RepoFullName, number)
}

// fetchPullRequest never trusts the CI environment for pull request details; the host is asked instead
func fetchPullRequest(ctx context.Context, cfg *model.Config, fetcher interfaces.PullRequestFetcher, repoFullName string, number int) (*model.Payload, bool, error) {
	if repoFullName == "" {
		return nil, false, goerr.Wrap(types.ErrSourcePayloadFormat, "runner_repo_full_name is required to retrieve a pull request")
	}
	if number <= 0 {
		return nil, false, goerr.Wrap(types.ErrSourcePayloadFormat, "invalid pull request number", goerr.V("number", number))
	}

	ctxlog.From(ctx).Info("retrieving pull request", "repo", repoFullName, "number", number, "runner", cfg.Core().Runner)

	payload, err := fetcher.FetchPullRequest(ctx, repoFullName, number)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// pushPayload synthesizes a push payload from the runner fields
func pushPayload(ctx context.Context, cfg *model.Config) *model.Payload {
	r := cfg.Runner()
	ctxlog.From(ctx).Info("no pull request found, processing push", "branch", r.Branch, "sha", r.Sha)

	return &model.Payload{
		Head: &model.CommitInfo{
			Sha: r.Sha,
			Ref: r.Branch,
			Repo: &model.RepoInfo{
				CloneURL: r.CloneURL,
				Name:     r.RepoName,
				FullName: r.RepoFullName,
			},
		},
	}
}
