package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/analogj/capsulecd/pkg/controller/runner"
	"github.com/analogj/capsulecd/pkg/domain/mock"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

func newConfig(runnerType types.RunnerType, r model.RunnerSettings) *model.Config {
	return model.NewConfig(model.Settings{
		CoreSettings:   model.CoreSettings{Runner: runnerType},
		RunnerSettings: r,
	})
}

func newFetcher() *mock.SourceAdapterMock {
	return &mock.SourceAdapterMock{
		FetchPullRequestFunc: func(ctx context.Context, repoFullName string, number int) (*model.Payload, error) {
			return &model.Payload{Number: number, State: "open"}, nil
		},
	}
}

func TestNew(t *testing.T) {
	for _, rt := range []types.RunnerType{types.RunnerDefault, types.RunnerCircleCI, types.RunnerGitHubActions} {
		r, err := runner.New(rt)
		gt.NoError(t, err)
		gt.Value(t, r).NotNil()
	}

	_, err := runner.New(types.RunnerType("jenkins"))
	gt.True(t, errors.Is(err, types.ErrRunnerUnspecified))
}

func TestDefault(t *testing.T) {
	ctx := context.Background()

	t.Run("pull request is fetched from the host", func(t *testing.T) {
		fetcher := newFetcher()
		cfg := newConfig(types.RunnerDefault, model.RunnerSettings{PullRequest: "8", RepoFullName: "AnalogJ/capsulecd"})

		p, isPR, err := (&runner.Default{}).RetrievePayload(ctx, cfg, fetcher)
		gt.NoError(t, err)
		gt.True(t, isPR)
		gt.Equal(t, p.Number, 8)

		calls := fetcher.Calls("FetchPullRequest")
		gt.Number(t, len(calls)).Equal(1)
		gt.Equal(t, calls[0].Args[0].(string), "AnalogJ/capsulecd")
	})

	t.Run("push without pull request", func(t *testing.T) {
		fetcher := newFetcher()
		cfg := newConfig(types.RunnerDefault, model.RunnerSettings{
			Sha:          "abc123",
			Branch:       "master",
			CloneURL:     "https://github.com/AnalogJ/capsulecd.git",
			RepoFullName: "AnalogJ/capsulecd",
			RepoName:     "capsulecd",
		})

		p, isPR, err := (&runner.Default{}).RetrievePayload(ctx, cfg, fetcher)
		gt.NoError(t, err)
		gt.Value(t, isPR).Equal(false)
		gt.Equal(t, p.Head.Sha, "abc123")
		gt.Equal(t, p.Head.Ref, "master")
		gt.Equal(t, p.Head.Repo.Name, "capsulecd")
		gt.Value(t, p.Base).Nil()
		gt.Number(t, len(fetcher.Calls(""))).Equal(0)
	})

	t.Run("non numeric pull request", func(t *testing.T) {
		cfg := newConfig(types.RunnerDefault, model.RunnerSettings{PullRequest: "eight", RepoFullName: "a/b"})
		_, _, err := (&runner.Default{}).RetrievePayload(ctx, cfg, newFetcher())
		gt.True(t, errors.Is(err, types.ErrSourcePayloadFormat))
	})

	t.Run("missing repository", func(t *testing.T) {
		cfg := newConfig(types.RunnerDefault, model.RunnerSettings{PullRequest: "8"})
		_, _, err := (&runner.Default{}).RetrievePayload(ctx, cfg, newFetcher())
		gt.True(t, errors.Is(err, types.ErrSourcePayloadFormat))
	})
}

func TestCircleCI(t *testing.T) {
	ctx := context.Background()

	t.Run("number from pull request URL", func(t *testing.T) {
		fetcher := newFetcher()
		cfg := newConfig(types.RunnerCircleCI, model.RunnerSettings{
			PullRequest:  "https://github.com/AnalogJ/capsulecd/pull/42",
			RepoFullName: "AnalogJ/capsulecd",
		})

		p, isPR, err := (&runner.CircleCI{}).RetrievePayload(ctx, cfg, fetcher)
		gt.NoError(t, err)
		gt.True(t, isPR)
		gt.Equal(t, p.Number, 42)
	})

	t.Run("URL without number", func(t *testing.T) {
		cfg := newConfig(types.RunnerCircleCI, model.RunnerSettings{
			PullRequest:  "https://github.com/AnalogJ/capsulecd/pulls",
			RepoFullName: "AnalogJ/capsulecd",
		})
		_, _, err := (&runner.CircleCI{}).RetrievePayload(ctx, cfg, newFetcher())
		gt.True(t, errors.Is(err, types.ErrSourcePayloadFormat))
	})

	t.Run("push", func(t *testing.T) {
		cfg := newConfig(types.RunnerCircleCI, model.RunnerSettings{Sha: "abc", Branch: "main"})
		_, isPR, err := (&runner.CircleCI{}).RetrievePayload(ctx, cfg, newFetcher())
		gt.NoError(t, err)
		gt.Value(t, isPR).Equal(false)
	})
}

func writeEvent(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestGitHubActions(t *testing.T) {
	ctx := context.Background()

	t.Run("pull_request event", func(t *testing.T) {
		fetcher := newFetcher()
		cfg := newConfig(types.RunnerGitHubActions, model.RunnerSettings{
			EventName: "pull_request",
			EventPath: writeEvent(t, `{
				"action": "opened",
				"number": 7,
				"pull_request": {"number": 7, "state": "open"},
				"repository": {"name": "widget", "full_name": "acme/widget"}
			}`),
		})

		p, isPR, err := (&runner.GitHubActions{}).RetrievePayload(ctx, cfg, fetcher)
		gt.NoError(t, err)
		gt.True(t, isPR)
		gt.Equal(t, p.Number, 7)

		calls := fetcher.Calls("FetchPullRequest")
		gt.Number(t, len(calls)).Equal(1)
		gt.Equal(t, calls[0].Args[0].(string), "acme/widget")
	})

	t.Run("push event", func(t *testing.T) {
		cfg := newConfig(types.RunnerGitHubActions, model.RunnerSettings{
			EventName: "push",
			EventPath: writeEvent(t, `{
				"ref": "refs/heads/main",
				"after": "def456",
				"repository": {
					"name": "widget",
					"full_name": "acme/widget",
					"clone_url": "https://github.com/acme/widget.git",
					"default_branch": "main"
				}
			}`),
		})

		p, isPR, err := (&runner.GitHubActions{}).RetrievePayload(ctx, cfg, newFetcher())
		gt.NoError(t, err)
		gt.Value(t, isPR).Equal(false)
		gt.Equal(t, p.Head.Ref, "main")
		gt.Equal(t, p.Head.Sha, "def456")
		gt.Equal(t, p.Head.Repo.CloneURL, "https://github.com/acme/widget.git")
		gt.NoError(t, p.Head.Validate())
	})

	t.Run("unsupported event falls back to runner fields", func(t *testing.T) {
		fetcher := newFetcher()
		cfg := newConfig(types.RunnerGitHubActions, model.RunnerSettings{
			EventName:    "workflow_dispatch",
			EventPath:    writeEvent(t, `{}`),
			PullRequest:  "3",
			RepoFullName: "acme/widget",
		})

		p, isPR, err := (&runner.GitHubActions{}).RetrievePayload(ctx, cfg, fetcher)
		gt.NoError(t, err)
		gt.True(t, isPR)
		gt.Equal(t, p.Number, 3)
	})

	t.Run("malformed event file", func(t *testing.T) {
		cfg := newConfig(types.RunnerGitHubActions, model.RunnerSettings{
			EventName: "pull_request",
			EventPath: writeEvent(t, `{not json`),
		})
		_, _, err := (&runner.GitHubActions{}).RetrievePayload(ctx, cfg, newFetcher())
		gt.True(t, errors.Is(err, types.ErrSourcePayloadFormat))
	})
}
