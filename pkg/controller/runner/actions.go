package runner

import (
	"context"
	"os"
	"strings"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/interfaces"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

// GitHubActions reads the event file that GitHub Actions hands to the job
type GitHubActions struct{}

func (x *GitHubActions) RetrievePayload(ctx context.Context, cfg *model.Config, fetcher interfaces.PullRequestFetcher) (*model.Payload, bool, error) {
	logger := ctxlog.From(ctx)
	r := cfg.Runner()

	event := &model.WebhookEvent{Type: model.WebhookEventType(r.EventName), Path: r.EventPath}
	if !event.IsSupportedEvent() {
		logger.Info("Ignoring unsupported event type, falling back to runner fields", "event_type", r.EventName)
		return (&Default{}).RetrievePayload(ctx, cfg, fetcher)
	}

	body, err := os.ReadFile(event.Path)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to read event file", goerr.V("path", event.Path))
	}

	parsed, err := github.ParseWebHook(string(event.Type), body)
	if err != nil {
		return nil, false, goerr.Wrap(types.ErrSourcePayloadFormat, "failed to parse event file",
			goerr.V("event_type", event.Type), goerr.V("error", err.Error()))
	}

	switch ev := parsed.(type) {
	case *github.PullRequestEvent:
		return fetchPullRequest(ctx, cfg, fetcher, repoFullName(ev.GetRepo(), r), ev.GetPullRequest().GetNumber())

	case *github.PullRequestTargetEvent:
		return fetchPullRequest(ctx, cfg, fetcher, repoFullName(ev.GetRepo(), r), ev.GetPullRequest().GetNumber())

	case *github.PushEvent:
		return payloadFromPush(ev), false, nil

	default:
		return nil, false, goerr.Wrap(types.ErrSourcePayloadUnsupported, "unexpected event payload", goerr.V("event_type", event.Type))
	}
}

func repoFullName(repo *github.Repository, r model.RunnerSettings) string {
	if name := repo.GetFullName(); name != "" {
		return name
	}
	return r.RepoFullName
}

func payloadFromPush(ev *github.PushEvent) *model.Payload {
	repo := ev.GetRepo()
	return &model.Payload{
		Head: &model.CommitInfo{
			Sha: ev.GetAfter(),
			Ref: strings.TrimPrefix(ev.GetRef(), "refs/heads/"),
			Repo: &model.RepoInfo{
				CloneURL:      repo.GetCloneURL(),
				Name:          repo.GetName(),
				FullName:      repo.GetFullName(),
				DefaultBranch: repo.GetDefaultBranch(),
			},
		},
	}
}
