package runner

import (
	"context"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/interfaces"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

// CircleCI reads the pull request number from the last path segment of the pull request URL
type CircleCI struct{}

func (x *CircleCI) RetrievePayload(ctx context.Context, cfg *model.Config, fetcher interfaces.PullRequestFetcher) (*model.Payload, bool, error) {
	raw := strings.TrimSpace(cfg.Runner().PullRequest)
	if raw == "" {
		return pushPayload(ctx, cfg), false, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, false, goerr.Wrap(types.ErrSourcePayloadFormat, "invalid pull request URL", goerr.V("value", raw))
	}
	number, err := strconv.Atoi(path.Base(strings.TrimSuffix(u.Path, "/")))
	if err != nil {
		return nil, false, goerr.Wrap(types.ErrSourcePayloadFormat, "pull request URL does not end with a number", goerr.V("value", raw))
	}

	return fetchPullRequest(ctx, cfg, fetcher, cfg.Runner().RepoFullName, number)
}
