package strategy

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/model"
)

// Generic versions any repository from its git tags and runs only configured commands
type Generic struct {
	base
}

// nearestVersion is the highest semver tag reachable from HEAD, or 0.0.0
func (x *Generic) nearestVersion(ctx context.Context, data *model.PipelineData) (string, error) {
	tags, err := x.git.Tags(ctx, data.GitLocalPath)
	if err != nil {
		return "", goerr.Wrap(err, "failed to list tags")
	}

	highest := semver.MustParse("0.0.0")
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		if v.GreaterThan(highest) {
			highest = v
		}
	}
	return highest.String(), nil
}

func (x *Generic) Build(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	current, err := x.nearestVersion(ctx, data)
	if err != nil {
		return err
	}
	next, err := bump(cfg, data, current)
	if err != nil {
		return err
	}
	ctxlog.From(ctx).Info("next version computed from tags", "current", current, "next", next)
	return nil
}

func (x *Generic) Test(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	return x.runTests(ctx, cfg, data, testCommands{})
}

func (x *Generic) Package(ctx context.Context, cfg *model.Config, data *model.PipelineData) (*model.ReleaseCommit, error) {
	return x.commitAndTag(ctx, data)
}

// Release has no registry to publish to; the host release carries the artifacts
func (x *Generic) Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	ctxlog.From(ctx).Info("generic package has no registry release", "version", data.ReleaseVersion)
	return nil
}
