package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

// runStage runs pre hooks, the body or its override, then post hooks, checking the stage
// postconditions after the body and again after the post hooks
func (x *Engine) runStage(ctx context.Context, run *Run, stage types.Stage) (err error) {
	ctx, span := x.tracer.Start(ctx, string(stage), trace.WithAttributes(attribute.String("stage", string(stage))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := ctxlog.From(ctx).With("stage", stage)
	ctx = ctxlog.With(ctx, logger)
	logger.Info("stage started")

	if err := runHooks(ctx, run, stage.HookPoint(types.HookPre), x.pre[stage]); err != nil {
		return err
	}

	body := x.body(stage)
	if override, ok := x.overrides[stage]; ok {
		logger.Info("stage body overridden", "hook_point", stage.HookPoint(types.HookOverride))
		body = override
	}
	if err := body(ctx, run); err != nil {
		return err
	}
	if err := checkPostconditions(stage, run.Data); err != nil {
		return err
	}

	if err := runHooks(ctx, run, stage.HookPoint(types.HookPost), x.post[stage]); err != nil {
		return err
	}
	if err := checkPostconditions(stage, run.Data); err != nil {
		return goerr.Wrap(err, "post hook broke stage output", goerr.V("hook_point", stage.HookPoint(types.HookPost)))
	}

	logger.Info("stage completed")
	return nil
}

func runHooks(ctx context.Context, run *Run, point string, hooks []Hook) error {
	for i, hook := range hooks {
		if err := hook(ctx, run); err != nil {
			return goerr.Wrap(err, "hook failed", goerr.V("hook_point", point), goerr.V("index", i))
		}
	}
	return nil
}

// body returns the default behavior of stage
func (x *Engine) body(stage types.Stage) Hook {
	switch stage {
	case types.StageSourceConfigure:
		return func(ctx context.Context, run *Run) error {
			return x.source.Configure(ctx, run.Config, run.Data)
		}

	case types.StageRunnerRetrievePayload:
		return func(ctx context.Context, run *Run) error {
			payload, isPullRequest, err := x.runner.RetrievePayload(ctx, run.Config, x.source)
			if err != nil {
				return err
			}
			run.Data.Payload = payload
			run.Data.IsPullRequest = isPullRequest
			return nil
		}

	case types.StageSourceProcessPullRequestPayload:
		return func(ctx context.Context, run *Run) error {
			return x.source.ProcessPullRequestPayload(ctx, run.Config, run.Data, run.Data.Payload)
		}

	case types.StageSourceProcessPushPayload:
		return func(ctx context.Context, run *Run) error {
			return x.source.ProcessPushPayload(ctx, run.Config, run.Data, run.Data.Payload)
		}

	case types.StageBuild:
		return func(ctx context.Context, run *Run) error {
			return x.strategy.Build(ctx, run.Config, run.Data)
		}

	case types.StageTest:
		return func(ctx context.Context, run *Run) error {
			return x.strategy.Test(ctx, run.Config, run.Data)
		}

	case types.StagePackage:
		return func(ctx context.Context, run *Run) error {
			commit, err := x.strategy.Package(ctx, run.Config, run.Data)
			if err != nil {
				return err
			}
			run.Data.ReleaseCommit = commit
			return nil
		}

	case types.StageRelease:
		return func(ctx context.Context, run *Run) error {
			return x.strategy.Release(ctx, run.Config, run.Data)
		}

	case types.StageSourceRelease:
		return func(ctx context.Context, run *Run) error {
			return x.source.Release(ctx, run.Config, run.Data)
		}
	}

	return func(ctx context.Context, run *Run) error {
		return goerr.Wrap(types.ErrEngineUnspecified, "unknown stage", goerr.V("stage", stage))
	}
}

// checkPostconditions verifies the fields a stage must set for the stages after it
func checkPostconditions(stage types.Stage, data *model.PipelineData) error {
	var missing []string
	require := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}

	switch stage {
	case types.StageSourceConfigure:
		require(data.GitParentPath != "", "git_parent_path")

	case types.StageRunnerRetrievePayload:
		require(data.Payload != nil, "payload")
		require(data.Payload != nil && data.Payload.Head != nil, "payload.head")

	case types.StageSourceProcessPullRequestPayload:
		require(data.GitLocalPath != "", "git_local_path")
		require(data.GitLocalBranch != "", "git_local_branch")
		require(data.GitBaseInfo != nil, "git_base_info")
		require(data.GitHeadInfo != nil, "git_head_info")

	case types.StageSourceProcessPushPayload:
		require(data.GitLocalPath != "", "git_local_path")
		require(data.GitLocalBranch != "", "git_local_branch")
		require(data.GitHeadInfo != nil, "git_head_info")

	case types.StagePackage:
		require(data.ReleaseCommit != nil && data.ReleaseCommit.Sha != "", "release_commit.sha")
		require(data.ReleaseCommit != nil && data.ReleaseCommit.TagName != "", "release_commit.tag_name")
	}

	if len(missing) > 0 {
		return goerr.Wrap(types.ErrStagePostcondition, "stage did not set required fields",
			goerr.V("stage", stage), goerr.V("missing", missing))
	}
	return nil
}
