package usecase

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/analogj/capsulecd/pkg/domain/interfaces"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

// RepoConfigFile is the repository config file looked up in the workspace after checkout
const RepoConfigFile = "capsule.yml"

const tracerName = "github.com/analogj/capsulecd/pkg/usecase"

// Run is the state one pipeline execution passes through its stages and hooks
type Run struct {
	Config *model.Config
	Data   *model.PipelineData
}

// Hook runs before or after a stage body. An override replaces the body.
type Hook func(ctx context.Context, run *Run) error

// Engine drives one release through the ordered stages
type Engine struct {
	cfg      *model.Config
	source   interfaces.SourceAdapter
	runner   interfaces.RunnerAdapter
	strategy interfaces.PackageStrategy

	resolver interfaces.ConfigResolver
	notifier interfaces.Notifier
	cmd      interfaces.CommandRunner
	newRunID func() string
	tracer   trace.Tracer

	pre       map[types.Stage][]Hook
	post      map[types.Stage][]Hook
	overrides map[types.Stage]Hook
}

type Option func(*Engine)

// WithResolver enables re-resolution with the workspace's capsule.yml
func WithResolver(resolver interfaces.ConfigResolver) Option {
	return func(x *Engine) {
		x.resolver = resolver
	}
}

// WithNotifier reports the outcome of the run
func WithNotifier(notifier interfaces.Notifier) Option {
	return func(x *Engine) {
		x.notifier = notifier
	}
}

// WithCommandRunner provides shell() to extension programs
func WithCommandRunner(cmd interfaces.CommandRunner) Option {
	return func(x *Engine) {
		x.cmd = cmd
	}
}

func WithRunID(newRunID func() string) Option {
	return func(x *Engine) {
		x.newRunID = newRunID
	}
}

// NewEngine creates an engine with the built-in hooks registered
func NewEngine(cfg *model.Config, source interfaces.SourceAdapter, runner interfaces.RunnerAdapter, strategy interfaces.PackageStrategy, opts ...Option) *Engine {
	x := &Engine{
		cfg:       cfg,
		source:    source,
		runner:    runner,
		strategy:  strategy,
		newRunID:  uuid.NewString,
		tracer:    otel.Tracer(tracerName),
		pre:       map[types.Stage][]Hook{},
		post:      map[types.Stage][]Hook{},
		overrides: map[types.Stage]Hook{},
	}
	for _, opt := range opts {
		opt(x)
	}

	for _, stage := range types.Stages {
		x.AddHook(stage, types.HookPre, logHook(stage.HookPoint(types.HookPre)))
		x.AddHook(stage, types.HookPost, logHook(stage.HookPoint(types.HookPost)))
	}
	if x.notifier != nil {
		x.AddHook(types.StageSourceRelease, types.HookPost, func(ctx context.Context, run *Run) error {
			if err := x.notifier.NotifySuccess(ctx, run.Data); err != nil {
				ctxlog.From(ctx).Warn("failed to send success notification", "error", err)
			}
			return nil
		})
	}
	return x
}

func logHook(point string) Hook {
	return func(ctx context.Context, run *Run) error {
		ctxlog.From(ctx).Debug("hook point reached", "hook_point", point)
		return nil
	}
}

// AddHook appends hook to the pre or post hooks of stage
func (x *Engine) AddHook(stage types.Stage, prefix types.HookPrefix, hook Hook) {
	switch prefix {
	case types.HookPre:
		x.pre[stage] = append(x.pre[stage], hook)
	case types.HookPost:
		x.post[stage] = append(x.post[stage], hook)
	case types.HookOverride:
		x.overrides[stage] = hook
	}
}

// Start runs the stage sequence once. On failure after configuration the source adapter reports the
// failure before the error is returned. The workspace is always removed.
func (x *Engine) Start(ctx context.Context) (_ *model.PipelineData, err error) {
	runID := x.newRunID()
	logger := ctxlog.From(ctx).With("run_id", runID)
	ctx = ctxlog.With(ctx, logger)

	ctx, span := x.tracer.Start(ctx, "pipeline", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	run := &Run{Config: x.cfg, Data: model.NewPipelineData(runID)}
	configured := false

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			x.handleFailure(ctx, run, configured, err)
		}
		if configured {
			if cerr := x.source.Cleanup(ctx, run.Config, run.Data); cerr != nil {
				logger.Warn("failed to clean up workspace", "error", cerr)
			}
		}
	}()

	logger.Info("pipeline started", "config", run.Config)

	if err := x.runStage(ctx, run, types.StageSourceConfigure); err != nil {
		return run.Data, err
	}
	configured = true

	if err := x.runStage(ctx, run, types.StageRunnerRetrievePayload); err != nil {
		return run.Data, err
	}

	processStage := types.StageSourceProcessPushPayload
	if run.Data.IsPullRequest {
		processStage = types.StageSourceProcessPullRequestPayload
	}
	if err := x.runStage(ctx, run, processStage); err != nil {
		return run.Data, err
	}

	if err := x.reloadConfig(ctx, run); err != nil {
		return run.Data, err
	}

	for _, stage := range []types.Stage{types.StageBuild, types.StageTest, types.StagePackage} {
		if err := x.runStage(ctx, run, stage); err != nil {
			return run.Data, err
		}
	}

	if !run.Data.IsPullRequest {
		logger.Info("push processed, nothing to release", "tag", run.Data.ReleaseCommit.TagName)
		return run.Data, nil
	}
	if run.Config.Core().DryRun {
		logger.Info("dry run, skipping release", "tag", run.Data.ReleaseCommit.TagName)
		return run.Data, nil
	}

	if run.Config.Engine().DisableRelease {
		logger.Info("package release disabled", "stage", types.StageRelease)
	} else if err := x.runStage(ctx, run, types.StageRelease); err != nil {
		return run.Data, err
	}

	if run.Config.Engine().DisableSourceRelease {
		logger.Info("source release disabled", "stage", types.StageSourceRelease)
	} else if err := x.runStage(ctx, run, types.StageSourceRelease); err != nil {
		return run.Data, err
	}

	logger.Info("pipeline completed", "tag", run.Data.ReleaseCommit.TagName)
	return run.Data, nil
}

// reloadConfig merges the workspace's capsule.yml and registers the configured release assets
func (x *Engine) reloadConfig(ctx context.Context, run *Run) error {
	logger := ctxlog.From(ctx)

	if x.resolver != nil {
		path := filepath.Join(run.Data.GitLocalPath, RepoConfigFile)
		if _, err := os.Stat(path); err == nil {
			cfg, err := x.resolver.ResolveRepoFile(ctx, path)
			if err != nil {
				return goerr.Wrap(err, "failed to resolve repository configuration", goerr.V("path", path))
			}
			warnSelectionChange(ctx, run.Config.Core(), cfg.Core())
			run.Config = cfg
			logger.Info("repository configuration loaded", "path", path, "config", cfg)
		}
	}

	run.Data.ReleaseArtifacts = append(run.Data.ReleaseArtifacts, run.Config.Source().ReleaseAssets...)
	return nil
}

// warnSelectionChange reports selection keys the workspace file changed. The adapters and the
// strategy are fixed when the engine is built, so such changes have no effect.
func warnSelectionChange(ctx context.Context, before, after model.CoreSettings) {
	for _, sel := range []struct{ key, inUse, ignored string }{
		{"source", string(before.Source), string(after.Source)},
		{"runner", string(before.Runner), string(after.Runner)},
		{"package_type", string(before.PackageType), string(after.PackageType)},
	} {
		if sel.inUse != sel.ignored {
			ctxlog.From(ctx).Warn("selection key changed by repository configuration is ignored",
				"key", sel.key, "in_use", sel.inUse, "ignored", sel.ignored)
		}
	}
}

func (x *Engine) handleFailure(ctx context.Context, run *Run, configured bool, cause error) {
	logger := ctxlog.From(ctx)

	if configured {
		if err := x.source.ProcessFailure(ctx, run.Config, run.Data, cause); err != nil {
			logger.Error("failed to report failure to source", "error", err)
		}
	}
	if x.notifier != nil {
		if err := x.notifier.NotifyFailure(ctx, run.Data, cause); err != nil {
			logger.Warn("failed to send failure notification", "error", err)
		}
	}
}
