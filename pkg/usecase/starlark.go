package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

const maxExecutionSteps = 1 << 24

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

var builtinNames = []string{"shell", "log", "add_release_artifact", "set_release_commit", "pipeline"}

func isPredeclared(name string) bool {
	return slices.Contains(builtinNames, name)
}

// compile parses and resolves source once. Each invocation of the returned hook runs the program
// in a fresh thread bound to that run.
func (x *Engine) compile(point, source string) (Hook, error) {
	_, prog, err := starlark.SourceProgramOptions(fileOptions, point+".star", source, isPredeclared)
	if err != nil {
		return nil, goerr.Wrap(types.ErrEngineTransformInvalid, "failed to compile extension program",
			goerr.V("hook_point", point), goerr.V("error", err.Error()))
	}

	return func(ctx context.Context, run *Run) error {
		logger := ctxlog.From(ctx).With("hook_point", point)

		thread := &starlark.Thread{
			Name: point,
			Print: func(_ *starlark.Thread, msg string) {
				logger.Info(msg)
			},
		}
		thread.SetMaxExecutionSteps(maxExecutionSteps)
		stop := context.AfterFunc(ctx, func() {
			thread.Cancel(context.Cause(ctx).Error())
		})
		defer stop()

		if _, err := prog.Init(thread, x.predeclared(ctx, run)); err != nil {
			var evalErr *starlark.EvalError
			if errors.As(err, &evalErr) {
				return goerr.Wrap(err, "extension program failed",
					goerr.V("hook_point", point), goerr.V("backtrace", evalErr.Backtrace()))
			}
			return goerr.Wrap(err, "extension program failed", goerr.V("hook_point", point))
		}
		return nil
	}, nil
}

func (x *Engine) predeclared(ctx context.Context, run *Run) starlark.StringDict {
	logger := ctxlog.From(ctx)

	shell := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var command string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &command); err != nil {
			return nil, err
		}
		if x.cmd == nil {
			return nil, goerr.New("shell is not available", goerr.V("command", command))
		}
		out, err := x.cmd.Run(ctx, run.Data.GitLocalPath, nil, command)
		if err != nil {
			return nil, err
		}
		return starlark.String(out), nil
	}

	logFn := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
			return nil, err
		}
		logger.Info(msg, "hook_point", thread.Name)
		return starlark.None, nil
	}

	addArtifact := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name, path string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "path", &path); err != nil {
			return nil, err
		}
		run.Data.ReleaseArtifacts = append(run.Data.ReleaseArtifacts, model.ReleaseArtifact{Name: name, Path: path})
		return starlark.None, nil
	}

	setCommit := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var sha, tag string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "sha", &sha, "tag", &tag); err != nil {
			return nil, err
		}
		run.Data.ReleaseCommit = &model.ReleaseCommit{
			Sha:     strings.TrimSpace(sha),
			TagName: strings.TrimSpace(tag),
		}
		run.Data.ReleaseVersion = strings.TrimPrefix(run.Data.ReleaseCommit.TagName, "v")
		return starlark.None, nil
	}

	return starlark.StringDict{
		"shell":                starlark.NewBuiltin("shell", shell),
		"log":                  starlark.NewBuiltin("log", logFn),
		"add_release_artifact": starlark.NewBuiltin("add_release_artifact", addArtifact),
		"set_release_commit":   starlark.NewBuiltin("set_release_commit", setCommit),
		"pipeline":             pipelineStruct(run),
	}
}

// pipelineStruct is a read-only view of the run for extension programs
func pipelineStruct(run *Run) *starlarkstruct.Struct {
	data := run.Data
	var headSha, headRef, baseSha, baseRef, tag string
	if data.GitHeadInfo != nil {
		headSha, headRef = data.GitHeadInfo.Sha, data.GitHeadInfo.Ref
	}
	if data.GitBaseInfo != nil {
		baseSha, baseRef = data.GitBaseInfo.Sha, data.GitBaseInfo.Ref
	}
	if data.ReleaseCommit != nil {
		tag = data.ReleaseCommit.TagName
	}

	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"run_id":          starlark.String(data.RunID),
		"workspace":       starlark.String(data.GitLocalPath),
		"branch":          starlark.String(data.GitLocalBranch),
		"is_pull_request": starlark.Bool(data.IsPullRequest),
		"head_sha":        starlark.String(headSha),
		"head_ref":        starlark.String(headRef),
		"base_sha":        starlark.String(baseSha),
		"base_ref":        starlark.String(baseRef),
		"repo_full_name":  starlark.String(data.RepoFullName()),
		"package_type":    starlark.String(run.Config.Core().PackageType),
		"dry_run":         starlark.Bool(run.Config.Core().DryRun),
		"release_tag":     starlark.String(tag),
	})
}
