package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/analogj/capsulecd/pkg/domain/mock"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/analogj/capsulecd/pkg/usecase"
)

func TestApplyExtensionsScope(t *testing.T) {
	t.Run("repository scope cannot touch protected stages", func(t *testing.T) {
		for _, stage := range []string{
			"source_configure",
			"runner_retrieve_payload",
			"source_process_pull_request_payload",
			"source_process_push_payload",
		} {
			t.Run(stage, func(t *testing.T) {
				f := newFixture(t, true)
				engine := f.engine(nil)

				err := engine.ApplyExtensions(context.Background(), map[string]any{
					"build_step": map[string]any{"pre": `log("registered")`},
					stage:        map[string]any{"override": `log("hijacked")`},
				}, types.ScopeRepo)
				gt.True(t, errors.Is(err, types.ErrEngineTransformUnavailableStep))
				gt.Value(t, len(f.source.Methods())).Equal(0)
				gt.Value(t, len(f.runner.Methods())).Equal(0)
			})
		}
	})

	t.Run("rejected file registers nothing", func(t *testing.T) {
		f := newFixture(t, false)
		cmd := &mock.CommandRunnerMock{}
		engine := f.engine(nil, usecase.WithCommandRunner(cmd))

		err := engine.ApplyExtensions(context.Background(), map[string]any{
			"build_step":       map[string]any{"pre": `shell("make generate")`},
			"source_configure": map[string]any{"pre": `shell("curl evil")`},
		}, types.ScopeRepo)
		gt.Error(t, err)

		_, err = engine.Start(context.Background())
		gt.NoError(t, err)
		gt.Value(t, len(cmd.Commands())).Equal(0)
	})

	t.Run("global scope may override protected stages", func(t *testing.T) {
		f := newFixture(t, false)
		engine := f.engine(nil)

		gt.NoError(t, engine.ApplyExtensions(context.Background(), map[string]any{
			"runner_retrieve_payload": map[string]any{"pre": `log("retrieving")`},
		}, types.ScopeGlobal))

		_, err := engine.Start(context.Background())
		gt.NoError(t, err)
	})
}

func TestApplyExtensionsInvalid(t *testing.T) {
	testCases := map[string]map[string]any{
		"unknown prefix":   {"build_step": map[string]any{"during": `log("x")`}},
		"entry not a map":  {"build_step": `log("x")`},
		"program not text": {"build_step": map[string]any{"pre": 42}},
		"syntax error":     {"build_step": map[string]any{"pre": `shell("make"`}},
		"undefined name":   {"build_step": map[string]any{"pre": `exec("make")`}},
	}

	for name, values := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, false)
			err := f.engine(nil).ApplyExtensions(context.Background(), values, types.ScopeGlobal)
			gt.True(t, errors.Is(err, types.ErrEngineTransformInvalid))
		})
	}
}

func TestApplyExtensionsIgnoresConfigurationKeys(t *testing.T) {
	f := newFixture(t, false)
	err := f.engine(nil).ApplyExtensions(context.Background(), map[string]any{
		"engine_version_bump_type": "minor",
		"source_release_assets":    []any{map[string]any{"name": "a", "path": "b"}},
	}, types.ScopeRepo)
	gt.NoError(t, err)
}

func TestExtensionPrograms(t *testing.T) {
	t.Run("pre hook runs shell in the workspace", func(t *testing.T) {
		f := newFixture(t, true)
		var dirs []string
		cmd := &mock.CommandRunnerMock{
			RunFunc: func(ctx context.Context, dir string, env []string, command string) (string, error) {
				dirs = append(dirs, dir)
				return "", nil
			},
		}
		engine := f.engine(nil, usecase.WithCommandRunner(cmd))

		gt.NoError(t, engine.ApplyExtensions(context.Background(), map[string]any{
			"build_step": map[string]any{"pre": `shell("make generate")`},
		}, types.ScopeRepo))

		_, err := engine.Start(context.Background())
		gt.NoError(t, err)
		gt.Value(t, cmd.Commands()).Equal([]string{"make generate"})
		gt.Value(t, dirs).Equal([]string{f.workspace})
		gt.Value(t, f.strategy.Methods()).Equal([]string{"Build", "Test", "Package", "Release"})
	})

	t.Run("package override sets the release commit", func(t *testing.T) {
		f := newFixture(t, true)
		cmd := &mock.CommandRunnerMock{
			RunFunc: func(ctx context.Context, dir string, env []string, command string) (string, error) {
				switch command {
				case "git rev-parse HEAD":
					return "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb\n", nil
				case "cat VERSION":
					return "2.0.0\n", nil
				}
				return "", nil
			},
		}
		engine := f.engine(nil, usecase.WithCommandRunner(cmd))

		gt.NoError(t, engine.ApplyExtensions(context.Background(), map[string]any{
			"package_step": map[string]any{"override": strings.Join([]string{
				`shell("make dist")`,
				`sha = shell("git rev-parse HEAD").strip()`,
				`set_release_commit(sha, "v" + shell("cat VERSION").strip())`,
				`add_release_artifact("dist.tgz", "dist/out.tgz")`,
			}, "\n")},
		}, types.ScopeRepo))

		data, err := engine.Start(context.Background())
		gt.NoError(t, err)
		gt.Value(t, data.ReleaseCommit).Equal(&model.ReleaseCommit{
			Sha:     "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			TagName: "v2.0.0",
		})
		gt.Value(t, data.ReleaseVersion).Equal("2.0.0")
		gt.Value(t, data.ReleaseArtifacts).Equal([]model.ReleaseArtifact{{Name: "dist.tgz", Path: "dist/out.tgz"}})
		gt.Value(t, f.strategy.Methods()).Equal([]string{"Build", "Test", "Release"})
	})

	t.Run("pipeline struct describes the run", func(t *testing.T) {
		f := newFixture(t, true)
		engine := f.engine(nil)

		gt.NoError(t, engine.ApplyExtensions(context.Background(), map[string]any{
			"release_step": map[string]any{"pre": strings.Join([]string{
				`if not pipeline.is_pull_request: fail("expected pull request")`,
				`if pipeline.head_ref != "feature": fail("head ref " + pipeline.head_ref)`,
				`if pipeline.base_ref != "master": fail("base ref " + pipeline.base_ref)`,
				`if pipeline.repo_full_name != "AnalogJ/gem_analogj_test": fail("repo")`,
				`if pipeline.release_tag != "v0.1.4": fail("tag " + pipeline.release_tag)`,
				`if pipeline.run_id != "run-1": fail("run id")`,
			}, "\n")},
		}, types.ScopeRepo))

		_, err := engine.Start(context.Background())
		gt.NoError(t, err)
	})

	t.Run("failing program aborts the run", func(t *testing.T) {
		f := newFixture(t, true)
		cmd := &mock.CommandRunnerMock{
			RunFunc: func(ctx context.Context, dir string, env []string, command string) (string, error) {
				return "", errors.New("exit status 2")
			},
		}
		engine := f.engine(nil, usecase.WithCommandRunner(cmd))

		gt.NoError(t, engine.ApplyExtensions(context.Background(), map[string]any{
			"test_step": map[string]any{"post": `shell("make lint")`},
		}, types.ScopeRepo))

		_, err := engine.Start(context.Background())
		gt.Error(t, err)
		gt.Value(t, f.strategy.Methods()).Equal([]string{"Build", "Test"})
		gt.Value(t, len(f.source.Calls("ProcessFailure"))).Equal(1)
	})

	t.Run("load is unavailable", func(t *testing.T) {
		f := newFixture(t, false)
		engine := f.engine(nil)

		gt.NoError(t, engine.ApplyExtensions(context.Background(), map[string]any{
			"build_step": map[string]any{"pre": `load("lib.star", "helper")`},
		}, types.ScopeRepo))

		_, err := engine.Start(context.Background())
		gt.Error(t, err)
		gt.Value(t, len(f.strategy.Methods())).Equal(0)
	})

	t.Run("cancelled context stops a runaway program", func(t *testing.T) {
		f := newFixture(t, false)
		engine := f.engine(nil)

		gt.NoError(t, engine.ApplyExtensions(context.Background(), map[string]any{
			"build_step": map[string]any{"pre": "while True:\n    pass"},
		}, types.ScopeRepo))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := engine.Start(ctx)
		gt.Error(t, err)
		gt.Value(t, len(f.strategy.Methods())).Equal(0)
	})
}
