package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/analogj/capsulecd/pkg/domain/mock"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/analogj/capsulecd/pkg/usecase"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testEngine() *usecase.Engine {
	return usecase.NewEngine(model.NewConfig(model.Settings{}),
		&mock.SourceAdapterMock{}, &mock.RunnerAdapterMock{}, &mock.PackageStrategyMock{})
}

func TestApplyExtensions(t *testing.T) {
	t.Run("repository file touching a protected stage", func(t *testing.T) {
		path := writeFile(t, "capsule.yml", `
engine_version_bump_type: minor
runner_retrieve_payload:
  override: |
    log("replaced")
`)
		err := applyExtensions(context.Background(), testEngine(), path, types.ScopeRepo)
		gt.True(t, errors.Is(err, types.ErrEngineTransformUnavailableStep))
	})

	t.Run("system file may touch protected stages", func(t *testing.T) {
		path := writeFile(t, "capsule.yml", `
source_configure:
  pre: |
    log("configuring")
`)
		gt.NoError(t, applyExtensions(context.Background(), testEngine(), path, types.ScopeGlobal))
	})

	t.Run("no file", func(t *testing.T) {
		gt.NoError(t, applyExtensions(context.Background(), testEngine(), "", types.ScopeRepo))
	})

	t.Run("unreadable file", func(t *testing.T) {
		path := writeFile(t, "capsule.json", `{}`)
		err := applyExtensions(context.Background(), testEngine(), path, types.ScopeRepo)
		gt.True(t, errors.Is(err, types.ErrConfigInvalid))
	})
}

func TestNewEngineRejectsUnknownSelection(t *testing.T) {
	cfg := model.NewConfig(model.Settings{CoreSettings: model.CoreSettings{
		Source:      types.SourceGitHub,
		Runner:      types.RunnerDefault,
		PackageType: types.PackageType("cobol"),
	}})

	_, err := newEngine(cfg, nil)
	gt.True(t, errors.Is(err, types.ErrEngineUnspecified))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, model.NewConfig(model.Settings{CoreSettings: model.CoreSettings{
		Source:      types.SourceGitHub,
		PackageType: types.PackageRuby,
	}}))

	gt.String(t, buf.String()).Contains("package_type")
	gt.String(t, buf.String()).Contains("ruby")
}

func TestResolveConfigIgnoresCheckoutFile(t *testing.T) {
	t.Setenv("CIRCLECI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("CAPSULE_RUNNER_REPO_FULL_NAME", "")
	t.Setenv("CAPSULE_ENGINE_VERSION_BUMP_TYPE", "")

	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "capsule.yml"), []byte(`
runner_repo_full_name: attacker/lib
engine_version_bump_type: major
`), 0600))
	t.Chdir(dir)

	system := writeFile(t, "system.yml", "source_status_context: CI\n")
	_, cfg, err := resolveConfig(context.Background(), system, map[string]any{"package_type": "ruby"})
	gt.NoError(t, err)
	gt.Value(t, cfg.Runner().RepoFullName).Equal("")
	gt.Value(t, cfg.Engine().VersionBumpType).Equal(types.BumpPatch)
	gt.Value(t, cfg.Source().StatusContext).Equal("CI")
	gt.Value(t, cfg.Core().PackageType).Equal(types.PackageRuby)
}
