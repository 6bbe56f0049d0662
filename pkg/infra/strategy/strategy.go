package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/interfaces"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

// New selects the package strategy for the ecosystem
func New(packageType types.PackageType, cmd interfaces.CommandRunner, git interfaces.GitClient) (interfaces.PackageStrategy, error) {
	b := base{cmd: cmd, git: git}
	switch packageType {
	case types.PackageNode:
		return &Node{base: b}, nil
	case types.PackagePython:
		return &Python{base: b}, nil
	case types.PackageRuby:
		return &Ruby{base: b}, nil
	case types.PackageChef:
		return &Chef{base: b}, nil
	case types.PackageGeneric:
		return &Generic{base: b}, nil
	default:
		return nil, goerr.Wrap(types.ErrEngineUnspecified, "no strategy for package type", goerr.V("package_type", packageType))
	}
}

// base carries the behavior every ecosystem shares: shelling out, optional test commands and release tagging
type base struct {
	cmd interfaces.CommandRunner
	git interfaces.GitClient
}

// testCommands are the ecosystem defaults, overridden by engine_cmd_*
type testCommands struct {
	lint     string
	test     string
	coverage string
}

// run executes command in the working copy and reports a failure as kind
func (x *base) run(ctx context.Context, data *model.PipelineData, kind error, command string, env ...string) (string, error) {
	out, err := x.cmd.Run(ctx, data.GitLocalPath, env, command)
	if err != nil {
		return "", goerr.Wrap(kind, fmt.Sprintf("%s failed. Check log for exact error", command),
			goerr.V("command", command),
			goerr.V("cause", err.Error()))
	}
	return out, nil
}

// runTests runs lint, test and coverage commands in that order, skipping disabled or empty ones
func (x *base) runTests(ctx context.Context, cfg *model.Config, data *model.PipelineData, defaults testCommands) error {
	e := cfg.Engine()
	steps := []struct {
		name     string
		command  string
		disabled bool
	}{
		{"lint", firstNonEmpty(e.CmdLint, defaults.lint), e.DisableLint},
		{"test", firstNonEmpty(e.CmdTest, defaults.test), e.DisableTest},
		{"coverage", firstNonEmpty(e.CmdCoverage, defaults.coverage), e.DisableCoverage},
	}

	for _, step := range steps {
		if step.disabled || step.command == "" {
			ctxlog.From(ctx).Debug("skipping test command", "step", step.name, "disabled", step.disabled)
			continue
		}
		if _, err := x.run(ctx, data, types.ErrTestRunner, step.command); err != nil {
			return err
		}
	}
	return nil
}

// commitAndTag commits the working copy and tags it v<version>
func (x *base) commitAndTag(ctx context.Context, data *model.PipelineData) (*model.ReleaseCommit, error) {
	version := data.ReleaseVersion
	if version == "" {
		return nil, goerr.Wrap(types.ErrBuildPackageInvalid, "next release version is unknown, the build step did not compute it")
	}

	message := fmt.Sprintf("(v%s) Automated packaging of release by CapsuleCD", version)
	if err := x.git.Commit(ctx, data.GitLocalPath, message); err != nil {
		return nil, goerr.Wrap(err, "failed to commit release", goerr.V("version", version))
	}

	tag := "v" + version
	sha, err := x.git.Tag(ctx, data.GitLocalPath, tag, message)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to tag release", goerr.V("tag", tag))
	}

	ctxlog.From(ctx).Info("release commit created", "tag", tag, "sha", sha)
	return &model.ReleaseCommit{Sha: sha, TagName: tag}, nil
}

// bump computes the next version from current and stores it on the run
func bump(cfg *model.Config, data *model.PipelineData, current string) (string, error) {
	next, err := model.BumpVersion(current, cfg.Engine().VersionBumpType)
	if err != nil {
		return "", goerr.Wrap(types.ErrBuildPackageInvalid, "current version is not a semantic version",
			goerr.V("version", current), goerr.V("cause", err.Error()))
	}
	data.ReleaseVersion = next
	return next, nil
}

// writeSecretFile writes content to a private temporary file and returns its path
func writeSecretFile(pattern, content string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create credential file")
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		_ = os.Remove(f.Name())
		return "", goerr.Wrap(err, "failed to write credential file")
	}
	return f.Name(), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ensureFile creates path with content when it does not exist
func ensureFile(path, content string) error {
	if fileExists(path) {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return goerr.Wrap(err, "failed to create file", goerr.V("path", path))
	}
	return nil
}

// gitignores keeps dependency installs and build output of each ecosystem out of the release commit
var gitignores = map[types.PackageType][]string{
	types.PackageNode:   {"node_modules/", "npm-debug.log*", "coverage/", ".nyc_output/"},
	types.PackagePython: {"*.egg-info/", "*.pyc", "__pycache__/", ".eggs/", "build/", "dist/", ".tox/"},
	types.PackageRuby:   {"*.gem", ".bundle/", "vendor/bundle/", "pkg/", "coverage/", "Gemfile.lock"},
	types.PackageChef:   {"Berksfile.lock", ".bundle/", "vendor/", ".kitchen/", "*.gem"},
}

// ensureGitignore writes the ecosystem .gitignore unless the repository has its own
func ensureGitignore(dir string, packageType types.PackageType) error {
	return ensureFile(filepath.Join(dir, ".gitignore"), strings.Join(gitignores[packageType], "\n")+"\n")
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("path", path))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
