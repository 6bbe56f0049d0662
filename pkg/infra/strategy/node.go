package strategy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

// Node packages npm modules
type Node struct {
	base
}

type packageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (x *Node) Build(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	path := filepath.Join(data.GitLocalPath, "package.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return goerr.Wrap(types.ErrBuildPackageInvalid, "package.json file is required to process Npm package")
	}

	var pkg packageJSON
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return goerr.Wrap(types.ErrBuildPackageInvalid, "package.json is not valid JSON", goerr.V("cause", err.Error()))
	}
	if pkg.Name == "" || pkg.Version == "" {
		return goerr.Wrap(types.ErrBuildPackageInvalid, "package.json must declare a name and a version")
	}

	next, err := bump(cfg, data, pkg.Version)
	if err != nil {
		return err
	}

	if _, err := x.run(ctx, data, types.ErrBuildPackageFailed, "npm version "+next+" --no-git-tag-version"); err != nil {
		return err
	}
	if err := ensureGitignore(data.GitLocalPath, types.PackageNode); err != nil {
		return err
	}
	return ensureDir(filepath.Join(data.GitLocalPath, "test"))
}

func (x *Node) Test(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	if _, err := x.run(ctx, data, types.ErrTestDependencies, "npm install"); err != nil {
		return err
	}
	return x.runTests(ctx, cfg, data, testCommands{test: "npm test"})
}

func (x *Node) Package(ctx context.Context, cfg *model.Config, data *model.PipelineData) (*model.ReleaseCommit, error) {
	return x.commitAndTag(ctx, data)
}

func (x *Node) Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	token := cfg.Credentials().NpmAuthToken
	if token == "" {
		return goerr.Wrap(types.ErrReleaseCredentialsMissing, "cannot deploy package to npm, credentials missing")
	}

	npmrc, err := writeSecretFile("npmrc-*", "//registry.npmjs.org/:_authToken="+token+"\n")
	if err != nil {
		return err
	}
	defer os.Remove(npmrc)

	_, err = x.run(ctx, data, types.ErrReleasePackage, "npm publish .", "NPM_CONFIG_USERCONFIG="+npmrc)
	return err
}
