package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

const defaultPypiRepository = "https://upload.pypi.org/legacy/"

// Python packages modules that single-source their version in a VERSION file
type Python struct {
	base
}

func (x *Python) Build(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	if !fileExists(filepath.Join(data.GitLocalPath, "setup.py")) {
		return goerr.Wrap(types.ErrBuildPackageInvalid, "setup.py file is required to process Python package")
	}

	versionPath := filepath.Join(data.GitLocalPath, "VERSION")
	if err := ensureFile(versionPath, "0.0.0"); err != nil {
		return err
	}
	raw, err := os.ReadFile(versionPath)
	if err != nil {
		return goerr.Wrap(err, "failed to read VERSION file")
	}

	next, err := bump(cfg, data, strings.TrimSpace(string(raw)))
	if err != nil {
		return err
	}
	if err := os.WriteFile(versionPath, []byte(next), 0644); err != nil {
		return goerr.Wrap(err, "failed to write VERSION file")
	}

	if err := ensureFile(filepath.Join(data.GitLocalPath, "requirements.txt"), ""); err != nil {
		return err
	}
	if err := ensureGitignore(data.GitLocalPath, types.PackagePython); err != nil {
		return err
	}
	return ensureDir(filepath.Join(data.GitLocalPath, "tests"))
}

func (x *Python) Test(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	if _, err := x.run(ctx, data, types.ErrTestDependencies, "pip install -e ."); err != nil {
		return err
	}
	return x.runTests(ctx, cfg, data, testCommands{test: "tox"})
}

func (x *Python) Package(ctx context.Context, cfg *model.Config, data *model.PipelineData) (*model.ReleaseCommit, error) {
	return x.commitAndTag(ctx, data)
}

func (x *Python) Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	c := cfg.Credentials()
	if c.PypiUsername == "" || c.PypiPassword == "" {
		return goerr.Wrap(types.ErrReleaseCredentialsMissing, "cannot deploy package to pypi, credentials missing")
	}

	pypirc, err := writeSecretFile("pypirc-*", fmt.Sprintf(
		"[distutils]\nindex-servers=pypi\n\n[pypi]\nrepository = %s\nusername = %s\npassword = %s\n",
		firstNonEmpty(c.PypiRepository, defaultPypiRepository), c.PypiUsername, c.PypiPassword))
	if err != nil {
		return err
	}
	defer os.Remove(pypirc)

	if _, err := x.run(ctx, data, types.ErrReleasePackage, "python setup.py sdist"); err != nil {
		return err
	}
	_, err = x.run(ctx, data, types.ErrReleasePackage, "twine upload --config-file "+pypirc+" dist/*")
	return err
}
