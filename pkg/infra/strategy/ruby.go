package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// Ruby packages gems that keep their version in lib/<gem>/version.rb, the layout bundler generates
type Ruby struct {
	base
}

// gemspec returns the path of the first *.gemspec and the gem name derived from it
func gemspec(dir string) (string, string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.gemspec"))
	if err != nil || len(matches) == 0 {
		return "", "", goerr.Wrap(types.ErrBuildPackageInvalid, "*.gemspec file is required to process Ruby gem")
	}
	return matches[0], strings.TrimSuffix(filepath.Base(matches[0]), ".gemspec"), nil
}

func gemFile(name, version string) string {
	return fmt.Sprintf("%s-%s.gem", name, version)
}

func (x *Ruby) Build(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	spec, name, err := gemspec(data.GitLocalPath)
	if err != nil {
		return err
	}

	versionrb := filepath.Join(data.GitLocalPath, "lib", name, "version.rb")
	raw, err := os.ReadFile(versionrb)
	if err != nil {
		return goerr.Wrap(types.ErrBuildPackageInvalid,
			fmt.Sprintf("version.rb file (lib/%s/version.rb) is required to process Ruby gem", name))
	}
	current := versionPattern.FindString(string(raw))
	if current == "" {
		return goerr.Wrap(types.ErrBuildPackageInvalid, "version.rb does not contain a version", goerr.V("path", versionrb))
	}

	next, err := bump(cfg, data, current)
	if err != nil {
		return err
	}
	updated := strings.Replace(string(raw), current, next, 1)
	if err := os.WriteFile(versionrb, []byte(updated), 0644); err != nil {
		return goerr.Wrap(err, "failed to write version.rb")
	}

	if err := ensureFile(filepath.Join(data.GitLocalPath, "Gemfile"), "source 'https://rubygems.org'\ngemspec\n"); err != nil {
		return err
	}
	if err := ensureFile(filepath.Join(data.GitLocalPath, "Rakefile"), "task :default => :spec\n"); err != nil {
		return err
	}
	if err := ensureDir(filepath.Join(data.GitLocalPath, "spec")); err != nil {
		return err
	}
	if err := ensureGitignore(data.GitLocalPath, types.PackageRuby); err != nil {
		return err
	}

	if _, err := x.run(ctx, data, types.ErrBuildPackageFailed, "gem build "+filepath.Base(spec)); err != nil {
		return err
	}
	if !fileExists(filepath.Join(data.GitLocalPath, gemFile(name, next))) {
		return goerr.Wrap(types.ErrBuildPackageFailed, fmt.Sprintf("gem build failed. %s not found", gemFile(name, next)))
	}
	return nil
}

func (x *Ruby) Test(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	_, name, err := gemspec(data.GitLocalPath)
	if err != nil {
		return err
	}

	if _, err := x.run(ctx, data, types.ErrTestDependencies, "gem install "+gemFile(name, data.ReleaseVersion)+" --ignore-dependencies"); err != nil {
		return err
	}
	if _, err := x.run(ctx, data, types.ErrTestDependencies, "bundle install"); err != nil {
		return err
	}
	return x.runTests(ctx, cfg, data, testCommands{test: "rake spec"})
}

func (x *Ruby) Package(ctx context.Context, cfg *model.Config, data *model.PipelineData) (*model.ReleaseCommit, error) {
	return x.commitAndTag(ctx, data)
}

func (x *Ruby) Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	key := cfg.Credentials().RubygemsAPIKey
	if key == "" {
		return goerr.Wrap(types.ErrReleaseCredentialsMissing, "cannot deploy package to rubygems, credentials missing")
	}
	_, name, err := gemspec(data.GitLocalPath)
	if err != nil {
		return err
	}

	credentials, err := writeSecretFile("gem_credentials-*", "---\n:rubygems_api_key: "+key+"\n")
	if err != nil {
		return err
	}
	defer os.Remove(credentials)

	_, err = x.run(ctx, data, types.ErrReleasePackage,
		"gem push "+gemFile(name, data.ReleaseVersion)+" --config-file "+credentials)
	return err
}
