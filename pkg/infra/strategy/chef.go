package strategy

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

var (
	chefNamePattern    = regexp.MustCompile(`(?m)^\s*name\s+['"]([^'"]+)['"]`)
	chefVersionPattern = regexp.MustCompile(`(?m)^(\s*version\s+['"])(\d+\.\d+\.\d+)(['"])`)
)

// Chef packages cookbooks described by metadata.rb
type Chef struct {
	base
}

type cookbookMetadata struct {
	path    string
	content string
	name    string
	version string
}

func readCookbookMetadata(dir string) (*cookbookMetadata, error) {
	path := filepath.Join(dir, "metadata.rb")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(types.ErrBuildPackageInvalid, "metadata.rb file is required to process Chef cookbook")
	}

	m := &cookbookMetadata{path: path, content: string(raw)}
	if match := chefNamePattern.FindStringSubmatch(m.content); match != nil {
		m.name = match[1]
	}
	if match := chefVersionPattern.FindStringSubmatch(m.content); match != nil {
		m.version = match[2]
	}
	if m.name == "" || m.version == "" {
		return nil, goerr.Wrap(types.ErrBuildPackageInvalid, "metadata.rb must declare a name and a version")
	}
	return m, nil
}

func (x *Chef) Build(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	m, err := readCookbookMetadata(data.GitLocalPath)
	if err != nil {
		return err
	}

	next, err := bump(cfg, data, m.version)
	if err != nil {
		return err
	}
	updated := chefVersionPattern.ReplaceAllString(m.content, "${1}"+next+"${3}")
	if err := os.WriteFile(m.path, []byte(updated), 0644); err != nil {
		return goerr.Wrap(err, "failed to write metadata.rb")
	}

	for name, content := range map[string]string{
		"Rakefile":  "task :test\n",
		"Berksfile": "source \"https://supermarket.chef.io\"\n\nmetadata\n",
		"Gemfile":   "source \"https://rubygems.org\"\n",
	} {
		if err := ensureFile(filepath.Join(data.GitLocalPath, name), content); err != nil {
			return err
		}
	}
	if err := ensureGitignore(data.GitLocalPath, types.PackageChef); err != nil {
		return err
	}
	return ensureDir(filepath.Join(data.GitLocalPath, "spec"))
}

func (x *Chef) Test(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	if _, err := x.run(ctx, data, types.ErrTestDependencies, "berks install"); err != nil {
		return err
	}
	if _, err := x.run(ctx, data, types.ErrTestDependencies, "bundle install"); err != nil {
		return err
	}
	return x.runTests(ctx, cfg, data, testCommands{test: "rake test"})
}

func (x *Chef) Package(ctx context.Context, cfg *model.Config, data *model.PipelineData) (*model.ReleaseCommit, error) {
	return x.commitAndTag(ctx, data)
}

func (x *Chef) Release(ctx context.Context, cfg *model.Config, data *model.PipelineData) error {
	c := cfg.Credentials()
	if c.ChefSupermarketUsername == "" || c.ChefSupermarketKey == "" {
		return goerr.Wrap(types.ErrReleaseCredentialsMissing, "cannot deploy cookbook to supermarket, credentials missing")
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.ChefSupermarketKey))
	if err != nil {
		return goerr.Wrap(types.ErrReleaseCredentialsMissing, "chef_supermarket_key must be base64 encoded")
	}

	m, err := readCookbookMetadata(data.GitLocalPath)
	if err != nil {
		return err
	}

	// knife requires the cookbook directory to carry the cookbook name
	cookbooks, err := os.MkdirTemp("", "cookbooks-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create cookbook directory")
	}
	defer os.RemoveAll(cookbooks)
	if err := os.Symlink(data.GitLocalPath, filepath.Join(cookbooks, m.name)); err != nil {
		return goerr.Wrap(err, "failed to link cookbook directory")
	}

	pem, err := writeSecretFile("client-*.pem", string(key))
	if err != nil {
		return err
	}
	defer os.Remove(pem)

	knife, err := writeSecretFile("knife-*.rb", fmt.Sprintf(
		"node_name \"%s\"\nclient_key \"%s\"\ncookbook_path [ '%s' ]\n", c.ChefSupermarketUsername, pem, cookbooks))
	if err != nil {
		return err
	}
	defer os.Remove(knife)

	category := firstNonEmpty(c.ChefSupermarketType, "Other")
	_, err = x.run(ctx, data, types.ErrReleasePackage,
		fmt.Sprintf("knife cookbook site share %s %s -c %s", m.name, category, knife))
	return err
}
