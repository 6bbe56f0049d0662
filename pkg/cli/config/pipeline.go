package config

import (
	"os"

	"github.com/urfave/cli/v3"
)

// DefaultRepoConfigFile is the repository configuration read from the CI checkout
const DefaultRepoConfigFile = "capsule.yml"

// Pipeline holds the selection flags of the start command
type Pipeline struct {
	Runner         string
	Source         string
	PackageType    string
	DryRun         bool
	ConfigFile     string
	RepoConfigFile string
}

// Flags returns CLI flags for pipeline selection. Environment variables are bound by the resolver.
func (c *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "runner",
			Usage:       "CI runner (default, circleci, github_actions)",
			Destination: &c.Runner,
		},
		&cli.StringFlag{
			Name:        "source",
			Usage:       "Source host (github)",
			Destination: &c.Source,
		},
		&cli.StringFlag{
			Name:        "package-type",
			Aliases:     []string{"p"},
			Usage:       "Package type (node, python, ruby, chef, default)",
			Destination: &c.PackageType,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Stop after packaging, nothing is pushed or published",
			Destination: &c.DryRun,
		},
		&cli.StringFlag{
			Name:        "config-file",
			Aliases:     []string{"c"},
			Usage:       "System configuration file, extensions in it apply at global scope",
			Destination: &c.ConfigFile,
		},
		&cli.StringFlag{
			Name:        "repo-config-file",
			Usage:       "Repository file whose stage entries apply at repository scope",
			Value:       DefaultRepoConfigFile,
			Destination: &c.RepoConfigFile,
		},
	}
}

// Options returns the configuration keys set by flags
func (c *Pipeline) Options() map[string]any {
	opts := map[string]any{}
	if c.Runner != "" {
		opts["runner"] = c.Runner
	}
	if c.Source != "" {
		opts["source"] = c.Source
	}
	if c.PackageType != "" {
		opts["package_type"] = c.PackageType
	}
	if c.DryRun {
		opts["dry_run"] = true
	}
	return opts
}

// RepoFile returns the repository configuration path, or "" when the file does not exist
func (c *Pipeline) RepoFile() string {
	if c.RepoConfigFile == "" {
		return ""
	}
	if _, err := os.Stat(c.RepoConfigFile); err != nil {
		return ""
	}
	return c.RepoConfigFile
}
