package config

import (
	"context"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/viper"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

// EnvPrefix marks environment variables that carry configuration keys
const EnvPrefix = "CAPSULE_"

var defaults = map[string]any{
	"source":                        string(types.SourceGitHub),
	"runner":                        string(types.RunnerDefault),
	"package_type":                  string(types.PackageGeneric),
	"dry_run":                       false,
	"source_github_web_endpoint":    "https://github.com",
	"source_status_target_url":      "https://github.com/AnalogJ/capsulecd",
	"source_status_context":         "CapsuleCD",
	"source_release_delay":          5 * time.Second,
	"source_enable_branch_cleanup":  false,
	"engine_version_bump_type":      string(types.BumpPatch),
	"engine_disable_test":           false,
	"engine_disable_lint":           false,
	"engine_disable_coverage":       false,
	"engine_disable_release":        false,
	"engine_disable_source_release": false,
	"engine_disable_cleanup":        false,
	"chef_supermarket_type":         "Other",
}

// protectedKeys can only come from the system file, the environment or options. They select the
// host, the repository and the credentials that authorization depends on.
var protectedKeys = []string{
	"source",
	"runner",
	"source_git_parent_path",
	"source_status_target_url",
	"source_status_context",
	"npm_auth_token",
	"pypi_username",
	"pypi_password",
	"pypi_repository",
	"rubygems_api_key",
	"chef_supermarket_username",
	"chef_supermarket_key",
}

var protectedPrefixes = []string{"runner_", "source_github_", "notify_"}

func isProtectedKey(key string) bool {
	key = strings.ToLower(key)
	if slices.Contains(protectedKeys, key) {
		return true
	}
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Resolver layers built-in defaults, CI vendor variables, the system file, the repository file,
// CAPSULE_* environment variables and explicit options, in increasing precedence.
// Protected keys in the repository file are ignored.
type Resolver struct {
	systemFile string
	repoFile   string
	options    map[string]any
	lookup     lookupFunc
	environ    func() []string
}

type Option func(*Resolver)

// WithSystemFile sets the system-wide config file
func WithSystemFile(path string) Option {
	return func(r *Resolver) {
		r.systemFile = path
	}
}

// WithRepoFile sets the repository config file
func WithRepoFile(path string) Option {
	return func(r *Resolver) {
		r.repoFile = path
	}
}

// WithOptions sets explicit values, usually CLI flags the user passed
func WithOptions(options map[string]any) Option {
	return func(r *Resolver) {
		maps.Copy(r.options, options)
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		options: map[string]any{},
		lookup:  os.LookupEnv,
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithRepoFile returns a copy of the resolver that reads path as the repository file
func (r *Resolver) WithRepoFile(path string) *Resolver {
	c := *r
	c.options = maps.Clone(r.options)
	c.repoFile = path
	return &c
}

// Resolve produces a configuration snapshot. Identical inputs give identical snapshots.
func (r *Resolver) Resolve(ctx context.Context) (*model.Config, error) {
	logger := ctxlog.From(ctx)
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, value := range vendorDefaults(r.lookup) {
		v.SetDefault(key, value)
	}

	for i, path := range []string{r.systemFile, r.repoFile} {
		if path == "" {
			continue
		}
		values, err := ReadFile(path)
		if err != nil {
			logger.Warn("skipping config file", "path", path, "error", err)
			continue
		}
		if i == 1 {
			for key := range values {
				if isProtectedKey(key) {
					logger.Warn("ignoring protected key in repository config file", "path", path, "key", key)
					delete(values, key)
				}
			}
		}
		if err := v.MergeConfigMap(values); err != nil {
			return nil, goerr.Wrap(types.ErrConfigInvalid, "failed to merge config file", goerr.V("path", path), goerr.V("error", err.Error()))
		}
		logger.Debug("config file loaded", "path", path, "keys", len(values))
	}

	for _, kv := range r.environ() {
		name, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, EnvPrefix) || name == EnvPrefix {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		if err := v.BindEnv(key, name); err != nil {
			return nil, goerr.Wrap(err, "failed to bind environment variable", goerr.V("name", name))
		}
	}

	for key, value := range r.options {
		v.Set(key, value)
	}

	var s model.Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, goerr.Wrap(types.ErrConfigInvalid, "failed to decode configuration", goerr.V("error", err.Error()))
	}

	if err := normalize(&s); err != nil {
		return nil, err
	}

	cfg := model.NewConfig(s)
	logger.Debug("configuration resolved", "config", cfg, "fingerprint", cfg.Fingerprint())
	return cfg, nil
}

func normalize(s *model.Settings) error {
	var err error
	if s.Source, err = types.ParseSourceType(string(s.Source)); err != nil {
		return err
	}
	if s.Runner, err = types.ParseRunnerType(string(s.Runner)); err != nil {
		return err
	}
	if s.PackageType, err = types.ParsePackageType(string(s.PackageType)); err != nil {
		return err
	}
	if s.VersionBumpType, err = types.ParseBumpType(string(s.VersionBumpType)); err != nil {
		return err
	}
	if s.ReleaseDelay < 0 {
		return goerr.Wrap(types.ErrConfigInvalid, "source_release_delay must not be negative", goerr.V("value", s.ReleaseDelay))
	}
	for _, asset := range s.ReleaseAssets {
		if asset.Name == "" || asset.Path == "" {
			return goerr.Wrap(types.ErrConfigInvalid, "source_release_assets entries need a name and a path", goerr.V("asset", asset))
		}
	}
	return nil
}

// ResolveRepoFile resolves again with path as the repository file
func (r *Resolver) ResolveRepoFile(ctx context.Context, path string) (*model.Config, error) {
	return r.WithRepoFile(path).Resolve(ctx)
}
