package model

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// CoreSettings selects the adapters and strategy for a run
type CoreSettings struct {
	Source      types.SourceType  `mapstructure:"source"`
	Runner      types.RunnerType  `mapstructure:"runner"`
	PackageType types.PackageType `mapstructure:"package_type"`
	DryRun      bool              `mapstructure:"dry_run"`
}

// SourceSettings configures the source host adapter
type SourceSettings struct {
	GitParentPath        string            `mapstructure:"source_git_parent_path"`
	GitHubAPIEndpoint    string            `mapstructure:"source_github_api_endpoint"`
	GitHubWebEndpoint    string            `mapstructure:"source_github_web_endpoint"`
	GitHubAccessToken    string            `mapstructure:"source_github_access_token" masq:"secret"`
	GitHubAppID          int64             `mapstructure:"source_github_app_id"`
	GitHubInstallationID int64             `mapstructure:"source_github_installation_id"`
	GitHubPrivateKey     string            `mapstructure:"source_github_private_key" masq:"secret"` // PEM, raw or base64
	StatusTargetURL      string            `mapstructure:"source_status_target_url"`
	StatusContext        string            `mapstructure:"source_status_context"`
	ReleaseDelay         time.Duration     `mapstructure:"source_release_delay"`
	EnableBranchCleanup  bool              `mapstructure:"source_enable_branch_cleanup"`
	ReleaseAssets        []ReleaseArtifact `mapstructure:"source_release_assets"`
}

// HasAppCredential reports whether GitHub App authentication is configured
func (x SourceSettings) HasAppCredential() bool {
	return x.GitHubAppID != 0 && x.GitHubInstallationID != 0 && x.GitHubPrivateKey != ""
}

// PrivateKeyPEM returns the App private key, decoding base64 when the value is not PEM already
func (x SourceSettings) PrivateKeyPEM() ([]byte, error) {
	if strings.HasPrefix(strings.TrimSpace(x.GitHubPrivateKey), "-----BEGIN") {
		return []byte(x.GitHubPrivateKey), nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(x.GitHubPrivateKey))
	if err != nil {
		return nil, goerr.Wrap(types.ErrSourceAuthenticationFailed, "GitHub App private key is neither PEM nor base64")
	}
	return raw, nil
}

// RunnerSettings holds trigger signals normalized from the CI environment
type RunnerSettings struct {
	PullRequest  string `mapstructure:"runner_pull_request"`
	Sha          string `mapstructure:"runner_sha"`
	Branch       string `mapstructure:"runner_branch"`
	CloneURL     string `mapstructure:"runner_clone_url"`
	RepoFullName string `mapstructure:"runner_repo_full_name"`
	RepoName     string `mapstructure:"runner_repo_name"`
	EventName    string `mapstructure:"runner_event_name"`
	EventPath    string `mapstructure:"runner_event_path"`
}

// EngineSettings tunes the stage sequence
type EngineSettings struct {
	VersionBumpType      types.BumpType `mapstructure:"engine_version_bump_type"`
	DisableTest          bool           `mapstructure:"engine_disable_test"`
	DisableLint          bool           `mapstructure:"engine_disable_lint"`
	DisableCoverage      bool           `mapstructure:"engine_disable_coverage"`
	DisableRelease       bool           `mapstructure:"engine_disable_release"`
	DisableSourceRelease bool           `mapstructure:"engine_disable_source_release"`
	DisableCleanup       bool           `mapstructure:"engine_disable_cleanup"`
	CmdTest              string         `mapstructure:"engine_cmd_test"`
	CmdLint              string         `mapstructure:"engine_cmd_lint"`
	CmdCoverage          string         `mapstructure:"engine_cmd_coverage"`
}

// Credentials for package registries
type Credentials struct {
	NpmAuthToken            string `mapstructure:"npm_auth_token" masq:"secret"`
	PypiUsername            string `mapstructure:"pypi_username"`
	PypiPassword            string `mapstructure:"pypi_password" masq:"secret"`
	PypiRepository          string `mapstructure:"pypi_repository"`
	RubygemsAPIKey          string `mapstructure:"rubygems_api_key" masq:"secret"`
	ChefSupermarketUsername string `mapstructure:"chef_supermarket_username"`
	ChefSupermarketKey      string `mapstructure:"chef_supermarket_key" masq:"secret"` // base64 encoded client key
	ChefSupermarketType     string `mapstructure:"chef_supermarket_type"`
}

// NotifySettings configures outcome notifications
type NotifySettings struct {
	SlackWebhookURL string `mapstructure:"notify_slack_webhook_url" masq:"secret"`
}

// Settings is the flat set of recognized configuration keys
type Settings struct {
	CoreSettings   `mapstructure:",squash"`
	SourceSettings `mapstructure:",squash"`
	RunnerSettings `mapstructure:",squash"`
	EngineSettings `mapstructure:",squash"`
	Credentials    `mapstructure:",squash"`
	NotifySettings `mapstructure:",squash"`
}

// Config is an immutable configuration snapshot. Accessors return copies.
type Config struct {
	settings Settings
}

// NewConfig freezes settings into a snapshot
func NewConfig(s Settings) *Config {
	s.ReleaseAssets = slices.Clone(s.ReleaseAssets)
	return &Config{settings: s}
}

func (c *Config) Core() CoreSettings { return c.settings.CoreSettings }

func (c *Config) Source() SourceSettings {
	s := c.settings.SourceSettings
	s.ReleaseAssets = slices.Clone(s.ReleaseAssets)
	return s
}

func (c *Config) Runner() RunnerSettings   { return c.settings.RunnerSettings }
func (c *Config) Engine() EngineSettings   { return c.settings.EngineSettings }
func (c *Config) Credentials() Credentials { return c.settings.Credentials }
func (c *Config) Notify() NotifySettings   { return c.settings.NotifySettings }

// Settings returns a copy of every value
func (c *Config) Settings() Settings {
	s := c.settings
	s.ReleaseAssets = slices.Clone(s.ReleaseAssets)
	return s
}

// Fingerprint is a digest of the serialized snapshot. Equal inputs give equal fingerprints.
func (c *Config) Fingerprint() string {
	raw, err := json.Marshal(c.settings)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// LogValue exposes the non-secret selection fields to slog
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("source", string(c.settings.Source)),
		slog.String("runner", string(c.settings.Runner)),
		slog.String("package_type", string(c.settings.PackageType)),
		slog.Bool("dry_run", c.settings.DryRun),
		slog.String("engine_version_bump_type", string(c.settings.VersionBumpType)),
		slog.String("runner_repo_full_name", c.settings.RepoFullName),
		slog.String("runner_pull_request", c.settings.PullRequest),
	)
}
