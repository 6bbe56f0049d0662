package types

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// SourceType selects the source adapter
type SourceType string

const (
	SourceGitHub SourceType = "github"
)

// RunnerType selects the runner adapter
type RunnerType string

const (
	RunnerDefault       RunnerType = "default"
	RunnerCircleCI      RunnerType = "circleci"
	RunnerGitHubActions RunnerType = "github_actions"
)

// PackageType selects the package strategy
type PackageType string

const (
	PackageNode    PackageType = "node"
	PackagePython  PackageType = "python"
	PackageRuby    PackageType = "ruby"
	PackageChef    PackageType = "chef"
	PackageGeneric PackageType = "default"
)

// BumpType is the semantic version segment incremented by a release
type BumpType string

const (
	BumpMajor BumpType = "major"
	BumpMinor BumpType = "minor"
	BumpPatch BumpType = "patch"
)

// Scope is where an extension file comes from
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeRepo   Scope = "repo"
)

// StatusState is a commit status state on the source host
type StatusState string

const (
	StatusPending StatusState = "pending"
	StatusSuccess StatusState = "success"
	StatusFailure StatusState = "failure"
)

// normalize lower-cases and strips a leading colon, so ":minor" and "Minor" both read as "minor"
func normalize(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ":")
}

// ParseBumpType coerces free text into a BumpType. Empty text is a patch bump.
func ParseBumpType(s string) (BumpType, error) {
	switch v := BumpType(normalize(s)); v {
	case "":
		return BumpPatch, nil
	case BumpMajor, BumpMinor, BumpPatch:
		return v, nil
	default:
		return "", goerr.Wrap(ErrConfigInvalid, "unknown version bump type", goerr.V("value", s))
	}
}

// ParseSourceType coerces free text into a SourceType
func ParseSourceType(s string) (SourceType, error) {
	switch v := SourceType(normalize(s)); v {
	case SourceGitHub:
		return v, nil
	case "":
		return "", goerr.Wrap(ErrSourceUnspecified, "no source configured")
	default:
		return "", goerr.Wrap(ErrSourceUnspecified, "unknown source", goerr.V("value", s))
	}
}

// ParseRunnerType coerces free text into a RunnerType. Empty text selects the default runner.
func ParseRunnerType(s string) (RunnerType, error) {
	switch v := RunnerType(normalize(s)); v {
	case "":
		return RunnerDefault, nil
	case RunnerDefault, RunnerCircleCI, RunnerGitHubActions:
		return v, nil
	default:
		return "", goerr.Wrap(ErrRunnerUnspecified, "unknown runner", goerr.V("value", s))
	}
}

// ParsePackageType coerces free text into a PackageType. Empty text selects the generic strategy.
func ParsePackageType(s string) (PackageType, error) {
	switch v := PackageType(normalize(s)); v {
	case "", "generic":
		return PackageGeneric, nil
	case PackageNode, PackagePython, PackageRuby, PackageChef, PackageGeneric:
		return v, nil
	default:
		return "", goerr.Wrap(ErrEngineUnspecified, "unknown package type", goerr.V("value", s))
	}
}
