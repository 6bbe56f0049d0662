package types

// Stage is a named step of the pipeline
type Stage string

const (
	StageSourceConfigure                 Stage = "source_configure"
	StageRunnerRetrievePayload           Stage = "runner_retrieve_payload"
	StageSourceProcessPullRequestPayload Stage = "source_process_pull_request_payload"
	StageSourceProcessPushPayload        Stage = "source_process_push_payload"
	StageBuild                           Stage = "build_step"
	StageTest                            Stage = "test_step"
	StagePackage                         Stage = "package_step"
	StageRelease                         Stage = "release_step"
	StageSourceRelease                   Stage = "source_release"
)

// Stages lists every stage in execution order. The payload stages are alternatives.
var Stages = []Stage{
	StageSourceConfigure,
	StageRunnerRetrievePayload,
	StageSourceProcessPullRequestPayload,
	StageSourceProcessPushPayload,
	StageBuild,
	StageTest,
	StagePackage,
	StageRelease,
	StageSourceRelease,
}

// ParseStage reports whether s names a stage
func ParseStage(s string) (Stage, bool) {
	for _, st := range Stages {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Protected reports whether the stage decides authorization or workspace preparation.
// Protected stages can only be extended from global scope.
func (s Stage) Protected() bool {
	switch s {
	case StageSourceConfigure,
		StageSourceProcessPullRequestPayload,
		StageSourceProcessPushPayload,
		StageRunnerRetrievePayload:
		return true
	}
	return false
}

// HookPrefix places a hook relative to a stage body
type HookPrefix string

const (
	HookPre      HookPrefix = "pre"
	HookPost     HookPrefix = "post"
	HookOverride HookPrefix = "override"
)

// HookPoint returns the name of an extension point, e.g. "pre_build_step"
func (s Stage) HookPoint(prefix HookPrefix) string {
	return string(prefix) + "_" + string(s)
}
