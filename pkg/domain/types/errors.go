package types

import "errors"

// Error kinds. Wrap them with goerr to attach context and test with errors.Is.
var (
	// ErrSourceUnspecified is raised before any stage when no source adapter is configured
	ErrSourceUnspecified = errors.New("source unspecified")
	// ErrSourceAuthenticationFailed means the host credential is missing or rejected
	ErrSourceAuthenticationFailed = errors.New("source authentication failed")
	// ErrSourcePayloadFormat means the payload is missing required fields
	ErrSourcePayloadFormat = errors.New("source payload format error")
	// ErrSourcePayloadUnsupported means the payload cannot be processed (state, branch or repository)
	ErrSourcePayloadUnsupported = errors.New("source payload unsupported")
	// ErrSourceUnauthorizedUser means the pull request opener is not a collaborator
	ErrSourceUnauthorizedUser = errors.New("source unauthorized user")

	ErrBuildPackageInvalid = errors.New("build package invalid")
	ErrBuildPackageFailed  = errors.New("build package failed")
	ErrTestDependencies    = errors.New("test dependencies error")
	ErrTestRunner          = errors.New("test runner error")

	ErrReleaseCredentialsMissing = errors.New("release credentials missing")
	ErrReleasePackage            = errors.New("release package error")

	// ErrEngineTransformUnavailableStep is raised when a repository scoped extension touches a protected stage
	ErrEngineTransformUnavailableStep = errors.New("engine transform unavailable step")
	// ErrEngineTransformInvalid is raised for malformed extension entries or programs
	ErrEngineTransformInvalid = errors.New("engine transform invalid")
	ErrEngineUnspecified      = errors.New("engine unspecified")
	ErrRunnerUnspecified      = errors.New("runner unspecified")

	// ErrStagePostcondition is an internal contract violation: a stage finished without setting its outputs
	ErrStagePostcondition = errors.New("stage postcondition violated")

	ErrConfigInvalid = errors.New("configuration invalid")
)
