package model

import "path/filepath"

// PipelineData is the per-run context passed by reference through every stage.
// The engine owns it for the lifetime of one run.
type PipelineData struct {
	RunID         string
	IsPullRequest bool
	Payload       *Payload

	GitParentPath  string      // Ephemeral directory that holds the workspace
	GitLocalPath   string      // Checked out working copy
	GitLocalBranch string      // Local branch checked out in the working copy
	GitRemote      string      `masq:"secret"` // Clone URL with embedded credential
	GitBaseInfo    *CommitInfo // Pull request base, nil for push triggers
	GitHeadInfo    *CommitInfo

	ReleaseVersion   string
	ReleaseCommit    *ReleaseCommit
	ReleaseArtifacts []ReleaseArtifact
}

// NewPipelineData returns empty run state
func NewPipelineData(runID string) *PipelineData {
	return &PipelineData{
		RunID:            runID,
		ReleaseArtifacts: []ReleaseArtifact{},
	}
}

// RepoFullName is the repository being released: the base for pull requests, the head otherwise
func (x *PipelineData) RepoFullName() string {
	if x.GitBaseInfo != nil && x.GitBaseInfo.Repo != nil {
		return x.GitBaseInfo.Repo.FullName
	}
	if x.GitHeadInfo != nil && x.GitHeadInfo.Repo != nil {
		return x.GitHeadInfo.Repo.FullName
	}
	return ""
}

// WorkspacePath resolves p against the working copy unless it is absolute
func (x *PipelineData) WorkspacePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(x.GitLocalPath, p)
}
