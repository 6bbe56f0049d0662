package interfaces

import (
	"context"

	"github.com/analogj/capsulecd/pkg/domain/model"
)

// GitClient is the git porcelain used on the workspace
type GitClient interface {
	// Clone clones remote into parentPath/name and returns the working copy path
	Clone(ctx context.Context, parentPath, name, remote string) (string, error)
	// Fetch fetches remoteRef from origin into localBranch
	Fetch(ctx context.Context, repoPath, remoteRef, localBranch string) error
	Checkout(ctx context.Context, repoPath, ref string) error
	// Commit stages every change and commits, allowing an empty commit
	Commit(ctx context.Context, repoPath, message string) error
	// Tag creates an annotated tag on HEAD and returns the commit sha it points to
	Tag(ctx context.Context, repoPath, tag, message string) (string, error)
	// Push pushes localBranch to remoteBranch on origin together with tags
	Push(ctx context.Context, repoPath, localBranch, remoteBranch string) error
	// Log lists commits reachable from head but not from base, newest first
	Log(ctx context.Context, repoPath, base, head string) ([]*model.Commit, error)
	// Tags lists tags reachable from HEAD
	Tags(ctx context.Context, repoPath string) ([]string, error)
	RevParse(ctx context.Context, repoPath, ref string) (string, error)
}

// CommandRunner runs shell commands and streams their output
type CommandRunner interface {
	// Run executes command through the shell in dir and returns its stdout
	Run(ctx context.Context, dir string, env []string, command string) (string, error)
}
