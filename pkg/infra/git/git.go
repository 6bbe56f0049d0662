package git

import (
	"context"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultUserName  = "CapsuleCD"
	defaultUserEmail = "CapsuleCD@users.noreply.github.com"

	logFieldSep = "\x1f"
)

// Client runs git porcelain commands through the git binary
type Client struct {
	binary    string
	userName  string
	userEmail string
}

// Option configures Client
type Option func(*Client)

// WithBinary sets the git executable (default "git")
func WithBinary(path string) Option {
	return func(c *Client) {
		c.binary = path
	}
}

// WithIdentity sets the committer identity configured on cloned repositories
func WithIdentity(name, email string) Option {
	return func(c *Client) {
		c.userName = name
		c.userEmail = email
	}
}

// New creates a git client
func New(opts ...Option) *Client {
	c := &Client{
		binary:    "git",
		userName:  defaultUserName,
		userEmail: defaultUserEmail,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	ctxlog.From(ctx).Debug("running git", "dir", dir, "args", redactArgs(args))

	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", goerr.Wrap(err, "git "+args[0]+" failed",
			goerr.V("args", redactArgs(args)),
			goerr.V("dir", dir),
			goerr.V("output", redactText(strings.TrimSpace(string(out)), args)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Clone clones remote into parentPath/name and configures the committer identity
func (c *Client) Clone(ctx context.Context, parentPath, name, remote string) (string, error) {
	path := filepath.Join(parentPath, name)
	if _, err := os.Stat(path); err == nil {
		return "", goerr.New("clone destination already exists", goerr.V("path", path))
	}

	if _, err := c.run(ctx, parentPath, "clone", remote, name); err != nil {
		return "", err
	}
	if _, err := c.run(ctx, path, "config", "user.name", c.userName); err != nil {
		return "", err
	}
	if _, err := c.run(ctx, path, "config", "user.email", c.userEmail); err != nil {
		return "", err
	}
	return path, nil
}

// Fetch fetches remoteRef from origin into localBranch
func (c *Client) Fetch(ctx context.Context, repoPath, remoteRef, localBranch string) error {
	_, err := c.run(ctx, repoPath, "fetch", "origin", remoteRef+":"+localBranch)
	return err
}

func (c *Client) Checkout(ctx context.Context, repoPath, ref string) error {
	_, err := c.run(ctx, repoPath, "checkout", ref)
	return err
}

// Commit stages every change and commits. An empty commit is allowed so a release always gets its own commit.
func (c *Client) Commit(ctx context.Context, repoPath, message string) error {
	if _, err := c.run(ctx, repoPath, "add", "-A"); err != nil {
		return err
	}
	_, err := c.run(ctx, repoPath, "commit", "--allow-empty", "-m", message)
	return err
}

// Tag creates an annotated tag on HEAD and returns the commit it points to
func (c *Client) Tag(ctx context.Context, repoPath, tag, message string) (string, error) {
	if _, err := c.run(ctx, repoPath, "tag", "-a", tag, "-m", message); err != nil {
		return "", err
	}
	return c.RevParse(ctx, repoPath, tag+"^{commit}")
}

// Push pushes localBranch to remoteBranch on origin, including annotated tags reachable from it
func (c *Client) Push(ctx context.Context, repoPath, localBranch, remoteBranch string) error {
	_, err := c.run(ctx, repoPath, "push", "--follow-tags", "origin", localBranch+":"+remoteBranch)
	return err
}

// Log lists commits in base..head, newest first
func (c *Client) Log(ctx context.Context, repoPath, base, head string) ([]*model.Commit, error) {
	format := strings.Join([]string{"%H", "%an", "%aI", "%s"}, "%x1f")
	out, err := c.run(ctx, repoPath, "log", "--format="+format, base+".."+head)
	if err != nil {
		return nil, err
	}

	var commits []*model.Commit
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, logFieldSep, 4)
		if len(fields) != 4 {
			return nil, goerr.New("unexpected git log line", goerr.V("line", line))
		}
		date, err := time.Parse(time.RFC3339, fields[2])
		if err != nil {
			return nil, goerr.Wrap(err, "invalid commit date", goerr.V("line", line))
		}
		commits = append(commits, &model.Commit{
			Sha:     fields[0],
			Author:  fields[1],
			Date:    date,
			Message: fields[3],
		})
	}
	return commits, nil
}

// Tags lists tags reachable from HEAD
func (c *Client) Tags(ctx context.Context, repoPath string) ([]string, error) {
	out, err := c.run(ctx, repoPath, "tag", "--merged", "HEAD")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func (c *Client) RevParse(ctx context.Context, repoPath, ref string) (string, error) {
	return c.run(ctx, repoPath, "rev-parse", ref)
}

// redactArgs hides credentials embedded in URL arguments
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = redactURL(arg)
	}
	return out
}

func redactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil || u.Host == "" {
		return s
	}
	u.User = url.User("***")
	return u.String()
}

func redactText(text string, args []string) string {
	for _, arg := range args {
		if u, err := url.Parse(arg); err == nil && u.User != nil && u.Host != "" {
			if pw, ok := u.User.Password(); ok && pw != "" {
				text = strings.ReplaceAll(text, pw, "***")
			}
			if name := u.User.Username(); name != "" {
				text = strings.ReplaceAll(text, name, "***")
			}
		}
	}
	return text
}
