package cmd

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/analogj/capsulecd/pkg/utils/async"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Runner executes shell commands, streaming stdout and stderr to the context logger line by line
type Runner struct {
	shell string
}

// Option configures Runner
type Option func(*Runner)

// WithShell replaces the shell used to interpret commands (default "sh")
func WithShell(shell string) Option {
	return func(r *Runner) {
		r.shell = shell
	}
}

// New creates a command runner
func New(opts ...Option) *Runner {
	r := &Runner{shell: "sh"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes command in dir with env appended to the process environment and returns stdout.
// Both pipes are drained concurrently before waiting for the process.
func (r *Runner) Run(ctx context.Context, dir string, env []string, command string) (string, error) {
	logger := ctxlog.From(ctx).With("command", command)
	logger.Info("running command", "dir", dir)

	c := exec.CommandContext(ctx, r.shell, "-c", command)
	c.Dir = dir
	c.Env = append(os.Environ(), env...)

	stdout, err := c.StdoutPipe()
	if err != nil {
		return "", goerr.Wrap(err, "failed to open stdout", goerr.V("command", command))
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return "", goerr.Wrap(err, "failed to open stderr", goerr.V("command", command))
	}

	if err := c.Start(); err != nil {
		return "", goerr.Wrap(err, "failed to start command", goerr.V("command", command))
	}

	var out lockedBuilder
	ctx = ctxlog.With(ctx, logger)
	drainErr := async.Wait(
		async.Go(ctx, drain(stdout, "stdout", &out)),
		async.Go(ctx, drain(stderr, "stderr", nil)),
	)

	if err := c.Wait(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return out.String(), goerr.Wrap(err, "command failed",
			goerr.V("command", command),
			goerr.V("dir", dir),
			goerr.V("exit_code", exitCode))
	}
	if drainErr != nil {
		return out.String(), goerr.Wrap(drainErr, "failed to read command output", goerr.V("command", command))
	}

	return out.String(), nil
}

func drain(rd io.Reader, stream string, sink *lockedBuilder) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger := ctxlog.From(ctx)
		scanner := bufio.NewScanner(rd)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			logger.Info(line, "stream", stream)
			if sink != nil {
				sink.WriteLine(line)
			}
		}
		if err := scanner.Err(); err != nil {
			// keep reading so the child never blocks on a full pipe
			_, _ = io.Copy(io.Discard, rd)
			return err
		}
		return nil
	}
}

type lockedBuilder struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuilder) WriteLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sb.WriteString(line)
	b.sb.WriteByte('\n')
}

func (b *lockedBuilder) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}
