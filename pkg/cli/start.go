package cli

import (
	"context"
	"io"
	"maps"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/analogj/capsulecd/pkg/cli/config"
	"github.com/analogj/capsulecd/pkg/controller/runner"
	"github.com/analogj/capsulecd/pkg/domain/model"
	"github.com/analogj/capsulecd/pkg/domain/types"
	infraconfig "github.com/analogj/capsulecd/pkg/infra/config"
	"github.com/analogj/capsulecd/pkg/infra/cmd"
	"github.com/analogj/capsulecd/pkg/infra/git"
	"github.com/analogj/capsulecd/pkg/infra/slack"
	"github.com/analogj/capsulecd/pkg/infra/source"
	"github.com/analogj/capsulecd/pkg/infra/strategy"
	"github.com/analogj/capsulecd/pkg/usecase"
)

func cmdStart() *cli.Command {
	var (
		pipelineCfg config.Pipeline
		githubCfg   config.GitHub
	)

	flags := append(pipelineCfg.Flags(), githubCfg.Flags()...)

	return &cli.Command{
		Name:  "start",
		Usage: "Run the release pipeline for the current CI trigger",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			options := pipelineCfg.Options()
			maps.Copy(options, githubCfg.Options())

			resolver, cfg, err := resolveConfig(ctx, pipelineCfg.ConfigFile, options)
			if err != nil {
				return err
			}
			printSummary(os.Stdout, cfg)

			engine, err := newEngine(cfg, resolver)
			if err != nil {
				return err
			}

			if err := applyExtensions(ctx, engine, pipelineCfg.ConfigFile, types.ScopeGlobal); err != nil {
				return err
			}
			// The checkout's file only contributes stage entries. Its configuration values are read
			// from the workspace after authorization.
			if err := applyExtensions(ctx, engine, pipelineCfg.RepoFile(), types.ScopeRepo); err != nil {
				return err
			}

			data, err := engine.Start(ctx)
			if err != nil {
				return err
			}

			if data.ReleaseCommit != nil {
				color.New(color.FgGreen, color.Bold).Fprintf(os.Stdout, "Pipeline completed: %s\n", data.ReleaseCommit.TagName)
			}
			logger.Info("capsulecd finished", "run_id", data.RunID)
			return nil
		},
	}
}

// resolveConfig resolves the configuration the run starts with. The repository layer is left empty:
// it is only filled from the workspace after the trigger has been authorized.
func resolveConfig(ctx context.Context, systemFile string, options map[string]any) (*infraconfig.Resolver, *model.Config, error) {
	opts := []infraconfig.Option{infraconfig.WithOptions(options)}
	if systemFile != "" {
		opts = append(opts, infraconfig.WithSystemFile(systemFile))
	}
	resolver := infraconfig.NewResolver(opts...)

	cfg, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, nil, err
	}
	return resolver, cfg, nil
}

func newEngine(cfg *model.Config, resolver *infraconfig.Resolver) (*usecase.Engine, error) {
	gitClient := git.New()
	cmdRunner := cmd.New()

	src, err := source.New(cfg.Core().Source, gitClient)
	if err != nil {
		return nil, err
	}
	rn, err := runner.New(cfg.Core().Runner)
	if err != nil {
		return nil, err
	}
	st, err := strategy.New(cfg.Core().PackageType, cmdRunner, gitClient)
	if err != nil {
		return nil, err
	}

	opts := []usecase.Option{
		usecase.WithResolver(resolver),
		usecase.WithCommandRunner(cmdRunner),
	}
	if url := cfg.Notify().SlackWebhookURL; url != "" {
		opts = append(opts, usecase.WithNotifier(slack.New(url)))
	}

	return usecase.NewEngine(cfg, src, rn, st, opts...), nil
}

func applyExtensions(ctx context.Context, engine *usecase.Engine, path string, scope types.Scope) error {
	if path == "" {
		return nil
	}

	values, err := infraconfig.ReadFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to read extension file", goerr.V("path", path), goerr.V("scope", scope))
	}
	return engine.ApplyExtensions(ctx, values, scope)
}

func printSummary(w io.Writer, cfg *model.Config) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "CapsuleCD %s\n", types.Version)

	core := cfg.Core()
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Setting", "Value"})
	tw.AppendRows([]table.Row{
		{"source", core.Source},
		{"runner", core.Runner},
		{"package_type", core.PackageType},
		{"dry_run", core.DryRun},
		{"engine_version_bump_type", cfg.Engine().VersionBumpType},
		{"runner_repo_full_name", cfg.Runner().RepoFullName},
		{"runner_pull_request", cfg.Runner().PullRequest},
	})
	tw.Render()
}
