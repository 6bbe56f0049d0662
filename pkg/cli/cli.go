package cli

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/analogj/capsulecd/pkg/cli/config"
	"github.com/analogj/capsulecd/pkg/domain/types"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var (
		loggerCfg config.Logger
		sentryCfg config.Sentry
		traceCfg  config.Trace
	)
	var logger *slog.Logger
	flushSentry := func() {}
	shutdownTracer := func(context.Context) error { return nil }

	flags := append(loggerCfg.Flags(), sentryCfg.Flags()...)
	flags = append(flags, traceCfg.Flags()...)

	app := &cli.Command{
		Name:    "capsulecd",
		Usage:   "Automated package releases from pull requests",
		Version: types.Version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}
			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)

			flush, err := sentryCfg.Configure()
			if err != nil {
				return nil, err
			}
			flushSentry = flush

			shutdown, err := traceCfg.Configure()
			if err != nil {
				return nil, err
			}
			shutdownTracer = shutdown
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdStart(),
		},
	}

	err := app.Run(ctx, args)
	if shutdownErr := shutdownTracer(ctx); shutdownErr != nil && logger != nil {
		logger.Warn("failed to flush spans", slog.Any("error", shutdownErr))
	}

	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		sentry.CaptureException(err)
		flushSentry()
		return err
	}

	return nil
}
