package config

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Trace holds span export configuration
type Trace struct {
	Enabled bool

	output io.Writer
}

func (c *Trace) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "trace",
			Usage:       "Export one span per stage to stderr",
			Destination: &c.Enabled,
			Sources:     cli.EnvVars("CAPSULE_TRACE"),
		},
	}
}

// SetOutput replaces the span destination, stderr by default
func (c *Trace) SetOutput(w io.Writer) {
	c.output = w
}

// Configure installs the global tracer provider. The returned function flushes pending spans.
func (c *Trace) Configure() (func(ctx context.Context) error, error) {
	if !c.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	w := c.output
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create span exporter")
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
