package async

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Go executes handler in a new goroutine with panic recovery.
// The returned channel receives exactly one value: the handler's error, or an error describing the panic.
func Go(ctx context.Context, handler func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger := ctxlog.From(ctx)
				logger.Error("panic in async handler",
					"recover", r,
					"stack", string(stack))
				done <- goerr.New("panic in async handler", goerr.V("recover", r))
			}
		}()

		done <- handler(ctx)
	}()

	return done
}

// Wait blocks until every channel delivered its result and joins the errors
func Wait(results ...<-chan error) error {
	var errs []error
	for _, ch := range results {
		if err := <-ch; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
