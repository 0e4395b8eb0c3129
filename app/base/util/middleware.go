package util

import (
	"github.com/urfave/cli/v2"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/logging"
	"github.com/warptools/dsmeta/pkg/tracing"
)

// ChainCmdMiddleware returns a cli ActionFunc that is wrapped by the given middleware.
// Middleware is executed in order. E.G. `middleware[0](middleware[1](cmd))`
func ChainCmdMiddleware(cmd cli.ActionFunc, middlewares ...func(cli.ActionFunc) cli.ActionFunc) cli.ActionFunc {
	if len(middlewares) < 1 {
		return cmd
	}
	wrapped := cmd
	// loop in reverse to preserve middleware order
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

// CmdMiddlewareLogging configures the logging system before executing the CLI command
func CmdMiddlewareLogging(f cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		logger := logging.NewLogger(c.App.Writer, c.App.ErrWriter, c.Bool("json"), c.Bool("quiet"), c.Bool("verbose"))
		c.Context = logger.WithContext(c.Context)
		return f(c)
	}
}

// CmdMiddlewareTracingSpan starts a span with the command name that ends when
// the middleware exits after returning from the command or next middleware
func CmdMiddlewareTracingSpan(f cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, span := tracing.Start(c.Context, c.Command.FullName())
		defer span.End()
		c.Context = ctx
		err := f(c)
		if err != nil {
			tracing.SetSpanError(ctx, err)
		}
		return err
	}
}

// CmdMiddlewareTracingConfig configures the tracing system before executing the CLI command
func CmdMiddlewareTracingConfig(f cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		tracerProvider, err := newTracingProvider(c)
		if err != nil {
			return dsapi.ErrorInternal("could not initialize tracing", err)
		}
		if tracerProvider == nil {
			c.Context = tracing.SetTracer(c.Context, nil)
			return f(c)
		}
		ctx := c.Context
		defer func() {
			if err := tracerProvider.Shutdown(ctx); err != nil {
				logging.Ctx(ctx).Debug("", "tracing shutdown error: %s", err.Error())
			}
		}()

		c.Context = tracing.SetTracer(ctx, tracerProvider.Tracer(Module))
		return f(c)
	}
}

// CmdMiddlewareProvider opens the metadata provider named by the configuration and the --root flag,
// makes it available through Provider, and releases it once the command returns.
// Metrics collected along the way are written to --metrics.file, when set.
func CmdMiddlewareProvider(f cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) (retErr error) {
		opened, err := openProvider(c)
		if err != nil {
			return err
		}
		defer func() {
			if err := opened.close(c.Context); err != nil && retErr == nil {
				retErr = err
			}
		}()
		c.Context = withProvider(c.Context, opened)
		return f(c)
	}
}
