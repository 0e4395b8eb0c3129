package util

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/config"
	"github.com/warptools/dsmeta/pkg/logging"
	"github.com/warptools/dsmeta/pkg/metadata"
	"github.com/warptools/dsmeta/pkg/metadata/fsprovider"
	"github.com/warptools/dsmeta/pkg/metadata/instrument"
	"github.com/warptools/dsmeta/pkg/metadata/sqlprovider"
)

type providerCtxKey struct{}

type openedProvider struct {
	// instrumented is what commands call.
	instrumented metadata.Provider
	// backing is the provider underneath, for operations outside the Provider interface.
	backing     metadata.Provider
	closeFn     func() error
	registry    *prometheus.Registry
	metricsFile string
}

// LoadConfig reads the environment and applies the global flags on top of it.
//
// Errors:
//
//   - dsmeta-error-config -- when the environment holds invalid values
func LoadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if root := c.String("root"); root != "" {
		cfg.Root = root
	}
	if c.Bool("verbose") {
		cfg.Debug = true
	}
	return cfg, nil
}

func openProvider(c *cli.Context) (*openedProvider, error) {
	cfg, err := LoadConfig(c)
	if err != nil {
		return nil, err
	}
	logging.Ctx(c.Context).Debug("", "metadata root: %s", cfg.Root)
	backing, closeFn, err := metadata.Open(c.Context, cfg)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	metrics, err := instrument.NewMetrics(registry)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	return &openedProvider{
		instrumented: instrument.Wrap(backing, providerKind(backing), metrics),
		backing:      backing,
		closeFn:      closeFn,
		registry:     registry,
		metricsFile:  c.String("metrics.file"),
	}, nil
}

// close releases the provider, then writes the metrics file if one was asked for.
//
// Errors:
//
//   - dsmeta-error-metadata-access -- when the provider cannot be closed
//   - dsmeta-error-internal -- when the metrics file cannot be written
func (p *openedProvider) close(ctx context.Context) error {
	err := p.closeFn()
	if p.metricsFile == "" {
		return err
	}
	logging.Ctx(ctx).Debug("", "metrics file path: %s", p.metricsFile)
	if werr := prometheus.WriteToTextfile(p.metricsFile, p.registry); werr != nil && err == nil {
		err = dsapi.ErrorInternal("cannot write metrics file", werr)
	}
	return err
}

func providerKind(p metadata.Provider) string {
	switch p.(type) {
	case *fsprovider.Provider:
		return "fs"
	case *sqlprovider.Provider:
		return "sqlite"
	default:
		return "unknown"
	}
}

func withProvider(ctx context.Context, p *openedProvider) context.Context {
	return context.WithValue(ctx, providerCtxKey{}, p)
}

func opened(ctx context.Context) *openedProvider {
	p, ok := ctx.Value(providerCtxKey{}).(*openedProvider)
	if !ok {
		panic("no metadata provider in context; the command is missing CmdMiddlewareProvider")
	}
	return p
}

// Provider returns the instrumented provider opened by CmdMiddlewareProvider.
func Provider(ctx context.Context) metadata.Provider {
	return opened(ctx).instrumented
}

// Checker returns the filesystem provider behind Provider, for the consistency check.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the root is not a filesystem root
func Checker(ctx context.Context) (*fsprovider.Provider, error) {
	fsp, ok := opened(ctx).backing.(*fsprovider.Provider)
	if !ok {
		return nil, dsapi.ErrorInvalidArgument("check needs a filesystem metadata root")
	}
	return fsp, nil
}
