/*
Package metadata defines the dataset metadata provider contract and opens providers from configuration.

Providers store one descriptor per dataset name and offer create, load, update, delete,
existence checks and listing. They keep no state between calls besides their storage root,
and they do not lock: two writers racing on one dataset may interleave.
*/
package metadata

import (
	"context"
	"net/url"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/config"
	"github.com/warptools/dsmeta/pkg/fsys"
	"github.com/warptools/dsmeta/pkg/fsys/aferofs"
	"github.com/warptools/dsmeta/pkg/fsys/s3fs"
	"github.com/warptools/dsmeta/pkg/metadata/fsprovider"
	"github.com/warptools/dsmeta/pkg/metadata/sqlprovider"
)

// Provider stores dataset descriptors by name.
type Provider interface {
	// Load returns the descriptor of an existing dataset.
	Load(ctx context.Context, name string) (*dsapi.Descriptor, error)
	// Create stores a new dataset and returns the descriptor as stored.
	Create(ctx context.Context, name string, descriptor *dsapi.Descriptor) (*dsapi.Descriptor, error)
	// Update replaces an existing dataset's descriptor and returns it as stored.
	Update(ctx context.Context, name string, descriptor *dsapi.Descriptor) (*dsapi.Descriptor, error)
	// Delete removes a dataset's metadata, reporting whether there was any.
	Delete(ctx context.Context, name string) (bool, error)
	Exists(ctx context.Context, name string) (bool, error)
	// List returns all dataset names in natural sort order.
	List(ctx context.Context) ([]string, error)
}

var (
	_ Provider = (*fsprovider.Provider)(nil)
	_ Provider = (*sqlprovider.Provider)(nil)
)

// NewResolver returns a resolver for the file, mem and s3 schemes.
func NewResolver(cfg config.Config) *fsys.Resolver {
	r := fsys.NewResolver()
	r.Register(aferofs.SchemeFile, aferofs.OSFactory)
	r.Register(aferofs.SchemeMem, aferofs.MemFactory)
	r.Register(s3fs.Scheme, s3fs.Factory(s3fs.Config{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		PathStyle: cfg.S3.PathStyle,
	}))
	return r
}

// Open picks a provider for cfg.Root.
// A sqlite:// root opens a database file; anything else is a filesystem root.
// The returned close function releases the provider and is never nil.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the root is empty or malformed
//   - dsmeta-error-metadata-access -- when the storage cannot be opened
func Open(ctx context.Context, cfg config.Config) (Provider, func() error, error) {
	if cfg.Root == "" {
		return nil, nil, dsapi.ErrorInvalidArgument("metadata root cannot be empty")
	}
	if u, err := url.Parse(cfg.Root); err == nil && u.Scheme == sqlprovider.Scheme {
		p, err := sqlprovider.Open(ctx, cfg.Root)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
	p, err := fsprovider.New(ctx, NewResolver(cfg), cfg.Root)
	if err != nil {
		return nil, nil, err
	}
	return p, func() error { return nil }, nil
}
