package fsys

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"sync"

	"github.com/warptools/dsmeta/dsapi"
)

// Factory builds a filesystem for a scheme.
// The URI it is given carries only the scheme and authority.
type Factory func(ctx context.Context, uri *url.URL) (Filesystem, error)

// Resolver maps location strings onto filesystems.
// Each scheme and authority pair resolves to one shared Filesystem value.
// Resolver is safe for concurrent use.
type Resolver struct {
	mu        sync.Mutex
	factories map[string]Factory
	cache     map[string]Filesystem
}

func NewResolver() *Resolver {
	return &Resolver{
		factories: map[string]Factory{},
		cache:     map[string]Filesystem{},
	}
}

// Register installs the factory for a URI scheme, replacing any earlier one.
func (r *Resolver) Register(scheme string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[scheme] = f
}

// ParseLocation reads a location as a URI.
// A location without a scheme is a local path, made absolute against the working directory.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the location is empty or malformed
func ParseLocation(location string) (*url.URL, error) {
	if location == "" {
		return nil, dsapi.ErrorInvalidArgument("location cannot be empty")
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, dsapi.ErrorInvalidArgument("location is not a valid URI", [2]string{"location", location})
	}
	if u.Scheme == "" {
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, dsapi.ErrorInvalidArgument("cannot make location absolute", [2]string{"location", location})
		}
		return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
	}
	if u.Opaque != "" {
		return nil, dsapi.ErrorInvalidArgument("location must be hierarchical", [2]string{"location", location})
	}
	return u, nil
}

// Resolve finds the filesystem for a location and the clean absolute path within it.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the location is malformed
//   - dsmeta-error-invalid-argument -- when no filesystem is registered for the scheme
//   - dsmeta-error-config -- when the factory cannot build the filesystem
func (r *Resolver) Resolve(ctx context.Context, location string) (Filesystem, string, error) {
	u, err := ParseLocation(location)
	if err != nil {
		return nil, "", err
	}
	if u.Scheme == "file" && u.Host == "localhost" {
		u.Host = ""
	}
	authority := &url.URL{Scheme: u.Scheme, Host: u.Host, User: u.User}
	key := authority.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	fsys, ok := r.cache[key]
	if !ok {
		factory, ok := r.factories[u.Scheme]
		if !ok {
			return nil, "", dsapi.ErrorInvalidArgument("no filesystem registered for scheme",
				[2]string{"scheme", u.Scheme},
				[2]string{"location", location},
			)
		}
		fsys, err = factory(ctx, authority)
		if err != nil {
			return nil, "", err
		}
		r.cache[key] = fsys
	}
	return fsys, path.Clean("/" + u.Path), nil
}
