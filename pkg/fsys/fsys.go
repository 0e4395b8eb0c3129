/*
Package fsys is the storage seam under the metadata providers.

A Filesystem is addressed by a URI made of a scheme and an authority
(file:///, mem://scratch, s3://bucket), and within it by absolute slash-separated paths.
Implementations return plain Go errors, using fs.ErrNotExist, fs.ErrExist and ErrNotEmpty
where they apply; callers decide how to report them.
*/
package fsys

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
)

// ErrNotEmpty is returned by a non-recursive Delete of a directory that still has children.
var ErrNotEmpty = errors.New("directory not empty")

// Status describes one entry of a directory listing.
type Status struct {
	Name  string
	IsDir bool
}

// Filesystem is the set of operations dataset metadata storage needs.
type Filesystem interface {
	// URI identifies the filesystem: scheme and authority only.
	// Two handles with equal URIs address the same storage.
	URI() *url.URL

	Exists(ctx context.Context, name string) (bool, error)

	// MkdirAll creates a directory and any missing parents.
	// It reports whether the directory exists afterwards.
	MkdirAll(ctx context.Context, name string) (bool, error)

	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Create opens a file for writing.
	// Data becomes visible at name no earlier than a successful Close.
	// With overwrite false an existing file is an fs.ErrExist failure.
	Create(ctx context.Context, name string, overwrite bool) (io.WriteCloser, error)

	// Delete removes a file or directory, reporting whether anything was removed.
	// A missing entry is not an error.
	Delete(ctx context.Context, name string, recursive bool) (bool, error)

	// List returns the entries of a directory.
	// A missing directory is an error wrapping fs.ErrNotExist.
	List(ctx context.Context, name string) ([]Status, error)
}

// Aborter is implemented by writers that can discard what was written instead of committing it.
type Aborter interface {
	Abort() error
}

// Discard releases a writer returned by Create without committing its content when possible.
// Writers that cannot abort are closed.
func Discard(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

// Same reports whether two handles address the same storage.
func Same(a, b Filesystem) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.URI().String() == b.URI().String()
}

// Qualify turns a path within fsys into a fully qualified URI.
func Qualify(fsys Filesystem, name string) *url.URL {
	u := *fsys.URI()
	u.Path = path.Clean("/" + name)
	u.RawPath = ""
	return &u
}
