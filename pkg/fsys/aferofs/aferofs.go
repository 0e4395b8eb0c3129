/*
Package aferofs adapts an afero.Fs to fsys.Filesystem.

It backs both the file scheme, over the host filesystem,
and the mem scheme, over a private in-memory tree per authority.
Files are written to a hidden temporary sibling and renamed into place on Close,
so a reader never sees a half-written file.
*/
package aferofs

import (
	"context"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/warptools/dsmeta/pkg/fsys"
)

const (
	SchemeFile = "file"
	SchemeMem  = "mem"
)

type FS struct {
	fs  afero.Fs
	uri *url.URL
}

var _ fsys.Filesystem = (*FS)(nil)

// New wraps an afero.Fs.  The URI should carry only scheme and authority.
func New(afs afero.Fs, uri *url.URL) *FS {
	u := *uri
	if u.Path == "" {
		u.Path = "/"
	}
	return &FS{fs: afs, uri: &u}
}

// NewOS returns the host filesystem as file:///.
func NewOS() *FS {
	return New(afero.NewOsFs(), &url.URL{Scheme: SchemeFile, Path: "/"})
}

// NewMem returns a fresh in-memory filesystem as mem://<name>.
func NewMem(name string) *FS {
	return New(afero.NewMemMapFs(), &url.URL{Scheme: SchemeMem, Host: name, Path: "/"})
}

// OSFactory resolves file URIs.
func OSFactory(_ context.Context, _ *url.URL) (fsys.Filesystem, error) {
	return NewOS(), nil
}

// MemFactory resolves mem URIs.  Every authority gets its own tree.
func MemFactory(_ context.Context, uri *url.URL) (fsys.Filesystem, error) {
	return NewMem(uri.Host), nil
}

// Afero exposes the wrapped filesystem, mostly for test setup.
func (f *FS) Afero() afero.Fs {
	return f.fs
}

func (f *FS) URI() *url.URL {
	u := *f.uri
	return &u
}

func (f *FS) Exists(_ context.Context, name string) (bool, error) {
	return afero.Exists(f.fs, name)
}

func (f *FS) MkdirAll(_ context.Context, name string) (bool, error) {
	if err := f.fs.MkdirAll(name, 0o755); err != nil {
		return false, err
	}
	return true, nil
}

func (f *FS) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return f.fs.Open(name)
}

func (f *FS) Create(_ context.Context, name string, overwrite bool) (io.WriteCloser, error) {
	if !overwrite {
		exists, err := afero.Exists(f.fs, name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrExist}
		}
	}
	tmp := path.Join(path.Dir(name), "."+path.Base(name)+"."+uuid.NewString()+".tmp")
	file, err := f.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &renameWriter{fs: f.fs, file: file, tmp: tmp, name: name}, nil
}

func (f *FS) Delete(_ context.Context, name string, recursive bool) (bool, error) {
	info, err := f.fs.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !info.IsDir() {
		return true, f.fs.Remove(name)
	}
	if recursive {
		return true, f.fs.RemoveAll(name)
	}
	entries, err := afero.ReadDir(f.fs, name)
	if err != nil {
		return false, err
	}
	if len(entries) > 0 {
		return false, &fs.PathError{Op: "delete", Path: name, Err: fsys.ErrNotEmpty}
	}
	return true, f.fs.Remove(name)
}

func (f *FS) List(_ context.Context, name string) ([]fsys.Status, error) {
	entries, err := afero.ReadDir(f.fs, name)
	if err != nil {
		return nil, err
	}
	result := make([]fsys.Status, 0, len(entries))
	for _, e := range entries {
		result = append(result, fsys.Status{Name: e.Name(), IsDir: e.IsDir()})
	}
	return result, nil
}

// renameWriter writes to a temporary file and renames it over the target on Close.
type renameWriter struct {
	fs   afero.Fs
	file afero.File
	tmp  string
	name string
	done bool
}

func (w *renameWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *renameWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.file.Close(); err != nil {
		w.fs.Remove(w.tmp)
		return err
	}
	if err := w.fs.Rename(w.tmp, w.name); err != nil {
		w.fs.Remove(w.tmp)
		return err
	}
	return nil
}

// Abort drops the temporary file and leaves the target untouched.
func (w *renameWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	err := w.file.Close()
	if rmErr := w.fs.Remove(w.tmp); err == nil {
		err = rmErr
	}
	return err
}
