package fsprovider

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/fsys"
	"github.com/warptools/dsmeta/pkg/fsys/aferofs"
	"github.com/warptools/dsmeta/pkg/testutil"
)

// faultyFS is an in-memory filesystem that fails chosen operations on chosen paths.
type faultyFS struct {
	fsys.Filesystem

	mu     sync.Mutex
	faults map[string]error // keyed by "<op> <path>"
}

const (
	faultCreate     = "create"
	faultWrite      = "write"
	faultWriteClose = "write-close"
	faultReadClose  = "read-close"
	faultDelete     = "delete"
)

func newFaultyFS(name string) *faultyFS {
	return &faultyFS{Filesystem: aferofs.NewMem(name), faults: map[string]error{}}
}

func (f *faultyFS) inject(op, name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op+" "+name] = err
}

func (f *faultyFS) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = map[string]error{}
}

func (f *faultyFS) fault(op, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faults[op+" "+name]
}

func (f *faultyFS) Create(ctx context.Context, name string, overwrite bool) (io.WriteCloser, error) {
	if err := f.fault(faultCreate, name); err != nil {
		return nil, err
	}
	w, err := f.Filesystem.Create(ctx, name, overwrite)
	if err != nil {
		return nil, err
	}
	return &faultyWriter{next: w, writeErr: f.fault(faultWrite, name), closeErr: f.fault(faultWriteClose, name)}, nil
}

func (f *faultyFS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := f.Filesystem.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &faultyReader{next: r, closeErr: f.fault(faultReadClose, name)}, nil
}

func (f *faultyFS) Delete(ctx context.Context, name string, recursive bool) (bool, error) {
	if err := f.fault(faultDelete, name); err != nil {
		return false, err
	}
	return f.Filesystem.Delete(ctx, name, recursive)
}

// faultyWriter fails its writes or its close.  A failed close discards the content.
type faultyWriter struct {
	next     io.WriteCloser
	writeErr error
	closeErr error
}

func (w *faultyWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	return w.next.Write(p)
}

func (w *faultyWriter) Close() error {
	if w.closeErr != nil {
		_ = fsys.Discard(w.next)
		return w.closeErr
	}
	return w.next.Close()
}

func (w *faultyWriter) Abort() error {
	return fsys.Discard(w.next)
}

type faultyReader struct {
	next     io.ReadCloser
	closeErr error
}

func (r *faultyReader) Read(p []byte) (int, error) {
	return r.next.Read(p)
}

func (r *faultyReader) Close() error {
	err := r.next.Close()
	if r.closeErr != nil {
		return r.closeErr
	}
	return err
}

var (
	errDiskFull  = errors.New("no space left on device")
	errCloseFail = errors.New("close failed")
)

func newFaultyProvider(t *testing.T) (context.Context, *Provider, *faultyFS) {
	ctx := testutil.Context(t)
	ffs := newFaultyFS("faulty")
	resolver := fsys.NewResolver()
	resolver.Register(aferofs.SchemeMem, func(_ context.Context, _ *url.URL) (fsys.Filesystem, error) {
		return ffs, nil
	})
	p, err := New(ctx, resolver, "mem://faulty/root")
	qt.Assert(t, err, qt.IsNil)
	return ctx, p, ffs
}

func metaFile(p *Provider, name, file string) string {
	return path.Join(metadataPath(p.DatasetPath(name)), file)
}

func TestWriteFailures(t *testing.T) {
	t.Run("schema write", func(t *testing.T) {
		ctx, p, ffs := newFaultyProvider(t)
		ffs.inject(faultCreate, metaFile(p, "users", SchemaFilename), errDiskFull)

		_, err := p.Create(ctx, "users", userDescriptor())
		qt.Assert(t, serum.Code(err), qt.Equals, dsapi.ECodeMetadataAccess)
		qt.Check(t, errors.Is(err, errDiskFull), qt.IsTrue)
		qt.Check(t, serum.DetailsMap(err)["dataset"], qt.Equals, "users")

		// the metadata directory is the commit point, so the slot stays claimed
		ok, err := p.Exists(ctx, "users")
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, ok, qt.IsTrue)
		qt.Check(t, exists(t, p, metaFile(p, "users", DescriptorFilename)), qt.IsFalse)
	})

	t.Run("descriptor write keeps the new schema beside the old descriptor", func(t *testing.T) {
		ctx, p, ffs := newFaultyProvider(t)
		_, err := p.Create(ctx, "users", userDescriptor())
		qt.Assert(t, err, qt.IsNil)
		oldDescriptor := readRaw(t, p, metaFile(p, "users", DescriptorFilename))

		ffs.inject(faultWrite, metaFile(p, "users", DescriptorFilename), errDiskFull)
		changed := &dsapi.Descriptor{Schema: dsapi.MustParseSchema(userSchemaV2), Format: dsapi.FormatCSV}
		_, err = p.Update(ctx, "users", changed)
		qt.Assert(t, serum.Code(err), qt.Equals, dsapi.ECodeMetadataAccess)
		qt.Check(t, errors.Is(err, errDiskFull), qt.IsTrue)

		qt.Check(t, readRaw(t, p, metaFile(p, "users", DescriptorFilename)), qt.Equals, oldDescriptor)
		ffs.clear()
		loaded, err := p.Load(ctx, "users")
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, loaded.Schema.Equal(changed.Schema), qt.IsTrue)
		qt.Check(t, loaded.Format, qt.Equals, dsapi.FormatParquet)
	})

	t.Run("close is the only failure", func(t *testing.T) {
		ctx, p, ffs := newFaultyProvider(t)
		_, err := p.Create(ctx, "users", userDescriptor())
		qt.Assert(t, err, qt.IsNil)
		oldDescriptor := readRaw(t, p, metaFile(p, "users", DescriptorFilename))

		ffs.inject(faultWriteClose, metaFile(p, "users", DescriptorFilename), errCloseFail)
		_, err = p.Update(ctx, "users", &dsapi.Descriptor{Schema: dsapi.MustParseSchema(userSchemaV2)})
		qt.Assert(t, serum.Code(err), qt.Equals, dsapi.ECodeMetadataAccess)
		qt.Check(t, errors.Is(err, errCloseFail), qt.IsTrue)
		qt.Check(t, readRaw(t, p, metaFile(p, "users", DescriptorFilename)), qt.Equals, oldDescriptor)
	})
}

func TestReadCloseFailures(t *testing.T) {
	t.Run("close is the only failure", func(t *testing.T) {
		ctx, p, ffs := newFaultyProvider(t)
		_, err := p.Create(ctx, "users", userDescriptor())
		qt.Assert(t, err, qt.IsNil)

		ffs.inject(faultReadClose, metaFile(p, "users", DescriptorFilename), errCloseFail)
		_, err = p.Load(ctx, "users")
		qt.Assert(t, serum.Code(err), qt.Equals, dsapi.ECodeMetadataAccess)
		qt.Check(t, errors.Is(err, errCloseFail), qt.IsTrue)
	})

	t.Run("close does not mask an earlier error", func(t *testing.T) {
		ctx, p, ffs := newFaultyProvider(t)
		_, err := p.Create(ctx, "users", userDescriptor())
		qt.Assert(t, err, qt.IsNil)
		writeRaw(t, p, metaFile(p, "users", SchemaFilename), "{not a schema")

		ffs.inject(faultReadClose, metaFile(p, "users", SchemaFilename), errCloseFail)
		_, err = p.Load(ctx, "users")
		qt.Assert(t, serum.Code(err), qt.Equals, dsapi.ECodeMetadataAccess)
		qt.Check(t, serum.Code(errors.Unwrap(err)), qt.Equals, dsapi.ECodeSchemaInvalid)
		qt.Check(t, errors.Is(err, errCloseFail), qt.IsFalse)
		qt.Check(t, strings.Contains(err.Error(), errCloseFail.Error()), qt.IsFalse)
	})
}

func TestDeleteFailure(t *testing.T) {
	ctx, p, ffs := newFaultyProvider(t)
	_, err := p.Create(ctx, "users", userDescriptor())
	qt.Assert(t, err, qt.IsNil)

	ffs.inject(faultDelete, metadataPath(p.DatasetPath("users")), errDiskFull)
	deleted, err := p.Delete(ctx, "users")
	qt.Check(t, deleted, qt.IsFalse)
	qt.Assert(t, serum.Code(err), qt.Equals, dsapi.ECodeMetadataAccess)
	qt.Check(t, errors.Is(err, errDiskFull), qt.IsTrue)

	ok, err := p.Exists(ctx, "users")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ok, qt.IsTrue)
}
