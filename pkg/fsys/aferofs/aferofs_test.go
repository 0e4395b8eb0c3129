package aferofs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/warptools/dsmeta/pkg/fsys"
)

func writeFile(t *testing.T, f fsys.Filesystem, name, content string, overwrite bool) error {
	t.Helper()
	w, err := f.Create(context.Background(), name, overwrite)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, content); err != nil {
		fsys.Discard(w)
		return err
	}
	return w.Close()
}

func readFile(t *testing.T, f fsys.Filesystem, name string) string {
	t.Helper()
	r, err := f.Open(context.Background(), name)
	qt.Assert(t, err, qt.IsNil)
	defer r.Close()
	data, err := io.ReadAll(r)
	qt.Assert(t, err, qt.IsNil)
	return string(data)
}

func names(entries []fsys.Status) []string {
	var result []string
	for _, e := range entries {
		result = append(result, e.Name)
	}
	sort.Strings(result)
	return result
}

func testFilesystem(t *testing.T, f fsys.Filesystem, root string) {
	ctx := context.Background()
	dir := path.Join(root, "a", "b")

	t.Run("mkdir", func(t *testing.T) {
		ok, err := f.MkdirAll(ctx, dir)
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, ok, qt.IsTrue)
		exists, err := f.Exists(ctx, dir)
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, exists, qt.IsTrue)
	})
	t.Run("create and overwrite", func(t *testing.T) {
		file := path.Join(dir, "x.txt")
		qt.Assert(t, writeFile(t, f, file, "one", false), qt.IsNil)
		qt.Check(t, readFile(t, f, file), qt.Equals, "one")

		err := writeFile(t, f, file, "two", false)
		qt.Check(t, errors.Is(err, fs.ErrExist), qt.IsTrue)
		qt.Check(t, readFile(t, f, file), qt.Equals, "one")

		qt.Assert(t, writeFile(t, f, file, "three", true), qt.IsNil)
		qt.Check(t, readFile(t, f, file), qt.Equals, "three")
	})
	t.Run("abort leaves target alone", func(t *testing.T) {
		file := path.Join(dir, "x.txt")
		w, err := f.Create(ctx, file, true)
		qt.Assert(t, err, qt.IsNil)
		_, err = io.WriteString(w, "partial")
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, fsys.Discard(w), qt.IsNil)
		qt.Check(t, readFile(t, f, file), qt.Equals, "three")

		entries, err := f.List(ctx, dir)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, names(entries), qt.DeepEquals, []string{"x.txt"})
	})
	t.Run("list", func(t *testing.T) {
		entries, err := f.List(ctx, path.Join(root, "a"))
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, entries, qt.DeepEquals, []fsys.Status{{Name: "b", IsDir: true}})

		_, err = f.List(ctx, path.Join(root, "missing"))
		qt.Check(t, errors.Is(err, fs.ErrNotExist), qt.IsTrue)
	})
	t.Run("delete", func(t *testing.T) {
		deleted, err := f.Delete(ctx, path.Join(root, "a"), false)
		qt.Check(t, errors.Is(err, fsys.ErrNotEmpty), qt.IsTrue)
		qt.Check(t, deleted, qt.IsFalse)

		deleted, err = f.Delete(ctx, path.Join(root, "a"), true)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, deleted, qt.IsTrue)

		deleted, err = f.Delete(ctx, path.Join(root, "a"), true)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, deleted, qt.IsFalse)

		exists, err := f.Exists(ctx, dir)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, exists, qt.IsFalse)
	})
}

func TestMem(t *testing.T) {
	f := NewMem("test")
	qt.Check(t, f.URI().String(), qt.Equals, "mem://test/")
	testFilesystem(t, f, "/data")
}

func TestOS(t *testing.T) {
	f := NewOS()
	qt.Check(t, f.URI().String(), qt.Equals, "file:///")
	testFilesystem(t, f, filepath.ToSlash(t.TempDir()))
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	r := fsys.NewResolver()
	r.Register(SchemeMem, MemFactory)
	r.Register(SchemeFile, OSFactory)

	a, p, err := r.Resolve(ctx, "mem://one/x/../y")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, p, qt.Equals, "/y")
	b, _, err := r.Resolve(ctx, "mem://one/z")
	qt.Assert(t, err, qt.IsNil)
	c, _, err := r.Resolve(ctx, "mem://two/z")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, fsys.Same(a, b), qt.IsTrue)
	qt.Check(t, fsys.Same(a, c), qt.IsFalse)
	qt.Check(t, fsys.Qualify(a, p).String(), qt.Equals, "mem://one/y")

	local, p, err := r.Resolve(ctx, "/tmp/data")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, p, qt.Equals, "/tmp/data")
	qt.Check(t, fsys.Qualify(local, p).String(), qt.Equals, "file:///tmp/data")

	_, _, err = r.Resolve(ctx, "ftp://host/x")
	qt.Check(t, err, qt.IsNotNil)
}
