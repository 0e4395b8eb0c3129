package testutil

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/warptools/dsmeta/pkg/fsys"
	"github.com/warptools/dsmeta/pkg/fsys/aferofs"
	"github.com/warptools/dsmeta/pkg/logging"
)

// Fixture is a private metadata root for one test.
// Nothing is shared between fixtures, so tests using them may run in parallel.
type Fixture struct {
	Resolver *fsys.Resolver
	Root     string
	Ctx      context.Context
}

// NewResolver returns a resolver knowing the file and mem schemes.
func NewResolver() *fsys.Resolver {
	r := fsys.NewResolver()
	r.Register(aferofs.SchemeFile, aferofs.OSFactory)
	r.Register(aferofs.SchemeMem, aferofs.MemFactory)
	return r
}

// NewMemFixture roots a fixture in a fresh in-memory filesystem.
func NewMemFixture(t testing.TB) Fixture {
	return Fixture{
		Resolver: NewResolver(),
		Root:     "mem://" + authority(t) + "/data/root",
		Ctx:      Context(t),
	}
}

// NewLocalFixture roots a fixture in a temporary directory that is removed when the test ends.
func NewLocalFixture(t testing.TB) Fixture {
	return Fixture{
		Resolver: NewResolver(),
		Root:     filepath.Join(t.TempDir(), "root"),
		Ctx:      Context(t),
	}
}

// Context returns a context whose logger writes debug output to the test log.
// The context is canceled when the test ends.
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w := tbWriter{t}
	return logging.NewLogger(w, w, false, false, true).WithContext(ctx)
}

type tbWriter struct {
	tb testing.TB
}

func (w tbWriter) Write(data []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(strings.TrimRight(string(data), "\n"))
	return len(data), nil
}

func authority(t testing.TB) string {
	name := strings.ToLower(t.Name())
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, name)
}
