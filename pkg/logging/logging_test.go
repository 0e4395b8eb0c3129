package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

func TestCtx(t *testing.T) {
	var out, errOut bytes.Buffer
	ctx := NewLogger(&out, &errOut, false, false, true).WithContext(context.Background())
	Ctx(ctx).Info("metadata", "hello %s", "world")
	Ctx(ctx).Debug("metadata", "one\ntwo")
	Ctx(ctx).Out("result")
	qt.Check(t, out.String(), qt.Equals, "result\n")
	qt.Check(t, errOut.String(), qt.Equals, "metadata  hello world\nmetadata  one\nmetadata  two\n")
}

func TestQuietAndJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger(&out, &errOut, true, true, false)
	l.Info("x", "dropped")
	l.Debug("x", "dropped")
	l.Out("dropped")
	qt.Check(t, out.Len(), qt.Equals, 0)
	qt.Check(t, errOut.Len(), qt.Equals, 0)
}

func TestMissingLoggerDiscards(t *testing.T) {
	l := Ctx(context.Background())
	l.Info("x", "nobody hears this")
	qt.Check(t, l.IsVerbose(), qt.IsFalse)
}

func TestInfoWriter(t *testing.T) {
	var errOut bytes.Buffer
	w := NewLogger(&bytes.Buffer{}, &errOut, false, false, false).InfoWriter("s3")
	_, err := w.Write([]byte("a\nb\n"))
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, strings.Count(errOut.String(), "s3  "), qt.Equals, 2)
}
