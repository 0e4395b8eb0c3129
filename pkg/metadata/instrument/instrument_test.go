package instrument

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/metadata/fsprovider"
	dstestutil "github.com/warptools/dsmeta/pkg/testutil"
	"github.com/warptools/dsmeta/pkg/tracing"
)

const schema = `{"type": "record", "name": "R", "fields": [{"name": "id", "type": "long"}]}`

func setup(t *testing.T) (context.Context, *Provider, *Metrics, *tracetest.SpanRecorder) {
	fx := dstestutil.NewMemFixture(t)
	inner, err := fsprovider.New(fx.Ctx, fx.Resolver, fx.Root)
	qt.Assert(t, err, qt.IsNil)

	metrics, err := NewMetrics(prometheus.NewRegistry())
	qt.Assert(t, err, qt.IsNil)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	ctx := tracing.SetTracer(fx.Ctx, tp.Tracer("test"))

	return ctx, Wrap(inner, "fs", metrics), metrics, recorder
}

func TestCounts(t *testing.T) {
	ctx, p, metrics, _ := setup(t)
	d := &dsapi.Descriptor{Schema: dsapi.MustParseSchema(schema)}

	_, err := p.Create(ctx, "a", d)
	qt.Assert(t, err, qt.IsNil)
	_, err = p.Create(ctx, "a", d)
	qt.Assert(t, err, qt.IsNotNil)
	_, err = p.Load(ctx, "a")
	qt.Assert(t, err, qt.IsNil)
	_, err = p.Load(ctx, "nope")
	qt.Assert(t, err, qt.IsNotNil)

	qt.Check(t, testutil.ToFloat64(metrics.Operations.WithLabelValues("create", "ok")), qt.Equals, 1.0)
	qt.Check(t, testutil.ToFloat64(metrics.Operations.WithLabelValues("create", dsapi.ECodeAlreadyExists)), qt.Equals, 1.0)
	qt.Check(t, testutil.ToFloat64(metrics.Operations.WithLabelValues("load", "ok")), qt.Equals, 1.0)
	qt.Check(t, testutil.ToFloat64(metrics.Operations.WithLabelValues("load", dsapi.ECodeNoSuchDataset)), qt.Equals, 1.0)
	qt.Check(t, testutil.CollectAndCount(metrics.Duration), qt.Equals, 2)
}

func TestSpans(t *testing.T) {
	ctx, p, _, recorder := setup(t)
	_, err := p.Delete(ctx, "a")
	qt.Assert(t, err, qt.IsNil)
	_, err = p.Exists(ctx, "..")
	qt.Assert(t, err, qt.IsNotNil)
	names, err := p.List(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, names, qt.HasLen, 0)

	spans := recorder.Ended()
	qt.Assert(t, spans, qt.HasLen, 3)
	qt.Check(t, spans[0].Name(), qt.Equals, "dsmeta.metadata.delete")
	qt.Check(t, spans[1].Name(), qt.Equals, "dsmeta.metadata.exists")
	qt.Check(t, spans[1].Status().Code.String(), qt.Equals, "Error")
	qt.Check(t, spans[2].Name(), qt.Equals, "dsmeta.metadata.list")
}

func TestNilMetrics(t *testing.T) {
	fx := dstestutil.NewMemFixture(t)
	inner, err := fsprovider.New(fx.Ctx, fx.Resolver, fx.Root)
	qt.Assert(t, err, qt.IsNil)
	p := Wrap(inner, "fs", nil)
	ok, err := p.Exists(fx.Ctx, "a")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ok, qt.IsFalse)
}
