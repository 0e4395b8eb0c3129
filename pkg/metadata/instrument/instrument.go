/*
Package instrument wraps a metadata.Provider with tracing spans and Prometheus metrics.

Every call gets a span named dsmeta.metadata.<operation>, counts toward
dsmeta_metadata_operations_total{operation,code}, and is timed in
dsmeta_metadata_operation_duration_seconds{operation}.
Successful calls are counted with code "ok"; failures with their error code.
*/
package instrument

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/metadata"
	"github.com/warptools/dsmeta/pkg/tracing"
)

const codeOK = "ok"

// Metrics holds the collectors.  A nil *Metrics records nothing.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dsmeta",
			Subsystem: "metadata",
			Name:      "operations_total",
			Help:      "Metadata provider calls by operation and result code.",
		}, []string{"operation", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dsmeta",
			Subsystem: "metadata",
			Name:      "operation_duration_seconds",
			Help:      "Metadata provider call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{m.Operations, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, dsapi.ErrorInternal("cannot register metadata metrics", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(operation, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, code).Inc()
	m.Duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Provider is a metadata.Provider that reports on every call to the one it wraps.
type Provider struct {
	next    metadata.Provider
	metrics *Metrics
	kind    string
}

var _ metadata.Provider = (*Provider)(nil)

// Wrap instruments next.  kind names the provider in span attributes, e.g. "fs" or "sqlite".
func Wrap(next metadata.Provider, kind string, metrics *Metrics) *Provider {
	return &Provider{next: next, metrics: metrics, kind: kind}
}

func (p *Provider) start(ctx context.Context, operation, name string) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{
		attribute.String(tracing.AttrKeyDsmetaOperation, operation),
		attribute.String(tracing.AttrKeyDsmetaProvider, p.kind),
	}
	if name != "" {
		attrs = append(attrs, attribute.String(tracing.AttrKeyDsmetaDataset, name))
	}
	ctx, span := tracing.Start(ctx, "dsmeta.metadata."+operation, trace.WithAttributes(attrs...))
	began := time.Now()
	return ctx, func(err error) {
		code := codeOK
		if err != nil {
			code = tracing.ErrorCode(err)
			tracing.SetSpanError(ctx, err)
		}
		p.metrics.observe(operation, code, time.Since(began))
		span.End()
	}
}

func (p *Provider) Load(ctx context.Context, name string) (*dsapi.Descriptor, error) {
	ctx, done := p.start(ctx, "load", name)
	d, err := p.next.Load(ctx, name)
	done(err)
	return d, err
}

func (p *Provider) Create(ctx context.Context, name string, descriptor *dsapi.Descriptor) (*dsapi.Descriptor, error) {
	ctx, done := p.start(ctx, "create", name)
	d, err := p.next.Create(ctx, name, descriptor)
	done(err)
	return d, err
}

func (p *Provider) Update(ctx context.Context, name string, descriptor *dsapi.Descriptor) (*dsapi.Descriptor, error) {
	ctx, done := p.start(ctx, "update", name)
	d, err := p.next.Update(ctx, name, descriptor)
	done(err)
	return d, err
}

func (p *Provider) Delete(ctx context.Context, name string) (bool, error) {
	ctx, done := p.start(ctx, "delete", name)
	ok, err := p.next.Delete(ctx, name)
	done(err)
	return ok, err
}

func (p *Provider) Exists(ctx context.Context, name string) (bool, error) {
	ctx, done := p.start(ctx, "exists", name)
	ok, err := p.next.Exists(ctx, name)
	done(err)
	return ok, err
}

func (p *Provider) List(ctx context.Context) ([]string, error) {
	ctx, done := p.start(ctx, "list", "")
	names, err := p.next.List(ctx)
	if err == nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int(tracing.AttrKeyDsmetaResultCount, len(names)))
	}
	done(err)
	return names, err
}
