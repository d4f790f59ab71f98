package resolve

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rinkside-ai/rinkside/internal/telemetry"
)

// metricsWindow is how many recent query samples are retained in memory.
const metricsWindow = 1000

// QuerySample describes one resolver query for diagnostics.
type QuerySample struct {
	Backend    string
	DurationMS float64
	Rows       int
	CacheHit   bool
	At         time.Time
}

// Metrics keeps a ring of the most recent query samples and mirrors them
// into OTEL instruments when a meter provider is configured.
type Metrics struct {
	mu     sync.Mutex
	ring   [metricsWindow]QuerySample
	next   int
	filled bool

	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	cacheHits     metric.Int64Counter
}

// NewMetrics creates resolver metrics backed by the global meter.
func NewMetrics() *Metrics {
	meter := telemetry.Meter("rinkside/resolve")
	dur, _ := meter.Float64Histogram("rinkside.resolver.duration",
		metric.WithDescription("Resolver query duration (ms)"),
		metric.WithUnit("ms"),
	)
	count, _ := meter.Int64Counter("rinkside.resolver.queries",
		metric.WithDescription("Resolver queries executed"),
	)
	hits, _ := meter.Int64Counter("rinkside.resolver.cache_hits",
		metric.WithDescription("Resolver cache hits"),
	)
	return &Metrics{queryDuration: dur, queryCount: count, cacheHits: hits}
}

// Record stores one sample and updates the OTEL instruments.
func (m *Metrics) Record(ctx context.Context, s QuerySample) {
	if s.At.IsZero() {
		s.At = time.Now()
	}

	m.mu.Lock()
	m.ring[m.next] = s
	m.next = (m.next + 1) % metricsWindow
	if m.next == 0 {
		m.filled = true
	}
	m.mu.Unlock()

	attrs := metric.WithAttributes(
		attribute.String("backend", s.Backend),
		attribute.Bool("cache_hit", s.CacheHit),
	)
	if m.queryCount != nil {
		m.queryCount.Add(ctx, 1, attrs)
	}
	if m.queryDuration != nil {
		m.queryDuration.Record(ctx, s.DurationMS, attrs)
	}
	if s.CacheHit && m.cacheHits != nil {
		m.cacheHits.Add(ctx, 1, attrs)
	}
}

// Snapshot returns retained samples oldest first.
func (m *Metrics) Snapshot() []QuerySample {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.filled {
		out := make([]QuerySample, m.next)
		copy(out, m.ring[:m.next])
		return out
	}
	out := make([]QuerySample, 0, metricsWindow)
	out = append(out, m.ring[m.next:]...)
	out = append(out, m.ring[:m.next]...)
	return out
}
