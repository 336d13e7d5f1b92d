// Package metrics instruments a distcache node. It wires two
// complementary consumers of the same events, grounded on two different
// parts of the corpus:
//
//   - OpenTelemetry counters/histograms (go.opentelemetry.io/otel),
//     adapted from _examples/agilira-balios/otel.OTelMetricsCollector,
//     exported via an OTel Prometheus reader so any OTel-speaking
//     backend (and Prometheus scraping, through internal/status) sees
//     them.
//   - A plain atomic snapshot renderable as compact JSON, grounded on
//     _examples/original_source/src/monitoring/MetricsCollector's
//     generate_json, for the lightweight /stats endpoint that doesn't
//     want to stand up a full OTel reader to answer one HTTP request.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

// Collector records node-level events. Implementations must be safe for
// concurrent use.
type Collector interface {
	RecordRequest(latencyNs int64, err error)
	RecordWALAppend(latencyNs int64, err error)
	RecordSnapshot(latencyNs int64, err error)
	RecordBreakerTrip()
	RecordActiveConnections(count int)
	JSON() string
}

// OTelCollector implements Collector using OpenTelemetry instruments,
// rewired from the teacher's cache-latency/hit-miss instruments to this
// node's request/WAL/snapshot/breaker counters, plus a parallel atomic
// snapshot for JSON rendering.
type OTelCollector struct {
	requestLatency  metric.Int64Histogram
	walLatency      metric.Int64Histogram
	snapshotLatency metric.Int64Histogram
	requestsOK      metric.Int64Counter
	requestsErr     metric.Int64Counter
	walErrors       metric.Int64Counter
	snapshotErrors  metric.Int64Counter
	breakerTrips    metric.Int64Counter

	mu                sync.Mutex
	totalLatencyNs    int64
	requestCount      int64
	activeConnections atomic.Int64
	counters          map[string]*atomic.Int64
}

// Options configures an OTelCollector.
type Options struct {
	// MeterName names the OTel meter. Default "github.com/distcache-io/distcache".
	MeterName string
}

// Option is a functional option for New.
type Option func(*Options)

// WithMeterName overrides the default OTel meter name.
func WithMeterName(name string) Option {
	return func(o *Options) { o.MeterName = name }
}

// New builds an OTelCollector against provider. provider must not be nil.
func New(provider metric.MeterProvider, opts ...Option) (*OTelCollector, error) {
	if provider == nil {
		return nil, fmt.Errorf("metrics: meter provider cannot be nil")
	}
	options := Options{MeterName: "github.com/distcache-io/distcache"}
	for _, opt := range opts {
		opt(&options)
	}
	meter := provider.Meter(options.MeterName)

	c := &OTelCollector{counters: make(map[string]*atomic.Int64)}
	var err error

	if c.requestLatency, err = meter.Int64Histogram(
		"distcache_request_latency_ns",
		metric.WithDescription("Latency of client request handling in nanoseconds"),
		metric.WithUnit("ns"),
	); err != nil {
		return nil, err
	}
	if c.walLatency, err = meter.Int64Histogram(
		"distcache_wal_append_latency_ns",
		metric.WithDescription("Latency of WAL append calls in nanoseconds"),
		metric.WithUnit("ns"),
	); err != nil {
		return nil, err
	}
	if c.snapshotLatency, err = meter.Int64Histogram(
		"distcache_snapshot_latency_ns",
		metric.WithDescription("Latency of snapshot writes in nanoseconds"),
		metric.WithUnit("ns"),
	); err != nil {
		return nil, err
	}
	if c.requestsOK, err = meter.Int64Counter(
		"distcache_requests_total",
		metric.WithDescription("Total successfully handled requests"),
	); err != nil {
		return nil, err
	}
	if c.requestsErr, err = meter.Int64Counter(
		"distcache_request_errors_total",
		metric.WithDescription("Total request handling errors"),
	); err != nil {
		return nil, err
	}
	if c.walErrors, err = meter.Int64Counter(
		"distcache_wal_errors_total",
		metric.WithDescription("Total WAL append failures"),
	); err != nil {
		return nil, err
	}
	if c.snapshotErrors, err = meter.Int64Counter(
		"distcache_snapshot_errors_total",
		metric.WithDescription("Total snapshot write failures"),
	); err != nil {
		return nil, err
	}
	if c.breakerTrips, err = meter.Int64Counter(
		"distcache_breaker_trips_total",
		metric.WithDescription("Total circuit breaker OPEN transitions"),
	); err != nil {
		return nil, err
	}
	return c, nil
}

// RecordRequest records one handled client request.
func (c *OTelCollector) RecordRequest(latencyNs int64, err error) {
	ctx := context.Background()
	c.requestLatency.Record(ctx, latencyNs)
	if err != nil {
		c.requestsErr.Add(ctx, 1)
	} else {
		c.requestsOK.Add(ctx, 1)
	}
	c.mu.Lock()
	c.totalLatencyNs += latencyNs
	c.requestCount++
	c.mu.Unlock()
}

// RecordWALAppend records one WAL append call.
func (c *OTelCollector) RecordWALAppend(latencyNs int64, err error) {
	ctx := context.Background()
	c.walLatency.Record(ctx, latencyNs)
	if err != nil {
		c.walErrors.Add(ctx, 1)
		c.bumpCounter("wal_errors")
	}
}

// RecordSnapshot records one snapshot write.
func (c *OTelCollector) RecordSnapshot(latencyNs int64, err error) {
	ctx := context.Background()
	c.snapshotLatency.Record(ctx, latencyNs)
	if err != nil {
		c.snapshotErrors.Add(ctx, 1)
		c.bumpCounter("snapshot_errors")
	}
}

// RecordBreakerTrip records one CLOSED/HALF_OPEN -> OPEN transition.
func (c *OTelCollector) RecordBreakerTrip() {
	c.breakerTrips.Add(context.Background(), 1)
	c.bumpCounter("breaker_trips")
}

// RecordActiveConnections sets the current open-connection gauge value.
func (c *OTelCollector) RecordActiveConnections(count int) {
	c.activeConnections.Store(int64(count))
}

func (c *OTelCollector) bumpCounter(name string) {
	c.mu.Lock()
	ctr, ok := c.counters[name]
	if !ok {
		ctr = &atomic.Int64{}
		c.counters[name] = ctr
	}
	c.mu.Unlock()
	ctr.Add(1)
}

// JSON renders a compact snapshot of request volume, average latency,
// active connections, and named counters, in the same shape as
// original_source MetricsCollector::generate_json.
func (c *OTelCollector) JSON() string {
	c.mu.Lock()
	total := c.totalLatencyNs
	count := c.requestCount
	names := make([]string, 0, len(c.counters))
	ctrs := make([]*atomic.Int64, 0, len(c.counters))
	for name, ctr := range c.counters {
		names = append(names, name)
		ctrs = append(ctrs, ctr)
	}
	c.mu.Unlock()

	avg := 0.0
	if count > 0 {
		avg = float64(total) / float64(count)
	}

	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(`"avg_latency_ns":`)
	b.WriteString(strconv.FormatFloat(avg, 'f', 2, 64))
	b.WriteString(`,"requests":`)
	b.WriteString(strconv.FormatInt(count, 10))
	b.WriteString(`,"connections":`)
	b.WriteString(strconv.FormatInt(c.activeConnections.Load(), 10))
	for i, name := range names {
		b.WriteByte(',')
		b.WriteByte('"')
		b.WriteString(name)
		b.WriteString(`":`)
		b.WriteString(strconv.FormatInt(ctrs[i].Load(), 10))
	}
	b.WriteByte('}')
	return b.String()
}

var _ Collector = (*OTelCollector)(nil)

// NoOp is a Collector that discards everything, used when metrics are
// not configured. Mirrors balios's NoOpMetricsCollector default.
type NoOp struct{}

func (NoOp) RecordRequest(int64, error)        {}
func (NoOp) RecordWALAppend(int64, error)      {}
func (NoOp) RecordSnapshot(int64, error)       {}
func (NoOp) RecordBreakerTrip()                {}
func (NoOp) RecordActiveConnections(count int) {}
func (NoOp) JSON() string                      { return "{}" }

var _ Collector = NoOp{}
