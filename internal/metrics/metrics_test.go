package metrics

import (
	"encoding/json"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric"
)

func newTestCollector(t *testing.T) *OTelCollector {
	t.Helper()
	provider := metric.NewMeterProvider()
	c, err := New(provider)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNewRejectsNilProvider(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) should return an error")
	}
}

func TestJSONReflectsRecordedRequests(t *testing.T) {
	c := newTestCollector(t)

	c.RecordRequest(100, nil)
	c.RecordRequest(300, nil)
	c.RecordRequest(200, errors.New("boom"))
	c.RecordActiveConnections(5)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(c.JSON()), &parsed); err != nil {
		t.Fatalf("JSON() produced invalid JSON: %v (%s)", err, c.JSON())
	}

	if got := parsed["requests"].(float64); got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}
	if got := parsed["connections"].(float64); got != 5 {
		t.Errorf("connections = %v, want 5", got)
	}
	wantAvg := (100.0 + 300.0 + 200.0) / 3.0
	if got := parsed["avg_latency_ns"].(float64); got != wantAvg {
		t.Errorf("avg_latency_ns = %v, want %v", got, wantAvg)
	}
}

func TestJSONIncludesNamedCounters(t *testing.T) {
	c := newTestCollector(t)
	c.RecordWALAppend(10, errors.New("disk full"))
	c.RecordBreakerTrip()

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(c.JSON()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got := parsed["wal_errors"].(float64); got != 1 {
		t.Errorf("wal_errors = %v, want 1", got)
	}
	if got := parsed["breaker_trips"].(float64); got != 1 {
		t.Errorf("breaker_trips = %v, want 1", got)
	}
}

func TestJSONWithNoActivityIsValid(t *testing.T) {
	c := newTestCollector(t)
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(c.JSON()), &parsed); err != nil {
		t.Fatalf("invalid JSON on fresh collector: %v (%s)", err, c.JSON())
	}
	if got := parsed["requests"].(float64); got != 0 {
		t.Errorf("requests = %v, want 0", got)
	}
}

func TestNoOpCollectorSatisfiesInterface(t *testing.T) {
	var c Collector = NoOp{}
	c.RecordRequest(1, nil)
	c.RecordWALAppend(1, nil)
	c.RecordSnapshot(1, nil)
	c.RecordBreakerTrip()
	c.RecordActiveConnections(1)
	if c.JSON() != "{}" {
		t.Errorf("NoOp.JSON() = %q, want {}", c.JSON())
	}
}
