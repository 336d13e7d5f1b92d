// Package status serves a node's HTTP observability surface: a health
// probe, a compact JSON status report, and a Prometheus scrape endpoint.
// Grounded on
// _examples/original_source/src/monitoring/HttpDashboard.{h,cpp}'s
// generate_status_report (breaker state + failure count, ring node list,
// metrics JSON), turned from a 10-second console dump into HTTP routes.
package status

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/distcache-io/distcache/internal/breaker"
	"github.com/distcache-io/distcache/internal/hashring"
	"github.com/distcache-io/distcache/internal/metrics"
)

// Server exposes /health, /stats, and /metrics for one node.
type Server struct {
	nodeID  string
	ring    *hashring.Ring
	breaker *breaker.CircuitBreaker
	metrics metrics.Collector

	mux *http.ServeMux
}

// New builds a status Server. mc may be nil.
func New(nodeID string, ring *hashring.Ring, cb *breaker.CircuitBreaker, mc metrics.Collector) *Server {
	if mc == nil {
		mc = metrics.NoOp{}
	}
	s := &Server{nodeID: nodeID, ring: ring, breaker: cb, metrics: mc, mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/stats", s.handleStats)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Handler returns the Server's http.Handler, for use with http.Server or
// httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "node": s.nodeID})
}

// statusReport mirrors HttpDashboard::generate_status_report's fields,
// rendered as JSON instead of stdout.
type statusReport struct {
	NodeID        string   `json:"node_id"`
	BreakerState  string   `json:"breaker_state"`
	BreakerFails  int      `json:"breaker_failures"`
	RingNodes     []string `json:"ring_nodes"`
	MetricsJSON   string   `json:"metrics"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report := statusReport{
		NodeID:       s.nodeID,
		BreakerState: s.breaker.State().String(),
		BreakerFails: s.breaker.FailureCount(),
		RingNodes:    s.ring.GetAllNodes(),
		MetricsJSON:  s.metrics.JSON(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
