// Package server implements the HTTP/JSON surface of a qkv node: the read
// path, the follower replication endpoint, the leader write path and the
// admin control plane.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/quorumkv/qkv/lib/quorum"
	"github.com/quorumkv/qkv/lib/store"
	"github.com/quorumkv/qkv/rpc/common"
)

var Logger = common.GetLogger("rpc")

// Server serves the qkv HTTP API for one node. The same server runs on
// leaders and followers; leader-only routes reject other roles with 403 and
// the coordinator is nil on followers.
type Server struct {
	config      common.ServerConfig
	store       store.Store
	cell        *quorum.Cell
	coordinator *quorum.Coordinator
}

// New creates an API server. The coordinator must be non-nil exactly when
// the config's role is leader.
func New(config common.ServerConfig, st store.Store, cell *quorum.Cell, coordinator *quorum.Coordinator) *Server {
	return &Server{
		config:      config,
		store:       st,
		cell:        cell,
		coordinator: coordinator,
	}
}

// Handler builds the route table. It is exposed separately from Serve so
// tests can mount it on httptest servers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /get/{key}", s.handleGet)
	s.route(mux, "POST /replicate", s.handleReplicate)
	s.route(mux, "POST /put/{key}", s.handlePut)
	s.route(mux, "POST /admin/set_quorum", s.handleSetQuorum)
	s.route(mux, "GET /admin/get_quorum", s.handleGetQuorum)
	s.route(mux, "GET /admin/store", s.handleStoreDump)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	return mux
}

// Serve starts the HTTP server on the configured endpoint and blocks.
func (s *Server) Serve() error {
	Logger.Infof("Starting %s on %s", s.config.Role, s.config.Endpoint)
	Logger.Infof(s.config.String())
	return http.ListenAndServe(s.config.Endpoint, s.Handler())
}

// --------------------------------------------------------------------------
// Routing Helpers
// --------------------------------------------------------------------------

// route registers a handler wrapped with per-route metrics and, at debug
// level, request logging
func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	handler = instrument(pattern, handler)
	if s.config.LogLevel == "debug" {
		handler = loggerMiddleware(handler)
	}
	mux.HandleFunc(pattern, handler)
}

// instrument counts requests and tracks handler latency per route
func instrument(pattern string, next http.HandlerFunc) http.HandlerFunc {
	requests := metrics.GetOrCreateCounter(fmt.Sprintf(`qkv_http_requests_total{route=%q}`, pattern))
	duration := metrics.GetOrCreateHistogram(fmt.Sprintf(`qkv_http_request_duration_seconds{route=%q}`, pattern))

	return func(w http.ResponseWriter, r *http.Request) {
		requests.Inc()
		start := time.Now()
		next.ServeHTTP(w, r)
		duration.UpdateDuration(start)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}

// --------------------------------------------------------------------------
// JSON Helpers
// --------------------------------------------------------------------------

// writeJSON writes a JSON response body with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}

// decodeJSON decodes a request body, rejecting malformed JSON
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
