// Package server exposes the bridge's HTTP and websocket API.
//
// Two inbound transports carry the same telemetry: a request/response JSON
// API used by the game's HTTP client, and a single websocket stream
// (/stream) multiplexing event batches, snapshots, and queries over one
// connection. Both feed the same ingestion gateway and retrieval service.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/health"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/ingest"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/observe"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/persist"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/retrieval"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/session"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/index"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion"
)

// Default websocket and HTTP result counts.
const (
	defaultStreamK = 7
	defaultHTTPK   = 10
)

// Config configures a [Server].
type Config struct {
	Gateway   *ingest.Gateway
	Retrieval *retrieval.Service
	Coach     suggestion.Provider
	Sessions  *session.Manager
	Persister *persist.Persister
	Health    *health.Handler

	// Index, when set, lets GET /health report the indexed record count.
	Index index.Store

	// EmbeddingsModel is reported by GET /health.
	EmbeddingsModel string

	// StreamK is the result count for websocket queries. Defaults to 7.
	StreamK int

	// HTTPK is the result count for HTTP queries without an explicit k.
	// Defaults to 10.
	HTTPK int

	// Metrics defaults to [observe.DefaultMetrics] if nil.
	Metrics *observe.Metrics
}

// Server routes bridge API requests to the ingestion, retrieval, and
// suggestion subsystems.
type Server struct {
	gateway   *ingest.Gateway
	retrieval *retrieval.Service
	coach     suggestion.Provider
	sessions  *session.Manager
	persister *persist.Persister
	health    *health.Handler
	index     index.Store

	embeddingsModel string
	streamK         atomic.Int64
	httpK           atomic.Int64
	metrics         *observe.Metrics
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	streamK := cfg.StreamK
	if streamK <= 0 {
		streamK = defaultStreamK
	}
	httpK := cfg.HTTPK
	if httpK <= 0 {
		httpK = defaultHTTPK
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	s := &Server{
		gateway:         cfg.Gateway,
		retrieval:       cfg.Retrieval,
		coach:           cfg.Coach,
		sessions:        cfg.Sessions,
		persister:       cfg.Persister,
		health:          cfg.Health,
		index:           cfg.Index,
		embeddingsModel: cfg.EmbeddingsModel,
		metrics:         metrics,
	}
	s.streamK.Store(int64(streamK))
	s.httpK.Store(int64(httpK))
	return s
}

// SetResultCounts updates the query result counts at runtime. Zero or
// negative values reset to the defaults. Used by config hot reload.
func (s *Server) SetResultCounts(httpK, streamK int) {
	if httpK <= 0 {
		httpK = defaultHTTPK
	}
	if streamK <= 0 {
		streamK = defaultStreamK
	}
	s.httpK.Store(int64(httpK))
	s.streamK.Store(int64(streamK))
}

// Handler returns the full API handler with observability middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /events", s.handleEvents)
	mux.HandleFunc("POST /game_state_snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /new_session", s.handleNewSession)
	mux.HandleFunc("POST /game_event", s.handleGameEvent)
	mux.HandleFunc("POST /ai_suggestion", s.handleSuggestion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.health != nil {
		s.health.Register(mux)
	}

	return observe.Middleware(s.metrics)(mux)
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

// writeError maps pipeline errors to response codes: bad payloads are the
// client's fault, embedding failures are retryable, index failures point at
// the upstream store.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ingest.ErrValidation), errors.Is(err, ingest.ErrDecoding),
		errors.Is(err, retrieval.ErrEmptyQuery):
		status = http.StatusBadRequest
	case errors.Is(err, ingest.ErrEmbedding):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ingest.ErrIndexWrite):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Status: "error", Detail: err.Error()})
}

// now is stubbed in tests.
var now = time.Now
