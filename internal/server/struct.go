package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbask/kbask/internal/agent"
	"github.com/kbask/kbask/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must cover a full reasoning loop, so it defaults generously.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /ready.
	// If empty, /ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// APIToken is the shared secret required as a Bearer token on POST /query.
	// The server refuses to start without one.
	APIToken string
	// MetricsRegistry receives the server's Prometheus metrics. If nil, a
	// private registry is created (keeps tests hermetic).
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint. Usually the same
	// object as MetricsRegistry.
	MetricsGatherer prometheus.Gatherer
	// QueryLog is the optional audit log receiving one entry per handled
	// query. If nil, auditing is disabled.
	QueryLog store.QueryLog
}

// agentRunner is the interface handleQuery calls to execute the reasoning
// loop. *agent.Agent satisfies it; tests inject a fake.
type agentRunner interface {
	// Run executes the reasoning loop for one query.
	Run(ctx context.Context, query string) (*agent.Result, error)
}

// Server is the HTTP server that exposes the query agent.
type Server struct {
	// runner executes reasoning loops; set to *agent.Agent in production,
	// overridden by a fake in tests.
	runner agentRunner
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// queryLog is the audit log for handled queries, nil when disabled.
	queryLog store.QueryLog
}

// queryRequest is the JSON body for POST /query.
type queryRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
}

// successResponse is the JSON body for a 200 response to POST /query.
type successResponse struct {
	// Status is always "success".
	Status string `json:"status"`
	// Result is the agent's final answer.
	Result string `json:"result"`
}

// errorResponse is the JSON body for all non-200 responses.
type errorResponse struct {
	// Status is always "error".
	Status string `json:"status"`
	// Message is the client-facing reason. Never carries provider internals.
	Message string `json:"message"`
}
