package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kbask/kbask/internal/agent"
	"github.com/kbask/kbask/internal/logging"
	"github.com/kbask/kbask/internal/store"
)

// Client-facing request failure messages. These exact strings are part of the
// API contract.
const (
	msgInvalidJSON    = "Invalid JSON in request body"
	msgMissingQuery   = "Missing query parameter"
	msgGenericFailure = "Failed to process query"
)

// auditRecordTimeout bounds the best-effort audit write so a slow disk never
// delays the response path.
const auditRecordTimeout = 2 * time.Second

// handleQuery handles POST /query. Order is fixed: body validation first
// (a malformed request is rejected before any secret comparison), then the
// authentication gate, then exactly one reasoning loop run. The loop's
// terminal state alone determines the HTTP status.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, msgMissingQuery)
		return
	}

	auth := authenticate(r, s.cfg.APIToken)
	if !auth.authenticated {
		// Outcome only — the presented token value is never logged.
		log.Warn("auth: rejected query request",
			slog.Int("status", auth.status),
		)
		if auth.status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", `Bearer realm="kbask"`)
		}
		writeError(w, auth.status, auth.message)
		return
	}

	start := time.Now()
	res, err := s.runner.Run(r.Context(), req.Query)
	elapsed := time.Since(start)

	outcome, errorKind := classifyOutcome(res, err)
	s.recordQuery(req.Query, res, outcome, errorKind, elapsed)

	if err != nil {
		// Provider internals stay in the server logs; the caller gets a
		// generic message. Exhaustion keeps its fixed degraded message so
		// clients can distinguish "gave up" from "broke".
		msg := msgGenericFailure
		if errors.Is(err, agent.ErrExhausted) {
			msg = agent.ExhaustedAnswer
		}
		log.Error("query failed",
			slog.String("outcome", outcome),
			slog.String("error_kind", errorKind),
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	log.Info("query answered",
		slog.Int("steps", res.Steps),
		slog.Duration("duration", elapsed),
	)
	writeJSON(w, http.StatusOK, successResponse{Status: "success", Result: res.Answer})
}

// classifyOutcome maps an agent run to the (outcome, error kind) pair used by
// metrics and the audit log.
func classifyOutcome(res *agent.Result, err error) (outcome, errorKind string) {
	switch {
	case err == nil:
		return "done", ""
	case errors.Is(err, agent.ErrExhausted):
		return "exhausted", "exhausted"
	case errors.Is(err, agent.ErrParse):
		return "failed", "parse"
	case errors.Is(err, agent.ErrLLMProvider):
		return "failed", "llm_provider"
	default:
		return "failed", "error"
	}
}

// recordQuery updates metrics and writes a best-effort audit entry. Audit
// failures are logged, never surfaced to the client.
func (s *Server) recordQuery(query string, res *agent.Result, outcome, errorKind string, elapsed time.Duration) {
	steps := 0
	if res != nil {
		steps = res.Steps
	}

	if s.metrics != nil {
		s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
		s.metrics.querySteps.Observe(float64(steps))
	}

	if s.queryLog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditRecordTimeout)
	defer cancel()
	err := s.queryLog.Record(ctx, store.Entry{
		Query:      query,
		Outcome:    outcome,
		ErrorKind:  errorKind,
		Steps:      steps,
		DurationMS: elapsed.Milliseconds(),
	})
	if err != nil {
		s.log.Warn("audit: failed to record query", slog.Any("error", err))
	}
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}
