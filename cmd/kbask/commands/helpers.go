package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/kbask/kbask/internal/agent"
	"github.com/kbask/kbask/internal/embedder"
	"github.com/kbask/kbask/internal/rag"
	"github.com/kbask/kbask/internal/tools"
)

// buildRetriever wires the embedder and Qdrant store into a retriever.
// The returned QdrantStore must be closed by the caller; it also exposes the
// raw client for readiness probing.
func buildRetriever(ctx context.Context, log *slog.Logger) (rag.Retriever, *rag.QdrantStore, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	backend := embedder.ResolveBackend()
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "kbask-docs")

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: uint64(embedder.DefaultDimensions(backend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)

	retriever, err := rag.NewRetriever(emb, store, topKFromEnv())
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	return retriever, store, nil
}

// agentConfigFromEnv maps the AGENT_* tunables onto an agent.Config carrying
// the given model and retriever. Zero values fall through to the agent's own
// defaults.
func agentConfigFromEnv(cfg agent.Config, retriever rag.Retriever, log *slog.Logger) agent.Config {
	cfg.Tool = tools.NewRetrievalTool(retriever, topKFromEnv())
	cfg.MaxSteps = getEnvInt("AGENT_MAX_STEPS", 0)
	cfg.MaxRetries = getEnvInt("AGENT_LLM_RETRIES", 0)
	cfg.LLMTimeout = getEnvDuration("AGENT_LLM_TIMEOUT", 0)
	cfg.RetrievalTimeout = getEnvDuration("AGENT_RETRIEVAL_TIMEOUT", 0)
	cfg.Logger = log
	return cfg
}

// topKFromEnv returns the retrieval fan-out, RAG_TOP_K overriding the default.
func topKFromEnv() int {
	return getEnvInt("RAG_TOP_K", 5)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
