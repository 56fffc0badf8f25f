package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbask/kbask/internal/embedder"
	"github.com/kbask/kbask/internal/ingestion"
	"github.com/kbask/kbask/internal/logging"
	"github.com/kbask/kbask/internal/rag"
)

// NewIngestCmd constructs the `kbask ingest` command, which runs the
// ingestion pipeline to populate the vector store.
func NewIngestCmd() *cobra.Command {
	var chunkSize int
	var chunkOverlap int
	var httpTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "ingest [source...]",
		Short: "Ingest documents into the knowledge base",
		Long: `Read, chunk, embed, and index documents into the Qdrant vector store.

Each source may be a file, a directory (walked recursively for .md, .txt,
and .rst files), or an HTTP(S) URL. Chunk IDs are deterministic, so
re-ingesting a source updates its chunks in place.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: kbask-docs)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  kbask ingest ./docs
  kbask ingest notes.md runbooks/
  kbask ingest https://example.com/handbook.md --chunk-size 800`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			backend := embedder.ResolveBackend()
			log.Info("embedder initialised", slog.String("provider", backend))

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
				return fmt.Errorf("ingest: failed to connect to Qdrant at %s:%d: %w", host, port, err)
			}
			defer store.Close()
			log.Info("qdrant store ready",
				slog.String("host", host),
				slog.Int("port", port),
				slog.String("collection", collection),
			)

			pipeline, err := ingestion.NewPipeline(emb, store, &ingestion.Config{
				ChunkSize:    chunkSize,
				ChunkOverlap: chunkOverlap,
				HTTPTimeout:  httpTimeout,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion", slog.Int("sources", len(args)))

			if err := pipeline.Ingest(ctx, args, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete", slog.Int("sources", len(args)))
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Maximum characters per chunk (default: 1000)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Characters of overlap between chunks (default: 100)")
	cmd.Flags().DurationVar(&httpTimeout, "http-timeout", 0, "Timeout per URL fetch (default: 30s)")

	return cmd
}
