// Package ingestion implements the knowledge base ingestion pipeline.
// It reads documents from local files, directories, or HTTP(S) URLs, chunks
// the content, embeds each chunk, and upserts the results into the vector
// store. The pipeline is invoked by the `kbask ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbask/kbask/internal/rag"
)

// chunkNamespace is the fixed UUID namespace used to derive deterministic
// chunk IDs. Re-ingesting the same source overwrites its previous chunks
// instead of duplicating them.
var chunkNamespace = uuid.MustParse("9f2c1a64-7b3e-4d15-8c02-5e9a4d6f1b38")

// textExtensions lists the file extensions treated as ingestible text when
// walking a directory.
var textExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".rst":      true,
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive
	// chunks. Defaults to 100 if zero or out of range.
	ChunkOverlap int

	// HTTPTimeout is the timeout for each URL fetch. Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Pipeline orchestrates the read → chunk → embed → upsert flow for a set of
// knowledge base sources.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient fetches URL sources.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "kbask/1.0 (knowledge base ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest reads, chunks, embeds, and stores all provided sources. A source may
// be a file path, a directory (walked recursively for text files), or an
// HTTP(S) URL. Sources are processed sequentially and the first error stops
// the run. Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []string, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	for _, src := range sources {
		docs, err := p.resolve(ctx, src)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := p.ingestDocument(ctx, d, progress); err != nil {
				return err
			}
		}
	}

	return nil
}

// sourceDocument is one readable unit of knowledge resolved from a source
// argument, before chunking.
type sourceDocument struct {
	// location is the URL or file path the content was read from.
	location string
	// content is the raw text.
	content string
}

// resolve expands a source argument into its readable documents.
func (p *Pipeline) resolve(ctx context.Context, src string) ([]sourceDocument, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		content, err := p.fetch(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("ingestion: fetch failed for %s: %w", src, err)
		}
		return []sourceDocument{{location: src, content: content}}, nil
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("ingestion: cannot read source %s: %w", src, err)
	}

	if !info.IsDir() {
		content, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("ingestion: cannot read file %s: %w", src, err)
		}
		return []sourceDocument{{location: src, content: string(content)}}, nil
	}

	var docs []sourceDocument
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories (.git, .cache) are never knowledge.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		docs = append(docs, sourceDocument{location: path, content: string(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walking %s: %w", src, err)
	}

	return docs, nil
}

// ingestDocument chunks, embeds, and upserts a single resolved document.
func (p *Pipeline) ingestDocument(ctx context.Context, src sourceDocument, progress func(msg string)) error {
	chunks := p.chunk(src.content)
	if len(chunks) == 0 {
		progress(fmt.Sprintf("skipped %s (empty)", src.location))
		return nil
	}
	progress(fmt.Sprintf("chunked %s into %d chunks", src.location, len(chunks)))

	embeddings, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("ingestion: embedding failed for %s: %w", src.location, err)
	}

	meta := InferMetadata(src.location)

	docs := make([]rag.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, rag.Document{
			ID:      chunkID(src.location, i),
			Content: chunk,
			Source:  src.location,
			Metadata: map[string]string{
				"topic":       meta.Topic,
				"doc_type":    meta.DocType,
				"chunk_index": fmt.Sprintf("%d", i),
			},
		})
	}

	if err := p.store.Upsert(ctx, docs, embeddings); err != nil {
		return fmt.Errorf("ingestion: upsert failed for %s: %w", src.location, err)
	}

	progress(fmt.Sprintf("ingested %d chunks from %s", len(chunks), src.location))
	return nil
}

// fetch retrieves the raw text content of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
func (p *Pipeline) chunk(text string) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	for start := 0; start < len(text); start += size - overlap {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}

// chunkID derives a deterministic UUID for a chunk from its source location
// and index. Qdrant requires UUID point IDs, and determinism makes ingestion
// idempotent.
func chunkID(location string, index int) string {
	return uuid.NewSHA1(chunkNamespace, fmt.Appendf(nil, "%s#%d", location, index)).String()
}
