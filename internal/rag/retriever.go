package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultRetriever implements the Retriever interface by combining an Embedder
// and a VectorStore. It embeds the query at retrieval time and delegates
// similarity search to the store.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and VectorStore.
// defaultTopK sets the fallback result count when Retrieve is called with topK=0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &DefaultRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the query and returns the top-k most relevant documents,
// sorted by descending similarity score. Ties keep the store's original
// order. An empty result is returned as-is: "no relevant context" is a valid
// outcome, not an error. Embedding failures (including an empty query) wrap
// ErrEmbedding; search failures wrap ErrVectorStore.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrEmbedding)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: embedder returned empty result for query", ErrEmbedding)
	}

	docs, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		// QdrantStore already wraps ErrVectorStore; re-wrap anything else.
		if !errors.Is(err, ErrVectorStore) {
			return nil, fmt.Errorf("%w: %v", ErrVectorStore, err)
		}
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})

	if len(docs) > topK {
		docs = docs[:topK]
	}

	return docs, nil
}
