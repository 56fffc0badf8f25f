// Package tools defines the tools the agent can invoke during a reasoning
// loop. Each tool satisfies Eino's tool.BaseTool and tool.InvokableTool
// interfaces so it can be bound directly to a ToolCallingChatModel.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/kbask/kbask/internal/rag"
)

// RetrievalToolName is the name the retrieval tool is registered under.
// The agent routes tool calls by this name.
const RetrievalToolName = "retrieval"

// NoResultsMarker is the observation text returned when the knowledge base
// contains nothing relevant to the search query. The agent feeds it back to
// the model verbatim so the model knows to answer from its own knowledge or
// admit it cannot.
const NoResultsMarker = "no results found"

// RetrievalTool is an Eino tool that searches the knowledge base for passages
// relevant to a search query. It is the only tool the query agent carries.
type RetrievalTool struct {
	// retriever performs the embed-and-search pipeline.
	retriever rag.Retriever

	// topK is the number of passages to return per search.
	topK int
}

// retrievalInput is the JSON-serialisable input schema for RetrievalTool.
type retrievalInput struct {
	// Query is the natural-language search query.
	Query string `json:"query"`
}

// NewRetrievalTool constructs a RetrievalTool using the provided Retriever.
// topK caps the number of passages per search; values <= 0 fall back to 5.
func NewRetrievalTool(retriever rag.Retriever, topK int) *RetrievalTool {
	if topK <= 0 {
		topK = 5
	}
	return &RetrievalTool{retriever: retriever, topK: topK}
}

// Name returns the tool name registered with the agent.
func (t *RetrievalTool) Name() string { return RetrievalToolName }

// Description returns the LLM-facing description of this tool.
func (t *RetrievalTool) Description() string {
	return "Searches the knowledge base for passages relevant to a query. " +
		"Use this to look up facts before answering. Returns the most relevant passages, " +
		"or \"" + NoResultsMarker + "\" if the knowledge base has nothing on the topic."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *RetrievalTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Natural-language search query for the knowledge base.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes a knowledge base search given a JSON-encoded input
// string and returns the formatted passages as the observation text.
// Pipeline failures propagate as errors wrapping rag.ErrEmbedding or
// rag.ErrVectorStore; an empty result set is NOT an error and yields
// NoResultsMarker.
func (t *RetrievalTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input retrievalInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("retrieval: invalid input: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("retrieval: query is required")
	}

	docs, err := t.retriever.Retrieve(ctx, input.Query, t.topK)
	if err != nil {
		return "", fmt.Errorf("retrieval: %w", err)
	}

	if len(docs) == 0 {
		return NoResultsMarker, nil
	}

	return FormatDocuments(docs), nil
}

// FormatDocuments renders retrieved passages as a numbered observation block.
// Each passage carries its similarity score and source so the model can weigh
// and cite it.
func FormatDocuments(docs []rag.Document) string {
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (score %.2f", i+1, doc.Score)
		if doc.Source != "" {
			fmt.Fprintf(&b, ", source: %s", doc.Source)
		}
		b.WriteString(")\n")
		b.WriteString(strings.TrimSpace(doc.Content))
	}
	return b.String()
}
