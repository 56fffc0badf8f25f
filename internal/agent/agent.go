// Package agent implements the bounded reasoning loop at the heart of kbask:
// a ReAct-style controller that alternates between consulting the chat model
// and invoking the retrieval tool until the model produces a final answer,
// a failure occurs, or the iteration cap forces a degraded answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/kbask/kbask/internal/budget"
	"github.com/kbask/kbask/internal/rag"
	"github.com/kbask/kbask/internal/tools"
)

// State identifies where the reasoning loop is in its lifecycle. The loop is
// strictly sequential: each state blocks on at most one outbound call.
type State string

const (
	// StateThinking means the loop is waiting on a model completion.
	StateThinking State = "thinking"
	// StateAwaitingToolResult means the loop is waiting on a retrieval call.
	StateAwaitingToolResult State = "awaiting_tool_result"
	// StateDone is the terminal success state.
	StateDone State = "done"
	// StateFailed is the terminal error state (parse or provider failure).
	StateFailed State = "failed"
	// StateExhausted is the terminal state for hitting the iteration cap.
	StateExhausted State = "exhausted"
)

// ExhaustedAnswer is the fixed degraded answer returned when the iteration
// cap is reached and the transcript holds no usable assistant content.
const ExhaustedAnswer = "unable to determine an answer within the allotted steps"

// Defaults for the loop's tunables.
const (
	// DefaultMaxSteps caps tool round trips per query.
	DefaultMaxSteps = 5
	// DefaultMaxRetries bounds retries of transient model failures.
	DefaultMaxRetries = 2
	// defaultLLMTimeout bounds a single model completion call.
	defaultLLMTimeout = 60 * time.Second
	// defaultRetrievalTimeout bounds a single retrieval call. Retrieval is
	// never retried: repeating an identical vector query rarely clears a
	// transient failure.
	defaultRetrievalTimeout = 5 * time.Second
	// retryBaseDelay is the initial backoff between model retry attempts.
	retryBaseDelay = 500 * time.Millisecond
)

// systemPrompt describes the single available tool to the model.
const systemPrompt = `You are a question-answering assistant backed by a knowledge base.

You have exactly one tool:
  retrieval — searches the knowledge base for passages relevant to a query.

Before answering, use the retrieval tool to look up relevant context. When the
observations give you enough information, reply with the final answer as plain
text. If the knowledge base has nothing relevant, say so and answer from your
own knowledge only when you are confident.`

// Config holds the dependencies and tunables for an Agent. ChatModel and Tool
// are required; zero values elsewhere select the defaults above.
type Config struct {
	// ChatModel is the tool-calling chat model the loop consults.
	ChatModel model.ToolCallingChatModel

	// Tool is the retrieval tool bound to the model.
	Tool tool.InvokableTool

	// MaxSteps caps tool round trips (default 5).
	MaxSteps int

	// MaxRetries bounds retries of transient model failures (default 2;
	// negative disables retries).
	MaxRetries int

	// MaxObservationTokens truncates tool observations before they enter the
	// transcript (default budget.DefaultMaxObservationTokens; negative
	// disables truncation).
	MaxObservationTokens int

	// LLMTimeout bounds a single model call (default 60s).
	LLMTimeout time.Duration

	// RetrievalTimeout bounds a single retrieval call (default 5s).
	RetrievalTimeout time.Duration

	// Logger receives step-level debug logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Result is the outcome of one reasoning loop execution.
type Result struct {
	// Answer is the final answer text. For StateExhausted this is a
	// best-effort synthesis; empty only when State is StateFailed.
	Answer string

	// State is the terminal state the loop reached.
	State State

	// Steps is the number of tool round trips performed.
	Steps int
}

// Agent runs bounded reasoning loops. It is safe for concurrent use: each
// Run owns its transcript exclusively and no state crosses calls.
type Agent struct {
	model                model.ToolCallingChatModel
	tool                 tool.InvokableTool
	maxSteps             int
	maxRetries           int
	maxObservationTokens int
	llmTimeout           time.Duration
	retrievalTimeout     time.Duration
	log                  *slog.Logger
}

// New constructs an Agent, binding the retrieval tool's schema to the chat
// model so completions can carry tool calls.
func New(ctx context.Context, cfg Config) (*Agent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel is required")
	}
	if cfg.Tool == nil {
		return nil, fmt.Errorf("agent: Tool is required")
	}

	info, err := cfg.Tool.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: tool info: %w", err)
	}
	bound, err := cfg.ChatModel.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		return nil, fmt.Errorf("agent: bind tool: %w", err)
	}

	a := &Agent{
		model:                bound,
		tool:                 cfg.Tool,
		maxSteps:             cfg.MaxSteps,
		maxRetries:           cfg.MaxRetries,
		maxObservationTokens: cfg.MaxObservationTokens,
		llmTimeout:           cfg.LLMTimeout,
		retrievalTimeout:     cfg.RetrievalTimeout,
		log:                  cfg.Logger,
	}
	if a.maxSteps <= 0 {
		a.maxSteps = DefaultMaxSteps
	}
	if a.maxRetries == 0 {
		a.maxRetries = DefaultMaxRetries
	} else if a.maxRetries < 0 {
		// Negative disables retries entirely.
		a.maxRetries = 0
	}
	if a.maxObservationTokens == 0 {
		a.maxObservationTokens = budget.DefaultMaxObservationTokens
	}
	if a.llmTimeout <= 0 {
		a.llmTimeout = defaultLLMTimeout
	}
	if a.retrievalTimeout <= 0 {
		a.retrievalTimeout = defaultRetrievalTimeout
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a, nil
}

// Run executes the reasoning loop for one query. The returned error is nil
// only when the terminal state is StateDone; StateExhausted pairs a non-nil
// Result (carrying the degraded answer) with an error wrapping ErrExhausted.
func (a *Agent) Run(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("agent: query must not be empty")
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(query),
	}

	steps := 0
	for {
		if steps >= a.maxSteps {
			a.log.Warn("agent: iteration cap reached",
				slog.Int("steps", steps),
				slog.Int("max_steps", a.maxSteps),
			)
			return &Result{
				Answer: synthesizeAnswer(msgs),
				State:  StateExhausted,
				Steps:  steps,
			}, fmt.Errorf("%w after %d steps", ErrExhausted, steps)
		}

		a.log.Debug("agent: thinking",
			slog.Int("step", steps),
			slog.Int("transcript_len", len(msgs)),
			slog.Int("transcript_tokens", budget.EstimateMessages(msgs)),
		)

		completion, err := a.generateWithRetry(ctx, msgs)
		if err != nil {
			return &Result{State: StateFailed, Steps: steps},
				fmt.Errorf("%w: %v", ErrLLMProvider, err)
		}

		decision, err := parseDecision(completion)
		if err != nil {
			return &Result{State: StateFailed, Steps: steps}, err
		}

		if decision.Kind == DecisionFinalAnswer {
			msgs = append(msgs, schema.AssistantMessage(decision.Answer, nil))
			a.log.Debug("agent: final answer", slog.Int("steps", steps))
			return &Result{
				Answer: decision.Answer,
				State:  StateDone,
				Steps:  steps,
			}, nil
		}

		// Tool round trip.
		steps++
		msgs = append(msgs, completion)

		a.log.Debug("agent: awaiting tool result",
			slog.Int("step", steps),
			slog.String("tool", tools.RetrievalToolName),
		)

		observation := a.observe(ctx, decision.Input)
		observation = budget.Truncate(observation, a.maxObservationTokens)
		msgs = append(msgs, schema.ToolMessage(observation, decision.CallID))
	}
}

// generateWithRetry calls the model with a per-call timeout, retrying
// transient failures up to maxRetries times with exponential backoff.
func (a *Agent) generateWithRetry(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			a.log.Debug("agent: retrying model call",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, a.llmTimeout)
		completion, err := a.model.Generate(callCtx, msgs)
		cancel()
		if err == nil {
			return completion, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, err
		}
		if !isTransient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// observe invokes the retrieval tool and maps the outcome to an observation
// string. Retrieval failures do not abort the loop: they are recorded as an
// observation and fed back so the model can answer without context or try a
// different query.
func (a *Agent) observe(ctx context.Context, input string) string {
	callCtx, cancel := context.WithTimeout(ctx, a.retrievalTimeout)
	defer cancel()

	out, err := a.tool.InvokableRun(callCtx, input)
	if err != nil {
		kind := "tool error"
		switch {
		case errors.Is(err, rag.ErrEmbedding):
			kind = "embedding error"
		case errors.Is(err, rag.ErrVectorStore):
			kind = "vector store error"
		case errors.Is(err, context.DeadlineExceeded):
			kind = "timeout"
		}
		a.log.Warn("agent: retrieval failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return "retrieval failed: " + kind
	}

	if out == "" {
		return tools.NoResultsMarker
	}
	return out
}

// synthesizeAnswer builds a best-effort answer from assistant content already
// in the transcript. With a transcript of pure tool calls there is nothing to
// synthesize and the fixed ExhaustedAnswer is returned.
func synthesizeAnswer(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != schema.Assistant {
			continue
		}
		if content := strings.TrimSpace(msgs[i].Content); content != "" {
			return content
		}
	}
	return ExhaustedAnswer
}

// transientMarkers are substrings identifying provider errors worth retrying.
var transientMarkers = []string{
	"timeout",
	"deadline exceeded",
	"rate limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"connection reset",
	"temporarily unavailable",
}

// isTransient reports whether a model provider error is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
