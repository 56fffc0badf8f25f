package agent

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/kbask/kbask/internal/tools"
)

// DecisionKind discriminates the two shapes a model completion can take.
type DecisionKind int

const (
	// DecisionFinalAnswer means the model produced answer text and the loop
	// should terminate.
	DecisionFinalAnswer DecisionKind = iota

	// DecisionToolCall means the model requested a retrieval tool invocation.
	DecisionToolCall
)

// Decision is the parsed form of one model completion. Exactly one variant is
// populated per completion; anything that matches neither shape is a parse
// error, never a silent default.
type Decision struct {
	// Kind selects the variant.
	Kind DecisionKind

	// Answer holds the final answer text (DecisionFinalAnswer only).
	Answer string

	// CallID is the provider-assigned tool call ID, echoed back in the
	// observation message (DecisionToolCall only).
	CallID string

	// Input is the raw JSON arguments for the tool (DecisionToolCall only).
	Input string
}

// parseDecision converts a model completion message into a Decision.
// This is the single place where assumptions about the provider's output
// format live. Rules:
//
//   - a completion carrying tool calls is a DecisionToolCall; the call must
//     name the retrieval tool and carry non-empty arguments
//   - a completion with non-empty content and no tool calls is a
//     DecisionFinalAnswer
//   - anything else (empty completion, unknown tool name) wraps ErrParse
func parseDecision(msg *schema.Message) (*Decision, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil completion", ErrParse)
	}

	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		if call.Function.Name != tools.RetrievalToolName {
			return nil, fmt.Errorf("%w: unknown tool %q", ErrParse, call.Function.Name)
		}
		if strings.TrimSpace(call.Function.Arguments) == "" {
			return nil, fmt.Errorf("%w: tool call with empty arguments", ErrParse)
		}
		return &Decision{
			Kind:   DecisionToolCall,
			CallID: call.ID,
			Input:  call.Function.Arguments,
		}, nil
	}

	answer := strings.TrimSpace(msg.Content)
	if answer == "" {
		return nil, fmt.Errorf("%w: completion has neither content nor tool calls", ErrParse)
	}

	return &Decision{
		Kind:   DecisionFinalAnswer,
		Answer: answer,
	}, nil
}
