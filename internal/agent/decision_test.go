package agent

import (
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestParseDecision_FinalAnswer(t *testing.T) {
	t.Parallel()

	d, err := parseDecision(schema.AssistantMessage("Ada Lovelace was a mathematician.", nil))
	if err != nil {
		t.Fatalf("parseDecision: %v", err)
	}
	if d.Kind != DecisionFinalAnswer {
		t.Fatalf("expected DecisionFinalAnswer, got %v", d.Kind)
	}
	if d.Answer != "Ada Lovelace was a mathematician." {
		t.Errorf("unexpected answer %q", d.Answer)
	}
}

func TestParseDecision_ToolCall(t *testing.T) {
	t.Parallel()

	msg := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call-1",
			Function: schema.FunctionCall{Name: "retrieval", Arguments: `{"query": "Ada Lovelace"}`},
		}},
	}

	d, err := parseDecision(msg)
	if err != nil {
		t.Fatalf("parseDecision: %v", err)
	}
	if d.Kind != DecisionToolCall {
		t.Fatalf("expected DecisionToolCall, got %v", d.Kind)
	}
	if d.CallID != "call-1" {
		t.Errorf("unexpected call ID %q", d.CallID)
	}
	if d.Input != `{"query": "Ada Lovelace"}` {
		t.Errorf("unexpected input %q", d.Input)
	}
}

func TestParseDecision_ToolCallWinsOverContent(t *testing.T) {
	t.Parallel()

	// Some providers emit thinking text alongside a tool call; the tool call
	// is the decision.
	msg := &schema.Message{
		Role:    schema.Assistant,
		Content: "Let me look that up.",
		ToolCalls: []schema.ToolCall{{
			ID:       "call-2",
			Function: schema.FunctionCall{Name: "retrieval", Arguments: `{"query": "x"}`},
		}},
	}

	d, err := parseDecision(msg)
	if err != nil {
		t.Fatalf("parseDecision: %v", err)
	}
	if d.Kind != DecisionToolCall {
		t.Errorf("expected DecisionToolCall, got %v", d.Kind)
	}
}

func TestParseDecision_UnknownTool(t *testing.T) {
	t.Parallel()

	msg := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call-3",
			Function: schema.FunctionCall{Name: "shell", Arguments: `{"cmd": "ls"}`},
		}},
	}

	_, err := parseDecision(msg)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for unknown tool, got %v", err)
	}
}

func TestParseDecision_EmptyArguments(t *testing.T) {
	t.Parallel()

	msg := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call-4",
			Function: schema.FunctionCall{Name: "retrieval", Arguments: "  "},
		}},
	}

	_, err := parseDecision(msg)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for empty arguments, got %v", err)
	}
}

func TestParseDecision_EmptyCompletion(t *testing.T) {
	t.Parallel()

	_, err := parseDecision(schema.AssistantMessage("   ", nil))
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for empty completion, got %v", err)
	}

	_, err = parseDecision(nil)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for nil completion, got %v", err)
	}
}
