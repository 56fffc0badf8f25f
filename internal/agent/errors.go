package agent

import "errors"

// ErrParse indicates the model produced a completion that is neither a final
// answer nor a call to the retrieval tool. Matched with errors.Is.
var ErrParse = errors.New("agent: could not parse model decision")

// ErrLLMProvider indicates the model provider failed after exhausting the
// retry policy. Matched with errors.Is.
var ErrLLMProvider = errors.New("agent: model provider failed")

// ErrExhausted indicates the reasoning loop hit its iteration cap before the
// model produced a final answer. The accompanying Result still carries a
// best-effort answer. Matched with errors.Is.
var ErrExhausted = errors.New("agent: iteration cap reached")
