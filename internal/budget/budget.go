// Package budget provides token budget estimation and truncation for the
// kbask agent. Because the agent supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English text; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxObservationTokens is the default budget for a single tool
	// observation injected into the transcript. Retrieval output can be
	// large (top-k full document chunks); capping it keeps the transcript
	// within small-context models while leaving room for reasoning turns.
	DefaultMaxObservationTokens = 1500

	// truncationMarker is appended to any observation that was cut.
	truncationMarker = "\n[truncated]"
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Truncate cuts s so its estimated token count does not exceed maxTokens,
// appending a truncation marker when anything was removed. maxTokens <= 0
// disables truncation.
func Truncate(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return s
	}
	limit := maxTokens * charsPerToken
	if len(s) <= limit {
		return s
	}
	// Back up to a rune boundary so the cut never produces invalid UTF-8.
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + truncationMarker
}
