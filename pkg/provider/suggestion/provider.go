// Package suggestion defines the Provider interface for tactical coaching
// backends.
//
// A suggestion provider maps a serialized game-state description to a short
// tactical recommendation with a confidence level. Two kinds ship with the
// bridge: an LLM-backed provider (see the anyllm sub-package) and a
// deterministic rule-based provider (see the rules sub-package) used as the
// always-available fallback.
//
// Implementations must be safe for concurrent use.
package suggestion

import (
	"context"
	"strings"
)

// Confidence expresses how strongly a provider stands behind a suggestion.
// The values mirror the coaching UI's display levels.
type Confidence string

const (
	ConfidenceLow      Confidence = "Low"
	ConfidenceMedium   Confidence = "Medium"
	ConfidenceHigh     Confidence = "High"
	ConfidenceCritical Confidence = "Critical"
)

// Suggestion is one tactical recommendation.
type Suggestion struct {
	// Text is the recommendation shown to the player. Non-empty for any
	// suggestion a provider returns without error.
	Text string

	// Confidence is the provider's confidence level for this suggestion.
	Confidence Confidence

	// Provider names the backend that produced the suggestion. Providers may
	// leave it empty; the failover wrapper fills it in with the serving
	// entry's Name.
	Provider string
}

// Degenerate reports whether the suggestion text is empty or one of the
// placeholder outputs a misbehaving model emits instead of real advice.
// Degenerate suggestions are treated the same as provider errors by the
// fallback chain.
func (s Suggestion) Degenerate() bool {
	switch strings.ToLower(strings.TrimSpace(s.Text)) {
	case "", ".", "!", "?", "no tip", "no tip.":
		return true
	}
	return false
}

// Provider is the abstraction over any tactical suggestion backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Suggest produces a tactical suggestion for the given serialized game
	// state. timestamp is the game clock of the state, echoed back to the
	// client alongside the response.
	Suggest(ctx context.Context, gameState string, timestamp int64) (Suggestion, error)

	// Name identifies the provider in responses and logs (e.g.
	// "openai/gpt-4o-mini", "rule-based"). The value is surfaced to clients
	// as the model_used field.
	Name() string
}
