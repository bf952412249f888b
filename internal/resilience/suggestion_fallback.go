package resilience

import (
	"context"
	"errors"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion"
)

// ErrDegenerateSuggestion marks a provider response whose text is empty or a
// known placeholder. Degenerate responses count as failures so the circuit
// breaker opens on a backend that keeps emitting them.
var ErrDegenerateSuggestion = errors.New("degenerate suggestion")

// SuggestionFallback implements [suggestion.Provider] with automatic failover
// across multiple coaching backends. Each backend has its own circuit
// breaker; when the primary fails, returns degenerate text, or has an open
// breaker, the next healthy fallback is tried. Registering the rule-based
// provider last makes the chain total.
type SuggestionFallback struct {
	group *FallbackGroup[suggestion.Provider]
}

// Compile-time interface assertion.
var _ suggestion.Provider = (*SuggestionFallback)(nil)

// NewSuggestionFallback creates a [SuggestionFallback] with primary as the
// preferred backend.
func NewSuggestionFallback(primary suggestion.Provider, primaryName string, cfg FallbackConfig) *SuggestionFallback {
	return &SuggestionFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional suggestion provider as a fallback.
func (f *SuggestionFallback) AddFallback(name string, provider suggestion.Provider) {
	f.group.AddFallback(name, provider)
}

// Suggest asks the first healthy provider for a suggestion. Degenerate
// responses are treated as failures and trip the serving entry's breaker.
// The returned suggestion carries the serving provider's name.
func (f *SuggestionFallback) Suggest(ctx context.Context, gameState string, timestamp int64) (suggestion.Suggestion, error) {
	return ExecuteWithResult(f.group, func(p suggestion.Provider) (suggestion.Suggestion, error) {
		s, err := p.Suggest(ctx, gameState, timestamp)
		if err != nil {
			return suggestion.Suggestion{}, err
		}
		if s.Degenerate() {
			return suggestion.Suggestion{}, ErrDegenerateSuggestion
		}
		s.Provider = p.Name()
		return s, nil
	})
}

// Name returns the primary provider's name.
func (f *SuggestionFallback) Name() string {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Name()
	}
	return ""
}
