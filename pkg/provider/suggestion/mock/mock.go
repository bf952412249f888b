// Package mock provides a recording suggestion.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion"
)

// Ensure Provider implements suggestion.Provider at compile time.
var _ suggestion.Provider = (*Provider)(nil)

// SuggestCall records one Suggest invocation.
type SuggestCall struct {
	GameState string
	Timestamp int64
}

// Provider is a configurable test double. It records every call and returns
// the configured result or error. The zero value returns an empty (and
// therefore degenerate) suggestion.
type Provider struct {
	mu sync.Mutex

	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// Result is returned by Suggest when Err is nil.
	Result suggestion.Suggestion

	// Err, if set, is returned by every Suggest call.
	Err error

	// Calls holds all recorded Suggest invocations in order.
	Calls []SuggestCall
}

func (p *Provider) Name() string {
	if p.NameValue == "" {
		return "mock"
	}
	return p.NameValue
}

func (p *Provider) Suggest(_ context.Context, gameState string, timestamp int64) (suggestion.Suggestion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, SuggestCall{GameState: gameState, Timestamp: timestamp})
	if p.Err != nil {
		return suggestion.Suggestion{}, p.Err
	}
	return p.Result, nil
}

// CallCount returns how many times Suggest has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears the recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
