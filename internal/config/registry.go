package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/embeddings"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
	suggestion map[string]func(ProviderEntry) (suggestion.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
		suggestion: make(map[string]func(ProviderEntry) (suggestion.Provider, error)),
	}
}

// RegisterEmbeddings registers an embeddings provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterSuggestion registers a suggestion provider factory under name.
func (r *Registry) RegisterSuggestion(name string, factory func(ProviderEntry) (suggestion.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggestion[name] = factory
}

// CreateEmbeddings instantiates an embeddings provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSuggestion instantiates a suggestion provider using the factory registered under entry.Name.
func (r *Registry) CreateSuggestion(entry ProviderEntry) (suggestion.Provider, error) {
	r.mu.RLock()
	factory, ok := r.suggestion[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: suggestion/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
