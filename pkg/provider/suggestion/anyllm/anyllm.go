// Package anyllm provides an LLM-backed suggestion provider built on
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// more. The provider plays the role the fine-tuned coaching model had in the
// original demo: any backend reachable through any-llm-go can serve as the
// primary coach.
//
// Usage:
//
//	p, err := anyllm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
//	p, err := anyllm.New("ollama", "llama3.2")
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion"
)

// systemPrompt frames the model as a fighting-game coach and constrains the
// output to a single actionable tip.
const systemPrompt = "You are a tactical coach for a two-player sword-fighting duel. " +
	"Given a serialized game state, reply with one short, actionable tactical tip " +
	"for the hero. Reply with the tip only, no preamble."

// defaultMaxTokens caps the completion length; tips are one sentence.
const defaultMaxTokens = 96

// Ensure Provider implements suggestion.Provider at compile time.
var _ suggestion.Provider = (*Provider)(nil)

// Provider implements suggestion.Provider by wrapping any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile". model is the
// specific model to use (e.g. "gpt-4o-mini").
//
// opts are any-llm-go configuration options (e.g. anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the backend falls
// back to the relevant environment variable (OPENAI_API_KEY etc.).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("suggestion anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("suggestion anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("suggestion anyllm: create %q backend: %w", providerName, err)
	}

	return &Provider{
		backend: backend,
		name:    providerName + "/" + model,
		model:   model,
	}, nil
}

// createBackend creates the underlying any-llm-go provider for the given name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Suggest implements suggestion.Provider by issuing one non-streaming
// completion to the backend. The raw model output is trimmed; confidence is
// High whenever the model produced usable text (the caller downgrades to the
// rule-based fallback otherwise).
func (p *Provider) Suggest(ctx context.Context, gameState string, _ int64) (suggestion.Suggestion, error) {
	maxTokens := defaultMaxTokens
	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: gameState},
		},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return suggestion.Suggestion{}, fmt.Errorf("suggestion anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return suggestion.Suggestion{}, fmt.Errorf("suggestion anyllm: empty choices in response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.ContentString())
	return suggestion.Suggestion{
		Text:       text,
		Confidence: suggestion.ConfidenceHigh,
	}, nil
}

// Name implements suggestion.Provider.
func (p *Provider) Name() string {
	return p.name
}
