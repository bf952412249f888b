package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai", "ollama"},
	"suggestion": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "rule-based"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("suggestion", cfg.Providers.Suggestion.Name)

	// Embeddings are mandatory for the whole pipeline.
	if cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("providers.embeddings.name is required"))
	}

	// Embeddings ↔ index dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Index.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but index.embedding_dimensions is not set; defaulting to 1536")
	}

	// Index availability
	if cfg.Index.PostgresDSN == "" {
		errs = append(errs, errors.New("index.postgres_dsn is required"))
	}

	// Suggestion availability — the rule-based fallback covers the gap.
	if cfg.Providers.Suggestion.Name == "" {
		slog.Warn("providers.suggestion is not configured; tactical suggestions will be rule-based only")
	}

	// Capture
	if cfg.Capture.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("capture.queue_capacity %d must not be negative", cfg.Capture.QueueCapacity))
	}

	// Retrieval
	if cfg.Retrieval.DefaultK < 0 {
		errs = append(errs, fmt.Errorf("retrieval.default_k %d must not be negative", cfg.Retrieval.DefaultK))
	}
	if cfg.Retrieval.StreamK < 0 {
		errs = append(errs, fmt.Errorf("retrieval.stream_k %d must not be negative", cfg.Retrieval.StreamK))
	}
	if cfg.Retrieval.InferenceTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("retrieval.inference_timeout_seconds %d must not be negative", cfg.Retrieval.InferenceTimeoutSeconds))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
