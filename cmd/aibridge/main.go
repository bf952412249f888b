// Command aibridge is the telemetry bridge server between the game client
// and its AI backends: it ingests combat telemetry into a pgvector index,
// answers similarity queries, and serves tactical suggestions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/config"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/health"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/ingest"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/observe"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/persist"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/resilience"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/retrieval"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/server"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/session"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/index/postgres"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/embeddings"
	ollamaembed "github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/embeddings/ollama"
	oaembed "github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/embeddings/openai"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion/anyllm"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion/rules"
)

const (
	defaultListenAddr = ":8765"
	defaultDimensions = 1536
	defaultCaptureDir = "captures"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Logger ─────────────────────────────────────────────────────────────────
	// The level var lets config hot reload adjust verbosity without rebuilding
	// the handler chain.
	logLevel := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// ── Load configuration ─────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "aibridge: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "aibridge: %v\n", err)
		}
		return 1
	}
	logLevel.Set(slogLevel(cfg.Server.LogLevel))

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	slog.Info("aibridge starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ──────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "aibridge"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── Provider registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	embedder, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		slog.Error("failed to create embeddings provider", "name", cfg.Providers.Embeddings.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "embeddings", "name", cfg.Providers.Embeddings.Name, "model", embedder.ModelID())

	coach := buildCoach(cfg, reg)

	// ── Vector index ───────────────────────────────────────────────────────────
	dims := cfg.Index.EmbeddingDimensions
	if dims <= 0 {
		dims = defaultDimensions
	}
	store, err := postgres.NewStore(ctx, cfg.Index.PostgresDSN, cfg.Index.Collection, dims)
	if err != nil {
		slog.Error("failed to open vector index", "err", err)
		return 1
	}
	defer store.Close()

	// ── Sessions and artifact persistence ──────────────────────────────────────
	captureRoot := cfg.Capture.RootDir
	if captureRoot == "" {
		captureRoot = defaultCaptureDir
	}
	sessions, err := session.NewManager(captureRoot)
	if err != nil {
		slog.Error("failed to create session manager", "root", captureRoot, "err", err)
		return 1
	}
	persister := persist.NewPersister(persist.Config{
		QueueCapacity: cfg.Capture.QueueCapacity,
		Metrics:       metrics,
	})
	defer persister.Close()

	// ── Pipeline ───────────────────────────────────────────────────────────────
	gateway := ingest.NewGateway(ingest.Config{
		Embedder:         embedder,
		Store:            store,
		Persister:        persister,
		Sessions:         sessions,
		InferenceTimeout: time.Duration(cfg.Retrieval.InferenceTimeoutSeconds) * time.Second,
		Metrics:          metrics,
	})
	retriever := retrieval.NewService(retrieval.Config{
		Embedder:         embedder,
		Store:            store,
		DefaultK:         cfg.Retrieval.DefaultK,
		InferenceTimeout: time.Duration(cfg.Retrieval.InferenceTimeoutSeconds) * time.Second,
		Metrics:          metrics,
	})

	checks := health.New(
		health.Checker{Name: "index", Check: store.Ping},
		health.Checker{Name: "embeddings", Check: func(ctx context.Context) error {
			_, err := embedder.Embed(ctx, "ping")
			return err
		}},
	)

	srv := server.New(server.Config{
		Gateway:         gateway,
		Retrieval:       retriever,
		Coach:           coach,
		Sessions:        sessions,
		Persister:       persister,
		Health:          checks,
		Index:           store,
		EmbeddingsModel: embedder.ModelID(),
		StreamK:         cfg.Retrieval.StreamK,
		HTTPK:           cfg.Retrieval.DefaultK,
		Metrics:         metrics,
	})

	// ── Config hot reload ──────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated", "level", diff.NewLogLevel)
		}
		if diff.RetrievalChanged {
			srv.SetResultCounts(diff.NewRetrieval.DefaultK, diff.NewRetrieval.StreamK)
			slog.Info("retrieval settings updated",
				"default_k", diff.NewRetrieval.DefaultK,
				"stream_k", diff.NewRetrieval.StreamK,
			)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// Warm the embedding backend so the first telemetry batch is not the one
	// paying the model load cost. Failure is logged, not fatal.
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if _, err := embedder.Embed(warmCtx, "hero attack dir 1 hp 1.00"); err != nil {
		slog.Warn("embedding warm-up failed", "err", err)
	}
	cancel()

	// ── HTTP server ────────────────────────────────────────────────────────────
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready", "addr", listenAddr, "tls", cfg.Server.TLS != nil)
		var err error
		if cfg.Server.TLS != nil {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Embeddings ─────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	// ── Suggestions ────────────────────────────────────────────────────────────
	// All any-llm-go backends share the optional APIKey + BaseURL pattern;
	// ollama and the local servers simply leave the key empty.
	for _, providerName := range []string{
		"openai", "anthropic", "ollama", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterSuggestion(providerName, func(entry config.ProviderEntry) (suggestion.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterSuggestion(rules.ProviderName, func(config.ProviderEntry) (suggestion.Provider, error) {
		return rules.New(), nil
	})
}

// buildCoach assembles the suggestion chain: the configured LLM provider (if
// any) fronted by a circuit breaker, with the rule table as the terminal
// fallback so /ai_suggestion can always answer.
func buildCoach(cfg *config.Config, reg *config.Registry) suggestion.Provider {
	name := cfg.Providers.Suggestion.Name
	if name == "" || name == rules.ProviderName {
		slog.Info("provider created", "kind", "suggestion", "name", rules.ProviderName)
		return rules.New()
	}

	primary, err := reg.CreateSuggestion(cfg.Providers.Suggestion)
	if err != nil {
		slog.Warn("failed to create suggestion provider, falling back to rules",
			"name", name, "err", err)
		return rules.New()
	}
	slog.Info("provider created", "kind", "suggestion", "name", name, "model", cfg.Providers.Suggestion.Model)

	coach := resilience.NewSuggestionFallback(primary, name, resilience.FallbackConfig{})
	coach.AddFallback(rules.ProviderName, rules.New())
	return coach
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optInt extracts an int from a provider Options map. YAML decodes integers
// as int, but be lenient about float64 from other sources.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
