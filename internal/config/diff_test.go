package config

import "testing"

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	a := &Config{
		Server:    ServerConfig{LogLevel: LogInfo},
		Retrieval: RetrievalConfig{DefaultK: 10, StreamK: 7},
	}
	b := &Config{
		Server:    ServerConfig{LogLevel: LogInfo},
		Retrieval: RetrievalConfig{DefaultK: 10, StreamK: 7},
	}
	d := Diff(a, b)
	if d.LogLevelChanged || d.RetrievalChanged {
		t.Errorf("Diff reported changes for identical configs: %+v", d)
	}
}

func TestDiff_LogLevelChange(t *testing.T) {
	t.Parallel()
	a := &Config{Server: ServerConfig{LogLevel: LogInfo}}
	b := &Config{Server: ServerConfig{LogLevel: LogDebug}}
	d := Diff(a, b)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != LogDebug {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, LogDebug)
	}
}

func TestDiff_RetrievalChange(t *testing.T) {
	t.Parallel()
	a := &Config{Retrieval: RetrievalConfig{DefaultK: 10, StreamK: 7}}
	b := &Config{Retrieval: RetrievalConfig{DefaultK: 10, StreamK: 5}}
	d := Diff(a, b)
	if !d.RetrievalChanged {
		t.Fatal("RetrievalChanged = false, want true")
	}
	if d.NewRetrieval.StreamK != 5 {
		t.Errorf("NewRetrieval.StreamK = %d, want 5", d.NewRetrieval.StreamK)
	}
}

func TestDiff_ProviderChangeIsNotHotReloadable(t *testing.T) {
	t.Parallel()
	a := &Config{Providers: ProvidersConfig{Embeddings: ProviderEntry{Name: "openai"}}}
	b := &Config{Providers: ProvidersConfig{Embeddings: ProviderEntry{Name: "ollama"}}}
	d := Diff(a, b)
	if d.LogLevelChanged || d.RetrievalChanged {
		t.Errorf("Diff tracked a provider change: %+v", d)
	}
}
