package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/ingest"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/observe"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/persist"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/retrieval"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/session"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/telemetry"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/index"
	indexmock "github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/index/mock"
	embedmock "github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/embeddings/mock"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion"
	sugmock "github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion/mock"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion/rules"
)

// testEnv is the wired-up server plus the mocks behind it.
type testEnv struct {
	server   *Server
	embedder *embedmock.Provider
	store    *indexmock.Store
	coach    *sugmock.Provider
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	mgr, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	embedder := &embedmock.Provider{DimensionsValue: 4, ModelIDValue: "test-embed"}
	store := &indexmock.Store{}
	coach := &sugmock.Provider{
		NameValue: "test-llm",
		Result: suggestion.Suggestion{
			Text:       "Close the gap and pressure with light attacks.",
			Confidence: suggestion.ConfidenceHigh,
			Provider:   "test-llm",
		},
	}
	persister := persist.NewPersister(persist.Config{Metrics: metrics})
	t.Cleanup(persister.Close)

	gateway := ingest.NewGateway(ingest.Config{
		Embedder:  embedder,
		Store:     store,
		Persister: persister,
		Sessions:  mgr,
		Metrics:   metrics,
	})
	svc := retrieval.NewService(retrieval.Config{
		Embedder: embedder,
		Store:    store,
		Metrics:  metrics,
	})

	srv := New(Config{
		Gateway:         gateway,
		Retrieval:       svc,
		Coach:           coach,
		Sessions:        mgr,
		Persister:       persister,
		Index:           store,
		EmbeddingsModel: embedder.ModelID(),
		Metrics:         metrics,
	})
	return &testEnv{server: srv, embedder: embedder, store: store, coach: coach, sessions: mgr}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func testEvents() []telemetry.Event {
	return []telemetry.Event{
		{Timestamp: 1, Actor: "hero", Action: "attack", Direction: 1, Health: 0.76, Pos: telemetry.Position{12, 30}},
		{Timestamp: 2, Actor: "knight", Action: "block", Direction: -1, Health: 0.5, Pos: telemetry.Position{30, 20}},
	}
}

func testSnapshot() telemetry.Snapshot {
	return telemetry.Snapshot{
		Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes")),
		HeroState: telemetry.CharacterState{
			Timestamp: 5, Actor: "hero", Action: "attack",
			Pos: telemetry.Position{10, 20}, Direction: 1, Health: 0.8, Stamina: 0.6,
		},
		KnightState: telemetry.CharacterState{
			Timestamp: 5, Actor: "knight", Action: "block",
			Pos: telemetry.Position{30, 20}, Direction: -1, Health: 0.5, Stamina: 0.4,
		},
	}
}

func TestHandleEvents(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()

	rec := doJSON(t, h, http.MethodPost, "/events", testEvents())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "success" || body["added"] != float64(2) {
		t.Errorf("body = %v, want status success, added 2", body)
	}
	if got := len(env.store.Added()); got != 2 {
		t.Errorf("indexed records = %d, want 2", got)
	}
}

func TestHandleEvents_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`{"not":"an array"}`))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleEvents_InvalidEvent(t *testing.T) {
	env := newTestEnv(t)
	events := testEvents()
	events[1].Actor = ""

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/events", events)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
	if got := len(env.store.Added()); got != 0 {
		t.Errorf("indexed records = %d, want 0", got)
	}
}

func TestHandleEvents_EmbeddingUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.EmbedBatchErr = errors.New("model offline")

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/events", testEvents())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503; body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleEvents_IndexUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddErr = errors.New("connection refused")

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/events", testEvents())
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502; body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleSnapshot(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/game_state_snapshot", testSnapshot())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "success" || body["t"] != float64(5) {
		t.Errorf("body = %v, want status success, t 5", body)
	}
	if got := len(env.store.Added()); got != 2 {
		t.Errorf("indexed records = %d, want 2 (hero and knight states)", got)
	}
}

func TestHandleSnapshot_BadImage(t *testing.T) {
	env := newTestEnv(t)
	snap := testSnapshot()
	snap.Image = "data:image/png;base64,%%%not-base64%%%"

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/game_state_snapshot", snap)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleQuery(t *testing.T) {
	env := newTestEnv(t)
	env.store.QueryResult = []index.Result{
		{ID: "1", Metadata: map[string]any{"actor": "hero"}, Distance: 0.1},
		{ID: "2", Metadata: map[string]any{"actor": "knight"}, Distance: 0.3},
	}

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/query", map[string]any{"query": "hero attacked", "k": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	results, ok := body["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("results = %v, want 2 hits", body["results"])
	}
	first := results[0].(map[string]any)
	if first["id"] != "1" {
		t.Errorf("first hit id = %v, want 1", first["id"])
	}
}

func TestHandleQuery_DefaultK(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/query", map[string]any{"query": "hero attacked"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if got := env.store.QueryCalls[0].K; got != defaultHTTPK {
		t.Errorf("k = %d, want %d", got, defaultHTTPK)
	}
}

func TestHandleQuery_EmptyText(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/query", map[string]any{"query": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleNewSession(t *testing.T) {
	env := newTestEnv(t)
	before := env.sessions.Current().ID()

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/new_session", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	after, _ := body["session"].(string)
	if after == "" || after == before {
		t.Errorf("session = %q, want a fresh id (was %q)", after, before)
	}
	if env.sessions.Current().ID() != after {
		t.Errorf("current session = %q, want %q", env.sessions.Current().ID(), after)
	}
}

func TestHandleGameEvent_NewGameRollsOver(t *testing.T) {
	env := newTestEnv(t)
	before := env.sessions.Current().ID()

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/game_event", map[string]any{"event_type": "new_game_started"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if env.sessions.Current().ID() == before {
		t.Error("session did not roll over on new_game_started")
	}
}

func TestHandleGameEvent_OtherTypesAcked(t *testing.T) {
	env := newTestEnv(t)
	before := env.sessions.Current().ID()

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/game_event", map[string]any{"event_type": "round_ended"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["event_type"] != "round_ended" {
		t.Errorf("event_type = %v, want round_ended", body["event_type"])
	}
	if env.sessions.Current().ID() != before {
		t.Error("session rolled over for a non-lifecycle event")
	}
}

func TestHandleSuggestion(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/ai_suggestion",
		map[string]any{"game_state": "Hero: 80% HP. Distance: close.", "timestamp": 42})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["suggestion"] != "Close the gap and pressure with light attacks." {
		t.Errorf("suggestion = %v", body["suggestion"])
	}
	if body["status"] != "success" || body["model_used"] != "test-llm" {
		t.Errorf("status/model_used = %v/%v, want success/test-llm", body["status"], body["model_used"])
	}
	if body["confidence"] != "High" || body["timestamp"] != float64(42) {
		t.Errorf("confidence/timestamp = %v/%v", body["confidence"], body["timestamp"])
	}
	if env.coach.Calls[0].GameState != "Hero: 80% HP. Distance: close." {
		t.Errorf("game state passed to coach = %q", env.coach.Calls[0].GameState)
	}
}

func TestHandleSuggestion_FallbackStatus(t *testing.T) {
	env := newTestEnv(t)
	env.coach.Result = suggestion.Suggestion{
		Text:       "Retreat and recover stamina.",
		Confidence: suggestion.ConfidenceMedium,
		Provider:   rules.ProviderName,
	}

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/ai_suggestion",
		map[string]any{"game_state": "Hero: 10% HP.", "timestamp": 7})
	body := decodeBody(t, rec)
	if body["status"] != "fallback" || body["model_used"] != rules.ProviderName {
		t.Errorf("status/model_used = %v/%v, want fallback/%s", body["status"], body["model_used"], rules.ProviderName)
	}
}

func TestHandleSuggestion_Always200(t *testing.T) {
	env := newTestEnv(t)
	env.coach.Err = errors.New("every provider failed")

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/ai_suggestion",
		map[string]any{"game_state": "Hero: 15% HP. Knight: 90% HP.", "timestamp": 9})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	text, _ := body["suggestion"].(string)
	if text == "" {
		t.Error("suggestion text is empty")
	}
	if body["status"] != "fallback" || body["model_used"] != rules.ProviderName {
		t.Errorf("status/model_used = %v/%v, want fallback/%s", body["status"], body["model_used"], rules.ProviderName)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	env.store.CountValue = 12
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["timestamp"] != float64(fixed.Unix()) {
		t.Errorf("timestamp = %v, want %d", body["timestamp"], fixed.Unix())
	}
	providers, _ := body["providers"].(map[string]any)
	if providers["embeddings"] != "test-embed" || providers["suggestion"] != "test-llm" {
		t.Errorf("providers = %v", providers)
	}
	if body["session"] != env.sessions.Current().ID() {
		t.Errorf("session = %v, want %s", body["session"], env.sessions.Current().ID())
	}
	if _, ok := body["queue_depth"]; !ok {
		t.Error("queue_depth missing from health response")
	}
	if body["indexed_records"] != float64(12) {
		t.Errorf("indexed_records = %v, want 12", body["indexed_records"])
	}
}

func TestSetResultCounts(t *testing.T) {
	env := newTestEnv(t)
	env.server.SetResultCounts(3, 2)

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/query", map[string]any{"query": "hero attacked"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := env.store.QueryCalls[0].K; got != 3 {
		t.Errorf("k = %d, want 3", got)
	}

	env.server.SetResultCounts(0, 0)
	doJSON(t, env.server.Handler(), http.MethodPost, "/query", map[string]any{"query": "hero attacked"})
	if got := env.store.QueryCalls[1].K; got != defaultHTTPK {
		t.Errorf("k after reset = %d, want %d", got, defaultHTTPK)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/events", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
