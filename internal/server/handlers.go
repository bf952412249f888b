package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/observe"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/telemetry"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/index"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion/rules"
)

// handleEvents ingests a JSON array of game events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var events []telemetry.Event
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Detail: "body must be a JSON array of events: " + err.Error()})
		return
	}
	if err := s.gateway.IngestEvents(r.Context(), events); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "added": len(events)})
}

// handleSnapshot ingests one screenshot plus both character states.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap telemetry.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Detail: "malformed snapshot: " + err.Error()})
		return
	}
	if err := s.gateway.IngestSnapshot(r.Context(), snap); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "t": snap.HeroState.Timestamp})
}

// queryRequest is the body of POST /query.
type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// queryResult is one hit in a query response.
type queryResult struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
	Distance float32        `json:"distance"`
}

func toQueryResults(results []index.Result) []queryResult {
	out := make([]queryResult, len(results))
	for i, res := range results {
		out[i] = queryResult{ID: res.ID, Metadata: res.Metadata, Distance: res.Distance}
	}
	return out
}

// handleQuery answers a free-text similarity query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Detail: "malformed query: " + err.Error()})
		return
	}
	k := req.K
	if k <= 0 {
		k = int(s.httpK.Load())
	}
	results, err := s.retrieval.Query(r.Context(), req.Query, k)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": toQueryResults(results)})
}

// handleNewSession rolls the capture session over to a fresh directory.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Rollover()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Detail: err.Error()})
		return
	}
	observe.Logger(r.Context()).Info("session rolled over", "session", sess.ID())
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "session": sess.ID()})
}

// gameEventRequest is the body of POST /game_event.
type gameEventRequest struct {
	EventType string `json:"event_type"`
}

// handleGameEvent processes lifecycle notifications from the game client.
// "new_game_started" triggers a session rollover; other event types are
// acknowledged and ignored.
func (s *Server) handleGameEvent(w http.ResponseWriter, r *http.Request) {
	var req gameEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Detail: "malformed game event: " + err.Error()})
		return
	}
	if req.EventType == "new_game_started" {
		sess, err := s.sessions.Rollover()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Detail: err.Error()})
			return
		}
		observe.Logger(r.Context()).Info("new game started, session rolled over", "session", sess.ID())
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "event_type": req.EventType})
}

// suggestionRequest is the body of POST /ai_suggestion.
type suggestionRequest struct {
	GameState string `json:"game_state"`
	Timestamp int64  `json:"timestamp"`
}

// suggestionResponse mirrors the response shape the coaching UI expects.
type suggestionResponse struct {
	Suggestion string `json:"suggestion"`
	Confidence string `json:"confidence"`
	Timestamp  int64  `json:"timestamp"`
	Status     string `json:"status"`
	ModelUsed  string `json:"model_used"`
}

// handleSuggestion serves a tactical suggestion. The response is always 200
// with usable text: provider failures degrade through the fallback chain,
// and if even that errors a last-resort rule evaluation answers.
func (s *Server) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Detail: "malformed suggestion request: " + err.Error()})
		return
	}

	ctx := r.Context()
	start := time.Now()
	sug, err := s.coach.Suggest(ctx, req.GameState, req.Timestamp)
	s.metrics.SuggestionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		observe.Logger(ctx).Warn("all suggestion providers failed, using rule table directly", "error", err)
		sug, _ = rules.New().Suggest(ctx, req.GameState, req.Timestamp)
		sug.Provider = rules.ProviderName
	}

	status := "success"
	if sug.Provider == rules.ProviderName {
		status = "fallback"
	}
	s.metrics.RecordSuggestion(ctx, sug.Provider, status)

	writeJSON(w, http.StatusOK, suggestionResponse{
		Suggestion: sug.Text,
		Confidence: string(sug.Confidence),
		Timestamp:  req.Timestamp,
		Status:     status,
		ModelUsed:  sug.Provider,
	})
}

// handleHealth reports overall status plus pipeline introspection: active
// session, artifact queue depth, indexed record count, and the configured
// providers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": now().Unix(),
		"providers": map[string]string{
			"embeddings": s.embeddingsModel,
			"suggestion": s.coach.Name(),
		},
	}
	if s.sessions != nil {
		resp["session"] = s.sessions.Current().ID()
	}
	if s.persister != nil {
		resp["queue_depth"] = s.persister.Pending()
	}
	if s.index != nil {
		if n, err := s.index.Count(r.Context()); err == nil {
			resp["indexed_records"] = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
