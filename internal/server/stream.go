package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/observe"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/telemetry"
)

// maxStreamMessageBytes bounds a single stream message. Snapshot frames carry
// a base64 PNG screenshot, so the library's 32 KiB default is far too small.
const maxStreamMessageBytes = 16 << 20

// streamEnvelope is used to sniff the shape of an incoming object message.
type streamEnvelope struct {
	Type  string `json:"type"`
	Query string `json:"query"`
}

// streamAck is the reply sent for each processed stream message.
type streamAck struct {
	Status string `json:"status"`
	Added  int    `json:"added,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// handleStream upgrades to a websocket and multiplexes the three telemetry
// message kinds over one connection: a JSON array is an event batch, an
// object with "type":"screenshot" is a snapshot, and an object with a
// "query" field is a similarity query answered in-band. The connection
// closes when the client goes away or sends unparseable JSON framing.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")
	conn.SetReadLimit(maxStreamMessageBytes)

	ctx := r.Context()
	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(ctx, -1)
	observe.Logger(ctx).Info("telemetry stream connected", "remote", r.RemoteAddr)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			observe.Logger(ctx).Debug("telemetry stream closed", "error", err)
			return
		}
		reply := s.handleStreamMessage(ctx, data)
		if reply == nil {
			continue
		}
		if err := writeStreamJSON(ctx, conn, reply); err != nil {
			observe.Logger(ctx).Debug("telemetry stream write failed", "error", err)
			return
		}
	}
}

// handleStreamMessage dispatches one stream message and returns the reply to
// send, or nil for no reply.
func (s *Server) handleStreamMessage(ctx context.Context, data []byte) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	// A JSON array is an event batch.
	if trimmed[0] == '[' {
		var events []telemetry.Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return streamAck{Status: "error", Detail: "malformed event batch: " + err.Error()}
		}
		if err := s.gateway.IngestEvents(ctx, events); err != nil {
			return streamAck{Status: "error", Detail: err.Error()}
		}
		return streamAck{Status: "success", Added: len(events)}
	}

	var env streamEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return streamAck{Status: "error", Detail: "malformed message: " + err.Error()}
	}

	switch {
	case env.Type == "screenshot":
		var snap telemetry.Snapshot
		if err := json.Unmarshal(trimmed, &snap); err != nil {
			return streamAck{Status: "error", Detail: "malformed snapshot: " + err.Error()}
		}
		if err := s.gateway.IngestSnapshot(ctx, snap); err != nil {
			return streamAck{Status: "error", Detail: err.Error()}
		}
		return streamAck{Status: "success"}

	case env.Query != "":
		results, err := s.retrieval.Query(ctx, env.Query, int(s.streamK.Load()))
		if err != nil {
			return streamAck{Status: "error", Detail: err.Error()}
		}
		return map[string]any{"results": toQueryResults(results)}

	default:
		return streamAck{Status: "error", Detail: "unrecognized message"}
	}
}

func writeStreamJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
