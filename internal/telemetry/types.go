// Package telemetry defines the wire-level data model for the game bridge:
// discrete combat events, per-actor state snapshots, and the helpers that
// flatten composite fields into index-storable scalars.
//
// Field names mirror the JSON the game client emits ("t", "actor", "pos",
// "dir", "hp", "stamina", "action"); timestamps are monotonically increasing
// within a capture session.
package telemetry

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Position is a 2D coordinate on the arena, serialized as a JSON array.
type Position [2]float64

// Flatten renders the position as a comma-joined string, the only form the
// vector index accepts for composite metadata. Note that equality and
// ordering of flattened positions is not meaningful without re-parsing.
func (p Position) Flatten() string {
	return strconv.FormatFloat(p[0], 'g', -1, 64) + "," + strconv.FormatFloat(p[1], 'g', -1, 64)
}

// ParsePosition is the inverse of [Position.Flatten].
func ParsePosition(s string) (Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("telemetry: parse position %q: want 2 components, got %d", s, len(parts))
	}
	var p Position
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Position{}, fmt.Errorf("telemetry: parse position %q: %w", s, err)
		}
		p[i] = v
	}
	return p, nil
}

// Event is one discrete game action. Events are immutable once created and
// identified by (Timestamp, Actor).
type Event struct {
	// Timestamp is the game clock at which the action happened. Monotonically
	// increasing within a session.
	Timestamp float64 `json:"t"`

	// Actor is the character id performing the action (e.g. "hero", "knight").
	Actor string `json:"actor"`

	// Action is the action label (e.g. "attack", "block", "roll").
	Action string `json:"action"`

	// Direction is the facing direction (-1 left, 1 right).
	Direction int `json:"dir"`

	// Health is the actor's health fraction in [0, 1].
	Health float64 `json:"hp"`

	// Pos is the actor's arena position.
	Pos Position `json:"pos"`
}

// Validate reports whether the event carries all required fields with values
// in range.
func (e Event) Validate() error {
	var errs []error
	if e.Actor == "" {
		errs = append(errs, errors.New("actor is required"))
	}
	if e.Action == "" {
		errs = append(errs, errors.New("action is required"))
	}
	if e.Health < 0 || e.Health > 1 {
		errs = append(errs, fmt.Errorf("hp %.3f is out of range [0, 1]", e.Health))
	}
	return errors.Join(errs...)
}

// ID returns the deterministic index id for the event: the string form of its
// timestamp. Duplicate timestamps across actors collide by design of the
// original batch format, which carries one actor per tick.
func (e Event) ID() string {
	return strconv.FormatFloat(e.Timestamp, 'g', -1, 64)
}

// Text renders the descriptive sentence that is embedded for this event.
func (e Event) Text() string {
	return fmt.Sprintf("%s %s dir %d hp %.2f", e.Actor, e.Action, e.Direction, e.Health)
}

// Metadata returns the event's fields with composite values flattened to
// scalars, ready for the vector index.
func (e Event) Metadata() map[string]any {
	return map[string]any{
		"t":      e.Timestamp,
		"actor":  e.Actor,
		"action": e.Action,
		"dir":    e.Direction,
		"hp":     e.Health,
		"pos":    e.Pos.Flatten(),
	}
}

// CharacterState is a richer per-actor snapshot produced once per tick for
// each tracked actor.
type CharacterState struct {
	Timestamp float64  `json:"t"`
	Actor     string   `json:"actor"`
	Pos       Position `json:"pos"`
	Direction int      `json:"dir"`
	Health    float64  `json:"hp"`
	Stamina   float64  `json:"stamina"`
	Action    string   `json:"action"`
}

// Validate reports whether the state carries all required fields with values
// in range.
func (s CharacterState) Validate() error {
	var errs []error
	if s.Actor == "" {
		errs = append(errs, errors.New("actor is required"))
	}
	if s.Action == "" {
		errs = append(errs, errors.New("action is required"))
	}
	if s.Health < 0 || s.Health > 1 {
		errs = append(errs, fmt.Errorf("hp %.3f is out of range [0, 1]", s.Health))
	}
	if s.Stamina < 0 || s.Stamina > 1 {
		errs = append(errs, fmt.Errorf("stamina %.3f is out of range [0, 1]", s.Stamina))
	}
	return errors.Join(errs...)
}

// ID returns the deterministic index id for the state: "{timestamp}-{actor}".
func (s CharacterState) ID() string {
	return strconv.FormatFloat(s.Timestamp, 'g', -1, 64) + "-" + s.Actor
}

// Text renders the descriptive sentence that is embedded for this state.
func (s CharacterState) Text() string {
	return fmt.Sprintf("%s is performing %s at position %s with %.2f HP and %.2f stamina",
		s.Actor, s.Action, s.Pos.Flatten(), s.Health, s.Stamina)
}

// Metadata returns the state's fields with composite values flattened to
// scalars, ready for the vector index.
func (s CharacterState) Metadata() map[string]any {
	return map[string]any{
		"t":       s.Timestamp,
		"actor":   s.Actor,
		"action":  s.Action,
		"dir":     s.Direction,
		"hp":      s.Health,
		"stamina": s.Stamina,
		"pos":     s.Pos.Flatten(),
	}
}

// Snapshot pairs a screenshot with the two tracked actor states captured at
// the same game tick.
type Snapshot struct {
	// Image is the screenshot as a base64 data URI
	// ("data:image/png;base64,...") or a bare base64 string.
	Image string `json:"image"`

	HeroState   CharacterState `json:"hero_state"`
	KnightState CharacterState `json:"knight_state"`
}

// Validate checks both states and the shared-timestamp invariant.
func (s Snapshot) Validate() error {
	var errs []error
	if err := s.HeroState.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hero_state: %w", err))
	}
	if err := s.KnightState.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("knight_state: %w", err))
	}
	if s.HeroState.Timestamp != s.KnightState.Timestamp {
		errs = append(errs, fmt.Errorf("hero_state.t %v and knight_state.t %v differ",
			s.HeroState.Timestamp, s.KnightState.Timestamp))
	}
	return errors.Join(errs...)
}

// DecodeImage decodes the snapshot's image payload into raw bytes. A data-URI
// prefix ("data:image/png;base64,") is stripped when present.
func (s Snapshot) DecodeImage() ([]byte, error) {
	payload := s.Image
	if i := strings.IndexByte(payload, ','); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}
	if payload == "" {
		return nil, errors.New("telemetry: decode image: empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("telemetry: decode image: %w", err)
	}
	return data, nil
}
