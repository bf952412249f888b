package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/observe"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/session"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/telemetry"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testStates(t float64) (telemetry.CharacterState, telemetry.CharacterState) {
	hero := telemetry.CharacterState{
		Timestamp: t, Actor: "hero", Action: "attack",
		Pos: telemetry.Position{10, 20}, Direction: 1, Health: 0.8, Stamina: 0.6,
	}
	knight := telemetry.CharacterState{
		Timestamp: t, Actor: "knight", Action: "block",
		Pos: telemetry.Position{30, 20}, Direction: -1, Health: 0.5, Stamina: 0.4,
	}
	return hero, knight
}

func TestPersister_WritesImageAndSidecar(t *testing.T) {
	mgr, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	p := NewPersister(Config{Metrics: testMetrics(t)})

	hero, knight := testStates(12)
	p.Enqueue(Artifact{
		Session: mgr.Current(),
		Image:   []byte("not really a png"),
		Hero:    hero,
		Knight:  knight,
	})
	p.Close()

	dir := mgr.Current().Dir()
	img, err := os.ReadFile(filepath.Join(dir, "snapshot_0.png"))
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if string(img) != "not really a png" {
		t.Errorf("image bytes = %q", img)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "snapshot_0.json"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("sidecar is not valid JSON: %v", err)
	}
	if doc["t"] != float64(12) {
		t.Errorf("sidecar t = %v, want 12", doc["t"])
	}
	heroDoc, ok := doc["hero_state"].(map[string]any)
	if !ok {
		t.Fatalf("hero_state missing or wrong shape: %v", doc["hero_state"])
	}
	// Positions must be flattened so the sidecar mirrors the index metadata.
	if heroDoc["pos"] != "10,20" {
		t.Errorf("hero pos = %v, want \"10,20\"", heroDoc["pos"])
	}
}

func TestPersister_SequenceNumbersIncrease(t *testing.T) {
	mgr, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	p := NewPersister(Config{Metrics: testMetrics(t)})

	for i := 0; i < 3; i++ {
		hero, knight := testStates(float64(i))
		p.Enqueue(Artifact{Session: mgr.Current(), Image: []byte{0x89}, Hero: hero, Knight: knight})
	}
	p.Close()

	for i := 0; i < 3; i++ {
		name := filepath.Join(mgr.Current().Dir(), fmt.Sprintf("snapshot_%d.png", i))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing artifact %q: %v", name, err)
		}
	}
}

func TestPersister_PendingArtifactsSurviveRollover(t *testing.T) {
	mgr, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	p := NewPersister(Config{Metrics: testMetrics(t)})

	old := mgr.Current()
	hero, knight := testStates(1)
	p.Enqueue(Artifact{Session: old, Image: []byte{1}, Hero: hero, Knight: knight})

	fresh, err := mgr.Rollover()
	if err != nil {
		t.Fatalf("Rollover: %v", err)
	}
	hero2, knight2 := testStates(2)
	p.Enqueue(Artifact{Session: fresh, Image: []byte{2}, Hero: hero2, Knight: knight2})
	p.Close()

	// The artifact enqueued before the rollover lands in the old directory.
	if _, err := os.Stat(filepath.Join(old.Dir(), "snapshot_0.png")); err != nil {
		t.Errorf("pre-rollover artifact missing from old session dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fresh.Dir(), "snapshot_0.png")); err != nil {
		t.Errorf("post-rollover artifact missing from new session dir: %v", err)
	}
}

func TestPersister_DropsOldestWhenFull(t *testing.T) {
	// Build the persister by hand so no worker drains the queue.
	p := &Persister{
		queue:   make(chan Artifact, 2),
		metrics: testMetrics(t),
	}
	mgr, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	for i := 1; i <= 3; i++ {
		hero, knight := testStates(float64(i))
		p.Enqueue(Artifact{Session: mgr.Current(), Hero: hero, Knight: knight})
	}

	if got := p.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}
	// The first artifact was dropped; 2 and 3 remain in order.
	first := <-p.queue
	if first.Hero.Timestamp != 2 {
		t.Errorf("oldest surviving artifact t = %v, want 2", first.Hero.Timestamp)
	}
	second := <-p.queue
	if second.Hero.Timestamp != 3 {
		t.Errorf("newest artifact t = %v, want 3", second.Hero.Timestamp)
	}
}

func TestPersister_ContinuesAfterWriteError(t *testing.T) {
	mgr, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	bad := mgr.Current()
	// Remove the session directory so the first write fails.
	if err := os.RemoveAll(bad.Dir()); err != nil {
		t.Fatalf("remove dir: %v", err)
	}
	good, err := mgr.Rollover()
	if err != nil {
		t.Fatalf("Rollover: %v", err)
	}

	p := NewPersister(Config{Metrics: testMetrics(t)})
	hero, knight := testStates(1)
	p.Enqueue(Artifact{Session: bad, Image: []byte{1}, Hero: hero, Knight: knight})
	p.Enqueue(Artifact{Session: good, Image: []byte{2}, Hero: hero, Knight: knight})
	p.Close()

	if _, err := os.Stat(filepath.Join(good.Dir(), "snapshot_0.png")); err != nil {
		t.Errorf("artifact after a failed write was not saved: %v", err)
	}
}
