package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManager_StartsWithSession(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	s := m.Current()
	if s == nil {
		t.Fatal("Current() = nil, want an active session")
	}
	if info, err := os.Stat(s.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("session dir %q not created: %v", s.Dir(), err)
	}
}

func TestManager_RolloverCreatesNewDirAndResetsSeq(t *testing.T) {
	root := t.TempDir()
	clock := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	m, err := newManager(root, func() time.Time { return clock })
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}

	first := m.Current()
	if got := first.NextSeq(); got != 0 {
		t.Fatalf("first.NextSeq() = %d, want 0", got)
	}
	if got := first.NextSeq(); got != 1 {
		t.Fatalf("first.NextSeq() = %d, want 1", got)
	}

	clock = clock.Add(time.Minute)
	second, err := m.Rollover()
	if err != nil {
		t.Fatalf("Rollover: %v", err)
	}
	if second.Dir() == first.Dir() {
		t.Fatalf("rollover reused directory %q", second.Dir())
	}
	if got := second.NextSeq(); got != 0 {
		t.Fatalf("second.NextSeq() = %d, want 0 after rollover", got)
	}
	if m.Current() != second {
		t.Fatal("Current() does not return the rolled-over session")
	}

	// The old session keeps its directory and counter.
	if got := first.NextSeq(); got != 2 {
		t.Fatalf("first.NextSeq() = %d after rollover, want 2", got)
	}
}

func TestManager_RolloverSameSecondGetsDistinctDir(t *testing.T) {
	root := t.TempDir()
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	m, err := newManager(root, func() time.Time { return fixed })
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}

	first := m.Current()
	second, err := m.Rollover()
	if err != nil {
		t.Fatalf("Rollover: %v", err)
	}
	if first.Dir() == second.Dir() {
		t.Fatalf("same-second rollover reused directory %q", first.Dir())
	}
	if filepath.Dir(second.Dir()) != root {
		t.Fatalf("session dir %q not under root %q", second.Dir(), root)
	}
}

func TestSession_IDMatchesDirBasename(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	s := m.Current()
	if s.ID() != filepath.Base(s.Dir()) {
		t.Fatalf("ID() = %q, want %q", s.ID(), filepath.Base(s.Dir()))
	}
}
