// Package session tracks the active capture session and hands out artifact
// sequence numbers.
//
// A session corresponds to one rollout of the game: all snapshot artifacts
// captured during it land in the same timestamped directory with a
// monotonically increasing sequence number. Rolling over ends the current
// session and starts a fresh one with a new directory and a counter reset to
// zero. Artifacts enqueued before a rollover keep writing to the old
// directory because they hold the session they were captured under.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// dirTimeFormat names session directories by their UTC start time.
const dirTimeFormat = "20060102T150405Z"

// Session is one capture session. It is immutable apart from the sequence
// counter and safe for concurrent use.
type Session struct {
	id  string
	dir string
	seq atomic.Int64
}

// ID returns the session identifier (the directory basename).
func (s *Session) ID() string { return s.id }

// Dir returns the absolute directory artifacts of this session are written
// to.
func (s *Session) Dir() string { return s.dir }

// NextSeq returns the next artifact sequence number, starting at 0.
func (s *Session) NextSeq() int64 {
	return s.seq.Add(1) - 1
}

// Manager owns the current session and creates new ones on rollover.
//
// Manager is safe for concurrent use.
type Manager struct {
	root string
	now  func() time.Time

	mu      sync.Mutex
	current *Session
}

// NewManager creates a Manager rooted at root and starts the first session.
// The root directory is created if it does not exist.
func NewManager(root string) (*Manager, error) {
	return newManager(root, time.Now)
}

func newManager(root string, now func() time.Time) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("session: create root dir: %w", err)
	}
	m := &Manager{root: root, now: now}
	if _, err := m.Rollover(); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the active session.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Rollover ends the current session and starts a new one with a fresh
// directory and a sequence counter reset to zero. It returns the new
// session.
func (m *Manager) Rollover() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.now().UTC().Format(dirTimeFormat)
	dir := filepath.Join(m.root, id)
	// Concurrent rollovers within the same second would collide on the
	// directory name; suffix until the name is free.
	for i := 1; ; i++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		dir = filepath.Join(m.root, fmt.Sprintf("%s-%d", id, i))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create session dir: %w", err)
	}
	m.current = &Session{id: filepath.Base(dir), dir: dir}
	return m.current, nil
}
