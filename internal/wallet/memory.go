package wallet

import (
	"context"
	"sync"
	"time"
)

// memoryCleanupInterval caps how often idle sessions are swept.
const memoryCleanupInterval = 10 * time.Minute

type memoryEntry struct {
	state    State
	lastSeen time.Time
}

// MemoryStore keeps wallets in process memory. With a TTL, sessions idle
// for longer than it are forgotten and start over at the initial balance.
type MemoryStore struct {
	mu       sync.Mutex
	initial  int
	ttl      time.Duration
	sessions map[string]memoryEntry
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store where new sessions start with initial
// tokens and are never evicted.
func NewMemoryStore(initial int) *MemoryStore {
	return NewMemoryStoreWithTTL(initial, 0)
}

// NewMemoryStoreWithTTL creates a store that evicts sessions idle for ttl.
// A ttl of zero disables eviction.
func NewMemoryStoreWithTTL(initial int, ttl time.Duration) *MemoryStore {
	m := &MemoryStore{
		initial:  initial,
		ttl:      ttl,
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go m.cleanupRoutine(min(ttl, memoryCleanupInterval))
	}
	return m
}

func (m *MemoryStore) expired(e memoryEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.lastSeen) > m.ttl
}

func (m *MemoryStore) update(sessionID string, fn func(*State)) (State, error) {
	if err := validSession(sessionID); err != nil {
		return State{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.sessions[sessionID]
	if !ok || m.expired(entry, now) {
		entry = memoryEntry{state: State{Tokens: m.initial}}
	}
	fn(&entry.state)
	entry.lastSeen = now
	m.sessions[sessionID] = entry
	return entry.state, nil
}

func (m *MemoryStore) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// cleanup drops sessions idle for longer than the TTL.
func (m *MemoryStore) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, entry := range m.sessions {
		if m.expired(entry, now) {
			delete(m.sessions, id)
		}
	}
}

func (m *MemoryStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (State, error) {
	return m.update(sessionID, func(*State) {})
}

func (m *MemoryStore) Login(_ context.Context, sessionID string) (State, error) {
	return m.update(sessionID, func(s *State) { s.LoggedIn = true })
}

func (m *MemoryStore) Logout(_ context.Context, sessionID string) (State, error) {
	return m.update(sessionID, func(s *State) { s.LoggedIn = false })
}

func (m *MemoryStore) Spend(_ context.Context, sessionID string, n int) (State, bool, error) {
	ok := false
	state, err := m.update(sessionID, func(s *State) {
		if n > 0 && s.Tokens >= n {
			s.Tokens -= n
			ok = true
		}
	})
	return state, ok, err
}

func (m *MemoryStore) Add(_ context.Context, sessionID string, n int) (State, error) {
	if n <= 0 {
		return State{}, invalidAmount(n)
	}
	return m.update(sessionID, func(s *State) { s.Tokens += n })
}

// Close stops the eviction goroutine. It is safe to call more than once.
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
