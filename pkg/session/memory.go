package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default, in-process store. Suitable for single-server
// deployments; use S3Store when sessions must survive the process.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*storedSnapshot
	closed    bool
	done      chan struct{}
	onEvict   func(sessionID string)
}

type storedSnapshot struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStoreOption configures MemoryStore behavior.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval sets how often expired snapshots are purged.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(c *memoryStoreConfig) {
		c.cleanupInterval = d
	}
}

// NewMemoryStore creates an in-memory store with a background purge loop.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	cfg := &memoryStoreConfig{
		cleanupInterval: 1 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &MemoryStore{
		snapshots: make(map[string]*storedSnapshot),
		done:      make(chan struct{}),
	}

	go store.cleanupLoop(cfg.cleanupInterval)
	return store
}

func (m *MemoryStore) Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	m.snapshots[sessionID] = &storedSnapshot{
		data:      append([]byte(nil), data...),
		expiresAt: expiresAt,
	}
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	s, ok := m.snapshots[sessionID]
	if !ok || time.Now().After(s.expiresAt) {
		return nil, nil
	}

	return append([]byte(nil), s.data...), nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	delete(m.snapshots, sessionID)
	return nil
}

func (m *MemoryStore) Touch(ctx context.Context, sessionID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	if s, ok := m.snapshots[sessionID]; ok {
		s.expiresAt = expiresAt
	}
	return nil
}

func (m *MemoryStore) SaveAll(ctx context.Context, snapshots map[string]Stored) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	for id, s := range snapshots {
		m.snapshots[id] = &storedSnapshot{
			data:      append([]byte(nil), s.Data...),
			expiresAt: s.ExpiresAt,
		}
	}
	return nil
}

// Close stops the purge loop and drops all snapshots.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)
	m.snapshots = nil
	return nil
}

// OnEvict registers fn to run with each session ID the purge loop drops on
// expiry. Explicit Delete calls do not notify.
func (m *MemoryStore) OnEvict(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// Count returns the number of stored snapshots, for monitoring and tests.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

func (m *MemoryStore) cleanupLoop(interval time.Duration) {
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

func (m *MemoryStore) cleanup() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	now := time.Now()
	var evicted []string
	for id, s := range m.snapshots {
		if now.After(s.expiresAt) {
			delete(m.snapshots, id)
			evicted = append(evicted, id)
		}
	}
	fn := m.onEvict
	m.mu.Unlock()

	// Notify outside the lock; the callback may call back into the store.
	if fn != nil {
		for _, id := range evicted {
			fn(id)
		}
	}
}
