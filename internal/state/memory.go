package state

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps sessions in process memory with TTL eviction.
type MemoryRepository struct {
	sessions map[int64]*Session
	mu       sync.RWMutex
	ttl      time.Duration
}

// NewMemoryRepository creates an in-memory session repository.
func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryRepository{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
	}
}

// Get returns the session for the user, or nil when absent or expired.
func (r *MemoryRepository) Get(_ context.Context, userID int64) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	if !ok || time.Since(s.UpdatedAt) > r.ttl {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Set stores the session and refreshes its expiry.
func (r *MemoryRepository) Set(_ context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *session
	cp.UpdatedAt = time.Now()
	r.sessions[session.UserID] = &cp
	return nil
}

// Clear removes the user's session.
func (r *MemoryRepository) Clear(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	return nil
}

// Cleanup removes expired sessions and returns how many were dropped.
func (r *MemoryRepository) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for userID, s := range r.sessions {
		if time.Since(s.UpdatedAt) > r.ttl {
			delete(r.sessions, userID)
			removed++
		}
	}
	return removed
}
