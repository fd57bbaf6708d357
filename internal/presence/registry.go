// Package presence tracks best-effort liveness of participants. Entries are
// a hint for call routing, not a source of truth; losing them on restart is
// acceptable.
package presence

import (
	"context"
	"sync"
)

// Registry maps a participant identity to an online flag
type Registry interface {
	// SetOnline marks a participant online or offline; idempotent overwrite
	SetOnline(ctx context.Context, userID string, online bool) error
	// IsOnline reports the current flag for a participant
	IsOnline(ctx context.Context, userID string) (bool, error)
	// ListAvailable returns all identities currently marked online.
	// Snapshot semantics: a concurrent SetOnline may or may not be reflected.
	ListAvailable(ctx context.Context) ([]string, error)
}

// MemoryRegistry is the in-process Registry implementation. State lives only
// for the process lifetime.
type MemoryRegistry struct {
	mu     sync.RWMutex
	online map[string]bool
}

// NewMemoryRegistry creates an empty in-process registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		online: make(map[string]bool),
	}
}

// SetOnline marks a participant online or offline. Offline entries are
// removed entirely so the map only holds live participants.
func (r *MemoryRegistry) SetOnline(_ context.Context, userID string, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if online {
		r.online[userID] = true
	} else {
		delete(r.online, userID)
	}
	return nil
}

// IsOnline reports whether the participant is currently marked online
func (r *MemoryRegistry) IsOnline(_ context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.online[userID], nil
}

// ListAvailable returns a snapshot of all online identities
func (r *MemoryRegistry) ListAvailable(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.online))
	for id := range r.online {
		ids = append(ids, id)
	}
	return ids, nil
}
