package blacklist

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]models.BlacklistEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]models.BlacklistEntry)}
}

func (r *MemoryRepository) Add(_ context.Context, entry *models.BlacklistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.TokenID]; !ok {
		r.entries[entry.TokenID] = *entry
	}
	return nil
}

func (r *MemoryRepository) Exists(_ context.Context, tokenID string, now time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[tokenID]
	return ok && e.ExpiresAt.After(now), nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, e := range r.entries {
		if !e.ExpiresAt.After(now) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}
