package moderation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the block list in process memory. It is used in development
// and tests; entries do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]BlockEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]BlockEntry)}
}

func (s *MemoryStore) Block(_ context.Context, hostID, username string) error {
	key := NormalizeUsername(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	byHost, ok := s.entries[hostID]
	if !ok {
		byHost = make(map[string]BlockEntry)
		s.entries[hostID] = byHost
	}
	if _, exists := byHost[key]; !exists {
		byHost[key] = BlockEntry{Username: key, BlockedBy: hostID, CreatedAt: time.Now().UTC()}
	}
	return nil
}

func (s *MemoryStore) Unblock(_ context.Context, hostID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries[hostID], NormalizeUsername(username))
	return nil
}

func (s *MemoryStore) IsBlocked(_ context.Context, username string, hostIDs ...string) (bool, error) {
	key := NormalizeUsername(username)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, hostID := range hostIDs {
		if _, ok := s.entries[hostID][key]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) List(_ context.Context, hostID string) ([]BlockEntry, error) {
	s.mu.RLock()
	out := make([]BlockEntry, 0, len(s.entries[hostID]))
	for _, e := range s.entries[hostID] {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
