package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/helixir/paper-feed-service/internal/domain"
)

var _ BookmarkStore = (*MemoryStore)(nil)

// MemoryStore keeps bookmarks and preferences for the lifetime of the process.
type MemoryStore struct {
	mu          sync.RWMutex
	bookmarks   map[string]struct{}
	preferences map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookmarks:   make(map[string]struct{}),
		preferences: make(map[string]string),
	}
}

// ListBookmarks returns the bookmarked ids in sorted order.
func (s *MemoryStore) ListBookmarks(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.bookmarks))
	for id := range s.bookmarks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) AddBookmark(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks[id] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveBookmark(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bookmarks, id)
	return nil
}

func (s *MemoryStore) GetPreference(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.preferences[key]
	if !ok {
		return "", domain.NewNotFoundError("preference", key)
	}
	return v, nil
}

func (s *MemoryStore) SetPreference(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[key] = value
	return nil
}
