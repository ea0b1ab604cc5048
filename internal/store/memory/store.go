// Package memory keeps conversations in process memory. It is the default
// backend and the one used by tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"concierge-backend/internal/models"
	"concierge-backend/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ store.Store = (*MemoryStore)(nil)

type MemoryStore struct {
	mu    sync.RWMutex
	now   func() time.Time
	byID  map[uuid.UUID]models.Conversation
	order []uuid.UUID // creation order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:  time.Now,
		byID: make(map[uuid.UUID]models.Conversation),
	}
}

func (s *MemoryStore) CreateConversation(_ context.Context, c *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[c.ID]; exists {
		return errors.Errorf("conversation %s already exists", c.ID)
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.byID[c.ID] = clone(*c)
	s.order = append(s.order, c.ID)
	return nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := clone(c)
	return &out, nil
}

func (s *MemoryStore) SaveConversation(_ context.Context, c *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()
	s.byID[c.ID] = clone(*c)
	return nil
}

func (s *MemoryStore) ListConversations(_ context.Context, limit, offset int) ([]models.Conversation, error) {
	limit, offset = store.ClampPage(limit, offset)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, 0, limit)
	for i := len(s.order) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, clone(s.byID[s.order[i]]))
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func clone(c models.Conversation) models.Conversation {
	c.State.Messages = slices.Clone(c.State.Messages)
	return c
}
