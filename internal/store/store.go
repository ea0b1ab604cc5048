package store

import (
	"context"

	"concierge-backend/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// Store defines the persistence operations for conversations.
// Implementations live in the memory, postgres and redis subpackages.
type Store interface {
	// CreateConversation inserts c. CreatedAt and UpdatedAt are set by the store.
	CreateConversation(ctx context.Context, c *models.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	// SaveConversation replaces the stored state of an existing conversation.
	// Returns ErrNotFound if it does not exist.
	SaveConversation(ctx context.Context, c *models.Conversation) error
	// ListConversations returns conversations newest first.
	ListConversations(ctx context.Context, limit, offset int) ([]models.Conversation, error)
	Close() error
}

// ClampPage applies the default and maximum page size used by every backend.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
