package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationState is the full observable state of one chat session.
type ConversationState struct {
	Messages  []Message `json:"messages"`
	IsLoading bool      `json:"is_loading"`
	Error     string    `json:"error,omitempty"` // empty when no error is showing
}

// Conversation is the persisted envelope around a ConversationState.
type Conversation struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	State     ConversationState `db:"state" json:"state"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}
