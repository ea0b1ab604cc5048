package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// SendMessageRequest defines the body for posting a user message to a chat.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// AdminLoginRequest defines the body for the admin login endpoint.
type AdminLoginRequest struct {
	Password string `json:"password"`
}

// --- Response Structs ---

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatResponse is the API representation of a conversation.
type ChatResponse struct {
	ID        uuid.UUID `json:"id"`
	Messages  []Message `json:"messages"`
	IsLoading bool      `json:"is_loading"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateChatResponse is returned when a new chat is opened. Token authorizes
// further calls for this chat only.
type CreateChatResponse struct {
	Chat  ChatResponse `json:"chat"`
	Token string       `json:"token"`
}

// ListChatsResponse defines the response structure for listing chats.
type ListChatsResponse struct {
	Chats []ChatResponse `json:"chats"`
}

// PromptsResponse lists the suggested prompts offered to a new visitor.
type PromptsResponse struct {
	Prompts []string `json:"prompts"`
}

// AuthResponse defines the response body for successful admin authentication.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
}

// NewChatResponse maps a stored conversation to its API representation.
func NewChatResponse(c *Conversation) ChatResponse {
	msgs := c.State.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return ChatResponse{
		ID:        c.ID,
		Messages:  msgs,
		IsLoading: c.State.IsLoading,
		Error:     c.State.Error,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
