package handlers

import (
	"context"
	"net/http"

	"concierge-backend/internal/gateway"
	"concierge-backend/internal/models"
	"concierge-backend/internal/services"
	"concierge-backend/internal/store"
	"concierge-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxMessageBody = 16 << 10

// ChatService defines the interface expected from the chat service.
type ChatService interface {
	CreateChat(ctx context.Context) (*models.Conversation, error)
	GetChat(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	SendMessage(ctx context.Context, id uuid.UUID, text string) (*models.Conversation, error)
}

// TokenIssuer issues per-chat access tokens.
type TokenIssuer interface {
	IssueChatToken(chatID uuid.UUID) (string, error)
}

// ChatHandlers handles HTTP requests related to chats.
type ChatHandlers struct {
	chatService ChatService
	tokens      TokenIssuer
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(chatService ChatService, tokens TokenIssuer) *ChatHandlers {
	return &ChatHandlers{
		chatService: chatService,
		tokens:      tokens,
	}
}

// HandleListPrompts handles GET /v1/prompts.
func (h *ChatHandlers) HandleListPrompts(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, models.PromptsResponse{Prompts: gateway.SuggestedPrompts})
}

// HandleCreateChat handles POST /v1/chats.
func (h *ChatHandlers) HandleCreateChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.chatService.CreateChat(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("create chat failed")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to create chat")
		return
	}

	token, err := h.tokens.IssueChatToken(chat.ID)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to create chat")
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, models.CreateChatResponse{
		Chat:  models.NewChatResponse(chat),
		Token: token,
	})
}

// HandleGetChat handles GET /v1/chats/{chatID}.
func (h *ChatHandlers) HandleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	chat, err := h.chatService.GetChat(r.Context(), chatID)
	if err != nil {
		respondChatError(w, chatID, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.NewChatResponse(chat))
}

// HandleSendMessage handles POST /v1/chats/{chatID}/messages. The reply is
// produced in the background; clients poll HandleGetChat until is_loading
// clears.
func (h *ChatHandlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := httputil.DecodeJSON(w, r, maxMessageBody, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	chat, err := h.chatService.SendMessage(r.Context(), chatID, req.Message)
	if err != nil {
		respondChatError(w, chatID, err)
		return
	}
	httputil.RespondJSON(w, http.StatusAccepted, models.NewChatResponse(chat))
}

func chatIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid chat ID format")
		return uuid.Nil, false
	}
	return chatID, true
}

// respondChatError maps service errors to HTTP status codes.
func respondChatError(w http.ResponseWriter, chatID uuid.UUID, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrChatBusy):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Chat not found")
	default:
		log.Error().Err(err).Str("chat_id", chatID.String()).Msg("chat request failed")
		httputil.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
