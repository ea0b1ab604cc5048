package handlers

import (
	"context"
	"net/http"
	"strconv"

	"concierge-backend/internal/models"
	"concierge-backend/internal/services"
	"concierge-backend/pkg/httputil"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AdminAuth defines the login operation expected from the auth service.
type AdminAuth interface {
	AdminLogin(password string) (string, error)
}

// ChatLister lists stored conversations.
type ChatLister interface {
	ListChats(ctx context.Context, limit, offset int) ([]models.Conversation, error)
}

type AdminHandlers struct {
	auth  AdminAuth
	chats ChatLister
}

func NewAdminHandlers(auth AdminAuth, chats ChatLister) *AdminHandlers {
	return &AdminHandlers{auth: auth, chats: chats}
}

// HandleLogin handles POST /v1/admin/login.
func (h *AdminHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.AdminLoginRequest
	if err := httputil.DecodeJSON(w, r, 4<<10, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	token, err := h.auth.AdminLogin(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, services.ErrAdminDisabled):
			httputil.RespondError(w, http.StatusForbidden, err.Error())
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "Login failed due to an internal error")
		}
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.AuthResponse{AccessToken: token})
}

// HandleListChats handles GET /v1/admin/chats?limit=&offset=.
func (h *AdminHandlers) HandleListChats(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	chats, err := h.chats.ListChats(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("list chats failed")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}

	resp := models.ListChatsResponse{Chats: make([]models.ChatResponse, 0, len(chats))}
	for i := range chats {
		resp.Chats = append(resp.Chats, models.NewChatResponse(&chats[i]))
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}
