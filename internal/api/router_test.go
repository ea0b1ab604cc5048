package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"concierge-backend/internal/auth"
	"concierge-backend/internal/config"
	"concierge-backend/internal/gateway"
	"concierge-backend/internal/handlers"
	"concierge-backend/internal/models"
	"concierge-backend/internal/services"
	"concierge-backend/internal/store/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type staticResponder struct{}

func (staticResponder) GetResponse(context.Context, string, []models.Message) (*gateway.Reply, error) {
	return &gateway.Reply{Text: "ok"}, nil
}

func newTestRouter(t *testing.T, ratePerMinute int) (http.Handler, *services.ChatService) {
	t.Helper()
	hash, err := auth.HashPassword("admin-pass")
	require.NoError(t, err)
	cfg := &config.Config{
		JWTSecret:         testSecret,
		TokenExpiration:   time.Hour,
		AdminPasswordHash: hash,
		AllowedOrigins:    []string{"https://healthymind.example"},
		SendRatePerMinute: ratePerMinute,
	}
	chats := services.NewChatService(memory.NewMemoryStore(), staticResponder{})
	authSvc := services.NewAuthService(cfg)
	t.Cleanup(chats.Wait)

	return NewRouter(RouterDependencies{
		ChatHandler:  handlers.NewChatHandlers(chats, authSvc),
		AdminHandler: handlers.NewAdminHandlers(authSvc, chats),
		Config:       cfg,
	}), chats
}

func request(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createChat(t *testing.T, h http.Handler) models.CreateChatResponse {
	t.Helper()
	rec := request(t, h, http.MethodPost, "/v1/chats", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.CreateChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t, 20)
	rec := request(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouter_ChatTokenScopesAccess(t *testing.T) {
	h, chats := newTestRouter(t, 20)
	a := createChat(t, h)
	b := createChat(t, h)

	path := "/v1/chats/" + a.Chat.ID.String()

	rec := request(t, h, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(t, h, http.MethodGet, path, "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(t, h, http.MethodGet, path, b.Token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = request(t, h, http.MethodGet, path, a.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, h, http.MethodPost, path+"/messages", a.Token, `{"message":"hi"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	chats.Wait()

	rec = request(t, h, http.MethodGet, path, a.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Messages, 3)
}

func TestRouter_ExpiredToken(t *testing.T) {
	h, _ := newTestRouter(t, 20)
	chat := createChat(t, h)

	expired, err := auth.NewChatToken(chat.Chat.ID, testSecret, -time.Minute)
	require.NoError(t, err)

	rec := request(t, h, http.MethodGet, "/v1/chats/"+chat.Chat.ID.String(), expired, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestRouter_AdminRoutes(t *testing.T) {
	h, _ := newTestRouter(t, 20)
	chat := createChat(t, h)

	rec := request(t, h, http.MethodGet, "/v1/admin/chats", chat.Token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = request(t, h, http.MethodPost, "/v1/admin/login", "", `{"password":"admin-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	rec = request(t, h, http.MethodGet, "/v1/admin/chats", tok.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.ListChatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Chats, 1)

	// admins may read any chat
	rec = request(t, h, http.MethodGet, "/v1/chats/"+chat.Chat.ID.String(), tok.AccessToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RateLimitsSends(t *testing.T) {
	h, _ := newTestRouter(t, 2)

	assert.Equal(t, http.StatusCreated, request(t, h, http.MethodPost, "/v1/chats", "", "").Code)
	assert.Equal(t, http.StatusCreated, request(t, h, http.MethodPost, "/v1/chats", "", "").Code)

	rec := request(t, h, http.MethodPost, "/v1/chats", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// prompts are not limited
	assert.Equal(t, http.StatusOK, request(t, h, http.MethodGet, "/v1/prompts", "", "").Code)
}

func TestRouter_CORS(t *testing.T) {
	h, _ := newTestRouter(t, 20)
	req := httptest.NewRequest(http.MethodOptions, "/v1/chats", nil)
	req.Header.Set("Origin", "https://healthymind.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://healthymind.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter_PerClientAndSweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1)
	l.now = func() time.Time { return now }
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := l.Middleware(ok)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5001"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:5000"))

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5002"))

	now = now.Add(limiterIdleTTL + time.Second)
	send("10.0.0.3:1")
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.clients, 1)
}

func TestRequireChatAccess_NoClaims(t *testing.T) {
	h := RequireChatAccess(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chats/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
