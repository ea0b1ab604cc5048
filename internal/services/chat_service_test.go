package services

import (
	"context"
	"sync"
	"testing"

	"concierge-backend/internal/conversation"
	"concierge-backend/internal/gateway"
	"concierge-backend/internal/models"
	"concierge-backend/internal/store"
	"concierge-backend/internal/store/memory"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedResponder blocks every call until release is closed.
type gatedResponder struct {
	mu      sync.Mutex
	prior   [][]models.Message
	started chan struct{}
	release chan struct{}
	reply   *gateway.Reply
	err     error
}

func newGatedResponder(reply *gateway.Reply, err error) *gatedResponder {
	return &gatedResponder{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
		reply:   reply,
		err:     err,
	}
}

func (g *gatedResponder) GetResponse(_ context.Context, _ string, prior []models.Message) (*gateway.Reply, error) {
	g.mu.Lock()
	g.prior = append(g.prior, prior)
	g.mu.Unlock()
	g.started <- struct{}{}
	<-g.release
	return g.reply, g.err
}

func (g *gatedResponder) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prior)
}

func TestChatService_CreateChatSeedsGreeting(t *testing.T) {
	svc := NewChatService(memory.NewMemoryStore(), newGatedResponder(nil, nil))

	c, err := svc.CreateChat(context.Background())
	require.NoError(t, err)
	require.Len(t, c.State.Messages, 1)
	assert.Equal(t, conversation.GreetingText, c.State.Messages[0].Content)
	assert.False(t, c.State.IsLoading)

	got, err := svc.GetChat(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.State.Messages, got.State.Messages)
}

func TestChatService_SendMessageSuccess(t *testing.T) {
	ctx := context.Background()
	reply := &gateway.Reply{
		Text:    "We have three clinicians available.",
		Sources: []models.Source{{Title: "Team", URI: "https://example.org/team"}},
	}
	r := newGatedResponder(reply, nil)
	svc := NewChatService(memory.NewMemoryStore(), r)

	c, err := svc.CreateChat(ctx)
	require.NoError(t, err)

	pending, err := svc.SendMessage(ctx, c.ID, "Who can I see?")
	require.NoError(t, err)
	assert.True(t, pending.State.IsLoading)
	require.Len(t, pending.State.Messages, 2)
	assert.Equal(t, models.RoleUser, pending.State.Messages[1].Role)

	<-r.started
	close(r.release)
	svc.Wait()

	done, err := svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, done.State.IsLoading)
	assert.Empty(t, done.State.Error)
	require.Len(t, done.State.Messages, 3)
	last := done.State.Messages[2]
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.Equal(t, reply.Text, last.Content)
	assert.Equal(t, reply.Sources, last.Sources)

	// the responder saw only the greeting, not the new user message
	require.Len(t, r.prior, 1)
	require.Len(t, r.prior[0], 1)
	assert.Equal(t, conversation.GreetingText, r.prior[0][0].Content)
}

func TestChatService_SendMessageFailure(t *testing.T) {
	ctx := context.Background()
	r := newGatedResponder(nil, gateway.ErrResponseFailed)
	close(r.release)
	svc := NewChatService(memory.NewMemoryStore(), r)

	c, err := svc.CreateChat(ctx)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, c.ID, "hello")
	require.NoError(t, err)
	svc.Wait()

	done, err := svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, done.State.IsLoading)
	assert.Equal(t, gateway.FailureText, done.State.Error)
	assert.Len(t, done.State.Messages, 2, "no assistant message on failure")
}

func TestChatService_SendMessageRejectsBlank(t *testing.T) {
	ctx := context.Background()
	r := newGatedResponder(nil, nil)
	svc := NewChatService(memory.NewMemoryStore(), r)
	c, err := svc.CreateChat(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, c.ID, "  \n\t")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	got, err := svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.State.Messages, 1)
	assert.False(t, got.State.IsLoading)
	assert.Zero(t, r.calls())
}

func TestChatService_SendMessageBusy(t *testing.T) {
	ctx := context.Background()
	r := newGatedResponder(&gateway.Reply{Text: "ok"}, nil)
	svc := NewChatService(memory.NewMemoryStore(), r)
	c, err := svc.CreateChat(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, c.ID, "first")
	require.NoError(t, err)
	<-r.started

	_, err = svc.SendMessage(ctx, c.ID, "second")
	assert.ErrorIs(t, err, ErrChatBusy)

	close(r.release)
	svc.Wait()

	got, err := svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.State.Messages, 3)
	assert.Equal(t, "first", got.State.Messages[1].Content)
	assert.Equal(t, 1, r.calls())
}

func TestChatService_ConcurrentSendsAdmitOne(t *testing.T) {
	ctx := context.Background()
	r := newGatedResponder(&gateway.Reply{Text: "ok"}, nil)
	svc := NewChatService(memory.NewMemoryStore(), r)
	c, err := svc.CreateChat(ctx)
	require.NoError(t, err)

	const senders = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.SendMessage(ctx, c.ID, "hi"); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrChatBusy)
			}
		}()
	}
	wg.Wait()
	close(r.release)
	svc.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, r.calls())
	assert.Zero(t, svc.locks.size())
}

func TestChatService_UnknownChat(t *testing.T) {
	svc := NewChatService(memory.NewMemoryStore(), newGatedResponder(nil, nil))

	_, err := svc.GetChat(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.SendMessage(context.Background(), uuid.New(), "hi")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestChatService_ListChats(t *testing.T) {
	ctx := context.Background()
	svc := NewChatService(memory.NewMemoryStore(), newGatedResponder(nil, nil))
	for i := 0; i < 3; i++ {
		_, err := svc.CreateChat(ctx)
		require.NoError(t, err)
	}

	chats, err := svc.ListChats(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, chats, 3)

	chats, err = svc.ListChats(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

// faultyStore fails SaveConversation whenever failSave says so.
type faultyStore struct {
	*memory.MemoryStore

	mu       sync.Mutex
	saves    int
	failSave func(n int, c *models.Conversation) bool
}

func (f *faultyStore) SaveConversation(ctx context.Context, c *models.Conversation) error {
	f.mu.Lock()
	f.saves++
	fail := f.failSave(f.saves, c)
	f.mu.Unlock()
	if fail {
		return errors.New("connection reset by peer")
	}
	return f.MemoryStore.SaveConversation(ctx, c)
}

func TestChatService_ResultWriteIsRetried(t *testing.T) {
	ctx := context.Background()
	st := &faultyStore{
		MemoryStore: memory.NewMemoryStore(),
		// save 1 stores the user message, save 2 is the first result write
		failSave: func(n int, _ *models.Conversation) bool { return n == 2 },
	}
	r := newGatedResponder(&gateway.Reply{Text: "Sessions are 50 minutes."}, nil)
	close(r.release)
	svc := NewChatService(st, r)
	svc.retryDelay = 0

	c, err := svc.CreateChat(ctx)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, c.ID, "How long is a session?")
	require.NoError(t, err)
	svc.Wait()

	got, err := svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.State.IsLoading)
	assert.Empty(t, got.State.Error)
	require.Len(t, got.State.Messages, 3)
	assert.Equal(t, "Sessions are 50 minutes.", got.State.Messages[2].Content)
}

func TestChatService_UnstorableResultLeavesChatRetryable(t *testing.T) {
	ctx := context.Background()
	st := &faultyStore{
		MemoryStore: memory.NewMemoryStore(),
		// any write carrying the assistant reply fails
		failSave: func(_ int, c *models.Conversation) bool {
			msgs := c.State.Messages
			return len(msgs) > 2 && msgs[len(msgs)-1].Role == models.RoleAssistant
		},
	}
	r := newGatedResponder(&gateway.Reply{Text: "unused"}, nil)
	close(r.release)
	svc := NewChatService(st, r)
	svc.retryDelay = 0

	c, err := svc.CreateChat(ctx)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, c.ID, "hello")
	require.NoError(t, err)
	svc.Wait()

	got, err := svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.State.IsLoading)
	assert.Equal(t, conversation.DefaultErrorText, got.State.Error)
	assert.Len(t, got.State.Messages, 2)

	_, err = svc.SendMessage(ctx, c.ID, "hello again")
	assert.NoError(t, err, "chat accepts a new message after the failed write")
	svc.Wait()
}
