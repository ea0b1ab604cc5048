package conversation

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"concierge-backend/internal/gateway"
	"concierge-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	text  string
	prior []models.Message
}

// blockingResponder holds every call until release is closed.
type blockingResponder struct {
	mu      sync.Mutex
	calls   []call
	release chan struct{}
	reply   *gateway.Reply
	err     error
}

func newBlockingResponder(reply *gateway.Reply, err error) *blockingResponder {
	return &blockingResponder{release: make(chan struct{}), reply: reply, err: err}
}

func (b *blockingResponder) GetResponse(_ context.Context, text string, prior []models.Message) (*gateway.Reply, error) {
	b.mu.Lock()
	b.calls = append(b.calls, call{text: text, prior: prior})
	b.mu.Unlock()
	<-b.release
	return b.reply, b.err
}

func (b *blockingResponder) Calls() []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]call(nil), b.calls...)
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return "m" + strconv.FormatInt(n.Add(1), 10) }
}

func TestStore_StartsWithGreeting(t *testing.T) {
	s := NewStore(newBlockingResponder(nil, nil), WithIDGenerator(sequentialIDs()))
	st := s.State()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, GreetingText, st.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, st.Messages[0].Role)
	assert.False(t, st.IsLoading)
}

func TestStore_BlankSendIsNoop(t *testing.T) {
	r := newBlockingResponder(nil, nil)
	s := NewStore(r)
	before := s.State()

	assert.False(t, s.Send(context.Background(), "   "))
	assert.Equal(t, before, s.State())
	assert.Empty(t, r.Calls())
}

func TestStore_SuccessfulExchange(t *testing.T) {
	r := newBlockingResponder(&gateway.Reply{Text: "We offer several kinds.", Sources: []models.Source{{Title: "t", URI: "https://x"}}}, nil)
	var changes atomic.Int32
	s := NewStore(r, WithState(models.ConversationState{Messages: []models.Message{}}), WithOnChange(func(models.ConversationState) { changes.Add(1) }))

	// a non-nil empty list is kept as is
	require.Empty(t, s.State().Messages)

	require.True(t, s.Send(context.Background(), "What therapy types do you have?"))
	assert.True(t, s.State().IsLoading)

	assert.False(t, s.Send(context.Background(), "another"), "second send while loading must be refused")

	close(r.release)
	s.Wait()

	st := s.State()
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.Error)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, models.RoleUser, st.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, st.Messages[1].Role)
	assert.Equal(t, "We offer several kinds.", st.Messages[1].Content)
	assert.Len(t, st.Messages[1].Sources, 1)

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "What therapy types do you have?", calls[0].text)
	assert.Empty(t, calls[0].prior, "history excludes the message being sent")
	assert.Equal(t, int32(2), changes.Load())
}

func TestStore_FailedExchange(t *testing.T) {
	r := newBlockingResponder(nil, gateway.ErrResponseFailed)
	s := NewStore(r)
	before := len(s.State().Messages)

	require.True(t, s.Send(context.Background(), "hello"))
	close(r.release)
	s.Wait()

	st := s.State()
	assert.False(t, st.IsLoading)
	assert.Equal(t, gateway.FailureText, st.Error)
	assert.Len(t, st.Messages, before+1, "only the user message is appended")
	for _, m := range st.Messages[1:] {
		assert.NotEqual(t, models.RoleAssistant, m.Role)
	}

	// manual resend is allowed and clears the error
	r2 := newBlockingResponder(&gateway.Reply{Text: "ok"}, nil)
	s.responder = r2
	require.True(t, s.Send(context.Background(), "hello"))
	assert.Empty(t, s.State().Error)
	close(r2.release)
	s.Wait()

	calls := r2.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].prior, 2, "greeting and the first user message")
}

func TestStore_SnapshotsAreIndependent(t *testing.T) {
	r := newBlockingResponder(&gateway.Reply{Text: "ok"}, nil)
	s := NewStore(r, WithClock(func() time.Time { return t0 }))
	snap := s.State()

	require.True(t, s.Send(context.Background(), "hi"))
	close(r.release)
	s.Wait()

	assert.Len(t, snap.Messages, 1)
	assert.Len(t, s.State().Messages, 3)
	assert.Equal(t, t0, s.State().Messages[1].Timestamp)
}
