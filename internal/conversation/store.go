package conversation

import (
	"context"
	"slices"
	"sync"
	"time"

	"concierge-backend/internal/gateway"
	"concierge-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Responder answers a new user message given the history before it.
// *gateway.Gateway implements it.
type Responder interface {
	GetResponse(ctx context.Context, text string, prior []models.Message) (*gateway.Reply, error)
}

// Store owns a single conversation in memory and runs exchanges against a
// Responder. Only its own methods mutate the state.
type Store struct {
	responder Responder
	now       func() time.Time
	newID     func() string
	onChange  func(models.ConversationState)

	mu    sync.Mutex
	state models.ConversationState
	wg    sync.WaitGroup
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the UUID message ID generator.
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

// WithOnChange registers a hook called with a snapshot after every transition.
// The hook runs outside the store's lock.
func WithOnChange(fn func(models.ConversationState)) StoreOption {
	return func(s *Store) { s.onChange = fn }
}

// WithState starts the store from an existing state.
func WithState(st models.ConversationState) StoreOption {
	return func(s *Store) { s.state = st }
}

// NewStore creates a Store. A store without messages starts with the greeting.
func NewStore(r Responder, opts ...StoreOption) *Store {
	s := &Store{
		responder: r,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.state.Messages == nil {
		s.state = NewState(s.now(), s.newID())
	}
	return s
}

// State returns a snapshot of the conversation.
func (s *Store) State() models.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.state)
}

// Send starts an exchange for text. It returns false, changing nothing, when
// text is blank or an exchange is already in flight. The responder is called
// on a separate goroutine; Send does not wait for it.
func (s *Store) Send(ctx context.Context, text string) bool {
	s.mu.Lock()
	prior := s.state.Messages
	next, userMsg, ok := Begin(s.state, text, s.now(), s.newID())
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.state = next
	snap := snapshot(next)
	s.wg.Add(1)
	s.mu.Unlock()

	log.Debug().Str("message_id", userMsg.ID).Msg("exchange started")
	s.changed(snap)

	go func() {
		defer s.wg.Done()
		reply, err := s.responder.GetResponse(ctx, text, prior)

		s.mu.Lock()
		s.state = Resolve(s.state, reply, err, s.now(), s.newID())
		snap := snapshot(s.state)
		s.mu.Unlock()

		if err != nil {
			log.Debug().Str("message_id", userMsg.ID).Str("error", snap.Error).Msg("exchange failed")
		}
		s.changed(snap)
	}()
	return true
}

// Wait blocks until no exchange is in flight.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) changed(st models.ConversationState) {
	if s.onChange != nil {
		s.onChange(st)
	}
}

func snapshot(st models.ConversationState) models.ConversationState {
	st.Messages = slices.Clone(st.Messages)
	return st
}
