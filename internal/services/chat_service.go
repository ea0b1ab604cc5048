package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"concierge-backend/internal/conversation"
	"concierge-backend/internal/gateway"
	"concierge-backend/internal/models"
	"concierge-backend/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const resultWriteAttempts = 3

var (
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrChatBusy     = errors.New("a reply is still being prepared for this chat")
)

// ChatService runs exchanges for stored conversations. Transitions on one
// conversation are serialized, so IsLoading admits one exchange at a time.
type ChatService struct {
	store     store.Store
	responder conversation.Responder
	now       func() time.Time
	newID     func() string

	retryDelay time.Duration

	locks *chatLocks
	wg    sync.WaitGroup
}

// NewChatService creates a new ChatService.
func NewChatService(store store.Store, responder conversation.Responder) *ChatService {
	return &ChatService{
		store:     store,
		responder: responder,
		now:       time.Now,
		newID:     uuid.NewString,
		locks:     newChatLocks(),

		retryDelay: 100 * time.Millisecond,
	}
}

// CreateChat opens a conversation holding only the greeting.
func (s *ChatService) CreateChat(ctx context.Context) (*models.Conversation, error) {
	c := &models.Conversation{
		ID:    uuid.New(),
		State: conversation.NewState(s.now(), s.newID()),
	}
	if err := s.store.CreateConversation(ctx, c); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	log.Info().Str("chat_id", c.ID.String()).Msg("conversation created")
	return c, nil
}

// GetChat returns the current state of a conversation.
func (s *ChatService) GetChat(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get conversation %s", id)
	}
	return c, nil
}

// ListChats returns stored conversations newest first.
func (s *ChatService) ListChats(ctx context.Context, limit, offset int) ([]models.Conversation, error) {
	limit, offset = store.ClampPage(limit, offset)
	chats, err := s.store.ListConversations(ctx, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return chats, nil
}

// SendMessage appends a user message and starts the exchange in the
// background. It returns the conversation with IsLoading set. Blank text
// yields ErrEmptyMessage and an in-flight exchange yields ErrChatBusy; the
// stored state is unchanged in both cases.
func (s *ChatService) SendMessage(ctx context.Context, id uuid.UUID, text string) (*models.Conversation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	unlock := s.locks.lock(id)
	defer unlock()

	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get conversation %s", id)
	}

	prior := c.State.Messages
	next, userMsg, ok := conversation.Begin(c.State, text, s.now(), s.newID())
	if !ok {
		return nil, ErrChatBusy
	}
	c.State = next
	if err := s.store.SaveConversation(ctx, c); err != nil {
		return nil, errors.Wrapf(err, "failed to save conversation %s", id)
	}

	log.Debug().
		Str("chat_id", id.String()).
		Str("message_id", userMsg.ID).
		Int("history", len(prior)).
		Msg("exchange started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resolve(context.WithoutCancel(ctx), id, text, prior)
	}()

	return c, nil
}

// Wait blocks until every exchange started by SendMessage has been stored.
func (s *ChatService) Wait() {
	s.wg.Wait()
}

func (s *ChatService) resolve(ctx context.Context, id uuid.UUID, text string, prior []models.Message) {
	reply, respErr := s.responder.GetResponse(ctx, text, prior)

	assistantID := s.newID()
	err := s.writeResult(ctx, id, func(st models.ConversationState) models.ConversationState {
		return conversation.Resolve(st, reply, respErr, s.now(), assistantID)
	})
	if err == nil {
		ev := log.Info()
		if respErr != nil {
			ev = log.Warn().Bool("failed", true)
		}
		ev.Str("chat_id", id.String()).Msg("exchange resolved")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		log.Warn().Str("chat_id", id.String()).Msg("conversation disappeared before the exchange resolved")
		return
	}

	// The reply is lost; the chat must still leave the loading state.
	log.Error().Err(err).Str("chat_id", id.String()).Msg("failed to store exchange result, storing failure instead")
	err = s.writeResult(ctx, id, func(st models.ConversationState) models.ConversationState {
		return conversation.Resolve(st, nil, nil, s.now(), "")
	})
	if err != nil {
		log.Error().Err(err).Str("chat_id", id.String()).Msg("failed to clear loading state")
	}
}

// writeResult applies resolve to the stored state and saves it, retrying
// store errors up to resultWriteAttempts times.
func (s *ChatService) writeResult(ctx context.Context, id uuid.UUID, resolve func(models.ConversationState) models.ConversationState) error {
	var err error
	for attempt := 1; attempt <= resultWriteAttempts; attempt++ {
		err = s.applyLocked(ctx, id, resolve)
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return err
		}
		log.Warn().Err(err).Str("chat_id", id.String()).Int("attempt", attempt).Msg("storing exchange result failed")
		if attempt < resultWriteAttempts {
			time.Sleep(time.Duration(attempt) * s.retryDelay)
		}
	}
	return err
}

func (s *ChatService) applyLocked(ctx context.Context, id uuid.UUID, resolve func(models.ConversationState) models.ConversationState) error {
	unlock := s.locks.lock(id)
	defer unlock()

	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	c.State = resolve(c.State)
	return s.store.SaveConversation(ctx, c)
}

var _ conversation.Responder = (*gateway.Gateway)(nil)
