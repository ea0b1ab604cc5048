// Package conversation holds the chat state machine: a conversation is a list of
// messages plus a loading flag and an error slot, changed only by Begin (a user
// sends text) and Resolve (the model answered or failed).
package conversation

import (
	"slices"
	"strings"
	"time"

	"concierge-backend/internal/gateway"
	"concierge-backend/internal/models"
)

const (
	// DefaultErrorText is shown when a failure carries no message of its own.
	DefaultErrorText = "I'm having a bit of trouble answering. Mind trying again?"

	// GreetingText opens every new conversation.
	GreetingText = "Hi there! I'm Maya. I'm so glad you reached out to HealthyMind today. How can I support you in finding the right care for your journey?"
)

// Greeting builds the assistant message every conversation starts with.
func Greeting(now time.Time, id string) models.Message {
	return models.Message{
		ID:        id,
		Role:      models.RoleAssistant,
		Content:   GreetingText,
		Timestamp: now,
	}
}

// NewState returns a state holding only the greeting.
func NewState(now time.Time, greetingID string) models.ConversationState {
	return models.ConversationState{
		Messages: []models.Message{Greeting(now, greetingID)},
	}
}

// Begin applies a send request. It returns ok=false and s unchanged when text is
// blank or another exchange is still in flight. Otherwise the returned state has
// the user message appended, IsLoading set and Error cleared.
func Begin(s models.ConversationState, text string, now time.Time, id string) (models.ConversationState, models.Message, bool) {
	if strings.TrimSpace(text) == "" || s.IsLoading {
		return s, models.Message{}, false
	}

	userMsg := models.Message{
		ID:        id,
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: now,
	}
	next := models.ConversationState{
		Messages:  appendMessage(s.Messages, userMsg),
		IsLoading: true,
	}
	return next, userMsg, true
}

// Resolve applies the outcome of an exchange. A reply appends one assistant
// message; a failure appends nothing and sets Error. Both clear IsLoading.
func Resolve(s models.ConversationState, reply *gateway.Reply, err error, now time.Time, id string) models.ConversationState {
	next := models.ConversationState{
		Messages: s.Messages,
		Error:    s.Error,
	}

	if err != nil || reply == nil {
		next.Error = DefaultErrorText
		if err != nil && err.Error() != "" {
			next.Error = err.Error()
		}
		return next
	}

	next.Messages = appendMessage(s.Messages, models.Message{
		ID:        id,
		Role:      models.RoleAssistant,
		Content:   reply.Text,
		Timestamp: now,
		Sources:   reply.Sources,
	})
	return next
}

// appendMessage never writes into msgs' backing array, so earlier snapshots of
// a state are not affected by later appends.
func appendMessage(msgs []models.Message, m models.Message) []models.Message {
	out := slices.Grow(slices.Clone(msgs), 1)
	return append(out, m)
}
