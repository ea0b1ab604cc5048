package gateway

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"concierge-backend/internal/integrations"
	"concierge-backend/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// FallbackText replaces an empty model reply so the user never sees a blank bubble.
	FallbackText = "I'm so sorry, I'm having a little trouble connecting to my notes. Could you try saying that again? Or feel free to email us at care@healthymind.org."

	// FailureText is the only part of a model failure the user ever sees.
	FailureText = "I hit a small technical snag! Please try sending your message again."

	// DefaultSourceTitle labels citations that carry a link but no title.
	DefaultSourceTitle = "HealthyMind Resource"

	// DefaultNotifyTimeout bounds one diagnostic delivery.
	DefaultNotifyTimeout = 10 * time.Second
)

// ErrResponseFailed is returned for every transport or service failure. Its
// message is FailureText; the underlying cause is only reported to diagnostics.
var ErrResponseFailed = errors.New(FailureText)

// Reply is a normalized model answer.
type Reply struct {
	Text    string
	Sources []models.Source
}

// Gateway is the Response Gateway. It holds no conversation state.
type Gateway struct {
	client            ModelClient
	model             string
	systemInstruction string
	notifier          integrations.Notifier
	notifyTimeout     time.Duration

	pending sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(g *Gateway) {
		if model != "" {
			g.model = model
		}
	}
}

// WithSystemInstruction overrides DefaultSystemInstruction.
func WithSystemInstruction(instruction string) Option {
	return func(g *Gateway) {
		if instruction != "" {
			g.systemInstruction = instruction
		}
	}
}

// WithNotifier sets the diagnostic side channel for model failures.
func WithNotifier(n integrations.Notifier) Option {
	return func(g *Gateway) { g.notifier = n }
}

// WithNotifyTimeout bounds each diagnostic delivery. The default is DefaultNotifyTimeout.
func WithNotifyTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.notifyTimeout = d
		}
	}
}

// New creates a Gateway on top of client.
func New(client ModelClient, opts ...Option) *Gateway {
	g := &Gateway{
		client:            client,
		model:             DefaultModel,
		systemInstruction: DefaultSystemInstruction,
		notifyTimeout:     DefaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BuildTurns converts prior messages plus the new user text into the model's
// turn sequence. System messages are never sent as turns.
func BuildTurns(newText string, prior []models.Message) []Turn {
	turns := make([]Turn, 0, len(prior)+1)
	for _, m := range prior {
		switch m.Role {
		case models.RoleUser:
			turns = append(turns, Turn{Role: TurnUser, Text: m.Content})
		case models.RoleAssistant:
			turns = append(turns, Turn{Role: TurnModel, Text: m.Content})
		}
	}
	return append(turns, Turn{Role: TurnUser, Text: newText})
}

// GetResponse sends prior history plus newText to the model and returns a
// normalized reply, or ErrResponseFailed.
func (g *Gateway) GetResponse(ctx context.Context, newText string, prior []models.Message) (*Reply, error) {
	req := GenerateRequest{
		Model:             g.model,
		SystemInstruction: g.systemInstruction,
		Turns:             BuildTurns(newText, prior),
		SearchGrounding:   true,
	}

	res, err := g.client.Generate(ctx, req)
	if err != nil {
		g.report(ctx, err, len(req.Turns))
		return nil, ErrResponseFailed
	}

	reply := &Reply{Text: FallbackText}
	if res != nil {
		if strings.TrimSpace(res.Text) != "" {
			reply.Text = res.Text
		}
		reply.Sources = FilterCitations(res.Citations)
	}
	return reply, nil
}

// FilterCitations drops citations without a link and fills in missing titles.
func FilterCitations(citations []Citation) []models.Source {
	var sources []models.Source
	for _, c := range citations {
		uri := strings.TrimSpace(c.URI)
		if uri == "" {
			continue
		}
		title := strings.TrimSpace(c.Title)
		if title == "" {
			title = DefaultSourceTitle
		}
		sources = append(sources, models.Source{Title: title, URI: uri})
	}
	return sources
}

// report hands the cause to the notifier on a separate goroutine, bounded by
// notifyTimeout, so a slow sink never delays the reply. Without a notifier the
// cause is only logged.
func (g *Gateway) report(ctx context.Context, cause error, turns int) {
	if g.notifier == nil {
		log.Error().Err(cause).Str("model", g.model).Int("turns", turns).Msg("model API call failed")
		return
	}
	d := integrations.Diagnostic{
		Component: "gateway",
		Message:   "model API call failed",
		Err:       cause,
		Fields:    map[string]string{"model": g.model, "turns": strconv.Itoa(turns)},
	}

	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.notifyTimeout)
		defer cancel()
		if err := g.notifier.Notify(nctx, d); err != nil {
			log.Warn().Err(err).Msg("failed to deliver gateway diagnostic")
		}
	}()
}

// Wait blocks until every pending diagnostic has been delivered or given up.
func (g *Gateway) Wait() {
	g.pending.Wait()
}
