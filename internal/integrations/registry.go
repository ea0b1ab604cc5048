// Package integrations fans diagnostic events out to external sinks.
package integrations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Diagnostic describes something an operator should know about but a chat user
// should never see, such as the technical cause of a failed model call.
type Diagnostic struct {
	Component string
	Message   string
	Err       error
	Fields    map[string]string
	Time      time.Time
}

// Notifier delivers diagnostics to one sink.
type Notifier interface {
	Notify(ctx context.Context, d Diagnostic) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, d Diagnostic) error

func (f NotifierFunc) Notify(ctx context.Context, d Diagnostic) error { return f(ctx, d) }

// Registry holds the named notifiers diagnostics are fanned out to.
// It is itself a Notifier.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Notifier
}

// NewRegistry creates an empty notifier registry.
func NewRegistry() *Registry {
	return &Registry{
		sinks: make(map[string]Notifier),
	}
}

// Register adds a notifier under name, replacing any previous one.
func (r *Registry) Register(name string, n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sinks[name]; exists {
		log.Warn().Str("sink", name).Msg("diagnostic sink already registered, overwriting")
	}
	r.sinks[name] = n
	log.Info().Str("sink", name).Msg("registered diagnostic sink")
}

// Names returns the registered sink names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Notify delivers d to every sink. A failing sink does not stop delivery to the
// others; the first failure is returned.
func (r *Registry) Notify(ctx context.Context, d Diagnostic) error {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}

	r.mu.RLock()
	sinks := make(map[string]Notifier, len(r.sinks))
	for name, n := range r.sinks {
		sinks[name] = n
	}
	r.mu.RUnlock()

	var first error
	for name, n := range sinks {
		if err := n.Notify(ctx, d); err != nil {
			log.Error().Err(err).Str("sink", name).Msg("diagnostic sink failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// LogNotifier writes diagnostics to the global zerolog logger.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, d Diagnostic) error {
	ev := log.Error().Str("component", d.Component).Time("at", d.Time)
	if d.Err != nil {
		ev = ev.Err(d.Err)
	}
	for k, v := range d.Fields {
		ev = ev.Str(k, v)
	}
	ev.Msg(d.Message)
	return nil
}
