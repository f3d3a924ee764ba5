// Package router implements the MessageRouter (spec §4.4, component
// C4): validates inbound envelopes against the closed type set and
// dispatches them to the handler registered for their delivery
// pattern's owner.
package router

import (
	"context"

	"github.com/chunkynosher/quicktabs/internal/logging"
	"github.com/chunkynosher/quicktabs/internal/protocol"
)

// Handler processes one validated Envelope and returns a Response.
type Handler func(ctx context.Context, env protocol.Envelope) protocol.Response

// Router validates and dispatches typed messages (spec §4.4).
type Router struct {
	logger   logging.Logger
	handlers map[protocol.Type]Handler
	minimal  bool
}

// Option configures a Router at construction.
type Option func(*Router)

func WithLogger(l logging.Logger) Option { return func(r *Router) { r.logger = l } }

// New constructs a Router with no handlers registered; callers wire
// Coordinator methods in via Register.
func New(opts ...Option) *Router {
	r := &Router{
		logger:   logging.Nop(),
		handlers: make(map[protocol.Type]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a Handler to a message Type. Registering a Type
// outside the closed set is a no-op: protocol.Validate will reject any
// envelope carrying it before Dispatch ever consults the handler map.
func (r *Router) Register(t protocol.Type, h Handler) {
	r.handlers[t] = h
}

// SetMinimalMode toggles the feature-flag hazard from spec §9
// "Feature flag hazard": in minimal mode only CONTENT_SCRIPT_READY/
// UNLOAD and REQUEST_FULL_STATE are dispatched; every mutation type
// is rejected with the same "Invalid message" shape an unregistered
// handler would produce, so observers see one contract either way.
func (r *Router) SetMinimalMode(minimal bool) { r.minimal = minimal }

// Dispatch validates env and, if valid, calls the registered handler
// for its type. An invalid envelope or an unregistered type produces
// the canonical "Invalid message" response without ever calling a
// handler (spec §4.4).
func (r *Router) Dispatch(ctx context.Context, env protocol.Envelope) protocol.Response {
	if err := protocol.Validate(env); err != nil {
		return protocol.Invalid(err.Error())
	}

	if r.minimal && !minimalModeAllows(env.Type) {
		return protocol.Invalid("handler disabled in minimal mode")
	}

	handler, ok := r.handlers[env.Type]
	if !ok {
		r.logger.Warn("router: no handler registered for type", logging.String("type", string(env.Type)))
		return protocol.Invalid("no handler registered for type " + string(env.Type))
	}
	return handler(ctx, env)
}

func minimalModeAllows(t protocol.Type) bool {
	switch t {
	case protocol.TypeContentScriptReady, protocol.TypeContentScriptUnload, protocol.TypeRequestFullState:
		return true
	default:
		return false
	}
}
