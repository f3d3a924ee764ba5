package coordinator

import (
	"sync"

	"github.com/chunkynosher/quicktabs/internal/broadcast"
)

// ObserverRegistry tracks the currently-live broadcast targets (spec
// SPEC_FULL.md EXP-3 "Observer registration/liveness"): populated by
// CONTENT_SCRIPT_READY, cleared by CONTENT_SCRIPT_UNLOAD and by
// TabLifecycle's TabRemoved cleanup. The Broadcaster consumes its
// snapshot as the default target set for every Global/Manager
// mutation.
type ObserverRegistry struct {
	mu        sync.RWMutex
	observers map[broadcast.ObserverID]broadcast.Target
}

// NewObserverRegistry returns an empty registry.
func NewObserverRegistry() *ObserverRegistry {
	return &ObserverRegistry{observers: make(map[broadcast.ObserverID]broadcast.Target)}
}

// Register records a live observer, replacing any prior registration
// under the same ID.
func (r *ObserverRegistry) Register(target broadcast.Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[target.ID] = target
}

// Unregister removes an observer, e.g. on CONTENT_SCRIPT_UNLOAD or tab
// removal.
func (r *ObserverRegistry) Unregister(id broadcast.ObserverID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, id)
}

// Snapshot returns the current set of registered targets, safe to pass
// to Broadcaster.Broadcast without holding the registry's lock.
func (r *ObserverRegistry) Snapshot() []broadcast.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]broadcast.Target, 0, len(r.observers))
	for _, t := range r.observers {
		out = append(out, t)
	}
	return out
}

// Len reports how many observers are currently registered.
func (r *ObserverRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}
