// Package coordinator implements the Coordinator (spec §4.5, component
// C5): the single-threaded dispatcher that applies validated
// mutations to the StateStore, decides the delivery pattern, and fans
// out through the Broadcaster. Per spec §5, there is no suspension
// between reading S and composing S' within a handler — each handler
// below reads, transforms, and writes in one unbroken sequence before
// ever returning to the caller.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chunkynosher/quicktabs/internal/broadcast"
	"github.com/chunkynosher/quicktabs/internal/logging"
	"github.com/chunkynosher/quicktabs/internal/model"
	"github.com/chunkynosher/quicktabs/internal/protocol"
	"github.com/chunkynosher/quicktabs/internal/store"
)

// Coordinator owns the single authorized path to mutate canonical
// state. All its handler methods are meant to be invoked serially
// (spec §5 "Coordinator domain: single-threaded cooperative"); the
// internal mutex exists to make that true even if a caller wires the
// Router to more than one goroutine.
type Coordinator struct {
	mu sync.Mutex

	store       *store.StateStore
	broadcaster *broadcast.Broadcaster
	observers   *ObserverRegistry
	limits      model.Limits
	logger      logging.Logger
	now         func() time.Time

	managerNotifyID broadcast.ObserverID
}

// Option configures a Coordinator at construction.
type Option func(*Coordinator)

func WithLogger(l logging.Logger) Option { return func(c *Coordinator) { c.logger = l } }
func WithLimits(lim model.Limits) Option { return func(c *Coordinator) { c.limits = lim } }

// New constructs a Coordinator bound to its StateStore, Broadcaster,
// and ObserverRegistry.
func New(st *store.StateStore, bc *broadcast.Broadcaster, observers *ObserverRegistry, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       st,
		broadcaster: bc,
		observers:   observers,
		logger:      logging.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// mutate is the shared spine every Global/Manager/Local handler uses:
// read S, transform to S', write S' validated, and — unless pattern is
// Local — broadcast. It returns the written state, whether the store
// deduped the write (spec §7 "Duplicate write", §8 E3: the caller must
// be able to report `{success:true, skipped:true}`), and whether the
// write succeeded, so each handler only needs to supply its own Schema
// transform and response shape. transform also returns a
// broadcast.Meta the handler wants attached to the fan-out (e.g. the
// tab-close cascade's source tag and removed-id list); ordinary
// handlers return the zero Meta{}.
func (c *Coordinator) mutate(
	ctx context.Context,
	correlationID string,
	pattern protocol.Pattern,
	transform func(model.State) (model.State, broadcast.Meta, error),
) (prev model.State, next model.State, skipped bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev = c.store.ReadState(ctx)
	var meta broadcast.Meta
	next, meta, err = transform(prev)
	if err != nil {
		return prev, prev, false, err
	}

	result := c.store.WriteStateWithValidation(ctx, next, correlationID)
	if !result.Success {
		return prev, prev, false, result.Error
	}
	if result.Skipped {
		return prev, prev, true, nil
	}

	if pattern == protocol.PatternGlobal || pattern == protocol.PatternManager {
		targets := c.observers.Snapshot()
		bcResult := c.broadcaster.Broadcast(ctx, targets, prev, next, correlationID, meta)
		c.logger.Debug("coordinator: broadcast complete",
			logging.Int("totalTargets", bcResult.TotalTargets),
			logging.Int("successCount", bcResult.SuccessCount),
			logging.Int("failedCount", bcResult.FailedCount))
	}
	return prev, next, false, nil
}

// withSkipped adds the §7/§8 E3 "skipped":true field to a handler's
// response fields when the store deduped the write; otherwise fields
// is returned unchanged so an ordinary response stays free of the key.
func withSkipped(fields map[string]any, skipped bool) map[string]any {
	if skipped {
		fields["skipped"] = true
	}
	return fields
}

// HandleCreated implements QT_CREATED (Global pattern, spec §4.4,
// E1). It generates an id when absent, stamps createdAt, and rejects
// a pool already at MaxQuickTabs without mutating state (spec §8
// boundary: "Creating a 101st entity: coordinator must reject ...
// existing state unchanged").
func (c *Coordinator) HandleCreated(ctx context.Context, env protocol.Envelope) protocol.Response {
	qt, ok := quickTabField(env.Payload, "quickTab")
	if !ok {
		return protocol.Invalid("missing quickTab payload")
	}

	var createdID string
	_, _, skipped, err := c.mutate(ctx, env.CorrelationID, protocol.PatternGlobal, func(s model.State) (model.State, broadcast.Meta, error) {
		if c.limits.MaxQuickTabs > 0 && len(s.AllQuickTabs) >= c.limits.MaxQuickTabs {
			return s, broadcast.Meta{}, errPoolFull
		}
		if qt.ID == "" {
			id, genErr := model.NewQuickTabID()
			if genErr != nil {
				return s, broadcast.Meta{}, genErr
			}
			qt.ID = id
		}
		qt.CreatedAt = c.now()
		createdID = qt.ID
		return model.Add(s, qt, c.now()), broadcast.Meta{}, nil
	})
	if err != nil {
		return protocol.Invalid(err.Error())
	}
	return protocol.Response{
		Success: true,
		Fields: withSkipped(map[string]any{
			"created":    true,
			"quickTabId": createdID,
			"pattern":    string(protocol.PatternGlobal),
		}, skipped),
	}
}

// HandlePositionChanged implements QT_POSITION_CHANGED (Local
// pattern, spec §4.4, E2): mutation applied, no broadcast, no manager
// notification.
func (c *Coordinator) HandlePositionChanged(ctx context.Context, env protocol.Envelope) protocol.Response {
	id, ok := stringField(env.Payload, "quickTabId")
	if !ok {
		return protocol.Invalid("missing quickTabId")
	}
	pos, ok := pointField(env.Payload, "newPosition")
	if !ok {
		return protocol.Invalid("missing newPosition")
	}
	_, _, skipped, err := c.mutate(ctx, env.CorrelationID, protocol.PatternLocal, func(s model.State) (model.State, broadcast.Meta, error) {
		return model.Update(s, id, func(qt model.QuickTab) model.QuickTab {
			qt.Position = pos
			return qt
		}, c.now()), broadcast.Meta{}, nil
	})
	if err != nil {
		return protocol.Invalid(err.Error())
	}
	return protocol.Response{Success: true, Fields: withSkipped(map[string]any{}, skipped)}
}

// HandleSizeChanged implements QT_SIZE_CHANGED (Local pattern).
func (c *Coordinator) HandleSizeChanged(ctx context.Context, env protocol.Envelope) protocol.Response {
	id, ok := stringField(env.Payload, "quickTabId")
	if !ok {
		return protocol.Invalid("missing quickTabId")
	}
	sz, ok := sizeField(env.Payload, "newSize")
	if !ok {
		return protocol.Invalid("missing newSize")
	}
	_, _, skipped, err := c.mutate(ctx, env.CorrelationID, protocol.PatternLocal, func(s model.State) (model.State, broadcast.Meta, error) {
		return model.Update(s, id, func(qt model.QuickTab) model.QuickTab {
			qt.Size = sz
			return qt
		}, c.now()), broadcast.Meta{}, nil
	})
	if err != nil {
		return protocol.Invalid(err.Error())
	}
	return protocol.Response{Success: true, Fields: withSkipped(map[string]any{}, skipped)}
}

func (c *Coordinator) setMinimized(ctx context.Context, env protocol.Envelope, minimized bool) protocol.Response {
	id, ok := stringField(env.Payload, "quickTabId")
	if !ok {
		return protocol.Invalid("missing quickTabId")
	}
	_, _, skipped, err := c.mutate(ctx, env.CorrelationID, protocol.PatternGlobal, func(s model.State) (model.State, broadcast.Meta, error) {
		return model.Update(s, id, func(qt model.QuickTab) model.QuickTab {
			qt.Minimized = minimized
			return qt
		}, c.now()), broadcast.Meta{}, nil
	})
	if err != nil {
		return protocol.Invalid(err.Error())
	}
	return protocol.Response{
		Success: true,
		Fields:  withSkipped(map[string]any{"pattern": string(protocol.PatternGlobal)}, skipped),
	}
}

// HandleMinimized implements QT_MINIMIZED (Global pattern, E3 dedup
// scenario exercises this handler twice with the same correlationId).
func (c *Coordinator) HandleMinimized(ctx context.Context, env protocol.Envelope) protocol.Response {
	return c.setMinimized(ctx, env, true)
}

// HandleRestored implements QT_RESTORED (Global pattern).
func (c *Coordinator) HandleRestored(ctx context.Context, env protocol.Envelope) protocol.Response {
	return c.setMinimized(ctx, env, false)
}

// HandleClosed implements QT_CLOSED (Global pattern, P4).
func (c *Coordinator) HandleClosed(ctx context.Context, env protocol.Envelope) protocol.Response {
	id, ok := stringField(env.Payload, "quickTabId")
	if !ok {
		return protocol.Invalid("missing quickTabId")
	}
	_, _, skipped, err := c.mutate(ctx, env.CorrelationID, protocol.PatternGlobal, func(s model.State) (model.State, broadcast.Meta, error) {
		return model.Remove(s, id, c.now()), broadcast.Meta{}, nil
	})
	if err != nil {
		return protocol.Invalid(err.Error())
	}
	return protocol.Response{
		Success: true,
		Fields:  withSkipped(map[string]any{"pattern": string(protocol.PatternGlobal)}, skipped),
	}
}

// HandleManagerCloseAll implements MANAGER_CLOSE_ALL (Manager
// pattern): bulk mutation, broadcast + notify.
func (c *Coordinator) HandleManagerCloseAll(ctx context.Context, env protocol.Envelope) protocol.Response {
	var closedCount int
	_, _, skipped, err := c.mutate(ctx, env.CorrelationID, protocol.PatternManager, func(s model.State) (model.State, broadcast.Meta, error) {
		closedCount = len(s.AllQuickTabs)
		return model.ClearAll(s, c.now()), broadcast.Meta{}, nil
	})
	if err != nil {
		return protocol.Invalid(err.Error())
	}
	return protocol.Response{
		Success: true,
		Fields:  withSkipped(map[string]any{"closedCount": closedCount, "pattern": string(protocol.PatternManager)}, skipped),
	}
}

// HandleManagerCloseMinimized implements MANAGER_CLOSE_MINIMIZED
// (Manager pattern): bulk-removes every minimized quick tab.
func (c *Coordinator) HandleManagerCloseMinimized(ctx context.Context, env protocol.Envelope) protocol.Response {
	var closedCount int
	_, _, skipped, err := c.mutate(ctx, env.CorrelationID, protocol.PatternManager, func(s model.State) (model.State, broadcast.Meta, error) {
		next := s.Clone()
		kept := next.AllQuickTabs[:0]
		for _, qt := range next.AllQuickTabs {
			if qt.Minimized {
				closedCount++
				continue
			}
			kept = append(kept, qt)
		}
		next.AllQuickTabs = kept
		next.LastModified = c.now().UnixMilli()
		return next, broadcast.Meta{}, nil
	})
	if err != nil {
		return protocol.Invalid(err.Error())
	}
	return protocol.Response{
		Success: true,
		Fields:  withSkipped(map[string]any{"closedCount": closedCount, "pattern": string(protocol.PatternManager)}, skipped),
	}
}

// HandleRequestFullState implements REQUEST_FULL_STATE (Sync pattern,
// spec §4.4: "read-only; sender receives post-state filtered to its
// own originTabId").
func (c *Coordinator) HandleRequestFullState(ctx context.Context, env protocol.Envelope) protocol.Response {
	c.mu.Lock()
	s := c.store.ReadState(ctx)
	c.mu.Unlock()

	originTabID, hasOrigin := numberField(env.Payload, "originTabId")
	var projection []model.QuickTab
	if hasOrigin {
		projection = model.FilterByOriginTab(s, int(originTabID))
	} else {
		projection = s.AllQuickTabs
	}
	return protocol.Response{
		Success: true,
		Fields:  map[string]any{"pattern": string(protocol.PatternSync), "quickTabs": projection},
	}
}

// HandleContentScriptReady implements CONTENT_SCRIPT_READY (Lifecycle
// pattern, spec §4.4/§4.8 "Tab-id bootstrap"): registers the observer
// and returns its origin tab id plus initial projection.
func (c *Coordinator) HandleContentScriptReady(ctx context.Context, env protocol.Envelope) protocol.Response {
	originTabID, ok := numberField(env.Payload, "originTabId")
	if !ok {
		return protocol.Invalid("missing originTabId")
	}
	target, ok := env.Payload["__target"].(broadcast.Target)
	if ok {
		c.observers.Register(target)
	}

	c.mu.Lock()
	s := c.store.ReadState(ctx)
	c.mu.Unlock()

	return protocol.Response{
		Success: true,
		Fields: map[string]any{
			"pattern":     string(protocol.PatternLifecycle),
			"originTabId": int(originTabID),
			"quickTabs":   model.FilterByOriginTab(s, int(originTabID)),
		},
	}
}

// HandleContentScriptUnload implements CONTENT_SCRIPT_UNLOAD
// (Lifecycle pattern): unregisters the observer so future broadcasts
// don't target a page that is gone.
func (c *Coordinator) HandleContentScriptUnload(ctx context.Context, env protocol.Envelope) protocol.Response {
	if id, ok := stringField(env.Payload, "observerId"); ok {
		c.observers.Unregister(broadcast.ObserverID(id))
	}
	return protocol.Response{Success: true, Fields: map[string]any{"pattern": string(protocol.PatternLifecycle)}}
}

// tabEventsCleanupSource is the §4.7 TabRemoved broadcast's source
// tag: "broadcast QT_STATE_SYNC with source tab-events-cleanup
// carrying removed ids" (spec §4.7, §8 E4).
const tabEventsCleanupSource = "tab-events-cleanup"

// RemoveByOriginTab applies the atomic tab-close cascade from spec
// §4.7 (TabLifecycle's TabRemoved) and broadcasts the removal tagged
// with the tab-events-cleanup source and the removed ids (spec §8 E4:
// "a QT_STATE_SYNC broadcast carries removedQuickTabIds equal to the
// two removed ids"). It is exported so internal/tabs can drive it
// without duplicating the mutate-then-broadcast spine.
func (c *Coordinator) RemoveByOriginTab(ctx context.Context, originTabID int, correlationID string) []string {
	var removedIDs []string
	c.mutate(ctx, correlationID, protocol.PatternGlobal, func(s model.State) (model.State, broadcast.Meta, error) {
		for _, qt := range model.FilterByOriginTab(s, originTabID) {
			removedIDs = append(removedIDs, qt.ID)
		}
		next := model.RemoveByOriginTab(s, originTabID, c.now())
		meta := broadcast.Meta{Source: tabEventsCleanupSource, RemovedQuickTabIds: removedIDs}
		return next, meta, nil
	})
	return removedIDs
}

// ApplyCoalescedPatch writes the debounced TabUpdated patch from
// internal/tabs, broadcasting the result (spec §4.7 "On flush, update
// all entities for that originTabId with the coalesced patch").
func (c *Coordinator) ApplyCoalescedPatch(ctx context.Context, originTabID int, patch func(model.QuickTab) model.QuickTab, correlationID string) {
	c.mutate(ctx, correlationID, protocol.PatternGlobal, func(s model.State) (model.State, broadcast.Meta, error) {
		next := s.Clone()
		for i, qt := range next.AllQuickTabs {
			if qt.OriginTabID == originTabID {
				next.AllQuickTabs[i] = patch(qt)
			}
		}
		next.LastModified = c.now().UnixMilli()
		return next, broadcast.Meta{}, nil
	})
}

// ReadState exposes a read-only snapshot for callers outside the
// handler spine (e.g. ObserverSync's revalidation path).
func (c *Coordinator) ReadState(ctx context.Context) model.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ReadState(ctx)
}

// Observers exposes the registry so TabLifecycle and transports can
// register/unregister targets without the Coordinator mediating every
// call.
func (c *Coordinator) Observers() *ObserverRegistry { return c.observers }

var errPoolFull = errors.New("coordinator: pool at max quick tabs")
