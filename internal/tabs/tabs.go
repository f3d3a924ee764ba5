// Package tabs implements TabLifecycle (spec §4.7, component C7):
// translates host tab events into state mutations through the
// Coordinator.
package tabs

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/chunkynosher/quicktabs/internal/logging"
	"github.com/chunkynosher/quicktabs/internal/model"
	"github.com/chunkynosher/quicktabs/internal/platform"
)

// coordinator is the narrow slice of *coordinator.Coordinator this
// package depends on — an interface here (rather than importing the
// concrete type) avoids a package cycle, since coordinator does not
// need to know about tabs.
type coordinator interface {
	RemoveByOriginTab(ctx context.Context, originTabID int, correlationID string) []string
	ApplyCoalescedPatch(ctx context.Context, originTabID int, patch func(model.QuickTab) model.QuickTab, correlationID string)
}

// RefreshRequester asks the observer in a given tab to refresh its
// projection (spec §4.7 TabActivated, "latency target ~10-20ms"). The
// host platform's tabs.sendMessage is the natural transport.
type RefreshRequester func(ctx context.Context, tabID int) error

// pendingUpdate accumulates a coalesced TabUpdated patch for one tab
// until its debounce timer fires.
type pendingUpdate struct {
	firstSeenAt time.Time
	changes     platform.Tab
	timer       *time.Timer
}

// Lifecycle listens to TabActivated/TabRemoved/TabUpdated host signals
// and translates them into Coordinator mutations.
type Lifecycle struct {
	mu       sync.Mutex
	pending  map[int]*pendingUpdate

	coordinator coordinator
	refresh     RefreshRequester
	logger      logging.Logger

	debounce time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// Option configures a Lifecycle at construction.
type Option func(*Lifecycle)

func WithLogger(l logging.Logger) Option        { return func(lc *Lifecycle) { lc.logger = l } }
func WithDebounce(d time.Duration) Option       { return func(lc *Lifecycle) { lc.debounce = d } }
func WithMaxAge(d time.Duration) Option         { return func(lc *Lifecycle) { lc.maxAge = d } }
func WithRefreshRequester(fn RefreshRequester) Option {
	return func(lc *Lifecycle) { lc.refresh = fn }
}

// withClock overrides the wall clock; test-only.
func withClock(fn func() time.Time) Option { return func(lc *Lifecycle) { lc.now = fn } }

// New constructs a Lifecycle bound to a Coordinator.
func New(coord coordinator, opts ...Option) *Lifecycle {
	lc := &Lifecycle{
		pending:     make(map[int]*pendingUpdate),
		coordinator: coord,
		logger:      logging.Nop(),
		debounce:    500 * time.Millisecond,
		maxAge:      5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

// OnActivated implements "TabActivated(tabId): request the observer in
// that tab to refresh projection" (spec §4.7).
func (lc *Lifecycle) OnActivated(ctx context.Context, tabID int) {
	if lc.refresh == nil {
		return
	}
	if err := lc.refresh(ctx, tabID); err != nil {
		lc.logger.Warn("tabs: refresh request failed", logging.Int("tabId", tabID), logging.Err(err))
	}
}

// OnRemoved implements "TabRemoved(tabId): atomically remove all
// entities with originTabId == tabId ... broadcast QT_STATE_SYNC with
// source tab-events-cleanup" (spec §4.7, E4, P5). It also cancels any
// pending coalesced update for that tab.
func (lc *Lifecycle) OnRemoved(ctx context.Context, tabID int) []string {
	lc.mu.Lock()
	if p, ok := lc.pending[tabID]; ok {
		p.timer.Stop()
		delete(lc.pending, tabID)
	}
	lc.mu.Unlock()

	return lc.coordinator.RemoveByOriginTab(ctx, tabID, correlationForCleanup(tabID))
}

// OnUpdated implements "TabUpdated(tabId, changes, tab): coalesce
// url/title/favicon/container changes. Debounce 500ms per tabId,
// discard if a pending change is older than 5s" (spec §4.7). Each
// coalesce reschedules the debounce timer rather than letting the
// first one stand, so a tab that keeps mutating every 500ms would
// never flush without the maxAge backstop forcing one out once the
// pending patch has been live that long.
func (lc *Lifecycle) OnUpdated(ctx context.Context, tabID int, changes platform.Tab) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	p, exists := lc.pending[tabID]
	now := lc.now()
	if exists && now.Sub(p.firstSeenAt) > lc.maxAge {
		p.timer.Stop()
		delete(lc.pending, tabID)
		p.changes = mergeTabChanges(p.changes, changes)
		go lc.applyFlush(ctx, tabID, p.changes)
		exists = false
	}

	if exists {
		p.changes = mergeTabChanges(p.changes, changes)
		p.timer.Stop()
		p.timer = time.AfterFunc(lc.debounce, func() { lc.flush(ctx, tabID) })
		return
	}

	p = &pendingUpdate{firstSeenAt: now, changes: changes}
	p.timer = time.AfterFunc(lc.debounce, func() { lc.flush(ctx, tabID) })
	lc.pending[tabID] = p
}

func (lc *Lifecycle) flush(ctx context.Context, tabID int) {
	lc.mu.Lock()
	p, ok := lc.pending[tabID]
	if ok {
		delete(lc.pending, tabID)
	}
	lc.mu.Unlock()
	if !ok {
		return
	}
	lc.applyFlush(ctx, tabID, p.changes)
}

// applyFlush writes one coalesced patch to the Coordinator. It is
// called from the debounce timer (lc.flush) and from OnUpdated's
// maxAge backstop, which forces a flush of the outgoing pending entry
// before starting a fresh one rather than silently discarding it.
func (lc *Lifecycle) applyFlush(ctx context.Context, tabID int, changes platform.Tab) {
	lc.coordinator.ApplyCoalescedPatch(ctx, tabID, func(qt model.QuickTab) model.QuickTab {
		if changes.URL != "" {
			qt.URL = changes.URL
		}
		if changes.Title != "" {
			qt.Title = changes.Title
		}
		return qt
	}, correlationForUpdate(tabID))
}

func mergeTabChanges(base, incoming platform.Tab) platform.Tab {
	if incoming.URL != "" {
		base.URL = incoming.URL
	}
	if incoming.Title != "" {
		base.Title = incoming.Title
	}
	base.Active = incoming.Active
	return base
}

func correlationForCleanup(tabID int) string {
	return "tab-events-cleanup:" + strconv.Itoa(tabID)
}

func correlationForUpdate(tabID int) string {
	return "tab-events-update:" + strconv.Itoa(tabID)
}
