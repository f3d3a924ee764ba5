// Package observer implements ObserverSync (spec §4.8, component C8):
// the observer-side reconciliation of push messages and storage-change
// events into a consistent local projection.
package observer

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chunkynosher/quicktabs/internal/logging"
	"github.com/chunkynosher/quicktabs/internal/model"
)

// Revalidator re-reads canonical state directly from the StateStore,
// bypassing the push/passive streams — used when the ordering
// validator detects a regression (spec §4.8 step 4).
type Revalidator func(ctx context.Context) model.State

// Event is a candidate state observation from either input stream
// (spec §4.8: "Push stream: QT_STATE_SYNC messages ... Passive
// stream: host storage-change events").
type Event struct {
	State         model.State
	CorrelationID string
	Timestamp     int64 // ms epoch, from the event's own clock
}

// Sync is one observer's reconciliation engine and owned projection.
type Sync struct {
	mu sync.Mutex

	originTabID *int // nil for a manager observer (sees the full set)
	projection  model.State

	lastOutboundCorrelationID string
	lastOutboundAt            time.Time

	dedupCache    *lru.Cache[string, time.Time]
	lastAccepted  map[uint64]int64 // content fingerprint -> last accepted event timestamp

	revalidate Revalidator
	onRefresh  func(model.State)
	logger     logging.Logger

	writeIgnoreWindow time.Duration
	dedupWindow       time.Duration
	now               func() time.Time
}

// Option configures a Sync at construction.
type Option func(*Sync)

func WithLogger(l logging.Logger) Option             { return func(s *Sync) { s.logger = l } }
func WithWriteIgnoreWindow(d time.Duration) Option    { return func(s *Sync) { s.writeIgnoreWindow = d } }
func WithDedupWindow(d time.Duration) Option          { return func(s *Sync) { s.dedupWindow = d } }
func WithOnRefresh(fn func(model.State)) Option       { return func(s *Sync) { s.onRefresh = fn } }
func WithOriginTabID(tabID int) Option {
	return func(s *Sync) { s.originTabID = &tabID }
}

// New constructs an observer Sync. A nil originTabID (the default,
// overridden by WithOriginTabID) means this observer sees the full
// pool, as a manager observer does (spec §4.8).
func New(revalidate Revalidator, opts ...Option) *Sync {
	cache, _ := lru.New[string, time.Time](256)
	s := &Sync{
		projection:        model.Empty(2),
		dedupCache:        cache,
		lastAccepted:      make(map[uint64]int64),
		revalidate:        revalidate,
		logger:            logging.Nop(),
		writeIgnoreWindow: 100 * time.Millisecond,
		dedupWindow:       300 * time.Millisecond,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NoteOutboundWrite records the correlation id of this observer's own
// most recent outbound mutation, so the next echoed event can be
// suppressed (spec §4.8 step 2).
func (s *Sync) NoteOutboundWrite(correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOutboundCorrelationID = correlationID
	s.lastOutboundAt = s.now()
}

// Reconcile runs the 6-step algorithm from spec §4.8 against one
// candidate event from either stream.
func (s *Sync) Reconcile(ctx context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	// Step 2: self-write suppression.
	if ev.CorrelationID != "" && ev.CorrelationID == s.lastOutboundCorrelationID &&
		now.Sub(s.lastOutboundAt) < s.writeIgnoreWindow {
		s.logger.Debug("observer: suppressed self-write echo", logging.String("correlationId", ev.CorrelationID))
		return
	}

	ids := idsOf(ev.State)
	fp := contentFingerprint(ids)

	// Step 3: message deduplication by (ids, timestamp) within the
	// wall-clock dedup window.
	key := dedupKey(ids, ev.Timestamp)
	if seenAt, ok := s.dedupCache.Get(key); ok && now.Sub(seenAt) < s.dedupWindow {
		s.logger.Debug("observer: dropped duplicate event")
		return
	}
	s.dedupCache.Add(key, now)

	// Step 4: ordering validation. lastAccepted is keyed by content
	// fingerprint (the set of ids), not the dedup key, so a stale
	// redelivery of the same content at an earlier event timestamp is
	// caught even though its dedup key differs (see DESIGN.md: this
	// resolves spec §4.8's literal ambiguity about what "fingerprint"
	// means across steps 3 and 4).
	state := ev.State
	if last, ok := s.lastAccepted[fp]; ok && ev.Timestamp < last {
		s.logger.Warn("observer: out-of-order event detected, revalidating from store")
		state = s.revalidate(ctx)
	} else {
		s.lastAccepted[fp] = ev.Timestamp
	}

	// Step 5: filter to this observer's projection domain.
	filtered := s.filter(state)

	// Step 6: atomically replace P and notify renderers.
	s.projection = filtered
	if s.onRefresh != nil {
		s.onRefresh(filtered)
	}
}

// Projection returns the observer's current local projection.
func (s *Sync) Projection() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projection
}

func (s *Sync) filter(state model.State) model.State {
	if s.originTabID == nil {
		return state
	}
	filtered := state.Clone()
	filtered.AllQuickTabs = model.FilterByOriginTab(state, *s.originTabID)
	return filtered
}

func idsOf(state model.State) []string {
	ids := make([]string, 0, len(state.AllQuickTabs))
	for _, qt := range state.AllQuickTabs {
		ids = append(ids, qt.ID)
	}
	sort.Strings(ids)
	return ids
}

func contentFingerprint(ids []string) uint64 {
	h := fnv.New64a()
	for _, id := range ids {
		_, _ = h.Write([]byte(id))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func dedupKey(ids []string, timestamp int64) string {
	return fmt.Sprintf("%d:%d", contentFingerprint(ids), timestamp)
}
