// Package broadcast implements the Broadcaster (spec §4.6, component
// C6): parallel fan-out of QT_STATE_SYNC to every eligible observer,
// with per-recipient isolation and failure accounting. Broadcast
// failures are swallowed here — observers recover through the passive
// storage-change path (spec §4.6 "Deduplication: broadcaster does not
// dedupe").
package broadcast

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"golang.org/x/sync/errgroup"

	"github.com/chunkynosher/quicktabs/internal/logging"
	"github.com/chunkynosher/quicktabs/internal/model"
)

// ObserverID identifies one broadcast target (an origin tab, the
// manager, or any other registered sync channel).
type ObserverID string

// Target is one eligible broadcast recipient.
type Target struct {
	ID   ObserverID
	Send func(ctx context.Context, payload []byte) error
}

// TargetFilter decides whether a given observer should receive a
// broadcast (spec §9 Open Questions: "Broadcast targets are filtered
// to http-scheme tabs in the source; a generalized implementation
// should parameterize this predicate" — this is that parameterization).
type TargetFilter func(ObserverID) bool

// AllTargets is the default TargetFilter: every registered observer
// is eligible.
func AllTargets(ObserverID) bool { return true }

// Result is the per-call accounting record from spec §4.6: "record
// totalTargets, successCount, failedCount, durationMs".
type Result struct {
	TotalTargets int
	SuccessCount int
	FailedCount  int
	Duration     time.Duration
}

// StateSyncPayload is the post-state envelope delivered with
// QT_STATE_SYNC. Delta is a JSON merge-patch from the previous state
// to State, included as a bandwidth hint; observers may apply it
// directly when their locally-held version matches PrevChecksum, or
// fall back to State wholesale otherwise.
type StateSyncPayload struct {
	State              model.State     `json:"state"`
	Delta              json.RawMessage `json:"delta,omitempty"`
	PrevChecksum       uint32          `json:"prevChecksum"`
	CorrelationID      string          `json:"correlationId"`
	Source             string          `json:"source,omitempty"`
	RemovedQuickTabIds []string        `json:"removedQuickTabIds,omitempty"`
}

// Meta carries broadcast metadata beyond the state delta itself. The
// zero value is the ordinary case (no source tag, nothing removed);
// TabLifecycle's cascade path (spec §4.7 TabRemoved) populates Source
// and RemovedQuickTabIds so observers and the broadcast wire payload
// can distinguish a tab-close cleanup from any other QT_STATE_SYNC
// (spec §8 E4: "a QT_STATE_SYNC broadcast carries removedQuickTabIds
// equal to the two removed ids").
type Meta struct {
	Source             string
	RemovedQuickTabIds []string
}

// Broadcaster fans state deltas out to observers.
type Broadcaster struct {
	logger       logging.Logger
	filter       TargetFilter
	managerSink  func(ctx context.Context, payload []byte) error
	sendTimeout  time.Duration
}

// Option configures a Broadcaster at construction.
type Option func(*Broadcaster)

func WithLogger(l logging.Logger) Option { return func(b *Broadcaster) { b.logger = l } }
func WithTargetFilter(f TargetFilter) Option {
	return func(b *Broadcaster) { b.filter = f }
}
func WithManagerSink(fn func(ctx context.Context, payload []byte) error) Option {
	return func(b *Broadcaster) { b.managerSink = fn }
}
func WithSendTimeout(d time.Duration) Option { return func(b *Broadcaster) { b.sendTimeout = d } }

// New constructs a Broadcaster with the AllTargets filter by default.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		logger:      logging.Nop(),
		filter:      AllTargets,
		sendTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Broadcast sends QT_STATE_SYNC to every target the filter accepts,
// in parallel, isolating each target's failure from the others (spec
// §4.6). prev is the previous canonical state, used only to compute
// the merge-patch delta hint. meta carries the optional source tag
// and removed-id list for the tab-close cascade path; pass the zero
// Meta{} for an ordinary mutation broadcast.
func (b *Broadcaster) Broadcast(ctx context.Context, targets []Target, prev, next model.State, correlationID string, meta Meta) Result {
	start := time.Now()

	eligible := make([]Target, 0, len(targets))
	for _, t := range targets {
		if b.filter(t.ID) {
			eligible = append(eligible, t)
		}
	}

	payload, err := buildPayload(prev, next, correlationID, meta)
	if err != nil {
		b.logger.Error("broadcast: failed to build payload", logging.Err(err))
		return Result{TotalTargets: len(eligible), FailedCount: len(eligible), Duration: time.Since(start)}
	}

	var successCount, failedCount atomic.Int64
	grp, gctx := errgroup.WithContext(ctx)
	for _, target := range eligible {
		target := target
		grp.Go(func() error {
			sendCtx, cancel := context.WithTimeout(gctx, b.sendTimeout)
			defer cancel()
			if err := target.Send(sendCtx, payload); err != nil {
				failedCount.Add(1)
				b.logger.Warn("broadcast: target failed, swallowed",
					logging.String("observer", string(target.ID)), logging.Err(err))
				return nil // swallowed per spec §4.6; not propagated via errgroup
			}
			successCount.Add(1)
			return nil
		})
	}
	_ = grp.Wait()

	b.notifyManager(ctx, payload)

	return Result{
		TotalTargets: len(eligible),
		SuccessCount: int(successCount.Load()),
		FailedCount:  int(failedCount.Load()),
		Duration:     time.Since(start),
	}
}

// notifyManager delivers SIDEBAR_UPDATE with the same post-state over
// the single optional manager channel (spec §4.6: "absence of the
// manager (not attached) is not an error").
func (b *Broadcaster) notifyManager(ctx context.Context, payload []byte) {
	if b.managerSink == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
	defer cancel()
	if err := b.managerSink(sendCtx, payload); err != nil {
		b.logger.Warn("broadcast: manager sink failed, swallowed", logging.Err(err))
	}
}

func buildPayload(prev, next model.State, correlationID string, meta Meta) ([]byte, error) {
	prevJSON, err := json.Marshal(prev)
	if err != nil {
		return nil, err
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	delta, err := jsonpatch.CreateMergePatch(prevJSON, nextJSON)
	if err != nil {
		// A delta is a bandwidth hint, not load-bearing: fall back to no
		// delta rather than failing the whole broadcast.
		delta = nil
	}
	sp := StateSyncPayload{
		State:              next,
		Delta:              delta,
		PrevChecksum:       model.Checksum32(prev),
		CorrelationID:      correlationID,
		Source:             meta.Source,
		RemovedQuickTabIds: meta.RemovedQuickTabIds,
	}
	return json.Marshal(sp)
}

// HTTPOnly is an example TargetFilter matching the source's original
// behavior for parity (spec §9 Open Questions): observers whose
// ObserverID encodes a URL are included only when that URL carries an
// http(s) scheme. Non-URL observer IDs (e.g. "manager") are always
// accepted since the predicate only constrains tab-bound observers.
func HTTPOnly(urlOf func(ObserverID) (url string, ok bool)) TargetFilter {
	return func(id ObserverID) bool {
		u, ok := urlOf(id)
		if !ok {
			return true
		}
		return len(u) >= 7 && (u[:7] == "http://" || (len(u) >= 8 && u[:8] == "https://"))
	}
}

