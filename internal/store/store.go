// Package store implements the authoritative StateStore (spec §4.3,
// component C3): validated writes, checksum readback, correlation-id
// deduplication, retry with backoff, and recovery.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chunkynosher/quicktabs/internal/logging"
	"github.com/chunkynosher/quicktabs/internal/model"
	"github.com/chunkynosher/quicktabs/internal/platform"
)

const primaryKey = "quick_tabs_state_v2"
const backupKey = "quick_tabs_state_v2_backup"

// WriteResult is the `{ success, skipped?, error? }` shape from
// spec §4.3.
type WriteResult struct {
	Success bool
	Skipped bool
	Error   error
}

// RecoveryResult is the `{ recovered, source }` shape from spec §4.3.
type RecoveryResult struct {
	Recovered bool
	Source    string // "backup" or "empty"
}

// StateStore is the single source of truth for canonical state. All
// methods are safe for concurrent use, though spec §5 only requires
// the Coordinator process to serialize its own writes through one
// instance.
type StateStore struct {
	mu sync.Mutex

	storage       platform.Storage
	logger        logging.Logger
	limits        model.Limits
	schemaVersion int

	maxRetries  int
	backoff     []time.Duration
	dedupWindow time.Duration

	lastCorrelationID string
	lastWriteAt       time.Time
	recentWrites      *lru.Cache[string, time.Time]

	metrics *Metrics

	healthCheckInterval time.Duration
	healthStop          chan struct{}
	healthOnce          sync.Once

	now func() time.Time
}

// Option configures a StateStore at construction, mirroring the
// StateStoreOption/WithMaxHistory functional-option pattern.
type Option func(*StateStore)

func WithLogger(l logging.Logger) Option { return func(s *StateStore) { s.logger = l } }
func WithLimits(lim model.Limits) Option { return func(s *StateStore) { s.limits = lim } }
func WithSchemaVersion(v int) Option     { return func(s *StateStore) { s.schemaVersion = v } }
func WithMaxRetries(n int) Option        { return func(s *StateStore) { s.maxRetries = n } }
func WithBackoffSchedule(d ...time.Duration) Option {
	return func(s *StateStore) { s.backoff = d }
}
func WithDedupWindow(d time.Duration) Option { return func(s *StateStore) { s.dedupWindow = d } }
func WithHealthCheckInterval(d time.Duration) Option {
	return func(s *StateStore) { s.healthCheckInterval = d }
}
func WithMetricsRegistry(r *prometheus.Registry) Option {
	return func(s *StateStore) { s.metrics = NewMetrics(r) }
}
func withClock(fn func() time.Time) Option { return func(s *StateStore) { s.now = fn } }

// New constructs a StateStore bound to storage, with defaults matching
// spec §6's configuration table.
func New(storage platform.Storage, opts ...Option) *StateStore {
	recent, _ := lru.New[string, time.Time](256)
	s := &StateStore{
		storage:             storage,
		logger:              logging.Nop(),
		schemaVersion:       2,
		maxRetries:          3,
		backoff:             []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
		dedupWindow:         50 * time.Millisecond,
		recentWrites:        recent,
		metrics:             NewMetrics(nil),
		healthCheckInterval: 5 * time.Second,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadState returns canonical S, or Empty if absent or invalid. It
// never returns an error to the caller (spec §4.3 "Never throws").
func (s *StateStore) ReadState(ctx context.Context) model.State {
	raw, err := s.storage.Get(ctx, primaryKey)
	if err != nil || raw == nil {
		return model.Empty(s.schemaVersion)
	}
	var state model.State
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("store: corrupt primary state, returning empty", logging.Err(err))
		return model.Empty(s.schemaVersion)
	}
	if !model.IsValid(state, s.limits) {
		return model.Empty(s.schemaVersion)
	}
	return state
}

// WriteStateWithValidation runs the write algorithm from spec §4.3
// exactly: dedup check, stamp, retry loop with readback validation,
// recovery on exhaustion.
func (s *StateStore) WriteStateWithValidation(ctx context.Context, state model.State, correlationID string) WriteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metrics.storageUnavailable.Load() {
		return WriteResult{Success: false, Error: ErrStorageUnavailable}
	}

	now := s.now()
	if s.isDuplicate(correlationID, now) {
		s.metrics.duplicatesSkipped.Add(1)
		return WriteResult{Success: true, Skipped: true}
	}
	s.recordWrite(correlationID, now)

	state.SchemaVersion = s.schemaVersion
	state.LastModified = now.UnixMilli()
	wantChecksum := model.Checksum32(state)
	wantLen := len(state.AllQuickTabs)

	payload, err := json.Marshal(state)
	if err != nil {
		return WriteResult{Success: false, Error: err}
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err := s.storage.Set(ctx, primaryKey, payload); err != nil {
			lastErr = err
			s.waitBackoff(ctx, attempt)
			continue
		}

		readback, err := s.storage.Get(ctx, primaryKey)
		if err != nil {
			lastErr = err
			s.waitBackoff(ctx, attempt)
			continue
		}
		if !validReadback(readback, wantLen, wantChecksum) {
			lastErr = ErrReadbackMismatch
			s.waitBackoff(ctx, attempt)
			continue
		}

		s.metrics.successfulWrites.Add(1)
		if attempt > 1 {
			s.metrics.retriesNeeded.Add(1)
		}
		return WriteResult{Success: true}
	}

	s.metrics.failedWrites.Add(1)
	class := Classify(lastErr)
	if class == ErrorClassUnavailable {
		s.metrics.storageUnavailable.Store(true)
	}
	recovery := s.triggerStorageRecoveryLocked(ctx)
	s.logger.Error("store: write exhausted retries, recovery attempted",
		logging.Err(lastErr),
		logging.Bool("recovered", recovery.Recovered),
		logging.String("recoverySource", recovery.Source))
	return WriteResult{Success: false, Error: errors.Join(lastErr, errFromClass(class))}
}

// isDuplicate implements spec §4.3 step 1: correlationId equals the
// last one AND the write falls within the dedup window. The LRU also
// remembers older correlation IDs so a duplicate submitted slightly
// out of turn (e.g. retried by a flaky caller) is still recognized
// within the window, not just the single most recent one.
func (s *StateStore) isDuplicate(correlationID string, now time.Time) bool {
	if correlationID == s.lastCorrelationID && now.Sub(s.lastWriteAt) < s.dedupWindow {
		return true
	}
	if at, ok := s.recentWrites.Get(correlationID); ok && now.Sub(at) < s.dedupWindow {
		return true
	}
	return false
}

func (s *StateStore) recordWrite(correlationID string, now time.Time) {
	s.lastCorrelationID = correlationID
	s.lastWriteAt = now
	s.recentWrites.Add(correlationID, now)
}

// waitBackoff sleeps the schedule entry for this attempt, or the
// backoff library's default exponential policy if attempt exceeds the
// configured schedule length.
func (s *StateStore) waitBackoff(ctx context.Context, attempt int) {
	var d time.Duration
	if attempt-1 < len(s.backoff) {
		d = s.backoff[attempt-1]
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 100 * time.Millisecond
		eb.Multiplier = 2.0
		eb.RandomizationFactor = 0
		d = eb.NextBackOff()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func validReadback(raw []byte, wantLen int, wantChecksum uint32) bool {
	var state model.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return false
	}
	if len(state.AllQuickTabs) != wantLen {
		return false
	}
	return model.Checksum32(state) == wantChecksum
}

// TriggerStorageRecovery attempts to restore from a secondary backup
// location; failing that, resets to Empty (spec §4.3 "Recovery").
func (s *StateStore) TriggerStorageRecovery(ctx context.Context) RecoveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggerStorageRecoveryLocked(ctx)
}

func (s *StateStore) triggerStorageRecoveryLocked(ctx context.Context) RecoveryResult {
	raw, err := s.storage.Get(ctx, backupKey)
	if err == nil && raw != nil {
		var state model.State
		if err := json.Unmarshal(raw, &state); err == nil && model.IsValid(state, s.limits) {
			if setErr := s.storage.Set(ctx, primaryKey, raw); setErr == nil {
				return RecoveryResult{Recovered: true, Source: "backup"}
			}
		}
	}

	empty := model.Empty(s.schemaVersion)
	payload, _ := json.Marshal(empty)
	if err := s.storage.Set(ctx, primaryKey, payload); err != nil {
		s.logger.Error("store: recovery failed, neither backup nor empty reset succeeded", logging.Err(err))
		return RecoveryResult{Recovered: false, Source: "none"}
	}
	return RecoveryResult{Recovered: true, Source: "empty"}
}

// GetMetrics returns a snapshot of the store's own counters.
func (s *StateStore) GetMetrics() Snapshot { return s.metrics.snapshot() }

// ResetMetrics zeroes the store's own counters (spec §4.3
// "resetMetrics()").
func (s *StateStore) ResetMetrics() { s.metrics.reset() }

// StartHealthCheck launches the periodic liveness probe named by
// STORAGE_HEALTH_CHECK_INTERVAL_MS (spec §6; consumer defined in
// SPEC_FULL.md EXP-3): it re-validates storageUnavailable and
// republishes it through the Prometheus gauge wired in NewMetrics.
// Call Stop to end the goroutine; safe to call StartHealthCheck only
// once per StateStore.
func (s *StateStore) StartHealthCheck(ctx context.Context) {
	s.healthOnce.Do(func() {
		s.healthStop = make(chan struct{})
		go s.healthCheckLoop(ctx)
	})
}

func (s *StateStore) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(s.healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.healthStop:
			return
		case <-ticker.C:
			s.probeHealth(ctx)
		}
	}
}

func (s *StateStore) probeHealth(ctx context.Context) {
	_, err := s.storage.Get(ctx, primaryKey)
	class := Classify(err)
	if class == ErrorClassUnavailable {
		s.metrics.storageUnavailable.Store(true)
		return
	}
	if err == nil {
		s.metrics.storageUnavailable.Store(false)
	}
}

// Stop ends the health-check goroutine, if running.
func (s *StateStore) Stop() {
	if s.healthStop != nil {
		close(s.healthStop)
	}
}

func errFromClass(c ErrorClass) error {
	switch c {
	case ErrorClassQuota, ErrorClassPermission, ErrorClassUnavailable:
		return ErrStorageUnavailable
	default:
		return ErrReadbackMismatch
	}
}
