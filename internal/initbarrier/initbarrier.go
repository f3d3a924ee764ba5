// Package initbarrier implements InitBarrier (spec §4.9, component
// C9): the single-flight bootstrap sequence that loads raw storage,
// migrates legacy formats under a one-shot lock, validates the
// result, and wires the MessageRouter/TabLifecycle listeners.
package initbarrier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chunkynosher/quicktabs/internal/logging"
	"github.com/chunkynosher/quicktabs/internal/migrate"
	"github.com/chunkynosher/quicktabs/internal/model"
	"github.com/chunkynosher/quicktabs/internal/platform"
)

// ErrTimeout is returned when bootstrap does not complete within the
// configured ceiling (spec §4.9 step 4, §5 "InitBarrier: 10s hard
// ceiling").
var ErrTimeout = errors.New("initbarrier: bootstrap exceeded timeout")

const stateKey = "quick_tabs_state_v2"

// Outcome is the result of a bootstrap attempt, cached so a second
// call returns the first call's outcome (spec §4.9 "Idempotent").
type Outcome struct {
	Minimal        bool
	MigrationRan   bool
	MigrationFrom  string
	Err            error
}

// RegisterMinimal wires only the minimal-mode MessageRouter contract
// (spec §9 "Feature flag hazard").
type RegisterMinimal func()

// RegisterFull wires the full MessageRouter and TabLifecycle
// listeners once bootstrap succeeds.
type RegisterFull func()

// Barrier runs the bootstrap sequence exactly once per process.
type Barrier struct {
	storage       platform.Storage
	limits        model.Limits
	schemaVersion int
	timeout       time.Duration
	logger        logging.Logger

	useV2 bool

	registerMinimal RegisterMinimal
	registerFull    RegisterFull

	group singleflight.Group

	once    sync.Once
	outcome Outcome

	migrationMu sync.Mutex // advisory, per-process migration lock (spec §4.9, §5)
}

// Option configures a Barrier at construction.
type Option func(*Barrier)

func WithLogger(l logging.Logger) Option            { return func(b *Barrier) { b.logger = l } }
func WithLimits(lim model.Limits) Option            { return func(b *Barrier) { b.limits = lim } }
func WithSchemaVersion(v int) Option                { return func(b *Barrier) { b.schemaVersion = v } }
func WithTimeout(d time.Duration) Option            { return func(b *Barrier) { b.timeout = d } }
func WithUseQuickTabsV2(enabled bool) Option        { return func(b *Barrier) { b.useV2 = enabled } }
func WithRegisterMinimal(fn RegisterMinimal) Option { return func(b *Barrier) { b.registerMinimal = fn } }
func WithRegisterFull(fn RegisterFull) Option       { return func(b *Barrier) { b.registerFull = fn } }

// New constructs a Barrier bound to storage.
func New(storage platform.Storage, opts ...Option) *Barrier {
	b := &Barrier{
		storage:       storage,
		schemaVersion: 2,
		timeout:       10 * time.Second,
		logger:        logging.Nop(),
		useV2:         true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes the bootstrap sequence. Concurrent callers within the
// same process share one in-flight attempt via singleflight; any call
// made after the first has completed returns its cached Outcome
// without re-running anything (spec §4.9 "Idempotent: a second call
// returns the first call's outcome").
func (b *Barrier) Run(ctx context.Context) Outcome {
	b.once.Do(func() {
		b.outcome = b.runOnce(ctx)
	})
	return b.outcome
}

func (b *Barrier) runOnce(ctx context.Context) Outcome {
	if !b.useV2 {
		if b.registerMinimal != nil {
			b.registerMinimal()
		}
		return Outcome{Minimal: true}
	}

	bootCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		Outcome
	}
	ch := b.group.DoChan("bootstrap", func() (interface{}, error) {
		return result{b.bootstrap(bootCtx)}, nil
	})

	select {
	case <-bootCtx.Done():
		return Outcome{Err: ErrTimeout}
	case r := <-ch:
		if r.Err != nil {
			return Outcome{Err: r.Err}
		}
		return r.Val.(result).Outcome
	}
}

// bootstrap implements spec §4.9 step 3: load raw data, migrate under
// the advisory lock if needed, validate the result, register the full
// listener set.
func (b *Barrier) bootstrap(ctx context.Context) Outcome {
	raw, err := b.storage.Get(ctx, stateKey)
	if err != nil {
		b.logger.Error("initbarrier: failed to load raw storage", logging.Err(err))
		return Outcome{Err: err}
	}

	var data migrate.Raw
	migrationRan := false
	migrationFrom := ""

	if raw == nil {
		data = migrate.Raw{}
	} else if err := json.Unmarshal(raw, &data); err != nil {
		data = migrate.Raw{}
	}

	diag := model.ValidateWithDiagnostics(decodeAsState(data, b.schemaVersion), b.limits, b.schemaVersion)
	needsMigration := !looksCanonical(data) || diag.NeedsMigration

	var state model.State
	if needsMigration {
		b.migrationMu.Lock()
		// Re-detect after acquiring the lock: a contending migration
		// attempt awaits the lock and then re-checks format before
		// acting (spec §5 "a contending migration attempt awaits the
		// existing promise and then re-detects format before acting").
		strategyName := migrate.Detect(data, b.schemaVersion, time.Now())
		migrated, report := migrate.Migrate(data, b.schemaVersion, time.Now())
		state = migrated
		migrationRan = true
		migrationFrom = strategyName
		b.migrationMu.Unlock()

		if len(report.Warnings) > 0 {
			b.logger.Warn("initbarrier: migration produced warnings",
				logging.Any("warnings", report.Warnings))
		}

		payload, err := json.Marshal(state)
		if err == nil {
			_ = b.storage.Set(ctx, stateKey, payload)
		}
	} else {
		state = decodeAsState(data, b.schemaVersion)
	}

	if !model.IsValid(state, b.limits) {
		state = model.Empty(b.schemaVersion)
		payload, _ := json.Marshal(state)
		_ = b.storage.Set(ctx, stateKey, payload)
	}

	if b.registerFull != nil {
		b.registerFull()
	}

	return Outcome{MigrationRan: migrationRan, MigrationFrom: migrationFrom}
}

func looksCanonical(data migrate.Raw) bool {
	_, ok := data["allQuickTabs"]
	return ok
}

func decodeAsState(data migrate.Raw, schemaVersion int) model.State {
	encoded, err := json.Marshal(data)
	if err != nil {
		return model.Empty(schemaVersion)
	}
	var state model.State
	if err := json.Unmarshal(encoded, &state); err != nil {
		return model.Empty(schemaVersion)
	}
	if state.AllQuickTabs == nil {
		state.AllQuickTabs = []model.QuickTab{}
	}
	return state
}
