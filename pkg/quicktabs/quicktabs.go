// Package quicktabs wires the synchronization core's components
// (Schema, FormatMigrator, StateStore, MessageRouter, Coordinator,
// Broadcaster, TabLifecycle, ObserverSync, InitBarrier) into one
// cohesive API, the way the teacher's pkg/state ties its layers
// together behind a single entry point for a host process to embed.
package quicktabs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chunkynosher/quicktabs/internal/broadcast"
	"github.com/chunkynosher/quicktabs/internal/config"
	"github.com/chunkynosher/quicktabs/internal/coordinator"
	"github.com/chunkynosher/quicktabs/internal/initbarrier"
	"github.com/chunkynosher/quicktabs/internal/logging"
	"github.com/chunkynosher/quicktabs/internal/model"
	"github.com/chunkynosher/quicktabs/internal/platform"
	"github.com/chunkynosher/quicktabs/internal/protocol"
	"github.com/chunkynosher/quicktabs/internal/router"
	"github.com/chunkynosher/quicktabs/internal/store"
	"github.com/chunkynosher/quicktabs/internal/tabs"
)

// Core bundles every synchronization component behind one value a
// host process constructs once at startup.
type Core struct {
	cfg *config.Config

	Store       *store.StateStore
	Broadcaster *broadcast.Broadcaster
	Observers   *coordinator.ObserverRegistry
	Coordinator *coordinator.Coordinator
	Router      *router.Router
	Tabs        *tabs.Lifecycle
	Barrier     *initbarrier.Barrier

	logger logging.Logger
}

// Option configures a Core at construction.
type Option func(*options)

type options struct {
	config           *config.Config
	logger           logging.Logger
	metricsRegistry  *prometheus.Registry
	managerSink      func(ctx context.Context, payload []byte) error
	targetFilter     broadcast.TargetFilter
	refreshRequester tabs.RefreshRequester
}

// WithConfig overrides the default configuration (spec §6).
func WithConfig(c *config.Config) Option { return func(o *options) { o.config = c } }

// WithLogger sets the structured logger every component derives its
// own child logger from.
func WithLogger(l logging.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetricsRegistry registers the StateStore's counters on r instead
// of leaving them unregistered.
func WithMetricsRegistry(r *prometheus.Registry) Option {
	return func(o *options) { o.metricsRegistry = r }
}

// WithManagerSink wires the optional SIDEBAR_UPDATE channel (spec
// §4.6).
func WithManagerSink(fn func(ctx context.Context, payload []byte) error) Option {
	return func(o *options) { o.managerSink = fn }
}

// WithTargetFilter overrides the Broadcaster's default AllTargets
// filter.
func WithTargetFilter(f broadcast.TargetFilter) Option {
	return func(o *options) { o.targetFilter = f }
}

// WithRefreshRequester wires TabLifecycle's TabActivated refresh path
// to the host platform's tabs.sendMessage.
func WithRefreshRequester(fn tabs.RefreshRequester) Option {
	return func(o *options) { o.refreshRequester = fn }
}

// New constructs a Core bound to a Host Platform's Storage, wiring
// every component per spec §5's dependency graph: StateStore sits
// beneath Coordinator, which sits beneath Router and TabLifecycle;
// Broadcaster and the ObserverRegistry are siblings Coordinator
// drives directly.
func New(storage platform.Storage, opts ...Option) *Core {
	o := &options{config: config.Default(), logger: logging.Nop()}
	for _, opt := range opts {
		opt(o)
	}

	limits := model.Limits{
		MaxURLLength:   o.config.MaxURLLength,
		MaxTitleLength: o.config.MaxTitleLength,
		MinWidth:       o.config.MinWidth,
		MaxWidth:       o.config.MaxWidth,
		MinHeight:      o.config.MinHeight,
		MaxHeight:      o.config.MaxHeight,
		MaxQuickTabs:   o.config.MaxQuickTabs,
	}

	st := store.New(storage,
		store.WithLogger(o.logger),
		store.WithLimits(limits),
		store.WithSchemaVersion(o.config.SchemaVersion),
		store.WithMaxRetries(o.config.MaxRetries),
		store.WithBackoffSchedule(o.config.Backoff...),
		store.WithDedupWindow(o.config.MessageDedupWindow),
		store.WithHealthCheckInterval(o.config.StorageHealthCheckInterval),
		store.WithMetricsRegistry(o.metricsRegistry),
	)

	bcOpts := []broadcast.Option{
		broadcast.WithLogger(o.logger),
		broadcast.WithSendTimeout(o.config.MessageTimeout),
	}
	if o.targetFilter != nil {
		bcOpts = append(bcOpts, broadcast.WithTargetFilter(o.targetFilter))
	}
	if o.managerSink != nil {
		bcOpts = append(bcOpts, broadcast.WithManagerSink(o.managerSink))
	}
	bc := broadcast.New(bcOpts...)

	observers := coordinator.NewObserverRegistry()
	coord := coordinator.New(st, bc, observers,
		coordinator.WithLogger(o.logger),
		coordinator.WithLimits(limits),
	)

	r := router.New(router.WithLogger(o.logger))
	registerHandlers(r, coord)
	r.SetMinimalMode(!o.config.UseQuickTabsV2)

	lifecycleOpts := []tabs.Option{
		tabs.WithLogger(o.logger),
		tabs.WithDebounce(o.config.TabUpdatedDebounce),
		tabs.WithMaxAge(o.config.TabUpdatedMaxAge),
	}
	if o.refreshRequester != nil {
		lifecycleOpts = append(lifecycleOpts, tabs.WithRefreshRequester(o.refreshRequester))
	}
	lifecycle := tabs.New(coord, lifecycleOpts...)

	barrier := initbarrier.New(storage,
		initbarrier.WithLogger(o.logger),
		initbarrier.WithLimits(limits),
		initbarrier.WithSchemaVersion(o.config.SchemaVersion),
		initbarrier.WithTimeout(o.config.InitBarrierTimeout),
		initbarrier.WithUseQuickTabsV2(o.config.UseQuickTabsV2),
		initbarrier.WithRegisterMinimal(func() { r.SetMinimalMode(true) }),
		initbarrier.WithRegisterFull(func() { r.SetMinimalMode(false) }),
	)

	return &Core{
		cfg:         o.config,
		Store:       st,
		Broadcaster: bc,
		Observers:   observers,
		Coordinator: coord,
		Router:      r,
		Tabs:        lifecycle,
		Barrier:     barrier,
		logger:      o.logger,
	}
}

// registerHandlers binds every closed message Type (spec §4.4) to its
// owning Coordinator method.
func registerHandlers(r *router.Router, c *coordinator.Coordinator) {
	r.Register(protocol.TypeCreated, c.HandleCreated)
	r.Register(protocol.TypePositionChanged, c.HandlePositionChanged)
	r.Register(protocol.TypeSizeChanged, c.HandleSizeChanged)
	r.Register(protocol.TypeMinimized, c.HandleMinimized)
	r.Register(protocol.TypeRestored, c.HandleRestored)
	r.Register(protocol.TypeClosed, c.HandleClosed)
	r.Register(protocol.TypeManagerCloseAll, c.HandleManagerCloseAll)
	r.Register(protocol.TypeManagerCloseMin, c.HandleManagerCloseMinimized)
	r.Register(protocol.TypeRequestFullState, c.HandleRequestFullState)
	r.Register(protocol.TypeContentScriptReady, c.HandleContentScriptReady)
	r.Register(protocol.TypeContentScriptUnload, c.HandleContentScriptUnload)
}

// Bootstrap runs InitBarrier (spec §4.9) and starts the StateStore's
// background health probe. Callers invoke this once at process
// startup before dispatching any message through Router.
func (c *Core) Bootstrap(ctx context.Context) initbarrier.Outcome {
	outcome := c.Barrier.Run(ctx)
	c.Store.StartHealthCheck(ctx)
	return outcome
}

// Dispatch validates and routes one inbound envelope (spec §4.4).
func (c *Core) Dispatch(ctx context.Context, env protocol.Envelope) protocol.Response {
	return c.Router.Dispatch(ctx, env)
}

// Shutdown stops the StateStore's background health probe. It does
// not flush in-flight broadcasts; callers drain those themselves.
func (c *Core) Shutdown() {
	c.Store.Stop()
}

// NewEnvelope stamps a locally-originated envelope with a fresh
// correlation id and the current wall-clock timestamp, for callers
// that construct requests themselves (e.g. the demo binary) rather
// than forwarding one already carried on the wire.
func NewEnvelope(t protocol.Type, payload map[string]any) protocol.Envelope {
	return protocol.Envelope{
		Type:          t,
		CorrelationID: protocol.NewCorrelationID(),
		Timestamp:     protocol.NowMillis(time.Now()),
		Payload:       payload,
	}
}
