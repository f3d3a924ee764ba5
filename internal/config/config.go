// Package config holds the boot-time configuration knobs for the
// synchronization core. There is no CLI and no file/env loading layer:
// every value is a compiled-in default, overridable through functional
// options the way StateStoreOption configures the teacher's store.
package config

import "time"

// Config collects every tunable named in the specification's
// configuration table. All fields have production defaults; callers
// override individual knobs with Option values.
type Config struct {
	// DedupWindow bounds how long an observer treats a repeated
	// storage-change fingerprint as an echo rather than a new event.
	DedupWindow time.Duration

	// WriteIgnoreWindow bounds how long the coordinator suppresses an
	// observer's own outbound write once echoed back to it.
	WriteIgnoreWindow time.Duration

	// MessageDedupWindow bounds how long the store treats a repeated
	// correlation ID as a duplicate write rather than a new one.
	MessageDedupWindow time.Duration

	// MaxRetries is the number of write attempts the store makes
	// before giving up and triggering recovery.
	MaxRetries int

	// Backoff is the wait schedule between retries; its length must be
	// at least MaxRetries-1.
	Backoff []time.Duration

	// MessageTimeout bounds a single runtime message round trip.
	MessageTimeout time.Duration

	// InitBarrierTimeout bounds the entire bootstrap sequence.
	InitBarrierTimeout time.Duration

	// TabUpdatedDebounce is the coalescing window for TabUpdated events
	// per origin tab.
	TabUpdatedDebounce time.Duration

	// TabUpdatedMaxAge discards a pending coalesced TabUpdated patch
	// older than this before it is ever flushed.
	TabUpdatedMaxAge time.Duration

	// MaxQuickTabs is the hard cap on the pool size (I3).
	MaxQuickTabs int

	// StorageHealthCheckInterval paces the store's liveness probe.
	StorageHealthCheckInterval time.Duration

	// UseQuickTabsV2 gates the full coordinator/router wiring; when
	// false only a minimal message handler is registered (§4.9, §9).
	UseQuickTabsV2 bool

	// MaxURLLength and MaxTitleLength enforce the QuickTab field
	// bounds from the data model (§3).
	MaxURLLength   int
	MaxTitleLength int

	// MinSize/MaxSize bound the QuickTab size fields (§3).
	MinWidth, MaxWidth   int
	MinHeight, MaxHeight int

	// SchemaVersion is the store's current canonical schema version.
	SchemaVersion int
}

// Option mutates a Config during construction.
type Option func(*Config)

// Default returns the specification's documented defaults (§6).
func Default() *Config {
	return &Config{
		DedupWindow:                300 * time.Millisecond,
		WriteIgnoreWindow:          100 * time.Millisecond,
		MessageDedupWindow:         50 * time.Millisecond,
		MaxRetries:                 3,
		Backoff:                    []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
		MessageTimeout:             3 * time.Second,
		InitBarrierTimeout:         10 * time.Second,
		TabUpdatedDebounce:         500 * time.Millisecond,
		TabUpdatedMaxAge:           5 * time.Second,
		MaxQuickTabs:               100,
		StorageHealthCheckInterval: 5 * time.Second,
		UseQuickTabsV2:             true,
		MaxURLLength:               2048,
		MaxTitleLength:             255,
		MinWidth:                   200,
		MaxWidth:                   3000,
		MinHeight:                  200,
		MaxHeight:                  2000,
		SchemaVersion:              2,
	}
}

// New builds a Config from the defaults plus any overrides.
func New(opts ...Option) *Config {
	c := Default()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithDedupWindow(d time.Duration) Option        { return func(c *Config) { c.DedupWindow = d } }
func WithWriteIgnoreWindow(d time.Duration) Option  { return func(c *Config) { c.WriteIgnoreWindow = d } }
func WithMessageDedupWindow(d time.Duration) Option { return func(c *Config) { c.MessageDedupWindow = d } }
func WithMaxRetries(n int) Option                   { return func(c *Config) { c.MaxRetries = n } }
func WithBackoff(schedule ...time.Duration) Option {
	return func(c *Config) { c.Backoff = schedule }
}
func WithMessageTimeout(d time.Duration) Option      { return func(c *Config) { c.MessageTimeout = d } }
func WithInitBarrierTimeout(d time.Duration) Option  { return func(c *Config) { c.InitBarrierTimeout = d } }
func WithTabUpdatedDebounce(d time.Duration) Option  { return func(c *Config) { c.TabUpdatedDebounce = d } }
func WithTabUpdatedMaxAge(d time.Duration) Option    { return func(c *Config) { c.TabUpdatedMaxAge = d } }
func WithMaxQuickTabs(n int) Option                  { return func(c *Config) { c.MaxQuickTabs = n } }
func WithUseQuickTabsV2(enabled bool) Option         { return func(c *Config) { c.UseQuickTabsV2 = enabled } }
