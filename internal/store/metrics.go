package store

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the StateStore's own counters (spec §4.3
// "getMetrics()/resetMetrics()", §5 "Metrics counters are owned by
// their component"). Counters live as atomics so resetMetrics can
// zero them directly — prometheus.Counter itself is monotonic and
// cannot be decreased, so each is mirrored into the registry through a
// GaugeFunc reading the atomic, the same indirection used for
// resettable counters elsewhere in the corpus (see
// monitoring.go's own CounterVec-over-state pattern in the teacher).
type Metrics struct {
	successfulWrites  atomic.Int64
	duplicatesSkipped atomic.Int64
	retriesNeeded     atomic.Int64
	failedWrites      atomic.Int64
	storageUnavailable atomic.Bool

	registry *prometheus.Registry
}

// Snapshot is a point-in-time copy of Metrics, returned by
// StateStore.GetMetrics.
type Snapshot struct {
	SuccessfulWrites   int64
	DuplicatesSkipped  int64
	RetriesNeeded      int64
	FailedWrites       int64
	StorageUnavailable bool
}

// NewMetrics builds a fresh, self-registered Metrics sub-scope. Pass
// the result of prometheus.NewRegistry() (or nil to skip Prometheus
// registration entirely, e.g. in unit tests that don't scrape).
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{registry: registry}
	if registry == nil {
		return m
	}
	registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "quicktabs",
			Subsystem: "store",
			Name:      "successful_writes_total",
		}, func() float64 { return float64(m.successfulWrites.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "quicktabs",
			Subsystem: "store",
			Name:      "duplicates_skipped_total",
		}, func() float64 { return float64(m.duplicatesSkipped.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "quicktabs",
			Subsystem: "store",
			Name:      "retries_needed_total",
		}, func() float64 { return float64(m.retriesNeeded.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "quicktabs",
			Subsystem: "store",
			Name:      "failed_writes_total",
		}, func() float64 { return float64(m.failedWrites.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "quicktabs",
			Subsystem: "store",
			Name:      "storage_unavailable",
		}, func() float64 {
			if m.storageUnavailable.Load() {
				return 1
			}
			return 0
		}),
	)
	return m
}

func (m *Metrics) snapshot() Snapshot {
	return Snapshot{
		SuccessfulWrites:   m.successfulWrites.Load(),
		DuplicatesSkipped:  m.duplicatesSkipped.Load(),
		RetriesNeeded:      m.retriesNeeded.Load(),
		FailedWrites:       m.failedWrites.Load(),
		StorageUnavailable: m.storageUnavailable.Load(),
	}
}

// reset zeroes every counter, for test isolation and session metrics
// rollover (spec EXP-3 "Metrics reset semantics").
func (m *Metrics) reset() {
	m.successfulWrites.Store(0)
	m.duplicatesSkipped.Store(0)
	m.retriesNeeded.Store(0)
	m.failedWrites.Store(0)
	// storageUnavailable is not reset here: it reflects live backend
	// health, not a counter, and resetMetrics is documented only for
	// the counters (§4.3).
}
