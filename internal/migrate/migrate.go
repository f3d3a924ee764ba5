// Package migrate implements the format migrator (spec §4.2, component
// C2): an ordered strategy registry that detects legacy on-disk
// encodings and converts them to the canonical model.State, never
// throwing and never corrupting the caller's data on failure.
//
// The registry is a tagged-variant dispatch table rather than an
// inheritance hierarchy, per spec §9 "Prefer tagged variants + dispatch
// tables to inheritance" — each Strategy is a small struct of two
// functions, and Migrate walks them in a fixed order.
package migrate

import (
	"time"

	"github.com/chunkynosher/quicktabs/internal/model"
)

// Raw is an already-JSON-decoded storage payload of unknown shape.
type Raw = map[string]interface{}

// Report is the validation report a migration produces: it never
// raises an error, only warnings and a best-effort canonical state.
type Report struct {
	StrategyName string
	Warnings     []string
	Hybrid       bool
}

// Strategy is one format detector/converter pair (spec §4.2, §9
// "format-migrator strategy polymorphic over {matches, parse, version}").
type Strategy struct {
	Name    string
	Matches func(Raw) bool
	Parse   func(Raw) (model.State, []string)
}

// registry is the fixed, ordered list from spec §4.2. Detection is
// deterministic in this order: UnifiedV2, ContainerV1,
// UnwrappedContainer, Legacy, Empty (Empty always matches last).
func registry(schemaVersion int, now time.Time) []Strategy {
	return []Strategy{
		unifiedV2Strategy(schemaVersion),
		containerV1Strategy(schemaVersion, now),
		unwrappedContainerStrategy(schemaVersion, now),
		legacyStrategy(schemaVersion, now),
		emptyStrategy(schemaVersion),
	}
}

// Detect returns the name of the first strategy in registry order
// whose Matches predicate accepts data. Detection is deterministic:
// ties are broken by list order, never by any property of data beyond
// the predicates themselves.
func Detect(data Raw, schemaVersion int, now time.Time) string {
	for _, st := range registry(schemaVersion, now) {
		if st.Matches(data) {
			return st.Name
		}
	}
	return emptyStrategyName
}

// Migrate runs the first matching strategy's Parse and returns the
// canonical state plus a diagnostic report. It never panics and never
// returns an error: a parse failure degrades to an empty canonical
// state (spec §4.2 "On parse failure the migrator returns empty state
// — it never corrupts the caller").
func Migrate(data Raw, schemaVersion int, now time.Time) (model.State, Report) {
	for _, st := range registry(schemaVersion, now) {
		if !st.Matches(data) {
			continue
		}
		state, warnings := safeParse(st, data)
		return state, Report{
			StrategyName: st.Name,
			Warnings:     warnings,
			Hybrid:       isHybrid(data),
		}
	}
	return model.Empty(schemaVersion), Report{StrategyName: emptyStrategyName}
}

// safeParse recovers from a panicking Parse implementation and
// degrades to an empty state — the migrator's "never corrupts the
// caller" contract must hold even against malformed strategy input
// that a predicate let slip past Matches.
func safeParse(st Strategy, data Raw) (state model.State, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			state = model.Empty(2)
			warnings = append(warnings, "parse panic recovered, returned empty state")
		}
	}()
	return st.Parse(data)
}

// isHybrid raises the "hybrid format" flag from spec §4.2: both
// container-style and flat-style entries co-existing in the same
// payload. The migrator still proceeds best-effort; this is a
// diagnostic only.
func isHybrid(data Raw) bool {
	_, hasContainers := data["containers"]
	_, hasFlatTabs := data["tabs"]
	return hasContainers && hasFlatTabs
}
