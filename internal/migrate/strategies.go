package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/chunkynosher/quicktabs/internal/model"
)

const (
	unifiedV2Name          = "UnifiedV2"
	containerV1Name        = "ContainerV1"
	unwrappedContainerName = "UnwrappedContainer"
	legacyName             = "Legacy"
	emptyStrategyName      = "Empty"

	defaultContainerID = "default"
)

// unifiedV2Strategy recognizes the canonical §6 persisted layout
// (`allQuickTabs` top-level key, or `formatVersion: 2`), plus a bare
// `{ tabs: [...] }` shape whose entries already carry `originTabId` —
// the signal that distinguishes an already-canonical flat dump from a
// pre-v2 legacy one (see DESIGN.md Open Questions: spec §4.2 describes
// UnifiedV2 and Legacy with overlapping `{tabs:[...]}` shapes; this
// is the disambiguating rule chosen here).
func unifiedV2Strategy(schemaVersion int) Strategy {
	return Strategy{
		Name: unifiedV2Name,
		Matches: func(data Raw) bool {
			if _, ok := data["allQuickTabs"]; ok {
				return true
			}
			if fv, ok := numericField(data, "formatVersion"); ok && fv == 2 {
				return true
			}
			tabs, ok := data["tabs"].([]interface{})
			if !ok || len(tabs) == 0 {
				return false
			}
			first, ok := tabs[0].(Raw)
			if !ok {
				return false
			}
			_, hasOriginTab := first["originTabId"]
			return hasOriginTab
		},
		Parse: func(data Raw) (model.State, []string) {
			var warnings []string
			entries := asRawList(data["allQuickTabs"])
			if entries == nil {
				entries = asRawList(data["tabs"])
			}
			qts, w := tabEntriesToQuickTabs(entries, "")
			warnings = append(warnings, w...)

			s := model.Empty(schemaVersion)
			s.AllQuickTabs = qts
			if ms, ok := data["managerState"].(Raw); ok {
				s.ManagerState = parseManagerState(ms)
			}
			if lm, ok := numericField(data, "lastModified"); ok {
				s.LastModified = int64(lm)
			}
			return s, warnings
		},
	}
}

// containerV1Strategy recognizes `formatVersion: 1` or the
// `{ containers: { <id>: { tabs: [...] } } }` shape and flattens every
// container's tabs into the canonical pool, tagging each with its
// originContainerId.
func containerV1Strategy(schemaVersion int, now time.Time) Strategy {
	return Strategy{
		Name: containerV1Name,
		Matches: func(data Raw) bool {
			if fv, ok := numericField(data, "formatVersion"); ok && fv == 1 {
				return true
			}
			_, ok := data["containers"].(Raw)
			return ok
		},
		Parse: func(data Raw) (model.State, []string) {
			containers, _ := data["containers"].(Raw)
			return flattenContainers(containers, schemaVersion, now)
		},
	}
}

// unwrappedContainerStrategy recognizes containers hoisted to the top
// level without the `containers` wrapper key, keyed by Firefox
// contextual-identity cookie store IDs (`firefox-*`).
func unwrappedContainerStrategy(schemaVersion int, now time.Time) Strategy {
	return Strategy{
		Name: unwrappedContainerName,
		Matches: func(data Raw) bool {
			for key, val := range data {
				if !strings.HasPrefix(key, "firefox-") {
					continue
				}
				if container, ok := val.(Raw); ok {
					if _, ok := container["tabs"]; ok {
						return true
					}
				}
			}
			return false
		},
		Parse: func(data Raw) (model.State, []string) {
			containers := make(Raw)
			for key, val := range data {
				if strings.HasPrefix(key, "firefox-") {
					containers[key] = val
				}
			}
			return flattenContainers(containers, schemaVersion, now)
		},
	}
}

// legacyStrategy recognizes a flat `{ tabs: [...] }` payload with no
// version marker and entries that do not already look canonical. It
// lifts the tabs into a single default container before flattening,
// per spec §4.2 "lift into default container then re-flatten".
func legacyStrategy(schemaVersion int, now time.Time) Strategy {
	return Strategy{
		Name: legacyName,
		Matches: func(data Raw) bool {
			if _, hasContainers := data["containers"]; hasContainers {
				return false
			}
			if _, hasVersion := data["formatVersion"]; hasVersion {
				return false
			}
			_, ok := data["tabs"].([]interface{})
			return ok
		},
		Parse: func(data Raw) (model.State, []string) {
			containers := Raw{defaultContainerID: Raw{"tabs": data["tabs"]}}
			return flattenContainers(containers, schemaVersion, now)
		},
	}
}

// emptyStrategy matches anything not claimed by an earlier strategy
// and always returns an empty canonical state (spec §4.2 "Empty ...
// matches anything; returns empty canonical state").
func emptyStrategy(schemaVersion int) Strategy {
	return Strategy{
		Name:    emptyStrategyName,
		Matches: func(Raw) bool { return true },
		Parse: func(Raw) (model.State, []string) {
			return model.Empty(schemaVersion), nil
		},
	}
}

func flattenContainers(containers Raw, schemaVersion int, now time.Time) (model.State, []string) {
	var warnings []string
	s := model.Empty(schemaVersion)
	s.LastModified = now.UnixMilli()

	for containerID, raw := range containers {
		container, ok := raw.(Raw)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("container %q is not an object, skipped", containerID))
			continue
		}
		tabs := asRawList(container["tabs"])
		if tabs == nil {
			warnings = append(warnings, fmt.Sprintf("container %q has no tabs array", containerID))
			continue
		}
		qts, w := tabEntriesToQuickTabs(tabs, containerID)
		warnings = append(warnings, w...)
		s.AllQuickTabs = append(s.AllQuickTabs, qts...)
	}
	return s, warnings
}

// tabEntriesToQuickTabs converts a decoded JSON tab-entry list into
// QuickTab values, per spec §4.2 "validates structural invariants of
// the result ... every tab has id and url" — an entry missing either
// is skipped with a warning rather than aborting the whole migration.
func tabEntriesToQuickTabs(entries []Raw, originContainerID string) ([]model.QuickTab, []string) {
	var warnings []string
	qts := make([]model.QuickTab, 0, len(entries))
	for i, entry := range entries {
		qt, w, ok := tabEntryToQuickTab(entry, originContainerID)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("tab entry %d missing id or url, skipped", i))
			continue
		}
		warnings = append(warnings, w...)
		qts = append(qts, qt)
	}
	return qts, warnings
}

func tabEntryToQuickTab(entry Raw, originContainerID string) (model.QuickTab, []string, bool) {
	var warnings []string
	id, _ := entry["id"].(string)
	url, _ := entry["url"].(string)
	if id == "" || url == "" {
		return model.QuickTab{}, warnings, false
	}

	qt := model.QuickTab{
		ID:                id,
		URL:               url,
		Position:          parsePoint(entry["position"]),
		Size:              parseSize(entry["size"]),
		OriginContainerID: originContainerID,
	}
	if t, ok := entry["title"].(string); ok {
		qt.Title = t
	}
	if m, ok := entry["minimized"].(bool); ok {
		qt.Minimized = m
	}
	if originTabID, ok := numericField(entry, "originTabId"); ok {
		qt.OriginTabID = int(originTabID)
	} else {
		warnings = append(warnings, fmt.Sprintf("tab %q missing originTabId, defaulted to 0", id))
	}
	if createdAt, ok := numericField(entry, "createdAt"); ok {
		qt.CreatedAt = time.UnixMilli(int64(createdAt))
	}
	return qt, warnings, true
}

func parsePoint(v interface{}) model.Point {
	raw, ok := v.(Raw)
	if !ok {
		return model.Point{}
	}
	x, _ := numericField(raw, "x")
	y, _ := numericField(raw, "y")
	return model.Point{X: int(x), Y: int(y)}
}

func parseSize(v interface{}) model.Size {
	raw, ok := v.(Raw)
	if !ok {
		return model.Size{}
	}
	w, _ := numericField(raw, "w")
	h, _ := numericField(raw, "h")
	return model.Size{W: int(w), H: int(h)}
}

func parseManagerState(raw Raw) model.ManagerState {
	ms := model.ManagerState{}
	ms.Position = parsePoint(raw["position"])
	ms.Size = parseSize(raw["size"])
	if collapsed, ok := raw["collapsed"].(bool); ok {
		ms.Collapsed = collapsed
	}
	return ms
}

func numericField(data Raw, key string) (float64, bool) {
	v, ok := data[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asRawList(v interface{}) []Raw {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Raw, 0, len(list))
	for _, item := range list {
		if m, ok := item.(Raw); ok {
			out = append(out, m)
		}
	}
	return out
}
