package model

import "time"

// Empty returns the zero-value canonical state: no quick tabs, manager
// state collapsed at the origin, schema version as given.
func Empty(schemaVersion int) State {
	return State{
		SchemaVersion: schemaVersion,
		LastModified:  0,
		AllQuickTabs:  []QuickTab{},
		ManagerState:  ManagerState{Collapsed: true},
	}
}

// FindByID returns the quick tab with the given ID and whether it was
// found. It never mutates s.
func FindByID(s State, id string) (QuickTab, bool) {
	for _, qt := range s.AllQuickTabs {
		if qt.ID == id {
			return qt, true
		}
	}
	return QuickTab{}, false
}

// FilterByOriginTab returns the subset of quick tabs owned by the
// given origin tab, preserving pool order.
func FilterByOriginTab(s State, originTabID int) []QuickTab {
	out := make([]QuickTab, 0)
	for _, qt := range s.AllQuickTabs {
		if qt.OriginTabID == originTabID {
			out = append(out, qt)
		}
	}
	return out
}

// Minimized returns the subset of quick tabs currently minimized.
func Minimized(s State) []QuickTab {
	out := make([]QuickTab, 0)
	for _, qt := range s.AllQuickTabs {
		if qt.Minimized {
			out = append(out, qt)
		}
	}
	return out
}

// Active returns the subset of quick tabs that are not minimized.
func Active(s State) []QuickTab {
	out := make([]QuickTab, 0)
	for _, qt := range s.AllQuickTabs {
		if !qt.Minimized {
			out = append(out, qt)
		}
	}
	return out
}

// Add returns S' with qt appended, stamping LastModified to now. It
// does not check MaxQuickTabs or uniqueness — callers enforce I3
// before calling Add (see internal/store).
func Add(s State, qt QuickTab, now time.Time) State {
	next := s.Clone()
	next.AllQuickTabs = append(next.AllQuickTabs, qt)
	next.LastModified = now.UnixMilli()
	return next
}

// Update returns S' with the quick tab matching id replaced by the
// result of applying patch. If no quick tab matches id, S is returned
// unchanged (mutation is a no-op on a missing target, not an error —
// callers that need "not found" signaled check FindByID first).
func Update(s State, id string, patch func(QuickTab) QuickTab, now time.Time) State {
	next := s.Clone()
	found := false
	for i, qt := range next.AllQuickTabs {
		if qt.ID == id {
			next.AllQuickTabs[i] = patch(qt)
			found = true
			break
		}
	}
	if !found {
		return s
	}
	next.LastModified = now.UnixMilli()
	return next
}

// Remove returns S' with the quick tab matching id removed.
func Remove(s State, id string, now time.Time) State {
	next := s.Clone()
	out := next.AllQuickTabs[:0]
	removed := false
	for _, qt := range next.AllQuickTabs {
		if qt.ID == id {
			removed = true
			continue
		}
		out = append(out, qt)
	}
	next.AllQuickTabs = out
	if !removed {
		return s
	}
	next.LastModified = now.UnixMilli()
	return next
}

// RemoveByOriginTab returns S' with every quick tab owned by
// originTabID removed — the bulk cleanup fired when a host tab closes
// (spec §4.7 TabLifecycle "TabRemoved").
func RemoveByOriginTab(s State, originTabID int, now time.Time) State {
	next := s.Clone()
	out := next.AllQuickTabs[:0]
	removed := false
	for _, qt := range next.AllQuickTabs {
		if qt.OriginTabID == originTabID {
			removed = true
			continue
		}
		out = append(out, qt)
	}
	next.AllQuickTabs = out
	if !removed {
		return s
	}
	next.LastModified = now.UnixMilli()
	return next
}

// ClearAll returns S' with an empty pool, preserving ManagerState and
// SchemaVersion.
func ClearAll(s State, now time.Time) State {
	next := s.Clone()
	next.AllQuickTabs = []QuickTab{}
	next.LastModified = now.UnixMilli()
	return next
}
