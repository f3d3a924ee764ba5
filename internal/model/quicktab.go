// Package model implements the pure, side-effect-free transformations
// over the canonical quick-tab pool state (spec §3, §4.1 — component
// C1 "Schema"). Every function here is a value-in, value-out
// transformation; none perform I/O, and none mutate their arguments.
package model

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// Point is a 2D coordinate shared by position and size fields.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width/height pair, reused for QuickTab.Size and
// ManagerState.Size.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// QuickTab is the overlay window entity owned by one origin host page
// (spec §3 "QuickTab entity").
type QuickTab struct {
	ID                 string    `json:"id"`
	OriginTabID        int       `json:"originTabId"`
	URL                string    `json:"url"`
	Position           Point     `json:"position"`
	Size               Size      `json:"size"`
	Minimized          bool      `json:"minimized"`
	CreatedAt          time.Time `json:"createdAt"`
	Title              string    `json:"title,omitempty"`
	OriginContainerID  string    `json:"originContainerId,omitempty"`
}

// ManagerState is the side-panel's own window state, carried alongside
// the pool (spec §3 "Canonical state S").
type ManagerState struct {
	Position  Point `json:"position"`
	Size      Size  `json:"size"`
	Collapsed bool  `json:"collapsed"`
}

// State is the canonical in-memory value `S` (spec §3). Field order
// matches the persisted layout in spec §6 so JSON round-trips are
// stable for readback checksums and storage.
type State struct {
	SchemaVersion int            `json:"schemaVersion"`
	LastModified  int64          `json:"lastModified"` // ms epoch
	AllQuickTabs  []QuickTab     `json:"allQuickTabs"`
	ManagerState  ManagerState   `json:"managerState"`
}

// quickTabIDPrefix marks every generated entity ID, per spec §3.
const quickTabIDPrefix = "qt-"

// NewQuickTabID produces an opaque ID with a ~2^31-combinatorial
// random suffix (spec §3: "2 billion-combinatorial random suffix").
func NewQuickTabID() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("model: generate quick tab id: %w", err)
	}
	// Mask to 31 bits so the decimal suffix always stays under 2^31
	// (~2.15 billion), matching the spec's stated combinatorial size.
	suffix := binary.BigEndian.Uint32(buf[:]) & 0x7fffffff
	return fmt.Sprintf("%s%d", quickTabIDPrefix, suffix), nil
}

// Clone returns a deep copy of the QuickTab; used whenever a caller
// must hold a value independent of the canonical state's own copy.
func (q QuickTab) Clone() QuickTab {
	return q
}

// Clone returns a deep copy of the State, including its QuickTab
// slice, so mutators can safely build S' from a caller-held S without
// aliasing the original slice's backing array.
func (s State) Clone() State {
	clone := s
	clone.AllQuickTabs = make([]QuickTab, len(s.AllQuickTabs))
	copy(clone.AllQuickTabs, s.AllQuickTabs)
	return clone
}
