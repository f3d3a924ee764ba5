package model

import "fmt"

// Checksum32 computes a DJB2-style 32-bit checksum over the ordered
// triples (id, minimized, originTabId) of every quick tab in the pool
// (spec §3 "checksum"). It is a cheap readback-validation fingerprint,
// not a cryptographic digest: it exists so StateStore.writeStateWithValidation
// can detect silent storage-layer corruption without re-diffing the
// full state.
func Checksum32(s State) uint32 {
	var h uint32 = 5381
	step := func(b byte) {
		h = ((h << 5) + h) + uint32(b)
	}
	stepString := func(str string) {
		for i := 0; i < len(str); i++ {
			step(str[i])
		}
	}
	for _, qt := range s.AllQuickTabs {
		stepString(qt.ID)
		if qt.Minimized {
			step(1)
		} else {
			step(0)
		}
		stepString(fmt.Sprintf("%d", qt.OriginTabID))
	}
	return h
}
