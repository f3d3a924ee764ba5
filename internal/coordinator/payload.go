package coordinator

import "github.com/chunkynosher/quicktabs/internal/model"

// Payload decoding helpers. Envelope payloads arrive as
// map[string]any (already JSON-decoded); these mirror the numeric/
// nested-object extraction style used in internal/migrate/strategies.go
// for the same reason: the source shape is untyped host-platform JSON,
// not a Go struct.

func stringField(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key].(string)
	return v, ok
}

func numberField(payload map[string]any, key string) (float64, bool) {
	switch n := payload[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func pointField(payload map[string]any, key string) (model.Point, bool) {
	raw, ok := payload[key].(map[string]any)
	if !ok {
		return model.Point{}, false
	}
	x, _ := numberField(raw, "x")
	y, _ := numberField(raw, "y")
	return model.Point{X: int(x), Y: int(y)}, true
}

func sizeField(payload map[string]any, key string) (model.Size, bool) {
	raw, ok := payload[key].(map[string]any)
	if !ok {
		return model.Size{}, false
	}
	w, _ := numberField(raw, "w")
	h, _ := numberField(raw, "h")
	return model.Size{W: int(w), H: int(h)}, true
}

// quickTabField decodes the `quickTab` payload object carried by
// QT_CREATED (spec §4.4). Fields the caller omits are left zero;
// Coordinator.handleCreated stamps id/createdAt itself.
func quickTabField(payload map[string]any, key string) (model.QuickTab, bool) {
	raw, ok := payload[key].(map[string]any)
	if !ok {
		return model.QuickTab{}, false
	}
	qt := model.QuickTab{}
	qt.ID, _ = stringField(raw, "id")
	qt.URL, _ = stringField(raw, "url")
	qt.Title, _ = stringField(raw, "title")
	qt.OriginContainerID, _ = stringField(raw, "originContainerId")
	if originTabID, ok := numberField(raw, "originTabId"); ok {
		qt.OriginTabID = int(originTabID)
	}
	if pos, ok := pointField(raw, "position"); ok {
		qt.Position = pos
	}
	if sz, ok := sizeField(raw, "size"); ok {
		qt.Size = sz
	}
	return qt, true
}
