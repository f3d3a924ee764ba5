package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkynosher/quicktabs/internal/broadcast"
	"github.com/chunkynosher/quicktabs/internal/model"
	"github.com/chunkynosher/quicktabs/internal/platform"
	"github.com/chunkynosher/quicktabs/internal/protocol"
	"github.com/chunkynosher/quicktabs/internal/store"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *ObserverRegistry) {
	t.Helper()
	mem := platform.NewMemory()
	lim := model.Limits{MaxURLLength: 2048, MaxTitleLength: 255, MinWidth: 200, MaxWidth: 3000, MinHeight: 200, MaxHeight: 2000, MaxQuickTabs: 100}
	st := store.New(mem.Storage(), store.WithLimits(lim), store.WithSchemaVersion(2))
	bc := broadcast.New()
	reg := NewObserverRegistry()
	c := New(st, bc, reg, WithLimits(lim))
	return c, reg
}

// E1 — Create and sync.
func TestHandleCreatedE1(t *testing.T) {
	c, reg := newTestCoordinator(t)
	var broadcastCount atomic.Int64
	reg.Register(broadcast.Target{ID: "tab-7", Send: func(ctx context.Context, payload []byte) error {
		broadcastCount.Add(1)
		return nil
	}})

	env := protocol.Envelope{
		Type:          protocol.TypeCreated,
		CorrelationID: "c1",
		Timestamp:     1000,
		Payload: map[string]any{
			"quickTab": map[string]any{
				"url":         "https://a",
				"originTabId": 7.0,
				"position":    map[string]any{"x": 10.0, "y": 20.0},
				"size":        map[string]any{"w": 400.0, "h": 300.0},
			},
		},
	}

	resp := c.HandleCreated(context.Background(), env)
	require.True(t, resp.Success)
	assert.Equal(t, true, resp.Fields["created"])
	assert.NotEmpty(t, resp.Fields["quickTabId"])
	assert.Equal(t, "GLOBAL", resp.Fields["pattern"])

	s := c.ReadState(context.Background())
	require.Len(t, s.AllQuickTabs, 1)
	assert.Equal(t, int64(1), broadcastCount.Load())
}

// E2 — Position update is local: no broadcast.
func TestHandlePositionChangedE2(t *testing.T) {
	c, reg := newTestCoordinator(t)
	var broadcastCount atomic.Int64
	reg.Register(broadcast.Target{ID: "tab-7", Send: func(ctx context.Context, payload []byte) error {
		broadcastCount.Add(1)
		return nil
	}})

	createResp := c.HandleCreated(context.Background(), protocol.Envelope{
		Type: protocol.TypeCreated, CorrelationID: "c1",
		Payload: map[string]any{"quickTab": map[string]any{"url": "https://a", "originTabId": 7.0}},
	})
	id := createResp.Fields["quickTabId"].(string)
	broadcastCount.Store(0)

	resp := c.HandlePositionChanged(context.Background(), protocol.Envelope{
		Type: protocol.TypePositionChanged, CorrelationID: "c2",
		Payload: map[string]any{"quickTabId": id, "newPosition": map[string]any{"x": 100.0, "y": 200.0}},
	})
	require.True(t, resp.Success)

	s := c.ReadState(context.Background())
	qt, ok := model.FindByID(s, id)
	require.True(t, ok)
	assert.Equal(t, model.Point{X: 100, Y: 200}, qt.Position)
	assert.Equal(t, int64(0), broadcastCount.Load())
}

// E3 — Dedup: two identical QT_MINIMIZED within the dedup window
// produce exactly one transition; second response is skipped.
func TestHandleMinimizedDedupE3(t *testing.T) {
	c, _ := newTestCoordinator(t)
	createResp := c.HandleCreated(context.Background(), protocol.Envelope{
		Type: protocol.TypeCreated, CorrelationID: "c1",
		Payload: map[string]any{"quickTab": map[string]any{"url": "https://a", "originTabId": 7.0}},
	})
	id := createResp.Fields["quickTabId"].(string)

	env := protocol.Envelope{
		Type: protocol.TypeMinimized, CorrelationID: "c3",
		Payload: map[string]any{"quickTabId": id},
	}
	resp1 := c.HandleMinimized(context.Background(), env)
	resp2 := c.HandleMinimized(context.Background(), env)

	require.True(t, resp1.Success)
	require.True(t, resp2.Success)
	assert.Nil(t, resp1.Fields["skipped"], "first minimize is a real write, not a dedup")
	assert.Equal(t, true, resp2.Fields["skipped"], "second response with the same correlationId must report skipped:true")

	s := c.ReadState(context.Background())
	qt, _ := model.FindByID(s, id)
	assert.True(t, qt.Minimized)
}

func TestHandleCreatedRejectsWhenPoolFull(t *testing.T) {
	c, _ := newTestCoordinator(t)
	for i := 0; i < 100; i++ {
		resp := c.HandleCreated(context.Background(), protocol.Envelope{
			Type: protocol.TypeCreated, CorrelationID: fmt.Sprintf("c%d", i),
			Payload: map[string]any{"quickTab": map[string]any{"url": "https://a", "originTabId": 7.0}},
		})
		require.True(t, resp.Success)
	}
	resp := c.HandleCreated(context.Background(), protocol.Envelope{
		Type: protocol.TypeCreated, CorrelationID: "overflow",
		Payload: map[string]any{"quickTab": map[string]any{"url": "https://a", "originTabId": 7.0}},
	})
	assert.False(t, resp.Success)

	s := c.ReadState(context.Background())
	assert.Len(t, s.AllQuickTabs, 100)
}

// E4 — Tab close cascade.
func TestRemoveByOriginTabE4(t *testing.T) {
	c, reg := newTestCoordinator(t)
	var captured []byte
	reg.Register(broadcast.Target{ID: "tab-9", Send: func(ctx context.Context, payload []byte) error {
		captured = payload
		return nil
	}})
	c.HandleCreated(context.Background(), protocol.Envelope{Type: protocol.TypeCreated, CorrelationID: "c1",
		Payload: map[string]any{"quickTab": map[string]any{"url": "https://a", "originTabId": 7.0}}})
	c.HandleCreated(context.Background(), protocol.Envelope{Type: protocol.TypeCreated, CorrelationID: "c2",
		Payload: map[string]any{"quickTab": map[string]any{"url": "https://b", "originTabId": 7.0}}})
	c.HandleCreated(context.Background(), protocol.Envelope{Type: protocol.TypeCreated, CorrelationID: "c3",
		Payload: map[string]any{"quickTab": map[string]any{"url": "https://c", "originTabId": 9.0}}})

	removed := c.RemoveByOriginTab(context.Background(), 7, "cleanup-1")
	assert.Len(t, removed, 2)

	s := c.ReadState(context.Background())
	require.Len(t, s.AllQuickTabs, 1)
	assert.Equal(t, 9, s.AllQuickTabs[0].OriginTabID)

	var sp broadcast.StateSyncPayload
	require.NoError(t, json.Unmarshal(captured, &sp))
	assert.Equal(t, "tab-events-cleanup", sp.Source)
	assert.ElementsMatch(t, removed, sp.RemovedQuickTabIds)
}

func TestHandleManagerCloseAll(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.HandleCreated(context.Background(), protocol.Envelope{Type: protocol.TypeCreated, CorrelationID: "c1",
		Payload: map[string]any{"quickTab": map[string]any{"url": "https://a", "originTabId": 7.0}}})

	resp := c.HandleManagerCloseAll(context.Background(), protocol.Envelope{Type: protocol.TypeManagerCloseAll, CorrelationID: "c2"})
	require.True(t, resp.Success)
	assert.Equal(t, 1, resp.Fields["closedCount"])
	assert.Empty(t, c.ReadState(context.Background()).AllQuickTabs)
}
