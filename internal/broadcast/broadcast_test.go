package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkynosher/quicktabs/internal/model"
)

func TestBroadcastAllSucceed(t *testing.T) {
	b := New()
	var received atomic.Int64
	targets := []Target{
		{ID: "a", Send: func(ctx context.Context, payload []byte) error { received.Add(1); return nil }},
		{ID: "b", Send: func(ctx context.Context, payload []byte) error { received.Add(1); return nil }},
	}

	prev := model.Empty(2)
	next := model.Add(prev, model.QuickTab{ID: "qt-1", OriginTabID: 7}, time.Now())

	result := b.Broadcast(context.Background(), targets, prev, next, "c1", Meta{})
	assert.Equal(t, 2, result.TotalTargets)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, int64(2), received.Load())
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	b := New()
	targets := []Target{
		{ID: "ok", Send: func(ctx context.Context, payload []byte) error { return nil }},
		{ID: "bad", Send: func(ctx context.Context, payload []byte) error { return errors.New("boom") }},
	}

	prev := model.Empty(2)
	next := model.Add(prev, model.QuickTab{ID: "qt-1", OriginTabID: 7}, time.Now())

	result := b.Broadcast(context.Background(), targets, prev, next, "c1", Meta{})
	assert.Equal(t, 2, result.TotalTargets)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
}

func TestBroadcastFilterExcludesTargets(t *testing.T) {
	b := New(WithTargetFilter(func(id ObserverID) bool { return id == "keep" }))
	var calls atomic.Int64
	targets := []Target{
		{ID: "keep", Send: func(ctx context.Context, payload []byte) error { calls.Add(1); return nil }},
		{ID: "drop", Send: func(ctx context.Context, payload []byte) error { calls.Add(1); return nil }},
	}

	result := b.Broadcast(context.Background(), targets, model.Empty(2), model.Empty(2), "c1", Meta{})
	assert.Equal(t, 1, result.TotalTargets)
	assert.Equal(t, int64(1), calls.Load())
}

func TestBroadcastNotifiesManagerSink(t *testing.T) {
	var notified atomic.Bool
	b := New(WithManagerSink(func(ctx context.Context, payload []byte) error {
		notified.Store(true)
		require.NotEmpty(t, payload)
		return nil
	}))

	b.Broadcast(context.Background(), nil, model.Empty(2), model.Empty(2), "c1", Meta{})
	assert.True(t, notified.Load())
}

func TestBroadcastMissingManagerSinkIsNotAnError(t *testing.T) {
	b := New()
	result := b.Broadcast(context.Background(), nil, model.Empty(2), model.Empty(2), "c1", Meta{})
	assert.Equal(t, 0, result.TotalTargets)
}

// E4 — the tab-close cascade's removed ids and source tag must reach
// the wire payload, not just the correlation id (spec §4.7, §8 E4).
func TestBroadcastCarriesRemovedIDsAndSource(t *testing.T) {
	b := New()
	var captured []byte
	targets := []Target{
		{ID: "a", Send: func(ctx context.Context, payload []byte) error {
			captured = payload
			return nil
		}},
	}

	prev := model.Empty(2)
	next := model.Add(prev, model.QuickTab{ID: "qt-1", OriginTabID: 7}, time.Now())

	meta := Meta{Source: "tab-events-cleanup", RemovedQuickTabIds: []string{"qt-7", "qt-8"}}
	result := b.Broadcast(context.Background(), targets, prev, next, "cleanup-1", meta)
	require.Equal(t, 1, result.SuccessCount)

	var sp StateSyncPayload
	require.NoError(t, json.Unmarshal(captured, &sp))
	assert.Equal(t, "tab-events-cleanup", sp.Source)
	assert.Equal(t, []string{"qt-7", "qt-8"}, sp.RemovedQuickTabIds)
}
