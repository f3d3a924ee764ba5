package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkynosher/quicktabs/internal/model"
	"github.com/chunkynosher/quicktabs/internal/platform"
)

func testLimits() model.Limits {
	return model.Limits{
		MaxURLLength: 2048, MaxTitleLength: 255,
		MinWidth: 200, MaxWidth: 3000,
		MinHeight: 200, MaxHeight: 2000,
		MaxQuickTabs: 100,
	}
}

func newTestStore(t *testing.T) (*StateStore, *platform.Memory) {
	t.Helper()
	mem := platform.NewMemory()
	s := New(mem.Storage(), WithLimits(testLimits()), WithSchemaVersion(2))
	return s, mem
}

func TestReadStateEmptyWhenAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	state := s.ReadState(context.Background())
	assert.Empty(t, state.AllQuickTabs)
	assert.Equal(t, 2, state.SchemaVersion)
}

// P1: successful write is immediately re-readable with matching checksum.
func TestWriteThenReadMatchesChecksum(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	qt := model.QuickTab{ID: "qt-1", OriginTabID: 7, URL: "https://a", Size: model.Size{W: 400, H: 300}}
	state := model.Add(model.Empty(2), qt, time.Now())

	result := s.WriteStateWithValidation(ctx, state, "c1")
	require.True(t, result.Success)
	require.False(t, result.Skipped)

	readback := s.ReadState(ctx)
	require.True(t, model.IsValid(readback, testLimits()))
	assert.Equal(t, model.Checksum32(state), model.Checksum32(readback))
}

// P3: the same correlationId submitted twice within the dedup window
// performs exactly one write.
func TestWriteDedupSameCorrelationID(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	state := model.Add(model.Empty(2), model.QuickTab{ID: "qt-1", OriginTabID: 7}, time.Now())

	first := s.WriteStateWithValidation(ctx, state, "dup")
	require.True(t, first.Success)
	require.False(t, first.Skipped)

	second := s.WriteStateWithValidation(ctx, state, "dup")
	assert.True(t, second.Success)
	assert.True(t, second.Skipped)
	assert.Equal(t, int64(1), s.GetMetrics().DuplicatesSkipped)
}

func TestWriteDistinctCorrelationIDsBothSucceed(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s1 := model.Add(model.Empty(2), model.QuickTab{ID: "qt-1", OriginTabID: 7}, time.Now())
	s2 := model.Add(s1, model.QuickTab{ID: "qt-2", OriginTabID: 9}, time.Now())

	r1 := s.WriteStateWithValidation(ctx, s1, "c1")
	r2 := s.WriteStateWithValidation(ctx, s2, "c2")
	assert.True(t, r1.Success)
	assert.True(t, r2.Success)
	assert.False(t, r2.Skipped)
	assert.Equal(t, int64(0), s.GetMetrics().DuplicatesSkipped)
}

func TestResetMetricsZeroesCounters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	state := model.Add(model.Empty(2), model.QuickTab{ID: "qt-1", OriginTabID: 7}, time.Now())
	s.WriteStateWithValidation(ctx, state, "c1")

	require.Equal(t, int64(1), s.GetMetrics().SuccessfulWrites)
	s.ResetMetrics()
	assert.Equal(t, int64(0), s.GetMetrics().SuccessfulWrites)
}

func TestTriggerStorageRecoveryFallsBackToEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	result := s.TriggerStorageRecovery(ctx)
	assert.True(t, result.Recovered)
	assert.Equal(t, "empty", result.Source)

	state := s.ReadState(ctx)
	assert.Empty(t, state.AllQuickTabs)
}
