package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedLogSinkBuffersUntilDrained(t *testing.T) {
	sink := NewBufferedLogSink()
	ctx := context.Background()

	sink.Info(ctx, "first")
	sink.Warn(ctx, errors.New("uh oh"), "second")
	sink.Debug(ctx, "third", "k", "v")

	assert.Equal(t, 3, sink.Len())

	real := &mockLogger{}
	sink.DrainTo(ctx, real)

	require.Len(t, real.calls, 3)
	assert.Equal(t, 0, sink.Len())

	assert.Equal(t, LevelInfo, real.calls[0].level)
	assert.Equal(t, "first", real.calls[0].msg)
	assert.Equal(t, LevelWarn, real.calls[1].level)
	assert.EqualError(t, real.calls[1].err, "uh oh")
	assert.Equal(t, LevelDebug, real.calls[2].level)
}

func TestBufferedLogSinkTagsReplayedRecords(t *testing.T) {
	sink := NewBufferedLogSink()
	ctx := context.Background()

	sink.Info(ctx, "early message", "phase", "BOOTSTRAP")

	real := &mockLogger{}
	sink.DrainTo(ctx, real)

	require.Len(t, real.calls, 1)
	fields := fieldsToMap(real.calls[0].fields)
	assert.Equal(t, true, fields["bootstrap"])
	assert.Equal(t, "BOOTSTRAP", fields["phase"])
}

func TestBufferedLogSinkReplaysCaptureTimestamps(t *testing.T) {
	sink := NewBufferedLogSink()
	ctx := context.Background()

	before := time.Now()
	sink.Info(ctx, "early message")
	after := time.Now()

	// Drain noticeably later; the replayed record must carry the
	// capture time, not the drain time.
	time.Sleep(20 * time.Millisecond)
	drainStart := time.Now()

	real := &mockLogger{}
	sink.DrainTo(ctx, real)

	require.Len(t, real.calls, 1)
	fields := fieldsToMap(real.calls[0].fields)
	raw, ok := fields["logged_at"].(string)
	require.True(t, ok, "replayed records carry a logged_at field")

	loggedAt, err := time.Parse(time.RFC3339Nano, raw)
	require.NoError(t, err)
	assert.False(t, loggedAt.Before(before))
	assert.False(t, loggedAt.After(after))
	assert.True(t, loggedAt.Before(drainStart))
}

func TestBufferedLogSinkPassThroughOmitsCaptureTimestamp(t *testing.T) {
	sink := NewBufferedLogSink()
	ctx := context.Background()

	real := &mockLogger{}
	sink.DrainTo(ctx, real)
	sink.Info(ctx, "late message")

	require.Len(t, real.calls, 1)
	fields := fieldsToMap(real.calls[0].fields)
	_, present := fields["logged_at"]
	assert.False(t, present, "direct forwards use the record's own timestamp")
}

func TestBufferedLogSinkPassThroughAfterDrain(t *testing.T) {
	sink := NewBufferedLogSink()
	ctx := context.Background()

	real := &mockLogger{}
	sink.DrainTo(ctx, real)

	sink.Info(ctx, "late message")

	require.Len(t, real.calls, 1)
	assert.Equal(t, "late message", real.calls[0].msg)
	// Direct forwards are not replays and carry no bootstrap tag.
	fields := fieldsToMap(real.calls[0].fields)
	_, tagged := fields["bootstrap"]
	assert.False(t, tagged)
	assert.Equal(t, 0, sink.Len())
}

func TestBufferedLogSinkComponentViews(t *testing.T) {
	sink := NewBufferedLogSink()
	ctx := context.Background()

	sink.WithComponent("startup").Info(ctx, "phase begun")
	sink.With("attempt", 1).Error(ctx, errors.New("failed"), "phase aborted")

	real := &mockLogger{}
	sink.DrainTo(ctx, real)

	require.Len(t, real.calls, 2)

	first := fieldsToMap(real.calls[0].fields)
	assert.Equal(t, "startup", first["component"])

	second := fieldsToMap(real.calls[1].fields)
	assert.Equal(t, 1, second["attempt"])
	assert.EqualError(t, real.calls[1].err, "failed")
}

func TestBufferedLogSinkNestedViews(t *testing.T) {
	sink := NewBufferedLogSink()
	ctx := context.Background()

	view := sink.WithComponent("config").With("layer", "defaults")
	view.Info(ctx, "merged")

	real := &mockLogger{}
	sink.DrainTo(ctx, real)

	require.Len(t, real.calls, 1)
	fields := fieldsToMap(real.calls[0].fields)
	assert.Equal(t, "config", fields["component"])
	assert.Equal(t, "defaults", fields["layer"])
}

func TestBufferedLogSinkPreservesOrder(t *testing.T) {
	sink := NewBufferedLogSink()
	ctx := context.Background()

	for _, msg := range []string{"a", "b", "c", "d"} {
		sink.Info(ctx, msg)
	}

	real := &mockLogger{}
	sink.DrainTo(ctx, real)

	require.Len(t, real.calls, 4)
	for i, expected := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, expected, real.calls[i].msg)
	}
}
