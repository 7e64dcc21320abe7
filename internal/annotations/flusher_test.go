package annotations

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trace.review/internal/slots"
	"github.com/banshee-data/trace.review/internal/timeutil"
)

func newTestFlusher(t *testing.T, mem *slots.Memory) (*Flusher, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	f := NewFlusher(FlusherConfig{
		Store:  NewStore(mem, ""),
		Clock:  clock,
		Logger: log.New(&bytes.Buffer{}, "", 0),
	})
	return f, clock
}

func waitForTicker(t *testing.T, clock *timeutil.MockClock) {
	t.Helper()
	require.Eventually(t, func() bool { return clock.TickerCount() > 0 },
		time.Second, time.Millisecond, "flusher never armed its ticker")
}

func TestFlusher_DefaultInterval(t *testing.T) {
	f := NewFlusher(FlusherConfig{})
	assert.Equal(t, 30*time.Second, f.Interval())
	assert.NoError(t, f.FlushNow(context.Background()))
}

func TestFlusher_PeriodicFlush(t *testing.T) {
	mem := slots.NewMemory()
	f, clock := newTestFlusher(t, mem)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = f.Run(ctx)
		close(done)
	}()
	waitForTicker(t, clock)
	assert.True(t, f.IsRunning())

	clock.Advance(29 * time.Second)
	assert.Never(t, func() bool { return mem.Writes() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return mem.Writes() == 1 }, time.Second, time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 2, mem.Writes(), "a final flush is expected on shutdown")
	assert.False(t, f.IsRunning())

	stats := f.Stats()
	assert.Equal(t, 2, stats.Flushes)
	assert.Zero(t, stats.Failures)
	assert.Equal(t, clock.Now(), stats.LastFlush)
}

func TestFlusher_StopFlushes(t *testing.T) {
	mem := slots.NewMemory()
	f, clock := newTestFlusher(t, mem)

	go func() { _ = f.Run(context.Background()) }()
	waitForTicker(t, clock)

	f.Stop()
	assert.Equal(t, 1, mem.Writes())
	assert.False(t, f.IsRunning())

	// repeated Stop is a no-op
	f.Stop()
}

func TestFlusher_FailureStats(t *testing.T) {
	mem := slots.NewMemory()
	mem.WriteErr = errors.New("disk full")
	f, _ := newTestFlusher(t, mem)

	err := f.FlushNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, err, f.LastError())

	stats := f.Stats()
	assert.Equal(t, 1, stats.Failures)
	assert.Zero(t, stats.Flushes)
	assert.Contains(t, stats.LastError, "disk full")

	mem.WriteErr = nil
	require.NoError(t, f.FlushNow(context.Background()))
	assert.NoError(t, f.LastError())
	assert.Empty(t, f.Stats().LastError)
}
