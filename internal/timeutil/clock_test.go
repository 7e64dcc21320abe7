package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		// Ticker fired as expected
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(30 * time.Second)

	if want := start.Add(30 * time.Second); !clock.Now().Equal(want) {
		t.Errorf("got %v, want %v", clock.Now(), want)
	}
}

func TestMockClock_Ticker(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(30 * time.Second)
	defer ticker.Stop()

	if clock.TickerCount() != 1 {
		t.Fatalf("TickerCount = %d, want 1", clock.TickerCount())
	}

	clock.Advance(29 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire at the interval")
	}

	// next tick is one full interval later
	clock.Advance(15 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before the second interval")
	default:
	}
	clock.Advance(15 * time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire on the second interval")
	}
}

func TestMockClock_Ticker_Stop(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()

	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}

func TestMockTicker_Trigger(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(time.Hour).(*MockTicker)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ticker.Trigger(now)
	ticker.Trigger(now) // buffered channel is full; must not block

	if got := <-ticker.C(); !got.Equal(now) {
		t.Errorf("got %v, want %v", got, now)
	}
}
