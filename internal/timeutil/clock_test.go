package timeutil

import (
	"testing"
	"time"
)

var (
	_ Clock = RealClock{}
	_ Clock = (*MockClock)(nil)
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

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)

	if got := clock.Now(); !got.Equal(fixedTime) {
		t.Errorf("got %v, want %v", got, fixedTime)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	clock := NewMockClock(time.Time{})
	newTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock.Set(newTime)
	clock.Advance(90 * time.Second)

	want := newTime.Add(90 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := clock.Since(newTime); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}
}

func TestMockClock_AfterAdvancesAndRecords(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	<-clock.After(34 * time.Millisecond)
	<-clock.After(0)
	<-clock.After(-3 * time.Millisecond)
	<-clock.After(10 * time.Millisecond)

	if got := clock.Since(start); got != 44*time.Millisecond {
		t.Errorf("virtual time advanced by %v, want 44ms", got)
	}

	sleeps := clock.Sleeps()
	want := []time.Duration{34 * time.Millisecond, 0, -3 * time.Millisecond, 10 * time.Millisecond}
	if len(sleeps) != len(want) {
		t.Fatalf("recorded %d sleeps, want %d", len(sleeps), len(want))
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, sleeps[i], want[i])
		}
	}
}

func TestMockClock_AfterFiresImmediately(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	select {
	case got := <-clock.After(25 * time.Millisecond):
		if want := start.Add(25 * time.Millisecond); !got.Equal(want) {
			t.Errorf("After sent %v, want %v", got, want)
		}
	default:
		t.Fatal("After channel was not ready")
	}
	if n := len(clock.Sleeps()); n != 1 {
		t.Errorf("recorded %d sleeps, want 1", n)
	}
}

func TestRealClock_After(t *testing.T) {
	var c Clock = RealClock{}
	select {
	case <-c.After(time.Millisecond):
	case <-time.After(2 * time.Second):
		t.Fatal("RealClock.After did not fire")
	}
}
