package ratelimit

import (
	"testing"
	"time"
)

var testLimit = Limit{MaxActions: 5, Window: 10 * time.Second}

// --- Config tests ---

func TestEnabledConfigured(t *testing.T) {
	if !testLimit.Enabled() {
		t.Error("expected Enabled=true for configured limit")
	}
}

func TestEnabledZeroMaxActions(t *testing.T) {
	l := Limit{MaxActions: 0, Window: time.Minute}
	if l.Enabled() {
		t.Error("expected Enabled=false for zero MaxActions")
	}
}

func TestEnabledZeroWindow(t *testing.T) {
	l := Limit{MaxActions: 10, Window: 0}
	if l.Enabled() {
		t.Error("expected Enabled=false for zero Window")
	}
}

// --- Tracker tests ---

func TestZeroWindowIsExpired(t *testing.T) {
	var w Window
	if !w.Expired(time.Minute, time.Now()) {
		t.Error("expected zero window to be expired")
	}
}

func TestSnapshotWithinWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := Window{Start: start, Count: 4}

	if got := Snapshot(&w, time.Minute, start.Add(30*time.Second)); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}

func TestSnapshotAfterExpiry(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := Window{Start: start, Count: 4}

	if got := Snapshot(&w, time.Minute, start.Add(time.Minute)); got != 0 {
		t.Errorf("expected 0 after window expiry, got %d", got)
	}
	if w.Count != 4 {
		t.Errorf("expected Snapshot not to mutate window, count=%d", w.Count)
	}
}

// --- Check tests ---

func TestCheckAtLimitNotExceeded(t *testing.T) {
	result := Check(5, testLimit)
	if result.Exceeded {
		t.Error("expected count equal to MaxActions to be within limit")
	}
}

func TestCheckAboveLimit(t *testing.T) {
	result := Check(6, testLimit)
	if !result.Exceeded {
		t.Fatal("expected exceeded above limit")
	}
	if result.Limit != 5 {
		t.Errorf("expected limit=5, got %d", result.Limit)
	}
	if result.Reason == "" {
		t.Error("expected reason to be set")
	}
}

func TestCheckDisabledLimit(t *testing.T) {
	result := Check(100, Limit{})
	if result.Exceeded {
		t.Error("expected not exceeded for disabled limit")
	}
}

// --- Observe tests ---

func TestObserveStartsWindow(t *testing.T) {
	var w Window
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	result := Observe(&w, testLimit, now)
	if result.Exceeded {
		t.Error("expected first action to pass")
	}
	if !w.Start.Equal(now) {
		t.Errorf("expected window start %v, got %v", now, w.Start)
	}
	if w.Count != 1 {
		t.Errorf("expected count=1, got %d", w.Count)
	}
}

func TestObserveBurstExceedsOnSixth(t *testing.T) {
	var w Window
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if r := Observe(&w, testLimit, now.Add(time.Duration(i)*time.Second)); r.Exceeded {
			t.Fatalf("action %d: expected within limit", i+1)
		}
	}

	r := Observe(&w, testLimit, now.Add(5*time.Second))
	if !r.Exceeded {
		t.Fatal("expected sixth action in window to exceed")
	}
	if w.Count != 6 {
		t.Errorf("expected denied action to be counted, count=%d", w.Count)
	}
}

func TestObserveResetsAfterWindow(t *testing.T) {
	var w Window
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		Observe(&w, testLimit, now)
	}

	later := now.Add(testLimit.Window)
	r := Observe(&w, testLimit, later)
	if r.Exceeded {
		t.Error("expected window reset to allow action")
	}
	if w.Count != 1 {
		t.Errorf("expected count=1 after reset, got %d", w.Count)
	}
	if !w.Start.Equal(later) {
		t.Errorf("expected window start moved to %v, got %v", later, w.Start)
	}
}

func TestObserveDisabledLeavesWindow(t *testing.T) {
	w := Window{Count: 3}
	Observe(&w, Limit{}, time.Now())
	if w.Count != 3 || !w.Start.IsZero() {
		t.Errorf("expected disabled limit to leave window untouched, got %+v", w)
	}
}
