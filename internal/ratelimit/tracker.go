package ratelimit

import "time"

// Window is the per-identity fixed rate-limit window.
type Window struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Expired reports whether now falls outside the window that began at Start.
// A zero Start is always expired.
func (w *Window) Expired(window time.Duration, now time.Time) bool {
	if w.Start.IsZero() {
		return true
	}
	return now.Sub(w.Start) >= window
}

// Snapshot returns the action count for the current window without
// recording anything. An expired window reads as zero.
func Snapshot(w *Window, window time.Duration, now time.Time) int {
	if w.Expired(window, now) {
		return 0
	}
	return w.Count
}
