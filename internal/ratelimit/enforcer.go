package ratelimit

import (
	"fmt"
	"time"
)

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	Exceeded bool
	Current  int
	Limit    int
	Reason   string
}

// Check compares the current count against the limit.
// The limit is exceeded only when count is strictly above MaxActions.
func Check(count int, limit Limit) CheckResult {
	if !limit.Enabled() {
		return CheckResult{}
	}
	if count > limit.MaxActions {
		return CheckResult{
			Exceeded: true,
			Current:  count,
			Limit:    limit.MaxActions,
			Reason: fmt.Sprintf("rate limit exceeded: %d/%d actions in %s window",
				count, limit.MaxActions, limit.Window),
		}
	}
	return CheckResult{Current: count, Limit: limit.MaxActions}
}

// Observe records one action against w at now and checks it.
//
// Inside the window the count is incremented, including for the call that
// trips the limit. Once the window has expired it restarts at now with a
// count of 1. A disabled limit leaves w untouched.
func Observe(w *Window, limit Limit, now time.Time) CheckResult {
	if !limit.Enabled() {
		return CheckResult{}
	}
	if w.Expired(limit.Window, now) {
		w.Start = now
		w.Count = 1
		return Check(w.Count, limit)
	}
	w.Count++
	return Check(w.Count, limit)
}
