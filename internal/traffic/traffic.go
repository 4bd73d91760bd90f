package traffic

import (
	"sync"
	"time"
)

// Outcome classifies one station fetch or one rate-limited request.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
	OutcomeError   Outcome = "error"
	OutcomeDenied  Outcome = "denied"
)

// maxAge bounds how long outcomes are kept; windows longer than this undercount.
const maxAge = 5 * time.Minute

var defaultTracker Tracker

// Record records an outcome in the process-wide tracker.
func Record(o Outcome) {
	defaultTracker.Record(o)
}

// RecordN records n identical outcomes. For synthetic load in tests.
func RecordN(o Outcome, n int) {
	defaultTracker.RecordN(o, n)
}

// Count returns the number of o outcomes within the window.
func Count(o Outcome, window time.Duration) int {
	return defaultTracker.Count(o, window)
}

// RequestCount returns the number of outcomes of any kind within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// ErrorRate returns (errorCount, totalCount) within the window. Denials are excluded.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker keeps sliding windows of outcome timestamps per Outcome.
// Health reads ErrorRate from it; metrics gauges read Count.
type Tracker struct {
	mu    sync.Mutex
	times map[Outcome][]time.Time
}

// Record appends the current time to o's window.
func (t *Tracker) Record(o Outcome) {
	t.RecordN(o, 1)
}

// RecordN appends n timestamps to o's window.
func (t *Tracker) RecordN(o Outcome, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.times == nil {
		t.times = make(map[Outcome][]time.Time)
	}
	now := time.Now()
	for i := 0; i < n; i++ {
		t.times[o] = append(t.times[o], now)
	}
	t.pruneLocked(now)
}

// Count returns the number of o outcomes within the window.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.times[o], time.Now().Add(-window))
}

// RequestCount returns the total of all outcomes within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	n := 0
	for _, times := range t.times {
		n += countInWindow(times, cutoff)
	}
	return n
}

// ErrorRate returns (errorCount, totalCount) within the window.
// totalCount is success + empty + error; an empty station is an answered fetch.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	errCount := countInWindow(t.times[OutcomeError], cutoff)
	ok := countInWindow(t.times[OutcomeSuccess], cutoff) + countInWindow(t.times[OutcomeEmpty], cutoff)
	return errCount, errCount + ok
}

// Reset clears all recorded outcomes from the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = nil
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than maxAge. Must be called with mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	for o, times := range t.times {
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[o] = append(times[:0], times[i:]...)
		}
	}
}
