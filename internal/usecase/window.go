package usecase

import "time"

// DefaultEarlyStopThreshold is the number of consecutive out-of-window
// entries tolerated before a date-ordered traversal is abandoned.
const DefaultEarlyStopThreshold = 10

// EarlyStopDisabled turns the heuristic off where a zero threshold means
// the default.
const EarlyStopDisabled = -1

// InWindow reports whether occurredAt falls inside the window starting at
// windowStart. The boundary is inclusive; a zero time is never in the window.
func InWindow(occurredAt, windowStart time.Time) bool {
	if occurredAt.IsZero() {
		return false
	}
	return !occurredAt.Before(windowStart)
}

// WindowStart returns the start of the calendar day (UTC) that lies days
// before now. Whole days are compared, so anything that happened on that
// day counts.
func WindowStart(now time.Time, days int) time.Time {
	y, m, d := now.UTC().AddDate(0, 0, -days).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EarlyStopTracker counts consecutive out-of-window entries of a traversal
// that is ordered newest first. Upstream ordering jitters a little near the
// boundary, hence a threshold instead of stopping on the first miss.
type EarlyStopTracker struct {
	threshold int
	misses    int
}

// NewEarlyStopTracker returns a tracker; a threshold <= 0 never stops.
func NewEarlyStopTracker(threshold int) *EarlyStopTracker {
	return &EarlyStopTracker{threshold: threshold}
}

// Observe classifies one entry. keep is true when the entry is in the
// window. stop is true once the consecutive-miss count reaches the threshold.
// Entries without a timestamp are dropped but leave the counter untouched.
func (t *EarlyStopTracker) Observe(occurredAt, windowStart time.Time) (keep, stop bool) {
	if occurredAt.IsZero() {
		return false, false
	}
	if InWindow(occurredAt, windowStart) {
		t.misses = 0
		return true, false
	}
	t.misses++
	return false, t.threshold > 0 && t.misses >= t.threshold
}

// Misses returns the current run of consecutive out-of-window entries.
func (t *EarlyStopTracker) Misses() int {
	return t.misses
}
