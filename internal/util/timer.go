package util

import "time"

// Timer measures wall time from the moment it was started.
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer starting at current time.
func StartTimer() Timer {
	return Timer{start: time.Now()}
}

// ElapsedMs returns the elapsed milliseconds since start; a zero Timer reports 0.
func (t Timer) ElapsedMs() int64 {
	if t.start.IsZero() {
		return 0
	}
	return time.Since(t.start).Milliseconds()
}

// Timings accumulates durations per named step, in milliseconds.
type Timings map[string]int64

// Track runs fn and adds its duration to name. Repeated steps accumulate.
func (t Timings) Track(name string, fn func()) {
	timer := StartTimer()
	fn()
	t[name] += timer.ElapsedMs()
}
