package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Waker schedules a single future callback at a performance time. It stands
// in for the delayed-event queue: the scheduler uses it to re-evaluate the
// current frame when output crosses a frame boundary. Scheduled callbacks
// are never cancelled; a stale callback must be harmless.
type Waker interface {
	WakeAt(t int64, fn func())
}

// Clock maps performance time (microseconds since the origin) onto the wall
// clock and schedules wake-ups with time.AfterFunc
type Clock struct {
	origin time.Time
}

// NewClock creates a clock whose performance time 0 is now
func NewClock() *Clock {
	return &Clock{origin: time.Now()}
}

// Now returns the current performance time
func (c *Clock) Now() int64 {
	return time.Since(c.origin).Microseconds()
}

// Time returns the wall-clock time of performance time t
func (c *Clock) Time(t int64) time.Time {
	return c.origin.Add(time.Duration(t) * time.Microsecond)
}

// WakeAt runs fn on its own goroutine once performance time t is reached.
// Times in the past fire immediately.
func (c *Clock) WakeAt(t int64, fn func()) {
	time.AfterFunc(time.Until(c.Time(t)), fn)
}

// ManualWaker collects wake-ups and runs them only when Advance is called.
// It is meant for tests and for driving a scheduler from recorded timings.
type ManualWaker struct {
	mu      sync.Mutex
	pending []manualWake
}

type manualWake struct {
	at int64
	fn func()
}

// WakeAt records fn to run once Advance reaches t
func (w *ManualWaker) WakeAt(t int64, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, manualWake{at: t, fn: fn})
}

// Pending returns the times of wake-ups that have not fired, in order
func (w *ManualWaker) Pending() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]int64, len(w.pending))
	for i, p := range w.pending {
		out[i] = p.at
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Advance fires every wake-up scheduled at or before t, earliest first.
// Callbacks run on the caller's goroutine without the waker's lock held.
func (w *ManualWaker) Advance(t int64) int {
	w.mu.Lock()
	var due, rest []manualWake
	for _, p := range w.pending {
		if p.at <= t {
			due = append(due, p)
		} else {
			rest = append(rest, p)
		}
	}
	w.pending = rest
	w.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, p := range due {
		p.fn()
	}
	return len(due)
}
