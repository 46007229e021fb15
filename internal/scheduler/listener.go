package scheduler

import (
	"github.com/google/uuid"
	"github.com/jfmyers9/cueline/internal/timeline"
)

// EventKind identifies which observable property an Event reports
type EventKind int

const (
	EventPlayMode EventKind = iota + 1
	EventLoopMode
	EventLooping
	EventBounds
	EventFramesPerSecond
	EventSpeed
	EventCurrentFrame
	EventFrameDropped
)

// String returns the name used in logs and the journal
func (k EventKind) String() string {
	switch k {
	case EventPlayMode:
		return "play_mode"
	case EventLoopMode:
		return "loop_mode"
	case EventLooping:
		return "looping"
	case EventBounds:
		return "bounds"
	case EventFramesPerSecond:
		return "fps"
	case EventSpeed:
		return "speed"
	case EventCurrentFrame:
		return "current_frame"
	case EventFrameDropped:
		return "frame_dropped"
	default:
		return "unknown"
	}
}

// MovieBounds groups the frame bounds observers are told about
type MovieBounds struct {
	FrameCount        int64
	MaxFrameCount     int64
	StartFrame        int64
	EndFrame          int64
	FirstVisibleFrame int64
	LastVisibleFrame  int64
}

func boundsOf(st timeline.PlayingState) MovieBounds {
	return MovieBounds{
		FrameCount:        st.FrameCount,
		MaxFrameCount:     st.MaxFrameCount,
		StartFrame:        st.StartFrame,
		EndFrame:          st.EndFrame,
		FirstVisibleFrame: st.FirstVisibleFrame,
		LastVisibleFrame:  st.LastVisibleFrame,
	}
}

// Event is a notification sent to listeners. Only the field matching Kind
// is meaningful.
type Event struct {
	Kind            EventKind
	PlayMode        timeline.PlayMode
	LoopMode        timeline.LoopMode
	Looping         bool
	Bounds          MovieBounds
	FramesPerSecond float64
	Speed           float64
	Frame           int64 // Current frame, or the dropped frame
}

// Listener receives scheduler notifications. Notify is called without the
// scheduler lock held, so listeners may call back into the scheduler.
type Listener interface {
	Notify(Event)
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(Event)

// Notify calls f(e)
func (f ListenerFunc) Notify(e Event) {
	f(e)
}

type listenerEntry struct {
	id       uuid.UUID
	listener Listener
}

// observed holds the values most recently reported to listeners
type observed struct {
	valid    bool
	playMode timeline.PlayMode
	loopMode timeline.LoopMode
	looping  bool
	bounds   MovieBounds
	fps      float64
	speed    float64
	frame    int64
}

// events returns the full state as a sequence of events, used to bring a
// newly registered listener up to date
func (o observed) events() []Event {
	return []Event{
		{Kind: EventFramesPerSecond, FramesPerSecond: o.fps},
		{Kind: EventBounds, Bounds: o.bounds},
		{Kind: EventLoopMode, LoopMode: o.loopMode},
		{Kind: EventLooping, Looping: o.looping},
		{Kind: EventSpeed, Speed: o.speed},
		{Kind: EventPlayMode, PlayMode: o.playMode},
		{Kind: EventCurrentFrame, Frame: o.frame},
	}
}

// diff returns events for every property of next that differs from o.
// Everything differs from an invalid (reset) observation.
func (o observed) diff(next observed) []Event {
	if !o.valid {
		return next.events()
	}

	var out []Event
	if next.fps != o.fps {
		out = append(out, Event{Kind: EventFramesPerSecond, FramesPerSecond: next.fps})
	}
	if next.bounds != o.bounds {
		out = append(out, Event{Kind: EventBounds, Bounds: next.bounds})
	}
	if next.loopMode != o.loopMode {
		out = append(out, Event{Kind: EventLoopMode, LoopMode: next.loopMode})
	}
	if next.looping != o.looping {
		out = append(out, Event{Kind: EventLooping, Looping: next.looping})
	}
	if next.speed != o.speed {
		out = append(out, Event{Kind: EventSpeed, Speed: next.speed})
	}
	if next.playMode != o.playMode {
		out = append(out, Event{Kind: EventPlayMode, PlayMode: next.playMode})
	}
	if next.frame != o.frame {
		out = append(out, Event{Kind: EventCurrentFrame, Frame: next.frame})
	}
	return out
}

// delivery is one mutation's notifications and the listeners registered
// when it ran
type delivery struct {
	events    []Event
	listeners []listenerEntry
}

// AddListener registers l and replays the current state to it. The replay
// is ordered with every other notification, so l never sees a replayed
// value after a newer change. The returned handle is used with
// RemoveListener.
func (s *Scheduler) AddListener(l Listener) uuid.UUID {
	id := uuid.New()
	entry := listenerEntry{id: id, listener: l}

	s.mu.Lock()
	s.listeners = append(s.listeners, entry)
	s.enqueue(s.observed.events(), []listenerEntry{entry})
	s.mu.Unlock()

	s.deliver()
	return id
}

// RemoveListener unregisters the listener registered under id
func (s *Scheduler) RemoveListener(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.listeners {
		if entry.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// enqueue queues events for listeners. Must be called with the lock held.
func (s *Scheduler) enqueue(events []Event, listeners []listenerEntry) {
	if len(events) == 0 || len(listeners) == 0 {
		return
	}
	s.outbox = append(s.outbox, delivery{
		events:    events,
		listeners: append([]listenerEntry(nil), listeners...),
	})
}

// deliver drains the outbox unless another goroutine already is. A
// listener calling back into the scheduler only queues its changes; they
// are delivered once the current notification returns.
func (s *Scheduler) deliver() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true

	for len(s.outbox) > 0 {
		d := s.outbox[0]
		s.outbox[0] = delivery{}
		s.outbox = s.outbox[1:]
		listeners := s.registered(d.listeners)

		s.mu.Unlock()
		dispatch(listeners, d.events)
		s.mu.Lock()
	}

	s.delivering = false
	s.mu.Unlock()
}

// registered filters out listeners removed since a delivery was queued.
// Must be called with the lock held.
func (s *Scheduler) registered(listeners []listenerEntry) []listenerEntry {
	out := listeners[:0]
	for _, l := range listeners {
		for _, cur := range s.listeners {
			if cur.id == l.id {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

func dispatch(listeners []listenerEntry, events []Event) {
	for _, e := range events {
		for _, entry := range listeners {
			entry.listener.Notify(e)
		}
	}
}
