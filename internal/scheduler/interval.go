package scheduler

import (
	"github.com/jfmyers9/cueline/internal/timeline"
)

// FrameInterval is a run of performance frames [Start, End) that maps onto
// a contiguous run of timeline frames starting at TimelineFrame and moving
// by Direction per performance frame
type FrameInterval struct {
	Start         int64
	End           int64
	TimelineFrame int64
	Direction     int64 // +1, -1, or 0 when the same frame repeats
	Speed         float64
}

// Frames returns the number of performance frames in the interval
func (i FrameInterval) Frames() int64 {
	return i.End - i.Start
}

// LastTimelineFrame returns the timeline frame shown at End-1
func (i FrameInterval) LastTimelineFrame() int64 {
	return i.TimelineFrame + (i.Frames()-1)*i.Direction
}

// TimeInterval is FrameInterval expressed in performance time [Start, End)
type TimeInterval struct {
	Start         int64
	End           int64
	TimelineFrame int64
	Direction     int64
	Speed         float64
}

// PlaylistFrameInterval returns the longest prefix of the performance
// frames [start, end) that maps onto a contiguous timeline interval, so a
// renderer can decode the whole run without querying frame by frame. The
// interval always holds at least one frame.
func (s *Scheduler) PlaylistFrameInterval(start, end int64) FrameInterval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameInterval(start, end)
}

func (s *Scheduler) frameInterval(start, end int64) FrameInterval {
	limit := max(end, start+1)
	if next, ok := s.states.NextAfterFrame(start); ok {
		limit = min(limit, next)
	}
	if next, ok := s.speeds.NextAfterFrame(start); ok {
		limit = min(limit, next)
	}

	st := s.states.AtFrame(start)
	frame, dir, _ := s.playlistFrameAt(start)

	if dir != 0 {
		b := timeline.BoundsFor(st)
		index := st.RangeIndex + (start-st.ActivationFrame)*dir
		var run int64
		switch {
		case b.Count <= 1:
			dir = 0
		case st.LoopingEnabled:
			// Frames left before wrapping around
			w := timeline.WrapIndex(index, b.Count)
			run = b.Count - w
			if dir < 0 {
				run = w + 1
			}
		case index < 0 || index >= b.Count:
			// Held on the last frame of a finished run
			dir = 0
		default:
			run = b.Count - index
			if dir < 0 {
				run = index + 1
			}
		}
		if dir != 0 {
			limit = min(limit, start+run)
		}
	}

	return FrameInterval{
		Start:         start,
		End:           max(limit, start+1),
		TimelineFrame: frame,
		Direction:     dir,
		Speed:         s.speeds.AtFrame(start).Speed,
	}
}

// PlaylistTimeInterval is PlaylistFrameInterval over performance time
// [start, end). The returned interval starts at start and ends at the
// earlier of end and the end of the contiguous run.
func (s *Scheduler) PlaylistTimeInterval(start, end int64) TimeInterval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := s.speeds.FrameForTime(start)
	last := s.speeds.FrameForTime(max(end, start+1)-1) + 1
	fi := s.frameInterval(first, last)

	return TimeInterval{
		Start:         start,
		End:           max(min(end, s.speeds.TimeForFrame(fi.End)), start+1),
		TimelineFrame: fi.TimelineFrame,
		Direction:     fi.Direction,
		Speed:         fi.Speed,
	}
}
