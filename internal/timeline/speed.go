package timeline

import (
	"math"
	"sort"
)

// SpeedTimeline is the ordered history of speed segments used to convert
// between performance time and performance frame.
//
// Segments are ordered by strictly increasing ActivationFrame (and therefore
// ActivationTime). The timeline is never empty.
type SpeedTimeline struct {
	segs []SpeedInfo
}

// NewSpeedTimeline creates a timeline holding a single segment
func NewSpeedTimeline(initial SpeedInfo) *SpeedTimeline {
	t := &SpeedTimeline{}
	t.Reset(initial)
	return t
}

// Reset discards the history and starts over from initial
func (t *SpeedTimeline) Reset(initial SpeedInfo) {
	t.segs = append(t.segs[:0], initial)
}

// Len returns the number of retained segments
func (t *SpeedTimeline) Len() int {
	return len(t.segs)
}

// Last returns the most recently appended segment
func (t *SpeedTimeline) Last() SpeedInfo {
	return t.segs[len(t.segs)-1]
}

// All returns a copy of the retained segments
func (t *SpeedTimeline) All() []SpeedInfo {
	out := make([]SpeedInfo, len(t.segs))
	copy(out, t.segs)
	return out
}

// indexForFrame returns the segment active at frame. Frames before the first
// retained segment resolve to the first segment.
func (t *SpeedTimeline) indexForFrame(frame int64) int {
	i := sort.Search(len(t.segs), func(i int) bool {
		return t.segs[i].ActivationFrame > frame
	})
	return max(i-1, 0)
}

// indexForTime returns the segment active at time t
func (t *SpeedTimeline) indexForTime(tm int64) int {
	i := sort.Search(len(t.segs), func(i int) bool {
		return t.segs[i].ActivationTime > tm
	})
	return max(i-1, 0)
}

// AtFrame returns the segment active at frame
func (t *SpeedTimeline) AtFrame(frame int64) SpeedInfo {
	return t.segs[t.indexForFrame(frame)]
}

// AtTime returns the segment active at time tm
func (t *SpeedTimeline) AtTime(tm int64) SpeedInfo {
	return t.segs[t.indexForTime(tm)]
}

// NextAfterFrame returns the activation frame of the first segment starting
// after frame, if any
func (t *SpeedTimeline) NextAfterFrame(frame int64) (int64, bool) {
	i := t.indexForFrame(frame) + 1
	if i >= len(t.segs) {
		return 0, false
	}
	return t.segs[i].ActivationFrame, true
}

// TimeForFrame returns the performance time at which frame starts.
// Times are rounded up so that FrameForTime(TimeForFrame(f)) == f.
func (t *SpeedTimeline) TimeForFrame(frame int64) int64 {
	seg := t.AtFrame(frame)
	elapsed := float64(frame-seg.ActivationFrame) * MicrosPerSecond / seg.rate()
	return seg.ActivationTime + int64(math.Ceil(elapsed))
}

// FrameForTime returns the performance frame being output at time tm.
//
// The direct formula can be off by one after floating-point rounding near a
// segment boundary; the result is nudged so that
// TimeForFrame(f) <= tm < TimeForFrame(f+1).
func (t *SpeedTimeline) FrameForTime(tm int64) int64 {
	seg := t.AtTime(tm)
	frames := float64(tm-seg.ActivationTime) * seg.rate() / MicrosPerSecond
	frame := seg.ActivationFrame + int64(math.Floor(frames))

	if t.TimeForFrame(frame) > tm {
		frame--
	} else if t.TimeForFrame(frame+1) <= tm {
		frame++
	}
	return frame
}

// Push appends a segment activating no earlier than frame, committed, or the
// last segment. committed is the first performance frame no producer has
// output yet. A last segment that is still pending (activates at or after
// committed) is superseded instead of kept, unless it is the only one. The
// activation time is derived from the history, never taken from the caller.
func (t *SpeedTimeline) Push(frame, committed int64, speed, setSpeed, frameRate float64) SpeedInfo {
	frame = max(frame, t.Last().ActivationFrame, committed)

	if len(t.segs) > 1 && t.Last().ActivationFrame >= committed {
		t.segs = t.segs[:len(t.segs)-1]
	}

	seg := SpeedInfo{
		ActivationFrame: frame,
		ActivationTime:  t.TimeForFrame(frame),
		Speed:           speed,
		SetSpeed:        setSpeed,
		FrameRate:       frameRate,
	}

	if t.Last().ActivationFrame == frame {
		t.segs[len(t.segs)-1] = seg
	} else {
		t.segs = append(t.segs, seg)
	}
	return seg
}

// Trim discards leading segments that stopped being active at or before
// frame. The active segment is always kept.
func (t *SpeedTimeline) Trim(frame int64) int {
	n := 0
	for n+1 < len(t.segs) && t.segs[n+1].ActivationFrame <= frame {
		n++
	}
	if n > 0 {
		t.segs = append(t.segs[:0], t.segs[n:]...)
	}
	return n
}
