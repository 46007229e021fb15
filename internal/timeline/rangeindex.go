package timeline

import (
	"github.com/samber/lo"
)

// BoundsFor returns the loop range of st.
//
// LoopSelection is only partially supported: the range is the state's
// current frame alone, so a selection loop holds a single frame.
func BoundsFor(st PlayingState) Bounds {
	var start, end int64
	switch st.LoopMode {
	case LoopRange:
		start, end = clampToMovie(st, st.StartFrame), clampToMovie(st, st.EndFrame)
	case LoopVisible:
		start, end = clampToMovie(st, st.FirstVisibleFrame), clampToMovie(st, st.LastVisibleFrame)
	case LoopSelection:
		return Bounds{Start: st.CurrentFrame, End: st.CurrentFrame, Count: 1}
	default:
		start, end = 0, st.FrameCount-1
	}

	count := end - start + 1
	if count < 0 {
		count = 0
	}
	return Bounds{Start: start, End: end, Count: count}
}

// clampToMovie keeps explicit range bounds inside the movie when its length
// is known
func clampToMovie(st PlayingState, frame int64) int64 {
	if st.FrameCount <= 0 {
		return frame
	}
	return lo.Clamp(frame, 0, st.FrameCount-1)
}

// IndexForFrame returns the offset of frame from the start of the loop range
func IndexForFrame(st PlayingState, frame int64) int64 {
	if st.LoopMode == LoopSelection {
		return 0
	}
	return frame - BoundsFor(st).Start
}

// FrameForIndex maps index into the loop range, wrapping it into
// [0, Count). An empty range collapses every index to 0.
func FrameForIndex(st PlayingState, index int64) int64 {
	b := BoundsFor(st)
	return b.Start + WrapIndex(index, b.Count)
}

// WrapIndex reduces index modulo count into [0, count)
func WrapIndex(index, count int64) int64 {
	if count <= 0 {
		return 0
	}
	index %= count
	if index < 0 {
		index += count
	}
	return index
}

// ClampIndex limits index to [0, count), used when looping is disabled
func ClampIndex(index, count int64) int64 {
	if count <= 0 {
		return 0
	}
	return lo.Clamp(index, 0, count-1)
}

// NextFrameInRange returns frame if it lies inside the loop range, otherwise
// the range boundary playback in st's direction starts from: the start when
// moving forward, the end when moving backward.
func NextFrameInRange(st PlayingState, frame int64) int64 {
	b := BoundsFor(st)
	if b.Count == 0 {
		return b.Start
	}
	if frame >= b.Start && frame <= b.End {
		return frame
	}
	if st.PlayMode.IsBackward() {
		return b.End
	}
	return b.Start
}

// RangeStart returns the frame a fresh run through the loop range starts
// from in st's direction
func RangeStart(st PlayingState) int64 {
	b := BoundsFor(st)
	if st.PlayMode.IsBackward() && b.Count > 0 {
		return b.End
	}
	return b.Start
}
