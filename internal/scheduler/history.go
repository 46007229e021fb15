package scheduler

import (
	"github.com/jfmyers9/cueline/internal/timeline"
)

// appendState is the shared tail of every state change. It moves cand to
// the earliest frame that is safe to change, supersedes a pending last
// state, resolves the frame playback continues from, and appends the
// companion speed segment. Must be called with the lock held.
//
// With adjust set, cand continues from whatever the previous history shows
// at the activation frame. Otherwise cand.CurrentFrame is used as given,
// clamped to the movie.
func (s *Scheduler) appendState(cand timeline.PlayingState, adjust bool) timeline.PlayingState {
	next := s.nextFrame()
	last := s.states.Last()
	activation := max(cand.ActivationFrame, last.ActivationFrame, next)

	// Resolved before a pending state is dropped: the new state continues
	// from what that state would have shown.
	if adjust {
		cand.CurrentFrame, _, _ = s.playlistFrameAt(activation)
	}

	if s.states.DropPending(next) {
		s.logger.Debug().
			Int64("activation", last.ActivationFrame).
			Str("mode", last.PlayMode.String()).
			Msg("Superseded pending state")
	}

	cand.ActivationFrame = activation
	cand.CurrentFrame = clampFrame(cand, cand.CurrentFrame)
	if cand.PlayMode.IsPlaying() {
		cand.CurrentFrame = timeline.NextFrameInRange(cand, cand.CurrentFrame)
	}
	cand.RangeIndex = timeline.IndexForFrame(cand, cand.CurrentFrame)
	s.states.Push(cand)

	speed := s.speeds.Last()
	effective := 1.0
	if cand.PlayMode.IsPlaying() {
		effective = speed.SetSpeed
	}
	s.speeds.Push(activation, next, effective, speed.SetSpeed, s.fps)

	s.planStop(cand)

	s.logger.Debug().
		Int64("activation", activation).
		Int64("next_frame", next).
		Str("mode", cand.PlayMode.String()).
		Str("loop_mode", cand.LoopMode.String()).
		Bool("looping", cand.LoopingEnabled).
		Int64("current_frame", cand.CurrentFrame).
		Int64("range_index", cand.RangeIndex).
		Msg("Appended playing state")

	return cand
}

// appendSpeed appends a speed segment at the next committable frame. The
// effective speed is pinned to 1.0 unless the state at that frame plays.
// Must be called with the lock held.
func (s *Scheduler) appendSpeed(setSpeed float64) timeline.SpeedInfo {
	next := s.nextFrame()
	activation := max(next, s.speeds.Last().ActivationFrame)

	effective := 1.0
	if s.states.AtFrame(activation).PlayMode.IsPlaying() {
		effective = setSpeed
	}
	seg := s.speeds.Push(activation, next, effective, setSpeed, s.fps)

	s.logger.Debug().
		Int64("activation", seg.ActivationFrame).
		Int64("activation_time", seg.ActivationTime).
		Float64("speed", seg.Speed).
		Float64("set_speed", seg.SetSpeed).
		Float64("fps", seg.FrameRate).
		Msg("Appended speed segment")

	return seg
}

// planStop remembers the performance frame at which a non-looping state
// runs out of its loop range
func (s *Scheduler) planStop(st timeline.PlayingState) {
	if !st.PlayMode.IsPlaying() || st.LoopingEnabled {
		s.stopPending = false
		return
	}

	b := timeline.BoundsFor(st)
	remaining := st.RangeIndex
	if !st.PlayMode.IsBackward() {
		remaining = b.Count - 1 - st.RangeIndex
	}
	s.stopFrame = st.ActivationFrame + max(remaining, 0)
	s.stopPending = true
}

// checkAutoStop pauses playback once committed output reaches the stop
// frame. The pause keeps showing the last frame of the range.
func (s *Scheduler) checkAutoStop() {
	if !s.stopPending || s.nextFrame() < s.stopFrame {
		return
	}
	s.stopPending = false

	cand := s.states.Last()
	cand.PlayMode = cand.PlayMode.Paused()
	cand.ActivationFrame = s.stopFrame

	st := s.appendState(cand, true)
	s.logger.Info().
		Int64("stop_frame", st.ActivationFrame).
		Int64("frame", st.CurrentFrame).
		Msg("Reached end of range, pausing")
}

// trim drops history no producer and no displayed frame can still need
func (s *Scheduler) trim() {
	slowest := s.speeds.FrameForTime(s.slowestTime()-1) + 1
	bound := min(slowest, s.speeds.FrameForTime(s.perfTime))

	states := s.states.Trim(bound)
	speeds := s.speeds.Trim(bound)
	if states > 0 || speeds > 0 {
		s.logger.Debug().
			Int64("frame", bound).
			Int("states", states).
			Int("speeds", speeds).
			Msg("Trimmed history")
	}
}

// scheduleWake arranges a re-evaluation at the start of the frame the
// slowest producer has reached, once per frame boundary
func (s *Scheduler) scheduleWake() {
	if s.waker == nil {
		return
	}

	frame := s.speeds.FrameForTime(s.slowestTime())
	if frame <= s.wakeFrame {
		return
	}
	s.wakeFrame = frame

	at := s.speeds.TimeForFrame(frame)
	s.waker.WakeAt(at, func() {
		s.SetPerformanceTime(at)
	})
}

// producersAdvanced runs after any producer report
func (s *Scheduler) producersAdvanced() {
	s.trim()
	s.checkAutoStop()
	s.scheduleWake()
	s.verify()
}
