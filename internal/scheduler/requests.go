package scheduler

import (
	"github.com/jfmyers9/cueline/internal/timeline"
)

// SetCurrentFrame seeks to frame. While playing, a frame outside the loop
// range snaps to the range boundary in the play direction.
func (s *Scheduler) SetCurrentFrame(frame int64) {
	s.mutate(func() {
		cand := s.states.Last()
		cand.CurrentFrame = frame
		s.appendState(cand, false)
	})
}

// SetPlayMode changes the play mode. Unless continuePlaying is set, a
// playing mode starts over from the start (forward) or end (backward) of
// the loop range.
func (s *Scheduler) SetPlayMode(mode timeline.PlayMode, continuePlaying bool) {
	s.mutate(func() {
		s.setPlayMode(mode, continuePlaying)
	})
}

func (s *Scheduler) setPlayMode(mode timeline.PlayMode, continuePlaying bool) {
	if !mode.Valid() {
		s.logger.Warn().Int("mode", int(mode)).Msg("Ignoring unknown play mode")
		return
	}
	cand := s.states.Last()
	cand.PlayMode = mode
	s.apply(cand, continuePlaying)
}

// SetLoopMode changes which frames make up the loop range
func (s *Scheduler) SetLoopMode(mode timeline.LoopMode, continuePlaying bool) {
	s.mutate(func() {
		cand := s.states.Last()
		cand.LoopMode = mode
		s.apply(cand, continuePlaying)
	})
}

// SetLoopingEnabled turns wraparound at the end of the loop range on or off.
// With looping off, playback pauses on the last frame of the range.
func (s *Scheduler) SetLoopingEnabled(enabled, continuePlaying bool) {
	s.mutate(func() {
		cand := s.states.Last()
		cand.LoopingEnabled = enabled
		s.apply(cand, continuePlaying)
	})
}

// apply is the common path of the mode setters
func (s *Scheduler) apply(cand timeline.PlayingState, continuePlaying bool) {
	if !continuePlaying && cand.PlayMode.IsPlaying() {
		cand.CurrentFrame = timeline.RangeStart(cand)
	}
	s.appendState(cand, continuePlaying)
}

// SetDirection keeps playing or paused and changes direction
func (s *Scheduler) SetDirection(backward bool) {
	s.mutate(func() {
		last := s.states.Last()
		s.setPlayMode(last.PlayMode.WithDirection(backward), true)
	})
}

// StartPlaying plays in the current direction from the displayed frame
func (s *Scheduler) StartPlaying() {
	s.mutate(func() {
		s.setPlayMode(s.states.Last().PlayMode.Playing(), true)
	})
}

// PausePlaying pauses on the displayed frame
func (s *Scheduler) PausePlaying() {
	s.mutate(func() {
		s.setPlayMode(s.states.Last().PlayMode.Paused(), true)
	})
}

// TogglePlaying switches between playing and paused in the same direction
func (s *Scheduler) TogglePlaying() {
	s.mutate(func() {
		s.setPlayMode(s.states.Last().PlayMode.Toggle(), true)
	})
}

// StopPlaying pauses and rewinds to the start of the loop range (or its end
// when the direction is backward)
func (s *Scheduler) StopPlaying() {
	s.mutate(func() {
		cand := s.states.Last()
		cand.PlayMode = cand.PlayMode.Paused()
		cand.CurrentFrame = timeline.RangeStart(cand)
		s.appendState(cand, false)
	})
}

// SetSpeed requests a new playback speed from the next committable frame.
// The effective speed stays 1.0 while paused.
func (s *Scheduler) SetSpeed(speed float64) {
	s.mutate(func() {
		s.appendSpeed(s.clampSpeed(speed))
	})
}

// SetFramesPerSecond changes the frame rate for all frames not yet
// committed. Committed frames keep the rate they were scheduled with.
func (s *Scheduler) SetFramesPerSecond(fps float64) {
	s.mutate(func() {
		if fps <= 0 {
			s.logger.Warn().Float64("fps", fps).Msg("Ignoring non-positive frame rate")
			return
		}
		if fps == s.fps {
			return
		}
		s.fps = fps
		s.appendSpeed(s.speeds.Last().SetSpeed)
	})
}

// DurationChanged updates the movie length. Playback continues from the
// displayed frame, clamped to the new length.
func (s *Scheduler) DurationChanged(frameCount, maxFrameCount int64) {
	s.mutate(func() {
		cand := s.states.Last()
		cand.FrameCount = max(frameCount, 0)
		cand.MaxFrameCount = max(maxFrameCount, cand.FrameCount)
		s.appendState(cand, true)
	})
}

// SetLoopRange sets the bounds used by LoopRange. Bounds given in reverse
// order are swapped.
func (s *Scheduler) SetLoopRange(start, end int64) {
	s.mutate(func() {
		if start > end {
			start, end = end, start
		}
		cand := s.states.Last()
		cand.StartFrame, cand.EndFrame = start, end
		s.appendState(cand, true)
	})
}

// SetVisibleRange sets the bounds used by LoopVisible
func (s *Scheduler) SetVisibleRange(first, last int64) {
	s.mutate(func() {
		if first > last {
			first, last = last, first
		}
		cand := s.states.Last()
		cand.FirstVisibleFrame, cand.LastVisibleFrame = first, last
		s.appendState(cand, true)
	})
}

// SetCurrentAudioTime records that audio has consumed performance time
// up to t. Reports that move backward are ignored.
func (s *Scheduler) SetCurrentAudioTime(t int64) {
	s.mutate(func() {
		if t <= s.audioTime {
			return
		}
		s.audioTime = t
		s.producersAdvanced()
	})
}

// SetCurrentVideoTime records that video has consumed performance time up
// to t
func (s *Scheduler) SetCurrentVideoTime(t int64) {
	s.mutate(func() {
		if t <= s.videoTime {
			return
		}
		s.videoTime = t
		s.producersAdvanced()
	})
}

// SetCurrentVideoFrame records that video has committed performance frame
// and everything before it
func (s *Scheduler) SetCurrentVideoFrame(frame int64) {
	s.mutate(func() {
		t := s.speeds.TimeForFrame(frame + 1)
		if t <= s.videoTime {
			return
		}
		s.videoTime = t
		s.producersAdvanced()
	})
}

// SetCurrentAudioFrame records that audio has committed performance frame
// and everything before it
func (s *Scheduler) SetCurrentAudioFrame(frame int64) {
	s.mutate(func() {
		t := s.speeds.TimeForFrame(frame + 1)
		if t <= s.audioTime {
			return
		}
		s.audioTime = t
		s.producersAdvanced()
	})
}

// SetPerformanceTime moves the displayed performance time forward and
// recomputes the current frame. It is the wake-up handler; stale wake-ups
// for earlier times are no-ops.
func (s *Scheduler) SetPerformanceTime(t int64) {
	s.mutate(func() {
		if t <= s.perfTime {
			return
		}
		s.perfTime = t
		s.producersAdvanced()
	})
}

// SetPerformanceFrame is SetPerformanceTime at the start of frame
func (s *Scheduler) SetPerformanceFrame(frame int64) {
	s.mutate(func() {
		t := s.speeds.TimeForFrame(frame)
		if t <= s.perfTime {
			return
		}
		s.perfTime = t
		s.producersAdvanced()
	})
}

// ReportFrameDropped tells listeners a producer missed the deadline for
// performance frame. It has no effect on scheduling.
func (s *Scheduler) ReportFrameDropped(frame int64) {
	s.mutate(func() {
		s.logger.Debug().Int64("frame", frame).Msg("Frame dropped")
		s.dropped = append(s.dropped, Event{Kind: EventFrameDropped, Frame: frame})
	})
}
