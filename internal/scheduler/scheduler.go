package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jfmyers9/cueline/internal/timeline"
	"github.com/rs/zerolog"
)

// ErrInconsistentHistory reports a broken timeline invariant. It indicates a
// bug in the scheduler, never bad caller input.
var ErrInconsistentHistory = errors.New("scheduler: inconsistent history")

const (
	// DefaultFramesPerSecond is used until Init or SetFramesPerSecond
	DefaultFramesPerSecond = 25.0

	// MinSpeed and MaxSpeed bound the requested playback speed. The upper
	// bound keeps a frame longer than one microsecond of performance time.
	MinSpeed = 1.0 / 64
	MaxSpeed = 64.0
)

// Option configures a Scheduler
type Option func(*Scheduler)

// WithAudio enables or disables the audio producer. A disabled producer
// never holds back trimming or wake-ups.
func WithAudio(enabled bool) Option {
	return func(s *Scheduler) { s.audioEnabled = enabled }
}

// WithVideo enables or disables the video producer
func WithVideo(enabled bool) Option {
	return func(s *Scheduler) { s.videoEnabled = enabled }
}

// Transport is a copy of the externally visible scheduler state
type Transport struct {
	PlayMode        timeline.PlayMode
	LoopMode        timeline.LoopMode
	Looping         bool
	Bounds          MovieBounds
	FramesPerSecond float64
	Speed           float64 // Requested speed
	CurrentFrame    int64
	PerformanceTime int64
	NextFrame       int64
}

// Scheduler converts performance time into timeline frames and serializes
// editorial changes into a history that never rewrites committed output.
//
// Audio and video producers report how far they have consumed performance
// time; editors request state changes. All of it runs under one lock.
type Scheduler struct {
	mu     sync.RWMutex
	waker  Waker
	logger zerolog.Logger

	audioEnabled bool
	videoEnabled bool

	states *timeline.StateTimeline
	speeds *timeline.SpeedTimeline
	fps    float64

	audioTime int64 // Performance time consumed by audio
	videoTime int64 // Performance time consumed by video
	perfTime  int64 // Performance time currently displayed
	wakeFrame int64 // Last frame boundary a wake-up was scheduled for

	stopPending bool
	stopFrame   int64

	broken error // First consistency failure found after a producer report

	observed  observed
	dropped   []Event
	listeners []listenerEntry

	outbox     []delivery // Notifications not yet delivered, in mutation order
	delivering bool       // A goroutine is draining outbox
}

// New creates a scheduler paused at frame 0 with an empty movie.
// waker may be nil, in which case the displayed frame only moves on
// SetPerformanceTime.
func New(waker Waker, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		waker:        waker,
		logger:       logger.With().Str("component", "scheduler").Logger(),
		audioEnabled: true,
		videoEnabled: true,
		fps:          DefaultFramesPerSecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.states = timeline.NewStateTimeline(timeline.PlayingState{
		PlayMode:       timeline.PausedForward,
		LoopingEnabled: true,
	})
	s.speeds = timeline.NewSpeedTimeline(timeline.SpeedInfo{
		Speed:     1,
		SetSpeed:  1,
		FrameRate: s.fps,
	})
	s.observed = s.observe()

	return s
}

// Init resets both timelines to a single segment each. Movie bounds set
// through DurationChanged, SetLoopRange and SetVisibleRange are kept.
//
// The initial state is always paused and the requested mode is applied
// afterwards, so listeners see a play-mode notification for every Init.
func (s *Scheduler) Init(fps float64, loopMode timeline.LoopMode, looping bool, speed float64, mode timeline.PlayMode, startFrame int64) {
	s.mutate(func() {
		if fps <= 0 {
			s.logger.Warn().Float64("fps", fps).Msg("Ignoring non-positive frame rate")
			fps = s.fps
		}
		if !mode.Valid() {
			mode = timeline.PausedForward
		}

		base := s.states.Last()
		st := timeline.PlayingState{
			StartFrame:        base.StartFrame,
			EndFrame:          base.EndFrame,
			FrameCount:        base.FrameCount,
			MaxFrameCount:     base.MaxFrameCount,
			FirstVisibleFrame: base.FirstVisibleFrame,
			LastVisibleFrame:  base.LastVisibleFrame,
			PlayMode:          mode.Paused(),
			LoopMode:          loopMode,
			LoopingEnabled:    looping,
		}
		st.CurrentFrame = clampFrame(st, startFrame)
		st.RangeIndex = timeline.IndexForFrame(st, st.CurrentFrame)

		s.fps = fps
		s.states.Reset(st)
		s.speeds.Reset(timeline.SpeedInfo{
			Speed:     1,
			SetSpeed:  s.clampSpeed(speed),
			FrameRate: fps,
		})
		s.audioTime, s.videoTime, s.perfTime = 0, 0, 0
		s.wakeFrame = 0
		s.stopPending = false
		s.broken = nil
		s.observed = observed{}

		s.logger.Debug().
			Float64("fps", fps).
			Str("loop_mode", loopMode.String()).
			Bool("looping", looping).
			Str("mode", mode.String()).
			Int64("start_frame", st.CurrentFrame).
			Msg("Initialized timelines")

		s.setPlayMode(mode, true)
	})
}

// mutate runs fn under the write lock and queues whatever changed for
// listeners. Notifications are delivered outside the lock in the order the
// mutations ran.
func (s *Scheduler) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.enqueue(s.collect(), s.listeners)
	s.mu.Unlock()

	s.deliver()
}

// collect diffs the observable state against what listeners last saw.
// Must be called with the lock held.
func (s *Scheduler) collect() []Event {
	next := s.observe()
	events := s.observed.diff(next)
	s.observed = next

	events = append(events, s.dropped...)
	s.dropped = nil
	return events
}

// observe computes the observable state. Must be called with the lock held.
func (s *Scheduler) observe() observed {
	last := s.states.Last()
	frame, _, _ := s.playlistFrameAt(s.speeds.FrameForTime(s.perfTime))
	return observed{
		valid:    true,
		playMode: last.PlayMode,
		loopMode: last.LoopMode,
		looping:  last.LoopingEnabled,
		bounds:   boundsOf(last),
		fps:      s.fps,
		speed:    s.speeds.Last().SetSpeed,
		frame:    frame,
	}
}

// committedTime is the performance time up to which output has been
// committed by the fastest producer
func (s *Scheduler) committedTime() int64 {
	switch {
	case s.audioEnabled && s.videoEnabled:
		return max(s.audioTime, s.videoTime)
	case s.audioEnabled:
		return s.audioTime
	case s.videoEnabled:
		return s.videoTime
	default:
		return s.perfTime
	}
}

// slowestTime is the performance time up to which every producer has
// consumed output
func (s *Scheduler) slowestTime() int64 {
	switch {
	case s.audioEnabled && s.videoEnabled:
		return min(s.audioTime, s.videoTime)
	case s.audioEnabled:
		return s.audioTime
	case s.videoEnabled:
		return s.videoTime
	default:
		return s.perfTime
	}
}

// nextFrame returns the first performance frame neither producer has
// committed. No change may activate before it.
func (s *Scheduler) nextFrame() int64 {
	return s.speeds.FrameForTime(s.committedTime()-1) + 1
}

// playlistFrameAt resolves the timeline frame shown at performance frame.
// Must be called with the lock held.
func (s *Scheduler) playlistFrameAt(frame int64) (int64, int64, bool) {
	st := s.states.AtFrame(frame)
	activated := frame == st.ActivationFrame

	if !st.PlayMode.IsPlaying() {
		return st.CurrentFrame, 0, activated
	}

	dir := st.PlayMode.Direction()
	index := st.RangeIndex + (frame-st.ActivationFrame)*dir
	if !st.LoopingEnabled {
		index = timeline.ClampIndex(index, timeline.BoundsFor(st).Count)
	}
	return timeline.FrameForIndex(st, index), dir, activated
}

// FrameForTime returns the performance frame output at performance time t
func (s *Scheduler) FrameForTime(t int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speeds.FrameForTime(t)
}

// TimeForFrame returns the performance time at which performance frame starts
func (s *Scheduler) TimeForFrame(frame int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speeds.TimeForFrame(frame)
}

// PlaylistFrameAtFrame returns the timeline frame shown at performance
// frame, the play direction (+1, -1, or 0 while paused), and whether frame
// is the first frame of its playing state
func (s *Scheduler) PlaylistFrameAtFrame(frame int64) (int64, int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playlistFrameAt(frame)
}

// NextFrame returns the first performance frame no producer has committed
func (s *Scheduler) NextFrame() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextFrame()
}

// CurrentFrame returns the timeline frame at the current performance time
func (s *Scheduler) CurrentFrame() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observed.frame
}

// FramesPerSecond returns the frame rate used for new segments
func (s *Scheduler) FramesPerSecond() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fps
}

// Snapshot returns a copy of the externally visible state
func (s *Scheduler) Snapshot() Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o := s.observed
	return Transport{
		PlayMode:        o.playMode,
		LoopMode:        o.loopMode,
		Looping:         o.looping,
		Bounds:          o.bounds,
		FramesPerSecond: o.fps,
		Speed:           o.speed,
		CurrentFrame:    o.frame,
		PerformanceTime: s.perfTime,
		NextFrame:       s.nextFrame(),
	}
}

// States returns a copy of the retained playing-state history
func (s *Scheduler) States() []timeline.PlayingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states.All()
}

// Speeds returns a copy of the retained speed history
func (s *Scheduler) Speeds() []timeline.SpeedInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speeds.All()
}

// Check verifies the history invariants. A non-nil error wraps
// ErrInconsistentHistory.
func (s *Scheduler) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.broken != nil {
		return s.broken
	}
	return s.check()
}

// verify runs the consistency check and logs the first failure. Must be
// called with the lock held.
func (s *Scheduler) verify() {
	if s.broken != nil {
		return
	}
	if err := s.check(); err != nil {
		s.broken = err
		s.logger.Error().Err(err).
			Int64("audio_time", s.audioTime).
			Int64("video_time", s.videoTime).
			Msg("Playback history is inconsistent")
	}
}

// check validates the retained history. Must be called with the lock held.
func (s *Scheduler) check() error {
	states := s.states.All()
	speeds := s.speeds.All()
	if len(states) == 0 || len(speeds) == 0 {
		return fmt.Errorf("%w: empty timeline", ErrInconsistentHistory)
	}

	for i := 1; i < len(states); i++ {
		if states[i].ActivationFrame < states[i-1].ActivationFrame {
			return fmt.Errorf("%w: state %d activates at frame %d before %d",
				ErrInconsistentHistory, i, states[i].ActivationFrame, states[i-1].ActivationFrame)
		}
	}

	for i := 1; i < len(speeds); i++ {
		if speeds[i].ActivationFrame <= speeds[i-1].ActivationFrame ||
			speeds[i].ActivationTime <= speeds[i-1].ActivationTime {
			return fmt.Errorf("%w: speed %d activates at frame %d/time %d, not after frame %d/time %d",
				ErrInconsistentHistory, i,
				speeds[i].ActivationFrame, speeds[i].ActivationTime,
				speeds[i-1].ActivationFrame, speeds[i-1].ActivationTime)
		}
	}

	for _, st := range states {
		if st.PlayMode.IsPlaying() {
			continue
		}
		if sp := s.speeds.AtFrame(st.ActivationFrame); sp.Speed != 1 {
			return fmt.Errorf("%w: paused state at frame %d runs at speed %g",
				ErrInconsistentHistory, st.ActivationFrame, sp.Speed)
		}
	}

	return nil
}

// clampFrame limits frame to the movie. An unknown length only clamps the
// lower bound.
func clampFrame(st timeline.PlayingState, frame int64) int64 {
	limit := max(st.MaxFrameCount, st.FrameCount)
	if frame < 0 {
		return 0
	}
	if limit > 0 && frame >= limit {
		return limit - 1
	}
	return frame
}

func (s *Scheduler) clampSpeed(speed float64) float64 {
	switch {
	case speed < MinSpeed:
		s.logger.Warn().Float64("speed", speed).Float64("min", MinSpeed).Msg("Clamping speed")
		return MinSpeed
	case speed > MaxSpeed:
		s.logger.Warn().Float64("speed", speed).Float64("max", MaxSpeed).Msg("Clamping speed")
		return MaxSpeed
	}
	return speed
}
