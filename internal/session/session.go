package session

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/cueline/internal/journal"
	"github.com/jfmyers9/cueline/internal/scheduler"
	"github.com/jfmyers9/cueline/internal/timeline"
	"github.com/rs/zerolog"
)

// eventBuffer is how many notifications may queue up before the journal
// writer falls behind and events are dropped
const eventBuffer = 256

// Config holds session configuration
type Config struct {
	FramesPerSecond float64
	Speed           float64
	LoopMode        timeline.LoopMode
	Looping         bool
	FrameCount      int64
	LoopStart       int64 // Loop range, used when LoopMode is LoopRange
	LoopEnd         int64
	VisibleFirst    int64 // Visible region, used when LoopMode is LoopVisible
	VisibleLast     int64
	Paused          bool // Start paused instead of playing forward

	Audio ProducerConfig
	Video ProducerConfig

	JournalDB        string        // Path to the journal database, empty disables journaling
	JournalFrames    bool          // Journal every current-frame change
	JournalRetention time.Duration // Journal entries older than this are removed on shutdown
	SnapshotFile     string        // Path to the transport snapshot
	SnapshotInterval time.Duration // Minimum time between throttled snapshot writes
}

// Session plays a movie on a real-time clock. It owns the scheduler, the
// simulated producers driving it, and everything that records what the
// scheduler reports.
type Session struct {
	id        string
	config    Config
	clock     *scheduler.Clock
	sched     *scheduler.Scheduler
	journal   *journal.Journal
	snapshot  *Snapshot
	producers []*Producer
	events    chan scheduler.Event
	listener  uuid.UUID
	logger    zerolog.Logger
}

// New creates a new Session. The scheduler starts immediately, but nothing
// reports consumed time until Run is called.
func New(cfg Config, logger zerolog.Logger) (*Session, error) {
	for _, p := range []struct {
		kind ProducerKind
		cfg  ProducerConfig
	}{{AudioProducer, cfg.Audio}, {VideoProducer, cfg.Video}} {
		if p.cfg.Enabled && p.cfg.Period <= 0 {
			return nil, fmt.Errorf("%s producer period must be positive, got %v", p.kind, p.cfg.Period)
		}
	}

	id := uuid.NewString()
	logger = logger.With().Str("session", id).Logger()

	snapshot, err := NewSnapshot(cfg.SnapshotFile)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to restore snapshot, starting fresh")
	}
	if cfg.SnapshotInterval > 0 {
		snapshot.SetPersistInterval(cfg.SnapshotInterval)
	}

	var j *journal.Journal
	if cfg.JournalDB != "" {
		j, err = journal.Open(cfg.JournalDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
	}

	clock := scheduler.NewClock()
	sched := scheduler.New(clock, logger,
		scheduler.WithAudio(cfg.Audio.Enabled),
		scheduler.WithVideo(cfg.Video.Enabled),
	)

	sched.DurationChanged(cfg.FrameCount, cfg.FrameCount)
	sched.SetLoopRange(cfg.LoopStart, cfg.LoopEnd)
	sched.SetVisibleRange(cfg.VisibleFirst, cfg.VisibleLast)

	var start int64
	switch cfg.LoopMode {
	case timeline.LoopRange:
		start = cfg.LoopStart
	case timeline.LoopVisible:
		start = cfg.VisibleFirst
	}

	mode := timeline.PlayingForward
	if cfg.Paused {
		mode = timeline.PausedForward
	}
	sched.Init(cfg.FramesPerSecond, cfg.LoopMode, cfg.Looping, cfg.Speed, mode, start)

	s := &Session{
		id:       id,
		config:   cfg,
		clock:    clock,
		sched:    sched,
		journal:  j,
		snapshot: snapshot,
		events:   make(chan scheduler.Event, eventBuffer),
		logger:   logger.With().Str("component", "session").Logger(),
	}

	if err := snapshot.Start(id, sched.Snapshot()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write snapshot")
	}

	// Registration replays the current state, so the journal opens with a
	// full picture of the transport
	s.listener = sched.AddListener(scheduler.ListenerFunc(s.enqueue))

	if cfg.Audio.Enabled {
		s.producers = append(s.producers, NewProducer(AudioProducer, cfg.Audio, sched, clock, logger))
	}
	if cfg.Video.Enabled {
		s.producers = append(s.producers, NewProducer(VideoProducer, cfg.Video, sched, clock, logger))
	}

	return s, nil
}

// ID returns the session id recorded in the journal and snapshot
func (s *Session) ID() string {
	return s.id
}

// Scheduler returns the scheduler the session drives
func (s *Session) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// Producers returns the simulated outputs of the session
func (s *Session) Producers() []*Producer {
	return s.producers
}

// UpdateRates applies frame rate and speed edits from a reloaded config.
// Unchanged values are left alone so no needless segment is appended.
func (s *Session) UpdateRates(fps, speed float64) {
	t := s.sched.Snapshot()
	if fps != t.FramesPerSecond {
		s.logger.Info().Float64("fps", fps).Msg("Frame rate changed")
		s.sched.SetFramesPerSecond(fps)
	}
	if speed != t.Speed {
		s.logger.Info().Float64("speed", speed).Msg("Speed changed")
		s.sched.SetSpeed(speed)
	}
}

// Run starts the session and blocks until ctx is done or a shutdown
// signal is received
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		s.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		s.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := s.run(ctx); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return err
	}

	return nil
}

// run is the main session loop
func (s *Session) run(ctx context.Context) error {
	s.logger.Info().
		Int("producers", len(s.producers)).
		Float64("fps", s.config.FramesPerSecond).
		Msg("Starting session")

	var wg sync.WaitGroup

	for _, p := range s.producers {
		wg.Add(1)
		go func(p *Producer) {
			defer wg.Done()
			if err := p.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Str("producer", p.Kind().String()).Msg("Producer error")
			}
		}(p)
	}

	// Without producers only the displayed time moves playback forward
	if len(s.producers) == 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.display(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.handleEvents(ctx)
	}()

	wg.Wait()

	s.logger.Info().Msg("Session stopped")
	return ctx.Err()
}

// display advances performance time directly, one frame period at a time
func (s *Session) display(ctx context.Context) {
	period := time.Duration(float64(time.Second) / s.sched.FramesPerSecond())
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sched.SetPerformanceTime(s.clock.Now())
		}
	}
}

// enqueue hands a notification to the journal writer without blocking the
// scheduler
func (s *Session) enqueue(e scheduler.Event) {
	select {
	case s.events <- e:
	default:
		s.logger.Warn().Str("kind", e.Kind.String()).Msg("Event buffer full, dropping notification")
	}
}

// handleEvents records notifications until ctx is done, then drains what
// is already queued
func (s *Session) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-s.events:
					s.record(e)
				default:
					return
				}
			}
		case e := <-s.events:
			s.record(e)
		}
	}
}

// record writes a single notification to the journal and the snapshot
func (s *Session) record(e scheduler.Event) {
	if err := s.snapshot.Apply(e); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist snapshot")
	}

	if s.journal == nil {
		return
	}
	if e.Kind == scheduler.EventCurrentFrame && !s.config.JournalFrames {
		return
	}

	if _, err := s.journal.Add(context.Background(), entryFor(s.id, e)); err != nil {
		s.logger.Error().Err(err).Str("kind", e.Kind.String()).Msg("Failed to journal event")
	}
}

// entryFor renders a notification as a journal entry
func entryFor(session string, e scheduler.Event) journal.Entry {
	entry := journal.Entry{
		Session: session,
		Kind:    e.Kind.String(),
	}

	switch e.Kind {
	case scheduler.EventPlayMode:
		entry.Value = e.PlayMode.String()
	case scheduler.EventLoopMode:
		entry.Value = e.LoopMode.String()
	case scheduler.EventLooping:
		entry.Value = strconv.FormatBool(e.Looping)
	case scheduler.EventBounds:
		b := e.Bounds
		entry.Value = fmt.Sprintf("%d:%d", b.StartFrame, b.EndFrame)
		entry.Detail = fmt.Sprintf("frames=%d max=%d visible=%d:%d",
			b.FrameCount, b.MaxFrameCount, b.FirstVisibleFrame, b.LastVisibleFrame)
	case scheduler.EventFramesPerSecond:
		entry.Value = strconv.FormatFloat(e.FramesPerSecond, 'g', -1, 64)
	case scheduler.EventSpeed:
		entry.Value = strconv.FormatFloat(e.Speed, 'g', -1, 64)
	case scheduler.EventCurrentFrame, scheduler.EventFrameDropped:
		entry.Frame = e.Frame
		entry.Value = strconv.FormatInt(e.Frame, 10)
	}

	return entry
}

// Shutdown marks the snapshot stopped and closes the journal
func (s *Session) Shutdown() error {
	s.logger.Info().Msg("Shutting down session")

	s.sched.RemoveListener(s.listener)

	if err := s.snapshot.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write final snapshot")
	}

	if s.journal == nil {
		return nil
	}

	// Cleanup old records
	if s.config.JournalRetention > 0 {
		ctx := context.Background()
		if n, err := s.journal.Cleanup(ctx, s.config.JournalRetention); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to cleanup journal")
		} else if n > 0 {
			s.logger.Debug().Int64("removed", n).Msg("Cleaned up journal")
		}
	}

	if err := s.journal.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}

	return nil
}
