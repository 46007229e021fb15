package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ProducerKind identifies which output a producer simulates
type ProducerKind int

const (
	AudioProducer ProducerKind = iota
	VideoProducer
)

// String returns a human-readable representation of the ProducerKind
func (k ProducerKind) String() string {
	switch k {
	case AudioProducer:
		return "audio"
	case VideoProducer:
		return "video"
	default:
		return "unknown"
	}
}

// ProducerConfig describes a simulated producer
type ProducerConfig struct {
	Enabled bool
	Latency time.Duration // How far ahead of the clock output is committed
	Period  time.Duration // How often the producer reports
}

// Transport is the part of the scheduler a producer drives
type Transport interface {
	SetCurrentAudioTime(t int64)
	SetCurrentVideoTime(t int64)
	ReportFrameDropped(frame int64)
	FrameForTime(t int64) int64
	TimeForFrame(frame int64) int64
}

// Clock reports the current performance time in microseconds
type Clock interface {
	Now() int64
}

// Producer stands in for an audio or video output. On every tick it reports
// that it has consumed performance time up to now plus its latency, the way
// a real device reports how far its buffers reach.
type Producer struct {
	kind      ProducerKind
	transport Transport
	clock     Clock
	latency   int64 // microseconds
	period    time.Duration
	logger    zerolog.Logger

	lastTick int64
	started  bool
	dropped  atomic.Int64
}

// NewProducer creates a new Producer instance
func NewProducer(kind ProducerKind, cfg ProducerConfig, transport Transport, clock Clock, logger zerolog.Logger) *Producer {
	return &Producer{
		kind:      kind,
		transport: transport,
		clock:     clock,
		latency:   cfg.Latency.Microseconds(),
		period:    cfg.Period,
		logger:    logger.With().Str("component", kind.String()+"-producer").Logger(),
	}
}

// Kind returns which output the producer simulates
func (p *Producer) Kind() ProducerKind {
	return p.kind
}

// Dropped returns how many frames the producer has reported as dropped
func (p *Producer) Dropped() int64 {
	return p.dropped.Load()
}

// Run starts the reporting loop
// Blocks until context is cancelled
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("period", p.period).
		Int64("latency_us", p.latency).
		Msg("Starting producer")

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	// Report immediately on start
	p.tick(p.clock.Now())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Int64("dropped", p.Dropped()).Msg("Producer stopped")
			return ctx.Err()
		case <-ticker.C:
			p.tick(p.clock.Now())
		}
	}
}

// tick reports consumption up to now plus latency. Video ticks that arrive
// late report the frames they should have shown as dropped first.
func (p *Producer) tick(now int64) {
	if p.kind == VideoProducer && p.started {
		p.checkLate(now)
	}
	p.lastTick, p.started = now, true

	t := now + p.latency
	switch p.kind {
	case AudioProducer:
		p.transport.SetCurrentAudioTime(t)
	case VideoProducer:
		p.transport.SetCurrentVideoTime(t)
	}
}

func (p *Producer) checkLate(now int64) {
	due := p.lastTick + p.period.Microseconds()
	first := p.transport.FrameForTime(due + p.latency)
	framePeriod := p.transport.TimeForFrame(first+1) - p.transport.TimeForFrame(first)

	missed := MissedFrames(due, now, framePeriod)
	if missed == 0 {
		return
	}

	p.logger.Debug().
		Int64("due", due).
		Int64("arrived", now).
		Int64("first_frame", first).
		Int64("missed", missed).
		Msg("Late tick")

	for i := int64(0); i < missed; i++ {
		p.transport.ReportFrameDropped(first + i)
	}
	p.dropped.Add(missed)
}
