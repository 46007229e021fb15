package timeline

import (
	"fmt"
	"strings"
)

// MicrosPerSecond converts performance time (microseconds) to seconds.
const MicrosPerSecond = 1_000_000

// PlayMode is the transport mode of a playing state.
//
// Each playing mode is the negative of its paused counterpart, so a single
// negation toggles between playing and paused in the same direction.
type PlayMode int

const (
	PausedBackward  PlayMode = -2
	PausedForward   PlayMode = -1
	PlayingForward  PlayMode = 1
	PlayingBackward PlayMode = 2
)

// IsPlaying reports whether the mode advances through the timeline
func (m PlayMode) IsPlaying() bool {
	return m > 0
}

// IsBackward reports whether the mode runs (or would run) backward
func (m PlayMode) IsBackward() bool {
	return m == PlayingBackward || m == PausedBackward
}

// Direction returns +1 for forward modes and -1 for backward modes,
// regardless of whether the mode is playing
func (m PlayMode) Direction() int64 {
	if m.IsBackward() {
		return -1
	}
	return 1
}

// Toggle returns the paused mode for a playing mode and vice versa
func (m PlayMode) Toggle() PlayMode {
	return -m
}

// Playing returns the playing mode with the same direction
func (m PlayMode) Playing() PlayMode {
	if m.IsBackward() {
		return PlayingBackward
	}
	return PlayingForward
}

// Paused returns the paused mode with the same direction
func (m PlayMode) Paused() PlayMode {
	if m.IsBackward() {
		return PausedBackward
	}
	return PausedForward
}

// WithDirection keeps the playing/paused part of m and applies the direction
func (m PlayMode) WithDirection(backward bool) PlayMode {
	switch {
	case m.IsPlaying() && backward:
		return PlayingBackward
	case m.IsPlaying():
		return PlayingForward
	case backward:
		return PausedBackward
	default:
		return PausedForward
	}
}

// Valid reports whether m is one of the four defined modes
func (m PlayMode) Valid() bool {
	switch m {
	case PausedBackward, PausedForward, PlayingForward, PlayingBackward:
		return true
	}
	return false
}

// String returns a human-readable representation of the PlayMode
func (m PlayMode) String() string {
	switch m {
	case PlayingForward:
		return "playing"
	case PlayingBackward:
		return "playing-backward"
	case PausedForward:
		return "paused"
	case PausedBackward:
		return "paused-backward"
	default:
		return "unknown"
	}
}

// LoopMode selects which frames make up the loop range
type LoopMode int

const (
	LoopAll       LoopMode = iota // The whole movie
	LoopRange                     // Explicit start/end frames
	LoopSelection                 // Selected intervals (single frame only, see BoundsFor)
	LoopVisible                   // The visible region of the timeline
)

// String returns a human-readable representation of the LoopMode
func (m LoopMode) String() string {
	switch m {
	case LoopAll:
		return "all"
	case LoopRange:
		return "range"
	case LoopSelection:
		return "selection"
	case LoopVisible:
		return "visible"
	default:
		return "unknown"
	}
}

// ParseLoopMode parses the names produced by LoopMode.String
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return LoopAll, nil
	case "range":
		return LoopRange, nil
	case "selection":
		return LoopSelection, nil
	case "visible":
		return LoopVisible, nil
	}
	return LoopAll, fmt.Errorf("unknown loop mode %q", s)
}

// PlayingState is one entry of the playing-state history. States are never
// modified once appended; a change is expressed as a new state.
type PlayingState struct {
	ActivationFrame int64 // First performance frame this state applies to

	StartFrame int64 // Loop range bounds for LoopRange
	EndFrame   int64

	FrameCount    int64 // Timeline length when the state was created
	MaxFrameCount int64

	FirstVisibleFrame int64 // Loop range bounds for LoopVisible
	LastVisibleFrame  int64

	PlayMode       PlayMode
	LoopMode       LoopMode
	LoopingEnabled bool

	CurrentFrame int64 // Timeline frame shown at ActivationFrame
	RangeIndex   int64 // Index of CurrentFrame within the loop range
}

// SpeedInfo is one entry of the speed history.
type SpeedInfo struct {
	ActivationFrame int64
	ActivationTime  int64 // Derived from ActivationFrame under the previous segment

	Speed     float64 // Effective multiplier, 1.0 while paused
	SetSpeed  float64 // Speed requested by the user
	FrameRate float64 // Frames per second at speed 1.0
}

// rate returns performance frames per second of performance time
func (s SpeedInfo) rate() float64 {
	return s.FrameRate * s.Speed
}

// Bounds describes a loop range as inclusive frame bounds.
// Count is zero for an empty range.
type Bounds struct {
	Start int64
	End   int64
	Count int64
}
