package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jfmyers9/cueline/internal/scheduler"
)

// defaultPersistInterval is the minimum time between throttled writes
const defaultPersistInterval = time.Second

// TransportSnapshot is the last known transport state of a session, as
// written to disk for the now command
type TransportSnapshot struct {
	Session         string    `json:"session"`
	PlayMode        string    `json:"play_mode"`
	Playing         bool      `json:"playing"`
	LoopMode        string    `json:"loop_mode"`
	Looping         bool      `json:"looping"`
	FramesPerSecond float64   `json:"fps"`
	Speed           float64   `json:"speed"`
	CurrentFrame    int64     `json:"current_frame"`
	FrameCount      int64     `json:"frame_count"`
	StartFrame      int64     `json:"start_frame"`
	EndFrame        int64     `json:"end_frame"`
	DroppedFrames   int64     `json:"dropped_frames"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Position returns the current frame as a duration from the start of the
// movie at the snapshot's frame rate
func (t TransportSnapshot) Position() time.Duration {
	if t.FramesPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(t.CurrentFrame) / t.FramesPerSecond * float64(time.Second))
}

// Snapshot tracks the transport state of a running session with
// thread-safe access and throttled persistence
type Snapshot struct {
	mu       sync.RWMutex
	current  TransportSnapshot
	filePath string // Path to snapshot file for persistence

	persistInterval time.Duration
	lastPersist     time.Time
	dirty           bool // Changes not yet written because of throttling
}

// NewSnapshot creates a new Snapshot instance
// If filePath is provided, attempts to restore the previous snapshot from disk
func NewSnapshot(filePath string) (*Snapshot, error) {
	s := &Snapshot{
		filePath:        filePath,
		persistInterval: defaultPersistInterval,
	}

	if filePath != "" {
		if err := s.restore(); err != nil && !os.IsNotExist(err) {
			// Not fatal: the session starts from a fresh snapshot
			return s, err
		}
	}

	return s, nil
}

// LoadSnapshot reads a persisted snapshot without tracking it
func LoadSnapshot(filePath string) (TransportSnapshot, error) {
	var ts TransportSnapshot

	data, err := os.ReadFile(filePath)
	if err != nil {
		return ts, err
	}

	err = json.Unmarshal(data, &ts)
	return ts, err
}

// SetPersistInterval changes the minimum time between throttled writes
func (s *Snapshot) SetPersistInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistInterval = d
}

// Start resets the snapshot for a new session and writes it immediately
func (s *Snapshot) Start(session string, t scheduler.Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = TransportSnapshot{
		Session:         session,
		PlayMode:        t.PlayMode.String(),
		Playing:         t.PlayMode.IsPlaying(),
		LoopMode:        t.LoopMode.String(),
		Looping:         t.Looping,
		FramesPerSecond: t.FramesPerSecond,
		Speed:           t.Speed,
		CurrentFrame:    t.CurrentFrame,
		FrameCount:      t.Bounds.FrameCount,
		StartFrame:      t.Bounds.StartFrame,
		EndFrame:        t.Bounds.EndFrame,
		UpdatedAt:       time.Now(),
	}

	return s.persist()
}

// Apply folds a scheduler notification into the snapshot. Play mode
// changes are written immediately; everything else is throttled.
func (s *Snapshot) Apply(e scheduler.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case scheduler.EventPlayMode:
		s.current.PlayMode = e.PlayMode.String()
		s.current.Playing = e.PlayMode.IsPlaying()
		s.current.UpdatedAt = time.Now()
		return s.persist()
	case scheduler.EventLoopMode:
		s.current.LoopMode = e.LoopMode.String()
	case scheduler.EventLooping:
		s.current.Looping = e.Looping
	case scheduler.EventBounds:
		s.current.FrameCount = e.Bounds.FrameCount
		s.current.StartFrame = e.Bounds.StartFrame
		s.current.EndFrame = e.Bounds.EndFrame
	case scheduler.EventFramesPerSecond:
		s.current.FramesPerSecond = e.FramesPerSecond
	case scheduler.EventSpeed:
		s.current.Speed = e.Speed
	case scheduler.EventCurrentFrame:
		s.current.CurrentFrame = e.Frame
	case scheduler.EventFrameDropped:
		s.current.DroppedFrames++
	default:
		return nil
	}

	s.current.UpdatedAt = time.Now()
	return s.throttledPersist()
}

// Stop marks the session as no longer running and writes immediately. The
// last frame and rates are kept.
func (s *Snapshot) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.PlayMode = "stopped"
	s.current.Playing = false
	s.current.UpdatedAt = time.Now()
	return s.persist()
}

// Get returns a copy of the current snapshot
func (s *Snapshot) Get() TransportSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Flush writes pending changes, if any
func (s *Snapshot) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	return s.persist()
}

// throttledPersist writes only if persistInterval has elapsed since the
// last write, otherwise marks the snapshot dirty
// Must be called with lock held
func (s *Snapshot) throttledPersist() error {
	if time.Since(s.lastPersist) < s.persistInterval {
		s.dirty = true
		return nil
	}
	return s.persist()
}

// persist saves the current snapshot to disk
// Must be called with lock held
func (s *Snapshot) persist() error {
	if s.filePath == "" {
		s.dirty = false
		return nil // No persistence configured
	}

	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return err
	}

	s.lastPersist = time.Now()
	s.dirty = false
	return nil
}

// restore loads the previous snapshot from disk
func (s *Snapshot) restore() error {
	ts, err := LoadSnapshot(s.filePath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = ts
	return nil
}
