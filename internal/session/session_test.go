package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jfmyers9/cueline/internal/journal"
	"github.com/jfmyers9/cueline/internal/scheduler"
	"github.com/jfmyers9/cueline/internal/timeline"
	"github.com/rs/zerolog"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		FramesPerSecond:  25,
		Speed:            1,
		LoopMode:         timeline.LoopAll,
		Looping:          true,
		FrameCount:       250,
		Audio:            ProducerConfig{Enabled: true, Latency: 40 * time.Millisecond, Period: 10 * time.Millisecond},
		Video:            ProducerConfig{Enabled: true, Latency: 80 * time.Millisecond, Period: 20 * time.Millisecond},
		JournalDB:        filepath.Join(dir, "journal.db"),
		SnapshotFile:     filepath.Join(dir, "snapshot.json"),
		SnapshotInterval: 10 * time.Millisecond,
	}
}

func runFor(t *testing.T, s *Session, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSessionPlays(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := len(s.Producers()); got != 2 {
		t.Fatalf("len(Producers()) = %d, want 2", got)
	}

	runFor(t, s, 300*time.Millisecond)

	if got := s.Scheduler().CurrentFrame(); got == 0 {
		t.Error("current frame never advanced")
	}
	if err := s.Scheduler().Check(); err != nil {
		t.Errorf("Check: %v", err)
	}

	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	j, err := journal.Open(cfg.JournalDB)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer func() { _ = j.Close() }()

	entries, err := j.ForSession(context.Background(), s.ID(), 0)
	if err != nil {
		t.Fatalf("ForSession: %v", err)
	}

	var modes []string
	for _, e := range entries {
		if e.Kind == "play_mode" {
			modes = append(modes, e.Value)
		}
		if e.Kind == "current_frame" {
			t.Errorf("current frame journaled without JournalFrames: %+v", e)
		}
	}
	if diff := cmp.Diff([]string{"playing"}, modes); diff != "" {
		t.Errorf("journaled play modes mismatch (-want +got):\n%s", diff)
	}

	snap, err := LoadSnapshot(cfg.SnapshotFile)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Session != s.ID() || snap.Playing || snap.PlayMode != "stopped" || snap.FrameCount != 250 || snap.CurrentFrame == 0 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestSessionJournalsFrames(t *testing.T) {
	cfg := testConfig(t)
	cfg.JournalFrames = true

	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runFor(t, s, 300*time.Millisecond)
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	j, err := journal.Open(cfg.JournalDB)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer func() { _ = j.Close() }()

	// The replayed frame 0 plus at least one advance
	n, err := j.Count(context.Background(), "current_frame")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n < 2 {
		t.Errorf("Count(current_frame) = %d, want at least 2", n)
	}
}

func TestSessionPausedStaysPut(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paused = true
	cfg.LoopMode = timeline.LoopRange
	cfg.LoopStart, cfg.LoopEnd = 100, 149
	cfg.JournalDB = ""

	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runFor(t, s, 100*time.Millisecond)
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	tr := s.Scheduler().Snapshot()
	if tr.PlayMode.IsPlaying() {
		t.Errorf("PlayMode = %v, want paused", tr.PlayMode)
	}
	if tr.CurrentFrame != 100 {
		t.Errorf("CurrentFrame = %d, want 100", tr.CurrentFrame)
	}
}

func TestSessionLoopsVisibleRange(t *testing.T) {
	cfg := testConfig(t)
	cfg.LoopMode = timeline.LoopVisible
	cfg.LoopStart, cfg.LoopEnd = 0, 249
	cfg.VisibleFirst, cfg.VisibleLast = 60, 64
	cfg.JournalDB = ""

	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.Scheduler().CurrentFrame(); got != 60 {
		t.Errorf("CurrentFrame before Run = %d, want 60", got)
	}

	runFor(t, s, 400*time.Millisecond)
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	tr := s.Scheduler().Snapshot()
	if tr.Bounds.FirstVisibleFrame != 60 || tr.Bounds.LastVisibleFrame != 64 {
		t.Errorf("visible bounds = %d:%d, want 60:64", tr.Bounds.FirstVisibleFrame, tr.Bounds.LastVisibleFrame)
	}
	if tr.CurrentFrame < 60 || tr.CurrentFrame > 64 {
		t.Errorf("CurrentFrame = %d, want within 60:64", tr.CurrentFrame)
	}
	// 400ms at 25 fps is past the end of the five frame region
	if tr.PerformanceTime < 200_000 {
		t.Errorf("PerformanceTime = %d, playback never ran through the region", tr.PerformanceTime)
	}
	if err := s.Scheduler().Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestSessionWithoutProducers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audio.Enabled = false
	cfg.Video.Enabled = false

	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := len(s.Producers()); got != 0 {
		t.Fatalf("len(Producers()) = %d, want 0", got)
	}

	runFor(t, s, 300*time.Millisecond)
	defer func() { _ = s.Shutdown() }()

	if got := s.Scheduler().CurrentFrame(); got == 0 {
		t.Error("current frame never advanced without producers")
	}
}

func TestUpdateRates(t *testing.T) {
	cfg := testConfig(t)
	cfg.JournalDB = ""

	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Shutdown() }()

	before := len(s.Scheduler().Speeds())
	s.UpdateRates(25, 1)
	if got := len(s.Scheduler().Speeds()); got != before {
		t.Errorf("unchanged rates appended speed segments: %d -> %d", before, got)
	}

	s.UpdateRates(30, 2)
	tr := s.Scheduler().Snapshot()
	if tr.FramesPerSecond != 30 || tr.Speed != 2 {
		t.Errorf("rates = %g fps at %gx, want 30 fps at 2x", tr.FramesPerSecond, tr.Speed)
	}
}

func TestEntryFor(t *testing.T) {
	tests := []struct {
		name  string
		event scheduler.Event
		want  journal.Entry
	}{
		{
			name:  "play mode",
			event: scheduler.Event{Kind: scheduler.EventPlayMode, PlayMode: timeline.PlayingBackward},
			want:  journal.Entry{Session: "s", Kind: "play_mode", Value: "playing-backward"},
		},
		{
			name:  "loop mode",
			event: scheduler.Event{Kind: scheduler.EventLoopMode, LoopMode: timeline.LoopVisible},
			want:  journal.Entry{Session: "s", Kind: "loop_mode", Value: "visible"},
		},
		{
			name:  "looping",
			event: scheduler.Event{Kind: scheduler.EventLooping, Looping: false},
			want:  journal.Entry{Session: "s", Kind: "looping", Value: "false"},
		},
		{
			name: "bounds",
			event: scheduler.Event{Kind: scheduler.EventBounds, Bounds: scheduler.MovieBounds{
				FrameCount: 250, MaxFrameCount: 300, StartFrame: 10, EndFrame: 20, LastVisibleFrame: 99,
			}},
			want: journal.Entry{Session: "s", Kind: "bounds", Value: "10:20", Detail: "frames=250 max=300 visible=0:99"},
		},
		{
			name:  "fps",
			event: scheduler.Event{Kind: scheduler.EventFramesPerSecond, FramesPerSecond: 29.97},
			want:  journal.Entry{Session: "s", Kind: "fps", Value: "29.97"},
		},
		{
			name:  "speed",
			event: scheduler.Event{Kind: scheduler.EventSpeed, Speed: 0.5},
			want:  journal.Entry{Session: "s", Kind: "speed", Value: "0.5"},
		},
		{
			name:  "dropped frame",
			event: scheduler.Event{Kind: scheduler.EventFrameDropped, Frame: 42},
			want:  journal.Entry{Session: "s", Kind: "frame_dropped", Frame: 42, Value: "42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entryFor("s", tt.event)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("entryFor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewRejectsZeroPeriod(t *testing.T) {
	cfg := testConfig(t)
	cfg.Video.Period = 0

	if _, err := New(cfg, zerolog.Nop()); err == nil {
		t.Error("New accepted an enabled producer without a period")
	}

	cfg.Video.Enabled = false
	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New with disabled producer: %v", err)
	}
	_ = s.Shutdown()
}
