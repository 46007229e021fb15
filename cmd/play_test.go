package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jfmyers9/cueline/internal/config"
	"github.com/jfmyers9/cueline/internal/session"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		input   string
		start   int64
		end     int64
		wantErr bool
	}{
		{input: "10:20", start: 10, end: 20},
		{input: " 0 : 0 ", start: 0, end: 0},
		{input: "20:10", wantErr: true},
		{input: "-1:10", wantErr: true},
		{input: "10", wantErr: true},
		{input: "a:10", wantErr: true},
		{input: "10:b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			start, end, err := parseRange(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRange(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if start != tt.start || end != tt.end {
				t.Errorf("parseRange(%q) = %d, %d, want %d, %d", tt.input, start, end, tt.start, tt.end)
			}
		})
	}
}

func TestMovieRange(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		frameCount int64
		start      int64
		end        int64
		wantErr    bool
	}{
		{name: "empty spans the movie", input: "", frameCount: 250, start: 0, end: 249},
		{name: "empty with unknown length", input: "", frameCount: 0, start: 0, end: 0},
		{name: "explicit range", input: "60:79", frameCount: 250, start: 60, end: 79},
		{name: "invalid range", input: "79:60", frameCount: 250, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := movieRange(tt.input, tt.frameCount)
			if (err != nil) != tt.wantErr {
				t.Fatalf("movieRange(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if start != tt.start || end != tt.end {
				t.Errorf("movieRange(%q) = %d, %d, want %d, %d", tt.input, start, end, tt.start, tt.end)
			}
		})
	}
}

func TestProducerConfig(t *testing.T) {
	got := producerConfig(config.ProducerConfig{Enabled: true, LatencyMS: 40, PeriodMS: 10})
	want := session.ProducerConfig{Enabled: true, Latency: 40 * time.Millisecond, Period: 10 * time.Millisecond}
	if got != want {
		t.Errorf("producerConfig() = %+v, want %+v", got, want)
	}
}

func TestResolveDataDir(t *testing.T) {
	if got, err := resolveDataDir("/tmp/cueline"); err != nil || got != "/tmp/cueline" {
		t.Errorf("resolveDataDir(explicit) = %q, %v", got, err)
	}

	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := resolveDataDir("")
	if err != nil {
		t.Fatalf("resolveDataDir: %v", err)
	}
	if want := filepath.Join(home, ".local", "share", "cueline"); got != want {
		t.Errorf("resolveDataDir(\"\") = %q, want %q", got, want)
	}
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cueline.log")
	logger := setupLogger(path, "debug")
	logger.Debug().Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Errorf("log file = %q, want JSON line with message", data)
	}
}
