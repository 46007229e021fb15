package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/jfmyers9/cueline/internal/session"
	"github.com/mattn/go-runewidth"
)

func TestPadToWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "no padding when width is 0",
			input:    "Hello",
			width:    0,
			expected: "Hello",
		},
		{
			name:     "no padding when width is negative",
			input:    "Hello",
			width:    -1,
			expected: "Hello",
		},
		{
			name:     "pad short text with spaces",
			input:    "Hi",
			width:    10,
			expected: "Hi        ",
		},
		{
			name:     "exact width unchanged",
			input:    "Hello",
			width:    5,
			expected: "Hello",
		},
		{
			name:     "truncate long text with ellipsis",
			input:    "This is a very long string that needs truncation",
			width:    20,
			expected: "This is a very lo...",
		},
		{
			name:     "handle emoji correctly",
			input:    "🎵 Music",
			width:    15,
			expected: "🎵 Music       ", // emoji is 2 chars wide, so 8 total + 7 spaces
		},
		{
			name:     "truncate emoji text",
			input:    "🎵 This is a very long song title",
			width:    15,
			expected: "🎵 This is a...",
		},
		{
			name:     "handle unicode characters",
			input:    "日本語",
			width:    10,
			expected: "日本語    ",
		},
		{
			name:     "truncate unicode text",
			input:    "日本語とても長いテキスト",
			width:    10,
			expected: "日本語... ", // 日本語 is 6 chars, ... is 3, need 1 space
		},
		{
			name:     "empty string padding",
			input:    "",
			width:    5,
			expected: "     ",
		},
		{
			name:     "single character padding",
			input:    "A",
			width:    5,
			expected: "A    ",
		},
		{
			name:     "minimum width for truncation",
			input:    "Hello",
			width:    3,
			expected: "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := padToWidth(tt.input, tt.width)
			if result != tt.expected {
				t.Errorf("padToWidth(%q, %d) = %q, expected %q",
					tt.input, tt.width, result, tt.expected)
			}

			// Verify the result has the expected display width (if width > 0)
			if tt.width > 0 {
				resultWidth := runewidth.StringWidth(result)
				if resultWidth != tt.width {
					t.Errorf("padToWidth(%q, %d) produced width %d, expected %d",
						tt.input, tt.width, resultWidth, tt.width)
				}
			}
		})
	}
}

func TestFormatSnapshot(t *testing.T) {
	snap := session.TransportSnapshot{
		Session:         "abc",
		PlayMode:        "playing",
		Playing:         true,
		LoopMode:        "range",
		FramesPerSecond: 25,
		Speed:           2,
		CurrentFrame:    50,
		FrameCount:      250,
		StartFrame:      10,
		EndFrame:        99,
		DroppedFrames:   3,
	}

	tests := []struct {
		name     string
		format   string
		expected string
	}{
		{
			name:     "default format",
			format:   "{{.PlayMode}} {{.CurrentFrame}}/{{.FrameCount}}",
			expected: "playing 50/250",
		},
		{
			name:     "loop range",
			format:   "{{.LoopMode}} {{.StartFrame}}:{{.EndFrame}} @{{.Speed}}x",
			expected: "range 10:99 @2x",
		},
		{
			name:     "position method",
			format:   "{{.Position}} dropped={{.DroppedFrames}}",
			expected: "2s dropped=3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatSnapshot(snap, tt.format)
			if err != nil {
				t.Fatalf("formatSnapshot: %v", err)
			}
			if got != tt.expected {
				t.Errorf("formatSnapshot() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestFormatSnapshotErrors(t *testing.T) {
	snap := session.TransportSnapshot{UpdatedAt: time.Now()}

	if _, err := formatSnapshot(snap, "{{.PlayMode"); err == nil || !strings.Contains(err.Error(), "invalid template") {
		t.Errorf("unparsable template error = %v", err)
	}
	if _, err := formatSnapshot(snap, "{{.NoSuchField}}"); err == nil || !strings.Contains(err.Error(), "execution failed") {
		t.Errorf("unknown field error = %v", err)
	}
}
