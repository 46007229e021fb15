package cmd

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jfmyers9/cueline/internal/journal"
)

func TestFormatHistory(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)
	entries := []journal.Entry{
		{Session: "0123456789abcdef", Kind: "play_mode", Value: "playing", CreatedAt: at},
		{Session: "0123456789abcdef", Kind: "frame_dropped", Frame: 7, Value: "7", CreatedAt: at},
		{Session: "0123456789abcdef", Kind: "frame_dropped", Frame: 9, Value: "9", CreatedAt: at},
		{Session: "short", Kind: "speed", Value: "2", CreatedAt: at},
	}

	tests := []struct {
		name   string
		kind   string
		limit  int
		format string
		width  int
		want   []string
	}{
		{
			name:   "default format aligns kinds",
			format: "{{.Time}}  {{.Kind}}  {{.Value}}",
			limit:  2,
			want: []string{
				"2026-03-01 09:30:00  play_mode      playing",
				"2026-03-01 09:30:00  frame_dropped  7",
			},
		},
		{
			name:   "kind filter with limit",
			kind:   "frame_dropped",
			limit:  1,
			format: "{{.Frame}}",
			want:   []string{"7"},
		},
		{
			name:   "session is shortened",
			kind:   "speed",
			format: "{{.Session}}",
			want:   []string{"short"},
		},
		{
			name:   "long session",
			format: "{{.Session}}",
			limit:  1,
			want:   []string{"01234567"},
		},
		{
			name:   "fixed width",
			kind:   "speed",
			format: "{{.Value}}",
			width:  4,
			want:   []string{"2   "},
		},
		{
			name:   "no matches",
			kind:   "bounds",
			format: "{{.Value}}",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatHistory(entries, tt.kind, tt.limit, tt.format, tt.width)
			if err != nil {
				t.Fatalf("formatHistory: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("formatHistory mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatHistoryInvalidTemplate(t *testing.T) {
	entries := []journal.Entry{{Kind: "speed"}}
	if _, err := formatHistory(entries, "", 0, "{{.Nope", 0); err == nil {
		t.Error("expected error for invalid template")
	}
}
