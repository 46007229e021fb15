package cmd

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSpeedChange(t *testing.T) {
	tests := []struct {
		input   string
		want    speedChange
		wantErr bool
	}{
		{input: "25:2", want: speedChange{Frame: 25, Speed: 2}},
		{input: " 10 : 0.5 ", want: speedChange{Frame: 10, Speed: 0.5}},
		{input: "25", wantErr: true},
		{input: "x:2", wantErr: true},
		{input: "-1:2", wantErr: true},
		{input: "5:0", wantErr: true},
		{input: "5:fast", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSpeedChange(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSpeedChange(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseSpeedChange(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFrameTable(t *testing.T) {
	s := playbackScheduler(25, 1, 100, []speedChange{{Frame: 25, Speed: 2}})

	rows := frameTable(s, 24, 26)
	want := []frameRow{
		{Frame: 24, Time: 960_000, Speed: 1, TimelineFrame: 24},
		{Frame: 25, Time: 1_000_000, Speed: 2, TimelineFrame: 25},
		{Frame: 26, Time: 1_020_000, Speed: 2, TimelineFrame: 26},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("frameTable mismatch (-want +got):\n%s", diff)
	}

	if got := s.TimeForFrame(50); got != 1_500_000 {
		t.Errorf("TimeForFrame(50) = %d, want 1500000", got)
	}
	if got := s.FrameForTime(1_500_000); got != 50 {
		t.Errorf("FrameForTime(1500000) = %d, want 50", got)
	}
}

func TestFrameTableChangesOutOfOrder(t *testing.T) {
	s := playbackScheduler(10, 1, 100, []speedChange{{Frame: 20, Speed: 4}, {Frame: 10, Speed: 2}})

	// 10 frames at 1x, 10 at 2x, then 4x
	tests := []struct {
		frame int64
		want  int64
	}{
		{10, 1_000_000},
		{20, 1_500_000},
		{24, 1_600_000},
	}
	for _, tt := range tests {
		if got := s.TimeForFrame(tt.frame); got != tt.want {
			t.Errorf("TimeForFrame(%d) = %d, want %d", tt.frame, got, tt.want)
		}
	}
}

func TestFormatFrameRow(t *testing.T) {
	got := formatFrameRow("1", "40000", "40ms", "1x", "1")
	want := "       1         40000            40ms      1x         1"
	if got != want {
		t.Errorf("formatFrameRow() = %q, want %q", got, want)
	}
}
