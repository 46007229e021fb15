package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jfmyers9/cueline/internal/scheduler"
	"github.com/jfmyers9/cueline/internal/timeline"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	framesFPS     float64
	framesSpeed   float64
	framesFrom    int64
	framesTo      int64
	framesChanges []string
	framesTimes   []int64
)

// framesCmd represents the frames command
var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Print frame and performance time conversions",
	Long: `Print the performance time of every frame in a range, the way a playing
scheduler maps them.

Speed changes can be added with --change frame:speed. Each change takes
effect at its frame, after every earlier frame has been committed, so the
times of earlier frames never move.

With --time, prints the frame shown at each given time (in microseconds)
instead.`,
	Example: `  cueline frames --fps 25 --to 10
  cueline frames --fps 30 --to 60 --change 30:2
  cueline frames --fps 25 --change 25:0.5 --time 1000000 --time 2000000`,
	RunE: runFrames,
}

func init() {
	rootCmd.AddCommand(framesCmd)

	framesCmd.Flags().Float64Var(&framesFPS, "fps", 25, "Frames per second")
	framesCmd.Flags().Float64Var(&framesSpeed, "speed", 1, "Initial playback speed")
	framesCmd.Flags().Int64Var(&framesFrom, "from", 0, "First frame to print")
	framesCmd.Flags().Int64Var(&framesTo, "to", 25, "Last frame to print")
	framesCmd.Flags().StringArrayVar(&framesChanges, "change", nil, "Speed change as frame:speed (repeatable)")
	framesCmd.Flags().Int64SliceVar(&framesTimes, "time", nil, "Performance times in microseconds to convert to frames")
}

// speedChange is a requested speed taking effect at a performance frame
type speedChange struct {
	Frame int64
	Speed float64
}

// frameRow is one line of the frames table
type frameRow struct {
	Frame         int64
	Time          int64 // Microseconds
	Speed         float64
	TimelineFrame int64
}

func runFrames(cmd *cobra.Command, args []string) error {
	if framesFPS <= 0 {
		return fmt.Errorf("fps must be positive, got %g", framesFPS)
	}
	if framesFrom < 0 || framesTo < framesFrom {
		return fmt.Errorf("invalid frame range %d..%d", framesFrom, framesTo)
	}

	changes := make([]speedChange, 0, len(framesChanges))
	for _, c := range framesChanges {
		sc, err := parseSpeedChange(c)
		if err != nil {
			return err
		}
		changes = append(changes, sc)
	}

	movieEnd := framesTo
	for _, c := range changes {
		movieEnd = max(movieEnd, c.Frame)
	}
	s := playbackScheduler(framesFPS, framesSpeed, movieEnd+1, changes)

	if len(framesTimes) > 0 {
		for _, t := range framesTimes {
			fmt.Printf("%s  frame %d\n",
				runewidth.FillLeft(strconv.FormatInt(t, 10), 12), s.FrameForTime(t))
		}
		return nil
	}

	fmt.Println(formatFrameRow("frame", "time_us", "time", "speed", "shows"))
	for _, row := range frameTable(s, framesFrom, framesTo) {
		fmt.Println(formatFrameRow(
			strconv.FormatInt(row.Frame, 10),
			strconv.FormatInt(row.Time, 10),
			(time.Duration(row.Time) * time.Microsecond).String(),
			strconv.FormatFloat(row.Speed, 'g', -1, 64)+"x",
			strconv.FormatInt(row.TimelineFrame, 10),
		))
	}
	return nil
}

// parseSpeedChange parses "frame:speed"
func parseSpeedChange(s string) (speedChange, error) {
	frameStr, speedStr, ok := strings.Cut(s, ":")
	if !ok {
		return speedChange{}, fmt.Errorf("invalid change %q, expected frame:speed", s)
	}

	frame, err := strconv.ParseInt(strings.TrimSpace(frameStr), 10, 64)
	if err != nil || frame < 0 {
		return speedChange{}, fmt.Errorf("invalid change frame %q", frameStr)
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(speedStr), 64)
	if err != nil || speed <= 0 {
		return speedChange{}, fmt.Errorf("invalid change speed %q", speedStr)
	}

	return speedChange{Frame: frame, Speed: speed}, nil
}

// playbackScheduler builds a scheduler playing forward from frame 0 with
// each change applied once every frame before it is committed
func playbackScheduler(fps, speed float64, frameCount int64, changes []speedChange) *scheduler.Scheduler {
	s := scheduler.New(nil, zerolog.Nop(), scheduler.WithAudio(false))
	s.DurationChanged(frameCount, frameCount)
	s.Init(fps, timeline.LoopAll, true, speed, timeline.PlayingForward, 0)

	sorted := append([]speedChange(nil), changes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	for _, c := range sorted {
		if c.Frame > 0 {
			s.SetCurrentVideoFrame(c.Frame - 1)
		}
		s.SetSpeed(c.Speed)
	}
	return s
}

// frameTable converts frames from..to with s
func frameTable(s *scheduler.Scheduler, from, to int64) []frameRow {
	speeds := s.Speeds()
	rows := make([]frameRow, 0, to-from+1)
	for f := from; f <= to; f++ {
		seg := 0
		for seg+1 < len(speeds) && speeds[seg+1].ActivationFrame <= f {
			seg++
		}
		tf, _, _ := s.PlaylistFrameAtFrame(f)
		rows = append(rows, frameRow{
			Frame:         f,
			Time:          s.TimeForFrame(f),
			Speed:         speeds[seg].Speed,
			TimelineFrame: tf,
		})
	}
	return rows
}

func formatFrameRow(frame, timeUS, t, speed, shows string) string {
	return runewidth.FillLeft(frame, 8) + "  " +
		runewidth.FillLeft(timeUS, 12) + "  " +
		runewidth.FillLeft(t, 14) + "  " +
		runewidth.FillLeft(speed, 6) + "  " +
		runewidth.FillLeft(shows, 8)
}
