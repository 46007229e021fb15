package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jfmyers9/cueline/internal/config"
	"github.com/jfmyers9/cueline/internal/session"
	"github.com/jfmyers9/cueline/internal/timeline"
	"github.com/jfmyers9/cueline/internal/tui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	playFPS      float64
	playSpeed    float64
	playLoop     string
	playRange    string
	playVisible  string
	playFrames   int64
	playDuration time.Duration
	playTUI      bool
	playPaused   bool
	playLogFile  string
	playLogLevel string
	playDataDir  string
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a timeline on the real-time clock",
	Long: `Play a movie timeline with simulated audio and video outputs.

The session will:
- Report consumed time from the audio and video outputs every few milliseconds
- Advance the displayed frame at every frame boundary
- Report frames the video output was too late to show as dropped
- Journal every transport notification to SQLite
- Keep a snapshot of the transport for 'cueline now'
- Apply fps and speed edits from the config file while running
- Handle graceful shutdown on SIGINT/SIGTERM

The session runs in the foreground and logs to stderr by default.
With --tui it shows a transport monitor instead and logs to a file in
the data directory unless --log-file is given.`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	// Command-line flags
	playCmd.Flags().Float64Var(&playFPS, "fps", 0, "Frames per second (default from config)")
	playCmd.Flags().Float64Var(&playSpeed, "speed", 0, "Playback speed multiplier (default from config)")
	playCmd.Flags().StringVar(&playLoop, "loop", "", "Loop mode: all, range, selection, visible (default from config)")
	playCmd.Flags().StringVar(&playRange, "range", "", "Loop range as start:end, implies --loop range")
	playCmd.Flags().StringVar(&playVisible, "visible", "", "Visible region as first:last, used by --loop visible (default: whole movie)")
	playCmd.Flags().Int64Var(&playFrames, "frames", 0, "Movie length in frames (default from config)")
	playCmd.Flags().DurationVar(&playDuration, "duration", 0, "Stop after this long (0 = run until interrupted)")
	playCmd.Flags().BoolVar(&playTUI, "tui", false, "Show the transport monitor")
	playCmd.Flags().BoolVar(&playPaused, "paused", false, "Start paused")
	playCmd.Flags().StringVar(&playLogFile, "log-file", "", "Log file path (default: stderr)")
	playCmd.Flags().StringVar(&playLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	playCmd.Flags().StringVar(&playDataDir, "data-dir", "", "Data directory for journal and snapshot (default: ~/.local/share/cueline)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	sessCfg, err := sessionConfig(cfg, cmd)
	if err != nil {
		return err
	}

	// Determine data directory
	dataDir, err := resolveDataDir(playDataDir)
	if err != nil {
		return err
	}

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// The monitor owns the terminal, so logs go to a file
	logFile := playLogFile
	if playTUI && logFile == "" {
		logFile = filepath.Join(dataDir, "cueline.log")
	}

	// Set up logging
	logger := setupLogger(logFile, playLogLevel)

	logger.Info().
		Str("version", version).
		Str("data_dir", dataDir).
		Msg("Starting cueline session")

	sessCfg.JournalDB = cfg.Journal.Path
	if sessCfg.JournalDB == "" {
		sessCfg.JournalDB = filepath.Join(dataDir, "journal.db")
	}
	sessCfg.SnapshotFile = filepath.Join(dataDir, "snapshot.json")

	sess, err := session.New(sessCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// Live reload of rates; a missing config file just means nothing to watch
	if err := config.Watch(func(c *config.Config, e fsnotify.Event) {
		logger.Info().Str("file", e.Name).Msg("Config changed")
		sess.UpdateRates(c.FramesPerSecond, c.Speed)
	}); err != nil {
		logger.Debug().Err(err).Msg("Not watching config")
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if playDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, playDuration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if playTUI {
		err = runWithMonitor(ctx, cancel, sess)
	} else {
		// Run session (blocks until shutdown signal)
		err = sess.Run(ctx)
	}
	if err != nil {
		return fmt.Errorf("session error: %w", err)
	}

	// Graceful shutdown
	if err := sess.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	logger.Info().Msg("Session stopped")
	return nil
}

// runWithMonitor runs the session in the background and the transport
// monitor in the foreground. Quitting either stops both.
func runWithMonitor(ctx context.Context, cancel context.CancelFunc, sess *session.Session) error {
	done := make(chan error, 1)
	go func() {
		done <- sess.Run(ctx)
	}()

	// The monitor stops itself once ctx is done
	app := tui.New(sess.Scheduler())
	tuiErr := app.Run(ctx)
	cancel()

	if err := <-done; err != nil {
		return err
	}
	return tuiErr
}

// sessionConfig merges the config file with command-line overrides
func sessionConfig(cfg *config.Config, cmd *cobra.Command) (session.Config, error) {
	sc := session.Config{
		FramesPerSecond:  cfg.FramesPerSecond,
		Speed:            cfg.Speed,
		Looping:          cfg.Looping,
		FrameCount:       cfg.FrameCount,
		Paused:           playPaused,
		Audio:            producerConfig(cfg.Audio),
		Video:            producerConfig(cfg.Video),
		JournalFrames:    cfg.Journal.Frames,
		JournalRetention: time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour,
		SnapshotInterval: time.Duration(cfg.SnapshotInterval) * time.Second,
	}

	if cmd.Flags().Changed("fps") {
		sc.FramesPerSecond = playFPS
	}
	if cmd.Flags().Changed("speed") {
		sc.Speed = playSpeed
	}
	if cmd.Flags().Changed("frames") {
		sc.FrameCount = playFrames
	}
	if sc.FramesPerSecond <= 0 {
		return sc, fmt.Errorf("fps must be positive, got %g", sc.FramesPerSecond)
	}
	if sc.FrameCount < 0 {
		return sc, fmt.Errorf("frames must not be negative, got %d", sc.FrameCount)
	}

	loop := cfg.LoopMode
	if playLoop != "" {
		loop = playLoop
	}
	mode, err := timeline.ParseLoopMode(loop)
	if err != nil {
		return sc, err
	}
	sc.LoopMode = mode

	loopRange := cfg.LoopRange
	if playRange != "" {
		loopRange = playRange
		sc.LoopMode = timeline.LoopRange
	}
	if sc.LoopStart, sc.LoopEnd, err = movieRange(loopRange, sc.FrameCount); err != nil {
		return sc, err
	}

	visible := cfg.VisibleRange
	if playVisible != "" {
		visible = playVisible
	}
	if sc.VisibleFirst, sc.VisibleLast, err = movieRange(visible, sc.FrameCount); err != nil {
		return sc, err
	}

	return sc, nil
}

// movieRange parses a start:end range, or spans the whole movie when s is
// empty
func movieRange(s string, frameCount int64) (int64, int64, error) {
	if s == "" {
		return 0, max(frameCount-1, 0), nil
	}
	return parseRange(s)
}

func producerConfig(pc config.ProducerConfig) session.ProducerConfig {
	return session.ProducerConfig{
		Enabled: pc.Enabled,
		Latency: time.Duration(pc.LatencyMS) * time.Millisecond,
		Period:  time.Duration(pc.PeriodMS) * time.Millisecond,
	}
}

// parseRange parses "start:end" into inclusive frame bounds
func parseRange(s string) (int64, int64, error) {
	startStr, endStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid range %q, expected start:end", s)
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start %q: %w", startStr, err)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(endStr), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end %q: %w", endStr, err)
	}
	if start < 0 || end < start {
		return 0, 0, fmt.Errorf("invalid range %q, need 0 <= start <= end", s)
	}

	return start, end, nil
}

// resolveDataDir returns dir, or the default data directory when dir is empty
func resolveDataDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "cueline"), nil
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
