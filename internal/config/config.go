package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Playback defaults for the play command
	FramesPerSecond float64
	Speed           float64
	LoopMode        string // all, range, selection, visible
	Looping         bool
	FrameCount      int64
	LoopRange       string // start:end used by the range loop mode, empty for the whole movie
	VisibleRange    string // first:last used by the visible loop mode, empty for the whole movie

	// Simulated producers
	Audio ProducerConfig
	Video ProducerConfig

	Journal JournalConfig

	// Minimum seconds between transport snapshot writes
	SnapshotInterval int

	// Output templates
	// Default history format: "{{.Time}}  {{.Kind}}  {{.Value}}"
	HistoryFormat string
	// Default now format: "{{.PlayMode}} {{.CurrentFrame}}/{{.FrameCount}}"
	NowFormat string

	// Fixed output width for now/history (0 = disabled)
	OutputWidth int
}

// ProducerConfig describes a simulated audio or video producer
type ProducerConfig struct {
	Enabled   bool
	LatencyMS int // How far ahead of the clock output is committed
	PeriodMS  int // How often the producer reports
}

// JournalConfig holds notification journal settings
type JournalConfig struct {
	Path          string // Empty means <data dir>/journal.db
	Frames        bool   // Also journal every current-frame change
	RetentionDays int
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := newViper()

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	return fromViper(v), nil
}

// Watch reloads the configuration whenever the config file changes and
// passes the result to fn. It returns an error when there is no config file
// to watch.
func Watch(fn func(*Config, fsnotify.Event)) error {
	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config for watching: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		fn(fromViper(v), e)
	})
	v.WatchConfig()

	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(".")

	v.SetDefault("fps", 25.0)
	v.SetDefault("speed", 1.0)
	v.SetDefault("loop_mode", "all")
	v.SetDefault("looping", true)
	v.SetDefault("frame_count", 250)
	v.SetDefault("loop_range", "")
	v.SetDefault("visible_range", "")
	v.SetDefault("audio.enabled", true)
	v.SetDefault("audio.latency_ms", 40)
	v.SetDefault("audio.period_ms", 10)
	v.SetDefault("video.enabled", true)
	v.SetDefault("video.latency_ms", 80)
	v.SetDefault("video.period_ms", 20)
	v.SetDefault("journal.path", "")
	v.SetDefault("journal.frames", false)
	v.SetDefault("journal.retention_days", 7)
	v.SetDefault("snapshot_interval", 1)
	v.SetDefault("history_format", "{{.Time}}  {{.Kind}}  {{.Value}}")
	v.SetDefault("now_format", "{{.PlayMode}} {{.CurrentFrame}}/{{.FrameCount}}")
	v.SetDefault("output_width", 0)

	// CUELINE_FPS, CUELINE_AUDIO_LATENCY_MS, ...
	v.SetEnvPrefix("CUELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		FramesPerSecond: v.GetFloat64("fps"),
		Speed:           v.GetFloat64("speed"),
		LoopMode:        v.GetString("loop_mode"),
		Looping:         v.GetBool("looping"),
		FrameCount:      v.GetInt64("frame_count"),
		LoopRange:       v.GetString("loop_range"),
		VisibleRange:    v.GetString("visible_range"),
		Audio: ProducerConfig{
			Enabled:   v.GetBool("audio.enabled"),
			LatencyMS: v.GetInt("audio.latency_ms"),
			PeriodMS:  v.GetInt("audio.period_ms"),
		},
		Video: ProducerConfig{
			Enabled:   v.GetBool("video.enabled"),
			LatencyMS: v.GetInt("video.latency_ms"),
			PeriodMS:  v.GetInt("video.period_ms"),
		},
		Journal: JournalConfig{
			Path:          v.GetString("journal.path"),
			Frames:        v.GetBool("journal.frames"),
			RetentionDays: v.GetInt("journal.retention_days"),
		},
		SnapshotInterval: v.GetInt("snapshot_interval"),
		HistoryFormat:    v.GetString("history_format"),
		NowFormat:        v.GetString("now_format"),
		OutputWidth:      v.GetInt("output_width"),
	}
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "cueline")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	configFile := filepath.Join(getConfigDir(), "config.yaml")

	v.Set("fps", c.FramesPerSecond)
	v.Set("speed", c.Speed)
	v.Set("loop_mode", c.LoopMode)
	v.Set("looping", c.Looping)
	v.Set("frame_count", c.FrameCount)
	v.Set("loop_range", c.LoopRange)
	v.Set("visible_range", c.VisibleRange)
	v.Set("audio.enabled", c.Audio.Enabled)
	v.Set("audio.latency_ms", c.Audio.LatencyMS)
	v.Set("audio.period_ms", c.Audio.PeriodMS)
	v.Set("video.enabled", c.Video.Enabled)
	v.Set("video.latency_ms", c.Video.LatencyMS)
	v.Set("video.period_ms", c.Video.PeriodMS)
	v.Set("journal.path", c.Journal.Path)
	v.Set("journal.frames", c.Journal.Frames)
	v.Set("journal.retention_days", c.Journal.RetentionDays)
	v.Set("snapshot_interval", c.SnapshotInterval)
	v.Set("history_format", c.HistoryFormat)
	v.Set("now_format", c.NowFormat)
	v.Set("output_width", c.OutputWidth)

	return v.WriteConfigAs(configFile)
}
