package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jfmyers9/cueline/internal/config"
	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration 'cueline play' would use, after applying the
config file and CUELINE_* environment variables to the defaults.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Long: `Write the effective configuration to ~/.config/cueline/config.yaml so it
can be edited. A running 'cueline play' picks up fps and speed edits from
this file without restarting.`,
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("Config file: %s\n\n", filepath.Join(config.GetConfigDir(), "config.yaml"))
	fmt.Printf("fps:               %g\n", cfg.FramesPerSecond)
	fmt.Printf("speed:             %g\n", cfg.Speed)
	fmt.Printf("loop_mode:         %s\n", cfg.LoopMode)
	fmt.Printf("looping:           %t\n", cfg.Looping)
	fmt.Printf("frame_count:       %d\n", cfg.FrameCount)
	fmt.Printf("loop_range:        %q\n", cfg.LoopRange)
	fmt.Printf("visible_range:     %q\n", cfg.VisibleRange)
	fmt.Printf("audio:             enabled=%t latency=%dms period=%dms\n",
		cfg.Audio.Enabled, cfg.Audio.LatencyMS, cfg.Audio.PeriodMS)
	fmt.Printf("video:             enabled=%t latency=%dms period=%dms\n",
		cfg.Video.Enabled, cfg.Video.LatencyMS, cfg.Video.PeriodMS)
	fmt.Printf("journal:           path=%q frames=%t retention=%dd\n",
		cfg.Journal.Path, cfg.Journal.Frames, cfg.Journal.RetentionDays)
	fmt.Printf("snapshot_interval: %ds\n", cfg.SnapshotInterval)
	fmt.Printf("history_format:    %q\n", cfg.HistoryFormat)
	fmt.Printf("now_format:        %q\n", cfg.NowFormat)
	fmt.Printf("output_width:      %d\n", cfg.OutputWidth)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(config.GetConfigDir(), "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("%s already exists, use --force to overwrite", configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✓ Config written to %s\n", configPath)
	return nil
}
