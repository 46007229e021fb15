/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)



// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cueline",
	Short: "Frame-accurate playback timeline scheduler",
	Long: `cueline plays a movie timeline on a real-time clock.

Simulated audio and video outputs report how far they have rendered, and
the scheduler turns that into the frame shown on screen. Seeks, loop
changes and speed changes never rewrite frames that were already handed
to an output.

Every transport notification is journaled, and the last known transport
state can be queried for tmux status lines or other status bars.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags can be added here if needed
}


