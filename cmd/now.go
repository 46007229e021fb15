/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/jfmyers9/cueline/internal/config"
	"github.com/jfmyers9/cueline/internal/session"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var nowDataDir string

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the transport state of the running session",
	Long: `Read the snapshot written by 'cueline play' and display the transport state.

The output format can be customized in ~/.config/cueline/config.yaml
using a Go template. Available fields: .Session, .PlayMode, .Playing,
.LoopMode, .Looping, .FramesPerSecond, .Speed, .CurrentFrame, .FrameCount,
.StartFrame, .EndFrame, .DroppedFrames, .Position, .UpdatedAt

Exit codes:
  0 - A session is playing
  1 - Paused, stopped, or no session has run yet`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	// Add format flag to override config
	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	nowCmd.Flags().StringVar(&nowDataDir, "data-dir", "", "Data directory of the session (default: ~/.local/share/cueline)")
}

func runNow(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Check for format flag override
	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.NowFormat = formatFlag
	}

	dataDir, err := resolveDataDir(nowDataDir)
	if err != nil {
		return err
	}

	snap, err := session.LoadSnapshot(filepath.Join(dataDir, "snapshot.json"))
	if errors.Is(err, os.ErrNotExist) {
		// No session has run yet
		os.Exit(1)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	// If not playing, exit with code 1
	if !snap.Playing {
		os.Exit(1)
		return nil
	}

	// Format and print output
	output, err := formatSnapshot(snap, cfg.NowFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	// Apply width padding if requested
	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}
	output = padToWidth(output, width)

	fmt.Println(output)
	return nil
}

// formatSnapshot applies the template to the snapshot
func formatSnapshot(snap session.TransportSnapshot, templateStr string) (string, error) {
	return executeTemplate("output", templateStr, snap)
}

// executeTemplate parses templateStr and executes it against data
func executeTemplate(name, templateStr string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth fits text to exactly width display columns, cutting it short
// with "..." or padding it with spaces. A width <= 0 leaves text alone.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	const ellipsis = "..."
	if width <= runewidth.StringWidth(ellipsis) && runewidth.StringWidth(text) > width {
		return runewidth.Truncate(ellipsis, width, "")
	}

	// Truncating before a wide rune can leave the result a column short
	return runewidth.FillRight(runewidth.Truncate(text, width, ellipsis), width)
}
