package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jfmyers9/cueline/internal/config"
	"github.com/jfmyers9/cueline/internal/journal"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// kindColumn fits the longest notification kind, "current_frame"
const kindColumn = 13

var (
	historyLimit   int
	historySession string
	historyKind    string
	historyDataDir string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journaled transport notifications",
	Long: `Print the transport notifications recorded by 'cueline play', newest first.

With --session, prints one session oldest first instead.

The row format can be customized in ~/.config/cueline/config.yaml using a
Go template. Available fields: .Time, .Session, .Kind, .Frame, .Value, .Detail`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of rows to print (0 = all)")
	historyCmd.Flags().StringP("format", "f", "", "Row format template (overrides config)")
	historyCmd.Flags().IntP("width", "w", 0, "Fixed row width (0=disabled, overrides config)")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Only print this session")
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "Only print this kind, e.g. frame_dropped")
	historyCmd.Flags().StringVar(&historyDataDir, "data-dir", "", "Data directory of the journal (default: ~/.local/share/cueline)")
}

// historyRow is the template data for one journal entry
type historyRow struct {
	Time    string
	Session string
	Kind    string
	Frame   int64
	Value   string
	Detail  string
}

func newHistoryRow(e journal.Entry) historyRow {
	session := e.Session
	if len(session) > 8 {
		session = session[:8]
	}
	return historyRow{
		Time:    e.CreatedAt.Format(time.DateTime),
		Session: session,
		Kind:    runewidth.FillRight(e.Kind, kindColumn),
		Frame:   e.Frame,
		Value:   e.Value,
		Detail:  e.Detail,
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	format := cfg.HistoryFormat
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format = f
	}
	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	dbPath := cfg.Journal.Path
	if dbPath == "" {
		dataDir, err := resolveDataDir(historyDataDir)
		if err != nil {
			return err
		}
		dbPath = filepath.Join(dataDir, "journal.db")
	}

	j, err := journal.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = j.Close() }()

	// Filtering by kind happens after the query, so fetch everything
	limit := historyLimit
	if historyKind != "" {
		limit = 0
	}

	var entries []journal.Entry
	if historySession != "" {
		entries, err = j.ForSession(ctx, historySession, limit)
	} else {
		entries, err = j.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}

	lines, err := formatHistory(entries, historyKind, historyLimit, format, width)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	if historyKind == "" && historySession == "" {
		total, err := j.Count(ctx, "")
		if err == nil && total > len(entries) {
			fmt.Printf("(%d of %d entries)\n", len(entries), total)
		}
	}
	return nil
}

// formatHistory renders up to limit entries of the given kind (all kinds
// when empty, no limit when 0)
func formatHistory(entries []journal.Entry, kind string, limit int, format string, width int) ([]string, error) {
	var lines []string
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		if limit > 0 && len(lines) == limit {
			break
		}
		line, err := executeTemplate("history", format, newHistoryRow(e))
		if err != nil {
			return nil, err
		}
		lines = append(lines, padToWidth(line, width))
	}
	return lines, nil
}
