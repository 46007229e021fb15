package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/jfmyers9/cueline/internal/scheduler"
	"github.com/jfmyers9/cueline/internal/timeline"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"
)

const maxRecentEvents = 8

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to refresh the display
	SeekStep    int64         // Frames moved by the arrow keys
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 100 * time.Millisecond,
		SeekStep:    25,
	}
}

// Transport is the part of the scheduler the monitor reads and controls
type Transport interface {
	Snapshot() scheduler.Transport
	SetCurrentFrame(frame int64)
	TogglePlaying()
	StopPlaying()
	SetSpeed(speed float64)
	SetDirection(backward bool)
	SetLoopMode(mode timeline.LoopMode, continuePlaying bool)
	SetLoopingEnabled(enabled, continuePlaying bool)
	AddListener(l scheduler.Listener) uuid.UUID
	RemoveListener(id uuid.UUID) bool
}

// RecentEvent stores a notification shown in the events panel
type RecentEvent struct {
	Kind  scheduler.EventKind
	Value string
	At    time.Time
}

// App is the TUI application for monitoring and controlling a transport
type App struct {
	app       *tview.Application
	transport *tview.TextView
	progress  *tview.TextView
	stats     *tview.TextView
	events    *tview.TextView
	status    *tview.TextView

	// Configuration
	config Config

	sched    Transport
	listener uuid.UUID

	// Mutex protects the fields written by scheduler notifications and read
	// by the refresh ticker
	mu sync.Mutex

	// Session stats (guarded by mu)
	sessionStart time.Time
	dropped      int
	eventCount   int

	// Ring buffer for recent events (guarded by mu)
	recentBuf   [maxRecentEvents]RecentEvent
	recentCount int // total events added (recentCount % maxRecentEvents = next write index)

	// Last-rendered content for change detection
	lastTransport string
	lastProgress  string
	lastStats     string
	lastEvents    string

	// Cached progress bar width to stabilize change detection.
	// Updated only when GetInnerRect returns a positive value.
	lastBarWidth int

	// Context cancel function
	cancelFunc context.CancelFunc
}

// New creates a new TUI application with default config
func New(sched Transport) *App {
	return NewWithConfig(sched, DefaultConfig())
}

// NewWithConfig creates a new TUI application with the given config
func NewWithConfig(sched Transport, cfg Config) *App {
	if cfg.SeekStep <= 0 {
		cfg.SeekStep = DefaultConfig().SeekStep
	}
	a := &App{
		app:          tview.NewApplication(),
		config:       cfg,
		sched:        sched,
		sessionStart: time.Now(),
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	// Transport panel
	a.transport = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.transport.SetBorder(true).
		SetTitle(" Transport ").
		SetTitleAlign(tview.AlignLeft)

	// Progress bar
	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	// Session stats
	a.stats = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.stats.SetBorder(true).
		SetTitle(" Session ").
		SetTitleAlign(tview.AlignLeft)

	// Recent notifications
	a.events = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.events.SetBorder(true).
		SetTitle(" Events ").
		SetTitleAlign(tview.AlignLeft)

	// Status bar
	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  space:play/pause  s:stop  ←/→:seek  +/-:speed  r:reverse  l:loop mode  o:looping[-]")

	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.stats, 0, 1, false).
		AddItem(a.events, 0, 2, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.transport, 0, 2, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(bottomRow, maxRecentEvents+2, 1, false).
		AddItem(a.status, 1, 1, false)

	// Handle keyboard input
	a.app.SetInputCapture(a.handleKeyEvent)

	a.app.SetRoot(flex, true)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyLeft:
		a.seek(-a.config.SeekStep)
		return nil
	case tcell.KeyRight:
		a.seek(a.config.SeekStep)
		return nil
	}

	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
		return nil
	case ' ':
		a.sched.TogglePlaying()
		return nil
	case 's', 'S':
		a.sched.StopPlaying()
		return nil
	case '+', '=':
		a.sched.SetSpeed(a.sched.Snapshot().Speed * 2)
		return nil
	case '-', '_':
		a.sched.SetSpeed(a.sched.Snapshot().Speed / 2)
		return nil
	case 'r', 'R':
		a.sched.SetDirection(!a.sched.Snapshot().PlayMode.IsBackward())
		return nil
	case 'l', 'L':
		a.sched.SetLoopMode(nextLoopMode(a.sched.Snapshot().LoopMode), true)
		return nil
	case 'o', 'O':
		a.sched.SetLoopingEnabled(!a.sched.Snapshot().Looping, true)
		return nil
	}
	return event
}

func (a *App) seek(step int64) {
	a.sched.SetCurrentFrame(a.sched.Snapshot().CurrentFrame + step)
}

// nextLoopMode cycles all, range, selection, visible
func nextLoopMode(m timeline.LoopMode) timeline.LoopMode {
	return (m + 1) % (timeline.LoopVisible + 1)
}

// Notify records a scheduler notification. Frame changes only feed the
// transport panel, which reads them on refresh.
func (a *App) Notify(e scheduler.Event) {
	if e.Kind == scheduler.EventCurrentFrame {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.eventCount++
	if e.Kind == scheduler.EventFrameDropped {
		a.dropped++
	}
	a.addToRecentEvents(RecentEvent{Kind: e.Kind, Value: eventValue(e), At: time.Now()})
}

// Run starts the TUI and blocks until it is stopped or ctx is done
func (a *App) Run(ctx context.Context) error {
	// Create cancellable context
	ctx, a.cancelFunc = context.WithCancel(ctx)

	a.listener = a.sched.AddListener(a)
	defer a.sched.RemoveListener(a.listener)

	go a.handleUpdates(ctx)

	// Run application
	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// handleUpdates drives all redraws from a single ticker so redraws never
// queue up behind each other
func (a *App) handleUpdates(ctx context.Context) {
	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = DefaultConfig().RefreshRate
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.refresh(a.sched.Snapshot())
		}
	}
}

// addToRecentEvents adds an event to the ring buffer.
// Must be called with a.mu held.
func (a *App) addToRecentEvents(e RecentEvent) {
	idx := a.recentCount % maxRecentEvents
	a.recentBuf[idx] = e
	a.recentCount++
}

// getRecentEvents returns recent events in most-recent-first order.
// Must be called with a.mu held.
func (a *App) getRecentEvents() []RecentEvent {
	n := min(a.recentCount, maxRecentEvents)
	result := make([]RecentEvent, n)
	for i := 0; i < n; i++ {
		// Walk backwards from the most recently written slot
		idx := (a.recentCount - 1 - i) % maxRecentEvents
		result[i] = a.recentBuf[idx]
	}
	return result
}

// refresh updates all UI components
func (a *App) refresh(t scheduler.Transport) {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.updateTransport(t)
		a.updateProgress(t)
		a.updateStats(t)
		a.updateEvents()
	})
}

// updateTransport updates the transport panel
func (a *App) updateTransport(t scheduler.Transport) {
	text := transportText(t)
	if text != a.lastTransport {
		a.lastTransport = text
		a.transport.SetText(text)
	}
}

func transportText(t scheduler.Transport) string {
	if t.Bounds.FrameCount == 0 {
		return "\n\n[gray]No movie loaded[-]"
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s  [white::b]frame %d[-:-:-] of %d\n",
		playModeIcon(t.PlayMode), t.CurrentFrame, t.Bounds.FrameCount))
	sb.WriteString(fmt.Sprintf("[yellow]%g fps  %gx[-]\n", t.FramesPerSecond, t.Speed))

	loop := t.LoopMode.String()
	if t.LoopMode == timeline.LoopRange {
		loop = fmt.Sprintf("%s %d:%d", loop, t.Bounds.StartFrame, t.Bounds.EndFrame)
	}
	looping := "[gray]once[-]"
	if t.Looping {
		looping = "[green]looping[-]"
	}
	sb.WriteString(fmt.Sprintf("[gray]loop %s[-]  %s", loop, looping))

	return sb.String()
}

func playModeIcon(m timeline.PlayMode) string {
	switch m {
	case timeline.PlayingForward:
		return "[green]▶[-]" // Play triangle
	case timeline.PlayingBackward:
		return "[green]◀[-]"
	default:
		return "[yellow]⏸[-]" // Pause icon
	}
}

// updateProgress updates the progress bar
func (a *App) updateProgress(t scheduler.Transport) {
	var text string

	if t.Bounds.FrameCount > 0 {
		_, _, width, _ := a.progress.GetInnerRect()
		barWidth := width - 14 // Account for time display
		// Only update cached width when GetInnerRect returns a positive value,
		// avoiding flicker from transient zero-width during layout.
		if barWidth > 0 {
			a.lastBarWidth = barWidth
		}
		if a.lastBarWidth < 10 {
			a.lastBarWidth = 10
		}

		position := frameDuration(t.CurrentFrame, t.FramesPerSecond)
		duration := frameDuration(t.Bounds.FrameCount, t.FramesPerSecond)
		text = fmt.Sprintf("%s %s %s",
			formatDuration(position), buildProgressBar(position, duration, a.lastBarWidth), formatDuration(duration))
	}

	if text != a.lastProgress {
		a.lastProgress = text
		a.progress.SetText(text)
	}
}

// updateStats updates the session panel.
// Must be called with a.mu held.
func (a *App) updateStats(t scheduler.Transport) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Next frame: %d\n", t.NextFrame))
	if a.dropped > 0 {
		sb.WriteString(fmt.Sprintf("[red]Dropped: %d[-]\n", a.dropped))
	} else {
		sb.WriteString("[green]Dropped: 0[-]\n")
	}
	sb.WriteString(fmt.Sprintf("Events: %d\n", a.eventCount))
	sb.WriteString(fmt.Sprintf("Session: %s", formatDuration(time.Since(a.sessionStart))))

	text := sb.String()
	if text != a.lastStats {
		a.lastStats = text
		a.stats.SetText(text)
	}
}

// updateEvents updates the events panel.
// Must be called with a.mu held.
func (a *App) updateEvents() {
	text := eventsText(a.getRecentEvents())
	if text != a.lastEvents {
		a.lastEvents = text
		a.events.SetText(text)
	}
}

func eventsText(events []RecentEvent) string {
	if len(events) == 0 {
		return "[gray]No events yet[-]"
	}

	var sb strings.Builder
	for i, e := range events {
		if i > 0 {
			sb.WriteString("\n")
		}

		color := "white"
		if e.Kind == scheduler.EventFrameDropped {
			color = "red"
		}
		kind := runewidth.FillRight(e.Kind.String(), 14)
		value := runewidth.Truncate(e.Value, 24, "...")
		sb.WriteString(fmt.Sprintf("[gray]%s[-] %s [%s]%s[-]",
			e.At.Format("15:04:05"), kind, color, tview.Escape(value)))
	}
	return sb.String()
}

// eventValue renders the field of e that matches its kind
func eventValue(e scheduler.Event) string {
	switch e.Kind {
	case scheduler.EventPlayMode:
		return e.PlayMode.String()
	case scheduler.EventLoopMode:
		return e.LoopMode.String()
	case scheduler.EventLooping:
		return fmt.Sprintf("%t", e.Looping)
	case scheduler.EventBounds:
		return fmt.Sprintf("%d frames, range %d:%d", e.Bounds.FrameCount, e.Bounds.StartFrame, e.Bounds.EndFrame)
	case scheduler.EventFramesPerSecond:
		return fmt.Sprintf("%g", e.FramesPerSecond)
	case scheduler.EventSpeed:
		return fmt.Sprintf("%gx", e.Speed)
	default:
		return fmt.Sprintf("%d", e.Frame)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// frameDuration converts a frame count to time at fps
func frameDuration(frames int64, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(frames) / fps * float64(time.Second))
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(position, duration time.Duration, width int) string {
	if duration == 0 || width <= 0 {
		return strings.Repeat("-", width)
	}

	progress := float64(position) / float64(duration)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	bar := "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"

	return bar
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
