// Package tui provides a Bubble Tea terminal user interface for suno-downloader.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/handiism/suno-downloader/internal/app"
	"github.com/handiism/suno-downloader/internal/config"
	"github.com/handiism/suno-downloader/internal/download"
	"github.com/handiism/suno-downloader/internal/logging"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	songStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateRunning
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logger    *zap.Logger
	logs      []LogEntry
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	pipeline *download.Pipeline
	events   chan download.ProgressEvent
	done     chan RunDoneMsg
	summary  *download.Summary

	current  int
	total    int
	nowTitle string

	// Options
	mp3      bool
	cover    bool
	lyrics   bool
	playlist bool
	dryRun   bool
	verbose  bool

	width  int
	height int
}

// NewModel creates a new TUI model. A nil logger disables logging.
func NewModel(settings *config.Settings, logger *zap.Logger) Model {
	if settings == nil {
		settings = config.DefaultSettings()
	}

	ti := textinput.New()
	ti.Placeholder = "items.txt (leave empty for the whole library)"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		logger:    logging.OrNop(logger),
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
		mp3:       strings.EqualFold(settings.Format, "mp3"),
		cover:     settings.IncludeCoverArt,
		lyrics:    settings.IncludeLyrics,
		playlist:  settings.CreatePlaylist,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one pipeline event.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// RunStartedMsg is sent once the pipeline is built and running.
	RunStartedMsg struct {
		Pipeline *download.Pipeline
	}

	// RunDoneMsg is sent when the pipeline returns.
	RunDoneMsg struct {
		Summary download.Summary
		Err     error
	}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		if m.state == StateInput && m.textInput.Focused() && isOptionKey(msg.String()) && m.textInput.Value() != "" {
			// typing a path: let the text input have the key
			break
		}

		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			switch m.state {
			case StateInput:
				return m, tea.Quit
			case StateRunning:
				// first esc finishes the current item, second aborts it
				if m.pipeline != nil && !m.pipeline.Cancelled() {
					m.pipeline.Cancel()
				} else {
					m.cancel()
				}
			}

		case "enter":
			if m.state == StateInput {
				m.state = StateRunning
				m.textInput.Blur()
				return m, tea.Batch(m.startRun(), m.spinner.Tick)
			}

		case "f":
			if m.state == StateInput {
				m.mp3 = !m.mp3
				return m, nil
			}
		case "c":
			if m.state == StateInput {
				m.cover = !m.cover
				return m, nil
			}
		case "l":
			if m.state == StateInput {
				m.lyrics = !m.lyrics
				return m, nil
			}
		case "p":
			if m.state == StateInput {
				m.playlist = !m.playlist
				return m, nil
			}
		case "n":
			if m.state == StateInput {
				m.dryRun = !m.dryRun
				return m, nil
			}
		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.state = StateInput
				m.logs = nil
				m.err = nil
				m.summary = nil
				m.pipeline = nil
				m.current, m.total, m.nowTitle = 0, 0, ""
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
				return m, textinput.Blink
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case RunStartedMsg:
		m.pipeline = msg.Pipeline
		cmds = append(cmds, m.waitForActivity())

	case ProgressMsg:
		ev := msg.Event
		if ev.Total > 0 {
			m.current, m.total = ev.Current, ev.Total
			if ev.Level == download.LevelInfo && ev.ItemID != "" {
				m.nowTitle = ev.Message
			}
			if m.total > 0 {
				cmds = append(cmds, m.progress.SetPercent(float64(m.current)/float64(m.total)))
			}
		}
		if ev.Level != download.LevelVerbose || m.verbose {
			m.logs = append(m.logs, LogEntry{Message: ev.Message, Level: ev.Level})
			if len(m.logs) > maxLogs {
				m.logs = m.logs[len(m.logs)-maxLogs:]
			}
		}
		cmds = append(cmds, m.waitForActivity())

	case RunDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			if m.ctx.Err() != nil {
				m.err = fmt.Errorf("cancelled by user")
			}
		} else {
			m.state = StateComplete
		}
		summary := msg.Summary
		m.summary = &summary

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func isOptionKey(k string) bool {
	switch k {
	case "f", "c", "l", "p", "n", "v", "q", "r":
		return true
	}
	return false
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("♪ Suno Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Bulk download your Suno songs"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateRunning:
		b.WriteString(m.viewRunning())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func check(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Item list file:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	format := "WAV"
	if m.mp3 {
		format = "MP3"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Format: %s (f)\n", format)
	fmt.Fprintf(&b, "  %s Cover art (c)\n", check(m.cover))
	fmt.Fprintf(&b, "  %s Lyrics and style (l)\n", check(m.lyrics))
	fmt.Fprintf(&b, "  %s Create playlist (p)\n", check(m.playlist))
	fmt.Fprintf(&b, "  %s Dry run (n)\n", check(m.dryRun))
	fmt.Fprintf(&b, "  %s Verbose output (v)\n", check(m.verbose))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadsPath)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder

	if m.total == 0 {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(subtitleStyle.Render("Preparing..."))
		b.WriteString("\n\n")
	} else {
		if m.nowTitle != "" {
			b.WriteString(m.spinner.View())
			b.WriteString(" ")
			b.WriteString(songStyle.Render(m.nowTitle))
			b.WriteString("\n\n")
		}
		b.WriteString(m.progress.View())
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf("Songs: %d/%d", m.current, m.total)))
		b.WriteString("\n\n")
	}

	if m.pipeline != nil && m.pipeline.Cancelled() {
		b.WriteString(warningStyle.Render("Stopping after the current song (esc again to abort)"))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	report := "Done."
	if m.summary != nil {
		report = strings.TrimSpace(m.summary.Report())
	}
	return boxStyle.Render("✓ Finished\n\n" + report)
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("✗ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
		b.WriteString("\n")
	}
	if m.summary != nil && m.summary.Succeeded+m.summary.Failed > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(strings.TrimSpace(m.summary.Report())))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + strings.TrimSpace(log.Message)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • f: format • c: cover • l: lyrics • p: playlist • n: dry run • v: verbose • esc: quit"
	case StateRunning:
		return "esc: stop after current song • esc esc: abort"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// startRun builds the pipeline from the chosen options and starts it in the
// background. Events arrive through m.events; the result through m.done.
func (m *Model) startRun() tea.Cmd {
	settings := *m.settings
	settings.Format = "wav"
	if m.mp3 {
		settings.Format = "mp3"
	}
	settings.IncludeCoverArt = m.cover
	settings.IncludeLyrics = m.lyrics
	settings.IncludeStyle = m.lyrics
	settings.CreatePlaylist = m.playlist

	itemsPath := strings.TrimSpace(m.textInput.Value())
	dryRun := m.dryRun
	ctx := m.ctx
	logger := m.logger

	events := make(chan download.ProgressEvent, 64)
	done := make(chan RunDoneMsg, 1)
	m.events = events
	m.done = done

	return func() tea.Msg {
		a, err := app.New(ctx, &settings, app.Options{DryRun: dryRun}, logger, func(e download.ProgressEvent) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		})
		if err != nil {
			return RunDoneMsg{Err: err}
		}

		go func() {
			defer a.Close()
			summary, err := a.Run(ctx, itemsPath)
			done <- RunDoneMsg{Summary: summary, Err: err}
		}()

		return RunStartedMsg{Pipeline: a.Pipeline}
	}
}

// waitForActivity delivers the next event, or the final result once the
// pipeline returns and every queued event has been shown.
func (m Model) waitForActivity() tea.Cmd {
	events, done := m.events, m.done
	return func() tea.Msg {
		select {
		case e := <-events:
			return ProgressMsg{Event: e}
		case result := <-done:
			select {
			case e := <-events:
				// show queued events first; the result waits for the next call
				done <- result
				return ProgressMsg{Event: e}
			default:
				return result
			}
		}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings, logger *zap.Logger) error {
	p := tea.NewProgram(NewModel(settings, logger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
