// Package tui provides a Bubble Tea terminal user interface for spritefetch.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/spritefetch/internal/config"
	"github.com/handiism/spritefetch/internal/download"
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

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// maxLogs is the number of log lines kept on screen.
const maxLogs = 10

// errCancelled is shown when the user aborts a run.
var errCancelled = errors.New("cancelled by user")

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateInitializing
	StateDownloading
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
	inputs    []string
	logs      []LogEntry
	err       error

	// Run context
	ctx    context.Context
	cancel context.CancelFunc

	manager    *download.Manager
	events     chan download.ProgressEvent
	categories []string
	summary    *download.Summary

	// Run progress
	done   int32
	stored int32
	failed int32
	total  int32

	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model. With no inputs the model starts by
// asking for input files.
func NewModel(settings *config.Settings, inputs []string) Model {
	ti := textinput.New()
	ti.Placeholder = "pokemon.csv more.xlsx"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		inputs:    inputs,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan download.ProgressEvent, 256),
	}
	if len(inputs) > 0 {
		m.state = StateInitializing
	}
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, waitForEvent(m.events)}
	if m.state == StateInitializing {
		cmds = append(cmds, initializeDownload(m.ctx, m.settings, m.inputs, m.events))
	} else {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// Message types
type (
	// ProgressMsg carries one event from the manager.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// InitDoneMsg is sent when the batch has been read.
	InitDoneMsg struct {
		Manager *download.Manager
		Err     error
	}

	// DownloadDoneMsg is sent when every record is terminal.
	DownloadDoneMsg struct {
		Summary *download.Summary
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
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
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateInitializing {
				// The run still reaches its barrier; DownloadDoneMsg follows.
				m.cancel()
				m.err = errCancelled
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.inputs = strings.Fields(m.textInput.Value())
				m.state = StateInitializing
				return m, tea.Batch(initializeDownload(m.ctx, m.settings, m.inputs, m.events), m.spinner.Tick)
			}

		case "tab":
			if m.state == StateInput {
				m.settings.Strategy = nextStrategy(m.settings.Strategy)
			}

		case "ctrl+k":
			if m.state == StateInput {
				m.settings.Clean = !m.settings.Clean
			}

		case "ctrl+f":
			if m.state == StateInput {
				m.settings.Verify = !m.settings.Verify
			}

		case "ctrl+o":
			m.verbose = !m.verbose

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.reset()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, waitForEvent(m.events))
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{Message: msg.Event.Message, Level: msg.Event.Level})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case InitDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			if msg.Manager != nil {
				_ = msg.Manager.Close()
			}
			break
		}
		m.manager = msg.Manager
		m.categories = msg.Manager.Categories()
		m.state = StateDownloading
		cmds = append(cmds, startDownload(m.ctx, m.manager), m.tickProgress())

	case DownloadDoneMsg:
		m.summary = msg.Summary
		if m.manager != nil {
			m.done, m.stored, m.failed, m.total = m.manager.GetProgress()
		}
		switch {
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errCancelled
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			m.done, m.stored, m.failed, m.total = m.manager.GetProgress()
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

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

func (m *Model) reset() {
	if m.manager != nil {
		_ = m.manager.Close()
	}
	m.state = StateInput
	m.logs = nil
	m.err = nil
	m.manager = nil
	m.categories = nil
	m.summary = nil
	m.done, m.stored, m.failed, m.total = 0, 0, 0, 0
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.textInput.SetValue("")
	m.textInput.Focus()
}

func (m Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

func nextStrategy(current string) string {
	for i, s := range config.Strategies {
		if s == current {
			return config.Strategies[(i+1)%len(config.Strategies)]
		}
	}
	return config.Strategies[0]
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("spritefetch"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output: %s", m.settings.Output)))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateInitializing:
		b.WriteString(m.viewInitializing())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Input files (space separated):"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Strategy: %s (tab)\n", m.settings.Strategy)
	fmt.Fprintf(&b, "  %s Clean output first (ctrl+k)\n", check(m.settings.Clean))
	fmt.Fprintf(&b, "  %s Verify images (ctrl+f)\n", check(m.settings.Verify))
	fmt.Fprintf(&b, "  %s Verbose output (ctrl+o)\n", check(m.verbose))

	return b.String()
}

func check(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewInitializing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Reading records..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	if len(m.categories) > 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("%d record(s) in %d categories:", m.total, len(m.categories))))
		b.WriteString("\n")
		b.WriteString(categoryStyle.Render("  " + strings.Join(m.categories, ", ")))
		b.WriteString("\n\n")
	}

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Done: %d/%d | Stored: %d | Failed: %d | Strategy: %s",
		m.done, m.total, m.stored, m.failed, m.settings.Strategy,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	if m.summary == nil {
		return b.String()
	}
	box := boxStyle.Render(fmt.Sprintf(
		"Run complete\n\n"+
			"Records: %d\n"+
			"Stored: %d\n"+
			"Failed: %d\n"+
			"Size: %.2f KB\n"+
			"Time: %.2fs",
		m.summary.Total,
		m.summary.Stored,
		m.summary.Failed,
		float64(m.summary.Bytes)/1024,
		m.summary.Elapsed.Seconds(),
	))
	b.WriteString(box)
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		fmt.Fprintf(&b, "  %s", m.err.Error())
	}
	if m.summary != nil {
		fmt.Fprintf(&b, "\n\n  %s", m.summary.Line())
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
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • tab: strategy • ctrl+k: clean • ctrl+f: verify • ctrl+o: verbose • esc: quit"
	case StateInitializing, StateDownloading:
		return "esc: cancel • ctrl+o: verbose"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// waitForEvent delivers the next manager event as a ProgressMsg.
func waitForEvent(events <-chan download.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		return ProgressMsg{Event: <-events}
	}
}

// initializeDownload creates the manager and reads the batch.
func initializeDownload(ctx context.Context, settings *config.Settings, inputs []string, events chan<- download.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		manager, err := download.NewManager(settings, func(event download.ProgressEvent) {
			select {
			case events <- event:
			default: // the screen only shows the latest lines
			}
		})
		if err != nil {
			return InitDoneMsg{Err: err}
		}

		if err := manager.Initialize(ctx, inputs); err != nil {
			return InitDoneMsg{Manager: manager, Err: err}
		}
		return InitDoneMsg{Manager: manager}
	}
}

// startDownload runs the batch in the background.
func startDownload(ctx context.Context, manager *download.Manager) tea.Cmd {
	return func() tea.Msg {
		summary, err := manager.StartDownloads(ctx)
		return DownloadDoneMsg{Summary: summary, Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings, inputs []string) error {
	p := tea.NewProgram(NewModel(settings, inputs), tea.WithAltScreen())
	final, err := p.Run()
	if m, ok := final.(Model); ok {
		m.cancel()
		if m.manager != nil {
			_ = m.manager.Close()
		}
	}
	return err
}
