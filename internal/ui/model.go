// ABOUTME: Bubbletea model for the playback status TUI
// ABOUTME: Holds session and feed loop state and renders it with lipgloss
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/hdmiplay/pkg/playback"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Status is a snapshot of the running player
type Status struct {
	SessionID   string
	Format      string
	Mapping     string
	Board       string
	Backend     string
	Destination string
	Input       string

	// Producer is set when input comes from the push endpoint
	Producer          bool
	ProducerConnected bool
	ProducerBytes     uint64 // Received from the producer
	ProducerBuffered  int    // Received but not yet read

	State           string
	Stats           playback.Stats
	LatencyFrames   uint32
	SampleRate      int
	Held            int
	BufferCount     int
	FramesPerBuffer int
	Completed       uint64 // Buffers rendered by the pipeline
}

// LatencyMs converts the reported latency to milliseconds
func (s Status) LatencyMs() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(s.LatencyFrames) * 1000 / float64(s.SampleRate)
}

// QueueCapacity returns the frames the pipeline can hold
func (s Status) QueueCapacity() int {
	return s.BufferCount * s.FramesPerBuffer
}

// Model represents the TUI state
type Model struct {
	status    Status
	startTime time.Time
	showStats bool
	quitting  bool
	quitChan  chan struct{}

	width  int
	height int
}

type tickMsg time.Time
type statusMsg Status

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Width(13)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// NewModel creates a model; quitChan receives a signal when the user quits
func NewModel(initial Status, quitChan chan struct{}) Model {
	return Model{
		status:    initial,
		startTime: time.Now(),
		showStats: true,
		quitChan:  quitChan,
	}
}

// Init starts the uptime ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case statusMsg:
		m.status = Status(msg)
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		select {
		case m.quitChan <- struct{}{}:
		default:
		}
		return m, tea.Quit
	case "s":
		m.showStats = !m.showStats
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("hdmiplay"))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	s := m.status
	row("Session:", shortID(s.SessionID))
	row("Format:", s.Format)
	row("Board:", fmt.Sprintf("%s (%s mapping)", s.Board, s.Mapping))
	row("Output:", fmt.Sprintf("%s -> %s", s.Backend, s.Destination))
	row("Input:", m.inputText())
	row("State:", s.State)
	row("Uptime:", time.Since(m.startTime).Round(time.Second).String())
	b.WriteString("\n")

	row("Latency:", fmt.Sprintf("[%s] %.1fms", renderBar(int(s.LatencyFrames), s.QueueCapacity(), 20), s.LatencyMs()))
	row("Held:", fmt.Sprintf("%d / %d buffers", s.Held, s.BufferCount))

	if m.showStats {
		b.WriteString("\n")
		st := s.Stats
		row("Submitted:", fmt.Sprintf("%d buffers (%d rendered)", st.Submitted, s.Completed))
		row("Read:", formatBytes(st.BytesRead))
		row("Silence:", formatBytes(st.SilenceBytes))
		row("Short reads:", fmt.Sprintf("%d", st.ShortReads))
		row("Empty polls:", fmt.Sprintf("%d", st.EmptyPolls))
		row("Throttled:", fmt.Sprintf("%d", st.ThrottleSleeps))
		if s.Producer {
			row("Received:", fmt.Sprintf("%s (%s buffered)", formatBytes(s.ProducerBytes), formatBytes(uint64(s.ProducerBuffered))))
		}
	}

	if s.Stats.EOF {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("Input ended; playing silence"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s: toggle stats  q: quit"))

	return b.String()
}

func (m Model) inputText() string {
	s := m.status
	if !s.Producer {
		return s.Input
	}
	if s.ProducerConnected {
		return s.Input + " (producer connected)"
	}
	return s.Input + " (waiting for producer)"
}

// renderBar draws value/max as a width-cell bar
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = min(value*width/max, width)
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
