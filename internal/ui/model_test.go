// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling and rendering helpers
package ui

import (
	"strings"
	"testing"

	"github.com/Resonate-Protocol/hdmiplay/pkg/playback"
	tea "github.com/charmbracelet/bubbletea"
)

func testStatus() Status {
	return Status{
		SessionID:       "0123456789abcdef",
		Format:          "48000Hz 8ch(8) s32le",
		Mapping:         "permuted",
		Board:           "Pi 4",
		Backend:         "alsa",
		Destination:     "hdmi",
		Input:           "stdin",
		State:           "running",
		LatencyFrames:   4800,
		SampleRate:      48000,
		Held:            1,
		BufferCount:     20,
		FramesPerBuffer: 1024,
	}
}

func TestNewModel(t *testing.T) {
	model := NewModel(testStatus(), nil)

	if !model.showStats {
		t.Error("expected stats to be shown initially")
	}
	if model.quitting {
		t.Error("expected quitting to be false initially")
	}
}

func TestStatusUpdate(t *testing.T) {
	model := NewModel(Status{}, nil)

	updated, _ := model.Update(statusMsg(testStatus()))
	m := updated.(Model)

	if m.status.Board != "Pi 4" || m.status.LatencyFrames != 4800 {
		t.Errorf("status not applied: %+v", m.status)
	}
}

func TestQuitKeySignals(t *testing.T) {
	quit := make(chan struct{}, 1)
	model := NewModel(testStatus(), quit)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !updated.(Model).quitting {
		t.Error("expected quitting after q")
	}

	select {
	case <-quit:
	default:
		t.Error("quit channel not signalled")
	}
}

func TestQuitWithFullChannelDoesNotBlock(t *testing.T) {
	quit := make(chan struct{}, 1)
	quit <- struct{}{}
	model := NewModel(testStatus(), quit)

	model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
}

func TestToggleStats(t *testing.T) {
	model := NewModel(testStatus(), nil)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m := updated.(Model)
	if m.showStats {
		t.Error("stats still shown after toggle")
	}
	if strings.Contains(m.View(), "Submitted:") {
		t.Error("hidden stats rendered")
	}
}

func TestViewContents(t *testing.T) {
	status := testStatus()
	status.Stats = playback.Stats{Submitted: 42, BytesRead: 3 << 20, EOF: true}
	model := NewModel(status, nil)

	view := model.View()
	for _, want := range []string{"hdmiplay", "01234567", "alsa -> hdmi", "100.0ms", "42 buffers", "3.00 MiB", "Input ended"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewProducerCounters(t *testing.T) {
	status := testStatus()
	status.Stats = playback.Stats{Submitted: 10}
	status.Completed = 7
	model := NewModel(status, nil)

	view := model.View()
	if !strings.Contains(view, "10 buffers (7 rendered)") {
		t.Error("view missing rendered count")
	}
	if strings.Contains(view, "Received:") {
		t.Error("Received row shown for stdin input")
	}

	status.Producer = true
	status.ProducerBytes = 2 << 20
	status.ProducerBuffered = 512
	model = NewModel(status, nil)
	view = model.View()
	for _, want := range []string{"Received:", "2.00 MiB", "512 B buffered"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestProducerInputText(t *testing.T) {
	status := testStatus()
	status.Input = "ws://:8927/pcm"
	status.Producer = true
	model := NewModel(status, nil)

	if got := model.inputText(); !strings.Contains(got, "waiting") {
		t.Errorf("inputText() = %q", got)
	}

	status.ProducerConnected = true
	model = NewModel(status, nil)
	if got := model.inputText(); !strings.Contains(got, "connected") {
		t.Errorf("inputText() = %q", got)
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max int
		filled     int
	}{
		{0, 100, 0},
		{50, 100, 5},
		{100, 100, 10},
		{500, 100, 10},
		{5, 0, 0},
	}

	for _, tt := range tests {
		bar := renderBar(tt.value, tt.max, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("renderBar(%d, %d) filled %d cells, want %d", tt.value, tt.max, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("renderBar(%d, %d) has %d cells", tt.value, tt.max, got)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		12:      "12 B",
		2048:    "2.0 KiB",
		5 << 20: "5.00 MiB",
		3 << 30: "3.00 GiB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
