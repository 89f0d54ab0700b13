// ABOUTME: TUI initialization and control
// ABOUTME: Runs the bubbletea program and forwards status updates without blocking
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI manages the status display
type TUI struct {
	program  *tea.Program
	updates  chan Status
	quitChan chan struct{} // Signals that the user asked to quit
	done     chan struct{}
}

// New creates a TUI showing initial until the first update. When stdin
// carries audio, ttyInput makes the TUI read keys from the terminal instead.
func New(initial Status, ttyInput bool) *TUI {
	t := &TUI{
		updates:  make(chan Status, 10),
		quitChan: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if ttyInput {
		opts = append(opts, tea.WithInputTTY())
	}
	t.program = tea.NewProgram(NewModel(initial, t.quitChan), opts...)
	return t
}

// Run shows the TUI until it quits; it blocks
func (t *TUI) Run() error {
	go func() {
		for {
			select {
			case status := <-t.updates:
				t.program.Send(statusMsg(status))
			case <-t.done:
				return
			}
		}
	}()

	_, err := t.program.Run()
	close(t.done)
	return err
}

// Update sends a status update to the TUI
func (t *TUI) Update(status Status) {
	select {
	case t.updates <- status:
	default:
		// Don't block the caller if the TUI is behind
	}
}

// Stop exits the TUI
func (t *TUI) Stop() {
	t.program.Quit()
}

// QuitChan returns the channel that signals when user wants to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
