// ABOUTME: Device model probe
// ABOUTME: Identifies the board from its device-tree model and picks a channel mapping
package platform

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
)

// DefaultModelPath is the device-tree model descriptor
const DefaultModelPath = "/proc/device-tree/model"

// maxDescriptor bounds how much of the first line is examined
const maxDescriptor = 79

// ErrPlatformUnsupported means the board could not be identified
var ErrPlatformUnsupported = errors.New("unsupported platform")

// Model is a board code
type Model int

const (
	ProbeFailed Model = -1
	Unknown     Model = -2

	PiZeroW  Model = 0
	Pi2      Model = 20
	Pi3      Model = 30
	Pi3BPlus Model = 31
	Pi4      Model = 40
)

func (m Model) String() string {
	switch m {
	case ProbeFailed:
		return "probe failed"
	case Unknown:
		return "unknown"
	case PiZeroW:
		return "Pi Zero W"
	case Pi2:
		return "Pi 2"
	case Pi3:
		return "Pi 3"
	case Pi3BPlus:
		return "Pi 3 Model B Plus"
	case Pi4:
		return "Pi 4"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// Recognized reports whether m is a known board
func (m Model) Recognized() bool {
	return m != ProbeFailed && m != Unknown
}

// patterns are checked in order; the first substring found wins
var patterns = []struct {
	substr string
	model  Model
}{
	{"Pi 4 ", Pi4},
	{"Pi 3 Model B Plus", Pi3BPlus},
	{"Pi 3 ", Pi3},
	{"Pi 2 ", Pi2},
	{"Pi Zero W ", PiZeroW},
}

// Identify maps a model descriptor to a board code
func Identify(desc string) Model {
	for _, p := range patterns {
		if strings.Contains(desc, p.substr) {
			return p.model
		}
	}
	return Unknown
}

// Probe reads the first line of the descriptor at path and identifies it.
// An unreadable descriptor yields ProbeFailed.
func Probe(path string) (Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return ProbeFailed, fmt.Errorf("%w: %w", ErrPlatformUnsupported, err)
	}
	defer f.Close()

	line, err := readFirstLine(f)
	if err != nil {
		return ProbeFailed, fmt.Errorf("%w: read %s: %w", ErrPlatformUnsupported, path, err)
	}

	return Identify(line), nil
}

// readFirstLine returns up to maxDescriptor bytes, stopping after the
// first newline. Device-tree strings end in NUL, which is dropped.
func readFirstLine(f *os.File) (string, error) {
	r := bufio.NewReaderSize(f, maxDescriptor+1)

	var b strings.Builder
	for b.Len() < maxDescriptor {
		c, err := r.ReadByte()
		if err != nil {
			if b.Len() > 0 {
				break
			}
			return "", err
		}
		if c == 0 {
			break
		}
		b.WriteByte(c)
		if c == '\n' {
			break
		}
	}
	return b.String(), nil
}

// SelectMapping picks the channel mapping for a board
func SelectMapping(m Model) (audio.Mapping, error) {
	switch {
	case m == Pi4:
		return audio.PermutedMapping, nil
	case m.Recognized():
		return audio.NaturalMapping, nil
	default:
		return audio.NaturalMapping, fmt.Errorf("%w: %s", ErrPlatformUnsupported, m)
	}
}

// Detect probes path and selects the mapping in one step
func Detect(path string) (Model, audio.Mapping, error) {
	m, err := Probe(path)
	if err != nil {
		return m, audio.NaturalMapping, err
	}

	mapping, err := SelectMapping(m)
	return m, mapping, err
}
