// ABOUTME: Tests for the device model probe
// ABOUTME: Uses descriptor files in a temp dir to check identification and mapping
package platform

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
)

func writeModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}
	return path
}

func TestIdentify(t *testing.T) {
	tests := []struct {
		desc string
		want Model
	}{
		{"Raspberry Pi 4 Model B Rev 1.4", Pi4},
		{"Raspberry Pi 3 Model B Plus Rev 1.3", Pi3BPlus},
		{"Raspberry Pi 3 Model B Rev 1.2", Pi3},
		{"Raspberry Pi 2 Model B Rev 1.1", Pi2},
		{"Raspberry Pi Zero W Rev 1.1", PiZeroW},
		{"Raspberry Pi 5 Model B Rev 1.0", Unknown},
		{"Raspberry Pi 4", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := Identify(tt.desc); got != tt.want {
				t.Errorf("Identify(%q) = %s, want %s", tt.desc, got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		content string
		model   Model
		mapping audio.Mapping
	}{
		{"pi4 selects permuted", "Raspberry Pi 4 Model B Rev 1.4\x00", Pi4, audio.PermutedMapping},
		{"pi3 selects natural", "Raspberry Pi 3 Model B Rev 1.2\x00", Pi3, audio.NaturalMapping},
		{"pi3 plus selects natural", "Raspberry Pi 3 Model B Plus Rev 1.3\x00", Pi3BPlus, audio.NaturalMapping},
		{"zero w selects natural", "Raspberry Pi Zero W Rev 1.1\n", PiZeroW, audio.NaturalMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, mapping, err := Detect(writeModel(t, tt.content))
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if model != tt.model || mapping != tt.mapping {
				t.Errorf("Detect = %s/%s, want %s/%s", model, mapping, tt.model, tt.mapping)
			}
		})
	}
}

func TestDetectUnreadable(t *testing.T) {
	model, _, err := Detect(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrPlatformUnsupported) {
		t.Errorf("got %v, want ErrPlatformUnsupported", err)
	}
	if model != ProbeFailed {
		t.Errorf("model = %s, want probe failed", model)
	}
}

func TestDetectEmptyDescriptor(t *testing.T) {
	model, _, err := Detect(writeModel(t, ""))
	if !errors.Is(err, ErrPlatformUnsupported) || model != ProbeFailed {
		t.Errorf("got %s, %v; want probe failed", model, err)
	}
}

func TestDetectUnknownBoard(t *testing.T) {
	model, _, err := Detect(writeModel(t, "Generic x86 PC\n"))
	if !errors.Is(err, ErrPlatformUnsupported) {
		t.Errorf("got %v, want ErrPlatformUnsupported", err)
	}
	if model != Unknown {
		t.Errorf("model = %s, want unknown", model)
	}
}

func TestProbeReadsOnlyFirstLine(t *testing.T) {
	model, err := Probe(writeModel(t, "Generic board\nRaspberry Pi 4 Model B\n"))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if model != Unknown {
		t.Errorf("model = %s, second line should be ignored", model)
	}
}

func TestProbeBoundsDescriptor(t *testing.T) {
	content := strings.Repeat("x", 75) + " Pi 4 Model B\n"
	model, err := Probe(writeModel(t, content))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if model != Unknown {
		t.Errorf("model = %s, text past %d bytes should be ignored", model, maxDescriptor)
	}
}
