// ABOUTME: Audio output interface definition
// ABOUTME: Common sink interface and backend selection for the render component
package output

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
)

// Output represents an audio output device. Every Output satisfies
// render.Sink.
type Output interface {
	// Open initializes the output device for the given PCM format
	Open(format audio.Format) error

	// Write outputs interleaved PCM (blocks until written)
	Write(p []byte) error

	// Delay returns frames written but not yet played
	Delay() int

	// Close releases output resources
	Close() error
}

// Backend names
const (
	BackendOto  = "oto"
	BackendALSA = "alsa"
	BackendNull = "null"
)

// Options selects and configures an output backend
type Options struct {
	Backend string

	// Devices maps destination names to ALSA devices ("hw:C,D")
	Devices map[string]string

	// Unpaced makes the null backend discard without real-time pacing
	Unpaced bool
}

// Backends lists the backends usable on this platform
func Backends() []string {
	if alsaSupported {
		return []string{BackendOto, BackendALSA, BackendNull}
	}
	return []string{BackendOto, BackendNull}
}

// DefaultBackend returns ALSA where it is available and oto elsewhere
func DefaultBackend() string {
	if alsaSupported {
		return BackendALSA
	}
	return BackendOto
}

// New creates an unopened output for the selected backend
func New(opts Options) (Output, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendOto, "":
		return NewOto(), nil
	case BackendALSA:
		return NewALSA(opts.Devices)
	case BackendNull:
		return NewNull(!opts.Unpaced), nil
	default:
		return nil, fmt.Errorf("unknown output backend %q (available: %s)",
			opts.Backend, strings.Join(Backends(), ", "))
	}
}

// ParseDevices parses "dest=hw:C,D" entries into a destination map
func ParseDevices(entries []string) (map[string]string, error) {
	devices := make(map[string]string, len(entries))
	for _, e := range entries {
		dest, dev, ok := strings.Cut(e, "=")
		if !ok || dest == "" || dev == "" {
			return nil, fmt.Errorf("invalid device mapping %q (want dest=hw:C,D)", e)
		}
		if _, _, err := parseHW(dev); err != nil {
			return nil, err
		}
		devices[dest] = dev
	}
	return devices, nil
}

// parseHW parses an ALSA "hw:C,D" device name
func parseHW(name string) (card, device uint, err error) {
	rest, ok := strings.CutPrefix(name, "hw:")
	if !ok {
		return 0, 0, fmt.Errorf("invalid ALSA device %q (want hw:C,D)", name)
	}

	cardStr, devStr, found := strings.Cut(rest, ",")
	if !found {
		devStr = "0"
	}

	var c, d uint
	if _, err := fmt.Sscanf(cardStr, "%d", &c); err != nil {
		return 0, 0, fmt.Errorf("invalid ALSA card in %q: %w", name, err)
	}
	if _, err := fmt.Sscanf(devStr, "%d", &d); err != nil {
		return 0, 0, fmt.Errorf("invalid ALSA device in %q: %w", name, err)
	}
	return c, d, nil
}

// frontPair copies the first two slots of each frame of src into dst.
// Mono input is copied as is. It returns the bytes written.
func frontPair(dst, src []byte, channels, sampleBytes int) int {
	if channels <= 2 {
		return copy(dst, src)
	}

	inFrame := channels * sampleBytes
	outFrame := 2 * sampleBytes
	frames := min(len(src)/inFrame, len(dst)/outFrame)
	for f := 0; f < frames; f++ {
		copy(dst[f*outFrame:(f+1)*outFrame], src[f*inFrame:f*inFrame+outFrame])
	}
	return frames * outFrame
}
