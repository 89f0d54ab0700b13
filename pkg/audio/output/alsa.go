//go:build linux

// ABOUTME: ALSA audio output implementation
// ABOUTME: Writes all channels to a raw hw device chosen by destination name
package output

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
	"github.com/gen2brain/alsa"
)

const alsaSupported = true

const (
	alsaPeriodFrames = 1024
	alsaPeriodCount  = 4
)

// DefaultDevices maps destination names to the usual Raspberry Pi cards
var DefaultDevices = map[string]string{
	"hdmi":  "hw:0,0",
	"local": "hw:1,0",
}

// ALSA output writing to a kernel PCM device. writeMu serializes writes
// and device swaps; mu guards the fields so Delay never waits on a write.
type ALSA struct {
	writeMu sync.Mutex
	xruns   int

	mu          sync.Mutex
	devices     map[string]string
	destination string
	device      string
	pcm         *alsa.PCM
	format      audio.Format
}

// NewALSA creates an ALSA output; devices overrides DefaultDevices entries
func NewALSA(devices map[string]string) (Output, error) {
	merged := make(map[string]string, len(DefaultDevices)+len(devices))
	for k, v := range DefaultDevices {
		merged[k] = v
	}
	for k, v := range devices {
		if _, _, err := parseHW(v); err != nil {
			return nil, err
		}
		merged[k] = v
	}

	return &ALSA{
		devices:     merged,
		destination: "hdmi",
	}, nil
}

// Open opens the device for the current destination
func (a *ALSA) Open(format audio.Format) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()

	a.format = format
	return a.openLocked()
}

func (a *ALSA) openLocked() error {
	device, ok := a.devices[a.destination]
	if !ok {
		return fmt.Errorf("no ALSA device for destination %q", a.destination)
	}
	card, dev, err := parseHW(device)
	if err != nil {
		return err
	}

	pcmFormat := alsa.SNDRV_PCM_FORMAT_S16_LE
	switch a.format.BitDepth {
	case audio.BitDepth16:
	case audio.BitDepth32:
		pcmFormat = alsa.SNDRV_PCM_FORMAT_S32_LE
	default:
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 32)", a.format.BitDepth)
	}

	config := alsa.Config{
		Channels:    uint32(a.format.OutputChannels()),
		Rate:        uint32(a.format.SampleRate),
		PeriodSize:  alsaPeriodFrames,
		PeriodCount: alsaPeriodCount,
		Format:      pcmFormat,
	}

	pcm, err := alsa.PcmOpen(card, dev, alsa.PCM_OUT, &config)
	if err != nil {
		return fmt.Errorf("failed to open %s for %q: %w", device, a.destination, err)
	}
	if err := pcm.Prepare(); err != nil {
		pcm.Close()
		return fmt.Errorf("failed to prepare %s: %w", device, err)
	}

	a.pcm = pcm
	a.device = device
	log.Printf("Audio output initialized: %s on %s (%s)", a.format, device, a.destination)
	return nil
}

// SetDestination switches to the device mapped to name, reopening if needed
func (a *ALSA) SetDestination(name string) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()

	device, ok := a.devices[name]
	if !ok {
		return fmt.Errorf("no ALSA device for destination %q", name)
	}
	a.destination = name

	if a.pcm == nil || device == a.device {
		return nil
	}

	log.Printf("Switching output %s -> %s", a.device, device)
	a.pcm.Close()
	a.pcm = nil
	return a.openLocked()
}

// Write outputs interleaved PCM, recovering once from an underrun
func (a *ALSA) Write(p []byte) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	pcm, device := a.pcm, a.device
	a.mu.Unlock()

	if pcm == nil {
		return fmt.Errorf("output not initialized")
	}
	if len(p) == 0 {
		return nil
	}

	_, err := pcm.Write(p)
	if err == nil {
		return nil
	}

	a.xruns++
	if a.xruns <= 5 {
		log.Printf("ALSA write on %s failed, re-preparing: %v", device, err)
	}
	if perr := pcm.Prepare(); perr != nil {
		return errors.Join(err, perr)
	}
	if _, err := pcm.Write(p); err != nil {
		return fmt.Errorf("ALSA write on %s: %w", device, err)
	}
	return nil
}

// Delay returns frames queued in the device
func (a *ALSA) Delay() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm == nil {
		return 0
	}
	frames, err := a.pcm.Delay()
	if err != nil || frames < 0 {
		return 0
	}
	return frames
}

// Close releases the device
func (a *ALSA) Close() error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm == nil {
		return nil
	}
	err := a.pcm.Close()
	a.pcm = nil
	a.device = ""
	return err
}
