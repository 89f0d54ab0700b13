// ABOUTME: Null audio output for headless runs
// ABOUTME: Discards PCM while pacing writes to the stream's real-time rate
package output

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
)

// nullDeviceBuffer is how far ahead of real time the null device accepts data
const nullDeviceBuffer = 100 * time.Millisecond

// Null output discarding everything written to it
type Null struct {
	paced bool

	mu       sync.Mutex
	format   audio.Format
	open     bool
	playhead time.Time // When the last accepted frame finishes playing

	written atomic.Int64

	now   func() time.Time
	sleep func(time.Duration)
}

// NewNull creates a null output. A paced output blocks writes so data is
// consumed no faster than the sample rate.
func NewNull(paced bool) *Null {
	return &Null{
		paced: paced,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Open records the format
func (n *Null) Open(format audio.Format) error {
	if format.BytesPerFrame() <= 0 || format.SampleRate <= 0 {
		return fmt.Errorf("invalid format: %s", format)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.format = format
	n.open = true
	n.playhead = n.now()
	log.Printf("Audio output initialized: %s (null, paced=%v)", format, n.paced)
	return nil
}

// Write discards p, sleeping when more than the device buffer is pending
func (n *Null) Write(p []byte) error {
	n.mu.Lock()
	if !n.open {
		n.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}

	n.written.Add(int64(len(p)))
	if !n.paced {
		n.mu.Unlock()
		return nil
	}

	now := n.now()
	if n.playhead.Before(now) {
		n.playhead = now
	}
	frames := len(p) / n.format.BytesPerFrame()
	n.playhead = n.playhead.Add(time.Duration(frames) * time.Second / time.Duration(n.format.SampleRate))
	wait := n.playhead.Sub(now) - nullDeviceBuffer
	n.mu.Unlock()

	if wait > 0 {
		n.sleep(wait)
	}
	return nil
}

// Delay returns frames not yet "played"
func (n *Null) Delay() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.open || !n.paced {
		return 0
	}
	pending := n.playhead.Sub(n.now())
	if pending <= 0 {
		return 0
	}
	return int(pending * time.Duration(n.format.SampleRate) / time.Second)
}

// Close marks the output closed
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.open {
		log.Printf("Null output closed after discarding %d bytes", n.written.Load())
	}
	n.open = false
	return nil
}
