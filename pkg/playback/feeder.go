// ABOUTME: Streaming feed loop
// ABOUTME: Acquires buffers, fills them from the input stream and submits them
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
)

// Feed loop defaults
const (
	DefaultPollInterval  = 5 * time.Millisecond
	DefaultThrottleSleep = 10 * time.Millisecond
	DefaultDrainTimeout  = 2 * time.Second
)

// Pipeline is the buffer interface the feed loop drives. *Session
// implements it.
type Pipeline interface {
	Acquire() []byte
	Submit(buf []byte, length int) error
	Latency() (uint32, error)
}

// freeNotifier is implemented by pipelines that signal when a buffer is
// returned, letting the loop retry before the poll interval ends
type freeNotifier interface {
	Freed() <-chan struct{}
}

// RunState is the feed loop's lifecycle state
type RunState int32

const (
	Ready RunState = iota
	Running
	Stopping
	Stopped
)

func (s RunState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("RunState(%d)", int32(s))
	}
}

// FeederConfig configures the feed loop
type FeederConfig struct {
	Format  audio.Format
	Mapping audio.Mapping

	// PollInterval is the sleep between failed acquire attempts
	PollInterval time.Duration

	// ThrottleTarget enables latency throttling when positive: before each
	// submit the loop sleeps ThrottleSleep while the pipeline holds more
	// than ThrottleTarget+ThrottleSleep of audio
	ThrottleTarget time.Duration
	ThrottleSleep  time.Duration

	// StopOnEOF ends the loop once the input is exhausted and the pipeline
	// has drained (or DrainTimeout passed). Otherwise EOF plays silence.
	StopOnEOF    bool
	DrainTimeout time.Duration

	// OnSubmit, if set, is called on the feed goroutine after every submit
	OnSubmit func(Stats)
}

// Stats are running feed loop counters
type Stats struct {
	Submitted      uint64
	BytesRead      uint64
	SilenceBytes   uint64
	ShortReads     uint64
	EmptyPolls     uint64
	ThrottleSleeps uint64
	EOF            bool
}

// Feeder moves PCM from a reader into a Pipeline
type Feeder struct {
	pipeline Pipeline
	input    io.Reader
	config   FeederConfig
	reorder  bool
	scratch  []byte

	state atomic.Int32

	submitted      atomic.Uint64
	bytesRead      atomic.Uint64
	silenceBytes   atomic.Uint64
	shortReads     atomic.Uint64
	emptyPolls     atomic.Uint64
	throttleSleeps atomic.Uint64
	eof            atomic.Bool
}

// NewFeeder creates a feed loop reading from input into pipeline
func NewFeeder(pipeline Pipeline, input io.Reader, config FeederConfig) *Feeder {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.ThrottleSleep <= 0 {
		config.ThrottleSleep = DefaultThrottleSleep
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}

	return &Feeder{
		pipeline: pipeline,
		input:    input,
		config:   config,
		reorder:  config.Mapping.Reorders(config.Format.Channels),
	}
}

// State returns the current run state
func (f *Feeder) State() RunState {
	return RunState(f.state.Load())
}

// Stats returns a snapshot of the counters
func (f *Feeder) Stats() Stats {
	return Stats{
		Submitted:      f.submitted.Load(),
		BytesRead:      f.bytesRead.Load(),
		SilenceBytes:   f.silenceBytes.Load(),
		ShortReads:     f.shortReads.Load(),
		EmptyPolls:     f.emptyPolls.Load(),
		ThrottleSleeps: f.throttleSleeps.Load(),
		EOF:            f.eof.Load(),
	}
}

// Run feeds the pipeline until ctx is cancelled, the input ends with
// StopOnEOF set, or a fatal error occurs. A Feeder runs once.
func (f *Feeder) Run(ctx context.Context) error {
	if !f.state.CompareAndSwap(int32(Ready), int32(Running)) {
		return fmt.Errorf("feeder already %s", f.State())
	}
	defer f.state.Store(int32(Stopped))

	log.Printf("Feed loop started: %s, %s mapping, poll %v",
		f.config.Format, f.config.Mapping, f.config.PollInterval)

	for {
		if ctx.Err() != nil {
			return f.stop("context cancelled")
		}

		buf := f.pipeline.Acquire()
		if buf == nil {
			f.emptyPolls.Add(1)
			if !f.waitFree(ctx) {
				return f.stop("context cancelled")
			}
			continue
		}

		eof, err := f.fill(buf)
		if err != nil {
			f.state.Store(int32(Stopping))
			return fmt.Errorf("read input: %w", err)
		}

		if !f.throttle(ctx) {
			return f.stop("context cancelled")
		}

		if err := f.pipeline.Submit(buf, len(buf)); err != nil {
			f.state.Store(int32(Stopping))
			return fmt.Errorf("submit buffer: %w", err)
		}
		f.submitted.Add(1)

		if f.config.OnSubmit != nil {
			f.config.OnSubmit(f.Stats())
		}

		if eof && f.config.StopOnEOF {
			f.state.Store(int32(Stopping))
			f.drain(ctx)
			return f.stop("end of input")
		}
	}
}

func (f *Feeder) stop(reason string) error {
	f.state.Store(int32(Stopping))
	s := f.Stats()
	log.Printf("Feed loop stopping (%s): %d buffers submitted, %d bytes read, %d bytes of silence",
		reason, s.Submitted, s.BytesRead, s.SilenceBytes)
	return nil
}

// fill reads one buffer of input into buf, zero-filling after a short read
// and reordering channels when the mapping requires it
func (f *Feeder) fill(buf []byte) (eof bool, err error) {
	target := buf
	if f.reorder {
		if cap(f.scratch) < len(buf) {
			f.scratch = make([]byte, len(buf))
		}
		target = f.scratch[:len(buf)]
	}

	n, err := io.ReadFull(f.input, target)
	f.bytesRead.Add(uint64(n))

	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if n > 0 {
			f.shortReads.Add(1)
		}
		if !f.eof.Swap(true) {
			if f.config.StopOnEOF {
				log.Printf("End of input after %d bytes", f.bytesRead.Load())
			} else {
				log.Printf("End of input after %d bytes, playing silence", f.bytesRead.Load())
			}
		}
		clear(target[n:])
		f.silenceBytes.Add(uint64(len(target) - n))
		eof = true
	default:
		return false, err
	}

	if f.reorder {
		audio.Permute(buf, target, f.config.Format.SampleBytes())
	}
	return eof, nil
}

// throttle sleeps while the pipeline holds more audio than the target.
// It returns false if ctx is cancelled.
func (f *Feeder) throttle(ctx context.Context) bool {
	if f.config.ThrottleTarget <= 0 {
		return true
	}

	bound := f.config.ThrottleTarget + f.config.ThrottleSleep
	limit := uint64(f.config.Format.SampleRate) * uint64(bound/time.Millisecond) / 1000

	for {
		latency, err := f.pipeline.Latency()
		if err != nil || uint64(latency) <= limit {
			return true
		}
		f.throttleSleeps.Add(1)
		if !sleepContext(ctx, f.config.ThrottleSleep) {
			return false
		}
	}
}

// drain waits for the pipeline to play out what was submitted
func (f *Feeder) drain(ctx context.Context) {
	deadline := time.Now().Add(f.config.DrainTimeout)
	for time.Now().Before(deadline) {
		latency, err := f.pipeline.Latency()
		if err != nil || latency == 0 {
			return
		}
		if !sleepContext(ctx, f.config.PollInterval) {
			return
		}
	}
	log.Printf("Drain timed out after %v", f.config.DrainTimeout)
}

// waitFree sleeps up to the poll interval, returning early when the
// pipeline reports a freed buffer. It returns false if ctx is done.
func (f *Feeder) waitFree(ctx context.Context) bool {
	n, ok := f.pipeline.(freeNotifier)
	if !ok {
		return sleepContext(ctx, f.config.PollInterval)
	}

	t := time.NewTimer(f.config.PollInterval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-n.Freed():
		return true
	case <-t.C:
		return true
	}
}

// sleepContext sleeps for d, returning false if ctx is done first
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
