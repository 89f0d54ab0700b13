// ABOUTME: Playback session lifecycle
// ABOUTME: Brings the audio_render pipeline up to Executing and tears it down
package playback

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
	"github.com/Resonate-Protocol/hdmiplay/pkg/render"
	"github.com/google/uuid"
)

// DefaultDestination is the output selected when none is configured
const DefaultDestination = "hdmi"

// Supported sample rates in Hz
const (
	MinSampleRate = 8000
	MaxSampleRate = 192000
)

// Config holds session parameters
type Config struct {
	SampleRate  int
	Channels    int // Declared channel count, 1-8
	BitDepth    int // 16 or 32
	BufferCount int
	BufferSize  int // Requested bytes per buffer, rounded up when aligned

	// Destination is applied after bring-up when non-empty
	Destination string

	// StrictMatch requires submitted regions to match a held buffer by
	// address; by default any held buffer large enough is accepted
	StrictMatch bool
}

// Format returns the PCM format described by the config
func (c Config) Format() audio.Format {
	return audio.Format{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		BitDepth:   c.BitDepth,
	}
}

// Validate checks the parameters without touching any framework
func (c Config) Validate() error {
	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d outside %d-%d", ErrConfiguration, c.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Channels < 1 || c.Channels > audio.MaxChannels {
		return fmt.Errorf("%w: %d channels (supported: 1-%d)", ErrConfiguration, c.Channels, audio.MaxChannels)
	}
	if c.BitDepth != audio.BitDepth16 && c.BitDepth != audio.BitDepth32 {
		return fmt.Errorf("%w: bit depth %d (supported: 16, 32)", ErrConfiguration, c.BitDepth)
	}
	if c.BufferCount <= 0 {
		return fmt.Errorf("%w: buffer count %d", ErrConfiguration, c.BufferCount)
	}
	if bpf := c.Format().BytesPerFrame(); c.BufferSize < bpf {
		return fmt.Errorf("%w: buffer size %d smaller than one %d byte frame", ErrConfiguration, c.BufferSize, bpf)
	}
	if len(c.Destination) >= render.DestinationSize {
		return fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrDestination, c.Destination)
	}
	return nil
}

// AlignBufferSize rounds size up to a multiple of both 16 and
// bytesPerFrame. Both are powers of two, so the larger is their lcm.
func AlignBufferSize(size, bytesPerFrame int) int {
	align := max(16, bytesPerFrame)
	return (size + align - 1) / align * align
}

// Session owns one audio_render component from bring-up to teardown.
// Only one session should exist per process.
type Session struct {
	id            string
	config        Config
	fw            render.Framework
	comp          render.Component
	bytesPerFrame int
	bufferSize    int
	tracker       *tracker

	// Bring-up progress, consulted by teardown
	initialized    bool
	buffersEnabled bool

	// Completion path: counts rendered buffers and wakes a waiting feeder
	completed atomic.Uint64
	freed     chan struct{}

	mu     sync.Mutex
	closed bool
}

// Create validates config and drives a new audio_render component to
// Executing. On any framework failure everything already done is undone.
func Create(fw render.Framework, config Config) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	format := config.Format()
	s := &Session{
		id:            uuid.New().String(),
		config:        config,
		fw:            fw,
		bytesPerFrame: format.BytesPerFrame(),
		bufferSize:    AlignBufferSize(config.BufferSize, format.BytesPerFrame()),
		tracker:       newTracker(config.BufferCount, config.StrictMatch),
		freed:         make(chan struct{}, 1),
	}

	if err := s.bringUp(); err != nil {
		if terr := s.teardown(nil); terr != nil {
			log.Printf("[%s] Rollback incomplete: %v", s.shortID(), terr)
		}
		return nil, fmt.Errorf("%w: %w", ErrHardwareInit, err)
	}

	log.Printf("[%s] Session ready: %s, %d x %d byte buffers (%d frames each)",
		s.shortID(), format, config.BufferCount, s.bufferSize, s.FramesPerBuffer())

	if config.Destination != "" {
		if err := s.SetDestination(config.Destination); err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %w", ErrHardwareInit, err)
		}
	}

	return s, nil
}

func (s *Session) bringUp() error {
	if err := s.fw.Init(); err != nil {
		return fmt.Errorf("framework init: %w", err)
	}
	s.initialized = true

	comp, err := s.fw.CreateComponent(render.ComponentAudioRender,
		render.EnableInputBuffers|render.DisableAllPorts)
	if err != nil {
		return fmt.Errorf("create %s: %w", render.ComponentAudioRender, err)
	}
	s.comp = comp
	comp.SetEmptyBufferDone(s.bufferDone)

	def, err := comp.PortDefinition(render.InputPort)
	if err != nil {
		return fmt.Errorf("get port definition: %w", err)
	}
	def.BufferCountActual = s.config.BufferCount
	def.BufferSize = s.bufferSize
	if err := comp.SetPortDefinition(def); err != nil {
		return fmt.Errorf("set port definition: %w", err)
	}

	if err := comp.SetPCM(render.PCMParams{
		Port:          render.InputPort,
		Channels:      audio.EffectiveChannels(s.config.Channels),
		SampleRate:    s.config.SampleRate,
		BitsPerSample: s.config.BitDepth,
		Signed:        true,
		LittleEndian:  true,
		Interleaved:   true,
		Linear:        true,
		Layout:        audio.ChannelLayout(s.config.Channels),
	}); err != nil {
		return fmt.Errorf("set PCM parameters: %w", err)
	}

	if err := comp.SetState(render.StateIdle); err != nil {
		return fmt.Errorf("enter Idle: %w", err)
	}
	if err := comp.EnableBuffers(render.InputPort); err != nil {
		return fmt.Errorf("enable port buffers: %w", err)
	}
	s.buffersEnabled = true

	if err := comp.SetState(render.StateExecuting); err != nil {
		return fmt.Errorf("enter Executing: %w", err)
	}
	return nil
}

// teardown walks the component back to Loaded from wherever bring-up
// reached, releases it and deinitialises the framework
func (s *Session) teardown(held []*render.BufferHeader) error {
	var errs []error

	if s.comp != nil {
		if s.comp.State() == render.StateExecuting {
			if err := s.comp.SetState(render.StateIdle); err != nil {
				errs = append(errs, fmt.Errorf("leave Executing: %w", err))
			}
		}
		if s.buffersEnabled {
			if err := s.comp.DisableBuffers(render.InputPort, held); err != nil {
				errs = append(errs, fmt.Errorf("disable port buffers: %w", err))
			}
			s.buffersEnabled = false
		}
		if s.comp.State() == render.StateIdle {
			if err := s.comp.SetState(render.StateLoaded); err != nil {
				errs = append(errs, fmt.Errorf("enter Loaded: %w", err))
			}
		}
		if err := s.comp.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release component: %w", err))
		}
		s.comp = nil
	}

	if s.initialized {
		if err := s.fw.Deinit(); err != nil {
			errs = append(errs, fmt.Errorf("framework deinit: %w", err))
		}
		s.initialized = false
	}

	return errors.Join(errs...)
}

// bufferDone runs on the component's completion path
func (s *Session) bufferDone(*render.BufferHeader) {
	s.completed.Add(1)
	select {
	case s.freed <- struct{}{}:
	default:
	}
}

// Close tears the pipeline down. Buffers still held by the client are
// handed back to the component first. A second call returns ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true

	held := s.tracker.drain()
	if len(held) > 0 {
		log.Printf("[%s] Returning %d client-held buffers", s.shortID(), len(held))
	}

	if err := s.teardown(held); err != nil {
		return fmt.Errorf("session teardown: %w", err)
	}
	log.Printf("[%s] Session closed", s.shortID())
	return nil
}

// SetDestination names the physical output, e.g. "hdmi" or "local".
// Names must fit the 15 byte destination field.
func (s *Session) SetDestination(name string) error {
	if len(name) >= render.DestinationSize {
		return fmt.Errorf("%w: %q longer than %d bytes", ErrDestination, name, render.DestinationSize-1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.comp.SetDestination(name); err != nil {
		return fmt.Errorf("%w: %w", ErrDestination, err)
	}

	log.Printf("[%s] Destination set to %q", s.shortID(), name)
	return nil
}

// Latency returns the frames queued between the client and the speaker
func (s *Session) Latency() (uint32, error) {
	s.mu.Lock()
	comp, closed := s.comp, s.closed
	s.mu.Unlock()

	if closed {
		return 0, ErrClosed
	}
	return comp.Latency()
}

// Acquire returns a free buffer's full region, or nil when the pipeline has
// none free. It never blocks.
func (s *Session) Acquire() []byte {
	s.mu.Lock()
	comp, closed := s.comp, s.closed
	s.mu.Unlock()

	if closed {
		return nil
	}

	hdr := comp.InputBuffer(render.InputPort)
	if hdr == nil {
		return nil
	}

	s.tracker.insert(hdr)
	return hdr.Data[:hdr.AllocLen]
}

// Submit hands a held buffer to the pipeline with length bytes at offset 0
func (s *Session) Submit(buf []byte, length int) error {
	if length < 0 || length%s.bytesPerFrame != 0 {
		return fmt.Errorf("%w: %w: %d bytes with %d byte frames",
			ErrBufferProtocol, ErrInvalidLength, length, s.bytesPerFrame)
	}

	s.mu.Lock()
	comp, closed := s.comp, s.closed
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}

	hdr, byAddress := s.tracker.take(buf, length)
	if hdr == nil {
		return fmt.Errorf("%w: %w: %d byte region", ErrBufferProtocol, ErrNotFound, len(buf))
	}
	if !byAddress {
		log.Printf("[%s] Warning: submitted region matched held buffer %d by capacity, not address",
			s.shortID(), hdr.Index())
	}

	hdr.Offset = 0
	hdr.FilledLen = length
	if err := comp.EmptyBuffer(hdr); err != nil {
		return fmt.Errorf("%w: %w", ErrBufferProtocol, err)
	}
	return nil
}

// ID returns the session's unique identifier
func (s *Session) ID() string {
	return s.id
}

func (s *Session) shortID() string {
	return s.id[:8]
}

// Config returns the parameters the session was created with
func (s *Session) Config() Config {
	return s.config
}

// Format returns the session's PCM format
func (s *Session) Format() audio.Format {
	return s.config.Format()
}

// BufferSize returns the aligned size of each buffer in bytes
func (s *Session) BufferSize() int {
	return s.bufferSize
}

// BytesPerFrame returns the size of one frame at the effective width
func (s *Session) BytesPerFrame() int {
	return s.bytesPerFrame
}

// FramesPerBuffer returns how many frames fit in one buffer
func (s *Session) FramesPerBuffer() int {
	return s.bufferSize / s.bytesPerFrame
}

// Completed returns the number of buffers the pipeline has rendered
func (s *Session) Completed() uint64 {
	return s.completed.Load()
}

// Freed signals, without guarantee of one signal per buffer, that a
// rendered buffer is about to become acquirable again
func (s *Session) Freed() <-chan struct{} {
	return s.freed
}

// Held returns the number of buffers acquired but not yet submitted
func (s *Session) Held() int {
	return s.tracker.len()
}
