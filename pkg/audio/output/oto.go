// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams PCM through a persistent oto player fed by a pipe
package output

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// Oto output implementation using oto library
type Oto struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format
	outFrame   int // Bytes per frame handed to oto
	scratch    []byte
	floatBuf   []byte
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() Output {
	ctx, cancel := context.WithCancel(context.Background())

	return &Oto{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if format.BitDepth != audio.BitDepth16 && format.BitDepth != audio.BitDepth32 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 32)", format.BitDepth)
	}

	channels := min(format.OutputChannels(), 2)
	otoFormat := oto.FormatSignedInt16LE
	sampleBytes := 2
	if format.BitDepth == audio.BitDepth32 {
		otoFormat = oto.FormatFloat32LE
		sampleBytes = 4
	}

	// oto allows one context per process; reuse it when the format matches
	if o.otoCtx != nil {
		if o.format.SampleRate != format.SampleRate || o.format.BitDepth != format.BitDepth {
			log.Printf("Warning: format change detected (%s -> %s) but oto doesn't support reinitialization. Continuing with existing context.",
				o.format, format)
		}
		o.format.Channels = format.Channels
		if !o.ready {
			o.startPlayerLocked()
		}
		return nil
	}

	if format.OutputChannels() > 2 {
		log.Printf("oto output plays the front pair of %d channels", format.OutputChannels())
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: channels,
		Format:       otoFormat,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.format = format
	o.outFrame = channels * sampleBytes
	o.startPlayerLocked()

	log.Printf("Audio output initialized: %s via oto (%d channels)", format, channels)

	return nil
}

// startPlayerLocked creates the pipe and persistent player (must hold o.mu)
func (o *Oto) startPlayerLocked() {
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true
}

// Write outputs interleaved PCM (blocks until written)
func (o *Oto) Write(p []byte) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}

	format := o.format
	sampleBytes := format.SampleBytes()
	n := len(p) / format.OutputChannels() * min(format.OutputChannels(), 2)
	if cap(o.scratch) < n {
		o.scratch = make([]byte, n)
	}
	pair := o.scratch[:frontPair(o.scratch[:n], p, format.OutputChannels(), sampleBytes)]

	out := pair
	if format.BitDepth == audio.BitDepth32 {
		if cap(o.floatBuf) < len(pair) {
			o.floatBuf = make([]byte, len(pair))
		}
		written, err := audio.ConvertToFloat32LE(o.floatBuf[:len(pair)], pair, format.BitDepth)
		if err != nil {
			o.mu.Unlock()
			return err
		}
		out = o.floatBuf[:written]
	}
	w := o.pipeWriter
	o.mu.Unlock()

	// Write to pipe (which feeds the persistent player)
	// This blocks until the player has consumed the data
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}

	return nil
}

// Delay returns frames held by the oto player
func (o *Oto) Delay() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready || o.outFrame == 0 {
		return 0
	}
	return o.player.BufferedSize() / o.outFrame
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	o.ready = false
	o.cancel()
	return nil
}
