// ABOUTME: Software audio_render component
// ABOUTME: Owns the input port buffer pool and renders submitted buffers to a sink
package render

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

const (
	defaultBufferCount = 4
	defaultBufferSize  = 8192
	bufferAlignment    = 16
)

// Renderer is the software implementation of the audio_render component.
// Buffers move free -> client (InputBuffer) -> in flight (EmptyBuffer) ->
// free (render goroutine). Only one render goroutine runs, so buffers are
// played in submission order.
type Renderer struct {
	fw   *SoftwareFramework
	sink Sink

	mu          sync.Mutex
	state       State
	released    bool
	port        PortDefinition
	pcm         PCMParams
	pcmSet      bool
	sinkOpen    bool
	destination string
	buffers     []*BufferHeader
	stop        chan struct{}
	wg          sync.WaitGroup

	// poolMu guards BufferHeader.owner
	poolMu   sync.Mutex
	free     chan *BufferHeader
	inflight chan *BufferHeader

	queued        atomic.Int64 // Bytes submitted but not yet written to the sink
	bytesPerFrame atomic.Int64
	sinkErrors    atomic.Int64
	onDone        atomic.Pointer[func(*BufferHeader)]
}

func newRenderer(fw *SoftwareFramework, sink Sink, flags CreateFlags) *Renderer {
	return &Renderer{
		fw:    fw,
		sink:  sink,
		state: StateLoaded,
		port: PortDefinition{
			Port:              InputPort,
			Enabled:           flags&EnableInputBuffers != 0,
			BufferCountMin:    1,
			BufferCountActual: defaultBufferCount,
			BufferSize:        defaultBufferSize,
			BufferAlignment:   bufferAlignment,
		},
	}
}

// State returns the current component state
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState moves the component one step along Loaded <-> Idle <-> Executing
func (r *Renderer) SetState(target State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrComponentReleased
	}

	from := r.state
	switch {
	case from == StateLoaded && target == StateIdle:
	case from == StateIdle && target == StateExecuting:
		if err := r.startLocked(); err != nil {
			return err
		}
	case from == StateExecuting && target == StateIdle:
		r.stopLocked()
	case from == StateIdle && target == StateLoaded:
		if len(r.buffers) > 0 {
			return fmt.Errorf("%w: %d port buffers still allocated", ErrIncorrectStateOperation, len(r.buffers))
		}
		if r.sinkOpen {
			if err := r.sink.Close(); err != nil {
				log.Printf("Warning: sink close error: %v", err)
			}
			r.sinkOpen = false
		}
	default:
		return fmt.Errorf("%w: %s -> %s", ErrIncorrectStateTransition, from, target)
	}

	r.state = target
	log.Printf("audio_render: %s -> %s", from, target)
	return nil
}

// startLocked opens the sink and starts the render goroutine (must hold r.mu)
func (r *Renderer) startLocked() error {
	if r.port.Enabled && len(r.buffers) == 0 {
		return fmt.Errorf("%w: port %d has no buffers", ErrInsufficientResources, r.port.Port)
	}
	if !r.pcmSet {
		return fmt.Errorf("%w: PCM parameters not set", ErrIncorrectStateOperation)
	}

	if !r.sinkOpen {
		if err := r.sink.Open(r.pcm.Format()); err != nil {
			return fmt.Errorf("failed to open sink: %w", err)
		}
		r.sinkOpen = true
		if r.destination != "" {
			if err := r.routeLocked(); err != nil {
				log.Printf("Warning: %v", err)
			}
		}
	}

	r.stop = make(chan struct{})
	r.wg.Add(1)
	go r.renderLoop(r.stop)

	return nil
}

// stopLocked stops rendering and returns in-flight buffers to the free pool
// (must hold r.mu)
func (r *Renderer) stopLocked() {
	close(r.stop)
	r.wg.Wait()

	flushed := 0
	for drained := false; !drained; {
		select {
		case hdr := <-r.inflight:
			r.queued.Add(-int64(hdr.FilledLen))
			r.recycle(hdr)
			flushed++
		default:
			drained = true
		}
	}

	if flushed > 0 {
		log.Printf("audio_render: flushed %d in-flight buffers", flushed)
	}
}

// renderLoop writes in-flight buffers to the sink in submission order
func (r *Renderer) renderLoop(stop <-chan struct{}) {
	defer r.wg.Done()

	for {
		select {
		case <-stop:
			return
		case hdr := <-r.inflight:
			data := hdr.Data[hdr.Offset : hdr.Offset+hdr.FilledLen]

			// The sink's Delay covers these frames from here on
			r.queued.Add(-int64(len(data)))
			if err := r.sink.Write(data); err != nil {
				if r.sinkErrors.Add(1) <= 5 {
					log.Printf("audio_render: sink write failed: %v", err)
				}
			}

			if fn := r.onDone.Load(); fn != nil {
				(*fn)(hdr)
			}
			r.recycle(hdr)
		}
	}
}

// PortDefinition returns the definition of the given port
func (r *Renderer) PortDefinition(port int) (PortDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if port != r.port.Port {
		return PortDefinition{}, fmt.Errorf("%w: %d", ErrBadPortIndex, port)
	}
	return r.port, nil
}

// SetPortDefinition updates buffer geometry; only allowed while Loaded
func (r *Renderer) SetPortDefinition(def PortDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Port != r.port.Port {
		return fmt.Errorf("%w: %d", ErrBadPortIndex, def.Port)
	}
	if r.state != StateLoaded {
		return fmt.Errorf("%w: port definition in %s", ErrIncorrectStateOperation, r.state)
	}
	if def.BufferCountActual < r.port.BufferCountMin {
		return fmt.Errorf("%w: buffer count %d below minimum %d", ErrBadParameter, def.BufferCountActual, r.port.BufferCountMin)
	}
	if def.BufferSize <= 0 || def.BufferSize%bufferAlignment != 0 {
		return fmt.Errorf("%w: buffer size %d not a positive multiple of %d", ErrBadParameter, def.BufferSize, bufferAlignment)
	}

	r.port.BufferCountActual = def.BufferCountActual
	r.port.BufferSize = def.BufferSize
	return nil
}

// SetPCM configures the PCM format of the input port
func (r *Renderer) SetPCM(params PCMParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if params.Port != r.port.Port {
		return fmt.Errorf("%w: %d", ErrBadPortIndex, params.Port)
	}
	if r.state != StateLoaded {
		return fmt.Errorf("%w: PCM parameters in %s", ErrIncorrectStateOperation, r.state)
	}

	switch params.Channels {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: %d channels", ErrBadParameter, params.Channels)
	}
	if params.BitsPerSample != 16 && params.BitsPerSample != 32 {
		return fmt.Errorf("%w: %d bits per sample", ErrBadParameter, params.BitsPerSample)
	}
	if params.SampleRate < 8000 || params.SampleRate > 192000 {
		return fmt.Errorf("%w: sample rate %d", ErrBadParameter, params.SampleRate)
	}
	if !params.Signed || !params.LittleEndian || !params.Interleaved || !params.Linear {
		return fmt.Errorf("%w: only interleaved signed little-endian linear PCM is supported", ErrBadParameter)
	}

	r.pcm = params
	r.pcmSet = true
	r.bytesPerFrame.Store(int64(params.Channels * params.BitsPerSample / 8))
	return nil
}

// EnableBuffers allocates BufferCountActual buffers of BufferSize bytes
func (r *Renderer) EnableBuffers(port int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if port != r.port.Port {
		return fmt.Errorf("%w: %d", ErrBadPortIndex, port)
	}
	if !r.port.Enabled {
		return fmt.Errorf("%w: %d", ErrPortDisabled, port)
	}
	if r.state != StateLoaded && r.state != StateIdle {
		return fmt.Errorf("%w: enable buffers in %s", ErrIncorrectStateOperation, r.state)
	}
	if len(r.buffers) > 0 {
		return fmt.Errorf("%w: buffers already enabled", ErrIncorrectStateOperation)
	}

	count := r.port.BufferCountActual
	size := r.port.BufferSize
	if err := r.fw.reserve(count * size); err != nil {
		return err
	}

	r.free = make(chan *BufferHeader, count)
	r.inflight = make(chan *BufferHeader, count)
	r.buffers = make([]*BufferHeader, count)
	for i := range r.buffers {
		hdr := &BufferHeader{
			Data:     make([]byte, size),
			AllocLen: size,
			index:    i,
			owner:    ownerComponent,
			comp:     r,
		}
		r.buffers[i] = hdr
		r.free <- hdr
	}

	log.Printf("audio_render: allocated %d buffers of %d bytes", count, size)
	return nil
}

// DisableBuffers frees the port's pool. Buffers still held by the client
// must be listed in held.
func (r *Renderer) DisableBuffers(port int, held []*BufferHeader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if port != r.port.Port {
		return fmt.Errorf("%w: %d", ErrBadPortIndex, port)
	}
	if r.state == StateExecuting {
		return fmt.Errorf("%w: disable buffers in %s", ErrIncorrectStateOperation, r.state)
	}
	if len(r.buffers) == 0 {
		return nil
	}

	r.poolMu.Lock()
	for _, hdr := range held {
		if hdr != nil && hdr.comp == r && hdr.owner == ownerClient {
			hdr.owner = ownerComponent
		}
	}
	missing := 0
	for _, hdr := range r.buffers {
		if hdr.owner != ownerComponent {
			missing++
		}
	}
	r.poolMu.Unlock()

	if missing > 0 {
		return fmt.Errorf("%w: %d buffers not returned", ErrBufferNotOwned, missing)
	}

	r.fw.release(len(r.buffers) * r.port.BufferSize)
	r.poolMu.Lock()
	for _, hdr := range r.buffers {
		hdr.comp = nil
		hdr.Data = nil
	}
	r.poolMu.Unlock()
	r.buffers = nil
	r.free = nil
	r.inflight = nil

	return nil
}

// InputBuffer returns a free buffer, or nil when none is available or the
// component is not executing
func (r *Renderer) InputBuffer(port int) *BufferHeader {
	r.mu.Lock()
	ok := r.state == StateExecuting && port == r.port.Port
	free := r.free
	r.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case hdr := <-free:
		r.setOwner(hdr, ownerClient)
		return hdr
	default:
		return nil
	}
}

// EmptyBuffer queues a client-held buffer for rendering
func (r *Renderer) EmptyBuffer(hdr *BufferHeader) error {
	if hdr == nil {
		return fmt.Errorf("%w: nil buffer header", ErrBadParameter)
	}

	r.mu.Lock()
	state := r.state
	inflight := r.inflight
	r.mu.Unlock()

	if state != StateExecuting {
		return fmt.Errorf("%w: empty buffer in %s", ErrIncorrectStateOperation, state)
	}

	// Ownership first: the header's fields belong to whoever owns it
	r.poolMu.Lock()
	if hdr.comp != r || hdr.owner != ownerClient {
		r.poolMu.Unlock()
		return fmt.Errorf("%w: buffer %d", ErrBufferNotOwned, hdr.index)
	}
	filled := hdr.FilledLen
	if hdr.Offset < 0 || filled < 0 || hdr.Offset+filled > hdr.AllocLen {
		r.poolMu.Unlock()
		return fmt.Errorf("%w: offset %d + length %d exceeds %d", ErrBadParameter, hdr.Offset, filled, hdr.AllocLen)
	}
	hdr.owner = ownerInFlight
	r.poolMu.Unlock()

	r.queued.Add(int64(filled))
	inflight <- hdr
	return nil
}

// SetEmptyBufferDone registers the completion callback. fn runs on the
// render goroutine before the buffer rejoins the free pool and must not
// call State or SetState.
func (r *Renderer) SetEmptyBufferDone(fn func(*BufferHeader)) {
	if fn == nil {
		r.onDone.Store(nil)
		return
	}
	r.onDone.Store(&fn)
}

// SetDestination names the physical output, e.g. "hdmi" or "local"
func (r *Renderer) SetDestination(name string) error {
	if len(name) >= DestinationSize {
		return fmt.Errorf("%w: destination %q longer than %d bytes", ErrBadParameter, name, DestinationSize-1)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrComponentReleased
	}

	r.destination = name
	if r.sinkOpen {
		return r.routeLocked()
	}
	return nil
}

// routeLocked forwards the destination to a routing sink (must hold r.mu)
func (r *Renderer) routeLocked() error {
	router, ok := r.sink.(Router)
	if !ok {
		return nil
	}
	if err := router.SetDestination(r.destination); err != nil {
		return fmt.Errorf("failed to route to %q: %w", r.destination, err)
	}
	return nil
}

// Latency reports frames queued in the component plus frames buffered
// by the sink
func (r *Renderer) Latency() (uint32, error) {
	r.mu.Lock()
	released := r.released
	sinkOpen := r.sinkOpen
	r.mu.Unlock()

	if released {
		return 0, ErrComponentReleased
	}

	bpf := r.bytesPerFrame.Load()
	if bpf == 0 {
		return 0, nil
	}

	frames := r.queued.Load() / bpf
	if sinkOpen {
		frames += int64(r.sink.Delay())
	}
	if frames < 0 {
		frames = 0
	}
	return uint32(frames), nil
}

// Release destroys the component; it must be back in Loaded
func (r *Renderer) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrComponentReleased
	}
	if r.state != StateLoaded {
		return fmt.Errorf("%w: release in %s", ErrIncorrectStateOperation, r.state)
	}

	r.released = true
	r.state = StateInvalid
	r.fw.forget(r)
	return nil
}

// recycle clears a rendered or flushed buffer and returns it to the free pool
func (r *Renderer) recycle(hdr *BufferHeader) {
	r.poolMu.Lock()
	hdr.FilledLen = 0
	hdr.owner = ownerComponent
	r.poolMu.Unlock()
	r.free <- hdr
}

func (r *Renderer) setOwner(hdr *BufferHeader, o owner) {
	r.poolMu.Lock()
	hdr.owner = o
	r.poolMu.Unlock()
}
