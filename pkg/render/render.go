// ABOUTME: Render framework interface definitions
// ABOUTME: Component states, port and PCM parameters, buffer headers and sinks
package render

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
)

// InputPort is the index of the audio_render input port
const InputPort = 100

// ComponentAudioRender names the PCM rendering component
const ComponentAudioRender = "audio_render"

// DestinationSize is the size of the fixed destination name field,
// including the terminator
const DestinationSize = 16

var (
	ErrNotInitialized           = errors.New("render framework not initialized")
	ErrComponentNotFound        = errors.New("component not found")
	ErrBadPortIndex             = errors.New("bad port index")
	ErrBadParameter             = errors.New("bad parameter")
	ErrIncorrectStateTransition = errors.New("incorrect state transition")
	ErrIncorrectStateOperation  = errors.New("operation not allowed in current state")
	ErrInsufficientResources    = errors.New("insufficient resources")
	ErrPortDisabled             = errors.New("port disabled")
	ErrBufferNotOwned           = errors.New("buffer not owned by client")
	ErrComponentReleased        = errors.New("component released")
)

// State is a component lifecycle state
type State int

const (
	StateInvalid State = iota
	StateLoaded
	StateIdle
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "Loaded"
	case StateIdle:
		return "Idle"
	case StateExecuting:
		return "Executing"
	default:
		return fmt.Sprintf("Invalid(%d)", int(s))
	}
}

// CreateFlags control which ports are enabled at creation
type CreateFlags uint32

const (
	EnableInputBuffers CreateFlags = 1 << iota
	DisableAllPorts
)

// PortDefinition describes buffer geometry of a port
type PortDefinition struct {
	Port              int
	Enabled           bool
	BufferCountMin    int
	BufferCountActual int
	BufferSize        int
	BufferAlignment   int
}

// PCMParams describes the PCM data accepted by a port
type PCMParams struct {
	Port          int
	Channels      int
	SampleRate    int
	BitsPerSample int
	Signed        bool
	LittleEndian  bool
	Interleaved   bool
	Linear        bool
	Layout        audio.Layout
}

// Format converts the parameters to an audio.Format
func (p PCMParams) Format() audio.Format {
	return audio.Format{
		SampleRate: p.SampleRate,
		Channels:   p.Channels,
		BitDepth:   p.BitsPerSample,
	}
}

// BufferHeader describes one buffer of a port's pool
type BufferHeader struct {
	Data      []byte // Full allocation, AllocLen bytes
	AllocLen  int
	FilledLen int
	Offset    int

	index int
	owner owner
	comp  *Renderer
}

// Index returns the buffer's position in its pool
func (h *BufferHeader) Index() int {
	return h.index
}

type owner int

const (
	ownerComponent owner = iota // In the free pool
	ownerClient                 // Handed out by InputBuffer
	ownerInFlight               // Submitted, not yet rendered
)

// Framework is the process-wide media runtime
type Framework interface {
	// Init brings the runtime up; it must precede CreateComponent
	Init() error

	// Deinit shuts the runtime down
	Deinit() error

	// CreateComponent creates a named component in the Loaded state
	CreateComponent(name string, flags CreateFlags) (Component, error)
}

// Component is a media component with ports driven through states
type Component interface {
	State() State
	SetState(target State) error

	PortDefinition(port int) (PortDefinition, error)
	SetPortDefinition(def PortDefinition) error
	SetPCM(params PCMParams) error

	// EnableBuffers allocates the port's buffer pool
	EnableBuffers(port int) error

	// DisableBuffers frees the pool; held lists buffers the client
	// still owns and hands them back first
	DisableBuffers(port int, held []*BufferHeader) error

	// InputBuffer returns a free buffer or nil without blocking
	InputBuffer(port int) *BufferHeader

	// EmptyBuffer submits a client-held buffer for rendering
	EmptyBuffer(hdr *BufferHeader) error

	// SetEmptyBufferDone registers a callback run after a buffer is
	// rendered, just before it returns to the free pool
	SetEmptyBufferDone(fn func(*BufferHeader))

	SetDestination(name string) error

	// Latency reports queued plus device-buffered frames
	Latency() (uint32, error)

	Release() error
}

// Sink receives rendered PCM
type Sink interface {
	// Open prepares the device for the given format
	Open(format audio.Format) error

	// Write plays interleaved PCM, blocking until accepted
	Write(p []byte) error

	// Delay returns frames buffered in the device
	Delay() int

	Close() error
}

// Router is implemented by sinks that can switch physical destinations
type Router interface {
	SetDestination(name string) error
}
