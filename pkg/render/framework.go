// ABOUTME: Software render framework runtime
// ABOUTME: Reference-counted init/deinit, component factory and buffer memory budget
package render

import (
	"fmt"
	"log"
	"sync"
)

// SinkFactory creates the sink a new component renders into
type SinkFactory func() (Sink, error)

// SoftwareFramework implements Framework with Renderer components
type SoftwareFramework struct {
	newSink SinkFactory

	mu          sync.Mutex
	refs        int
	components  map[*Renderer]struct{}
	memoryLimit int // Bytes of buffer memory; 0 means unlimited
	memoryUsed  int
}

// NewFramework creates a framework whose components render into sinks
// from newSink
func NewFramework(newSink SinkFactory) *SoftwareFramework {
	return &SoftwareFramework{
		newSink:    newSink,
		components: make(map[*Renderer]struct{}),
	}
}

// SetMemoryLimit caps the bytes of port buffer memory all components may
// allocate. Zero removes the cap.
func (f *SoftwareFramework) SetMemoryLimit(bytes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memoryLimit = bytes
}

// Init brings the runtime up. Calls nest; each needs a matching Deinit.
func (f *SoftwareFramework) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refs++
	return nil
}

// Deinit shuts the runtime down once every Init has been matched
func (f *SoftwareFramework) Deinit() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.refs == 0 {
		return ErrNotInitialized
	}
	f.refs--

	if f.refs == 0 && len(f.components) > 0 {
		log.Printf("Warning: render framework deinit with %d live components", len(f.components))
	}
	return nil
}

// Initialized reports whether Init has been called more often than Deinit
func (f *SoftwareFramework) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs > 0
}

// Components returns the number of live components
func (f *SoftwareFramework) Components() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.components)
}

// CreateComponent creates a component in the Loaded state
func (f *SoftwareFramework) CreateComponent(name string, flags CreateFlags) (Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.refs == 0 {
		return nil, ErrNotInitialized
	}
	if name != ComponentAudioRender {
		return nil, fmt.Errorf("%w: %q", ErrComponentNotFound, name)
	}

	sink, err := f.newSink()
	if err != nil {
		return nil, fmt.Errorf("%w: sink: %v", ErrInsufficientResources, err)
	}

	r := newRenderer(f, sink, flags)
	f.components[r] = struct{}{}
	return r, nil
}

func (f *SoftwareFramework) reserve(bytes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.memoryLimit > 0 && f.memoryUsed+bytes > f.memoryLimit {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrInsufficientResources, bytes, f.memoryUsed, f.memoryLimit)
	}
	f.memoryUsed += bytes
	return nil
}

func (f *SoftwareFramework) release(bytes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memoryUsed -= bytes
}

func (f *SoftwareFramework) forget(r *Renderer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.components, r)
}
