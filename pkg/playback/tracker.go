// ABOUTME: Client-held buffer tracker
// ABOUTME: Lock-guarded bounded set of buffers acquired but not yet submitted
package playback

import (
	"sync"
	"unsafe"

	"github.com/Resonate-Protocol/hdmiplay/pkg/render"
)

// tracker records the buffers the client holds. The feed loop and the
// pipeline's completion path may both touch it, so every access goes
// through mu.
type tracker struct {
	mu     sync.Mutex
	held   []*render.BufferHeader // Oldest first
	strict bool
}

func newTracker(capacity int, strict bool) *tracker {
	return &tracker{
		held:   make([]*render.BufferHeader, 0, capacity),
		strict: strict,
	}
}

func (t *tracker) insert(hdr *render.BufferHeader) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.held = append(t.held, hdr)
}

// take removes and returns the newest held buffer whose region starts at
// buf, or, unless strict, whose capacity is at least length. byAddress
// reports which condition matched.
func (t *tracker) take(buf []byte, length int) (hdr *render.BufferHeader, byAddress bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.held) - 1; i >= 0; i-- {
		h := t.held[i]
		addr := sameRegion(h.Data, buf)
		if !addr && (t.strict || h.AllocLen < length) {
			continue
		}

		t.held = append(t.held[:i], t.held[i+1:]...)
		return h, addr
	}
	return nil, false
}

// drain empties the tracker, returning what it held
func (t *tracker) drain() []*render.BufferHeader {
	t.mu.Lock()
	defer t.mu.Unlock()

	held := t.held
	t.held = nil
	return held
}

func (t *tracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}

func sameRegion(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return unsafe.SliceData(a) == unsafe.SliceData(b)
}
