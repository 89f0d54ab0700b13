// ABOUTME: WebSocket push endpoint for PCM input
// ABOUTME: Buffers binary messages from one producer in a ring buffer read by the feed loop
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smallnest/ringbuffer"
)

// Push endpoint defaults
const (
	DefaultPushPath   = "/pcm"
	DefaultBufferSize = 1 << 20

	// waitRecheck bounds how long a blocked reader or writer sleeps
	// before rechecking the ring
	waitRecheck = 10 * time.Millisecond
)

// PushConfig configures the push endpoint
type PushConfig struct {
	Addr       string // Listen address, e.g. ":8927"
	Path       string
	BufferSize int // Ring capacity in bytes
}

// PushServer accepts PCM over a WebSocket and exposes it as an io.Reader.
// Only one producer may be connected at a time.
type PushServer struct {
	config   PushConfig
	upgrader websocket.Upgrader
	ring     *ringbuffer.RingBuffer

	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup

	dataReady  chan struct{}
	spaceReady chan struct{}
	stopChan   chan struct{}
	stopOnce   sync.Once

	active      atomic.Bool
	received    atomic.Uint64
	connections atomic.Uint64
}

// NewPushServer creates an unstarted push endpoint
func NewPushServer(config PushConfig) *PushServer {
	if config.Path == "" {
		config.Path = DefaultPushPath
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}

	return &PushServer{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Producers are local pipeline processes, not browsers
				return r.Header.Get("Origin") == ""
			},
		},
		ring:       ringbuffer.New(config.BufferSize),
		dataReady:  make(chan struct{}, 1),
		spaceReady: make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}
}

// Start listens and serves in the background
func (s *PushServer) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleWebSocket)
	s.httpServer = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Push server error: %v", err)
		}
	}()

	log.Printf("Accepting PCM on ws://%s%s", ln.Addr(), s.config.Path)
	return nil
}

// Addr returns the listening address once started
func (s *PushServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the listening TCP port once started
func (s *PushServer) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Path returns the WebSocket path
func (s *PushServer) Path() string {
	return s.config.Path
}

// Connected reports whether a producer is attached
func (s *PushServer) Connected() bool {
	return s.active.Load()
}

// Received returns total PCM bytes accepted
func (s *PushServer) Received() uint64 {
	return s.received.Load()
}

// Buffered returns bytes waiting to be read
func (s *PushServer) Buffered() int {
	return s.ring.Length()
}

// Read blocks until buffered PCM is available. After Stop it drains what
// is left and then returns io.EOF.
func (s *PushServer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		n, _ := s.ring.TryRead(p)
		if n > 0 {
			notify(s.spaceReady)
			return n, nil
		}

		select {
		case <-s.stopChan:
			if s.ring.Length() == 0 {
				return 0, io.EOF
			}
		case <-s.dataReady:
		case <-time.After(waitRecheck):
		}
	}
}

// Stop closes the endpoint; readers see io.EOF once the ring is empty
func (s *PushServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.httpServer.Shutdown(ctx); err != nil {
				log.Printf("Push server shutdown error: %v", err)
			}
		}
		s.wg.Wait()
	})
}

// Close implements io.Closer
func (s *PushServer) Close() error {
	s.Stop()
	return nil
}

func (s *PushServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.active.CompareAndSwap(false, true) {
		http.Error(w, "a producer is already connected", http.StatusConflict)
		return
	}
	defer s.active.Store(false)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.stopChan:
			conn.Close()
		case <-done:
		}
	}()

	id := s.connections.Add(1)
	log.Printf("Producer %d connected from %s", id, r.RemoteAddr)

	var total uint64
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Producer %d read error: %v", id, err)
			}
			break
		}
		if msgType != websocket.BinaryMessage {
			log.Printf("Producer %d sent non-binary message, ignoring", id)
			continue
		}

		if !s.write(data) {
			break
		}
		total += uint64(len(data))
	}

	log.Printf("Producer %d disconnected after %d bytes", id, total)
}

// write copies data into the ring, waiting for space. It returns false if
// the server stopped first.
func (s *PushServer) write(data []byte) bool {
	chunkMax := max(s.config.BufferSize/2, 1)

	for len(data) > 0 {
		chunk := data[:min(len(data), chunkMax)]

		for s.ring.Free() < len(chunk) {
			select {
			case <-s.stopChan:
				return false
			case <-s.spaceReady:
			case <-time.After(waitRecheck):
			}
		}

		n, err := s.ring.Write(chunk)
		if err != nil && n == 0 {
			log.Printf("Ring buffer write failed: %v", err)
			return false
		}
		s.received.Add(uint64(n))
		notify(s.dataReady)
		data = data[n:]
	}
	return true
}

// notify signals ch without blocking
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
