// ABOUTME: Playback error taxonomy
// ABOUTME: Sentinel errors matched with errors.Is by callers
package playback

import "errors"

var (
	// ErrConfiguration rejects session parameters before any framework call
	ErrConfiguration = errors.New("invalid session configuration")

	// ErrHardwareInit means pipeline bring-up failed and was rolled back
	ErrHardwareInit = errors.New("pipeline initialization failed")

	// ErrBufferProtocol means the client's buffer bookkeeping is corrupt.
	// ErrNotFound and ErrInvalidLength always come wrapped with it.
	ErrBufferProtocol = errors.New("buffer protocol violation")
	ErrNotFound       = errors.New("buffer not held by client")
	ErrInvalidLength  = errors.New("length is not a whole number of frames")

	ErrDestination = errors.New("invalid destination")
	ErrClosed      = errors.New("session closed")
)
