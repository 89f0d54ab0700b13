//go:build !linux

// ABOUTME: Real-time scheduling stubs for non-linux platforms
// ABOUTME: Priority 0 succeeds; anything else reports ErrUnsupported
package rtprio

import "runtime"

// LockMemory is unsupported off linux
func LockMemory() error {
	return ErrUnsupported
}

// Apply pins the calling goroutine to its thread; priorities are unsupported
func Apply(priority int) (func(), error) {
	if err := validate(priority); err != nil {
		return func() {}, err
	}
	if priority != 0 {
		return func() {}, ErrUnsupported
	}

	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
