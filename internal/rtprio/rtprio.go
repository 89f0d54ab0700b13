// ABOUTME: Real-time scheduling helpers for the feed loop
// ABOUTME: Shared priority validation; platform code lives in build-tagged files
package rtprio

import (
	"errors"
	"fmt"
)

// Valid SCHED_FIFO priorities
const (
	MinPriority = 1
	MaxPriority = 99
)

// ErrUnsupported is returned where real-time scheduling is unavailable
var ErrUnsupported = errors.New("real-time scheduling not supported on this platform")

func validate(priority int) error {
	if priority != 0 && (priority < MinPriority || priority > MaxPriority) {
		return fmt.Errorf("real-time priority %d outside %d-%d", priority, MinPriority, MaxPriority)
	}
	return nil
}
