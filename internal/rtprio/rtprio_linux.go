//go:build linux

// ABOUTME: Linux real-time scheduling via golang.org/x/sys/unix
// ABOUTME: Locks memory and moves the calling thread to SCHED_FIFO
package rtprio

import (
	"fmt"
	"log"
	"runtime"

	"golang.org/x/sys/unix"
)

// LockMemory locks current and future pages into RAM
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall: %w", err)
	}
	log.Printf("Process memory locked")
	return nil
}

// Apply pins the calling goroutine to its OS thread and, for a non-zero
// priority, switches the thread to SCHED_FIFO. The returned func undoes
// the pinning and must run on the same goroutine.
func Apply(priority int) (func(), error) {
	if err := validate(priority); err != nil {
		return func() {}, err
	}

	runtime.LockOSThread()
	if priority == 0 {
		return runtime.UnlockOSThread, nil
	}

	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		runtime.UnlockOSThread()
		return func() {}, fmt.Errorf("sched_setattr SCHED_FIFO %d: %w", priority, err)
	}

	log.Printf("Feed thread running SCHED_FIFO priority %d", priority)

	// The thread keeps its policy, so it is not returned to the pool
	return func() {}, nil
}
