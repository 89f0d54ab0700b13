//go:build linux

// ABOUTME: Tests for the ALSA output that need no sound card
// ABOUTME: Covers device maps, unopened writes and delay reads during a write
package output

import (
	"testing"
	"time"
)

func TestNewALSAMergesDevices(t *testing.T) {
	out, err := NewALSA(map[string]string{"local": "hw:2,1"})
	if err != nil {
		t.Fatalf("NewALSA: %v", err)
	}
	a := out.(*ALSA)
	if a.devices["hdmi"] != "hw:0,0" || a.devices["local"] != "hw:2,1" {
		t.Errorf("devices = %v", a.devices)
	}

	if _, err := NewALSA(map[string]string{"hdmi": "default"}); err == nil {
		t.Error("accepted a non-hw device")
	}
}

func TestALSAWriteBeforeOpen(t *testing.T) {
	out, _ := NewALSA(nil)
	if err := out.Write(make([]byte, 8)); err == nil {
		t.Error("Write succeeded on an unopened device")
	}
}

func TestALSADelayDoesNotWaitForWrite(t *testing.T) {
	out, _ := NewALSA(nil)
	a := out.(*ALSA)

	// Hold the write lock the way a blocking pcm write does
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	done := make(chan int, 1)
	go func() { done <- a.Delay() }()

	select {
	case d := <-done:
		if d != 0 {
			t.Errorf("Delay() = %d on an unopened device, want 0", d)
		}
	case <-time.After(time.Second):
		t.Fatal("Delay blocked behind an in-progress write")
	}
}
