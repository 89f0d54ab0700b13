// ABOUTME: Audio output tests
// ABOUTME: Verifies backend selection, device parsing and null pacing
package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
)

func TestOtoImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
	var _ Output = (*Null)(nil)
}

func TestNewBackend(t *testing.T) {
	out, err := New(Options{Backend: "null"})
	if err != nil {
		t.Fatalf("New(null): %v", err)
	}
	if _, ok := out.(*Null); !ok {
		t.Errorf("New(null) returned %T", out)
	}

	if _, err := New(Options{Backend: "pulse"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestDefaultBackendIsAvailable(t *testing.T) {
	def := DefaultBackend()
	for _, b := range Backends() {
		if b == def {
			return
		}
	}
	t.Errorf("DefaultBackend() = %q, not in %v", def, Backends())
}

func TestParseHW(t *testing.T) {
	tests := []struct {
		in           string
		card, device uint
		ok           bool
	}{
		{"hw:0,0", 0, 0, true},
		{"hw:1,3", 1, 3, true},
		{"hw:2", 2, 0, true},
		{"plughw:0,0", 0, 0, false},
		{"hw:x,0", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			card, device, err := parseHW(tt.in)
			if tt.ok != (err == nil) {
				t.Fatalf("parseHW(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			}
			if tt.ok && (card != tt.card || device != tt.device) {
				t.Errorf("parseHW(%q) = %d,%d, want %d,%d", tt.in, card, device, tt.card, tt.device)
			}
		})
	}
}

func TestParseDevices(t *testing.T) {
	devices, err := ParseDevices([]string{"hdmi=hw:0,0", "local=hw:1,0"})
	if err != nil {
		t.Fatalf("ParseDevices: %v", err)
	}
	if devices["hdmi"] != "hw:0,0" || devices["local"] != "hw:1,0" {
		t.Errorf("devices = %v", devices)
	}

	if _, err := ParseDevices([]string{"hdmi"}); err == nil {
		t.Error("expected error for entry without '='")
	}
	if _, err := ParseDevices([]string{"hdmi=default"}); err == nil {
		t.Error("expected error for non-hw device")
	}
}

func TestFrontPair(t *testing.T) {
	// Two 4-channel frames of 16-bit samples
	src := []byte{
		1, 1, 2, 2, 3, 3, 4, 4,
		5, 5, 6, 6, 7, 7, 8, 8,
	}
	dst := make([]byte, 8)

	n := frontPair(dst, src, 4, 2)
	want := []byte{1, 1, 2, 2, 5, 5, 6, 6}
	if n != 8 || !bytes.Equal(dst, want) {
		t.Errorf("frontPair = %v (%d), want %v", dst, n, want)
	}

	stereo := []byte{9, 9, 8, 8}
	out := make([]byte, 4)
	if n := frontPair(out, stereo, 2, 2); n != 4 || !bytes.Equal(out, stereo) {
		t.Errorf("stereo passthrough = %v", out)
	}
}

func TestNullPacing(t *testing.T) {
	clock := time.Unix(0, 0)
	var slept time.Duration

	n := NewNull(true)
	n.now = func() time.Time { return clock }
	n.sleep = func(d time.Duration) {
		slept += d
		clock = clock.Add(d)
	}

	format := audio.Format{SampleRate: 1000, Channels: 2, BitDepth: 16}
	if err := n.Open(format); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// 50ms of audio fits in the device buffer without sleeping
	if err := n.Write(make([]byte, 50*format.BytesPerFrame())); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if slept != 0 {
		t.Errorf("slept %v for data within the device buffer", slept)
	}
	if d := n.Delay(); d != 50 {
		t.Errorf("Delay() = %d, want 50", d)
	}

	// Another 100ms pushes 50ms past the buffer
	n.Write(make([]byte, 100*format.BytesPerFrame()))
	if slept != 50*time.Millisecond {
		t.Errorf("slept %v, want 50ms", slept)
	}
	if d := n.Delay(); d != 100 {
		t.Errorf("Delay() = %d, want 100", d)
	}

	if got := n.written.Load(); got != int64(150*format.BytesPerFrame()) {
		t.Errorf("discarded %d bytes", got)
	}
}

func TestNullUnpaced(t *testing.T) {
	n := NewNull(false)
	if err := n.Write([]byte{0}); err == nil {
		t.Error("expected error writing before Open")
	}

	n.Open(audio.Format{SampleRate: 48000, Channels: 8, BitDepth: 32})
	if err := n.Write(make([]byte, 1<<20)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n.Delay() != 0 {
		t.Errorf("unpaced Delay() = %d, want 0", n.Delay())
	}
}
