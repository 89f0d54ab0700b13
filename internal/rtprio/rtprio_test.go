// ABOUTME: Tests for real-time scheduling helpers
// ABOUTME: Covers priority validation and the unprivileged path
package rtprio

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		priority int
		ok       bool
	}{
		{0, true},
		{1, true},
		{50, true},
		{99, true},
		{-1, false},
		{100, false},
	}

	for _, tt := range tests {
		if err := validate(tt.priority); (err == nil) != tt.ok {
			t.Errorf("validate(%d) = %v, want ok=%v", tt.priority, err, tt.ok)
		}
	}
}

func TestApplyZeroPriority(t *testing.T) {
	unlock, err := Apply(0)
	if err != nil {
		t.Fatalf("Apply(0): %v", err)
	}
	unlock()
}

func TestApplyRejectsOutOfRange(t *testing.T) {
	unlock, err := Apply(150)
	if err == nil {
		t.Error("Apply(150) succeeded")
	}
	unlock()
}
