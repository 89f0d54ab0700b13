// ABOUTME: Tests for the channel mapping policy
// ABOUTME: Tests effective widths, speaker layouts and the permutation table
package audio

import (
	"bytes"
	"testing"
)

func TestEffectiveChannels(t *testing.T) {
	expected := map[int]int{1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 6: 8, 7: 8, 8: 8}

	for n := 1; n <= MaxChannels; n++ {
		got := EffectiveChannels(n)
		if got != expected[n] {
			t.Errorf("EffectiveChannels(%d): expected %d, got %d", n, expected[n], got)
		}

		switch got {
		case 1, 2, 4, 8:
		default:
			t.Errorf("EffectiveChannels(%d) = %d is not a supported width", n, got)
		}
		if got < n {
			t.Errorf("EffectiveChannels(%d) = %d is narrower than the input", n, got)
		}
	}
}

func TestChannelLayout(t *testing.T) {
	tests := []struct {
		channels int
		expected Layout
	}{
		{1, Layout{SpeakerCF}},
		{2, Layout{SpeakerLF, SpeakerRF}},
		{3, Layout{SpeakerLF, SpeakerRF, SpeakerCF}},
		{4, Layout{SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS}},
		{5, Layout{SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS, SpeakerLR}},
		{6, Layout{SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS, SpeakerLR, SpeakerRR}},
		{7, Layout{SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS, SpeakerLR, SpeakerRR, SpeakerLS}},
		{8, Layout{SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS, SpeakerLR, SpeakerRR, SpeakerLS, SpeakerRS}},
		{0, Layout{}},
		{9, Layout{}},
	}

	for _, tt := range tests {
		got := ChannelLayout(tt.channels)
		if got != tt.expected {
			t.Errorf("ChannelLayout(%d): expected %v, got %v", tt.channels, tt.expected, got)
		}
	}
}

func TestChannelLayoutNeverUsesLFE(t *testing.T) {
	for n := 1; n <= MaxChannels; n++ {
		for slot, sp := range ChannelLayout(n) {
			if sp == SpeakerLFE {
				t.Errorf("layout %d assigns LFE to slot %d", n, slot)
			}
		}
	}
}

func TestPermuteFrame(t *testing.T) {
	// One 8ch frame of 32-bit samples, sample k holds byte value k+1
	src := make([]byte, 32)
	for ch := 0; ch < 8; ch++ {
		for b := 0; b < 4; b++ {
			src[ch*4+b] = byte(ch + 1)
		}
	}

	dst := make([]byte, 32)
	Permute(dst, src, 4)

	// [a0,a1,a6,a7,a3,a2,a4,a5]
	want := []int{0, 1, 6, 7, 3, 2, 4, 5}
	for slot, from := range want {
		if dst[slot*4] != byte(from+1) {
			t.Errorf("slot %d: expected input slot %d, got %d", slot, from, dst[slot*4]-1)
		}
	}
}

func TestPermuteIsNotAnInvolution(t *testing.T) {
	src := make([]byte, 16)
	for i := range src {
		src[i] = byte(i / 2)
	}

	once := make([]byte, 16)
	Permute(once, src, 2)
	twice := make([]byte, 16)
	Permute(twice, once, 2)

	if bytes.Equal(twice, src) {
		t.Error("applying the permutation twice should not restore the input")
	}

	// Twice: slot i takes input slot p[p[i]]
	p := Permutation8
	for slot := 0; slot < 8; slot++ {
		if twice[slot*2] != byte(p[p[slot]]) {
			t.Errorf("slot %d: expected %d, got %d", slot, p[p[slot]], twice[slot*2])
		}
	}
}

func TestPermuteMultipleFramesAndTail(t *testing.T) {
	frames := 3
	src := make([]byte, frames*16+5)
	for i := range src {
		src[i] = byte(i)
	}
	dst := make([]byte, len(src))
	Permute(dst, src, 2)

	for f := 0; f < frames; f++ {
		for slot, from := range Permutation8 {
			o := f*16 + slot*2
			i := f*16 + from*2
			if !bytes.Equal(dst[o:o+2], src[i:i+2]) {
				t.Errorf("frame %d slot %d mismatch", f, slot)
			}
		}
	}

	if !bytes.Equal(dst[frames*16:], src[frames*16:]) {
		t.Error("trailing partial frame should be copied unchanged")
	}
}

func TestMapping(t *testing.T) {
	if !PermutedMapping.Reorders(8) {
		t.Error("permuted mapping should reorder 8ch streams")
	}
	if !PermutedMapping.Reorders(6) {
		t.Error("permuted mapping should reorder streams widened to 8ch")
	}
	if PermutedMapping.Reorders(2) {
		t.Error("permuted mapping should not reorder stereo")
	}
	if NaturalMapping.Reorders(8) {
		t.Error("natural mapping should never reorder")
	}

	m, err := ParseMapping("permuted")
	if err != nil || m != PermutedMapping {
		t.Errorf("expected permuted, got %v (%v)", m, err)
	}
	if _, err := ParseMapping("auto"); err == nil {
		t.Error("expected error for unknown mapping")
	}
	if NaturalMapping.String() != "natural" {
		t.Errorf("unexpected name %q", NaturalMapping.String())
	}
}
