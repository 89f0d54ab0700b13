// ABOUTME: Channel mapping policy for multichannel output
// ABOUTME: Effective widths, speaker layouts and the 8-channel permutation table
package audio

import "fmt"

// MaxChannels is the widest layout a sink is configured with
const MaxChannels = 8

// Speaker identifies the role assigned to one interleaved slot
type Speaker int

const (
	SpeakerNone Speaker = iota
	SpeakerLF           // Front left
	SpeakerRF           // Front right
	SpeakerCF           // Front center
	SpeakerLFE          // Low frequency effects
	SpeakerLR           // Rear left
	SpeakerRR           // Rear right
	SpeakerLS           // Side left
	SpeakerRS           // Side right
	SpeakerCS           // Back center
)

var speakerNames = [...]string{"--", "LF", "RF", "CF", "LFE", "LR", "RR", "LS", "RS", "CS"}

func (s Speaker) String() string {
	if s < 0 || int(s) >= len(speakerNames) {
		return fmt.Sprintf("Speaker(%d)", int(s))
	}
	return speakerNames[s]
}

// Layout holds the speaker role of each output slot
type Layout [MaxChannels]Speaker

// channelLayouts is indexed by declared channel count. Slot 3 carries CS
// rather than LFE: some AV receivers refuse 8ch streams that declare LFE.
var channelLayouts = [MaxChannels + 1]Layout{
	1: {SpeakerCF},
	2: {SpeakerLF, SpeakerRF},
	3: {SpeakerLF, SpeakerRF, SpeakerCF},
	4: {SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS},
	5: {SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS, SpeakerLR},
	6: {SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS, SpeakerLR, SpeakerRR},
	7: {SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS, SpeakerLR, SpeakerRR, SpeakerLS},
	8: {SpeakerLF, SpeakerRF, SpeakerCF, SpeakerCS, SpeakerLR, SpeakerRR, SpeakerLS, SpeakerRS},
}

// EffectiveChannels rounds a declared channel count up to 1, 2, 4 or 8
func EffectiveChannels(n int) int {
	switch {
	case n > 4:
		return 8
	case n > 2:
		return 4
	default:
		return n
	}
}

// ChannelLayout returns the speaker table for a declared channel count.
// Counts outside 1..8 yield an empty layout.
func ChannelLayout(n int) Layout {
	if n < 1 || n > MaxChannels {
		return Layout{}
	}
	return channelLayouts[n]
}

// Permutation8 maps output slot i to input slot Permutation8[i]. It
// compensates for receivers that swap the rear and side pairs.
var Permutation8 = [MaxChannels]int{0, 1, 6, 7, 3, 2, 4, 5}

// Mapping selects how samples are laid out before submission
type Mapping int

const (
	NaturalMapping Mapping = iota
	PermutedMapping
)

func (m Mapping) String() string {
	switch m {
	case NaturalMapping:
		return "natural"
	case PermutedMapping:
		return "permuted"
	default:
		return fmt.Sprintf("Mapping(%d)", int(m))
	}
}

// ParseMapping parses "natural" or "permuted"
func ParseMapping(s string) (Mapping, error) {
	switch s {
	case "natural":
		return NaturalMapping, nil
	case "permuted":
		return PermutedMapping, nil
	default:
		return 0, fmt.Errorf("unknown channel mapping %q (want natural or permuted)", s)
	}
}

// Reorders reports whether samples must be rewritten after reading
func (m Mapping) Reorders(channels int) bool {
	return m == PermutedMapping && EffectiveChannels(channels) == MaxChannels
}

// Permute writes the 8-channel frames of src into dst through
// Permutation8. sampleBytes is 2 or 4. Trailing bytes that do not form a
// whole frame are copied unchanged.
func Permute(dst, src []byte, sampleBytes int) {
	frameBytes := sampleBytes * MaxChannels
	n := min(len(dst), len(src))
	frames := n / frameBytes

	for f := 0; f < frames; f++ {
		base := f * frameBytes
		for slot, from := range Permutation8 {
			o := base + slot*sampleBytes
			i := base + from*sampleBytes
			copy(dst[o:o+sampleBytes], src[i:i+sampleBytes])
		}
	}

	copy(dst[frames*frameBytes:n], src[frames*frameBytes:n])
}
