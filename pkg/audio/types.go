// ABOUTME: Audio type definitions
// ABOUTME: Defines the PCM stream format and sample conversion helpers
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Supported PCM bit depths
const (
	BitDepth16 = 16
	BitDepth32 = 32
)

// Format describes an interleaved signed little-endian PCM stream
type Format struct {
	SampleRate int
	Channels   int // Declared channel count (1-8)
	BitDepth   int // 16 or 32
}

// OutputChannels returns the channel count presented to the sink
func (f Format) OutputChannels() int {
	return EffectiveChannels(f.Channels)
}

// SampleBytes returns the size of a single sample in bytes
func (f Format) SampleBytes() int {
	return f.BitDepth / 8
}

// BytesPerFrame returns the size of one frame at the effective width
func (f Format) BytesPerFrame() int {
	return BytesPerFrame(f.BitDepth, f.Channels)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz %dch(%d) s%dle", f.SampleRate, f.Channels, f.OutputChannels(), f.BitDepth)
}

// BytesPerFrame computes bitDepth/8 x effective output width
func BytesPerFrame(bitDepth, channels int) int {
	return (bitDepth * EffectiveChannels(channels)) >> 3
}

// SampleToInt16 converts a full-scale 32-bit sample to 16-bit
func SampleToInt16(sample int32) int16 {
	return int16(sample >> 16)
}

// SampleToFloat32 converts a full-scale 32-bit sample to [-1, 1)
func SampleToFloat32(sample int32) float32 {
	return float32(sample) / 2147483648.0
}

// Int16ToFloat32 converts a 16-bit sample to [-1, 1)
func Int16ToFloat32(sample int16) float32 {
	return float32(sample) / 32768.0
}

// ConvertToFloat32LE rewrites interleaved s16le or s32le PCM as f32le.
// dst must hold len(src)/sampleBytes*4 bytes.
func ConvertToFloat32LE(dst, src []byte, bitDepth int) (int, error) {
	sampleBytes := bitDepth / 8
	if sampleBytes != 2 && sampleBytes != 4 {
		return 0, fmt.Errorf("unsupported bit depth: %d (supported: 16, 32)", bitDepth)
	}

	samples := len(src) / sampleBytes
	if len(dst) < samples*4 {
		return 0, fmt.Errorf("destination too small: need %d bytes, have %d", samples*4, len(dst))
	}

	for i := 0; i < samples; i++ {
		var v float32
		if sampleBytes == 2 {
			v = Int16ToFloat32(int16(binary.LittleEndian.Uint16(src[i*2:])))
		} else {
			v = SampleToFloat32(int32(binary.LittleEndian.Uint32(src[i*4:])))
		}
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}

	return samples * 4, nil
}
