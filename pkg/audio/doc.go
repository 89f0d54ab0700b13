// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, the channel mapping policy and sample conversions
// Package audio provides the PCM format description and channel policy
// shared by the render pipeline and the feed loop.
//
// Channel counts are rounded up to the width the sink is configured with:
//   - 1 and 2 are kept as is
//   - 3 becomes 4
//   - 5, 6 and 7 become 8
//
// Each declared count has a fixed speaker layout (see ChannelLayout). For
// 8-channel streams a Mapping selects whether frames are submitted as read
// or reordered through Permutation8.
//
// Example:
//
//	format := audio.Format{
//	    SampleRate: 48000,
//	    Channels:   6,
//	    BitDepth:   32,
//	}
//
//	format.OutputChannels() // 8
//	format.BytesPerFrame()  // 32
package audio
