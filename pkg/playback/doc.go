// ABOUTME: Playback package documentation
// ABOUTME: Describes the session lifecycle, buffer tracking and feed loop
// Package playback streams interleaved PCM into an audio_render pipeline.
//
// Create brings a component from Loaded to Executing; Close walks it back
// and releases the framework. Between the two, Acquire hands out free
// buffers without blocking and Submit returns them filled. A Feeder runs the
// steady-state loop: acquire (polling while none are free), read one
// buffer from the input, zero-fill on a short read, optionally reorder
// 8-channel frames, and submit.
//
// Example:
//
//	session, err := playback.Create(fw, playback.Config{
//	    SampleRate: 48000, Channels: 8, BitDepth: 32,
//	    BufferCount: 20, BufferSize: 32768,
//	})
//	defer session.Close()
//
//	feeder := playback.NewFeeder(session, os.Stdin, playback.FeederConfig{
//	    Format:  session.Format(),
//	    Mapping: audio.PermutedMapping,
//	})
//	err = feeder.Run(ctx)
package playback
