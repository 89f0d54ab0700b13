// ABOUTME: Render framework package documentation
// ABOUTME: Describes the component state machine and buffer ownership model
// Package render provides the media framework the playback session drives.
//
// A Framework is initialised once per process and creates components. The
// only component is "audio_render", whose input port (100) accepts
// interleaved PCM. Components move strictly along
//
//	Loaded -> Idle -> Executing -> Idle -> Loaded
//
// Port geometry and PCM parameters are set while Loaded, buffers are
// allocated once Idle, and buffers may only be acquired and submitted while
// Executing. Every buffer is in exactly one of: the free pool, held by the
// client, or in flight. A single render goroutine writes in-flight buffers
// to a Sink in submission order and returns them to the free pool.
//
// Example:
//
//	fw := render.NewFramework(func() (render.Sink, error) { return output.NewNull(), nil })
//	fw.Init()
//	comp, err := fw.CreateComponent(render.ComponentAudioRender,
//	    render.EnableInputBuffers|render.DisableAllPorts)
package render
