// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface with oto, ALSA and null backends
// Package output provides the sinks the audio_render component writes to.
//
// The oto backend plays through the system mixer and folds multichannel
// streams down to the front pair. The ALSA backend (linux only) opens a raw
// hw:C,D device per destination and passes all channels through. The null
// backend discards audio at real-time pace for headless runs.
//
// Example:
//
//	out, err := output.New(output.Options{Backend: output.BackendALSA,
//	    Devices: map[string]string{"hdmi": "hw:0,0"}})
//	err = out.Open(audio.Format{SampleRate: 48000, Channels: 8, BitDepth: 32})
//	err = out.Write(pcm)
package output
