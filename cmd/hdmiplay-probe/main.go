// ABOUTME: Board probe utility
// ABOUTME: Prints the detected board model and the channel mapping hdmiplay would use
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Resonate-Protocol/hdmiplay/internal/platform"
	"github.com/Resonate-Protocol/hdmiplay/internal/version"
	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
	"github.com/Resonate-Protocol/hdmiplay/pkg/audio/output"
)

var (
	modelFile = flag.String("model-file", platform.DefaultModelPath, "Board model descriptor")
	channels  = flag.Int("channels", audio.MaxChannels, "Channel count to show the layout for")
)

func main() {
	flag.Parse()

	fmt.Printf("%s %s board probe\n", version.Product, version.Version)
	fmt.Printf("Descriptor: %s\n", *modelFile)

	model, mapping, err := platform.Detect(*modelFile)
	fmt.Printf("Model:      %s\n", model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mapping:    %s\n", mapping)
	fmt.Printf("Backends:   %v (default %s)\n", output.Backends(), output.DefaultBackend())

	if *channels < 1 || *channels > audio.MaxChannels {
		fmt.Fprintf(os.Stderr, "Error: -channels must be 1-%d\n", audio.MaxChannels)
		os.Exit(1)
	}

	effective := audio.EffectiveChannels(*channels)
	layout := audio.ChannelLayout(*channels)
	fmt.Printf("Layout for %d channels (%d effective):\n", *channels, effective)
	for slot, speaker := range layout[:effective] {
		source := slot
		if mapping.Reorders(*channels) {
			source = audio.Permutation8[slot]
		}
		fmt.Printf("  slot %d <- input channel %d  %s\n", slot, source, speaker)
	}
}
