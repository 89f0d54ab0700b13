// ABOUTME: PCM input source selection
// ABOUTME: Opens stdin or a file as the byte stream feeding playback
package ingest

import (
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/term"
)

// Stdin names the standard input source
const Stdin = "-"

// Open returns a reader for input: "-" or "" is stdin, anything else a
// file path
func Open(input string) (io.ReadCloser, error) {
	if input == "" || input == Stdin {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			log.Printf("Warning: reading PCM from a terminal; pipe audio into stdin")
		}
		return os.Stdin, nil
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	if info, err := f.Stat(); err == nil {
		log.Printf("Reading PCM from %s (%d bytes)", input, info.Size())
	}
	return f, nil
}
