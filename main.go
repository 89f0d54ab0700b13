// ABOUTME: Entry point for the hdmiplay PCM streamer
// ABOUTME: Parses CLI flags, probes the board and runs the feed loop until stopped
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/hdmiplay/internal/discovery"
	"github.com/Resonate-Protocol/hdmiplay/internal/ingest"
	"github.com/Resonate-Protocol/hdmiplay/internal/platform"
	"github.com/Resonate-Protocol/hdmiplay/internal/rtprio"
	"github.com/Resonate-Protocol/hdmiplay/internal/ui"
	"github.com/Resonate-Protocol/hdmiplay/internal/version"
	"github.com/Resonate-Protocol/hdmiplay/pkg/audio"
	"github.com/Resonate-Protocol/hdmiplay/pkg/audio/output"
	"github.com/Resonate-Protocol/hdmiplay/pkg/playback"
	"github.com/Resonate-Protocol/hdmiplay/pkg/render"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// The input stream is always 8 channel signed 32-bit little-endian PCM
const (
	streamChannels = 8
	streamBitDepth = audio.BitDepth32
)

// stringList collects a repeatable string flag
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

var (
	backend     = flag.String("backend", output.DefaultBackend(), "Output backend: "+strings.Join(output.Backends(), ", "))
	destination = flag.String("dest", playback.DefaultDestination, "Output destination name (hdmi, local)")
	input       = flag.String("input", ingest.Stdin, "PCM input: - for stdin or a file path")
	listen      = flag.String("listen", "", "Accept PCM over WebSocket on this address instead of -input (e.g. :8927)")
	noMDNS      = flag.Bool("no-mdns", false, "Do not advertise the -listen endpoint over mDNS")
	buffers     = flag.Int("buffers", 20, "Number of pipeline buffers")
	frames      = flag.Int("frames", 1024, "Frames per buffer")
	pollMs      = flag.Int("poll-ms", 5, "Sleep between attempts to acquire a free buffer")
	throttleMs  = flag.Int("throttle-ms", 0, "Target pipeline latency in ms; 0 disables throttling")
	mappingFlag = flag.String("mapping", "auto", "Channel mapping: auto, natural or permuted")
	modelFile   = flag.String("model-file", platform.DefaultModelPath, "Board model descriptor")
	exitOnEOF   = flag.Bool("exit-on-eof", false, "Exit when the input ends instead of playing silence")
	strictMatch = flag.Bool("strict-match", false, "Require submitted buffers to match by address")
	rtPriority  = flag.Int("rt-priority", 0, "SCHED_FIFO priority for the feed thread (1-99, 0 disables)")
	tuiMode     = flag.String("tui", "auto", "Status TUI: auto, on or off")
	logFile     = flag.String("log-file", "hdmiplay.log", "Log file path")
	bufferMemMB = flag.Int("buffer-mem-mb", 0, "Cap on pipeline buffer memory in MiB (0 for no cap)")
	alsaDevices stringList
)

func init() {
	flag.Var(&alsaDevices, "alsa-device", "Map a destination to an ALSA device, dest=hw:C,D (repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <rate>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Streams %d channel s32le PCM at <rate> Hz to the %q output.\n\n", streamChannels, playback.DefaultDestination)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	rate, err := parseRate(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	useTUI, err := wantTUI(*tuiMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	if err := run(rate, useTUI); err != nil {
		log.Printf("Fatal: %v", err)
		if useTUI {
			fmt.Fprintf(os.Stderr, "hdmiplay: %v\n", err)
		}
		_ = f.Close()
		os.Exit(1)
	}
}

// parseRate parses the <rate> argument and checks it is playable
func parseRate(arg string) (int, error) {
	rate, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid sample rate %q", arg)
	}
	if rate < playback.MinSampleRate || rate > playback.MaxSampleRate {
		return 0, fmt.Errorf("sample rate %d outside %d-%d Hz", rate, playback.MinSampleRate, playback.MaxSampleRate)
	}
	return rate, nil
}

// wantTUI resolves the -tui flag; auto shows the TUI on a terminal
func wantTUI(mode string) (bool, error) {
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return term.IsTerminal(int(os.Stdout.Fd())), nil
	default:
		return false, fmt.Errorf("invalid -tui %q (want auto, on or off)", mode)
	}
}

// selectMapping resolves the -mapping flag, probing the board for auto
func selectMapping(mode, modelPath string) (platform.Model, audio.Mapping, error) {
	if mode == "auto" {
		return platform.Detect(modelPath)
	}

	mapping, err := audio.ParseMapping(mode)
	if err != nil {
		return platform.Unknown, mapping, err
	}
	model, _ := platform.Probe(modelPath)
	return model, mapping, nil
}

func run(rate int, useTUI bool) error {
	log.Printf("Starting %s %s", version.Product, version.Version)

	model, mapping, err := selectMapping(*mappingFlag, *modelFile)
	if err != nil {
		return fmt.Errorf("platform: %w", err)
	}
	log.Printf("Board: %s, %s channel mapping", model, mapping)

	if *rtPriority > 0 {
		if err := rtprio.LockMemory(); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	devices, err := output.ParseDevices(alsaDevices)
	if err != nil {
		return err
	}
	outputOpts := output.Options{Backend: *backend, Devices: devices}

	// Reject an unknown backend before touching the pipeline
	check, err := output.New(outputOpts)
	if err != nil {
		return err
	}
	_ = check.Close()

	fw := render.NewFramework(func() (render.Sink, error) {
		return output.New(outputOpts)
	})
	if *bufferMemMB > 0 {
		fw.SetMemoryLimit(*bufferMemMB << 20)
	}

	format := audio.Format{SampleRate: rate, Channels: streamChannels, BitDepth: streamBitDepth}
	session, err := playback.Create(fw, playback.Config{
		SampleRate:  rate,
		Channels:    streamChannels,
		BitDepth:    streamBitDepth,
		BufferCount: *buffers,
		BufferSize:  *frames * format.BytesPerFrame(),
		Destination: *destination,
		StrictMatch: *strictMatch,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("Error closing session: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Input: push endpoint or stdin/file
	var reader io.Reader
	var push *ingest.PushServer
	inputName := *input
	if *listen != "" {
		push = ingest.NewPushServer(ingest.PushConfig{Addr: *listen})
		if err := push.Start(); err != nil {
			return err
		}
		defer push.Stop()
		reader = push
		inputName = fmt.Sprintf("ws://%s%s", push.Addr(), push.Path())

		if !*noMDNS {
			adv := discovery.NewAdvertiser(discovery.Config{
				ServiceName: serviceName(),
				Port:        push.Port(),
				Path:        push.Path(),
				Info: []string{
					fmt.Sprintf("rate=%d", rate),
					fmt.Sprintf("channels=%d", streamChannels),
					"format=s32le",
				},
			})
			if err := adv.Start(); err != nil {
				log.Printf("Failed to start mDNS advertisement: %v", err)
			}
			defer adv.Stop()
		}
	} else {
		rc, err := ingest.Open(*input)
		if err != nil {
			return err
		}
		defer rc.Close()
		reader = rc
		if inputName == ingest.Stdin {
			inputName = "stdin"
		}
	}

	feeder := playback.NewFeeder(session, reader, playback.FeederConfig{
		Format:         session.Format(),
		Mapping:        mapping,
		PollInterval:   time.Duration(*pollMs) * time.Millisecond,
		ThrottleTarget: time.Duration(*throttleMs) * time.Millisecond,
		StopOnEOF:      *exitOnEOF,
	})

	g, gctx := errgroup.WithContext(ctx)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	g.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Printf("Received %s, shutting down", sig)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	// Unblock a feed loop waiting on input
	g.Go(func() error {
		<-gctx.Done()
		if push != nil {
			push.Stop()
		} else if c, ok := reader.(io.Closer); ok {
			_ = c.Close()
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()

		unlock, err := rtprio.Apply(*rtPriority)
		if err != nil {
			log.Printf("Warning: %v", err)
		}
		defer unlock()

		if err := feeder.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	if useTUI {
		status := func() ui.Status {
			latency, _ := session.Latency()
			s := ui.Status{
				SessionID:       session.ID(),
				Format:          session.Format().String(),
				Mapping:         mapping.String(),
				Board:           model.String(),
				Backend:         *backend,
				Destination:     *destination,
				Input:           inputName,
				Producer:        push != nil,
				State:           feeder.State().String(),
				Stats:           feeder.Stats(),
				LatencyFrames:   latency,
				SampleRate:      rate,
				Held:            session.Held(),
				BufferCount:     *buffers,
				FramesPerBuffer: session.FramesPerBuffer(),
				Completed:       session.Completed(),
			}
			if push != nil {
				s.ProducerConnected = push.Connected()
				s.ProducerBytes = push.Received()
				s.ProducerBuffered = push.Buffered()
			}
			return s
		}

		tui := ui.New(status(), push == nil && (*input == "" || *input == ingest.Stdin))

		g.Go(func() error {
			if err := tui.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			return nil
		})

		g.Go(func() error {
			ticker := time.NewTicker(250 * time.Millisecond)
			defer ticker.Stop()

			for {
				select {
				case <-gctx.Done():
					tui.Stop()
					return nil
				case <-tui.QuitChan():
					log.Printf("Received quit signal from TUI")
					cancel()
				case <-ticker.C:
					tui.Update(status())
				}
			}
		})
	}

	err = g.Wait()

	stats := feeder.Stats()
	log.Printf("Played %d buffers (%d bytes read, %d bytes silence)", stats.Submitted, stats.BytesRead, stats.SilenceBytes)
	return err
}

// serviceName returns the mDNS instance name for this host
func serviceName() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s", hostname, version.Product)
}
