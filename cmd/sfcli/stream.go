package main

import (
	"flag"
	"fmt"
	"time"

	"sfio/pkg/sfconfig"
	"sfio/pkg/sfstream"
	"sfio/sflog"
	"sfio/sftui"
	"sfio/sfweb"
)

func runStream(args []string, cfg *sfconfig.Config, log sflog.Logger) error {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	vecSize := fs.Int("vecsize", 512, "frames per simulated realtime callback")
	rate := fs.Int("rate", cfg.DefaultSampleRate, "sample rate assumed for the callback ticker")
	tui := fs.Bool("tui", false, "run the terminal monitor while streaming")
	web := fs.Bool("web", false, "run the websocket dashboard while streaming")
	port := fs.Int("port", 8080, "port for -web")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("stream: expected exactly one filename, got %d", fs.NArg())
	}
	filename := fs.Arg(0)

	reader := sfstream.NewReader(*vecSize,
		sfstream.WithLogger(log),
		sfstream.WithBufferBytesPerChannel(cfg.Stream.BufferBytes),
		sfstream.WithReadSize(cfg.Stream.ReadSize),
	)
	defer reader.Close()

	reader.Open(sfstream.OpenOptions{Filename: filename})
	if err := reader.Start(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}

	if *web {
		srv := sfweb.NewServer(reader, *port, log)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("sfweb server stopped", "error", err)
			}
		}()
		log.Info("sfweb dashboard listening", "port", *port)
	}

	if *tui {
		go driveStream(reader, *vecSize, *rate, log)
		return sftui.Run(reader)
	}

	driveStream(reader, *vecSize, *rate, log)
	return nil
}

// driveStream calls Perform on a ticker standing in for a realtime
// callback, at the cadence vecSize frames would occupy at rate Hz, until
// the stream reaches end-of-file.
func driveStream(reader *sfstream.Reader, vecSize, rate int, log sflog.Logger) {
	period := time.Second * time.Duration(vecSize) / time.Duration(rate)
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	// Snapshot doesn't expose channel count, so size generously; Perform
	// silently zeroes any channel slot beyond what the file actually has.
	const maxSupportedChannels = 8
	out := make([][]float32, maxSupportedChannels)
	for i := range out {
		out[i] = make([]float32, vecSize)
	}

	for {
		select {
		case <-reader.Done():
			log.Info("stream complete", "frames", reader.Snapshot().FramesDecoded)
			return
		case <-ticker.C:
			if reader.State() != sfstream.StateStream {
				continue
			}
			reader.Perform(out, vecSize)
		}
	}
}
