package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sfio/internal/sfheader"
	"sfio/pkg/sfile"
	"sfio/sflog"
)

func runRead(args []string, log sflog.Logger) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	skip := fs.Int64("skip", 0, "frames to skip before reading")
	raw := fs.String("raw", "", "header_size,channels,bytes_per_sample,endian(b|l) to bypass header parsing")
	resize := fs.Bool("resize", false, "resize destination vectors to the file's remaining frame count")
	maxSize := fs.Int64("maxsize", 0, "cap on frames read when -resize is set (0 = unbounded)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("read: expected exactly one filename, got %d", fs.NArg())
	}
	filename := fs.Arg(0)

	opts := sfile.ReadOptions{Skip: *skip, MaxSize: *maxSize, Resize: *resize}
	if *raw != "" {
		rawOverride, err := parseRawOverride(*raw)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		opts.Raw = rawOverride
	}

	channels, err := channelCount(filename, opts.Raw)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	const defaultFrames = 1 << 20
	vecs := make([][]float32, channels)
	for ch := range vecs {
		if *resize {
			vecs[ch] = []float32{}
		} else {
			vecs[ch] = make([]float32, defaultFrames)
		}
	}

	result, frames, err := sfile.Read(filename, vecs, opts)
	if err != nil {
		log.Error("read failed", "file", filename, "error", err)
		return err
	}

	fmt.Println(newSoundfileResult("read", filename, result, frames))
	log.Info("read complete", "file", filename, "frames", frames)
	return nil
}

// channelCount peeks at filename's channel count without consuming the
// caller's eventual read: raw overrides already carry it, otherwise a
// throwaway header parse on a separate handle answers the question.
func channelCount(filename string, raw *sfile.RawOverride) (int, error) {
	if raw != nil {
		return raw.Channels, nil
	}

	f, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	info, err := sfheader.ParseHeader(f)
	if err != nil {
		return 0, err
	}
	return info.Channels, nil
}

// parseRawOverride parses "header_size,channels,bytes_per_sample,endian".
func parseRawOverride(s string) (*sfile.RawOverride, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid -raw %q: want header_size,channels,bytes_per_sample,endian", s)
	}

	headerSize, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -raw header_size %q: %w", parts[0], err)
	}
	channels, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid -raw channels %q: %w", parts[1], err)
	}
	bytesPerSample, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("invalid -raw bytes_per_sample %q: %w", parts[2], err)
	}

	var bigEndian bool
	switch strings.ToLower(parts[3]) {
	case "b":
		bigEndian = true
	case "l":
		bigEndian = false
	default:
		return nil, fmt.Errorf("invalid -raw endian %q: want b or l", parts[3])
	}

	return &sfile.RawOverride{
		HeaderSize:     headerSize,
		Channels:       channels,
		BytesPerSample: bytesPerSample,
		BigEndian:      bigEndian,
	}, nil
}
