package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"

	"sfio/internal/sfheader"
	"sfio/pkg/sfconfig"
	"sfio/pkg/sfile"
	"sfio/sflog"
)

func runWrite(args []string, cfg *sfconfig.Config, log sflog.Logger) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	skip := fs.Int64("skip", 0, "frames to skip from each -in file before writing")
	nframes := fs.Int64("nframes", 0, "frames to write (0 = as many as the shortest -in file holds)")
	bytesPerSample := fs.Int("bytes", 2, "bytes per sample: 2, 3, or 4")
	normalize := fs.Bool("normalize", false, "scale so the loudest sample reaches full scale")
	wave := fs.Bool("wave", false, "write a WAVE container (default: infer from filename suffix)")
	aiff := fs.Bool("aiff", false, "write an AIFF container")
	nextstep := fs.Bool("nextstep", false, "write a NeXT/Sun container")
	big := fs.Bool("big", false, "force big-endian samples (NeXT only)")
	little := fs.Bool("little", false, "force little-endian samples (NeXT only)")
	rate := fs.Int("rate", cfg.DefaultSampleRate, "sample rate in Hz")
	var in stringSlice
	fs.Var(&in, "in", "raw float32 sample file for one channel; repeat for multiple channels")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("write: expected exactly one filename, got %d", fs.NArg())
	}
	filename := fs.Arg(0)
	if len(in) == 0 {
		return fmt.Errorf("write: at least one -in is required")
	}

	format, err := resolveWriteFormat(*wave, *aiff, *nextstep)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	vecs := make([][]float32, len(in))
	for i, path := range in {
		samples, err := readRawFloat32(path)
		if err != nil {
			return fmt.Errorf("write: %s: %w", path, err)
		}
		vecs[i] = samples
	}

	opts := sfile.WriteOptions{
		Skip:       *skip,
		NFrames:    *nframes,
		Bytes:      *bytesPerSample,
		Normalize:  *normalize,
		Format:     format,
		SampleRate: int32(*rate),
		Log:        log,
	}
	if *big || *little {
		be := *big
		opts.BigEndian = &be
	}

	result, frames, err := sfile.Write(filename, vecs, opts)
	if err != nil {
		log.Error("write failed", "file", filename, "error", err)
		return err
	}

	fmt.Println(newSoundfileResult("write", filename, result, frames))
	log.Info("write complete", "file", filename, "frames", frames)
	return nil
}

// resolveWriteFormat returns the explicitly requested container, or nil if
// none of -wave/-aiff/-nextstep was set, so sfile.Write falls back to its
// own filename-suffix inference instead of the CLI silently forcing WAVE.
func resolveWriteFormat(wave, aiff, nextstep bool) (*sfheader.Format, error) {
	n := 0
	for _, b := range []bool{wave, aiff, nextstep} {
		if b {
			n++
		}
	}
	if n > 1 {
		return nil, fmt.Errorf("only one of -wave, -aiff, -nextstep may be set")
	}
	switch {
	case aiff:
		f := sfheader.AIFF
		return &f, nil
	case nextstep:
		f := sfheader.NeXT
		return &f, nil
	case wave:
		f := sfheader.WAVE
		return &f, nil
	default:
		return nil, nil
	}
}

// readRawFloat32 reads a flat little-endian float32 sample file, the
// format sfcli expects for -in channel inputs.
func readRawFloat32(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of 4 bytes", len(data))
	}

	out := make([]float32, len(data)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
