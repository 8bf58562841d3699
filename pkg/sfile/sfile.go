// Package sfile implements the synchronous, one-shot soundfile engine: a
// single blocking read or write of an entire multi-channel region between
// a file and caller-owned float32 vectors. It is not safe for concurrent
// use against the same instance and is meant to be driven from a single
// goroutine.
package sfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sfio/internal/sfcodec"
	"sfio/internal/sfheader"
	"sfio/sflog"
)

// ErrArg covers invalid flags, negative values where non-negative is
// required, too many channels, or a filename that looks like a flag.
var ErrArg = errors.New("sfile: invalid argument")

// SampBufSize is the chunk size, in bytes, used to stream file contents
// through the sample codec.
const SampBufSize = 4096

// RawOverride bypasses header parsing entirely: the caller asserts the
// layout instead of the parser discovering it. Used for headerless or
// non-standard files.
type RawOverride struct {
	HeaderSize     int64
	Channels       int
	BytesPerSample int
	BigEndian      bool
}

// ReadOptions configures Read.
type ReadOptions struct {
	Skip    int64
	MaxSize int64 // 0 means unbounded
	Resize  bool
	Raw     *RawOverride
}

// WriteOptions configures Write.
type WriteOptions struct {
	Skip       int64
	NFrames    int64 // 0 means "as many as the vectors hold"; negative is rejected with ErrArg
	Bytes      int   // 2, 3, or 4
	Normalize  bool
	Format     *sfheader.Format // nil infers from filename suffix
	BigEndian  *bool            // nil: container default; non-nil: caller request (NeXT only)
	SampleRate int32
	Log        sflog.Logger // nil: conflicting -big/-little requests on WAVE/AIFF go unlogged
}

// Result mirrors the original's info-outlet message: everything a caller
// needs to know about the file it just read or wrote.
type Result struct {
	SampleRate     int32
	HeaderSize     int64
	Channels       int
	BytesPerSample int
	BigEndian      bool
}

// EndianChar returns 'b' or 'l', matching the external command surface.
func (r Result) EndianChar() byte {
	if r.BigEndian {
		return 'b'
	}
	return 'l'
}

// Read parses filename's header (or applies opts.Raw), then decodes its
// audio payload into vecs, one slice per channel. It returns the number of
// frames actually read.
func Read(filename string, vecs [][]float32, opts ReadOptions) (Result, int64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Result{}, 0, fmt.Errorf("sfile: open %s: %w", filename, err)
	}
	defer f.Close()

	info, err := resolveReadInfo(f, opts.Raw)
	if err != nil {
		return Result{}, 0, err
	}

	skipBytes := opts.Skip * int64(info.BytesPerFrame())
	if skipBytes > 0 {
		if _, err := f.Seek(skipBytes, io.SeekCurrent); err != nil {
			return Result{}, 0, fmt.Errorf("sfile: seek past skip: %w", err)
		}
	}

	if opts.Resize {
		if err := resizeVectors(f, vecs, info, opts); err != nil {
			return Result{}, 0, err
		}
	}

	itemsRead, err := streamDecode(f, vecs, info)
	if err != nil {
		return Result{}, itemsRead, err
	}

	result := Result{
		SampleRate:     info.SampleRate,
		HeaderSize:     info.HeaderSize,
		Channels:       info.Channels,
		BytesPerSample: info.BytesPerSample,
		BigEndian:      info.BigEndian,
	}

	return result, itemsRead, nil
}

func resolveReadInfo(f *os.File, raw *RawOverride) (sfheader.Info, error) {
	if raw != nil {
		if raw.Channels < 1 || raw.Channels > sfheader.MaxChannels {
			return sfheader.Info{}, fmt.Errorf("%w: channels %d out of range", ErrArg, raw.Channels)
		}
		if _, err := f.Seek(raw.HeaderSize, io.SeekStart); err != nil {
			return sfheader.Info{}, fmt.Errorf("sfile: seek past raw header: %w", err)
		}
		return sfheader.Info{
			HeaderSize:     raw.HeaderSize,
			Channels:       raw.Channels,
			BytesPerSample: raw.BytesPerSample,
			BigEndian:      raw.BigEndian,
			ByteLimit:      sfheader.ByteLimitUnlimited,
		}, nil
	}

	info, err := sfheader.ParseHeader(f)
	if err != nil {
		return sfheader.Info{}, err
	}
	return info, nil
}

func resizeVectors(f *os.File, vecs [][]float32, info sfheader.Info, opts ReadOptions) error {
	cur, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("sfile: tell: %w", err)
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("sfile: seek end: %w", err)
	}
	if _, err := f.Seek(cur, io.SeekStart); err != nil {
		return fmt.Errorf("sfile: seek back: %w", err)
	}

	frameBytes := int64(info.BytesPerFrame())
	if frameBytes <= 0 {
		return fmt.Errorf("%w: zero-width frame", ErrArg)
	}

	frames := (end - cur) / frameBytes
	if limit := info.ByteLimit / frameBytes; limit < frames {
		frames = limit
	}
	if opts.MaxSize > 0 && opts.MaxSize < frames {
		frames = opts.MaxSize
	}
	if frames < 0 {
		frames = 0
	}

	for i := range vecs {
		vecs[i] = resizeFloat32(vecs[i], int(frames))
	}

	return nil
}

func resizeFloat32(v []float32, n int) []float32 {
	if cap(v) >= n {
		out := v[:n]
		for i := range out {
			out[i] = 0
		}
		return out
	}
	return make([]float32, n)
}

func streamDecode(f *os.File, vecs [][]float32, info sfheader.Info) (int64, error) {
	frameBytes := info.BytesPerFrame()
	if frameBytes <= 0 {
		return 0, fmt.Errorf("%w: zero-width frame", ErrArg)
	}

	framesPerChunk := SampBufSize / frameBytes
	if framesPerChunk < 1 {
		framesPerChunk = 1
	}
	buf := make([]byte, framesPerChunk*frameBytes)

	var itemsRead int64
	remaining := info.ByteLimit
	if capBytes := shortestLen(vecs) * int64(frameBytes); capBytes < remaining {
		remaining = capBytes
	}

	for {
		want := len(buf)
		if remaining >= 0 && int64(want) > remaining {
			want = int(remaining)
		}
		want -= want % frameBytes
		if want <= 0 {
			break
		}

		n, err := io.ReadFull(f, buf[:want])
		if n > 0 {
			frames := n / frameBytes
			if decErr := sfcodec.XferIn(info.Channels, vecs, int(itemsRead), frames, buf[:n], info.BytesPerSample, info.BigEndian, 1); decErr != nil {
				return itemsRead, decErr
			}
			itemsRead += int64(frames)
			remaining -= int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return itemsRead, fmt.Errorf("sfile: read: %w", err)
		}
	}

	zeroTail(vecs, info.Channels, itemsRead)

	return itemsRead, nil
}

// zeroTail clears every destination vector beyond itemsRead frames, and
// zeroes any vector entirely if its channel index is beyond info.Channels.
func zeroTail(vecs [][]float32, channels int, itemsRead int64) {
	for ch, v := range vecs {
		start := 0
		if ch < channels {
			start = int(itemsRead)
		}
		for i := start; i < len(v); i++ {
			v[i] = 0
		}
	}
}

// Write encodes frames from vecs into a new file, choosing a container by
// opts.Format or by filename suffix, and returns the number of frames
// actually written.
func Write(filename string, vecs [][]float32, opts WriteOptions) (Result, int64, error) {
	if opts.NFrames < 0 {
		return Result{}, 0, fmt.Errorf("%w: nframes must be >= 0", ErrArg)
	}
	if opts.Bytes != 2 && opts.Bytes != 3 && opts.Bytes != 4 {
		return Result{}, 0, fmt.Errorf("%w: bytes must be 2, 3, or 4", ErrArg)
	}

	format := resolveFormat(opts.Format, filename)
	if format == sfheader.AIFF && opts.Bytes == 4 {
		return Result{}, 0, fmt.Errorf("%w: AIFF cannot carry 32-bit float samples", ErrArg)
	}

	bigEndian := defaultEndian(format)
	if opts.BigEndian != nil {
		if format == sfheader.NeXT {
			bigEndian = *opts.BigEndian
		} else if *opts.BigEndian != bigEndian && opts.Log != nil {
			opts.Log.Warn("endian request ignored: format has a fixed byte order",
				"format", format, "requested_big", *opts.BigEndian)
		}
	}

	nframes := shortestLen(vecs) - opts.Skip
	if nframes < 0 {
		nframes = 0
	}
	if opts.NFrames > 0 && opts.NFrames < nframes {
		nframes = opts.NFrames
	}

	normFactor := sfcodec.PeakNormFactor(len(vecs), offsetVecs(vecs, opts.Skip), int(nframes), opts.Bytes, opts.Normalize)

	info := sfheader.Info{
		Format:         format,
		SampleRate:     opts.SampleRate,
		Channels:       len(vecs),
		BytesPerSample: opts.Bytes,
		BigEndian:      bigEndian,
	}

	f, err := os.Create(filename)
	if err != nil {
		return Result{}, 0, fmt.Errorf("sfile: create %s: %w", filename, err)
	}
	defer f.Close()

	headerSize, err := sfheader.EmitHeader(f, info, nframes)
	if err != nil {
		return Result{}, 0, fmt.Errorf("sfile: emit header: %w", err)
	}
	info.HeaderSize = headerSize

	itemsWritten, encErr := streamEncode(f, offsetVecs(vecs, opts.Skip), nframes, info, normFactor)

	if finErr := finalizeHeader(f, format, itemsWritten, info.BytesPerFrame(), bigEndian); finErr != nil && encErr == nil {
		encErr = fmt.Errorf("sfile: finalize header: %w", finErr)
	}

	result := Result{
		SampleRate:     info.SampleRate,
		HeaderSize:     headerSize,
		Channels:       info.Channels,
		BytesPerSample: info.BytesPerSample,
		BigEndian:      info.BigEndian,
	}

	return result, itemsWritten, encErr
}

func resolveFormat(explicit *sfheader.Format, filename string) sfheader.Format {
	if explicit != nil {
		return *explicit
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".aif", ".aiff":
		return sfheader.AIFF
	case ".snd", ".au":
		return sfheader.NeXT
	default:
		return sfheader.WAVE
	}
}

func defaultEndian(format sfheader.Format) bool {
	switch format {
	case sfheader.AIFF:
		return true
	case sfheader.WAVE:
		return false
	default:
		return false // NeXT defaults to little-endian unless requested otherwise
	}
}

func shortestLen(vecs [][]float32) int64 {
	if len(vecs) == 0 {
		return 0
	}
	shortest := int64(len(vecs[0]))
	for _, v := range vecs[1:] {
		if int64(len(v)) < shortest {
			shortest = int64(len(v))
		}
	}
	return shortest
}

// offsetVecs returns a view of vecs starting skip frames in, so peak-scan
// and encode both honor -skip uniformly.
func offsetVecs(vecs [][]float32, skip int64) [][]float32 {
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		if int64(len(v)) <= skip {
			out[i] = nil
			continue
		}
		out[i] = v[skip:]
	}
	return out
}

func streamEncode(f *os.File, vecs [][]float32, nframes int64, info sfheader.Info, normFactor float32) (int64, error) {
	frameBytes := info.BytesPerFrame()
	if frameBytes <= 0 {
		return 0, fmt.Errorf("%w: zero-width frame", ErrArg)
	}

	framesPerChunk := SampBufSize / frameBytes
	if framesPerChunk < 1 {
		framesPerChunk = 1
	}
	buf := make([]byte, framesPerChunk*frameBytes)

	var itemsWritten int64
	for itemsWritten < nframes {
		chunk := int64(framesPerChunk)
		if remaining := nframes - itemsWritten; chunk > remaining {
			chunk = remaining
		}

		n := int(chunk) * frameBytes
		if err := sfcodec.XferOut(info.Channels, vecs, int(itemsWritten), int(chunk), buf[:n], info.BytesPerSample, info.BigEndian, 1, normFactor); err != nil {
			return itemsWritten, err
		}

		if _, err := f.Write(buf[:n]); err != nil {
			return itemsWritten, fmt.Errorf("sfile: write: %w", err)
		}

		itemsWritten += chunk
	}

	return itemsWritten, nil
}

func finalizeHeader(f *os.File, format sfheader.Format, itemsWritten int64, bytesPerFrame int, bigEndian bool) error {
	switch format {
	case sfheader.WAVE:
		return sfheader.FinalizeWAVE(f, itemsWritten, bytesPerFrame)
	case sfheader.AIFF:
		return sfheader.FinalizeAIFF(f, itemsWritten, bytesPerFrame)
	case sfheader.NeXT:
		return sfheader.FinalizeNeXT(f, itemsWritten, bytesPerFrame, bigEndian)
	default:
		return nil
	}
}
