package sfheader

import (
	"encoding/binary"
	"fmt"
	"io"
)

// nextHeaderSize is the fixed on-disk size of a NeXT/Sun header: magic,
// onset, length, format, sample_rate, channels, info.
const nextHeaderSize = 28

// parseNeXT continues after the 16-byte peek, which already covers magic,
// onset, length, and format; it reads the remaining sample_rate, channels,
// and info fields itself.
func parseNeXT(cr *countingReader, peek []byte, bigEndian bool) (Info, error) {
	order := byteOrder(bigEndian)

	onset := order.Uint32(peek[4:8])
	formatCode := order.Uint32(peek[12:16])

	rest, err := readFull(cr, 12)
	if err != nil {
		return Info{}, err
	}
	sampleRate := order.Uint32(rest[0:4])
	channels := order.Uint32(rest[4:8])
	// rest[8:12] is the 4-byte info field; unused on read.

	bps := 0
	switch formatCode {
	case 3:
		bps = 2
	case 4:
		bps = 3
	case 6:
		bps = 4
	default:
		return Info{}, fmt.Errorf("%w: unsupported NeXT format code %d", ErrBadHeader, formatCode)
	}

	// onset tells us where audio data actually starts; a file can carry a
	// larger (or smaller, in theory) header than the fixed 28 bytes.
	if onset > uint32(cr.n) {
		if err := discard(cr, int64(onset)-cr.n); err != nil {
			return Info{}, err
		}
	}

	return Info{
		Format:         NeXT,
		SampleRate:     int32(sampleRate),
		Channels:       int(channels),
		BytesPerSample: bps,
		HeaderSize:     cr.n,
		BigEndian:      bigEndian,
		ByteLimit:      ByteLimitUnlimited,
	}, nil
}

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// emitNeXT writes a complete NeXT/Sun header, returning the number of
// bytes written (always nextHeaderSize).
func emitNeXT(w io.Writer, info Info) (int64, error) {
	order := byteOrder(info.BigEndian)

	var formatCode uint32
	switch info.BytesPerSample {
	case 2:
		formatCode = 3
	case 3:
		formatCode = 4
	case 4:
		formatCode = 6
	default:
		return 0, fmt.Errorf("%w: unsupported bytes_per_sample %d", ErrUnsupportedFormat, info.BytesPerSample)
	}

	magic := ".snd"
	if !info.BigEndian {
		magic = "dns."
	}

	buf := make([]byte, nextHeaderSize)
	copy(buf[0:4], magic)
	order.PutUint32(buf[4:8], nextHeaderSize)
	order.PutUint32(buf[8:12], 0) // length: patched at finalize time
	order.PutUint32(buf[12:16], formatCode)
	order.PutUint32(buf[16:20], uint32(info.SampleRate))
	order.PutUint32(buf[20:24], uint32(info.Channels))
	copy(buf[24:28], "sfio")

	n, err := w.Write(buf)
	return int64(n), err
}
