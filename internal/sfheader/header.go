package sfheader

import (
	"fmt"
	"io"
)

// countingReader tracks how many bytes have been consumed from the
// wrapped reader, so ParseHeader can report the exact data-start offset
// without a second pass.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func readFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	return buf, nil
}

// discard reads and throws away n bytes, the only portable way to skip
// forward on a plain io.Reader (callers that have an io.Seeker may prefer
// to seek, but chunk skipping here is rare enough not to matter).
func discard(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	return nil
}

// ParseHeader reads r from its current position, detects the container
// format, and returns a fully populated Info. HeaderSize in the result is
// the number of bytes ParseHeader consumed from r, i.e. the offset of the
// first audio byte; the caller does not need to seek separately.
func ParseHeader(r io.Reader) (Info, error) {
	cr := &countingReader{r: r}

	peek, err := readFull(cr, 16)
	if err != nil {
		return Info{}, err
	}

	switch {
	case string(peek[0:4]) == ".snd":
		return parseNeXT(cr, peek, true)
	case string(peek[0:4]) == "dns.":
		return parseNeXT(cr, peek, false)
	case string(peek[0:4]) == "RIFF" && string(peek[8:12]) == "WAVE":
		return parseWAVE(cr, peek)
	case string(peek[0:4]) == "FORM" && (string(peek[8:12]) == "AIFF" || string(peek[8:12]) == "AIFC"):
		return parseAIFF(cr, peek)
	default:
		return Info{}, fmt.Errorf("%w: unrecognized magic", ErrBadHeader)
	}
}

// evenPad rounds n up to the next even number, per the RIFF/FORM chunk
// padding rule: every chunk's payload is padded to an even byte count.
func evenPad(n uint32) int64 {
	if n%2 != 0 {
		return int64(n) + 1
	}
	return int64(n)
}
