package sfheader

import "errors"

// Sentinel errors for the header codec, wrapped with fmt.Errorf("%w: ...")
// at the point of detection so callers can still errors.Is against them.
var (
	// ErrBadHeader covers unrecognized magic, a truncated header read, an
	// unknown sample format code, or a missing required chunk.
	ErrBadHeader = errors.New("sfheader: unknown or bad header format")

	// ErrUnsupportedFormat covers float32 samples written to AIFF and any
	// other combination the three containers cannot represent.
	ErrUnsupportedFormat = errors.New("sfheader: unsupported sample format for container")
)
