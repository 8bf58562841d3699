package sfheader

import "io"

// EmitHeader writes a complete header for info describing numFrames of
// audio that will follow, returning the number of header bytes written
// (this becomes info.HeaderSize for the file being created).
func EmitHeader(w io.Writer, info Info, numFrames int64) (int64, error) {
	switch info.Format {
	case WAVE:
		dataSize := uint32(numFrames * int64(info.BytesPerFrame()))
		return emitWAVE(w, info, dataSize)
	case AIFF:
		return emitAIFF(w, info, uint32(numFrames))
	case NeXT:
		return emitNeXT(w, info)
	default:
		return 0, ErrUnsupportedFormat
	}
}
