package sfheader

import (
	"encoding/binary"
	"fmt"
	"io"

	"sfio/internal/sfbyteorder"
)

// parseAIFF continues after the 16-byte peek has already consumed the
// 12-byte FORM/AIFF(C) preamble plus the first chunk's 4-byte id.
func parseAIFF(cr *countingReader, peek []byte) (Info, error) {
	info := Info{
		Format:    AIFF,
		BigEndian: true,
	}

	chunkID := string(peek[12:16])
	haveComm := false

	// AIFC's COMM chunk carries a 4-byte compression type after the AIFF
	// fields; only uncompressed "NONE" is decoded.
	commLen := uint32(18)
	if string(peek[8:12]) == "AIFC" {
		commLen = 22
	}

	for {
		sizeBuf, err := readFull(cr, 4)
		if err != nil {
			return Info{}, err
		}
		size := binary.BigEndian.Uint32(sizeBuf)

		switch chunkID {
		case "COMM":
			if size < commLen {
				return Info{}, fmt.Errorf("%w: COMM chunk too small", ErrBadHeader)
			}
			commBuf, err := readFull(cr, int(commLen))
			if err != nil {
				return Info{}, err
			}
			if commLen == 22 && string(commBuf[18:22]) != "NONE" {
				return Info{}, fmt.Errorf("%w: unsupported AIFC compression %q", ErrBadHeader, commBuf[18:22])
			}
			channels := binary.BigEndian.Uint16(commBuf[0:2])
			bitsPerSample := binary.BigEndian.Uint16(commBuf[6:8])

			var rateBytes [10]byte
			copy(rateBytes[:], commBuf[8:18])
			sampleRate := sfbyteorder.ReadExtended80(rateBytes)

			bps := bytesPerSampleForBits(int(bitsPerSample))
			if bps == 0 {
				return Info{}, fmt.Errorf("%w: unsupported bits_per_sample %d", ErrBadHeader, bitsPerSample)
			}

			info.Channels = int(channels)
			info.BytesPerSample = bps
			info.SampleRate = int32(sampleRate)
			haveComm = true

			if err := discard(cr, evenPad(size)-int64(commLen)); err != nil {
				return Info{}, err
			}

		case "SSND":
			if !haveComm {
				return Info{}, fmt.Errorf("%w: SSND before COMM", ErrBadHeader)
			}
			if size < 8 {
				return Info{}, fmt.Errorf("%w: SSND chunk too small", ErrBadHeader)
			}
			innerBuf, err := readFull(cr, 8)
			if err != nil {
				return Info{}, err
			}
			offset := binary.BigEndian.Uint32(innerBuf[0:4])
			if err := discard(cr, int64(offset)); err != nil {
				return Info{}, err
			}

			info.HeaderSize = cr.n
			info.ByteLimit = int64(size) - 8 - int64(offset)
			return info, nil

		default:
			if err := discard(cr, evenPad(size)); err != nil {
				return Info{}, err
			}
		}

		idBuf, err := readFull(cr, 4)
		if err != nil {
			if err == io.EOF { //nolint:errorlint // io.EOF is a sentinel by contract
				return Info{}, fmt.Errorf("%w: missing SSND chunk", ErrBadHeader)
			}
			return Info{}, err
		}
		chunkID = string(idBuf)
	}
}

// emitAIFF writes a complete AIFF header for info with the given frame
// count, returning the number of bytes written.
func emitAIFF(w io.Writer, info Info, numFrames uint32) (int64, error) {
	if info.BytesPerSample == 4 {
		return 0, fmt.Errorf("%w: AIFF cannot carry float32 samples", ErrUnsupportedFormat)
	}

	bitsPerSample := uint16(info.BytesPerSample * 8)
	dataSize := numFrames * uint32(info.Channels*info.BytesPerSample)

	// FORM size: "AIFF"(4) + COMM chunk(8+18) + SSND chunk(8+8+dataSize)
	formSize := uint32(4 + (8 + 18) + (8 + 8) + dataSize)

	rate := sfbyteorder.WriteExtended80(uint32(info.SampleRate))

	buf := make([]byte, 0, 54)
	buf = append(buf, "FORM"...)
	buf = be32(buf, formSize)
	buf = append(buf, "AIFF"...)
	buf = append(buf, "COMM"...)
	buf = be32(buf, 18)
	buf = be16(buf, uint16(info.Channels))
	buf = be32(buf, numFrames)
	buf = be16(buf, bitsPerSample)
	buf = append(buf, rate[:]...)
	buf = append(buf, "SSND"...)
	buf = be32(buf, dataSize+8)
	buf = be32(buf, 0)
	buf = be32(buf, 0)

	n, err := w.Write(buf)
	return int64(n), err
}

func be16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func be32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
