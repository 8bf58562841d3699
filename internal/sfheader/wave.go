package sfheader

import (
	"encoding/binary"
	"fmt"
	"io"
)

// parseWAVE continues after the 16-byte peek has already consumed the
// 12-byte RIFF/WAVE preamble plus the first chunk's 4-byte id (peek[12:16]).
func parseWAVE(cr *countingReader, peek []byte) (Info, error) {
	info := Info{
		Format:         WAVE,
		SampleRate:     44100,
		Channels:       1,
		BytesPerSample: 2,
		BigEndian:      false,
	}

	chunkID := string(peek[12:16])

	for {
		sizeBuf, err := readFull(cr, 4)
		if err != nil {
			return Info{}, err
		}
		size := binary.LittleEndian.Uint32(sizeBuf)

		switch chunkID {
		case "fmt ":
			if size < 16 {
				return Info{}, fmt.Errorf("%w: fmt chunk too small", ErrBadHeader)
			}
			fmtBuf, err := readFull(cr, 16)
			if err != nil {
				return Info{}, err
			}
			formatTag := binary.LittleEndian.Uint16(fmtBuf[0:2])
			channels := binary.LittleEndian.Uint16(fmtBuf[2:4])
			sampleRate := binary.LittleEndian.Uint32(fmtBuf[4:8])
			bitsPerSample := binary.LittleEndian.Uint16(fmtBuf[14:16])

			bps := bytesPerSampleForBits(int(bitsPerSample))
			if bps == 0 {
				return Info{}, fmt.Errorf("%w: unsupported bits_per_sample %d", ErrBadHeader, bitsPerSample)
			}
			if formatTag != 1 && formatTag != 3 {
				return Info{}, fmt.Errorf("%w: unsupported format_tag %d", ErrBadHeader, formatTag)
			}

			info.Channels = int(channels)
			info.SampleRate = int32(sampleRate)
			info.BytesPerSample = bps

			if err := discard(cr, evenPad(size)-16); err != nil {
				return Info{}, err
			}

		case "data":
			// A fmt chunk arriving after data is not handled.
			info.ByteLimit = int64(size)
			info.HeaderSize = cr.n
			return info, nil

		default:
			if err := discard(cr, evenPad(size)); err != nil {
				return Info{}, err
			}
		}

		idBuf, err := readFull(cr, 4)
		if err != nil {
			if err == io.EOF { //nolint:errorlint // io.EOF is a sentinel by contract
				return Info{}, fmt.Errorf("%w: missing data chunk", ErrBadHeader)
			}
			return Info{}, err
		}
		chunkID = string(idBuf)
	}
}

// emitWAVE writes a complete WAVE header for info with the given payload
// byte count, returning the number of bytes written (the header size).
func emitWAVE(w io.Writer, info Info, dataSize uint32) (int64, error) {
	formatTag := uint16(1)
	if info.BytesPerSample == 4 {
		formatTag = 3
	}

	blockAlign := uint16(info.Channels * info.BytesPerSample)
	byteRate := uint32(info.SampleRate) * uint32(blockAlign)
	bitsPerSample := uint16(info.BytesPerSample * 8)

	buf := make([]byte, 0, 44)
	buf = append(buf, "RIFF"...)
	buf = le32(buf, 36+dataSize)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = le32(buf, 16)
	buf = le16(buf, formatTag)
	buf = le16(buf, uint16(info.Channels))
	buf = le32(buf, uint32(info.SampleRate))
	buf = le32(buf, byteRate)
	buf = le16(buf, blockAlign)
	buf = le16(buf, bitsPerSample)
	buf = append(buf, "data"...)
	buf = le32(buf, dataSize)

	n, err := w.Write(buf)
	return int64(n), err
}

func le16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func le32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
