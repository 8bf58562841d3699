package sfheader

import (
	"encoding/binary"
	"io"
)

// Fixed byte offsets of the size fields each container's writer leaves as
// placeholders during streaming writes, patched once the true frame count
// is known.
const (
	waveRIFFSizeOffset = 4
	waveDataSizeOffset = 40

	aiffFormSizeOffset  = 4
	aiffNumFramesOffset = 22
	aiffSSNDSizeOffset  = 42

	nextLengthOffset = 8
)

// nextUnknownLength is written to a NeXT header's length field when the
// writer cannot (or chooses not to) seek back to patch the real count.
const nextUnknownLength = 0xFFFFFFFF

// FinalizeWAVE seeks back into a just-written WAVE file and rewrites the
// RIFF and data chunk sizes to match itemsWritten frames.
func FinalizeWAVE(w io.WriteSeeker, itemsWritten int64, bytesPerFrame int) error {
	dataSize := uint32(itemsWritten * int64(bytesPerFrame))

	if err := seekWrite32(w, waveRIFFSizeOffset, 36+dataSize, binary.LittleEndian); err != nil {
		return err
	}
	return seekWrite32(w, waveDataSizeOffset, dataSize, binary.LittleEndian)
}

// FinalizeAIFF seeks back into a just-written AIFF file and rewrites the
// FORM size, COMM frame count, and SSND chunk size.
func FinalizeAIFF(w io.WriteSeeker, itemsWritten int64, bytesPerFrame int) error {
	dataSize := uint32(itemsWritten * int64(bytesPerFrame))
	formSize := 46 + dataSize

	if err := seekWrite32(w, aiffFormSizeOffset, formSize, binary.BigEndian); err != nil {
		return err
	}
	if err := seekWrite32(w, aiffNumFramesOffset, uint32(itemsWritten), binary.BigEndian); err != nil {
		return err
	}
	return seekWrite32(w, aiffSSNDSizeOffset, dataSize+8, binary.BigEndian)
}

// FinalizeNeXT seeks back into a just-written NeXT file and rewrites the
// length field. If the seek or write fails, it falls back to writing the
// "unknown length" sentinel (0xFFFFFFFF) at the same offset instead of
// returning that first error, since a NeXT reader can recover from an
// unknown length but not from a truncated file; only a failure of the
// fallback write itself is returned.
func FinalizeNeXT(w io.WriteSeeker, itemsWritten int64, bytesPerFrame int, bigEndian bool) error {
	order := byteOrder(bigEndian)
	length := uint32(itemsWritten * int64(bytesPerFrame))

	if err := seekWrite32(w, nextLengthOffset, length, order); err != nil {
		return seekWrite32(w, nextLengthOffset, nextUnknownLength, order)
	}
	return nil
}

func seekWrite32(w io.WriteSeeker, offset int64, v uint32, order binary.ByteOrder) error {
	if _, err := w.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	var buf [4]byte
	order.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}
