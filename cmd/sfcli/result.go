package main

import (
	"fmt"

	"sfio/pkg/sfile"
)

// SoundfileResult is what a synchronous read or write reports back to the
// caller: the resolved layout plus how many frames were moved. It replaces
// the info-outlet/primary-outlet message pair of the dataflow runtime this
// module no longer depends on.
type SoundfileResult struct {
	Operation      string
	Filename       string
	SampleRate     int32
	HeaderSize     int64
	Channels       int
	BytesPerSample int
	Endian         byte
	Frames         int64
}

func newSoundfileResult(op, filename string, r sfile.Result, frames int64) SoundfileResult {
	return SoundfileResult{
		Operation:      op,
		Filename:       filename,
		SampleRate:     r.SampleRate,
		HeaderSize:     r.HeaderSize,
		Channels:       r.Channels,
		BytesPerSample: r.BytesPerSample,
		Endian:         r.EndianChar(),
		Frames:         frames,
	}
}

func (s SoundfileResult) String() string {
	return fmt.Sprintf("%s %s: rate=%d header=%d channels=%d bytes=%d endian=%c frames=%d",
		s.Operation, s.Filename, s.SampleRate, s.HeaderSize, s.Channels, s.BytesPerSample, s.Endian, s.Frames)
}
