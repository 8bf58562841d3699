package main

import (
	"strings"
	"testing"

	"sfio/pkg/sfile"
)

func TestNewSoundfileResultString(t *testing.T) {
	t.Parallel()

	r := sfile.Result{
		SampleRate:     44100,
		HeaderSize:     44,
		Channels:       2,
		BytesPerSample: 2,
		BigEndian:      false,
	}
	res := newSoundfileResult("read", "tone.wav", r, 256)

	if res.Endian != 'l' {
		t.Fatalf("Endian = %c, want l", res.Endian)
	}
	if res.Frames != 256 {
		t.Fatalf("Frames = %d, want 256", res.Frames)
	}

	s := res.String()
	for _, want := range []string{"read", "tone.wav", "rate=44100", "channels=2", "endian=l", "frames=256"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestNewSoundfileResultBigEndian(t *testing.T) {
	t.Parallel()

	r := sfile.Result{BigEndian: true}
	res := newSoundfileResult("write", "x.aif", r, 0)
	if res.Endian != 'b' {
		t.Fatalf("Endian = %c, want b", res.Endian)
	}
}
